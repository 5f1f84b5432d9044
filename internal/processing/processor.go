// Package processing runs drawing jobs in-process on a fixed set of worker
// goroutines fed by a buffered channel. It is used when Redis is not
// configured.
package processing

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by Dispatch when the buffer has no room.
var ErrQueueFull = errors.New("processing queue full")

// Handler does the work for one job.
type Handler func(ctx context.Context, drawingID string) error

// Pool consumes drawing ids and runs the handler for each.
type Pool struct {
	handler Handler
	logger  *zap.Logger
	queue   chan string
	workers int
	wg      sync.WaitGroup
}

// New builds a Pool with queue capacity tied to worker count.
func New(handler Handler, workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		handler: handler,
		logger:  logger,
		queue:   make(chan string, workers*4),
		workers: workers,
	}
}

// Start launches worker goroutines. They exit when ctx is cancelled; Wait
// blocks until they have.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() { p.wg.Wait() }

// Dispatch queues a drawing without blocking. A full buffer drops the job
// and reports ErrQueueFull; the caller marks the drawing failed.
func (p *Pool) Dispatch(_ context.Context, drawingID string) error {
	select {
	case p.queue <- drawingID:
		return nil
	default:
		p.logger.Warn("processor queue full, dropping job", zap.String("drawing_id", drawingID))
		return ErrQueueFull
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.queue:
			if err := p.handler(ctx, id); err != nil {
				p.logger.Warn("job failed", zap.String("drawing_id", id), zap.Error(err))
			}
		}
	}
}
