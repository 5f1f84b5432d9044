// Package worker runs drawing processing jobs pulled from asynq.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/QCBoard/internal/queue"
	"github.com/dharsanguruparan/QCBoard/internal/storage"
)

// DrawingProcessor is the part of drawings.Service the worker needs.
type DrawingProcessor interface {
	Process(ctx context.Context, drawingID string) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	drawings DrawingProcessor
	logger   *zap.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(drawings DrawingProcessor, logger *zap.Logger) *Processor {
	return &Processor{drawings: drawings, logger: logger}
}

// Handler registers the process job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ProcessDrawingTask, p.handleProcess)
	return mux
}

func (p *Processor) handleProcess(ctx context.Context, task *asynq.Task) error {
	var payload queue.ProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	err := p.drawings.Process(ctx, payload.DrawingID)
	if errors.Is(err, storage.ErrNotFound) {
		// The drawing row is gone; retrying cannot help.
		p.logger.Warn("drawing vanished", zap.String("drawing_id", payload.DrawingID))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}
