// Package queue carries drawing processing jobs over Redis with asynq.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// ProcessDrawingTask is scheduled each time a drawing is uploaded.
	ProcessDrawingTask = "drawing:process"
	maxRetry           = 5
)

// ProcessPayload is serialized into the task payload so the worker knows
// which drawing to load.
type ProcessPayload struct {
	DrawingID string `json:"drawing_id"`
}

// NewProcessTask builds the asynq task for a drawing.
func NewProcessTask(drawingID string) (*asynq.Task, error) {
	data, err := json.Marshal(ProcessPayload{DrawingID: drawingID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(ProcessDrawingTask, data), nil
}

// EnqueueProcess enqueues a drawing processing job.
func EnqueueProcess(ctx context.Context, client *asynq.Client, drawingID string) error {
	task, err := NewProcessTask(drawingID)
	if err != nil {
		return err
	}
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(maxRetry)); err != nil {
		return fmt.Errorf("enqueue process task: %w", err)
	}
	return nil
}

// Dispatcher adapts an asynq client to drawings.Dispatcher.
type Dispatcher struct {
	Client *asynq.Client
}

func (d Dispatcher) Dispatch(ctx context.Context, drawingID string) error {
	return EnqueueProcess(ctx, d.Client, drawingID)
}
