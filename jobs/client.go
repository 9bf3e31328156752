package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
)

// ErrUnknownTask is returned for task types the worker does not handle.
var ErrUnknownTask = errors.New("jobs: unknown task type")

// DefaultTask builds a task of the given type with its default payload.
func DefaultTask(taskType string) (*asynq.Task, error) {
	switch taskType {
	case TaskDealsReevaluate:
		return NewDealsReevaluateTask("manual")
	case TaskPayablesWarmCumulative:
		return NewPayablesWarmupTask("")
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(0)
	default:
		return nil, ErrUnknownTask
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client. No connection is made until the first enqueue.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// Enqueue submits a supported task by type with its default payload.
func (c *Client) Enqueue(ctx context.Context, taskType string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs client: not configured")
	}
	task, err := DefaultTask(taskType)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

// Close releases client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
