package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"

	"github.com/phoenix-garage/garage/jobs"
)

// Enqueuer submits a named task.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string) (*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    Enqueuer
	inspector jobs.QueueInspector
}

// NewJobsCLI constructs JobsCLI.
func NewJobsCLI(client Enqueuer, inspector jobs.QueueInspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// Trigger enqueues a supported job by name with default payload.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	return c.client.Enqueue(ctx, name)
}

// EnqueueCommand triggers name and prints the task id.
func (c *JobsCLI) EnqueueCommand(ctx context.Context, name string, stdout, stderr io.Writer) int {
	info, err := c.Trigger(ctx, name)
	if err != nil {
		fmt.Fprintf(stderr, "enqueue: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "enqueued %s as %s on %s\n", name, info.ID, info.Queue)
	return 0
}

// StatsCommand prints the default queue counters.
func (c *JobsCLI) StatsCommand(stdout, stderr io.Writer) int {
	stats, err := jobs.Inspect(c.inspector)
	if err != nil {
		fmt.Fprintf(stderr, "queue stats: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "queue %s: pending %d, active %d, scheduled %d, retry %d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	return 0
}
