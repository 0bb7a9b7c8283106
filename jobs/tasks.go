package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStatusAudit re-derives stored part statuses from stock quantities.
	TaskStatusAudit = "inventory:status-audit"
	// TaskIdempotencyCleanup purges old idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// DefaultIdempotencyRetention is how long an idempotency key is kept when the task
// payload does not say otherwise.
const DefaultIdempotencyRetention = 30 * 24 * time.Hour

// IdempotencyCleanupPayload configures the cleanup task.
type IdempotencyCleanupPayload struct {
	OlderThanHours int `json:"older_than_hours"`
}

// NewStatusAuditTask constructs the status audit task.
func NewStatusAuditTask() *asynq.Task {
	return asynq.NewTask(TaskStatusAudit, nil, asynq.Queue(QueueDefault))
}

// NewIdempotencyCleanupTask constructs the cleanup task. A non-positive retention
// uses DefaultIdempotencyRetention.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	if retention <= 0 {
		retention = DefaultIdempotencyRetention
	}
	body, err := json.Marshal(IdempotencyCleanupPayload{OlderThanHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// NewTask builds a task by name with its default payload.
func NewTask(name string) (*asynq.Task, error) {
	switch name {
	case TaskStatusAudit:
		return NewStatusAuditTask(), nil
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(0)
	default:
		return nil, fmt.Errorf("jobs: unsupported task %s", name)
	}
}
