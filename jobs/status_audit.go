package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/phoenix-garage/garage/internal/jobs"
)

// StatusRepairer rewrites part statuses that drifted from their stock quantity.
type StatusRepairer interface {
	RepairStatuses(ctx context.Context) (int, error)
}

// StatusAuditJob runs the inventory status audit.
type StatusAuditJob struct {
	Parts   StatusRepairer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStatusAuditJob constructs the job handler.
func NewStatusAuditJob(parts StatusRepairer, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatusAuditJob {
	return &StatusAuditJob{Parts: parts, Logger: logger, Metrics: metrics}
}

// Handle executes the audit.
func (j *StatusAuditJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Parts == nil {
		return errors.New("status audit: dependencies not configured")
	}
	tracker := j.Metrics.Track(TaskStatusAudit)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	repaired, err := j.Parts.RepairStatuses(ctx)
	if err != nil {
		j.log().Error("repair part statuses", slog.Any("error", err))
		return err
	}
	j.Metrics.AddAffected(TaskStatusAudit, int64(repaired))
	j.log().Info("part status audit complete", slog.Int("repaired", repaired), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *StatusAuditJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
