package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/phoenix-garage/garage/internal/jobs"
)

type stubRepairer struct {
	repaired int
	err      error
	calls    int
}

func (s *stubRepairer) RepairStatuses(context.Context) (int, error) {
	s.calls++
	return s.repaired, s.err
}

type stubCleaner struct {
	olderThan time.Duration
	purged    int64
	err       error
}

func (s *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.olderThan = olderThan
	return s.purged, s.err
}

func TestStatusAuditRecordsRepairs(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	repairer := &stubRepairer{repaired: 3}
	job := NewStatusAuditJob(repairer, nil, metrics)

	require.NoError(t, job.Handle(context.Background(), NewStatusAuditTask()))
	require.Equal(t, 1, repairer.calls)

	count, err := testutil.GatherAndCount(reg, "garage_jobs_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	repairer.err = errors.New("db down")
	require.Error(t, job.Handle(context.Background(), NewStatusAuditTask()))
	failures, err := testutil.GatherAndCount(reg, "garage_jobs_failures_total")
	require.NoError(t, err)
	require.Equal(t, 1, failures)
}

func TestStatusAuditWithoutDependencies(t *testing.T) {
	var job *StatusAuditJob
	require.Error(t, job.Handle(context.Background(), NewStatusAuditTask()))
}

func TestIdempotencyCleanupRetention(t *testing.T) {
	cleaner := &stubCleaner{purged: 7}
	job := NewIdempotencyCleanupJob(cleaner, nil, nil)

	task, err := NewIdempotencyCleanupTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 48*time.Hour, cleaner.olderThan)

	task, err = NewTask(TaskIdempotencyCleanup)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, DefaultIdempotencyRetention, cleaner.olderThan)

	bad := asynq.NewTask(TaskIdempotencyCleanup, []byte("{"))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

func TestNewTaskRejectsUnknownName(t *testing.T) {
	_, err := NewTask("mail:send")
	require.Error(t, err)

	task, err := NewTask(TaskStatusAudit)
	require.NoError(t, err)
	require.Equal(t, TaskStatusAudit, task.Type())
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestQueueHealth(t *testing.T) {
	serve := func(inspector QueueInspector) (int, map[string]any) {
		r := chi.NewRouter()
		r.Route("/jobs", NewHandler(inspector, nil).MountRoutes)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec.Code, body
	}

	code, body := serve(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Retry: 1}})
	require.Equal(t, http.StatusOK, code)
	data := body["data"].(map[string]any)
	require.EqualValues(t, 4, data["pending"])
	require.EqualValues(t, 1, data["retry"])

	code, body = serve(stubInspector{err: errors.New("redis down")})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "error", body["status"])
}
