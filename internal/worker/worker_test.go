package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/dar/internal/email"
	"github.com/dukerupert/dar/internal/jobs"
	"github.com/dukerupert/dar/internal/repository"
)

// queue is an in-memory job table. Unimplemented Querier methods panic
// through the nil embedded interface.
type queue struct {
	repository.Querier

	mu        sync.Mutex
	jobs      []*repository.Job
	failed    []repository.FailJobParams
	completed []pgtype.UUID
	order     repository.Order
}

func (q *queue) EnqueueJob(_ context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j := &repository.Job{
		ID:          pgtype.UUID{Bytes: uuid.New(), Valid: true},
		JobType:     arg.JobType,
		Payload:     arg.Payload,
		Status:      "pending",
		MaxAttempts: arg.MaxAttempts,
	}
	q.jobs = append(q.jobs, j)
	return *j, nil
}

func (q *queue) ClaimNextJob(context.Context) (repository.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.jobs {
		if j.Status == "pending" {
			j.Status = "running"
			j.Attempts++
			return *j, nil
		}
	}
	return repository.Job{}, pgx.ErrNoRows
}

func (q *queue) CompleteJob(_ context.Context, id pgtype.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, id)
	q.find(id).Status = "completed"
	return nil
}

func (q *queue) FailJob(_ context.Context, arg repository.FailJobParams) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, arg)
	j := q.find(arg.ID)
	if j.Attempts >= j.MaxAttempts {
		j.Status = "failed"
	} else {
		j.Status = "pending"
	}
	return nil
}

func (q *queue) GetOrder(context.Context, pgtype.UUID) (repository.Order, error) {
	return q.order, nil
}

func (q *queue) ListOrderItems(context.Context, pgtype.UUID) ([]repository.OrderItem, error) {
	return nil, nil
}

func (q *queue) DeleteFinishedJobs(context.Context, pgtype.Timestamptz) (int64, error) {
	return 2, nil
}

func (q *queue) find(id pgtype.UUID) *repository.Job {
	for _, j := range q.jobs {
		if j.ID == id {
			return j
		}
	}
	panic("job not found")
}

func (q *queue) status(i int) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobs[i].Status
}

type mailer struct {
	mu    sync.Mutex
	sent  int
	fails int // number of sends that fail before succeeding
}

func (m *mailer) SendOrderEmail(context.Context, email.OrderEmail) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fails > 0 {
		m.fails--
		return "", email.ErrSendFailed
	}
	m.sent++
	return "id", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func enqueueEmail(t *testing.T, q *queue) {
	t.Helper()
	err := jobs.EnqueueOrderEmail(context.Background(), q, "order_shipped", jobs.OrderEmailPayload{
		OrderID:     uuid.NewString(),
		OrderNumber: "DAR-1",
		Email:       "mona@example.com",
	})
	require.NoError(t, err)
}

func TestWorker_CompletesJob(t *testing.T) {
	q := &queue{order: repository.Order{OrderNumber: "DAR-1", Email: "mona@example.com"}}
	m := &mailer{}
	enqueueEmail(t, q)

	w := NewWorker(q, m, Config{}, testLogger())
	assert.True(t, w.claimAndProcess(context.Background()))

	assert.Equal(t, 1, m.sent)
	assert.Equal(t, "completed", q.status(0))
	assert.False(t, w.claimAndProcess(context.Background()), "queue should be empty")
}

func TestWorker_RetriesWithBackoff(t *testing.T) {
	q := &queue{order: repository.Order{OrderNumber: "DAR-1", Email: "mona@example.com"}}
	m := &mailer{fails: 5}
	enqueueEmail(t, q)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w := NewWorker(q, m, Config{RetryBase: time.Minute}, testLogger())
	w.now = func() time.Time { return now }

	for range 3 {
		assert.True(t, w.claimAndProcess(context.Background()))
	}

	require.Len(t, q.failed, 3)
	assert.Equal(t, now.Add(time.Minute), q.failed[0].RetryAt.Time)
	assert.Equal(t, now.Add(2*time.Minute), q.failed[1].RetryAt.Time)
	assert.Equal(t, now.Add(4*time.Minute), q.failed[2].RetryAt.Time)
	assert.Contains(t, q.failed[0].LastError.String, "could not be delivered")
	assert.Equal(t, "failed", q.status(0), "three attempts exhaust the job")
	assert.False(t, w.claimAndProcess(context.Background()))
	assert.Zero(t, m.sent)
}

func TestWorker_UnknownJobType(t *testing.T) {
	q := &queue{}
	_, err := q.EnqueueJob(context.Background(), repository.EnqueueJobParams{JobType: "invoice:send", MaxAttempts: 1, Payload: []byte("{}")})
	require.NoError(t, err)

	w := NewWorker(q, &mailer{}, Config{}, testLogger())
	assert.True(t, w.claimAndProcess(context.Background()))
	require.Len(t, q.failed, 1)
	assert.Contains(t, q.failed[0].LastError.String, "unknown job type")
}

func TestWorker_CleanupJob(t *testing.T) {
	q := &queue{}
	require.NoError(t, jobs.EnqueueCleanupFinishedJobs(context.Background(), q, time.Hour))

	w := NewWorker(q, &mailer{}, Config{}, testLogger())
	assert.True(t, w.claimAndProcess(context.Background()))
	assert.Equal(t, "completed", q.status(0))

	var payload jobs.CleanupFinishedJobsPayload
	require.NoError(t, json.Unmarshal(q.jobs[0].Payload, &payload))
	assert.Equal(t, time.Hour, payload.Retention)
}

func TestWorker_StartStopsOnCancel(t *testing.T) {
	q := &queue{order: repository.Order{OrderNumber: "DAR-1", Email: "mona@example.com"}}
	m := &mailer{}
	enqueueEmail(t, q)

	w := NewWorker(q, m, Config{PollInterval: 5 * time.Millisecond}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool { return q.status(0) == "completed" }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
