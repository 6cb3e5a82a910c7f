// Package worker polls the jobs table and runs background jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/dar/internal/jobs"
	"github.com/dukerupert/dar/internal/repository"
	"github.com/dukerupert/dar/internal/telemetry"
)

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance in logs
	WorkerID string

	// PollInterval is how often to check for new jobs
	PollInterval time.Duration

	// MaxConcurrency is the maximum number of jobs to process concurrently
	MaxConcurrency int

	// JobTimeout bounds a single job attempt
	JobTimeout time.Duration

	// RetryBase is the first retry delay; each attempt doubles it
	RetryBase time.Duration

	// CleanupInterval schedules the finished-jobs cleanup (0 disables it)
	CleanupInterval time.Duration

	// JobRetention is how long finished jobs are kept
	JobRetention time.Duration
}

// Worker processes background jobs
type Worker struct {
	config Config
	store  repository.Querier
	mailer jobs.OrderMailer
	logger *slog.Logger
	now    func() time.Time

	wg sync.WaitGroup
}

// NewWorker creates a new background job worker
func NewWorker(store repository.Querier, mailer jobs.OrderMailer, config Config, logger *slog.Logger) *Worker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 5
	}
	if config.JobTimeout == 0 {
		config.JobTimeout = 30 * time.Second
	}
	if config.RetryBase == 0 {
		config.RetryBase = 30 * time.Second
	}
	if config.JobRetention == 0 {
		config.JobRetention = jobs.DefaultJobRetention
	}

	return &Worker{
		config: config,
		store:  store,
		mailer: mailer,
		logger: logger.With("worker_id", config.WorkerID),
		now:    time.Now,
	}
}

// Start processes jobs until ctx is cancelled, then waits for in-flight
// jobs to finish before returning.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"poll_interval", w.config.PollInterval,
		"max_concurrency", w.config.MaxConcurrency,
	)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	var cleanup <-chan time.Time
	if w.config.CleanupInterval > 0 {
		cleanupTicker := time.NewTicker(w.config.CleanupInterval)
		defer cleanupTicker.Stop()
		cleanup = cleanupTicker.C
	}

	// Semaphore for concurrency control
	sem := make(chan struct{}, w.config.MaxConcurrency)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down")
			w.wg.Wait()
			return ctx.Err()

		case <-cleanup:
			if err := jobs.EnqueueCleanupFinishedJobs(ctx, w.store, w.config.JobRetention); err != nil {
				w.logger.Error("failed to schedule job cleanup", "error", err)
			}

		case <-ticker.C:
			select {
			case sem <- struct{}{}:
				w.wg.Add(1)
				go func() {
					defer w.wg.Done()
					defer func() { <-sem }()
					// Jobs finish with their own context so shutdown does not
					// cut a send in half.
					w.claimAndProcess(context.WithoutCancel(ctx))
				}()
			default:
				// At max concurrency, skip this poll
			}
		}
	}
}

// claimAndProcess claims and processes a single job. It reports whether a
// job was claimed.
func (w *Worker) claimAndProcess(ctx context.Context) bool {
	job, err := w.store.ClaimNextJob(ctx)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			w.logger.Error("failed to claim job", "error", err)
		}
		return false
	}

	logger := w.logger.With(
		"job_id", uuid.UUID(job.ID.Bytes).String(),
		"job_type", job.JobType,
		"attempt", job.Attempts,
	)
	logger.Debug("processing job")

	start := w.now()
	err = w.processJob(ctx, &job)
	if telemetry.Business != nil {
		telemetry.Business.JobDuration.WithLabelValues(job.JobType).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		retryAt := w.now().Add(w.backoff(job.Attempts))
		final := job.Attempts >= job.MaxAttempts
		if final {
			logger.Error("job failed permanently", "error", err)
		} else {
			logger.Warn("job failed, will retry", "error", err, "retry_at", retryAt)
		}
		if telemetry.Business != nil {
			telemetry.Business.JobsFailed.WithLabelValues(job.JobType).Inc()
		}

		if ferr := w.store.FailJob(ctx, repository.FailJobParams{
			ID:        job.ID,
			LastError: pgtype.Text{String: err.Error(), Valid: true},
			RetryAt:   pgtype.Timestamptz{Time: retryAt, Valid: true},
		}); ferr != nil {
			logger.Error("failed to record job failure", "error", ferr)
		}
		return true
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		logger.Error("failed to mark job completed", "error", err)
		return true
	}
	if telemetry.Business != nil {
		telemetry.Business.JobsProcessed.WithLabelValues(job.JobType).Inc()
	}
	logger.Info("job completed")
	return true
}

// processJob processes a single job
func (w *Worker) processJob(ctx context.Context, job *repository.Job) error {
	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	switch {
	case jobs.IsEmailJob(job.JobType):
		return jobs.ProcessEmailJob(jobCtx, job, w.mailer, w.store)
	case jobs.IsCleanupJob(job.JobType):
		result, err := jobs.ProcessCleanupJob(jobCtx, job, w.store, w.now())
		if err != nil {
			return err
		}
		w.logger.Info("finished jobs cleaned up", "deleted", result.JobsDeleted)
		return nil
	}

	return fmt.Errorf("unknown job type: %s", job.JobType)
}

// backoff returns RetryBase * 2^(attempt-1).
func (w *Worker) backoff(attempt int32) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(w.config.RetryBase) * math.Pow(2, float64(attempt-1)))
}
