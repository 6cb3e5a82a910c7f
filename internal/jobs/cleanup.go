package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/dar/internal/repository"
)

// Job type constants for cleanup jobs
const (
	JobTypeCleanupFinishedJobs = "cleanup:finished_jobs"
)

// DefaultJobRetention is how long completed and failed jobs are kept.
const DefaultJobRetention = 7 * 24 * time.Hour

// CleanupFinishedJobsPayload represents the payload for a job cleanup job
type CleanupFinishedJobsPayload struct {
	Retention time.Duration `json:"retention"`
}

// EnqueueCleanupFinishedJobs enqueues a job that deletes finished jobs
// older than retention. The worker calls it on a schedule.
func EnqueueCleanupFinishedJobs(ctx context.Context, q repository.Querier, retention time.Duration) error {
	if retention <= 0 {
		retention = DefaultJobRetention
	}

	payloadJSON, err := json.Marshal(CleanupFinishedJobsPayload{Retention: retention})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = q.EnqueueJob(ctx, repository.EnqueueJobParams{
		JobType:     JobTypeCleanupFinishedJobs,
		Payload:     payloadJSON,
		MaxAttempts: 1, // runs again on the next schedule
		RunAt: pgtype.Timestamptz{
			Time:  time.Now(),
			Valid: true,
		},
	})

	return err
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	JobsDeleted int64 `json:"jobs_deleted"`
}

// ProcessCleanupJob processes a cleanup job based on its type
func ProcessCleanupJob(ctx context.Context, job *repository.Job, q repository.Querier, now time.Time) (*CleanupResult, error) {
	switch job.JobType {
	case JobTypeCleanupFinishedJobs:
		var payload CleanupFinishedJobsPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cleanup payload: %w", err)
		}
		if payload.Retention <= 0 {
			payload.Retention = DefaultJobRetention
		}

		deleted, err := q.DeleteFinishedJobs(ctx, pgtype.Timestamptz{
			Time:  now.Add(-payload.Retention),
			Valid: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to delete finished jobs: %w", err)
		}
		return &CleanupResult{JobsDeleted: deleted}, nil
	default:
		return nil, fmt.Errorf("unknown cleanup job type: %s", job.JobType)
	}
}

// IsCleanupJob checks if a job type is a cleanup job
func IsCleanupJob(jobType string) bool {
	return jobType == JobTypeCleanupFinishedJobs
}
