package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const jobColumns = `id, job_type, payload, status, attempts, max_attempts, run_at, last_error, created_at, completed_at`

func scanJob(row interface{ Scan(...any) error }) (Job, error) {
	var i Job
	err := row.Scan(
		&i.ID,
		&i.JobType,
		&i.Payload,
		&i.Status,
		&i.Attempts,
		&i.MaxAttempts,
		&i.RunAt,
		&i.LastError,
		&i.CreatedAt,
		&i.CompletedAt,
	)
	return i, err
}

const enqueueJob = `-- name: EnqueueJob :one
INSERT INTO jobs (job_type, payload, max_attempts, run_at)
VALUES ($1, $2, $3, COALESCE($4, now()))
RETURNING ` + jobColumns

type EnqueueJobParams struct {
	JobType     string
	Payload     []byte
	MaxAttempts int32
	RunAt       pgtype.Timestamptz
}

func (q *Queries) EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, enqueueJob, arg.JobType, arg.Payload, arg.MaxAttempts, arg.RunAt))
}

const claimNextJob = `-- name: ClaimNextJob :one
UPDATE jobs
SET status = 'running', attempts = attempts + 1
WHERE id = (
    SELECT id FROM jobs
    WHERE status = 'pending' AND run_at <= now()
    ORDER BY run_at
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING ` + jobColumns

// ClaimNextJob returns pgx.ErrNoRows when no job is ready.
func (q *Queries) ClaimNextJob(ctx context.Context) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, claimNextJob))
}

const completeJob = `-- name: CompleteJob :exec
UPDATE jobs SET status = 'completed', completed_at = now(), last_error = NULL WHERE id = $1
`

func (q *Queries) CompleteJob(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, completeJob, id)
	return err
}

const failJob = `-- name: FailJob :exec
UPDATE jobs
SET status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
    run_at = $3,
    last_error = $2
WHERE id = $1
`

type FailJobParams struct {
	ID        pgtype.UUID
	LastError pgtype.Text
	RetryAt   pgtype.Timestamptz
}

// FailJob puts the job back in the queue at RetryAt, or marks it failed
// once it has used all its attempts.
func (q *Queries) FailJob(ctx context.Context, arg FailJobParams) error {
	_, err := q.db.Exec(ctx, failJob, arg.ID, arg.LastError, arg.RetryAt)
	return err
}

const deleteFinishedJobs = `-- name: DeleteFinishedJobs :execrows
DELETE FROM jobs
WHERE status IN ('completed', 'failed') AND created_at < $1
`

func (q *Queries) DeleteFinishedJobs(ctx context.Context, before pgtype.Timestamptz) (int64, error) {
	result, err := q.db.Exec(ctx, deleteFinishedJobs, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
