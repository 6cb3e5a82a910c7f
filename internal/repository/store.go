package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the persistence boundary used by services. ExecTx runs fn inside
// a single database transaction; fn must only use the Querier it is given.
type Store interface {
	Querier
	ExecTx(ctx context.Context, fn func(Querier) error) error
}

// PoolStore is the pgxpool-backed Store.
type PoolStore struct {
	*Queries
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *PoolStore {
	return &PoolStore{
		Queries: New(pool),
		pool:    pool,
	}
}

func (s *PoolStore) ExecTx(ctx context.Context, fn func(Querier) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("failed to rollback transaction: %w", rbErr))
			}
		}
	}()

	if err = fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks database connectivity for the health endpoint.
func (s *PoolStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
