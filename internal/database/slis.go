package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/appclacks/sloworker/pkg/slo"
	"github.com/appclacks/sloworker/pkg/slo/aggregates"
	"github.com/jmoiron/sqlx"
)

const (
	ensureRowQuery = "INSERT INTO slis (url, successful_responses, fast_responses, total_responses) VALUES ($1, 0, 0, 0) ON CONFLICT (url) DO NOTHING"
	incrementQuery = "UPDATE slis SET successful_responses=successful_responses+$1, fast_responses=fast_responses+$2, total_responses=total_responses+1 WHERE url=$3"
)

func toIncrement(value bool) int {
	if value {
		return 1
	}
	return 0
}

func (c *Database) EnsureRow(ctx context.Context, url string) error {
	_, err := c.db.ExecContext(ctx, ensureRowQuery, url)
	if err != nil {
		return fmt.Errorf("%w: fail to create SLI row for %s: %w", slo.ErrStoreUnavailable, url, err)
	}
	return nil
}

// RecordOutcome increments the counters of an existing row. It is a no-op
// when no row exists for the url, EnsureRow must be called first.
func (c *Database) RecordOutcome(ctx context.Context, outcome aggregates.Outcome) error {
	return c.inTransaction(ctx, func(tx *sqlx.Tx) error {
		_, err := increment(ctx, tx, outcome)
		return err
	})
}

func (c *Database) RecordBatch(ctx context.Context, outcomes []aggregates.Outcome) error {
	return c.inTransaction(ctx, func(tx *sqlx.Tx) error {
		for _, outcome := range outcomes {
			_, err := tx.ExecContext(ctx, ensureRowQuery, outcome.URL)
			if err != nil {
				return fmt.Errorf("fail to create SLI row for %s: %w", outcome.URL, err)
			}
			result, err := increment(ctx, tx, outcome)
			if err != nil {
				return err
			}
			err = checkResult(result, 1)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func increment(ctx context.Context, tx *sqlx.Tx, outcome aggregates.Outcome) (sql.Result, error) {
	result, err := tx.ExecContext(ctx, incrementQuery, toIncrement(outcome.Successful), toIncrement(outcome.Fast), outcome.URL)
	if err != nil {
		return nil, fmt.Errorf("fail to update SLI row for %s: %w", outcome.URL, err)
	}
	return result, nil
}

// inTransaction runs fn in a transaction committed only if fn succeeds.
func (c *Database) inTransaction(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: fail to start transaction: %w", slo.ErrStoreUnavailable, err)
	}
	shouldRollback := true
	defer func() {
		if shouldRollback {
			err := tx.Rollback()
			if err != nil {
				c.Logger.Error(err.Error())
			}
		}
	}()
	err = fn(tx)
	if err != nil {
		return fmt.Errorf("%w: %w", slo.ErrStoreUnavailable, err)
	}
	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("%w: fail to commit: %w", slo.ErrStoreUnavailable, err)
	}
	shouldRollback = false
	return nil
}

func (c *Database) ListCounters(ctx context.Context) ([]aggregates.Counters, error) {
	counters := []aggregates.Counters{}
	err := c.db.SelectContext(ctx, &counters, "SELECT url, successful_responses, fast_responses, total_responses FROM slis")
	if err != nil {
		return nil, fmt.Errorf("%w: fail to list SLIs: %w", slo.ErrStoreUnavailable, err)
	}
	return counters, nil
}
