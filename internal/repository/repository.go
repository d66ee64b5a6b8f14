package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrStaleState is returned by guarded updates when the row exists but is
// no longer in the state the update requires.
var ErrStaleState = errors.New("row not in expected state")

// uniqueViolation is the SQLSTATE of unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// staleIfDuplicate maps a unique index violation to ErrStaleState: the row
// another writer inserted first already holds the state being claimed.
func staleIfDuplicate(err error) error {
	if isUniqueViolation(err) {
		return ErrStaleState
	}
	return err
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// pageOffset normalizes page/limit and returns the SQL offset.
func pageOffset(page, limit int) (int, int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return page, limit, (page - 1) * limit
}
