package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/writing-eval/internal/common"
)

func execQuery(ctx context.Context, drv *entsql.Driver, q entsql.Querier) (sql.Result, error) {
	query, args := q.Query()
	return drv.DB().ExecContext(ctx, query, args...)
}

func queryRow(ctx context.Context, drv *entsql.Driver, q entsql.Querier) *sql.Row {
	query, args := q.Query()
	return drv.DB().QueryRowContext(ctx, query, args...)
}

func queryRows(ctx context.Context, drv *entsql.Driver, q entsql.Querier) (*sql.Rows, error) {
	query, args := q.Query()
	return drv.DB().QueryContext(ctx, query, args...)
}

// notFound maps sql.ErrNoRows to common.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	return err
}

func now() time.Time {
	return time.Now().UTC()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

type rowScanner interface {
	Scan(dest ...any) error
}
