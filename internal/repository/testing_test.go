package repository

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *entsql.Driver {
	t.Helper()
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "eval.db")

	drv, _, err := Open(ctx, Config{DSN: dsn}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })

	require.NoError(t, Migrate(ctx, drv, discardLogger()))
	return drv
}
