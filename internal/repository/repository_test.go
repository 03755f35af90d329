package repository

import (
	"context"
	"path/filepath"
	"testing"

	"site-analytics/pkg/database"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.SQLiteDB {
	t.Helper()

	db, err := database.NewSQLiteDB(context.Background(), filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func int64Ptr(v int64) *int64 {
	return &v
}
