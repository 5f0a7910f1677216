// Package dbtest opens throwaway in-memory stores for tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"api_pos/internal/config"
	"api_pos/internal/database"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

// Open returns a migrated in-memory store that is closed when t finishes.
func Open(t testing.TB, models ...any) *database.Store {
	t.Helper()

	cfg := config.DBConfig{
		Path:         "file:pos_" + uuid.NewString() + "?mode=memory&cache=shared",
		BusyTimeout:  time.Second,
		MaxOpenConns: 1,
	}
	store, err := database.Open(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if len(models) > 0 {
		if err := store.Migrate(models...); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	return store
}
