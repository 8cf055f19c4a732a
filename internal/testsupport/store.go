package testsupport

import (
	"testing"

	"cspanlens/internal/config"
	"cspanlens/internal/runstore"
)

// MustOpenStore opens the run history for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runstore.Store {
	t.Helper()

	store, err := runstore.Open(cfg.RunDatabasePath())
	if err != nil {
		t.Fatalf("open run store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
