package runstore_test

import (
	"errors"
	"testing"

	"cspanlens/internal/runstore"
	"cspanlens/internal/testsupport"
)

func TestAcquireLockIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first, err := runstore.AcquireLock(cfg.LockPath())
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := runstore.AcquireLock(cfg.LockPath()); !errors.Is(err, runstore.ErrLocked) {
		t.Fatalf("second lock should fail with ErrLocked, got %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatal(err)
	}
	again, err := runstore.AcquireLock(cfg.LockPath())
	if err != nil {
		t.Fatalf("lock should be free after release: %v", err)
	}
	_ = again.Release()
	_ = again.Release()
}
