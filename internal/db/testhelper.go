package db

import (
	"path/filepath"
	"testing"
)

// OpenTestStore opens a migrated history store in t.TempDir() and closes it
// when the test ends.
func OpenTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "history.sqlite"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
