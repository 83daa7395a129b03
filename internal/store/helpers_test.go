package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

var testEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func update(t *testing.T, s *Store, fn func(*Tx) error) {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), fn))
}

func view(t *testing.T, s *Store, fn func(*Tx) error) {
	t.Helper()
	require.NoError(t, s.View(context.Background(), fn))
}

func testHandle(b byte) ir.Handle {
	return ir.Handle{0xfe, b}
}

func testCiv(id uint64, owner ir.Identity) ir.Civilization {
	return ir.Civilization{
		ID:          id,
		Owner:       owner,
		Resource:    testHandle(1),
		Tech:        testHandle(2),
		Military:    testHandle(3),
		Population:  testHandle(4),
		SubmittedAt: testEpoch.Add(time.Duration(id) * time.Second),
	}
}
