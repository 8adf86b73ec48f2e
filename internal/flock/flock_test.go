//go:build unix

package flock_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/crew/internal/flock"
)

func openLockFile(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 -- test code using safe temp dir
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestTryExclusive(t *testing.T) {
	t.Parallel()

	t.Run("acquires lock on new file", func(t *testing.T) {
		t.Parallel()
		f := openLockFile(t, filepath.Join(t.TempDir(), "test.lock"))

		require.NoError(t, flock.TryExclusive(f.Fd()))
		require.NoError(t, flock.Unlock(f.Fd()))
	})

	t.Run("fails when lock already held", func(t *testing.T) {
		t.Parallel()
		lockFile := filepath.Join(t.TempDir(), "test.lock")

		f1 := openLockFile(t, lockFile)
		require.NoError(t, flock.TryExclusive(f1.Fd()))
		defer func() { _ = flock.Unlock(f1.Fd()) }()

		f2 := openLockFile(t, lockFile)
		assert.Error(t, flock.TryExclusive(f2.Fd()))
	})

	t.Run("lock can be reacquired after unlock", func(t *testing.T) {
		t.Parallel()
		f := openLockFile(t, filepath.Join(t.TempDir(), "test.lock"))

		require.NoError(t, flock.TryExclusive(f.Fd()))
		require.NoError(t, flock.Unlock(f.Fd()))
		require.NoError(t, flock.TryExclusive(f.Fd()))
		require.NoError(t, flock.Unlock(f.Fd()))
	})
}
