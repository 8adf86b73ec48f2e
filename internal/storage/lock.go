package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	crewerrors "github.com/mrz1836/crew/internal/errors"
	"github.com/mrz1836/crew/internal/flock"
)

// LockTimeout is the maximum duration to wait for acquiring a file lock.
// Operations under lock are short local read-modify-write sequences, so a
// wait this long means another process is stuck, not busy.
const LockTimeout = 30 * time.Second

// lockRetryInterval is the poll interval between non-blocking lock attempts.
const lockRetryInterval = 25 * time.Millisecond

// WithLock runs fn while holding an exclusive advisory lock on the lock file
// at lockPath, creating the file if needed. The lock is released on every
// exit path, including a panic inside fn.
//
// Acquisition blocks by polling the non-blocking flock primitive, honoring
// context cancellation and LockTimeout. Not reentrant: callers must not nest
// WithLock on the same path within one logical operation.
func WithLock(ctx context.Context, lockPath string, fn func() error) error {
	f, err := acquireLock(ctx, lockPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = flock.Unlock(f.Fd())
		_ = f.Close()
	}()
	return fn()
}

// acquireLock opens the lock file and takes an exclusive lock on it.
func acquireLock(ctx context.Context, lockPath string) (*os.File, error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, filePerm) //#nosec G304 -- lock paths are constructed from validated team names
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(LockTimeout)
	for {
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		default:
		}

		if err := flock.TryExclusive(f.Fd()); err == nil {
			return f, nil
		}

		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("failed to acquire lock on %s: %w", lockPath, crewerrors.ErrLockTimeout)
		}

		time.Sleep(lockRetryInterval)
	}
}
