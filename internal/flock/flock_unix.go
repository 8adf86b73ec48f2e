//go:build unix

package flock

import "syscall"

// TryExclusive attempts to acquire an exclusive non-blocking lock on the
// file descriptor. Returns an error if another process holds the lock.
func TryExclusive(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_EX|syscall.LOCK_NB)
}

// Unlock releases the lock on the file descriptor.
func Unlock(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_UN)
}
