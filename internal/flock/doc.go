// Package flock provides cross-platform advisory file locking primitives.
//
// The primitives here are non-blocking; the storage package layers blocking
// acquisition with timeout and context cancellation on top of them. One lock
// file per team serializes task mutations, another serializes inbox and
// config mutations.
//
// Usage:
//
//	file, _ := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
//	if err := flock.TryExclusive(file.Fd()); err != nil {
//	    // Lock not acquired - another process holds it
//	}
//	defer flock.Unlock(file.Fd())
package flock
