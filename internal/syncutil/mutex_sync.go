//go:build !deadlock

// Package syncutil provides the mutex used throughout the driver. Builds with
// -tags=deadlock swap in github.com/sasha-s/go-deadlock so lock-order bugs
// between the event loop, transport workers and callers are reported.
package syncutil

import "sync"

// Mutex wraps sync.Mutex.
//
//nolint:gocritic // embedding exposes Lock and Unlock
type Mutex struct {
	sync.Mutex
}
