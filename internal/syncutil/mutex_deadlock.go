//go:build deadlock

// Package syncutil provides the mutex used throughout the driver. This file is
// compiled when building with -tags=deadlock.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex wraps deadlock.Mutex, which reports locks held past the detector's
// timeout and inconsistent lock ordering.
type Mutex struct {
	deadlock.Mutex
}
