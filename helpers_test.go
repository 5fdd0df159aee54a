// go-nandprog
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-nandprog.
//
// go-nandprog is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-nandprog is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-nandprog; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package nandprog

import (
	"sync"
	"testing"
	"time"

	virt "github.com/ZaparooProject/go-nandprog/internal/testing"
	"github.com/stretchr/testify/require"
)

// callbackTimeout bounds how long a test waits for an operation callback.
const callbackTimeout = 5 * time.Second

// simRig is a connected programmer talking to a simulated NAND device.
type simRig struct {
	p    *Programmer
	nand *virt.VirtualNAND
	sim  *virt.SimulatorTransport
}

// newSimRig connects a programmer to a fresh simulator built from cfg.
func newSimRig(t *testing.T, cfg virt.NANDConfig, opts ...Option) *simRig {
	t.Helper()

	nand := virt.NewVirtualNAND(cfg)
	sim := virt.NewSimulatorTransport(nand)
	p, err := New(func() (Transport, error) { return sim, nil }, opts...)
	require.NoError(t, err)
	require.NoError(t, p.Connect())
	t.Cleanup(func() { _ = p.Disconnect() })

	return &simRig{p: p, nand: nand, sim: sim}
}

// pattern returns n bytes that never repeat within a 251-byte window, so
// misplaced chunks show up in comparisons.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

// once collects the results delivered to an operation callback and fails
// the test if more than one arrives.
type once[T any] struct {
	ch    chan T
	mu    sync.Mutex
	calls int
}

func newOnce[T any]() *once[T] {
	return &once[T]{ch: make(chan T, 4)}
}

func (o *once[T]) done(v T) {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()
	o.ch <- v
}

// wait returns the first result and checks that no second one follows.
func (o *once[T]) wait(t *testing.T) T {
	t.Helper()

	var v T
	select {
	case v = <-o.ch:
	case <-time.After(callbackTimeout):
		t.Fatal("callback never invoked")
	}

	select {
	case <-o.ch:
		t.Fatal("callback invoked more than once")
	case <-time.After(20 * time.Millisecond):
	}
	return v
}

func (o *once[T]) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

// manualScheduler records pacing delays and runs continuations only when
// fired.
type manualScheduler struct {
	pending []func()
	delays  []time.Duration
	mu      sync.Mutex
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.pending = append(s.pending, f)
}

// fire runs every pending continuation and returns how many ran.
func (s *manualScheduler) fire() int {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, f := range pending {
		f()
	}
	return len(pending)
}

func (s *manualScheduler) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.delays))
	copy(out, s.delays)
	return out
}

// immediateScheduler runs continuations at once, for fast tests.
type immediateScheduler struct{}

func (immediateScheduler) AfterFunc(_ time.Duration, f func()) { f() }
