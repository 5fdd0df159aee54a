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

package testing

import (
	"errors"
	"io"

	"github.com/ZaparooProject/go-nandprog/internal/frame"
	"github.com/ZaparooProject/go-nandprog/internal/syncutil"
)

// Errors returned by SimulatorTransport.
var (
	ErrSimulatorClosed  = errors.New("simulator transport closed")
	ErrSimulatorTimeout = errors.New("simulator transport: no response")
)

// SimulatorTransport implements the programmer's asynchronous Transport over
// any io.ReadWriter, typically a VirtualNAND. Completions are delivered from
// a new goroutine, like a real serial transport, unless Synchronous is set.
//
// It records every frame sent and can inject send and receive failures.
type SimulatorTransport struct {
	dev         io.ReadWriter
	sendErrs    map[int]error
	recvErrs    map[int]error
	sent        [][]byte
	held        []func()
	mu          syncutil.Mutex
	sends       int
	receives    int
	closed      bool
	hold        bool
	Synchronous bool
}

// NewSimulatorTransport creates a transport backed by dev.
func NewSimulatorTransport(dev io.ReadWriter) *SimulatorTransport {
	return &SimulatorTransport{
		dev:      dev,
		sendErrs: make(map[int]error),
		recvErrs: make(map[int]error),
	}
}

func (t *SimulatorTransport) deliver(f func()) {
	if t.Synchronous {
		f()
		return
	}
	go f()
}

// Send writes data to the device.
func (t *SimulatorTransport) Send(data []byte, done func(n int, err error)) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.deliver(func() { done(0, ErrSimulatorClosed) })
		return
	}
	t.sends++
	if err, ok := t.sendErrs[t.sends]; ok {
		t.mu.Unlock()
		t.deliver(func() { done(0, err) })
		return
	}
	t.sent = append(t.sent, append([]byte(nil), data...))
	t.mu.Unlock()

	n, err := t.dev.Write(data)
	t.deliver(func() { done(n, err) })
}

// Receive reads exactly n bytes of device output. The simulated device
// answers synchronously, so missing bytes mean it will never answer, and
// the request fails at once instead of timing out. In hold mode requests
// stay pending until Close.
func (t *SimulatorTransport) Receive(n int, done func(data []byte, err error)) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.deliver(func() { done(nil, ErrSimulatorClosed) })
		return
	}
	if t.hold {
		t.held = append(t.held, func() { done(nil, ErrSimulatorClosed) })
		t.mu.Unlock()
		return
	}
	t.receives++
	if err, ok := t.recvErrs[t.receives]; ok {
		t.mu.Unlock()
		t.deliver(func() { done(nil, err) })
		return
	}
	t.mu.Unlock()

	buf := make([]byte, n)
	got := 0
	for got < n {
		m, err := t.dev.Read(buf[got:])
		if err != nil {
			t.deliver(func() { done(buf[:got], err) })
			return
		}
		if m == 0 {
			t.deliver(func() { done(buf[:got], ErrSimulatorTimeout) })
			return
		}
		got += m
	}
	t.deliver(func() { done(buf, nil) })
}

// Close closes the transport and fails held receives.
func (t *SimulatorTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	held := t.held
	t.held = nil
	t.mu.Unlock()

	for _, f := range held {
		t.deliver(f)
	}
	return nil
}

// IsConnected returns whether the transport is open.
func (t *SimulatorTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// Hold makes subsequent receives wait until Close, like a device that has
// stopped answering.
func (t *SimulatorTransport) Hold() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hold = true
}

// FailSend makes the nth Send (counting from 1 over the transport's life)
// fail with err without reaching the device.
func (t *SimulatorTransport) FailSend(nth int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErrs[nth] = err
}

// FailReceive makes the nth Receive fail with err.
func (t *SimulatorTransport) FailReceive(nth int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recvErrs[nth] = err
}

// Sent returns a copy of every frame sent, in order.
func (t *SimulatorTransport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

// CountSent returns how many frames starting with command code were sent.
func (t *SimulatorTransport) CountSent(code byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, f := range t.sent {
		if len(f) > 0 && f[0] == code {
			count++
		}
	}
	return count
}

// ChunkLengths returns the payload length of every WriteData frame sent.
func (t *SimulatorTransport) ChunkLengths() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var lengths []int
	for _, f := range t.sent {
		if len(f) >= 2 && f[0] == frame.CmdWriteData {
			lengths = append(lengths, int(f[1]))
		}
	}
	return lengths
}
