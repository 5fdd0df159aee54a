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

// Package uart implements the programmer transport over a serial port.
package uart

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-nandprog"
	"github.com/ZaparooProject/go-nandprog/internal/syncutil"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the programmer firmware's fixed line rate.
	DefaultBaudRate = 115200
	// DefaultReadTimeout bounds the wait for one response. Erasing a large
	// range produces no output until the device is done.
	DefaultReadTimeout = 5 * time.Second

	// idleBackoff is slept when a read returns nothing so a port without
	// a read timeout does not spin.
	idleBackoff = time.Millisecond
	// jobQueue is deep enough for the one outstanding request the
	// programmer issues, plus slack for a racing Close.
	jobQueue = 4
)

// Config configures the serial link.
type Config struct {
	// BaudRate of the port, 8N1.
	BaudRate int
	// ReadTimeout is the longest Receive waits for its bytes.
	ReadTimeout time.Duration
}

// DefaultConfig returns 115200 8N1 with DefaultReadTimeout.
func DefaultConfig() Config {
	return Config{
		BaudRate:    DefaultBaudRate,
		ReadTimeout: DefaultReadTimeout,
	}
}

// Transport implements nandprog.Transport over a serial port. Requests are
// served in order by a single worker goroutine; completions are called from
// that goroutine.
type Transport struct {
	port     serial.Port
	jobs     chan func(closed bool)
	done     chan struct{}
	portName string
	config   Config
	wg       sync.WaitGroup
	mu       syncutil.Mutex // serializes enqueue against Close
	closed   atomic.Bool
}

// isWindows returns true if running on Windows
func isWindows() bool {
	return runtime.GOOS == "windows"
}

// pollTimeout is the port's read timeout, the granularity at which a
// waiting Receive notices Close. Windows drivers need a longer one.
func pollTimeout() time.Duration {
	if isWindows() {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// New opens portName with cfg. Zero fields of cfg take their defaults.
func New(portName string, cfg Config) (*Transport, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, openError(portName, err)
	}

	if err := port.SetReadTimeout(pollTimeout()); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	// Discard anything a previous session left unread
	if err := port.ResetInputBuffer(); err != nil {
		nandprog.Debugf("UART %s: reset input buffer: %v", portName, err)
	}

	nandprog.Debugf("UART %s opened at %d baud", portName, cfg.BaudRate)
	return newTransport(port, portName, cfg), nil
}

// Factory returns a TransportFactory that opens portName with cfg.
func Factory(portName string, cfg Config) nandprog.TransportFactory {
	return func() (nandprog.Transport, error) {
		t, err := New(portName, cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

func newTransport(port serial.Port, portName string, cfg Config) *Transport {
	t := &Transport{
		port:     port,
		portName: portName,
		config:   cfg,
		jobs:     make(chan func(closed bool), jobQueue),
		done:     make(chan struct{}),
	}
	t.wg.Add(1)
	go t.worker()
	return t
}

// openError classifies a failure to open the port. A busy port is worth
// retrying, since USB devices are often held briefly after enumeration.
func openError(portName string, err error) error {
	var pe *serial.PortError
	if errors.As(err, &pe) {
		switch pe.Code() {
		case serial.PortBusy:
			return nandprog.NewTransportError("open", portName, err, nandprog.ErrorTypeTransient)
		case serial.PortNotFound, serial.InvalidSerialPort, serial.PermissionDenied:
			return nandprog.NewTransportError("open", portName, err, nandprog.ErrorTypePermanent)
		}
	}
	return nandprog.NewTransportError("open", portName, err, nandprog.GetErrorType(err))
}

func (t *Transport) worker() {
	defer t.wg.Done()
	for {
		select {
		case job := <-t.jobs:
			job(false)
		case <-t.done:
			// Fail whatever was queued before Close
			for {
				select {
				case job := <-t.jobs:
					job(true)
				default:
					return
				}
			}
		}
	}
}

// enqueue hands job to the worker, or runs it as closed if the transport is
// already closed.
func (t *Transport) enqueue(job func(closed bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		go job(true)
		return
	}
	t.jobs <- job
}

func (t *Transport) closedError(op string) error {
	return nandprog.NewTransportError(op, t.portName, nandprog.ErrTransportClosed, nandprog.ErrorTypePermanent)
}

// Send writes data to the port.
func (t *Transport) Send(data []byte, done func(n int, err error)) {
	t.enqueue(func(closed bool) {
		if closed {
			done(0, t.closedError("send"))
			return
		}
		n, err := t.write(data)
		done(n, err)
	})
}

func (t *Transport) write(data []byte) (int, error) {
	written := 0
	for written < len(data) {
		n, err := t.port.Write(data[written:])
		written += n
		if err != nil {
			if isInterruptedSystemCall(err) {
				continue
			}
			return written, t.ioError("send", nandprog.ErrTransportWrite, err)
		}
		if n == 0 {
			return written, nandprog.NewTransportError("send", t.portName, nandprog.ErrShortTransfer, nandprog.ErrorTypePermanent)
		}
	}
	return written, nil
}

// Receive reads exactly n bytes, waiting at most the configured ReadTimeout.
func (t *Transport) Receive(n int, done func(data []byte, err error)) {
	t.enqueue(func(closed bool) {
		if closed {
			done(nil, t.closedError("receive"))
			return
		}
		data, err := t.readFull(n)
		done(data, err)
	})
}

func (t *Transport) readFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	deadline := time.Now().Add(t.config.ReadTimeout)

	for got < n {
		m, err := t.port.Read(buf[got:])
		got += m
		if err != nil {
			if isInterruptedSystemCall(err) {
				continue
			}
			if t.isClosed() {
				return buf[:got], t.closedError("receive")
			}
			return buf[:got], t.ioError("receive", nandprog.ErrTransportRead, err)
		}
		if got >= n {
			break
		}
		if t.isClosed() {
			return buf[:got], t.closedError("receive")
		}
		if time.Now().After(deadline) {
			nandprog.Debugf("UART %s: timeout with %d of %d bytes", t.portName, got, n)
			return buf[:got], nandprog.NewTimeoutError("receive", t.portName)
		}
		if m == 0 {
			time.Sleep(idleBackoff)
		}
	}
	return buf, nil
}

func (t *Transport) ioError(op string, sentinel, err error) error {
	errType := nandprog.ErrorTypeTransient
	if nandprog.IsDeviceGone(err) {
		errType = nandprog.ErrorTypePermanent
	}
	return nandprog.NewTransportError(op, t.portName, fmt.Errorf("%w: %w", sentinel, err), errType)
}

func (t *Transport) isClosed() bool {
	return t.closed.Load()
}

// Close closes the port. Queued and in-progress requests fail with
// ErrTransportClosed. Close waits for the worker, so it must not be called
// from a completion.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		return nil
	}
	t.closed.Store(true)
	close(t.done)
	t.mu.Unlock()

	// Closing the port unblocks a pending Read
	err := t.port.Close()
	t.wg.Wait()
	if err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// IsConnected returns true until Close is called.
func (t *Transport) IsConnected() bool {
	return !t.isClosed()
}

// PortName returns the name the port was opened with.
func (t *Transport) PortName() string {
	return t.portName
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}
