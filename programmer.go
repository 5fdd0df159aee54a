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

// Package nandprog is a host driver for serial NAND flash programmers. It
// identifies, selects, erases, reads and writes chips over a point-to-point
// byte stream using the programmer's binary command protocol.
package nandprog

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-nandprog/internal/frame"
	"github.com/ZaparooProject/go-nandprog/internal/syncutil"
)

// Programmer drives a NAND programmer over a Transport.
//
// Every operation is asynchronous: the call validates its arguments, starts
// the exchange and returns. The result is delivered exactly once through the
// operation's callback, which runs on the programmer's event loop goroutine.
// Only one operation may be in flight at a time; a second call returns
// ErrBusy and its callback is never invoked. Callbacks may start the next
// operation.
type Programmer struct {
	factory   TransportFactory
	config    *Config
	transport Transport
	loop      *eventLoop
	active    session
	mu        syncutil.Mutex
	state     ConnState
}

// New creates a Programmer that opens its transport through factory.
func New(factory TransportFactory, opts ...Option) (*Programmer, error) {
	if factory == nil {
		return nil, errors.New("transport factory cannot be nil")
	}

	p := &Programmer{
		factory: factory,
		config:  DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return p, nil
}

// Config returns a copy of the programmer's configuration.
func (p *Programmer) Config() Config {
	return *p.config
}

// Connect opens the transport, retrying transient failures.
func (p *Programmer) Connect() error {
	return p.ConnectContext(context.Background())
}

// ConnectContext opens the transport, retrying transient failures until ctx
// is done.
func (p *Programmer) ConnectContext(ctx context.Context) error {
	if p.IsConnected() {
		return ErrAlreadyConnected
	}

	var t Transport
	err := RetryWithConfig(ctx, p.config.Retry, func() error {
		var err error
		t, err = p.factory()
		return err
	})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Connected {
		_ = t.Close()
		return ErrAlreadyConnected
	}
	p.transport = t
	p.loop = newEventLoop()
	p.state = Connected
	Debugln("programmer connected")
	return nil
}

// Disconnect closes the transport. An operation in flight fails with a
// TransportError wrapping ErrDisconnected; completions that arrive later are
// discarded. Disconnecting an idle or closed programmer is a no-op.
func (p *Programmer) Disconnect() error {
	p.mu.Lock()
	if p.state != Connected {
		p.mu.Unlock()
		return nil
	}
	s := p.active
	t := p.transport
	loop := p.loop
	p.active = nil
	p.transport = nil
	p.loop = nil
	p.state = Disconnected
	p.mu.Unlock()

	err := t.Close()
	if s != nil {
		Debugf("%s aborted by disconnect", s.base().op)
		loop.post(func() {
			s.abort(s.base().trace.wrap(NewTransportError(s.base().op.String(), "", ErrDisconnected, ErrorTypePermanent)))
		})
	}
	loop.stop()
	Debugln("programmer disconnected")

	if err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

// IsConnected returns true if the transport is open.
func (p *Programmer) IsConnected() bool {
	return p.State() == Connected
}

// State returns the connection state.
func (p *Programmer) State() ConnState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Busy reports whether an operation is in flight.
func (p *Programmer) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != nil
}

// begin installs s as the active session and schedules run on the event loop.
// Running the first step from the loop keeps callbacks from firing before the
// public call has returned.
func (p *Programmer) begin(s session, run func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Connected {
		return ErrNotConnected
	}
	if p.active != nil {
		return fmt.Errorf("%w: %s in progress", ErrBusy, p.active.base().op)
	}

	b := s.base()
	b.transport = p.transport
	b.loop = p.loop
	b.trace = newTraceBuffer(b.op.String(), traceDepth)
	p.active = s

	b.loop.post(func() {
		if p.isActive(s) {
			run()
		}
	})
	return nil
}

func (p *Programmer) isActive(s session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active == s
}

// release clears s if it is still the active session. Exactly one caller
// wins, which is what guarantees a single callback per operation.
func (p *Programmer) release(s session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != s {
		return false
	}
	p.active = nil
	return true
}

// resume runs f on the event loop if s is still the active session.
func (p *Programmer) resume(s session, f func()) {
	s.base().loop.post(func() {
		if p.isActive(s) {
			f()
		}
	})
}

// complete ends s successfully. deliver invokes the user callback.
func (p *Programmer) complete(s session, deliver func()) {
	if !p.release(s) {
		return
	}
	Debugf("%s complete", s.base().op)
	deliver()
}

// fail ends s with err, attaching the session's wire trace.
func (p *Programmer) fail(s session, err error) {
	if !p.release(s) {
		return
	}
	b := s.base()
	Debugf("%s failed: %v", b.op, err)
	s.abort(b.trace.wrap(err))
}

func (p *Programmer) failDevice(s session) {
	b := s.base()
	p.fail(s, &DeviceError{Op: b.op.String(), Command: b.cmd})
}

func (p *Programmer) failUnexpected(s session, reason string) {
	b := s.base()
	p.fail(s, &ProtocolError{Op: b.op.String(), Command: b.cmd, Err: ErrUnexpectedResponse, Detail: reason})
}

func (p *Programmer) failMalformed(s session, detail string) {
	b := s.base()
	p.fail(s, &ProtocolError{Op: b.op.String(), Command: b.cmd, Err: ErrMalformedResponse, Detail: detail})
}

// report sends a progress update if a ProgressFunc is configured.
func (p *Programmer) report(op Operation, done, total uint32) {
	if p.config.Progress != nil {
		p.config.Progress(Progress{Op: op, Done: done, Total: total})
	}
}

// sendFrame transmits cmd and calls next once the whole frame is written.
func (p *Programmer) sendFrame(s session, cmd frame.Command, next func()) {
	b := s.base()
	data := frame.Encode(cmd)
	b.cmd = cmd.Code()
	b.trace.recordTX(data, frame.CommandName(b.cmd))
	Debugf("TX %s: %s", frame.CommandName(b.cmd), formatHexBytes(data))

	b.transport.Send(data, func(n int, err error) {
		p.resume(s, func() {
			if err != nil {
				p.fail(s, transportFailure("send", ErrTransportWrite, err))
				return
			}
			if n != len(data) {
				p.fail(s, NewTransportError("send", "",
					fmt.Errorf("%w: wrote %d of %d bytes", ErrShortTransfer, n, len(data)), ErrorTypePermanent))
				return
			}
			next()
		})
	})
}

// receive reads exactly n bytes and passes them to next.
func (p *Programmer) receive(s session, n int, next func([]byte)) {
	b := s.base()
	b.transport.Receive(n, func(data []byte, err error) {
		p.resume(s, func() {
			if len(data) > 0 {
				b.trace.recordRX(data, "")
			}
			if err != nil {
				p.fail(s, transportFailure("receive", ErrTransportRead, err))
				return
			}
			if len(data) != n {
				p.fail(s, NewTransportError("receive", "",
					fmt.Errorf("%w: read %d of %d bytes", ErrShortTransfer, len(data), n), ErrorTypePermanent))
				return
			}
			next(data)
		})
	})
}

// dataLenFunc returns the payload length of a data response given its info
// byte. A nil dataLenFunc means the outstanding command never produces data.
type dataLenFunc func(info byte) (int, error)

func fixedDataLen(n int) dataLenFunc {
	return func(byte) (int, error) { return n, nil }
}

// awaitResponse reads one response to the outstanding command, classifies it
// and passes the classification to next. Malformed and unexpected responses
// end the session here, so next only sees outcomes the command can produce.
func (p *Programmer) awaitResponse(s session, dataLen dataLenFunc, next func(frame.Classification)) {
	b := s.base()
	p.receive(s, frame.HeaderLen, func(head []byte) {
		kind, info, err := frame.ParseHeader(head)
		if err != nil {
			p.failMalformed(s, err.Error())
			return
		}

		n := 0
		if kind == frame.RespData && dataLen != nil {
			if n, err = dataLen(info); err != nil {
				p.failMalformed(s, err.Error())
				return
			}
		}

		classify := func(raw []byte) {
			hdr, _, err := frame.DecodeResponse(raw, n)
			if err != nil {
				p.failMalformed(s, err.Error())
				return
			}
			c := frame.Classify(hdr, b.cmd)
			Debugf("RX %s: %s", c.Outcome, formatHexBytes(raw))
			if c.Outcome == frame.OutcomeUnexpected {
				p.failUnexpected(s, c.Reason)
				return
			}
			next(c)
		}

		trailer := frame.TrailerLen(kind, info, n)
		if trailer == 0 {
			classify(head)
			return
		}
		p.receive(s, trailer, func(rest []byte) {
			raw := make([]byte, 0, len(head)+len(rest))
			raw = append(raw, head...)
			classify(append(raw, rest...))
		})
	})
}

// transportFailure wraps a raw transport error as a TransportError, keeping
// one the transport already built.
func transportFailure(op string, sentinel, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return NewTransportError(op, "", fmt.Errorf("%w: %w", sentinel, err), GetErrorType(err))
}
