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

// Transport is the asynchronous byte stream the programmer talks over.
// Implementations must invoke each completion exactly once and may do so from
// any goroutine, including synchronously from inside Send or Receive. The
// programmer never has more than one Send or Receive outstanding.
type Transport interface {
	// Send transmits data and reports how many bytes were written.
	Send(data []byte, done func(n int, err error))

	// Receive reads exactly n bytes. A short result must carry an error.
	Receive(n int, done func(data []byte, err error))

	// Close closes the link. Outstanding requests complete with an error.
	Close() error

	// IsConnected returns true if the link is open
	IsConnected() bool
}

// TransportFactory opens a fresh transport. Connect calls it, with retries.
type TransportFactory func() (Transport, error)

// ConnState is the connection state of a Programmer.
type ConnState int

const (
	// Disconnected means no transport is open.
	Disconnected ConnState = iota
	// Connected means a transport is open and operations are accepted.
	Connected
)

func (s ConnState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}
