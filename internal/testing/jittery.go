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
	"io"
	"math/rand/v2"
	"time"
)

// readChunk is how much is pulled from the backend at a time. It is larger
// than any response frame so a whole Read data frame can be buffered.
const readChunk = 1024

// usbPacket is the full-speed USB bulk packet size serial bridges split on.
const usbPacket = 64

// JitterConfig configures the behavior of JitteryLink.
type JitterConfig struct {
	MaxLatencyMs      int
	FragmentMinBytes  int
	StallAfterBytes   int
	StallDuration     time.Duration
	Seed              uint64
	FragmentReads     bool
	USBBoundaryStress bool
}

// DefaultJitterConfig returns a configuration with small delays and
// single-byte fragmentation allowed.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		MaxLatencyMs:     20,
		FragmentReads:    true,
		FragmentMinBytes: 1,
	}
}

// JitteryLink wraps an io.ReadWriter to behave like a USB-UART bridge (CH340,
// FTDI) in front of the programmer: reads arrive late and in arbitrary
// fragments. Data from the backend is buffered so fragmentation never loses
// bytes.
//
// Use it to check that a transport reassembles responses split at any byte.
type JitteryLink struct {
	backend        io.ReadWriter
	rng            *rand.Rand
	pending        []byte
	config         JitterConfig
	delivered      int
	stallTriggered bool
}

// NewJitteryLink wraps backend with jitter simulation.
func NewJitteryLink(backend io.ReadWriter, config JitterConfig) *JitteryLink {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // Test code, not crypto
	}
	if config.FragmentMinBytes < 1 {
		config.FragmentMinBytes = 1
	}

	return &JitteryLink{
		backend: backend,
		config:  config,
		rng:     rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)), //nolint:gosec // Test code, not crypto
		pending: make([]byte, 0, readChunk),
	}
}

// Write passes writes through to the backend without modification.
// Jitter only affects reads, which is where serial bridges reorder timing.
func (j *JitteryLink) Write(data []byte) (int, error) {
	return j.backend.Write(data) //nolint:wrapcheck // Pass-through wrapper
}

// Read returns at most one fragment of buffered backend data.
func (j *JitteryLink) Read(buf []byte) (int, error) {
	j.sleepLatency()

	if len(j.pending) == 0 {
		tmp := make([]byte, readChunk)
		n, err := j.backend.Read(tmp)
		if err != nil {
			return 0, err //nolint:wrapcheck // Pass-through wrapper
		}
		if n == 0 {
			return 0, nil
		}
		j.pending = append(j.pending, tmp[:n]...)
	}

	n := j.fragmentLen(min(len(j.pending), len(buf)))
	copy(buf, j.pending[:n])
	j.pending = j.pending[n:]
	j.delivered += n
	return n, nil
}

func (j *JitteryLink) sleepLatency() {
	if j.config.MaxLatencyMs <= 0 {
		return
	}
	if delay := time.Duration(j.rng.IntN(j.config.MaxLatencyMs+1)) * time.Millisecond; delay > 0 {
		time.Sleep(delay)
	}
}

// fragmentLen picks how many of the n available bytes this read returns.
func (j *JitteryLink) fragmentLen(n int) int {
	// Stall once StallAfterBytes have gone through, never crossing it
	if limit := j.config.StallAfterBytes; limit > 0 && !j.stallTriggered {
		if j.delivered >= limit {
			j.stallTriggered = true
			time.Sleep(j.config.StallDuration)
		} else {
			n = min(n, limit-j.delivered)
		}
	}

	if j.config.USBBoundaryStress && n > 0 {
		untilBoundary := usbPacket - j.delivered%usbPacket
		n = min(n, untilBoundary)
	}

	if j.config.FragmentReads && n > j.config.FragmentMinBytes {
		lo := j.config.FragmentMinBytes
		n = lo + j.rng.IntN(n-lo+1)
	}
	return n
}

// ResetStallState re-arms the stall.
func (j *JitteryLink) ResetStallState() {
	j.delivered = 0
	j.stallTriggered = false
}

// ClearBuffer drops buffered data that has not been read yet.
func (j *JitteryLink) ClearBuffer() {
	j.pending = j.pending[:0]
}
