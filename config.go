// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nandprog

import (
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-nandprog/internal/frame"
)

// Default protocol tuning
const (
	// DefaultWriteChunkSize is the largest payload a WriteData frame can carry.
	DefaultWriteChunkSize = frame.MaxChunkLen
	// DefaultBlockSize is a 128 KiB NAND erase block (64 pages of 2 KiB).
	DefaultBlockSize = 0x20000
	// DefaultFillByte is the erased state of NAND cells, used for regions of
	// a read that the device skipped as bad.
	DefaultFillByte = 0xFF
)

// WritePacing controls how WriteData chunks are spaced out so the
// programmer's receive buffer is never overrun.
type WritePacing struct {
	// Delay is waited before every chunk after the first.
	Delay time.Duration
	// AwaitAck makes every chunk wait for the device's status response. When
	// false, chunks go out Delay apart and device failures surface in the
	// response to WriteEnd.
	AwaitAck bool
}

// Config contains configuration options for the Programmer
type Config struct {
	// Retry configures how Connect retries opening the transport
	Retry *RetryConfig
	// Scheduler runs delayed continuations for write pacing
	Scheduler Scheduler
	// Progress, if set, is called on the event loop after every unit of work
	Progress ProgressFunc
	// WritePacing spaces out write chunks
	WritePacing WritePacing
	// EraseUnitSize is the granularity of erase status frames. Zero means the
	// device sends any number of BadBlock frames followed by one final
	// status; otherwise it sends exactly one status per unit in the range.
	EraseUnitSize uint32
	// BlockSize is the size of the region a BadBlock frame covers during a
	// read. Zero means a bad block makes the rest of the read unreadable.
	BlockSize uint32
	// WriteChunkSize is the payload size of each WriteData frame (1-255)
	WriteChunkSize int
	// FillByte fills the parts of a read buffer the device skipped as bad
	FillByte byte
}

// DefaultConfig returns default programmer configuration
func DefaultConfig() *Config {
	return &Config{
		Retry:          DefaultConnectRetryConfig(),
		Scheduler:      TimerScheduler{},
		WritePacing:    WritePacing{AwaitAck: true},
		BlockSize:      DefaultBlockSize,
		WriteChunkSize: DefaultWriteChunkSize,
		FillByte:       DefaultFillByte,
	}
}

// Option represents a functional option for New
type Option func(*Programmer) error

// WithConfig replaces the whole configuration. Nil fields fall back to the
// defaults.
func WithConfig(cfg *Config) Option {
	return func(p *Programmer) error {
		if cfg == nil {
			return errors.New("config cannot be nil")
		}
		c := *cfg
		if c.Retry == nil {
			c.Retry = DefaultConnectRetryConfig()
		}
		if c.Scheduler == nil {
			c.Scheduler = TimerScheduler{}
		}
		if c.WriteChunkSize < 1 || c.WriteChunkSize > frame.MaxChunkLen {
			return fmt.Errorf("write chunk size must be 1-%d, got %d", frame.MaxChunkLen, c.WriteChunkSize)
		}
		p.config = &c
		return nil
	}
}

// WithWriteChunkSize sets the payload size of each WriteData frame
func WithWriteChunkSize(size int) Option {
	return func(p *Programmer) error {
		if size < 1 || size > frame.MaxChunkLen {
			return fmt.Errorf("write chunk size must be 1-%d, got %d", frame.MaxChunkLen, size)
		}
		p.config.WriteChunkSize = size
		return nil
	}
}

// WithWritePacing sets how write chunks are spaced out
func WithWritePacing(pacing WritePacing) Option {
	return func(p *Programmer) error {
		if pacing.Delay < 0 {
			return fmt.Errorf("write pacing delay must not be negative, got %v", pacing.Delay)
		}
		p.config.WritePacing = pacing
		return nil
	}
}

// WithEraseUnitSize sets the granularity of erase status frames
func WithEraseUnitSize(size uint32) Option {
	return func(p *Programmer) error {
		p.config.EraseUnitSize = size
		return nil
	}
}

// WithBlockSize sets the region size a bad block covers during reads
func WithBlockSize(size uint32) Option {
	return func(p *Programmer) error {
		p.config.BlockSize = size
		return nil
	}
}

// WithFillByte sets the value written over skipped bad regions of a read
func WithFillByte(b byte) Option {
	return func(p *Programmer) error {
		p.config.FillByte = b
		return nil
	}
}

// WithScheduler sets the delay-then-resume primitive used for write pacing
func WithScheduler(s Scheduler) Option {
	return func(p *Programmer) error {
		if s == nil {
			return errors.New("scheduler cannot be nil")
		}
		p.config.Scheduler = s
		return nil
	}
}

// WithProgress sets a progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(p *Programmer) error {
		p.config.Progress = fn
		return nil
	}
}

// WithRetryConfig sets how Connect retries opening the transport
func WithRetryConfig(cfg *RetryConfig) Option {
	return func(p *Programmer) error {
		if cfg == nil {
			return errors.New("retry config cannot be nil")
		}
		p.config.Retry = cfg
		return nil
	}
}
