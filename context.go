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

import "context"

// awaitResult starts an operation and blocks until its callback fires or ctx
// is done. The protocol has no way to cancel an exchange, so cancellation
// disconnects; the aborted callback is still drained before returning.
// The blocking forms must not be called from an operation callback.
func awaitResult[T any](ctx context.Context, p *Programmer, start func(done func(T)) error) (T, error) {
	ch := make(chan T, 1)
	if err := start(func(r T) { ch <- r }); err != nil {
		var zero T
		return zero, err
	}

	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		_ = p.Disconnect()
		r := <-ch
		Debugf("operation cancelled: %v", ctx.Err())
		return r, ctx.Err()
	}
}

type chipIDResult struct {
	err error
	id  ChipID
}

// ReadChipIDContext is the blocking form of ReadChipID.
func (p *Programmer) ReadChipIDContext(ctx context.Context) (ChipID, error) {
	r, err := awaitResult(ctx, p, func(done func(chipIDResult)) error {
		return p.ReadChipID(func(id ChipID, err error) { done(chipIDResult{id: id, err: err}) })
	})
	if err != nil {
		return ChipID{}, err
	}
	return r.id, r.err
}

// SelectChipContext is the blocking form of SelectChip.
func (p *Programmer) SelectChipContext(ctx context.Context, chip uint32) error {
	r, err := awaitResult(ctx, p, func(done func(error)) error {
		return p.SelectChip(chip, done)
	})
	if err != nil {
		return err
	}
	return r
}

// EraseChipContext is the blocking form of EraseChip. It returns the bad
// blocks the device reported, also on error.
func (p *Programmer) EraseChipContext(ctx context.Context, addr, length uint32) ([]uint32, error) {
	r, err := awaitResult(ctx, p, func(done func(EraseResult)) error {
		return p.EraseChip(addr, length, done)
	})
	if err != nil {
		return r.BadBlocks, err
	}
	return r.BadBlocks, r.Err
}

// ReadChipContext is the blocking form of ReadChip. It returns the bad
// blocks that were skipped and filled.
func (p *Programmer) ReadChipContext(ctx context.Context, buf []byte, addr, length uint32) ([]uint32, error) {
	r, err := awaitResult(ctx, p, func(done func(ReadResult)) error {
		return p.ReadChip(buf, addr, length, done)
	})
	if err != nil {
		return r.BadBlocks, err
	}
	return r.BadBlocks, r.Err
}

// WriteChipContext is the blocking form of WriteChip. It returns the number
// of bytes written.
func (p *Programmer) WriteChipContext(ctx context.Context, buf []byte, addr, length uint32) (uint32, error) {
	r, err := awaitResult(ctx, p, func(done func(WriteResult)) error {
		return p.WriteChip(buf, addr, length, done)
	})
	if err != nil {
		return r.Written, err
	}
	return r.Written, r.Err
}
