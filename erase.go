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
	"fmt"

	"github.com/ZaparooProject/go-nandprog/internal/frame"
)

// EraseResult is the outcome of EraseChip. Bad blocks do not fail an erase;
// they are listed so the caller can avoid them.
type EraseResult struct {
	Err       error
	BadBlocks []uint32
}

// HasBadBlocks reports whether the device skipped any block.
func (r EraseResult) HasBadBlocks() bool {
	return len(r.BadBlocks) > 0
}

type eraseSession struct {
	cb        func(EraseResult)
	badBlocks []uint32
	sessionBase
	addr   uint32
	length uint32
	unit   uint32
	units  uint32 // status frames expected, zero if the device sends one final status
	seen   uint32
}

func (s *eraseSession) abort(err error) {
	s.cb(EraseResult{Err: err, BadBlocks: s.badBlocks})
}

// unitCount returns how many units of size unit overlap [addr, addr+length).
func unitCount(addr, length, unit uint32) uint32 {
	if unit == 0 || length == 0 {
		return 0
	}
	first := uint64(addr) / uint64(unit)
	last := (uint64(addr) + uint64(length) - 1) / uint64(unit)
	return uint32(last - first + 1)
}

// EraseChip erases length bytes starting at addr. The range is forwarded to
// the device as given; it reports out-of-range requests as errors.
func (p *Programmer) EraseChip(addr, length uint32, cb func(EraseResult)) error {
	if cb == nil {
		return fmt.Errorf("%w: nil callback", ErrInvalidParameter)
	}
	if length == 0 {
		return fmt.Errorf("%w: zero erase length", ErrInvalidParameter)
	}

	unit := p.config.EraseUnitSize
	s := &eraseSession{
		sessionBase: sessionBase{op: OpErase},
		cb:          cb,
		addr:        addr,
		length:      length,
		unit:        unit,
		units:       unitCount(addr, length, unit),
	}
	return p.begin(s, func() {
		p.sendFrame(s, frame.Erase{Addr: addr, Len: length}, func() {
			p.awaitErase(s)
		})
	})
}

func (p *Programmer) awaitErase(s *eraseSession) {
	p.awaitResponse(s, nil, func(c frame.Classification) {
		switch c.Outcome {
		case frame.OutcomeError:
			p.failDevice(s)
			return
		case frame.OutcomeBadBlock:
			Debugf("erase: bad block at 0x%08X", c.Addr)
			s.badBlocks = append(s.badBlocks, c.Addr)
			if s.units == 0 {
				// more statuses follow until the final Ok or Error
				p.awaitErase(s)
				return
			}
		case frame.OutcomeOK:
			if s.units == 0 {
				p.report(OpErase, s.length, s.length)
				p.finishErase(s)
				return
			}
		default:
			p.failUnexpected(s, fmt.Sprintf("%s response during erase", c.Outcome))
			return
		}

		s.seen++
		p.report(OpErase, s.erased(), s.length)
		if s.seen == s.units {
			p.finishErase(s)
			return
		}
		p.awaitErase(s)
	})
}

// erased returns how many bytes of the range the seen units cover.
func (s *eraseSession) erased() uint32 {
	end := (uint64(s.addr)/uint64(s.unit) + uint64(s.seen)) * uint64(s.unit)
	done := end - uint64(s.addr)
	if done > uint64(s.length) {
		return s.length
	}
	return uint32(done)
}

func (p *Programmer) finishErase(s *eraseSession) {
	result := EraseResult{BadBlocks: s.badBlocks}
	p.complete(s, func() { s.cb(result) })
}
