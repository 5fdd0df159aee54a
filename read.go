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

// ReadResult is the outcome of ReadChip. A read that ran into bad blocks
// still succeeds; the skipped regions of the buffer hold the fill byte and
// their block addresses are listed here.
type ReadResult struct {
	Err       error
	BadBlocks []uint32
}

// HasBadBlocks reports whether part of the range could not be read.
func (r ReadResult) HasBadBlocks() bool {
	return len(r.BadBlocks) > 0
}

type readSession struct {
	cb        func(ReadResult)
	buf       []byte
	badBlocks []uint32
	sessionBase
	addr   uint32
	length uint32
	pos    uint32 // bytes of buf filled so far
}

func (s *readSession) abort(err error) {
	s.cb(ReadResult{Err: err, BadBlocks: s.badBlocks})
}

func (s *readSession) remaining() uint32 {
	return s.length - s.pos
}

// ReadChip reads length bytes starting at addr into buf[:length].
func (p *Programmer) ReadChip(buf []byte, addr, length uint32, cb func(ReadResult)) error {
	if cb == nil {
		return fmt.Errorf("%w: nil callback", ErrInvalidParameter)
	}
	if length == 0 {
		return fmt.Errorf("%w: zero read length", ErrInvalidParameter)
	}
	if uint64(len(buf)) < uint64(length) {
		return fmt.Errorf("%w: buffer of %d bytes is shorter than %d", ErrInvalidParameter, len(buf), length)
	}

	s := &readSession{
		sessionBase: sessionBase{op: OpRead},
		cb:          cb,
		buf:         buf[:length],
		addr:        addr,
		length:      length,
	}
	return p.begin(s, func() {
		p.sendFrame(s, frame.Read{Addr: addr, Len: length}, func() {
			p.awaitRead(s)
		})
	})
}

func (p *Programmer) awaitRead(s *readSession) {
	dataLen := func(info byte) (int, error) {
		if info == 0 || uint32(info) > s.remaining() {
			return 0, fmt.Errorf("data length %d with %d bytes outstanding", info, s.remaining())
		}
		return int(info), nil
	}

	p.awaitResponse(s, dataLen, func(c frame.Classification) {
		switch c.Outcome {
		case frame.OutcomeData:
			copy(s.buf[s.pos:], c.Payload)
			s.pos += uint32(len(c.Payload))
		case frame.OutcomeBadBlock:
			if !p.skipBadBlock(s, c.Addr) {
				return
			}
		case frame.OutcomeError:
			p.failDevice(s)
			return
		default:
			p.failUnexpected(s, fmt.Sprintf("%s status with %d bytes outstanding", c.Outcome, s.remaining()))
			return
		}

		p.report(OpRead, s.pos, s.length)
		if s.pos == s.length {
			result := ReadResult{BadBlocks: s.badBlocks}
			p.complete(s, func() { s.cb(result) })
			return
		}
		p.awaitRead(s)
	})
}

// skipBadBlock fills the rest of the block holding the current position,
// which the device will not send. It fails the session and returns false if
// the reported block does not hold that position.
func (p *Programmer) skipBadBlock(s *readSession, bad uint32) bool {
	cur := uint64(s.addr) + uint64(s.pos)
	end := uint64(s.addr) + uint64(s.length)

	if bs := uint64(p.config.BlockSize); bs > 0 {
		if uint64(bad)/bs != cur/bs {
			p.failUnexpected(s, fmt.Sprintf("bad block 0x%08X does not hold read position 0x%08X", bad, cur))
			return false
		}
		end = min(end, (cur/bs+1)*bs)
	}

	Debugf("read: bad block at 0x%08X, skipping %d bytes", bad, end-cur)
	s.badBlocks = append(s.badBlocks, bad)
	next := uint32(end - uint64(s.addr))
	for i := s.pos; i < next; i++ {
		s.buf[i] = p.config.FillByte
	}
	s.pos = next
	return true
}
