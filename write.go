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

// WriteResult is the outcome of WriteChip. Written counts the bytes the
// device accepted (or, without per-chunk acknowledgements, the bytes sent).
// A bad block ends the write with a *BadBlockError so the caller can retry
// at another address.
type WriteResult struct {
	Err     error
	Written uint32
}

type writeSession struct {
	cb  func(WriteResult)
	src []byte
	sessionBase
	pacing WritePacing
	addr   uint32
	total  uint32
	offset uint32 // 0 <= offset <= total
	chunk  uint32
}

func (s *writeSession) abort(err error) {
	s.cb(WriteResult{Err: err, Written: s.offset})
}

// next returns the chunk starting at the current offset.
func (s *writeSession) next() []byte {
	n := min(s.chunk, s.total-s.offset)
	return s.src[s.offset : s.offset+n]
}

// advance moves the offset past an accepted chunk of n bytes.
func (s *writeSession) advance(n int) {
	if uint64(s.offset)+uint64(n) > uint64(s.total) {
		panic(fmt.Sprintf("nandprog: write offset %d+%d past total %d", s.offset, n, s.total))
	}
	s.offset += uint32(n)
}

// WriteChip programs buf[:length] starting at addr. Data is streamed in
// WriteData frames of the configured chunk size, paced by the configured
// WritePacing.
func (p *Programmer) WriteChip(buf []byte, addr, length uint32, cb func(WriteResult)) error {
	if cb == nil {
		return fmt.Errorf("%w: nil callback", ErrInvalidParameter)
	}
	if length == 0 {
		return fmt.Errorf("%w: zero write length", ErrInvalidParameter)
	}
	if uint64(len(buf)) < uint64(length) {
		return fmt.Errorf("%w: buffer of %d bytes is shorter than %d", ErrInvalidParameter, len(buf), length)
	}

	s := &writeSession{
		sessionBase: sessionBase{op: OpWrite},
		cb:          cb,
		src:         buf[:length],
		pacing:      p.config.WritePacing,
		addr:        addr,
		total:       length,
		chunk:       uint32(p.config.WriteChunkSize),
	}
	return p.begin(s, func() {
		p.sendFrame(s, frame.WriteStart{Addr: addr}, func() {
			p.awaitWriteStatus(s, func() { p.sendChunk(s) })
		})
	})
}

// awaitWriteStatus reads the status of the last write frame and calls next
// if it was Ok.
func (p *Programmer) awaitWriteStatus(s *writeSession, next func()) {
	p.awaitResponse(s, nil, func(c frame.Classification) {
		switch c.Outcome {
		case frame.OutcomeOK:
			next()
		case frame.OutcomeBadBlock:
			Debugf("write: bad block at 0x%08X after %d bytes", c.Addr, s.offset)
			p.fail(s, &BadBlockError{Op: s.op.String(), Addr: c.Addr})
		case frame.OutcomeError:
			p.failDevice(s)
		default:
			p.failUnexpected(s, fmt.Sprintf("%s response during write", c.Outcome))
		}
	})
}

func (p *Programmer) sendChunk(s *writeSession) {
	chunk := s.next()
	p.sendFrame(s, frame.WriteData{Data: chunk}, func() {
		accepted := func() {
			s.advance(len(chunk))
			p.report(OpWrite, s.offset, s.total)
			p.pace(s, func() { p.continueWrite(s) })
		}
		if !s.pacing.AwaitAck {
			accepted()
			return
		}
		p.awaitWriteStatus(s, accepted)
	})
}

func (p *Programmer) continueWrite(s *writeSession) {
	if s.offset < s.total {
		p.sendChunk(s)
		return
	}

	p.sendFrame(s, frame.WriteEnd{}, func() {
		p.awaitWriteStatus(s, func() {
			result := WriteResult{Written: s.offset}
			p.complete(s, func() { s.cb(result) })
		})
	})
}

// pace resumes the write through the scheduler so chunks never go out back
// to back.
func (p *Programmer) pace(s *writeSession, f func()) {
	p.config.Scheduler.AfterFunc(s.pacing.Delay, func() {
		p.resume(s, f)
	})
}
