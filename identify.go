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

// ChipID is the four identification bytes a NAND chip returns, verbatim.
type ChipID struct {
	Maker  byte
	Device byte
	Third  byte
	Fourth byte
}

// Bytes returns the identifier in wire order.
func (id ChipID) Bytes() [4]byte {
	return [4]byte{id.Maker, id.Device, id.Third, id.Fourth}
}

func (id ChipID) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X", id.Maker, id.Device, id.Third, id.Fourth)
}

type readIDSession struct {
	cb func(ChipID, error)
	sessionBase
}

func (s *readIDSession) abort(err error) {
	s.cb(ChipID{}, err)
}

// ReadChipID asks the selected chip for its identifier.
func (p *Programmer) ReadChipID(cb func(ChipID, error)) error {
	if cb == nil {
		return fmt.Errorf("%w: nil callback", ErrInvalidParameter)
	}

	s := &readIDSession{sessionBase: sessionBase{op: OpReadID}, cb: cb}
	return p.begin(s, func() {
		p.sendFrame(s, frame.ReadID{}, func() {
			p.awaitResponse(s, fixedDataLen(frame.ChipIDLen), func(c frame.Classification) {
				// Classify only lets data responses through for ReadID
				id := ChipID{Maker: c.Payload[0], Device: c.Payload[1], Third: c.Payload[2], Fourth: c.Payload[3]}
				Debugf("chip id %s", id)
				p.complete(s, func() { s.cb(id, nil) })
			})
		})
	})
}

type selectSession struct {
	cb func(error)
	sessionBase
}

func (s *selectSession) abort(err error) {
	s.cb(err)
}

// SelectChip makes chip the target of subsequent operations.
func (p *Programmer) SelectChip(chip uint32, cb func(error)) error {
	if cb == nil {
		return fmt.Errorf("%w: nil callback", ErrInvalidParameter)
	}

	s := &selectSession{sessionBase: sessionBase{op: OpSelect}, cb: cb}
	return p.begin(s, func() {
		p.sendFrame(s, frame.Select{Chip: chip}, func() {
			p.awaitResponse(s, nil, func(c frame.Classification) {
				if c.Outcome != frame.OutcomeOK {
					p.failDevice(s)
					return
				}
				p.complete(s, func() { s.cb(nil) })
			})
		})
	})
}
