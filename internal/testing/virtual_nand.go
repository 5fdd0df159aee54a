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

// Package testing provides test utilities including a wire-level simulator of
// a NAND programmer.
//
// VirtualNAND implements io.ReadWriter and answers the programmer's command
// frames the way the device firmware does: one status per command, data
// responses for ReadID and Read, bad block reports with the block address,
// and memory that can only be programmed from 1 to 0 until erased.
package testing

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-nandprog/internal/frame"
	"github.com/ZaparooProject/go-nandprog/internal/syncutil"
)

// NANDConfig describes the simulated chips and device firmware behaviour.
type NANDConfig struct {
	// ChipIDs holds the identifier of each selectable chip, by index.
	ChipIDs [][4]byte
	// Size is the capacity of each chip in bytes.
	Size uint32
	// BlockSize is the erase block size. Bad blocks are tracked per block.
	BlockSize uint32
	// EraseUnitSize is how often the device reports erase progress. Zero
	// means bad block reports followed by a single final status.
	EraseUnitSize uint32
	// ReadChunk is the payload size of each data response to Read (1-255).
	ReadChunk int
	// AckWriteData makes the device answer every WriteData with a status.
	// Without it, the first failure is held back and reported at WriteEnd.
	AckWriteData bool
}

// DefaultNANDConfig returns a single 1 MiB chip with 128 KiB blocks and a
// device that acknowledges every write chunk.
func DefaultNANDConfig() NANDConfig {
	return NANDConfig{
		ChipIDs:      [][4]byte{{0xEC, 0xDA, 0x10, 0x95}},
		Size:         0x100000,
		BlockSize:    0x20000,
		ReadChunk:    frame.MaxDataLen,
		AckWriteData: true,
	}
}

type chip struct {
	mem []byte
	bad map[uint32]bool // keyed by block start
}

// VirtualNAND simulates a NAND programmer at the wire protocol level.
// Responses are produced synchronously as complete command frames arrive.
type VirtualNAND struct {
	injected      map[byte][]byte
	failing       map[byte]bool
	pendingStatus []byte
	chips         []*chip
	commands      []frame.Command
	rxBuffer      bytes.Buffer
	txBuffer      bytes.Buffer
	config        NANDConfig
	mu            syncutil.Mutex
	selected      int
	writePos      uint32
	writing       bool
}

// NewVirtualNAND creates a simulator with freshly erased chips.
func NewVirtualNAND(config NANDConfig) *VirtualNAND {
	if config.BlockSize == 0 {
		config.BlockSize = DefaultNANDConfig().BlockSize
	}
	if config.ReadChunk < 1 || config.ReadChunk > frame.MaxDataLen {
		config.ReadChunk = frame.MaxDataLen
	}

	v := &VirtualNAND{
		config:   config,
		injected: make(map[byte][]byte),
		failing:  make(map[byte]bool),
	}
	for range config.ChipIDs {
		c := &chip{mem: make([]byte, config.Size), bad: make(map[uint32]bool)}
		fillErased(c.mem)
		v.chips = append(v.chips, c)
	}
	return v
}

func fillErased(b []byte) {
	for i := range b {
		b[i] = 0xFF
	}
}

// Write implements io.Writer - receives command frames from the host.
func (v *VirtualNAND) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.rxBuffer.Write(data)
	for v.rxBuffer.Len() > 0 {
		cmd, n, err := frame.DecodeCommand(v.rxBuffer.Bytes())
		if errors.Is(err, frame.ErrIncompleteFrame) {
			return len(data), nil
		}
		if err != nil {
			v.rxBuffer.Reset()
			return len(data), fmt.Errorf("virtual nand: %w", err)
		}
		v.rxBuffer.Next(n)
		v.commands = append(v.commands, cmd)
		v.handle(cmd)
	}
	return len(data), nil
}

// Read implements io.Reader - returns response bytes to the host.
func (v *VirtualNAND) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.txBuffer.Len() == 0 {
		return 0, nil // No data available
	}

	n, err := v.txBuffer.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read from tx buffer: %w", err)
	}
	return n, nil
}

// Flush discards response bytes the host has not read.
func (v *VirtualNAND) Flush() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.txBuffer.Reset()
}

// Pending returns the number of response bytes waiting to be read.
func (v *VirtualNAND) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.txBuffer.Len()
}

// MarkBad marks the block holding addr on the selected chip as bad.
func (v *VirtualNAND) MarkBad(addr uint32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.chips[v.selected].bad[v.blockStart(addr)] = true
}

// FailCommand makes the next command with code answer Status(Error).
func (v *VirtualNAND) FailCommand(code byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failing[code] = true
}

// InjectResponse replaces the response to the next command with code by raw.
func (v *VirtualNAND) InjectResponse(code byte, raw []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.injected[code] = append([]byte(nil), raw...)
}

// Load writes data into the selected chip directly, bypassing the protocol.
func (v *VirtualNAND) Load(addr uint32, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	copy(v.chips[v.selected].mem[addr:], data)
}

// Contents returns a copy of n bytes of the selected chip starting at addr.
func (v *VirtualNAND) Contents(addr, n uint32) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]byte, n)
	copy(out, v.chips[v.selected].mem[addr:addr+n])
	return out
}

// Selected returns the index of the selected chip.
func (v *VirtualNAND) Selected() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selected
}

// Commands returns every command received so far, in order.
func (v *VirtualNAND) Commands() []frame.Command {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]frame.Command(nil), v.commands...)
}

// CommandCount returns how many commands with code were received.
func (v *VirtualNAND) CommandCount(code byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	count := 0
	for _, cmd := range v.commands {
		if cmd.Code() == code {
			count++
		}
	}
	return count
}

func (v *VirtualNAND) blockStart(addr uint32) uint32 {
	return addr - addr%v.config.BlockSize
}

func (v *VirtualNAND) blockEnd(addr uint32) uint64 {
	return uint64(v.blockStart(addr)) + uint64(v.config.BlockSize)
}

func (v *VirtualNAND) inRange(addr uint32, length uint64) bool {
	return uint64(addr)+length <= uint64(v.config.Size)
}

func (v *VirtualNAND) reply(b []byte) {
	v.txBuffer.Write(b)
}

func (v *VirtualNAND) status(code byte) {
	v.reply(frame.EncodeStatus(code))
}

// handle produces the responses to one command. Called with mu held.
func (v *VirtualNAND) handle(cmd frame.Command) {
	code := cmd.Code()
	if raw, ok := v.injected[code]; ok {
		delete(v.injected, code)
		v.reply(raw)
		return
	}
	if v.failing[code] {
		delete(v.failing, code)
		v.writing = false
		v.status(frame.StatusError)
		return
	}

	switch c := cmd.(type) {
	case frame.ReadID:
		id := v.config.ChipIDs[v.selected]
		v.reply(frame.EncodeData(id[:]))
	case frame.Select:
		if uint64(c.Chip) >= uint64(len(v.chips)) {
			v.status(frame.StatusError)
			return
		}
		v.selected = int(c.Chip)
		v.status(frame.StatusOK)
	case frame.Erase:
		v.erase(c.Addr, c.Len)
	case frame.Read:
		v.read(c.Addr, c.Len)
	case frame.WriteStart:
		v.writeStart(c.Addr)
	case frame.WriteData:
		v.writeData(c.Data)
	case frame.WriteEnd:
		v.writeEnd()
	}
}

func (v *VirtualNAND) erase(addr, length uint32) {
	if length == 0 || !v.inRange(addr, uint64(length)) {
		v.status(frame.StatusError)
		return
	}
	c := v.chips[v.selected]
	end := uint64(addr) + uint64(length)

	eraseBlock := func(start uint32) bool {
		if c.bad[start] {
			return false
		}
		fillErased(c.mem[start:min(uint64(start)+uint64(v.config.BlockSize), uint64(v.config.Size))])
		return true
	}

	unit := v.config.EraseUnitSize
	if unit == 0 {
		for b := uint64(v.blockStart(addr)); b < end; b += uint64(v.config.BlockSize) {
			if !eraseBlock(uint32(b)) {
				v.reply(frame.EncodeBadBlock(uint32(b)))
			}
		}
		v.status(frame.StatusOK)
		return
	}

	// One status per unit. A unit reports the first bad block it touches.
	for u := uint64(addr) - uint64(addr)%uint64(unit); u < end; u += uint64(unit) {
		var bad []uint32
		for b := uint64(v.blockStart(uint32(u))); b < u+uint64(unit) && b < uint64(v.config.Size); b += uint64(v.config.BlockSize) {
			if !eraseBlock(uint32(b)) {
				bad = append(bad, uint32(b))
			}
		}
		if len(bad) > 0 {
			v.reply(frame.EncodeBadBlock(bad[0]))
		} else {
			v.status(frame.StatusOK)
		}
	}
}

func (v *VirtualNAND) read(addr, length uint32) {
	if length == 0 || !v.inRange(addr, uint64(length)) {
		v.status(frame.StatusError)
		return
	}
	c := v.chips[v.selected]
	pos := uint64(addr)
	end := pos + uint64(length)

	for pos < end {
		blockEnd := min(v.blockEnd(uint32(pos)), end)
		if c.bad[v.blockStart(uint32(pos))] {
			v.reply(frame.EncodeBadBlock(v.blockStart(uint32(pos))))
			pos = blockEnd
			continue
		}
		n := min(uint64(v.config.ReadChunk), blockEnd-pos)
		v.reply(frame.EncodeData(c.mem[pos : pos+n]))
		pos += n
	}
}

func (v *VirtualNAND) writeStart(addr uint32) {
	v.pendingStatus = nil
	v.writing = false
	if addr >= v.config.Size {
		v.status(frame.StatusError)
		return
	}
	if v.chips[v.selected].bad[v.blockStart(addr)] {
		v.reply(frame.EncodeBadBlock(v.blockStart(addr)))
		return
	}
	v.writing = true
	v.writePos = addr
	v.status(frame.StatusOK)
}

func (v *VirtualNAND) writeData(data []byte) {
	resp := v.program(data)
	if v.config.AckWriteData {
		v.reply(resp)
		return
	}
	if v.pendingStatus == nil && !bytes.Equal(resp, frame.EncodeStatus(frame.StatusOK)) {
		v.pendingStatus = resp
	}
}

// program stores data at the write position and returns the status the
// device would report for it.
func (v *VirtualNAND) program(data []byte) []byte {
	if !v.writing {
		return frame.EncodeStatus(frame.StatusError)
	}
	if !v.inRange(v.writePos, uint64(len(data))) {
		v.writing = false
		return frame.EncodeStatus(frame.StatusError)
	}

	c := v.chips[v.selected]
	for _, b := range data {
		if c.bad[v.blockStart(v.writePos)] {
			v.writing = false
			return frame.EncodeBadBlock(v.blockStart(v.writePos))
		}
		// NAND programming can only clear bits
		c.mem[v.writePos] &= b
		v.writePos++
	}
	return frame.EncodeStatus(frame.StatusOK)
}

func (v *VirtualNAND) writeEnd() {
	switch {
	case v.pendingStatus != nil:
		v.reply(v.pendingStatus)
	case !v.writing:
		v.status(frame.StatusError)
	default:
		v.status(frame.StatusOK)
	}
	v.pendingStatus = nil
	v.writing = false
}
