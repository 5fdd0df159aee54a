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
	"sync"
	"testing"

	"github.com/ZaparooProject/go-nandprog/internal/frame"
	virt "github.com/ZaparooProject/go-nandprog/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func erase(t *testing.T, p *Programmer, addr, length uint32) EraseResult {
	t.Helper()
	r := newOnce[EraseResult]()
	require.NoError(t, p.EraseChip(addr, length, r.done))
	return r.wait(t)
}

func TestUnitCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		addr   uint32
		length uint32
		unit   uint32
		want   uint32
	}{
		{name: "no unit", addr: 0, length: 0x40000, unit: 0, want: 0},
		{name: "aligned", addr: 0, length: 0x40000, unit: 0x20000, want: 2},
		{name: "partial tail", addr: 0, length: 0x20001, unit: 0x20000, want: 2},
		{name: "straddles", addr: 0x1FFFF, length: 2, unit: 0x20000, want: 2},
		{name: "inside one", addr: 0x100, length: 0x10, unit: 0x20000, want: 1},
		{name: "top of address space", addr: 0xFFFE0000, length: 0x20000, unit: 0x20000, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, unitCount(tt.addr, tt.length, tt.unit))
		})
	}
}

func TestEraseChip(t *testing.T) {
	t.Parallel()

	rig := newSimRig(t, virt.DefaultNANDConfig())
	rig.nand.Load(0x20000, pattern(0x100))

	r := erase(t, rig.p, 0, 0x40000)
	require.NoError(t, r.Err)
	assert.False(t, r.HasBadBlocks())
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, rig.nand.Contents(0x20000, 4))
}

func TestEraseChip_BadBlocksDoNotFail(t *testing.T) {
	t.Parallel()

	rig := newSimRig(t, virt.DefaultNANDConfig())
	rig.nand.MarkBad(0x20000)
	rig.nand.MarkBad(0x60000)

	r := erase(t, rig.p, 0, 0x100000)
	require.NoError(t, r.Err)
	assert.Equal(t, []uint32{0x20000, 0x60000}, r.BadBlocks)
	assert.True(t, r.HasBadBlocks())
	assert.Zero(t, rig.nand.Pending())
}

func TestEraseChip_UnitMode(t *testing.T) {
	t.Parallel()

	cfg := virt.DefaultNANDConfig()
	cfg.EraseUnitSize = 0x20000

	var mu sync.Mutex
	var progress []Progress
	rig := newSimRig(t, cfg,
		WithEraseUnitSize(0x20000),
		WithProgress(func(pr Progress) {
			mu.Lock()
			progress = append(progress, pr)
			mu.Unlock()
		}))
	rig.nand.MarkBad(0x40000)

	r := erase(t, rig.p, 0, 0x80000)
	require.NoError(t, r.Err)
	assert.Equal(t, []uint32{0x40000}, r.BadBlocks)
	assert.Zero(t, rig.nand.Pending(), "exactly one status per unit is consumed")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, progress, 4)
	assert.Equal(t, Progress{Op: OpErase, Done: 0x20000, Total: 0x80000}, progress[0])
	assert.Equal(t, Progress{Op: OpErase, Done: 0x80000, Total: 0x80000}, progress[3])
}

func TestEraseChip_UnitModeUnaligned(t *testing.T) {
	t.Parallel()

	cfg := virt.DefaultNANDConfig()
	cfg.EraseUnitSize = 0x20000
	rig := newSimRig(t, cfg, WithEraseUnitSize(0x20000))

	// 0x1F000..0x21000 touches two units.
	r := erase(t, rig.p, 0x1F000, 0x2000)
	require.NoError(t, r.Err)
	assert.Zero(t, rig.nand.Pending())
}

func TestEraseChip_DeviceError(t *testing.T) {
	t.Parallel()

	rig := newSimRig(t, virt.DefaultNANDConfig())

	// Past the end of the simulated chip.
	r := erase(t, rig.p, 0x100000, 0x20000)
	require.ErrorIs(t, r.Err, ErrDeviceError)
	assert.Empty(t, r.BadBlocks)
}

func TestEraseChip_DataIsUnexpected(t *testing.T) {
	t.Parallel()

	rig := newSimRig(t, virt.DefaultNANDConfig())
	rig.nand.InjectResponse(frame.CmdErase, frame.EncodeData([]byte{1, 2, 3}))

	r := erase(t, rig.p, 0, 0x20000)
	require.ErrorIs(t, r.Err, ErrUnexpectedResponse)
	assert.True(t, IsProtocolError(r.Err))
}

func TestEraseChip_ReceiveFailure(t *testing.T) {
	t.Parallel()

	rig := newSimRig(t, virt.DefaultNANDConfig())
	rig.sim.FailReceive(1, ErrTransportTimeout)

	r := erase(t, rig.p, 0, 0x20000)
	require.ErrorIs(t, r.Err, ErrTransportTimeout)
	assert.True(t, IsTransportError(r.Err))

	trace := GetTrace(r.Err)
	require.NotNil(t, trace)
	assert.Equal(t, "erase", trace.Op)
	require.NotEmpty(t, trace.Trace)
	assert.Equal(t, TraceTX, trace.Trace[0].Direction)
}
