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
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/go-nandprog/internal/frame"
	virt "github.com/ZaparooProject/go-nandprog/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, p *Programmer, buf []byte, addr, length uint32) WriteResult {
	t.Helper()
	r := newOnce[WriteResult]()
	require.NoError(t, p.WriteChip(buf, addr, length, r.done))
	return r.wait(t)
}

func TestWriteChip_RoundTrip(t *testing.T) {
	t.Parallel()

	rig := newSimRig(t, virt.DefaultNANDConfig())
	data := pattern(1000)

	w := write(t, rig.p, data, 0x800, 1000)
	require.NoError(t, w.Err)
	assert.Equal(t, uint32(1000), w.Written)
	assert.Equal(t, []int{255, 255, 255, 235}, rig.sim.ChunkLengths())
	assert.Equal(t, 1, rig.sim.CountSent(frame.CmdWriteStart))
	assert.Equal(t, 1, rig.sim.CountSent(frame.CmdWriteEnd))

	buf := make([]byte, 1000)
	r := read(t, rig.p, buf, 0x800, 1000)
	require.NoError(t, r.Err)
	assert.Equal(t, data, buf)
}

func TestWriteChip_ChunkSize(t *testing.T) {
	t.Parallel()

	rig := newSimRig(t, virt.DefaultNANDConfig(), WithWriteChunkSize(64))

	w := write(t, rig.p, pattern(130), 0, 130)
	require.NoError(t, w.Err)
	assert.Equal(t, []int{64, 64, 2}, rig.sim.ChunkLengths())
	assert.Equal(t, pattern(130), rig.nand.Contents(0, 130))
}

func TestWriteChip_OnlyLengthBytesSent(t *testing.T) {
	t.Parallel()

	rig := newSimRig(t, virt.DefaultNANDConfig())

	w := write(t, rig.p, pattern(600), 0, 300)
	require.NoError(t, w.Err)
	assert.Equal(t, []int{255, 45}, rig.sim.ChunkLengths())
	assert.Equal(t, []byte{0xFF, 0xFF}, rig.nand.Contents(300, 2))
}

func TestWriteChip_BadBlockAtStart(t *testing.T) {
	t.Parallel()

	rig := newSimRig(t, virt.DefaultNANDConfig())
	rig.nand.MarkBad(0x40000)

	w := write(t, rig.p, pattern(512), 0x40100, 512)
	require.ErrorIs(t, w.Err, ErrBadBlock)
	addr, ok := BadBlockAddr(w.Err)
	require.True(t, ok)
	assert.Equal(t, uint32(0x40000), addr)
	assert.Zero(t, w.Written)
	assert.Zero(t, rig.sim.CountSent(frame.CmdWriteData), "no data after a rejected WriteStart")
}

func TestWriteChip_BadBlockMidWrite(t *testing.T) {
	t.Parallel()

	rig := newSimRig(t, virt.DefaultNANDConfig())
	rig.nand.MarkBad(0x20000)

	w := write(t, rig.p, pattern(0x200), 0x1FF00, 0x200)
	addr, ok := BadBlockAddr(w.Err)
	require.True(t, ok)
	assert.Equal(t, uint32(0x20000), addr)
	assert.Equal(t, uint32(255), w.Written, "only acknowledged chunks count")
	assert.Zero(t, rig.sim.CountSent(frame.CmdWriteEnd))
}

func TestWriteChip_NoAck(t *testing.T) {
	t.Parallel()

	cfg := virt.DefaultNANDConfig()
	cfg.AckWriteData = false
	rig := newSimRig(t, cfg, WithWritePacing(WritePacing{AwaitAck: false}))
	data := pattern(700)

	w := write(t, rig.p, data, 0x1000, 700)
	require.NoError(t, w.Err)
	assert.Equal(t, uint32(700), w.Written)
	assert.Equal(t, data, rig.nand.Contents(0x1000, 700))
	assert.Zero(t, rig.nand.Pending())
}

func TestWriteChip_NoAckBadBlockReportedAtEnd(t *testing.T) {
	t.Parallel()

	cfg := virt.DefaultNANDConfig()
	cfg.AckWriteData = false
	rig := newSimRig(t, cfg, WithWritePacing(WritePacing{AwaitAck: false}))
	rig.nand.MarkBad(0x20000)

	w := write(t, rig.p, pattern(0x200), 0x1FF00, 0x200)
	addr, ok := BadBlockAddr(w.Err)
	require.True(t, ok)
	assert.Equal(t, uint32(0x20000), addr)
	assert.Equal(t, 1, rig.sim.CountSent(frame.CmdWriteEnd))
}

func TestWriteChip_Pacing(t *testing.T) {
	t.Parallel()

	sched := &manualScheduler{}
	rig := newSimRig(t, virt.DefaultNANDConfig(),
		WithScheduler(sched),
		WithWriteChunkSize(100),
		WithWritePacing(WritePacing{Delay: 3 * time.Millisecond, AwaitAck: true}))

	result := newOnce[WriteResult]()
	require.NoError(t, rig.p.WriteChip(pattern(300), 0, 300, result.done))

	pending := func() bool {
		sched.mu.Lock()
		defer sched.mu.Unlock()
		return len(sched.pending) > 0
	}
	for chunk := 1; chunk <= 3; chunk++ {
		require.Eventually(t, pending, callbackTimeout, time.Millisecond)
		assert.Equal(t, chunk, rig.sim.CountSent(frame.CmdWriteData))
		assert.Zero(t, rig.sim.CountSent(frame.CmdWriteEnd), "WriteEnd waits for pacing too")
		assert.Equal(t, 1, sched.fire())
	}

	w := result.wait(t)
	require.NoError(t, w.Err)
	assert.Equal(t, []time.Duration{3 * time.Millisecond, 3 * time.Millisecond, 3 * time.Millisecond},
		sched.recorded())
	assert.Equal(t, 1, rig.sim.CountSent(frame.CmdWriteEnd))
}

func TestWriteChip_DisconnectWhilePaced(t *testing.T) {
	t.Parallel()

	sched := &manualScheduler{}
	rig := newSimRig(t, virt.DefaultNANDConfig(), WithScheduler(sched))

	result := newOnce[WriteResult]()
	require.NoError(t, rig.p.WriteChip(pattern(600), 0, 600, result.done))
	require.Eventually(t, func() bool { return len(sched.recorded()) == 1 }, callbackTimeout, time.Millisecond)

	require.NoError(t, rig.p.Disconnect())
	w := result.wait(t)
	require.ErrorIs(t, w.Err, ErrDisconnected)
	assert.Equal(t, uint32(255), w.Written)

	// The stale continuation is ignored.
	sched.fire()
	assert.Equal(t, 1, rig.sim.CountSent(frame.CmdWriteData))
}

func TestWriteChip_DeviceErrorOnEnd(t *testing.T) {
	t.Parallel()

	rig := newSimRig(t, virt.DefaultNANDConfig(), WithScheduler(immediateScheduler{}))
	rig.nand.FailCommand(frame.CmdWriteEnd)

	w := write(t, rig.p, pattern(10), 0, 10)
	require.ErrorIs(t, w.Err, ErrDeviceError)
	assert.Equal(t, uint32(10), w.Written)

	var de *DeviceError
	require.ErrorAs(t, w.Err, &de)
	assert.Equal(t, frame.CmdWriteEnd, de.Command)
}

func TestWriteChip_SendFailure(t *testing.T) {
	t.Parallel()

	rig := newSimRig(t, virt.DefaultNANDConfig())
	usbReset := errors.New("usb reset")
	rig.sim.FailSend(2, usbReset)

	w := write(t, rig.p, pattern(10), 0, 10)
	require.ErrorIs(t, w.Err, ErrTransportWrite)
	require.ErrorIs(t, w.Err, usbReset)
	assert.Zero(t, w.Written)
}

func TestWriteChip_Progress(t *testing.T) {
	t.Parallel()

	var seen []uint32
	rig := newSimRig(t, virt.DefaultNANDConfig(),
		WithWriteChunkSize(200),
		WithProgress(func(p Progress) {
			if p.Op == OpWrite {
				seen = append(seen, p.Done)
			}
		}))

	w := write(t, rig.p, pattern(500), 0, 500)
	require.NoError(t, w.Err)
	assert.Equal(t, []uint32{200, 400, 500}, seen)
}

func TestWriteSession_AdvancePastTotalPanics(t *testing.T) {
	t.Parallel()

	s := &writeSession{total: 10, chunk: 8, src: make([]byte, 10)}
	assert.Len(t, s.next(), 8)
	s.advance(8)
	assert.Len(t, s.next(), 2)
	assert.Panics(t, func() { s.advance(3) })
}
