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
	"bytes"
	"testing"
	"time"

	"github.com/ZaparooProject/go-nandprog/internal/frame"
)

// readAll reads from r until n bytes have arrived, recording fragment sizes.
func readAll(t *testing.T, r *JitteryLink, n int) ([]byte, []int) {
	t.Helper()
	buf := make([]byte, n)
	var sizes []int
	got := 0
	deadline := time.Now().Add(2 * time.Second)
	for got < n {
		if time.Now().After(deadline) {
			t.Fatalf("read %d of %d bytes before deadline", got, n)
		}
		m, err := r.Read(buf[got:])
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if m > 0 {
			sizes = append(sizes, m)
			got += m
		}
	}
	return buf, sizes
}

func TestJitteryLink_BasicReadWrite(t *testing.T) {
	t.Parallel()

	dev := NewVirtualNAND(DefaultNANDConfig())
	link := NewJitteryLink(dev, JitterConfig{Seed: 12345})

	cmd := frame.Encode(frame.ReadID{})
	written, err := link.Write(cmd)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if written != len(cmd) {
		t.Fatalf("Write returned wrong count: got %d, want %d", written, len(cmd))
	}

	got, _ := readAll(t, link, 6)
	want := frame.EncodeData([]byte{0xEC, 0xDA, 0x10, 0x95})
	if !bytes.Equal(got, want) {
		t.Errorf("expected %X, got %X", want, got)
	}
}

func TestJitteryLink_FragmentationKeepsBytes(t *testing.T) {
	t.Parallel()

	dev := NewVirtualNAND(DefaultNANDConfig())
	image := make([]byte, 300)
	for i := range image {
		image[i] = byte(i * 7)
	}
	dev.Load(0x100, image)

	link := NewJitteryLink(dev, JitterConfig{FragmentReads: true, FragmentMinBytes: 1, Seed: 42})
	if _, err := link.Write(frame.Encode(frame.Read{Addr: 0x100, Len: 300})); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// 255 byte frame then 45 byte frame, each with a two byte header
	got, sizes := readAll(t, link, 2+255+2+45)
	if len(sizes) < 2 {
		t.Errorf("expected fragmented reads, got %v", sizes)
	}
	want := append(frame.EncodeData(image[:255]), frame.EncodeData(image[255:])...)
	if !bytes.Equal(got, want) {
		t.Errorf("reassembled stream differs from device output")
	}
}

func TestJitteryLink_USBBoundaryStress(t *testing.T) {
	t.Parallel()

	dev := NewVirtualNAND(DefaultNANDConfig())
	link := NewJitteryLink(dev, JitterConfig{USBBoundaryStress: true, Seed: 12345})
	if _, err := link.Write(frame.Encode(frame.Read{Addr: 0, Len: 200})); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	_, sizes := readAll(t, link, 2+200)
	total := 0
	for _, n := range sizes {
		if total/usbPacket != (total+n-1)/usbPacket {
			t.Errorf("read of %d bytes at offset %d crosses a %d byte boundary", n, total, usbPacket)
		}
		total += n
	}
}

func TestJitteryLink_StallAfterBytes(t *testing.T) {
	t.Parallel()

	dev := NewVirtualNAND(DefaultNANDConfig())
	stall := 50 * time.Millisecond
	link := NewJitteryLink(dev, JitterConfig{StallAfterBytes: 3, StallDuration: stall, Seed: 12345})
	if _, err := link.Write(frame.Encode(frame.ReadID{})); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	start := time.Now()
	readAll(t, link, 6)
	if elapsed := time.Since(start); elapsed < stall {
		t.Errorf("expected stall of at least %v, took %v", stall, elapsed)
	}
}

func TestJitteryLink_ResetStallState(t *testing.T) {
	t.Parallel()

	dev := NewVirtualNAND(DefaultNANDConfig())
	link := NewJitteryLink(dev, JitterConfig{StallAfterBytes: 2, Seed: 1})
	if _, err := link.Write(frame.Encode(frame.ReadID{})); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	readAll(t, link, 6)
	if !link.stallTriggered {
		t.Fatal("expected stall to have triggered")
	}

	link.ResetStallState()
	if link.stallTriggered || link.delivered != 0 {
		t.Error("expected stall state to be cleared")
	}
}

func TestJitteryLink_ClearBuffer(t *testing.T) {
	t.Parallel()

	dev := NewVirtualNAND(DefaultNANDConfig())
	link := NewJitteryLink(dev, JitterConfig{FragmentReads: true, Seed: 9})
	if _, err := link.Write(frame.Encode(frame.Read{Addr: 0, Len: 100})); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := link.Read(buf); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	link.ClearBuffer()
	n, err := link.Read(make([]byte, 16))
	if err != nil || n != 0 {
		t.Errorf("expected empty read after ClearBuffer, got %d, %v", n, err)
	}
}

func TestDefaultJitterConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultJitterConfig()
	if cfg.MaxLatencyMs != 20 {
		t.Errorf("expected MaxLatencyMs 20, got %d", cfg.MaxLatencyMs)
	}
	if !cfg.FragmentReads {
		t.Error("expected FragmentReads to be true")
	}
	if cfg.FragmentMinBytes != 1 {
		t.Errorf("expected FragmentMinBytes 1, got %d", cfg.FragmentMinBytes)
	}
}
