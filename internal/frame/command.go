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

package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Decoding errors
var (
	// ErrIncompleteFrame means fewer bytes are available than the frame needs.
	ErrIncompleteFrame = errors.New("incomplete frame")
	// ErrMalformedFrame means the leading code or kind byte is not a known value.
	ErrMalformedFrame = errors.New("malformed frame")
)

// Command is one host-to-programmer frame.
type Command interface {
	// Code returns the command code byte.
	Code() byte
	// Size returns the encoded length in bytes.
	Size() int
	// AppendTo appends the encoded frame to dst.
	AppendTo(dst []byte) []byte
}

// ReadID asks the programmer for the selected chip's identifier.
type ReadID struct{}

// Erase erases Len bytes starting at Addr.
type Erase struct {
	Addr uint32
	Len  uint32
}

// Read reads Len bytes starting at Addr.
type Read struct {
	Addr uint32
	Len  uint32
}

// WriteStart opens a write session at Addr.
type WriteStart struct {
	Addr uint32
}

// WriteData carries one chunk of at most MaxChunkLen bytes.
type WriteData struct {
	Data []byte
}

// WriteEnd closes the write session.
type WriteEnd struct{}

// Select makes chip number Chip the target of subsequent commands.
type Select struct {
	Chip uint32
}

func (ReadID) Code() byte { return CmdReadID }
func (Erase) Code() byte { return CmdErase }
func (Read) Code() byte { return CmdRead }
func (WriteStart) Code() byte { return CmdWriteStart }
func (WriteData) Code() byte { return CmdWriteData }
func (WriteEnd) Code() byte { return CmdWriteEnd }
func (Select) Code() byte { return CmdSelect }

func (ReadID) Size() int { return 1 }
func (Erase) Size() int { return 1 + 2*AddrLen }
func (Read) Size() int { return 1 + 2*AddrLen }
func (WriteStart) Size() int { return 1 + AddrLen }
func (c WriteData) Size() int { return 2 + len(c.Data) }
func (WriteEnd) Size() int { return 1 }
func (Select) Size() int { return 1 + AddrLen }

func (c ReadID) AppendTo(dst []byte) []byte { return append(dst, c.Code()) }

func (c Erase) AppendTo(dst []byte) []byte {
	dst = append(dst, c.Code())
	dst = binary.LittleEndian.AppendUint32(dst, c.Addr)
	return binary.LittleEndian.AppendUint32(dst, c.Len)
}

func (c Read) AppendTo(dst []byte) []byte {
	dst = append(dst, c.Code())
	dst = binary.LittleEndian.AppendUint32(dst, c.Addr)
	return binary.LittleEndian.AppendUint32(dst, c.Len)
}

func (c WriteStart) AppendTo(dst []byte) []byte {
	dst = append(dst, c.Code())
	return binary.LittleEndian.AppendUint32(dst, c.Addr)
}

// AppendTo panics if the chunk is longer than MaxChunkLen; callers split
// payloads before building frames.
func (c WriteData) AppendTo(dst []byte) []byte {
	if len(c.Data) > MaxChunkLen {
		panic(fmt.Sprintf("frame: write data chunk of %d bytes exceeds %d", len(c.Data), MaxChunkLen))
	}
	dst = append(dst, c.Code(), byte(len(c.Data)))
	return append(dst, c.Data...)
}

func (c WriteEnd) AppendTo(dst []byte) []byte { return append(dst, c.Code()) }

func (c Select) AppendTo(dst []byte) []byte {
	dst = append(dst, c.Code())
	return binary.LittleEndian.AppendUint32(dst, c.Chip)
}

// Encode serializes a command into a freshly allocated frame.
func Encode(c Command) []byte {
	return c.AppendTo(make([]byte, 0, c.Size()))
}

// DecodeCommand parses one command frame from the start of buf and returns it
// together with the number of bytes consumed. WriteData payloads are copied.
func DecodeCommand(buf []byte) (Command, int, error) {
	if len(buf) < 1 {
		return nil, 0, ErrIncompleteFrame
	}

	code := buf[0]
	need := map[byte]int{
		CmdReadID:     1,
		CmdErase:      1 + 2*AddrLen,
		CmdRead:       1 + 2*AddrLen,
		CmdWriteStart: 1 + AddrLen,
		CmdWriteData:  2,
		CmdWriteEnd:   1,
		CmdSelect:     1 + AddrLen,
	}
	n, ok := need[code]
	if !ok {
		return nil, 0, fmt.Errorf("%w: unknown command code 0x%02X", ErrMalformedFrame, code)
	}
	if len(buf) < n {
		return nil, 0, ErrIncompleteFrame
	}

	switch code {
	case CmdReadID:
		return ReadID{}, n, nil
	case CmdErase:
		return Erase{Addr: le32(buf[1:]), Len: le32(buf[5:])}, n, nil
	case CmdRead:
		return Read{Addr: le32(buf[1:]), Len: le32(buf[5:])}, n, nil
	case CmdWriteStart:
		return WriteStart{Addr: le32(buf[1:])}, n, nil
	case CmdWriteData:
		dataLen := int(buf[1])
		if len(buf) < n+dataLen {
			return nil, 0, ErrIncompleteFrame
		}
		data := make([]byte, dataLen)
		copy(data, buf[n:n+dataLen])
		return WriteData{Data: data}, n + dataLen, nil
	case CmdWriteEnd:
		return WriteEnd{}, n, nil
	default:
		return Select{Chip: le32(buf[1:])}, n, nil
	}
}

func le32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b[:AddrLen])
}
