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

// Command codes, first byte of every host-to-programmer frame.
const (
	CmdReadID     byte = 0x00
	CmdErase      byte = 0x01
	CmdRead       byte = 0x02
	CmdWriteStart byte = 0x03
	CmdWriteData  byte = 0x04
	CmdWriteEnd   byte = 0x05
	CmdSelect     byte = 0x06
)

// Response kinds, first byte of every programmer-to-host frame.
const (
	RespData   byte = 0x00
	RespStatus byte = 0x01
)

// Status codes carried in the info byte of a status response.
const (
	StatusOK       byte = 0x00
	StatusError    byte = 0x01
	StatusBadBlock byte = 0x02
)

// Frame size limits
const (
	HeaderLen   = 2   // kind + info
	AddrLen     = 4   // little-endian uint32
	ChipIDLen   = 4   // maker, device, third, fourth
	MaxChunkLen = 255 // WriteData length is a single byte
	MaxDataLen  = 255 // data response info byte carries the payload length
)

// CommandName returns a human-readable name for a command code.
func CommandName(code byte) string {
	switch code {
	case CmdReadID:
		return "ReadID"
	case CmdErase:
		return "Erase"
	case CmdRead:
		return "Read"
	case CmdWriteStart:
		return "WriteStart"
	case CmdWriteData:
		return "WriteData"
	case CmdWriteEnd:
		return "WriteEnd"
	case CmdSelect:
		return "Select"
	default:
		return "Unknown"
	}
}

// StatusName returns a human-readable name for a status code.
func StatusName(code byte) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusError:
		return "Error"
	case StatusBadBlock:
		return "BadBlock"
	default:
		return "Unknown"
	}
}
