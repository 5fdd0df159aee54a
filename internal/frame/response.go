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
	"fmt"
)

// Header is one programmer-to-host response: a kind byte, an info byte and a
// kind-dependent payload.
type Header struct {
	Payload []byte
	Kind    byte
	Info    byte
}

// ParseHeader validates the two leading bytes of a response and returns its
// kind and info bytes.
func ParseHeader(buf []byte) (kind, info byte, err error) {
	if len(buf) < HeaderLen {
		return 0, 0, ErrIncompleteFrame
	}

	switch buf[0] {
	case RespData, RespStatus:
		return buf[0], buf[1], nil
	default:
		return 0, 0, fmt.Errorf("%w: unknown response kind 0x%02X", ErrMalformedFrame, buf[0])
	}
}

// TrailerLen returns the number of payload bytes that follow a header.
// Data payloads are not self-describing for every command, so the caller
// passes the length it expects for the outstanding command in dataLen.
func TrailerLen(kind, info byte, dataLen int) int {
	if kind == RespData {
		return max(dataLen, 0)
	}
	if info == StatusBadBlock {
		return AddrLen
	}
	return 0
}

// DecodeResponse parses one response from the start of buf. dataLen is the
// payload length expected if the response turns out to be a data response.
// It returns the header and the number of bytes consumed.
func DecodeResponse(buf []byte, dataLen int) (Header, int, error) {
	kind, info, err := ParseHeader(buf)
	if err != nil {
		return Header{}, 0, err
	}

	total := HeaderLen + TrailerLen(kind, info, dataLen)
	if len(buf) < total {
		return Header{}, 0, ErrIncompleteFrame
	}

	hdr := Header{Kind: kind, Info: info}
	if total > HeaderLen {
		hdr.Payload = make([]byte, total-HeaderLen)
		copy(hdr.Payload, buf[HeaderLen:total])
	}
	return hdr, total, nil
}

// AppendTo appends the encoded response to dst.
func (h Header) AppendTo(dst []byte) []byte {
	dst = append(dst, h.Kind, h.Info)
	return append(dst, h.Payload...)
}

// EncodeData builds a data response. The info byte carries the payload length.
func EncodeData(payload []byte) []byte {
	if len(payload) > MaxDataLen {
		panic(fmt.Sprintf("frame: data payload of %d bytes exceeds %d", len(payload), MaxDataLen))
	}
	return Header{Kind: RespData, Info: byte(len(payload)), Payload: payload}.AppendTo(nil)
}

// EncodeStatus builds a status response without payload.
func EncodeStatus(code byte) []byte {
	return []byte{RespStatus, code}
}

// EncodeBadBlock builds a bad block status response for addr.
func EncodeBadBlock(addr uint32) []byte {
	buf := []byte{RespStatus, StatusBadBlock}
	return binary.LittleEndian.AppendUint32(buf, addr)
}
