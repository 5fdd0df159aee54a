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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	badBlock := Header{Kind: RespStatus, Info: StatusBadBlock, Payload: []byte{0x00, 0x00, 0x04, 0x00}}
	tests := []struct {
		name string
		hdr  Header
		want Outcome
		cmd  byte
		addr uint32
	}{
		{name: "id data", cmd: CmdReadID, hdr: Header{Kind: RespData, Payload: []byte{1, 2, 3, 4}}, want: OutcomeData},
		{name: "id status is unexpected", cmd: CmdReadID, hdr: Header{Kind: RespStatus}, want: OutcomeUnexpected},
		{name: "select ok", cmd: CmdSelect, hdr: Header{Kind: RespStatus, Info: StatusOK}, want: OutcomeOK},
		{name: "select error", cmd: CmdSelect, hdr: Header{Kind: RespStatus, Info: StatusError}, want: OutcomeError},
		{name: "select bad block is unexpected", cmd: CmdSelect, hdr: badBlock, want: OutcomeUnexpected},
		{name: "select data is unexpected", cmd: CmdSelect, hdr: Header{Kind: RespData}, want: OutcomeUnexpected},
		{name: "erase bad block", cmd: CmdErase, hdr: badBlock, want: OutcomeBadBlock, addr: 0x40000},
		{name: "erase data is unexpected", cmd: CmdErase, hdr: Header{Kind: RespData}, want: OutcomeUnexpected},
		{name: "read data", cmd: CmdRead, hdr: Header{Kind: RespData, Info: 1, Payload: []byte{7}}, want: OutcomeData},
		{name: "read bad block", cmd: CmdRead, hdr: badBlock, want: OutcomeBadBlock, addr: 0x40000},
		{name: "write start bad block", cmd: CmdWriteStart, hdr: badBlock, want: OutcomeBadBlock, addr: 0x40000},
		{name: "write data ok", cmd: CmdWriteData, hdr: Header{Kind: RespStatus, Info: StatusOK}, want: OutcomeOK},
		{name: "write end error", cmd: CmdWriteEnd, hdr: Header{Kind: RespStatus, Info: StatusError}, want: OutcomeError},
		{name: "unknown status", cmd: CmdErase, hdr: Header{Kind: RespStatus, Info: 0x09}, want: OutcomeUnexpected},
		{
			name: "bad block without address",
			cmd:  CmdErase,
			hdr:  Header{Kind: RespStatus, Info: StatusBadBlock},
			want: OutcomeUnexpected,
		},
		{name: "unknown kind", cmd: CmdRead, hdr: Header{Kind: 0x02}, want: OutcomeUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(tt.hdr, tt.cmd)
			assert.Equal(t, tt.want, got.Outcome, got.Reason)
			assert.Equal(t, tt.addr, got.Addr)
			if got.Outcome == OutcomeUnexpected {
				assert.NotEmpty(t, got.Reason)
			}
		})
	}
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "bad block", OutcomeBadBlock.String())
	assert.Equal(t, "unexpected", Outcome(42).String())
}
