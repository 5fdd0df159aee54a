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

import "fmt"

// Outcome is the classified meaning of a response.
type Outcome int

const (
	// OutcomeUnexpected means the response shape is never produced by the
	// outstanding command. The link is considered desynchronized.
	OutcomeUnexpected Outcome = iota
	OutcomeData
	OutcomeOK
	OutcomeError
	OutcomeBadBlock
)

func (o Outcome) String() string {
	switch o {
	case OutcomeData:
		return "data"
	case OutcomeOK:
		return "ok"
	case OutcomeError:
		return "error"
	case OutcomeBadBlock:
		return "bad block"
	default:
		return "unexpected"
	}
}

// Classification is the result of Classify.
type Classification struct {
	Payload []byte // OutcomeData only
	Reason  string // OutcomeUnexpected only
	Outcome Outcome
	Addr    uint32 // OutcomeBadBlock only
}

// ExpectsData reports whether cmd is answered by data responses.
func ExpectsData(cmd byte) bool {
	return cmd == CmdReadID || cmd == CmdRead
}

// ExpectsStatus reports whether cmd is answered by status responses.
func ExpectsStatus(cmd byte) bool {
	switch cmd {
	case CmdErase, CmdRead, CmdWriteStart, CmdWriteData, CmdWriteEnd, CmdSelect:
		return true
	default:
		return false
	}
}

// Classify maps a decoded response to an outcome for the command that is
// outstanding. Every shape the command never produces is OutcomeUnexpected.
func Classify(hdr Header, cmd byte) Classification {
	switch hdr.Kind {
	case RespData:
		if !ExpectsData(cmd) {
			return unexpected("data response to %s", CommandName(cmd))
		}
		return Classification{Outcome: OutcomeData, Payload: hdr.Payload}
	case RespStatus:
		if !ExpectsStatus(cmd) {
			return unexpected("status %s in response to %s", StatusName(hdr.Info), CommandName(cmd))
		}
		return classifyStatus(hdr, cmd)
	default:
		return unexpected("response kind 0x%02X", hdr.Kind)
	}
}

func classifyStatus(hdr Header, cmd byte) Classification {
	switch hdr.Info {
	case StatusOK:
		return Classification{Outcome: OutcomeOK}
	case StatusError:
		return Classification{Outcome: OutcomeError}
	case StatusBadBlock:
		// chip selection has no block context
		if cmd == CmdSelect {
			return unexpected("bad block status in response to %s", CommandName(cmd))
		}
		if len(hdr.Payload) < AddrLen {
			return unexpected("bad block status with %d address bytes", len(hdr.Payload))
		}
		return Classification{Outcome: OutcomeBadBlock, Addr: le32(hdr.Payload)}
	default:
		return unexpected("unknown status 0x%02X", hdr.Info)
	}
}

func unexpected(format string, args ...any) Classification {
	return Classification{Outcome: OutcomeUnexpected, Reason: fmt.Sprintf(format, args...)}
}
