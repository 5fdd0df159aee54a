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

package nandprog

// Operation identifies one of the programmer's public operations.
type Operation int

const (
	OpReadID Operation = iota
	OpSelect
	OpErase
	OpRead
	OpWrite
)

func (o Operation) String() string {
	switch o {
	case OpReadID:
		return "read id"
	case OpSelect:
		return "select"
	case OpErase:
		return "erase"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Progress reports how far a multi-frame operation has come, in bytes. An
// erase without a configured unit size reports once, when the device finishes.
type Progress struct {
	Op    Operation
	Done  uint32
	Total uint32
}

// Percent returns Done as a percentage of Total.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Done) * 100 / float64(p.Total)
}

// ProgressFunc receives progress updates. It runs on the programmer's event
// loop and must not block.
type ProgressFunc func(Progress)
