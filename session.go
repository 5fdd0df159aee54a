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

// traceDepth is how many wire transfers an operation keeps for error reports.
const traceDepth = 16

// session is the state of the one operation in flight. Each operation has its
// own concrete type, and the Programmer holds at most one of them. A session
// is created when its operation is accepted and dropped when its callback
// fires.
type session interface {
	base() *sessionBase
	// abort delivers a failure to the operation's callback.
	abort(err error)
}

// sessionBase is the part every session shares.
type sessionBase struct {
	transport Transport
	loop      *eventLoop
	trace     *traceBuffer
	op        Operation
	cmd       byte // command awaiting a response
}

func (b *sessionBase) base() *sessionBase {
	return b
}
