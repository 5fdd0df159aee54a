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
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

// captureSessionLog points the session log at a buffer for the test.
func captureSessionLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	sessionLogMu.Lock()
	sessionLogWriter = &buf
	sessionLogMu.Unlock()

	enabled := DebugEnabled()
	SetDebugEnabled(false)
	t.Cleanup(func() {
		sessionLogMu.Lock()
		sessionLogWriter = nil
		sessionLogMu.Unlock()
		SetDebugEnabled(enabled)
	})
	return &buf
}

func TestDebugf_WritesToSessionLog(t *testing.T) {
	buf := captureSessionLog(t)

	Debugf("TX %s", "ReadID")

	assert.Regexp(t, regexp.MustCompile(`\d{2}:\d{2}:\d{2}\.\d{3} DEBUG: TX ReadID\n`), buf.String())
}

func TestDebugln_WritesToSessionLog(t *testing.T) {
	buf := captureSessionLog(t)

	Debugln("chunk ", 3)

	assert.Contains(t, buf.String(), "DEBUG: chunk 3\n")
}

func TestDebugf_NoSessionLog(t *testing.T) {
	enabled := DebugEnabled()
	t.Cleanup(func() { SetDebugEnabled(enabled) })
	SetDebugEnabled(false)

	assert.NotPanics(t, func() {
		Debugf("message %d", 1)
		Debugln("message")
	})
}

func TestSetDebugEnabled(t *testing.T) {
	enabled := DebugEnabled()
	t.Cleanup(func() { SetDebugEnabled(enabled) })

	SetDebugEnabled(true)
	assert.True(t, DebugEnabled())
	SetDebugEnabled(false)
	assert.False(t, DebugEnabled())
}
