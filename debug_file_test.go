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
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cleanupSessionLog(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		_ = CloseSessionLog()
	})
}

func TestInitSessionLog_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	cleanupSessionLog(t)

	path, err := InitSessionLog(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	_, err = os.Stat(path)
	require.NoError(t, err, "Log file should exist")

	// nandprog_YYYYMMDD_HHMMSS.log
	assert.Regexp(t, regexp.MustCompile(`^nandprog_\d{8}_\d{6}\.log$`), filepath.Base(path))
}

func TestInitSessionLog_HeaderAndFooter(t *testing.T) {
	cleanupSessionLog(t)

	path, err := InitSessionLog(t.TempDir())
	require.NoError(t, err)
	Debugf("erase 0x%X bytes", 0x20000)
	require.NoError(t, CloseSessionLog())

	content, err := os.ReadFile(path) //nolint:gosec // path is from InitSessionLog
	require.NoError(t, err)

	contentStr := string(content)
	assert.Contains(t, contentStr, "=== NAND Programmer Debug Session Log ===")
	assert.Contains(t, contentStr, "PID:")
	assert.Contains(t, contentStr, "Go Version:")
	assert.Contains(t, contentStr, "DEBUG: erase 0x20000 bytes")
	assert.True(t, strings.HasSuffix(contentStr, "=== Session ended ===\n"))
}

func TestCloseSessionLog_NoFile(t *testing.T) {
	require.NoError(t, CloseSessionLog())
	assert.NoError(t, CloseSessionLog())
}

func TestGetSessionLogPath(t *testing.T) {
	cleanupSessionLog(t)

	assert.Empty(t, GetSessionLogPath())

	path, err := InitSessionLog(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, path, GetSessionLogPath())

	require.NoError(t, CloseSessionLog())
	assert.Empty(t, GetSessionLogPath())
}

func TestInitSessionLog_MissingDirectory(t *testing.T) {
	_, err := InitSessionLog(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Empty(t, GetSessionLogPath())
}
