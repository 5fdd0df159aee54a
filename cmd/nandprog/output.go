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

package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/ZaparooProject/go-nandprog"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/crypto/blake2b"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(12)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// field prints one aligned "label value" line.
func field(w io.Writer, label, value string) {
	_, _ = fmt.Fprintln(w, labelStyle.Render(label)+value)
}

func success(w io.Writer, msg string) {
	_, _ = fmt.Fprintln(w, okStyle.Render(msg))
}

// badBlocks prints the bad block list, if any.
func badBlocks(w io.Writer, blocks []uint32) {
	if len(blocks) == 0 {
		return
	}
	addrs := make([]string, len(blocks))
	for i, b := range blocks {
		addrs[i] = fmt.Sprintf("0x%08X", b)
	}
	field(w, "bad blocks", warnStyle.Render(strings.Join(addrs, " ")))
}

// digest returns a short BLAKE2b-256 fingerprint of data for comparing
// images.
func digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// progressPrinter redraws a one-line progress indicator on w.
func progressPrinter(w io.Writer) nandprog.ProgressFunc {
	return func(p nandprog.Progress) {
		_, _ = fmt.Fprintf(w, "\r%-6s %6.1f%% (%d/%d bytes)", p.Op, p.Percent(), p.Done, p.Total)
		if p.Done >= p.Total {
			_, _ = fmt.Fprintln(w)
		}
	}
}
