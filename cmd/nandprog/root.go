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
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-nandprog"
	"github.com/ZaparooProject/go-nandprog/internal/config"
	"github.com/ZaparooProject/go-nandprog/transport/uart"
	"github.com/spf13/cobra"
)

// app holds global flag values and the state shared by subcommands. Tests
// replace open to run against a simulated programmer.
type app struct {
	cfg     *config.File
	open    func(cfg *config.File, opts ...nandprog.Option) (*nandprog.Programmer, error)
	cfgFile string
	port    string
	baud    int
	timeout time.Duration
	chip    uint32
	debug   bool
	logFile bool
	quiet   bool
}

func newApp() *app {
	return &app{open: openSerial}
}

// openSerial creates a programmer on the configured serial port.
func openSerial(cfg *config.File, opts ...nandprog.Option) (*nandprog.Programmer, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("%w: no serial port given (use --port or set port in the config file)",
			nandprog.ErrInvalidParameter)
	}
	opts = append(cfg.Options(), opts...)
	p, err := nandprog.New(uart.Factory(cfg.Port, cfg.UART()), opts...)
	if err != nil {
		return nil, fmt.Errorf("create programmer: %w", err)
	}
	return p, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "nandprog",
		Short: "Identify, erase, read and write NAND flash through a serial programmer",
		Long: `nandprog talks to a NAND flash programmer over a serial port.
It can identify and select chips, erase ranges, dump them to a file and
program images, reporting the bad blocks the device skips.

Numeric arguments accept decimal or 0x-prefixed hex.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.logFile {
				return nandprog.CloseSessionLog()
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is "+config.DefaultPath()+")")
	flags.StringVarP(&a.port, "port", "p", "", "serial port of the programmer")
	flags.IntVar(&a.baud, "baud", 0, "serial baud rate (default from config, 115200)")
	flags.DurationVar(&a.timeout, "timeout", 0, "abort the operation after this long (0 waits forever)")
	flags.Uint32Var(&a.chip, "chip", 0, "select this chip before the operation")
	flags.BoolVar(&a.debug, "debug", false, "enable debug output")
	flags.BoolVar(&a.logFile, "log", false, "write a session log file to the current directory")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "do not show progress")

	root.AddCommand(
		newIDCmd(a),
		newSelectCmd(a),
		newEraseCmd(a),
		newReadCmd(a),
		newWriteCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads the config file and applies flag overrides.
func (a *app) setup(cmd *cobra.Command) error {
	if a.debug {
		nandprog.SetDebugEnabled(true)
	}
	if a.logFile {
		path, err := nandprog.InitSessionLog("")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("session log: "+path))
	}

	path := a.cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with flags
	if a.port != "" {
		cfg.Port = a.port
	}
	if a.baud != 0 {
		cfg.BaudRate = a.baud
	}
	a.cfg = cfg
	return nil
}

// withProgrammer connects, optionally selects the chip given by --chip, runs
// fn and disconnects.
func (a *app) withProgrammer(cmd *cobra.Command, fn func(ctx context.Context, p *nandprog.Programmer) error) error {
	ctx := cmd.Context()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	var opts []nandprog.Option
	if !a.quiet {
		opts = append(opts, nandprog.WithProgress(progressPrinter(cmd.ErrOrStderr())))
	}
	p, err := a.open(a.cfg, opts...)
	if err != nil {
		return err
	}
	if err := p.ConnectContext(ctx); err != nil {
		return err
	}
	defer func() {
		if err := p.Disconnect(); err != nil {
			nandprog.Debugf("disconnect: %v", err)
		}
	}()

	if cmd.Flags().Changed("chip") {
		if err := p.SelectChipContext(ctx, a.chip); err != nil {
			return fmt.Errorf("select chip %d: %w", a.chip, err)
		}
	}
	return fn(ctx, p)
}
