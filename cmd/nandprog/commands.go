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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/ZaparooProject/go-nandprog"
	"github.com/ZaparooProject/go-nandprog/internal/config"
	"github.com/spf13/cobra"
)

func newIDCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Read the identifier of the selected chip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withProgrammer(cmd, func(ctx context.Context, p *nandprog.Programmer) error {
				id, err := p.ReadChipIDContext(ctx)
				if err != nil {
					return fmt.Errorf("read chip id: %w", err)
				}
				out := cmd.OutOrStdout()
				field(out, "chip id", id.String())
				field(out, "maker", fmt.Sprintf("0x%02X", id.Maker))
				field(out, "device", fmt.Sprintf("0x%02X", id.Device))
				return nil
			})
		},
	}
}

func newSelectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "select <chip>",
		Short: "Select the chip that later commands address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseUint(args[0], 0, 32)
			if err != nil {
				return fmt.Errorf("%w: chip index %q", nandprog.ErrInvalidParameter, args[0])
			}
			chip := uint32(n)
			return a.withProgrammer(cmd, func(ctx context.Context, p *nandprog.Programmer) error {
				if err := p.SelectChipContext(ctx, chip); err != nil {
					return fmt.Errorf("select chip %d: %w", chip, err)
				}
				success(cmd.OutOrStdout(), fmt.Sprintf("chip %d selected", chip))
				return nil
			})
		},
	}
}

func newEraseCmd(a *app) *cobra.Command {
	var addr, length uint32
	cmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase a range of the selected chip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withProgrammer(cmd, func(ctx context.Context, p *nandprog.Programmer) error {
				bad, err := p.EraseChipContext(ctx, addr, length)
				out := cmd.OutOrStdout()
				badBlocks(out, bad)
				if err != nil {
					return fmt.Errorf("erase: %w", err)
				}
				success(out, fmt.Sprintf("erased 0x%X bytes at 0x%08X", length, addr))
				return nil
			})
		},
	}
	cmd.Flags().Uint32Var(&addr, "addr", 0, "start address")
	cmd.Flags().Uint32Var(&length, "length", 0, "number of bytes")
	_ = cmd.MarkFlagRequired("length")
	return cmd
}

func newReadCmd(a *app) *cobra.Command {
	var addr, length uint32
	var outPath string
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read a range of the selected chip into a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withProgrammer(cmd, func(ctx context.Context, p *nandprog.Programmer) error {
				buf := make([]byte, length)
				bad, err := p.ReadChipContext(ctx, buf, addr, length)
				out := cmd.OutOrStdout()
				badBlocks(out, bad)
				if err != nil {
					return fmt.Errorf("read: %w", err)
				}
				if err := os.WriteFile(outPath, buf, 0o600); err != nil {
					return fmt.Errorf("save image: %w", err)
				}
				field(out, "digest", digest(buf))
				success(out, fmt.Sprintf("read 0x%X bytes at 0x%08X into %s", length, addr, outPath))
				return nil
			})
		},
	}
	cmd.Flags().Uint32Var(&addr, "addr", 0, "start address")
	cmd.Flags().Uint32Var(&length, "length", 0, "number of bytes")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file")
	_ = cmd.MarkFlagRequired("length")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newWriteCmd(a *app) *cobra.Command {
	var addr uint32
	var verify bool
	cmd := &cobra.Command{
		Use:   "write <image>",
		Short: "Program an image file into the selected chip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("load image: %w", err)
			}
			if uint64(len(image)) > uint64(^uint32(0)) {
				return fmt.Errorf("%w: image of %d bytes", nandprog.ErrInvalidParameter, len(image))
			}
			length := uint32(len(image))

			return a.withProgrammer(cmd, func(ctx context.Context, p *nandprog.Programmer) error {
				out := cmd.OutOrStdout()
				written, err := p.WriteChipContext(ctx, image, addr, length)
				if bad, ok := nandprog.BadBlockAddr(err); ok {
					field(out, "bad block", warnStyle.Render(fmt.Sprintf("0x%08X", bad)))
					return fmt.Errorf("write stopped after 0x%X bytes, retry at another address: %w", written, err)
				}
				if err != nil {
					return fmt.Errorf("write: %w", err)
				}
				field(out, "digest", digest(image))
				success(out, fmt.Sprintf("wrote 0x%X bytes at 0x%08X", written, addr))

				if !verify {
					return nil
				}
				back := make([]byte, length)
				bad, err := p.ReadChipContext(ctx, back, addr, length)
				badBlocks(out, bad)
				if err != nil {
					return fmt.Errorf("verify: %w", err)
				}
				if !bytes.Equal(image, back) {
					field(out, "read back", digest(back))
					return errors.New("verify failed: chip contents differ from image")
				}
				success(out, "verified")
				return nil
			})
		},
	}
	cmd.Flags().Uint32Var(&addr, "addr", 0, "start address")
	cmd.Flags().BoolVar(&verify, "verify", false, "read the range back and compare")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			field(out, "port", a.cfg.Port)
			field(out, "baud", fmt.Sprint(a.cfg.BaudRate))
			field(out, "timeout", a.cfg.ReadTimeout.String())
			field(out, "chunk", fmt.Sprint(a.cfg.Programmer.WriteChunkSize))
			field(out, "block", fmt.Sprintf("0x%X", a.cfg.Programmer.BlockSize))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.cfgFile
			if path == "" {
				path = config.DefaultPath()
			}
			if err := a.cfg.Save(path); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "wrote "+path)
			return nil
		},
	})
	return cmd
}
