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

// Package config loads the nandprog CLI configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ZaparooProject/go-nandprog"
	"github.com/ZaparooProject/go-nandprog/internal/frame"
	"github.com/ZaparooProject/go-nandprog/transport/uart"
	"gopkg.in/yaml.v3"
)

// File is the on-disk configuration. Flags given on the command line
// override the values read from it.
type File struct {
	Programmer  Programmer    `yaml:"programmer"`
	Port        string        `yaml:"port"`
	BaudRate    int           `yaml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// Programmer holds protocol tuning for the attached device firmware.
type Programmer struct {
	// AwaitAck is nil when unset so the library default applies.
	AwaitAck       *bool         `yaml:"await_ack"`
	WriteChunkSize int           `yaml:"write_chunk_size"`
	WriteDelay     time.Duration `yaml:"write_delay"`
	EraseUnitSize  uint32        `yaml:"erase_unit_size"`
	BlockSize      uint32        `yaml:"block_size"`
}

// Default returns the configuration used when no file exists.
func Default() *File {
	return &File{
		BaudRate:    uart.DefaultBaudRate,
		ReadTimeout: uart.DefaultReadTimeout,
		Programmer: Programmer{
			WriteChunkSize: nandprog.DefaultWriteChunkSize,
			BlockSize:      nandprog.DefaultBlockSize,
		},
	}
}

// DefaultPath returns the default config file path:
// <user config dir>/nandprog/config.yaml
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "nandprog", "config.yaml")
	}
	return filepath.Join(dir, "nandprog", "config.yaml")
}

// Load reads the configuration from the given YAML file path.
// If the file does not exist, it returns Default with no error.
func Load(path string) (*File, error) {
	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the user
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (f *File) Validate() error {
	if f.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", f.BaudRate)
	}
	if f.ReadTimeout < 0 {
		return fmt.Errorf("read_timeout must not be negative, got %v", f.ReadTimeout)
	}
	p := f.Programmer
	if p.WriteChunkSize < 1 || p.WriteChunkSize > frame.MaxChunkLen {
		return fmt.Errorf("write_chunk_size must be 1-%d, got %d", frame.MaxChunkLen, p.WriteChunkSize)
	}
	if p.WriteDelay < 0 {
		return fmt.Errorf("write_delay must not be negative, got %v", p.WriteDelay)
	}
	return nil
}

// Save writes the configuration to path, creating its directory.
func (f *File) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// UART returns the serial settings.
func (f *File) UART() uart.Config {
	return uart.Config{BaudRate: f.BaudRate, ReadTimeout: f.ReadTimeout}
}

// Options returns the programmer options the file describes.
func (f *File) Options() []nandprog.Option {
	p := f.Programmer
	pacing := nandprog.WritePacing{Delay: p.WriteDelay, AwaitAck: true}
	if p.AwaitAck != nil {
		pacing.AwaitAck = *p.AwaitAck
	}
	return []nandprog.Option{
		nandprog.WithWriteChunkSize(p.WriteChunkSize),
		nandprog.WithWritePacing(pacing),
		nandprog.WithEraseUnitSize(p.EraseUnitSize),
		nandprog.WithBlockSize(p.BlockSize),
	}
}
