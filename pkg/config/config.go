// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config holds the emulator run options and logger setup.
package config

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrogolib/log"
)

const (
	DefaultScale = 1
	DefaultHz    = 700
)

var ErrMissingROM = errors.New("No ROM file given")

type Options struct {
	ROM string

	Scale int
	Hz    int

	Debug bool
	Quiet bool
	Trace bool

	Strict      bool
	WrapSprites bool

	Headless  bool
	MaxCycles uint64
	Seed      uint64

	// Debugger enables the interactive debug console.
	Debugger bool
}

func Default() Options {
	return Options{
		Scale: DefaultScale,
		Hz:    DefaultHz,
	}
}

// Validate checks the options and replaces an invalid scale with the default.
func (opts *Options) Validate() error {
	if opts.ROM == "" {
		return ErrMissingROM
	}

	if opts.Hz <= 0 {
		return fmt.Errorf("Invalid instruction rate %d", opts.Hz)
	}

	if opts.Scale <= 0 {
		opts.Scale = DefaultScale
	}

	return nil
}

// CreateLogger creates a logger with appropriate settings
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}
