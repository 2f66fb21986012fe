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

package main

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/cobra"

	"github.com/lassandro/chip8x/pkg/assembler"
	"github.com/lassandro/chip8x/pkg/config"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

var errAssembly = errors.New("Assembly failed")

type options struct {
	debug bool
	out   string
	quiet bool
}

func replaceExt(filename, ext string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ext
}

// printErrors writes each error followed by the offending source line with
// the token underlined.
func printErrors(w io.Writer, name string, source []byte, errs []error) {
	for _, err := range errs {
		var tokenErr assembler.TokenError

		if !errors.As(err, &tokenErr) {
			fmt.Fprintf(w, "\033[1m%s:\033[0m%s\n", name, err)
			continue
		}

		cursor := tokenErr.GetPosition()

		if cursor.LineByte > int64(len(source)) {
			fmt.Fprintf(w, "\033[1m%s:\033[0m%s\n", name, err)
			continue
		}

		line, _ := bufio.NewReader(
			bytes.NewReader(source[cursor.LineByte:]),
		).ReadString('\n')

		size := int(cursor.Size)
		if size < 1 {
			size = 1
		}

		underlinefmt := fmt.Sprintf(
			"%% %ds%s",
			int(cursor.Byte-cursor.LineByte)+1,
			strings.Repeat("~", size-1),
		)

		fmt.Fprintf(w,
			"\033[1m%s:\033[0m%s\n%s\n\033[31m%s\033[0m\n",
			name,
			err,
			strings.TrimRight(line, "\r\n"),
			fmt.Sprintf(underlinefmt, "^"),
		)
	}
}

func assembleFile(logger *log.Logger, stderr io.Writer, infile string, opts options) error {
	source, err := os.ReadFile(infile)

	if err != nil {
		return err
	}

	outfile := opts.out
	if outfile == "" {
		outfile = replaceExt(infile, ".ch8")
	}

	var symtarget *assembler.SymTable

	if opts.debug {
		abs, err := filepath.Abs(infile)

		if err != nil {
			logger.Warn("Resolving source path failed", log.Err(err))
			abs = ""
		}

		symtarget = assembler.NewSymTable(abs)
	}

	result, errs := assembler.AssembleChip8Source(bytes.NewReader(source), symtarget)

	if len(errs) > 0 {
		printErrors(stderr, filepath.Base(infile), source, errs)
		return fmt.Errorf("%w: %d errors", errAssembly, len(errs))
	}

	if err := os.WriteFile(outfile, result, 0666); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}

	logger.Info("Program assembled",
		log.String("output", outfile),
		log.Int("size", len(result)),
	)

	if opts.debug {
		symfile := replaceExt(outfile, ".c8db")

		file, err := os.Create(symfile)

		if err != nil {
			return fmt.Errorf("creating symbol table: %w", err)
		}

		defer file.Close()

		if err := gob.NewEncoder(file).Encode(symtarget); err != nil {
			return fmt.Errorf("writing symbol table: %w", err)
		}

		logger.Info("Symbol table written", log.String("output", symfile))
	}

	return nil
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "chip8x-asm [--debug] [--out FILE] SOURCE",
		Short:         "CHIP-8 assembler",
		Version:       buildinfo.Version(version, commit, date),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := config.CreateLogger(false, opts.quiet)
			return assembleFile(logger, cmd.ErrOrStderr(), args[0], opts)
		},
	}

	cmd.Flags().BoolVar(
		&opts.debug, "debug", false,
		"Specifies whether to generate debugging information as a symbol "+
			"table. The table will use the output filename with extension "+
			"'.c8db'",
	)
	cmd.Flags().StringVarP(
		&opts.out, "out", "o", "",
		"Specifies a precise name for the output file, "+
			"overriding the default means of determining it",
	)
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "only log errors")

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger := config.CreateLogger(false, false)
		logger.Error("chip8x-asm failed", log.Err(err))
		os.Exit(1)
	}
}
