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

package display

import (
	"bufio"
	"fmt"
	"io"

	"github.com/lassandro/chip8x/pkg/machine"
)

// Renderer presents a framebuffer of machine.ScreenPixels RGBA8888 values.
type Renderer interface {
	Present(frame []uint32, dirty bool) error
}

// Terminal draws the framebuffer with 24-bit ANSI colour. Each character cell
// holds two vertically stacked pixels using the upper half block.
type Terminal struct {
	Out   io.Writer
	Scale int

	drawn bool
}

const upperHalfBlock = "▀"

func NewTerminal(out io.Writer, scale int) *Terminal {
	if scale <= 0 {
		scale = 1
	}

	return &Terminal{Out: out, Scale: scale}
}

func rgb(pixel uint32) (r, g, b uint8) {
	return uint8(pixel >> 24), uint8(pixel >> 16), uint8(pixel >> 8)
}

func (term *Terminal) scale() int {
	if term.Scale <= 0 {
		return 1
	}

	return term.Scale
}

// Present redraws the screen when the frame changed or nothing has been drawn
// yet.
func (term *Terminal) Present(frame []uint32, dirty bool) error {
	if term.drawn && !dirty {
		return nil
	}

	if len(frame) != machine.ScreenPixels {
		return fmt.Errorf("Invalid frame size %d", len(frame))
	}

	scale := term.scale()
	width := machine.ScreenWidth * scale
	height := machine.ScreenHeight * scale

	pixel := func(x, y int) uint32 {
		if y >= height {
			return machine.ColorBackground
		}

		return frame[(y/scale)*machine.ScreenWidth+x/scale]
	}

	writer := bufio.NewWriter(term.Out)

	fmt.Fprint(writer, "\033[H")

	for y := 0; y < height; y += 2 {
		for x := 0; x < width; x++ {
			tr, tg, tb := rgb(pixel(x, y))
			br, bg, bb := rgb(pixel(x, y+1))

			fmt.Fprintf(writer,
				"\033[38;2;%d;%d;%dm\033[48;2;%d;%d;%dm%s",
				tr, tg, tb, br, bg, bb, upperHalfBlock,
			)
		}

		fmt.Fprint(writer, "\033[0m\r\n")
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	term.drawn = true
	return nil
}

// Headless keeps the most recent frame in memory.
type Headless struct {
	Frame    [machine.ScreenPixels]uint32
	Presents uint64
	Updates  uint64
}

func (headless *Headless) Present(frame []uint32, dirty bool) error {
	if len(frame) != machine.ScreenPixels {
		return fmt.Errorf("Invalid frame size %d", len(frame))
	}

	headless.Presents++

	if dirty {
		headless.Updates++
		copy(headless.Frame[:], frame)
	}

	return nil
}
