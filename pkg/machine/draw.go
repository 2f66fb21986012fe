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

package machine

const spriteWidth = 8

// draw XORs an 8 pixel wide sprite of the given height, read from memory at
// the index register, onto the framebuffer. Only the origin wraps around the
// screen; pixels past the right or bottom edge are clipped unless the
// WrapSprites quirk is set. VF is set when a foreground pixel is turned off.
func (mc *Machine) draw(vx, vy, height uint8) error {
	s := &mc.State

	s.Registers[FlagRegister] = 0

	originX := int(vx) % ScreenWidth
	originY := int(vy) % ScreenHeight

	for row := 0; row < int(height); row++ {
		py := originY + row

		if py >= ScreenHeight {
			if !mc.Quirks.WrapSprites {
				break
			}
			py %= ScreenHeight
		}

		sprite, err := mc.read(s.Index + uint16(row))

		if err != nil {
			return err
		}

		for bit := 0; bit < spriteWidth; bit++ {
			if sprite&(0x80>>bit) == 0 {
				continue
			}

			px := originX + bit

			if px >= ScreenWidth {
				if !mc.Quirks.WrapSprites {
					break
				}
				px %= ScreenWidth
			}

			pixel := &s.Frame[py*ScreenWidth+px]

			if *pixel == ColorForeground {
				s.Registers[FlagRegister] = 1
			}

			*pixel ^= ColorForeground
		}
	}

	s.Dirty = true

	return nil
}
