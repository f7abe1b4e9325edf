/*
   NVFlash - log-structured NVRAM on byte-programmable flash
   Copyright (c) 2021, Alexander Vollschwitz

   This file is part of NVFlash.

   NVFlash is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   NVFlash is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with NVFlash. If not, see <http://www.gnu.org/licenses/>.
*/

package flash

import (
	"errors"
	"fmt"
)

// Erased is the value every byte of a freshly erased block reads back as.
const Erased = 0xff

// DefaultBlockSize is the erase granularity of the 4 KiB sector flash parts
// found on A4091/A4092 style boards.
const DefaultBlockSize = 4096

//
var ErrOutOfRange = errors.New("address out of range")

/*
	Device is the physical flash media. Programming follows NOR flash rules:
	the resulting byte is the bitwise AND of the previous content and the new
	value, so bits only ever go from 1 to 0. The only way back to 1 is erasing
	the whole block containing an address.
*/
type Device interface {
	//
	ReadByteAt(addr uint32) (byte, error)

	// ProgramByte programs b at addr with AND semantics.
	ProgramByte(addr uint32, b byte) error

	// EraseBlock sets every byte in the erase block containing addr to 0xff.
	EraseBlock(addr uint32) error
}

// BlockSizer is implemented by devices that know their erase granularity.
type BlockSizer interface {
	BlockSize() uint32
}

//
func Read(d Device, addr uint32, buf []byte) error {
	for ix := range buf {
		b, err := d.ReadByteAt(addr + uint32(ix))
		if err != nil {
			return fmt.Errorf("error reading flash at 0x%06x: %w",
				addr+uint32(ix), err)
		}
		buf[ix] = b
	}
	return nil
}

//
func Program(d Device, addr uint32, data []byte) error {
	for ix, b := range data {
		if err := d.ProgramByte(addr+uint32(ix), b); err != nil {
			return fmt.Errorf("error programming flash at 0x%06x: %w",
				addr+uint32(ix), err)
		}
	}
	return nil
}

/*
	EraseRange erases the blocks covering [addr, addr+length). If the device
	does not report a block size, only the block containing addr is erased.
*/
func EraseRange(d Device, addr, length uint32) error {

	bs, ok := d.(BlockSizer)
	if !ok || bs.BlockSize() == 0 || length == 0 {
		return d.EraseBlock(addr)
	}

	size := uint64(bs.BlockSize())
	end := uint64(addr) + uint64(length)
	for block := uint64(addr) - uint64(addr)%size; block < end; block += size {
		if err := d.EraseBlock(uint32(block)); err != nil {
			return fmt.Errorf("error erasing block at 0x%06x: %w", block, err)
		}
	}
	return nil
}
