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

package nvram

import (
	"encoding/binary"
	"fmt"
)

// Magic identifies a formatted partition, 'NVRM' in ASCII.
const Magic uint32 = 0x4e56524d

//
const HeaderSize = 8

// MinEntries is the least number of slots a partition must hold. It bounds
// how often compaction has to spend an erase cycle.
const MinEntries = 16

// where the A4092 tooling places the partition
const (
	DefaultOffset = 0x10000
	DefaultSize   = 4096
)

// the Amiga side reads these structures natively, i.e. as 68k big-endian
var byteOrder = binary.BigEndian

//
func MinPartitionSize() uint32 {
	return HeaderSize + MinEntries*EntrySize
}

// Header is written once when a partition gets formatted.
type Header struct {
	Magic         uint32
	PartitionSize uint32
}

//
func NewHeader(size uint32) *Header {
	return &Header{Magic: Magic, PartitionSize: size}
}

//
func (h *Header) Encode() []byte {
	ret := make([]byte, HeaderSize)
	byteOrder.PutUint32(ret[0:4], h.Magic)
	byteOrder.PutUint32(ret[4:8], h.PartitionSize)
	return ret
}

//
func DecodeHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: header data too small: %d bytes",
			ErrInvalidArgument, len(data))
	}
	return &Header{
		Magic:         byteOrder.Uint32(data[0:4]),
		PartitionSize: byteOrder.Uint32(data[4:8]),
	}, nil
}

//
func (h *Header) Validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("%w: want 0x%08x, got 0x%08x", ErrBadMagic, Magic, h.Magic)
	}
	return validateSize(h.PartitionSize)
}

// SlotCount is the number of entry slots following the header.
func (h *Header) SlotCount() int {
	if h.PartitionSize < HeaderSize {
		return 0
	}
	return int((h.PartitionSize - HeaderSize) / EntrySize)
}

//
func (h *Header) String() string {
	return fmt.Sprintf("magic: 0x%08x, size: %d, slots: %d",
		h.Magic, h.PartitionSize, h.SlotCount())
}

//
func validateSize(size uint32) error {
	if size < MinPartitionSize() {
		return fmt.Errorf(
			"%w: partition size %d is below minimum of %d for %d entries",
			ErrInvalidArgument, size, MinPartitionSize(), MinEntries)
	}
	return nil
}
