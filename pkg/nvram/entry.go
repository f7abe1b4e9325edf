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
	"fmt"
)

//
const EntrySize = 8
const PayloadSize = 2
const checksumSize = 4

// FreeChecksum is what the checksum of an erased, never written slot reads as.
const FreeChecksum uint32 = 0xffffffff

// Payload carries the settings stored in one entry.
type Payload [PayloadSize]byte

//
func NewPayload(osFlags, switchFlags byte) Payload {
	return Payload{osFlags, switchFlags}
}

//
func (p Payload) OSFlags() byte {
	return p[0]
}

//
func (p Payload) SwitchFlags() byte {
	return p[1]
}

//
func (p Payload) String() string {
	return fmt.Sprintf("os: 0x%02x, switch: 0x%02x", p[0], p[1])
}

/*
	Checksum is the plain sum of the payload bytes, modulo 2^32. Padding is
	not included. Note that with a two byte payload the sum can never reach
	FreeChecksum, so a written slot is always distinguishable from a free one.
*/
func Checksum(p Payload) uint32 {
	var sum uint32
	for _, b := range p {
		sum += uint32(b)
	}
	return sum
}

// Entry is the record stored in a slot.
type Entry struct {
	Checksum uint32
	Payload  Payload
	padding  [2]byte
}

// NewEntry creates an entry for p with a matching checksum and zero padding.
func NewEntry(p Payload) *Entry {
	return &Entry{Checksum: Checksum(p), Payload: p}
}

//
func (e *Entry) Encode() []byte {
	ret := make([]byte, EntrySize)
	byteOrder.PutUint32(ret[0:checksumSize], e.Checksum)
	copy(ret[checksumSize:checksumSize+PayloadSize], e.Payload[:])
	copy(ret[checksumSize+PayloadSize:], e.padding[:])
	return ret
}

//
func DecodeEntry(data []byte) (*Entry, error) {
	if len(data) < EntrySize {
		return nil, fmt.Errorf("%w: entry data too small: %d bytes",
			ErrInvalidArgument, len(data))
	}
	e := &Entry{Checksum: byteOrder.Uint32(data[0:checksumSize])}
	copy(e.Payload[:], data[checksumSize:checksumSize+PayloadSize])
	copy(e.padding[:], data[checksumSize+PayloadSize:EntrySize])
	return e, nil
}

//
func (e *Entry) IsFree() bool {
	return e.Checksum == FreeChecksum
}

//
func (e *Entry) IsValid() bool {
	return Checksum(e.Payload) == e.Checksum
}

//
func (e *Entry) Validate() error {
	if got := Checksum(e.Payload); got != e.Checksum {
		return fmt.Errorf("invalid entry checksum, want 0x%08x, got 0x%08x",
			e.Checksum, got)
	}
	return nil
}
