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
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/nvflash/pkg/flash"
)

/*
	NewPartition returns a handle for the NVRAM partition starting at address
	addr on device d. The handle holds no other state, every operation reads
	the header from flash again. Callers need to serialize operations on the
	same partition.
*/
func NewPartition(d flash.Device, addr uint32) *Partition {
	return &Partition{device: d, address: addr}
}

//
type Partition struct {
	device  flash.Device
	address uint32
}

//
func (p *Partition) Address() uint32 {
	return p.address
}

//
func (p *Partition) Device() flash.Device {
	return p.device
}

/*
	Format erases the partition and writes a fresh header. All entries are
	lost. This is not a "format if needed", use IsFormatted first for that.
*/
func (p *Partition) Format(size uint32) error {

	if err := validateSize(size); err != nil {
		return err
	}
	if uint64(p.address)+uint64(size) > math.MaxUint32+1 {
		return fmt.Errorf("%w: partition at 0x%06x with size %d exceeds address space",
			ErrInvalidArgument, p.address, size)
	}

	log.WithFields(log.Fields{
		"address": fmt.Sprintf("0x%06x", p.address),
		"size":    size,
	}).Debug("formatting partition")

	if err := flash.EraseRange(p.device, p.address, size); err != nil {
		return err
	}

	for off := uint32(0); off < size; off++ {
		b, err := p.device.ReadByteAt(p.address + off)
		if err != nil {
			return err
		}
		if b != flash.Erased {
			return fmt.Errorf("%w: byte at 0x%06x reads 0x%02x",
				ErrVerifyEraseFailed, p.address+off, b)
		}
	}

	hdr := NewHeader(size)
	if err := flash.Program(p.device, p.address, hdr.Encode()); err != nil {
		return err
	}

	got, err := p.readHeader()
	if err != nil {
		return err
	}
	if *got != *hdr {
		return fmt.Errorf("%w: header reads back as %s", ErrWriteFailed, got)
	}

	return nil
}

/*
	Read returns the payload of the most recent entry that passes its checksum.
	A corrupted latest entry, e.g. from a write interrupted by power loss, is
	skipped in favour of the one before it.
*/
func (p *Partition) Read() (Payload, error) {

	hdr, err := p.Header()
	if err != nil {
		return Payload{}, err
	}

	s, err := p.scan(hdr)
	if err != nil {
		return Payload{}, err
	}

	if s.last == 0 {
		return Payload{}, ErrNoEntries
	}

	for off := s.last; off >= HeaderSize; off -= EntrySize {
		e, err := p.readEntry(off)
		if err != nil {
			return Payload{}, err
		}
		if e.IsValid() {
			if off != s.last {
				log.WithFields(log.Fields{
					"latest": s.last,
					"used":   off,
				}).Warn("latest entry corrupted, using previous valid entry")
			}
			return e.Payload, nil
		}
		if off < HeaderSize+EntrySize {
			break
		}
	}

	return Payload{}, ErrNoValidEntry
}

/*
	Write appends an entry for pl to the partition. When there's no free slot
	left, the partition gets compacted: the last two entries are checked,
	the partition is formatted, the ones that passed their checksum are written
	back oldest first, and the new entry goes into the slot after them.
*/
func (p *Partition) Write(pl Payload) error {

	hdr, err := p.Header()
	if err != nil {
		return err
	}

	s, err := p.scan(hdr)
	if err != nil {
		return err
	}

	free := s.free

	if free == 0 {
		if free, err = p.compact(hdr, s); err != nil {
			return err
		}
	}

	if free == 0 || free+EntrySize > hdr.PartitionSize {
		return fmt.Errorf("%w: no free slot after compaction", ErrFull)
	}

	log.WithFields(log.Fields{
		"offset":  free,
		"payload": pl,
	}).Trace("writing entry")

	return p.writeEntry(free, NewEntry(pl))
}

// compact returns the offset of the first free slot after compaction
func (p *Partition) compact(hdr *Header, s *scan) (uint32, error) {

	log.WithField("address", fmt.Sprintf("0x%06x", p.address)).Info(
		"partition full, compacting")

	var keep []*Entry
	for _, off := range []uint32{s.secondLast, s.last} {
		if off == 0 {
			continue
		}
		e, err := p.readEntry(off)
		if err != nil {
			return 0, err
		}
		if e.IsValid() {
			keep = append(keep, e)
		} else {
			log.WithField("offset", off).Warn("dropping corrupted entry")
		}
	}

	if err := p.Format(hdr.PartitionSize); err != nil {
		return 0, err
	}

	off := uint32(HeaderSize)
	for _, e := range keep {
		if err := p.writeEntry(off, e); err != nil {
			return 0, err
		}
		off += EntrySize
	}

	log.WithField("kept", len(keep)).Debug("compaction done")
	return off, nil
}

// Header reads and validates the partition header.
func (p *Partition) Header() (*Header, error) {
	hdr, err := p.readHeader()
	if err != nil {
		return nil, err
	}
	if err := hdr.Validate(); err != nil {
		return nil, err
	}
	return hdr, nil
}

//
func (p *Partition) readHeader() (*Header, error) {
	buf := make([]byte, HeaderSize)
	if err := flash.Read(p.device, p.address, buf); err != nil {
		return nil, err
	}
	return DecodeHeader(buf)
}

//
func (p *Partition) readEntry(off uint32) (*Entry, error) {
	buf := make([]byte, EntrySize)
	if err := flash.Read(p.device, p.address+off, buf); err != nil {
		return nil, err
	}
	return DecodeEntry(buf)
}

//
func (p *Partition) readChecksum(off uint32) (uint32, error) {
	buf := make([]byte, checksumSize)
	if err := flash.Read(p.device, p.address+off, buf); err != nil {
		return 0, err
	}
	return byteOrder.Uint32(buf), nil
}

//
func (p *Partition) writeEntry(off uint32, e *Entry) error {
	return flash.Program(p.device, p.address+off, e.Encode())
}
