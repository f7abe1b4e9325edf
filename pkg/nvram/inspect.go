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
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/xelalexv/nvflash/pkg/flash"
)

//
type SlotState int

//
const (
	SlotFree SlotState = iota
	SlotValid
	SlotCorrupt
)

//
func (s SlotState) String() string {
	switch s {
	case SlotFree:
		return "free"
	case SlotValid:
		return "valid"
	case SlotCorrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("SlotState(%d)", int(s))
	}
}

//
type Slot struct {
	Index  int
	Offset uint32
	State  SlotState
	Entry  *Entry
}

// IsFormatted reports whether the partition carries a valid header. Device
// errors are returned as such, a bad or too small header is not an error.
func (p *Partition) IsFormatted() (bool, error) {
	_, err := p.Header()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrBadMagic) || errors.Is(err, ErrInvalidArgument) {
		return false, nil
	}
	return false, err
}

// Slots returns all slots of the partition in allocation order.
func (p *Partition) Slots() ([]Slot, error) {

	hdr, err := p.Header()
	if err != nil {
		return nil, err
	}

	ret := make([]Slot, 0, hdr.SlotCount())

	for ix := 0; ix < hdr.SlotCount(); ix++ {
		off := uint32(HeaderSize + ix*EntrySize)
		e, err := p.readEntry(off)
		if err != nil {
			return nil, err
		}
		s := Slot{Index: ix, Offset: off, Entry: e, State: SlotCorrupt}
		if e.IsFree() {
			s.State = SlotFree
		} else if e.IsValid() {
			s.State = SlotValid
		}
		ret = append(ret, s)
	}

	return ret, nil
}

// List writes a table of all used slots, followed by a summary.
func (p *Partition) List(w io.Writer) error {

	hdr, err := p.Header()
	if err != nil {
		return err
	}

	slots, err := p.Slots()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nPARTITION 0x%06x - %s\n\n", p.address, hdr)
	fmt.Fprintln(w, "SLOT  OFFSET  CHECKSUM    OS    SWITCH  STATE")

	free := 0
	for _, s := range slots {
		if s.State == SlotFree {
			free++
			continue
		}
		fmt.Fprintf(w, "%4d  0x%04x  0x%08x  0x%02x  0x%02x    %s\n",
			s.Index, s.Offset, s.Entry.Checksum, s.Entry.Payload.OSFlags(),
			s.Entry.Payload.SwitchFlags(), s.State)
	}

	fmt.Fprintf(w, "\n%d of %d slots free\n", free, len(slots))
	return nil
}

// Emit writes a hex dump of the header and all used slots.
func (p *Partition) Emit(w io.Writer) error {

	hdr, err := p.Header()
	if err != nil {
		return err
	}

	s, err := p.scan(hdr)
	if err != nil {
		return err
	}

	end := uint32(HeaderSize)
	if s.last != 0 {
		end = s.last + EntrySize
	}

	data := make([]byte, end)
	if err := flash.Read(p.device, p.address, data); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nPARTITION 0x%06x - %s\n", p.address, hdr)
	d := hex.Dumper(w)
	defer d.Close()
	_, err = d.Write(data)
	return err
}
