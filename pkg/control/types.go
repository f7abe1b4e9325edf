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

package control

import (
	"fmt"

	"github.com/xelalexv/nvflash/pkg/daemon"
	"github.com/xelalexv/nvflash/pkg/nvram"
)

//
type Status struct {
	State     string `json:"state"`
	Address   uint32 `json:"address"`
	Formatted bool   `json:"formatted"`
	Size      uint32 `json:"size,omitempty"`
	Slots     int    `json:"slots,omitempty"`
	Writes    uint64 `json:"writes"`
}

//
func (s *Status) fill(hdr *nvram.Header) {
	if hdr != nil {
		s.Formatted = true
		s.Size = hdr.PartitionSize
		s.Slots = hdr.SlotCount()
	}
}

//
func (s *Status) String() string {

	ret := fmt.Sprintf("\nstate:     %s\naddress:   0x%06x\n", s.State, s.Address)

	if s.State == daemon.StatusIdle {
		if s.Formatted {
			ret += fmt.Sprintf("partition: %d bytes, %d slots\n", s.Size, s.Slots)
		} else {
			ret += "partition: not formatted\n"
		}
	}

	return ret + fmt.Sprintf("writes:    %d\n", s.Writes)
}

//
type Settings struct {
	OSFlags     byte `json:"osFlags"`
	SwitchFlags byte `json:"switchFlags"`
}

//
func newSettings(p nvram.Payload) *Settings {
	return &Settings{OSFlags: p.OSFlags(), SwitchFlags: p.SwitchFlags()}
}

//
func (s *Settings) Payload() nvram.Payload {
	return nvram.NewPayload(s.OSFlags, s.SwitchFlags)
}

//
func (s *Settings) String() string {
	return fmt.Sprintf("os flags: 0x%02x, switch flags: 0x%02x",
		s.OSFlags, s.SwitchFlags)
}

//
type Slot struct {
	Index       int    `json:"index"`
	Offset      uint32 `json:"offset"`
	Checksum    uint32 `json:"checksum"`
	OSFlags     byte   `json:"osFlags"`
	SwitchFlags byte   `json:"switchFlags"`
	State       string `json:"state"`
}

//
func newSlot(s nvram.Slot) *Slot {
	return &Slot{
		Index:       s.Index,
		Offset:      s.Offset,
		Checksum:    s.Entry.Checksum,
		OSFlags:     s.Entry.Payload.OSFlags(),
		SwitchFlags: s.Entry.Payload.SwitchFlags(),
		State:       s.State.String(),
	}
}

// Change is sent to watchers when settings got written.
type Change struct {
	Writes   uint64    `json:"writes"`
	Settings *Settings `json:"settings,omitempty"`
}
