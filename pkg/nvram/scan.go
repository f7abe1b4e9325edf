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
	log "github.com/sirupsen/logrus"
)

// Offsets are relative to the partition start. Zero means "not present",
// since the header always occupies offset zero.
type scan struct {
	last       uint32
	secondLast uint32
	free       uint32
}

/*
	scan walks the slots left to right, stopping at the first free slot or at
	the end of the partition. Slots are only ever filled in order, so anything
	beyond the first free slot is free as well.
*/
func (p *Partition) scan(hdr *Header) (*scan, error) {

	ret := &scan{}

	for off := uint32(HeaderSize); off+EntrySize <= hdr.PartitionSize; off += EntrySize {
		chk, err := p.readChecksum(off)
		if err != nil {
			return nil, err
		}
		if chk == FreeChecksum {
			ret.free = off
			break
		}
		ret.secondLast = ret.last
		ret.last = off
	}

	log.WithFields(log.Fields{
		"last":       ret.last,
		"secondLast": ret.secondLast,
		"free":       ret.free,
	}).Trace("partition scanned")

	return ret, nil
}
