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

package run

import (
	"fmt"

	"github.com/xelalexv/nvflash/pkg/nvram"
)

//
func NewRead() *Read {

	r := &Read{}
	r.Runner = *NewRunner(
		"read [-i|--image {file}] [-a|--address {address}] [-p|--port {port}]",
		"read current settings",
		"\nUse the read command to show the most recent valid settings.",
		"", localHelpEpilogue, r.Run)

	r.AddBaseSettings()
	r.AddPartitionSettings()

	return r
}

//
type Read struct {
	//
	Runner
}

//
func (r *Read) Run() error {

	r.ParseSettings()

	if !r.local() {
		return r.printReply("GET", "/nvram")
	}

	return r.withPartition(false, func(p *nvram.Partition) error {
		pl, err := p.Read()
		if err != nil {
			return err
		}
		fmt.Printf("os flags: 0x%02x, switch flags: 0x%02x\n",
			pl.OSFlags(), pl.SwitchFlags())
		return nil
	})
}
