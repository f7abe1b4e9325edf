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
	"os"

	"github.com/xelalexv/nvflash/pkg/nvram"
)

//
func NewDump() *Dump {

	d := &Dump{}
	d.Runner = *NewRunner(
		"dump [-i|--image {file}] [-a|--address {address}] [-p|--port {port}]",
		"hex dump partition",
		`
Use the dump command to get a hex dump of the partition header and all used
entry slots.`,
		"", localHelpEpilogue, d.Run)

	d.AddBaseSettings()
	d.AddPartitionSettings()

	return d
}

//
type Dump struct {
	//
	Runner
}

//
func (d *Dump) Run() error {

	d.ParseSettings()

	if !d.local() {
		return d.printReply("GET", "/nvram/dump")
	}

	return d.withPartition(false, func(p *nvram.Partition) error {
		return p.Emit(os.Stdout)
	})
}
