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
func NewList() *List {

	l := &List{}
	l.Runner = *NewRunner(
		"ls [-i|--image {file}] [-a|--address {address}] [-p|--port {port}]",
		"list partition slots",
		"\nUse the ls command to list all entry slots of the NVRAM partition.",
		"", localHelpEpilogue, l.Run)

	l.AddBaseSettings()
	l.AddPartitionSettings()

	return l
}

//
type List struct {
	//
	Runner
}

//
func (l *List) Run() error {

	l.ParseSettings()

	if !l.local() {
		return l.printReply("GET", "/nvram/list")
	}

	return l.withPartition(false, func(p *nvram.Partition) error {
		return p.List(os.Stdout)
	})
}
