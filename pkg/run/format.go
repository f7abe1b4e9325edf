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
	"strconv"

	"github.com/xelalexv/nvflash/pkg/nvram"
)

//
func NewFormat() *Format {

	f := &Format{}
	f.Runner = *NewRunner(
		`format [-i|--image {file}] [-a|--address {address}] [-s|--size {size}]
       [-f|--force] [-p|--port {port}]`,
		"format NVRAM partition",
		`
Use the format command to set up an empty NVRAM partition. An already formatted
partition is left alone, unless forced. Formatting discards all settings.`,
		"", localHelpEpilogue, f.Run)

	f.AddBaseSettings()
	f.AddPartitionSettings()
	f.AddSetting(&f.Size, "size", "s", "NVFLASH_SIZE", uint32(nvram.DefaultSize),
		"partition size in bytes", false)
	f.AddSetting(&f.Force, "force", "f", "", false,
		"format even if partition is already formatted", false)

	return f
}

//
type Format struct {
	//
	Runner
	//
	Size  uint32
	Force bool
}

//
func (f *Format) Run() error {

	f.ParseSettings()

	if !f.local() {
		return f.printReply("PUT", fmt.Sprintf("/nvram/format?size=%d&force=%s",
			f.Size, strconv.FormatBool(f.Force)))
	}

	return f.withPartition(true, func(p *nvram.Partition) error {
		if !f.Force {
			formatted, err := p.IsFormatted()
			if err != nil {
				return err
			}
			if formatted {
				fmt.Println(
					"partition already formatted, use force to discard settings")
				return nil
			}
		}
		if err := p.Format(f.Size); err != nil {
			return err
		}
		fmt.Println("partition formatted")
		return nil
	})
}
