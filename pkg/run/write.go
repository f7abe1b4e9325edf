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
func NewWrite() *Write {

	w := &Write{}
	w.Runner = *NewRunner(
		`write --os {flags} --switch {flags} [-i|--image {file}]
      [-a|--address {address}] [-p|--port {port}]`,
		"write new settings",
		`
Use the write command to store new settings. Flags can be given in decimal, or
in hex with 0x prefix.`,
		"", localHelpEpilogue, w.Run)

	w.AddBaseSettings()
	w.AddPartitionSettings()
	w.AddSetting(&w.OSFlags, "os", "", "", -1, "OS flags byte", false)
	w.AddSetting(&w.SwitchFlags, "switch", "", "", -1, "switch flags byte", false)

	return w
}

//
type Write struct {
	//
	Runner
	//
	OSFlags     int
	SwitchFlags int
}

//
func (w *Write) Run() error {

	w.ParseSettings()

	osFlags, err := flagsByte("os", w.OSFlags)
	if err != nil {
		return err
	}
	switchFlags, err := flagsByte("switch", w.SwitchFlags)
	if err != nil {
		return err
	}

	if !w.local() {
		return w.printReply("PUT",
			fmt.Sprintf("/nvram?os=%d&switch=%d", osFlags, switchFlags))
	}

	pl := nvram.NewPayload(osFlags, switchFlags)
	return w.withPartition(true, func(p *nvram.Partition) error {
		if err := p.Write(pl); err != nil {
			return err
		}
		fmt.Printf("wrote os flags: 0x%02x, switch flags: 0x%02x\n",
			pl.OSFlags(), pl.SwitchFlags())
		return nil
	})
}

//
func flagsByte(name string, val int) (byte, error) {
	if val < 0 {
		return 0, fmt.Errorf("you need to specify the --%s command line flag", name)
	}
	if val > 0xff {
		return 0, fmt.Errorf("invalid %s flags: %d; must fit into one byte", name, val)
	}
	return byte(val), nil
}
