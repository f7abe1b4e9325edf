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

package daemon

import (
	"github.com/xelalexv/nvflash/pkg/flash"
)

// SerialOpener opens a programmer adapter on a serial port.
func SerialOpener(port string) Opener {
	return func() (flash.Device, error) {
		return flash.OpenSerial(port)
	}
}

// ImageOpener opens a flash image file, creating an erased one of flashSize
// bytes if it does not exist yet.
func ImageOpener(path string, flashSize, blockSize uint32) Opener {
	return func() (flash.Device, error) {
		return flash.OpenImage(path, flashSize, blockSize)
	}
}

// DeviceOpener always hands out the same, already open device.
func DeviceOpener(d flash.Device) Opener {
	return func() (flash.Device, error) {
		return d, nil
	}
}
