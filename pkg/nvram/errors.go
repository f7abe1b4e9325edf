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
	"errors"
)

//
var (
	// partition too small for MinEntries, or a malformed size
	ErrInvalidArgument = errors.New("invalid argument")
	// partition not formatted, or header corrupted
	ErrBadMagic = errors.New("bad partition magic")
	// erase did not yield all ones, flash cells are failing
	ErrVerifyEraseFailed = errors.New("erase verification failed")
	// no slot was ever written
	ErrNoEntries = errors.New("no entries")
	// slots are present, but none passes the checksum
	ErrNoValidEntry = errors.New("no valid entry")
	// no free slot after compaction; should never happen
	ErrFull = errors.New("partition full")
	// header read back after format does not match what was written
	ErrWriteFailed = errors.New("write failed")
)
