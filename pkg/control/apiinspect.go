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
	"io"
	"net/http"
)

//
func (a *api) list(w http.ResponseWriter, req *http.Request) {

	if wantsJSON(req) {
		slots, err := a.daemon.Slots(req.Context())
		if handleError(err, statusCode(err), w) {
			return
		}
		ret := make([]*Slot, 0, len(slots))
		for _, s := range slots {
			ret = append(ret, newSlot(s))
		}
		sendJSONReply(ret, http.StatusOK, w)
		return
	}

	a.partitionInfo(w, req, "ls")
}

//
func (a *api) dump(w http.ResponseWriter, req *http.Request) {
	a.partitionInfo(w, req, "dump")
}

// partitionInfo streams a listing or dump. Errors can only be reported before
// the first byte got written, so the header is checked first.
func (a *api) partitionInfo(w http.ResponseWriter, req *http.Request, info string) {

	if _, err := a.daemon.Slots(req.Context()); handleError(
		err, statusCode(err), w) {
		return
	}

	read, write := io.Pipe()
	defer read.Close()

	go func() {
		var err error
		switch info {
		case "dump":
			err = a.daemon.Dump(req.Context(), write)
		case "ls":
			err = a.daemon.List(req.Context(), write)
		}
		write.CloseWithError(err)
	}()

	sendStreamReply(read, http.StatusOK, w)
}
