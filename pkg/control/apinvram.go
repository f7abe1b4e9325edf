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
	"net/http"
)

//
func (a *api) read(w http.ResponseWriter, req *http.Request) {

	pl, err := a.daemon.Read(req.Context())
	if handleError(err, statusCode(err), w) {
		return
	}

	s := newSettings(pl)
	if wantsJSON(req) {
		sendJSONReply(s, http.StatusOK, w)
	} else {
		sendReply([]byte(s.String()), http.StatusOK, w)
	}
}

//
func (a *api) write(w http.ResponseWriter, req *http.Request) {

	osFlags, err := getRequiredUintArg(req, "os", 8)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	switchFlags, err := getRequiredUintArg(req, "switch", 8)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	s := &Settings{OSFlags: byte(osFlags), SwitchFlags: byte(switchFlags)}
	if err := a.daemon.Write(req.Context(), s.Payload()); handleError(
		err, statusCode(err), w) {
		return
	}

	sendReply([]byte(fmt.Sprintf("wrote %s", s)), http.StatusOK, w)
}

//
func (a *api) format(w http.ResponseWriter, req *http.Request) {

	size, err := getUintArg(req, "size", 32, 0)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	if isFlagSet(req, "force") {
		if err := a.daemon.Format(req.Context(), uint32(size)); handleError(
			err, statusCode(err), w) {
			return
		}
		sendReply([]byte("partition formatted"), http.StatusOK, w)
		return
	}

	formatted, err := a.daemon.FormatIfNeeded(req.Context(), uint32(size))
	if handleError(err, statusCode(err), w) {
		return
	}

	if formatted {
		sendReply([]byte("partition formatted"), http.StatusOK, w)
	} else {
		sendReply([]byte(
			"partition already formatted, use force to discard settings"),
			http.StatusOK, w)
	}
}
