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
	"context"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

//
func (a *api) watch(w http.ResponseWriter, req *http.Request) {

	timeout, err := strconv.Atoi(req.URL.Query().Get("timeout"))
	if err != nil || timeout < 0 || 1800 < timeout {
		timeout = 600
	}

	log.Infof("starting watch for %s, timeout %d", req.RemoteAddr, timeout)
	update := make(chan *Change)

	select {
	case a.longPollQueue <- update:
	case <-time.After(time.Duration(timeout) * time.Second):
		log.Infof("closing watch for %s after timeout", req.RemoteAddr)
		sendReply([]byte{}, http.StatusRequestTimeout, w)
		return
	case <-req.Context().Done():
		log.Infof("watch for %s cancelled", req.RemoteAddr)
		return
	}

	log.Infof("sending settings change to %s", req.RemoteAddr)
	sendJSONReply(<-update, http.StatusOK, w)
}

// watchDaemon notifies all waiting long poll clients whenever the daemon's
// write count changes.
func (a *api) watchDaemon() {

	log.Info("start watching for settings changes")
	writes := a.daemon.Writes()

	for {
		select {
		case <-a.stop:
			log.Info("stopped watching for settings changes")
			return
		case <-time.After(a.pollInterval):
		}

		current := a.daemon.Writes()
		if current == writes {
			continue
		}
		writes = current

		change := &Change{Writes: current}
		ctx, cancel := context.WithTimeout(context.Background(), a.pollInterval)
		if pl, err := a.daemon.Read(ctx); err == nil {
			change.Settings = newSettings(pl)
		}
		cancel()

		log.Info("settings changed")

	Loop:
		for {
			select {
			case cl := <-a.longPollQueue:
				log.Info("notifying long poll client")
				cl <- change
			default:
				log.Info("all long poll clients notified")
				break Loop
			}
		}
	}
}
