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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/nvflash/pkg/daemon"
	"github.com/xelalexv/nvflash/pkg/nvram"
)

//
const DefaultPort = 8888

//
type APIServer interface {
	Serve() error
	Stop() error
}

//
func NewAPIServer(addr string, d *daemon.Daemon) APIServer {
	return newAPI(addr, d)
}

//
func newAPI(addr string, d *daemon.Daemon) *api {
	return &api{
		address:       addr,
		daemon:        d,
		longPollQueue: make(chan chan *Change),
		stop:          make(chan bool),
		pollInterval:  2 * time.Second,
	}
}

//
type api struct {
	address string
	daemon  *daemon.Daemon
	server  *http.Server
	//
	longPollQueue chan chan *Change
	stop          chan bool
	pollInterval  time.Duration
}

//
func (a *api) Serve() error {

	addr := a.address
	if len(strings.Split(addr, ":")) < 2 {
		addr = fmt.Sprintf("%s:%d", a.address, DefaultPort)
	}

	log.Infof("NVFlash API starts listening on %s", addr)
	a.server = &http.Server{Addr: addr, Handler: a.router()}

	go a.watchDaemon()

	err := a.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

//
func (a *api) Stop() error {
	if a.server != nil {
		log.Info("API server stopping...")
		close(a.stop)
		err := a.server.Shutdown(context.Background())
		a.server = nil
		return err
	}
	return nil
}

//
func (a *api) router() *mux.Router {

	router := mux.NewRouter().StrictSlash(true)

	addRoute(router, "status", "GET", "/status", a.status)
	addRoute(router, "watch", "GET", "/watch", a.watch)
	addRoute(router, "read", "GET", "/nvram", a.read)
	addRoute(router, "write", "PUT", "/nvram", a.write)
	addRoute(router, "format", "PUT", "/nvram/format", a.format)
	addRoute(router, "ls", "GET", "/nvram/list", a.list)
	addRoute(router, "dump", "GET", "/nvram/dump", a.dump)

	return router
}

//
func addRoute(r *mux.Router, name, method, pattern string,
	handler http.HandlerFunc) {
	r.Methods(method).
		Path(pattern).
		Name(name).
		Handler(requestLogger(handler, name))
}

//
func requestLogger(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		log.WithFields(log.Fields{
			"remote": r.RemoteAddr,
			"method": r.Method,
			"path":   r.RequestURI,
		}).Debugf("API BEGIN | %s", name)

		start := time.Now()
		inner.ServeHTTP(w, r)

		log.WithFields(log.Fields{
			"remote":   r.RemoteAddr,
			"method":   r.Method,
			"path":     r.RequestURI,
			"duration": time.Since(start),
		}).Debugf("API END   | %s", name)
	})
}

// statusCode maps daemon and store errors to HTTP status codes
func statusCode(err error) int {
	switch {
	case errors.Is(err, daemon.ErrBusy):
		return http.StatusLocked
	case errors.Is(err, daemon.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, nvram.ErrInvalidArgument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, nvram.ErrBadMagic):
		return http.StatusConflict
	case errors.Is(err, nvram.ErrNoEntries), errors.Is(err, nvram.ErrNoValidEntry):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

//
func isFlagSet(req *http.Request, flag string) bool {
	arg, _ := getArg(req, flag)
	return arg == "true"
}

//
func getArg(req *http.Request, arg string) (string, error) {
	ret := req.URL.Query().Get(arg)
	if ret != "" {
		return url.QueryUnescape(ret)
	}
	return ret, nil
}

// getUintArg parses a decimal or 0x prefixed hex argument of the given bit
// size. A missing argument yields def.
func getUintArg(req *http.Request, arg string, bits int, def uint64) (uint64, error) {
	val, err := getArg(req, arg)
	if err != nil {
		return 0, err
	}
	if val == "" {
		return def, nil
	}
	ret, err := strconv.ParseUint(val, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %s", arg, val)
	}
	return ret, nil
}

// getRequiredUintArg is getUintArg for an argument that must be present.
func getRequiredUintArg(req *http.Request, arg string, bits int) (uint64, error) {
	if _, ok := req.URL.Query()[arg]; !ok {
		return 0, fmt.Errorf("missing argument: %s", arg)
	}
	val, err := getArg(req, arg)
	if err != nil {
		return 0, err
	}
	if val == "" {
		return 0, fmt.Errorf("empty argument: %s", arg)
	}
	return getUintArg(req, arg, bits, 0)
}

//
func setHeaders(h http.Header, json bool) {
	if json {
		h.Set("Content-Type", "application/json; charset=UTF-8")
	} else {
		h.Set("Content-Type", "text/plain; charset=UTF-8")
	}
}

//
func handleError(e error, statusCode int, w http.ResponseWriter) bool {

	if e == nil {
		return false
	}

	log.Errorf("%v", e)

	setHeaders(w.Header(), false)
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(fmt.Sprintf("%v\n", e))); err != nil {
		log.Errorf("problem writing error: %v", err)
	}

	return true
}

//
func sendReply(body []byte, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), false)
	w.WriteHeader(statusCode)
	if _, err := fmt.Fprintf(w, "%s\n", body); err != nil {
		log.Errorf("problem sending reply: %v", err)
	}
}

//
func sendStreamReply(r io.Reader, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), false)
	w.WriteHeader(statusCode)
	if _, err := io.Copy(w, r); err != nil {
		log.Errorf("problem sending reply: %v", err)
	}
}

//
func sendJSONReply(obj interface{}, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), true)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Errorf("problem writing reply: %v", err)
	}
}

//
func wantsJSON(req *http.Request) bool {
	return strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") ||
		strings.Contains(req.Header.Get("Accept"), "application/json")
}
