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
	"io"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/xelalexv/nvflash/pkg/control"
	"github.com/xelalexv/nvflash/pkg/flash"
	"github.com/xelalexv/nvflash/pkg/nvram"
)

//
const DefaultFlashSize = 0x80000

//
const runnerHelpEpilogue = `- When a flag can be set via environment variable, the variable name is given
  in parenthesis at the end of the flag explanation. Note however that a flag,
  when specified overrides an environment variable.
`

const localHelpEpilogue = `- With --image, the command works directly on a flash image file and no daemon
  is needed. Without it, the command is sent to the daemon's API server.

` + runnerHelpEpilogue

/*
	NewRunner creates a base runner for commands to use. The parameters are
	passed to the base command wrapped by this runner.
*/
func NewRunner(use, short, long, helpPrologue, helpEpilogue string,
	exec func() error) *Runner {
	return &Runner{
		Command: *NewCommand(
			use, short, long, helpPrologue, helpEpilogue, exec),
	}
}

//
type Runner struct {
	//
	Command
	//
	Port int
	//
	Image     string
	FlashSize uint32
	Address   uint32
}

//
func (r *Runner) AddBaseSettings() {
	r.AddSetting(&r.Port, "port", "p", "NVFLASH_PORT", control.DefaultPort,
		"port of daemon's API server", false)
}

// AddPartitionSettings adds the settings needed for locating the partition.
func (r *Runner) AddPartitionSettings() {
	r.AddSetting(&r.Image, "image", "i", "NVFLASH_IMAGE", nil,
		"flash image file to work on instead of calling the daemon", false)
	r.AddSetting(&r.FlashSize, "flash-size", "", "NVFLASH_FLASH_SIZE",
		uint32(DefaultFlashSize),
		"size of flash when a new image file gets created", false)
	r.AddSetting(&r.Address, "address", "a", "NVFLASH_ADDRESS",
		uint32(nvram.DefaultOffset), "flash address of partition", false)
}

//
func (r *Runner) local() bool {
	return r.Image != ""
}

/*
	withPartition opens the image file, hands the partition to fn, and writes
	the image back if fn changed anything.
*/
func (r *Runner) withPartition(write bool, fn func(p *nvram.Partition) error) error {

	img, err := flash.OpenImage(r.Image, r.FlashSize, 0)
	if err != nil {
		return err
	}

	if err := fn(nvram.NewPartition(img, r.Address)); err != nil {
		if write {
			// a failed write may still have changed the flash
			img.Sync()
		}
		return err
	}

	if write {
		return img.Sync()
	}
	return nil
}

//
func (r *Runner) apiCall(method, path string, json bool,
	body io.Reader) (io.ReadCloser, error) {

	client := &http.Client{}
	req, err := http.NewRequest(
		method, fmt.Sprintf("http://127.0.0.1:%d%s", r.Port, path), body)
	if err != nil {
		return nil, err
	}

	if json {
		req.Header.Add("Content-Type", "application/json")
		req.Header.Add("Accept", "application/json")
	} else {
		req.Header.Add("Content-Type", "text/plain")
		req.Header.Add("Accept", "text/plain")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		msg, _ := ioutil.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s: %s", resp.Status,
			strings.TrimSpace(string(msg)))
	}

	return resp.Body, nil
}

// printReply copies the reply of an API call to stdout.
func (r *Runner) printReply(method, path string) error {

	resp, err := r.apiCall(method, path, false, nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	msg, err := ioutil.ReadAll(resp)
	if err != nil {
		return err
	}

	fmt.Printf("%s", msg)
	return nil
}
