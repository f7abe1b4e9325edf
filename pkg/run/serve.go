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
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/nvflash/pkg/control"
	"github.com/xelalexv/nvflash/pkg/daemon"
	"github.com/xelalexv/nvflash/pkg/nvram"
)

//
func NewServe() *Serve {

	s := &Serve{}
	s.Runner = *NewRunner(
		`serve -d|--device {device} | -i|--image {file} [-a|--address {address}]
      [-s|--size {size}] [-l|--listen {address}] [-p|--port {port}] [--auto-format]`,
		"daemon & API server command",
		`Use the serve command for running the flash daemon and API server. The daemon
either talks to a flash programmer adapter on a serial port, or works on a flash
image file.`,
		"", `- Logging can be configured with these environment variables:

  LOG_FORMAT		set to 'json' for JSON logging
  LOG_FORCE_COLORS	set to non-empty for forcing colorized log entries
  LOG_METHODS		set to non-empty for including methods in log
  LOG_LEVEL		panic, fatal, error, warn, info, debug, trace

`+runnerHelpEpilogue, s.Run)

	s.AddBaseSettings()
	s.AddPartitionSettings()
	s.AddSetting(&s.Device, "device", "d", "NVFLASH_DEVICE", nil,
		"serial port device for programmer adapter", false)
	s.AddSetting(&s.Size, "size", "s", "NVFLASH_SIZE", uint32(nvram.DefaultSize),
		"partition size used when formatting", false)
	s.AddSetting(&s.Listen, "listen", "l", "NVFLASH_LISTEN", nil,
		"address for API server to listen on", false)
	s.AddSetting(&s.AutoFormat, "auto-format", "", "NVFLASH_AUTO_FORMAT", false,
		"format partition on start if it is not formatted", false)

	return s
}

//
type Serve struct {
	//
	Runner
	//
	Device     string
	Size       uint32
	Listen     string
	AutoFormat bool
}

//
func (s *Serve) opener() (daemon.Opener, error) {
	switch {
	case s.Device != "" && s.Image != "":
		return nil, fmt.Errorf("specify either device or image, not both")
	case s.Device != "":
		return daemon.SerialOpener(s.Device), nil
	case s.Image != "":
		return daemon.ImageOpener(s.Image, s.FlashSize, 0), nil
	}
	return nil, fmt.Errorf(
		"you need to specify the --device or the --image command line flag")
}

//
func (s *Serve) Run() error {

	s.ParseSettings()

	o, err := s.opener()
	if err != nil {
		return err
	}

	wg := &sync.WaitGroup{}
	wg.Add(2)

	d := daemon.NewDaemon(o, s.Address, s.Size)
	go func() {
		defer wg.Done()
		err := d.Serve()
		if err != nil && err != daemon.ErrDaemonStopped {
			log.Errorf("daemon closed with error: %v", err)
		} else {
			log.Info("daemon stopped")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if s.AutoFormat {
		go s.autoFormat(ctx, d)
	}

	api := control.NewAPIServer(fmt.Sprintf("%s:%d", s.Listen, s.Port), d)
	go func() {
		defer wg.Done()
		if err := api.Serve(); err != nil {
			log.Errorf("API server closed with error: %v", err)
		} else {
			log.Info("API server stopped")
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sigCount := 0
	done := make(chan bool)

	for {

		select {

		case sig := <-sigs: // interrupt signal
			log.WithField("signal", sig).Info("signal received")
			sigCount++

			switch sigCount {

			case 1:
				go func() {
					log.Info("shutting down, hit Ctrl-C twice to force exit...")
					cancel()
					api.Stop()
					d.Stop()
					wg.Wait()
					log.Info("NVFlash stopped")
					done <- true
				}()

			case 2:
				log.Warn("shutdown in progress, hit Ctrl-C again to force exit")

			default:
				log.Warn("forcing daemon to stop immediately")
				os.Exit(1)
			}

		case <-done: // shutdown sequence complete
			return nil
		}
	}
}

// autoFormat waits for the device to come up, then loads the settings,
// formatting the partition if needed.
func (s *Serve) autoFormat(ctx context.Context, d *daemon.Daemon) {
	for {
		pl, err := d.Load(ctx, nvram.Payload{}, true)
		switch {
		case err == nil:
			log.WithField("settings", pl).Info("partition ready")
			return
		case errors.Is(err, daemon.ErrNotReady), errors.Is(err, daemon.ErrBusy):
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		default:
			log.Errorf("auto format failed: %v", err)
			return
		}
	}
}
