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
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/nvflash/pkg/flash"
	"github.com/xelalexv/nvflash/pkg/nvram"
)

//
const (
	StatusIdle    = "idle"
	StatusBusy    = "busy"
	StatusOffline = "offline"
)

//
var (
	ErrDaemonStopped = errors.New("daemon stopped")
	ErrBusy          = errors.New("partition busy")
	ErrNotReady      = errors.New("flash device not ready")
)

// Opener opens the flash device the daemon works on.
type Opener func() (flash.Device, error)

//
type syncer interface {
	Sync() error
}

/*
	Daemon owns one flash device and the NVRAM partition on it. The store
	itself does no locking, so the daemon serializes all partition operations
	coming in from the API. If the device fails with an I/O error, it gets
	closed and opened again.
*/
type Daemon struct {
	//
	opener  Opener
	address uint32
	size    uint32
	//
	partition *nvram.Partition
	lock      chan bool
	reset     chan bool
	stop      chan bool
	stopOnce  sync.Once
	//
	writes      uint64
	lockTimeout time.Duration
	backoff     time.Duration
}

//
func NewDaemon(o Opener, address, size uint32) *Daemon {
	return &Daemon{
		opener:      o,
		address:     address,
		size:        size,
		lock:        make(chan bool, 1),
		reset:       make(chan bool, 1),
		stop:        make(chan bool),
		lockTimeout: time.Second,
		backoff:     time.Second,
	}
}

// Serve opens the device and keeps it open until Stop is called. It always
// returns a non-nil error, ErrDaemonStopped after a regular stop.
func (d *Daemon) Serve() error {

	for {
		if err := d.ResetDevice(); err != nil {
			return err
		}

		select {
		case <-d.stop:
			d.closeDevice()
			return ErrDaemonStopped
		case <-d.reset:
			log.Warn("flash device failed, resetting")
		}
	}
}

//
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		log.Info("daemon stopping...")
		close(d.stop)
	})
}

// ResetDevice closes the current device if any, and opens it again. Opening
// is retried with exponential backoff until it succeeds or the daemon stops.
func (d *Daemon) ResetDevice() error {

	d.closeDevice()

	maxBackoff := 15 * time.Second

	for backoff := d.backoff; ; {
		log.WithField("address", fmt.Sprintf("0x%06x", d.address)).Info(
			"opening flash device")

		dev, err := d.opener()
		if err == nil {
			d.lock <- true
			d.partition = nvram.NewPartition(dev, d.address)
			<-d.lock
			return nil
		}

		log.Errorf("cannot open flash device: %v", err)
		if backoff < maxBackoff {
			backoff *= 2
		}

		select {
		case <-d.stop:
			return ErrDaemonStopped
		case <-time.After(backoff):
		}
	}
}

//
func (d *Daemon) closeDevice() {

	d.lock <- true
	defer func() { <-d.lock }()

	if d.partition == nil {
		return
	}

	if c, ok := d.partition.Device().(io.Closer); ok {
		log.Info("closing flash device")
		if err := c.Close(); err != nil {
			log.Errorf("error closing flash device: %v", err)
		}
	}
	d.partition = nil
}

/*
	do runs op on the partition while holding the partition lock. Lock
	acquisition gives up after the lock timeout, or when ctx is done.
*/
func (d *Daemon) do(ctx context.Context, write bool,
	op func(p *nvram.Partition) error) error {
	return d.doChange(ctx, func(p *nvram.Partition) (bool, error) {
		return write, op(p)
	})
}

/*
	doChange is like do, but op reports whether it changed the flash. Only
	then does the device get synced, and a successful change counted as a
	write.
*/
func (d *Daemon) doChange(ctx context.Context,
	op func(p *nvram.Partition) (bool, error)) error {

	ctx, cancel := context.WithTimeout(ctx, d.lockTimeout)
	defer cancel()

	select {
	case d.lock <- true:
	case <-ctx.Done():
		return ErrBusy
	}
	defer func() { <-d.lock }()

	if d.partition == nil {
		return ErrNotReady
	}

	changed, err := op(d.partition)

	if changed {
		if s, ok := d.partition.Device().(syncer); ok {
			if serr := s.Sync(); serr != nil && err == nil {
				err = serr
			}
		}
		if err == nil {
			atomic.AddUint64(&d.writes, 1)
		}
	}

	if err != nil && isDeviceError(err) {
		select {
		case d.reset <- true:
		default:
		}
	}

	return err
}

//
func isDeviceError(err error) bool {
	for _, e := range []error{
		nvram.ErrInvalidArgument, nvram.ErrBadMagic, nvram.ErrVerifyEraseFailed,
		nvram.ErrNoEntries, nvram.ErrNoValidEntry, nvram.ErrFull,
		nvram.ErrWriteFailed} {
		if errors.Is(err, e) {
			return false
		}
	}
	return true
}

// Format formats the partition. A size of zero uses the daemon's default.
func (d *Daemon) Format(ctx context.Context, size uint32) error {
	if size == 0 {
		size = d.size
	}
	return d.do(ctx, true, func(p *nvram.Partition) error {
		log.WithField("size", size).Info("formatting partition")
		return p.Format(size)
	})
}

// FormatIfNeeded formats the partition only if it has no valid header.
func (d *Daemon) FormatIfNeeded(ctx context.Context, size uint32) (bool, error) {
	if size == 0 {
		size = d.size
	}
	formatted := false
	err := d.doChange(ctx, func(p *nvram.Partition) (bool, error) {
		ok, err := p.IsFormatted()
		if err != nil || ok {
			return false, err
		}
		log.WithField("size", size).Info("partition not formatted, formatting")
		formatted = true
		return true, p.Format(size)
	})
	return formatted, err
}

//
func (d *Daemon) Read(ctx context.Context) (nvram.Payload, error) {
	var ret nvram.Payload
	err := d.do(ctx, false, func(p *nvram.Partition) error {
		var err error
		ret, err = p.Read()
		return err
	})
	return ret, err
}

//
func (d *Daemon) Write(ctx context.Context, pl nvram.Payload) error {
	return d.do(ctx, true, func(p *nvram.Partition) error {
		log.WithField("payload", pl).Info("writing settings")
		return p.Write(pl)
	})
}

/*
	Load returns the stored settings, or defaults if there are none. With
	autoFormat set, an unformatted partition gets formatted, which counts as
	a write.
*/
func (d *Daemon) Load(ctx context.Context, defaults nvram.Payload,
	autoFormat bool) (nvram.Payload, error) {
	var ret nvram.Payload
	err := d.doChange(ctx, func(p *nvram.Partition) (bool, error) {
		formatted, err := p.IsFormatted()
		if err != nil {
			return false, err
		}
		ret, err = p.Load(defaults, autoFormat, d.size)
		return autoFormat && !formatted, err
	})
	return ret, err
}

//
func (d *Daemon) Slots(ctx context.Context) ([]nvram.Slot, error) {
	var ret []nvram.Slot
	err := d.do(ctx, false, func(p *nvram.Partition) error {
		var err error
		ret, err = p.Slots()
		return err
	})
	return ret, err
}

//
func (d *Daemon) List(ctx context.Context, w io.Writer) error {
	return d.do(ctx, false, func(p *nvram.Partition) error {
		return p.List(w)
	})
}

//
func (d *Daemon) Dump(ctx context.Context, w io.Writer) error {
	return d.do(ctx, false, func(p *nvram.Partition) error {
		return p.Emit(w)
	})
}

//
func (d *Daemon) Address() uint32 {
	return d.address
}

// Writes is the number of successful writes and formats since start.
func (d *Daemon) Writes() uint64 {
	return atomic.LoadUint64(&d.writes)
}

// GetStatus returns the daemon state, and for an idle daemon the header of
// the partition, which is nil if the partition is not formatted.
func (d *Daemon) GetStatus(ctx context.Context) (string, *nvram.Header) {

	var hdr *nvram.Header
	err := d.do(ctx, false, func(p *nvram.Partition) error {
		var err error
		if hdr, err = p.Header(); err != nil {
			if ok, ferr := p.IsFormatted(); ferr == nil && !ok {
				return nil
			}
		}
		return err
	})

	switch {
	case err == nil:
		return StatusIdle, hdr
	case errors.Is(err, ErrBusy):
		return StatusBusy, nil
	default:
		return StatusOffline, nil
	}
}
