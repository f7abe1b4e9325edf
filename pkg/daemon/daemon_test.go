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
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelalexv/nvflash/pkg/flash"
	"github.com/xelalexv/nvflash/pkg/nvram"
)

const (
	testAddress = flash.DefaultBlockSize
	testSize    = flash.DefaultBlockSize
)

func startDaemon(t *testing.T, o Opener) *Daemon {
	t.Helper()
	d := NewDaemon(o, testAddress, testSize)
	d.backoff = time.Millisecond
	done := make(chan error)
	go func() { done <- d.Serve() }()
	t.Cleanup(func() {
		d.Stop()
		assert.ErrorIs(t, <-done, ErrDaemonStopped)
	})
	require.Eventually(t, func() bool {
		state, _ := d.GetStatus(context.Background())
		return state != StatusOffline
	}, time.Second, time.Millisecond)
	return d
}

func TestDaemonFormatWriteRead(t *testing.T) {
	mem := flash.NewMemory(2*flash.DefaultBlockSize, 0)
	d := startDaemon(t, DeviceOpener(mem))
	ctx := context.Background()

	state, hdr := d.GetStatus(ctx)
	assert.Equal(t, StatusIdle, state)
	assert.Nil(t, hdr)

	require.NoError(t, d.Format(ctx, 0))
	require.NoError(t, d.Write(ctx, nvram.NewPayload(0x12, 0x34)))

	pl, err := d.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, nvram.NewPayload(0x12, 0x34), pl)
	assert.Equal(t, uint64(2), d.Writes())

	state, hdr = d.GetStatus(ctx)
	assert.Equal(t, StatusIdle, state)
	require.NotNil(t, hdr)
	assert.Equal(t, uint32(testSize), hdr.PartitionSize)

	slots, err := d.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, nvram.SlotValid, slots[0].State)

	var out bytes.Buffer
	require.NoError(t, d.List(ctx, &out))
	assert.Contains(t, out.String(), "valid")
	out.Reset()
	require.NoError(t, d.Dump(ctx, &out))
	assert.Contains(t, out.String(), "4e 56 52 4d")
}

func TestDaemonFormatIfNeeded(t *testing.T) {
	d := startDaemon(t, DeviceOpener(flash.NewMemory(2*flash.DefaultBlockSize, 0)))
	ctx := context.Background()

	formatted, err := d.FormatIfNeeded(ctx, 0)
	require.NoError(t, err)
	assert.True(t, formatted)

	require.NoError(t, d.Write(ctx, nvram.NewPayload(1, 1)))

	formatted, err = d.FormatIfNeeded(ctx, 0)
	require.NoError(t, err)
	assert.False(t, formatted)
	assert.Equal(t, uint64(2), d.Writes())

	pl, err := d.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, nvram.NewPayload(1, 1), pl)
}

func TestDaemonLoad(t *testing.T) {
	d := startDaemon(t, DeviceOpener(flash.NewMemory(2*flash.DefaultBlockSize, 0)))
	ctx := context.Background()
	defaults := nvram.NewPayload(0xde, 0xad)

	_, err := d.Load(ctx, defaults, false)
	assert.ErrorIs(t, err, nvram.ErrBadMagic)

	assert.Equal(t, uint64(0), d.Writes())

	pl, err := d.Load(ctx, defaults, true)
	require.NoError(t, err)
	assert.Equal(t, defaults, pl)
	assert.Equal(t, uint64(1), d.Writes())

	_, err = d.Read(ctx)
	assert.ErrorIs(t, err, nvram.ErrNoEntries)

	require.NoError(t, d.Write(ctx, nvram.NewPayload(0x12, 0x34)))
	for ix := 0; ix < 3; ix++ {
		pl, err = d.Load(ctx, defaults, true)
		require.NoError(t, err)
		assert.Equal(t, nvram.NewPayload(0x12, 0x34), pl)
	}
	assert.Equal(t, uint64(2), d.Writes())
}

func TestDaemonBusy(t *testing.T) {
	d := startDaemon(t, DeviceOpener(flash.NewMemory(2*flash.DefaultBlockSize, 0)))
	d.lockTimeout = 10 * time.Millisecond

	d.lock <- true
	_, err := d.Read(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	state, _ := d.GetStatus(context.Background())
	assert.Equal(t, StatusBusy, state)
	<-d.lock
}

func TestDaemonNotReady(t *testing.T) {
	d := NewDaemon(DeviceOpener(flash.NewMemory(16, 16)), 0, testSize)
	_, err := d.Read(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	state, _ := d.GetStatus(context.Background())
	assert.Equal(t, StatusOffline, state)
}

// flakyDevice fails reads while broken is set
type flakyDevice struct {
	*flash.Memory
	broken int32
	closed int32
}

func (f *flakyDevice) ReadByteAt(addr uint32) (byte, error) {
	if atomic.LoadInt32(&f.broken) != 0 {
		return 0, errors.New("line noise")
	}
	return f.Memory.ReadByteAt(addr)
}

func (f *flakyDevice) Close() error {
	atomic.AddInt32(&f.closed, 1)
	return nil
}

func TestDaemonResetsOnDeviceError(t *testing.T) {
	dev := &flakyDevice{Memory: flash.NewMemory(2*flash.DefaultBlockSize, 0)}
	var opened int32
	d := startDaemon(t, func() (flash.Device, error) {
		atomic.AddInt32(&opened, 1)
		return dev, nil
	})
	ctx := context.Background()

	require.NoError(t, d.Format(ctx, 0))

	atomic.StoreInt32(&dev.broken, 1)
	_, err := d.Read(ctx)
	require.Error(t, err)
	atomic.StoreInt32(&dev.broken, 0)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&opened) == 2
	}, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&dev.closed), int32(1))

	require.Eventually(t, func() bool {
		_, err := d.Read(ctx)
		return errors.Is(err, nvram.ErrNoEntries)
	}, time.Second, time.Millisecond)
}

func TestDaemonRetriesOpen(t *testing.T) {
	var attempts int32
	mem := flash.NewMemory(2*flash.DefaultBlockSize, 0)
	d := startDaemon(t, func() (flash.Device, error) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return nil, errors.New("no such port")
		}
		return mem, nil
	})
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.NoError(t, d.Format(context.Background(), 0))
}

func TestDaemonStopWhileOpening(t *testing.T) {
	d := NewDaemon(func() (flash.Device, error) {
		return nil, errors.New("no such port")
	}, 0, testSize)
	d.backoff = time.Millisecond

	done := make(chan error)
	go func() { done <- d.Serve() }()
	time.Sleep(10 * time.Millisecond)
	d.Stop()
	assert.ErrorIs(t, <-done, ErrDaemonStopped)
}

func TestDaemonImagePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.img")
	d := startDaemon(t, ImageOpener(path, 2*flash.DefaultBlockSize, 0))
	ctx := context.Background()

	require.NoError(t, d.Format(ctx, 0))
	require.NoError(t, d.Write(ctx, nvram.NewPayload(0x55, 0x66)))

	img, err := flash.OpenImage(path, 0, 0)
	require.NoError(t, err)
	pl, err := nvram.NewPartition(img, testAddress).Read()
	require.NoError(t, err)
	assert.Equal(t, nvram.NewPayload(0x55, 0x66), pl)
}
