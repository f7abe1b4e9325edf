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
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelalexv/nvflash/pkg/daemon"
	"github.com/xelalexv/nvflash/pkg/flash"
	"github.com/xelalexv/nvflash/pkg/nvram"
)

const (
	testAddress = flash.DefaultBlockSize
	testSize    = flash.DefaultBlockSize
)

type fixture struct {
	api    *api
	server *httptest.Server
	mem    *flash.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := flash.NewMemory(2*flash.DefaultBlockSize, 0)
	d := daemon.NewDaemon(daemon.DeviceOpener(mem), testAddress, testSize)
	go d.Serve()
	require.Eventually(t, func() bool {
		state, _ := d.GetStatus(context.Background())
		return state == daemon.StatusIdle
	}, time.Second, time.Millisecond)

	a := newAPI("", d)
	a.pollInterval = 5 * time.Millisecond
	s := httptest.NewServer(a.router())

	t.Cleanup(func() {
		s.Close()
		d.Stop()
	})
	return &fixture{api: a, server: s, mem: mem}
}

func (f *fixture) call(t *testing.T, method, path string, json bool) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, nil)
	require.NoError(t, err)
	if json {
		req.Header.Add("Accept", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestAPIUnformatted(t *testing.T) {
	f := newFixture(t)

	code, body := f.call(t, "GET", "/nvram", false)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, body, "bad partition magic")

	code, body = f.call(t, "GET", "/status", false)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "not formatted")

	code, _ = f.call(t, "PUT", "/nvram?os=1&switch=2", false)
	assert.Equal(t, http.StatusConflict, code)
}

func TestAPIFormatWriteRead(t *testing.T) {
	f := newFixture(t)

	code, body := f.call(t, "PUT", "/nvram/format", false)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "partition formatted")

	code, _ = f.call(t, "GET", "/nvram", false)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = f.call(t, "PUT", "/nvram?os=0x12&switch=52", false)
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, "os flags: 0x12, switch flags: 0x34")

	code, body = f.call(t, "GET", "/nvram", true)
	require.Equal(t, http.StatusOK, code)
	var s Settings
	require.NoError(t, json.Unmarshal([]byte(body), &s))
	assert.Equal(t, nvram.NewPayload(0x12, 0x34), s.Payload())

	code, body = f.call(t, "GET", "/status", true)
	require.Equal(t, http.StatusOK, code)
	var stat Status
	require.NoError(t, json.Unmarshal([]byte(body), &stat))
	assert.Equal(t, daemon.StatusIdle, stat.State)
	assert.True(t, stat.Formatted)
	assert.Equal(t, uint32(testSize), stat.Size)
	assert.Equal(t, 511, stat.Slots)
	assert.Equal(t, uint64(2), stat.Writes)
}

func TestAPIFormatKeepsExisting(t *testing.T) {
	f := newFixture(t)

	f.call(t, "PUT", "/nvram/format", false)
	f.call(t, "PUT", "/nvram?os=1&switch=2", false)

	code, body := f.call(t, "PUT", "/nvram/format", false)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "already formatted")

	code, _ = f.call(t, "GET", "/nvram", false)
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.call(t, "PUT", "/nvram/format?force=true", false)
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.call(t, "GET", "/nvram", false)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPIBadArguments(t *testing.T) {
	f := newFixture(t)

	code, _ := f.call(t, "PUT", "/nvram/format?size=64", false)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = f.call(t, "PUT", "/nvram/format?size=abc", false)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = f.call(t, "PUT", "/nvram?os=256&switch=0", false)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	f.call(t, "PUT", "/nvram/format", false)
	code, _ = f.call(t, "PUT", "/nvram?os=0xaa&switch=0xbb", false)
	require.Equal(t, http.StatusOK, code)

	for _, query := range []string{"", "?os=1", "?switch=2", "?os=&switch=2"} {
		code, body := f.call(t, "PUT", "/nvram"+query, false)
		assert.Equal(t, http.StatusUnprocessableEntity, code, query)
		assert.Contains(t, body, "argument", query)
	}

	code, body := f.call(t, "GET", "/nvram", false)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "os flags: 0xaa, switch flags: 0xbb")
	assert.Equal(t, uint64(2), f.api.daemon.Writes())
}

func TestAPIEraseFailure(t *testing.T) {
	f := newFixture(t)
	f.mem.StuckBits(testAddress+10, 0x01)

	code, body := f.call(t, "PUT", "/nvram/format?force=true", false)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body, "erase verification failed")
}

func TestAPIListAndDump(t *testing.T) {
	f := newFixture(t)
	f.call(t, "PUT", "/nvram/format", false)
	f.call(t, "PUT", "/nvram?os=0xaa&switch=0xbb", false)

	code, body := f.call(t, "GET", "/nvram/list", false)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "0x00000165  0xaa  0xbb    valid")

	code, body = f.call(t, "GET", "/nvram/list", true)
	require.Equal(t, http.StatusOK, code)
	var slots []Slot
	require.NoError(t, json.Unmarshal([]byte(body), &slots))
	require.Len(t, slots, 511)
	assert.Equal(t, "valid", slots[0].State)
	assert.Equal(t, byte(0xaa), slots[0].OSFlags)
	assert.Equal(t, "free", slots[1].State)

	code, body = f.call(t, "GET", "/nvram/dump", false)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "4e 56 52 4d 00 00 10 00")

	f.call(t, "PUT", "/nvram/format?force=true&size=0", false)
	f.mem.StuckBits(testAddress, 0xff)
	f.mem.EraseBlock(testAddress)
	code, _ = f.call(t, "GET", "/nvram/dump", false)
	assert.Equal(t, http.StatusConflict, code)
}

func TestAPIWatch(t *testing.T) {
	f := newFixture(t)
	f.call(t, "PUT", "/nvram/format", false)

	go f.api.watchDaemon()
	defer close(f.api.stop)

	type result struct {
		code int
		body string
	}
	done := make(chan result)
	go func() {
		code, body := f.call(t, "GET", "/watch?timeout=5", true)
		done <- result{code, body}
	}()

	// wait until the watcher is queued, then trigger a change
	time.Sleep(50 * time.Millisecond)
	f.call(t, "PUT", "/nvram?os=7&switch=8", false)

	select {
	case r := <-done:
		require.Equal(t, http.StatusOK, r.code)
		var c Change
		require.NoError(t, json.NewDecoder(strings.NewReader(r.body)).Decode(&c))
		require.NotNil(t, c.Settings)
		assert.Equal(t, nvram.NewPayload(7, 8), c.Settings.Payload())
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}
