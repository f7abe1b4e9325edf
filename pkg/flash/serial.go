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

package flash

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"
)

//
const frameLength = 6
const helloLength = 4
const maxSyncBytes = 4096

// command bytes understood by the programmer adapter
const (
	CmdRead    = 'r'
	CmdProgram = 'w'
	CmdErase   = 'e'
)

// adapter replies to program and erase
const (
	ReplyAck  = 'k'
	ReplyNack = 'x'
)

//
var helloAdapter = []byte("hlof")
var helloHost = []byte("hlod")

//
func OpenSerial(port string) (*Serial, error) {
	p, err := serial.Open(serial.OpenOptions{
		PortName:        port,
		BaudRate:        1000000,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
	if err != nil {
		return nil, err
	}
	s, err := NewSerial(p)
	if err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

/*
	NewSerial wraps a connection to a flash programmer adapter and syncs with
	it. The adapter keeps sending its hello until it sees ours, so anything
	before the first complete hello is discarded.
*/
func NewSerial(port io.ReadWriteCloser) (*Serial, error) {
	s := &Serial{port: port, frame: make([]byte, frameLength)}
	if err := s.syncOnHello(); err != nil {
		return nil, err
	}
	return s, nil
}

// Serial is a flash device behind a serial programmer adapter.
type Serial struct {
	port  io.ReadWriteCloser
	frame []byte
	mutex sync.Mutex
}

//
func (s *Serial) Close() error {
	return s.port.Close()
}

//
func (s *Serial) ReadByteAt(addr uint32) (byte, error) {
	return s.transact(CmdRead, addr, 0)
}

//
func (s *Serial) ProgramByte(addr uint32, b byte) error {
	return s.expectAck(s.transact(CmdProgram, addr, b))
}

//
func (s *Serial) EraseBlock(addr uint32) error {
	log.WithField("address", fmt.Sprintf("0x%06x", addr)).Debug("erase via adapter")
	return s.expectAck(s.transact(CmdErase, addr, 0))
}

//
func (s *Serial) syncOnHello() error {

	log.Info("syncing with flash adapter")
	hello := make([]byte, helloLength)

	for count := 0; !bytes.Equal(hello, helloAdapter); count++ {
		if count > maxSyncBytes {
			return fmt.Errorf("no hello from adapter within %d bytes", maxSyncBytes)
		}
		copy(hello, hello[1:])
		if _, err := io.ReadFull(s.port, hello[helloLength-1:]); err != nil {
			return err
		}
	}

	if _, err := s.port.Write(helloHost); err != nil {
		return fmt.Errorf("error sending host hello: %w", err)
	}

	log.Info("synced with flash adapter")
	return nil
}

//
func (s *Serial) transact(cmd byte, addr uint32, data byte) (byte, error) {

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.frame[0] = cmd
	binary.BigEndian.PutUint32(s.frame[1:5], addr)
	s.frame[5] = data

	if _, err := s.port.Write(s.frame); err != nil {
		return 0, fmt.Errorf("error sending command '%c': %w", cmd, err)
	}

	reply := make([]byte, 1)
	if _, err := io.ReadFull(s.port, reply); err != nil {
		return 0, fmt.Errorf("error receiving reply to '%c': %w", cmd, err)
	}
	return reply[0], nil
}

//
func (s *Serial) expectAck(reply byte, err error) error {
	if err != nil {
		return err
	}
	switch reply {
	case ReplyAck:
		return nil
	case ReplyNack:
		return fmt.Errorf("adapter rejected command")
	default:
		return fmt.Errorf("unexpected adapter reply: 0x%02x", reply)
	}
}
