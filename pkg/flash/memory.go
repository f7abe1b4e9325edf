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
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

//
func NewMemory(size, blockSize uint32) *Memory {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	m := &Memory{
		data:      make([]byte, size),
		blockSize: blockSize,
		stuck:     map[uint32]byte{},
	}
	for ix := range m.data {
		m.data[ix] = Erased
	}
	return m
}

// Memory is an emulated NOR flash held in RAM.
type Memory struct {
	data      []byte
	blockSize uint32
	// bits that read as zero no matter what, keyed by address
	stuck map[uint32]byte
	//
	mutex sync.Mutex
}

//
func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

//
func (m *Memory) BlockSize() uint32 {
	return m.blockSize
}

//
func (m *Memory) ReadByteAt(addr uint32) (byte, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.check(addr); err != nil {
		return 0, err
	}
	return m.data[addr], nil
}

//
func (m *Memory) ProgramByte(addr uint32, b byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.check(addr); err != nil {
		return err
	}
	m.data[addr] &= b
	return nil
}

//
func (m *Memory) EraseBlock(addr uint32) error {

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.check(addr); err != nil {
		return err
	}

	start := addr - addr%m.blockSize
	end := start + m.blockSize
	if end > uint32(len(m.data)) {
		end = uint32(len(m.data))
	}

	log.WithFields(log.Fields{
		"start": fmt.Sprintf("0x%06x", start),
		"end":   fmt.Sprintf("0x%06x", end),
	}).Trace("erasing block")

	for ix := start; ix < end; ix++ {
		m.data[ix] = Erased &^ m.stuck[ix]
	}
	return nil
}

/*
	StuckBits marks the bits set in mask at addr as permanently programmed,
	i.e. they read as zero even after an erase. This simulates a worn out
	cell. A zero mask heals the address again. Takes effect with the next
	erase of the containing block.
*/
func (m *Memory) StuckBits(addr uint32, mask byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if mask == 0 {
		delete(m.stuck, addr)
	} else {
		m.stuck[addr] = mask
	}
}

// Bytes returns a copy of the complete flash content.
func (m *Memory) Bytes() []byte {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	ret := make([]byte, len(m.data))
	copy(ret, m.data)
	return ret
}

// load replaces the flash content with data, which must match in size.
func (m *Memory) load(data []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(data) != len(m.data) {
		return fmt.Errorf("image size mismatch, want %d, got %d",
			len(m.data), len(data))
	}
	copy(m.data, data)
	return nil
}

//
func (m *Memory) check(addr uint32) error {
	if addr >= uint32(len(m.data)) {
		return fmt.Errorf("%w: 0x%06x, flash size is 0x%06x",
			ErrOutOfRange, addr, len(m.data))
	}
	return nil
}
