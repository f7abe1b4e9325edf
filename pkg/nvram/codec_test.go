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

package nvram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderLayout(t *testing.T) {
	data := NewHeader(4096).Encode()
	assert.Equal(t, []byte{'N', 'V', 'R', 'M', 0, 0, 0x10, 0}, data)

	hdr, err := DecodeHeader(data)
	require.NoError(t, err)
	assert.NoError(t, hdr.Validate())
	assert.Equal(t, 511, hdr.SlotCount())
}

func TestHeaderValidate(t *testing.T) {
	tests := []struct {
		name string
		hdr  Header
		want error
	}{
		{"erased", Header{FreeChecksum, FreeChecksum}, ErrBadMagic},
		{"zero", Header{}, ErrBadMagic},
		{"too small", Header{Magic, MinPartitionSize() - 1}, ErrInvalidArgument},
		{"minimum", Header{Magic, MinPartitionSize()}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.hdr.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestDecodeShortData(t *testing.T) {
	_, err := DecodeHeader(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = DecodeEntry(make([]byte, EntrySize-1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMinPartitionSize(t *testing.T) {
	assert.Equal(t, uint32(8+16*8), MinPartitionSize())
}

func TestChecksumIsAdditive(t *testing.T) {
	assert.Equal(t, uint32(0), Checksum(NewPayload(0, 0)))
	assert.Equal(t, uint32(0x165), Checksum(NewPayload(0xaa, 0xbb)))
	assert.Equal(t, uint32(0x1fe), Checksum(NewPayload(0xff, 0xff)))
}

func TestEntryLayout(t *testing.T) {
	e := NewEntry(NewPayload(0xaa, 0xbb))
	data := e.Encode()
	assert.Equal(t, []byte{0, 0, 0x01, 0x65, 0xaa, 0xbb, 0, 0}, data)

	dec, err := DecodeEntry(data)
	require.NoError(t, err)
	assert.True(t, dec.IsValid())
	assert.False(t, dec.IsFree())
	assert.NoError(t, dec.Validate())
}

func TestEntryPaddingNotInChecksum(t *testing.T) {
	data := NewEntry(NewPayload(1, 2)).Encode()
	data[6], data[7] = 0x55, 0xaa

	e, err := DecodeEntry(data)
	require.NoError(t, err)
	assert.True(t, e.IsValid())
}

func TestEntryStates(t *testing.T) {
	erased := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	e, err := DecodeEntry(erased)
	require.NoError(t, err)
	assert.True(t, e.IsFree())
	assert.False(t, e.IsValid())

	bad := NewEntry(NewPayload(1, 2)).Encode()
	bad[4] = 0
	e, err = DecodeEntry(bad)
	require.NoError(t, err)
	assert.False(t, e.IsFree())
	assert.False(t, e.IsValid())
	assert.Error(t, e.Validate())
}

func TestPayloadString(t *testing.T) {
	assert.Equal(t, "os: 0x0a, switch: 0xf0", NewPayload(0x0a, 0xf0).String())
}
