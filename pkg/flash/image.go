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
	"errors"
	"fmt"
	"io/ioutil"
	"os"

	log "github.com/sirupsen/logrus"
)

/*
	OpenImage opens the flash image file at path. An existing file determines
	the flash size and size is ignored. Otherwise, a new, fully erased image of
	the given size is created. Changes are only persisted on Sync or Close.
*/
func OpenImage(path string, size, blockSize uint32) (*Image, error) {

	data, err := ioutil.ReadFile(path)

	if err == nil {
		log.WithFields(log.Fields{
			"image": path,
			"size":  len(data),
		}).Debug("loading flash image")
		img := &Image{path: path, Memory: NewMemory(uint32(len(data)), blockSize)}
		if err := img.load(data); err != nil {
			return nil, err
		}
		return img, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if size == 0 {
		return nil, fmt.Errorf("image %s does not exist and no size given", path)
	}

	log.WithFields(log.Fields{
		"image": path,
		"size":  size,
	}).Info("creating erased flash image")

	img := &Image{path: path, Memory: NewMemory(size, blockSize)}
	return img, img.Sync()
}

// Image is a Memory flash persisted in a file.
type Image struct {
	*Memory
	path string
}

//
func (i *Image) Path() string {
	return i.path
}

//
func (i *Image) Sync() error {
	if err := ioutil.WriteFile(i.path, i.Bytes(), 0644); err != nil {
		return fmt.Errorf("error writing flash image %s: %w", i.path, err)
	}
	return nil
}

//
func (i *Image) Close() error {
	return i.Sync()
}
