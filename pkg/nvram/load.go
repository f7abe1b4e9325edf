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
	"errors"

	log "github.com/sirupsen/logrus"
)

/*
	Load is what a settings loader at boot wants: the stored payload if there
	is one, otherwise defaults. An empty or completely corrupted log yields the
	defaults. An unformatted partition yields them too if autoFormat is set, in
	which case the partition is formatted with the given size. Any other error,
	in particular device errors, is returned.
*/
func (p *Partition) Load(defaults Payload, autoFormat bool, size uint32) (Payload, error) {

	pl, err := p.Read()
	if err == nil {
		return pl, nil
	}

	switch {

	case errors.Is(err, ErrNoEntries):
		log.Debug("no settings stored yet, using defaults")
		return defaults, nil

	case errors.Is(err, ErrNoValidEntry):
		log.Warn("all stored settings are corrupted, using defaults")
		return defaults, nil

	case errors.Is(err, ErrBadMagic) && autoFormat:
		log.WithField("size", size).Warn(
			"partition not formatted, formatting and using defaults")
		if err := p.Format(size); err != nil {
			return defaults, err
		}
		return defaults, nil
	}

	return defaults, err
}
