// seehuhn.de/go/otlbuild - build OpenType layout tables for variable fonts
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package varmodel

import (
	"sort"
	"strings"

	"golang.org/x/exp/maps"
)

// Location is a point in design space, given in normalized coordinates.
// Axes which are not present in the map are at their default position.
// A coordinate of zero is equivalent to a missing entry.
type Location map[string]float64

// Clean returns a copy of loc with all zero coordinates removed.
func (loc Location) Clean() Location {
	res := make(Location, len(loc))
	for tag, x := range loc {
		if x != 0 {
			res[tag] = x
		}
	}
	return res
}

// IsDefault reports whether loc is the default location.
func (loc Location) IsDefault() bool {
	for _, x := range loc {
		if x != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether two locations describe the same point.
func (loc Location) Equal(other Location) bool {
	return maps.Equal(loc.Clean(), other.Clean())
}

// Axes returns the tags of the axes with non-zero coordinates, in
// alphabetical order.
func (loc Location) Axes() []string {
	var tags []string
	for tag, x := range loc {
		if x != 0 {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// Key returns a canonical string representation of the location.
// Two locations have the same key if and only if they are equal.
func (loc Location) Key() string {
	tags := loc.Axes()
	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = tag + "=" + formatCoord(loc[tag])
	}
	return strings.Join(parts, ",")
}

func (loc Location) String() string {
	return "{" + loc.Key() + "}"
}
