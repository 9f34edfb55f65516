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

// Tent is a per-axis influence function.  It is zero outside the interval
// (Start, End), one at Peak and linear in between.
type Tent struct {
	Start, Peak, End float64
}

// Region is the support of a delta: a product of tent functions, one for
// each axis listed.  Axes which are not listed do not restrict the region.
type Region map[string]Tent

// IsDegenerate reports whether the region has no axis with a non-zero peak.
// Such a region covers the whole design space and cannot carry a delta.
func (r Region) IsDegenerate() bool {
	for _, t := range r {
		if t.Peak != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether two regions have the same tents.
func (r Region) Equal(other Region) bool {
	return maps.Equal(r, other)
}

// Clone returns a copy of the region.
func (r Region) Clone() Region {
	return maps.Clone(r)
}

// Scalar returns the weight of the region at the given location.  As in
// OpenType, tents with a zero peak, inconsistent tents and tents crossing
// zero do not restrict the region.
func (r Region) Scalar(loc Location) float64 {
	scalar := 1.0
	for tag, t := range r {
		if t.Peak == 0 || t.Start > t.Peak || t.Peak > t.End || t.Start < 0 && t.End > 0 {
			continue
		}
		v := loc[tag]
		if v == t.Peak {
			continue
		}
		if v <= t.Start || t.End <= v {
			return 0
		}
		if v < t.Peak {
			scalar *= (v - t.Start) / (t.Peak - t.Start)
		} else {
			scalar *= (v - t.End) / (t.Peak - t.End)
		}
	}
	return scalar
}

// Key returns a canonical string representation of the region.
func (r Region) Key() string {
	tags := make([]string, 0, len(r))
	for tag := range r {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	parts := make([]string, len(tags))
	for i, tag := range tags {
		t := r[tag]
		parts[i] = tag + "=" + formatCoord(t.Start) + ":" + formatCoord(t.Peak) + ":" + formatCoord(t.End)
	}
	return strings.Join(parts, ",")
}

func (r Region) String() string {
	return "{" + r.Key() + "}"
}
