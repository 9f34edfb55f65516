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

// Package varmodel implements the design-space primitives of variable fonts
// and the variation model used to turn per-location values into deltas.
//
// Locations are given in normalized coordinates, where the default of every
// axis is 0 and the minimum and maximum are -1 and +1.  User coordinates are
// converted using [Normalize].
package varmodel

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"seehuhn.de/go/otlbuild/diag"
)

// Axis describes one design-space axis of a font, in user coordinates.
type Axis struct {
	Tag               string
	Min, Default, Max float64

	// Map optionally remaps normalized coordinates, like the "avar" table
	// does.  The points must be sorted by From and should include the
	// points (-1, -1), (0, 0) and (1, 1).
	Map []MapPoint
}

// MapPoint is one point of a piecewise linear axis map.
type MapPoint struct {
	From, To float64
}

// normalize maps a user coordinate to [-1, 1].  The second return value
// reports whether the value had to be clamped.
func (a *Axis) normalize(v float64) (float64, bool) {
	clamped := false
	if v < a.Min {
		v = a.Min
		clamped = true
	} else if v > a.Max {
		v = a.Max
		clamped = true
	}

	var x float64
	switch {
	case v == a.Default:
		x = 0
	case v < a.Default:
		x = (v - a.Default) / (a.Default - a.Min)
	default:
		x = (v - a.Default) / (a.Max - a.Default)
	}
	if len(a.Map) > 0 {
		x = piecewiseLinearMap(x, a.Map)
	}
	return x, clamped
}

func piecewiseLinearMap(v float64, mapping []MapPoint) float64 {
	first := mapping[0]
	if v <= first.From {
		return v + first.To - first.From
	}
	last := mapping[len(mapping)-1]
	if v >= last.From {
		return v + last.To - last.From
	}
	i := sort.Search(len(mapping), func(i int) bool { return mapping[i].From >= v })
	b := mapping[i]
	if b.From == v {
		return b.To
	}
	a := mapping[i-1]
	return a.To + (b.To-a.To)*(v-a.From)/(b.From-a.From)
}

// Normalize converts a location in user coordinates to normalized
// coordinates.  Axes not mentioned in userLoc are at their default.
// Coordinates outside the axis range are clamped and reported as
// OutOfRangeAxisSample warnings, attributed to pos.
func Normalize(axes []Axis, userLoc map[string]float64, pos diag.Location) (Location, []*diag.Warning, error) {
	var warnings []*diag.Warning
	res := make(Location, len(userLoc))

	tags := make([]string, 0, len(userLoc))
	for tag := range userLoc {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		v := userLoc[tag]
		var axis *Axis
		for i := range axes {
			if axes[i].Tag == tag {
				axis = &axes[i]
				break
			}
		}
		if axis == nil {
			return nil, nil, diag.Errorf(diag.UnknownAxis, pos, "axis %q is not declared by the font", tag)
		}
		x, clamped := axis.normalize(v)
		if clamped {
			warnings = append(warnings, diag.Warnf(diag.OutOfRangeAxisSample, pos,
				"%s=%s outside [%s, %s], clamped", tag, formatCoord(v),
				formatCoord(axis.Min), formatCoord(axis.Max)))
		}
		if x != 0 {
			res[tag] = x
		}
	}
	return res, warnings, nil
}

// Round rounds x to the nearest integer, with ties going to the even
// neighbour.  All values written to the binary tables are rounded using
// this function.
func Round(x float64) int {
	return int(math.RoundToEven(x))
}

func formatCoord(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// userKey returns a canonical string for a location in user coordinates.
func userKey(loc map[string]float64) string {
	tags := make([]string, 0, len(loc))
	for tag := range loc {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = tag + "=" + formatCoord(loc[tag])
	}
	return strings.Join(parts, ",")
}

func (a Axis) String() string {
	return fmt.Sprintf("%s[%s:%s:%s]", a.Tag,
		formatCoord(a.Min), formatCoord(a.Default), formatCoord(a.Max))
}
