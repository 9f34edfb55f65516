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
	"errors"
	"math"
	"slices"
	"sort"

	"seehuhn.de/go/otlbuild/diag"
)

// Model is a variation model for a fixed set of master locations.
//
// The masters are processed in an order where every master comes after all
// masters whose axes form a subset of its own axes.  The delta of a master
// is the residual of its value after subtracting the contributions of the
// deltas of all previously processed masters.  This guarantees that
// interpolating the deltas at a master location gives back the master
// value.
type Model struct {
	locations []Location // in model order
	mapping   []int      // input index -> model index
	reverse   []int      // model index -> input index
	supports  []Region   // indexed by model index
	weights   [][]weight // indexed by model index
}

type weight struct {
	master int // model index of an earlier master
	w      float64
}

var errDuplicateLocation = errors.New("duplicate master location")

// NewModel constructs a variation model for the given master locations.
// One of the locations must be the default location.  Axes listed in
// axisOrder are sorted first, all other axes are sorted by tag.
func NewModel(locations []Location, axisOrder []string) (*Model, error) {
	locs := make([]Location, len(locations))
	seen := make(map[string]bool, len(locations))
	hasDefault := false
	for i, loc := range locations {
		locs[i] = loc.Clean()
		key := locs[i].Key()
		if seen[key] {
			return nil, errDuplicateLocation
		}
		seen[key] = true
		if key == "" {
			hasDefault = true
		}
	}
	if !hasDefault {
		return nil, &diag.Error{
			Kind: diag.MissingDefaultLocation,
			Msg:  "no master at the default location",
		}
	}

	axisPoints := make(map[string]map[float64]bool)
	for _, loc := range locs {
		if len(loc) != 1 {
			continue
		}
		for tag, x := range loc {
			pts := axisPoints[tag]
			if pts == nil {
				pts = map[float64]bool{0: true}
				axisPoints[tag] = pts
			}
			pts[x] = true
		}
	}

	keys := make([]sortKey, len(locs))
	for i, loc := range locs {
		keys[i] = makeSortKey(loc, axisPoints, axisOrder)
	}
	order := make([]int, len(locs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return keys[order[i]].less(&keys[order[j]])
	})

	m := &Model{
		locations: make([]Location, len(locs)),
		mapping:   make([]int, len(locs)),
		reverse:   order,
	}
	for k, i := range order {
		m.locations[k] = locs[i]
		m.mapping[i] = k
	}
	m.computeSupports()
	return m, nil
}

type sortKey struct {
	rank      int
	onPoint   int
	axisRanks []int
	axes      []string
	signs     []int
	magnitude []float64
}

func makeSortKey(loc Location, axisPoints map[string]map[float64]bool, axisOrder []string) sortKey {
	key := sortKey{rank: len(loc)}
	for tag, x := range loc {
		if axisPoints[tag][x] {
			key.onPoint++
		}
	}

	var known, unknown []string
	for _, tag := range axisOrder {
		if _, ok := loc[tag]; ok {
			known = append(known, tag)
		}
	}
	for _, tag := range loc.Axes() {
		if !slices.Contains(axisOrder, tag) {
			unknown = append(unknown, tag)
		}
	}
	key.axes = append(known, unknown...)
	for _, tag := range key.axes {
		rank := slices.Index(axisOrder, tag)
		if rank < 0 {
			rank = 0x10000
		}
		key.axisRanks = append(key.axisRanks, rank)
		x := loc[tag]
		sign := 1
		if x < 0 {
			sign = -1
		}
		key.signs = append(key.signs, sign)
		key.magnitude = append(key.magnitude, math.Abs(x))
	}
	return key
}

func (a *sortKey) less(b *sortKey) bool {
	if a.rank != b.rank {
		return a.rank < b.rank
	}
	if a.onPoint != b.onPoint {
		return a.onPoint > b.onPoint
	}
	if c := slices.Compare(a.axisRanks, b.axisRanks); c != 0 {
		return c < 0
	}
	if c := slices.Compare(a.axes, b.axes); c != 0 {
		return c < 0
	}
	if c := slices.Compare(a.signs, b.signs); c != 0 {
		return c < 0
	}
	return slices.Compare(a.magnitude, b.magnitude) < 0
}

// computeSupports finds the support region of every master.  The region
// of a master starts out reaching from the origin to the extreme master
// coordinate on each axis.  It is then cut back at every earlier master
// with the same axes which lies inside the region, so that the region
// vanishes at all earlier masters.
func (m *Model) computeSupports() {
	n := len(m.locations)
	m.supports = make([]Region, n)
	m.weights = make([][]weight, n)

	minV := make(map[string]float64)
	maxV := make(map[string]float64)
	for _, loc := range m.locations {
		for tag, x := range loc {
			if lo, ok := minV[tag]; !ok || x < lo {
				minV[tag] = x
			}
			if hi, ok := maxV[tag]; !ok || x > hi {
				maxV[tag] = x
			}
		}
	}

	for i, loc := range m.locations {
		box := make(Region, len(loc))
		for tag, x := range loc {
			if x > 0 {
				box[tag] = Tent{0, x, maxV[tag]}
			} else {
				box[tag] = Tent{minV[tag], x, 0}
			}
		}

		for _, prev := range m.locations[:i] {
			if !sameAxes(prev, loc) || !inside(prev, box) {
				continue
			}

			// Cut along the axes where prev is relatively furthest from
			// the peak.  Axes with equal ratios are all cut.
			var bestAxes []string
			bestRatio := -1.0
			for _, tag := range prev.Axes() {
				x := prev[tag]
				t := box[tag]
				var ratio float64
				switch {
				case x < t.Peak:
					ratio = (x - t.Peak) / (t.Start - t.Peak)
				case x > t.Peak:
					ratio = (x - t.Peak) / (t.End - t.Peak)
				default:
					continue
				}
				if ratio > bestRatio {
					bestAxes = bestAxes[:0]
					bestRatio = ratio
				}
				if ratio == bestRatio {
					bestAxes = append(bestAxes, tag)
				}
			}
			for _, tag := range bestAxes {
				x := prev[tag]
				t := box[tag]
				if x < t.Peak {
					t.Start = x
				} else {
					t.End = x
				}
				box[tag] = t
			}
		}
		m.supports[i] = box

		var ww []weight
		for j := range m.locations[:i] {
			s := m.supports[j].Scalar(loc)
			if s != 0 {
				ww = append(ww, weight{master: j, w: s})
			}
		}
		m.weights[i] = ww
	}
}

// sameAxes reports whether a and b have non-zero coordinates on the same
// axes.
func sameAxes(a, b Location) bool {
	if len(a) != len(b) {
		return false
	}
	for tag := range a {
		if _, ok := b[tag]; !ok {
			return false
		}
	}
	return true
}

// inside reports whether every coordinate of loc is at the peak of the
// corresponding tent of box, or strictly between start and end.
func inside(loc Location, box Region) bool {
	for tag, t := range box {
		x := loc[tag]
		if x != t.Peak && !(t.Start < x && x < t.End) {
			return false
		}
	}
	return true
}

// Locations returns the master locations in model order.
func (m *Model) Locations() []Location {
	return slices.Clone(m.locations)
}

// Supports returns the support regions of the masters in model order.
// The first region is the degenerate region of the default master.
func (m *Model) Supports() []Region {
	res := make([]Region, len(m.supports))
	for i, r := range m.supports {
		res[i] = r.Clone()
	}
	return res
}

// Deltas computes the deltas for the given master values.  The values
// must be given in the order of the locations passed to NewModel, the
// deltas are returned in model order.
func (m *Model) Deltas(values []float64) []float64 {
	return m.deltas(values, nil)
}

// RoundedDeltas is like Deltas, but rounds every delta using [Round] before
// it is used to compute the residuals of later masters.  This way, the
// rounding error at each master location is at most 0.5.
func (m *Model) RoundedDeltas(values []float64) []int {
	var res []int
	m.deltas(values, func(x float64) float64 {
		r := Round(x)
		res = append(res, r)
		return float64(r)
	})
	return res
}

func (m *Model) deltas(values []float64, round func(float64) float64) []float64 {
	if len(values) != len(m.locations) {
		panic("wrong number of master values")
	}
	out := make([]float64, len(values))
	for i, ww := range m.weights {
		delta := values[m.reverse[i]]
		for _, w := range ww {
			delta -= out[w.master] * w.w
		}
		if round != nil {
			delta = round(delta)
		}
		out[i] = delta
	}
	return out
}

// Interpolate evaluates the model with the given deltas (in model order)
// at loc.
func (m *Model) Interpolate(loc Location, deltas []float64) float64 {
	if len(deltas) != len(m.supports) {
		panic("wrong number of deltas")
	}
	var v float64
	for i, r := range m.supports {
		s := r.Scalar(loc)
		if s == 0 {
			continue
		}
		v += deltas[i] * s
	}
	return v
}

// Fit computes the rounded default value and the rounded deltas for the
// non-default masters, together with the corresponding support regions.
// Degenerate regions are dropped.
func (m *Model) Fit(values []float64) (int, []Region, []int) {
	all := m.RoundedDeltas(values)
	var regions []Region
	var deltas []int
	for i := 1; i < len(all); i++ {
		if m.supports[i].IsDegenerate() {
			continue
		}
		regions = append(regions, m.supports[i])
		deltas = append(deltas, all[i])
	}
	return all[0], regions, deltas
}
