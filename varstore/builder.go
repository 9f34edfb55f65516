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

// Package varstore builds the ItemVariationStore shared by the GDEF, GSUB
// and GPOS tables of a variable font.
//
// Deltas are registered with a [Builder] while the layout rules are
// compiled.  Each call returns a stable [VarIndex].  Once all values are
// registered, [Builder.Finalize] returns the immutable [Store].
package varstore

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/npillmayer/schuko/tracing"

	"seehuhn.de/go/otlbuild/diag"
	"seehuhn.de/go/otlbuild/varmodel"
)

func tracer() tracing.Trace {
	return tracing.Select("otlbuild.varstore")
}

// VarIndex identifies a row of deltas in the store.
type VarIndex = varmodel.VarIndex

// maxRows is the maximal number of rows in one VarData block.
const maxRows = 0xFFFF

// ErrFinalized is returned when the builder is used after Finalize.
var ErrFinalized = errors.New("variation store already finalized")

// Builder collects regions and delta rows.  A Builder is safe for
// concurrent use, all calls are serialized.
type Builder struct {
	axes []string

	mu        sync.Mutex
	finalized bool

	regions    []varmodel.Region
	regionIdx  *treemap.Map // region key -> int
	data       []*varData
	openBySet  map[string]int      // region set key -> index into data
	rows       map[string]VarIndex // region set key + row -> index
	registered int
}

type varData struct {
	regions []uint16
	setKey  string
	rows    [][]int32
}

// NewBuilder returns a new builder for a font with the given axes.  The
// order of the axes determines the layout of the region list.
func NewBuilder(axisTags []string) *Builder {
	return &Builder{
		axes:      axisTags,
		regionIdx: treemap.NewWithStringComparator(),
		openBySet: make(map[string]int),
		rows:      make(map[string]VarIndex),
	}
}

// Register stores a row of deltas and returns its index.  regions and
// deltas must have the same length.  Identical rows for the same set of
// regions share an index.
func (b *Builder) Register(regions []varmodel.Region, deltas []int) (VarIndex, error) {
	if len(regions) != len(deltas) {
		return VarIndex{}, fmt.Errorf("varstore: %d regions but %d deltas", len(regions), len(deltas))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finalized {
		return VarIndex{}, ErrFinalized
	}

	colDelta := make(map[uint16]int64, len(regions))
	for i, r := range regions {
		if r.IsDegenerate() {
			return VarIndex{}, &diag.Error{
				Kind: diag.DegenerateRegion,
				Msg:  "region " + r.String() + " has no non-zero peak",
			}
		}
		for tag := range r {
			if !b.hasAxis(tag) {
				return VarIndex{}, &diag.Error{
					Kind: diag.UnknownAxis,
					Msg:  fmt.Sprintf("region %s uses axis %q", r, tag),
				}
			}
		}
		idx, err := b.regionIndex(r)
		if err != nil {
			return VarIndex{}, err
		}
		colDelta[idx] += int64(deltas[i])
	}

	cols := make([]uint16, 0, len(colDelta))
	for idx := range colDelta {
		cols = append(cols, idx)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })
	row := make([]int32, len(cols))
	for i, idx := range cols {
		d := colDelta[idx]
		if d < -1<<31 || d >= 1<<31 {
			return VarIndex{}, &diag.Error{
				Kind: diag.Overflow,
				Msg:  fmt.Sprintf("delta %d does not fit into 32 bits", d),
			}
		}
		row[i] = int32(d)
	}

	setKey := joinInts(cols)
	rowKey := joinInts(row)

	if idx, seen := b.rows[setKey+"/"+rowKey]; seen {
		return idx, nil
	}

	outer, ok := b.openBySet[setKey]
	if ok && len(b.data[outer].rows) >= maxRows {
		ok = false
	}
	if !ok {
		if len(b.data) >= 0xFFFF {
			return VarIndex{}, &diag.Error{
				Kind: diag.Overflow,
				Msg:  "too many item variation data blocks",
			}
		}
		outer = len(b.data)
		b.data = append(b.data, &varData{
			regions: cols,
			setKey:  setKey,
		})
		b.openBySet[setKey] = outer
	}

	vd := b.data[outer]
	inner := uint16(len(vd.rows))
	vd.rows = append(vd.rows, row)
	idx := VarIndex{Outer: uint16(outer), Inner: inner}
	b.rows[setKey+"/"+rowKey] = idx
	b.registered++
	return idx, nil
}

func (b *Builder) hasAxis(tag string) bool {
	for _, a := range b.axes {
		if a == tag {
			return true
		}
	}
	return false
}

func (b *Builder) regionIndex(r varmodel.Region) (uint16, error) {
	key := r.Key()
	if idx, found := b.regionIdx.Get(key); found {
		return idx.(uint16), nil
	}
	if len(b.regions) >= 0xFFFF {
		return 0, &diag.Error{
			Kind: diag.Overflow,
			Msg:  "too many variation regions",
		}
	}
	idx := uint16(len(b.regions))
	b.regions = append(b.regions, r.Clone())
	b.regionIdx.Put(key, idx)
	return idx, nil
}

// IsEmpty reports whether no deltas have been registered yet.
func (b *Builder) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data) == 0
}

// Finalize returns the completed store.  This must be called exactly once.
// If no deltas were registered, the returned store is nil.
func (b *Builder) Finalize() (*Store, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finalized {
		return nil, ErrFinalized
	}
	b.finalized = true

	tracer().Infof("variation store: %d regions, %d blocks, %d registrations",
		len(b.regions), len(b.data), b.registered)
	if len(b.data) == 0 {
		return nil, nil
	}

	s := &Store{
		Axes:    append([]string(nil), b.axes...),
		Regions: make([]varmodel.Region, len(b.regions)),
		Data:    make([]*VarData, len(b.data)),
	}
	for i, r := range b.regions {
		s.Regions[i] = r.Clone()
	}
	for i, vd := range b.data {
		rows := make([][]int32, len(vd.rows))
		for j, row := range vd.rows {
			rows[j] = append([]int32(nil), row...)
		}
		s.Data[i] = &VarData{
			RegionIndexes: append([]uint16(nil), vd.regions...),
			Deltas:        rows,
		}
	}
	return s, nil
}

// String returns a human-readable listing of the regions and data blocks,
// with regions sorted by key.
func (b *Builder) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf := &strings.Builder{}
	fmt.Fprintf(buf, "regions (%d):\n", len(b.regions))
	it := b.regionIdx.Iterator()
	for it.Next() {
		fmt.Fprintf(buf, "  %d: {%s}\n", it.Value(), it.Key())
	}
	for i, vd := range b.data {
		fmt.Fprintf(buf, "data %d: regions [%s], %d rows\n", i, vd.setKey, len(vd.rows))
	}
	return buf.String()
}

func joinInts[T uint16 | int32](xx []T) string {
	parts := make([]string, len(xx))
	for i, x := range xx {
		parts[i] = strconv.FormatInt(int64(x), 10)
	}
	return strings.Join(parts, ",")
}
