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

package varstore

import (
	"cmp"
	"slices"

	"seehuhn.de/go/otlbuild/internal/parser"
	"seehuhn.de/go/otlbuild/varmodel"
)

// Decode reads an ItemVariationStore which starts at position pos.  The
// binary format does not record axis tags, the caller supplies them in
// font order.
//
// The columns of every VarData block are returned sorted by region index,
// which is the order used by [Builder].
func Decode(p *parser.Parser, pos int, axes []string) (*Store, error) {
	err := p.SeekPos(pos)
	if err != nil {
		return nil, err
	}
	format, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	if format != 1 {
		return nil, p.Error("unsupported ItemVariationStore format %d", format)
	}
	regionListOffs, err := p.ReadUint32()
	if err != nil {
		return nil, err
	}
	n, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	dataOffs := make([]uint32, n)
	for i := range dataOffs {
		dataOffs[i], err = p.ReadUint32()
		if err != nil {
			return nil, err
		}
	}

	s := &Store{Axes: axes}
	err = p.SeekPos(pos + int(regionListOffs))
	if err != nil {
		return nil, err
	}
	axisCount, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	if int(axisCount) != len(axes) {
		return nil, p.Error("expected %d axes, found %d", len(axes), axisCount)
	}
	regionCount, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(regionCount); i++ {
		r := varmodel.Region{}
		for _, tag := range axes {
			var t [3]float64
			for k := range t {
				x, err := p.ReadInt16()
				if err != nil {
					return nil, err
				}
				t[k] = float64(x) / 16384
			}
			if t != [3]float64{} {
				r[tag] = varmodel.Tent{Start: t[0], Peak: t[1], End: t[2]}
			}
		}
		s.Regions = append(s.Regions, r)
	}

	for _, offs := range dataOffs {
		vd, err := decodeVarData(p, pos+int(offs), len(s.Regions))
		if err != nil {
			return nil, err
		}
		s.Data = append(s.Data, vd)
	}
	return s, nil
}

func decodeVarData(p *parser.Parser, pos int, numRegions int) (*VarData, error) {
	err := p.SeekPos(pos)
	if err != nil {
		return nil, err
	}
	itemCount, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	wordCount, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	long := wordCount&0x8000 != 0
	nWide := int(wordCount & 0x7FFF)
	regionIndexes, err := p.ReadUint16Slice()
	if err != nil {
		return nil, err
	}
	if nWide > len(regionIndexes) {
		return nil, p.Error("invalid word delta count %d", nWide)
	}
	for _, idx := range regionIndexes {
		if int(idx) >= numRegions {
			return nil, p.Error("region index %d out of range", idx)
		}
	}

	perm := make([]int, len(regionIndexes))
	for k := range perm {
		perm[k] = k
	}
	slices.SortStableFunc(perm, func(a, b int) int {
		return cmp.Compare(regionIndexes[a], regionIndexes[b])
	})
	vd := &VarData{RegionIndexes: make([]uint16, len(perm))}
	for k, src := range perm {
		vd.RegionIndexes[k] = regionIndexes[src]
	}

	row := make([]int32, len(regionIndexes))
	for i := 0; i < int(itemCount); i++ {
		for k := range row {
			var x int32
			switch {
			case long && k < nWide:
				x, err = p.ReadInt32()
			case long || k < nWide:
				var y int16
				y, err = p.ReadInt16()
				x = int32(y)
			default:
				var y int8
				y, err = p.ReadInt8()
				x = int32(y)
			}
			if err != nil {
				return nil, err
			}
			row[k] = x
		}
		sorted := make([]int32, len(perm))
		for k, src := range perm {
			sorted[k] = row[src]
		}
		vd.Deltas = append(vd.Deltas, sorted)
	}
	return vd, nil
}
