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
	"fmt"
	"math"

	"seehuhn.de/go/otlbuild/diag"
	"seehuhn.de/go/otlbuild/varmodel"
)

// Store is a finalized ItemVariationStore.
type Store struct {
	Axes    []string
	Regions []varmodel.Region
	Data    []*VarData
}

// VarData is one block of delta rows sharing the same regions.
type VarData struct {
	RegionIndexes []uint16
	Deltas        [][]int32
}

// Delta evaluates the row idx at the given normalized location.
// The returned value is the amount to be added to the default value.
func (s *Store) Delta(idx VarIndex, loc varmodel.Location) (float64, error) {
	if int(idx.Outer) >= len(s.Data) {
		return 0, fmt.Errorf("varstore: invalid outer index %d", idx.Outer)
	}
	vd := s.Data[idx.Outer]
	if int(idx.Inner) >= len(vd.Deltas) {
		return 0, fmt.Errorf("varstore: invalid inner index %d", idx.Inner)
	}
	var res float64
	for k, d := range vd.Deltas[idx.Inner] {
		if d == 0 {
			continue
		}
		res += float64(d) * s.Regions[vd.RegionIndexes[k]].Scalar(loc)
	}
	return res, nil
}

// NumRows returns the total number of delta rows in the store.
func (s *Store) NumRows() int {
	n := 0
	for _, vd := range s.Data {
		n += len(vd.Deltas)
	}
	return n
}

// EncodeLen returns the length of the binary encoding of the store.
func (s *Store) EncodeLen() int {
	total := 8 + 4*len(s.Data)
	total += 4 + 6*len(s.Axes)*len(s.Regions)
	for _, vd := range s.Data {
		total += vd.encodeLen()
	}
	return total
}

// Encode returns the binary encoding of the store, as an
// ItemVariationStore of format 1.
func (s *Store) Encode() ([]byte, error) {
	if len(s.Axes) > 0xFFFF || len(s.Regions) > 0xFFFF || len(s.Data) > 0xFFFF {
		return nil, &diag.Error{Kind: diag.Overflow, Msg: "variation store too large"}
	}

	total := s.EncodeLen()
	buf := make([]byte, 0, total)

	regionListOffs := 8 + 4*len(s.Data)
	buf = append(buf,
		0, 1, // format
		byte(regionListOffs>>24), byte(regionListOffs>>16), byte(regionListOffs>>8), byte(regionListOffs),
		byte(len(s.Data)>>8), byte(len(s.Data)),
	)
	pos := regionListOffs + 4 + 6*len(s.Axes)*len(s.Regions)
	for _, vd := range s.Data {
		buf = append(buf, byte(pos>>24), byte(pos>>16), byte(pos>>8), byte(pos))
		pos += vd.encodeLen()
	}

	buf = append(buf,
		byte(len(s.Axes)>>8), byte(len(s.Axes)),
		byte(len(s.Regions)>>8), byte(len(s.Regions)),
	)
	for _, r := range s.Regions {
		for _, tag := range s.Axes {
			t := r[tag]
			for _, x := range []float64{t.Start, t.Peak, t.End} {
				v := toF2Dot14(x)
				buf = append(buf, byte(v>>8), byte(v))
			}
		}
	}

	for _, vd := range s.Data {
		var err error
		buf, err = vd.append(buf)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// layout returns the column order of the encoded data, wide columns
// first, together with the number of wide columns and whether 32-bit
// deltas are needed.
func (vd *VarData) layout() ([]int, int, bool) {
	n := len(vd.RegionIndexes)
	var bounds []int64
	for k := 0; k < n; k++ {
		var lo, hi int32
		for _, row := range vd.Deltas {
			lo = min(lo, row[k])
			hi = max(hi, row[k])
		}
		bounds = append(bounds, int64(lo), int64(hi))
	}
	long := false
	for _, x := range bounds {
		if x < math.MinInt16 || x > math.MaxInt16 {
			long = true
			break
		}
	}

	var wide, narrow []int
	for k := 0; k < n; k++ {
		lo, hi := bounds[2*k], bounds[2*k+1]
		var fits bool
		if long {
			fits = lo >= math.MinInt16 && hi <= math.MaxInt16
		} else {
			fits = lo >= math.MinInt8 && hi <= math.MaxInt8
		}
		if fits {
			narrow = append(narrow, k)
		} else {
			wide = append(wide, k)
		}
	}
	return append(wide, narrow...), len(wide), long
}

func (vd *VarData) encodeLen() int {
	cols, nWide, long := vd.layout()
	wideSize, narrowSize := 2, 1
	if long {
		wideSize, narrowSize = 4, 2
	}
	rowSize := nWide*wideSize + (len(cols)-nWide)*narrowSize
	return 6 + 2*len(cols) + rowSize*len(vd.Deltas)
}

func (vd *VarData) append(buf []byte) ([]byte, error) {
	if len(vd.Deltas) > 0xFFFF {
		return nil, &diag.Error{Kind: diag.Overflow, Msg: "too many delta rows in one block"}
	}
	cols, nWide, long := vd.layout()
	wordCount := uint16(nWide)
	if long {
		wordCount |= 0x8000
	}
	buf = append(buf,
		byte(len(vd.Deltas)>>8), byte(len(vd.Deltas)),
		byte(wordCount>>8), byte(wordCount),
		byte(len(cols)>>8), byte(len(cols)),
	)
	for _, k := range cols {
		idx := vd.RegionIndexes[k]
		buf = append(buf, byte(idx>>8), byte(idx))
	}
	for _, row := range vd.Deltas {
		for i, k := range cols {
			d := row[k]
			switch {
			case long && i < nWide:
				buf = append(buf, byte(d>>24), byte(d>>16), byte(d>>8), byte(d))
			case long || i < nWide:
				buf = append(buf, byte(d>>8), byte(d))
			default:
				buf = append(buf, byte(d))
			}
		}
	}
	return buf, nil
}

// toF2Dot14 converts x to the 2.14 fixed point format, clamping to the
// representable range.
func toF2Dot14(x float64) uint16 {
	v := varmodel.Round(x * 16384)
	if v < math.MinInt16 {
		v = math.MinInt16
	} else if v > math.MaxInt16 {
		v = math.MaxInt16
	}
	return uint16(int16(v))
}
