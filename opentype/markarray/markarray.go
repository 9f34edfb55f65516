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

// Package markarray encodes OpenType "Mark Array Tables".
// https://docs.microsoft.com/en-us/typography/opentype/spec/gpos#mark-array-table
package markarray

import (
	"seehuhn.de/go/otlbuild/internal/parser"
	"seehuhn.de/go/otlbuild/opentype/anchor"
)

// Table is an OpenType "Mark Array Table".  The records are indexed by
// the mark coverage index.
type Table []Record

// Record is a mark record in a Mark Array Table.
type Record struct {
	Class uint16
	anchor.Table
}

// layout returns the offset of every anchor relative to the start of the
// table, and the total length.  Identical anchors share one encoding.
func (recs Table) layout() ([]int, int) {
	offs := make([]int, len(recs))
	pos := 2 + 4*len(recs)
	seen := make(map[string]int)
	for i, rec := range recs {
		key := string(rec.Table.Append(nil))
		if o, ok := seen[key]; ok {
			offs[i] = o
			continue
		}
		seen[key] = pos
		offs[i] = pos
		pos += rec.Table.EncodeLen()
	}
	return offs, pos
}

// EncodeLen returns the size of the binary representation.
func (recs Table) EncodeLen() int {
	_, total := recs.layout()
	return total
}

// Append appends the binary representation of the table to buf.
func (recs Table) Append(buf []byte) []byte {
	offs, _ := recs.layout()
	buf = append(buf, byte(len(recs)>>8), byte(len(recs)))
	for i, rec := range recs {
		buf = append(buf,
			byte(rec.Class>>8), byte(rec.Class),
			byte(offs[i]>>8), byte(offs[i]))
	}
	written := 2 + 4*len(recs)
	for i, rec := range recs {
		if offs[i] < written {
			continue
		}
		buf = rec.Table.Append(buf)
		written += rec.Table.EncodeLen()
	}
	return buf
}

// Decode reads a Mark Array Table.
func Decode(p *parser.Parser, pos int) (Table, error) {
	err := p.SeekPos(pos)
	if err != nil {
		return nil, err
	}
	markCount, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}

	res := make(Table, markCount)
	offsets := make([]uint16, markCount)
	for i := range res {
		res[i].Class, err = p.ReadUint16()
		if err != nil {
			return nil, err
		}
		offsets[i], err = p.ReadUint16()
		if err != nil {
			return nil, err
		}
	}
	for i, offs := range offsets {
		res[i].Table, err = anchor.Decode(p, pos+int(offs))
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}
