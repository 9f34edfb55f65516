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

// Package coverage encodes OpenType "Coverage Tables".
// https://docs.microsoft.com/en-us/typography/opentype/spec/chapter2#coverage-table
package coverage

import (
	"slices"
	"sort"

	"seehuhn.de/go/otlbuild/internal/parser"
	"seehuhn.de/go/sfnt/glyph"
)

// Table is a coverage table.  The glyphs are sorted in increasing order
// and the coverage index of a glyph is its position in the slice.
type Table []glyph.ID

// New returns a coverage table for the given glyphs.  Duplicates are
// removed.
func New(gids ...glyph.ID) Table {
	res := slices.Clone(gids)
	slices.Sort(res)
	return slices.Compact(res)
}

// Index returns the coverage index of gid.
func (table Table) Index(gid glyph.ID) (int, bool) {
	i := sort.Search(len(table), func(i int) bool { return table[i] >= gid })
	if i < len(table) && table[i] == gid {
		return i, true
	}
	return 0, false
}

// Contains returns true if the given glyph ID is covered by the table.
func (table Table) Contains(gid glyph.ID) bool {
	_, ok := table.Index(gid)
	return ok
}

func (table Table) numRanges() int {
	n := 0
	for i, gid := range table {
		if i == 0 || gid != table[i-1]+1 {
			n++
		}
	}
	return n
}

// EncodeLen returns the number of bytes in the binary representation of the
// coverage table.
func (table Table) EncodeLen() int {
	format1Length := 4 + 2*len(table)
	format2Length := 4 + 6*table.numRanges()
	return min(format1Length, format2Length)
}

// Encode returns the binary representation of the coverage table.
func (table Table) Encode() []byte {
	return table.Append(make([]byte, 0, table.EncodeLen()))
}

// Append appends the binary representation of the coverage table to buf.
// Format 1 is used unless format 2 is strictly shorter.
func (table Table) Append(buf []byte) []byte {
	rangeCount := table.numRanges()
	if 4+2*len(table) <= 4+6*rangeCount {
		buf = append(buf, 0, 1, byte(len(table)>>8), byte(len(table)))
		for _, gid := range table {
			buf = append(buf, byte(gid>>8), byte(gid))
		}
		return buf
	}

	buf = append(buf, 0, 2, byte(rangeCount>>8), byte(rangeCount))
	start := 0
	for i := 1; i <= len(table); i++ {
		if i < len(table) && table[i] == table[i-1]+1 {
			continue
		}
		first, last := table[start], table[i-1]
		buf = append(buf,
			byte(first>>8), byte(first),
			byte(last>>8), byte(last),
			byte(start>>8), byte(start))
		start = i
	}
	return buf
}

// Decode reads a coverage table from the given position.
func Decode(p *parser.Parser, pos int) (Table, error) {
	err := p.SeekPos(pos)
	if err != nil {
		return nil, err
	}

	format, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}

	var table Table
	switch format {
	case 1:
		table, err = p.ReadGIDSlice()
		if err != nil {
			return nil, err
		}
		for i := 1; i < len(table); i++ {
			if table[i] <= table[i-1] {
				return nil, p.Error("unsorted coverage table (format 1)")
			}
		}

	case 2:
		rangeCount, err := p.ReadUint16()
		if err != nil {
			return nil, err
		}
		for i := 0; i < int(rangeCount); i++ {
			buf, err := p.ReadBytes(6)
			if err != nil {
				return nil, err
			}
			first := int(buf[0])<<8 | int(buf[1])
			last := int(buf[2])<<8 | int(buf[3])
			startIndex := int(buf[4])<<8 | int(buf[5])
			if startIndex != len(table) || last < first ||
				len(table) > 0 && first <= int(table[len(table)-1]) {
				return nil, p.Error("invalid coverage table (format 2)")
			}
			for gid := first; gid <= last; gid++ {
				table = append(table, glyph.ID(gid))
			}
		}

	default:
		return nil, p.Error("unsupported coverage format %d", format)
	}
	return table, nil
}
