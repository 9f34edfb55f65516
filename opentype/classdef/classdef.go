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

// Package classdef encodes OpenType "Class Definition Tables".
// https://docs.microsoft.com/en-us/typography/opentype/spec/chapter2#classDefTbl
package classdef

import (
	"seehuhn.de/go/otlbuild/internal/parser"
	"seehuhn.de/go/sfnt/glyph"
)

// Table maps glyphs to classes.  All glyphs not listed fall into class 0.
type Table map[glyph.ID]uint16

// NumClasses returns the number of classes in the table, including the
// zero class.
func (info Table) NumClasses() int {
	maxClass := uint16(0)
	for _, class := range info {
		maxClass = max(maxClass, class)
	}
	return int(maxClass) + 1
}

type segment struct {
	first, last glyph.ID
	class       uint16
}

// layout determines the glyph range and the class ranges of the table.
func (info Table) layout() (glyph.ID, glyph.ID, []segment) {
	minGid, maxGid := glyph.ID(0xFFFF), glyph.ID(0)
	for gid, class := range info {
		if class == 0 {
			continue
		}
		minGid = min(minGid, gid)
		maxGid = max(maxGid, gid)
	}
	if minGid > maxGid {
		return 0, 0, nil
	}

	var segs []segment
	for i := int(minGid); i <= int(maxGid); i++ {
		gid := glyph.ID(i)
		class := info[gid]
		if class == 0 {
			continue
		}
		if n := len(segs); n > 0 && segs[n-1].last == gid-1 && segs[n-1].class == class {
			segs[n-1].last = gid
			continue
		}
		segs = append(segs, segment{gid, gid, class})
	}
	return minGid, maxGid, segs
}

func format1Size(minGid, maxGid glyph.ID) int {
	return 6 + 2*(int(maxGid)-int(minGid)+1)
}

// EncodeLen returns the size of the binary table representation.
func (info Table) EncodeLen() int {
	minGid, maxGid, segs := info.layout()
	format2Size := 4 + 6*len(segs)
	if segs != nil && format1Size(minGid, maxGid) <= format2Size {
		return format1Size(minGid, maxGid)
	}
	return format2Size
}

// Encode returns the binary table representation.
func (info Table) Encode() []byte {
	return info.Append(make([]byte, 0, info.EncodeLen()))
}

// Append appends the binary table representation to the given buffer.
func (info Table) Append(buf []byte) []byte {
	minGid, maxGid, segs := info.layout()

	if segs != nil && format1Size(minGid, maxGid) <= 4+6*len(segs) {
		count := int(maxGid) - int(minGid) + 1
		buf = append(buf,
			0, 1,
			byte(minGid>>8), byte(minGid),
			byte(count>>8), byte(count))
		for i := 0; i < count; i++ {
			class := info[minGid+glyph.ID(i)]
			buf = append(buf, byte(class>>8), byte(class))
		}
		return buf
	}

	buf = append(buf, 0, 2, byte(len(segs)>>8), byte(len(segs)))
	for _, seg := range segs {
		buf = append(buf,
			byte(seg.first>>8), byte(seg.first),
			byte(seg.last>>8), byte(seg.last),
			byte(seg.class>>8), byte(seg.class))
	}
	return buf
}

// Decode reads a class definition table from the given position.
func Decode(p *parser.Parser, pos int) (Table, error) {
	err := p.SeekPos(pos)
	if err != nil {
		return nil, err
	}

	format, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	res := Table{}
	switch format {
	case 1:
		data, err := p.ReadBytes(4)
		if err != nil {
			return nil, err
		}
		start := int(data[0])<<8 | int(data[1])
		count := int(data[2])<<8 | int(data[3])
		if start+count-1 > 0xFFFF {
			return nil, p.Error("glyph count too large in class definition table")
		}
		for i := 0; i < count; i++ {
			class, err := p.ReadUint16()
			if err != nil {
				return nil, err
			}
			if class != 0 {
				res[glyph.ID(start+i)] = class
			}
		}

	case 2:
		rangeCount, err := p.ReadUint16()
		if err != nil {
			return nil, err
		}
		prevEnd := -1
		for i := 0; i < int(rangeCount); i++ {
			data, err := p.ReadBytes(6)
			if err != nil {
				return nil, err
			}
			first := int(data[0])<<8 | int(data[1])
			last := int(data[2])<<8 | int(data[3])
			class := uint16(data[4])<<8 | uint16(data[5])
			if first <= prevEnd || last < first {
				return nil, p.Error("invalid ranges in class definition table")
			}
			prevEnd = last
			if class == 0 {
				continue
			}
			for gid := first; gid <= last; gid++ {
				res[glyph.ID(gid)] = class
			}
		}

	default:
		return nil, p.Error("unsupported class definition format %d", format)
	}
	return res, nil
}
