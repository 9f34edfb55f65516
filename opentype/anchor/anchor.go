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

// Package anchor encodes OpenType "Anchor Tables".
// https://docs.microsoft.com/en-us/typography/opentype/spec/gpos#anchor-tables
package anchor

import (
	"fmt"

	"seehuhn.de/go/postscript/funit"

	"seehuhn.de/go/otlbuild/internal/parser"
	"seehuhn.de/go/otlbuild/opentype/device"
)

// Table is an OpenType "Anchor Table".  If XVar or YVar are set, the
// anchor is written in format 3, with VariationIndex tables for the
// varying coordinates.
type Table struct {
	X, Y       funit.Int16
	XVar, YVar *device.Index
}

func (rec Table) String() string {
	s := fmt.Sprintf("<anchor %d %d>", rec.X, rec.Y)
	if rec.XVar != nil || rec.YVar != nil {
		s = fmt.Sprintf("<anchor %d%s %d%s>", rec.X, varString(rec.XVar), rec.Y, varString(rec.YVar))
	}
	return s
}

func varString(idx *device.Index) string {
	if idx == nil {
		return ""
	}
	return "@" + idx.String()
}

// IsVariable reports whether the anchor refers to the variation store.
func (rec Table) IsVariable() bool {
	return rec.XVar != nil || rec.YVar != nil
}

// EncodeLen returns the size of the binary representation.
func (rec Table) EncodeLen() int {
	if !rec.IsVariable() {
		return 6
	}
	n := 10
	if rec.XVar != nil {
		n += device.EncodeLen
	}
	if rec.YVar != nil {
		n += device.EncodeLen
	}
	return n
}

// Append appends the binary representation of the Anchor Table to buf.
func (rec Table) Append(buf []byte) []byte {
	if !rec.IsVariable() {
		return append(buf,
			0, 1, // anchorFormat
			byte(rec.X>>8), byte(rec.X),
			byte(rec.Y>>8), byte(rec.Y),
		)
	}

	var xOffs, yOffs uint16
	pos := uint16(10)
	if rec.XVar != nil {
		xOffs = pos
		pos += device.EncodeLen
	}
	if rec.YVar != nil {
		yOffs = pos
	}
	buf = append(buf,
		0, 3, // anchorFormat
		byte(rec.X>>8), byte(rec.X),
		byte(rec.Y>>8), byte(rec.Y),
		byte(xOffs>>8), byte(xOffs),
		byte(yOffs>>8), byte(yOffs),
	)
	if rec.XVar != nil {
		buf = device.Append(buf, *rec.XVar)
	}
	if rec.YVar != nil {
		buf = device.Append(buf, *rec.YVar)
	}
	return buf
}

// Decode reads an anchor table.  Hinting information in format 2 is
// ignored.
func Decode(p *parser.Parser, pos int) (Table, error) {
	err := p.SeekPos(pos)
	if err != nil {
		return Table{}, err
	}

	buf, err := p.ReadBytes(6)
	if err != nil {
		return Table{}, err
	}
	format := uint16(buf[0])<<8 | uint16(buf[1])
	res := Table{
		X: funit.Int16(buf[2])<<8 | funit.Int16(buf[3]),
		Y: funit.Int16(buf[4])<<8 | funit.Int16(buf[5]),
	}

	switch format {
	case 1, 2:
		return res, nil
	case 3:
		xOffs, err := p.ReadUint16()
		if err != nil {
			return Table{}, err
		}
		yOffs, err := p.ReadUint16()
		if err != nil {
			return Table{}, err
		}
		if xOffs != 0 {
			idx, err := device.Decode(p, pos+int(xOffs))
			if err != nil {
				return Table{}, err
			}
			res.XVar = &idx
		}
		if yOffs != 0 {
			idx, err := device.Decode(p, pos+int(yOffs))
			if err != nil {
				return Table{}, err
			}
			res.YVar = &idx
		}
		return res, nil
	default:
		return Table{}, p.Error("invalid anchor table format %d", format)
	}
}
