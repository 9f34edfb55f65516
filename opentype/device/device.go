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

// Package device encodes the VariationIndex tables which connect values in
// GPOS and GDEF to rows of the ItemVariationStore.
// https://learn.microsoft.com/en-us/typography/opentype/spec/chapter2#variationindex-table
package device

import (
	"seehuhn.de/go/otlbuild/internal/parser"
	"seehuhn.de/go/otlbuild/varmodel"
)

// Index refers to a row of deltas in the ItemVariationStore.
type Index = varmodel.VarIndex

// EncodeLen is the size of an encoded VariationIndex table.
const EncodeLen = 6

const formatVariationIndex = 0x8000

// Append appends a VariationIndex table for idx to buf.
func Append(buf []byte, idx Index) []byte {
	return append(buf,
		byte(idx.Outer>>8), byte(idx.Outer),
		byte(idx.Inner>>8), byte(idx.Inner),
		formatVariationIndex>>8, formatVariationIndex&0xFF,
	)
}

// Decode reads a VariationIndex table.
func Decode(p *parser.Parser, pos int) (Index, error) {
	err := p.SeekPos(pos)
	if err != nil {
		return Index{}, err
	}
	buf, err := p.ReadBytes(6)
	if err != nil {
		return Index{}, err
	}
	format := uint16(buf[4])<<8 | uint16(buf[5])
	if format != formatVariationIndex {
		return Index{}, p.Error("unsupported device table format 0x%04x", format)
	}
	return Index{
		Outer: uint16(buf[0])<<8 | uint16(buf[1]),
		Inner: uint16(buf[2])<<8 | uint16(buf[3]),
	}, nil
}
