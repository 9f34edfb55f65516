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

// Package gdef reads and writes "GDEF" tables.
// https://docs.microsoft.com/en-us/typography/opentype/spec/GDEF
package gdef

import (
	"seehuhn.de/go/otlbuild/diag"
	"seehuhn.de/go/otlbuild/internal/parser"
	"seehuhn.de/go/otlbuild/opentype/classdef"
	"seehuhn.de/go/otlbuild/opentype/coverage"
	"seehuhn.de/go/otlbuild/varstore"
)

// Table contains the information from a GDEF table.
type Table struct {
	GlyphClass      classdef.Table
	MarkAttachClass classdef.Table
	MarkGlyphSets   []coverage.Table

	// VarStore holds the deltas referenced by VariationIndex device
	// tables in GPOS.  If this is non-nil, a version 1.3 table is written.
	VarStore *varstore.Store
}

// Possible values for the GlyphClass field.
const (
	GlyphClassBase      = 1
	GlyphClassLigature  = 2
	GlyphClassMark      = 3
	GlyphClassComponent = 4
)

// IsEmpty reports whether the table carries no information.
func (t *Table) IsEmpty() bool {
	return t == nil || len(t.GlyphClass) == 0 && len(t.MarkAttachClass) == 0 &&
		len(t.MarkGlyphSets) == 0 && t.VarStore == nil
}

func (t *Table) headerLen() (int, uint16) {
	switch {
	case t.VarStore != nil:
		return 18, 3
	case t.MarkGlyphSets != nil:
		return 14, 2
	default:
		return 12, 0
	}
}

// Encode returns the binary representation of the table.
func (t *Table) Encode() ([]byte, error) {
	pos, minor := t.headerLen()

	var glyphClassOffs, markAttachOffs, markSetsOffs, varStoreOffs int
	if t.GlyphClass != nil {
		glyphClassOffs = pos
		pos += t.GlyphClass.EncodeLen()
	}
	if t.MarkAttachClass != nil {
		markAttachOffs = pos
		pos += t.MarkAttachClass.EncodeLen()
	}
	if t.MarkGlyphSets != nil {
		markSetsOffs = pos
		pos += 4 + 4*len(t.MarkGlyphSets)
		for _, set := range t.MarkGlyphSets {
			pos += set.EncodeLen()
		}
	}
	if pos > 0xFFFF {
		return nil, &diag.Error{Kind: diag.Overflow, Msg: "GDEF class definitions too large"}
	}
	var store []byte
	if t.VarStore != nil {
		var err error
		store, err = t.VarStore.Encode()
		if err != nil {
			return nil, err
		}
		varStoreOffs = pos
		pos += len(store)
	}

	buf := make([]byte, 0, pos)
	buf = append(buf,
		0, 1, // majorVersion
		0, byte(minor),
		byte(glyphClassOffs>>8), byte(glyphClassOffs),
		0, 0, // attachListOffset
		0, 0, // ligCaretListOffset
		byte(markAttachOffs>>8), byte(markAttachOffs))
	if minor >= 2 {
		buf = append(buf, byte(markSetsOffs>>8), byte(markSetsOffs))
	}
	if minor >= 3 {
		buf = append(buf,
			byte(varStoreOffs>>24), byte(varStoreOffs>>16), byte(varStoreOffs>>8), byte(varStoreOffs))
	}

	if t.GlyphClass != nil {
		buf = t.GlyphClass.Append(buf)
	}
	if t.MarkAttachClass != nil {
		buf = t.MarkAttachClass.Append(buf)
	}
	if t.MarkGlyphSets != nil {
		n := len(t.MarkGlyphSets)
		buf = append(buf,
			0, 1, // format
			byte(n>>8), byte(n))
		offs := 4 + 4*n
		for _, set := range t.MarkGlyphSets {
			buf = append(buf, byte(offs>>24), byte(offs>>16), byte(offs>>8), byte(offs))
			offs += set.EncodeLen()
		}
		for _, set := range t.MarkGlyphSets {
			buf = set.Append(buf)
		}
	}
	buf = append(buf, store...)
	return buf, nil
}

// Decode reads a GDEF table.  The axis tags are needed to interpret the
// ItemVariationStore, if present.
func Decode(data []byte, axes []string) (*Table, error) {
	p := parser.New("GDEF", data)
	buf, err := p.ReadBytes(12)
	if err != nil {
		return nil, err
	}
	major := uint16(buf[0])<<8 | uint16(buf[1])
	minor := uint16(buf[2])<<8 | uint16(buf[3])
	if major != 1 || (minor != 0 && minor != 2 && minor != 3) {
		return nil, p.Error("unsupported GDEF version %d.%d", major, minor)
	}
	glyphClassOffs := int(buf[4])<<8 | int(buf[5])
	markAttachOffs := int(buf[10])<<8 | int(buf[11])
	var markSetsOffs int
	if minor >= 2 {
		x, err := p.ReadUint16()
		if err != nil {
			return nil, err
		}
		markSetsOffs = int(x)
	}
	var varStoreOffs int
	if minor >= 3 {
		x, err := p.ReadUint32()
		if err != nil {
			return nil, err
		}
		varStoreOffs = int(x)
	}

	t := &Table{}
	if glyphClassOffs != 0 {
		t.GlyphClass, err = classdef.Decode(p, glyphClassOffs)
		if err != nil {
			return nil, err
		}
	}
	if markAttachOffs != 0 {
		t.MarkAttachClass, err = classdef.Decode(p, markAttachOffs)
		if err != nil {
			return nil, err
		}
	}
	if markSetsOffs != 0 {
		err = p.SeekPos(markSetsOffs)
		if err != nil {
			return nil, err
		}
		format, err := p.ReadUint16()
		if err != nil {
			return nil, err
		}
		if format != 1 {
			return nil, p.Error("unsupported mark glyph sets format %d", format)
		}
		n, err := p.ReadUint16()
		if err != nil {
			return nil, err
		}
		offs := make([]uint32, n)
		for i := range offs {
			offs[i], err = p.ReadUint32()
			if err != nil {
				return nil, err
			}
		}
		t.MarkGlyphSets = make([]coverage.Table, n)
		for i, o := range offs {
			t.MarkGlyphSets[i], err = coverage.Decode(p, markSetsOffs+int(o))
			if err != nil {
				return nil, err
			}
		}
	}
	if varStoreOffs != 0 {
		t.VarStore, err = varstore.Decode(p, varStoreOffs, axes)
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}
