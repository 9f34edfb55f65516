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

// Package gtab encodes OpenType "GSUB" and "GPOS" tables.
//
// A [Table] consists of a [ScriptList], a [FeatureList] and a [LookupList].
// The lookups contain subtables, which implement the [Subtable] interface.
// Subtables which can be split into smaller pieces implement [Splitter],
// subtables which invoke other lookups implement [LookupReferrer].
package gtab

import (
	"seehuhn.de/go/otlbuild/diag"
	"seehuhn.de/go/otlbuild/internal/parser"
)

// Table represents a "GSUB" or "GPOS" table.
type Table struct {
	Tag         string // "GSUB" or "GPOS"
	ScriptList  ScriptList
	FeatureList FeatureList
	LookupList  LookupList
}

// Encode returns the binary representation of the table.  The table is
// written using version 1.0 of the table header.
func (t *Table) Encode() ([]byte, error) {
	lookupData, err := t.LookupList.encode(t.Tag)
	if err != nil {
		return nil, err
	}

	scriptListOffs := 10
	featureListOffs := scriptListOffs + t.ScriptList.encodeLen()
	lookupListOffs := featureListOffs + t.FeatureList.encodeLen()
	if lookupListOffs > 0xFFFF {
		return nil, &diag.Error{
			Kind: diag.Overflow,
			Msg:  t.Tag + " script and feature lists exceed 64kB",
		}
	}

	buf := make([]byte, 0, lookupListOffs+len(lookupData))
	buf = append(buf,
		0, 1, 0, 0, // version 1.0
		byte(scriptListOffs>>8), byte(scriptListOffs),
		byte(featureListOffs>>8), byte(featureListOffs),
		byte(lookupListOffs>>8), byte(lookupListOffs),
	)
	buf = append(buf, t.ScriptList.encode()...)
	buf = append(buf, t.FeatureList.encode()...)
	buf = append(buf, lookupData...)
	return buf, nil
}

// Decode reads a "GSUB" or "GPOS" table.  Extension subtables are
// resolved, the corresponding lookups are marked using the Extension
// field.
func Decode(tag string, data []byte) (*Table, error) {
	p := parser.New(tag, data)
	buf, err := p.ReadBytes(10)
	if err != nil {
		return nil, err
	}
	major := uint16(buf[0])<<8 | uint16(buf[1])
	if major != 1 {
		return nil, p.Error("unsupported table version %d", major)
	}
	scriptListOffs := int(buf[4])<<8 | int(buf[5])
	featureListOffs := int(buf[6])<<8 | int(buf[7])
	lookupListOffs := int(buf[8])<<8 | int(buf[9])

	t := &Table{Tag: tag}
	t.ScriptList, err = decodeScriptList(p, scriptListOffs)
	if err != nil {
		return nil, err
	}
	t.FeatureList, err = decodeFeatureList(p, featureListOffs)
	if err != nil {
		return nil, err
	}
	t.LookupList, err = decodeLookupList(p, lookupListOffs, tag)
	if err != nil {
		return nil, err
	}
	return t, nil
}
