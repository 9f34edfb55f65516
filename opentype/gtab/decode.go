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

package gtab

import (
	"seehuhn.de/go/otlbuild/internal/parser"
)

func decodeSubtable(p *parser.Parser, pos int, tableTag string, lookupType uint16) (Subtable, error) {
	if tableTag == "GPOS" {
		return decodeGpos(p, pos, lookupType)
	}
	return decodeGsub(p, pos, lookupType)
}

func decodeLookupList(p *parser.Parser, pos int, tableTag string) (LookupList, error) {
	err := p.SeekPos(pos)
	if err != nil {
		return nil, err
	}
	lookupOffsets, err := p.ReadUint16Slice()
	if err != nil {
		return nil, err
	}

	extType := extensionLookupType(tableTag)
	res := make(LookupList, len(lookupOffsets))
	for i, offs := range lookupOffsets {
		lookupPos := pos + int(offs)
		err := p.SeekPos(lookupPos)
		if err != nil {
			return nil, err
		}
		buf, err := p.ReadBytes(4)
		if err != nil {
			return nil, err
		}
		meta := &LookupMetaInfo{
			LookupType: uint16(buf[0])<<8 | uint16(buf[1]),
			LookupFlag: LookupFlags(buf[2])<<8 | LookupFlags(buf[3]),
		}
		subtableOffsets, err := p.ReadUint16Slice()
		if err != nil {
			return nil, err
		}
		if meta.LookupFlag&LookupUseMarkFilteringSet != 0 {
			meta.MarkFilteringSet, err = p.ReadUint16()
			if err != nil {
				return nil, err
			}
		}

		lookup := &LookupTable{Meta: meta}
		if meta.LookupType == extType {
			lookup.Extension = true
			meta.LookupType = 0
		}
		for _, stOffs := range subtableOffsets {
			stPos := lookupPos + int(stOffs)
			if lookup.Extension {
				err = p.SeekPos(stPos)
				if err != nil {
					return nil, err
				}
				buf, err := p.ReadBytes(8)
				if err != nil {
					return nil, err
				}
				format := uint16(buf[0])<<8 | uint16(buf[1])
				innerType := uint16(buf[2])<<8 | uint16(buf[3])
				extOffs := int(buf[4])<<24 | int(buf[5])<<16 | int(buf[6])<<8 | int(buf[7])
				if format != 1 || innerType == extType ||
					meta.LookupType != 0 && innerType != meta.LookupType {
					return nil, p.Error("invalid extension subtable")
				}
				meta.LookupType = innerType
				stPos += extOffs
			}
			subtable, err := decodeSubtable(p, stPos, tableTag, meta.LookupType)
			if err != nil {
				return nil, err
			}
			lookup.Subtables = append(lookup.Subtables, subtable)
		}
		res[i] = lookup
	}
	return res, nil
}
