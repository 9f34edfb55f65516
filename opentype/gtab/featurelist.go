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
	"fmt"

	"seehuhn.de/go/otlbuild/internal/parser"
)

// FeatureIndex enumerates features.
// It is used as an index into the FeatureList.
// The special value 0xFFFF is used to indicate the absence of a required
// feature in the [Features] struct.
type FeatureIndex uint16

// NoRequiredFeature marks the absence of a required feature.
const NoRequiredFeature FeatureIndex = 0xFFFF

// FeatureList contains the contents of an OpenType "Feature List" table.
// The features must be sorted by tag.
type FeatureList []*Feature

// Feature describes an OpenType feature, used either in a "GPOS" or "GSUB"
// table.
type Feature struct {
	// Tag describes the function of this feature.
	// https://docs.microsoft.com/en-us/typography/opentype/spec/featuretags
	Tag string

	// Lookups is a list of lookup indices that are used by this feature.
	Lookups []LookupIndex
}

func (f Feature) String() string {
	return fmt.Sprintf("%s:%v", f.Tag, f.Lookups)
}

func (info FeatureList) encodeLen() int {
	total := 2 + 6*len(info)
	for _, f := range info {
		total += 4 + 2*len(f.Lookups)
	}
	return total
}

func (info FeatureList) encode() []byte {
	buf := make([]byte, 0, info.encodeLen())
	buf = append(buf, byte(len(info)>>8), byte(len(info)))
	pos := 2 + 6*len(info)
	for _, f := range info {
		buf = append(buf, tagBytes(f.Tag)...)
		buf = append(buf, byte(pos>>8), byte(pos))
		pos += 4 + 2*len(f.Lookups)
	}
	for _, f := range info {
		buf = append(buf,
			0, 0, // featureParamsOffset
			byte(len(f.Lookups)>>8), byte(len(f.Lookups)))
		for _, l := range f.Lookups {
			buf = append(buf, byte(l>>8), byte(l))
		}
	}
	return buf
}

// https://docs.microsoft.com/en-us/typography/opentype/spec/chapter2#feature-list-table
func decodeFeatureList(p *parser.Parser, pos int) (FeatureList, error) {
	err := p.SeekPos(pos)
	if err != nil {
		return nil, err
	}
	featureCount, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}

	tags := make([]string, featureCount)
	offsets := make([]uint16, featureCount)
	for i := range tags {
		tags[i], err = p.ReadTag()
		if err != nil {
			return nil, err
		}
		offsets[i], err = p.ReadUint16()
		if err != nil {
			return nil, err
		}
	}

	info := make(FeatureList, featureCount)
	for i, offs := range offsets {
		err = p.SeekPos(pos + int(offs))
		if err != nil {
			return nil, err
		}
		err = p.Discard(2) // featureParamsOffset
		if err != nil {
			return nil, err
		}
		indices, err := p.ReadUint16Slice()
		if err != nil {
			return nil, err
		}
		f := &Feature{Tag: tags[i]}
		for _, idx := range indices {
			f.Lookups = append(f.Lookups, LookupIndex(idx))
		}
		info[i] = f
	}
	return info, nil
}

// tagBytes returns the four bytes of an OpenType tag.  Short tags are
// padded with spaces.
func tagBytes(tag string) []byte {
	res := []byte("    ")
	copy(res, tag)
	return res
}
