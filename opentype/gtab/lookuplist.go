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

	"seehuhn.de/go/otlbuild/diag"
)

// LookupMetaInfo contains information associated with a lookup but not
// specific to a subtable.
type LookupMetaInfo struct {
	LookupType       uint16
	LookupFlag       LookupFlags
	MarkFilteringSet uint16
}

// LookupFlags contains bits which modify application of a lookup to a glyph string.
// https://docs.microsoft.com/en-us/typography/opentype/spec/chapter2#lookupFlags
type LookupFlags uint16

// Bit values for LookupFlag.
const (
	LookupRightToLeft         LookupFlags = 0x0001
	LookupIgnoreBaseGlyphs    LookupFlags = 0x0002
	LookupIgnoreLigatures     LookupFlags = 0x0004
	LookupIgnoreMarks         LookupFlags = 0x0008
	LookupUseMarkFilteringSet LookupFlags = 0x0010
	LookupMarkAttachTypeMask  LookupFlags = 0xFF00
)

// LookupIndex enumerates lookups.
// It is used as an index into a LookupList.
type LookupIndex uint16

// Subtable represents a subtable of a "GSUB" or "GPOS" lookup table.
type Subtable interface {
	EncodeLen() int
	Encode() []byte
}

// Splitter is implemented by subtables which can be split into several
// smaller subtables without changing the meaning of the lookup.  The
// entries are kept in order, Slice(i, j) returns a subtable containing
// the entries i, ..., j-1.
type Splitter interface {
	Subtable
	Entries() int
	Slice(i, j int) Subtable
}

// LookupReferrer is implemented by subtables which invoke other lookups.
type LookupReferrer interface {
	Subtable

	// Lookups returns the indices of all lookups referenced by the
	// subtable.
	Lookups() []LookupIndex

	// RemapLookups returns a copy of the subtable where every lookup index
	// has been replaced by m(index).  The receiver is not modified.
	RemapLookups(m func(LookupIndex) LookupIndex) Subtable
}

// LookupList contains the information from a Lookup List Table.
// https://docs.microsoft.com/en-us/typography/opentype/spec/chapter2#lookup-list-table
type LookupList []*LookupTable

// LookupTable represents a lookup table inside a "GSUB" or "GPOS" table of a
// font.
// https://docs.microsoft.com/en-us/typography/opentype/spec/chapter2#lookup-table
type LookupTable struct {
	Meta      *LookupMetaInfo
	Subtables []Subtable

	// Extension indicates that the subtables are written using extension
	// subtables, which use 32-bit offsets.
	Extension bool
}

func (li *LookupTable) headerLen() int {
	n := 6 + 2*len(li.Subtables)
	if li.Meta.LookupFlag&LookupUseMarkFilteringSet != 0 {
		n += 2
	}
	return n
}

// EncodeLen returns the number of bytes required to encode the lookup
// table, including its subtables.  For extension lookups, this includes
// the extension subtables and the payloads.
func (li *LookupTable) EncodeLen() int {
	total := li.headerLen()
	if li.Extension {
		total += 8 * len(li.Subtables)
	}
	for _, subtable := range li.Subtables {
		total += subtable.EncodeLen()
	}
	return total
}

// extensionLookupType returns the lookup type of extension lookups for the
// given table.
func extensionLookupType(tableTag string) uint16 {
	if tableTag == "GPOS" {
		return 9
	}
	return 7
}

type lookupListLayout struct {
	lookupOffs []int // relative to the start of the lookup list
	payloads   []int // extension payload offsets, in encoding order
	total      int

	// overflow describes the first offset which does not fit, or is empty.
	overflow string
}

// layout computes the positions of all lookups.  Extension lookups are
// small and are placed first, all extension payloads are placed at the
// end.
func (ll LookupList) layout() *lookupListLayout {
	res := &lookupListLayout{lookupOffs: make([]int, len(ll))}
	pos := 2 + 2*len(ll)

	for _, ext := range []bool{true, false} {
		for i, li := range ll {
			if li.Extension != ext {
				continue
			}
			res.lookupOffs[i] = pos
			if pos > 0xFFFF && res.overflow == "" {
				res.overflow = fmt.Sprintf("offset of lookup %d is %d", i, pos)
			}
			stPos := li.headerLen()
			if ext {
				stPos += 8 * len(li.Subtables)
			} else {
				for j, st := range li.Subtables {
					if stPos > 0xFFFF && res.overflow == "" {
						res.overflow = fmt.Sprintf("offset of subtable %d in lookup %d is %d", j, i, stPos)
					}
					stPos += st.EncodeLen()
				}
			}
			pos += stPos
		}
	}

	seen := make(map[string]int)
	for _, li := range ll {
		if !li.Extension {
			continue
		}
		for _, st := range li.Subtables {
			data := string(st.Encode())
			if offs, ok := seen[data]; ok {
				res.payloads = append(res.payloads, offs)
				continue
			}
			seen[data] = pos
			res.payloads = append(res.payloads, pos)
			pos += len(data)
		}
	}
	res.total = pos
	return res
}

// Overflow reports whether any of the 16-bit offsets in the encoded lookup
// list would overflow.  If so, a description of the first problem is
// returned.
func (ll LookupList) Overflow() (string, bool) {
	l := ll.layout()
	return l.overflow, l.overflow != ""
}

func (ll LookupList) encode(tableTag string) ([]byte, error) {
	l := ll.layout()
	if l.overflow != "" {
		return nil, &diag.Error{
			Kind: diag.Overflow,
			Msg:  tableTag + " lookup list: " + l.overflow,
		}
	}

	res := make([]byte, 0, l.total)
	res = append(res, byte(len(ll)>>8), byte(len(ll)))
	for i := range ll {
		res = append(res, byte(l.lookupOffs[i]>>8), byte(l.lookupOffs[i]))
	}

	extType := extensionLookupType(tableTag)
	payloadIdx := 0
	var payloads []Subtable
	for _, ext := range []bool{true, false} {
		for _, li := range ll {
			if li.Extension != ext {
				continue
			}
			lookupType := li.Meta.LookupType
			if ext {
				lookupType = extType
			}
			subTableCount := len(li.Subtables)
			res = append(res,
				byte(lookupType>>8), byte(lookupType),
				byte(li.Meta.LookupFlag>>8), byte(li.Meta.LookupFlag),
				byte(subTableCount>>8), byte(subTableCount))

			stPos := li.headerLen()
			for _, st := range li.Subtables {
				res = append(res, byte(stPos>>8), byte(stPos))
				if ext {
					stPos += 8
				} else {
					stPos += st.EncodeLen()
				}
			}
			if li.Meta.LookupFlag&LookupUseMarkFilteringSet != 0 {
				res = append(res,
					byte(li.Meta.MarkFilteringSet>>8), byte(li.Meta.MarkFilteringSet))
			}

			if !ext {
				for _, st := range li.Subtables {
					res = append(res, st.Encode()...)
				}
				continue
			}
			for _, st := range li.Subtables {
				extStart := len(res)
				offs := l.payloads[payloadIdx] - extStart
				payloadIdx++
				res = append(res,
					0, 1, // substFormat
					byte(li.Meta.LookupType>>8), byte(li.Meta.LookupType),
					byte(offs>>24), byte(offs>>16), byte(offs>>8), byte(offs))
				payloads = append(payloads, st)
			}
		}
	}

	written := make(map[int]bool)
	for i, st := range payloads {
		offs := l.payloads[i]
		if written[offs] {
			continue
		}
		written[offs] = true
		res = append(res, st.Encode()...)
	}
	return res, nil
}
