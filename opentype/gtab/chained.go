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
	"slices"

	"seehuhn.de/go/otlbuild/internal/parser"
	"seehuhn.de/go/otlbuild/opentype/coverage"
)

// ChainedSeqContext3 is a Chained Sequence Context subtable in format 3,
// used both for GSUB lookup type 6 and for GPOS lookup type 8.
// https://docs.microsoft.com/en-us/typography/opentype/spec/chapter2#chained-sequence-context-format-3-coverage-based-glyph-contexts
type ChainedSeqContext3 struct {
	// Backtrack lists the glyph sets before the input sequence, in text
	// order.  The encoded table stores these in reverse order.
	Backtrack []coverage.Table
	Input     []coverage.Table
	Lookahead []coverage.Table
	Actions   []SeqLookup
}

// SeqLookup describes the lookup to apply at one position of the input
// sequence.
type SeqLookup struct {
	SequenceIndex   uint16
	LookupListIndex LookupIndex
}

func (l *ChainedSeqContext3) coverages() []coverage.Table {
	var res []coverage.Table
	for i := len(l.Backtrack) - 1; i >= 0; i-- {
		res = append(res, l.Backtrack[i])
	}
	res = append(res, l.Input...)
	return append(res, l.Lookahead...)
}

// layout returns the offsets of all coverage tables, in encoding order,
// and the total length.  Identical coverage tables are shared.
func (l *ChainedSeqContext3) layout() ([]int, int) {
	covs := l.coverages()
	pos := 10 + 2*len(covs) + 4*len(l.Actions)
	offs := make([]int, len(covs))
	seen := make(map[string]int)
	for i, cov := range covs {
		key := string(cov.Encode())
		if o, ok := seen[key]; ok {
			offs[i] = o
			continue
		}
		seen[key] = pos
		offs[i] = pos
		pos += len(key)
	}
	return offs, pos
}

// EncodeLen implements the [Subtable] interface.
func (l *ChainedSeqContext3) EncodeLen() int {
	_, total := l.layout()
	return total
}

// Encode implements the [Subtable] interface.
func (l *ChainedSeqContext3) Encode() []byte {
	offs, total := l.layout()
	buf := make([]byte, 0, total)
	buf = append(buf, 0, 3) // format

	k := 0
	for _, n := range []int{len(l.Backtrack), len(l.Input), len(l.Lookahead)} {
		buf = append(buf, byte(n>>8), byte(n))
		for i := 0; i < n; i++ {
			buf = append(buf, byte(offs[k]>>8), byte(offs[k]))
			k++
		}
	}
	buf = append(buf, byte(len(l.Actions)>>8), byte(len(l.Actions)))
	for _, a := range l.Actions {
		buf = append(buf,
			byte(a.SequenceIndex>>8), byte(a.SequenceIndex),
			byte(a.LookupListIndex>>8), byte(a.LookupListIndex))
	}

	for i, cov := range l.coverages() {
		if offs[i] < len(buf) {
			continue
		}
		buf = cov.Append(buf)
	}
	return buf
}

// Lookups implements the [LookupReferrer] interface.
func (l *ChainedSeqContext3) Lookups() []LookupIndex {
	res := make([]LookupIndex, len(l.Actions))
	for i, a := range l.Actions {
		res[i] = a.LookupListIndex
	}
	return res
}

// RemapLookups implements the [LookupReferrer] interface.
func (l *ChainedSeqContext3) RemapLookups(m func(LookupIndex) LookupIndex) Subtable {
	actions := slices.Clone(l.Actions)
	for i := range actions {
		actions[i].LookupListIndex = m(actions[i].LookupListIndex)
	}
	return &ChainedSeqContext3{
		Backtrack: l.Backtrack,
		Input:     l.Input,
		Lookahead: l.Lookahead,
		Actions:   actions,
	}
}

func (l *ChainedSeqContext3) String() string {
	return fmt.Sprintf("ChainedSeqContext3(%d|%d|%d -> %v)",
		len(l.Backtrack), len(l.Input), len(l.Lookahead), l.Actions)
}

func decodeChainedSeq3(p *parser.Parser, pos int) (*ChainedSeqContext3, error) {
	var offsets [3][]uint16
	for i := range offsets {
		var err error
		offsets[i], err = p.ReadUint16Slice()
		if err != nil {
			return nil, err
		}
	}
	seqLookupCount, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	res := &ChainedSeqContext3{}
	for i := 0; i < int(seqLookupCount); i++ {
		buf, err := p.ReadBytes(4)
		if err != nil {
			return nil, err
		}
		res.Actions = append(res.Actions, SeqLookup{
			SequenceIndex:   uint16(buf[0])<<8 | uint16(buf[1]),
			LookupListIndex: LookupIndex(buf[2])<<8 | LookupIndex(buf[3]),
		})
	}

	var covs [3][]coverage.Table
	for i, oo := range offsets {
		for _, o := range oo {
			cov, err := coverage.Decode(p, pos+int(o))
			if err != nil {
				return nil, err
			}
			covs[i] = append(covs[i], cov)
		}
	}
	slices.Reverse(covs[0])
	res.Backtrack = covs[0]
	res.Input = covs[1]
	res.Lookahead = covs[2]
	if len(res.Input) == 0 {
		return nil, p.Error("chained context without input")
	}
	return res, nil
}
