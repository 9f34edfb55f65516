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

package compiler

import (
	"cmp"
	"fmt"
	"slices"

	"seehuhn.de/go/sfnt/glyph"

	"seehuhn.de/go/otlbuild/diag"
	"seehuhn.de/go/otlbuild/opentype/anchor"
	"seehuhn.de/go/otlbuild/opentype/coverage"
	"seehuhn.de/go/otlbuild/opentype/gtab"
	"seehuhn.de/go/otlbuild/opentype/markarray"
	"seehuhn.de/go/otlbuild/pack"
)

// lower converts the group into a candidate lookup.  This only reads the
// group, so different groups can be lowered concurrently.
func (g *group) lower() (*pack.Lookup, error) {
	var lookupType uint16
	var subtables []gtab.Subtable
	var err error
	switch g.kind {
	case kindSubst:
		lookupType, subtables, err = g.lowerSubst()
	case kindLigature:
		lookupType = 4
		subtables, err = g.lowerLigatures()
	case kindSingle:
		lookupType = 1
		subtables, err = g.lowerSingles()
	case kindPair:
		lookupType = 2
		subtables, err = g.lowerPairs()
	case kindMark:
		lookupType = 4
		subtables, err = g.lowerMarks()
	case kindChain:
		lookupType = 6
		if g.table == "GPOS" {
			lookupType = 8
		}
		subtables, err = g.lowerChains()
	}
	if err != nil {
		return nil, err
	}

	tracer().Debugf("%s lookup %d (%s %q): %d subtables",
		g.table, g.id, g.kind, g.name, len(subtables))
	return &pack.Lookup{
		ID:    g.id,
		Table: g.table,
		Name:  g.name,
		Rank:  g.rank,
		Meta: &gtab.LookupMetaInfo{
			LookupType:       lookupType,
			LookupFlag:       g.flags,
			MarkFilteringSet: g.mfs,
		},
		Subtables: subtables,
	}, nil
}

func conflict(pos, other diag.Location, format string, a ...any) error {
	err := diag.Errorf(diag.ConflictingRule, pos, format, a...)
	err.Other = other
	return err
}

// lowerSubst creates a single substitution subtable if every glyph is
// replaced by exactly one glyph, and a multiple substitution subtable
// otherwise.
func (g *group) lowerSubst() (uint16, []gtab.Subtable, error) {
	index := make(map[glyph.ID]int)
	var entries []substEntry
	for _, e := range g.substs {
		if i, ok := index[e.in]; ok {
			if !slices.Equal(entries[i].out, e.out) {
				return 0, nil, conflict(e.pos, entries[i].pos,
					"glyph %d is already substituted by %v", e.in, entries[i].out)
			}
			continue
		}
		index[e.in] = len(entries)
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b substEntry) int {
		return cmp.Compare(a.in, b.in)
	})

	cov := make(coverage.Table, len(entries))
	single := true
	for i, e := range entries {
		cov[i] = e.in
		if len(e.out) != 1 {
			single = false
		}
	}

	if single {
		to := make([]glyph.ID, len(entries))
		for i, e := range entries {
			to[i] = e.out[0]
		}
		if delta, ok := gtab.UniformDelta(cov, to); ok {
			return 1, []gtab.Subtable{&gtab.Gsub1_1{Cov: cov, Delta: delta}}, nil
		}
		return 1, []gtab.Subtable{&gtab.Gsub1_2{Cov: cov, SubstituteGlyphIDs: to}}, nil
	}

	repl := make([][]glyph.ID, len(entries))
	for i, e := range entries {
		repl[i] = e.out
	}
	return 2, []gtab.Subtable{&gtab.Gsub2_1{Cov: cov, Repl: repl}}, nil
}

// lowerLigatures creates a ligature substitution subtable.  Longer
// ligatures come first, ligatures of the same length are ordered by the
// names of their components.
func (g *group) lowerLigatures() ([]gtab.Subtable, error) {
	index := make(map[string]int)
	var entries []ligEntry
	for _, e := range g.ligs {
		key := fmt.Sprint(e.in)
		if i, ok := index[key]; ok {
			if entries[i].out != e.out {
				return nil, conflict(e.pos, entries[i].pos,
					"ligature %v is already mapped to glyph %d", e.names, entries[i].out)
			}
			continue
		}
		index[key] = len(entries)
		entries = append(entries, e)
	}
	slices.SortStableFunc(entries, func(a, b ligEntry) int {
		if len(a.in) != len(b.in) {
			return len(b.in) - len(a.in)
		}
		return slices.Compare(a.names, b.names)
	})

	first := make([]glyph.ID, len(entries))
	for i, e := range entries {
		first[i] = e.in[0]
	}
	cov := coverage.New(first...)
	repl := make([][]gtab.Ligature, len(cov))
	for _, e := range entries {
		i, _ := cov.Index(e.in[0])
		repl[i] = append(repl[i], gtab.Ligature{In: e.in[1:], Out: e.out})
	}
	return []gtab.Subtable{&gtab.Gsub4_1{Cov: cov, Repl: repl}}, nil
}

func valueKey(vr *gtab.ValueRecord) string {
	if vr == nil {
		return "_"
	}
	return vr.String()
}

// lowerSingles creates a format 1 single adjustment subtable if all glyphs
// get the same adjustment, and a format 2 subtable otherwise.
func (g *group) lowerSingles() ([]gtab.Subtable, error) {
	index := make(map[glyph.ID]int)
	var entries []singleEntry
	for _, e := range g.singles {
		if i, ok := index[e.gid]; ok {
			prev := entries[i]
			if valueKey(prev.v) != valueKey(e.v) {
				return nil, conflict(e.pos, prev.pos,
					"glyph %d already has a different adjustment", e.gid)
			}
			continue
		}
		index[e.gid] = len(entries)
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b singleEntry) int {
		return cmp.Compare(a.gid, b.gid)
	})

	cov := make(coverage.Table, len(entries))
	uniform := true
	for i, e := range entries {
		cov[i] = e.gid
		if valueKey(e.v) != valueKey(entries[0].v) {
			uniform = false
		}
	}
	if uniform {
		return []gtab.Subtable{&gtab.Gpos1_1{Cov: cov, Adjust: entries[0].v}}, nil
	}
	adjust := make([]*gtab.ValueRecord, len(entries))
	for i, e := range entries {
		adjust[i] = e.v
		if adjust[i] == nil {
			adjust[i] = &gtab.ValueRecord{}
		}
	}
	return []gtab.Subtable{&gtab.Gpos1_2{Cov: cov, Adjust: adjust}}, nil
}

// lowerPairs creates a pair adjustment subtable.
func (g *group) lowerPairs() ([]gtab.Subtable, error) {
	index := make(map[[2]glyph.ID]int)
	var entries []pairEntry
	for _, e := range g.pairs {
		key := [2]glyph.ID{e.first, e.second}
		if i, ok := index[key]; ok {
			prev := entries[i]
			if valueKey(prev.v1) != valueKey(e.v1) || valueKey(prev.v2) != valueKey(e.v2) {
				return nil, conflict(e.pos, prev.pos,
					"glyph pair %d %d already has a different adjustment", e.first, e.second)
			}
			continue
		}
		index[key] = len(entries)
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b pairEntry) int {
		if a.first != b.first {
			return cmp.Compare(a.first, b.first)
		}
		return cmp.Compare(a.second, b.second)
	})

	var cov coverage.Table
	var pairSets [][]gtab.PairValueRecord
	for _, e := range entries {
		if len(cov) == 0 || cov[len(cov)-1] != e.first {
			cov = append(cov, e.first)
			pairSets = append(pairSets, nil)
		}
		k := len(pairSets) - 1
		pairSets[k] = append(pairSets[k], gtab.PairValueRecord{
			SecondGlyph: e.second,
			First:       e.v1,
			Second:      e.v2,
		})
	}
	return []gtab.Subtable{&gtab.Gpos2_1{Cov: cov, PairSets: pairSets}}, nil
}

// lowerMarks creates a mark-to-base attachment subtable.  Mark classes are
// numbered in order of first appearance.
func (g *group) lowerMarks() ([]gtab.Subtable, error) {
	classIndex := make(map[string]int)
	markIndex := make(map[glyph.ID]int)
	var marks []markEntry
	for _, e := range g.marks {
		if _, ok := classIndex[e.class]; !ok {
			if len(classIndex) > 0xFFFF {
				return nil, diag.Errorf(diag.Overflow, e.pos, "too many mark classes")
			}
			classIndex[e.class] = len(classIndex)
		}
		if i, ok := markIndex[e.gid]; ok {
			prev := marks[i]
			if prev.class != e.class || prev.anchor.String() != e.anchor.String() {
				return nil, conflict(e.pos, prev.pos,
					"mark glyph %d already has a different class or anchor", e.gid)
			}
			continue
		}
		markIndex[e.gid] = len(marks)
		marks = append(marks, e)
	}
	slices.SortFunc(marks, func(a, b markEntry) int {
		return cmp.Compare(a.gid, b.gid)
	})

	type baseKey struct {
		gid   glyph.ID
		class string
	}
	baseIndex := make(map[baseKey]int)
	var bases []markEntry
	for _, e := range g.bases {
		key := baseKey{e.gid, e.class}
		if i, ok := baseIndex[key]; ok {
			prev := bases[i]
			if prev.anchor.String() != e.anchor.String() {
				return nil, conflict(e.pos, prev.pos,
					"base glyph %d already has a different anchor for class %q", e.gid, e.class)
			}
			continue
		}
		baseIndex[key] = len(bases)
		bases = append(bases, e)
	}

	res := &gtab.Gpos4_1{
		MarkArray: make(markarray.Table, len(marks)),
	}
	for i, e := range marks {
		res.MarkCov = append(res.MarkCov, e.gid)
		res.MarkArray[i] = markarray.Record{
			Class: uint16(classIndex[e.class]),
			Table: *e.anchor,
		}
	}
	baseGids := make([]glyph.ID, len(bases))
	for i, e := range bases {
		baseGids[i] = e.gid
	}
	res.BaseCov = coverage.New(baseGids...)
	res.BaseArray = make([][]*anchor.Table, len(res.BaseCov))
	for i := range res.BaseArray {
		res.BaseArray[i] = make([]*anchor.Table, len(classIndex))
	}
	for _, e := range bases {
		i, _ := res.BaseCov.Index(e.gid)
		res.BaseArray[i][classIndex[e.class]] = e.anchor
	}
	return []gtab.Subtable{res}, nil
}

// lowerChains creates one chained context subtable per rule, in source
// order.  The action lookups are given as candidate IDs.
func (g *group) lowerChains() ([]gtab.Subtable, error) {
	res := make([]gtab.Subtable, len(g.chains))
	for i, e := range g.chains {
		st := &gtab.ChainedSeqContext3{
			Backtrack: e.backtrack,
			Input:     e.input,
			Lookahead: e.lookahead,
		}
		for _, a := range e.actions {
			if a.target > 0xFFFF {
				return nil, diag.Errorf(diag.Overflow, e.pos, "too many candidate lookups")
			}
			st.Actions = append(st.Actions, gtab.SeqLookup{
				SequenceIndex:   uint16(a.index),
				LookupListIndex: gtab.LookupIndex(a.target),
			})
		}
		res[i] = st
	}
	return res, nil
}
