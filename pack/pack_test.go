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

package pack

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"

	"seehuhn.de/go/otlbuild/diag"
	"seehuhn.de/go/otlbuild/opentype/coverage"
	"seehuhn.de/go/otlbuild/opentype/gtab"
	"seehuhn.de/go/otlbuild/provenance"
	"seehuhn.de/go/sfnt/glyph"
)

type builder struct {
	g *Graph
}

func newBuilder() *builder {
	return &builder{g: &Graph{Provenance: provenance.NewTracker()}}
}

func (b *builder) lookup(table string, rank int, lookupType uint16, sts ...gtab.Subtable) int {
	id := len(b.g.Lookups)
	b.g.Lookups = append(b.g.Lookups, &Lookup{
		ID:        id,
		Table:     table,
		Rank:      rank,
		Meta:      &gtab.LookupMetaInfo{LookupType: lookupType},
		Subtables: sts,
	})
	return id
}

func (b *builder) feature(table, tag string, ids ...int) {
	b.g.Features = append(b.g.Features, &Feature{
		Table:    table,
		Script:   "latn",
		Language: "dflt",
		Tag:      tag,
		Lookups:  ids,
	})
}

func single(from, to glyph.ID) *gtab.Gsub1_1 {
	return &gtab.Gsub1_1{Cov: coverage.New(from), Delta: to - from}
}

func chain(target int) *gtab.ChainedSeqContext3 {
	return &gtab.ChainedSeqContext3{
		Input:   []coverage.Table{coverage.New(1)},
		Actions: []gtab.SeqLookup{{SequenceIndex: 0, LookupListIndex: gtab.LookupIndex(target)}},
	}
}

func bigSingle(n int, offset glyph.ID) *gtab.Gsub1_2 {
	st := &gtab.Gsub1_2{}
	for i := 0; i < n; i++ {
		st.Cov = append(st.Cov, glyph.ID(i+1))
		st.SubstituteGlyphIDs = append(st.SubstituteGlyphIDs, glyph.ID(3*i)+offset)
	}
	return st
}

// Identical lookups are merged and their provenance lists are joined.
func TestMergeProvenance(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otlbuild.pack")
	defer teardown()

	b := newBuilder()
	a := b.lookup("GSUB", 0, 1, single(5, 6))
	c := b.lookup("GSUB", 1, 1, single(5, 6))
	b.feature("GSUB", "smcp", a)
	b.feature("GSUB", "c2sc", c)
	e1 := provenance.Entry{Feature: "smcp", Script: "latn", Language: "dflt", Pos: diag.Location{Line: 1}}
	e2 := provenance.Entry{Feature: "c2sc", Script: "latn", Language: "dflt", Pos: diag.Location{Line: 2}}
	b.g.Provenance.Attach(a, e1)
	b.g.Provenance.Attach(c, e2)

	res, err := Pack(b.g, nil)
	if err != nil {
		t.Fatal(err)
	}
	gsub := res.Tables["GSUB"]
	if len(gsub.LookupList) != 1 {
		t.Fatalf("expected 1 lookup, got %d", len(gsub.LookupList))
	}
	if d := cmp.Diff(map[int]int{a: 0}, res.IndexOf["GSUB"]); d != "" {
		t.Error(d)
	}
	records := b.g.Provenance.Export("GSUB", res.IndexOf["GSUB"])
	want := []provenance.Record{{Table: "GSUB", Lookup: 0, Entries: []provenance.Entry{e1, e2}}}
	if d := cmp.Diff(want, records); d != "" {
		t.Error(d)
	}

	// both features use the merged lookup
	for _, f := range gsub.FeatureList {
		if d := cmp.Diff([]gtab.LookupIndex{0}, f.Lookups); d != "" {
			t.Errorf("%s: %s", f.Tag, d)
		}
	}
	if n := len(gsub.FeatureList); n != 2 {
		t.Errorf("expected 2 features, got %d", n)
	}
}

// Merging the targets of two chain lookups makes the chain lookups
// identical, so that they are merged in a second round.
func TestChainFixedPoint(t *testing.T) {
	b := newBuilder()
	t1 := b.lookup("GSUB", 0, 1, single(1, 2))
	c1 := b.lookup("GSUB", 0, 6, chain(t1))
	t2 := b.lookup("GSUB", 1, 1, single(1, 2))
	c2 := b.lookup("GSUB", 1, 6, chain(t2))
	b.feature("GSUB", "calt", c1)
	b.feature("GSUB", "ss01", c2)

	res, err := Pack(b.g, nil)
	if err != nil {
		t.Fatal(err)
	}
	ll := res.Tables["GSUB"].LookupList
	if len(ll) != 2 {
		t.Fatalf("expected 2 lookups, got %d", len(ll))
	}
	if d := cmp.Diff(map[int]int{t1: 0, c1: 1}, res.IndexOf["GSUB"]); d != "" {
		t.Error(d)
	}
	st := ll[1].Subtables[0].(*gtab.ChainedSeqContext3)
	if d := cmp.Diff([]gtab.LookupIndex{0}, st.Lookups()); d != "" {
		t.Error(d)
	}
}

func TestKeepSeparate(t *testing.T) {
	b := newBuilder()
	a := b.lookup("GSUB", 0, 1, single(5, 6), single(5, 6))
	c := b.lookup("GSUB", 0, 1, single(5, 6))
	b.feature("GSUB", "smcp", a, c)

	opt := &Options{Strategy: map[string]Strategy{"GSUB": KeepSeparate}}
	res, err := Pack(b.g, opt)
	if err != nil {
		t.Fatal(err)
	}
	ll := res.Tables["GSUB"].LookupList
	if len(ll) != 2 {
		t.Fatalf("expected 2 lookups, got %d", len(ll))
	}
	if n := len(ll[0].Subtables); n != 1 {
		t.Errorf("duplicate subtable not removed, %d subtables", n)
	}
}

// Subtables with identical encodings in different tables stay separate.
func TestDedupAcrossTables(t *testing.T) {
	b := newBuilder()
	sub := &gtab.Gsub1_1{Cov: coverage.New(5)}
	pos := &gtab.Gpos1_1{Cov: coverage.New(5)}
	if !bytes.Equal(sub.Encode(), pos.Encode()) {
		t.Fatal("encodings differ")
	}
	a := b.lookup("GSUB", 0, 1, sub)
	c := b.lookup("GPOS", 0, 1, pos)
	b.feature("GSUB", "smcp", a)
	b.feature("GPOS", "cpsp", c)

	res, err := Pack(b.g, nil)
	if err != nil {
		t.Fatal(err)
	}
	if st := res.Tables["GSUB"].LookupList[0].Subtables[0]; st != gtab.Subtable(sub) {
		t.Errorf("GSUB subtable replaced by %T", st)
	}
	if st := res.Tables["GPOS"].LookupList[0].Subtables[0]; st != gtab.Subtable(pos) {
		t.Errorf("GPOS subtable replaced by %T", st)
	}
}

// Lookups are sorted by scope rank, then by lookup type, then by order of
// appearance.
func TestIndexOrder(t *testing.T) {
	b := newBuilder()
	l0 := b.lookup("GSUB", 1, 1, single(1, 2))
	l1 := b.lookup("GSUB", 0, 4, &gtab.Gsub4_1{
		Cov:  coverage.New(3),
		Repl: [][]gtab.Ligature{{{In: []glyph.ID{4}, Out: 5}}},
	})
	l2 := b.lookup("GSUB", 0, 1, single(6, 7))
	l3 := b.lookup("GSUB", 0, 1, single(8, 9))
	b.feature("GSUB", "liga", l0, l1, l2, l3)

	res, err := Pack(b.g, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := map[int]int{l2: 0, l3: 1, l1: 2, l0: 3}
	if d := cmp.Diff(want, res.IndexOf["GSUB"]); d != "" {
		t.Error(d)
	}
	if d := cmp.Diff([]gtab.LookupIndex{0, 1, 2, 3}, res.Tables["GSUB"].FeatureList[0].Lookups); d != "" {
		t.Error(d)
	}
}

// A subtable which is too large is split into several subtables which
// together contain every entry exactly once, in the original order.
func TestSplitCoverage(t *testing.T) {
	const maxSize = 500
	orig := bigSingle(1000, 7)

	b := newBuilder()
	id := b.lookup("GSUB", 0, 1, orig)
	b.feature("GSUB", "salt", id)
	res, err := Pack(b.g, &Options{MaxSubtableSize: maxSize})
	if err != nil {
		t.Fatal(err)
	}

	parts := res.Tables["GSUB"].LookupList[0].Subtables
	if len(parts) < 2 {
		t.Fatalf("expected several parts, got %d", len(parts))
	}
	joined := &gtab.Gsub1_2{}
	for _, part := range parts {
		if n := part.EncodeLen(); n > maxSize {
			t.Errorf("part of size %d exceeds the limit", n)
		}
		st := part.(*gtab.Gsub1_2)
		joined.Cov = append(joined.Cov, st.Cov...)
		joined.SubstituteGlyphIDs = append(joined.SubstituteGlyphIDs, st.SubstituteGlyphIDs...)
	}
	if d := cmp.Diff(orig, joined); d != "" {
		t.Error(d)
	}
}

func TestSplitGpos(t *testing.T) {
	st := &gtab.Gpos2_1{}
	for i := 0; i < 300; i++ {
		st.Cov = append(st.Cov, glyph.ID(2*i+1))
		st.PairSets = append(st.PairSets, []gtab.PairValueRecord{
			{SecondGlyph: 1, First: &gtab.ValueRecord{XAdvance: -10}},
			{SecondGlyph: glyph.ID(i), First: &gtab.ValueRecord{XAdvance: -20}},
		})
	}
	parts, err := split(st, 1000)
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, part := range parts {
		if part.EncodeLen() > 1000 {
			t.Errorf("part too large: %d", part.EncodeLen())
		}
		total += part.(*gtab.Gpos2_1).Entries()
	}
	if total != 300 {
		t.Errorf("parts contain %d entries, expected 300", total)
	}
}

func TestOverflow(t *testing.T) {
	b := newBuilder()
	id := b.lookup("GSUB", 0, 2, &gtab.Gsub2_1{
		Cov:  coverage.New(1),
		Repl: [][]glyph.ID{make([]glyph.ID, 100)},
	})
	b.feature("GSUB", "ccmp", id)
	b.g.Provenance.Attach(id, provenance.Entry{Pos: diag.Location{File: "x.fea", Line: 7, Column: 1}})

	_, err := Pack(b.g, &Options{MaxSubtableSize: 100})
	if !diag.IsKind(err, diag.Overflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
	if pos := err.(*diag.Error).Pos; pos.Line != 7 {
		t.Errorf("wrong error position %s", pos)
	}

	b = newBuilder()
	id = b.lookup("GSUB", 0, 6, chain(0))
	b.feature("GSUB", "calt", id)
	_, err = Pack(b.g, &Options{MaxSubtableSize: 10})
	if !diag.IsKind(err, diag.Overflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
}

func TestExtensionPromotion(t *testing.T) {
	b := newBuilder()
	var ids []int
	for i := 0; i < 3; i++ {
		ids = append(ids, b.lookup("GSUB", 0, 1, bigSingle(20000, glyph.ID(i))))
	}
	b.feature("GSUB", "salt", ids...)

	res, err := Pack(b.g, nil)
	if err != nil {
		t.Fatal(err)
	}
	ll := res.Tables["GSUB"].LookupList
	var ext []bool
	for _, l := range ll {
		ext = append(ext, l.Extension)
	}
	if d := cmp.Diff([]bool{true, false, false}, ext); d != "" {
		t.Error(d)
	}

	data, err := res.Tables["GSUB"].Encode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := gtab.Decode("GSUB", data)
	if err != nil {
		t.Fatal(err)
	}
	for i, l := range decoded.LookupList {
		if d := cmp.Diff(ll[i].Subtables, l.Subtables); d != "" {
			t.Errorf("lookup %d: %s", i, d)
		}
	}
}

func exampleGraph() *Graph {
	b := newBuilder()
	for scope := 0; scope < 20; scope++ {
		s := b.lookup("GSUB", scope, 1, single(glyph.ID(scope%5+1), 50))
		c := b.lookup("GSUB", scope, 6, chain(s))
		p := b.lookup("GPOS", scope, 2, &gtab.Gpos2_1{
			Cov: coverage.New(glyph.ID(scope % 3)),
			PairSets: [][]gtab.PairValueRecord{
				{{SecondGlyph: 9, First: &gtab.ValueRecord{XAdvance: -40}}},
			},
		})
		tag := []string{"calt", "ss01", "ss02", "ss03"}[scope%4]
		b.feature("GSUB", tag, c)
		b.feature("GPOS", "kern", p)
	}
	return b.g
}

// The result does not depend on the number of workers.
func TestDeterminism(t *testing.T) {
	var ref map[string][]byte
	for _, workers := range []int{1, 2, 8} {
		res, err := Pack(exampleGraph(), &Options{Workers: workers})
		if err != nil {
			t.Fatal(err)
		}
		out := make(map[string][]byte)
		for tag, table := range res.Tables {
			out[tag], err = table.Encode()
			if err != nil {
				t.Fatal(err)
			}
		}
		if ref == nil {
			ref = out
			continue
		}
		for tag := range ref {
			if !bytes.Equal(ref[tag], out[tag]) {
				t.Errorf("%d workers: %s differs", workers, tag)
			}
		}
	}
	if n := len(ref["GSUB"]); n == 0 {
		t.Error("empty GSUB table")
	}
}

func TestDedupGraphUnchanged(t *testing.T) {
	g := exampleGraph()
	before := len(g.Lookups[0].Subtables)
	_, err := Pack(g, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Lookups) != 60 || len(g.Lookups[0].Subtables) != before {
		t.Error("candidate graph was modified")
	}
}
