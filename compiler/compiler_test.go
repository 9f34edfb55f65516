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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"

	"seehuhn.de/go/sfnt/glyph"

	"seehuhn.de/go/otlbuild/diag"
	"seehuhn.de/go/otlbuild/glyphs"
	"seehuhn.de/go/otlbuild/opentype/anchor"
	"seehuhn.de/go/otlbuild/opentype/coverage"
	"seehuhn.de/go/otlbuild/opentype/gdef"
	"seehuhn.de/go/otlbuild/opentype/gtab"
	"seehuhn.de/go/otlbuild/opentype/markarray"
	"seehuhn.de/go/otlbuild/rule"
	"seehuhn.de/go/otlbuild/varmodel"
	"seehuhn.de/go/otlbuild/varstore"
)

var testGlyphs = []string{
	".notdef", "a", "b", "c", "f", "i", "l", "ff", "fi", "ffi", "ffl",
	"acute", "grave", "A", "B", "C", "d", "fff", "fl",
}

var wght = []varmodel.Axis{
	{Tag: "wght", Min: 100, Default: 400, Max: 900},
}

func hdr(feature string, line int) rule.Header {
	return rule.Header{
		Pos:   diag.Location{File: "test.fea", Line: line, Column: 1},
		Scope: rule.Scope{Script: "latn", Feature: feature},
	}
}

func sub(feature string, line int, in []string, out ...string) *rule.Substitution {
	return &rule.Substitution{Header: hdr(feature, line), Input: in, Replacement: out}
}

func lig(feature string, line int, out string, in ...string) *rule.Ligature {
	return &rule.Ligature{Header: hdr(feature, line), Components: in, Replacement: out}
}

func compile(t *testing.T, rules []rule.Rule, workers int) (*Result, []*diag.Warning, *varstore.Builder, error) {
	t.Helper()
	gm, err := glyphs.FromNames(testGlyphs)
	if err != nil {
		t.Fatal(err)
	}
	store := varstore.NewBuilder([]string{"wght"})
	res, warnings, err := Compile(rules, gm, varmodel.NewResolver(wght), store, &Options{Workers: workers})
	return res, warnings, store, err
}

func mustCompile(t *testing.T, rules ...rule.Rule) *Result {
	t.Helper()
	res, _, _, err := compile(t, rules, 1)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func expectKind(t *testing.T, err error, kind diag.Kind) *diag.Error {
	t.Helper()
	var e *diag.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected %s, got %v", kind, err)
	}
	if e.Kind != kind {
		t.Fatalf("expected %s, got %s", kind, e)
	}
	return e
}

func TestLigatureOrder(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otlbuild.compiler")
	defer teardown()

	res := mustCompile(t,
		lig("liga", 1, "fi", "f", "i"),
		lig("liga", 2, "ffl", "f", "f", "l"),
		lig("liga", 3, "ff", "f", "f"),
		lig("liga", 4, "ffi", "f", "f", "i"),
	)

	if len(res.Graph.Lookups) != 1 {
		t.Fatalf("expected 1 lookup, got %d", len(res.Graph.Lookups))
	}
	l := res.Graph.Lookups[0]
	if l.Meta.LookupType != 4 {
		t.Errorf("wrong lookup type %d", l.Meta.LookupType)
	}
	expected := []gtab.Subtable{
		&gtab.Gsub4_1{
			Cov: coverage.Table{4},
			Repl: [][]gtab.Ligature{{
				{In: []glyph.ID{4, 5}, Out: 9},
				{In: []glyph.ID{4, 6}, Out: 10},
				{In: []glyph.ID{4}, Out: 7},
				{In: []glyph.ID{5}, Out: 8},
			}},
		},
	}
	if d := cmp.Diff(expected, l.Subtables); d != "" {
		t.Error(d)
	}
}

func TestLigatureOrderMixed(t *testing.T) {
	res := mustCompile(t,
		lig("liga", 1, "fi", "f", "i"),
		lig("liga", 2, "fl", "f", "l"),
		lig("liga", 3, "ff", "f", "f"),
		lig("liga", 4, "ffi", "f", "f", "i"),
		lig("liga", 5, "fff", "f", "f", "f"),
	)

	st := res.Graph.Lookups[0].Subtables[0].(*gtab.Gsub4_1)
	var got []glyph.ID
	for _, l := range st.Repl[0] {
		got = append(got, l.Out)
	}
	// fff, ffi, ff, fi, fl
	if d := cmp.Diff([]glyph.ID{17, 9, 7, 8, 18}, got); d != "" {
		t.Error(d)
	}
}

func TestSubstFormats(t *testing.T) {
	res := mustCompile(t,
		sub("c2sc", 1, []string{"a", "b"}, "A", "B"),
		sub("smcp", 2, []string{"a"}, "B"),
		sub("smcp", 3, []string{"b"}, "A"),
		sub("ccmp", 4, []string{"c"}, "a", "acute"),
	)

	expected := []struct {
		tp uint16
		st gtab.Subtable
	}{
		{1, &gtab.Gsub1_1{Cov: coverage.Table{1, 2}, Delta: 12}},
		{1, &gtab.Gsub1_2{Cov: coverage.Table{1, 2}, SubstituteGlyphIDs: []glyph.ID{14, 13}}},
		{2, &gtab.Gsub2_1{Cov: coverage.Table{3}, Repl: [][]glyph.ID{{1, 11}}}},
	}
	if len(res.Graph.Lookups) != len(expected) {
		t.Fatalf("expected %d lookups, got %d", len(expected), len(res.Graph.Lookups))
	}
	for i, l := range res.Graph.Lookups {
		if l.Meta.LookupType != expected[i].tp {
			t.Errorf("%d: wrong type %d", i, l.Meta.LookupType)
		}
		if d := cmp.Diff([]gtab.Subtable{expected[i].st}, l.Subtables); d != "" {
			t.Errorf("%d: %s", i, d)
		}
	}
}

func TestConflict(t *testing.T) {
	_, _, _, err := compile(t, []rule.Rule{
		sub("smcp", 1, []string{"a"}, "A"),
		sub("smcp", 2, []string{"a"}, "A"),
		sub("smcp", 3, []string{"a"}, "B"),
	}, 1)
	e := expectKind(t, err, diag.ConflictingRule)
	if e.Pos.Line != 3 || e.Other.Line != 1 {
		t.Errorf("wrong locations %s and %s", e.Pos, e.Other)
	}

	pair := func(line int, x float64) *rule.PairPosition {
		return &rule.PairPosition{
			Header: hdr("kern", line),
			Left:   []string{"a"},
			Right:  []string{"b", "c"},
			Value:  rule.ValueRecord{XAdvance: varmodel.Static(x)},
		}
	}
	_, _, _, err = compile(t, []rule.Rule{pair(1, -10), pair(2, -10), pair(3, -20)}, 1)
	e = expectKind(t, err, diag.ConflictingRule)
	if e.Pos.Line != 3 || e.Other.Line != 1 {
		t.Errorf("wrong locations %s and %s", e.Pos, e.Other)
	}
}

func TestErrors(t *testing.T) {
	named := sub("", 1, []string{"a"}, "A")
	named.Lookup = "SMALL"

	cases := []struct {
		name  string
		rules []rule.Rule
		kind  diag.Kind
	}{
		{"empty input", []rule.Rule{sub("smcp", 1, nil, "A")}, diag.EmptyRule},
		{"empty replacement", []rule.Rule{sub("smcp", 1, []string{"a"})}, diag.EmptyRule},
		{"length mismatch", []rule.Rule{sub("smcp", 1, []string{"a", "b", "c"}, "A", "B")}, diag.EmptyRule},
		{"empty ligature", []rule.Rule{lig("liga", 1, "fi")}, diag.EmptyRule},
		{"no feature", []rule.Rule{sub("", 1, []string{"a"}, "A")}, diag.EmptyRule},
		{"chain without actions", []rule.Rule{
			&rule.Chain{Header: hdr("calt", 1), Input: [][]string{{"a"}}},
		}, diag.EmptyRule},
		{"action outside input", []rule.Rule{
			named,
			&rule.Chain{
				Header:  hdr("calt", 2),
				Input:   [][]string{{"a"}},
				Actions: []rule.Action{{Index: 1, Lookup: "SMALL"}},
			},
		}, diag.EmptyRule},
		{"unknown glyph", []rule.Rule{sub("smcp", 1, []string{"zzz"}, "A")}, diag.UnknownGlyph},
		{"unknown lookup", []rule.Rule{
			&rule.Chain{
				Header:  hdr("calt", 1),
				Input:   [][]string{{"a"}},
				Actions: []rule.Action{{Index: 0, Lookup: "MISSING"}},
			},
		}, diag.UnknownLookup},
		{"mixed named lookup", []rule.Rule{
			named,
			&rule.Ligature{
				Header:      rule.Header{Pos: diag.Location{Line: 2}, Lookup: "SMALL"},
				Components:  []string{"f", "i"},
				Replacement: "fi",
			},
		}, diag.ConflictingRule},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res, _, _, err := compile(t, c.rules, 1)
			if res != nil {
				t.Error("partial result returned")
			}
			expectKind(t, err, c.kind)
		})
	}
}

func TestContextual(t *testing.T) {
	r1 := sub("calt", 1, []string{"a"}, "A")
	r1.Backtrack = [][]string{{"f"}}
	r2 := sub("calt", 2, []string{"a"}, "A")
	r2.Lookahead = [][]string{{"c"}}
	r3 := sub("calt", 3, []string{"a"}, "B")
	r3.Backtrack = [][]string{{"b"}}
	res := mustCompile(t, r1, r2, r3)

	g := res.Graph
	if len(g.Lookups) != 3 {
		t.Fatalf("expected 3 lookups, got %d", len(g.Lookups))
	}
	if g.Lookups[0].Meta.LookupType != 6 || len(g.Lookups[0].Subtables) != 3 {
		t.Fatalf("unexpected chain lookup %v", g.Lookups[0])
	}
	var targets []gtab.LookupIndex
	for _, st := range g.Lookups[0].Subtables {
		targets = append(targets, st.(*gtab.ChainedSeqContext3).Actions[0].LookupListIndex)
	}
	if d := cmp.Diff([]gtab.LookupIndex{1, 1, 2}, targets); d != "" {
		t.Error(d)
	}
	if d := cmp.Diff([]gtab.Subtable{&gtab.Gsub1_1{Cov: coverage.Table{1}, Delta: 12}}, g.Lookups[1].Subtables); d != "" {
		t.Error(d)
	}
	if d := cmp.Diff([]gtab.Subtable{&gtab.Gsub1_1{Cov: coverage.Table{1}, Delta: 13}}, g.Lookups[2].Subtables); d != "" {
		t.Error(d)
	}

	if len(g.Features) != 1 || !cmp.Equal(g.Features[0].Lookups, []int{0}) {
		t.Errorf("unexpected features %v", g.Features)
	}
	if n := len(g.Provenance.Entries(1)); n != 2 {
		t.Errorf("expected 2 provenance entries, got %d", n)
	}
}

func TestContextualConflict(t *testing.T) {
	r1 := sub("calt", 1, []string{"a"}, "A")
	r1.Backtrack = [][]string{{"f"}}
	r2 := sub("calt", 2, []string{"a", "b"}, "B")
	r2.Backtrack = [][]string{{"f"}}
	_, _, _, err := compile(t, []rule.Rule{r1, r2}, 1)
	e := expectKind(t, err, diag.ConflictingRule)
	if e.Pos.Line != 2 || e.Other.Line != 1 {
		t.Errorf("wrong locations %s and %s", e.Pos, e.Other)
	}

	// the same replacement repeated, or a different context, is fine
	r3 := sub("calt", 3, []string{"a"}, "A")
	r3.Backtrack = [][]string{{"f"}}
	r4 := sub("calt", 4, []string{"a"}, "B")
	r4.Backtrack = [][]string{{"f"}}
	r4.Lookahead = [][]string{{"c"}}
	mustCompile(t, r1, r3, r4)
}

func TestNamedLookup(t *testing.T) {
	small := sub("", 1, []string{"a", "b"}, "A", "B")
	small.Lookup = "SMALL"
	kern := &rule.PairPosition{
		Header: rule.Header{Pos: diag.Location{Line: 2}, Lookup: "KERN"},
		Left:   []string{"a"},
		Right:  []string{"b"},
		Value:  rule.ValueRecord{XAdvance: varmodel.Static(-10)},
	}
	calt := &rule.Chain{
		Header:    hdr("calt", 3),
		Backtrack: [][]string{{"f"}},
		Input:     [][]string{{"a", "b"}},
		Actions:   []rule.Action{{Index: 0, Lookup: "SMALL"}},
	}
	res := mustCompile(t, small, calt)

	g := res.Graph
	if len(g.Lookups) != 2 || g.Lookups[0].Name != "SMALL" {
		t.Fatalf("unexpected lookups %v", g.Lookups)
	}
	st := g.Lookups[1].Subtables[0].(*gtab.ChainedSeqContext3)
	if st.Actions[0].LookupListIndex != 0 {
		t.Errorf("wrong action target %d", st.Actions[0].LookupListIndex)
	}
	if len(g.Features) != 1 || g.Features[0].Tag != "calt" || !cmp.Equal(g.Features[0].Lookups, []int{1}) {
		t.Errorf("unexpected features %v", g.Features)
	}

	mixed := &rule.Chain{
		Header:  hdr("calt", 3),
		Input:   [][]string{{"a"}},
		Actions: []rule.Action{{Index: 0, Lookup: "KERN"}, {Index: 0, Lookup: "SMALL"}},
	}
	_, _, _, err := compile(t, []rule.Rule{small, kern, mixed}, 1)
	expectKind(t, err, diag.UnknownLookup)
}

func TestVariableValues(t *testing.T) {
	x := varmodel.Static(-50)
	x.Add(map[string]float64{"wght": 900}, -80)
	kern := &rule.PairPosition{
		Header: hdr("kern", 1),
		Left:   []string{"a"},
		Right:  []string{"b"},
		Value:  rule.ValueRecord{XAdvance: x},
	}
	res, _, store, err := compile(t, []rule.Rule{kern}, 1)
	if err != nil {
		t.Fatal(err)
	}
	st := res.Graph.Lookups[0].Subtables[0].(*gtab.Gpos2_1)
	vr := st.PairSets[0][0].First
	if vr.XAdvance != -50 || vr.XAdvanceVar == nil {
		t.Errorf("unexpected value record %s", vr)
	}
	if store.IsEmpty() {
		t.Error("no deltas registered")
	}

	missing := &varmodel.VariableScalar{}
	missing.Add(map[string]float64{"wght": 900}, 10)
	kern.Value.XAdvance = missing
	kern.Pos.Line = 7
	_, _, _, err = compile(t, []rule.Rule{kern}, 1)
	e := expectKind(t, err, diag.MissingDefaultLocation)
	if e.Pos.Line != 7 {
		t.Errorf("wrong error location %s", e.Pos)
	}
}

func TestSinglePosition(t *testing.T) {
	single := func(feature string, line int, y float64, glyphs ...string) *rule.SinglePosition {
		return &rule.SinglePosition{
			Header: hdr(feature, line),
			Glyphs: glyphs,
			Value:  rule.ValueRecord{YPlacement: varmodel.Static(y)},
		}
	}

	res := mustCompile(t, single("sups", 1, 300, "A", "B"), single("sups", 2, 300, "C"))
	l := res.Graph.Lookups[0]
	if l.Meta.LookupType != 1 || l.Table != "GPOS" {
		t.Fatalf("unexpected lookup %v", l)
	}
	want := []gtab.Subtable{
		&gtab.Gpos1_1{Cov: coverage.Table{13, 14, 15}, Adjust: &gtab.ValueRecord{YPlacement: 300}},
	}
	if d := cmp.Diff(want, l.Subtables); d != "" {
		t.Error(d)
	}

	res = mustCompile(t, single("sups", 1, 300, "b"), single("sups", 2, 250, "a"))
	want = []gtab.Subtable{
		&gtab.Gpos1_2{
			Cov:    coverage.Table{1, 2},
			Adjust: []*gtab.ValueRecord{{YPlacement: 250}, {YPlacement: 300}},
		},
	}
	if d := cmp.Diff(want, res.Graph.Lookups[0].Subtables); d != "" {
		t.Error(d)
	}

	_, _, _, err := compile(t, []rule.Rule{
		single("sups", 3, 300, "a"),
		single("sups", 4, 300, "a"),
		single("sups", 5, 200, "a", "b"),
	}, 1)
	e := expectKind(t, err, diag.ConflictingRule)
	if e.Pos.Line != 5 || e.Other.Line != 3 {
		t.Errorf("wrong locations %s and %s", e.Pos, e.Other)
	}
}

func TestOutOfRangeWarning(t *testing.T) {
	x := varmodel.Static(-50)
	x.Add(map[string]float64{"wght": 1000}, -80)
	kern := &rule.PairPosition{
		Header: hdr("kern", 5),
		Left:   []string{"a"},
		Right:  []string{"b"},
		Value:  rule.ValueRecord{XAdvance: x},
	}
	_, warnings, _, err := compile(t, []rule.Rule{kern}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 || warnings[0].Kind != diag.OutOfRangeAxisSample || warnings[0].Pos.Line != 5 {
		t.Errorf("unexpected warnings %v", warnings)
	}
}

func mark(line int, class string, marks []string, bases []string, mx, my, bx, by float64) *rule.MarkAttachment {
	return &rule.MarkAttachment{
		Header:     hdr("mark", line),
		Mark:       marks,
		Class:      class,
		MarkAnchor: rule.Anchor{X: varmodel.Static(mx), Y: varmodel.Static(my)},
		Base:       bases,
		BaseAnchor: rule.Anchor{X: varmodel.Static(bx), Y: varmodel.Static(by)},
	}
}

func TestMarkAttachment(t *testing.T) {
	res := mustCompile(t,
		mark(1, "top", []string{"acute"}, []string{"b", "a"}, 0, 500, 250, 600),
		mark(2, "bottom", []string{"grave"}, []string{"a"}, 0, 0, 250, -10),
	)

	expected := &gtab.Gpos4_1{
		MarkCov: coverage.Table{11, 12},
		BaseCov: coverage.Table{1, 2},
		MarkArray: markarray.Table{
			{Class: 0, Table: anchor.Table{X: 0, Y: 500}},
			{Class: 1, Table: anchor.Table{X: 0, Y: 0}},
		},
		BaseArray: [][]*anchor.Table{
			{{X: 250, Y: 600}, {X: 250, Y: -10}},
			{{X: 250, Y: 600}, nil},
		},
	}
	if d := cmp.Diff([]gtab.Subtable{expected}, res.Graph.Lookups[0].Subtables); d != "" {
		t.Error(d)
	}

	_, _, _, err := compile(t, []rule.Rule{
		mark(1, "top", []string{"acute"}, []string{"a"}, 0, 500, 250, 600),
		mark(2, "bottom", []string{"acute"}, []string{"b"}, 0, 500, 250, 600),
	}, 1)
	expectKind(t, err, diag.ConflictingRule)
}

func TestGDEF(t *testing.T) {
	m := mark(1, "top", []string{"acute", "grave"}, []string{"a", "b"}, 0, 500, 250, 600)
	filtered := lig("liga", 2, "fi", "f", "i")
	filtered.Flags = gtab.LookupUseMarkFilteringSet
	filtered.MarkFilteringSet = []string{"grave", "acute"}
	flagOnly := lig("dlig", 3, "ff", "f", "f")
	flagOnly.Flags = gtab.LookupUseMarkFilteringSet | gtab.LookupIgnoreLigatures

	res := mustCompile(t, m, filtered, flagOnly)

	expected := &gdef.Table{
		GlyphClass: map[glyph.ID]uint16{
			1: gdef.GlyphClassBase, 2: gdef.GlyphClassBase,
			7: gdef.GlyphClassLigature, 8: gdef.GlyphClassLigature,
			11: gdef.GlyphClassMark, 12: gdef.GlyphClassMark,
		},
		MarkGlyphSets: []coverage.Table{{11, 12}},
	}
	if d := cmp.Diff(expected, res.GDEF); d != "" {
		t.Error(d)
	}

	meta := res.Graph.Lookups[1].Meta
	if meta.LookupFlag != gtab.LookupUseMarkFilteringSet || meta.MarkFilteringSet != 0 {
		t.Errorf("unexpected meta info %v", meta)
	}
	meta = res.Graph.Lookups[2].Meta
	if meta.LookupFlag != gtab.LookupIgnoreLigatures {
		t.Errorf("unexpected flags %v", meta.LookupFlag)
	}

	res = mustCompile(t, &rule.PairPosition{
		Header: hdr("kern", 1),
		Left:   []string{"a"},
		Right:  []string{"b"},
	})
	if res.GDEF != nil {
		t.Errorf("unexpected GDEF %v", res.GDEF)
	}
}

func TestScopeOrder(t *testing.T) {
	r1 := sub("smcp", 1, []string{"a"}, "A")
	r2 := lig("liga", 2, "fi", "f", "i")
	r3 := sub("smcp", 3, []string{"b"}, "B")
	r3.Scope.Language = "TRK "
	r4 := sub("smcp", 4, []string{"c"}, "C")
	res := mustCompile(t, r1, r2, r3, r4)

	var ranks []int
	for _, l := range res.Graph.Lookups {
		ranks = append(ranks, l.Rank)
	}
	if d := cmp.Diff([]int{0, 1, 2}, ranks); d != "" {
		t.Error(d)
	}
	if n := len(res.Graph.Lookups[0].Subtables[0].(*gtab.Gsub1_1).Cov); n != 2 {
		t.Errorf("expected 2 glyphs in the first lookup, got %d", n)
	}
	if len(res.Graph.Features) != 3 {
		t.Errorf("expected 3 features, got %d", len(res.Graph.Features))
	}
}

func TestDeterminism(t *testing.T) {
	var rules []rule.Rule
	names := testGlyphs[1:]
	for i, a := range names {
		b := names[(i+3)%len(names)]
		rules = append(rules, sub("salt", i, []string{a}, b))
		x := varmodel.Static(float64(-i))
		x.Add(map[string]float64{"wght": 900}, float64(-2*i))
		rules = append(rules, &rule.PairPosition{
			Header: hdr("kern", i),
			Left:   []string{a},
			Right:  []string{b},
			Value:  rule.ValueRecord{XAdvance: x},
		})
	}
	rules = append(rules,
		lig("liga", 100, "ffi", "f", "f", "i"),
		mark(101, "top", []string{"acute"}, []string{"a"}, 0, 500, 250, 600))

	ref, _, refStore, err := compile(t, rules, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, workers := range []int{2, 8} {
		res, _, store, err := compile(t, rules, workers)
		if err != nil {
			t.Fatal(err)
		}
		if d := cmp.Diff(ref.Graph.Lookups, res.Graph.Lookups); d != "" {
			t.Errorf("%d workers: %s", workers, d)
		}
		if d := cmp.Diff(ref.Graph.Features, res.Graph.Features); d != "" {
			t.Errorf("%d workers: %s", workers, d)
		}
		if refStore.String() != store.String() {
			t.Errorf("%d workers: variation stores differ", workers)
		}
	}
}
