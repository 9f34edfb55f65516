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

package otlbuild

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"golang.org/x/image/font/gofont/goregular"

	"seehuhn.de/go/sfnt"
	"seehuhn.de/go/sfnt/glyph"

	"seehuhn.de/go/otlbuild/diag"
	"seehuhn.de/go/otlbuild/glyphs"
	"seehuhn.de/go/otlbuild/opentype/coverage"
	"seehuhn.de/go/otlbuild/opentype/gdef"
	"seehuhn.de/go/otlbuild/opentype/gtab"
	"seehuhn.de/go/otlbuild/rule"
	"seehuhn.de/go/otlbuild/varmodel"
)

var axes = []varmodel.Axis{
	{Tag: "wght", Min: 100, Default: 400, Max: 900},
}

func testMap(t *testing.T) *glyphs.Map {
	t.Helper()
	gm, err := glyphs.FromNames([]string{
		".notdef", "a", "b", "f", "i", "l", "ff", "fi", "fl", "ffi", "acute",
	})
	if err != nil {
		t.Fatal(err)
	}
	return gm
}

func at(line int, feature string) rule.Header {
	return rule.Header{
		Pos:   diag.Location{File: "test.fea", Line: line},
		Scope: rule.Scope{Script: "latn", Feature: feature},
	}
}

func variable(def, bold float64) *varmodel.VariableScalar {
	vs := varmodel.Static(def)
	vs.Add(map[string]float64{"wght": 900}, bold)
	return vs
}

func testRules() []rule.Rule {
	return []rule.Rule{
		&rule.Ligature{Header: at(1, "liga"), Components: []string{"f", "i"}, Replacement: "fi"},
		&rule.Ligature{Header: at(2, "liga"), Components: []string{"f", "f", "i"}, Replacement: "ffi"},
		&rule.Ligature{Header: at(3, "liga"), Components: []string{"f", "f"}, Replacement: "ff"},
		&rule.Ligature{Header: at(4, "liga"), Components: []string{"f", "l"}, Replacement: "fl"},
		&rule.PairPosition{
			Header: at(5, "kern"),
			Left:   []string{"a"},
			Right:  []string{"b"},
			Value:  rule.ValueRecord{XAdvance: variable(-50, -80)},
		},
		&rule.MarkAttachment{
			Header:     at(6, "mark"),
			Mark:       []string{"acute"},
			Class:      "top",
			MarkAnchor: rule.Anchor{X: varmodel.Static(0), Y: varmodel.Static(500)},
			Base:       []string{"a", "b"},
			BaseAnchor: rule.Anchor{X: variable(250, 270), Y: varmodel.Static(600)},
		},
	}
}

func TestLigatureOrder(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otlbuild")
	defer teardown()

	res, err := Compile(testRules()[:4], testMap(t), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	gsub := res.Tables["GSUB"]
	if gsub == nil || len(gsub.LookupList) != 1 {
		t.Fatal("expected one GSUB lookup")
	}
	expected := &gtab.Gsub4_1{
		Cov: coverage.Table{3},
		Repl: [][]gtab.Ligature{{
			{In: []glyph.ID{3, 4}, Out: 9},
			{In: []glyph.ID{3}, Out: 6},
			{In: []glyph.ID{4}, Out: 7},
			{In: []glyph.ID{5}, Out: 8},
		}},
	}
	if d := cmp.Diff([]gtab.Subtable{expected}, gsub.LookupList[0].Subtables); d != "" {
		t.Error(d)
	}
	if res.VarStore != nil {
		t.Error("unexpected variation store")
	}
}

func TestVariableKern(t *testing.T) {
	res, err := Compile(testRules(), testMap(t), axes, &Options{Debug: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.VarStore == nil || res.GDEF.VarStore != res.VarStore {
		t.Fatal("variation store not attached to GDEF")
	}

	data, err := res.Encode()
	if err != nil {
		t.Fatal(err)
	}
	gpos, err := gtab.Decode("GPOS", data["GPOS"])
	if err != nil {
		t.Fatal(err)
	}
	gdefTable, err := gdef.Decode(data["GDEF"], []string{"wght"})
	if err != nil {
		t.Fatal(err)
	}

	var kern *gtab.Gpos2_1
	for _, l := range gpos.LookupList {
		if st, ok := l.Subtables[0].(*gtab.Gpos2_1); ok {
			kern = st
		}
	}
	if kern == nil {
		t.Fatal("pair adjustment subtable not found")
	}
	vr := kern.PairSets[0][0].First
	if vr.XAdvance != -50 || vr.XAdvanceVar == nil {
		t.Fatalf("unexpected value record %s", vr)
	}
	delta, err := gdefTable.VarStore.Delta(*vr.XAdvanceVar, varmodel.Location{"wght": 1})
	if err != nil {
		t.Fatal(err)
	}
	if delta != -30 {
		t.Errorf("wrong delta %g", delta)
	}

	if d := cmp.Diff(res.GDEF.GlyphClass, gdefTable.GlyphClass); d != "" {
		t.Error(d)
	}

	if len(res.Debug["GPOS"]) != 2 || len(res.Debug["GSUB"]) != 1 {
		t.Errorf("unexpected debug records %v", res.Debug)
	}
	for _, rec := range res.Debug["GPOS"] {
		if len(rec.Entries) == 0 {
			t.Errorf("lookup %d has no provenance", rec.Lookup)
		}
	}
}

func TestDeterminism(t *testing.T) {
	var ref map[string][]byte
	for _, workers := range []int{1, 2, 8} {
		res, err := Compile(testRules(), testMap(t), axes, &Options{Workers: workers})
		if err != nil {
			t.Fatal(err)
		}
		data, err := res.Encode()
		if err != nil {
			t.Fatal(err)
		}
		if ref == nil {
			ref = data
			continue
		}
		for tag, buf := range ref {
			if !bytes.Equal(buf, data[tag]) {
				t.Errorf("%d workers: %s differs", workers, tag)
			}
		}
	}
}

func TestMissingDefault(t *testing.T) {
	vs := &varmodel.VariableScalar{}
	vs.Add(map[string]float64{"wght": 900}, -80)
	rules := append(testRules(), &rule.PairPosition{
		Header: at(9, "kern"),
		Left:   []string{"b"},
		Right:  []string{"a"},
		Value:  rule.ValueRecord{XAdvance: vs},
	})

	res, err := Compile(rules, testMap(t), axes, nil)
	if res != nil {
		t.Error("partial result returned")
	}
	var e *diag.Error
	if !errors.As(err, &e) || e.Kind != diag.MissingDefaultLocation {
		t.Fatalf("expected MissingDefaultLocation error, got %v", err)
	}
	if e.Pos.Line != 9 {
		t.Errorf("wrong location %s", e.Pos)
	}
}

func TestGoRegular(t *testing.T) {
	f, err := sfnt.Read(bytes.NewReader(goregular.TTF))
	if err != nil {
		t.Fatal(err)
	}
	gm, err := glyphs.FromFont(f)
	if err != nil {
		t.Fatal(err)
	}

	rules := []rule.Rule{
		&rule.Substitution{
			Header:      at(1, "smcp"),
			Input:       []string{"a", "b"},
			Replacement: []string{"A", "B"},
		},
	}
	res, err := Compile(rules, gm, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	data, err := res.Encode()
	if err != nil {
		t.Fatal(err)
	}
	gsub, err := gtab.Decode("GSUB", data["GSUB"])
	if err != nil {
		t.Fatal(err)
	}

	a, _ := gm.ID("a")
	A, _ := gm.ID("A")
	st := gsub.LookupList[0].Subtables[0]
	var got glyph.ID
	switch st := st.(type) {
	case *gtab.Gsub1_1:
		got = a + st.Delta
	case *gtab.Gsub1_2:
		i, _ := st.Cov.Index(a)
		got = st.SubstituteGlyphIDs[i]
	default:
		t.Fatalf("unexpected subtable %T", st)
	}
	if got != A {
		t.Errorf("a is replaced by %d, not %d", got, A)
	}
	if _, ok := data["GDEF"]; ok {
		t.Error("unexpected GDEF table")
	}
}
