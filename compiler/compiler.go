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

// Package compiler turns layout rules into candidate lookups.
//
// Rules are processed in source order.  Every variable value is resolved,
// and its deltas registered with the variation store, in a single
// sequential pass.  The rules are then grouped into lookups, and the
// lookups are lowered into OpenType subtables.  The result is a candidate
// graph, which still has to be packed using [pack.Pack].
package compiler

import (
	"fmt"
	"runtime"
	"slices"

	"github.com/npillmayer/schuko/tracing"

	"seehuhn.de/go/sfnt/glyph"

	"seehuhn.de/go/otlbuild/diag"
	"seehuhn.de/go/otlbuild/glyphs"
	"seehuhn.de/go/otlbuild/internal/parallel"
	"seehuhn.de/go/otlbuild/opentype/classdef"
	"seehuhn.de/go/otlbuild/opentype/coverage"
	"seehuhn.de/go/otlbuild/opentype/gdef"
	"seehuhn.de/go/otlbuild/opentype/gtab"
	"seehuhn.de/go/otlbuild/pack"
	"seehuhn.de/go/otlbuild/provenance"
	"seehuhn.de/go/otlbuild/rule"
	"seehuhn.de/go/otlbuild/varmodel"
)

func tracer() tracing.Trace {
	return tracing.Select("otlbuild.compiler")
}

// Options control the rule compiler.
type Options struct {
	// Workers is the number of goroutines used to lower lookups.  The
	// default is runtime.GOMAXPROCS(0).
	Workers int
}

// Result is the output of the rule compiler.
type Result struct {
	Graph *pack.Graph

	// GDEF contains the glyph classes inferred from the rules and the mark
	// filtering sets.  This is nil if neither is needed.  The variation
	// store is attached by the caller, once all values are registered.
	GDEF *gdef.Table
}

// Compile converts the rules into a candidate lookup graph.  Glyph names are
// resolved using gm, variable values are resolved using r and their deltas
// are registered with store.
//
// Compile either returns a complete result or an error.  Errors are of type
// *diag.Error.
func Compile(rules []rule.Rule, gm *glyphs.Map, r *varmodel.Resolver, store varmodel.Registrar, opt *Options) (*Result, []*diag.Warning, error) {
	workers := runtime.GOMAXPROCS(0)
	if opt != nil && opt.Workers > 0 {
		workers = opt.Workers
	}

	c := newCompiler(gm, r, store)
	err := c.lookupTables(rules)
	if err != nil {
		return nil, nil, err
	}
	for _, rl := range rules {
		err := c.add(rl)
		if err != nil {
			return nil, nil, err
		}
	}
	err = c.resolveActions()
	if err != nil {
		return nil, nil, err
	}

	lookups := make([]*pack.Lookup, len(c.groups))
	errs := make([]error, len(c.groups))
	parallel.Do(len(c.groups), workers, func(i int) {
		lookups[i], errs[i] = c.groups[i].lower()
	})
	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}
	tracer().Debugf("%d rules, %d candidate lookups", len(rules), len(lookups))

	res := &Result{
		Graph: &pack.Graph{
			Lookups:    lookups,
			Features:   c.features,
			Provenance: c.prov,
		},
		GDEF: c.gdef(),
	}
	return res, c.warnings, nil
}

type compiler struct {
	gm    *glyphs.Map
	r     *varmodel.Resolver
	store varmodel.Registrar

	warnings []*diag.Warning

	// tables gives the table tag for every named lookup.  defined gives
	// the location of the first rule of every named lookup.
	tables  map[string]string
	defined map[string]diag.Location

	scopeRank map[rule.Scope]int

	groups []*group
	anon   map[groupKey]*group
	named  map[string]*group

	features     []*pack.Feature
	featureIndex map[featureKey]*pack.Feature

	markSets     []coverage.Table
	markSetIndex map[string]int

	glyphClass classdef.Table

	prov *provenance.Tracker
}

type groupKey struct {
	scope rule.Scope
	table string
	kind  kind
	flags gtab.LookupFlags
	mfs   uint16
}

type featureKey struct {
	table string
	scope rule.Scope
}

func newCompiler(gm *glyphs.Map, r *varmodel.Resolver, store varmodel.Registrar) *compiler {
	return &compiler{
		gm:           gm,
		r:            r,
		store:        store,
		tables:       make(map[string]string),
		defined:      make(map[string]diag.Location),
		scopeRank:    make(map[rule.Scope]int),
		anon:         make(map[groupKey]*group),
		named:        make(map[string]*group),
		featureIndex: make(map[featureKey]*pack.Feature),
		markSetIndex: make(map[string]int),
		glyphClass:   make(classdef.Table),
		prov:         provenance.NewTracker(),
	}
}

// ruleTable returns the table a rule contributes to.  For chain rules this
// depends on the lookups they call, and the empty string is returned.
func ruleTable(r rule.Rule) string {
	switch r.(type) {
	case *rule.Substitution, *rule.Ligature:
		return "GSUB"
	case *rule.SinglePosition, *rule.PairPosition, *rule.MarkAttachment:
		return "GPOS"
	default:
		return ""
	}
}

// lookupTables determines the table of every named lookup.  Named chain
// lookups inherit the table of the first lookup they call whose table is
// known.
func (c *compiler) lookupTables(rules []rule.Rule) error {
	for _, r := range rules {
		h := r.Head()
		if h.Lookup == "" {
			continue
		}
		if _, seen := c.defined[h.Lookup]; !seen {
			c.defined[h.Lookup] = h.Pos
		}
		table := ruleTable(r)
		if table == "" {
			continue
		}
		if prev, ok := c.tables[h.Lookup]; ok && prev != table {
			err := diag.Errorf(diag.ConflictingRule, h.Pos,
				"lookup %q mixes %s and %s rules", h.Lookup, prev, table)
			err.Other = c.defined[h.Lookup]
			return err
		}
		c.tables[h.Lookup] = table
	}

	for changed := true; changed; {
		changed = false
		for _, r := range rules {
			ch, ok := r.(*rule.Chain)
			if !ok || ch.Lookup == "" {
				continue
			}
			if _, known := c.tables[ch.Lookup]; known {
				continue
			}
			for _, a := range ch.Actions {
				if table, ok := c.tables[a.Lookup]; ok {
					c.tables[ch.Lookup] = table
					changed = true
					break
				}
			}
		}
	}
	return nil
}

// chainTable returns the table of a chain rule.
func (c *compiler) chainTable(r *rule.Chain) (string, error) {
	if r.Lookup != "" {
		if table, ok := c.tables[r.Lookup]; ok {
			return table, nil
		}
	}
	for _, a := range r.Actions {
		if table, ok := c.tables[a.Lookup]; ok {
			return table, nil
		}
	}
	for _, a := range r.Actions {
		if _, ok := c.defined[a.Lookup]; !ok {
			return "", diag.Errorf(diag.UnknownLookup, r.Pos,
				"lookup %q is not defined", a.Lookup)
		}
	}
	return "", diag.Errorf(diag.UnknownLookup, r.Pos,
		"cannot determine the table of the chain rule")
}

// rank returns the position of the scope in order of first appearance.
func (c *compiler) rank(sc rule.Scope) int {
	r, ok := c.scopeRank[sc]
	if !ok {
		r = len(c.scopeRank)
		c.scopeRank[sc] = r
	}
	return r
}

func normalizeScope(sc rule.Scope) rule.Scope {
	if sc.Script == "" {
		sc.Script = "DFLT"
	}
	if sc.Language == "" {
		sc.Language = gtab.DefaultLanguage
	}
	return sc
}

// group returns the lookup group a rule belongs to, creating a new group
// if needed.  The group is attached to the feature of the rule's scope.
func (c *compiler) group(h *rule.Header, sc rule.Scope, table string, k kind) (*group, error) {
	flags, mfs, err := c.markFilteringSet(h)
	if err != nil {
		return nil, err
	}

	var g *group
	if h.Lookup != "" {
		g = c.named[h.Lookup]
		if g == nil {
			g = c.newGroup(h.Pos, c.rank(sc), table, k, flags, mfs)
			g.name = h.Lookup
			c.named[h.Lookup] = g
		} else if g.kind != k || g.flags != flags || g.mfs != mfs {
			err := diag.Errorf(diag.ConflictingRule, h.Pos,
				"lookup %q mixes rule types or lookup flags", h.Lookup)
			err.Other = g.pos
			return nil, err
		}
	} else {
		key := groupKey{scope: sc, table: table, kind: k, flags: flags, mfs: mfs}
		g = c.anon[key]
		if g == nil {
			g = c.newGroup(h.Pos, c.rank(sc), table, k, flags, mfs)
			c.anon[key] = g
		}
	}

	if sc.Feature != "" {
		c.addFeature(table, sc, g.id)
	}
	c.prov.Attach(g.id, provEntry(h, sc))
	return g, nil
}

func provEntry(h *rule.Header, sc rule.Scope) provenance.Entry {
	return provenance.Entry{
		Feature:  sc.Feature,
		Script:   sc.Script,
		Language: sc.Language,
		Pos:      h.Pos,
		Lookup:   h.Lookup,
	}
}

func (c *compiler) newGroup(pos diag.Location, rank int, table string, k kind, flags gtab.LookupFlags, mfs uint16) *group {
	g := &group{
		id:    len(c.groups),
		pos:   pos,
		rank:  rank,
		table: table,
		kind:  k,
		flags: flags,
		mfs:   mfs,
	}
	c.groups = append(c.groups, g)
	return g
}

func (c *compiler) addFeature(table string, sc rule.Scope, id int) {
	key := featureKey{table: table, scope: sc}
	f := c.featureIndex[key]
	if f == nil {
		f = &pack.Feature{
			Table:    table,
			Script:   sc.Script,
			Language: sc.Language,
			Tag:      sc.Feature,
		}
		c.featureIndex[key] = f
		c.features = append(c.features, f)
	}
	if !slices.Contains(f.Lookups, id) {
		f.Lookups = append(f.Lookups, id)
	}
}

// markFilteringSet returns the lookup flags and the mark filtering set
// index for a rule.  The LookupUseMarkFilteringSet flag is set if and only
// if the rule has a non-empty mark filtering set.
func (c *compiler) markFilteringSet(h *rule.Header) (gtab.LookupFlags, uint16, error) {
	flags := h.Flags &^ gtab.LookupUseMarkFilteringSet
	if h.Flags&gtab.LookupUseMarkFilteringSet == 0 || len(h.MarkFilteringSet) == 0 {
		return flags, 0, nil
	}

	gids, err := c.glyphs(h.Pos, h.MarkFilteringSet)
	if err != nil {
		return 0, 0, err
	}
	set := coverage.New(gids...)
	key := fmt.Sprint([]glyph.ID(set))
	idx, ok := c.markSetIndex[key]
	if !ok {
		idx = len(c.markSets)
		if idx > 0xFFFF {
			return 0, 0, diag.Errorf(diag.Overflow, h.Pos, "too many mark filtering sets")
		}
		c.markSets = append(c.markSets, set)
		c.markSetIndex[key] = idx
	}
	return flags | gtab.LookupUseMarkFilteringSet, uint16(idx), nil
}

// glyphs resolves a list of glyph names.
func (c *compiler) glyphs(pos diag.Location, names []string) ([]glyph.ID, error) {
	res := make([]glyph.ID, len(names))
	for i, name := range names {
		gid, ok := c.gm.ID(name)
		if !ok {
			return nil, diag.Errorf(diag.UnknownGlyph, pos, "glyph %q not found", name)
		}
		res[i] = gid
	}
	return res, nil
}

// setClass records the GDEF glyph class of a glyph.  Marks take precedence
// over ligatures, and ligatures take precedence over base glyphs.
func (c *compiler) setClass(class uint16, gids ...glyph.ID) {
	for _, gid := range gids {
		if c.glyphClass[gid] < class {
			c.glyphClass[gid] = class
		}
	}
}

func (c *compiler) gdef() *gdef.Table {
	if len(c.glyphClass) == 0 && len(c.markSets) == 0 {
		return nil
	}
	res := &gdef.Table{
		MarkGlyphSets: c.markSets,
	}
	if len(c.glyphClass) > 0 {
		res.GlyphClass = c.glyphClass
	}
	return res
}
