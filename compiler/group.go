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
	"fmt"
	"slices"
	"strconv"

	"seehuhn.de/go/sfnt/glyph"

	"seehuhn.de/go/otlbuild/diag"
	"seehuhn.de/go/otlbuild/opentype/anchor"
	"seehuhn.de/go/otlbuild/opentype/coverage"
	"seehuhn.de/go/otlbuild/opentype/gdef"
	"seehuhn.de/go/otlbuild/opentype/gtab"
	"seehuhn.de/go/otlbuild/rule"
)

type kind int

const (
	kindSubst kind = iota
	kindLigature
	kindPair
	kindMark
	kindChain
	kindSingle
)

func (k kind) String() string {
	switch k {
	case kindSubst:
		return "substitution"
	case kindLigature:
		return "ligature"
	case kindPair:
		return "pair positioning"
	case kindMark:
		return "mark attachment"
	case kindChain:
		return "chaining context"
	case kindSingle:
		return "single positioning"
	default:
		return "unknown"
	}
}

// A group collects the rules which end up in the same candidate lookup.
type group struct {
	id    int
	pos   diag.Location // the first rule
	name  string
	rank  int
	table string
	kind  kind
	flags gtab.LookupFlags
	mfs   uint16

	substs  []substEntry
	ligs    []ligEntry
	singles []singleEntry
	pairs   []pairEntry
	marks   []markEntry
	bases   []markEntry
	chains  []*chainEntry

	// synth lists the substitution lookups created for the contextual
	// substitutions of a chain group.
	synth []*group

	// seen maps input glyphs to their entry in substs, for lookups
	// created for contextual substitutions.
	seen map[glyph.ID]int

	// contexts maps a context and an input glyph to the first contextual
	// substitution of a chain group which applies there.
	contexts map[string]substEntry
}

type substEntry struct {
	pos diag.Location
	in  glyph.ID
	out []glyph.ID
}

type ligEntry struct {
	pos   diag.Location
	in    []glyph.ID
	names []string
	out   glyph.ID
}

type singleEntry struct {
	pos diag.Location
	gid glyph.ID
	v   *gtab.ValueRecord
}

type pairEntry struct {
	pos           diag.Location
	first, second glyph.ID
	v1, v2        *gtab.ValueRecord
}

type markEntry struct {
	pos    diag.Location
	gid    glyph.ID
	class  string
	anchor *anchor.Table
}

type chainEntry struct {
	pos       diag.Location
	backtrack []coverage.Table
	input     []coverage.Table
	lookahead []coverage.Table
	actions   []chainAction
}

type chainAction struct {
	index  int
	name   string
	target int // group ID, -1 until resolved
}

// add processes one rule.
func (c *compiler) add(r rule.Rule) error {
	h := r.Head()
	sc := normalizeScope(h.Scope)
	if sc.Feature == "" && h.Lookup == "" {
		return diag.Errorf(diag.EmptyRule, h.Pos, "rule belongs to neither a feature nor a lookup")
	}
	c.rank(sc)

	switch r := r.(type) {
	case *rule.Substitution:
		return c.addSubstitution(r, sc)
	case *rule.Ligature:
		return c.addLigature(r, sc)
	case *rule.SinglePosition:
		return c.addSingle(r, sc)
	case *rule.PairPosition:
		return c.addPair(r, sc)
	case *rule.MarkAttachment:
		return c.addMark(r, sc)
	case *rule.Chain:
		return c.addChain(r, sc)
	default:
		panic("unreachable")
	}
}

func (c *compiler) addSubstitution(r *rule.Substitution, sc rule.Scope) error {
	if len(r.Input) == 0 || len(r.Replacement) == 0 {
		return diag.Errorf(diag.EmptyRule, r.Pos, "substitution without input or replacement")
	}
	in, err := c.glyphs(r.Pos, r.Input)
	if err != nil {
		return err
	}
	out, err := c.glyphs(r.Pos, r.Replacement)
	if err != nil {
		return err
	}

	var entries []substEntry
	switch {
	case r.IsMultiple():
		entries = append(entries, substEntry{pos: r.Pos, in: in[0], out: out})
	case len(in) == len(out):
		for i, gid := range in {
			entries = append(entries, substEntry{pos: r.Pos, in: gid, out: out[i : i+1]})
		}
	case len(out) == 1:
		for _, gid := range in {
			entries = append(entries, substEntry{pos: r.Pos, in: gid, out: out})
		}
	default:
		return diag.Errorf(diag.EmptyRule, r.Pos,
			"cannot replace %d glyphs by %d glyphs", len(in), len(out))
	}

	if !r.IsContextual() {
		g, err := c.group(&r.Header, sc, "GSUB", kindSubst)
		if err != nil {
			return err
		}
		g.substs = append(g.substs, entries...)
		return nil
	}

	backtrack, err := c.classes(r.Pos, r.Backtrack)
	if err != nil {
		return err
	}
	lookahead, err := c.classes(r.Pos, r.Lookahead)
	if err != nil {
		return err
	}
	g, err := c.group(&r.Header, sc, "GSUB", kindChain)
	if err != nil {
		return err
	}
	if g.contexts == nil {
		g.contexts = make(map[string]substEntry)
	}
	ctx := fmt.Sprint(backtrack, "|", lookahead)
	for _, e := range entries {
		key := ctx + "|" + strconv.Itoa(int(e.in))
		if prev, ok := g.contexts[key]; ok {
			if !slices.Equal(prev.out, e.out) {
				return conflict(e.pos, prev.pos,
					"glyph %d in this context is already replaced", e.in)
			}
			continue
		}
		g.contexts[key] = e
	}
	target := c.synthesize(g, entries)
	c.prov.Attach(target.id, provEntry(&r.Header, sc))
	g.chains = append(g.chains, &chainEntry{
		pos:       r.Pos,
		backtrack: backtrack,
		input:     []coverage.Table{coverage.New(in...)},
		lookahead: lookahead,
		actions:   []chainAction{{index: 0, target: target.id}},
	})
	return nil
}

// synthesize returns a standalone substitution lookup for a contextual
// substitution of the chain group g.  The first existing lookup of g which
// has no conflicting mapping is reused.
func (c *compiler) synthesize(g *group, entries []substEntry) *group {
	var target *group
candidates:
	for _, s := range g.synth {
		for _, e := range entries {
			if i, ok := s.seen[e.in]; ok && !slices.Equal(s.substs[i].out, e.out) {
				continue candidates
			}
		}
		target = s
		break
	}
	if target == nil {
		target = c.newGroup(g.pos, g.rank, "GSUB", kindSubst, g.flags, g.mfs)
		target.seen = make(map[glyph.ID]int)
		g.synth = append(g.synth, target)
	}
	for _, e := range entries {
		if _, ok := target.seen[e.in]; ok {
			continue
		}
		target.seen[e.in] = len(target.substs)
		target.substs = append(target.substs, e)
	}
	return target
}

func (c *compiler) addLigature(r *rule.Ligature, sc rule.Scope) error {
	if len(r.Components) == 0 || r.Replacement == "" {
		return diag.Errorf(diag.EmptyRule, r.Pos, "ligature without components or replacement")
	}
	in, err := c.glyphs(r.Pos, r.Components)
	if err != nil {
		return err
	}
	out, err := c.glyphs(r.Pos, []string{r.Replacement})
	if err != nil {
		return err
	}

	g, err := c.group(&r.Header, sc, "GSUB", kindLigature)
	if err != nil {
		return err
	}
	g.ligs = append(g.ligs, ligEntry{
		pos:   r.Pos,
		in:    in,
		names: r.Components,
		out:   out[0],
	})
	c.setClass(gdef.GlyphClassLigature, out[0])
	return nil
}

func (c *compiler) addSingle(r *rule.SinglePosition, sc rule.Scope) error {
	if len(r.Glyphs) == 0 {
		return diag.Errorf(diag.EmptyRule, r.Pos, "single positioning without glyphs")
	}
	gids, err := c.glyphs(r.Pos, r.Glyphs)
	if err != nil {
		return err
	}
	v, err := c.valueRecord(r.Pos, &r.Value)
	if err != nil {
		return err
	}

	g, err := c.group(&r.Header, sc, "GPOS", kindSingle)
	if err != nil {
		return err
	}
	for _, gid := range gids {
		g.singles = append(g.singles, singleEntry{pos: r.Pos, gid: gid, v: v})
	}
	return nil
}

func (c *compiler) addPair(r *rule.PairPosition, sc rule.Scope) error {
	if len(r.Left) == 0 || len(r.Right) == 0 {
		return diag.Errorf(diag.EmptyRule, r.Pos, "pair positioning without glyphs")
	}
	left, err := c.glyphs(r.Pos, r.Left)
	if err != nil {
		return err
	}
	right, err := c.glyphs(r.Pos, r.Right)
	if err != nil {
		return err
	}
	v1, err := c.valueRecord(r.Pos, &r.Value)
	if err != nil {
		return err
	}
	v2, err := c.valueRecord(r.Pos, &r.Value2)
	if err != nil {
		return err
	}

	g, err := c.group(&r.Header, sc, "GPOS", kindPair)
	if err != nil {
		return err
	}
	for _, first := range left {
		for _, second := range right {
			g.pairs = append(g.pairs, pairEntry{
				pos:    r.Pos,
				first:  first,
				second: second,
				v1:     v1,
				v2:     v2,
			})
		}
	}
	return nil
}

func (c *compiler) addMark(r *rule.MarkAttachment, sc rule.Scope) error {
	if len(r.Mark) == 0 || len(r.Base) == 0 || r.Class == "" {
		return diag.Errorf(diag.EmptyRule, r.Pos, "mark attachment without marks, mark class or bases")
	}
	marks, err := c.glyphs(r.Pos, r.Mark)
	if err != nil {
		return err
	}
	bases, err := c.glyphs(r.Pos, r.Base)
	if err != nil {
		return err
	}
	markAnchor, err := c.anchor(r.Pos, &r.MarkAnchor)
	if err != nil {
		return err
	}
	baseAnchor, err := c.anchor(r.Pos, &r.BaseAnchor)
	if err != nil {
		return err
	}

	g, err := c.group(&r.Header, sc, "GPOS", kindMark)
	if err != nil {
		return err
	}
	for _, gid := range marks {
		g.marks = append(g.marks, markEntry{pos: r.Pos, gid: gid, class: r.Class, anchor: markAnchor})
	}
	for _, gid := range bases {
		g.bases = append(g.bases, markEntry{pos: r.Pos, gid: gid, class: r.Class, anchor: baseAnchor})
	}
	c.setClass(gdef.GlyphClassBase, bases...)
	c.setClass(gdef.GlyphClassMark, marks...)
	return nil
}

func (c *compiler) addChain(r *rule.Chain, sc rule.Scope) error {
	if len(r.Input) == 0 || len(r.Actions) == 0 {
		return diag.Errorf(diag.EmptyRule, r.Pos, "chain rule without input or actions")
	}
	for _, a := range r.Actions {
		if a.Index < 0 || a.Index >= len(r.Input) {
			return diag.Errorf(diag.EmptyRule, r.Pos,
				"action at position %d outside the input sequence", a.Index)
		}
	}
	backtrack, err := c.classes(r.Pos, r.Backtrack)
	if err != nil {
		return err
	}
	input, err := c.classes(r.Pos, r.Input)
	if err != nil {
		return err
	}
	lookahead, err := c.classes(r.Pos, r.Lookahead)
	if err != nil {
		return err
	}
	table, err := c.chainTable(r)
	if err != nil {
		return err
	}

	g, err := c.group(&r.Header, sc, table, kindChain)
	if err != nil {
		return err
	}
	entry := &chainEntry{
		pos:       r.Pos,
		backtrack: backtrack,
		input:     input,
		lookahead: lookahead,
	}
	for _, a := range r.Actions {
		entry.actions = append(entry.actions, chainAction{index: a.Index, name: a.Lookup, target: -1})
	}
	g.chains = append(g.chains, entry)
	return nil
}

// classes resolves the glyph classes of a context sequence.
func (c *compiler) classes(pos diag.Location, seq [][]string) ([]coverage.Table, error) {
	res := make([]coverage.Table, len(seq))
	for i, names := range seq {
		if len(names) == 0 {
			return nil, diag.Errorf(diag.EmptyRule, pos, "empty glyph class in context")
		}
		gids, err := c.glyphs(pos, names)
		if err != nil {
			return nil, err
		}
		res[i] = coverage.New(gids...)
	}
	return res, nil
}

// resolveActions connects the chain actions to the lookups they call.
func (c *compiler) resolveActions() error {
	for _, g := range c.groups {
		for _, e := range g.chains {
			for i := range e.actions {
				a := &e.actions[i]
				if a.target >= 0 {
					continue
				}
				target, ok := c.named[a.name]
				if !ok {
					return diag.Errorf(diag.UnknownLookup, e.pos, "lookup %q is not defined", a.name)
				}
				if target.table != g.table {
					err := diag.Errorf(diag.UnknownLookup, e.pos,
						"lookup %q belongs to %s, not %s", a.name, target.table, g.table)
					err.Other = target.pos
					return err
				}
				a.target = target.id
			}
		}
	}
	return nil
}
