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

// Package rule defines the parsed form of OpenType layout rules.
//
// Rules are produced by a front end, for example a feature file parser,
// and consumed by the compiler.  Glyphs are referred to by name.  Every
// rule carries the source location it came from and the scope (script,
// language and feature) it belongs to.
package rule

import (
	"seehuhn.de/go/otlbuild/diag"
	"seehuhn.de/go/otlbuild/opentype/gtab"
	"seehuhn.de/go/otlbuild/varmodel"
)

// Rule is one of *Substitution, *Ligature, *SinglePosition,
// *PairPosition, *MarkAttachment or *Chain.
type Rule interface {
	Head() *Header
	isRule()
}

// Scope identifies the feature of a script and language system a rule
// belongs to.  An empty Script or Language stands for "DFLT" and "dflt",
// respectively.
type Scope struct {
	Script   string
	Language string
	Feature  string
}

func (s Scope) String() string {
	script := s.Script
	if script == "" {
		script = "DFLT"
	}
	lang := s.Language
	if lang == "" {
		lang = gtab.DefaultLanguage
	}
	return script + "/" + lang + "/" + s.Feature
}

// Header contains the information common to all rules.
type Header struct {
	Pos   diag.Location
	Scope Scope

	// Lookup is the name of the lookup block the rule belongs to.  Rules
	// with the same non-empty name end up in the same lookup.  A named
	// lookup with an empty feature tag is only reachable from chain rules.
	Lookup string

	Flags gtab.LookupFlags

	// MarkFilteringSet lists the glyphs of the mark filtering set.  This is
	// only used if Flags contains gtab.LookupUseMarkFilteringSet.
	MarkFilteringSet []string
}

// Head returns the header of the rule.
func (h *Header) Head() *Header {
	return h
}

// Substitution replaces glyphs.
//
// If Input and Replacement have the same length, Input[i] is replaced by
// Replacement[i].  If Replacement has a single element, all glyphs in
// Input are replaced by this glyph.  If Input has a single element and
// Replacement has several, the glyph is replaced by the glyph sequence.
//
// If Backtrack or Lookahead are non-empty, the substitution only applies
// in this context.  Each context position is a glyph class.  Backtrack is
// given in text order.
type Substitution struct {
	Header
	Backtrack   [][]string
	Input       []string
	Replacement []string
	Lookahead   [][]string
}

// IsMultiple reports whether the rule replaces one glyph by a sequence.
func (r *Substitution) IsMultiple() bool {
	return len(r.Input) == 1 && len(r.Replacement) > 1
}

// IsContextual reports whether the rule has backtrack or lookahead
// context.
func (r *Substitution) IsContextual() bool {
	return len(r.Backtrack) > 0 || len(r.Lookahead) > 0
}

// Ligature replaces a sequence of glyphs by a single glyph.
type Ligature struct {
	Header
	Components  []string
	Replacement string
}

// SinglePosition adjusts the position of every glyph in Glyphs by Value.
type SinglePosition struct {
	Header
	Glyphs []string
	Value  ValueRecord
}

// PairPosition adjusts the positions of two adjacent glyphs.  The rule
// applies to every pair from Left × Right.  Value adjusts the left glyph,
// Value2 the right one.
type PairPosition struct {
	Header
	Left, Right []string
	Value       ValueRecord
	Value2      ValueRecord
}

// MarkAttachment attaches marks to base glyphs.  The marks in Mark belong
// to the mark class Class and are positioned so that MarkAnchor coincides
// with the BaseAnchor of the base glyph.
type MarkAttachment struct {
	Header
	Mark       []string
	Class      string
	MarkAnchor Anchor
	Base       []string
	BaseAnchor Anchor
}

// Chain applies lookups to a glyph sequence in context.  Every position of
// Backtrack, Input and Lookahead is a glyph class.  Backtrack is given in
// text order.
type Chain struct {
	Header
	Backtrack [][]string
	Input     [][]string
	Lookahead [][]string
	Actions   []Action
}

// Action names a lookup to apply at a position of the input sequence.
type Action struct {
	Index  int
	Lookup string
}

// ValueRecord holds the positioning adjustments of a glyph.  Nil fields are
// absent.
type ValueRecord struct {
	XPlacement *varmodel.VariableScalar
	YPlacement *varmodel.VariableScalar
	XAdvance   *varmodel.VariableScalar
	YAdvance   *varmodel.VariableScalar
}

// IsEmpty reports whether no field is set.
func (vr *ValueRecord) IsEmpty() bool {
	return vr.XPlacement == nil && vr.YPlacement == nil &&
		vr.XAdvance == nil && vr.YAdvance == nil
}

// Anchor is an attachment point.
type Anchor struct {
	X, Y *varmodel.VariableScalar
}

func (*Substitution) isRule()   {}
func (*Ligature) isRule()       {}
func (*SinglePosition) isRule() {}
func (*PairPosition) isRule()   {}
func (*MarkAttachment) isRule() {}
func (*Chain) isRule()          {}
