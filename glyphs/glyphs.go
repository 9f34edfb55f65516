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

// Package glyphs maps glyph names to glyph IDs.
package glyphs

import (
	"fmt"

	"seehuhn.de/go/sfnt"
	"seehuhn.de/go/sfnt/glyph"
)

// Map is a bidirectional mapping between glyph names and glyph IDs.
type Map struct {
	names []string
	ids   map[string]glyph.ID
}

// FromNames returns a Map where the glyph with name names[i] has glyph ID
// i.  If a name occurs more than once, the first occurrence is used.
func FromNames(names []string) (*Map, error) {
	if len(names) > 0xFFFF {
		return nil, fmt.Errorf("too many glyphs (%d)", len(names))
	}
	m := &Map{
		names: names,
		ids:   make(map[string]glyph.ID, len(names)),
	}
	for i, name := range names {
		if _, seen := m.ids[name]; seen || name == "" {
			continue
		}
		m.ids[name] = glyph.ID(i)
	}
	return m, nil
}

// FromFont returns the glyph names of an sfnt font.  If the font does not
// contain glyph names, names are synthesized from the character mapping.
func FromFont(f *sfnt.Font) (*Map, error) {
	return FromNames(f.MakeGlyphNames())
}

// NumGlyphs returns the number of glyphs in the font.
func (m *Map) NumGlyphs() int {
	return len(m.names)
}

// ID returns the glyph ID for the given name.
func (m *Map) ID(name string) (glyph.ID, bool) {
	gid, ok := m.ids[name]
	return gid, ok
}

// Name returns the name of the glyph with the given ID.
func (m *Map) Name(gid glyph.ID) string {
	if int(gid) < len(m.names) && m.names[gid] != "" {
		return m.names[gid]
	}
	return fmt.Sprintf("glyph%05d", gid)
}
