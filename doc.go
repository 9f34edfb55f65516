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

// Package otlbuild builds the OpenType layout tables of a font from a list
// of layout rules.
//
// The rules describe glyph substitutions and positioning adjustments, as
// they are found in feature files.  Positioning values may vary across the
// design space of a variable font.  [Compile] turns the rules into GSUB,
// GPOS and GDEF tables, together with the ItemVariationStore which holds
// the deltas of all varying values:
//
//	gm, err := glyphs.FromFont(font)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := otlbuild.Compile(rules, gm, axes, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	data, err := res.Encode()
//
// Compilation is deterministic: the same input always produces the same
// binary tables, independent of the number of worker goroutines used.
// Errors are reported as [*diag.Error] values, which give the source
// location of the offending rule.  Compile either returns a complete
// result or an error, never a partial result.
package otlbuild
