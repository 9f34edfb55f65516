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

package diag

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Kind:  ConflictingRule,
		Pos:   Location{File: "a.fea", Line: 10, Column: 4},
		Other: Location{File: "a.fea", Line: 3, Column: 1},
		Msg:   `glyph "a" substituted twice`,
	}
	got := err.Error()
	want := `a.fea:10:4: ConflictingRuleError: glyph "a" substituted twice (see also a.fea:3:1)`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestIsKind(t *testing.T) {
	var err error = Errorf(Overflow, Location{}, "too large")
	wrapped := fmt.Errorf("GSUB: %w", err)
	if !IsKind(wrapped, Overflow) {
		t.Error("wrapped Overflow not recognised")
	}
	if IsKind(wrapped, EmptyRule) {
		t.Error("wrong kind matched")
	}
	if IsKind(errors.New("plain"), Overflow) {
		t.Error("plain error matched")
	}
}

func TestLocationLess(t *testing.T) {
	a := Location{File: "a", Line: 2, Column: 9}
	b := Location{File: "a", Line: 3, Column: 1}
	c := Location{File: "b", Line: 1, Column: 1}
	if !a.Less(b) || !b.Less(c) || c.Less(a) || a.Less(a) {
		t.Error("unexpected ordering")
	}
	if (Location{}).String() != "<unknown>" {
		t.Error("zero location not reported as unknown")
	}
}
