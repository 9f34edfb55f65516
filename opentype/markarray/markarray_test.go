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

package markarray

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/otlbuild/internal/parser"
	"seehuhn.de/go/otlbuild/opentype/anchor"
	"seehuhn.de/go/otlbuild/opentype/device"
)

func TestRoundTrip(t *testing.T) {
	table := Table{
		{Class: 0, Table: anchor.Table{X: 100, Y: 200}},
		{Class: 1, Table: anchor.Table{X: 50, Y: 600, YVar: &device.Index{Inner: 3}}},
		{Class: 0, Table: anchor.Table{X: 100, Y: 200}},
	}
	buf := table.Append(nil)
	if len(buf) != table.EncodeLen() {
		t.Errorf("EncodeLen %d != %d", table.EncodeLen(), len(buf))
	}
	// the repeated anchor is shared
	if len(buf) != 2+3*4+6+16 {
		t.Errorf("unexpected length %d", len(buf))
	}
	got, err := Decode(parser.New("markarray", buf), 0)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(table, got); d != "" {
		t.Error(d)
	}
}
