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

package classdef

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/otlbuild/internal/parser"
)

func TestEncode(t *testing.T) {
	cases := []struct {
		table  Table
		format uint16
	}{
		{Table{}, 2},
		{Table{1: 1}, 1},
		{Table{1: 1, 2: 1, 3: 2, 4: 1}, 1},
		{Table{10: 1, 11: 1, 12: 1, 100: 3, 101: 3, 102: 3}, 2},
		{Table{5: 1, 6: 2, 7: 3}, 1},
	}
	for i, c := range cases {
		buf := c.table.Encode()
		if len(buf) != c.table.EncodeLen() {
			t.Errorf("%d: EncodeLen %d != %d", i, c.table.EncodeLen(), len(buf))
		}
		format := uint16(buf[0])<<8 | uint16(buf[1])
		if format != c.format {
			t.Errorf("%d: format %d, expected %d", i, format, c.format)
		}
		got, err := Decode(parser.New("test", buf), 0)
		if err != nil {
			t.Fatal(err)
		}
		if d := cmp.Diff(c.table, got); d != "" {
			t.Errorf("%d: %s", i, d)
		}
	}
}

func TestNumClasses(t *testing.T) {
	if n := (Table{1: 1, 2: 3}).NumClasses(); n != 4 {
		t.Errorf("got %d classes", n)
	}
	if n := (Table{}).NumClasses(); n != 1 {
		t.Errorf("got %d classes", n)
	}
}

func FuzzClassDef(f *testing.F) {
	f.Add(Table{1: 1, 2: 1, 3: 2}.Encode())
	f.Add(Table{10: 1, 11: 1, 12: 1, 100: 3, 101: 3}.Encode())
	f.Fuzz(func(t *testing.T, data []byte) {
		table, err := Decode(parser.New("test", data), 0)
		if err != nil {
			return
		}
		table2, err := Decode(parser.New("test", table.Encode()), 0)
		if err != nil {
			t.Fatal(err)
		}
		if d := cmp.Diff(table, table2); d != "" {
			t.Error(d)
		}
	})
}
