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

package coverage

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/otlbuild/internal/parser"
)

func TestNew(t *testing.T) {
	table := New(7, 3, 5, 3)
	if d := cmp.Diff(Table{3, 5, 7}, table); d != "" {
		t.Error(d)
	}
	if idx, ok := table.Index(5); !ok || idx != 1 {
		t.Errorf("Index(5) = %d, %t", idx, ok)
	}
	if table.Contains(4) {
		t.Error("4 should not be covered")
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		table  Table
		format uint16
	}{
		{Table{}, 1},
		{Table{1}, 1},
		{Table{1, 3, 5, 7}, 1},
		{Table{1, 2, 3, 4, 5, 6}, 2},
		{Table{1, 2, 3, 10, 11, 12, 20}, 1},
		{Table{1, 2, 3, 4, 5, 10, 11, 12, 13, 14}, 2},
		{Table{0, 1, 0xFFFE, 0xFFFF}, 1},
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
		if len(c.table) == 0 && len(got) == 0 {
			continue
		}
		if d := cmp.Diff(c.table, got); d != "" {
			t.Errorf("%d: %s", i, d)
		}
	}
}

func FuzzCoverage(f *testing.F) {
	f.Add(Table{1, 2, 3, 10}.Encode())
	f.Add(Table{4, 9}.Encode())
	f.Fuzz(func(t *testing.T, data []byte) {
		table, err := Decode(parser.New("test", data), 0)
		if err != nil {
			return
		}
		buf := table.Encode()
		table2, err := Decode(parser.New("test", buf), 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(table) == 0 && len(table2) == 0 {
			return
		}
		if d := cmp.Diff(table, table2); d != "" {
			t.Error(d)
		}
	})
}
