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

package parallel

import (
	"sync/atomic"
	"testing"
)

func TestDo(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 100} {
		res := make([]int, 50)
		var calls atomic.Int32
		Do(len(res), workers, func(i int) {
			calls.Add(1)
			res[i] = i * i
		})
		if calls.Load() != 50 {
			t.Errorf("%d workers: %d calls", workers, calls.Load())
		}
		for i, x := range res {
			if x != i*i {
				t.Errorf("%d workers: res[%d] = %d", workers, i, x)
			}
		}
	}
}

func TestDoEmpty(t *testing.T) {
	Do(0, 4, func(int) {
		t.Error("unexpected call")
	})
}
