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

package pack

import (
	"errors"

	"seehuhn.de/go/dag"

	"seehuhn.de/go/otlbuild/opentype/gtab"
)

// splitWindow is the number of alternative chunk ends considered below the
// largest chunk which fits.
const splitWindow = 16

var errEntryTooLarge = errors.New("single entry exceeds the size limit")

// split divides a subtable into order-preserving chunks, each of which
// encodes to at most maxSize bytes.  Among the candidate divisions, one
// with minimal total size is chosen.
func split(st gtab.Splitter, maxSize int) ([]gtab.Subtable, error) {
	n := st.Entries()
	if n == 0 {
		return nil, errEntryTooLarge
	}
	g := &splitGraph{
		st:     st,
		max:    maxSize,
		edges:  make(map[int][]int),
		length: make(map[[2]int]int),
		vertex: make(map[int]int),
	}
	err := g.explore(n)
	if err != nil {
		return nil, err
	}

	ee, err := dag.ShortestPath(g, len(g.pos)-1)
	if err != nil {
		return nil, err
	}
	res := make([]gtab.Subtable, 0, len(ee))
	v := 0
	for _, e := range ee {
		res = append(res, st.Slice(g.pos[v], g.pos[e]))
		v = g.To(v, e)
	}
	return res, nil
}

// splitGraph describes the possible divisions of a subtable.  The vertices
// are the entry positions which can start a chunk, numbered in increasing
// order; the last vertex is the end of the subtable.  An edge from v to e
// represents the chunk with entries pos[v], ..., pos[e]-1.
type splitGraph struct {
	st  gtab.Splitter
	max int

	pos    []int
	edges  map[int][]int // by entry position
	length map[[2]int]int
	vertex map[int]int
}

// explore determines the entry positions which can start a chunk, and the
// possible chunks starting there.  For every position, the largest chunk
// which fits is found by bisection, and the splitWindow next smaller chunks
// are added as alternatives.
func (g *splitGraph) explore(n int) error {
	reachable := map[int]bool{0: true}
	for v := 0; v < n; v++ {
		if !reachable[v] {
			continue
		}
		g.vertex[v] = len(g.pos)
		g.pos = append(g.pos, v)
		if g.size(v, v+1) > g.max {
			return errEntryTooLarge
		}

		lo, hi := v+1, n
		for lo < hi {
			mid := (lo + hi + 1) / 2
			if g.size(v, mid) <= g.max {
				lo = mid
			} else {
				hi = mid - 1
			}
		}

		for e := max(v+1, lo-splitWindow); e <= lo; e++ {
			g.edges[v] = append(g.edges[v], e)
			reachable[e] = true
		}
	}
	g.vertex[n] = len(g.pos)
	g.pos = append(g.pos, n)
	return nil
}

func (g *splitGraph) size(v, e int) int {
	key := [2]int{v, e}
	if l, ok := g.length[key]; ok {
		return l
	}
	l := g.st.Slice(v, e).EncodeLen()
	g.length[key] = l
	return l
}

func (g *splitGraph) AppendEdges(ee []int, v int) []int {
	for _, end := range g.edges[g.pos[v]] {
		ee = append(ee, g.vertex[end])
	}
	return ee
}

func (g *splitGraph) Length(v int, e int) int {
	return g.size(g.pos[v], g.pos[e])
}

func (g *splitGraph) To(v int, e int) int {
	return e
}
