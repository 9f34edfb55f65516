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
	"fmt"

	"seehuhn.de/go/otlbuild/internal/parallel"
	"seehuhn.de/go/otlbuild/opentype/gtab"
)

// dedup merges identical subtables and lookups until a fixed point is
// reached.  Chain subtables are compared after their actions have been
// redirected to the surviving lookups, so merging two lookups can make
// further lookups identical.  The surviving lookups are returned in graph
// order.
func (p *packer) dedup() []*Lookup {
	alive := make([]*Lookup, len(p.graph.Lookups))
	for i, l := range p.graph.Lookups {
		clone := *l
		clone.Subtables = append([]gtab.Subtable(nil), l.Subtables...)
		alive[i] = &clone
	}

	for round := 1; ; round++ {
		var all []gtab.Subtable
		for _, l := range alive {
			all = append(all, l.Subtables...)
		}
		keys := encodeAll(all, p.find, p.opt.Workers)

		changed := false
		subtableID := make(map[string]int)
		canonical := make([]gtab.Subtable, 0, len(all))
		seen := make(map[string]*Lookup)
		next := alive[:0]
		pos := 0
		for _, l := range alive {
			var subtables []gtab.Subtable
			var ids []int
			used := make(map[int]bool)
			for _, st := range l.Subtables {
				key := fmt.Sprint(l.Table, "/", l.Meta.LookupType, "/", keys[pos])
				pos++

				id, ok := subtableID[key]
				if !ok {
					id = len(canonical)
					subtableID[key] = id
					canonical = append(canonical, st)
				}
				if used[id] {
					// an identical earlier subtable already handles all
					// glyphs this one could match
					changed = true
					continue
				}
				used[id] = true
				subtables = append(subtables, canonical[id])
				ids = append(ids, id)
			}
			l.Subtables = subtables

			if p.opt.strategy(l.Table) == KeepSeparate {
				next = append(next, l)
				continue
			}
			lookupKey := fmt.Sprint(l.Table, l.Meta.LookupType, l.Meta.LookupFlag, l.Meta.MarkFilteringSet, ids)
			if survivor, ok := seen[lookupKey]; ok {
				p.merge(survivor, l)
				changed = true
				continue
			}
			seen[lookupKey] = l
			next = append(next, l)
		}
		alive = next

		tracer().Debugf("dedup round %d: %d lookups, %d distinct subtables",
			round, len(alive), len(canonical))
		if !changed {
			return alive
		}
	}
}

func (p *packer) merge(survivor, absorbed *Lookup) {
	p.parent[absorbed.ID] = survivor.ID
	survivor.Rank = min(survivor.Rank, absorbed.Rank)
	if p.graph.Provenance != nil {
		p.graph.Provenance.MergeInto(survivor.ID, absorbed.ID)
	}
	tracer().Debugf("%s lookup %d merged into %d", survivor.Table, absorbed.ID, survivor.ID)
}

// encodeAll returns the binary encodings of the subtables.  Lookup
// references are mapped through find first.  The work is spread over the
// given number of goroutines.  find must be safe for concurrent use.
func encodeAll(subtables []gtab.Subtable, find func(int) int, workers int) []string {
	res := make([]string, len(subtables))
	remap := func(idx gtab.LookupIndex) gtab.LookupIndex {
		return gtab.LookupIndex(find(int(idx)))
	}
	encode := func(i int) {
		st := subtables[i]
		if r, ok := st.(gtab.LookupReferrer); ok {
			st = r.RemapLookups(remap)
		}
		res[i] = string(st.Encode())
	}

	parallel.Do(len(subtables), workers, encode)
	return res
}
