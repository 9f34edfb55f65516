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

// Package provenance records which source rules contributed to which
// lookup.
//
// The records are for diagnostics only.  Deduplication of lookups never
// looks at them, and they are not part of the binary tables.
package provenance

import (
	"slices"
	"sync"

	"seehuhn.de/go/otlbuild/diag"
)

// Entry describes the origin of a lookup.
type Entry struct {
	Feature  string
	Script   string
	Language string
	Pos      diag.Location
	Lookup   string // the lookup name, or empty for anonymous lookups
}

func (e Entry) String() string {
	res := e.Script + "/" + e.Language + "/" + e.Feature
	if e.Lookup != "" {
		res += " lookup " + e.Lookup
	}
	return res + " at " + e.Pos.String()
}

// Tracker maintains the provenance lists of candidate lookups.  Lookups
// are identified by integers chosen by the caller.  A Tracker is safe for
// concurrent use.
type Tracker struct {
	mu      sync.Mutex
	entries map[int][]Entry
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[int][]Entry)}
}

// Attach adds an entry to the provenance list of a lookup.  Entries which
// are already present are ignored.
func (t *Tracker) Attach(id int, e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if slices.Contains(t.entries[id], e) {
		return
	}
	t.entries[id] = append(t.entries[id], e)
}

// MergeInto moves the entries of the absorbed lookup to the survivor.
// The result is the union of both lists, in order of first appearance.
func (t *Tracker) MergeInto(survivor, absorbed int) {
	if survivor == absorbed {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.entries[survivor]
	for _, e := range t.entries[absorbed] {
		if !slices.Contains(list, e) {
			list = append(list, e)
		}
	}
	if list != nil {
		t.entries[survivor] = list
	}
	delete(t.entries, absorbed)
}

// Entries returns a copy of the provenance list of a lookup.
func (t *Tracker) Entries(id int) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.entries[id])
}

// Record is the provenance list of one lookup in the final lookup list of
// a table.
type Record struct {
	Table   string
	Lookup  int // index in the lookup list
	Entries []Entry
}

// Export returns the provenance records for the given table.  The map
// indexOf gives the final lookup index of every surviving lookup.  The
// records are sorted by lookup index.
func (t *Tracker) Export(table string, indexOf map[int]int) []Record {
	var res []Record
	for id, idx := range indexOf {
		res = append(res, Record{
			Table:   table,
			Lookup:  idx,
			Entries: t.Entries(id),
		})
	}
	slices.SortFunc(res, func(a, b Record) int {
		return a.Lookup - b.Lookup
	})
	return res
}
