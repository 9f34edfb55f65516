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

// Package pack turns a candidate lookup graph into final GSUB and GPOS
// tables.
//
// Packing deduplicates structurally identical subtables and lookups,
// assigns the final lookup indices, splits subtables which are too large
// for 16-bit offsets and promotes lookups to extension lookups where
// needed.  The result only depends on the input graph, not on the number
// of workers used.
package pack

import (
	"runtime"

	"github.com/npillmayer/schuko/tracing"

	"seehuhn.de/go/otlbuild/opentype/gtab"
	"seehuhn.de/go/otlbuild/provenance"
)

func tracer() tracing.Trace {
	return tracing.Select("otlbuild.pack")
}

// Lookup is a candidate lookup.
//
// Chain subtables refer to other lookups by their candidate ID.
type Lookup struct {
	ID    int
	Table string // "GSUB" or "GPOS"
	Name  string // the lookup name from the source, for diagnostics

	// Rank is the position of the first scope which uses the lookup.
	// Lookups are sorted by rank before they are sorted by type.
	Rank int

	Meta      *gtab.LookupMetaInfo
	Subtables []gtab.Subtable
}

// Feature attaches candidate lookups to a feature of a language system.
type Feature struct {
	Table    string
	Script   string
	Language string
	Tag      string
	Lookups  []int // candidate IDs
}

// Graph is the output of the rule compiler.
type Graph struct {
	// Lookups are ordered by first appearance.  Lookups[i].ID == i.
	Lookups  []*Lookup
	Features []*Feature

	// Provenance maps candidate IDs to the source rules.  Pack updates the
	// tracker when lookups are merged.
	Provenance *provenance.Tracker
}

// Strategy controls how identical lookups of a table are merged.
type Strategy int

// These are the supported merge strategies.
const (
	// MergeIdentical merges lookups with identical binary content.
	MergeIdentical Strategy = iota

	// KeepSeparate keeps every candidate lookup.  Only duplicate subtables
	// inside a lookup are removed.
	KeepSeparate
)

// Options control packing.
type Options struct {
	// Strategy gives the merge strategy per table tag.  Tables not listed
	// use MergeIdentical.
	Strategy map[string]Strategy

	// MaxSubtableSize is the largest allowed size of an encoded subtable.
	// Larger subtables are split.  The default is 0xFFFF.
	MaxSubtableSize int

	// Workers is the number of goroutines used to encode subtables.  The
	// default is runtime.GOMAXPROCS(0).
	Workers int
}

func (opt *Options) withDefaults() *Options {
	res := &Options{}
	if opt != nil {
		*res = *opt
	}
	if res.MaxSubtableSize <= 0 || res.MaxSubtableSize > 0xFFFF {
		res.MaxSubtableSize = 0xFFFF
	}
	if res.Workers <= 0 {
		res.Workers = runtime.GOMAXPROCS(0)
	}
	return res
}

func (opt *Options) strategy(table string) Strategy {
	if s, ok := opt.Strategy[table]; ok {
		return s
	}
	return MergeIdentical
}

// Result contains the packed tables.
type Result struct {
	Tables map[string]*gtab.Table

	// IndexOf maps the candidate IDs of the surviving lookups to their
	// index in the lookup list, per table.
	IndexOf map[string]map[int]int
}

// Pack deduplicates the candidate graph and assembles the final tables.
func Pack(g *Graph, opt *Options) (*Result, error) {
	p := &packer{
		graph:  g,
		opt:    opt.withDefaults(),
		parent: make(map[int]int),
	}
	alive := p.dedup()

	res := &Result{
		Tables:  make(map[string]*gtab.Table),
		IndexOf: make(map[string]map[int]int),
	}
	for _, tag := range []string{"GSUB", "GPOS"} {
		var lookups []*Lookup
		for _, l := range alive {
			if l.Table == tag {
				lookups = append(lookups, l)
			}
		}
		if len(lookups) == 0 {
			continue
		}
		table, indexOf, err := p.assemble(tag, lookups)
		if err != nil {
			return nil, err
		}
		res.Tables[tag] = table
		res.IndexOf[tag] = indexOf
	}
	return res, nil
}

type packer struct {
	graph *Graph
	opt   *Options

	// parent maps absorbed lookups to the lookup they were merged into.
	parent map[int]int
}

// find returns the surviving lookup for a candidate ID.
func (p *packer) find(id int) int {
	for {
		next, ok := p.parent[id]
		if !ok {
			return id
		}
		id = next
	}
}
