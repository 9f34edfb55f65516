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
	"cmp"
	"fmt"
	"slices"

	"seehuhn.de/go/otlbuild/diag"
	"seehuhn.de/go/otlbuild/opentype/gtab"
)

// assemble builds the final table from the surviving lookups of one
// table.  The lookups must be given in graph order.
func (p *packer) assemble(tag string, lookups []*Lookup) (*gtab.Table, map[int]int, error) {
	if len(lookups) > 0xFFFF {
		return nil, nil, &diag.Error{
			Kind: diag.Overflow,
			Msg:  fmt.Sprintf("%s: too many lookups (%d)", tag, len(lookups)),
		}
	}

	order := slices.Clone(lookups)
	slices.SortStableFunc(order, func(a, b *Lookup) int {
		if a.Rank != b.Rank {
			return cmp.Compare(a.Rank, b.Rank)
		}
		return cmp.Compare(a.Meta.LookupType, b.Meta.LookupType)
	})
	indexOf := make(map[int]int, len(order))
	for i, l := range order {
		indexOf[l.ID] = i
	}
	remap := func(idx gtab.LookupIndex) gtab.LookupIndex {
		return gtab.LookupIndex(indexOf[p.find(int(idx))])
	}

	ll := make(gtab.LookupList, len(order))
	for i, l := range order {
		subtables := make([]gtab.Subtable, len(l.Subtables))
		for k, st := range l.Subtables {
			if r, ok := st.(gtab.LookupReferrer); ok {
				st = r.RemapLookups(remap)
			}
			subtables[k] = st
		}
		subtables, err := p.splitSubtables(l, subtables)
		if err != nil {
			return nil, nil, err
		}
		meta := *l.Meta
		ll[i] = &gtab.LookupTable{Meta: &meta, Subtables: subtables}
	}

	err := p.promote(tag, ll)
	if err != nil {
		return nil, nil, err
	}

	table := &gtab.Table{Tag: tag, LookupList: ll}
	table.FeatureList, table.ScriptList = p.features(tag, indexOf)
	_, err = table.Encode()
	if err != nil {
		return nil, nil, err
	}
	return table, indexOf, nil
}

// splitSubtables replaces subtables which are larger than the size limit by
// several smaller subtables, until all subtables fit.
func (p *packer) splitSubtables(l *Lookup, subtables []gtab.Subtable) ([]gtab.Subtable, error) {
	maxSize := p.opt.MaxSubtableSize
	for {
		changed := false
		var res []gtab.Subtable
		for _, st := range subtables {
			size := st.EncodeLen()
			if size <= maxSize {
				res = append(res, st)
				continue
			}
			sp, ok := st.(gtab.Splitter)
			if !ok {
				return nil, p.overflow(l, "subtable of %d bytes cannot be split", size)
			}
			parts, err := split(sp, maxSize)
			if err != nil {
				return nil, p.overflow(l, "subtable of %d bytes: %v", size, err)
			}
			tracer().Debugf("%s lookup %d: subtable of %d bytes split into %d parts",
				l.Table, l.ID, size, len(parts))
			res = append(res, parts...)
			changed = true
		}
		subtables = res
		if !changed {
			return subtables, nil
		}
	}
}

// promote converts lookups to extension lookups, largest first, until all
// offsets in the lookup list fit into 16 bits.
func (p *packer) promote(tag string, ll gtab.LookupList) error {
	for {
		msg, overflow := ll.Overflow()
		if !overflow {
			return nil
		}

		best, bestSize := -1, 0
		for i, lookup := range ll {
			if lookup.Extension {
				continue
			}
			if size := lookup.EncodeLen(); size > bestSize {
				best, bestSize = i, size
			}
		}
		if best < 0 {
			return &diag.Error{
				Kind: diag.Overflow,
				Msg:  tag + ": " + msg,
			}
		}
		ll[best].Extension = true
		tracer().Infof("%s: lookup %d (%d bytes) promoted to extension lookup",
			tag, best, bestSize)
	}
}

// features builds the feature list and the script list of a table.
// Features with the same tag and lookups are shared between language
// systems.
func (p *packer) features(tag string, indexOf map[int]int) (gtab.FeatureList, gtab.ScriptList) {
	type assoc struct {
		sl  gtab.ScriptLang
		rec int
	}

	var records []*gtab.Feature
	recordIdx := make(map[string]int)
	var langSys []assoc
	for _, f := range p.graph.Features {
		if f.Table != tag {
			continue
		}
		var lookups []gtab.LookupIndex
		for _, id := range f.Lookups {
			if idx, ok := indexOf[p.find(id)]; ok {
				lookups = append(lookups, gtab.LookupIndex(idx))
			}
		}
		slices.Sort(lookups)
		lookups = slices.Compact(lookups)
		if len(lookups) == 0 {
			continue
		}

		key := fmt.Sprint(f.Tag, lookups)
		rec, ok := recordIdx[key]
		if !ok {
			rec = len(records)
			recordIdx[key] = rec
			records = append(records, &gtab.Feature{Tag: f.Tag, Lookups: lookups})
		}
		langSys = append(langSys, assoc{gtab.ScriptLang{Script: f.Script, Lang: f.Language}, rec})
	}

	perm := make([]int, len(records))
	for i := range perm {
		perm[i] = i
	}
	slices.SortStableFunc(perm, func(a, b int) int {
		return cmp.Compare(records[a].Tag, records[b].Tag)
	})
	fl := make(gtab.FeatureList, len(records))
	newIdx := make([]gtab.FeatureIndex, len(records))
	for i, old := range perm {
		fl[i] = records[old]
		newIdx[old] = gtab.FeatureIndex(i)
	}

	sl := gtab.ScriptList{}
	for _, a := range langSys {
		ff := sl[a.sl]
		if ff == nil {
			ff = &gtab.Features{Required: gtab.NoRequiredFeature}
			sl[a.sl] = ff
		}
		ff.Optional = append(ff.Optional, newIdx[a.rec])
	}
	for _, ff := range sl {
		slices.Sort(ff.Optional)
		ff.Optional = slices.Compact(ff.Optional)
	}
	return fl, sl
}

func (p *packer) overflow(l *Lookup, format string, a ...any) *diag.Error {
	err := &diag.Error{Kind: diag.Overflow}
	if p.graph.Provenance != nil {
		if entries := p.graph.Provenance.Entries(l.ID); len(entries) > 0 {
			err.Pos = entries[0].Pos
		}
	}
	name := l.Name
	if name == "" {
		name = fmt.Sprintf("#%d", l.ID)
	}
	err.Msg = fmt.Sprintf("%s lookup %s: ", l.Table, name) + fmt.Sprintf(format, a...)
	return err
}
