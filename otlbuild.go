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

package otlbuild

import (
	"fmt"

	"github.com/npillmayer/schuko/tracing"

	"seehuhn.de/go/otlbuild/compiler"
	"seehuhn.de/go/otlbuild/diag"
	"seehuhn.de/go/otlbuild/glyphs"
	"seehuhn.de/go/otlbuild/opentype/gdef"
	"seehuhn.de/go/otlbuild/opentype/gtab"
	"seehuhn.de/go/otlbuild/pack"
	"seehuhn.de/go/otlbuild/provenance"
	"seehuhn.de/go/otlbuild/rule"
	"seehuhn.de/go/otlbuild/varmodel"
	"seehuhn.de/go/otlbuild/varstore"
)

func tracer() tracing.Trace {
	return tracing.Select("otlbuild")
}

// Options control the compilation.  A nil *Options is equivalent to the
// zero value, which selects the defaults.
type Options struct {
	// Debug enables the collection of provenance records for the final
	// lookups.
	Debug bool

	// Workers is the number of goroutines used for lowering and packing.
	// The default is runtime.GOMAXPROCS(0).  The output does not depend on
	// this value.
	Workers int

	// MaxSubtableSize is the largest size of an encoded subtable.  Larger
	// subtables are split.  The default is 0xFFFF, smaller values are
	// mainly useful for testing.
	MaxSubtableSize int

	// Strategy gives the lookup merge strategy per table tag.  Tables not
	// listed use pack.MergeIdentical.
	Strategy map[string]pack.Strategy
}

// Result contains the compiled layout tables.
type Result struct {
	// Tables contains the "GSUB" and "GPOS" tables.  Tables without
	// lookups are omitted.
	Tables map[string]*gtab.Table

	// GDEF is nil if no GDEF table is needed.
	GDEF *gdef.Table

	// VarStore contains the deltas of all varying values.  This is nil if
	// no value varies.  If set, the store is also referenced by GDEF.
	VarStore *varstore.Store

	// Debug gives the source rules of every lookup, per table tag.  This is
	// only set if Options.Debug is true.
	Debug map[string][]provenance.Record

	Warnings []*diag.Warning
}

// Compile builds the layout tables for the given rules.  The rules must be
// in source order.  Glyph names are resolved using gm, and axes describes
// the design space of the font.
//
// If an error is returned, it is of type *diag.Error.
func Compile(rules []rule.Rule, gm *glyphs.Map, axes []varmodel.Axis, opt *Options) (*Result, error) {
	if opt == nil {
		opt = &Options{}
	}

	tags := make([]string, len(axes))
	for i, a := range axes {
		tags[i] = a.Tag
	}
	resolver := varmodel.NewResolver(axes)
	store := varstore.NewBuilder(tags)

	cres, warnings, err := compiler.Compile(rules, gm, resolver, store,
		&compiler.Options{Workers: opt.Workers})
	if err != nil {
		return nil, err
	}

	packed, err := pack.Pack(cres.Graph, &pack.Options{
		Strategy:        opt.Strategy,
		MaxSubtableSize: opt.MaxSubtableSize,
		Workers:         opt.Workers,
	})
	if err != nil {
		return nil, err
	}

	vs, err := store.Finalize()
	if err != nil {
		return nil, err
	}

	res := &Result{
		Tables:   packed.Tables,
		GDEF:     cres.GDEF,
		VarStore: vs,
		Warnings: warnings,
	}
	if vs != nil {
		if res.GDEF == nil {
			res.GDEF = &gdef.Table{}
		}
		res.GDEF.VarStore = vs
	}

	if opt.Debug {
		res.Debug = make(map[string][]provenance.Record)
		for tag := range packed.Tables {
			res.Debug[tag] = cres.Graph.Provenance.Export(tag, packed.IndexOf[tag])
		}
	}

	for tag, table := range res.Tables {
		tracer().Infof("%s: %d lookups, %d features", tag,
			len(table.LookupList), len(table.FeatureList))
	}
	return res, nil
}

// Encode returns the binary encoding of the tables, keyed by table tag.
func (r *Result) Encode() (map[string][]byte, error) {
	res := make(map[string][]byte)
	for tag, table := range r.Tables {
		data, err := table.Encode()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		res[tag] = data
	}
	if !r.GDEF.IsEmpty() {
		data, err := r.GDEF.Encode()
		if err != nil {
			return nil, fmt.Errorf("GDEF: %w", err)
		}
		res["GDEF"] = data
	}
	return res, nil
}
