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

package varmodel

import (
	"fmt"
	"strings"
	"sync"

	"github.com/npillmayer/schuko/tracing"

	"seehuhn.de/go/otlbuild/diag"
)

func tracer() tracing.Trace {
	return tracing.Select("otlbuild.varmodel")
}

// VariableScalar is a value which may vary across the design space.  It is
// given as a list of samples, each at a location in user coordinates.
type VariableScalar struct {
	// Origin is the source position where the value was written.
	Origin diag.Location

	samples []sample
}

type sample struct {
	loc   map[string]float64
	key   string
	value float64
}

// Static returns a scalar which has the value v everywhere.
func Static(v float64) *VariableScalar {
	vs := &VariableScalar{}
	vs.Add(nil, v)
	return vs
}

// Add sets the value at the given location.  A previous value at the same
// location is replaced.
func (vs *VariableScalar) Add(loc map[string]float64, v float64) {
	key := userKey(loc)
	for i := range vs.samples {
		if vs.samples[i].key == key {
			vs.samples[i].value = v
			return
		}
	}
	c := make(map[string]float64, len(loc))
	for tag, x := range loc {
		c[tag] = x
	}
	vs.samples = append(vs.samples, sample{loc: c, key: key, value: v})
}

// Len returns the number of samples.
func (vs *VariableScalar) Len() int {
	return len(vs.samples)
}

// Varies reports whether the samples have different values.
func (vs *VariableScalar) Varies() bool {
	for _, s := range vs.samples[min(1, len(vs.samples)):] {
		if s.value != vs.samples[0].value {
			return true
		}
	}
	return false
}

func (vs *VariableScalar) String() string {
	if len(vs.samples) == 1 && vs.samples[0].key == "" {
		return formatCoord(vs.samples[0].value)
	}
	parts := make([]string, len(vs.samples))
	for i, s := range vs.samples {
		parts[i] = s.key + ":" + formatCoord(s.value)
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// VarIndex identifies a row in an ItemVariationStore.
type VarIndex struct {
	Outer, Inner uint16
}

func (idx VarIndex) String() string {
	return fmt.Sprintf("%d:%d", idx.Outer, idx.Inner)
}

// Value is a resolved VariableScalar.  If Varying is false, the value is
// the same everywhere and Index is unused.
type Value struct {
	Default int
	Varying bool
	Index   VarIndex
}

func (v Value) String() string {
	if !v.Varying {
		return fmt.Sprint(v.Default)
	}
	return fmt.Sprintf("%d@%s", v.Default, v.Index)
}

// Registrar receives the deltas of varying values.  This is implemented by
// the variation store builder.
type Registrar interface {
	Register(regions []Region, deltas []int) (VarIndex, error)
}

// Resolver turns VariableScalars into Values.  Variation models are cached
// per set of master locations.  A Resolver is safe for concurrent use.
type Resolver struct {
	axes []Axis

	mu     sync.Mutex
	models map[string]*Model
}

// NewResolver returns a new Resolver for a font with the given axes.
func NewResolver(axes []Axis) *Resolver {
	return &Resolver{
		axes:   axes,
		models: make(map[string]*Model),
	}
}

// Axes returns the axes the resolver was created with.
func (r *Resolver) Axes() []Axis {
	return r.axes
}

// Resolve converts vs to a Value.  If the value varies, the rounded deltas
// are registered with reg.  Samples outside the axis ranges are clamped
// and reported as warnings.
func (r *Resolver) Resolve(vs *VariableScalar, reg Registrar) (Value, []*diag.Warning, error) {
	locs, values, warnings, err := r.normalize(vs)
	if err != nil {
		return Value{}, nil, err
	}

	allEqual := true
	for _, v := range values[1:] {
		if v != values[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return Value{Default: Round(values[0])}, warnings, nil
	}

	model, err := r.model(locs)
	if err != nil {
		return Value{}, nil, err
	}
	def, regions, deltas := model.Fit(values)

	nonZero := false
	for _, d := range deltas {
		if d != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		return Value{Default: def}, warnings, nil
	}

	idx, err := reg.Register(regions, deltas)
	if err != nil {
		return Value{}, nil, err
	}
	tracer().Debugf("%s: %s -> %d@%s", vs.Origin, vs, def, idx)
	return Value{Default: def, Varying: true, Index: idx}, warnings, nil
}

// ValueAt returns the interpolated, unrounded value of vs at the given
// location in user coordinates.
func (r *Resolver) ValueAt(vs *VariableScalar, userLoc map[string]float64) (float64, error) {
	locs, values, _, err := r.normalize(vs)
	if err != nil {
		return 0, err
	}
	loc, _, err := Normalize(r.axes, userLoc, vs.Origin)
	if err != nil {
		return 0, err
	}
	if len(values) == 1 {
		return values[0], nil
	}
	model, err := r.model(locs)
	if err != nil {
		return 0, err
	}
	return model.Interpolate(loc, model.Deltas(values)), nil
}

// normalize converts the samples of vs to normalized coordinates.  Samples
// which end up at the same location after clamping are merged, the later
// sample wins.  The default sample is always returned first.
func (r *Resolver) normalize(vs *VariableScalar) ([]Location, []float64, []*diag.Warning, error) {
	var warnings []*diag.Warning
	var locs []Location
	var values []float64
	pos := make(map[string]int)
	for _, s := range vs.samples {
		loc, ww, err := Normalize(r.axes, s.loc, vs.Origin)
		if err != nil {
			return nil, nil, nil, err
		}
		warnings = append(warnings, ww...)
		key := loc.Key()
		if i, seen := pos[key]; seen {
			values[i] = s.value
			continue
		}
		pos[key] = len(locs)
		locs = append(locs, loc)
		values = append(values, s.value)
	}

	i, ok := pos[""]
	if !ok {
		return nil, nil, nil, diag.Errorf(diag.MissingDefaultLocation, vs.Origin,
			"value %s has no sample at the default location", vs)
	}
	if i != 0 {
		locs[0], locs[i] = locs[i], locs[0]
		values[0], values[i] = values[i], values[0]
	}
	return locs, values, warnings, nil
}

func (r *Resolver) model(locs []Location) (*Model, error) {
	keys := make([]string, len(locs))
	for i, loc := range locs {
		keys[i] = loc.Key()
	}
	key := strings.Join(keys, "|")

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.models[key]; ok {
		return m, nil
	}
	m, err := NewModel(locs, nil)
	if err != nil {
		return nil, err
	}
	r.models[key] = m
	return m, nil
}
