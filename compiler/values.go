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

package compiler

import (
	"errors"
	"math"

	"seehuhn.de/go/postscript/funit"

	"seehuhn.de/go/otlbuild/diag"
	"seehuhn.de/go/otlbuild/opentype/anchor"
	"seehuhn.de/go/otlbuild/opentype/device"
	"seehuhn.de/go/otlbuild/opentype/gtab"
	"seehuhn.de/go/otlbuild/rule"
	"seehuhn.de/go/otlbuild/varmodel"
)

// value resolves a variable value.  Varying values are registered with the
// variation store, and the returned index refers to the stored deltas.
// A nil value resolves to zero.
func (c *compiler) value(pos diag.Location, vs *varmodel.VariableScalar) (funit.Int16, *device.Index, error) {
	if vs == nil {
		return 0, nil, nil
	}

	v, warnings, err := c.r.Resolve(vs, c.store)
	var e *diag.Error
	if errors.As(err, &e) && e.Pos.IsZero() {
		e.Pos = pos
	}
	if err != nil {
		return 0, nil, err
	}
	for _, w := range warnings {
		if w.Pos.IsZero() {
			w.Pos = pos
		}
	}
	c.warnings = append(c.warnings, warnings...)

	if v.Default < math.MinInt16 || v.Default > math.MaxInt16 {
		return 0, nil, diag.Errorf(diag.Overflow, pos,
			"value %d does not fit into 16 bits", v.Default)
	}
	if !v.Varying {
		return funit.Int16(v.Default), nil, nil
	}
	idx := v.Index
	return funit.Int16(v.Default), &idx, nil
}

// valueRecord resolves a value record.  Empty records resolve to nil.
func (c *compiler) valueRecord(pos diag.Location, vr *rule.ValueRecord) (*gtab.ValueRecord, error) {
	if vr.IsEmpty() {
		return nil, nil
	}

	res := &gtab.ValueRecord{}
	var err error
	res.XPlacement, res.XPlacementVar, err = c.value(pos, vr.XPlacement)
	if err != nil {
		return nil, err
	}
	res.YPlacement, res.YPlacementVar, err = c.value(pos, vr.YPlacement)
	if err != nil {
		return nil, err
	}
	res.XAdvance, res.XAdvanceVar, err = c.value(pos, vr.XAdvance)
	if err != nil {
		return nil, err
	}
	res.YAdvance, res.YAdvanceVar, err = c.value(pos, vr.YAdvance)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// anchor resolves an anchor.  Missing coordinates are zero.
func (c *compiler) anchor(pos diag.Location, a *rule.Anchor) (*anchor.Table, error) {
	res := &anchor.Table{}
	var err error
	res.X, res.XVar, err = c.value(pos, a.X)
	if err != nil {
		return nil, err
	}
	res.Y, res.YVar, err = c.value(pos, a.Y)
	if err != nil {
		return nil, err
	}
	return res, nil
}
