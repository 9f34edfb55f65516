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

package gtab

import (
	"fmt"
	"math/bits"
	"strings"

	"seehuhn.de/go/postscript/funit"

	"seehuhn.de/go/otlbuild/internal/parser"
	"seehuhn.de/go/otlbuild/opentype/device"
)

// ValueRecord describes an adjustment to the position of a glyph or set of
// glyphs.  The Var fields, if set, refer to the rows of the
// ItemVariationStore which give the variation of the corresponding value.
// https://docs.microsoft.com/en-us/typography/opentype/spec/gpos#value-record
type ValueRecord struct {
	XPlacement funit.Int16
	YPlacement funit.Int16
	XAdvance   funit.Int16
	YAdvance   funit.Int16

	XPlacementVar *device.Index
	YPlacementVar *device.Index
	XAdvanceVar   *device.Index
	YAdvanceVar   *device.Index
}

// Value format bits.
const (
	valueXPlacement       uint16 = 0x0001
	valueYPlacement       uint16 = 0x0002
	valueXAdvance         uint16 = 0x0004
	valueYAdvance         uint16 = 0x0008
	valueXPlacementDevice uint16 = 0x0010
	valueYPlacementDevice uint16 = 0x0020
	valueXAdvanceDevice   uint16 = 0x0040
	valueYAdvanceDevice   uint16 = 0x0080
)

// getFormat returns the smallest value format which can represent vr.
func (vr *ValueRecord) getFormat() uint16 {
	if vr == nil {
		return 0
	}

	var format uint16
	if vr.XPlacement != 0 {
		format |= valueXPlacement
	}
	if vr.YPlacement != 0 {
		format |= valueYPlacement
	}
	if vr.XAdvance != 0 {
		format |= valueXAdvance
	}
	if vr.YAdvance != 0 {
		format |= valueYAdvance
	}
	if vr.XPlacementVar != nil {
		format |= valueXPlacement | valueXPlacementDevice
	}
	if vr.YPlacementVar != nil {
		format |= valueYPlacement | valueYPlacementDevice
	}
	if vr.XAdvanceVar != nil {
		format |= valueXAdvance | valueXAdvanceDevice
	}
	if vr.YAdvanceVar != nil {
		format |= valueYAdvance | valueYAdvanceDevice
	}
	return format
}

func valueRecordLen(format uint16) int {
	return 2 * bits.OnesCount16(format)
}

// devices returns the variation indices used by vr, in the order in which
// the device offsets appear in the encoded record.
func (vr *ValueRecord) devices() []*device.Index {
	if vr == nil {
		return nil
	}
	return []*device.Index{vr.XPlacementVar, vr.YPlacementVar, vr.XAdvanceVar, vr.YAdvanceVar}
}

// deviceTables keeps track of the VariationIndex tables of a subtable.
// The tables are stored after the main part of the subtable, identical
// tables are shared.
type deviceTables struct {
	start int
	offs  map[device.Index]int
	order []device.Index
}

func newDeviceTables(start int) *deviceTables {
	return &deviceTables{start: start, offs: make(map[device.Index]int)}
}

func (dt *deviceTables) add(idx *device.Index) int {
	if idx == nil {
		return 0
	}
	if o, ok := dt.offs[*idx]; ok {
		return o
	}
	o := dt.start + device.EncodeLen*len(dt.order)
	dt.offs[*idx] = o
	dt.order = append(dt.order, *idx)
	return o
}

func (dt *deviceTables) encodeLen() int {
	return device.EncodeLen * len(dt.order)
}

func (dt *deviceTables) append(buf []byte) []byte {
	for _, idx := range dt.order {
		buf = device.Append(buf, idx)
	}
	return buf
}

// append appends the value record in the given format to buf.  Device
// offsets are allocated from dt.
func (vr *ValueRecord) append(buf []byte, format uint16, dt *deviceTables) []byte {
	if vr == nil {
		vr = &ValueRecord{}
	}
	for _, f := range []struct {
		bit uint16
		val funit.Int16
	}{
		{valueXPlacement, vr.XPlacement},
		{valueYPlacement, vr.YPlacement},
		{valueXAdvance, vr.XAdvance},
		{valueYAdvance, vr.YAdvance},
	} {
		if format&f.bit != 0 {
			buf = append(buf, byte(f.val>>8), byte(f.val))
		}
	}
	for i, idx := range vr.devices() {
		if format&(valueXPlacementDevice<<i) == 0 {
			continue
		}
		o := dt.add(idx)
		buf = append(buf, byte(o>>8), byte(o))
	}
	return buf
}

func decodeValueRecord(p *parser.Parser, format uint16, subtablePos int) (*ValueRecord, error) {
	if format == 0 {
		return nil, nil
	}
	res := &ValueRecord{}
	for _, f := range []struct {
		bit uint16
		val *funit.Int16
	}{
		{valueXPlacement, &res.XPlacement},
		{valueYPlacement, &res.YPlacement},
		{valueXAdvance, &res.XAdvance},
		{valueYAdvance, &res.YAdvance},
	} {
		if format&f.bit == 0 {
			continue
		}
		x, err := p.ReadInt16()
		if err != nil {
			return nil, err
		}
		*f.val = funit.Int16(x)
	}
	var devOffs [4]uint16
	for i := range devOffs {
		if format&(valueXPlacementDevice<<i) == 0 {
			continue
		}
		o, err := p.ReadUint16()
		if err != nil {
			return nil, err
		}
		devOffs[i] = o
	}
	targets := []**device.Index{&res.XPlacementVar, &res.YPlacementVar, &res.XAdvanceVar, &res.YAdvanceVar}
	for i, o := range devOffs {
		if o == 0 {
			continue
		}
		back := p.Pos()
		idx, err := device.Decode(p, subtablePos+int(o))
		if err != nil {
			return nil, err
		}
		*targets[i] = &idx
		err = p.SeekPos(back)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (vr *ValueRecord) String() string {
	if vr == nil {
		return "<nil>"
	}

	var adjust []string
	for _, f := range []struct {
		name string
		val  funit.Int16
		idx  *device.Index
	}{
		{"xpos", vr.XPlacement, vr.XPlacementVar},
		{"ypos", vr.YPlacement, vr.YPlacementVar},
		{"xadv", vr.XAdvance, vr.XAdvanceVar},
		{"yadv", vr.YAdvance, vr.YAdvanceVar},
	} {
		if f.val == 0 && f.idx == nil {
			continue
		}
		s := fmt.Sprintf("%s%+d", f.name, f.val)
		if f.idx != nil {
			s += "@" + f.idx.String()
		}
		adjust = append(adjust, s)
	}
	if len(adjust) == 0 {
		return "_"
	}
	return strings.Join(adjust, ",")
}
