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

	"seehuhn.de/go/otlbuild/internal/parser"
	"seehuhn.de/go/otlbuild/opentype/anchor"
	"seehuhn.de/go/otlbuild/opentype/coverage"
	"seehuhn.de/go/otlbuild/opentype/markarray"
	"seehuhn.de/go/sfnt/glyph"
)

// Gpos1_1 is a Single Adjustment Positioning Subtable (format 1).
// All covered glyphs get the same adjustment.
// https://docs.microsoft.com/en-us/typography/opentype/spec/gpos#single-adjustment-positioning-format-1-single-positioning-value
type Gpos1_1 struct {
	Cov    coverage.Table
	Adjust *ValueRecord
}

func (l *Gpos1_1) devices() *deviceTables {
	f := l.Adjust.getFormat()
	dt := newDeviceTables(6 + valueRecordLen(f) + l.Cov.EncodeLen())
	for _, idx := range l.Adjust.devices() {
		dt.add(idx)
	}
	return dt
}

// EncodeLen implements the [Subtable] interface.
func (l *Gpos1_1) EncodeLen() int {
	dt := l.devices()
	return dt.start + dt.encodeLen()
}

// Encode implements the [Subtable] interface.
func (l *Gpos1_1) Encode() []byte {
	f := l.Adjust.getFormat()
	dt := l.devices()
	covOffs := 6 + valueRecordLen(f)

	buf := make([]byte, 0, dt.start+dt.encodeLen())
	buf = append(buf,
		0, 1, // posFormat
		byte(covOffs>>8), byte(covOffs),
		byte(f>>8), byte(f))
	buf = l.Adjust.append(buf, f, dt)
	buf = l.Cov.Append(buf)
	return dt.append(buf)
}

// Entries implements the [Splitter] interface.
func (l *Gpos1_1) Entries() int {
	return len(l.Cov)
}

// Slice implements the [Splitter] interface.
func (l *Gpos1_1) Slice(i, j int) Subtable {
	return &Gpos1_1{Cov: l.Cov[i:j], Adjust: l.Adjust}
}

func (l *Gpos1_1) String() string {
	return fmt.Sprintf("Gpos1_1(%d glyphs, %s)", len(l.Cov), l.Adjust)
}

// Gpos1_2 is a Single Adjustment Positioning Subtable (format 2).
// https://docs.microsoft.com/en-us/typography/opentype/spec/gpos#single-adjustment-positioning-format-2-array-of-positioning-values
type Gpos1_2 struct {
	Cov    coverage.Table
	Adjust []*ValueRecord // indexed by coverage index
}

func (l *Gpos1_2) format() uint16 {
	var f uint16
	for _, vr := range l.Adjust {
		f |= vr.getFormat()
	}
	return f
}

func (l *Gpos1_2) devices(f uint16) *deviceTables {
	dt := newDeviceTables(8 + len(l.Adjust)*valueRecordLen(f) + l.Cov.EncodeLen())
	for _, vr := range l.Adjust {
		for _, idx := range vr.devices() {
			dt.add(idx)
		}
	}
	return dt
}

// EncodeLen implements the [Subtable] interface.
func (l *Gpos1_2) EncodeLen() int {
	dt := l.devices(l.format())
	return dt.start + dt.encodeLen()
}

// Encode implements the [Subtable] interface.
func (l *Gpos1_2) Encode() []byte {
	f := l.format()
	dt := l.devices(f)
	n := len(l.Adjust)
	covOffs := 8 + n*valueRecordLen(f)

	buf := make([]byte, 0, dt.start+dt.encodeLen())
	buf = append(buf,
		0, 2, // posFormat
		byte(covOffs>>8), byte(covOffs),
		byte(f>>8), byte(f),
		byte(n>>8), byte(n))
	for _, vr := range l.Adjust {
		buf = vr.append(buf, f, dt)
	}
	buf = l.Cov.Append(buf)
	return dt.append(buf)
}

// Entries implements the [Splitter] interface.
func (l *Gpos1_2) Entries() int {
	return len(l.Cov)
}

// Slice implements the [Splitter] interface.
func (l *Gpos1_2) Slice(i, j int) Subtable {
	return &Gpos1_2{Cov: l.Cov[i:j], Adjust: l.Adjust[i:j]}
}

func (l *Gpos1_2) String() string {
	return fmt.Sprintf("Gpos1_2(%d glyphs)", len(l.Cov))
}

// Gpos2_1 is a Pair Adjustment Positioning Subtable (format 1).
// https://docs.microsoft.com/en-us/typography/opentype/spec/gpos#pair-adjustment-positioning-format-1-adjustments-for-glyph-pairs
type Gpos2_1 struct {
	Cov      coverage.Table      // first glyphs
	PairSets [][]PairValueRecord // indexed by coverage index
}

// PairValueRecord gives the adjustments for one glyph pair in a [Gpos2_1]
// subtable.  Within a pair set, the records are sorted by SecondGlyph.
type PairValueRecord struct {
	SecondGlyph glyph.ID
	First       *ValueRecord
	Second      *ValueRecord
}

func (l *Gpos2_1) formats() (uint16, uint16) {
	var f1, f2 uint16
	for _, set := range l.PairSets {
		for _, rec := range set {
			f1 |= rec.First.getFormat()
			f2 |= rec.Second.getFormat()
		}
	}
	return f1, f2
}

type gpos2Layout struct {
	format1, format2 uint16
	setOffs          []int
	covOffs          int
	devices          *deviceTables
}

func (l *Gpos2_1) layout() *gpos2Layout {
	f1, f2 := l.formats()
	recLen := 2 + valueRecordLen(f1) + valueRecordLen(f2)

	res := &gpos2Layout{format1: f1, format2: f2, setOffs: make([]int, len(l.PairSets))}
	pos := 10 + 2*len(l.PairSets)
	for i, set := range l.PairSets {
		res.setOffs[i] = pos
		pos += 2 + recLen*len(set)
	}
	res.covOffs = pos
	res.devices = newDeviceTables(pos + l.Cov.EncodeLen())
	for _, set := range l.PairSets {
		for _, rec := range set {
			for _, idx := range rec.First.devices() {
				res.devices.add(idx)
			}
			for _, idx := range rec.Second.devices() {
				res.devices.add(idx)
			}
		}
	}
	return res
}

// EncodeLen implements the [Subtable] interface.
func (l *Gpos2_1) EncodeLen() int {
	layout := l.layout()
	return layout.devices.start + layout.devices.encodeLen()
}

// Encode implements the [Subtable] interface.
func (l *Gpos2_1) Encode() []byte {
	layout := l.layout()
	n := len(l.PairSets)
	f1, f2 := layout.format1, layout.format2

	buf := make([]byte, 0, layout.devices.start+layout.devices.encodeLen())
	buf = append(buf,
		0, 1, // posFormat
		byte(layout.covOffs>>8), byte(layout.covOffs),
		byte(f1>>8), byte(f1),
		byte(f2>>8), byte(f2),
		byte(n>>8), byte(n))
	for _, o := range layout.setOffs {
		buf = append(buf, byte(o>>8), byte(o))
	}
	for _, set := range l.PairSets {
		buf = append(buf, byte(len(set)>>8), byte(len(set)))
		for _, rec := range set {
			buf = append(buf, byte(rec.SecondGlyph>>8), byte(rec.SecondGlyph))
			buf = rec.First.append(buf, f1, layout.devices)
			buf = rec.Second.append(buf, f2, layout.devices)
		}
	}
	buf = l.Cov.Append(buf)
	return layout.devices.append(buf)
}

// Entries implements the [Splitter] interface.
func (l *Gpos2_1) Entries() int {
	return len(l.Cov)
}

// Slice implements the [Splitter] interface.
func (l *Gpos2_1) Slice(i, j int) Subtable {
	return &Gpos2_1{Cov: l.Cov[i:j], PairSets: l.PairSets[i:j]}
}

func (l *Gpos2_1) String() string {
	return fmt.Sprintf("Gpos2_1(%d pairs sets)", len(l.PairSets))
}

// Gpos4_1 is a Mark-to-Base Attachment Positioning Subtable (format 1).
// https://docs.microsoft.com/en-us/typography/opentype/spec/gpos#mark-to-base-attachment-positioning-format-1-mark-to-base-attachment-point
type Gpos4_1 struct {
	MarkCov   coverage.Table
	BaseCov   coverage.Table
	MarkArray markarray.Table   // indexed by mark coverage index
	BaseArray [][]*anchor.Table // indexed by base coverage index, then by mark class
}

func (l *Gpos4_1) numClasses() int {
	n := 0
	for _, rec := range l.MarkArray {
		n = max(n, int(rec.Class)+1)
	}
	return n
}

// baseArrayLayout returns the anchor offsets, relative to the start of the
// base array, and the total length of the base array.
func (l *Gpos4_1) baseArrayLayout(numClasses int) ([][]int, int) {
	offs := make([][]int, len(l.BaseArray))
	pos := 2 + 2*numClasses*len(l.BaseArray)
	seen := make(map[string]int)
	for i, row := range l.BaseArray {
		offs[i] = make([]int, numClasses)
		for c := 0; c < numClasses; c++ {
			if c >= len(row) || row[c] == nil {
				continue
			}
			key := string(row[c].Append(nil))
			if o, ok := seen[key]; ok {
				offs[i][c] = o
				continue
			}
			seen[key] = pos
			offs[i][c] = pos
			pos += row[c].EncodeLen()
		}
	}
	return offs, pos
}

// EncodeLen implements the [Subtable] interface.
func (l *Gpos4_1) EncodeLen() int {
	_, baseArrayLen := l.baseArrayLayout(l.numClasses())
	return 12 + l.MarkCov.EncodeLen() + l.BaseCov.EncodeLen() +
		l.MarkArray.EncodeLen() + baseArrayLen
}

// Encode implements the [Subtable] interface.
func (l *Gpos4_1) Encode() []byte {
	numClasses := l.numClasses()
	baseOffs, baseArrayLen := l.baseArrayLayout(numClasses)

	markCovOffs := 12
	baseCovOffs := markCovOffs + l.MarkCov.EncodeLen()
	markArrayOffs := baseCovOffs + l.BaseCov.EncodeLen()
	baseArrayOffs := markArrayOffs + l.MarkArray.EncodeLen()

	buf := make([]byte, 0, baseArrayOffs+baseArrayLen)
	buf = append(buf,
		0, 1, // posFormat
		byte(markCovOffs>>8), byte(markCovOffs),
		byte(baseCovOffs>>8), byte(baseCovOffs),
		byte(numClasses>>8), byte(numClasses),
		byte(markArrayOffs>>8), byte(markArrayOffs),
		byte(baseArrayOffs>>8), byte(baseArrayOffs))
	buf = l.MarkCov.Append(buf)
	buf = l.BaseCov.Append(buf)
	buf = l.MarkArray.Append(buf)

	buf = append(buf, byte(len(l.BaseArray)>>8), byte(len(l.BaseArray)))
	for _, row := range baseOffs {
		for _, o := range row {
			buf = append(buf, byte(o>>8), byte(o))
		}
	}
	written := 2 + 2*numClasses*len(l.BaseArray)
	for i, row := range l.BaseArray {
		for c, a := range row {
			if c >= numClasses || a == nil || baseOffs[i][c] < written {
				continue
			}
			buf = a.Append(buf)
			written += a.EncodeLen()
		}
	}
	return buf
}

// Entries implements the [Splitter] interface.  The subtable is split
// along the base glyphs, every part keeps all marks.
func (l *Gpos4_1) Entries() int {
	return len(l.BaseCov)
}

// Slice implements the [Splitter] interface.
func (l *Gpos4_1) Slice(i, j int) Subtable {
	return &Gpos4_1{
		MarkCov:   l.MarkCov,
		BaseCov:   l.BaseCov[i:j],
		MarkArray: l.MarkArray,
		BaseArray: l.BaseArray[i:j],
	}
}

func (l *Gpos4_1) String() string {
	return fmt.Sprintf("Gpos4_1(%d marks, %d bases)", len(l.MarkCov), len(l.BaseCov))
}

func decodeGpos(p *parser.Parser, pos int, lookupType uint16) (Subtable, error) {
	err := p.SeekPos(pos)
	if err != nil {
		return nil, err
	}
	format, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}

	switch 10*lookupType + format {
	case 1_1:
		buf, err := p.ReadBytes(4)
		if err != nil {
			return nil, err
		}
		covOffs := int(buf[0])<<8 | int(buf[1])
		f := uint16(buf[2])<<8 | uint16(buf[3])
		adjust, err := decodeValueRecord(p, f, pos)
		if err != nil {
			return nil, err
		}
		cov, err := coverage.Decode(p, pos+covOffs)
		if err != nil {
			return nil, err
		}
		return &Gpos1_1{Cov: cov, Adjust: adjust}, nil

	case 1_2:
		buf, err := p.ReadBytes(6)
		if err != nil {
			return nil, err
		}
		covOffs := int(buf[0])<<8 | int(buf[1])
		f := uint16(buf[2])<<8 | uint16(buf[3])
		count := int(buf[4])<<8 | int(buf[5])
		adjust := make([]*ValueRecord, count)
		for i := range adjust {
			adjust[i], err = decodeValueRecord(p, f, pos)
			if err != nil {
				return nil, err
			}
		}
		cov, err := coverage.Decode(p, pos+covOffs)
		if err != nil {
			return nil, err
		}
		if len(cov) != count {
			return nil, p.Error("malformed format 1.2 GPOS subtable")
		}
		return &Gpos1_2{Cov: cov, Adjust: adjust}, nil

	case 2_1:
		buf, err := p.ReadBytes(6)
		if err != nil {
			return nil, err
		}
		covOffs := int(buf[0])<<8 | int(buf[1])
		f1 := uint16(buf[2])<<8 | uint16(buf[3])
		f2 := uint16(buf[4])<<8 | uint16(buf[5])
		setOffs, err := p.ReadUint16Slice()
		if err != nil {
			return nil, err
		}
		cov, err := coverage.Decode(p, pos+covOffs)
		if err != nil {
			return nil, err
		}
		if len(cov) != len(setOffs) {
			return nil, p.Error("malformed format 2.1 GPOS subtable")
		}
		res := &Gpos2_1{Cov: cov, PairSets: make([][]PairValueRecord, len(setOffs))}
		for i, o := range setOffs {
			err = p.SeekPos(pos + int(o))
			if err != nil {
				return nil, err
			}
			count, err := p.ReadUint16()
			if err != nil {
				return nil, err
			}
			for k := 0; k < int(count); k++ {
				second, err := p.ReadUint16()
				if err != nil {
					return nil, err
				}
				v1, err := decodeValueRecord(p, f1, pos)
				if err != nil {
					return nil, err
				}
				v2, err := decodeValueRecord(p, f2, pos)
				if err != nil {
					return nil, err
				}
				res.PairSets[i] = append(res.PairSets[i], PairValueRecord{
					SecondGlyph: glyph.ID(second),
					First:       v1,
					Second:      v2,
				})
			}
		}
		return res, nil

	case 4_1:
		buf, err := p.ReadBytes(10)
		if err != nil {
			return nil, err
		}
		markCovOffs := int(buf[0])<<8 | int(buf[1])
		baseCovOffs := int(buf[2])<<8 | int(buf[3])
		numClasses := int(buf[4])<<8 | int(buf[5])
		markArrayOffs := int(buf[6])<<8 | int(buf[7])
		baseArrayOffs := int(buf[8])<<8 | int(buf[9])

		res := &Gpos4_1{}
		res.MarkCov, err = coverage.Decode(p, pos+markCovOffs)
		if err != nil {
			return nil, err
		}
		res.BaseCov, err = coverage.Decode(p, pos+baseCovOffs)
		if err != nil {
			return nil, err
		}
		res.MarkArray, err = markarray.Decode(p, pos+markArrayOffs)
		if err != nil {
			return nil, err
		}
		if len(res.MarkArray) != len(res.MarkCov) {
			return nil, p.Error("malformed format 4.1 GPOS subtable")
		}

		baseArrayPos := pos + baseArrayOffs
		err = p.SeekPos(baseArrayPos)
		if err != nil {
			return nil, err
		}
		baseCount, err := p.ReadUint16()
		if err != nil {
			return nil, err
		}
		if int(baseCount) != len(res.BaseCov) {
			return nil, p.Error("malformed format 4.1 GPOS subtable")
		}
		offs := make([]uint16, int(baseCount)*numClasses)
		for i := range offs {
			offs[i], err = p.ReadUint16()
			if err != nil {
				return nil, err
			}
		}
		res.BaseArray = make([][]*anchor.Table, baseCount)
		for i := range res.BaseArray {
			row := make([]*anchor.Table, numClasses)
			for c := range row {
				o := offs[i*numClasses+c]
				if o == 0 {
					continue
				}
				a, err := anchor.Decode(p, baseArrayPos+int(o))
				if err != nil {
					return nil, err
				}
				row[c] = &a
			}
			res.BaseArray[i] = row
		}
		return res, nil

	case 8_3:
		return decodeChainedSeq3(p, pos)

	default:
		return nil, p.Error("unsupported GPOS subtable %d.%d", lookupType, format)
	}
}
