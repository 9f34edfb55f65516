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
	"seehuhn.de/go/otlbuild/opentype/coverage"
	"seehuhn.de/go/sfnt/glyph"
)

// Gsub1_1 is a Single Substitution subtable (format 1).
// https://docs.microsoft.com/en-us/typography/opentype/spec/gsub#11-single-substitution-format-1
type Gsub1_1 struct {
	Cov   coverage.Table
	Delta glyph.ID
}

// EncodeLen implements the [Subtable] interface.
func (l *Gsub1_1) EncodeLen() int {
	return 6 + l.Cov.EncodeLen()
}

// Encode implements the [Subtable] interface.
func (l *Gsub1_1) Encode() []byte {
	buf := make([]byte, 0, l.EncodeLen())
	buf = append(buf,
		0, 1, // substFormat
		0, 6, // coverageOffset
		byte(l.Delta>>8), byte(l.Delta))
	return l.Cov.Append(buf)
}

// Entries implements the [Splitter] interface.
func (l *Gsub1_1) Entries() int {
	return len(l.Cov)
}

// Slice implements the [Splitter] interface.
func (l *Gsub1_1) Slice(i, j int) Subtable {
	return &Gsub1_1{Cov: l.Cov[i:j], Delta: l.Delta}
}

func (l *Gsub1_1) String() string {
	return fmt.Sprintf("Gsub1_1%v%+d", []glyph.ID(l.Cov), int16(l.Delta))
}

// Gsub1_2 is a Single Substitution subtable (format 2).
// https://docs.microsoft.com/en-us/typography/opentype/spec/gsub#12-single-substitution-format-2
type Gsub1_2 struct {
	Cov                coverage.Table
	SubstituteGlyphIDs []glyph.ID // indexed by coverage index
}

// EncodeLen implements the [Subtable] interface.
func (l *Gsub1_2) EncodeLen() int {
	return 6 + 2*len(l.SubstituteGlyphIDs) + l.Cov.EncodeLen()
}

// Encode implements the [Subtable] interface.
func (l *Gsub1_2) Encode() []byte {
	n := len(l.SubstituteGlyphIDs)
	covOffs := 6 + 2*n

	buf := make([]byte, 0, l.EncodeLen())
	buf = append(buf,
		0, 2, // substFormat
		byte(covOffs>>8), byte(covOffs),
		byte(n>>8), byte(n))
	for _, gid := range l.SubstituteGlyphIDs {
		buf = append(buf, byte(gid>>8), byte(gid))
	}
	return l.Cov.Append(buf)
}

// Entries implements the [Splitter] interface.
func (l *Gsub1_2) Entries() int {
	return len(l.Cov)
}

// Slice implements the [Splitter] interface.
func (l *Gsub1_2) Slice(i, j int) Subtable {
	return &Gsub1_2{Cov: l.Cov[i:j], SubstituteGlyphIDs: l.SubstituteGlyphIDs[i:j]}
}

func (l *Gsub1_2) String() string {
	return fmt.Sprintf("Gsub1_2%v->%v", []glyph.ID(l.Cov), l.SubstituteGlyphIDs)
}

// Gsub2_1 is a Multiple Substitution subtable (format 1).
// https://docs.microsoft.com/en-us/typography/opentype/spec/gsub#21-multiple-substitution-format-1
type Gsub2_1 struct {
	Cov  coverage.Table
	Repl [][]glyph.ID // indexed by coverage index
}

// layout returns the offsets of the sequence tables and the coverage
// table.  Identical sequences are shared.
func (l *Gsub2_1) layout() ([]int, int) {
	offs := make([]int, len(l.Repl))
	pos := 6 + 2*len(l.Repl)
	seen := make(map[string]int)
	for i, seq := range l.Repl {
		key := fmt.Sprint(seq)
		if o, ok := seen[key]; ok {
			offs[i] = o
			continue
		}
		seen[key] = pos
		offs[i] = pos
		pos += 2 + 2*len(seq)
	}
	return offs, pos
}

// EncodeLen implements the [Subtable] interface.
func (l *Gsub2_1) EncodeLen() int {
	_, covOffs := l.layout()
	return covOffs + l.Cov.EncodeLen()
}

// Encode implements the [Subtable] interface.
func (l *Gsub2_1) Encode() []byte {
	offs, covOffs := l.layout()
	n := len(l.Repl)

	buf := make([]byte, 0, covOffs+l.Cov.EncodeLen())
	buf = append(buf,
		0, 1, // substFormat
		byte(covOffs>>8), byte(covOffs),
		byte(n>>8), byte(n))
	for _, o := range offs {
		buf = append(buf, byte(o>>8), byte(o))
	}
	for i, seq := range l.Repl {
		if offs[i] < len(buf) {
			continue
		}
		buf = append(buf, byte(len(seq)>>8), byte(len(seq)))
		for _, gid := range seq {
			buf = append(buf, byte(gid>>8), byte(gid))
		}
	}
	return l.Cov.Append(buf)
}

// Entries implements the [Splitter] interface.
func (l *Gsub2_1) Entries() int {
	return len(l.Cov)
}

// Slice implements the [Splitter] interface.
func (l *Gsub2_1) Slice(i, j int) Subtable {
	return &Gsub2_1{Cov: l.Cov[i:j], Repl: l.Repl[i:j]}
}

func (l *Gsub2_1) String() string {
	return fmt.Sprintf("Gsub2_1%v->%v", []glyph.ID(l.Cov), l.Repl)
}

// Gsub4_1 is a Ligature Substitution subtable (format 1).
// https://docs.microsoft.com/en-us/typography/opentype/spec/gsub#41-ligature-substitution-format-1
type Gsub4_1 struct {
	Cov  coverage.Table // first glyphs of the ligatures
	Repl [][]Ligature   // indexed by coverage index
}

// Ligature represents a substitution of a sequence of glyphs into one
// glyph in a [Gsub4_1] subtable.
type Ligature struct {
	// In is the sequence of input glyphs that is replaced by Out, excluding
	// the first glyph in the sequence (since this is in Cov).
	In []glyph.ID

	// Out is the glyph that replaces the input sequence.
	Out glyph.ID
}

func ligatureSetLen(set []Ligature) int {
	total := 2 + 2*len(set)
	for _, lig := range set {
		total += 4 + 2*len(lig.In)
	}
	return total
}

// EncodeLen implements the [Subtable] interface.
func (l *Gsub4_1) EncodeLen() int {
	total := 6 + 2*len(l.Repl)
	for _, set := range l.Repl {
		total += ligatureSetLen(set)
	}
	return total + l.Cov.EncodeLen()
}

// Encode implements the [Subtable] interface.
func (l *Gsub4_1) Encode() []byte {
	n := len(l.Repl)
	pos := 6 + 2*n
	setOffs := make([]int, n)
	for i, set := range l.Repl {
		setOffs[i] = pos
		pos += ligatureSetLen(set)
	}
	covOffs := pos

	buf := make([]byte, 0, l.EncodeLen())
	buf = append(buf,
		0, 1, // substFormat
		byte(covOffs>>8), byte(covOffs),
		byte(n>>8), byte(n))
	for _, o := range setOffs {
		buf = append(buf, byte(o>>8), byte(o))
	}
	for _, set := range l.Repl {
		buf = append(buf, byte(len(set)>>8), byte(len(set)))
		ligPos := 2 + 2*len(set)
		for _, lig := range set {
			buf = append(buf, byte(ligPos>>8), byte(ligPos))
			ligPos += 4 + 2*len(lig.In)
		}
		for _, lig := range set {
			compCount := len(lig.In) + 1
			buf = append(buf,
				byte(lig.Out>>8), byte(lig.Out),
				byte(compCount>>8), byte(compCount))
			for _, gid := range lig.In {
				buf = append(buf, byte(gid>>8), byte(gid))
			}
		}
	}
	return l.Cov.Append(buf)
}

// Entries implements the [Splitter] interface.
func (l *Gsub4_1) Entries() int {
	return len(l.Cov)
}

// Slice implements the [Splitter] interface.
func (l *Gsub4_1) Slice(i, j int) Subtable {
	return &Gsub4_1{Cov: l.Cov[i:j], Repl: l.Repl[i:j]}
}

func (l *Gsub4_1) String() string {
	return fmt.Sprintf("Gsub4_1%v->%v", []glyph.ID(l.Cov), l.Repl)
}

func decodeGsub(p *parser.Parser, pos int, lookupType uint16) (Subtable, error) {
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
		delta := glyph.ID(buf[2])<<8 | glyph.ID(buf[3])
		cov, err := coverage.Decode(p, pos+covOffs)
		if err != nil {
			return nil, err
		}
		return &Gsub1_1{Cov: cov, Delta: delta}, nil

	case 1_2:
		covOffs, err := p.ReadUint16()
		if err != nil {
			return nil, err
		}
		repl, err := p.ReadGIDSlice()
		if err != nil {
			return nil, err
		}
		cov, err := coverage.Decode(p, pos+int(covOffs))
		if err != nil {
			return nil, err
		}
		if len(cov) != len(repl) {
			return nil, p.Error("malformed format 1.2 GSUB subtable")
		}
		return &Gsub1_2{Cov: cov, SubstituteGlyphIDs: repl}, nil

	case 2_1:
		covOffs, err := p.ReadUint16()
		if err != nil {
			return nil, err
		}
		seqOffs, err := p.ReadUint16Slice()
		if err != nil {
			return nil, err
		}
		cov, err := coverage.Decode(p, pos+int(covOffs))
		if err != nil {
			return nil, err
		}
		if len(cov) != len(seqOffs) {
			return nil, p.Error("malformed format 2.1 GSUB subtable")
		}
		res := &Gsub2_1{Cov: cov, Repl: make([][]glyph.ID, len(seqOffs))}
		for i, o := range seqOffs {
			err = p.SeekPos(pos + int(o))
			if err != nil {
				return nil, err
			}
			res.Repl[i], err = p.ReadGIDSlice()
			if err != nil {
				return nil, err
			}
		}
		return res, nil

	case 4_1:
		covOffs, err := p.ReadUint16()
		if err != nil {
			return nil, err
		}
		setOffs, err := p.ReadUint16Slice()
		if err != nil {
			return nil, err
		}
		cov, err := coverage.Decode(p, pos+int(covOffs))
		if err != nil {
			return nil, err
		}
		if len(cov) != len(setOffs) {
			return nil, p.Error("malformed format 4.1 GSUB subtable")
		}
		res := &Gsub4_1{Cov: cov, Repl: make([][]Ligature, len(setOffs))}
		for i, o := range setOffs {
			setPos := pos + int(o)
			err = p.SeekPos(setPos)
			if err != nil {
				return nil, err
			}
			ligOffs, err := p.ReadUint16Slice()
			if err != nil {
				return nil, err
			}
			for _, lo := range ligOffs {
				err = p.SeekPos(setPos + int(lo))
				if err != nil {
					return nil, err
				}
				out, err := p.ReadUint16()
				if err != nil {
					return nil, err
				}
				compCount, err := p.ReadUint16()
				if err != nil {
					return nil, err
				}
				if compCount == 0 {
					return nil, p.Error("ligature without components")
				}
				lig := Ligature{Out: glyph.ID(out)}
				for k := 1; k < int(compCount); k++ {
					gid, err := p.ReadUint16()
					if err != nil {
						return nil, err
					}
					lig.In = append(lig.In, glyph.ID(gid))
				}
				res.Repl[i] = append(res.Repl[i], lig)
			}
		}
		return res, nil

	case 6_3:
		return decodeChainedSeq3(p, pos)

	default:
		return nil, p.Error("unsupported GSUB subtable %d.%d", lookupType, format)
	}
}

// UniformDelta checks whether all glyphs are mapped by the same glyph ID
// difference.  If so, the difference is returned.
func UniformDelta(from, to []glyph.ID) (glyph.ID, bool) {
	if len(from) == 0 || len(from) != len(to) {
		return 0, false
	}
	delta := to[0] - from[0]
	for i, gid := range from {
		if to[i]-gid != delta {
			return 0, false
		}
	}
	return delta, true
}
