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
	"sort"

	"seehuhn.de/go/otlbuild/internal/parser"
)

// DefaultLanguage is the language tag used for the default language system
// of a script.
const DefaultLanguage = "dflt"

// ScriptLang identifies a language system by its OpenType script and
// language tags.
type ScriptLang struct {
	Script string
	Lang   string
}

func (sl ScriptLang) String() string {
	return sl.Script + "/" + sl.Lang
}

// ScriptList contains the information of a ScriptList table.
// It maps language systems to their features.
type ScriptList map[ScriptLang]*Features

// Features describes the mandatory and optional features for a
// language system.
type Features struct {
	Required FeatureIndex // NoRequiredFeature, if no required feature
	Optional []FeatureIndex
}

func (ff *Features) encodeLen() int {
	return 6 + 2*len(ff.Optional)
}

func (ff *Features) append(buf []byte) []byte {
	buf = append(buf,
		0, 0, // lookupOrderOffset
		byte(ff.Required>>8), byte(ff.Required),
		byte(len(ff.Optional)>>8), byte(len(ff.Optional)))
	for _, idx := range ff.Optional {
		buf = append(buf, byte(idx>>8), byte(idx))
	}
	return buf
}

type scriptRecord struct {
	script string
	def    *Features
	langs  []string
}

func (info ScriptList) records() []*scriptRecord {
	byScript := make(map[string]*scriptRecord)
	for sl, ff := range info {
		rec := byScript[sl.Script]
		if rec == nil {
			rec = &scriptRecord{script: sl.Script}
			byScript[sl.Script] = rec
		}
		if sl.Lang == DefaultLanguage || sl.Lang == "" {
			rec.def = ff
		} else {
			rec.langs = append(rec.langs, sl.Lang)
		}
	}
	var res []*scriptRecord
	for _, rec := range byScript {
		sort.Strings(rec.langs)
		res = append(res, rec)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].script < res[j].script })
	return res
}

func (info ScriptList) scriptLen(rec *scriptRecord) int {
	total := 4 + 6*len(rec.langs)
	if rec.def != nil {
		total += rec.def.encodeLen()
	}
	for _, lang := range rec.langs {
		total += info[ScriptLang{rec.script, lang}].encodeLen()
	}
	return total
}

func (info ScriptList) encodeLen() int {
	total := 2
	for _, rec := range info.records() {
		total += 6 + info.scriptLen(rec)
	}
	return total
}

// https://docs.microsoft.com/en-us/typography/opentype/spec/chapter2#script-list-table-and-script-record
func (info ScriptList) encode() []byte {
	recs := info.records()

	buf := make([]byte, 0, info.encodeLen())
	buf = append(buf, byte(len(recs)>>8), byte(len(recs)))
	pos := 2 + 6*len(recs)
	for _, rec := range recs {
		buf = append(buf, tagBytes(rec.script)...)
		buf = append(buf, byte(pos>>8), byte(pos))
		pos += info.scriptLen(rec)
	}

	for _, rec := range recs {
		pos := 4 + 6*len(rec.langs)
		var defOffs int
		if rec.def != nil {
			defOffs = pos
			pos += rec.def.encodeLen()
		}
		buf = append(buf,
			byte(defOffs>>8), byte(defOffs),
			byte(len(rec.langs)>>8), byte(len(rec.langs)))
		for _, lang := range rec.langs {
			buf = append(buf, tagBytes(lang)...)
			buf = append(buf, byte(pos>>8), byte(pos))
			pos += info[ScriptLang{rec.script, lang}].encodeLen()
		}
		if rec.def != nil {
			buf = rec.def.append(buf)
		}
		for _, lang := range rec.langs {
			buf = info[ScriptLang{rec.script, lang}].append(buf)
		}
	}
	return buf
}

func decodeScriptList(p *parser.Parser, pos int) (ScriptList, error) {
	err := p.SeekPos(pos)
	if err != nil {
		return nil, err
	}
	scriptCount, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	scripts := make([]string, scriptCount)
	offsets := make([]uint16, scriptCount)
	for i := range scripts {
		scripts[i], err = p.ReadTag()
		if err != nil {
			return nil, err
		}
		offsets[i], err = p.ReadUint16()
		if err != nil {
			return nil, err
		}
	}

	info := ScriptList{}
	for i, offs := range offsets {
		scriptPos := pos + int(offs)
		err = p.SeekPos(scriptPos)
		if err != nil {
			return nil, err
		}
		defOffs, err := p.ReadUint16()
		if err != nil {
			return nil, err
		}
		langCount, err := p.ReadUint16()
		if err != nil {
			return nil, err
		}
		langs := make([]string, langCount)
		langOffs := make([]uint16, langCount)
		for j := range langs {
			langs[j], err = p.ReadTag()
			if err != nil {
				return nil, err
			}
			langOffs[j], err = p.ReadUint16()
			if err != nil {
				return nil, err
			}
		}
		if defOffs != 0 {
			langs = append(langs, DefaultLanguage)
			langOffs = append(langOffs, defOffs)
		}
		for j, lang := range langs {
			ff, err := decodeLangSys(p, scriptPos+int(langOffs[j]))
			if err != nil {
				return nil, err
			}
			info[ScriptLang{scripts[i], lang}] = ff
		}
	}
	return info, nil
}

// https://docs.microsoft.com/en-us/typography/opentype/spec/chapter2#language-system-table
func decodeLangSys(p *parser.Parser, pos int) (*Features, error) {
	err := p.SeekPos(pos)
	if err != nil {
		return nil, err
	}
	data, err := p.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if data[0] != 0 || data[1] != 0 {
		return nil, p.Error("unsupported lookup order table")
	}
	ff := &Features{Required: FeatureIndex(data[2])<<8 | FeatureIndex(data[3])}
	indices, err := p.ReadUint16Slice()
	if err != nil {
		return nil, err
	}
	for _, idx := range indices {
		ff.Optional = append(ff.Optional, FeatureIndex(idx))
	}
	return ff, nil
}
