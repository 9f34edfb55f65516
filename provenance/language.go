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

package provenance

import (
	"strings"

	"golang.org/x/text/language"
)

// https://docs.microsoft.com/en-us/typography/opentype/spec/scripttags
var otfScript = map[string]string{
	"arab": "Arab",
	"armn": "Armn",
	"beng": "Beng",
	"cyrl": "Cyrl",
	"deva": "Deva",
	"geor": "Geor",
	"grek": "Grek",
	"gujr": "Gujr",
	"hang": "Hang",
	"hani": "Hani",
	"hebr": "Hebr",
	"kana": "Kana",
	"khmr": "Khmr",
	"latn": "Latn",
	"taml": "Taml",
	"thai": "Thai",
}

// https://docs.microsoft.com/en-us/typography/opentype/spec/languagetags
var otfLanguage = map[string]string{
	"ARA ": "ar",
	"AZE ": "az",
	"BEN ": "bn",
	"BGR ": "bg",
	"CAT ": "ca",
	"CSY ": "cs",
	"DAN ": "da",
	"DEU ": "de",
	"ELL ": "el",
	"ENG ": "en",
	"ESP ": "es",
	"EUQ ": "eu",
	"FIN ": "fi",
	"FRA ": "fr",
	"HIN ": "hi",
	"HUN ": "hu",
	"IPPH": "und-fonipa",
	"ITA ": "it",
	"JAN ": "ja",
	"KOR ": "ko",
	"MOL ": "ro-MD",
	"NLD ": "nl",
	"NOR ": "nb",
	"PLK ": "pl",
	"PTG ": "pt",
	"ROM ": "ro",
	"RUS ": "ru",
	"SKY ": "sk",
	"SLV ": "sl",
	"SRB ": "sr",
	"SVE ": "sv",
	"TRK ": "tr",
	"ZHS ": "zh-Hans",
	"ZHT ": "zh-Hant",
}

// BCP47 returns the BCP 47 language tag corresponding to the script and
// language of the entry.  Tags without a known BCP 47 equivalent map to
// language.Und.
func (e Entry) BCP47() language.Tag {
	tag := language.Und
	lang := e.Language
	if len(lang) < 4 {
		lang += strings.Repeat(" ", 4-len(lang))
	}
	if s, ok := otfLanguage[lang]; ok {
		tag = language.MustParse(s)
	} else if lang != "dflt" {
		// many language tags are upper case ISO 639-3 codes
		if base, err := language.ParseBase(strings.ToLower(strings.TrimSpace(lang))); err == nil {
			tag, _ = language.Compose(base)
		}
	}

	s, ok := otfScript[e.Script]
	if !ok {
		return tag
	}
	if _, conf := tag.Script(); conf == language.Exact {
		return tag
	}
	script, err := language.ParseScript(s)
	if err != nil {
		return tag
	}
	res, err := language.Compose(tag, script)
	if err != nil {
		return tag
	}
	return res
}
