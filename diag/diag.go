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

// Package diag defines source locations, error kinds and warnings for the
// layout builder.
//
// All fatal conditions are reported as *Error values.  Non-fatal conditions
// are collected as *Warning values and returned next to a successful result.
package diag

import (
	"errors"
	"fmt"
	"strconv"
)

// Location identifies a position in a rule source file.
type Location struct {
	File   string
	Line   int
	Column int
}

// IsZero reports whether the location is unset.
func (loc Location) IsZero() bool {
	return loc.File == "" && loc.Line == 0 && loc.Column == 0
}

func (loc Location) String() string {
	if loc.IsZero() {
		return "<unknown>"
	}
	file := loc.File
	if file == "" {
		file = "<input>"
	}
	return file + ":" + strconv.Itoa(loc.Line) + ":" + strconv.Itoa(loc.Column)
}

// Less orders locations by file name, line and column.
func (loc Location) Less(other Location) bool {
	if loc.File != other.File {
		return loc.File < other.File
	}
	if loc.Line != other.Line {
		return loc.Line < other.Line
	}
	return loc.Column < other.Column
}

// Kind classifies errors and warnings.
type Kind int

// These are the supported error and warning kinds.
const (
	MissingDefaultLocation Kind = iota + 1
	DegenerateRegion
	EmptyRule
	ConflictingRule
	Overflow
	UnknownGlyph
	UnknownAxis
	UnknownLookup
	OutOfRangeAxisSample
)

func (k Kind) String() string {
	switch k {
	case MissingDefaultLocation:
		return "MissingDefaultLocationError"
	case DegenerateRegion:
		return "DegenerateRegionError"
	case EmptyRule:
		return "EmptyRuleError"
	case ConflictingRule:
		return "ConflictingRuleError"
	case Overflow:
		return "OverflowError"
	case UnknownGlyph:
		return "UnknownGlyphError"
	case UnknownAxis:
		return "UnknownAxisError"
	case UnknownLookup:
		return "UnknownLookupError"
	case OutOfRangeAxisSample:
		return "OutOfRangeAxisSampleWarning"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Error is a fatal condition.  It aborts the whole compilation run.
type Error struct {
	Kind Kind
	Pos  Location

	// Other is the second location involved, if any.  This is used for
	// ConflictingRule errors.
	Other Location

	Msg string
}

// Errorf returns a new error of the given kind.
func Errorf(kind Kind, pos Location, format string, a ...any) *Error {
	return &Error{
		Kind: kind,
		Pos:  pos,
		Msg:  fmt.Sprintf(format, a...),
	}
}

func (err *Error) Error() string {
	msg := err.Kind.String()
	if !err.Pos.IsZero() {
		msg = err.Pos.String() + ": " + msg
	}
	if err.Msg != "" {
		msg += ": " + err.Msg
	}
	if !err.Other.IsZero() {
		msg += " (see also " + err.Other.String() + ")"
	}
	return msg
}

// IsKind reports whether err, or any error it wraps, is an *Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// Warning is a non-fatal condition.  Compilation continues.
type Warning struct {
	Kind Kind
	Pos  Location
	Msg  string
}

// Warnf returns a new warning of the given kind.
func Warnf(kind Kind, pos Location, format string, a ...any) *Warning {
	return &Warning{
		Kind: kind,
		Pos:  pos,
		Msg:  fmt.Sprintf(format, a...),
	}
}

func (w *Warning) String() string {
	msg := w.Kind.String()
	if !w.Pos.IsZero() {
		msg = w.Pos.String() + ": " + msg
	}
	if w.Msg != "" {
		msg += ": " + w.Msg
	}
	return msg
}
