// Package region describes the three nested Dutch administrative levels and their code format.
package region

import (
	"fmt"
	"strings"
)

// Unknown is the sentinel code and name of a point outside every region of a shape set.
const Unknown = "onbekend"

// Level: Buurt (neighbourhood) < Wijk (district) < Gemeente (municipality).
type Level string

const (
	Buurt    Level = "Buurt"
	Wijk     Level = "Wijk"
	Gemeente Level = "Gemeente"
)

// Levels in smallest-to-largest order.
var Levels = []Level{Buurt, Wijk, Gemeente}

// CodeLengths lists every valid code length across levels.
var CodeLengths = []int{10, 8, 6}

func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case Buurt, Wijk, Gemeente:
		return Level(s), nil
	}
	return "", fmt.Errorf("level %q is not one of Buurt, Wijk, Gemeente", s)
}

func (l Level) Valid() bool {
	_, err := ParseLevel(string(l))
	return err == nil
}

// Prefix returns the two-letter code prefix (BU/WK/GM).
func (l Level) Prefix() string {
	switch l {
	case Buurt:
		return "BU"
	case Wijk:
		return "WK"
	case Gemeente:
		return "GM"
	}
	return ""
}

// CodeLength is the total length of a code of this level, prefix included.
func (l Level) CodeLength() int {
	switch l {
	case Buurt:
		return 10
	case Wijk:
		return 8
	case Gemeente:
		return 6
	}
	return 0
}

// CodeColumn is the conventional column holding codes of this level, e.g. BU_CODE.
func (l Level) CodeColumn() string {
	if p := l.Prefix(); p != "" {
		return p + "_CODE"
	}
	return ""
}

// NameColumn is the conventional column holding names of this level, e.g. BU_NAAM.
func (l Level) NameColumn() string { return NameColumnFor(l.CodeColumn()) }

// NameColumnFor derives the name column from a code column by replacing its last five characters
// with "_NAAM" (BU_CODE -> BU_NAAM).
func NameColumnFor(codeColumn string) string {
	if len(codeColumn) < 5 {
		return codeColumn + "_NAAM"
	}
	return codeColumn[:len(codeColumn)-5] + "_NAAM"
}

// ValidCode reports whether code has the prefix and length of level and digits after the prefix.
func ValidCode(l Level, code string) bool {
	if len(code) != l.CodeLength() || !strings.HasPrefix(code, l.Prefix()) {
		return false
	}
	for _, c := range code[2:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// LevelOf infers the level of a well-formed code.
func LevelOf(code string) (Level, bool) {
	for _, l := range Levels {
		if ValidCode(l, code) {
			return l, true
		}
	}
	return "", false
}

// ValidLength reports whether n is one of the code lengths of any level.
func ValidLength(n int) bool {
	for _, c := range CodeLengths {
		if c == n {
			return true
		}
	}
	return false
}
