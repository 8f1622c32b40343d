package util

import (
	"strings"
	"unicode/utf8"
)

// Windows-1252 artifacts and typographic characters that show up in
// provider output, folded to plain ASCII so stored articles render
// consistently.
var charReplacementMap = map[string]string{
	"\u2018": "'", "\u2019": "'", "\u201c": "\"",
	"\u201d": "\"", "\u2013": "-", "\u2014": "--", "\u2026": "...",
	"\u00a0": " ", "\u0091": "'", "\u0092": "'",
	"\u0093": "\"", "\u0094": "\"", "\u0096": "-", "\u0097": "--",
}

// CleanText normalizes generated text: strips a leading BOM, repairs
// invalid UTF-8 and replaces typographic punctuation with ASCII
// equivalents.
func CleanText(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")

	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}

	for bad, good := range charReplacementMap {
		s = strings.ReplaceAll(s, bad, good)
	}
	return s
}
