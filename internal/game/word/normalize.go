package word

import (
	"strings"
	"unicode"
)

// Normalize folds a guess for comparison: lower case, ё as е, single spaces, no padding.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ё", "е")
	return strings.Join(strings.Fields(s), " ")
}

// Mask reveals the first and last letters and hides the rest, one symbol per rune,
// keeping word breaks visible.
func Mask(w string) string {
	runes := []rune(w)
	out := make([]string, len(runes))
	for i, r := range runes {
		switch {
		case i == 0 || i == len(runes)-1:
			out[i] = string(unicode.ToUpper(r))
		case unicode.IsSpace(r):
			out[i] = " "
		default:
			out[i] = "_"
		}
	}
	return strings.Join(out, " ")
}

// Edges is the short private hint: first and last letter.
func Edges(w string) string {
	runes := []rune(w)
	if len(runes) == 0 {
		return ""
	}
	first := unicode.ToUpper(runes[0])
	if len(runes) == 1 {
		return string(first)
	}
	return string(first) + "…" + string(unicode.ToUpper(runes[len(runes)-1]))
}

// Letters counts the runes of w that are not whitespace.
func Letters(w string) int {
	n := 0
	for _, r := range w {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
