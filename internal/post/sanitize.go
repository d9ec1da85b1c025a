package post

import (
	"strings"
	"unicode"
)

// Sanitize removes immediately repeated runs that start with a number, such
// as `55" 55"` or `8GB8GB`, then collapses whitespace. Repetition is matched
// case-insensitively and the longest repeated run wins. Runs start at a token
// boundary and must carry a unit or a space, so "2011" and "1010" survive.
// The result is a fixed point: Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string) string {
	if text == "" {
		return text
	}
	s := collapseSpace(text)
	for {
		// The trailing space lets a repeat that ends the text match its copy.
		next := collapseSpace(dedupe(s + " "))
		if next == s {
			return s
		}
		s = next
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func dedupe(s string) string {
	r := []rune(s)
	var b strings.Builder
	for i := 0; i < len(r); {
		if n := repeatAt(r, i); n > 0 {
			b.WriteString(string(r[i : i+n]))
			i += 2 * n
			continue
		}
		b.WriteRune(r[i])
		i++
	}
	return b.String()
}

// repeatAt returns the length of the longest run starting at i that is a
// number, an optional decimal part and trailing unit text, and is directly
// followed by a case-insensitive copy of itself. Zero means no repeat.
func repeatAt(r []rune, i int) int {
	if !unicode.IsDigit(r[i]) || (i > 0 && isWordRune(r[i-1])) {
		return 0
	}
	for n := runEnd(r, i) - i; n > 0; n-- {
		if i+2*n > len(r) || numericOnly(r[i:i+n]) {
			continue
		}
		if strings.EqualFold(string(r[i:i+n]), string(r[i+n:i+2*n])) {
			return n
		}
	}
	return 0
}

// runEnd is the furthest end of a digits[.,]digits["\w\s]* run starting at i.
func runEnd(r []rune, i int) int {
	j := i
	for j < len(r) && unicode.IsDigit(r[j]) {
		j++
	}
	if j < len(r) && (r[j] == '.' || r[j] == ',') {
		j++
	}
	for j < len(r) && isUnitRune(r[j]) {
		j++
	}
	return j
}

func isUnitRune(c rune) bool {
	return c == '"' || c == '_' || unicode.IsLetter(c) || unicode.IsNumber(c) ||
		unicode.IsMark(c) || unicode.IsSpace(c)
}

func isWordRune(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsNumber(c)
}

func numericOnly(r []rune) bool {
	for _, c := range r {
		if !unicode.IsDigit(c) && c != '.' && c != ',' {
			return false
		}
	}
	return true
}
