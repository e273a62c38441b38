// Package normalize provides the text clean-up shared by every narrative stage.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Case selects the case folding applied by a Normalizer
type Case int

const (
	KeepCase Case = iota
	Lower
	Upper
)

// Delimiters that always get exactly one space on each side
const Delimiters = ":,=;#"

var (
	// Detection treats these as word breaks: "FED.REF/1234-X" -> "fed ref 1234 x"
	detectBreaks = regexp.MustCompile(`[.,:/\-]`)
)

// Normalizer is a pure text transformation. The zero value only collapses whitespace.
type Normalizer struct {
	Case       Case
	Delimiters bool // space out ':' ',' '=' ';' '#'
	Fold       bool // strip accents and compatibility forms
}

// Normalize applies the configured steps. Normalize(Normalize(s)) == Normalize(s).
func (n Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}
	if n.Fold {
		text = Fold(text)
	}
	switch n.Case {
	case Lower:
		text = strings.ToLower(text)
	case Upper:
		text = strings.ToUpper(text)
	}
	if n.Delimiters {
		return SpaceDelimiters(text)
	}
	return CollapseSpaces(text)
}

// CollapseSpaces turns every whitespace run into a single space and trims the ends.
func CollapseSpaces(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// SpaceDelimiters surrounds each delimiter with exactly one space.
// Example: "REF NO:123,ABA=0260" -> "REF NO : 123 , ABA = 0260"
func SpaceDelimiters(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 8)
	for _, r := range text {
		if strings.ContainsRune(Delimiters, r) {
			b.WriteByte(' ')
			b.WriteRune(r)
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return CollapseSpaces(b.String())
}

// Narrative prepares a raw narrative for canonicalization and segmentation:
// periods dropped, commas to spaces, delimiters spaced.
// Example: "BMO Bank N.A.,TYP=C" -> "BMO Bank NA TYP = C"
func Narrative(text string) string {
	text = strings.ReplaceAll(text, ".", "")
	text = strings.ReplaceAll(text, ",", " ")
	return SpaceDelimiters(text)
}

// ForDetect prepares a narrative for keyword scoring: lower-case, punctuation
// to spaces, delimiters spaced, whitespace collapsed.
func ForDetect(text string) string {
	text = strings.ToLower(text)
	text = detectBreaks.ReplaceAllString(text, " ")
	return SpaceDelimiters(text)
}

// Fold decomposes compatibility characters and removes combining marks,
// e.g. "BENEFICIÁRIO" -> "BENEFICIARIO". Invalid input is returned unchanged.
func Fold(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return folded
}
