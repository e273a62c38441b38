// Package parser splits keyed narratives into ordered key/value records.
package parser

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"ctpty.durgadawaghar.com/internal/record"
)

// Characters allowed on either side of a standalone key
const keyDelimiters = " :=,/\\_#-"

// KeySet is a deduplicated key list ordered longest first, ties lexicographic.
// Earlier keys claim text before later ones.
type KeySet []string

// NewKeySet builds a KeySet, dropping blanks and duplicates
func NewKeySet(keys ...string) KeySet {
	seen := make(map[string]bool, len(keys))
	out := make(KeySet, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// Mark is an accepted key occurrence
type Mark struct {
	Key   string
	Start int
	End   int
}

// Span is one segment of the text. Meta has Key "Meta" and KeyStart == ValueStart == 0.
// Spans tile the text: each KeyStart equals the previous End.
type Span struct {
	Key        string
	KeyStart   int
	ValueStart int
	End        int
	Value      string
}

// FindKeys returns the standalone occurrences of keys in text, sorted by offset.
// Keys are tried in KeySet order; an occurrence overlapping an already
// accepted one is skipped.
func FindKeys(text string, keys KeySet) []Mark {
	var marks []Mark
	for _, k := range keys {
		from := 0
		for from <= len(text)-len(k) {
			i := strings.Index(text[from:], k)
			if i < 0 {
				break
			}
			i += from
			from = i + 1

			m := Mark{Key: k, Start: i, End: i + len(k)}
			if !standalone(text, m.Start, m.End) || overlapsAny(marks, m) {
				continue
			}
			marks = append(marks, m)
		}
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].Start < marks[j].Start })
	return marks
}

func standalone(text string, start, end int) bool {
	if start > 0 && !strings.ContainsRune(keyDelimiters, rune(text[start-1])) {
		return false
	}
	if end < len(text) && !strings.ContainsRune(keyDelimiters, rune(text[end])) {
		return false
	}
	return true
}

func overlapsAny(marks []Mark, m Mark) bool {
	for _, r := range marks {
		if m.Start < r.End && r.Start < m.End {
			return true
		}
	}
	return false
}

// Split cuts text into the leading Meta span and one span per key occurrence.
// A value starts after its key and any following non-alphanumerics and runs
// to the next key.
func Split(text string, keys KeySet) []Span {
	return split(text, FindKeys(text, keys), record.KeyMeta)
}

func split(text string, marks []Mark, lead string) []Span {
	first := len(text)
	if len(marks) > 0 {
		first = marks[0].Start
	}
	spans := []Span{{
		Key:   lead,
		End:   first,
		Value: strings.TrimSpace(text[:first]),
	}}

	for i, m := range marks {
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1].Start
		}
		z := m.End
		for z < end {
			r, size := utf8.DecodeRuneInString(text[z:])
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				break
			}
			z += size
		}
		spans = append(spans, Span{
			Key:        m.Key,
			KeyStart:   m.Start,
			ValueStart: z,
			End:        end,
			Value:      strings.TrimSpace(text[z:end]),
		})
	}
	return spans
}

// Segment builds the flat record for text. rename maps a found key to the
// name it is stored under; a repeated key keeps its first position and its
// last value.
func Segment(text string, keys KeySet, rename map[string]string) *record.Record {
	rec := record.New()
	for _, s := range Split(text, keys) {
		rec.Set(renamed(s.Key, rename), s.Value)
	}
	return rec
}

// SplitInline re-segments every string value of rec with the inline keys.
// A value with inline keys becomes a nested record holding "value" plus one
// entry per key; other values are kept trimmed. Nested values and keys for
// which exempt returns true pass through unchanged.
func SplitInline(rec *record.Record, inline KeySet, exempt func(key string) bool, rename map[string]string) *record.Record {
	out := record.New()
	for _, k := range rec.Keys() {
		v, _ := rec.Get(k)
		s, ok := v.(string)
		if !ok || (exempt != nil && exempt(k)) {
			out.Set(k, v)
			continue
		}
		out.Set(k, splitValue(s, inline, rename))
	}
	return out
}

func splitValue(text string, inline KeySet, rename map[string]string) any {
	marks := FindKeys(text, inline)
	if len(marks) == 0 {
		return strings.TrimSpace(text)
	}
	nested := record.New()
	for _, s := range split(text, marks, record.KeyValue) {
		nested.Set(renamed(s.Key, rename), s.Value)
	}
	return nested
}

func renamed(key string, rename map[string]string) string {
	if to, ok := rename[key]; ok {
		return to
	}
	return key
}
