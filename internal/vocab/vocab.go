// Package vocab loads the canonical key vocabulary: canonical field names
// mapped to the variant spellings they appear under in raw narratives.
package vocab

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed canonical_keys.yaml
var defaultData []byte

var (
	// Anything that is not a lower-case letter or digit: "ref. no" -> "refno"
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	// Word pieces of a variant: "orig co-name" -> orig, co, name
	tokenPattern = regexp.MustCompile(`[a-z0-9]+`)
)

// ErrMalformed is wrapped by every load error caused by bad vocabulary data
var ErrMalformed = errors.New("malformed vocabulary")

// Canonical is one vocabulary entry
type Canonical struct {
	Name     string
	Variants []string
}

// Variant is a single spelling flattened for matching
type Variant struct {
	Key      string // canonical name
	Spelling string // as written in the vocabulary
	Clean    string // Spelling with non-alphanumerics removed
}

// Vocabulary is immutable after construction and safe for concurrent use.
type Vocabulary struct {
	entries  []Canonical
	variants []Variant
	clean    map[string]struct{}
	tokens   map[string]struct{}
}

// New validates entries and builds a vocabulary. Entry order is the
// tie-break order for equally good matches.
func New(entries ...Canonical) (*Vocabulary, error) {
	v := &Vocabulary{
		clean:  make(map[string]struct{}),
		tokens: make(map[string]struct{}),
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty canonical name", ErrMalformed)
		}
		if name != strings.ToLower(name) {
			return nil, fmt.Errorf("%w: canonical name %q is not lower-case", ErrMalformed, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate canonical name %q", ErrMalformed, name)
		}
		seen[name] = true
		if len(e.Variants) == 0 {
			return nil, fmt.Errorf("%w: %q has no variants", ErrMalformed, name)
		}

		entry := Canonical{Name: name}
		unique := make(map[string]bool, len(e.Variants))
		for _, raw := range e.Variants {
			s := strings.Join(strings.Fields(raw), " ")
			if s != strings.ToLower(s) {
				return nil, fmt.Errorf("%w: variant %q of %q is not lower-case", ErrMalformed, raw, name)
			}
			clean := Clean(s)
			if clean == "" {
				return nil, fmt.Errorf("%w: variant %q of %q has no letters or digits", ErrMalformed, raw, name)
			}
			if unique[s] {
				return nil, fmt.Errorf("%w: duplicate variant %q of %q", ErrMalformed, s, name)
			}
			unique[s] = true

			entry.Variants = append(entry.Variants, s)
			v.variants = append(v.variants, Variant{Key: name, Spelling: s, Clean: clean})
			v.clean[clean] = struct{}{}
			for _, tok := range tokenPattern.FindAllString(s, -1) {
				v.tokens[tok] = struct{}{}
			}
		}
		v.entries = append(v.entries, entry)
	}
	return v, nil
}

// Parse decodes a YAML mapping of canonical name to variant list.
// Mapping order is kept.
func Parse(data []byte) (*Vocabulary, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformed)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: expected a mapping", ErrMalformed, root.Line)
	}

	entries := make([]Canonical, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]
		var variants []string
		if err := valNode.Decode(&variants); err != nil {
			return nil, fmt.Errorf("%w: line %d: variants of %q: %v", ErrMalformed, valNode.Line, keyNode.Value, err)
		}
		entries = append(entries, Canonical{Name: keyNode.Value, Variants: variants})
	}
	return New(entries...)
}

// Load reads a vocabulary document from r
func Load(r io.Reader) (*Vocabulary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary: %w", err)
	}
	return Parse(data)
}

// LoadFile reads the vocabulary at path
func LoadFile(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary: %w", err)
	}
	v, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Default returns the vocabulary compiled into the binary
func Default() (*Vocabulary, error) {
	return Parse(defaultData)
}

// Clean lower-cases s and drops everything but letters and digits
func Clean(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

// Entries returns the canonical entries in vocabulary order
func (v *Vocabulary) Entries() []Canonical {
	out := make([]Canonical, len(v.entries))
	for i, e := range v.entries {
		out[i] = Canonical{Name: e.Name, Variants: append([]string(nil), e.Variants...)}
	}
	return out
}

// Names returns canonical names in vocabulary order
func (v *Vocabulary) Names() []string {
	out := make([]string, len(v.entries))
	for i, e := range v.entries {
		out[i] = e.Name
	}
	return out
}

// Variants returns every spelling, grouped by canonical key in vocabulary order
func (v *Vocabulary) Variants() []Variant {
	return append([]Variant(nil), v.variants...)
}

// IsVariant reports whether clean is exactly some variant after stripping
func (v *Vocabulary) IsVariant(clean string) bool {
	_, ok := v.clean[clean]
	return ok
}

// IsToken reports whether tok is a word of some variant, e.g. "name" in "cust name"
func (v *Vocabulary) IsToken(tok string) bool {
	_, ok := v.tokens[tok]
	return ok
}

// Len returns the number of canonical keys
func (v *Vocabulary) Len() int {
	return len(v.entries)
}
