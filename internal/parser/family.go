package parser

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"ctpty.durgadawaghar.com/internal/record"
)

//go:embed families.yaml
var defaultFamilies []byte

// Fallback is the family used for tags without their own key vocabulary
const Fallback = "all"

var ErrMalformedFamilies = errors.New("malformed families")

// Family is one keyed narrative format
type Family struct {
	Name   string
	Keys   KeySet
	Inline KeySet
	Exempt []string          // keys containing any of these skip inline splitting
	Rename map[string]string // found key -> stored key
}

// Parse segments text with the family keys, then splits values on the inline keys
func (f Family) Parse(text string) *record.Record {
	flat := Segment(text, f.Keys, f.Rename)
	return SplitInline(flat, f.Inline, f.exempt, f.Rename)
}

func (f Family) exempt(key string) bool {
	for _, e := range f.Exempt {
		if strings.Contains(key, e) {
			return true
		}
	}
	return false
}

// Families maps a format tag to its family
type Families map[string]Family

// Lookup returns the family for tag, or the fallback family
func (fs Families) Lookup(tag string) Family {
	if f, ok := fs[tag]; ok {
		return f
	}
	return fs[Fallback]
}

// Names returns family names sorted
func (fs Families) Names() []string {
	names := make([]string, 0, len(fs))
	for n := range fs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type familySpec struct {
	Keys    []string          `yaml:"keys"`
	Inline  []string          `yaml:"inline"`
	Exempt  []string          `yaml:"exempt"`
	Rename  map[string]string `yaml:"rename"`
	Include []string          `yaml:"include"`
}

// LoadFamilies decodes a families document. A family may include others,
// taking their keys, inline keys and renames. The fallback family is required.
func LoadFamilies(data []byte) (Families, error) {
	var specs map[string]familySpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFamilies, err)
	}
	if _, ok := specs[Fallback]; !ok {
		return nil, fmt.Errorf("%w: missing %q family", ErrMalformedFamilies, Fallback)
	}

	fs := make(Families, len(specs))
	for name, spec := range specs {
		keys := append([]string(nil), spec.Keys...)
		inline := append([]string(nil), spec.Inline...)
		rename := make(map[string]string)
		for _, inc := range spec.Include {
			other, ok := specs[inc]
			if !ok {
				return nil, fmt.Errorf("%w: %s includes unknown family %q", ErrMalformedFamilies, name, inc)
			}
			if len(other.Include) > 0 {
				return nil, fmt.Errorf("%w: %s includes %q which has includes of its own", ErrMalformedFamilies, name, inc)
			}
			keys = append(keys, other.Keys...)
			inline = append(inline, other.Inline...)
			for from, to := range other.Rename {
				rename[from] = to
			}
		}
		for from, to := range spec.Rename {
			rename[from] = to
		}

		for _, k := range append(keys, inline...) {
			if strings.TrimSpace(k) == "" || k != strings.ToUpper(k) {
				return nil, fmt.Errorf("%w: %s: key %q must be non-empty upper-case", ErrMalformedFamilies, name, k)
			}
		}
		if len(keys) == 0 {
			return nil, fmt.Errorf("%w: %s has no keys", ErrMalformedFamilies, name)
		}

		fs[name] = Family{
			Name:   name,
			Keys:   NewKeySet(keys...),
			Inline: NewKeySet(inline...),
			Exempt: spec.Exempt,
			Rename: rename,
		}
	}
	return fs, nil
}

// LoadFamiliesFile reads a families document from disk
func LoadFamiliesFile(path string) (Families, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading families: %w", err)
	}
	fs, err := LoadFamilies(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fs, nil
}

// DefaultFamilies returns the families compiled into the binary
func DefaultFamilies() (Families, error) {
	return LoadFamilies(defaultFamilies)
}
