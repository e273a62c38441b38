package vocab

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeepsFileOrder(t *testing.T) {
	v, err := Parse([]byte(`
zeta:
  - z
alpha:
  - a
  - alpha one
mid:
  - m
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, v.Names())

	variants := v.Variants()
	require.Len(t, variants, 4)
	assert.Equal(t, Variant{Key: "alpha", Spelling: "alpha one", Clean: "alphaone"}, variants[2])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not yaml", "reference: [ref"},
		{"empty document", ""},
		{"sequence root", "- ref\n- ref no\n"},
		{"scalar variants", "reference: ref\n"},
		{"no variants", "reference: []\n"},
		{"upper-case name", "Reference:\n  - ref\n"},
		{"upper-case variant", "reference:\n  - REF\n"},
		{"punctuation only variant", "reference:\n  - \"..\"\n"},
		{"duplicate variant", "reference:\n  - ref\n  - ref\n"},
		{"duplicate name", "reference:\n  - ref\nreference:\n  - ref no\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestVariantLookups(t *testing.T) {
	v, err := New(
		Canonical{Name: "reference", Variants: []string{"ref", "ref  no"}},
		Canonical{Name: "customer name", Variants: []string{"cust name"}},
	)
	require.NoError(t, err)

	assert.True(t, v.IsVariant("refno"))
	assert.True(t, v.IsVariant("custname"))
	assert.False(t, v.IsVariant("reference"))

	assert.True(t, v.IsToken("name"))
	assert.True(t, v.IsToken("no"))
	assert.False(t, v.IsToken("custname"))

	assert.Equal(t, []string{"ref", "ref no"}, v.Entries()[0].Variants)
}

func TestDefaultVocabulary(t *testing.T) {
	v, err := Default()
	require.NoError(t, err)
	assert.Greater(t, v.Len(), 40)
	assert.Equal(t, "originator", v.Names()[0])
	assert.True(t, v.IsVariant("fedref"))
	assert.True(t, v.IsVariant("bnf"))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reference:\n  - ref\n"), 0o644))

	v, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	v, err = Load(strings.NewReader("amount:\n  - amt\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"amount"}, v.Names())
}

func TestClean(t *testing.T) {
	assert.Equal(t, "refno", Clean("Ref. No"))
	assert.Equal(t, "bnf", Clean("b-n/f"))
	assert.Equal(t, "", Clean(" .: "))
}
