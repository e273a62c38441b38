package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 85.0, cfg.Threshold)
	assert.Equal(t, 7, cfg.MaxWords)
	assert.Equal(t, 3, cfg.MinScore)
	assert.Positive(t, cfg.Workers)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeFile(t, "ctpty.yaml", "threshold: 90\nmax_words: 5\nreference_name: ACME CORP\ndb: review.db\n")

	cfg, err := Load(path, env(map[string]string{
		"CTPTY_THRESHOLD": "80",
		"CTPTY_WORKERS":   "2",
	}))
	require.NoError(t, err)
	assert.Equal(t, 80.0, cfg.Threshold, "env beats file")
	assert.Equal(t, 5, cfg.MaxWords, "file beats default")
	assert.Equal(t, "ACME CORP", cfg.ReferenceName)
	assert.Equal(t, "review.db", cfg.DBPath)
	assert.Equal(t, 2, cfg.Workers)

	fs := flag.NewFlagSet("ctpty", flag.ContinueOnError)
	flags := BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-threshold", "70", "-ref", "ME"}))
	require.NoError(t, flags.Apply(&cfg))

	assert.Equal(t, 70.0, cfg.Threshold, "flag beats env")
	assert.Equal(t, "ME", cfg.ReferenceName)
	assert.Equal(t, 5, cfg.MaxWords, "unset flag keeps loaded value")
	assert.Equal(t, 2, cfg.Workers, "unset flag keeps loaded value")
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{"unknown field", "thresh: 90\n", nil},
		{"bad yaml", "threshold: [\n", nil},
		{"threshold above range", "threshold: 101\n", nil},
		{"zero max words", "max_words: 0\n", nil},
		{"negative min score", "min_score: -1\n", nil},
		{"non-integer env", "", map[string]string{"CTPTY_WORKERS": "many"}},
		{"non-number env", "", map[string]string{"CTPTY_THRESHOLD": "high"}},
		{"zero workers env", "", map[string]string{"CTPTY_WORKERS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeFile(t, "ctpty.yaml", tt.file)
			}
			_, err := Load(path, env(tt.env))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestFlagsValidate(t *testing.T) {
	fs := flag.NewFlagSet("ctpty", flag.ContinueOnError)
	flags := BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-workers", "0"}))

	cfg := Default()
	assert.ErrorIs(t, flags.Apply(&cfg), ErrInvalid)
}

func TestLoadEnvFiles(t *testing.T) {
	path := writeFile(t, ".env", "CTPTY_REFERENCE_NAME=FROM DOTENV\n")
	t.Setenv("CTPTY_REFERENCE_NAME", "")
	os.Unsetenv("CTPTY_REFERENCE_NAME")

	require.NoError(t, LoadEnvFiles(filepath.Join(t.TempDir(), "absent.env"), path))
	cfg, err := Load("", os.LookupEnv)
	require.NoError(t, err)
	assert.Equal(t, "FROM DOTENV", cfg.ReferenceName)
}
