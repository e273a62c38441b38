// Package config resolves settings from defaults, an optional YAML file,
// CTPTY_* environment variables and command-line flags, in that order.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

// Config holds runtime settings. Empty paths select the embedded defaults;
// an empty DBPath disables the review queue.
type Config struct {
	VocabPath     string  `yaml:"vocab"`
	FamiliesPath  string  `yaml:"families"`
	Threshold     float64 `yaml:"threshold"`
	MaxWords      int     `yaml:"max_words"`
	MinScore      int     `yaml:"min_score"`
	ReferenceName string  `yaml:"reference_name"`
	DBPath        string  `yaml:"db"`
	Workers       int     `yaml:"workers"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Threshold: 85,
		MaxWords:  7,
		MinScore:  3,
		Workers:   runtime.NumCPU(),
	}
}

// LookupFunc reads one environment variable
type LookupFunc func(key string) (string, bool)

// Load applies the YAML file at path (skipped when empty) and then the
// environment over the defaults, and validates the result.
func Load(path string, lookup LookupFunc) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
		}
	}
	if lookup != nil {
		if err := cfg.applyEnv(lookup); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

// LoadEnvFiles loads .env style files into the process environment.
// Missing files are skipped; variables already set win.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv(lookup LookupFunc) error {
	strs := map[string]*string{
		"CTPTY_VOCAB":          &c.VocabPath,
		"CTPTY_FAMILIES":       &c.FamiliesPath,
		"CTPTY_REFERENCE_NAME": &c.ReferenceName,
		"CTPTY_DB":             &c.DBPath,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CTPTY_MAX_WORDS": &c.MaxWords,
		"CTPTY_MIN_SCORE": &c.MinScore,
		"CTPTY_WORKERS":   &c.Workers,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, v)
		}
		*dst = n
	}

	if v, ok := lookup("CTPTY_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: CTPTY_THRESHOLD=%q is not a number", ErrInvalid, v)
		}
		c.Threshold = f
	}
	return nil
}

// Validate checks ranges
func (c Config) Validate() error {
	switch {
	case c.Threshold < 0 || c.Threshold > 100:
		return fmt.Errorf("%w: threshold %v outside 0-100", ErrInvalid, c.Threshold)
	case c.MaxWords <= 0:
		return fmt.Errorf("%w: max words must be positive, got %d", ErrInvalid, c.MaxWords)
	case c.MinScore < 0:
		return fmt.Errorf("%w: min score must not be negative, got %d", ErrInvalid, c.MinScore)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalid, c.Workers)
	}
	return nil
}

// Flags are command-line overrides. Only flags given on the command line
// replace loaded values.
type Flags struct {
	fs     *flag.FlagSet
	values Config
}

// BindFlags registers the override flags on fs
func BindFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	d := Default()
	fs.StringVar(&f.values.VocabPath, "vocab", "", "canonical vocabulary YAML (default: embedded)")
	fs.StringVar(&f.values.FamiliesPath, "families", "", "parser families YAML (default: embedded)")
	fs.Float64Var(&f.values.Threshold, "threshold", d.Threshold, "fuzzy match threshold 0-100")
	fs.IntVar(&f.values.MaxWords, "max-words", d.MaxWords, "longest label window in words")
	fs.IntVar(&f.values.MinScore, "min-score", d.MinScore, "minimum keyword score for a keyed family")
	fs.StringVar(&f.values.ReferenceName, "ref", "", "statement owner name used for the missing role")
	fs.StringVar(&f.values.DBPath, "db", "", "SQLite review queue path (empty disables)")
	fs.IntVar(&f.values.Workers, "workers", d.Workers, "batch workers")
	return f
}

// Apply copies explicitly set flags into cfg and validates it
func (f *Flags) Apply(cfg *Config) error {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "vocab":
			cfg.VocabPath = f.values.VocabPath
		case "families":
			cfg.FamiliesPath = f.values.FamiliesPath
		case "threshold":
			cfg.Threshold = f.values.Threshold
		case "max-words":
			cfg.MaxWords = f.values.MaxWords
		case "min-score":
			cfg.MinScore = f.values.MinScore
		case "ref":
			cfg.ReferenceName = f.values.ReferenceName
		case "db":
			cfg.DBPath = f.values.DBPath
		case "workers":
			cfg.Workers = f.values.Workers
		}
	})
	return cfg.Validate()
}
