// Package classify decides which extraction path handles a narrative: one of
// the specialized extractors, or a keyed family for the generic parser.
package classify

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"ctpty.durgadawaghar.com/internal/extractor"
	"ctpty.durgadawaghar.com/internal/normalize"
)

// Keyed families and the miss tag
const (
	Swift   = "swift"
	Wire    = "wire"
	ACH     = "ach"
	Unknown = "unknown"
)

// Keyword is a substring whose presence adds Weight to a family score
type Keyword struct {
	Term   string
	Weight int
}

// Config holds the scoring tables. Override, when present in the detection
// text, selects OverrideFamily regardless of scores.
type Config struct {
	Keywords       map[string][]Keyword
	Override       string
	OverrideFamily string
	MinScore       int
	Priority       []string
	Hold           []string
}

// DefaultConfig returns the production weights
func DefaultConfig() Config {
	return Config{
		Keywords: map[string][]Keyword{
			Swift: {
				{"uetr", 4}, {"mt103", 4}, {"mt202", 4}, {"swift", 2},
				{"bic", 2}, {"imad", 4}, {"omad", 4}, {"smad", 4},
			},
			ACH: {
				{"ppd", 5}, {"ccd", 5}, {"ctx", 5}, {"web", 4}, {"tel", 4},
				{"trace number", 5}, {"trace no", 5}, {"entry class", 5},
				{"orig co name", 5}, {"company id", 1}, {"effective date", 1},
				{"ach", 2},
			},
			Wire: {
				{"fed ref", 3}, {"fed", 2}, {"aba", 3}, {"routing number", 3},
				{"wire type", 3}, {"service ref", 2}, {"sent at", 1},
				{"received at", 1}, {"obi", 2}, {"orf", 2}, {"srf", 2},
				{"obk", 2}, {"ibk", 2}, {"sbk", 2}, {"bbk", 2}, {"bnf", 2},
			},
		},
		Override:       "uetr",
		OverrideFamily: Swift,
		MinScore:       3,
		Priority:       []string{Swift, Wire, ACH},
		Hold:           []string{extractor.FormatMerchant, extractor.FormatDirectDebit},
	}
}

// Decision explains one classification
type Decision struct {
	Tag string
	// Recognized is the extractor tag that short-circuited scoring
	Recognized string
	Held       string
	Override   bool
	Scores     map[string]int
}

// Classifier is safe for concurrent use
type Classifier struct {
	registry *extractor.Registry
	cfg      Config
	families []string
	hold     map[string]bool
	log      *zap.Logger
}

// Option configures a Classifier
type Option func(*Classifier)

// WithLogger attaches a logger for decision tracing
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.log = l
		}
	}
}

// New builds a classifier over the extractor battery. A nil registry means
// scoring only.
func New(registry *extractor.Registry, cfg Config, opts ...Option) *Classifier {
	c := &Classifier{
		registry: registry,
		cfg:      cfg,
		hold:     make(map[string]bool, len(cfg.Hold)),
		log:      zap.NewNop(),
	}
	if c.registry == nil {
		c.registry = &extractor.Registry{}
	}
	for _, tag := range cfg.Hold {
		c.hold[tag] = true
	}
	c.families = familyOrder(cfg)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// familyOrder lists families by priority, then any unprioritized ones by name
func familyOrder(cfg Config) []string {
	seen := make(map[string]bool)
	var order []string
	for _, f := range cfg.Priority {
		if _, ok := cfg.Keywords[f]; ok && !seen[f] {
			seen[f] = true
			order = append(order, f)
		}
	}
	var rest []string
	for f := range cfg.Keywords {
		if !seen[f] {
			rest = append(rest, f)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// Classify returns the format tag for narrative
func (c *Classifier) Classify(narrative string) string {
	return c.Explain(narrative).Tag
}

// Explain classifies narrative and reports how the tag was reached
func (c *Classifier) Explain(narrative string) Decision {
	var d Decision
	for _, e := range c.registry.All() {
		if !e.Recognize(narrative) {
			continue
		}
		tag := e.Format()
		if !c.hold[tag] {
			d.Tag, d.Recognized = tag, tag
			c.log.Debug("classified by extractor", zap.String("tag", tag))
			return d
		}
		if d.Held == "" {
			d.Held = tag
		}
	}

	text := normalize.ForDetect(narrative)
	d.Scores = c.score(text)

	switch {
	case c.cfg.Override != "" && strings.Contains(text, c.cfg.Override):
		d.Tag, d.Override = c.cfg.OverrideFamily, true
	default:
		d.Tag = c.best(d.Scores)
		if d.Tag == "" {
			d.Tag = Unknown
			if d.Held != "" {
				d.Tag = d.Held
			}
		}
	}

	c.log.Debug("classified by score",
		zap.String("tag", d.Tag),
		zap.Any("scores", d.Scores),
		zap.String("held", d.Held),
		zap.Bool("override", d.Override),
	)
	return d
}

func (c *Classifier) score(text string) map[string]int {
	scores := make(map[string]int, len(c.cfg.Keywords))
	for family, keywords := range c.cfg.Keywords {
		total := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw.Term) {
				total += kw.Weight
			}
		}
		scores[family] = total
	}
	return scores
}

// best returns the highest scoring family at or above MinScore, ties going
// to the earlier family in priority order; "" when none qualifies.
func (c *Classifier) best(scores map[string]int) string {
	tag, top := "", 0
	for _, f := range c.families {
		if s := scores[f]; tag == "" || s > top {
			tag, top = f, s
		}
	}
	if tag == "" || top < c.cfg.MinScore {
		return ""
	}
	return tag
}
