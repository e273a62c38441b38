// Package canon rewrites variant label spellings in a narrative into
// canonical key tokens and reports labels it has never seen.
package canon

import (
	"regexp"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
	"go.uber.org/zap"

	"ctpty.durgadawaghar.com/internal/normalize"
	"ctpty.durgadawaghar.com/internal/vocab"
)

const (
	DefaultThreshold = 85
	DefaultMaxWords  = 7
	maxLookback      = 4
)

var (
	// Word tokens: "ref. no.:12" -> ref, no, 12
	tokenPattern = regexp.MustCompile(`[a-z0-9]+`)
	// A label ends at ':' or '=', possibly after dots or spaces: "no.:" / "no ="
	labelEnd = regexp.MustCompile(`^[.\s]*[:=]`)
	// Unknown label candidate: "bar: 99" -> bar
	labelPattern = regexp.MustCompile(`\b([a-z][a-z0-9]*)\s*[:=]`)
	// Words and the delimiters that stop the lookback
	lookbackPattern = regexp.MustCompile(`[a-z0-9]+|[:=]`)
)

// Match is a window of the normalized text mapped onto a canonical key.
// Start and End are half-open byte offsets.
type Match struct {
	Raw   string
	Start int
	End   int
	Key   string
	Score float64
}

// Len returns the span length
func (m Match) Len() int { return m.End - m.Start }

// Overlaps reports whether the two spans share at least one byte
func (m Match) Overlaps(o Match) bool {
	return m.Start < o.End && o.Start < m.End
}

// UnknownKeys maps an upper-cased unrecognized label to candidate spellings
// built by growing the label leftwards. Nil means nothing was found.
type UnknownKeys map[string][]string

// Engine is safe for concurrent use once built.
type Engine struct {
	vocab     *vocab.Vocabulary
	threshold float64
	maxWords  int
	log       *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithThreshold sets the minimum similarity (0-100) for a match
func WithThreshold(t float64) Option {
	return func(e *Engine) { e.threshold = t }
}

// WithMaxWords sets the longest window, in tokens, considered as a label
func WithMaxWords(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxWords = n
		}
	}
}

// WithLogger attaches a logger for match tracing
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New builds an engine over v
func New(v *vocab.Vocabulary, opts ...Option) *Engine {
	e := &Engine{
		vocab:     v,
		threshold: DefaultThreshold,
		maxWords:  DefaultMaxWords,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rewrite replaces recognized labels with their canonical key and upper-cases
// the result. Unknown labels are reported but never block the rewrite.
func (e *Engine) Rewrite(text string) (string, UnknownKeys) {
	text = normalize.Normalizer{Case: normalize.Lower}.Normalize(text)
	if text == "" {
		return "", nil
	}

	accepted := ResolveConflicts(e.Candidates(text))

	out := text
	byStartDesc := append([]Match(nil), accepted...)
	sort.Slice(byStartDesc, func(i, j int) bool { return byStartDesc[i].Start > byStartDesc[j].Start })
	for _, m := range byStartDesc {
		out = out[:m.Start] + m.Key + out[m.End:]
	}

	unknown := e.unknownKeys(text, accepted)
	if len(accepted) > 0 || unknown != nil {
		e.log.Debug("canonicalized narrative",
			zap.Int("matches", len(accepted)),
			zap.Int("unknown", len(unknown)))
	}
	return strings.ToUpper(out), unknown
}

// Candidates scores every label-position window of an already normalized,
// lower-case text and returns the ones that reach the threshold.
func (e *Engine) Candidates(text string) []Match {
	tokens := tokenPattern.FindAllStringIndex(text, -1)
	variants := e.vocab.Variants()

	var out []Match
	for i := range tokens {
		words := make([]string, 0, e.maxWords)
		for w := 1; w <= e.maxWords && i+w <= len(tokens); w++ {
			last := tokens[i+w-1]
			words = append(words, text[last[0]:last[1]])
			start, end := tokens[i][0], last[1]
			if !labelEnd.MatchString(text[end:]) {
				continue
			}

			clean := strings.Join(words, "")
			best, bestScore := "", 0.0
			for _, v := range variants {
				score := similarity(clean, v.Clean)
				if score >= e.threshold && score > bestScore {
					best, bestScore = v.Key, score
				}
			}
			if best == "" {
				continue
			}
			out = append(out, Match{
				Raw:   strings.Join(words, " "),
				Start: start,
				End:   end,
				Key:   best,
				Score: bestScore,
			})
		}
	}
	return out
}

// ResolveConflicts picks a pairwise non-overlapping subset of candidates.
// Candidates are walked by start, longest span first. Against an overlapping
// accepted match with the same key the higher score wins; with a different
// key the longer canonical key name wins whatever the scores. A candidate
// that loses any comparison is dropped; one that wins them all displaces
// every match it beat.
func ResolveConflicts(candidates []Match) []Match {
	sorted := append([]Match(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].Len() > sorted[j].Len()
	})

	var accepted []Match
	for _, c := range sorted {
		keep := true
		beaten := make(map[int]bool)
		for i, a := range accepted {
			if !c.Overlaps(a) {
				continue
			}
			if c.Key == a.Key {
				keep = c.Score > a.Score
			} else {
				keep = len(c.Key) > len(a.Key)
			}
			if !keep {
				break
			}
			beaten[i] = true
		}
		if !keep {
			continue
		}
		if len(beaten) > 0 {
			kept := accepted[:0:0]
			for i, a := range accepted {
				if !beaten[i] {
					kept = append(kept, a)
				}
			}
			accepted = kept
		}
		accepted = append(accepted, c)
	}

	sort.SliceStable(accepted, func(i, j int) bool { return accepted[i].Start < accepted[j].Start })
	return accepted
}

func (e *Engine) unknownKeys(text string, accepted []Match) UnknownKeys {
	var words [][]int
	var found UnknownKeys

	for _, loc := range labelPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2], loc[3]
		label := text[start:end]

		if e.vocab.IsVariant(vocab.Clean(label)) || e.vocab.IsToken(label) {
			continue
		}
		span := Match{Start: start, End: end}
		overlaps := false
		for _, a := range accepted {
			if span.Overlaps(a) {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}

		if words == nil {
			words = lookbackPattern.FindAllStringIndex(text, -1)
		}
		idx := -1
		for i, w := range words {
			if w[0] == start {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}

		spellings := []string{strings.ToUpper(label)}
		seen := map[string]bool{spellings[0]: true}
		for j, back := idx-1, 0; j >= 0 && back < maxLookback; j, back = j-1, back+1 {
			w := text[words[j][0]:words[j][1]]
			if w == ":" || w == "=" {
				break
			}
			s := strings.ToUpper(normalize.CollapseSpaces(text[words[j][0]:end]))
			if !seen[s] {
				seen[s] = true
				spellings = append(spellings, s)
			}
		}

		if found == nil {
			found = make(UnknownKeys)
		}
		found[strings.ToUpper(label)] = spellings
	}
	return found
}

// similarity is the normalized indel ratio on a 0-100 scale
func similarity(a, b string) float64 {
	return levenshtein.RatioForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions) * 100
}
