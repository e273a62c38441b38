// Package pipeline runs a narrative through classification, extraction or
// canonicalization plus segmentation, and counterparty resolution.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ctpty.durgadawaghar.com/internal/canon"
	"ctpty.durgadawaghar.com/internal/classify"
	"ctpty.durgadawaghar.com/internal/counterparty"
	"ctpty.durgadawaghar.com/internal/extractor"
	"ctpty.durgadawaghar.com/internal/normalize"
	"ctpty.durgadawaghar.com/internal/parser"
	"ctpty.durgadawaghar.com/internal/record"
)

var (
	// ErrEmptyNarrative is a client error
	ErrEmptyNarrative = errors.New("narrative is required")
	// ErrInternal wraps a recovered fault inside a pipeline stage
	ErrInternal = errors.New("internal error")
)

// Request is one narrative to resolve. ReferenceName overrides the service
// default for the statement owner.
type Request struct {
	Narrative     string   `json:"narrative"`
	Amount        *float64 `json:"amount,omitempty"`
	ReferenceName string   `json:"reference_name,omitempty"`
}

// Response is the resolved narrative
type Response struct {
	Format  string              `json:"format"`
	Parsed  *record.Record      `json:"parsed"`
	Ctpty   counterparty.Result `json:"ctpty"`
	Unknown canon.UnknownKeys   `json:"unknown_keys,omitempty"`
}

// ReviewSink receives unknown labels for human curation
type ReviewSink interface {
	RecordUnknown(ctx context.Context, format, narrative string, keys canon.UnknownKeys) error
}

// Service is safe for concurrent use when its ReviewSink is
type Service struct {
	registry   *extractor.Registry
	classifier *classify.Classifier
	classCfg   classify.Config
	engine     *canon.Engine
	families   parser.Families
	resolver   *counterparty.Resolver
	sink       ReviewSink
	reference  string
	log        *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithReviewSink forwards unknown labels to sink
func WithReviewSink(sink ReviewSink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithReferenceName sets the default statement owner
func WithReferenceName(name string) Option {
	return func(s *Service) { s.reference = name }
}

// WithClassifierConfig replaces the default scoring tables
func WithClassifierConfig(cfg classify.Config) Option {
	return func(s *Service) { s.classCfg = cfg }
}

// WithResolver replaces the default counterparty key lists
func WithResolver(r *counterparty.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// New builds a service over a canonicalization engine and parser families
func New(engine *canon.Engine, families parser.Families, opts ...Option) *Service {
	s := &Service{
		registry: extractor.NewRegistry(),
		classCfg: classify.DefaultConfig(),
		engine:   engine,
		families: families,
		resolver: counterparty.New(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.classifier = classify.New(s.registry, s.classCfg, classify.WithLogger(s.log))
	return s
}

// Resolve classifies, parses and resolves one narrative
func (s *Service) Resolve(ctx context.Context, req Request) (resp *Response, err error) {
	if strings.TrimSpace(req.Narrative) == "" {
		return nil, ErrEmptyNarrative
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("resolve panicked",
				zap.String("narrative", req.Narrative),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			resp, err = nil, fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()

	resp = &Response{Format: s.classifier.Classify(req.Narrative)}

	if e, ok := s.registry.Lookup(resp.Format); ok {
		resp.Parsed = e.Parse(req.Narrative)
	} else {
		text, unknown := s.engine.Rewrite(normalize.Narrative(req.Narrative))
		if len(unknown) > 0 {
			resp.Unknown = unknown
			s.review(ctx, resp.Format, req.Narrative, unknown)
		}
		resp.Parsed = s.families.Lookup(resp.Format).Parse(text)
	}

	ref := req.ReferenceName
	if ref == "" {
		ref = s.reference
	}
	resp.Ctpty = s.resolver.Resolve(resp.Parsed, ref, req.Amount)

	s.log.Debug("resolved",
		zap.String("format", resp.Format),
		zap.Int("fields", resp.Parsed.Len()),
		zap.Bool("failed", resp.Parsed.Failed()),
	)
	return resp, nil
}

// review logs unknown labels and hands them to the sink. Sink failures are
// logged and never fail the request.
func (s *Service) review(ctx context.Context, format, narrative string, unknown canon.UnknownKeys) {
	s.log.Info("unknown keys",
		zap.String("format", format),
		zap.Any("keys", unknown),
	)
	if s.sink == nil {
		return
	}
	if err := s.sink.RecordUnknown(ctx, format, narrative, unknown); err != nil {
		s.log.Warn("recording unknown keys", zap.Error(err))
	}
}

// Result pairs a batch response with its per-item error
type Result struct {
	Response *Response
	Err      error
}

// ResolveBatch resolves reqs on up to workers goroutines. Results keep the
// input order; item errors stay in their Result. The returned error is only
// set when ctx ends first.
func (s *Service) ResolveBatch(ctx context.Context, reqs []Request, workers int) ([]Result, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, req := range reqs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resp, err := s.Resolve(gctx, req)
			results[i] = Result{Response: resp, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
