package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctpty.durgadawaghar.com/internal/canon"
	"ctpty.durgadawaghar.com/internal/parser"
	"ctpty.durgadawaghar.com/internal/vocab"
)

type sighting struct {
	format    string
	narrative string
	keys      canon.UnknownKeys
}

type fakeSink struct {
	mu    sync.Mutex
	seen  []sighting
	fails bool
}

func (f *fakeSink) RecordUnknown(_ context.Context, format, narrative string, keys canon.UnknownKeys) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, sighting{format, narrative, keys})
	if f.fails {
		return errors.New("disk full")
	}
	return nil
}

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	v, err := vocab.New(
		vocab.Canonical{Name: "originator", Variants: []string{"originator", "orig"}},
		vocab.Canonical{Name: "beneficiary", Variants: []string{"beneficiary", "bnf"}},
		vocab.Canonical{Name: "fed reference", Variants: []string{"fed reference", "fed ref"}},
	)
	require.NoError(t, err)
	fams, err := parser.DefaultFamilies()
	require.NoError(t, err)
	return New(canon.New(v), fams, opts...)
}

func amt(f float64) *float64 { return &f }

func TestResolveKeyedNarrative(t *testing.T) {
	s := newService(t, WithReferenceName("DURGA DAWA GHAR"))

	resp, err := s.Resolve(context.Background(), Request{
		Narrative: "ORIG=ACME CORP FED REF=004484 BNF=JOHN DOE",
		Amount:    amt(-100),
	})
	require.NoError(t, err)

	assert.Equal(t, "wire", resp.Format)
	assert.Equal(t, []string{"Meta", "ORIGINATOR", "FED REFERENCE", "BENEFICIARY"}, resp.Parsed.Keys())
	assert.Empty(t, resp.Unknown)

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"format": "wire",
		"parsed": {"Meta": "", "ORIGINATOR": "ACME CORP", "FED REFERENCE": "004484", "BENEFICIARY": "JOHN DOE"},
		"ctpty": {"payer": "ACME CORP", "payee": "JOHN DOE", "amount": -100}
	}`, string(out))
}

func TestResolveUnknownKeys(t *testing.T) {
	sink := &fakeSink{}
	s := newService(t, WithReviewSink(sink))

	narrative := "ORIG=ACME CORP PURPOSE CODE: RENT"
	resp, err := s.Resolve(context.Background(), Request{Narrative: narrative})
	require.NoError(t, err)

	assert.Equal(t, "unknown", resp.Format)
	require.Contains(t, resp.Unknown, "CODE")
	assert.Equal(t, "CODE", resp.Unknown["CODE"][0])
	assert.Contains(t, resp.Unknown["CODE"], "PURPOSE CODE")

	require.Len(t, sink.seen, 1)
	assert.Equal(t, "unknown", sink.seen[0].format)
	assert.Equal(t, narrative, sink.seen[0].narrative)
	assert.Equal(t, resp.Unknown, sink.seen[0].keys)

	assert.Nil(t, resp.Ctpty.Payee, "no reference name configured")
}

func TestResolveSinkFailureIsNotFatal(t *testing.T) {
	sink := &fakeSink{fails: true}
	s := newService(t, WithReviewSink(sink))

	resp, err := s.Resolve(context.Background(), Request{Narrative: "ORIG=ACME CORP PURPOSE CODE: RENT"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Unknown)
	assert.Len(t, sink.seen, 1)
}

func TestResolveExtractor(t *testing.T) {
	s := newService(t)

	resp, err := s.Resolve(context.Background(), Request{
		Narrative:     "STARBUCKS STORE 123 POS PMT 12345678",
		Amount:        amt(-4.5),
		ReferenceName: "ME",
	})
	require.NoError(t, err)

	assert.Equal(t, "card", resp.Format)
	assert.Equal(t, "STARBUCKS STORE 123", resp.Parsed.String("MERCHANT_NAME"))
	assert.Equal(t, "ME", *resp.Ctpty.Payer)
	assert.Equal(t, "STARBUCKS STORE 123", *resp.Ctpty.Payee)
	assert.Equal(t, -4.5, *resp.Ctpty.Amount)
}

func TestResolveHeldExtractorFailure(t *testing.T) {
	s := newService(t, WithReferenceName("ME"))

	resp, err := s.Resolve(context.Background(), Request{Narrative: "SUNSHINE CLEANERS LLC MAIN STREET ABCDEFG"})
	require.NoError(t, err)

	assert.Equal(t, "merch", resp.Format)
	assert.True(t, resp.Parsed.Failed())
	assert.Equal(t, []string{"FORMAT", "META", "ERROR"}, resp.Parsed.Keys())
	assert.Equal(t, "MERCHANT_REFERENCE_PARSE_FAILED", resp.Parsed.String("ERROR"))
	assert.Equal(t, "ME", *resp.Ctpty.Payer)
	assert.Equal(t, "ME", *resp.Ctpty.Payee)
	assert.Nil(t, resp.Ctpty.Amount)
}

func TestResolveErrors(t *testing.T) {
	s := newService(t)

	_, err := s.Resolve(context.Background(), Request{Narrative: " \t "})
	assert.ErrorIs(t, err, ErrEmptyNarrative)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Resolve(ctx, Request{Narrative: "ORIG=ACME"})
	assert.ErrorIs(t, err, context.Canceled)

	fams, ferr := parser.DefaultFamilies()
	require.NoError(t, ferr)
	broken := New(nil, fams)
	resp, err := broken.Resolve(context.Background(), Request{Narrative: "ORIG=ACME"})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrInternal)
}

func TestResolveBatch(t *testing.T) {
	s := newService(t, WithReferenceName("ME"))

	reqs := []Request{
		{Narrative: "ORIG=ACME CORP FED REF=004484 BNF=JOHN DOE"},
		{Narrative: ""},
		{Narrative: "STARBUCKS STORE 123 POS PMT 12345678"},
		{Narrative: "ACME CORP DISBURSEME 250101 VAID-12345"},
		{Narrative: "HELLO WORLD"},
	}
	results, err := s.ResolveBatch(context.Background(), reqs, 3)
	require.NoError(t, err)
	require.Len(t, results, len(reqs))

	want := []string{"wire", "", "card", "disbursement", "unknown"}
	for i, r := range results {
		if want[i] == "" {
			assert.ErrorIs(t, r.Err, ErrEmptyNarrative)
			assert.Nil(t, r.Response)
			continue
		}
		require.NoError(t, r.Err, "item %d", i)
		assert.Equal(t, want[i], r.Response.Format, "item %d", i)
	}
}

func TestResolveBatchCanceled(t *testing.T) {
	s := newService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := s.ResolveBatch(ctx, []Request{{Narrative: "ORIG=ACME"}}, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 1)
}
