package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctpty.durgadawaghar.com/internal/counterparty"
	"ctpty.durgadawaghar.com/internal/ingest"
	"ctpty.durgadawaghar.com/internal/pipeline"
	"ctpty.durgadawaghar.com/internal/record"
	"ctpty.durgadawaghar.com/internal/ui"
)

func quiet(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevNoColor := ui.Out, color.NoColor
	ui.Out, color.NoColor = &buf, true
	t.Cleanup(func() { ui.Out, color.NoColor = prevOut, prevNoColor })
	return &buf
}

func TestRunNarrative(t *testing.T) {
	out := quiet(t)
	dir := t.TempDir()
	html := filepath.Join(dir, "report.html")

	err := run([]string{
		"-db", filepath.Join(dir, "review.db"),
		"-html", html,
		"-ref", "ACME CORP",
		"-amount", "(25.00)",
		"ORIG: JOHN DOE BNF: JANE ROE",
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Counterparties")
	assert.Contains(t, out.String(), "total")

	page, err := os.ReadFile(html)
	require.NoError(t, err)
	assert.Contains(t, string(page), `<table id="results">`)
	assert.Contains(t, string(page), `<table id="unknown-keys">`)
	assert.Contains(t, string(page), "<td>-25.00</td>")
}

func TestRunPending(t *testing.T) {
	out := quiet(t)
	db := filepath.Join(t.TempDir(), "review.db")

	require.NoError(t, run([]string{"-db", db, "-pending"}))
	assert.Contains(t, out.String(), "queue is empty")

	assert.Error(t, run([]string{"-pending"}))
}

func TestRunErrors(t *testing.T) {
	quiet(t)
	tests := []struct {
		name string
		args []string
	}{
		{"no narrative", nil},
		{"input and narrative", []string{"-in", "x.txt", "NARRATIVE"}},
		{"bad amount", []string{"-amount", "lots", "NARRATIVE"}},
		{"bad threshold", []string{"-threshold", "150", "NARRATIVE"}},
		{"missing input", []string{"-in", filepath.Join(t.TempDir(), "absent.txt")}},
		{"unknown flag", []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, run(tt.args))
		})
	}
}

func TestReadEntries(t *testing.T) {
	entries, err := readEntries(context.Background(), options{amount: "1,200.50"}, []string{"ACH", "CREDIT"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ACH CREDIT", entries[0].Narrative)
	assert.Equal(t, "args", entries[0].Source)
	require.NotNil(t, entries[0].Float())
	assert.InDelta(t, 1200.50, *entries[0].Float(), 1e-9)

	entries, err = readEntries(context.Background(), options{}, []string{"X"})
	require.NoError(t, err)
	assert.Nil(t, entries[0].Float())
}

func TestCollect(t *testing.T) {
	payer, payee := "ACME", "JOHN"
	failed := record.Failed("ddbt", "CITY WATER", "DIRECT_DEBIT_PARSE_FAILED")

	entries := []ingest.Entry{
		{Source: "line 1", Narrative: "A"},
		{Source: "line 2", Narrative: "B"},
		{Source: "line 3", Narrative: "C"},
		{Source: "line 4", Narrative: ""},
	}
	results := []pipeline.Result{
		{Response: &pipeline.Response{
			Format:  "wire",
			Parsed:  record.New(),
			Ctpty:   counterparty.Result{Payer: &payer, Payee: &payee},
			Unknown: map[string][]string{"CODE": {"PURPOSE CODE"}},
		}},
		{Response: &pipeline.Response{Format: "ddbt", Parsed: failed}},
		{},
		{Err: pipeline.ErrEmptyNarrative},
	}

	rows, counts, unknown := collect(entries, results)
	require.Len(t, rows, 4)
	assert.Equal(t, "ACME", rows[0].Payer)
	assert.Equal(t, "JOHN", rows[0].Payee)
	assert.Empty(t, rows[0].Error)
	assert.Equal(t, "DIRECT_DEBIT_PARSE_FAILED", rows[1].Error)
	assert.Equal(t, "not processed", rows[2].Error)
	assert.True(t, strings.Contains(rows[3].Error, "required"))
	assert.Equal(t, map[string]int{"wire": 1, "ddbt": 1, "error": 2}, counts)
	assert.Equal(t, 1, unknown)
}

func TestHelp(t *testing.T) {
	quiet(t)
	assert.NoError(t, run([]string{"-h"}))
}
