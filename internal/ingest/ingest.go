// Package ingest reads narratives and signed amounts from statement exports
package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

// Format is an input file kind
type Format string

const (
	JSONL Format = "jsonl"
	CSV   Format = "csv"
	OFX   Format = "ofx"
	Text  Format = "text"
)

var (
	ErrUnknownFormat = errors.New("unknown input format")
	ErrNoNarrative   = errors.New("no narrative column")
	ErrNoStatement   = errors.New("no bank or credit card statement")
)

var (
	narrativeColumns = []string{"narrative", "description", "memo", "narration", "details"}
	amountColumns    = []string{"amount", "amt", "value"}
)

const maxLineBytes = 1 << 20

// Entry is one narrative with its optional signed amount. Source locates it
// in the input: "line 3" or an OFX transaction id.
type Entry struct {
	Source    string
	Narrative string
	Amount    decimal.NullDecimal
}

// Float returns the amount as float64, nil when absent
func (e Entry) Float() *float64 {
	if !e.Amount.Valid {
		return nil
	}
	f := e.Amount.Decimal.InexactFloat64()
	return &f
}

// Detect picks the reader for path by extension
func Detect(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return JSONL, nil
	case ".csv":
		return CSV, nil
	case ".ofx", ".qfx":
		return OFX, nil
	case ".txt", "":
		return Text, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// ReadFile opens path and reads it with the reader Detect picks
func ReadFile(ctx context.Context, path string) ([]Entry, error) {
	format, err := Detect(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()
	return Read(ctx, format, f)
}

// Read dispatches on format
func Read(ctx context.Context, format Format, r io.Reader) ([]Entry, error) {
	switch format {
	case JSONL:
		return ReadJSONL(ctx, r)
	case CSV:
		return ReadCSV(ctx, r)
	case OFX:
		return ReadOFX(ctx, r)
	case Text:
		return ReadLines(ctx, r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// ReadLines treats every non-blank line as a narrative without an amount
func ReadLines(ctx context.Context, r io.Reader) ([]Entry, error) {
	var entries []Entry
	err := scanLines(ctx, r, func(n int, line string) error {
		entries = append(entries, Entry{Source: lineSource(n), Narrative: line})
		return nil
	})
	return entries, err
}

// jsonEntry is one JSONL object: {"narrative": "...", "amount": -12.50}.
// The amount may also be a quoted number or null.
type jsonEntry struct {
	Narrative string              `json:"narrative"`
	Amount    decimal.NullDecimal `json:"amount"`
}

// ReadJSONL reads one JSON object per line; blank lines are skipped
func ReadJSONL(ctx context.Context, r io.Reader) ([]Entry, error) {
	var entries []Entry
	err := scanLines(ctx, r, func(n int, line string) error {
		var je jsonEntry
		if err := json.Unmarshal([]byte(line), &je); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		entries = append(entries, Entry{Source: lineSource(n), Narrative: je.Narrative, Amount: je.Amount})
		return nil
	})
	return entries, err
}

func scanLines(ctx context.Context, r io.Reader, fn func(n int, line string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	n := 0
	for scanner.Scan() {
		n++
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// ReadCSV reads a headed CSV export. The narrative comes from the first of
// narrative/description/memo columns found, the amount from an amount column.
func ReadCSV(ctx context.Context, r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	narrCol := column(header, narrativeColumns)
	if narrCol < 0 {
		return nil, fmt.Errorf("%w: header %v", ErrNoNarrative, header)
	}
	amtCol := column(header, amountColumns)

	var entries []Entry
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if narrCol >= len(row) || strings.TrimSpace(row[narrCol]) == "" {
			continue
		}
		e := Entry{Source: lineSource(line), Narrative: strings.TrimSpace(row[narrCol])}
		if amtCol >= 0 && amtCol < len(row) {
			amount, err := ParseAmount(row[amtCol])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			e.Amount = amount
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// column returns the index of the first header matching any name, in name order
func column(header []string, names []string) int {
	for _, name := range names {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), name) {
				return i
			}
		}
	}
	return -1
}

// ParseAmount reads statement amounts: "1,234.50", "$12", "(50.00)" for a
// debit, and "" for none.
func ParseAmount(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer(",", "", "$", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("amount %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return decimal.NewNullDecimal(d), nil
}

// ReadOFX reads bank and credit card statement transactions. The narrative
// is NAME followed by MEMO.
func ReadOFX(ctx context.Context, r io.Reader) ([]Entry, error) {
	resp, err := ofxgo.ParseResponse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing OFX: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var lists []*ofxgo.TransactionList
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			lists = append(lists, stmt.BankTranList)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			lists = append(lists, stmt.BankTranList)
		}
	}
	if len(lists) == 0 {
		return nil, ErrNoStatement
	}

	var entries []Entry
	for _, list := range lists {
		for _, txn := range list.Transactions {
			narrative := ofxNarrative(txn)
			if narrative == "" {
				continue
			}
			amount := decimal.NewFromBigRat(&txn.TrnAmt.Rat, 2)
			entries = append(entries, Entry{
				Source:    string(txn.FiTID),
				Narrative: narrative,
				Amount:    decimal.NewNullDecimal(amount),
			})
		}
	}
	return entries, nil
}

func ofxNarrative(txn ofxgo.Transaction) string {
	name := string(txn.Name)
	if name == "" && txn.Payee != nil {
		name = string(txn.Payee.Name)
	}
	return strings.Join(strings.Fields(name+" "+string(txn.Memo)), " ")
}

func lineSource(n int) string {
	return fmt.Sprintf("line %d", n)
}
