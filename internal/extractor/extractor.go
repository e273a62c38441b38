// Package extractor holds the narrow, format-specific narrative parsers and
// the ordered registry the classifier consults before keyword scoring.
package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"ctpty.durgadawaghar.com/internal/record"
)

// Format tags
const (
	FormatDisbursement   = "disbursement"
	FormatFundsTransfer  = "fundstr"
	FormatVendorPay      = "vpay"
	FormatVendorPymt     = "vpymt"
	FormatVendorRemit    = "vpay_remit"
	FormatAvidPayCheck   = "avp_check"
	FormatAvidPayGeneric = "avp_gen"
	FormatCard           = "card"
	FormatInvoice        = "invo"
	FormatWebTransfer    = "webt"
	FormatRemittance     = "remi"
	FormatPayPal         = "paypal"
	FormatProcessorEFT   = "peft"
	FormatMerchant       = "merch"
	FormatDirectDebit    = "ddbt"
)

// Extractor recognizes and parses one narrative format.
// Parse never panics; a narrative it cannot read yields a record with ERROR set.
type Extractor interface {
	Format() string
	Recognize(narrative string) bool
	Parse(narrative string) *record.Record
}

var (
	// Any whitespace run
	spaceRun = regexp.MustCompile(`\s+`)
)

// cleaner trims leading and trailing junk, collapses whitespace and upper-cases.
// Example with lead "," and trail ", ": ",acme  corp ,," -> "ACME CORP"
type cleaner struct {
	lead  string
	trail string
}

var (
	trimComma = cleaner{lead: ","}
	trimEnds  = cleaner{lead: ",", trail: ", \t\r\n"}
	trimPipes = cleaner{lead: ",|", trail: ",|\\"}
	trimBoth  = cleaner{lead: ",", trail: ","}
)

func (c cleaner) clean(line string) string {
	line = strings.TrimLeft(line, c.lead)
	if c.trail != "" {
		line = strings.TrimRight(line, c.trail)
	}
	line = spaceRun.ReplaceAllString(line, " ")
	return strings.ToUpper(strings.TrimSpace(line))
}

// pattern is the common Extractor built from a recognizer and a parser over
// the cleaned narrative. parse fills rec and reports whether it succeeded.
type pattern struct {
	format    string
	failure   string
	cleaner   cleaner
	recognize func(norm string) bool
	parse     func(norm string, rec *record.Record) bool
}

func (p *pattern) Format() string { return p.format }

func (p *pattern) Recognize(narrative string) bool {
	norm := p.cleaner.clean(narrative)
	return norm != "" && p.recognize(norm)
}

func (p *pattern) Parse(narrative string) (rec *record.Record) {
	norm := p.cleaner.clean(narrative)
	defer func() {
		if r := recover(); r != nil {
			rec = record.Failed(p.format, norm, p.failure)
		}
	}()

	rec = record.New()
	rec.Set(record.KeyFormat, p.format)
	if !p.parse(norm, rec) {
		return record.Failed(p.format, norm, p.failure)
	}
	return rec
}

// Registry is the ordered extractor battery. Order decides which of several
// recognizers claims a narrative first.
type Registry struct {
	list  []Extractor
	byTag map[string]Extractor
}

// NewRegistry returns the built-in battery
func NewRegistry() *Registry {
	r := &Registry{byTag: make(map[string]Extractor)}
	for _, e := range []Extractor{
		disbursement,
		fundsTransfer,
		vendorPay,
		vendorPymt,
		vendorRemit,
		avidPayCheck,
		avidPayGeneric,
		cardPayment,
		invoiceReference,
		webTransfer,
		remittanceAdvice,
		payPal,
		processorEFT,
		merchantReference,
		directDebit,
	} {
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
	return r
}

// Register appends e to the battery
func (r *Registry) Register(e Extractor) error {
	if r.byTag == nil {
		r.byTag = make(map[string]Extractor)
	}
	if _, ok := r.byTag[e.Format()]; ok {
		return fmt.Errorf("extractor %q already registered", e.Format())
	}
	r.list = append(r.list, e)
	r.byTag[e.Format()] = e
	return nil
}

// Lookup returns the extractor for tag
func (r *Registry) Lookup(tag string) (Extractor, bool) {
	e, ok := r.byTag[tag]
	return e, ok
}

// Formats returns tags in battery order
func (r *Registry) Formats() []string {
	tags := make([]string, len(r.list))
	for i, e := range r.list {
		tags[i] = e.Format()
	}
	return tags
}

// All returns the battery in order
func (r *Registry) All() []Extractor {
	return append([]Extractor(nil), r.list...)
}

// orEmpty keeps list values serialized as [] rather than null
func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// unique drops repeated strings, keeping first occurrences
func unique(s []string) []string {
	seen := make(map[string]bool, len(s))
	out := make([]string, 0, len(s))
	for _, v := range s {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
