// Package counterparty derives payer and payee from a parsed narrative record.
package counterparty

import (
	"strings"

	"ctpty.durgadawaghar.com/internal/record"
)

// Key lists are lower-case and scanned in order
var (
	DefaultPayerKeys = []string{
		"orig co name", "originator", "orig", "org",
		"ordering customer", "ordering cust",
		"sender", "sending co name",
		"debtor", "paid to",
		"from acct", "from account",
		"entry desc", "company name", "comp name",
	}

	DefaultPayeeKeys = []string{
		"beneficiary", "bnf", "bn f",
		"receiver", "recv name", "receiver name",
		"ind name", "individual name",
		"creditor", "ulti bene",
		"individual or receiving company name",
		"customer name", "cust name",
	}

	DefaultCounterpartyKeys = []string{
		"counterparty", "counterparty_name",
		"entity", "entity_name", "merchant_name",
		"related entity", "related party",
		"to_account", "from_account",
	}
)

// Result is the payer/payee/amount triple. Nil fields serialize as null.
type Result struct {
	Payer  *string  `json:"payer"`
	Payee  *string  `json:"payee"`
	Amount *float64 `json:"amount"`
}

// Resolver is safe for concurrent use
type Resolver struct {
	PayerKeys        []string
	PayeeKeys        []string
	CounterpartyKeys []string
}

// New returns a resolver over the default key lists
func New() *Resolver {
	return &Resolver{
		PayerKeys:        DefaultPayerKeys,
		PayeeKeys:        DefaultPayeeKeys,
		CounterpartyKeys: DefaultCounterpartyKeys,
	}
}

// Resolve picks payer and payee from rec. ref is the account holder the
// statement belongs to; it fills whichever role the narrative does not name.
// A negative amount means money left ref, so the counterparty is paid.
func (r *Resolver) Resolve(rec *record.Record, ref string, amount *float64) Result {
	data := rec.Lower()
	self := text(ref)
	res := Result{Amount: amount}

	payer := first(data, r.PayerKeys)
	payee := first(data, r.PayeeKeys)
	if payer != nil && payee != nil {
		res.Payer, res.Payee = payer, payee
		return res
	}

	if ctpty := first(data, r.CounterpartyKeys); ctpty != nil {
		if amount != nil && *amount < 0 {
			res.Payer, res.Payee = self, ctpty
		} else {
			res.Payer, res.Payee = ctpty, self
		}
		return res
	}

	switch {
	case payer != nil:
		res.Payer, res.Payee = payer, self
	case payee != nil:
		res.Payer, res.Payee = self, payee
	default:
		res.Payer, res.Payee = self, self
	}
	return res
}

// first returns the first non-empty value among keys
func first(data map[string]any, keys []string) *string {
	for _, k := range keys {
		v, ok := data[k]
		if !ok {
			continue
		}
		if s := value(v); s != nil {
			return s
		}
	}
	return nil
}

// value flattens a record value: nested records reduce to "value" then "name"
func value(v any) *string {
	switch v := v.(type) {
	case string:
		return text(v)
	case []string:
		return text(strings.Join(v, " "))
	case *record.Record:
		inner := v.Lower()
		if s := value(inner[record.KeyValue]); s != nil {
			return s
		}
		return value(inner["name"])
	}
	return nil
}

// text collapses whitespace; blank is nil
func text(s string) *string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return nil
	}
	return &s
}
