package extractor

import (
	"regexp"
	"strings"

	"ctpty.durgadawaghar.com/internal/record"
)

var (
	// "STARBUCKS STORE 123 POS PMT 12345678"
	cardRecognize = regexp.MustCompile(`^[A-Z0-9 .&'-]+\s+(?:ONLINE|POS)\s+PMT\s+\d{8,}$`)
	cardParse     = regexp.MustCompile(`^(.+?)\s+(ONLINE|POS)\s+PMT\s+(\d+)$`)

	// "JOES PIZZA NY-01 250101 998877"
	merchantSimple = regexp.MustCompile(`^[A-Z0-9 .&'-]+?\s+[A-Z0-9-]{2,}\s+\d{6,}\s+\d{6,}$`)
	// "SUNSHINE CLEANERS LLC MAIN STREET AB1234"
	merchantContext = regexp.MustCompile(`^[A-Z .&'-]+(?:\s+[A-Z0-9]{2,})+\s+[A-Z .&]{3,}\s+[A-Z0-9]{6,}$`)
	hasDigit        = regexp.MustCompile(`\d`)

	// "CITY WATER DIRECT DEBIT 2024-0099 ACCT 55443322"
	directDebitWords   = regexp.MustCompile(`\b(?:DIRECT\s+DEB(?:IT)?|DEB\s+|PYMT|PURCHASE|BENEFITS|INS\s+CO|INSURANCE)\b`)
	directDebitExclude = regexp.MustCompile(`\b(?:ACH|WIRE|CARD|RDC|CHECK|PAYPAL|AVIDPAY|RMR|VENDORPYMT)\b`)
	directDebitRef     = regexp.MustCompile(`\b[A-Z0-9\-]{6,}\b`)
)

// Rails and processors that never read as a plain card payment
var cardExclusions = []string{"ACH", "WIRE", "REF ", "VAID", "RMR", "VENDOR", "AVIDPAY", "DISBURSE", "TFR"}

// Words that end the counterparty name in a direct debit
var directDebitStops = map[string]bool{
	"DIRECT": true, "DEBIT": true, "DEB": true, "PYMT": true, "PURCHASE": true,
}

var cardPayment = &pattern{
	format:  FormatCard,
	failure: "CARD_PAYMENT_PARSE_FAILED",
	cleaner: trimEnds,
	recognize: func(norm string) bool {
		return !containsAny(norm, cardExclusions...) && cardRecognize.MatchString(norm)
	},
	parse: func(norm string, rec *record.Record) bool {
		m := cardParse.FindStringSubmatch(norm)
		if m == nil {
			return false
		}
		rec.Set(record.KeyTransType, "CARD_PAYMENT")
		rec.Set("MERCHANT_NAME", m[1])
		rec.Set("CHANNEL", m[2])
		rec.Set("REFERENCE_ID", m[3])
		rec.Set("RAW_REF", norm)
		return true
	},
}

var merchantReference = &pattern{
	format:  FormatMerchant,
	failure: "MERCHANT_REFERENCE_PARSE_FAILED",
	cleaner: trimEnds,
	recognize: func(norm string) bool {
		return merchantSimple.MatchString(norm) || merchantContext.MatchString(norm)
	},
	parse: func(norm string, rec *record.Record) bool {
		parts := strings.Fields(norm)
		if len(parts) < 4 {
			return false
		}
		block := strings.Join(parts[len(parts)-3:], " ")
		if !hasDigit.MatchString(block) {
			return false
		}
		rec.Set(record.KeyTransType, "MERCHANT_REFERENCE")
		rec.Set("COUNTERPARTY_NAME", strings.Join(parts[:len(parts)-3], " "))
		rec.Set("REFERENCE_BLOCK", block)
		rec.Set("RAW", norm)
		return true
	},
}

var directDebit = &pattern{
	format:  FormatDirectDebit,
	failure: "DIRECT_DEBIT_PARSE_FAILED",
	cleaner: trimPipes,
	recognize: func(norm string) bool {
		return !directDebitExclude.MatchString(norm) && directDebitWords.MatchString(norm)
	},
	parse: func(norm string, rec *record.Record) bool {
		var name []string
		for _, tok := range strings.Fields(norm) {
			if directDebitStops[tok] {
				break
			}
			name = append(name, tok)
		}
		rec.Set(record.KeyTransType, "DIRECT_DEBIT")
		if len(name) > 0 {
			rec.Set("COUNTERPARTY_NAME", strings.Join(name, " "))
		}
		rec.Set("REFERENCE_IDS", orEmpty(directDebitRef.FindAllString(norm, -1)))
		rec.Set("RAW", norm)
		return true
	},
}
