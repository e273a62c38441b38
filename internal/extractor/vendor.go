package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ctpty.durgadawaghar.com/internal/record"
)

var (
	// "ACME SUPPLY - VENDORPYMT RMR*IV*00028797**50.00", "...RMR*IV*MF202210**1 75000"
	vendorPymtRecognize = regexp.MustCompile(`VENDORPYMT\s*RMR\*IV\*.+\*\*\d`)
	vendorPymtParse     = regexp.MustCompile(`^(.+?)[\s\-]*VENDORPYMT\s*RMR\*IV\*((?:[A-Z0-9]+\s?)+)\*\*((?:\d+\s+)?\d+(?:\.\d{2})?)`)

	// "ACME SUPPLY VENDORPYMT CCD1234 RMR*IV*55512*7788"
	vendorRemitRecognize = regexp.MustCompile(`VENDORPYMT.*RMR\*IV\*`)
	vendorRemitParse     = regexp.MustCompile(`^(.+?)\s+VENDORPYMT\b\s*(.*?)\s*RMR\*IV\*(.+)$`)
	remitID              = regexp.MustCompile(`\b\d{4,}\b`)

	// "ACME HOA-AVIDPAY REF*CK*10045*JOHN SMITH PAINTING"; ACH after AVIDPAY
	// means the generic form
	avidPayStart       = regexp.MustCompile(`(?:^|[\s\-])AVIDPAY`)
	avidPayCheckRef    = regexp.MustCompile(`REF\*?CK\*?\d+\*`)
	achWord            = regexp.MustCompile(`\bACH\b`)
	avidPayLockboxForm = regexp.MustCompile(`^(.+?)[\s\-]*AVIDPAY\s*REF\*?CK\*?(\d+)\*(.+?)$`)
	avidPayCCDForm     = regexp.MustCompile(`AVIDPAY.*?REF\*CK\*(\d+)\*(.+)$`)

	// "ACME PROPERTIES-AVIDPAY REFCK5566*BOB ACH SERVICES"
	avidPayGenericRecognize = regexp.MustCompile(`\bAVIDPAY\b\s+REFCK\d+\*.+$`)
	avidPayGenericParse     = regexp.MustCompile(`^(.+?)-?AVIDPAY\s+REFCK(\d+)\*(.+)$`)
)

var vendorPymt = &pattern{
	format:    FormatVendorPymt,
	failure:   "VENDORPYMT_RMR_PARSE_FAILED",
	cleaner:   trimEnds,
	recognize: vendorPymtRecognize.MatchString,
	parse: func(norm string, rec *record.Record) bool {
		norm = strings.TrimRight(norm, `\`)
		m := vendorPymtParse.FindStringSubmatch(norm)
		if m == nil {
			return false
		}
		amount, err := impliedDecimal(m[3])
		if err != nil {
			return false
		}
		rec.Set(record.KeyTransType, "VENDOR_PAYMENT_RMR")
		rec.Set("COUNTERPARTY_NAME", strings.TrimRight(m[1], "- "))
		rec.Set("INVOICE_NO", strings.Fields(m[2]))
		rec.Set("AMOUNT", amount)
		rec.Set("RAW", norm)
		return true
	},
}

// impliedDecimal reads remittance amounts, which drop the decimal point when
// written without one: "1 75000" -> "1750.00", "50.00" -> "50.00".
func impliedDecimal(raw string) (string, error) {
	raw = strings.ReplaceAll(raw, " ", "")
	if strings.Contains(raw, ".") || len(raw) <= 2 {
		return raw, nil
	}
	whole, err := strconv.Atoi(raw[:len(raw)-2])
	if err != nil {
		return "", fmt.Errorf("amount %q: %w", raw, err)
	}
	return fmt.Sprintf("%d.%s", whole, raw[len(raw)-2:]), nil
}

var vendorRemit = &pattern{
	format:  FormatVendorRemit,
	failure: "VENDORPYMT_REMIT_PARSE_FAILED",
	cleaner: trimEnds,
	recognize: func(norm string) bool {
		// the invoice-and-amount form belongs to vpymt
		return !strings.Contains(norm, "**") && vendorRemitRecognize.MatchString(norm)
	},
	parse: func(norm string, rec *record.Record) bool {
		m := vendorRemitParse.FindStringSubmatch(norm)
		if m == nil {
			return false
		}
		rec.Set(record.KeyTransType, "VENDOR_PAYMENT_REMITTANCE")
		rec.Set("COUNTERPARTY_NAME", strings.TrimSpace(m[1]))
		rec.Set("VENDOR_META", strings.TrimSpace(m[2]))
		rec.Set("REMITTANCE_IDS", orEmpty(remitID.FindAllString(m[3], -1)))
		rec.Set("RAW_REMIT_BLOCK", m[3])
		return true
	},
}

// isAvidPayCheck reports an AVIDPAY marker followed by a check reference
// with no ACH word anywhere after the marker.
func isAvidPayCheck(norm string) bool {
	for _, loc := range avidPayStart.FindAllStringIndex(norm, -1) {
		rest := norm[loc[1]:]
		if achWord.MatchString(rest) {
			continue
		}
		if avidPayCheckRef.MatchString(rest) {
			return true
		}
	}
	return false
}

var avidPayCheck = &pattern{
	format:    FormatAvidPayCheck,
	failure:   "AVIDPAY_CHECK_PARSE_FAILED",
	cleaner:   trimPipes,
	recognize: isAvidPayCheck,
	parse: func(norm string, rec *record.Record) bool {
		if m := avidPayLockboxForm.FindStringSubmatch(norm); m != nil {
			rec.Set(record.KeyTransType, "AVIDPAY_CHECK")
			rec.Set("COUNTERPARTY_NAME", strings.TrimRight(m[1], "- "))
			rec.Set("CHECK_NO", m[2])
			rec.Set("PAYEE", strings.TrimSpace(m[3]))
			rec.Set("VARIANT", "LOCKBOX")
			return true
		}
		if m := avidPayCCDForm.FindStringSubmatch(norm); m != nil {
			rec.Set(record.KeyTransType, "AVIDPAY_CHECK")
			rec.Set("CHECK_NO", m[1])
			rec.Set("PAYEE", strings.TrimSpace(m[2]))
			rec.Set("VARIANT", "CCD")
			return true
		}
		return false
	},
}

var avidPayGeneric = &pattern{
	format:  FormatAvidPayGeneric,
	failure: "AVIDPAY_GENERIC_PARSE_FAILED",
	cleaner: trimEnds,
	recognize: func(norm string) bool {
		return !isAvidPayCheck(trimPipes.clean(norm)) && avidPayGenericRecognize.MatchString(norm)
	},
	parse: func(norm string, rec *record.Record) bool {
		m := avidPayGenericParse.FindStringSubmatch(norm)
		if m == nil {
			return false
		}
		rec.Set(record.KeyTransType, "AVIDPAY_GENERIC")
		rec.Set("PROCESSOR", "AVIDPAY")
		rec.Set("PAYMENT_METHOD", "CHECK")
		rec.Set("COUNTERPARTY_NAME", strings.TrimRight(m[1], "-"))
		rec.Set("CHECK_NO", m[2])
		rec.Set("PAYEE_NAME", m[3])
		rec.Set("RAW_REF", norm)
		return true
	},
}
