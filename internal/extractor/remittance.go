package extractor

import (
	"regexp"
	"strings"

	"ctpty.durgadawaghar.com/internal/record"
)

var (
	// "ACME LLC/INVOICE 88812 BILL.COM"
	invoiceSlashRecognize = regexp.MustCompile(`.+/INVOICE\s+\w+\s+.+`)
	invoiceSlashParse     = regexp.MustCompile(`^(.+?)/INVOICE\s+([A-Z0-9]+)\s+(.+)$`)
	// "ACME LLC INVOICE 250101 INV7788"
	invoiceDated = regexp.MustCompile(`^(.+?)\s+INVOICE\s+(\d{6})\s+([A-Z0-9]+)$`)

	// "ACME INSURANCE TRN*1*9876543210\RMR*IV*INV00012345*1500.00\"
	remittanceRecognize = regexp.MustCompile(`\bTRN\*\d+\*[^\\]+\s*\\\s*RMR\*`)
	remittanceExclude   = regexp.MustCompile(`\b(?:ACH|WIRE|FED|CARD|RDC)\b`)
	remittanceParse     = regexp.MustCompile(`^(.*?)\s+TRN\*(\d+)\*([^\\]+)\\(RMR\*.+)$`)
	longIDToken         = regexp.MustCompile(`\b[A-Z0-9]{8,}\b`)

	// "PAYPAL BANKBK IBTRANSFER ACH RTN - 1/15/2025 - 0210 0002 1234"
	payPalWord      = regexp.MustCompile(`\bPAYPAL\b`)
	payPalACHReturn = regexp.MustCompile(`PAYPAL\s+BANKBK\s+IBTRANSFER\s+ACH\s+RTN\s*-\s*(\d{1,2}/\d{1,2}/\d{4})\s*-\s*([\d\s\-]+)`)
	payPalRDC       = regexp.MustCompile(`\bPAYPAL\b.*\bRDC\b.*\bDEP\s+CR\b`)
	sixDigits       = regexp.MustCompile(`\b(\d{6})\b`)

	// "RPIEFT 250101 ABC12345"
	processorEFTPattern = regexp.MustCompile(`\b([A-Z]{2,6})EFT\s+(\d{6})\s+([A-Z0-9]{6,})\b`)
)

// Rails that rule out a processor EFT
var processorEFTExclusions = []string{"ACH", "WIRE", "FED", "RDC", "CARD", "TRN*", "RMR*"}

var invoiceReference = &pattern{
	format:  FormatInvoice,
	failure: "INVOICE_PARSE_FAILED",
	cleaner: trimEnds,
	recognize: func(norm string) bool {
		return invoiceSlashRecognize.MatchString(norm) || invoiceDated.MatchString(norm)
	},
	parse: func(norm string, rec *record.Record) bool {
		if m := invoiceSlashParse.FindStringSubmatch(norm); m != nil {
			rec.Set(record.KeyTransType, "INVOICE_REFERENCE")
			rec.Set("ENTITY_NAME", m[1])
			rec.Set("DOCUMENT_TYPE", "INVOICE")
			rec.Set("INVOICE_NO", m[2])
			rec.Set("SERVICE_PROVIDER", m[3])
			rec.Set("RAW_REF", norm)
			return true
		}
		if m := invoiceDated.FindStringSubmatch(norm); m != nil {
			rec.Set(record.KeyTransType, "INVOICE_REFERENCE")
			rec.Set("COUNTERPARTY_NAME", m[1])
			rec.Set("DOCUMENT_TYPE", "INVOICE")
			rec.Set("INVOICE_NO", m[3])
			rec.Set("DATE", m[2])
			rec.Set("RAW_REF", norm)
			return true
		}
		return false
	},
}

var remittanceAdvice = &pattern{
	format:  FormatRemittance,
	failure: "REMITTANCE_PARSE_FAILED",
	cleaner: trimEnds,
	recognize: func(norm string) bool {
		return !remittanceExclude.MatchString(norm) && remittanceRecognize.MatchString(norm)
	},
	parse: func(norm string, rec *record.Record) bool {
		m := remittanceParse.FindStringSubmatch(norm)
		if m == nil {
			return false
		}
		rec.Set(record.KeyTransType, "EDI_REMITTANCE_FRAGMENT")
		rec.Set("COUNTERPARTY_NAME", strings.TrimSpace(m[1]))
		rec.Set("TRN_SEQUENCE", m[2])
		rec.Set("TRN_REFERENCE", m[3])
		rec.Set("RMR_RAW", m[4])
		rec.Set("REMITTANCE_REFS", unique(longIDToken.FindAllString(norm, -1)))
		rec.Set("RAW_REF", norm)
		return true
	},
}

var payPal = &pattern{
	format:  FormatPayPal,
	failure: "PAYPAL_ACH_RETURN_PARSE_FAILED",
	cleaner: trimPipes,
	recognize: func(norm string) bool {
		// keyed narratives that merely name PayPal as a party go to the generic parser
		return payPalWord.MatchString(norm) && !strings.ContainsAny(norm, ":=")
	},
	parse: func(norm string, rec *record.Record) bool {
		switch {
		case payPalACHReturn.MatchString(norm):
			m := payPalACHReturn.FindStringSubmatch(norm)
			rec.Set(record.KeyTransType, "PAYPAL_ACH_RETURN")
			rec.Set("RETURN_DATE", m[1])
			rec.Set("TRACE_NUMBERS", orEmpty(digitRun.FindAllString(m[2], -1)))
			rec.Set("RAW_TRACE_BLOCK", strings.TrimSpace(m[2]))
		case payPalRDC.MatchString(norm):
			rec.Set(record.KeyTransType, "PAYPAL_RDC_DEPOSIT")
			rec.Set("PROCESSOR", "PAYPAL")
			rec.Set("RAIL", "RDC")
			rec.Set("DIRECTION", "CREDIT")
			if m := sixDigits.FindStringSubmatch(norm); m != nil {
				rec.Set("DATE", m[1])
			}
			rec.Set("RAW", norm)
		default:
			rec.Set(record.KeyTransType, "PAYPAL_OTHER")
			rec.Set("RAW", norm)
		}
		return true
	},
}

var processorEFT = &pattern{
	format:  FormatProcessorEFT,
	failure: "PROCESSOR_EFT_PARSE_FAILED",
	cleaner: trimComma,
	recognize: func(norm string) bool {
		return !containsAny(norm, processorEFTExclusions...) && processorEFTPattern.MatchString(norm)
	},
	parse: func(norm string, rec *record.Record) bool {
		m := processorEFTPattern.FindStringSubmatch(norm)
		if m == nil {
			return false
		}
		rec.Set(record.KeyTransType, "PROCESSOR_EFT")
		rec.Set("PROCESSOR_CODE", m[1])
		rec.Set("DATE", m[2])
		rec.Set("REFERENCE", m[3])
		return true
	},
}
