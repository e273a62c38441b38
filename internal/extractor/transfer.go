package extractor

import (
	"regexp"

	"ctpty.durgadawaghar.com/internal/record"
)

var (
	// "ACME CORP DISBURSEME 250101 VAID-12345"
	disbursementRecognize = regexp.MustCompile(`\bDISBURSEME\b\s+\d{6}\s+VAID-\d+(?:VAID-\d+)?`)
	disbursementParse     = regexp.MustCompile(`^(.+?)\s+DISBURSEME\s+(\d{6})`)
	vaidPattern           = regexp.MustCompile(`VAID-(\d+)`)

	// "REF 12AB34 FUNDS TRANSFER FRMDEP 00012345 FROM JOHN SMITH"
	fundsTransferPattern = regexp.MustCompile(`^REF\s+(\w+)\s+FUNDS\s+TRANSFER\s+FRMDEP\s+(\S+)\s+FROM\s+(.+)$`)

	// "CITY OF AUSTIN VENDOR PAY JANE DOE 998877"
	vendorPayRecognize = regexp.MustCompile(`\bVENDOR\s+PAY\b.*\b\d+\b$`)
	vendorPayParse     = regexp.MustCompile(`^(.+?)\s+VENDOR\s+PAY\s+(.+?)\s+(\d+)$`)

	// "WEB TFR FR 0012345678 RENT MARCH 4455 6677"
	webTransferRecognize = regexp.MustCompile(`\bWEB\s+TFR\s+FR\s+\d+`)
	webTransferParse     = regexp.MustCompile(`^WEB\s+TFR\s+FR\s+(\d+)\s+(.+?)\s+((?:\d+[,\s]?)+)$`)
	digitRun             = regexp.MustCompile(`\d+`)
)

var disbursement = &pattern{
	format:    FormatDisbursement,
	failure:   "DISBURSEMENT_PARSE_FAILED",
	cleaner:   trimComma,
	recognize: disbursementRecognize.MatchString,
	parse: func(norm string, rec *record.Record) bool {
		m := disbursementParse.FindStringSubmatch(norm)
		if m == nil {
			return false
		}
		var vaids []string
		for _, v := range vaidPattern.FindAllStringSubmatch(norm, -1) {
			vaids = append(vaids, v[1])
		}
		rec.Set(record.KeyTransType, "DISBURSEMENT")
		rec.Set("COUNTERPARTY_NAME", m[1])
		rec.Set("VALUE_DATE", m[2])
		rec.Set("VAID", orEmpty(vaids))
		return true
	},
}

var fundsTransfer = &pattern{
	format:    FormatFundsTransfer,
	failure:   "FUNDS_TRANSFER_PARSE_FAILED",
	cleaner:   trimComma,
	recognize: fundsTransferPattern.MatchString,
	parse: func(norm string, rec *record.Record) bool {
		m := fundsTransferPattern.FindStringSubmatch(norm)
		if m == nil {
			return false
		}
		rec.Set(record.KeyTransType, "FUNDS_TRANSFER_FRMDEP")
		rec.Set("REF_NO", m[1])
		rec.Set("FROM_ACCOUNT", m[2])
		rec.Set("ENTITY", m[3])
		return true
	},
}

var vendorPay = &pattern{
	format:    FormatVendorPay,
	failure:   "VENDOR_PAY_PARSE_FAILED",
	cleaner:   trimBoth,
	recognize: vendorPayRecognize.MatchString,
	parse: func(norm string, rec *record.Record) bool {
		m := vendorPayParse.FindStringSubmatch(norm)
		if m == nil {
			return false
		}
		rec.Set(record.KeyTransType, "VENDOR_PAY")
		rec.Set("COUNTERPARTY_NAME", m[1])
		rec.Set("MANAGER_NAME", m[2])
		rec.Set("VENDOR_PAY_ID", m[3])
		return true
	},
}

var webTransfer = &pattern{
	format:    FormatWebTransfer,
	failure:   "WEB_TRANSFER_PARSE_FAILED",
	cleaner:   trimEnds,
	recognize: webTransferRecognize.MatchString,
	parse: func(norm string, rec *record.Record) bool {
		m := webTransferParse.FindStringSubmatch(norm)
		if m == nil {
			return false
		}
		rec.Set(record.KeyTransType, "WEB_TRANSFER")
		rec.Set("CHANNEL", "WEB")
		rec.Set("SOURCE_REF", m[1])
		rec.Set("DESCRIPTION", m[2])
		rec.Set("REFERENCE_IDS", orEmpty(digitRun.FindAllString(m[3], -1)))
		rec.Set("RAW_REF", norm)
		return true
	},
}
