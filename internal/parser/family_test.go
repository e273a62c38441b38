package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults(t *testing.T) Families {
	t.Helper()
	fs, err := DefaultFamilies()
	require.NoError(t, err)
	return fs
}

func TestWireFamily(t *testing.T) {
	text := "INDIVIDUAL INTERNATIONAL MONEY TRANSFER DEBIT ORIG BANK ABA = 071000288 ORIG BANK = BMO BANK NA TYP = C " +
		"REC BANK ABA = 026005092 REC BANK = WELLS FARGO BANK N FED REFERENCE = 004484 WIRE TYPE = FIO /AC-1 " +
		"SRC = FIOF448425112609001500 SBR = OLBB20251126704+ 0 PLANO TX 75093 US /AC-000003886256DD028 " +
		"IBK = WELLS FARGO BANK NA 375 PARK AVE NEW YORK CITY NY 10152 US /BC-PNBPUS3N NYC " +
		"BBK = BANCO DE LA PRODUCCION SA /BC-PRODECEQ BNF = MARTHA MOSQUERA NOTPROVIDED /AC-12673051647 OBI = ECUADOR CONTRACT"

	rec := defaults(t).Lookup("wire").Parse(text)

	assert.Equal(t, []string{
		"Meta", "ORIG BANK ABA", "ORIG BANK", "TYP", "REC BANK ABA", "REC BANK", "FED REFERENCE",
		"WIRE TYPE", "SRC", "SBR", "IBK", "BBK", "BNF", "OBI",
	}, rec.Keys())
	assert.Equal(t, "INDIVIDUAL INTERNATIONAL MONEY TRANSFER DEBIT", rec.String("Meta"))
	assert.Equal(t, "BMO BANK NA", rec.String("ORIG BANK"))
	assert.Equal(t, "004484", rec.String("FED REFERENCE"))
	assert.Equal(t, "FIO /AC-1", rec.String("WIRE TYPE"), "WIRE keys skip inline splitting")
	assert.Equal(t, "FIOF448425112609001500", rec.String("SRC"))

	sbr := rec.Nested("SBR")
	require.NotNil(t, sbr)
	assert.Equal(t, "OLBB20251126704+ 0 PLANO TX 75093 US", sbr.String("value"))
	assert.Equal(t, "000003886256DD028", sbr.String("/AC"))

	bnf := rec.Nested("BNF")
	require.NotNil(t, bnf)
	assert.Equal(t, []string{"value", "/AC"}, bnf.Keys())
	assert.Equal(t, "MARTHA MOSQUERA NOTPROVIDED", bnf.String("value"))

	assert.Equal(t, "PRODECEQ", rec.Nested("BBK").String("/BC"))
	assert.Equal(t, "ECUADOR CONTRACT", rec.String("OBI"))
}

func TestACHFamily(t *testing.T) {
	text := "ACME PAYROLL ORIG CO NAME : ACME CORP ORIG ID : 1234567890 SEC : PPD TRACE # : 021000021234567 " +
		"RECEIVER NAME : JOHN DOE REMAR K : SALARY JAN ACCT 5566"

	rec := defaults(t).Lookup("ach").Parse(text)

	assert.Equal(t, []string{"Meta", "ORIG CO NAME", "ORIG ID", "SEC", "TRACE", "RECEIVER NAME", "REMARK"}, rec.Keys())
	assert.Equal(t, "ACME PAYROLL", rec.String("Meta"))
	assert.Equal(t, "ACME CORP", rec.String("ORIG CO NAME"))
	assert.Equal(t, "PPD", rec.String("SEC"))
	assert.Equal(t, "021000021234567", rec.String("TRACE"))
	assert.Equal(t, "JOHN DOE", rec.String("RECEIVER NAME"))

	remark := rec.Nested("REMARK")
	require.NotNil(t, remark)
	assert.Equal(t, "SALARY JAN", remark.String("value"))
	assert.Equal(t, "5566", remark.String("ACCT"))
}

func TestSwiftFamily(t *testing.T) {
	text := "WIRE TRANSFER OUT B 00 ORIGINATOR : INNOVAIRRE HOLDING CO LLC AC/8612045257 " +
		"BENEFICIARY : BHAVYA KUMAR AC/910010016446103 M-1-303 BENEFICIARY BANK : AXIS BANK LIMITED " +
		"ABA : AXISINBB087 UETR : 6F2DE5AF-53A2"

	rec := defaults(t).Lookup("swift").Parse(text)

	assert.Equal(t, []string{"Meta", "ORIGINATOR", "BENEFICIARY", "BENEFICIARY BANK", "ABA", "UETR"}, rec.Keys())
	assert.Equal(t, "WIRE TRANSFER OUT B 00", rec.String("Meta"))

	orig := rec.Nested("ORIGINATOR")
	require.NotNil(t, orig)
	assert.Equal(t, "INNOVAIRRE HOLDING CO LLC", orig.String("value"))
	assert.Equal(t, "8612045257", orig.String("AC"))

	bene := rec.Nested("BENEFICIARY")
	require.NotNil(t, bene)
	assert.Equal(t, "BHAVYA KUMAR", bene.String("value"))
	assert.Equal(t, "910010016446103 M-1-303", bene.String("AC"))

	assert.Equal(t, "AXIS BANK LIMITED", rec.String("BENEFICIARY BANK"))
	assert.Equal(t, "6F2DE5AF-53A2", rec.String("UETR"))
}

func TestLookupFallsBack(t *testing.T) {
	fs := defaults(t)

	all := fs.Lookup("card")
	assert.Equal(t, Fallback, all.Name)
	assert.Contains(t, all.Keys, "COUNTERPARTY")
	assert.Contains(t, all.Keys, "ORIG BANK ABA")
	assert.Contains(t, all.Keys, "UETR")
	assert.Contains(t, all.Inline, "/BC")
	assert.Equal(t, "REMARK", all.Rename["R EMARK"])
	assert.Empty(t, all.Exempt)

	assert.Equal(t, []string{"ach", "all", "swift", "wire"}, fs.Names())
}

func TestLoadFamiliesErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not yaml", "wire: [\n"},
		{"missing fallback", "wire:\n  keys: [ABA]\n"},
		{"unknown include", "all:\n  include: [nope]\n  keys: [ABA]\n"},
		{"nested include", "a:\n  keys: [X]\nb:\n  include: [a]\nall:\n  include: [b]\n"},
		{"lower-case key", "all:\n  keys: [aba]\n"},
		{"no keys", "all:\n  inline: [AC]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFamilies([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedFamilies), "got %v", err)
		})
	}
}

func TestLoadFamiliesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "families.yaml")
	require.NoError(t, os.WriteFile(path, []byte("all:\n  keys: [ABA, NAME]\n"), 0o644))

	fs, err := LoadFamiliesFile(path)
	require.NoError(t, err)
	assert.Equal(t, KeySet{"NAME", "ABA"}, fs.Lookup("wire").Keys)

	_, err = LoadFamiliesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
