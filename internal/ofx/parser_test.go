package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Statement fixtures.
const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>OFFICE DEPOT #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2024012001
<NAME>Acme Supplies Inc
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20240125120000[0:GMT]
<TRNAMT>-500.00
<FITID>2024012501
<CHECKNUM>1234
<NAME>DEBIT
<MEMO>Globex Hosting
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240110120000[0:GMT]
<TRNAMT>-45.99
<FITID>CC2024011001
<NAME>POS PURCHASE GITHUB.COM
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-15.00
<FITID>CC2024011501
<NAME>Slack Technologies
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		ofxData       string
		expectedCount int
		expectedError bool
	}{
		{name: "bank statement", ofxData: sampleBankOFX, expectedCount: 3},
		{name: "credit card statement", ofxData: sampleCreditCardOFX, expectedCount: 2},
		{name: "invalid OFX data", ofxData: "not valid OFX", expectedError: true},
		{name: "empty input", ofxData: "", expectedError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := NewParser().Parse(context.Background(), strings.NewReader(tt.ofxData))

			if tt.expectedError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, rows, tt.expectedCount)
			for i, row := range rows {
				assert.Equal(t, i, row.Index)
				assert.Empty(t, row.Source)
			}
		})
	}
}

func TestParse_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewParser().Parse(ctx, strings.NewReader(sampleBankOFX))
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseBankRows(t *testing.T) {
	rows, err := NewParser().Parse(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	first := rows[0]
	assert.Equal(t, "OFFICE DEPOT #1234", first.Vendor)
	assert.Equal(t, "USD", first.Currency)
	assert.Equal(t, "25.5", first.AmountString())
	assert.Equal(t, "2024011501", first.Extra["fitid"])
	assert.Equal(t, "1234567890", first.Extra["account"])
	require.NotNil(t, first.Date)
	assert.Equal(t, 2024, first.Date.Year())
	assert.Equal(t, time.January, first.Date.Month())
	assert.Equal(t, 15, first.Date.Day())

	assert.Equal(t, "Acme Supplies Inc", rows[1].Vendor)
	assert.Equal(t, "125", rows[1].AmountString())

	// Generic NAME falls back to MEMO.
	assert.Equal(t, "Globex Hosting", rows[2].Vendor)
	assert.Equal(t, "500", rows[2].AmountString())
}

func TestParseCreditCardRows(t *testing.T) {
	rows, err := NewParser().Parse(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "GITHUB.COM", rows[0].Vendor)
	assert.Equal(t, "45.99", rows[0].AmountString())
	assert.Equal(t, "4111111111111111", rows[0].Extra["account"])

	assert.Equal(t, "Slack Technologies", rows[1].Vendor)
	assert.Equal(t, "15", rows[1].AmountString())
}

func TestExtractMerchantName(t *testing.T) {
	tests := []struct {
		name     string
		tx       ofxgo.Transaction
		expected string
	}{
		{
			name:     "remove POS prefix",
			tx:       ofxgo.Transaction{Name: "POS PURCHASE OFFICE DEPOT"},
			expected: "OFFICE DEPOT",
		},
		{
			name:     "remove debit card prefix",
			tx:       ofxgo.Transaction{Name: "DEBIT CARD PURCHASE ACME SUPPLIES"},
			expected: "ACME SUPPLIES",
		},
		{
			name:     "strip posting date",
			tx:       ofxgo.Transaction{Name: "PURCHASE AUTHORIZED ON 01/15 GLOBEX"},
			expected: "GLOBEX",
		},
		{
			name:     "payee wins",
			tx:       ofxgo.Transaction{Name: "POS TRANSACTION", Payee: &ofxgo.Payee{Name: "Initech LLC"}},
			expected: "Initech LLC",
		},
		{
			name:     "memo replaces generic name",
			tx:       ofxgo.Transaction{Name: "PAYMENT", Memo: "Umbrella Corp"},
			expected: "Umbrella Corp",
		},
		{
			name:     "trim whitespace",
			tx:       ofxgo.Transaction{Name: "  Slack Technologies  "},
			expected: "Slack Technologies",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractMerchantName(tt.tx))
		})
	}
}

func TestRowHashIgnoresIndex(t *testing.T) {
	parser := NewParser()
	a, err := parser.Parse(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	b, err := parser.Parse(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)

	assert.Equal(t, a[0].Hash(), b[0].Hash())
	assert.NotEqual(t, a[0].Hash(), a[1].Hash())
}
