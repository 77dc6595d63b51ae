// Package ofx reads OFX/QFX bank and credit-card statements into ledger rows.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tags at end of line that are missing their closing bracket.
	tagFixRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Parser implements OFX/QFX file parsing.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{logger: slog.Default().With("component", "ofx")}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// Parse reads every statement in the file and returns its transactions as
// ledger rows, numbered in file order. Statement rows carry no source label.
func (p *Parser) Parse(ctx context.Context, reader io.Reader) ([]model.LedgerRow, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var rows []model.LedgerRow
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		bankStmts++
		rows = p.appendTransactions(rows, stmt.BankTranList.Transactions, stmt.CurDef.String(), string(stmt.BankAcctFrom.AcctID))
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		ccStmts++
		rows = p.appendTransactions(rows, stmt.BankTranList.Transactions, stmt.CurDef.String(), string(stmt.CCAcctFrom.AcctID))
	}

	p.logger.Info("Parsed OFX file",
		"rows", len(rows),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return rows, nil
}

func (p *Parser) appendTransactions(rows []model.LedgerRow, txns []ofxgo.Transaction, currency, account string) []model.LedgerRow {
	for _, tx := range txns {
		row := p.convertTransaction(tx, currency, account)
		row.Index = len(rows)
		rows = append(rows, row)
	}
	return rows
}

// convertTransaction maps one statement transaction onto a ledger row.
// Amounts are unsigned: a ledger debit matches the positive invoice total.
func (p *Parser) convertTransaction(tx ofxgo.Transaction, currency, account string) model.LedgerRow {
	row := model.LedgerRow{
		Currency: strings.TrimSpace(currency),
		Vendor:   extractMerchantName(tx),
		Extra: map[string]string{
			"fitid":   string(tx.FiTID),
			"account": account,
			"type":    tx.TrnType.String(),
		},
	}
	if tx.Currency != nil && tx.Currency.CurSym.String() != "" {
		row.Currency = tx.Currency.CurSym.String()
	}

	if !tx.DtPosted.IsZero() {
		d := tx.DtPosted.Time
		row.Date = &d
	}

	if amount, err := decimal.NewFromString(tx.TrnAmt.FloatString(4)); err == nil {
		row.Amount = decimal.NewNullDecimal(amount.Abs())
	} else {
		p.logger.Warn("Unreadable OFX amount", "fitid", tx.FiTID, "error", err)
	}

	return row
}

var merchantPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// extractMerchantName picks the cleanest counterparty name the bank supplied.
func extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	upper := strings.ToUpper(name)
	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading "MM/DD " posting dates.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
