// Package importer maps header-keyed spreadsheet rows into RawTransaction
// records. This is the only place statement column names are known; nothing
// past this boundary sees them.
package importer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/transactwise/backend/internal/model"
	"github.com/transactwise/backend/internal/spreadsheet"
)

// Statement export column names.
const (
	colDate           = "TransactionDate"
	colStatementAs    = "Appears On Your Statement As"
	colDescription    = "Description"
	colAmount         = "Amount"
	colCategory       = "Category"
	colPaymentAccount = "Payment Account"
)

// ErrNoValidRows is returned when nothing usable survives the mapping.
var ErrNoValidRows = errors.New("no valid transaction rows in upload")

// Transactions maps spreadsheet rows to RawTransaction records. The
// "appears on statement as" text takes priority over the description column
// as the canonical matching text. Rows missing a date or amount are dropped;
// if every row drops, the upload is an input error.
func Transactions(rows []spreadsheet.Row) ([]model.RawTransaction, error) {
	raws := make([]model.RawTransaction, 0, len(rows))
	for _, row := range rows {
		description := row[colStatementAs]
		if description == "" {
			description = row[colDescription]
		}
		date := row[colDate]
		amountText := row[colAmount]
		if date == "" || amountText == "" || description == "" {
			continue
		}
		amount, err := parseAmount(amountText)
		if err != nil {
			continue
		}
		raws = append(raws, model.RawTransaction{
			Date:           date,
			Description:    description,
			Amount:         amount,
			Category:       row[colCategory],
			PaymentAccount: row[colPaymentAccount],
		})
	}
	if len(raws) == 0 {
		return nil, ErrNoValidRows
	}
	return raws, nil
}

// parseAmount tolerates currency symbols, thousands separators and
// accounting-style parentheses for negatives.
func parseAmount(text string) (float64, error) {
	s := strings.TrimSpace(text)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", text, err)
	}
	if negative {
		d = d.Neg()
	}
	return d.InexactFloat64(), nil
}

// Export column names for confirmed-transaction downloads.
var exportHeaders = []string{"Date", "Description", "Amount", "Entity", "Account", "Memo"}

// ExportRows converts confirmed transactions into spreadsheet rows for
// download.
func ExportRows(confirmed []*model.ReviewedTransaction) ([]string, []spreadsheet.Row) {
	rows := make([]spreadsheet.Row, len(confirmed))
	for i, t := range confirmed {
		rows[i] = spreadsheet.Row{
			"Date":        t.Date,
			"Description": t.Description,
			"Amount":      decimal.NewFromFloat(t.Amount).StringFixed(2),
			"Entity":      t.MatchedEntityName,
			"Account":     t.MatchedAccountName,
			"Memo":        t.Memo,
		}
	}
	return append([]string(nil), exportHeaders...), rows
}
