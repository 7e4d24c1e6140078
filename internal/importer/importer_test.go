package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transactwise/backend/internal/model"
	"github.com/transactwise/backend/internal/spreadsheet"
)

func TestTransactionsStatementTextTakesPriority(t *testing.T) {
	rows := []spreadsheet.Row{
		{
			colDate:        "2024-01-02",
			colStatementAs: "STARBUCKS COFFEE #123",
			colDescription: "Card purchase",
			colAmount:      "-4.50",
		},
		{
			colDate:        "2024-01-03",
			colDescription: "DELTA AIR 0123456789",
			colAmount:      "-420.00",
		},
	}
	raws, err := Transactions(rows)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "STARBUCKS COFFEE #123", raws[0].Description,
		"statement text outranks the description column")
	assert.Equal(t, "DELTA AIR 0123456789", raws[1].Description,
		"description is the fallback")
}

func TestTransactionsCarriesPassthroughColumns(t *testing.T) {
	rows := []spreadsheet.Row{{
		colDate:           "2024-01-02",
		colDescription:    "Coffee",
		colAmount:         "-4.50",
		colCategory:       "Dining",
		colPaymentAccount: "Visa 1234",
	}}
	raws, err := Transactions(rows)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, model.RawTransaction{
		Date:           "2024-01-02",
		Description:    "Coffee",
		Amount:         -4.5,
		Category:       "Dining",
		PaymentAccount: "Visa 1234",
	}, raws[0])
}

func TestTransactionsSkipsIncompleteRows(t *testing.T) {
	rows := []spreadsheet.Row{
		{colDate: "2024-01-02", colDescription: "Coffee", colAmount: "-4.50"},
		{colDescription: "No date", colAmount: "-1.00"},
		{colDate: "2024-01-03", colAmount: "-2.00"},
		{colDate: "2024-01-04", colDescription: "No amount"},
		{colDate: "2024-01-05", colDescription: "Bad amount", colAmount: "n/a"},
	}
	raws, err := Transactions(rows)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "Coffee", raws[0].Description)
}

func TestTransactionsNoValidRows(t *testing.T) {
	rows := []spreadsheet.Row{
		{colDescription: "No date", colAmount: "-1.00"},
		{colDate: "2024-01-03", colDescription: "Bad amount", colAmount: "oops"},
	}
	_, err := Transactions(rows)
	assert.ErrorIs(t, err, ErrNoValidRows)

	_, err = Transactions(nil)
	assert.ErrorIs(t, err, ErrNoValidRows)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		text    string
		want    float64
		wantErr bool
	}{
		{text: "12.34", want: 12.34},
		{text: "-12.34", want: -12.34},
		{text: "$1,234.56", want: 1234.56},
		{text: "(45.00)", want: -45},
		{text: "($1,000.00)", want: -1000},
		{text: " 7 ", want: 7},
		{text: "0", want: 0},
		{text: "n/a", wantErr: true},
		{text: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := parseAmount(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestExportRows(t *testing.T) {
	confirmed := []*model.ReviewedTransaction{
		{
			Date:               "2024-01-02",
			Description:        "STARBUCKS COFFEE #123",
			Amount:             -4.5,
			MatchedEntityName:  "Starbucks",
			MatchedAccountName: "6400 Meals",
			Memo:               "team coffee",
		},
		{
			Date:        "2024-01-04",
			Description: "ACME CORP PAYMENT",
			Amount:      1200,
		},
	}

	headers, rows := ExportRows(confirmed)
	assert.Equal(t, []string{"Date", "Description", "Amount", "Entity", "Account", "Memo"}, headers)
	require.Len(t, rows, 2)
	assert.Equal(t, "-4.50", rows[0]["Amount"], "amounts render with two decimals")
	assert.Equal(t, "Starbucks", rows[0]["Entity"])
	assert.Equal(t, "6400 Meals", rows[0]["Account"])
	assert.Equal(t, "team coffee", rows[0]["Memo"])
	assert.Equal(t, "1200.00", rows[1]["Amount"])
	assert.Equal(t, "", rows[1]["Entity"])
}
