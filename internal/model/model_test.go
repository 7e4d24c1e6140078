package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChartOfAccountDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		account ChartOfAccount
		want    string
	}{
		{
			name:    "number and name",
			account: ChartOfAccount{AccountName: "Travel", AccountNumber: "5000"},
			want:    "5000 Travel",
		},
		{
			name:    "name only",
			account: ChartOfAccount{AccountName: "Travel"},
			want:    "Travel",
		},
		{
			name: "full sub-account",
			account: ChartOfAccount{
				AccountName: "Travel", AccountNumber: "5000",
				SubAccountName: "Airfare", SubAccountNumber: "5000.1",
			},
			want: "5000 Travel: 5000.1 Airfare",
		},
		{
			name: "sub-account without number",
			account: ChartOfAccount{
				AccountName: "Travel", AccountNumber: "5000", SubAccountName: "Airfare",
			},
			want: "5000 Travel: Airfare",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.account.DisplayName())
		})
	}
}

func TestParseReviewStatus(t *testing.T) {
	for _, valid := range []string{"unmatched", "matched", "edited", "confirmed"} {
		got, err := ParseReviewStatus(valid)
		require.NoError(t, err)
		assert.Equal(t, ReviewStatus(valid), got)
	}

	_, err := ParseReviewStatus("pending")
	assert.Error(t, err)
	_, err = ParseReviewStatus("")
	assert.Error(t, err)
}

func TestPersistableStripsReviewFields(t *testing.T) {
	row := &ReviewedTransaction{
		ID:                 "temp-0",
		CompanyID:          "co1",
		Date:               "2024-01-02",
		Description:        "Coffee",
		Amount:             -4.5,
		Memo:               "team",
		Category:           "Dining",
		PaymentAccount:     "Visa 1234",
		VendorID:           "v1",
		ChartOfAccountID:   "a1",
		MatchedEntityName:  "Starbucks",
		MatchedAccountName: "6400 Meals",
		Status:             StatusMatched,
	}

	tx := row.Persistable()
	assert.Equal(t, "temp-0", tx.ID)
	assert.Equal(t, "co1", tx.CompanyID)
	assert.Equal(t, "Coffee", tx.Description)
	assert.Equal(t, -4.5, tx.Amount)
	assert.Equal(t, "team", tx.Memo)
	assert.Equal(t, "v1", tx.VendorID)
	assert.Equal(t, "a1", tx.ChartOfAccountID)
}
