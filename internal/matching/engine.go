// Package matching turns raw statement rows into reviewed transactions by
// aligning them against the company's vendors, customers and chart of
// accounts. The fuzzy text work is delegated to the reasoning service; this
// package owns the request construction, the fallback and defaulting policy,
// and the translation of model output into domain objects.
package matching

import (
	"context"
	"fmt"

	"github.com/transactwise/backend/internal/entities"
	"github.com/transactwise/backend/internal/model"
	"github.com/transactwise/backend/internal/reasoning"
)

// Result is the per-input-index outcome of a matching run. All fields are
// optional; an empty Result is a normal unmatched row, not an error.
type Result struct {
	VendorID         string
	CustomerID       string
	ChartOfAccountID string
}

// Engine is the transaction matching engine.
type Engine struct {
	reasoner reasoning.Service
}

// NewEngine creates a matching engine on top of a reasoning service.
func NewEngine(reasoner reasoning.Service) *Engine {
	return &Engine{reasoner: reasoner}
}

// Match produces one Result per input row, positionally: results[i] always
// belongs to raws[i], even when descriptions repeat. A reasoning failure or
// schema violation fails the whole run; no partial automated matches are
// returned.
func (e *Engine) Match(ctx context.Context, raws []model.RawTransaction, snap *entities.Snapshot) ([]Result, error) {
	results := make([]Result, len(raws))
	if len(raws) == 0 {
		return results, nil
	}

	req := buildMatchRequest(raws, snap)
	resp, err := e.reasoner.MatchTransactions(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("match transactions: %w", err)
	}

	for _, m := range resp.MatchedTransactions {
		r := &results[m.RawTransactionIndex]

		// Dangling IDs from the model degrade to "no match".
		var entityName, defaultAccountID string
		if vendor := snap.VendorByID(m.VendorID); vendor != nil {
			r.VendorID = vendor.ID
			entityName = vendor.VendorName
			defaultAccountID = vendor.DefaultExpenseAccountID
		} else if customer := snap.CustomerByID(m.CustomerID); customer != nil {
			r.CustomerID = customer.ID
			entityName = customer.CustomerName
			defaultAccountID = customer.DefaultRevenueAccountID
		}

		r.ChartOfAccountID = resolveAccount(snap, raws[m.RawTransactionIndex].Description,
			entityName, defaultAccountID, m.ChartOfAccountID)
	}

	// Rows the model omitted still get an account-only inference pass.
	for i := range results {
		r := &results[i]
		if r.VendorID == "" && r.CustomerID == "" && r.ChartOfAccountID == "" {
			r.ChartOfAccountID = InferAccount(raws[i].Description, "", snap.Accounts)
		}
	}

	return results, nil
}

// resolveAccount applies the account resolution priority: the matched
// entity's own default-account link wins; then a valid model suggestion;
// then local keyword inference; otherwise the account stays unset.
func resolveAccount(snap *entities.Snapshot, description, entityName, defaultAccountID, suggestedID string) string {
	if account := snap.AccountByID(defaultAccountID); account != nil {
		return account.ID
	}
	if account := snap.AccountByID(suggestedID); account != nil {
		return account.ID
	}
	return InferAccount(description, entityName, snap.Accounts)
}

// BuildReviewed materializes the working-set rows for a matching run.
// Policy: a row with a matched entity is "matched" even when no account
// could be resolved; the account stays empty.
func BuildReviewed(companyID string, raws []model.RawTransaction, results []Result, snap *entities.Snapshot) []*model.ReviewedTransaction {
	rows := make([]*model.ReviewedTransaction, len(raws))
	for i, raw := range raws {
		row := &model.ReviewedTransaction{
			ID:             fmt.Sprintf("temp-%d", i),
			CompanyID:      companyID,
			Date:           raw.Date,
			Description:    raw.Description,
			Amount:         raw.Amount,
			Category:       raw.Category,
			PaymentAccount: raw.PaymentAccount,
			Status:         model.StatusUnmatched,
		}
		if results != nil {
			r := results[i]
			if vendor := snap.VendorByID(r.VendorID); vendor != nil {
				row.VendorID = vendor.ID
				row.MatchedEntityName = vendor.VendorName
				row.Status = model.StatusMatched
			} else if customer := snap.CustomerByID(r.CustomerID); customer != nil {
				row.CustomerID = customer.ID
				row.MatchedEntityName = customer.CustomerName
				row.Status = model.StatusMatched
			}
			if account := snap.AccountByID(r.ChartOfAccountID); account != nil {
				row.ChartOfAccountID = account.ID
				row.MatchedAccountName = account.DisplayName()
			}
		}
		rows[i] = row
	}
	return rows
}

func buildMatchRequest(raws []model.RawTransaction, snap *entities.Snapshot) *reasoning.MatchRequest {
	req := &reasoning.MatchRequest{
		Transactions:    make([]reasoning.TransactionPayload, len(raws)),
		Vendors:         make([]reasoning.VendorPayload, len(snap.Vendors)),
		Customers:       make([]reasoning.CustomerPayload, len(snap.Customers)),
		ChartOfAccounts: make([]reasoning.AccountPayload, len(snap.Accounts)),
	}
	for i, raw := range raws {
		req.Transactions[i] = reasoning.TransactionPayload{
			Index:       i,
			Date:        raw.Date,
			Description: raw.Description,
			Amount:      raw.Amount,
		}
	}
	for i, v := range snap.Vendors {
		req.Vendors[i] = reasoning.VendorPayload{
			ID:                      v.ID,
			VendorName:              v.VendorName,
			DefaultExpenseAccountID: v.DefaultExpenseAccountID,
		}
	}
	for i, c := range snap.Customers {
		req.Customers[i] = reasoning.CustomerPayload{
			ID:                      c.ID,
			CustomerName:            c.CustomerName,
			DefaultRevenueAccountID: c.DefaultRevenueAccountID,
		}
	}
	for i, a := range snap.Accounts {
		req.ChartOfAccounts[i] = reasoning.AccountPayload{
			ID:               a.ID,
			AccountName:      a.AccountName,
			AccountNumber:    a.AccountNumber,
			SubAccountName:   a.SubAccountName,
			SubAccountNumber: a.SubAccountNumber,
		}
	}
	return req
}
