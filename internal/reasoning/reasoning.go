// Package reasoning owns the contract with the LLM used for transaction
// matching, account interlinking and chart-of-accounts generation: the
// request payloads, the strict response schemas and their validation, and
// the Gemini-backed client.
package reasoning

import (
	"context"
	"fmt"
)

// Service is the reasoning-service contract consumed by the matching and
// interlink engines and the account-generation flow. Implementations must
// either return a response that passed schema validation or an error;
// partially valid output is never surfaced.
type Service interface {
	MatchTransactions(ctx context.Context, req *MatchRequest) (*MatchResponse, error)
	InterlinkAccounts(ctx context.Context, req *InterlinkRequest) (*InterlinkResponse, error)
	GenerateChartOfAccounts(ctx context.Context, req *GenerateCOARequest) (*GenerateCOAResponse, error)
}

// TransactionPayload is the slice of a raw transaction the model sees.
type TransactionPayload struct {
	Index       int     `json:"index"`
	Date        string  `json:"date,omitempty"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// VendorPayload restricts a vendor to the fields relevant for matching.
type VendorPayload struct {
	ID                      string `json:"id"`
	VendorName              string `json:"vendorName"`
	DefaultExpenseAccount   string `json:"defaultExpenseAccount,omitempty"`
	DefaultExpenseAccountID string `json:"defaultExpenseAccountId,omitempty"`
}

// CustomerPayload restricts a customer to the fields relevant for matching.
type CustomerPayload struct {
	ID                      string `json:"id"`
	CustomerName            string `json:"customerName"`
	DefaultRevenueAccount   string `json:"defaultRevenueAccount,omitempty"`
	DefaultRevenueAccountID string `json:"defaultRevenueAccountId,omitempty"`
}

// AccountPayload restricts a chart of accounts row to the fields relevant
// for matching and interlinking.
type AccountPayload struct {
	ID               string `json:"id"`
	AccountName      string `json:"accountName"`
	AccountNumber    string `json:"accountNumber,omitempty"`
	SubAccountName   string `json:"subAccountName,omitempty"`
	SubAccountNumber string `json:"subAccountNumber,omitempty"`
}

// MatchRequest carries everything the model needs to align statement text
// with the candidate entity lists.
type MatchRequest struct {
	Transactions    []TransactionPayload `json:"transactions"`
	Vendors         []VendorPayload      `json:"vendors"`
	Customers       []CustomerPayload    `json:"customers"`
	ChartOfAccounts []AccountPayload     `json:"chartOfAccounts"`
}

// MatchedTransaction references an input transaction by its original array
// index. At most one of VendorID/CustomerID is set.
type MatchedTransaction struct {
	RawTransactionIndex int    `json:"rawTransactionIndex"`
	VendorID            string `json:"vendorId,omitempty"`
	CustomerID          string `json:"customerId,omitempty"`
	ChartOfAccountID    string `json:"chartOfAccountId,omitempty"`
}

// MatchResponse is the strict schema expected from a matching call.
type MatchResponse struct {
	MatchedTransactions []MatchedTransaction `json:"matchedTransactions"`
}

// Validate enforces the index contract against an input of n transactions:
// every referenced index must be in range and unique, and an entry may name
// at most one entity. Violations fail the whole call.
func (r *MatchResponse) Validate(n int) error {
	seen := make(map[int]bool, len(r.MatchedTransactions))
	for i, m := range r.MatchedTransactions {
		if m.RawTransactionIndex < 0 || m.RawTransactionIndex >= n {
			return &Error{
				Code:    ErrInvalidResponse,
				Message: fmt.Sprintf("entry %d references transaction index %d, input has %d", i, m.RawTransactionIndex, n),
			}
		}
		if seen[m.RawTransactionIndex] {
			return &Error{
				Code:    ErrInvalidResponse,
				Message: fmt.Sprintf("duplicate transaction index %d", m.RawTransactionIndex),
			}
		}
		seen[m.RawTransactionIndex] = true
		if m.VendorID != "" && m.CustomerID != "" {
			return &Error{
				Code:    ErrInvalidResponse,
				Message: fmt.Sprintf("entry for index %d names both a vendor and a customer", m.RawTransactionIndex),
			}
		}
	}
	return nil
}

// InterlinkRequest carries the entity and account lists for interlinking.
type InterlinkRequest struct {
	Vendors         []VendorPayload   `json:"vendors"`
	Customers       []CustomerPayload `json:"customers"`
	ChartOfAccounts []AccountPayload  `json:"chartOfAccounts"`
}

// VendorLink pairs a vendor with its matched account.
type VendorLink struct {
	VendorID         string `json:"vendorId"`
	ChartOfAccountID string `json:"chartOfAccountId"`
}

// CustomerLink pairs a customer with its matched account.
type CustomerLink struct {
	CustomerID       string `json:"customerId"`
	ChartOfAccountID string `json:"chartOfAccountId"`
}

// InterlinkResponse is the strict schema expected from an interlink call.
// Entities with empty or unmatchable default-account text are simply absent.
type InterlinkResponse struct {
	VendorLinks   []VendorLink   `json:"vendorLinks"`
	CustomerLinks []CustomerLink `json:"customerLinks"`
}

// Validate rejects structurally incomplete links; at most one link per
// entity is allowed.
func (r *InterlinkResponse) Validate() error {
	seenVendors := make(map[string]bool, len(r.VendorLinks))
	for i, l := range r.VendorLinks {
		if l.VendorID == "" || l.ChartOfAccountID == "" {
			return &Error{
				Code:    ErrInvalidResponse,
				Message: fmt.Sprintf("vendor link %d is missing an id", i),
			}
		}
		if seenVendors[l.VendorID] {
			return &Error{
				Code:    ErrInvalidResponse,
				Message: fmt.Sprintf("duplicate vendor link for %s", l.VendorID),
			}
		}
		seenVendors[l.VendorID] = true
	}
	seenCustomers := make(map[string]bool, len(r.CustomerLinks))
	for i, l := range r.CustomerLinks {
		if l.CustomerID == "" || l.ChartOfAccountID == "" {
			return &Error{
				Code:    ErrInvalidResponse,
				Message: fmt.Sprintf("customer link %d is missing an id", i),
			}
		}
		if seenCustomers[l.CustomerID] {
			return &Error{
				Code:    ErrInvalidResponse,
				Message: fmt.Sprintf("duplicate customer link for %s", l.CustomerID),
			}
		}
		seenCustomers[l.CustomerID] = true
	}
	return nil
}

// GenerateCOARequest asks for a starting chart of accounts for an industry.
type GenerateCOARequest struct {
	Industry string `json:"industry"`
}

// SuggestedAccount is one generated chart of accounts row.
type SuggestedAccount struct {
	AccountName        string `json:"accountName"`
	AccountType        string `json:"accountType"`
	AccountDescription string `json:"accountDescription"`
}

// GenerateCOAResponse is the strict schema expected from an account
// generation call.
type GenerateCOAResponse struct {
	Accounts []SuggestedAccount `json:"accounts"`
}

var validAccountTypes = map[string]bool{
	"Asset":     true,
	"Liability": true,
	"Equity":    true,
	"Revenue":   true,
	"Expense":   true,
}

// Validate rejects empty output, blank names, unknown account types and
// duplicate account names. Violations fail the whole call.
func (r *GenerateCOAResponse) Validate() error {
	if len(r.Accounts) == 0 {
		return &Error{Code: ErrInvalidResponse, Message: "no accounts generated"}
	}
	seen := make(map[string]bool, len(r.Accounts))
	for i, a := range r.Accounts {
		if a.AccountName == "" {
			return &Error{
				Code:    ErrInvalidResponse,
				Message: fmt.Sprintf("account %d has no name", i),
			}
		}
		if !validAccountTypes[a.AccountType] {
			return &Error{
				Code:    ErrInvalidResponse,
				Message: fmt.Sprintf("account %q has unknown type %q", a.AccountName, a.AccountType),
			}
		}
		if seen[a.AccountName] {
			return &Error{
				Code:    ErrInvalidResponse,
				Message: fmt.Sprintf("duplicate account %q", a.AccountName),
			}
		}
		seen[a.AccountName] = true
	}
	return nil
}
