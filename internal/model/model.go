// Package model defines the domain records shared across the matching,
// review and persistence layers. Spreadsheet column names never leak past
// the importer boundary; everything here is a fixed internal type.
package model

import (
	"fmt"
	"strings"
)

// Vendor is a supplier record scoped to a company.
// DefaultExpenseAccount is free text captured at import time and used as a
// matching hint; DefaultExpenseAccountID is the resolved link, written by the
// interlink flow. The link is weak: the target account may have been deleted.
type Vendor struct {
	ID                      string `firestore:"-" json:"id"`
	CompanyID               string `firestore:"companyId" json:"companyId"`
	VendorName              string `firestore:"vendorName" json:"vendorName"`
	ContactEmail            string `firestore:"contactEmail,omitempty" json:"contactEmail,omitempty"`
	DefaultExpenseAccount   string `firestore:"defaultExpenseAccount,omitempty" json:"defaultExpenseAccount,omitempty"`
	DefaultExpenseAccountID string `firestore:"defaultExpenseAccountId,omitempty" json:"defaultExpenseAccountId,omitempty"`
}

// Customer mirrors Vendor for the revenue side.
type Customer struct {
	ID                      string `firestore:"-" json:"id"`
	CompanyID               string `firestore:"companyId" json:"companyId"`
	CustomerName            string `firestore:"customerName" json:"customerName"`
	ContactEmail            string `firestore:"contactEmail,omitempty" json:"contactEmail,omitempty"`
	DefaultRevenueAccount   string `firestore:"defaultRevenueAccount,omitempty" json:"defaultRevenueAccount,omitempty"`
	DefaultRevenueAccountID string `firestore:"defaultRevenueAccountId,omitempty" json:"defaultRevenueAccountId,omitempty"`
}

// ChartOfAccount is one row of the ledger account taxonomy. A sub-account is
// a one-level nesting used for display composition and as an extra matching
// signal; it is never a separate document. DefaultVendorID/DefaultCustomerID
// are the back-links written by the interlink flow.
type ChartOfAccount struct {
	ID                string `firestore:"-" json:"id"`
	CompanyID         string `firestore:"companyId" json:"companyId"`
	AccountName       string `firestore:"accountName" json:"accountName"`
	AccountNumber     string `firestore:"accountNumber,omitempty" json:"accountNumber,omitempty"`
	AccountType       string `firestore:"accountType,omitempty" json:"accountType,omitempty"`
	Description       string `firestore:"description,omitempty" json:"description,omitempty"`
	SubAccountName    string `firestore:"subAccountName,omitempty" json:"subAccountName,omitempty"`
	SubAccountNumber  string `firestore:"subAccountNumber,omitempty" json:"subAccountNumber,omitempty"`
	DefaultVendorID   string `firestore:"defaultVendorId,omitempty" json:"defaultVendorId,omitempty"`
	DefaultCustomerID string `firestore:"defaultCustomerId,omitempty" json:"defaultCustomerId,omitempty"`
}

// DisplayName composes the account label shown in review tables and exports:
// "5000 Travel" or "5000 Travel: 5000.1 Airfare".
func (a *ChartOfAccount) DisplayName() string {
	var b strings.Builder
	if a.AccountNumber != "" {
		b.WriteString(a.AccountNumber)
		b.WriteString(" ")
	}
	b.WriteString(a.AccountName)
	if a.SubAccountName != "" {
		b.WriteString(": ")
		if a.SubAccountNumber != "" {
			b.WriteString(a.SubAccountNumber)
			b.WriteString(" ")
		}
		b.WriteString(a.SubAccountName)
	}
	return b.String()
}

// Company groups the per-tenant collections.
type Company struct {
	ID     string `firestore:"-" json:"id"`
	Name   string `firestore:"name" json:"name"`
	UserID string `firestore:"userId" json:"userId"`
}

// RawTransaction is an immutable row extracted from an uploaded statement.
// Category and PaymentAccount are carried through untouched; the matcher
// never interprets them.
type RawTransaction struct {
	Date           string  `json:"date"`
	Description    string  `json:"description"`
	Amount         float64 `json:"amount"`
	Category       string  `json:"category,omitempty"`
	PaymentAccount string  `json:"paymentAccount,omitempty"`
}

// ReviewStatus tracks a working-set row through the review lifecycle.
type ReviewStatus string

const (
	StatusUnmatched ReviewStatus = "unmatched"
	StatusMatched   ReviewStatus = "matched"
	StatusEdited    ReviewStatus = "edited"
	StatusConfirmed ReviewStatus = "confirmed"
)

// ReviewedTransaction is the working-set record derived 1:1 from a
// RawTransaction. MatchedEntityName and MatchedAccountName are denormalized
// for display only and are stripped before persistence, along with Status.
type ReviewedTransaction struct {
	ID                 string       `json:"id"`
	CompanyID          string       `json:"companyId"`
	Date               string       `json:"date"`
	Description        string       `json:"description"`
	Amount             float64      `json:"amount"`
	Memo               string       `json:"memo,omitempty"`
	Category           string       `json:"category,omitempty"`
	PaymentAccount     string       `json:"paymentAccount,omitempty"`
	VendorID           string       `json:"vendorId,omitempty"`
	CustomerID         string       `json:"customerId,omitempty"`
	ChartOfAccountID   string       `json:"chartOfAccountId,omitempty"`
	MatchedEntityName  string       `json:"matchedEntityName,omitempty"`
	MatchedAccountName string       `json:"matchedAccountName,omitempty"`
	Status             ReviewStatus `json:"status"`
}

// Transaction is the durable form of a confirmed ReviewedTransaction.
type Transaction struct {
	ID               string  `firestore:"-" json:"id"`
	CompanyID        string  `firestore:"companyId" json:"companyId"`
	Date             string  `firestore:"date" json:"date"`
	Description      string  `firestore:"description" json:"description"`
	Amount           float64 `firestore:"amount" json:"amount"`
	Memo             string  `firestore:"memo,omitempty" json:"memo,omitempty"`
	VendorID         string  `firestore:"vendorId,omitempty" json:"vendorId,omitempty"`
	CustomerID       string  `firestore:"customerId,omitempty" json:"customerId,omitempty"`
	ChartOfAccountID string  `firestore:"chartOfAccountId,omitempty" json:"chartOfAccountId,omitempty"`
}

// Persistable strips the UI-only fields from a reviewed row.
func (t *ReviewedTransaction) Persistable() *Transaction {
	return &Transaction{
		ID:               t.ID,
		CompanyID:        t.CompanyID,
		Date:             t.Date,
		Description:      t.Description,
		Amount:           t.Amount,
		Memo:             t.Memo,
		VendorID:         t.VendorID,
		CustomerID:       t.CustomerID,
		ChartOfAccountID: t.ChartOfAccountID,
	}
}

func (s ReviewStatus) Valid() bool {
	switch s {
	case StatusUnmatched, StatusMatched, StatusEdited, StatusConfirmed:
		return true
	}
	return false
}

// ParseReviewStatus converts a wire value into a ReviewStatus.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	st := ReviewStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown review status %q", s)
	}
	return st, nil
}
