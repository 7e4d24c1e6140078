// Package store defines the document store interface backing the bookkeeping
// data, with a Firestore implementation for production and an in-memory
// implementation for tests and local development.
package store

import (
	"context"
	"errors"

	"github.com/transactwise/backend/internal/model"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// Collection names one of the per-company document collections.
type Collection string

const (
	CollectionVendors         Collection = "vendors"
	CollectionCustomers       Collection = "customers"
	CollectionChartOfAccounts Collection = "chartOfAccounts"
	CollectionTransactions    Collection = "transactions"
)

// OpKind is the write operation type inside a batch.
type OpKind int

const (
	// OpSet creates or fully replaces a document.
	OpSet OpKind = iota
	// OpMerge updates only the provided fields, creating the document if
	// it does not exist.
	OpMerge
	// OpDelete removes a document.
	OpDelete
)

// WriteOp is a single write inside an atomic batch. For OpSet, Data holds the
// full document and DocID may be empty to request a generated ID. For
// OpMerge, Fields holds the field paths to merge. For OpDelete only DocID is
// consulted.
type WriteOp struct {
	Collection Collection
	CompanyID  string
	DocID      string
	Kind       OpKind
	Data       any
	Fields     map[string]any
}

// Store is the document store contract used by every component. All
// collections are scoped by owning user and company; reads are whole-
// collection (a company's dataset is bounded and small). Updates carry merge
// semantics so concurrent writers only clobber the fields they touch.
type Store interface {
	// Company operations
	CreateCompany(ctx context.Context, userID string, company *model.Company) error
	GetCompany(ctx context.Context, userID, companyID string) (*model.Company, error)
	ListCompanies(ctx context.Context, userID string) ([]*model.Company, error)

	// Vendor operations
	ListVendors(ctx context.Context, userID, companyID string) ([]*model.Vendor, error)
	CreateVendor(ctx context.Context, userID string, vendor *model.Vendor) error
	UpdateVendor(ctx context.Context, userID string, vendor *model.Vendor) error
	DeleteVendor(ctx context.Context, userID, companyID, vendorID string) error

	// Customer operations
	ListCustomers(ctx context.Context, userID, companyID string) ([]*model.Customer, error)
	CreateCustomer(ctx context.Context, userID string, customer *model.Customer) error
	UpdateCustomer(ctx context.Context, userID string, customer *model.Customer) error
	DeleteCustomer(ctx context.Context, userID, companyID, customerID string) error

	// Chart of accounts operations
	ListAccounts(ctx context.Context, userID, companyID string) ([]*model.ChartOfAccount, error)
	CreateAccount(ctx context.Context, userID string, account *model.ChartOfAccount) error
	UpdateAccount(ctx context.Context, userID string, account *model.ChartOfAccount) error
	DeleteAccount(ctx context.Context, userID, companyID, accountID string) error

	// Transaction operations
	ListTransactions(ctx context.Context, userID, companyID string) ([]*model.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, companyID, transactionID string) error

	// CommitBatch applies ops as a single atomic write. Callers must keep
	// len(ops) within the backend's per-batch limit; BulkWriter handles
	// the chunking.
	CommitBatch(ctx context.Context, userID string, ops []WriteOp) error
}
