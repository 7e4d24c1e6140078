package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/transactwise/backend/internal/model"
)

// MemoryStore implements the Store interface with in-memory storage. It is
// used for tests and local development so the full flow runs without a
// Firestore project.
type MemoryStore struct {
	mu sync.RWMutex

	companies    map[string]*model.Company        // keyed by userID/companyID
	vendors      map[string]*model.Vendor         // keyed by userID/companyID/docID
	customers    map[string]*model.Customer       //
	accounts     map[string]*model.ChartOfAccount //
	transactions map[string]*model.Transaction    //

	// commitHook, when set, runs before a batch is applied; returning an
	// error fails the batch without applying any of its writes. Tests use
	// it to simulate partial bulk-write failures.
	commitHook func(ops []WriteOp) error
	batches    int
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		companies:    make(map[string]*model.Company),
		vendors:      make(map[string]*model.Vendor),
		customers:    make(map[string]*model.Customer),
		accounts:     make(map[string]*model.ChartOfAccount),
		transactions: make(map[string]*model.Transaction),
	}
}

// SetCommitHook installs a pre-commit hook for batch writes.
func (s *MemoryStore) SetCommitHook(hook func(ops []WriteOp) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitHook = hook
}

// CommittedBatches reports how many batches have been committed.
func (s *MemoryStore) CommittedBatches() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batches
}

func docKey(userID, companyID, docID string) string {
	return userID + "/" + companyID + "/" + docID
}

func companyKey(userID, companyID string) string {
	return userID + "/" + companyID
}

// CreateCompany creates a company record.
func (s *MemoryStore) CreateCompany(ctx context.Context, userID string, company *model.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	c := *company
	s.companies[companyKey(userID, company.ID)] = &c
	return nil
}

// GetCompany retrieves a company record.
func (s *MemoryStore) GetCompany(ctx context.Context, userID, companyID string) (*model.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	company, ok := s.companies[companyKey(userID, companyID)]
	if !ok {
		return nil, fmt.Errorf("company %s: %w", companyID, ErrNotFound)
	}
	c := *company
	return &c, nil
}

// ListCompanies lists companies for a user.
func (s *MemoryStore) ListCompanies(ctx context.Context, userID string) ([]*model.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var companies []*model.Company
	for key, company := range s.companies {
		if key == companyKey(userID, company.ID) {
			c := *company
			companies = append(companies, &c)
		}
	}
	sort.Slice(companies, func(i, j int) bool { return companies[i].Name < companies[j].Name })
	return companies, nil
}

// ListVendors lists a company's vendors sorted by name.
func (s *MemoryStore) ListVendors(ctx context.Context, userID, companyID string) ([]*model.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var vendors []*model.Vendor
	prefix := companyKey(userID, companyID) + "/"
	for key, vendor := range s.vendors {
		if key == prefix+vendor.ID {
			v := *vendor
			vendors = append(vendors, &v)
		}
	}
	sort.Slice(vendors, func(i, j int) bool { return vendors[i].VendorName < vendors[j].VendorName })
	return vendors, nil
}

// CreateVendor creates a vendor record.
func (s *MemoryStore) CreateVendor(ctx context.Context, userID string, vendor *model.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if vendor.ID == "" {
		vendor.ID = uuid.New().String()
	}
	v := *vendor
	s.vendors[docKey(userID, vendor.CompanyID, vendor.ID)] = &v
	return nil
}

// UpdateVendor replaces a vendor record.
func (s *MemoryStore) UpdateVendor(ctx context.Context, userID string, vendor *model.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := *vendor
	s.vendors[docKey(userID, vendor.CompanyID, vendor.ID)] = &v
	return nil
}

// DeleteVendor removes a vendor record.
func (s *MemoryStore) DeleteVendor(ctx context.Context, userID, companyID, vendorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vendors, docKey(userID, companyID, vendorID))
	return nil
}

// ListCustomers lists a company's customers sorted by name.
func (s *MemoryStore) ListCustomers(ctx context.Context, userID, companyID string) ([]*model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var customers []*model.Customer
	prefix := companyKey(userID, companyID) + "/"
	for key, customer := range s.customers {
		if key == prefix+customer.ID {
			c := *customer
			customers = append(customers, &c)
		}
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].CustomerName < customers[j].CustomerName })
	return customers, nil
}

// CreateCustomer creates a customer record.
func (s *MemoryStore) CreateCustomer(ctx context.Context, userID string, customer *model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if customer.ID == "" {
		customer.ID = uuid.New().String()
	}
	c := *customer
	s.customers[docKey(userID, customer.CompanyID, customer.ID)] = &c
	return nil
}

// UpdateCustomer replaces a customer record.
func (s *MemoryStore) UpdateCustomer(ctx context.Context, userID string, customer *model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *customer
	s.customers[docKey(userID, customer.CompanyID, customer.ID)] = &c
	return nil
}

// DeleteCustomer removes a customer record.
func (s *MemoryStore) DeleteCustomer(ctx context.Context, userID, companyID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.customers, docKey(userID, companyID, customerID))
	return nil
}

// ListAccounts lists a company's chart of accounts sorted by account number.
func (s *MemoryStore) ListAccounts(ctx context.Context, userID, companyID string) ([]*model.ChartOfAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var accounts []*model.ChartOfAccount
	prefix := companyKey(userID, companyID) + "/"
	for key, account := range s.accounts {
		if key == prefix+account.ID {
			a := *account
			accounts = append(accounts, &a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].AccountNumber != accounts[j].AccountNumber {
			return accounts[i].AccountNumber < accounts[j].AccountNumber
		}
		return accounts[i].AccountName < accounts[j].AccountName
	})
	return accounts, nil
}

// CreateAccount creates a chart of accounts record.
func (s *MemoryStore) CreateAccount(ctx context.Context, userID string, account *model.ChartOfAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	a := *account
	s.accounts[docKey(userID, account.CompanyID, account.ID)] = &a
	return nil
}

// UpdateAccount replaces a chart of accounts record.
func (s *MemoryStore) UpdateAccount(ctx context.Context, userID string, account *model.ChartOfAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := *account
	s.accounts[docKey(userID, account.CompanyID, account.ID)] = &a
	return nil
}

// DeleteAccount removes a chart of accounts record.
func (s *MemoryStore) DeleteAccount(ctx context.Context, userID, companyID, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, docKey(userID, companyID, accountID))
	return nil
}

// ListTransactions lists a company's persisted transactions sorted by date.
func (s *MemoryStore) ListTransactions(ctx context.Context, userID, companyID string) ([]*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var transactions []*model.Transaction
	prefix := companyKey(userID, companyID) + "/"
	for key, tx := range s.transactions {
		if key == prefix+tx.ID {
			t := *tx
			transactions = append(transactions, &t)
		}
	}
	sort.Slice(transactions, func(i, j int) bool {
		if transactions[i].Date != transactions[j].Date {
			return transactions[i].Date < transactions[j].Date
		}
		return transactions[i].ID < transactions[j].ID
	})
	return transactions, nil
}

// DeleteTransaction removes a persisted transaction.
func (s *MemoryStore) DeleteTransaction(ctx context.Context, userID, companyID, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions, docKey(userID, companyID, transactionID))
	return nil
}

// CommitBatch validates every op, then applies them all under one lock so the
// batch is observed atomically, matching Firestore's per-batch guarantee.
func (s *MemoryStore) CommitBatch(ctx context.Context, userID string, ops []WriteOp) error {
	if len(ops) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commitHook != nil {
		if err := s.commitHook(ops); err != nil {
			return fmt.Errorf("commit batch of %d writes: %w", len(ops), err)
		}
	}

	// Validate before touching state; a bad op must not half-apply.
	for i := range ops {
		if err := s.validateOp(&ops[i]); err != nil {
			return fmt.Errorf("commit batch: op %d: %w", i, err)
		}
	}
	for i := range ops {
		s.applyOp(userID, &ops[i])
	}
	s.batches++
	return nil
}

func (s *MemoryStore) validateOp(op *WriteOp) error {
	switch op.Collection {
	case CollectionVendors, CollectionCustomers, CollectionChartOfAccounts, CollectionTransactions:
	default:
		return fmt.Errorf("unknown collection %q", op.Collection)
	}
	switch op.Kind {
	case OpSet:
		if op.Data == nil {
			return fmt.Errorf("set op without data")
		}
		switch op.Collection {
		case CollectionVendors:
			if _, ok := op.Data.(*model.Vendor); !ok {
				return fmt.Errorf("set op data is not a vendor")
			}
		case CollectionCustomers:
			if _, ok := op.Data.(*model.Customer); !ok {
				return fmt.Errorf("set op data is not a customer")
			}
		case CollectionChartOfAccounts:
			if _, ok := op.Data.(*model.ChartOfAccount); !ok {
				return fmt.Errorf("set op data is not a chart of account")
			}
		case CollectionTransactions:
			if _, ok := op.Data.(*model.Transaction); !ok {
				return fmt.Errorf("set op data is not a transaction")
			}
		}
	case OpMerge:
		if len(op.Fields) == 0 {
			return fmt.Errorf("merge op without fields")
		}
	case OpDelete:
		if op.DocID == "" {
			return fmt.Errorf("delete op without doc id")
		}
	default:
		return fmt.Errorf("unknown write op kind %d", op.Kind)
	}
	return nil
}

func (s *MemoryStore) applyOp(userID string, op *WriteOp) {
	if op.DocID == "" {
		op.DocID = uuid.New().String()
	}
	key := docKey(userID, op.CompanyID, op.DocID)

	switch op.Kind {
	case OpSet:
		switch op.Collection {
		case CollectionVendors:
			v := *op.Data.(*model.Vendor)
			v.ID = op.DocID
			s.vendors[key] = &v
		case CollectionCustomers:
			c := *op.Data.(*model.Customer)
			c.ID = op.DocID
			s.customers[key] = &c
		case CollectionChartOfAccounts:
			a := *op.Data.(*model.ChartOfAccount)
			a.ID = op.DocID
			s.accounts[key] = &a
		case CollectionTransactions:
			t := *op.Data.(*model.Transaction)
			t.ID = op.DocID
			s.transactions[key] = &t
		}
	case OpMerge:
		s.applyMerge(userID, op, key)
	case OpDelete:
		switch op.Collection {
		case CollectionVendors:
			delete(s.vendors, key)
		case CollectionCustomers:
			delete(s.customers, key)
		case CollectionChartOfAccounts:
			delete(s.accounts, key)
		case CollectionTransactions:
			delete(s.transactions, key)
		}
	}
}

// applyMerge implements merge semantics for the fields the interlink flow
// writes. Unknown fields are ignored rather than rejected, mirroring how a
// schemaless document store would absorb them.
func (s *MemoryStore) applyMerge(userID string, op *WriteOp, key string) {
	str := func(field string) (string, bool) {
		v, ok := op.Fields[field]
		if !ok {
			return "", false
		}
		sv, ok := v.(string)
		return sv, ok
	}

	switch op.Collection {
	case CollectionVendors:
		vendor, ok := s.vendors[key]
		if !ok {
			vendor = &model.Vendor{ID: op.DocID, CompanyID: op.CompanyID}
			s.vendors[key] = vendor
		}
		if v, ok := str("defaultExpenseAccountId"); ok {
			vendor.DefaultExpenseAccountID = v
		}
		if v, ok := str("defaultExpenseAccount"); ok {
			vendor.DefaultExpenseAccount = v
		}
	case CollectionCustomers:
		customer, ok := s.customers[key]
		if !ok {
			customer = &model.Customer{ID: op.DocID, CompanyID: op.CompanyID}
			s.customers[key] = customer
		}
		if v, ok := str("defaultRevenueAccountId"); ok {
			customer.DefaultRevenueAccountID = v
		}
		if v, ok := str("defaultRevenueAccount"); ok {
			customer.DefaultRevenueAccount = v
		}
	case CollectionChartOfAccounts:
		account, ok := s.accounts[key]
		if !ok {
			account = &model.ChartOfAccount{ID: op.DocID, CompanyID: op.CompanyID}
			s.accounts[key] = account
		}
		if v, ok := str("defaultVendorId"); ok {
			account.DefaultVendorID = v
		}
		if v, ok := str("defaultCustomerId"); ok {
			account.DefaultCustomerID = v
		}
	}
}
