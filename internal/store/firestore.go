package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/transactwise/backend/internal/model"
)

// FirestoreStore implements the Store interface using Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore-backed store.
func NewFirestoreStore(client *firestore.Client) Store {
	return &FirestoreStore{client: client}
}

// companies returns the companies collection for a user. All company-scoped
// data hangs off users/{uid}/companies/{cid}.
func (s *FirestoreStore) companies(userID string) *firestore.CollectionRef {
	return s.client.Collection("users").Doc(userID).Collection("companies")
}

func (s *FirestoreStore) collection(userID, companyID string, c Collection) *firestore.CollectionRef {
	return s.companies(userID).Doc(companyID).Collection(string(c))
}

// CreateCompany creates a new company document.
func (s *FirestoreStore) CreateCompany(ctx context.Context, userID string, company *model.Company) error {
	ref := s.companies(userID).Doc(company.ID)
	if company.ID == "" {
		ref = s.companies(userID).NewDoc()
		company.ID = ref.ID
	}
	_, err := ref.Set(ctx, company)
	return err
}

// GetCompany retrieves a company document.
func (s *FirestoreStore) GetCompany(ctx context.Context, userID, companyID string) (*model.Company, error) {
	doc, err := s.companies(userID).Doc(companyID).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", ErrNotFound)
	}
	var company model.Company
	if err := doc.DataTo(&company); err != nil {
		return nil, fmt.Errorf("parse company: %w", err)
	}
	company.ID = doc.Ref.ID
	return &company, nil
}

// ListCompanies lists all companies owned by a user.
func (s *FirestoreStore) ListCompanies(ctx context.Context, userID string) ([]*model.Company, error) {
	iter := s.companies(userID).Documents(ctx)
	defer iter.Stop()

	var companies []*model.Company
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list companies: %w", err)
		}
		var company model.Company
		if err := doc.DataTo(&company); err != nil {
			return nil, fmt.Errorf("parse company %s: %w", doc.Ref.ID, err)
		}
		company.ID = doc.Ref.ID
		companies = append(companies, &company)
	}
	return companies, nil
}

// ListVendors reads the whole vendors collection for a company.
func (s *FirestoreStore) ListVendors(ctx context.Context, userID, companyID string) ([]*model.Vendor, error) {
	iter := s.collection(userID, companyID, CollectionVendors).Documents(ctx)
	defer iter.Stop()

	var vendors []*model.Vendor
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list vendors: %w", err)
		}
		var vendor model.Vendor
		if err := doc.DataTo(&vendor); err != nil {
			return nil, fmt.Errorf("parse vendor %s: %w", doc.Ref.ID, err)
		}
		vendor.ID = doc.Ref.ID
		vendors = append(vendors, &vendor)
	}
	return vendors, nil
}

// CreateVendor creates a vendor document, generating an ID when none is set.
func (s *FirestoreStore) CreateVendor(ctx context.Context, userID string, vendor *model.Vendor) error {
	coll := s.collection(userID, vendor.CompanyID, CollectionVendors)
	ref := coll.Doc(vendor.ID)
	if vendor.ID == "" {
		ref = coll.NewDoc()
		vendor.ID = ref.ID
	}
	_, err := ref.Set(ctx, vendor)
	return err
}

// UpdateVendor replaces a vendor document.
func (s *FirestoreStore) UpdateVendor(ctx context.Context, userID string, vendor *model.Vendor) error {
	_, err := s.collection(userID, vendor.CompanyID, CollectionVendors).Doc(vendor.ID).Set(ctx, vendor)
	return err
}

// DeleteVendor removes a vendor document.
func (s *FirestoreStore) DeleteVendor(ctx context.Context, userID, companyID, vendorID string) error {
	_, err := s.collection(userID, companyID, CollectionVendors).Doc(vendorID).Delete(ctx)
	return err
}

// ListCustomers reads the whole customers collection for a company.
func (s *FirestoreStore) ListCustomers(ctx context.Context, userID, companyID string) ([]*model.Customer, error) {
	iter := s.collection(userID, companyID, CollectionCustomers).Documents(ctx)
	defer iter.Stop()

	var customers []*model.Customer
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list customers: %w", err)
		}
		var customer model.Customer
		if err := doc.DataTo(&customer); err != nil {
			return nil, fmt.Errorf("parse customer %s: %w", doc.Ref.ID, err)
		}
		customer.ID = doc.Ref.ID
		customers = append(customers, &customer)
	}
	return customers, nil
}

// CreateCustomer creates a customer document, generating an ID when none is set.
func (s *FirestoreStore) CreateCustomer(ctx context.Context, userID string, customer *model.Customer) error {
	coll := s.collection(userID, customer.CompanyID, CollectionCustomers)
	ref := coll.Doc(customer.ID)
	if customer.ID == "" {
		ref = coll.NewDoc()
		customer.ID = ref.ID
	}
	_, err := ref.Set(ctx, customer)
	return err
}

// UpdateCustomer replaces a customer document.
func (s *FirestoreStore) UpdateCustomer(ctx context.Context, userID string, customer *model.Customer) error {
	_, err := s.collection(userID, customer.CompanyID, CollectionCustomers).Doc(customer.ID).Set(ctx, customer)
	return err
}

// DeleteCustomer removes a customer document.
func (s *FirestoreStore) DeleteCustomer(ctx context.Context, userID, companyID, customerID string) error {
	_, err := s.collection(userID, companyID, CollectionCustomers).Doc(customerID).Delete(ctx)
	return err
}

// ListAccounts reads the whole chart of accounts for a company.
func (s *FirestoreStore) ListAccounts(ctx context.Context, userID, companyID string) ([]*model.ChartOfAccount, error) {
	iter := s.collection(userID, companyID, CollectionChartOfAccounts).Documents(ctx)
	defer iter.Stop()

	var accounts []*model.ChartOfAccount
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		var account model.ChartOfAccount
		if err := doc.DataTo(&account); err != nil {
			return nil, fmt.Errorf("parse account %s: %w", doc.Ref.ID, err)
		}
		account.ID = doc.Ref.ID
		accounts = append(accounts, &account)
	}
	return accounts, nil
}

// CreateAccount creates a chart of accounts document, generating an ID when none is set.
func (s *FirestoreStore) CreateAccount(ctx context.Context, userID string, account *model.ChartOfAccount) error {
	coll := s.collection(userID, account.CompanyID, CollectionChartOfAccounts)
	ref := coll.Doc(account.ID)
	if account.ID == "" {
		ref = coll.NewDoc()
		account.ID = ref.ID
	}
	_, err := ref.Set(ctx, account)
	return err
}

// UpdateAccount replaces a chart of accounts document.
func (s *FirestoreStore) UpdateAccount(ctx context.Context, userID string, account *model.ChartOfAccount) error {
	_, err := s.collection(userID, account.CompanyID, CollectionChartOfAccounts).Doc(account.ID).Set(ctx, account)
	return err
}

// DeleteAccount removes a chart of accounts document.
func (s *FirestoreStore) DeleteAccount(ctx context.Context, userID, companyID, accountID string) error {
	_, err := s.collection(userID, companyID, CollectionChartOfAccounts).Doc(accountID).Delete(ctx)
	return err
}

// ListTransactions reads all persisted transactions for a company.
func (s *FirestoreStore) ListTransactions(ctx context.Context, userID, companyID string) ([]*model.Transaction, error) {
	iter := s.collection(userID, companyID, CollectionTransactions).Documents(ctx)
	defer iter.Stop()

	var transactions []*model.Transaction
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		var tx model.Transaction
		if err := doc.DataTo(&tx); err != nil {
			return nil, fmt.Errorf("parse transaction %s: %w", doc.Ref.ID, err)
		}
		tx.ID = doc.Ref.ID
		transactions = append(transactions, &tx)
	}
	return transactions, nil
}

// DeleteTransaction removes a persisted transaction.
func (s *FirestoreStore) DeleteTransaction(ctx context.Context, userID, companyID, transactionID string) error {
	_, err := s.collection(userID, companyID, CollectionTransactions).Doc(transactionID).Delete(ctx)
	return err
}

// CommitBatch applies the ops as a single Firestore write batch. Firestore
// guarantees all-or-nothing semantics per batch up to its 500-write limit.
func (s *FirestoreStore) CommitBatch(ctx context.Context, userID string, ops []WriteOp) error {
	if len(ops) == 0 {
		return nil
	}
	batch := s.client.Batch()
	for i := range ops {
		op := &ops[i]
		coll := s.collection(userID, op.CompanyID, op.Collection)
		ref := coll.Doc(op.DocID)
		if op.DocID == "" {
			ref = coll.NewDoc()
			op.DocID = ref.ID
		}
		switch op.Kind {
		case OpSet:
			batch.Set(ref, op.Data)
		case OpMerge:
			batch.Set(ref, op.Fields, firestore.MergeAll)
		case OpDelete:
			batch.Delete(ref)
		default:
			return fmt.Errorf("unknown write op kind %d", op.Kind)
		}
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch of %d writes: %w", len(ops), err)
	}
	return nil
}
