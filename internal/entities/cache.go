// Package entities holds the in-memory working copy of one company's
// vendors, customers and chart of accounts. The cache is the single source
// of truth for the matching and interlink flows during a session; every
// successful durable write must be mirrored into it so it never diverges
// from storage.
package entities

import (
	"context"
	"fmt"
	"sync"

	"github.com/transactwise/backend/internal/model"
	"github.com/transactwise/backend/internal/store"
)

// Snapshot is an immutable view of the cached collections. Slices are copies;
// holders can read them without further locking.
type Snapshot struct {
	Vendors   []*model.Vendor
	Customers []*model.Customer
	Accounts  []*model.ChartOfAccount
}

// VendorByID looks up a vendor, tolerating dangling references.
func (s *Snapshot) VendorByID(id string) *model.Vendor {
	if id == "" {
		return nil
	}
	for _, v := range s.Vendors {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// CustomerByID looks up a customer, tolerating dangling references.
func (s *Snapshot) CustomerByID(id string) *model.Customer {
	if id == "" {
		return nil
	}
	for _, c := range s.Customers {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// AccountByID looks up an account, tolerating dangling references.
func (s *Snapshot) AccountByID(id string) *model.ChartOfAccount {
	if id == "" {
		return nil
	}
	for _, a := range s.Accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Cache is the per-session entity store. It is created per company and
// passed explicitly to the flows that need it; there is no ambient global.
type Cache struct {
	mu        sync.RWMutex
	userID    string
	companyID string
	vendors   map[string]*model.Vendor
	customers map[string]*model.Customer
	accounts  map[string]*model.ChartOfAccount
}

// NewCache creates an empty cache scoped to one user's company.
func NewCache(userID, companyID string) *Cache {
	return &Cache{
		userID:    userID,
		companyID: companyID,
		vendors:   make(map[string]*model.Vendor),
		customers: make(map[string]*model.Customer),
		accounts:  make(map[string]*model.ChartOfAccount),
	}
}

// CompanyID returns the company this cache is scoped to.
func (c *Cache) CompanyID() string { return c.companyID }

// UserID returns the owning user.
func (c *Cache) UserID() string { return c.userID }

// Load bulk-reads all three collections and replaces the cached state. The
// dataset is bounded by one company's books, so no pagination is needed.
func (c *Cache) Load(ctx context.Context, s store.Store) error {
	vendors, err := s.ListVendors(ctx, c.userID, c.companyID)
	if err != nil {
		return fmt.Errorf("load vendors: %w", err)
	}
	customers, err := s.ListCustomers(ctx, c.userID, c.companyID)
	if err != nil {
		return fmt.Errorf("load customers: %w", err)
	}
	accounts, err := s.ListAccounts(ctx, c.userID, c.companyID)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.vendors = make(map[string]*model.Vendor, len(vendors))
	for _, v := range vendors {
		c.vendors[v.ID] = v
	}
	c.customers = make(map[string]*model.Customer, len(customers))
	for _, cu := range customers {
		c.customers[cu.ID] = cu
	}
	c.accounts = make(map[string]*model.ChartOfAccount, len(accounts))
	for _, a := range accounts {
		c.accounts[a.ID] = a
	}
	return nil
}

// Snapshot returns a copy of the cached collections.
func (c *Cache) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := &Snapshot{
		Vendors:   make([]*model.Vendor, 0, len(c.vendors)),
		Customers: make([]*model.Customer, 0, len(c.customers)),
		Accounts:  make([]*model.ChartOfAccount, 0, len(c.accounts)),
	}
	for _, v := range c.vendors {
		vv := *v
		snap.Vendors = append(snap.Vendors, &vv)
	}
	for _, cu := range c.customers {
		cc := *cu
		snap.Customers = append(snap.Customers, &cc)
	}
	for _, a := range c.accounts {
		aa := *a
		snap.Accounts = append(snap.Accounts, &aa)
	}
	return snap
}

// UpsertVendor inserts or replaces a vendor in the cache.
func (c *Cache) UpsertVendor(v *model.Vendor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vv := *v
	c.vendors[v.ID] = &vv
}

// UpsertCustomer inserts or replaces a customer in the cache.
func (c *Cache) UpsertCustomer(cu *model.Customer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cc := *cu
	c.customers[cu.ID] = &cc
}

// UpsertAccount inserts or replaces a chart of accounts row in the cache.
func (c *Cache) UpsertAccount(a *model.ChartOfAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	aa := *a
	c.accounts[a.ID] = &aa
}

// RemoveVendor deletes a vendor from the cache.
func (c *Cache) RemoveVendor(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.vendors, id)
}

// RemoveCustomer deletes a customer from the cache.
func (c *Cache) RemoveCustomer(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.customers, id)
}

// RemoveAccount deletes a chart of accounts row from the cache.
func (c *Cache) RemoveAccount(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.accounts, id)
}

// VendorByID looks up a cached vendor; nil when absent.
func (c *Cache) VendorByID(id string) *model.Vendor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.vendors[id]; ok {
		vv := *v
		return &vv
	}
	return nil
}

// CustomerByID looks up a cached customer; nil when absent.
func (c *Cache) CustomerByID(id string) *model.Customer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cu, ok := c.customers[id]; ok {
		cc := *cu
		return &cc
	}
	return nil
}

// AccountByID looks up a cached account; nil when absent.
func (c *Cache) AccountByID(id string) *model.ChartOfAccount {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if a, ok := c.accounts[id]; ok {
		aa := *a
		return &aa
	}
	return nil
}
