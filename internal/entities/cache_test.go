package entities

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transactwise/backend/internal/model"
	"github.com/transactwise/backend/internal/store"
)

func seededStore(t *testing.T) (*store.MemoryStore, *model.Vendor, *model.Customer, *model.ChartOfAccount) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()

	vendor := &model.Vendor{CompanyID: "co1", VendorName: "Staples"}
	require.NoError(t, s.CreateVendor(ctx, "u1", vendor))
	customer := &model.Customer{CompanyID: "co1", CustomerName: "Acme"}
	require.NoError(t, s.CreateCustomer(ctx, "u1", customer))
	account := &model.ChartOfAccount{CompanyID: "co1", AccountName: "Office Supplies", AccountNumber: "6100"}
	require.NoError(t, s.CreateAccount(ctx, "u1", account))

	return s, vendor, customer, account
}

func TestCacheLoadReplacesState(t *testing.T) {
	ctx := context.Background()
	s, vendor, customer, account := seededStore(t)

	cache := NewCache("u1", "co1")
	cache.UpsertVendor(&model.Vendor{ID: "stale", CompanyID: "co1", VendorName: "Gone"})
	require.NoError(t, cache.Load(ctx, s))

	snap := cache.Snapshot()
	require.Len(t, snap.Vendors, 1)
	assert.Equal(t, vendor.ID, snap.Vendors[0].ID)
	require.Len(t, snap.Customers, 1)
	assert.Equal(t, customer.ID, snap.Customers[0].ID)
	require.Len(t, snap.Accounts, 1)
	assert.Equal(t, account.ID, snap.Accounts[0].ID)
	assert.Nil(t, cache.VendorByID("stale"))
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	s, vendor, _, _ := seededStore(t)

	cache := NewCache("u1", "co1")
	require.NoError(t, cache.Load(ctx, s))

	snap := cache.Snapshot()
	snap.Vendors[0].VendorName = "Mutated"

	assert.Equal(t, "Staples", cache.VendorByID(vendor.ID).VendorName,
		"mutating a snapshot must not touch the cache")
}

func TestSnapshotLookupsTolerateDanglingIDs(t *testing.T) {
	snap := &Snapshot{
		Vendors:  []*model.Vendor{{ID: "v1", VendorName: "Delta"}},
		Accounts: []*model.ChartOfAccount{{ID: "a1", AccountName: "Travel"}},
	}
	assert.NotNil(t, snap.VendorByID("v1"))
	assert.Nil(t, snap.VendorByID("deleted"))
	assert.Nil(t, snap.VendorByID(""))
	assert.Nil(t, snap.CustomerByID("c1"))
	assert.NotNil(t, snap.AccountByID("a1"))
	assert.Nil(t, snap.AccountByID("deleted"))
}

func TestCacheUpsertAndRemove(t *testing.T) {
	cache := NewCache("u1", "co1")

	cache.UpsertVendor(&model.Vendor{ID: "v1", CompanyID: "co1", VendorName: "Delta"})
	require.NotNil(t, cache.VendorByID("v1"))

	cache.UpsertVendor(&model.Vendor{ID: "v1", CompanyID: "co1", VendorName: "Delta Airlines"})
	assert.Equal(t, "Delta Airlines", cache.VendorByID("v1").VendorName)

	cache.RemoveVendor("v1")
	assert.Nil(t, cache.VendorByID("v1"))

	cache.UpsertCustomer(&model.Customer{ID: "c1", CompanyID: "co1", CustomerName: "Acme"})
	cache.UpsertAccount(&model.ChartOfAccount{ID: "a1", CompanyID: "co1", AccountName: "Sales"})
	assert.NotNil(t, cache.CustomerByID("c1"))
	assert.NotNil(t, cache.AccountByID("a1"))

	cache.RemoveCustomer("c1")
	cache.RemoveAccount("a1")
	assert.Nil(t, cache.CustomerByID("c1"))
	assert.Nil(t, cache.AccountByID("a1"))
}

func TestCacheByIDReturnsCopies(t *testing.T) {
	cache := NewCache("u1", "co1")
	cache.UpsertAccount(&model.ChartOfAccount{ID: "a1", CompanyID: "co1", AccountName: "Sales"})

	got := cache.AccountByID("a1")
	got.AccountName = "Mutated"
	assert.Equal(t, "Sales", cache.AccountByID("a1").AccountName)
}
