// Package interlink links vendors and customers to chart of accounts rows
// via their free-text default-account fields. Each returned link is
// materialized on both sides: the entity gains a default-account id and the
// account gains a back-reference to the entity, written together atomically.
package interlink

import (
	"context"
	"fmt"

	"github.com/transactwise/backend/internal/entities"
	"github.com/transactwise/backend/internal/reasoning"
	"github.com/transactwise/backend/internal/store"
)

// Result reports the links that were computed and written.
type Result struct {
	VendorLinks   []reasoning.VendorLink
	CustomerLinks []reasoning.CustomerLink
}

// Engine computes and persists entity↔account links.
type Engine struct {
	reasoner reasoning.Service
	writer   *store.BulkWriter
}

// NewEngine creates an interlink engine.
func NewEngine(reasoner reasoning.Service, writer *store.BulkWriter) *Engine {
	return &Engine{reasoner: reasoner, writer: writer}
}

// pendingLink tracks one link's pair of write ops (entity side first,
// account side second) so partial commits can be mirrored per side.
type pendingLink struct {
	vendorLink   *reasoning.VendorLink
	customerLink *reasoning.CustomerLink
	firstOp      int
}

// Run matches default-account text against the chart of accounts, writes
// both sides of every surviving link in bulk, and mirrors the mutations
// into the entity cache. A reasoning failure or schema violation means no
// mutation happens at all. Entities the model omitted (empty or
// unmatchable text) are simply absent from the result.
//
// Batches committed before a bulk-write failure are durable, so their ops
// are mirrored into the cache even when Run returns an error; the partial
// Result reports the links that landed on both sides.
func (e *Engine) Run(ctx context.Context, cache *entities.Cache) (*Result, error) {
	snap := cache.Snapshot()

	req := buildRequest(snap)
	resp, err := e.reasoner.InterlinkAccounts(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("interlink accounts: %w", err)
	}

	var ops []store.WriteOp
	var pending []pendingLink
	companyID := cache.CompanyID()

	for i := range resp.VendorLinks {
		link := resp.VendorLinks[i]
		// Links to entities or accounts that no longer exist degrade to
		// "no link" rather than failing the run.
		vendor := snap.VendorByID(link.VendorID)
		account := snap.AccountByID(link.ChartOfAccountID)
		if vendor == nil || account == nil {
			continue
		}
		pending = append(pending, pendingLink{vendorLink: &link, firstOp: len(ops)})
		ops = append(ops,
			store.WriteOp{
				Collection: store.CollectionVendors,
				CompanyID:  companyID,
				DocID:      vendor.ID,
				Kind:       store.OpMerge,
				Fields:     map[string]any{"defaultExpenseAccountId": account.ID},
			},
			store.WriteOp{
				Collection: store.CollectionChartOfAccounts,
				CompanyID:  companyID,
				DocID:      account.ID,
				Kind:       store.OpMerge,
				Fields:     map[string]any{"defaultVendorId": vendor.ID},
			},
		)
	}

	for i := range resp.CustomerLinks {
		link := resp.CustomerLinks[i]
		customer := snap.CustomerByID(link.CustomerID)
		account := snap.AccountByID(link.ChartOfAccountID)
		if customer == nil || account == nil {
			continue
		}
		pending = append(pending, pendingLink{customerLink: &link, firstOp: len(ops)})
		ops = append(ops,
			store.WriteOp{
				Collection: store.CollectionCustomers,
				CompanyID:  companyID,
				DocID:      customer.ID,
				Kind:       store.OpMerge,
				Fields:     map[string]any{"defaultRevenueAccountId": account.ID},
			},
			store.WriteOp{
				Collection: store.CollectionChartOfAccounts,
				CompanyID:  companyID,
				DocID:      account.ID,
				Kind:       store.OpMerge,
				Fields:     map[string]any{"defaultCustomerId": customer.ID},
			},
		)
	}

	result := &Result{}
	if len(ops) == 0 {
		return result, nil
	}

	wres, werr := e.writer.Write(ctx, cache.UserID(), ops)

	// Every op inside a committed batch is durable regardless of later
	// failures; the cache must track exactly those.
	for _, p := range pending {
		if p.firstOp < wres.Committed {
			e.mirrorEntitySide(cache, p)
		}
		if p.firstOp+1 < wres.Committed {
			e.mirrorAccountSide(cache, p)
			if p.vendorLink != nil {
				result.VendorLinks = append(result.VendorLinks, *p.vendorLink)
			} else {
				result.CustomerLinks = append(result.CustomerLinks, *p.customerLink)
			}
		}
	}

	if werr != nil {
		return result, fmt.Errorf("persist links: committed %d of %d writes: %w",
			wres.Committed, wres.Attempted, werr)
	}
	return result, nil
}

func (e *Engine) mirrorEntitySide(cache *entities.Cache, p pendingLink) {
	if p.vendorLink != nil {
		if vendor := cache.VendorByID(p.vendorLink.VendorID); vendor != nil {
			vendor.DefaultExpenseAccountID = p.vendorLink.ChartOfAccountID
			cache.UpsertVendor(vendor)
		}
		return
	}
	if customer := cache.CustomerByID(p.customerLink.CustomerID); customer != nil {
		customer.DefaultRevenueAccountID = p.customerLink.ChartOfAccountID
		cache.UpsertCustomer(customer)
	}
}

func (e *Engine) mirrorAccountSide(cache *entities.Cache, p pendingLink) {
	if p.vendorLink != nil {
		if account := cache.AccountByID(p.vendorLink.ChartOfAccountID); account != nil {
			account.DefaultVendorID = p.vendorLink.VendorID
			cache.UpsertAccount(account)
		}
		return
	}
	if account := cache.AccountByID(p.customerLink.ChartOfAccountID); account != nil {
		account.DefaultCustomerID = p.customerLink.CustomerID
		cache.UpsertAccount(account)
	}
}

func buildRequest(snap *entities.Snapshot) *reasoning.InterlinkRequest {
	req := &reasoning.InterlinkRequest{
		Vendors:         make([]reasoning.VendorPayload, 0, len(snap.Vendors)),
		Customers:       make([]reasoning.CustomerPayload, 0, len(snap.Customers)),
		ChartOfAccounts: make([]reasoning.AccountPayload, len(snap.Accounts)),
	}
	for _, v := range snap.Vendors {
		req.Vendors = append(req.Vendors, reasoning.VendorPayload{
			ID:                    v.ID,
			VendorName:            v.VendorName,
			DefaultExpenseAccount: v.DefaultExpenseAccount,
		})
	}
	for _, c := range snap.Customers {
		req.Customers = append(req.Customers, reasoning.CustomerPayload{
			ID:                    c.ID,
			CustomerName:          c.CustomerName,
			DefaultRevenueAccount: c.DefaultRevenueAccount,
		})
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
