// Package service wires the matching, review, interlink and persistence
// pieces into the operations the API surface exposes. One Books instance
// serves all companies; per-company session state (entity cache + working
// set) is created on first use and passed explicitly, never held globally.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/transactwise/backend/internal/entities"
	"github.com/transactwise/backend/internal/importer"
	"github.com/transactwise/backend/internal/interlink"
	"github.com/transactwise/backend/internal/matching"
	"github.com/transactwise/backend/internal/model"
	"github.com/transactwise/backend/internal/reasoning"
	"github.com/transactwise/backend/internal/review"
	"github.com/transactwise/backend/internal/spreadsheet"
	"github.com/transactwise/backend/internal/store"
)

// ErrInterlinkBusy is returned when an interlink run is already in flight
// for the company.
var ErrInterlinkBusy = errors.New("interlink already running")

// ErrIndustryRequired is returned when account generation is requested
// without an industry.
var ErrIndustryRequired = errors.New("industry is required")

// Books orchestrates the bookkeeping operations.
type Books struct {
	store    store.Store
	reasoner reasoning.Service
	writer   *store.BulkWriter
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*companySession
}

// companySession bundles the per-company in-memory state.
type companySession struct {
	cache   *entities.Cache
	session *review.Session

	loadMu sync.Mutex
	loaded bool

	linkMu  sync.Mutex
	linking bool
}

// NewBooks creates the service.
func NewBooks(s store.Store, reasoner reasoning.Service, writer *store.BulkWriter, log zerolog.Logger) *Books {
	return &Books{
		store:    s,
		reasoner: reasoner,
		writer:   writer,
		log:      log,
		sessions: make(map[string]*companySession),
	}
}

// open returns the session state for a company, loading the entity cache on
// first use.
func (b *Books) open(ctx context.Context, userID, companyID string) (*companySession, error) {
	key := userID + "/" + companyID

	b.mu.Lock()
	cs, ok := b.sessions[key]
	if !ok {
		cs = &companySession{
			cache:   entities.NewCache(userID, companyID),
			session: review.NewSession(userID, companyID),
		}
		b.sessions[key] = cs
	}
	b.mu.Unlock()

	// The first caller performs the load; concurrent callers block on the
	// latch until the cache is populated. A failed load leaves the session
	// unloaded so the next call retries instead of serving an empty cache.
	cs.loadMu.Lock()
	defer cs.loadMu.Unlock()
	if !cs.loaded {
		if err := cs.cache.Load(ctx, b.store); err != nil {
			return nil, fmt.Errorf("load entities for %s: %w", companyID, err)
		}
		cs.loaded = true
	}
	return cs, nil
}

// RefreshEntities re-reads the entity collections from storage.
func (b *Books) RefreshEntities(ctx context.Context, userID, companyID string) error {
	cs, err := b.open(ctx, userID, companyID)
	if err != nil {
		return err
	}
	return cs.cache.Load(ctx, b.store)
}

// UploadTransactions parses an uploaded statement file and loads the rows
// into the review working set, all unmatched. Input errors abort before
// anything is written anywhere.
func (b *Books) UploadTransactions(ctx context.Context, userID, companyID, filename string, r io.Reader) (int, error) {
	cs, err := b.open(ctx, userID, companyID)
	if err != nil {
		return 0, err
	}

	rows, err := spreadsheet.Read(filename, r)
	if err != nil {
		return 0, fmt.Errorf("parse upload: %w", err)
	}
	raws, err := importer.Transactions(rows)
	if err != nil {
		return 0, err
	}
	if err := cs.session.LoadRows(raws); err != nil {
		return 0, err
	}

	b.log.Info().Str("company", companyID).Int("rows", len(raws)).Msg("transactions loaded for review")
	return len(raws), nil
}

// RunMatching invokes the matching engine over the working set. A second
// call while one is in flight fails with review.ErrBusy.
func (b *Books) RunMatching(ctx context.Context, userID, companyID string) error {
	cs, err := b.open(ctx, userID, companyID)
	if err != nil {
		return err
	}

	engine := matching.NewEngine(b.reasoner)
	if err := cs.session.RunMatching(ctx, engine, cs.cache.Snapshot()); err != nil {
		return err
	}
	b.log.Info().Str("company", companyID).Msg("matching complete")
	return nil
}

// WorkingSet returns the current review rows.
func (b *Books) WorkingSet(ctx context.Context, userID, companyID string) ([]*model.ReviewedTransaction, error) {
	cs, err := b.open(ctx, userID, companyID)
	if err != nil {
		return nil, err
	}
	return cs.session.Rows(), nil
}

// EditRow applies a manual entity/account override to a working-set row.
func (b *Books) EditRow(ctx context.Context, userID, companyID, rowID string, edit review.Edit) error {
	cs, err := b.open(ctx, userID, companyID)
	if err != nil {
		return err
	}
	return cs.session.EditRow(rowID, edit, cs.cache.Snapshot())
}

// Confirm persists the selected rows as durable transactions.
func (b *Books) Confirm(ctx context.Context, userID, companyID string, rowIDs []string) (store.BulkResult, error) {
	cs, err := b.open(ctx, userID, companyID)
	if err != nil {
		return store.BulkResult{}, err
	}

	result, err := cs.session.Confirm(ctx, rowIDs, b.writer)
	if err != nil {
		b.log.Error().Err(err).Str("company", companyID).
			Int("committed", result.Committed).Int("attempted", result.Attempted).
			Msg("confirm failed part way")
		return result, err
	}
	b.log.Info().Str("company", companyID).Int("confirmed", result.Committed).Msg("transactions confirmed")
	return result, nil
}

// RunInterlink links vendors/customers to chart of accounts rows. Only one
// interlink run per company at a time.
func (b *Books) RunInterlink(ctx context.Context, userID, companyID string) (*interlink.Result, error) {
	cs, err := b.open(ctx, userID, companyID)
	if err != nil {
		return nil, err
	}

	cs.linkMu.Lock()
	if cs.linking {
		cs.linkMu.Unlock()
		return nil, ErrInterlinkBusy
	}
	cs.linking = true
	cs.linkMu.Unlock()
	defer func() {
		cs.linkMu.Lock()
		cs.linking = false
		cs.linkMu.Unlock()
	}()

	engine := interlink.NewEngine(b.reasoner, b.writer)
	result, err := engine.Run(ctx, cs.cache)
	if err != nil {
		// A partial result carries the links that did commit; pass it
		// through so callers can report counts alongside the failure.
		if result != nil {
			b.log.Error().Err(err).Str("company", companyID).
				Int("vendorLinks", len(result.VendorLinks)).
				Int("customerLinks", len(result.CustomerLinks)).
				Msg("interlink failed part way")
		}
		return result, err
	}
	b.log.Info().Str("company", companyID).
		Int("vendorLinks", len(result.VendorLinks)).
		Int("customerLinks", len(result.CustomerLinks)).
		Msg("interlink complete")
	return result, nil
}

// ExportConfirmed writes the confirmed working-set rows as an XLSX workbook.
func (b *Books) ExportConfirmed(ctx context.Context, userID, companyID string, w io.Writer) (int, error) {
	cs, err := b.open(ctx, userID, companyID)
	if err != nil {
		return 0, err
	}

	confirmed := cs.session.ExportConfirmed()
	if len(confirmed) == 0 {
		return 0, fmt.Errorf("no confirmed transactions to export")
	}
	headers, rows := importer.ExportRows(confirmed)
	if err := spreadsheet.WriteXLSX(w, "Transactions", headers, rows); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	return len(confirmed), nil
}

// GenerateAccounts asks the model for a starting chart of accounts for the
// industry, persists the suggestions in bulk and mirrors them into the
// entity cache. Rows in batches committed before a write failure stay
// persisted and are returned alongside the error.
func (b *Books) GenerateAccounts(ctx context.Context, userID, companyID, industry string) ([]*model.ChartOfAccount, error) {
	if strings.TrimSpace(industry) == "" {
		return nil, ErrIndustryRequired
	}
	if _, err := b.open(ctx, userID, companyID); err != nil {
		return nil, err
	}

	resp, err := b.reasoner.GenerateChartOfAccounts(ctx, &reasoning.GenerateCOARequest{Industry: industry})
	if err != nil {
		return nil, fmt.Errorf("generate chart of accounts: %w", err)
	}

	accounts := make([]*model.ChartOfAccount, len(resp.Accounts))
	ops := make([]store.WriteOp, len(resp.Accounts))
	for i, suggestion := range resp.Accounts {
		accounts[i] = &model.ChartOfAccount{
			CompanyID:   companyID,
			AccountName: suggestion.AccountName,
			AccountType: suggestion.AccountType,
			Description: suggestion.AccountDescription,
		}
		ops[i] = store.WriteOp{
			Collection: store.CollectionChartOfAccounts,
			CompanyID:  companyID,
			Kind:       store.OpSet,
			Data:       accounts[i],
		}
	}

	result, werr := b.writer.Write(ctx, userID, ops)
	created := accounts[:result.Committed]
	for i, account := range created {
		account.ID = ops[i].DocID
		b.mirror(userID, companyID, func(cs *companySession) { cs.cache.UpsertAccount(account) })
	}

	if werr != nil {
		b.log.Error().Err(werr).Str("company", companyID).
			Int("committed", result.Committed).Int("attempted", result.Attempted).
			Msg("account generation persisted part way")
		return created, werr
	}
	b.log.Info().Str("company", companyID).Str("industry", industry).
		Int("accounts", len(created)).Msg("starting chart of accounts generated")
	return created, nil
}

// CreateVendor writes a vendor and mirrors it into the entity cache.
func (b *Books) CreateVendor(ctx context.Context, userID string, vendor *model.Vendor) error {
	if err := b.store.CreateVendor(ctx, userID, vendor); err != nil {
		return fmt.Errorf("create vendor: %w", err)
	}
	b.mirror(userID, vendor.CompanyID, func(cs *companySession) { cs.cache.UpsertVendor(vendor) })
	return nil
}

// UpdateVendor replaces a vendor and mirrors it into the entity cache.
func (b *Books) UpdateVendor(ctx context.Context, userID string, vendor *model.Vendor) error {
	if err := b.store.UpdateVendor(ctx, userID, vendor); err != nil {
		return fmt.Errorf("update vendor: %w", err)
	}
	b.mirror(userID, vendor.CompanyID, func(cs *companySession) { cs.cache.UpsertVendor(vendor) })
	return nil
}

// DeleteVendor removes a vendor from storage and the cache.
func (b *Books) DeleteVendor(ctx context.Context, userID, companyID, vendorID string) error {
	if err := b.store.DeleteVendor(ctx, userID, companyID, vendorID); err != nil {
		return fmt.Errorf("delete vendor: %w", err)
	}
	b.mirror(userID, companyID, func(cs *companySession) { cs.cache.RemoveVendor(vendorID) })
	return nil
}

// CreateCustomer writes a customer and mirrors it into the entity cache.
func (b *Books) CreateCustomer(ctx context.Context, userID string, customer *model.Customer) error {
	if err := b.store.CreateCustomer(ctx, userID, customer); err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	b.mirror(userID, customer.CompanyID, func(cs *companySession) { cs.cache.UpsertCustomer(customer) })
	return nil
}

// UpdateCustomer replaces a customer and mirrors it into the entity cache.
func (b *Books) UpdateCustomer(ctx context.Context, userID string, customer *model.Customer) error {
	if err := b.store.UpdateCustomer(ctx, userID, customer); err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	b.mirror(userID, customer.CompanyID, func(cs *companySession) { cs.cache.UpsertCustomer(customer) })
	return nil
}

// DeleteCustomer removes a customer from storage and the cache.
func (b *Books) DeleteCustomer(ctx context.Context, userID, companyID, customerID string) error {
	if err := b.store.DeleteCustomer(ctx, userID, companyID, customerID); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	b.mirror(userID, companyID, func(cs *companySession) { cs.cache.RemoveCustomer(customerID) })
	return nil
}

// CreateAccount writes a chart of accounts row and mirrors it into the cache.
func (b *Books) CreateAccount(ctx context.Context, userID string, account *model.ChartOfAccount) error {
	if err := b.store.CreateAccount(ctx, userID, account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	b.mirror(userID, account.CompanyID, func(cs *companySession) { cs.cache.UpsertAccount(account) })
	return nil
}

// UpdateAccount replaces a chart of accounts row and mirrors it into the cache.
func (b *Books) UpdateAccount(ctx context.Context, userID string, account *model.ChartOfAccount) error {
	if err := b.store.UpdateAccount(ctx, userID, account); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	b.mirror(userID, account.CompanyID, func(cs *companySession) { cs.cache.UpsertAccount(account) })
	return nil
}

// DeleteAccount removes a chart of accounts row from storage and the cache.
func (b *Books) DeleteAccount(ctx context.Context, userID, companyID, accountID string) error {
	if err := b.store.DeleteAccount(ctx, userID, companyID, accountID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	b.mirror(userID, companyID, func(cs *companySession) { cs.cache.RemoveAccount(accountID) })
	return nil
}

// ListVendors reads vendors straight from storage.
func (b *Books) ListVendors(ctx context.Context, userID, companyID string) ([]*model.Vendor, error) {
	return b.store.ListVendors(ctx, userID, companyID)
}

// ListCustomers reads customers straight from storage.
func (b *Books) ListCustomers(ctx context.Context, userID, companyID string) ([]*model.Customer, error) {
	return b.store.ListCustomers(ctx, userID, companyID)
}

// ListAccounts reads the chart of accounts straight from storage.
func (b *Books) ListAccounts(ctx context.Context, userID, companyID string) ([]*model.ChartOfAccount, error) {
	return b.store.ListAccounts(ctx, userID, companyID)
}

// mirror applies a cache mutation if the company has an open session; the
// cache stays aligned with storage after every successful write.
func (b *Books) mirror(userID, companyID string, fn func(*companySession)) {
	b.mu.Lock()
	cs, ok := b.sessions[userID+"/"+companyID]
	b.mu.Unlock()
	if ok {
		fn(cs)
	}
}
