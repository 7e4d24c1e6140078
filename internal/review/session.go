// Package review tracks the per-transaction working set through the
// unmatched → matched → edited → confirmed lifecycle. The working set lives
// only in process memory; confirmed rows are the only ones that reach the
// document store.
package review

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/transactwise/backend/internal/entities"
	"github.com/transactwise/backend/internal/matching"
	"github.com/transactwise/backend/internal/model"
	"github.com/transactwise/backend/internal/store"
)

var (
	// ErrBusy is returned when an operation is already in flight; matching
	// and confirm both mutate the working set, so they never overlap.
	ErrBusy = errors.New("another operation is already running")
	// ErrConfirmedImmutable rejects edits to confirmed rows.
	ErrConfirmedImmutable = errors.New("confirmed transactions cannot be edited")
	// ErrRowNotFound is returned for an unknown working-set row id.
	ErrRowNotFound = errors.New("transaction not found in working set")
	// ErrNoTransactions is returned when matching runs before an upload.
	ErrNoTransactions = errors.New("no transactions loaded")
)

// Matcher is the slice of the matching engine the session drives.
type Matcher interface {
	Match(ctx context.Context, raws []model.RawTransaction, snap *entities.Snapshot) ([]matching.Result, error)
}

// Edit is a manual override of a row's entity or account selection. Nil
// fields are left untouched; a pointer to the empty string clears the field.
type Edit struct {
	VendorID         *string
	CustomerID       *string
	ChartOfAccountID *string
	Memo             *string
}

// Session holds one company's matching working set. It is single-writer by
// construction: the busy flag serializes matching and confirm runs, and the
// mutex covers the quick mutations in between.
type Session struct {
	mu        sync.Mutex
	userID    string
	companyID string
	busy      bool

	raws []model.RawTransaction
	rows []*model.ReviewedTransaction
}

// NewSession creates an empty session for a company.
func NewSession(userID, companyID string) *Session {
	return &Session{userID: userID, companyID: companyID}
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// LoadRows replaces the working set with freshly uploaded rows, all
// unmatched. An empty upload is an input error.
func (s *Session) LoadRows(raws []model.RawTransaction) error {
	if len(raws) == 0 {
		return ErrNoTransactions
	}
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.raws = append([]model.RawTransaction(nil), raws...)
	s.rows = matching.BuildReviewed(s.companyID, s.raws, nil, &entities.Snapshot{})
	return nil
}

// Rows returns a copy of the working set in input order.
func (s *Session) Rows() []*model.ReviewedTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]*model.ReviewedTransaction, len(s.rows))
	for i, r := range s.rows {
		rr := *r
		rows[i] = &rr
	}
	return rows
}

// RunMatching invokes the engine over the non-confirmed subset of the
// working set and replaces those rows with the fresh results. Confirmed rows
// are excluded from re-matching and survive untouched. On engine failure the
// working set is left exactly as it was, so the user can retry.
func (s *Session) RunMatching(ctx context.Context, m Matcher, snap *entities.Snapshot) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	s.mu.Lock()
	if len(s.raws) == 0 {
		s.mu.Unlock()
		return ErrNoTransactions
	}
	// Collect the indices eligible for (re-)matching.
	var indices []int
	var subset []model.RawTransaction
	for i := range s.raws {
		if i < len(s.rows) && s.rows[i].Status == model.StatusConfirmed {
			continue
		}
		indices = append(indices, i)
		subset = append(subset, s.raws[i])
	}
	s.mu.Unlock()

	results, err := m.Match(ctx, subset, snap)
	if err != nil {
		return fmt.Errorf("run matching: %w", err)
	}
	if len(results) != len(subset) {
		return fmt.Errorf("run matching: engine returned %d results for %d transactions", len(results), len(subset))
	}

	fresh := matching.BuildReviewed(s.companyID, subset, results, snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	for pos, i := range indices {
		row := fresh[pos]
		row.ID = fmt.Sprintf("temp-%d", i)
		if i < len(s.rows) {
			s.rows[i] = row
		} else {
			s.rows = append(s.rows, row)
		}
	}
	return nil
}

// EditRow applies a manual override. Any manual selection moves the row to
// edited regardless of its prior state; confirmed rows are immutable.
// Selecting an entity replaces the account with that entity's default link
// (or clears it when there is none), matching the review UI behavior.
func (s *Session) EditRow(id string, edit Edit, snap *entities.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var row *model.ReviewedTransaction
	for _, r := range s.rows {
		if r.ID == id {
			row = r
			break
		}
	}
	if row == nil {
		return fmt.Errorf("%w: %s", ErrRowNotFound, id)
	}
	if row.Status == model.StatusConfirmed {
		return ErrConfirmedImmutable
	}

	if edit.VendorID != nil {
		row.VendorID = *edit.VendorID
		row.CustomerID = ""
		row.MatchedEntityName = ""
		row.ChartOfAccountID = ""
		row.MatchedAccountName = ""
		if vendor := snap.VendorByID(row.VendorID); vendor != nil {
			row.MatchedEntityName = vendor.VendorName
			if account := snap.AccountByID(vendor.DefaultExpenseAccountID); account != nil {
				row.ChartOfAccountID = account.ID
				row.MatchedAccountName = account.DisplayName()
			}
		}
	}
	if edit.CustomerID != nil {
		row.CustomerID = *edit.CustomerID
		row.VendorID = ""
		row.MatchedEntityName = ""
		row.ChartOfAccountID = ""
		row.MatchedAccountName = ""
		if customer := snap.CustomerByID(row.CustomerID); customer != nil {
			row.MatchedEntityName = customer.CustomerName
			if account := snap.AccountByID(customer.DefaultRevenueAccountID); account != nil {
				row.ChartOfAccountID = account.ID
				row.MatchedAccountName = account.DisplayName()
			}
		}
	}
	if edit.ChartOfAccountID != nil {
		row.ChartOfAccountID = *edit.ChartOfAccountID
		row.MatchedAccountName = ""
		if account := snap.AccountByID(row.ChartOfAccountID); account != nil {
			row.MatchedAccountName = account.DisplayName()
		}
	}
	if edit.Memo != nil {
		row.Memo = *edit.Memo
	}

	row.Status = model.StatusEdited
	return nil
}

// Confirm persists the selected rows and flips them to confirmed. Rows
// already confirmed in the selection are no-ops, never re-persisted. Status
// only changes for rows whose batch actually committed: on a partial bulk
// failure the earlier batches' rows stay confirmed and the rest keep their
// prior status, ready for retry.
func (s *Session) Confirm(ctx context.Context, ids []string, writer *store.BulkWriter) (store.BulkResult, error) {
	if err := s.begin(); err != nil {
		return store.BulkResult{}, err
	}
	defer s.end()

	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}

	s.mu.Lock()
	var pending []*model.ReviewedTransaction
	for _, row := range s.rows {
		if selected[row.ID] && row.Status != model.StatusConfirmed {
			pending = append(pending, row)
		}
	}
	ops := make([]store.WriteOp, len(pending))
	for i, row := range pending {
		tx := row.Persistable()
		tx.ID = "" // the store assigns the durable id
		ops[i] = store.WriteOp{
			Collection: store.CollectionTransactions,
			CompanyID:  s.companyID,
			Kind:       store.OpSet,
			Data:       tx,
		}
	}
	s.mu.Unlock()

	if len(ops) == 0 {
		return store.BulkResult{}, nil
	}

	result, err := writer.Write(ctx, s.userID, ops)

	// One op per row, in order: the first result.Committed pending rows are
	// durable regardless of whether a later batch failed.
	s.mu.Lock()
	for i := 0; i < result.Committed && i < len(pending); i++ {
		pending[i].Status = model.StatusConfirmed
	}
	s.mu.Unlock()

	if err != nil {
		return result, fmt.Errorf("confirm: committed %d of %d: %w", result.Committed, result.Attempted, err)
	}
	return result, nil
}

// ExportConfirmed returns the confirmed subset of the working set.
func (s *Session) ExportConfirmed() []*model.ReviewedTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var confirmed []*model.ReviewedTransaction
	for _, r := range s.rows {
		if r.Status == model.StatusConfirmed {
			rr := *r
			confirmed = append(confirmed, &rr)
		}
	}
	return confirmed
}
