package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/transactwise/backend/internal/importer"
	"github.com/transactwise/backend/internal/model"
	"github.com/transactwise/backend/internal/reasoning"
	"github.com/transactwise/backend/internal/review"
	"github.com/transactwise/backend/internal/service"
	"github.com/transactwise/backend/internal/spreadsheet"
)

// Handler serves the bookkeeping endpoints.
type Handler struct {
	books *service.Books
	log   zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(books *service.Books, log zerolog.Logger) *Handler {
	return &Handler{books: books, log: log}
}

// Register mounts all routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/companies/{companyID}/transactions/upload", h.uploadTransactions)
	mux.HandleFunc("POST /api/companies/{companyID}/transactions/match", h.runMatching)
	mux.HandleFunc("GET /api/companies/{companyID}/transactions", h.workingSet)
	mux.HandleFunc("POST /api/companies/{companyID}/transactions/{rowID}/edit", h.editRow)
	mux.HandleFunc("POST /api/companies/{companyID}/transactions/confirm", h.confirm)
	mux.HandleFunc("GET /api/companies/{companyID}/transactions/export", h.exportConfirmed)
	mux.HandleFunc("POST /api/companies/{companyID}/interlink", h.runInterlink)

	mux.HandleFunc("GET /api/companies/{companyID}/vendors", h.listVendors)
	mux.HandleFunc("POST /api/companies/{companyID}/vendors", h.createVendor)
	mux.HandleFunc("PUT /api/companies/{companyID}/vendors/{vendorID}", h.updateVendor)
	mux.HandleFunc("DELETE /api/companies/{companyID}/vendors/{vendorID}", h.deleteVendor)
	mux.HandleFunc("GET /api/companies/{companyID}/customers", h.listCustomers)
	mux.HandleFunc("POST /api/companies/{companyID}/customers", h.createCustomer)
	mux.HandleFunc("PUT /api/companies/{companyID}/customers/{customerID}", h.updateCustomer)
	mux.HandleFunc("DELETE /api/companies/{companyID}/customers/{customerID}", h.deleteCustomer)
	mux.HandleFunc("GET /api/companies/{companyID}/accounts", h.listAccounts)
	mux.HandleFunc("POST /api/companies/{companyID}/accounts", h.createAccount)
	mux.HandleFunc("PUT /api/companies/{companyID}/accounts/{accountID}", h.updateAccount)
	mux.HandleFunc("DELETE /api/companies/{companyID}/accounts/{accountID}", h.deleteAccount)
	mux.HandleFunc("POST /api/companies/{companyID}/accounts/generate", h.generateAccounts)
}

// userID resolves the acting user. Authentication is handled upstream of
// this service; the header defaults to the local development identity.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return "local"
}

// status maps a failure to an HTTP status per the error taxonomy: input
// errors are 400s, busy flags 409s, reasoning failures 502s, everything
// else a 500.
func status(err error) int {
	var reasonErr *reasoning.Error
	switch {
	case errors.Is(err, review.ErrBusy), errors.Is(err, service.ErrInterlinkBusy):
		return http.StatusConflict
	case errors.Is(err, review.ErrConfirmedImmutable):
		return http.StatusConflict
	case errors.Is(err, review.ErrRowNotFound):
		return http.StatusNotFound
	case errors.Is(err, review.ErrNoTransactions),
		errors.Is(err, service.ErrIndustryRequired),
		errors.Is(err, importer.ErrNoValidRows),
		errors.Is(err, spreadsheet.ErrEmptyFile),
		errors.Is(err, spreadsheet.ErrNoRows),
		errors.Is(err, spreadsheet.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.As(err, &reasonErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) uploadTransactions(w http.ResponseWriter, r *http.Request) {
	companyID := r.PathValue("companyID")

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	defer file.Close()

	count, err := h.books.UploadTransactions(r.Context(), userID(r), companyID, header.Filename, file)
	if err != nil {
		h.log.Error().Err(err).Str("company", companyID).Msg("upload failed")
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"loaded": count})
}

func (h *Handler) runMatching(w http.ResponseWriter, r *http.Request) {
	companyID := r.PathValue("companyID")
	if err := h.books.RunMatching(r.Context(), userID(r), companyID); err != nil {
		h.log.Error().Err(err).Str("company", companyID).Msg("matching failed")
		WriteError(w, status(err), err.Error())
		return
	}
	rows, err := h.books.WorkingSet(r.Context(), userID(r), companyID)
	if err != nil {
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"transactions": rows})
}

func (h *Handler) workingSet(w http.ResponseWriter, r *http.Request) {
	rows, err := h.books.WorkingSet(r.Context(), userID(r), r.PathValue("companyID"))
	if err != nil {
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"transactions": rows, "count": len(rows)})
}

type editRequest struct {
	VendorID         *string `json:"vendorId"`
	CustomerID       *string `json:"customerId"`
	ChartOfAccountID *string `json:"chartOfAccountId"`
	Memo             *string `json:"memo"`
}

func (h *Handler) editRow(w http.ResponseWriter, r *http.Request) {
	companyID := r.PathValue("companyID")
	rowID := r.PathValue("rowID")

	var req editRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	edit := review.Edit{
		VendorID:         req.VendorID,
		CustomerID:       req.CustomerID,
		ChartOfAccountID: req.ChartOfAccountID,
		Memo:             req.Memo,
	}
	if err := h.books.EditRow(r.Context(), userID(r), companyID, rowID, edit); err != nil {
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "edited"})
}

type confirmRequest struct {
	RowIDs []string `json:"rowIds"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	companyID := r.PathValue("companyID")

	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.RowIDs) == 0 {
		WriteError(w, http.StatusBadRequest, "no rows selected")
		return
	}

	result, err := h.books.Confirm(r.Context(), userID(r), companyID, req.RowIDs)
	if err != nil {
		// Partial success: report the counts, not a bare failure.
		WriteJSON(w, status(err), map[string]any{
			"error":     err.Error(),
			"attempted": result.Attempted,
			"committed": result.Committed,
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"attempted": result.Attempted,
		"committed": result.Committed,
		"batches":   result.Batches,
	})
}

func (h *Handler) exportConfirmed(w http.ResponseWriter, r *http.Request) {
	companyID := r.PathValue("companyID")

	// Build the workbook before touching the response so a failure can
	// still produce a proper error status.
	var buf bytes.Buffer
	if _, err := h.books.ExportConfirmed(r.Context(), userID(r), companyID, &buf); err != nil {
		h.log.Error().Err(err).Str("company", companyID).Msg("export failed")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="TransactWise_Export.xlsx"`)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) runInterlink(w http.ResponseWriter, r *http.Request) {
	companyID := r.PathValue("companyID")

	result, err := h.books.RunInterlink(r.Context(), userID(r), companyID)
	if err != nil {
		h.log.Error().Err(err).Str("company", companyID).Msg("interlink failed")
		if result != nil {
			// Some links committed before the failure; report them.
			WriteJSON(w, status(err), map[string]any{
				"error":         err.Error(),
				"vendorLinks":   result.VendorLinks,
				"customerLinks": result.CustomerLinks,
			})
			return
		}
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"vendorLinks":   result.VendorLinks,
		"customerLinks": result.CustomerLinks,
	})
}

func (h *Handler) listVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.books.ListVendors(r.Context(), userID(r), r.PathValue("companyID"))
	if err != nil {
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"vendors": vendors})
}

func (h *Handler) createVendor(w http.ResponseWriter, r *http.Request) {
	var vendor model.Vendor
	if err := decodeJSON(r, &vendor); err != nil || vendor.VendorName == "" {
		WriteError(w, http.StatusBadRequest, "invalid vendor")
		return
	}
	vendor.CompanyID = r.PathValue("companyID")
	if err := h.books.CreateVendor(r.Context(), userID(r), &vendor); err != nil {
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, &vendor)
}

func (h *Handler) updateVendor(w http.ResponseWriter, r *http.Request) {
	var vendor model.Vendor
	if err := decodeJSON(r, &vendor); err != nil || vendor.VendorName == "" {
		WriteError(w, http.StatusBadRequest, "invalid vendor")
		return
	}
	vendor.ID = r.PathValue("vendorID")
	vendor.CompanyID = r.PathValue("companyID")
	if err := h.books.UpdateVendor(r.Context(), userID(r), &vendor); err != nil {
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, &vendor)
}

func (h *Handler) deleteVendor(w http.ResponseWriter, r *http.Request) {
	err := h.books.DeleteVendor(r.Context(), userID(r), r.PathValue("companyID"), r.PathValue("vendorID"))
	if err != nil {
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.books.ListCustomers(r.Context(), userID(r), r.PathValue("companyID"))
	if err != nil {
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var customer model.Customer
	if err := decodeJSON(r, &customer); err != nil || customer.CustomerName == "" {
		WriteError(w, http.StatusBadRequest, "invalid customer")
		return
	}
	customer.CompanyID = r.PathValue("companyID")
	if err := h.books.CreateCustomer(r.Context(), userID(r), &customer); err != nil {
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, &customer)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var customer model.Customer
	if err := decodeJSON(r, &customer); err != nil || customer.CustomerName == "" {
		WriteError(w, http.StatusBadRequest, "invalid customer")
		return
	}
	customer.ID = r.PathValue("customerID")
	customer.CompanyID = r.PathValue("companyID")
	if err := h.books.UpdateCustomer(r.Context(), userID(r), &customer); err != nil {
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, &customer)
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	err := h.books.DeleteCustomer(r.Context(), userID(r), r.PathValue("companyID"), r.PathValue("customerID"))
	if err != nil {
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.books.ListAccounts(r.Context(), userID(r), r.PathValue("companyID"))
	if err != nil {
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var account model.ChartOfAccount
	if err := decodeJSON(r, &account); err != nil || account.AccountName == "" {
		WriteError(w, http.StatusBadRequest, "invalid account")
		return
	}
	account.CompanyID = r.PathValue("companyID")
	if err := h.books.CreateAccount(r.Context(), userID(r), &account); err != nil {
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, &account)
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	var account model.ChartOfAccount
	if err := decodeJSON(r, &account); err != nil || account.AccountName == "" {
		WriteError(w, http.StatusBadRequest, "invalid account")
		return
	}
	account.ID = r.PathValue("accountID")
	account.CompanyID = r.PathValue("companyID")
	if err := h.books.UpdateAccount(r.Context(), userID(r), &account); err != nil {
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, &account)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	err := h.books.DeleteAccount(r.Context(), userID(r), r.PathValue("companyID"), r.PathValue("accountID"))
	if err != nil {
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type generateAccountsRequest struct {
	Industry string `json:"industry"`
}

func (h *Handler) generateAccounts(w http.ResponseWriter, r *http.Request) {
	companyID := r.PathValue("companyID")

	var req generateAccountsRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accounts, err := h.books.GenerateAccounts(r.Context(), userID(r), companyID, req.Industry)
	if err != nil {
		h.log.Error().Err(err).Str("company", companyID).Msg("account generation failed")
		WriteError(w, status(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"accounts": accounts})
}
