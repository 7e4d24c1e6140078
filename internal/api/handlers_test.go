package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transactwise/backend/internal/logger"
	"github.com/transactwise/backend/internal/model"
	"github.com/transactwise/backend/internal/reasoning"
	"github.com/transactwise/backend/internal/review"
	"github.com/transactwise/backend/internal/service"
	"github.com/transactwise/backend/internal/spreadsheet"
	"github.com/transactwise/backend/internal/store"
)

// echoReasoner matches every transaction to the first vendor it is given.
type echoReasoner struct{}

func (echoReasoner) MatchTransactions(ctx context.Context, req *reasoning.MatchRequest) (*reasoning.MatchResponse, error) {
	resp := &reasoning.MatchResponse{}
	if len(req.Vendors) == 0 {
		return resp, nil
	}
	for _, tx := range req.Transactions {
		resp.MatchedTransactions = append(resp.MatchedTransactions, reasoning.MatchedTransaction{
			RawTransactionIndex: tx.Index,
			VendorID:            req.Vendors[0].ID,
		})
	}
	return resp, nil
}

func (echoReasoner) InterlinkAccounts(ctx context.Context, req *reasoning.InterlinkRequest) (*reasoning.InterlinkResponse, error) {
	return &reasoning.InterlinkResponse{}, nil
}

func (echoReasoner) GenerateChartOfAccounts(ctx context.Context, req *reasoning.GenerateCOARequest) (*reasoning.GenerateCOAResponse, error) {
	return &reasoning.GenerateCOAResponse{Accounts: []reasoning.SuggestedAccount{
		{AccountName: req.Industry + " Revenue", AccountType: "Revenue", AccountDescription: "Primary income"},
		{AccountName: "Rent Expense", AccountType: "Expense", AccountDescription: "Premises lease"},
	}}, nil
}

func newTestMux(t *testing.T) (*http.ServeMux, *store.MemoryStore) {
	t.Helper()
	memStore := store.NewMemoryStore()
	log := logger.NewWithWriter(&bytes.Buffer{})
	books := service.NewBooks(memStore, echoReasoner{}, store.NewBulkWriter(memStore), log)

	mux := http.NewServeMux()
	NewHandler(books, log).Register(mux)
	return mux, memStore
}

func uploadRequest(t *testing.T, url, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"busy", review.ErrBusy, http.StatusConflict},
		{"interlink busy", service.ErrInterlinkBusy, http.StatusConflict},
		{"confirmed immutable", review.ErrConfirmedImmutable, http.StatusConflict},
		{"row not found", review.ErrRowNotFound, http.StatusNotFound},
		{"no transactions", review.ErrNoTransactions, http.StatusBadRequest},
		{"bad spreadsheet", spreadsheet.ErrUnsupportedFormat, http.StatusBadRequest},
		{"reasoning failure", &reasoning.Error{Code: reasoning.ErrUnavailable, Message: "down"}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status(tt.err))
		})
	}
}

func TestStatusUnwrapsWrappedReasoningErrors(t *testing.T) {
	inner := &reasoning.Error{Code: reasoning.ErrInvalidResponse, Message: "bad schema"}
	wrapped := &wrapError{inner}
	assert.Equal(t, http.StatusBadGateway, status(wrapped))
}

type wrapError struct{ err error }

func (w *wrapError) Error() string { return "run matching: " + w.err.Error() }
func (w *wrapError) Unwrap() error { return w.err }

func TestUploadAndWorkingSetEndpoints(t *testing.T) {
	mux, _ := newTestMux(t)

	csv := "TransactionDate,Description,Amount\n2024-01-02,Coffee,-4.50\n"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, uploadRequest(t, "/api/companies/co1/transactions/upload", "s.csv", csv))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var uploadResp struct {
		Loaded int `json:"loaded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploadResp))
	assert.Equal(t, 1, uploadResp.Loaded)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/companies/co1/transactions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var wsResp struct {
		Count        int                          `json:"count"`
		Transactions []*model.ReviewedTransaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wsResp))
	assert.Equal(t, 1, wsResp.Count)
	require.Len(t, wsResp.Transactions, 1)
	assert.Equal(t, model.StatusUnmatched, wsResp.Transactions[0].Status)
}

func TestUploadMissingFile(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/companies/co1/transactions/upload", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadUnsupportedFormat(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, uploadRequest(t, "/api/companies/co1/transactions/upload", "s.pdf", "junk"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatchEndpointRunsFullFlow(t *testing.T) {
	mux, memStore := newTestMux(t)
	ctx := context.Background()
	require.NoError(t, memStore.CreateVendor(ctx, "local", &model.Vendor{CompanyID: "co1", VendorName: "Starbucks"}))

	csv := "TransactionDate,Description,Amount\n2024-01-02,STARBUCKS COFFEE,-4.50\n"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, uploadRequest(t, "/api/companies/co1/transactions/upload", "s.csv", csv))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/companies/co1/transactions/match", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Transactions []*model.ReviewedTransaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Transactions, 1)
	assert.Equal(t, model.StatusMatched, resp.Transactions[0].Status)
	assert.Equal(t, "Starbucks", resp.Transactions[0].MatchedEntityName)
}

func TestConfirmEndpointValidation(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/companies/co1/transactions/confirm",
		strings.NewReader(`{"rowIds": []}`))
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/companies/co1/transactions/confirm",
		strings.NewReader(`not json`))
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVendorEndpoints(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/companies/co1/vendors",
		strings.NewReader(`{"vendorName": "Staples", "contactEmail": "orders@staples.com"}`))
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created model.Vendor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "co1", created.CompanyID, "company comes from the path, not the body")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/companies/co1/vendors", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Vendors []*model.Vendor `json:"vendors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Vendors, 1)
	assert.Equal(t, "Staples", listResp.Vendors[0].VendorName)

	// Missing name is rejected.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/companies/co1/vendors", strings.NewReader(`{}`))
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Update takes its ids from the path.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/api/companies/co1/vendors/"+created.ID,
		strings.NewReader(`{"vendorName": "Staples Inc"}`))
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/companies/co1/vendors", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Vendors, 1)
	assert.Equal(t, "Staples Inc", listResp.Vendors[0].VendorName)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/companies/co1/vendors/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/companies/co1/vendors", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Empty(t, listResp.Vendors)
}

func TestAccountEndpoints(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/companies/co1/accounts",
		strings.NewReader(`{"accountName": "Meals", "accountNumber": "6400", "accountType": "Expense"}`))
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created model.ChartOfAccount
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/api/companies/co1/accounts/"+created.ID,
		strings.NewReader(`{"accountName": "Meals & Entertainment", "accountNumber": "6400", "accountType": "Expense"}`))
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var listResp struct {
		Accounts []*model.ChartOfAccount `json:"accounts"`
	}
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/companies/co1/accounts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Accounts, 1)
	assert.Equal(t, "Meals & Entertainment", listResp.Accounts[0].AccountName)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/companies/co1/accounts/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/companies/co1/accounts", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Empty(t, listResp.Accounts)
}

func TestGenerateAccountsEndpoint(t *testing.T) {
	mux, memStore := newTestMux(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/companies/co1/accounts/generate",
		strings.NewReader(`{"industry": "Coffee Shop"}`))
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Accounts []*model.ChartOfAccount `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Accounts, 2)
	assert.Equal(t, "Coffee Shop Revenue", resp.Accounts[0].AccountName)
	assert.NotEmpty(t, resp.Accounts[0].ID)

	accounts, err := memStore.ListAccounts(context.Background(), "local", "co1")
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	// Empty industry is an input error.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/companies/co1/accounts/generate",
		strings.NewReader(`{"industry": ""}`))
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserIDHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "local", userID(req))

	req.Header.Set("X-User-ID", "u42")
	assert.Equal(t, "u42", userID(req))
}
