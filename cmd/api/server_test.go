package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"brasisco/account"
	"brasisco/auth"
	"brasisco/dispute"
	"brasisco/ledger"
)

type stubAuthService struct {
	registered  *account.Account
	registerErr error
	loginResult auth.LoginResult
	loginErr    error
	tokenEmail  string
	tokenRole   account.Role
	tokenErr    error
}

func (s *stubAuthService) Register(_ context.Context, _ auth.RegisterRequest) (*account.Account, error) {
	return s.registered, s.registerErr
}

func (s *stubAuthService) Login(_ context.Context, _ auth.LoginRequest) (auth.LoginResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubAuthService) VerifyToken(string) (string, account.Role, error) {
	return s.tokenEmail, s.tokenRole, s.tokenErr
}

type stubRegistry struct {
	acc account.Account
	err error
}

func (s *stubRegistry) GetByEmail(_ context.Context, _ string) (account.Account, error) {
	return s.acc, s.err
}

type stubEngine struct {
	entry ledger.Transaction
	err   error
}

func (s *stubEngine) Deposit(_ context.Context, _ string, _ int64) (ledger.Transaction, error) {
	return s.entry, s.err
}

func (s *stubEngine) Transfer(_ context.Context, _, _ string, _ int64) (ledger.Transaction, error) {
	return s.entry, s.err
}

func (s *stubEngine) Reverse(_ context.Context, _ int64) (ledger.Transaction, error) {
	return s.entry, s.err
}

type stubLog struct {
	entries []ledger.Transaction
	err     error
}

func (s *stubLog) ListAll(_ context.Context) ([]ledger.Transaction, error) {
	return s.entries, s.err
}

func (s *stubLog) ListForAccount(_ context.Context, _ string) ([]ledger.Transaction, error) {
	return s.entries, s.err
}

type stubDisputeService struct {
	record  dispute.Record
	fileErr error
	pending []dispute.PendingDispute
	listErr error
}

func (s *stubDisputeService) File(_ context.Context, _ dispute.FileParams) (dispute.Record, error) {
	return s.record, s.fileErr
}

func (s *stubDisputeService) ListPending(_ context.Context) ([]dispute.PendingDispute, error) {
	return s.pending, s.listErr
}

func authed(r *http.Request, email string, role account.Role) *http.Request {
	ctx := context.WithValue(r.Context(), ctxKeyEmail, email)
	ctx = context.WithValue(ctx, ctxKeyRole, role)
	return r.WithContext(ctx)
}

func TestHandleRegister_Success(t *testing.T) {
	now := time.Date(2024, 10, 31, 15, 4, 5, 0, time.UTC)
	server := &Server{
		authService: &stubAuthService{
			registered: &account.Account{
				Email:        "alice@example.com",
				FullName:     "Alice Silva",
				BalanceCents: account.StartingBalanceCents,
				Role:         account.RoleCustomer,
				CreatedAt:    now,
			},
		},
	}

	body := strings.NewReader(`{"email":"alice@example.com","password":"strongpassword","full_name":"Alice Silva"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/register", body)
	rec := httptest.NewRecorder()

	server.handleRegister(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp accountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Email != "alice@example.com" || resp.BalanceCents != account.StartingBalanceCents {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if resp.CreatedAt != now.Format(time.RFC3339) {
		t.Fatalf("expected createdAt %s, got %s", now.Format(time.RFC3339), resp.CreatedAt)
	}
}

func TestHandleRegister_Duplicate(t *testing.T) {
	server := &Server{authService: &stubAuthService{registerErr: account.ErrDuplicate}}

	body := strings.NewReader(`{"email":"alice@example.com","password":"strongpassword","full_name":"Alice Silva"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/register", body)
	rec := httptest.NewRecorder()

	server.handleRegister(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleRegister_WeakPassword(t *testing.T) {
	server := &Server{authService: &stubAuthService{registerErr: auth.ErrWeakPassword}}

	body := strings.NewReader(`{"email":"alice@example.com","password":"short","full_name":"Alice Silva"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/register", body)
	rec := httptest.NewRecorder()

	server.handleRegister(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleRegister_WrongMethod(t *testing.T) {
	server := &Server{authService: &stubAuthService{}}

	req := httptest.NewRequest(http.MethodGet, "/api/register", nil)
	rec := httptest.NewRecorder()

	server.handleRegister(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	server := &Server{authService: &stubAuthService{loginErr: auth.ErrInvalidCredentials}}

	body := strings.NewReader(`{"email":"alice@example.com","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	rec := httptest.NewRecorder()

	server.handleLogin(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWithAuth_MissingToken(t *testing.T) {
	server := &Server{authService: &stubAuthService{}}

	req := httptest.NewRequest(http.MethodGet, "/api/me/balance", nil)
	rec := httptest.NewRecorder()

	server.withAuth(server.handleBalance)(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWithAuth_PassesIdentity(t *testing.T) {
	server := &Server{
		authService: &stubAuthService{tokenEmail: "alice@example.com", tokenRole: account.RoleCustomer},
		registry:    &stubRegistry{acc: account.Account{Email: "alice@example.com", BalanceCents: 70_000}},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me/balance", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	server.withAuth(server.handleBalance)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		BalanceCents int64 `json:"balance_cents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.BalanceCents != 70_000 {
		t.Fatalf("expected balance 70000, got %d", resp.BalanceCents)
	}
}

func TestHandleDeposit_InvalidAmount(t *testing.T) {
	server := &Server{engine: &stubEngine{err: ledger.ErrInvalidAmount}}

	body := strings.NewReader(`{"amount_cents":-5}`)
	req := httptest.NewRequest(http.MethodPost, "/api/deposits", body)
	rec := httptest.NewRecorder()

	server.handleDeposit(rec, authed(req, "alice@example.com", account.RoleCustomer))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleTransfer_InsufficientFunds(t *testing.T) {
	server := &Server{engine: &stubEngine{err: ledger.ErrInsufficientFunds}}

	body := strings.NewReader(`{"destination":"bob@example.com","amount_cents":999999}`)
	req := httptest.NewRequest(http.MethodPost, "/api/transfers", body)
	rec := httptest.NewRecorder()

	server.handleTransfer(rec, authed(req, "alice@example.com", account.RoleCustomer))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestHandleTransfer_UnknownDestination(t *testing.T) {
	server := &Server{engine: &stubEngine{err: ledger.ErrAccountNotFound}}

	body := strings.NewReader(`{"destination":"ghost@example.com","amount_cents":100}`)
	req := httptest.NewRequest(http.MethodPost, "/api/transfers", body)
	rec := httptest.NewRecorder()

	server.handleTransfer(rec, authed(req, "alice@example.com", account.RoleCustomer))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRequireOperator_Forbidden(t *testing.T) {
	server := &Server{transactionLog: &stubLog{}}

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	rec := httptest.NewRecorder()

	server.requireOperator(server.handleTransactions)(rec, authed(req, "alice@example.com", account.RoleCustomer))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleTransactionDetail_Reverse(t *testing.T) {
	origin := "bob@example.com"
	destination := "alice@example.com"
	server := &Server{engine: &stubEngine{entry: ledger.Transaction{
		ID:          7,
		Origin:      &origin,
		Destination: &destination,
		Kind:        ledger.KindReversal,
		AmountCents: 30_000,
		CreatedAt:   time.Now().UTC(),
	}}}

	req := httptest.NewRequest(http.MethodPost, "/api/transactions/3/reverse", nil)
	rec := httptest.NewRecorder()

	server.handleTransactionDetail(rec, authed(req, "admin@brasisco.com", account.RoleOperator))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp transactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Kind != string(ledger.KindReversal) || resp.AmountCents != 30_000 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleTransactionDetail_NotReversible(t *testing.T) {
	server := &Server{engine: &stubEngine{err: ledger.ErrNotReversible}}

	req := httptest.NewRequest(http.MethodPost, "/api/transactions/3/reverse", nil)
	rec := httptest.NewRecorder()

	server.handleTransactionDetail(rec, authed(req, "admin@brasisco.com", account.RoleOperator))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestHandleTransactionDetail_BadID(t *testing.T) {
	server := &Server{engine: &stubEngine{}}

	req := httptest.NewRequest(http.MethodPost, "/api/transactions/abc/reverse", nil)
	rec := httptest.NewRecorder()

	server.handleTransactionDetail(rec, authed(req, "admin@brasisco.com", account.RoleOperator))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleDisputes_UnknownTransaction(t *testing.T) {
	server := &Server{disputeService: &stubDisputeService{fileErr: dispute.ErrTransactionNotFound}}

	body := strings.NewReader(`{"transaction_id":999,"description":"suspicious"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/disputes", body)
	rec := httptest.NewRecorder()

	server.handleDisputes(rec, authed(req, "bob@example.com", account.RoleCustomer))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandlePendingDisputes_List(t *testing.T) {
	origin := "alice@example.com"
	destination := "bob@example.com"
	server := &Server{disputeService: &stubDisputeService{pending: []dispute.PendingDispute{{
		Record: dispute.Record{
			ID:            "d1",
			TransactionID: 3,
			Complainant:   destination,
			Description:   "not mine",
			Status:        dispute.StatusPending,
			FiledAt:       time.Now().UTC(),
		},
		Kind:        ledger.KindTransfer,
		Origin:      &origin,
		Destination: &destination,
		AmountCents: 30_000,
	}}}}

	req := httptest.NewRequest(http.MethodGet, "/api/disputes/pending", nil)
	rec := httptest.NewRecorder()

	server.handlePendingDisputes(rec, authed(req, "admin@brasisco.com", account.RoleOperator))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Items []pendingDisputeResponse `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].ID != "d1" || payload.Items[0].AmountCents != 30_000 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestWriteDomainError_UnknownMapsToStoreUnavailable(t *testing.T) {
	server := &Server{}
	rec := httptest.NewRecorder()

	server.writeDomainError(rec, errors.New("connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "store unavailable") {
		t.Fatalf("expected store unavailable message, got %s", rec.Body.String())
	}
}
