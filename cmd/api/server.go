package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"brasisco/account"
	"brasisco/auth"
	"brasisco/dispute"
	"brasisco/ledger"
)

type ctxKey int

const (
	ctxKeyEmail ctxKey = iota
	ctxKeyRole
)

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*account.Account, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (string, account.Role, error)
}

type accountRegistry interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
}

type ledgerEngine interface {
	Deposit(ctx context.Context, email string, amountCents int64) (ledger.Transaction, error)
	Transfer(ctx context.Context, origin, destination string, amountCents int64) (ledger.Transaction, error)
	Reverse(ctx context.Context, transactionID int64) (ledger.Transaction, error)
}

type transactionLog interface {
	ListAll(ctx context.Context) ([]ledger.Transaction, error)
	ListForAccount(ctx context.Context, email string) ([]ledger.Transaction, error)
}

type disputeService interface {
	File(ctx context.Context, params dispute.FileParams) (dispute.Record, error)
	ListPending(ctx context.Context) ([]dispute.PendingDispute, error)
}

// Server exposes the ledger's public contract over JSON HTTP. It owns no
// business rules: every outcome, including the error kind taxonomy, comes
// from the services it fronts.
type Server struct {
	authService    authService
	registry       accountRegistry
	engine         ledgerEngine
	transactionLog transactionLog
	disputeService disputeService
	logger         *zap.Logger
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", s.handleRegister)
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/me/balance", s.withAuth(s.handleBalance))
	mux.HandleFunc("/api/me/transactions", s.withAuth(s.handleMyTransactions))
	mux.HandleFunc("/api/deposits", s.withAuth(s.handleDeposit))
	mux.HandleFunc("/api/transfers", s.withAuth(s.handleTransfer))
	mux.HandleFunc("/api/transactions", s.withAuth(s.requireOperator(s.handleTransactions)))
	mux.HandleFunc("/api/transactions/", s.withAuth(s.requireOperator(s.handleTransactionDetail)))
	mux.HandleFunc("/api/disputes", s.withAuth(s.handleDisputes))
	mux.HandleFunc("/api/disputes/pending", s.withAuth(s.requireOperator(s.handlePendingDisputes)))
	mux.Handle("/metrics", metricsHandler())
	return requestMetrics(mux)
}

// withAuth verifies the bearer token and stashes the caller identity in the
// request context.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		email, role, err := s.authService.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyEmail, email)
		ctx = context.WithValue(ctx, ctxKeyRole, role)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) requireOperator(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if role, _ := r.Context().Value(ctxKeyRole).(account.Role); role != account.RoleOperator {
			writeError(w, http.StatusForbidden, "operator privilege required")
			return
		}
		next(w, r)
	}
}

func callerEmail(r *http.Request) string {
	email, _ := r.Context().Value(ctxKeyEmail).(string)
	return email
}

type accountResponse struct {
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	BalanceCents int64  `json:"balance_cents"`
	Role         string `json:"role"`
	CreatedAt    string `json:"created_at"`
}

func toAccountResponse(acc account.Account) accountResponse {
	return accountResponse{
		Email:        acc.Email,
		FullName:     acc.FullName,
		BalanceCents: acc.BalanceCents,
		Role:         string(acc.Role),
		CreatedAt:    acc.CreatedAt.Format(time.RFC3339),
	}
}

type transactionResponse struct {
	ID          int64   `json:"id"`
	Origin      *string `json:"origin,omitempty"`
	Destination *string `json:"destination,omitempty"`
	Kind        string  `json:"kind"`
	AmountCents int64   `json:"amount_cents"`
	CreatedAt   string  `json:"created_at"`
}

func toTransactionResponse(t ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Origin:      t.Origin,
		Destination: t.Destination,
		Kind:        string(t.Kind),
		AmountCents: t.AmountCents,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
}

type disputeResponse struct {
	ID            string `json:"id"`
	TransactionID int64  `json:"transaction_id"`
	Complainant   string `json:"complainant"`
	Description   string `json:"description"`
	Status        string `json:"status"`
	FiledAt       string `json:"filed_at"`
}

func toDisputeResponse(rec dispute.Record) disputeResponse {
	return disputeResponse{
		ID:            rec.ID,
		TransactionID: rec.TransactionID,
		Complainant:   rec.Complainant,
		Description:   rec.Description,
		Status:        string(rec.Status),
		FiledAt:       rec.FiledAt.Format(time.RFC3339),
	}
}

type pendingDisputeResponse struct {
	disputeResponse
	Kind            string  `json:"kind"`
	Origin          *string `json:"origin,omitempty"`
	Destination     *string `json:"destination,omitempty"`
	OriginName      *string `json:"origin_name,omitempty"`
	DestinationName *string `json:"destination_name,omitempty"`
	AmountCents     int64   `json:"amount_cents"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acc, err := s.authService.Register(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(*acc))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Token   string          `json:"token"`
		Account accountResponse `json:"account"`
	}{result.Token, toAccountResponse(result.Account)})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	acc, err := s.registry.GetByEmail(r.Context(), callerEmail(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		BalanceCents int64 `json:"balance_cents"`
	}{acc.BalanceCents})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		AmountCents int64 `json:"amount_cents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := s.engine.Deposit(r.Context(), callerEmail(r), req.AmountCents)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	recordTransaction(entry.Kind)
	writeJSON(w, http.StatusCreated, toTransactionResponse(entry))
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Destination string `json:"destination"`
		AmountCents int64  `json:"amount_cents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Destination == "" {
		writeError(w, http.StatusBadRequest, "destination is required")
		return
	}

	entry, err := s.engine.Transfer(r.Context(), callerEmail(r), req.Destination, req.AmountCents)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	recordTransaction(entry.Kind)
	writeJSON(w, http.StatusCreated, toTransactionResponse(entry))
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries, err := s.transactionLog.ListAll(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeTransactionList(w, entries)
}

func (s *Server) handleMyTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries, err := s.transactionLog.ListForAccount(r.Context(), callerEmail(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeTransactionList(w, entries)
}

// handleTransactionDetail serves /api/transactions/{id}/reverse.
func (s *Server) handleTransactionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	idPart, action, _ := strings.Cut(rest, "/")
	if action != "reverse" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	entry, err := s.engine.Reverse(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	recordTransaction(entry.Kind)
	writeJSON(w, http.StatusCreated, toTransactionResponse(entry))
}

func (s *Server) handleDisputes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		TransactionID int64  `json:"transaction_id"`
		Description   string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}

	rec, err := s.disputeService.File(r.Context(), dispute.FileParams{
		TransactionID: req.TransactionID,
		Complainant:   callerEmail(r),
		Description:   req.Description,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	recordDisputeFiled()
	writeJSON(w, http.StatusCreated, toDisputeResponse(rec))
}

func (s *Server) handlePendingDisputes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pending, err := s.disputeService.ListPending(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	items := make([]pendingDisputeResponse, 0, len(pending))
	for _, pd := range pending {
		items = append(items, pendingDisputeResponse{
			disputeResponse: toDisputeResponse(pd.Record),
			Kind:            string(pd.Kind),
			Origin:          pd.Origin,
			Destination:     pd.Destination,
			OriginName:      pd.OriginName,
			DestinationName: pd.DestinationName,
			AmountCents:     pd.AmountCents,
		})
	}

	writeJSON(w, http.StatusOK, struct {
		Items []pendingDisputeResponse `json:"items"`
	}{items})
}

func writeTransactionList(w http.ResponseWriter, entries []ledger.Transaction) {
	items := make([]transactionResponse, 0, len(entries))
	for _, t := range entries {
		items = append(items, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, struct {
		Items []transactionResponse `json:"items"`
	}{items})
}

// writeDomainError maps the core's error kinds onto HTTP statuses. Anything
// unrecognized is treated as the store being unavailable: the transaction was
// rolled back and the caller may retry.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, account.ErrNotFound),
		errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, dispute.ErrTransactionNotFound),
		errors.Is(err, dispute.ErrComplainantNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, account.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrNotReversible):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		if s.logger != nil {
			s.logger.Error("store failure", zap.Error(err))
		}
		writeError(w, http.StatusInternalServerError, "store unavailable")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{message})
}
