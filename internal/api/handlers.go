/**
 * @description
 * This file contains the HTTP handlers for the gateway's API endpoints. Handlers
 * are responsible for parsing incoming requests, calling the appropriate methods
 * on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * Error mapping is centralized in handleServiceError: double-submits map to 409,
 * admin gating to 403, upstream rejections keep their upstream status, and any
 * other upstream failure surfaces as 502 so clients can tell a gateway fault from
 * a core-banking rejection.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/deposits, internal/money, internal/stats: Service
 *   logic and the computational core.
 * - pkg/corebank: Upstream error type and query shapes.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quetzalbank/banking-gateway/internal/app"
	"github.com/quetzalbank/banking-gateway/internal/deposits"
	"github.com/quetzalbank/banking-gateway/internal/money"
	"github.com/quetzalbank/banking-gateway/internal/stats"
	"github.com/quetzalbank/banking-gateway/pkg/corebank"
)

// GatewayHandlers holds the application service that handlers will use.
type GatewayHandlers struct {
	service *app.Service
}

// NewGatewayHandlers creates a new instance of GatewayHandlers.
func NewGatewayHandlers(service *app.Service) *GatewayHandlers {
	return &GatewayHandlers{service: service}
}

// depositView is one deposit as rendered to clients: the raw record plus its
// lifecycle state, the whole seconds left in the reversal window, and the amount
// formatted for display.
type depositView struct {
	Deposit       interface{}    `json:"deposit"`
	State         deposits.State `json:"state"`
	SecondsLeft   int64          `json:"secondsLeft"`
	AmountDisplay string         `json:"amountDisplay"`
}

func (h *GatewayHandlers) depositViews(countdowns []deposits.Countdown) []depositView {
	opts := h.service.DepositDisplay()
	out := make([]depositView, 0, len(countdowns))
	for _, c := range countdowns {
		out = append(out, depositView{
			Deposit:       c.Deposit,
			State:         c.State,
			SecondsLeft:   c.SecondsLeft,
			AmountDisplay: money.FormatCurrency(c.Deposit.Amount.Decimal(), opts),
		})
	}
	return out
}

// DashboardHandler returns the aggregate dashboard view: statistics, accounts,
// recent transactions, and live deposit countdowns. Partial failures return 200
// with the per-source errors recorded in the payload.
func (h *GatewayHandlers) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSession(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	d := h.service.LoadDashboard(r.Context(), sess)

	writeJSON(w, http.StatusOK, struct {
		app.Dashboard
		Deposits []depositView `json:"deposits"`
	}{Dashboard: d, Deposits: h.depositViews(d.Deposits)})
}

// ListAccountsHandler returns the accounts visible to the session.
func (h *GatewayHandlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSession(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	accounts, err := h.service.Accounts(r.Context(), sess)
	if err != nil {
		h.handleServiceError(w, err, "failed to list accounts")
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// MyAccountHandler returns the session user's own account.
func (h *GatewayHandlers) MyAccountHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSession(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	account, err := h.service.MyAccount(r.Context(), sess)
	if err != nil {
		h.handleServiceError(w, err, "failed to load account")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// SortedAccountsHandler returns accounts ordered by their owner's transaction
// count. The order query parameter accepts asc, desc, or none; anything else
// falls back to none and preserves the upstream order.
func (h *GatewayHandlers) SortedAccountsHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSession(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	order := stats.ParseOrder(r.URL.Query().Get("order"))
	accounts, err := h.service.SortedAccounts(r.Context(), sess, order)
	if err != nil {
		h.handleServiceError(w, err, "failed to sort accounts")
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// ListTransactionsHandler returns transactions in scope with pagination.
func (h *GatewayHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSession(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	q := corebank.TransactionQuery{AccountID: r.URL.Query().Get("accountId")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			q.Limit = limit
		}
	}
	if raw := r.URL.Query().Get("skip"); raw != "" {
		if skip, err := strconv.Atoi(raw); err == nil && skip > 0 {
			q.Skip = skip
		}
	}

	page, err := h.service.Transactions(r.Context(), sess, q)
	if err != nil {
		h.handleServiceError(w, err, "failed to list transactions")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// CreateDepositHandler creates a deposit upstream. The response carries the
// confirmed deposit, the formatted amount, and the refreshed deposit list; a
// failed refetch after a confirmed creation still returns 201.
func (h *GatewayHandlers) CreateDepositHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSession(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req app.CreateDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AccountNumber == "" {
		writeError(w, http.StatusBadRequest, "accountNumber is required")
		return
	}

	receipt, err := h.service.CreateDeposit(r.Context(), sess, req)
	if err != nil {
		h.handleServiceError(w, err, "failed to create deposit")
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Deposit       interface{}   `json:"deposit"`
		AmountDisplay string        `json:"amountDisplay"`
		Deposits      []depositView `json:"deposits"`
		Account       interface{}   `json:"account,omitempty"`
		RefetchFailed bool          `json:"refetchFailed,omitempty"`
	}{
		Deposit:       receipt.Deposit,
		AmountDisplay: receipt.AmountDisplay,
		Deposits:      h.depositViews(receipt.Deposits),
		Account:       receipt.Account,
		RefetchFailed: receipt.RefetchFailed,
	})
}

// ListDepositsHandler returns the deposits in scope annotated with their live
// countdown state, newest first.
func (h *GatewayHandlers) ListDepositsHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSession(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	countdowns, err := h.service.Deposits(r.Context(), sess)
	if err != nil {
		h.handleServiceError(w, err, "failed to list deposits")
		return
	}
	writeJSON(w, http.StatusOK, h.depositViews(countdowns))
}

// ReverseDepositHandler asks the upstream to reverse a deposit. The upstream is
// the final arbiter; a rejection passes through with its original status and no
// local state changes.
func (h *GatewayHandlers) ReverseDepositHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSession(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	depositID := chi.URLParam(r, "depositID")
	if depositID == "" {
		writeError(w, http.StatusBadRequest, "deposit id is required")
		return
	}

	countdowns, err := h.service.ReverseDeposit(r.Context(), sess, depositID)
	if err != nil {
		h.handleServiceError(w, err, "failed to reverse deposit")
		return
	}
	writeJSON(w, http.StatusOK, h.depositViews(countdowns))
}

// ListFavoritesHandler returns the session user's favorite accounts.
func (h *GatewayHandlers) ListFavoritesHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSession(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	favorites, err := h.service.Favorites(r.Context(), sess)
	if err != nil {
		h.handleServiceError(w, err, "failed to list favorites")
		return
	}
	writeJSON(w, http.StatusOK, favorites)
}

// ToggleFavoriteHandler flips an account's favorite flag and returns the
// refreshed list. A nil list means the toggle succeeded but the refetch did not;
// clients should refetch on their next read.
func (h *GatewayHandlers) ToggleFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSession(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	accountID := chi.URLParam(r, "accountID")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "account id is required")
		return
	}

	favorites, err := h.service.ToggleFavorite(r.Context(), sess, accountID)
	if err != nil {
		h.handleServiceError(w, err, "failed to toggle favorite")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"favorites": favorites})
}

// ListUsersHandler returns all users. Admin only.
func (h *GatewayHandlers) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSession(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	users, err := h.service.Users(r.Context(), sess)
	if err != nil {
		h.handleServiceError(w, err, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// UpdateUserHandler edits a user and returns the updated record plus the
// refreshed list. Admin only.
func (h *GatewayHandlers) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSession(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	var update corebank.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, users, err := h.service.UpdateUser(r.Context(), sess, userID, update)
	if err != nil {
		h.handleServiceError(w, err, "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": updated, "users": users})
}

// DeleteUserHandler deletes a user and returns the refreshed list. Admin only.
func (h *GatewayHandlers) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSession(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	users, err := h.service.DeleteUser(r.Context(), sess, userID)
	if err != nil {
		h.handleServiceError(w, err, "failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// handleServiceError maps service-layer errors onto HTTP statuses.
func (h *GatewayHandlers) handleServiceError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, app.ErrMutationInFlight):
		writeError(w, http.StatusConflict, "A matching request is already in progress")
		return
	case errors.Is(err, app.ErrAdminRequired):
		writeError(w, http.StatusForbidden, "Admin role required")
		return
	case errors.Is(err, app.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "Deposit amount must be positive")
		return
	}

	var apiErr *corebank.APIError
	if errors.As(err, &apiErr) && apiErr.Rejected() {
		writeError(w, apiErr.StatusCode, apiErr.Message)
		return
	}

	log.Printf("level=error component=api msg=%q err=%v", logMsg, err)
	writeError(w, http.StatusBadGateway, "Core banking API is unavailable")
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
