/**
 * @description
 * This package provides the client for the upstream core-banking REST API. It
 * encapsulates authenticated request construction, response decoding and error
 * mapping for every operation the gateway consumes: accounts, transactions,
 * deposits, favorites and user administration.
 *
 * All monetary fields in upstream payloads decode through domain/money types, so
 * the wrapper decimal-string shape never leaks past this package. Mutating calls
 * carry an Idempotency-Key header so rapid duplicate submissions collapse
 * server-side.
 *
 * @dependencies
 * - github.com/google/uuid: Idempotency keys for mutating requests.
 * - github.com/shopspring/decimal: Amounts on outgoing mutation payloads.
 * - internal/domain: Upstream entity models.
 */
package corebank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quetzalbank/banking-gateway/internal/domain"
)

type contextKey string

const tokenContextKey contextKey = "corebank.bearerToken"

// ContextWithToken attaches the end user's bearer token to the context. The
// gateway forwards the caller's own token; it has no credentials of its own
// beyond the optional service API key.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// TokenFromContext returns the bearer token previously attached, if any.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey).(string)
	return token, ok && token != ""
}

// Client is a client for the core-banking API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new core-banking API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the upstream API, preserved as a typed
// error so callers can distinguish business-rule rejections from transport or
// server failures.
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("core banking api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("core banking api error (status %d)", e.StatusCode)
}

// Rejected reports whether the upstream refused the request on business rules
// (4xx) rather than failing outright.
func (e *APIError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// TransactionQuery controls pagination and scoping for transaction listings.
type TransactionQuery struct {
	AccountID string
	Limit     int
	Skip      int
}

// TransactionPage is one page of transactions plus the total matching count.
type TransactionPage struct {
	Transactions []domain.Transaction `json:"transactions"`
	Total        int                  `json:"total"`
}

// UserUpdate carries the editable fields of a user record.
type UserUpdate struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type createDepositPayload struct {
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount"`
}

// FetchAccounts lists all accounts (admin scope).
func (c *Client) FetchAccounts(ctx context.Context) ([]domain.Account, error) {
	var envelope struct {
		Accounts []domain.Account `json:"accounts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/accounts", nil, false, &envelope); err != nil {
		return nil, err
	}
	return envelope.Accounts, nil
}

// FetchMyAccount returns the authenticated user's own account.
func (c *Client) FetchMyAccount(ctx context.Context) (domain.Account, error) {
	var envelope struct {
		Account domain.Account `json:"account"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/accounts/me", nil, false, &envelope); err != nil {
		return domain.Account{}, err
	}
	return envelope.Account, nil
}

// FetchTransactions lists transactions with pagination, optionally scoped to one
// account.
func (c *Client) FetchTransactions(ctx context.Context, q TransactionQuery) (TransactionPage, error) {
	values := url.Values{}
	if q.AccountID != "" {
		values.Set("accountId", q.AccountID)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Skip > 0 {
		values.Set("skip", strconv.Itoa(q.Skip))
	}
	path := "/api/transactions"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var page TransactionPage
	if err := c.do(ctx, http.MethodGet, path, nil, false, &page); err != nil {
		return TransactionPage{}, err
	}
	return page, nil
}

// FetchUserTransactions lists the authenticated user's own transactions.
func (c *Client) FetchUserTransactions(ctx context.Context) ([]domain.Transaction, error) {
	var envelope struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/transactions/user", nil, false, &envelope); err != nil {
		return nil, err
	}
	return envelope.Transactions, nil
}

// CreateDeposit creates a deposit into the given account number. The caller is
// responsible for refetching balances afterwards; the client never adjusts
// anything locally.
func (c *Client) CreateDeposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (domain.Deposit, error) {
	payload := createDepositPayload{AccountNumber: accountNumber, Amount: amount}
	var envelope struct {
		Deposit domain.Deposit `json:"deposit"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/deposits", payload, true, &envelope); err != nil {
		return domain.Deposit{}, err
	}
	return envelope.Deposit, nil
}

// FetchDeposits lists the authenticated user's deposits, optionally scoped to
// one account.
func (c *Client) FetchDeposits(ctx context.Context, accountID string) ([]domain.Deposit, error) {
	path := "/api/deposits"
	if accountID != "" {
		path += "?accountId=" + url.QueryEscape(accountID)
	}
	var envelope struct {
		Deposits []domain.Deposit `json:"deposits"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, false, &envelope); err != nil {
		return nil, err
	}
	return envelope.Deposits, nil
}

// FetchAllDeposits lists every deposit (admin scope).
func (c *Client) FetchAllDeposits(ctx context.Context) ([]domain.Deposit, error) {
	var envelope struct {
		Deposits []domain.Deposit `json:"deposits"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/deposits/all", nil, false, &envelope); err != nil {
		return nil, err
	}
	return envelope.Deposits, nil
}

// ReverseDeposit asks the upstream to reverse a deposit. The upstream enforces
// the window and the once-only rule; a rejection surfaces as an *APIError and
// must be treated as a no-op by callers.
func (c *Client) ReverseDeposit(ctx context.Context, depositID string) error {
	var envelope struct {
		Success bool `json:"success"`
	}
	path := "/api/deposits/" + url.PathEscape(depositID) + "/reverse"
	if err := c.do(ctx, http.MethodPost, path, nil, true, &envelope); err != nil {
		return err
	}
	if !envelope.Success {
		return &APIError{StatusCode: http.StatusConflict, Message: "deposit reversal was not applied"}
	}
	return nil
}

// ToggleFavorite adds or removes an account from the user's favorites.
func (c *Client) ToggleFavorite(ctx context.Context, accountID string) error {
	path := "/api/favorites/" + url.PathEscape(accountID)
	return c.do(ctx, http.MethodPost, path, nil, true, nil)
}

// FetchFavorites lists the user's favorite accounts.
func (c *Client) FetchFavorites(ctx context.Context) ([]domain.Account, error) {
	var envelope struct {
		Favorites []domain.Account `json:"favorites"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/favorites", nil, false, &envelope); err != nil {
		return nil, err
	}
	return envelope.Favorites, nil
}

// FetchUsers lists all users (admin scope).
func (c *Client) FetchUsers(ctx context.Context) ([]domain.User, error) {
	var envelope struct {
		Users []domain.User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, false, &envelope); err != nil {
		return nil, err
	}
	return envelope.Users, nil
}

// UpdateUser edits a user record (admin scope).
func (c *Client) UpdateUser(ctx context.Context, userID string, update UserUpdate) (domain.User, error) {
	var envelope struct {
		User domain.User `json:"user"`
	}
	path := "/api/users/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodPut, path, update, true, &envelope); err != nil {
		return domain.User{}, err
	}
	return envelope.User, nil
}

// DeleteUser deletes a user record (admin scope).
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	path := "/api/users/" + url.PathEscape(userID)
	return c.do(ctx, http.MethodDelete, path, nil, true, nil)
}

// do executes one request against the upstream API. Mutating calls get an
// idempotency key; the caller's bearer token travels on the context.
func (c *Client) do(ctx context.Context, method, path string, payload any, mutating bool, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s %s request: %w", method, path, err)
		}
		body = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create %s %s request: %w", method, path, err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}
	if token, ok := TokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if mutating {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s %s request: %w", method, path, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, apiErr); err != nil {
			log.Printf("level=warn component=corebank_client op=\"%s %s\" status=%d msg=\"non-2xx response (unparsable error body)\"", method, path, resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || len(bodyBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
