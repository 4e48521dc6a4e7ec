/**
 * @description
 * This file contains the core orchestration logic for the banking-gateway. The
 * `Service` struct sits between the HTTP layer and the upstream core-banking API,
 * and owns the gateway's consistency rules:
 *
 * - Dashboard fetches are independent and unordered; each source carries its own
 *   error and the aggregates are computed over whatever actually arrived.
 * - Mutations are fire-and-refetch: the upstream call is awaited, and only on its
 *   success is the corresponding collection refetched. A failed refetch never
 *   turns a confirmed mutation into a failure, and a failed mutation never
 *   mutates anything locally.
 * - Rapid duplicate mutations are rejected by an in-flight guard per mutation
 *   type, complementing the idempotency keys the client attaches upstream.
 *
 * @dependencies
 * - internal/deposits, internal/stats, internal/money: The computational core.
 * - internal/session: Per-request session context (admin-vs-user scope).
 * - pkg/corebank: Upstream API access.
 */

package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quetzalbank/banking-gateway/internal/deposits"
	"github.com/quetzalbank/banking-gateway/internal/domain"
	"github.com/quetzalbank/banking-gateway/internal/money"
	"github.com/quetzalbank/banking-gateway/internal/session"
	"github.com/quetzalbank/banking-gateway/internal/stats"
	"github.com/quetzalbank/banking-gateway/pkg/corebank"
)

var (
	// ErrMutationInFlight is returned when the same mutation type is already
	// running for the same user, e.g. on a double-submit.
	ErrMutationInFlight = errors.New("mutation already in flight")
	// ErrAdminRequired is returned when a non-admin session uses an admin-scoped
	// operation.
	ErrAdminRequired = errors.New("admin role required")
	// ErrInvalidAmount is returned for non-positive deposit amounts before any
	// upstream call is made.
	ErrInvalidAmount = errors.New("deposit amount must be positive")
)

// CoreBankAPI is the slice of the upstream client the service consumes. The
// concrete implementation is corebank.Client; tests substitute stubs.
type CoreBankAPI interface {
	FetchAccounts(ctx context.Context) ([]domain.Account, error)
	FetchMyAccount(ctx context.Context) (domain.Account, error)
	FetchTransactions(ctx context.Context, q corebank.TransactionQuery) (corebank.TransactionPage, error)
	FetchUserTransactions(ctx context.Context) ([]domain.Transaction, error)
	CreateDeposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (domain.Deposit, error)
	FetchDeposits(ctx context.Context, accountID string) ([]domain.Deposit, error)
	FetchAllDeposits(ctx context.Context) ([]domain.Deposit, error)
	ReverseDeposit(ctx context.Context, depositID string) error
	ToggleFavorite(ctx context.Context, accountID string) error
	FetchFavorites(ctx context.Context) ([]domain.Account, error)
	FetchUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, userID string, update corebank.UserUpdate) (domain.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// Options configures the service's display and aggregation behavior.
type Options struct {
	ReversalWindow     time.Duration
	GrowthFactor       float64
	DepositDisplay     money.Options
	TransactionDisplay money.Options
	DashboardTxLimit   int
}

// Service provides the orchestration logic for the gateway.
type Service struct {
	api     CoreBankAPI
	tracker *deposits.Tracker
	guard   *mutationGuard

	window       time.Duration
	growthFactor float64
	depositFmt   money.Options
	txFmt        money.Options
	txLimit      int
	now          func() time.Time
}

// NewService creates a new gateway service instance.
func NewService(api CoreBankAPI, tracker *deposits.Tracker, opts Options) *Service {
	window := opts.ReversalWindow
	if window <= 0 {
		window = deposits.DefaultReversalWindow
	}
	growth := opts.GrowthFactor
	if growth <= 0 {
		growth = stats.DefaultGrowthFactor
	}
	txLimit := opts.DashboardTxLimit
	if txLimit <= 0 {
		txLimit = 50
	}

	return &Service{
		api:          api,
		tracker:      tracker,
		guard:        newMutationGuard(),
		window:       window,
		growthFactor: growth,
		depositFmt:   opts.DepositDisplay,
		txFmt:        opts.TransactionDisplay,
		txLimit:      txLimit,
		now:          time.Now,
	}
}

// DepositDisplay returns the locale/currency pair for deposit amounts.
func (s *Service) DepositDisplay() money.Options {
	return s.depositFmt
}

// TransactionDisplay returns the locale/currency pair for transaction tables.
func (s *Service) TransactionDisplay() money.Options {
	return s.txFmt
}

func (s *Service) authed(ctx context.Context, sess *session.Session) context.Context {
	return corebank.ContextWithToken(ctx, sess.Token)
}

// DashboardErrors carries the per-source failure messages of a dashboard load.
// An empty string means the source loaded.
type DashboardErrors struct {
	Accounts     string `json:"accounts,omitempty"`
	Transactions string `json:"transactions,omitempty"`
	Deposits     string `json:"deposits,omitempty"`
}

// Any reports whether at least one source failed.
func (e DashboardErrors) Any() bool {
	return e.Accounts != "" || e.Transactions != "" || e.Deposits != ""
}

// Dashboard is the aggregate view for one request: the snapshot statistics plus
// the collections they were derived from. It is recomputed from fresh fetches on
// every call and never cached.
type Dashboard struct {
	Stats            stats.Snapshot       `json:"stats"`
	Accounts         []domain.Account     `json:"accounts"`
	Transactions     []domain.Transaction `json:"transactions"`
	TransactionTotal int                  `json:"transactionTotal"`
	Deposits         []deposits.Countdown `json:"deposits"`
	Errors           DashboardErrors      `json:"errors"`
}

// LoadDashboard fans out the three independent fetches and assembles whatever
// arrived. The fetches may resolve in any order; a failed source leaves its
// collection empty and its error recorded without failing the others.
func (s *Service) LoadDashboard(ctx context.Context, sess *session.Session) Dashboard {
	ctx = s.authed(ctx, sess)

	var (
		accounts []domain.Account
		page     corebank.TransactionPage
		deps     []domain.Deposit

		accErr, txErr, depErr error
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		accounts, accErr = s.fetchAccountsScoped(ctx, sess)
	}()
	go func() {
		defer wg.Done()
		page, txErr = s.fetchTransactionsScoped(ctx, sess, corebank.TransactionQuery{Limit: s.txLimit})
	}()
	go func() {
		defer wg.Done()
		deps, depErr = s.fetchDepositsScoped(ctx, sess)
	}()
	wg.Wait()

	d := Dashboard{
		Accounts:         accounts,
		Transactions:     page.Transactions,
		TransactionTotal: page.Total,
		Stats:            stats.ComputeAccountStatsWithFactor(accounts, s.growthFactor),
	}

	if accErr != nil {
		log.Printf("level=warn component=app op=dashboard source=accounts user_id=%s err=%v", sess.UserID, accErr)
		d.Errors.Accounts = accErr.Error()
	}
	if txErr != nil {
		log.Printf("level=warn component=app op=dashboard source=transactions user_id=%s err=%v", sess.UserID, txErr)
		d.Errors.Transactions = txErr.Error()
	}
	if depErr != nil {
		log.Printf("level=warn component=app op=dashboard source=deposits user_id=%s err=%v", sess.UserID, depErr)
		d.Errors.Deposits = depErr.Error()
	} else {
		s.tracker.SetDeposits(deps)
	}
	d.Deposits = deposits.Countdowns(deps, s.window, s.now())

	return d
}

// Accounts lists accounts in the session's scope: every account for admins, the
// user's own account otherwise.
func (s *Service) Accounts(ctx context.Context, sess *session.Session) ([]domain.Account, error) {
	return s.fetchAccountsScoped(s.authed(ctx, sess), sess)
}

// MyAccount returns the session user's own account.
func (s *Service) MyAccount(ctx context.Context, sess *session.Session) (domain.Account, error) {
	return s.api.FetchMyAccount(s.authed(ctx, sess))
}

// SortedAccounts lists accounts ordered by each owner's transaction count.
func (s *Service) SortedAccounts(ctx context.Context, sess *session.Session, order stats.Order) ([]domain.Account, error) {
	ctx = s.authed(ctx, sess)

	accounts, err := s.fetchAccountsScoped(ctx, sess)
	if err != nil {
		return nil, err
	}
	page, err := s.fetchTransactionsScoped(ctx, sess, corebank.TransactionQuery{Limit: s.txLimit})
	if err != nil {
		return nil, err
	}
	return stats.SortAccountsByTransactionCount(accounts, page.Transactions, order), nil
}

// Transactions lists transactions in the session's scope with pagination.
func (s *Service) Transactions(ctx context.Context, sess *session.Session, q corebank.TransactionQuery) (corebank.TransactionPage, error) {
	return s.fetchTransactionsScoped(s.authed(ctx, sess), sess, q)
}

// CreateDepositRequest is the input for a new deposit.
type CreateDepositRequest struct {
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount"`
}

// DepositReceipt is the result of a confirmed deposit creation. RefetchFailed
// marks that the follow-up refetch did not complete; the creation itself still
// succeeded and the caller must report it as such.
type DepositReceipt struct {
	Deposit       domain.Deposit       `json:"deposit"`
	AmountDisplay string               `json:"amountDisplay"`
	Deposits      []deposits.Countdown `json:"deposits"`
	Account       *domain.Account      `json:"account,omitempty"`
	RefetchFailed bool                 `json:"refetchFailed,omitempty"`
}

// CreateDeposit creates a deposit upstream and refetches the deposit list and
// the user's own account. The refetches are best-effort: their failure is
// recorded on the receipt, never propagated as an error.
func (s *Service) CreateDeposit(ctx context.Context, sess *session.Session, req CreateDepositRequest) (DepositReceipt, error) {
	if req.Amount.Sign() <= 0 {
		return DepositReceipt{}, ErrInvalidAmount
	}
	if !s.guard.begin(sess.UserID, "deposit:create") {
		return DepositReceipt{}, ErrMutationInFlight
	}
	defer s.guard.end(sess.UserID, "deposit:create")

	ctx = s.authed(ctx, sess)
	dep, err := s.api.CreateDeposit(ctx, req.AccountNumber, req.Amount)
	if err != nil {
		return DepositReceipt{}, err
	}

	receipt := DepositReceipt{
		Deposit:       dep,
		AmountDisplay: money.FormatCurrency(dep.Amount.Decimal(), s.depositFmt),
	}

	deps, err := s.fetchDepositsScoped(ctx, sess)
	if err != nil {
		log.Printf("level=warn component=app op=create_deposit msg=\"deposit confirmed but list refetch failed\" user_id=%s err=%v", sess.UserID, err)
		receipt.RefetchFailed = true
		receipt.Deposits = s.tracker.Snapshot()
	} else {
		s.tracker.SetDeposits(deps)
		receipt.Deposits = deposits.Countdowns(deps, s.window, s.now())
	}

	if account, err := s.api.FetchMyAccount(ctx); err != nil {
		log.Printf("level=warn component=app op=create_deposit msg=\"balance refetch failed; balance is stale\" user_id=%s err=%v", sess.UserID, err)
		receipt.RefetchFailed = true
	} else {
		receipt.Account = &account
	}

	return receipt, nil
}

// Deposits lists deposits in scope annotated with their live countdown state, and
// feeds the tracker with the fresh set.
func (s *Service) Deposits(ctx context.Context, sess *session.Session) ([]deposits.Countdown, error) {
	deps, err := s.fetchDepositsScoped(s.authed(ctx, sess), sess)
	if err != nil {
		return nil, err
	}
	s.tracker.SetDeposits(deps)
	return deposits.Countdowns(deps, s.window, s.now()), nil
}

// ReverseDeposit asks the upstream to reverse a deposit and refetches the list on
// success. A rejected or failed call leaves all local state untouched; the
// deposit stays in whatever state a fresh fetch would show.
func (s *Service) ReverseDeposit(ctx context.Context, sess *session.Session, depositID string) ([]deposits.Countdown, error) {
	if !s.guard.begin(sess.UserID, "deposit:reverse") {
		return nil, ErrMutationInFlight
	}
	defer s.guard.end(sess.UserID, "deposit:reverse")

	ctx = s.authed(ctx, sess)
	if err := s.api.ReverseDeposit(ctx, depositID); err != nil {
		return nil, err
	}

	deps, err := s.fetchDepositsScoped(ctx, sess)
	if err != nil {
		log.Printf("level=warn component=app op=reverse_deposit msg=\"reversal confirmed but list refetch failed\" user_id=%s deposit_id=%s err=%v", sess.UserID, depositID, err)
		return s.tracker.Snapshot(), nil
	}
	s.tracker.SetDeposits(deps)
	return deposits.Countdowns(deps, s.window, s.now()), nil
}

// Favorites lists the user's favorite accounts.
func (s *Service) Favorites(ctx context.Context, sess *session.Session) ([]domain.Account, error) {
	return s.api.FetchFavorites(s.authed(ctx, sess))
}

// ToggleFavorite flips an account's favorite flag and refetches the favorites
// list. The refetch is best-effort; a nil slice with nil error means the toggle
// succeeded but the fresh list is not available yet.
func (s *Service) ToggleFavorite(ctx context.Context, sess *session.Session, accountID string) ([]domain.Account, error) {
	if !s.guard.begin(sess.UserID, "favorite:toggle") {
		return nil, ErrMutationInFlight
	}
	defer s.guard.end(sess.UserID, "favorite:toggle")

	ctx = s.authed(ctx, sess)
	if err := s.api.ToggleFavorite(ctx, accountID); err != nil {
		return nil, err
	}

	favorites, err := s.api.FetchFavorites(ctx)
	if err != nil {
		log.Printf("level=warn component=app op=toggle_favorite msg=\"toggle confirmed but refetch failed\" user_id=%s account_id=%s err=%v", sess.UserID, accountID, err)
		return nil, nil
	}
	return favorites, nil
}

// Users lists all users. Admin only.
func (s *Service) Users(ctx context.Context, sess *session.Session) ([]domain.User, error) {
	if !sess.IsAdmin() {
		return nil, ErrAdminRequired
	}
	return s.api.FetchUsers(s.authed(ctx, sess))
}

// UpdateUser edits a user and refetches the user list. Admin only.
func (s *Service) UpdateUser(ctx context.Context, sess *session.Session, userID string, update corebank.UserUpdate) (domain.User, []domain.User, error) {
	if !sess.IsAdmin() {
		return domain.User{}, nil, ErrAdminRequired
	}
	if !s.guard.begin(sess.UserID, "user:update") {
		return domain.User{}, nil, ErrMutationInFlight
	}
	defer s.guard.end(sess.UserID, "user:update")

	ctx = s.authed(ctx, sess)
	updated, err := s.api.UpdateUser(ctx, userID, update)
	if err != nil {
		return domain.User{}, nil, err
	}

	users, err := s.api.FetchUsers(ctx)
	if err != nil {
		log.Printf("level=warn component=app op=update_user msg=\"update confirmed but refetch failed\" admin_id=%s user_id=%s err=%v", sess.UserID, userID, err)
		return updated, nil, nil
	}
	return updated, users, nil
}

// DeleteUser deletes a user and refetches the user list. Admin only.
func (s *Service) DeleteUser(ctx context.Context, sess *session.Session, userID string) ([]domain.User, error) {
	if !sess.IsAdmin() {
		return nil, ErrAdminRequired
	}
	if !s.guard.begin(sess.UserID, "user:delete") {
		return nil, ErrMutationInFlight
	}
	defer s.guard.end(sess.UserID, "user:delete")

	ctx = s.authed(ctx, sess)
	if err := s.api.DeleteUser(ctx, userID); err != nil {
		return nil, err
	}

	users, err := s.api.FetchUsers(ctx)
	if err != nil {
		log.Printf("level=warn component=app op=delete_user msg=\"delete confirmed but refetch failed\" admin_id=%s user_id=%s err=%v", sess.UserID, userID, err)
		return nil, nil
	}
	return users, nil
}

func (s *Service) fetchAccountsScoped(ctx context.Context, sess *session.Session) ([]domain.Account, error) {
	if sess.IsAdmin() {
		return s.api.FetchAccounts(ctx)
	}
	account, err := s.api.FetchMyAccount(ctx)
	if err != nil {
		return nil, err
	}
	return []domain.Account{account}, nil
}

func (s *Service) fetchTransactionsScoped(ctx context.Context, sess *session.Session, q corebank.TransactionQuery) (corebank.TransactionPage, error) {
	if sess.IsAdmin() {
		return s.api.FetchTransactions(ctx, q)
	}
	txs, err := s.api.FetchUserTransactions(ctx)
	if err != nil {
		return corebank.TransactionPage{}, err
	}
	return corebank.TransactionPage{Transactions: txs, Total: len(txs)}, nil
}

func (s *Service) fetchDepositsScoped(ctx context.Context, sess *session.Session) ([]domain.Deposit, error) {
	if sess.IsAdmin() {
		return s.api.FetchAllDeposits(ctx)
	}
	return s.api.FetchDeposits(ctx, "")
}
