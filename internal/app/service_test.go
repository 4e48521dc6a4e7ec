package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quetzalbank/banking-gateway/internal/deposits"
	"github.com/quetzalbank/banking-gateway/internal/domain"
	"github.com/quetzalbank/banking-gateway/internal/money"
	"github.com/quetzalbank/banking-gateway/internal/session"
	"github.com/quetzalbank/banking-gateway/pkg/corebank"
)

var testBase = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type apiStub struct {
	mu    sync.Mutex
	calls map[string]int

	accounts    []domain.Account
	accountsErr error

	myAccount    domain.Account
	myAccountErr error

	page    corebank.TransactionPage
	pageErr error

	userTxs    []domain.Transaction
	userTxsErr error

	deposits    []domain.Deposit
	depositsErr error

	allDeposits    []domain.Deposit
	allDepositsErr error

	created   domain.Deposit
	createErr error
	createGo  chan struct{} // when set, CreateDeposit blocks until closed

	reverseErr error

	favorites    []domain.Account
	favoritesErr error
	toggleErr    error

	users     []domain.User
	usersErr  error
	updated   domain.User
	updateErr error
	deleteErr error
}

func (s *apiStub) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[name]++
}

func (s *apiStub) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *apiStub) FetchAccounts(ctx context.Context) ([]domain.Account, error) {
	s.record("FetchAccounts")
	return s.accounts, s.accountsErr
}

func (s *apiStub) FetchMyAccount(ctx context.Context) (domain.Account, error) {
	s.record("FetchMyAccount")
	return s.myAccount, s.myAccountErr
}

func (s *apiStub) FetchTransactions(ctx context.Context, q corebank.TransactionQuery) (corebank.TransactionPage, error) {
	s.record("FetchTransactions")
	return s.page, s.pageErr
}

func (s *apiStub) FetchUserTransactions(ctx context.Context) ([]domain.Transaction, error) {
	s.record("FetchUserTransactions")
	return s.userTxs, s.userTxsErr
}

func (s *apiStub) CreateDeposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (domain.Deposit, error) {
	s.record("CreateDeposit")
	if s.createGo != nil {
		<-s.createGo
	}
	return s.created, s.createErr
}

func (s *apiStub) FetchDeposits(ctx context.Context, accountID string) ([]domain.Deposit, error) {
	s.record("FetchDeposits")
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deposits, s.depositsErr
}

func (s *apiStub) FetchAllDeposits(ctx context.Context) ([]domain.Deposit, error) {
	s.record("FetchAllDeposits")
	return s.allDeposits, s.allDepositsErr
}

func (s *apiStub) ReverseDeposit(ctx context.Context, depositID string) error {
	s.record("ReverseDeposit")
	return s.reverseErr
}

func (s *apiStub) ToggleFavorite(ctx context.Context, accountID string) error {
	s.record("ToggleFavorite")
	return s.toggleErr
}

func (s *apiStub) FetchFavorites(ctx context.Context) ([]domain.Account, error) {
	s.record("FetchFavorites")
	return s.favorites, s.favoritesErr
}

func (s *apiStub) FetchUsers(ctx context.Context) ([]domain.User, error) {
	s.record("FetchUsers")
	return s.users, s.usersErr
}

func (s *apiStub) UpdateUser(ctx context.Context, userID string, update corebank.UserUpdate) (domain.User, error) {
	s.record("UpdateUser")
	return s.updated, s.updateErr
}

func (s *apiStub) DeleteUser(ctx context.Context, userID string) error {
	s.record("DeleteUser")
	return s.deleteErr
}

func (s *apiStub) setDeposits(deps []domain.Deposit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deposits = deps
}

func newTestService(stub *apiStub, clock func() time.Time) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracker := deposits.NewTrackerWithClock(60*time.Second, logger, clock)
	svc := NewService(stub, tracker, Options{
		ReversalWindow:     60 * time.Second,
		DepositDisplay:     money.Options{Locale: "es-GT", Currency: "GTQ"},
		TransactionDisplay: money.Options{Locale: "es-MX", Currency: "MXN"},
	})
	svc.now = clock
	return svc
}

func userSession() *session.Session {
	return &session.Session{UserID: "u-1", Name: "Ana", Role: "user", Token: "tok"}
}

func adminSession() *session.Session {
	return &session.Session{UserID: "adm-1", Name: "Root", Role: session.RoleAdmin, Token: "tok"}
}

func balance(s string) money.Value {
	return money.FromDecimal(decimal.RequireFromString(s))
}

func TestLoadDashboard_ToleratesPartialData(t *testing.T) {
	now := testBase
	stub := &apiStub{
		accountsErr: errors.New("accounts endpoint down"),
		page: corebank.TransactionPage{
			Transactions: []domain.Transaction{{ID: "t-1"}},
			Total:        1,
		},
		allDeposits: []domain.Deposit{{ID: "d-1", CreatedAt: now.Add(-10 * time.Second)}},
	}
	svc := newTestService(stub, func() time.Time { return now })

	d := svc.LoadDashboard(context.Background(), adminSession())

	if d.Errors.Accounts == "" {
		t.Fatal("expected accounts error to be recorded")
	}
	if d.Errors.Transactions != "" || d.Errors.Deposits != "" {
		t.Fatalf("expected only accounts to fail, got %+v", d.Errors)
	}
	if len(d.Transactions) != 1 || d.TransactionTotal != 1 {
		t.Fatalf("expected transactions to render despite accounts failure, got %d", len(d.Transactions))
	}
	if len(d.Deposits) != 1 || d.Deposits[0].State != deposits.StateActive {
		t.Fatalf("expected live deposit countdown, got %+v", d.Deposits)
	}
	// Aggregates over the partial (empty) accounts collection, no crash.
	if d.Stats.TotalAccounts != 0 || d.Stats.AvgGrowth != 0 {
		t.Fatalf("expected zero stats over missing accounts, got %+v", d.Stats)
	}
}

func TestLoadDashboard_UserScopeUsesOwnEndpoints(t *testing.T) {
	now := testBase
	stub := &apiStub{
		myAccount: domain.Account{ID: "a-1", Balance: balance("100"), Status: domain.ParseStatus(true)},
		userTxs:   []domain.Transaction{{ID: "t-1"}, {ID: "t-2"}},
	}
	svc := newTestService(stub, func() time.Time { return now })

	d := svc.LoadDashboard(context.Background(), userSession())

	if stub.count("FetchAccounts") != 0 || stub.count("FetchTransactions") != 0 || stub.count("FetchAllDeposits") != 0 {
		t.Fatal("expected user scope to avoid admin endpoints")
	}
	if stub.count("FetchMyAccount") != 1 || stub.count("FetchUserTransactions") != 1 || stub.count("FetchDeposits") != 1 {
		t.Fatalf("expected own-scope endpoints, got %+v", stub.calls)
	}
	if d.Stats.TotalAccounts != 1 || d.Stats.ActiveAccounts != 1 {
		t.Fatalf("expected single-account stats, got %+v", d.Stats)
	}
	if d.TransactionTotal != 2 {
		t.Fatalf("expected total from own list length, got %d", d.TransactionTotal)
	}
}

func TestCreateDeposit_RejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(&apiStub{}, func() time.Time { return testBase })

	_, err := svc.CreateDeposit(context.Background(), userSession(), CreateDepositRequest{
		AccountNumber: "000123",
		Amount:        decimal.Zero,
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestCreateDeposit_SuccessSurvivesRefetchFailure(t *testing.T) {
	now := testBase
	stub := &apiStub{
		created:      domain.Deposit{ID: "d-1", Amount: balance("250.50"), CreatedAt: now},
		depositsErr:  errors.New("deposit list unavailable"),
		myAccountErr: errors.New("account unavailable"),
	}
	svc := newTestService(stub, func() time.Time { return now })

	receipt, err := svc.CreateDeposit(context.Background(), userSession(), CreateDepositRequest{
		AccountNumber: "000123",
		Amount:        decimal.RequireFromString("250.50"),
	})
	if err != nil {
		t.Fatalf("expected creation success independent of refetch, got %v", err)
	}
	if !receipt.RefetchFailed {
		t.Fatal("expected refetch failure to be flagged")
	}
	if receipt.Deposit.ID != "d-1" {
		t.Fatalf("expected confirmed deposit on receipt, got %+v", receipt.Deposit)
	}
	if receipt.AmountDisplay == "" {
		t.Fatal("expected formatted amount on receipt")
	}
}

func TestCreateDeposit_GuardsDoubleSubmit(t *testing.T) {
	now := testBase
	release := make(chan struct{})
	stub := &apiStub{
		created:  domain.Deposit{ID: "d-1", CreatedAt: now},
		createGo: release,
	}
	svc := newTestService(stub, func() time.Time { return now })
	sess := userSession()
	req := CreateDepositRequest{AccountNumber: "000123", Amount: decimal.NewFromInt(10)}

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.CreateDeposit(context.Background(), sess, req)
		firstDone <- err
	}()

	// Wait until the first call is inside the upstream request.
	for stub.count("CreateDeposit") == 0 {
		time.Sleep(time.Millisecond)
	}

	_, err := svc.CreateDeposit(context.Background(), sess, req)
	if !errors.Is(err, ErrMutationInFlight) {
		t.Fatalf("expected ErrMutationInFlight for double submit, got %v", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("expected first submit to succeed, got %v", err)
	}
	if got := stub.count("CreateDeposit"); got != 1 {
		t.Fatalf("expected exactly one upstream create, got %d", got)
	}
}

func TestReverseDeposit_FailureLeavesStateUntouched(t *testing.T) {
	now := testBase
	stub := &apiStub{
		deposits:   []domain.Deposit{{ID: "d-1", CreatedAt: now.Add(-10 * time.Second)}},
		reverseErr: &corebank.APIError{StatusCode: 409, Message: "reversal window has elapsed"},
	}
	svc := newTestService(stub, func() time.Time { return now })
	sess := userSession()

	if _, err := svc.Deposits(context.Background(), sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := svc.tracker.Snapshot()

	_, err := svc.ReverseDeposit(context.Background(), sess, "d-1")
	var apiErr *corebank.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected upstream rejection to surface, got %v", err)
	}

	after := svc.tracker.Snapshot()
	if len(before) != len(after) || before[0].State != after[0].State {
		t.Fatalf("expected no local state change on failed reversal: %+v vs %+v", before, after)
	}
	if stub.count("FetchDeposits") != 1 {
		t.Fatalf("expected no refetch after failed reversal, got %d fetches", stub.count("FetchDeposits"))
	}
}

func TestDepositLifecycle_EndToEnd(t *testing.T) {
	now := testBase
	clock := func() time.Time { return now }

	stub := &apiStub{created: domain.Deposit{ID: "d-1", Amount: balance("100"), CreatedAt: testBase}}
	svc := newTestService(stub, clock)
	sess := userSession()

	// Create at t0; the server list now contains it.
	stub.setDeposits([]domain.Deposit{{ID: "d-1", Amount: balance("100"), CreatedAt: testBase}})
	receipt, err := svc.CreateDeposit(context.Background(), sess, CreateDepositRequest{
		AccountNumber: "000123",
		Amount:        decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Deposits[0].State != deposits.StateActive {
		t.Fatalf("expected fresh deposit active, got %s", receipt.Deposits[0].State)
	}

	// At t0+30s it is still reversible.
	now = testBase.Add(30 * time.Second)
	list, err := svc.Deposits(context.Background(), sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list[0].State != deposits.StateActive || list[0].SecondsLeft != 30 {
		t.Fatalf("expected 30s of eligibility left, got %+v", list[0])
	}

	// Reverse; the confirmed refetch shows reversed=true.
	stub.setDeposits([]domain.Deposit{{ID: "d-1", Amount: balance("100"), CreatedAt: testBase, Reversed: true}})
	list, err = svc.ReverseDeposit(context.Background(), sess, "d-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list[0].State != deposits.StateReversed {
		t.Fatalf("expected reversed state after confirmation, got %s", list[0].State)
	}

	// Reversed stays terminal regardless of elapsed time.
	now = testBase.Add(2 * time.Hour)
	list, err = svc.Deposits(context.Background(), sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list[0].State != deposits.StateReversed || list[0].SecondsLeft != 0 {
		t.Fatalf("expected terminal reversed state, got %+v", list[0])
	}
}

func TestToggleFavorite_RefetchFailureIsNotAnError(t *testing.T) {
	stub := &apiStub{favoritesErr: errors.New("favorites unavailable")}
	svc := newTestService(stub, func() time.Time { return testBase })

	favorites, err := svc.ToggleFavorite(context.Background(), userSession(), "a-1")
	if err != nil {
		t.Fatalf("expected confirmed toggle to succeed, got %v", err)
	}
	if favorites != nil {
		t.Fatalf("expected nil list when refetch failed, got %v", favorites)
	}
}

func TestUsers_AdminGate(t *testing.T) {
	stub := &apiStub{users: []domain.User{{ID: "u-1"}}}
	svc := newTestService(stub, func() time.Time { return testBase })

	if _, err := svc.Users(context.Background(), userSession()); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired, got %v", err)
	}
	users, err := svc.Users(context.Background(), adminSession())
	if err != nil || len(users) != 1 {
		t.Fatalf("expected admin listing to work, got %v / %d", err, len(users))
	}
	if _, _, err := svc.UpdateUser(context.Background(), userSession(), "u-2", corebank.UserUpdate{}); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired on update, got %v", err)
	}
	if _, err := svc.DeleteUser(context.Background(), userSession(), "u-2"); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired on delete, got %v", err)
	}
}

func TestSortedAccounts_DelegatesToStableSort(t *testing.T) {
	stub := &apiStub{
		accounts: []domain.Account{
			{ID: "a-1", Owner: domain.UserRef{Name: "Bob"}},
			{ID: "a-2", Owner: domain.UserRef{Name: "Ana"}},
		},
		page: corebank.TransactionPage{Transactions: []domain.Transaction{
			{Account: domain.AccountRef{Owner: domain.UserRef{Name: "Ana"}}},
			{Account: domain.AccountRef{Owner: domain.UserRef{Name: "Ana"}}},
		}},
	}
	svc := newTestService(stub, func() time.Time { return testBase })

	sorted, err := svc.SortedAccounts(context.Background(), adminSession(), "desc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sorted[0].Owner.Name != "Ana" {
		t.Fatalf("expected Ana first in desc order, got %s", sorted[0].Owner.Name)
	}
}
