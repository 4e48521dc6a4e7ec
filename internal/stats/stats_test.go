package stats

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/quetzalbank/banking-gateway/internal/domain"
	"github.com/quetzalbank/banking-gateway/internal/money"
)

func account(owner string, balance string, status any) domain.Account {
	return domain.Account{
		Owner:   domain.UserRef{ID: owner, Name: owner},
		Balance: money.FromDecimal(decimal.RequireFromString(balance)),
		Status:  domain.ParseStatus(status),
	}
}

func txFor(owner string) domain.Transaction {
	return domain.Transaction{Account: domain.AccountRef{Owner: domain.UserRef{Name: owner}}}
}

func TestComputeAccountStats_EmptyCollection(t *testing.T) {
	snap := ComputeAccountStats(nil)
	if snap.TotalAccounts != 0 || snap.ActiveAccounts != 0 {
		t.Fatalf("expected zero counts, got %+v", snap)
	}
	if !snap.TotalBalance.IsZero() {
		t.Fatalf("expected zero balance, got %s", snap.TotalBalance)
	}
	if snap.AvgGrowth != 0 {
		t.Fatalf("expected zero growth, got %v", snap.AvgGrowth)
	}
}

func TestComputeAccountStats_CountsAndSums(t *testing.T) {
	accounts := []domain.Account{
		account("Ana", "100", true),
		account("Bob", "50", false),
	}
	snap := ComputeAccountStats(accounts)

	if snap.TotalAccounts != 2 {
		t.Fatalf("expected 2 accounts, got %d", snap.TotalAccounts)
	}
	if snap.ActiveAccounts != 1 {
		t.Fatalf("expected 1 active account, got %d", snap.ActiveAccounts)
	}
	if !snap.TotalBalance.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected total balance 150, got %s", snap.TotalBalance)
	}
}

func TestComputeAccountStats_GrowthHeuristicFormula(t *testing.T) {
	accounts := []domain.Account{
		account("Ana", "100", true),
		account("Bob", "50", false),
	}
	snap := ComputeAccountStats(accounts)

	want := (150.0 / 2.0) * DefaultGrowthFactor
	if math.Abs(snap.AvgGrowth-want) > 1e-12 {
		t.Fatalf("expected growth %v, got %v", want, snap.AvgGrowth)
	}
}

func TestComputeAccountStats_SuspendedAndPendingNotActive(t *testing.T) {
	accounts := []domain.Account{
		account("Ana", "10", "suspended"),
		account("Bob", "10", "pending"),
		account("Carla", "10", true),
	}
	if snap := ComputeAccountStats(accounts); snap.ActiveAccounts != 1 {
		t.Fatalf("expected only boolean-true to count as active, got %d", snap.ActiveAccounts)
	}
}

func TestCountTransactionsForOwner(t *testing.T) {
	if got := CountTransactionsForOwner(nil, "Ana"); got != 0 {
		t.Fatalf("expected 0 for empty list, got %d", got)
	}

	txs := []domain.Transaction{txFor("Ana"), txFor("Ana"), txFor("Bob")}
	if got := CountTransactionsForOwner(txs, "Ana"); got != 2 {
		t.Fatalf("expected 2 for Ana, got %d", got)
	}
	if got := CountTransactionsForOwner(txs, "ana"); got != 0 {
		t.Fatalf("expected case-sensitive match, got %d", got)
	}
	if got := CountTransactionsForOwner(txs, ""); got != 0 {
		t.Fatalf("expected 0 for blank owner name, got %d", got)
	}
}

func TestSortAccounts_NonePreservesInputOrder(t *testing.T) {
	accounts := []domain.Account{account("Bob", "1", true), account("Ana", "1", true)}
	txs := []domain.Transaction{txFor("Ana"), txFor("Ana")}

	got := SortAccountsByTransactionCount(accounts, txs, OrderNone)
	if got[0].Owner.Name != "Bob" || got[1].Owner.Name != "Ana" {
		t.Fatalf("expected original order, got %s then %s", got[0].Owner.Name, got[1].Owner.Name)
	}
}

func TestSortAccounts_DescOrdersByCount(t *testing.T) {
	accounts := []domain.Account{account("Bob", "1", true), account("Ana", "1", true)}
	txs := []domain.Transaction{txFor("Ana"), txFor("Ana"), txFor("Bob")}

	got := SortAccountsByTransactionCount(accounts, txs, OrderDesc)
	if got[0].Owner.Name != "Ana" {
		t.Fatalf("expected Ana first, got %s", got[0].Owner.Name)
	}
}

func TestSortAccounts_StableTiesAndIdempotent(t *testing.T) {
	accounts := []domain.Account{
		account("Bob", "1", true),
		account("Ana", "1", true),
		account("Carla", "1", true),
	}
	// Bob and Carla tie on zero transactions; they must keep relative order.
	txs := []domain.Transaction{txFor("Ana")}

	first := SortAccountsByTransactionCount(accounts, txs, OrderAsc)
	second := SortAccountsByTransactionCount(first, txs, OrderAsc)

	for i := range first {
		if first[i].Owner.Name != second[i].Owner.Name {
			t.Fatalf("expected idempotent sort, diverged at %d: %s vs %s", i, first[i].Owner.Name, second[i].Owner.Name)
		}
	}
	if first[0].Owner.Name != "Bob" || first[1].Owner.Name != "Carla" {
		t.Fatalf("expected stable tie order Bob,Carla, got %s,%s", first[0].Owner.Name, first[1].Owner.Name)
	}
	if first[2].Owner.Name != "Ana" {
		t.Fatalf("expected Ana last in ascending order, got %s", first[2].Owner.Name)
	}
}

func TestSortAccounts_DoesNotMutateInput(t *testing.T) {
	accounts := []domain.Account{account("Bob", "1", true), account("Ana", "1", true)}
	txs := []domain.Transaction{txFor("Ana"), txFor("Ana")}

	_ = SortAccountsByTransactionCount(accounts, txs, OrderDesc)
	if accounts[0].Owner.Name != "Bob" {
		t.Fatalf("input slice was mutated: %s first", accounts[0].Owner.Name)
	}
}
