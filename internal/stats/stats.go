/**
 * @description
 * This package centralizes the derived account statistics the dashboards display:
 * counts, balance sums, the growth heuristic and per-owner transaction counts.
 * Call sites used to re-derive these inline on every render; funnelling them
 * through one package guarantees every view agrees on the numbers.
 *
 * All functions here are pure and total: no I/O, no mutation of inputs, and a
 * defined result for empty or partial collections. Failed fetches upstream simply
 * hand these functions whatever slice arrived, including nil.
 *
 * @dependencies
 * - github.com/shopspring/decimal: Exact balance summation.
 * - internal/domain, internal/money: Models and monetary normalization.
 */

package stats

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quetzalbank/banking-gateway/internal/domain"
	"github.com/quetzalbank/banking-gateway/internal/money"
)

// DefaultGrowthFactor is the scaling constant of the average-growth display
// heuristic. The formula is intentionally preserved as-is; it is a display
// artifact, not a financial computation.
const DefaultGrowthFactor = 0.000009

// Snapshot is the derived statistics over a collection of accounts. It is never
// stored; it is recomputed from the latest fetched collection on every request.
type Snapshot struct {
	TotalAccounts  int             `json:"totalAccounts"`
	ActiveAccounts int             `json:"activeAccounts"`
	TotalBalance   decimal.Decimal `json:"totalBalance"`
	AvgGrowth      float64         `json:"avgGrowth"`
}

// ComputeAccountStats derives the dashboard snapshot with the default growth factor.
func ComputeAccountStats(accounts []domain.Account) Snapshot {
	return ComputeAccountStatsWithFactor(accounts, DefaultGrowthFactor)
}

// ComputeAccountStatsWithFactor derives the dashboard snapshot. An empty or nil
// collection yields the zero snapshot; there is no division by zero.
func ComputeAccountStatsWithFactor(accounts []domain.Account, growthFactor float64) Snapshot {
	snap := Snapshot{TotalAccounts: len(accounts)}

	total := decimal.Decimal{}
	for _, acct := range accounts {
		if acct.Status.IsActive() {
			snap.ActiveAccounts++
		}
		total = total.Add(money.Normalize(acct.Balance))
	}
	snap.TotalBalance = total

	if snap.TotalAccounts > 0 {
		avg, _ := total.Div(decimal.NewFromInt(int64(snap.TotalAccounts))).Float64()
		snap.AvgGrowth = avg * growthFactor
	}
	return snap
}

// CountTransactionsForOwner counts the transactions whose account owner name
// equals ownerName, exact and case-sensitive. A blank owner name, an empty list
// or no matches all yield 0. Runs in O(len(transactions)).
func CountTransactionsForOwner(transactions []domain.Transaction, ownerName string) int {
	if strings.TrimSpace(ownerName) == "" {
		return 0
	}
	count := 0
	for _, tx := range transactions {
		if tx.Account.Owner.Name == ownerName {
			count++
		}
	}
	return count
}

// OwnerTransactionCounts builds the per-owner-name transaction counts in a single
// pass. Callers sorting or rendering per-account counts use this instead of
// calling CountTransactionsForOwner once per account.
func OwnerTransactionCounts(transactions []domain.Transaction) map[string]int {
	counts := make(map[string]int, len(transactions))
	for _, tx := range transactions {
		if name := tx.Account.Owner.Name; name != "" {
			counts[name]++
		}
	}
	return counts
}

// Order selects how accounts are sorted by transaction count.
type Order string

const (
	OrderNone Order = "none"
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ParseOrder maps a raw query value to an Order, defaulting to OrderNone.
func ParseOrder(raw string) Order {
	switch Order(strings.ToLower(strings.TrimSpace(raw))) {
	case OrderAsc:
		return OrderAsc
	case OrderDesc:
		return OrderDesc
	default:
		return OrderNone
	}
}

// SortAccountsByTransactionCount returns a new slice of accounts ordered by each
// owner's transaction count. OrderNone preserves the original order; ties keep
// their original relative order (the sort is explicitly stable). The input slice
// is never mutated.
func SortAccountsByTransactionCount(accounts []domain.Account, transactions []domain.Transaction, order Order) []domain.Account {
	out := append([]domain.Account(nil), accounts...)
	if order != OrderAsc && order != OrderDesc {
		return out
	}

	counts := OwnerTransactionCounts(transactions)
	sort.SliceStable(out, func(i, j int) bool {
		ci := counts[out[i].Owner.Name]
		cj := counts[out[j].Owner.Name]
		if order == OrderAsc {
			return ci < cj
		}
		return ci > cj
	})
	return out
}
