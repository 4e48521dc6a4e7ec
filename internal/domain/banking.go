/**
 * @description
 * This file defines the core domain models for the banking-gateway: accounts,
 * transactions, deposits and users as served by the upstream core-banking API.
 * The upstream payloads are messy in two well-known ways that these types absorb
 * at the boundary so nothing downstream has to branch on raw JSON shapes:
 *
 * - Monetary fields arrive in the decimal-string wrapper shape and decode through
 *   money.Value.
 * - References (`userId`, `accountId`) arrive either as a bare id string or as a
 *   populated object, depending on whether the upstream expanded the relation.
 *
 * @dependencies
 * - internal/money: Monetary value normalization.
 */

package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/quetzalbank/banking-gateway/internal/money"
)

// UserRef is a reference to a user, either bare (just the id) or populated with
// the denormalized name and email the dashboard needs.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UnmarshalJSON accepts both a bare id string and a populated user object. The
// upstream uses `_id` or `id` interchangeably.
func (u *UserRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*u = UserRef{}
		return nil
	}
	if trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &u.ID)
	}

	var raw struct {
		ID      string `json:"id"`
		MongoID string `json:"_id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	u.ID = raw.ID
	if u.ID == "" {
		u.ID = raw.MongoID
	}
	u.Name = raw.Name
	u.Email = raw.Email
	return nil
}

// AccountRef is a reference to an account, optionally populated with its owner.
// Transactions carry this so per-owner counts can match on the owner's name.
type AccountRef struct {
	ID            string  `json:"id"`
	AccountNumber string  `json:"accountNumber"`
	Owner         UserRef `json:"userId"`
}

// UnmarshalJSON accepts both a bare id string and a populated account object.
func (a *AccountRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*a = AccountRef{}
		return nil
	}
	if trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &a.ID)
	}

	var raw struct {
		ID            string  `json:"id"`
		MongoID       string  `json:"_id"`
		AccountNumber string  `json:"accountNumber"`
		Owner         UserRef `json:"userId"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	a.ID = raw.ID
	if a.ID == "" {
		a.ID = raw.MongoID
	}
	a.AccountNumber = raw.AccountNumber
	a.Owner = raw.Owner
	return nil
}

// Account is a customer account as served by the upstream API. Its balance is
// only ever replaced by server-confirmed refetches, never adjusted locally.
type Account struct {
	ID            string        `json:"id"`
	Owner         UserRef       `json:"userId"`
	AccountNumber string        `json:"accountNumber"`
	Balance       money.Value   `json:"balance"`
	Status        AccountStatus `json:"status"`
	Tier          *string       `json:"tier,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Transaction statuses and type tags as used by the upstream API.
const (
	TransactionDeposit    = "deposit"
	TransactionTransfer   = "transfer"
	TransactionPayment    = "payment"
	TransactionWithdrawal = "withdrawal"

	TransactionCompleted = "completed"
	TransactionPending   = "pending"
	TransactionFailed    = "failed"
)

// Transaction is a ledger movement. The gateway never mutates one; newly created
// transactions only appear through refetches.
type Transaction struct {
	ID        string      `json:"id"`
	Account   AccountRef  `json:"accountId"`
	Amount    money.Value `json:"amount"`
	Type      string      `json:"type"`
	Details   string      `json:"details"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Deposit is a deposit made to an account, reversible for a fixed window measured
// from CreatedAt. Once the window elapses or the deposit is reversed it is immutable.
type Deposit struct {
	ID            string      `json:"id"`
	AccountNumber string      `json:"accountNumber"`
	HolderName    string      `json:"holderName"`
	Amount        money.Value `json:"amount"`
	Reversed      bool        `json:"reversed"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// User is a full user record, used by the admin views.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}
