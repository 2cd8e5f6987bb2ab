/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

type TransactionStatus string

const (
	StatusPending     TransactionStatus = "pending"
	StatusConfirmed   TransactionStatus = "confirmed"
	StatusNotReceived TransactionStatus = "not_received"
	StatusCompleted   TransactionStatus = "completed"
	StatusFailed      TransactionStatus = "failed"
)

// LedgerField names a monetary field of a UserAccount that ledger entries move
type LedgerField string

const (
	FieldBalance              LedgerField = "balance"
	FieldEarnings             LedgerField = "earnings"
	FieldWithdrawableEarnings LedgerField = "withdrawable_earnings"
)

// WithdrawalSource selects which field a withdrawal is paid from
type WithdrawalSource string

const (
	SourceBalance              WithdrawalSource = "balance"
	SourceWithdrawableEarnings WithdrawalSource = "withdrawable_earnings"
)

type InvestmentStatus string

const (
	InvestmentActive  InvestmentStatus = "active"
	InvestmentMatured InvestmentStatus = "matured"
	InvestmentClosed  InvestmentStatus = "closed"
)

// InvestmentOrigin records what opened an investment
type InvestmentOrigin string

const (
	OriginDeposit      InvestmentOrigin = "deposit"
	OriginReinvestment InvestmentOrigin = "reinvestment"
)

// EntrySource records which event produced a ledger entry
type EntrySource string

const (
	EntrySourceTransaction  EntrySource = "transaction"
	EntrySourceAccrual      EntrySource = "accrual"
	EntrySourceAdjustment   EntrySource = "adjustment"
	EntrySourceReinvestment EntrySource = "reinvestment"
)

// UserAccount is the per-user monetary state (hot data)
type UserAccount struct {
	Id                   string          `db:"id"`
	Name                 string          `db:"name"`
	Email                string          `db:"email"`
	Balance              decimal.Decimal `db:"balance"`
	Earnings             decimal.Decimal `db:"earnings"`
	WithdrawableEarnings decimal.Decimal `db:"withdrawable_earnings"`
	TotalDeposits        decimal.Decimal `db:"total_deposits"`
	TotalWithdrawals     decimal.Decimal `db:"total_withdrawals"`
	EarningsPaused       bool            `db:"earnings_paused"`
	Version              int64           `db:"version"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

// Field returns the current value of a ledger field
func (a *UserAccount) Field(field LedgerField) decimal.Decimal {
	switch field {
	case FieldBalance:
		return a.Balance
	case FieldEarnings:
		return a.Earnings
	case FieldWithdrawableEarnings:
		return a.WithdrawableEarnings
	}
	return decimal.Zero
}

// SetField overwrites a ledger field
func (a *UserAccount) SetField(field LedgerField, value decimal.Decimal) {
	switch field {
	case FieldBalance:
		a.Balance = value
	case FieldEarnings:
		a.Earnings = value
	case FieldWithdrawableEarnings:
		a.WithdrawableEarnings = value
	}
}

// Transaction is a deposit or withdrawal request and its current status
type Transaction struct {
	Id              string            `db:"id"`
	UserId          string            `db:"user_id"`
	Type            TransactionType   `db:"type"`
	Status          TransactionStatus `db:"status"`
	Amount          decimal.Decimal   `db:"amount"`
	PlanId          string            `db:"plan_id"`
	Source          WithdrawalSource  `db:"source"`
	SelectedAccount string            `db:"selected_account"`
	AccountDetails  string            `db:"account_details"`
	ProofOfPayment  string            `db:"proof_of_payment"`
	InvestmentId    string            `db:"investment_id"`
	Version         int64             `db:"version"`
	CreatedAt       time.Time         `db:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at"`
	ResolvedAt      *time.Time        `db:"resolved_at"`
}

// StatusChange is an immutable record of one transaction status transition
type StatusChange struct {
	Id            string            `db:"id"`
	TransactionId string            `db:"transaction_id"`
	FromStatus    TransactionStatus `db:"from_status"`
	ToStatus      TransactionStatus `db:"to_status"`
	ActorId       string            `db:"actor_id"`
	Note          string            `db:"note"`
	CreatedAt     time.Time         `db:"created_at"`
}

// Investment is an active principal instance bound to a plan snapshot
type Investment struct {
	Id            string           `db:"id"`
	UserId        string           `db:"user_id"`
	TransactionId string           `db:"transaction_id"`
	Origin        InvestmentOrigin `db:"origin"`
	PlanId        string           `db:"plan_id"`
	PlanVersion   int              `db:"plan_version"`
	Principal     decimal.Decimal  `db:"principal"`
	ProfitPercent decimal.Decimal  `db:"profit_percent"`
	CycleLength   time.Duration    `db:"cycle_length_ns"`
	Maturity      time.Duration    `db:"maturity_ns"`
	OpenedAt      time.Time        `db:"opened_at"`
	LastAccrualAt time.Time        `db:"last_accrual_at"`
	MaturesAt     time.Time        `db:"matures_at"`
	CyclesAccrued int              `db:"cycles_accrued"`
	AccruedTotal  decimal.Decimal  `db:"accrued_total"`
	Status        InvestmentStatus `db:"status"`
	Version       int64            `db:"version"`
	UpdatedAt     time.Time        `db:"updated_at"`
}

// AdjustmentRecord is the append-only audit row for an admin correction
type AdjustmentRecord struct {
	Id          string          `db:"id"`
	UserId      string          `db:"user_id"`
	Field       LedgerField     `db:"field"`
	Delta       decimal.Decimal `db:"delta"`
	Reason      string          `db:"reason"`
	ActorId     string          `db:"actor_id"`
	OperationId string          `db:"operation_id"`
	CreatedAt   time.Time       `db:"created_at"`
}

// LedgerEntry is the immutable movement record behind every field change (cold data)
type LedgerEntry struct {
	Id            string          `db:"id"`
	UserId        string          `db:"user_id"`
	Field         LedgerField     `db:"field"`
	Amount        decimal.Decimal `db:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after"`
	Source        EntrySource     `db:"source_kind"`
	SourceId      string          `db:"source_id"`
	OperationId   string          `db:"operation_id"`
	CreatedAt     time.Time       `db:"created_at"`
}
