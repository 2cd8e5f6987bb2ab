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

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor is the authenticated caller handed over by the auth collaborator
type Actor struct {
	Id   string `json:"id"`
	Role Role   `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// TransactionFilter narrows listTransactions for user and admin views
type TransactionFilter struct {
	UserId string
	Type   TransactionType
	Status TransactionStatus
	Limit  int
	Offset int
}

// InvestmentFilter narrows investment listings
type InvestmentFilter struct {
	UserId string
	Status InvestmentStatus
	Limit  int
	Offset int
}

// DashboardSummary is the per-user view served to the dashboard
type DashboardSummary struct {
	UserId                 string          `json:"user_id"`
	Balance                decimal.Decimal `json:"balance"`
	Earnings               decimal.Decimal `json:"earnings"`
	WithdrawableEarnings   decimal.Decimal `json:"withdrawable_earnings"`
	TotalDeposits          decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals       decimal.Decimal `json:"total_withdrawals"`
	EarningsPaused         bool            `json:"earnings_paused"`
	ActiveInvestments      int             `json:"active_investments"`
	ActivePrincipal        decimal.Decimal `json:"active_principal"`
	MaturedPrincipal       decimal.Decimal `json:"matured_principal"`
	PendingDeposits        decimal.Decimal `json:"pending_deposits"`
	PendingWithdrawals     decimal.Decimal `json:"pending_withdrawals"`
	PendingDepositCount    int             `json:"pending_deposit_count"`
	PendingWithdrawalCount int             `json:"pending_withdrawal_count"`
	GeneratedAt            time.Time       `json:"generated_at"`
}

// TransactionRecord represents a transaction in the user's history
type TransactionRecord struct {
	Id             string            `json:"id"`
	UserId         string            `json:"user_id"`
	Type           TransactionType   `json:"type"`
	Status         TransactionStatus `json:"status"`
	Amount         decimal.Decimal   `json:"amount"`
	PlanId         string            `json:"plan_id,omitempty"`
	Source         WithdrawalSource  `json:"source,omitempty"`
	AccountDetails string            `json:"account_details,omitempty"`
	ProofOfPayment string            `json:"proof_of_payment,omitempty"`
	InvestmentId   string            `json:"investment_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
}

// InvestmentRecord is the API view of an Investment
type InvestmentRecord struct {
	Id            string           `json:"id"`
	PlanId        string           `json:"plan_id"`
	PlanVersion   int              `json:"plan_version"`
	Origin        InvestmentOrigin `json:"origin"`
	Principal     decimal.Decimal  `json:"principal"`
	ProfitPercent decimal.Decimal  `json:"profit_percent"`
	AccruedTotal  decimal.Decimal  `json:"accrued_total"`
	CyclesAccrued int              `json:"cycles_accrued"`
	Status        InvestmentStatus `json:"status"`
	OpenedAt      time.Time        `json:"opened_at"`
	LastAccrualAt time.Time        `json:"last_accrual_at"`
	MaturesAt     time.Time        `json:"matures_at"`
}

// AccrualResult describes what one accrual pass did to one investment
type AccrualResult struct {
	InvestmentId string          `json:"investment_id"`
	UserId       string          `json:"user_id"`
	Cycles       int             `json:"cycles"`
	Forfeited    int             `json:"forfeited"`
	Credited     decimal.Decimal `json:"credited"`
	Matured      bool            `json:"matured"`
}

// ReconciliationReport compares stored fields against the sum of ledger entries
type ReconciliationReport struct {
	UserId     string                          `json:"user_id"`
	Stored     map[LedgerField]decimal.Decimal `json:"stored"`
	Calculated map[LedgerField]decimal.Decimal `json:"calculated"`
	Balanced   bool                            `json:"balanced"`
}

// DepositRequest is a user's request to fund a plan
type DepositRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	PlanId          string          `json:"plan_id"`
	SelectedAccount string          `json:"selected_account"`
	ProofOfPayment  string          `json:"proof_of_payment"`
}

// WithdrawalRequest is a user's request to pay out balance or released earnings
type WithdrawalRequest struct {
	Amount          decimal.Decimal  `json:"amount"`
	Source          WithdrawalSource `json:"source"`
	SelectedAccount string           `json:"selected_account"`
	AccountDetails  string           `json:"account_details"`
}

// ReinvestRequest converts earnings into a new investment
type ReinvestRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PlanId      string          `json:"plan_id"`
	OperationId string          `json:"operation_id,omitempty"`
}

// StatusUpdateRequest is an admin decision on a pending transaction
type StatusUpdateRequest struct {
	Status TransactionStatus `json:"status"`
	Note   string            `json:"note,omitempty"`
}

// AdjustmentRequest is an admin correction; Amount is the signed delta, or the
// absolute target when setting withdrawable earnings
type AdjustmentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	OperationId string          `json:"operation_id,omitempty"`
}
