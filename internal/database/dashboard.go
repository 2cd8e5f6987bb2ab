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

package database

import (
	"context"
	"database/sql"
	"time"

	"investment-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetDashboardSummary reads the account, its investments and its pending
// requests from one consistent snapshot.
func (s *Service) GetDashboardSummary(ctx context.Context, userId string, now time.Time) (*models.DashboardSummary, error) {
	zap.L().Debug("Building dashboard summary", zap.String("user_id", userId))

	var summary *models.DashboardSummary
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		acct, err := loadAccount(ctx, tx, userId)
		if err != nil {
			return err
		}
		investments, err := listInvestments(ctx, tx, models.InvestmentFilter{UserId: userId})
		if err != nil {
			return err
		}
		pending, err := getPendingTotals(ctx, tx, userId)
		if err != nil {
			return err
		}

		summary = &models.DashboardSummary{
			UserId:                 acct.Id,
			Balance:                acct.Balance,
			Earnings:               acct.Earnings,
			WithdrawableEarnings:   acct.WithdrawableEarnings,
			TotalDeposits:          acct.TotalDeposits,
			TotalWithdrawals:       acct.TotalWithdrawals,
			EarningsPaused:         acct.EarningsPaused,
			ActivePrincipal:        decimal.Zero,
			MaturedPrincipal:       decimal.Zero,
			PendingDeposits:        pending.deposits,
			PendingWithdrawals:     pending.withdrawals,
			PendingDepositCount:    pending.depositCount,
			PendingWithdrawalCount: pending.withdrawalCount,
			GeneratedAt:            utc(now),
		}
		for _, inv := range investments {
			switch inv.Status {
			case models.InvestmentActive:
				summary.ActiveInvestments++
				summary.ActivePrincipal = summary.ActivePrincipal.Add(inv.Principal)
			case models.InvestmentMatured:
				summary.MaturedPrincipal = summary.MaturedPrincipal.Add(inv.Principal)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
