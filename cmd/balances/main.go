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

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"investment-ledger-go/internal/common"
	"investment-ledger-go/internal/config"
	"investment-ledger-go/internal/database"
	"investment-ledger-go/internal/models"

	"go.uber.org/zap"
)

type reportStats struct {
	totalUsers        int
	usersWithFunds    int
	activeInvestments int
	unbalancedUsers   int
}

func printInvestment(inv models.Investment, isLast bool) {
	fmt.Printf("%s %-12s %-8s principal %12s  accrued %12s  cycles %3d  matures %s\n",
		common.BoxPrefix(isLast),
		inv.PlanId,
		inv.Status,
		common.FormatMoney(inv.Principal),
		common.FormatMoney(inv.AccruedTotal),
		inv.CyclesAccrued,
		common.FormatTime(inv.MaturesAt))
}

func printAccount(summary *models.DashboardSummary, account models.UserAccount, report *models.ReconciliationReport) {
	paused := ""
	if summary.EarningsPaused {
		paused = " [earnings paused]"
	}
	fmt.Printf("\n┌─ User: %s (%s)%s\n", account.Name, account.Email, paused)
	fmt.Printf("│  ID: %s  (v%d, updated %s)\n", account.Id, account.Version, common.FormatTime(account.UpdatedAt))
	fmt.Printf("│  Balance:               %14s\n", common.FormatMoney(summary.Balance))
	fmt.Printf("│  Earnings:              %14s\n", common.FormatMoney(summary.Earnings))
	fmt.Printf("│  Withdrawable earnings: %14s\n", common.FormatMoney(summary.WithdrawableEarnings))
	fmt.Printf("│  Deposits / Withdrawals: %s / %s\n",
		common.FormatMoney(summary.TotalDeposits), common.FormatMoney(summary.TotalWithdrawals))
	fmt.Printf("│  Pending: %d deposits (%s), %d withdrawals (%s)\n",
		summary.PendingDepositCount, common.FormatMoney(summary.PendingDeposits),
		summary.PendingWithdrawalCount, common.FormatMoney(summary.PendingWithdrawals))

	status := "balanced"
	if !report.Balanced {
		status = "MISMATCH"
	}
	fmt.Printf("│  Ledger entries: %s\n", status)
	common.PrintBoxSeparator(78)
}

func processAccount(ctx context.Context, account models.UserAccount, dbService *database.Service, now time.Time) (*models.DashboardSummary, bool, error) {
	summary, err := dbService.GetDashboardSummary(ctx, account.Id, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build summary: %w", err)
	}
	report, err := dbService.ReconcileUser(ctx, account.Id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to reconcile: %w", err)
	}
	investments, err := dbService.ListInvestments(ctx, models.InvestmentFilter{UserId: account.Id})
	if err != nil {
		return nil, false, fmt.Errorf("failed to list investments: %w", err)
	}

	printAccount(summary, account, report)
	if len(investments) == 0 {
		fmt.Println("└  no investments")
	}
	for i, inv := range investments {
		printInvestment(inv, i == len(investments)-1)
	}

	return summary, report.Balanced, nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	flag.Parse()

	logger.Info("Starting balance report")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	accounts, err := common.SelectAccounts(ctx, dbService, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to select accounts", zap.Error(err))
	}

	common.PrintHeader("LEDGER BALANCE REPORT", common.DefaultWidth)

	now := time.Now().UTC()
	stats := reportStats{}
	for _, account := range accounts {
		stats.totalUsers++

		summary, balanced, err := processAccount(ctx, account, dbService, now)
		if err != nil {
			logger.Error("Failed to process account",
				zap.String("user_id", account.Id),
				zap.String("email", account.Email),
				zap.Error(err))
			continue
		}

		if summary.Balance.IsPositive() || summary.Earnings.IsPositive() || summary.ActivePrincipal.IsPositive() {
			stats.usersWithFunds++
		}
		stats.activeInvestments += summary.ActiveInvestments
		if !balanced {
			stats.unbalancedUsers++
		}
	}

	footer := fmt.Sprintf("SUMMARY: %d users, %d with funds, %d active investments, %d reconciliation mismatches",
		stats.totalUsers, stats.usersWithFunds, stats.activeInvestments, stats.unbalancedUsers)
	common.PrintFooter(footer, common.DefaultWidth)

	logger.Info("Balance report completed",
		zap.Int("users", stats.totalUsers),
		zap.Int("users_with_funds", stats.usersWithFunds),
		zap.Int("active_investments", stats.activeInvestments),
		zap.Int("reconciliation_mismatches", stats.unbalancedUsers))
}
