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

	"investment-ledger-go/internal/common"
	"investment-ledger-go/internal/config"

	"go.uber.org/zap"
)

func printCatalog(services *common.Services) {
	common.PrintHeader(fmt.Sprintf("PLAN CATALOG (version %d)", services.Plans.Version()), common.DefaultWidth)
	plans := services.Plans.List()
	for i, plan := range plans {
		upper := "unbounded"
		if plan.MaxAmount.Valid {
			upper = common.FormatMoney(plan.MaxAmount.Decimal)
		}
		fmt.Printf("%s %-14s %-20s %12s - %-12s %6s%% / %-6s maturity %s\n",
			common.BoxPrefix(i == len(plans)-1),
			plan.Id,
			plan.Name,
			common.FormatMoney(plan.MinAmount),
			upper,
			plan.ProfitPercent.String(),
			plan.CycleLength,
			plan.Maturity)
	}
}

// verifyLedger reconciles every account against its ledger entries and
// returns the number of mismatches
func verifyLedger(ctx context.Context, services *common.Services) int {
	accounts, err := services.DbService.ListAccounts(ctx)
	if err != nil {
		zap.L().Error("Failed to list accounts", zap.Error(err))
		return 0
	}

	mismatches := 0
	for _, account := range accounts {
		report, err := services.DbService.ReconcileUser(ctx, account.Id)
		if err != nil {
			zap.L().Error("Failed to reconcile account", zap.String("user_id", account.Id), zap.Error(err))
			continue
		}
		if !report.Balanced {
			mismatches++
			fmt.Printf("✗ %s (%s): stored fields do not match ledger entries\n", account.Email, common.ShortId(account.Id))
		}
	}
	fmt.Printf("\nVerified %d accounts, %d mismatches\n", len(accounts), mismatches)
	return mismatches
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	initFlag := flag.Bool("init", false, "Initialize the database schema")
	dummyFlag := flag.Bool("dummy-users", false, "Seed the dummy accounts used for local testing (implies --init)")
	verifyFlag := flag.Bool("verify", false, "Reconcile every account against its ledger entries")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}
	if *dummyFlag {
		cfg.Database.CreateDummyUsers = true
	}

	// Opening the store creates any missing tables
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *initFlag || *dummyFlag {
		zap.L().Info("Database schema ready", zap.String("path", cfg.Database.Path))
	}

	printCatalog(services)

	if *verifyFlag {
		if mismatches := verifyLedger(ctx, services); mismatches > 0 {
			zap.L().Error("Ledger verification found mismatches", zap.Int("mismatches", mismatches))
		}
	}
}
