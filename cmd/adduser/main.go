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
	"errors"
	"flag"
	"fmt"
	"regexp"
	"strings"

	"investment-ledger-go/internal/common"
	"investment-ledger-go/internal/config"
	"investment-ledger-go/internal/store"

	"go.uber.org/zap"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	return nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	nameFlag := flag.String("name", "", "User's full name (required)")
	emailFlag := flag.String("email", "", "User's email address (required)")
	flag.Parse()

	name := strings.TrimSpace(*nameFlag)
	email := strings.ToLower(strings.TrimSpace(*emailFlag))

	if err := validateName(name); err != nil {
		zap.L().Fatal("Invalid name", zap.Error(err))
	}
	if err := validateEmail(email); err != nil {
		zap.L().Fatal("Invalid email", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Initializing services")
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	account, err := services.Ledger.CreateAccount(ctx, name, email)
	if err != nil {
		if errors.Is(err, store.ErrInvalidArgument) {
			zap.L().Fatal("Account could not be created", zap.String("email", email), zap.Error(err))
		}
		zap.L().Fatal("Failed to create account", zap.Error(err))
	}

	common.PrintHeader("ACCOUNT CREATED", common.DefaultWidth)
	fmt.Printf("ID:                     %s\n", account.Id)
	fmt.Printf("Name:                   %s\n", account.Name)
	fmt.Printf("Email:                  %s\n", account.Email)
	fmt.Printf("Balance:                %s\n", common.FormatMoney(account.Balance))
	fmt.Printf("Earnings:               %s\n", common.FormatMoney(account.Earnings))
	fmt.Printf("Withdrawable earnings:  %s\n", common.FormatMoney(account.WithdrawableEarnings))
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	fmt.Println("Available plans:")
	for _, plan := range services.Ledger.ListPlans() {
		upper := "unbounded"
		if plan.MaxAmount.Valid {
			upper = common.FormatMoney(plan.MaxAmount.Decimal)
		}
		fmt.Printf("  %-14s %s - %s, %s%% every %s\n",
			plan.Id, common.FormatMoney(plan.MinAmount), upper, plan.ProfitPercent.String(), plan.CycleLength)
	}
	fmt.Println()

	zap.L().Info("Account created successfully", zap.String("id", account.Id))
}
