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

package common

import (
	"context"
	"fmt"

	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/store"

	"go.uber.org/zap"
)

// SelectAccounts resolves the accounts a command operates on. With an email
// filter it returns exactly that account, otherwise every account.
func SelectAccounts(ctx context.Context, dbService store.LedgerStore, emailFilter string, logger *zap.Logger) ([]models.UserAccount, error) {
	if emailFilter != "" {
		logger.Info("Looking up account by email", zap.String("email", emailFilter))
		account, err := dbService.GetAccountByEmail(ctx, emailFilter)
		if err != nil {
			return nil, fmt.Errorf("account not found: %w", err)
		}
		return []models.UserAccount{*account}, nil
	}

	accounts, err := dbService.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	logger.Info("Retrieved accounts", zap.Int("count", len(accounts)))
	return accounts, nil
}

// ResolveAccountId accepts either an account id or an email address
func ResolveAccountId(ctx context.Context, dbService store.LedgerStore, idOrEmail string) (string, error) {
	if idOrEmail == "" {
		return "", fmt.Errorf("%w: user id or email is required", store.ErrInvalidArgument)
	}
	if account, err := dbService.GetAccount(ctx, idOrEmail); err == nil {
		return account.Id, nil
	}
	account, err := dbService.GetAccountByEmail(ctx, idOrEmail)
	if err != nil {
		return "", fmt.Errorf("no account with id or email %q: %w", idOrEmail, err)
	}
	return account.Id, nil
}
