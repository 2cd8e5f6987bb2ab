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
	"errors"
	"fmt"
	"strings"
	"time"

	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Service) CreateAccount(ctx context.Context, userId, name, email string) (*models.UserAccount, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: name and email are required", store.ErrInvalidArgument)
	}
	if userId == "" {
		userId = uuid.New().String()
	}
	zap.L().Info("Creating account", zap.String("id", userId), zap.String("name", name), zap.String("email", email))

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, queryInsertAccount, userId, name, email, now, now)
	if err != nil {
		zap.L().Error("Failed to insert account", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("unable to insert account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		zap.L().Error("Failed to get rows affected", zap.Error(err))
		return nil, fmt.Errorf("unable to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: account with id %s or email %s already exists", store.ErrInvalidArgument, userId, email)
	}

	return s.GetAccount(ctx, userId)
}

func (s *Service) GetAccount(ctx context.Context, userId string) (*models.UserAccount, error) {
	zap.L().Debug("Querying account by ID", zap.String("user_id", userId))
	return loadAccount(ctx, s.db, userId)
}

func (s *Service) GetAccountByEmail(ctx context.Context, email string) (*models.UserAccount, error) {
	zap.L().Debug("Querying account by email", zap.String("email", email))

	account, err := scanAccount(s.db.QueryRowContext(ctx, queryGetAccountByEmail, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, email)
		}
		zap.L().Error("Failed to query account by email", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("unable to query account by email: %w", err)
	}
	return account, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]models.UserAccount, error) {
	zap.L().Debug("Querying accounts")

	rows, err := s.db.QueryContext(ctx, queryListAccounts)
	if err != nil {
		zap.L().Error("Failed to query accounts", zap.Error(err))
		return nil, fmt.Errorf("unable to query accounts: %w", err)
	}
	defer closeRows(rows)

	var accounts []models.UserAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			zap.L().Error("Failed to scan account row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan account row: %w", err)
		}
		accounts = append(accounts, *account)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during account row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}

	zap.L().Debug("Retrieved accounts", zap.Int("count", len(accounts)))
	return accounts, nil
}

// DeleteAccount removes the account and everything that references it in one transaction
func (s *Service) DeleteAccount(ctx context.Context, userId string) error {
	err := s.withAccountTx(ctx, userId, func(tx *sql.Tx) error {
		if _, err := loadAccount(ctx, tx, userId); err != nil {
			return err
		}
		for _, query := range []string{
			queryDeleteAccountStatusChanges,
			queryDeleteAccountTransactions,
			queryDeleteAccountInvestments,
			queryDeleteAccountEntries,
			queryDeleteAccountAdjustments,
			queryDeleteAccount,
		} {
			if _, err := tx.ExecContext(ctx, query, userId); err != nil {
				return fmt.Errorf("failed to delete account data: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("Account deleted", zap.String("user_id", userId))
	return nil
}

// SetEarningsPaused toggles accrual for the account. It takes effect on the next tick.
func (s *Service) SetEarningsPaused(ctx context.Context, userId string, paused bool) (*models.UserAccount, error) {
	var account *models.UserAccount
	err := s.withAccountTx(ctx, userId, func(tx *sql.Tx) error {
		acct, err := loadAccount(ctx, tx, userId)
		if err != nil {
			return err
		}
		if acct.EarningsPaused != paused {
			acct.EarningsPaused = paused
			if err := saveAccount(ctx, tx, acct, time.Now().UTC()); err != nil {
				return err
			}
		}
		account = acct
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Earnings pause updated", zap.String("user_id", userId), zap.Bool("paused", paused))
	return account, nil
}
