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
	"fmt"
	"time"

	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Credit adds a positive amount to one ledger field. The entry must be
// attributed to a transaction or investment event; admin corrections go
// through ApplyAdjustment so the audit record is written with them.
func (s *Service) Credit(ctx context.Context, params store.MutationParams) (*models.LedgerEntry, error) {
	return s.mutate(ctx, params, params.Amount)
}

// Debit removes a positive amount from one ledger field. It fails with
// ErrInsufficientFunds when the amount exceeds the current value.
func (s *Service) Debit(ctx context.Context, params store.MutationParams) (*models.LedgerEntry, error) {
	return s.mutate(ctx, params, params.Amount.Neg())
}

func (s *Service) mutate(ctx context.Context, params store.MutationParams, signed decimal.Decimal) (*models.LedgerEntry, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", store.ErrInvalidArgument, params.Amount.String())
	}
	if !validField(params.Field) {
		return nil, fmt.Errorf("%w: unknown ledger field %q", store.ErrInvalidArgument, params.Field)
	}
	if params.OperationId == "" {
		return nil, fmt.Errorf("%w: operation id is required", store.ErrInvalidArgument)
	}
	if params.Source == "" {
		return nil, fmt.Errorf("%w: mutation must name its source", store.ErrInvalidArgument)
	}
	if params.Source == models.EntrySourceAdjustment {
		return nil, fmt.Errorf("%w: admin adjustments must be applied with their audit record", store.ErrInvalidArgument)
	}
	if !eventSource(params.Source) || params.SourceId == "" {
		return nil, fmt.Errorf("%w: mutation must name the %q event it belongs to", store.ErrInvalidArgument, params.Source)
	}

	var entry *models.LedgerEntry
	err := s.withAccountTx(ctx, params.UserId, func(tx *sql.Tx) error {
		acct, err := loadAccount(ctx, tx, params.UserId)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		entries, err := applyEntry(ctx, tx, acct, params.Field, signed, entryRef{
			OperationId: params.OperationId,
			Source:      params.Source,
			SourceId:    params.SourceId,
		}, store.ErrInsufficientFunds, now)
		if err != nil {
			return err
		}
		if err := saveAccount(ctx, tx, acct, now); err != nil {
			return err
		}
		entry = &entries[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// GetLedgerEntries returns paginated ledger entries for a user, newest first
func (s *Service) GetLedgerEntries(ctx context.Context, userId string, limit, offset int) ([]models.LedgerEntry, error) {
	zap.L().Debug("Getting ledger entries",
		zap.String("user_id", userId),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	limit, offset = page(limit, offset)
	rows, err := s.db.QueryContext(ctx, queryGetLedgerEntries, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer closeRows(rows)

	var entries []models.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during ledger entry row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating ledger entry rows: %w", err)
	}

	return entries, nil
}

// ReconcileUser verifies that every stored ledger field equals the sum of its entries
func (s *Service) ReconcileUser(ctx context.Context, userId string) (*models.ReconciliationReport, error) {
	zap.L().Info("Reconciling account", zap.String("user_id", userId))

	report := &models.ReconciliationReport{
		UserId:     userId,
		Stored:     make(map[models.LedgerField]decimal.Decimal),
		Calculated: make(map[models.LedgerField]decimal.Decimal),
		Balanced:   true,
	}

	err := s.runTx(ctx, func(tx *sql.Tx) error {
		acct, err := loadAccount(ctx, tx, userId)
		if err != nil {
			return err
		}
		for _, field := range ledgerFields {
			report.Stored[field] = acct.Field(field)
			report.Calculated[field] = decimal.Zero
		}

		rows, err := tx.QueryContext(ctx, queryGetEntryAmounts, userId)
		if err != nil {
			return fmt.Errorf("failed to calculate balances from entries: %w", err)
		}
		defer closeRows(rows)

		for rows.Next() {
			var field, amountStr string
			if err := rows.Scan(&field, &amountStr); err != nil {
				return fmt.Errorf("failed to scan entry amount: %w", err)
			}
			amount, err := parseDecimal("amount", amountStr)
			if err != nil {
				return err
			}
			f := models.LedgerField(field)
			report.Calculated[f] = report.Calculated[f].Add(amount)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	for _, field := range ledgerFields {
		// Check if balances match (exact decimal comparison)
		if !report.Stored[field].Equal(report.Calculated[field]) {
			report.Balanced = false
			zap.L().Error("Balance reconciliation failed",
				zap.String("user_id", userId),
				zap.String("field", string(field)),
				zap.String("stored", report.Stored[field].String()),
				zap.String("calculated", report.Calculated[field].String()),
				zap.String("difference", report.Stored[field].Sub(report.Calculated[field]).String()))
		}
	}

	if report.Balanced {
		zap.L().Info("Balance reconciliation successful", zap.String("user_id", userId))
	}
	return report, nil
}

var ledgerFields = []models.LedgerField{
	models.FieldBalance,
	models.FieldEarnings,
	models.FieldWithdrawableEarnings,
}

// eventSource reports whether entries of this kind are attributed to a
// transaction or investment event
func eventSource(source models.EntrySource) bool {
	switch source {
	case models.EntrySourceTransaction, models.EntrySourceAccrual, models.EntrySourceReinvestment:
		return true
	}
	return false
}

func validField(field models.LedgerField) bool {
	for _, f := range ledgerFields {
		if f == field {
			return true
		}
	}
	return false
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
