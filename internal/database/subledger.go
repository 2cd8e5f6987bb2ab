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
	"time"

	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// entryRef attributes a ledger entry to the event that caused it
type entryRef struct {
	OperationId string
	Source      models.EntrySource
	SourceId    string
}

// gateSuffix marks the entry that lowers withdrawable earnings when earnings
// drop below the released amount.
const gateSuffix = ":gate"

// applyEntry moves one ledger field of acct by a signed amount inside tx and
// appends the matching ledger entry. acct is updated in memory only; the
// caller persists it with saveAccount once the whole unit of work is applied.
// shortErr is returned (wrapped) when the field would go negative.
func applyEntry(ctx context.Context, tx *sql.Tx, acct *models.UserAccount, field models.LedgerField,
	amount decimal.Decimal, ref entryRef, shortErr error, now time.Time) ([]models.LedgerEntry, error) {

	if ref.OperationId == "" {
		ref.OperationId = uuid.New().String()
	}
	if err := checkOperation(ctx, tx, acct.Id, ref.OperationId); err != nil {
		return nil, err
	}

	before := acct.Field(field)
	after := before.Add(amount)
	if after.IsNegative() {
		zap.L().Warn("Rejected ledger mutation",
			zap.String("user_id", acct.Id),
			zap.String("field", string(field)),
			zap.String("current", before.String()),
			zap.String("amount", amount.String()))
		return nil, fmt.Errorf("%w: %s is %s, cannot apply %s", shortErr, field, before.String(), amount.String())
	}
	if field == models.FieldWithdrawableEarnings && after.GreaterThan(acct.Earnings) {
		return nil, fmt.Errorf("%w: withdrawable earnings %s would exceed earnings %s",
			store.ErrInsufficientEarnings, after.String(), acct.Earnings.String())
	}

	entry, err := insertEntry(ctx, tx, acct.Id, field, amount, before, after, ref, now)
	if err != nil {
		return nil, err
	}
	acct.SetField(field, after)
	entries := []models.LedgerEntry{*entry}

	// Lowering earnings under the release gate lowers the gate with it.
	if field == models.FieldEarnings && acct.WithdrawableEarnings.GreaterThan(after) {
		gateBefore := acct.WithdrawableEarnings
		gateRef := ref
		gateRef.OperationId = ref.OperationId + gateSuffix
		gate, err := insertEntry(ctx, tx, acct.Id, models.FieldWithdrawableEarnings,
			after.Sub(gateBefore), gateBefore, after, gateRef, now)
		if err != nil {
			return nil, err
		}
		acct.WithdrawableEarnings = after
		entries = append(entries, *gate)

		zap.L().Info("Withdrawable earnings clamped to earnings",
			zap.String("user_id", acct.Id),
			zap.String("old_withdrawable", gateBefore.String()),
			zap.String("new_withdrawable", after.String()))
	}

	zap.L().Info("Ledger entry applied",
		zap.String("user_id", acct.Id),
		zap.String("field", string(field)),
		zap.String("amount", amount.String()),
		zap.String("before", before.String()),
		zap.String("after", after.String()),
		zap.String("source", string(ref.Source)),
		zap.String("operation_id", ref.OperationId))

	return entries, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, userId string, field models.LedgerField,
	amount, before, after decimal.Decimal, ref entryRef, now time.Time) (*models.LedgerEntry, error) {

	entry := &models.LedgerEntry{
		Id:            uuid.New().String(),
		UserId:        userId,
		Field:         field,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Source:        ref.Source,
		SourceId:      ref.SourceId,
		OperationId:   ref.OperationId,
		CreatedAt:     now,
	}
	_, err := tx.ExecContext(ctx, queryInsertLedgerEntry,
		entry.Id, entry.UserId, string(entry.Field), entry.Amount.String(),
		entry.BalanceBefore.String(), entry.BalanceAfter.String(),
		string(entry.Source), entry.SourceId, entry.OperationId, entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return entry, nil
}

// checkOperation fails with ErrDuplicateOperation when the user already applied operationId
func checkOperation(ctx context.Context, q queryer, userId, operationId string) error {
	existingId, err := appliedOperation(ctx, q, userId, operationId)
	if err != nil {
		return err
	}
	if existingId != "" {
		zap.L().Warn("Duplicate operation id detected, skipping",
			zap.String("user_id", userId),
			zap.String("operation_id", operationId),
			zap.String("existing_entry_id", existingId))
		return fmt.Errorf("%w: operation_id %s already applied", store.ErrDuplicateOperation, operationId)
	}
	return nil
}

// appliedOperation returns the id of the entry or adjustment recorded under
// the user's operationId, or "" when there is none.
func appliedOperation(ctx context.Context, q queryer, userId, operationId string) (string, error) {
	var existingId string
	err := q.QueryRowContext(ctx, queryCheckDuplicateOperation, userId, operationId, userId, operationId).Scan(&existingId)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to check for duplicate operation: %w", err)
	}
	return existingId, nil
}

// loadAccount reads the account row inside the unit of work
func loadAccount(ctx context.Context, q queryer, userId string) (*models.UserAccount, error) {
	account, err := scanAccount(q.QueryRowContext(ctx, queryGetAccount, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, userId)
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

// saveAccount writes acct back with an optimistic version check
func saveAccount(ctx context.Context, tx *sql.Tx, acct *models.UserAccount, now time.Time) error {
	result, err := tx.ExecContext(ctx, queryUpdateAccount,
		acct.Balance.String(), acct.Earnings.String(), acct.WithdrawableEarnings.String(),
		acct.TotalDeposits.String(), acct.TotalWithdrawals.String(),
		acct.EarningsPaused, now, acct.Id, acct.Version)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account update failed - %w", store.ErrConcurrentModification)
	}

	acct.Version++
	acct.UpdatedAt = now
	return nil
}

func scanAccount(row rowScanner) (*models.UserAccount, error) {
	var account models.UserAccount
	var balance, earnings, withdrawable, deposits, withdrawals string
	err := row.Scan(&account.Id, &account.Name, &account.Email,
		&balance, &earnings, &withdrawable, &deposits, &withdrawals,
		&account.EarningsPaused, &account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if account.Balance, err = parseDecimal("balance", balance); err != nil {
		return nil, err
	}
	if account.Earnings, err = parseDecimal("earnings", earnings); err != nil {
		return nil, err
	}
	if account.WithdrawableEarnings, err = parseDecimal("withdrawable_earnings", withdrawable); err != nil {
		return nil, err
	}
	if account.TotalDeposits, err = parseDecimal("total_deposits", deposits); err != nil {
		return nil, err
	}
	if account.TotalWithdrawals, err = parseDecimal("total_withdrawals", withdrawals); err != nil {
		return nil, err
	}
	return &account, nil
}

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	var field, source, amount, before, after string
	err := row.Scan(&entry.Id, &entry.UserId, &field, &amount, &before, &after,
		&source, &entry.SourceId, &entry.OperationId, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	entry.Field = models.LedgerField(field)
	entry.Source = models.EntrySource(source)

	if entry.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	if entry.BalanceBefore, err = parseDecimal("balance_before", before); err != nil {
		return nil, err
	}
	if entry.BalanceAfter, err = parseDecimal("balance_after", after); err != nil {
		return nil, err
	}
	return &entry, nil
}

func parseDecimal(column, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s '%s': %w", column, value, err)
	}
	return d, nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}
