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

	"investment-ledger-go/internal/ledger"
	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateTransaction records a pending deposit or withdrawal request. Nothing is
// debited or reserved here; the ledger effect happens on the admin transition.
func (s *Service) CreateTransaction(ctx context.Context, params store.CreateTransactionParams) (*models.Transaction, error) {
	if !ledger.ValidType(params.Type) {
		return nil, fmt.Errorf("%w: unknown transaction type %q", store.ErrInvalidArgument, params.Type)
	}
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", store.ErrInvalidArgument, params.Amount.String())
	}
	switch params.Type {
	case models.TransactionTypeDeposit:
		if params.PlanId == "" {
			return nil, fmt.Errorf("%w: deposit requires a plan", store.ErrInvalidArgument)
		}
	case models.TransactionTypeWithdrawal:
		if params.Source != models.SourceBalance && params.Source != models.SourceWithdrawableEarnings {
			return nil, fmt.Errorf("%w: unknown withdrawal source %q", store.ErrInvalidArgument, params.Source)
		}
	}

	now := utc(params.Now)
	txn := &models.Transaction{
		Id:              uuid.New().String(),
		UserId:          params.UserId,
		Type:            params.Type,
		Status:          models.StatusPending,
		Amount:          params.Amount,
		PlanId:          params.PlanId,
		Source:          params.Source,
		SelectedAccount: params.SelectedAccount,
		AccountDetails:  params.AccountDetails,
		ProofOfPayment:  params.ProofOfPayment,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.runTx(ctx, func(tx *sql.Tx) error {
		if _, err := loadAccount(ctx, tx, params.UserId); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, queryInsertTransaction,
			txn.Id, txn.UserId, string(txn.Type), string(txn.Status), txn.Amount.String(),
			txn.PlanId, string(txn.Source), txn.SelectedAccount, txn.AccountDetails, txn.ProofOfPayment,
			txn.InvestmentId, txn.Version, txn.CreatedAt, txn.UpdatedAt, nil)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Transaction request recorded",
		zap.String("transaction_id", txn.Id),
		zap.String("user_id", txn.UserId),
		zap.String("type", string(txn.Type)),
		zap.String("amount", txn.Amount.String()),
		zap.String("plan_id", txn.PlanId),
		zap.String("source", string(txn.Source)))
	return txn, nil
}

func (s *Service) GetTransaction(ctx context.Context, transactionId string) (*models.Transaction, error) {
	return getTransaction(ctx, s.db, transactionId)
}

func getTransaction(ctx context.Context, q queryer, transactionId string) (*models.Transaction, error) {
	txn, err := scanTransaction(q.QueryRowContext(ctx, queryGetTransaction, transactionId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", store.ErrNotFound, transactionId)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// ListTransactions returns transactions matching filter, newest first
func (s *Service) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	zap.L().Debug("Listing transactions",
		zap.String("user_id", filter.UserId),
		zap.String("type", string(filter.Type)),
		zap.String("status", string(filter.Status)),
		zap.Int("limit", filter.Limit),
		zap.Int("offset", filter.Offset))

	var where []string
	var args []any
	if filter.UserId != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserId)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := queryListTransactions
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	limit, offset := page(filter.Limit, filter.Offset)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer closeRows(rows)

	var transactions []models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}

// UpdateTransactionStatus moves a transaction along the state machine and
// applies the transition's ledger effect in the same SQL transaction. When the
// effect fails the status stays where it was.
func (s *Service) UpdateTransactionStatus(ctx context.Context, params store.TransitionParams) (*models.Transaction, error) {
	if params.ActorId == "" {
		return nil, fmt.Errorf("%w: actor is required", store.ErrInvalidArgument)
	}

	// The owner never changes, so it is safe to read it before taking the account lock.
	current, err := s.GetTransaction(ctx, params.TransactionId)
	if err != nil {
		return nil, err
	}

	now := utc(params.Now)
	var updated *models.Transaction
	err = s.withAccountTx(ctx, current.UserId, func(tx *sql.Tx) error {
		txn, err := getTransaction(ctx, tx, params.TransactionId)
		if err != nil {
			return err
		}
		effect, err := ledger.Transition(txn.Type, txn.Status, params.ToStatus)
		if err != nil {
			zap.L().Warn("Rejected status transition",
				zap.String("transaction_id", txn.Id),
				zap.String("from", string(txn.Status)),
				zap.String("to", string(params.ToStatus)),
				zap.String("actor_id", params.ActorId))
			return err
		}

		acct, err := loadAccount(ctx, tx, txn.UserId)
		if err != nil {
			return err
		}

		switch effect {
		case ledger.EffectOpenInvestment:
			if params.Plan == nil {
				return fmt.Errorf("%w: confirming a deposit requires its plan", store.ErrInvalidArgument)
			}
			if params.Plan.Id != txn.PlanId {
				return fmt.Errorf("%w: deposit was requested for plan %s, not %s", store.ErrInvalidArgument, txn.PlanId, params.Plan.Id)
			}
			inv, err := openInvestment(ctx, tx, txn.UserId, txn.Id, models.OriginDeposit, *params.Plan, txn.Amount, now)
			if err != nil {
				return err
			}
			txn.InvestmentId = inv.Id
			acct.TotalDeposits = acct.TotalDeposits.Add(txn.Amount)
			if err := saveAccount(ctx, tx, acct, now); err != nil {
				return err
			}

		case ledger.EffectDebitSource:
			if err := debitWithdrawal(ctx, tx, acct, txn, now); err != nil {
				return err
			}
			acct.TotalWithdrawals = acct.TotalWithdrawals.Add(txn.Amount)
			if err := saveAccount(ctx, tx, acct, now); err != nil {
				return err
			}
		}

		from := txn.Status
		result, err := tx.ExecContext(ctx, queryUpdateTransactionStatus,
			string(params.ToStatus), txn.InvestmentId, now, now, txn.Id, txn.Version, string(from))
		if err != nil {
			return fmt.Errorf("failed to update transaction status: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("transaction update failed - %w", store.ErrConcurrentModification)
		}

		_, err = tx.ExecContext(ctx, queryInsertStatusChange,
			uuid.New().String(), txn.Id, string(from), string(params.ToStatus), params.ActorId, params.Note, now)
		if err != nil {
			return fmt.Errorf("failed to record status change: %w", err)
		}

		txn.Status = params.ToStatus
		txn.Version++
		txn.UpdatedAt = now
		resolved := now
		txn.ResolvedAt = &resolved
		updated = txn

		zap.L().Info("Transaction status updated",
			zap.String("transaction_id", txn.Id),
			zap.String("user_id", txn.UserId),
			zap.String("type", string(txn.Type)),
			zap.String("from", string(from)),
			zap.String("to", string(params.ToStatus)),
			zap.String("effect", effect.String()),
			zap.String("actor_id", params.ActorId))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// debitWithdrawal takes a completed withdrawal out of its source field. A
// withdrawal from earnings spends the released amount and the earnings behind it.
func debitWithdrawal(ctx context.Context, tx *sql.Tx, acct *models.UserAccount, txn *models.Transaction, now time.Time) error {
	ref := entryRef{
		OperationId: "withdrawal:" + txn.Id,
		Source:      models.EntrySourceTransaction,
		SourceId:    txn.Id,
	}

	switch txn.Source {
	case models.SourceBalance:
		_, err := applyEntry(ctx, tx, acct, models.FieldBalance, txn.Amount.Neg(), ref, store.ErrInsufficientFunds, now)
		return err

	case models.SourceWithdrawableEarnings:
		if _, err := applyEntry(ctx, tx, acct, models.FieldWithdrawableEarnings, txn.Amount.Neg(), ref, store.ErrInsufficientFunds, now); err != nil {
			return err
		}
		ref.OperationId += ":earnings"
		_, err := applyEntry(ctx, tx, acct, models.FieldEarnings, txn.Amount.Neg(), ref, store.ErrInsufficientFunds, now)
		return err
	}
	return fmt.Errorf("%w: unknown withdrawal source %q", store.ErrInvalidArgument, txn.Source)
}

// GetStatusChanges returns the transition history of a transaction, oldest first
func (s *Service) GetStatusChanges(ctx context.Context, transactionId string) ([]models.StatusChange, error) {
	rows, err := s.db.QueryContext(ctx, queryGetStatusChanges, transactionId)
	if err != nil {
		return nil, fmt.Errorf("failed to get status changes: %w", err)
	}
	defer closeRows(rows)

	var changes []models.StatusChange
	for rows.Next() {
		var change models.StatusChange
		var from, to string
		if err := rows.Scan(&change.Id, &change.TransactionId, &from, &to,
			&change.ActorId, &change.Note, &change.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status change: %w", err)
		}
		change.FromStatus = models.TransactionStatus(from)
		change.ToStatus = models.TransactionStatus(to)
		changes = append(changes, change)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status change rows: %w", err)
	}
	return changes, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var txn models.Transaction
	var txType, status, amount, source string
	var resolvedAt sql.NullTime
	err := row.Scan(&txn.Id, &txn.UserId, &txType, &status, &amount, &txn.PlanId, &source,
		&txn.SelectedAccount, &txn.AccountDetails, &txn.ProofOfPayment, &txn.InvestmentId,
		&txn.Version, &txn.CreatedAt, &txn.UpdatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	txn.Type = models.TransactionType(txType)
	txn.Status = models.TransactionStatus(status)
	txn.Source = models.WithdrawalSource(source)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		txn.ResolvedAt = &t
	}

	if txn.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	return &txn, nil
}

// pendingTotals sums the pending requests of a user
type pendingTotals struct {
	deposits        decimal.Decimal
	depositCount    int
	withdrawals     decimal.Decimal
	withdrawalCount int
	bySource        map[models.WithdrawalSource]decimal.Decimal
}

func getPendingTotals(ctx context.Context, q queryer, userId string) (*pendingTotals, error) {
	totals := &pendingTotals{
		deposits:    decimal.Zero,
		withdrawals: decimal.Zero,
		bySource:    make(map[models.WithdrawalSource]decimal.Decimal),
	}

	rows, err := q.QueryContext(ctx, queryGetPendingTransactions, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending transactions: %w", err)
	}
	defer closeRows(rows)

	for rows.Next() {
		var txType, source, amountStr string
		if err := rows.Scan(&txType, &source, &amountStr); err != nil {
			return nil, fmt.Errorf("failed to scan pending transaction: %w", err)
		}
		amount, err := parseDecimal("amount", amountStr)
		if err != nil {
			return nil, err
		}
		switch models.TransactionType(txType) {
		case models.TransactionTypeDeposit:
			totals.deposits = totals.deposits.Add(amount)
			totals.depositCount++
		case models.TransactionTypeWithdrawal:
			totals.withdrawals = totals.withdrawals.Add(amount)
			totals.withdrawalCount++
			src := models.WithdrawalSource(source)
			totals.bySource[src] = totals.bySource[src].Add(amount)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending transaction rows: %w", err)
	}
	return totals, nil
}
