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

package api

import (
	"context"
	"fmt"
	"strings"

	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateWithdrawal records a pending withdrawal. Funds are not reserved: the
// source is checked again when an admin completes the request, and concurrent
// pending requests may together exceed it. That exposure is logged here and
// reported on the dashboard.
func (s *LedgerService) CreateWithdrawal(ctx context.Context, actor models.Actor, req models.WithdrawalRequest) (*models.TransactionRecord, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}

	zap.L().Info("Processing withdrawal request",
		zap.String("user_id", actor.Id),
		zap.String("source", string(req.Source)),
		zap.String("amount", req.Amount.String()))

	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", store.ErrInvalidArgument)
	}
	if req.Source == "" {
		req.Source = models.SourceBalance
	}
	if req.Source != models.SourceBalance && req.Source != models.SourceWithdrawableEarnings {
		return nil, fmt.Errorf("%w: unknown source %q", store.ErrInvalidArgument, req.Source)
	}
	if strings.TrimSpace(req.AccountDetails) == "" {
		return nil, fmt.Errorf("%w: account details are required", store.ErrInvalidArgument)
	}

	txn, err := s.store.CreateTransaction(ctx, store.CreateTransactionParams{
		UserId:          actor.Id,
		Type:            models.TransactionTypeWithdrawal,
		Amount:          req.Amount,
		Source:          req.Source,
		SelectedAccount: req.SelectedAccount,
		AccountDetails:  req.AccountDetails,
		Now:             s.now(),
	})
	if err != nil {
		zap.L().Error("Withdrawal request failed", zap.String("user_id", actor.Id), zap.Error(err))
		return nil, err
	}

	s.logWithdrawalExposure(ctx, txn)

	record := toTransactionRecord(*txn)
	return &record, nil
}

// logWithdrawalExposure warns when the pending requests against a source add
// up to more than the source currently holds
func (s *LedgerService) logWithdrawalExposure(ctx context.Context, txn *models.Transaction) {
	account, err := s.store.GetAccount(ctx, txn.UserId)
	if err != nil {
		zap.L().Warn("Unable to check withdrawal exposure", zap.String("user_id", txn.UserId), zap.Error(err))
		return
	}
	pending, err := s.store.ListTransactions(ctx, models.TransactionFilter{
		UserId: txn.UserId,
		Type:   models.TransactionTypeWithdrawal,
		Status: models.StatusPending,
		Limit:  500,
	})
	if err != nil {
		zap.L().Warn("Unable to check withdrawal exposure", zap.String("user_id", txn.UserId), zap.Error(err))
		return
	}

	requested := decimal.Zero
	for _, p := range pending {
		if p.Source == txn.Source {
			requested = requested.Add(p.Amount)
		}
	}

	available := account.Balance
	if txn.Source == models.SourceWithdrawableEarnings {
		available = account.WithdrawableEarnings
	}
	if requested.GreaterThan(available) {
		zap.L().Warn("Pending withdrawals exceed available funds",
			zap.String("user_id", txn.UserId),
			zap.String("source", string(txn.Source)),
			zap.String("pending_total", requested.String()),
			zap.String("available", available.String()),
			zap.Int("pending_count", len(pending)))
	}
}
