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

	"investment-ledger-go/internal/ledger"
	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/store"

	"go.uber.org/zap"
)

// ListTransactions returns transactions for the caller. Users only ever see
// their own; admins may filter by any user, type and status.
func (s *LedgerService) ListTransactions(ctx context.Context, actor models.Actor, filter models.TransactionFilter) ([]models.TransactionRecord, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		filter.UserId = actor.Id
	}
	if filter.Type != "" && !ledger.ValidType(filter.Type) {
		return nil, fmt.Errorf("%w: unknown transaction type %q", store.ErrInvalidArgument, filter.Type)
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	transactions, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		zap.L().Error("Failed to list transactions", zap.String("actor_id", actor.Id), zap.Error(err))
		return nil, err
	}

	result := make([]models.TransactionRecord, len(transactions))
	for i, tx := range transactions {
		result[i] = toTransactionRecord(tx)
	}
	return result, nil
}

// UpdateTransactionStatus applies an admin decision to a pending transaction.
// Confirming a deposit binds the new investment to the catalog's current
// version of the requested plan.
func (s *LedgerService) UpdateTransactionStatus(ctx context.Context, actor models.Actor, transactionId string, req models.StatusUpdateRequest) (*models.TransactionRecord, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	txn, err := s.store.GetTransaction(ctx, transactionId)
	if err != nil {
		return nil, err
	}
	if req.Status == "" {
		return nil, fmt.Errorf("%w: status is required", store.ErrInvalidArgument)
	}
	// Re-checked against the stored status inside the store transaction.
	if _, err := ledger.Transition(txn.Type, txn.Status, req.Status); err != nil {
		return nil, err
	}

	params := store.TransitionParams{
		TransactionId: transactionId,
		ToStatus:      req.Status,
		ActorId:       actor.Id,
		Note:          req.Note,
		Now:           s.now(),
	}
	if txn.Type == models.TransactionTypeDeposit && req.Status == models.StatusConfirmed {
		plan, err := s.plans.Get(txn.PlanId)
		if err != nil {
			return nil, err
		}
		params.Plan = &plan
	}

	updated, err := s.store.UpdateTransactionStatus(ctx, params)
	if err != nil {
		zap.L().Warn("Status update rejected",
			zap.String("transaction_id", transactionId),
			zap.String("to", string(req.Status)),
			zap.String("actor_id", actor.Id),
			zap.Error(err))
		return nil, err
	}

	record := toTransactionRecord(*updated)
	return &record, nil
}

// ListStatusChanges returns the audit trail of one transaction
func (s *LedgerService) ListStatusChanges(ctx context.Context, actor models.Actor, transactionId string) ([]models.StatusChange, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.store.GetTransaction(ctx, transactionId); err != nil {
		return nil, err
	}
	return s.store.GetStatusChanges(ctx, transactionId)
}
