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

	"go.uber.org/zap"
)

// AdjustBalance applies a signed admin correction to a user's balance
func (s *LedgerService) AdjustBalance(ctx context.Context, actor models.Actor, userId string, req models.AdjustmentRequest) (*models.AdjustmentRecord, error) {
	return s.adjust(ctx, actor, userId, models.FieldBalance, req)
}

// AdjustEarnings applies a signed admin correction to a user's earnings
func (s *LedgerService) AdjustEarnings(ctx context.Context, actor models.Actor, userId string, req models.AdjustmentRequest) (*models.AdjustmentRecord, error) {
	return s.adjust(ctx, actor, userId, models.FieldEarnings, req)
}

func (s *LedgerService) adjust(ctx context.Context, actor models.Actor, userId string, field models.LedgerField, req models.AdjustmentRequest) (*models.AdjustmentRecord, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	record, err := s.store.ApplyAdjustment(ctx, store.AdjustmentParams{
		UserId:      userId,
		Field:       field,
		Delta:       req.Amount,
		Reason:      req.Reason,
		ActorId:     actor.Id,
		OperationId: clientOperationId(req.OperationId),
		Now:         s.now(),
	})
	if err != nil {
		zap.L().Warn("Adjustment rejected",
			zap.String("user_id", userId),
			zap.String("field", string(field)),
			zap.String("delta", req.Amount.String()),
			zap.String("actor_id", actor.Id),
			zap.Error(err))
		return nil, err
	}
	return record, nil
}

// SetWithdrawableEarnings releases (or withholds) earnings for withdrawal
func (s *LedgerService) SetWithdrawableEarnings(ctx context.Context, actor models.Actor, userId string, req models.AdjustmentRequest) (*models.AdjustmentRecord, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.SetWithdrawableEarnings(ctx, store.WithdrawableParams{
		UserId:      userId,
		Amount:      req.Amount,
		Reason:      req.Reason,
		ActorId:     actor.Id,
		OperationId: clientOperationId(req.OperationId),
		Now:         s.now(),
	})
}

// PauseEarnings stops accrual for the user from the next tick on
func (s *LedgerService) PauseEarnings(ctx context.Context, actor models.Actor, userId string) (*models.UserAccount, error) {
	return s.setPaused(ctx, actor, userId, true)
}

// ResumeEarnings restarts accrual. Cycles that ended while paused stay unpaid.
func (s *LedgerService) ResumeEarnings(ctx context.Context, actor models.Actor, userId string) (*models.UserAccount, error) {
	return s.setPaused(ctx, actor, userId, false)
}

func (s *LedgerService) setPaused(ctx context.Context, actor models.Actor, userId string, paused bool) (*models.UserAccount, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	account, err := s.store.SetEarningsPaused(ctx, userId, paused)
	if err != nil {
		return nil, err
	}
	zap.L().Info("Earnings pause changed by admin",
		zap.String("user_id", userId),
		zap.Bool("paused", paused),
		zap.String("actor_id", actor.Id))
	return account, nil
}

// ListAdjustments returns the admin corrections recorded for a user
func (s *LedgerService) ListAdjustments(ctx context.Context, actor models.Actor, userId string, limit, offset int) ([]models.AdjustmentRecord, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.store.GetAccount(ctx, userId); err != nil {
		return nil, err
	}
	return s.store.GetAdjustments(ctx, userId, limit, offset)
}

// DeleteAccount removes a user and all of their ledger data
func (s *LedgerService) DeleteAccount(ctx context.Context, actor models.Actor, userId, reason string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: reason is required", store.ErrInvalidArgument)
	}
	if err := s.store.DeleteAccount(ctx, userId); err != nil {
		return err
	}
	zap.L().Info("Account deleted by admin",
		zap.String("user_id", userId),
		zap.String("reason", reason),
		zap.String("actor_id", actor.Id))
	return nil
}
