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

	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/store"

	"go.uber.org/zap"
)

// Reinvest turns part of the caller's earnings into a new investment
func (s *LedgerService) Reinvest(ctx context.Context, actor models.Actor, req models.ReinvestRequest) (*models.InvestmentRecord, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", store.ErrInvalidArgument)
	}

	plan, err := s.plans.Get(req.PlanId)
	if err != nil {
		return nil, err
	}

	inv, err := s.store.Reinvest(ctx, store.ReinvestParams{
		UserId:      actor.Id,
		Amount:      req.Amount,
		Plan:        plan,
		OperationId: clientOperationId(req.OperationId),
		Now:         s.now(),
	})
	if err != nil {
		zap.L().Warn("Reinvestment rejected",
			zap.String("user_id", actor.Id),
			zap.String("plan_id", req.PlanId),
			zap.String("amount", req.Amount.String()),
			zap.Error(err))
		return nil, err
	}

	record := toInvestmentRecord(*inv)
	return &record, nil
}

// ListInvestments returns the investments of userId
func (s *LedgerService) ListInvestments(ctx context.Context, actor models.Actor, userId string, status models.InvestmentStatus) ([]models.InvestmentRecord, error) {
	if err := requireSelfOrAdmin(actor, userId); err != nil {
		return nil, err
	}

	investments, err := s.store.ListInvestments(ctx, models.InvestmentFilter{UserId: userId, Status: status})
	if err != nil {
		return nil, err
	}

	result := make([]models.InvestmentRecord, len(investments))
	for i, inv := range investments {
		result[i] = toInvestmentRecord(inv)
	}
	return result, nil
}

// ListPlans returns the catalog in display order
func (s *LedgerService) ListPlans() []models.Plan {
	return s.plans.List()
}
