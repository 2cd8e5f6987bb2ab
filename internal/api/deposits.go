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

// CreateDeposit records a pending deposit against a plan. The proof of payment
// is an opaque reference into the external file store.
func (s *LedgerService) CreateDeposit(ctx context.Context, actor models.Actor, req models.DepositRequest) (*models.TransactionRecord, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}

	zap.L().Info("Processing deposit request",
		zap.String("user_id", actor.Id),
		zap.String("plan_id", req.PlanId),
		zap.String("amount", req.Amount.String()))

	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", store.ErrInvalidArgument)
	}
	if strings.TrimSpace(req.ProofOfPayment) == "" {
		return nil, fmt.Errorf("%w: proof of payment is required", store.ErrInvalidArgument)
	}

	plan, err := s.plans.Get(req.PlanId)
	if err != nil {
		return nil, err
	}
	if !plan.InRange(req.Amount) {
		zap.L().Warn("Deposit outside plan range",
			zap.String("user_id", actor.Id),
			zap.String("plan_id", plan.Id),
			zap.String("amount", req.Amount.String()))
		return nil, fmt.Errorf("%w: %s does not fit plan %s%s", store.ErrPlanRangeViolation, req.Amount.String(), plan.Id,
			fittingPlans(s.plans.ForAmount(req.Amount)))
	}

	txn, err := s.store.CreateTransaction(ctx, store.CreateTransactionParams{
		UserId:          actor.Id,
		Type:            models.TransactionTypeDeposit,
		Amount:          req.Amount,
		PlanId:          plan.Id,
		SelectedAccount: req.SelectedAccount,
		ProofOfPayment:  req.ProofOfPayment,
		Now:             s.now(),
	})
	if err != nil {
		zap.L().Error("Deposit request failed", zap.String("user_id", actor.Id), zap.Error(err))
		return nil, err
	}

	record := toTransactionRecord(*txn)
	return &record, nil
}

// fittingPlans names the plans that accept the amount, for range violation messages
func fittingPlans(plans []models.Plan) string {
	if len(plans) == 0 {
		return ""
	}
	ids := make([]string, len(plans))
	for i, p := range plans {
		ids[i] = p.Id
	}
	return " (fits: " + strings.Join(ids, ", ") + ")"
}
