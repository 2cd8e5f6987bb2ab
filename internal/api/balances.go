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

	"investment-ledger-go/internal/models"

	"go.uber.org/zap"
)

// GetDashboardSummary returns balances and aggregates for userId
func (s *LedgerService) GetDashboardSummary(ctx context.Context, actor models.Actor, userId string) (*models.DashboardSummary, error) {
	if err := requireSelfOrAdmin(actor, userId); err != nil {
		return nil, err
	}

	summary, err := s.store.GetDashboardSummary(ctx, userId, s.now())
	if err != nil {
		zap.L().Error("Failed to build dashboard summary", zap.String("user_id", userId), zap.Error(err))
		return nil, err
	}
	return summary, nil
}

// GetLedgerEntries returns the movement history behind the user's balances
func (s *LedgerService) GetLedgerEntries(ctx context.Context, actor models.Actor, userId string, limit, offset int) ([]models.LedgerEntry, error) {
	if err := requireSelfOrAdmin(actor, userId); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.GetLedgerEntries(ctx, userId, limit, offset)
}

// Reconcile recomputes every ledger field of a user from its entries
func (s *LedgerService) Reconcile(ctx context.Context, actor models.Actor, userId string) (*models.ReconciliationReport, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.ReconcileUser(ctx, userId)
}
