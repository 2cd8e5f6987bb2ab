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
	"time"

	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/plans"
	"investment-ledger-go/internal/store"

	"go.uber.org/zap"
)

// LedgerService is the request boundary of the ledger: it checks the caller,
// resolves plans from the catalog and delegates every money movement to the store.
type LedgerService struct {
	store store.LedgerStore
	plans *plans.Catalog
	now   func() time.Time
}

func NewLedgerService(db store.LedgerStore, catalog *plans.Catalog) *LedgerService {
	return &LedgerService{
		store: db,
		plans: catalog,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source, for tests and replays
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// Plans returns the catalog new investments are bound to
func (s *LedgerService) Plans() *plans.Catalog {
	return s.plans
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
		return nil
	}
	if _, err := s.store.ListAccounts(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// CreateAccount registers the ledger side of a new user
func (s *LedgerService) CreateAccount(ctx context.Context, name, email string) (*models.UserAccount, error) {
	account, err := s.store.CreateAccount(ctx, "", strings.TrimSpace(name), strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	zap.L().Info("Account registered", zap.String("user_id", account.Id), zap.String("email", account.Email))
	return account, nil
}

// clientOperationId moves a caller-supplied idempotency key into its own
// namespace so it can never match a key the ledger derives itself
// (accrual:, withdrawal:).
func clientOperationId(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	return "client:" + key
}

func requireUser(actor models.Actor) error {
	if actor.Id == "" {
		return fmt.Errorf("%w: missing caller identity", store.ErrUnauthorized)
	}
	return nil
}

func requireAdmin(actor models.Actor) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		zap.L().Warn("Non-admin attempted admin operation", zap.String("actor_id", actor.Id))
		return fmt.Errorf("%w: admin role required", store.ErrUnauthorized)
	}
	return nil
}

// requireSelfOrAdmin lets users read their own data and admins read anyone's
func requireSelfOrAdmin(actor models.Actor, userId string) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if actor.Id != userId && !actor.IsAdmin() {
		return fmt.Errorf("%w: cannot access another user's account", store.ErrUnauthorized)
	}
	return nil
}

func toTransactionRecord(tx models.Transaction) models.TransactionRecord {
	return models.TransactionRecord{
		Id:             tx.Id,
		UserId:         tx.UserId,
		Type:           tx.Type,
		Status:         tx.Status,
		Amount:         tx.Amount,
		PlanId:         tx.PlanId,
		Source:         tx.Source,
		AccountDetails: tx.AccountDetails,
		ProofOfPayment: tx.ProofOfPayment,
		InvestmentId:   tx.InvestmentId,
		CreatedAt:      tx.CreatedAt,
		ResolvedAt:     tx.ResolvedAt,
	}
}

func toInvestmentRecord(inv models.Investment) models.InvestmentRecord {
	return models.InvestmentRecord{
		Id:            inv.Id,
		PlanId:        inv.PlanId,
		PlanVersion:   inv.PlanVersion,
		Origin:        inv.Origin,
		Principal:     inv.Principal,
		ProfitPercent: inv.ProfitPercent,
		AccruedTotal:  inv.AccruedTotal,
		CyclesAccrued: inv.CyclesAccrued,
		Status:        inv.Status,
		OpenedAt:      inv.OpenedAt,
		LastAccrualAt: inv.LastAccrualAt,
		MaturesAt:     inv.MaturesAt,
	}
}
