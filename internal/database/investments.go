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

// openInvestment is the single creation path for deposits and reinvestments
func openInvestment(ctx context.Context, tx *sql.Tx, userId, transactionId string, origin models.InvestmentOrigin,
	plan models.Plan, principal decimal.Decimal, now time.Time) (*models.Investment, error) {

	if err := checkPlanRange(plan, principal); err != nil {
		return nil, err
	}

	inv := ledger.NewInvestment(uuid.New().String(), userId, transactionId, origin, plan, principal, now)
	_, err := tx.ExecContext(ctx, queryInsertInvestment,
		inv.Id, inv.UserId, inv.TransactionId, string(inv.Origin), inv.PlanId, inv.PlanVersion,
		inv.Principal.String(), inv.ProfitPercent.String(), int64(inv.CycleLength), int64(inv.Maturity),
		inv.OpenedAt, inv.LastAccrualAt, inv.MaturesAt, inv.CyclesAccrued, inv.AccruedTotal.String(),
		string(inv.Status), inv.Version, inv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert investment: %w", err)
	}

	zap.L().Info("Investment opened",
		zap.String("investment_id", inv.Id),
		zap.String("user_id", userId),
		zap.String("origin", string(origin)),
		zap.String("plan_id", plan.Id),
		zap.Int("plan_version", plan.Version),
		zap.String("principal", principal.String()),
		zap.Time("matures_at", inv.MaturesAt))
	return &inv, nil
}

func checkPlanRange(plan models.Plan, amount decimal.Decimal) error {
	if plan.InRange(amount) {
		return nil
	}
	maxAmount := "unbounded"
	if plan.MaxAmount.Valid {
		maxAmount = plan.MaxAmount.Decimal.String()
	}
	return fmt.Errorf("%w: %s is outside %s [%s, %s]", store.ErrPlanRangeViolation,
		amount.String(), plan.Id, plan.MinAmount.String(), maxAmount)
}

func (s *Service) GetInvestment(ctx context.Context, investmentId string) (*models.Investment, error) {
	return getInvestment(ctx, s.db, investmentId)
}

func getInvestment(ctx context.Context, q queryer, investmentId string) (*models.Investment, error) {
	inv, err := scanInvestment(q.QueryRowContext(ctx, queryGetInvestment, investmentId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: investment %s", store.ErrNotFound, investmentId)
		}
		return nil, fmt.Errorf("failed to get investment: %w", err)
	}
	return inv, nil
}

// ListInvestments returns investments matching filter, oldest first
func (s *Service) ListInvestments(ctx context.Context, filter models.InvestmentFilter) ([]models.Investment, error) {
	return listInvestments(ctx, s.db, filter)
}

func listInvestments(ctx context.Context, q queryer, filter models.InvestmentFilter) ([]models.Investment, error) {
	var where []string
	var args []any
	if filter.UserId != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserId)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := queryListInvestments
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY opened_at, rowid"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		limit, offset := page(filter.Limit, filter.Offset)
		args = append(args, limit, offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}
	defer closeRows(rows)

	var investments []models.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investment: %w", err)
		}
		investments = append(investments, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating investment rows: %w", err)
	}
	return investments, nil
}

// AccrueInvestment credits every cycle of the investment that is due at now,
// advances lastAccrualAt and marks the investment matured once maturesAt has
// passed. Each credited cycle is its own ledger entry keyed by cycle number,
// so a replayed pass cannot credit the same cycle twice.
func (s *Service) AccrueInvestment(ctx context.Context, investmentId string, now time.Time) (*models.AccrualResult, error) {
	current, err := s.GetInvestment(ctx, investmentId)
	if err != nil {
		return nil, err
	}

	now = utc(now)
	result := &models.AccrualResult{
		InvestmentId: investmentId,
		UserId:       current.UserId,
		Credited:     decimal.Zero,
	}

	err = s.withAccountTx(ctx, current.UserId, func(tx *sql.Tx) error {
		inv, err := getInvestment(ctx, tx, investmentId)
		if err != nil {
			return err
		}
		acct, err := loadAccount(ctx, tx, inv.UserId)
		if err != nil {
			return err
		}

		step := ledger.PlanAccrual(*inv, now, acct.EarningsPaused)
		if !step.Due() {
			return nil
		}

		cycles, credit := 0, decimal.Zero
		for _, boundary := range step.Boundaries {
			ref := entryRef{
				OperationId: fmt.Sprintf("accrual:%s:%d", inv.Id, ledger.CycleIndex(*inv, boundary)),
				Source:      models.EntrySourceAccrual,
				SourceId:    inv.Id,
			}
			existingId, err := appliedOperation(ctx, tx, acct.Id, ref.OperationId)
			if err != nil {
				return err
			}
			if existingId != "" {
				// Already credited; lastAccrualAt still moves past this boundary.
				zap.L().Warn("Accrual cycle already credited, advancing",
					zap.String("investment_id", inv.Id),
					zap.String("operation_id", ref.OperationId),
					zap.String("existing_entry_id", existingId))
				continue
			}
			if _, err := applyEntry(ctx, tx, acct, models.FieldEarnings, step.PerCycle, ref, store.ErrInsufficientFunds, now); err != nil {
				return err
			}
			cycles++
			credit = credit.Add(step.PerCycle)
		}
		if cycles > 0 {
			if err := saveAccount(ctx, tx, acct, now); err != nil {
				return err
			}
		}

		status := inv.Status
		if step.Matured {
			status = models.InvestmentMatured
		}
		res, err := tx.ExecContext(ctx, queryUpdateInvestmentAccrual,
			step.LastAccrualAt, inv.CyclesAccrued+cycles, inv.AccruedTotal.Add(credit).String(),
			string(status), now, inv.Id, inv.Version)
		if err != nil {
			return fmt.Errorf("failed to update investment: %w", err)
		}
		rowsAffected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("investment update failed - %w", store.ErrConcurrentModification)
		}

		result.Cycles = cycles
		result.Forfeited = step.Forfeited
		result.Credited = credit
		result.Matured = step.Matured
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Cycles > 0 || result.Forfeited > 0 || result.Matured {
		zap.L().Info("Investment accrued",
			zap.String("investment_id", investmentId),
			zap.String("user_id", result.UserId),
			zap.Int("cycles", result.Cycles),
			zap.Int("forfeited", result.Forfeited),
			zap.String("credited", result.Credited.String()),
			zap.Bool("matured", result.Matured))
	}
	return result, nil
}

// Reinvest debits earnings and opens a new investment with them in one transaction
func (s *Service) Reinvest(ctx context.Context, params store.ReinvestParams) (*models.Investment, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", store.ErrInvalidArgument, params.Amount.String())
	}
	if err := checkPlanRange(params.Plan, params.Amount); err != nil {
		return nil, err
	}

	now := utc(params.Now)
	var inv *models.Investment
	err := s.withAccountTx(ctx, params.UserId, func(tx *sql.Tx) error {
		acct, err := loadAccount(ctx, tx, params.UserId)
		if err != nil {
			return err
		}
		if params.Amount.GreaterThan(acct.Earnings) {
			return fmt.Errorf("%w: earnings are %s, cannot reinvest %s",
				store.ErrInsufficientEarnings, acct.Earnings.String(), params.Amount.String())
		}

		opened, err := openInvestment(ctx, tx, params.UserId, "", models.OriginReinvestment, params.Plan, params.Amount, now)
		if err != nil {
			return err
		}

		ref := entryRef{
			OperationId: params.OperationId,
			Source:      models.EntrySourceReinvestment,
			SourceId:    opened.Id,
		}
		if _, err := applyEntry(ctx, tx, acct, models.FieldEarnings, params.Amount.Neg(), ref, store.ErrInsufficientEarnings, now); err != nil {
			return err
		}
		if err := saveAccount(ctx, tx, acct, now); err != nil {
			return err
		}
		inv = opened
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Earnings reinvested",
		zap.String("user_id", params.UserId),
		zap.String("investment_id", inv.Id),
		zap.String("plan_id", inv.PlanId),
		zap.String("amount", params.Amount.String()))
	return inv, nil
}

func scanInvestment(row rowScanner) (*models.Investment, error) {
	var inv models.Investment
	var origin, status, principal, percent, accrued string
	var cycleNs, maturityNs int64
	err := row.Scan(&inv.Id, &inv.UserId, &inv.TransactionId, &origin, &inv.PlanId, &inv.PlanVersion,
		&principal, &percent, &cycleNs, &maturityNs, &inv.OpenedAt, &inv.LastAccrualAt, &inv.MaturesAt,
		&inv.CyclesAccrued, &accrued, &status, &inv.Version, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	inv.Origin = models.InvestmentOrigin(origin)
	inv.Status = models.InvestmentStatus(status)
	inv.CycleLength = time.Duration(cycleNs)
	inv.Maturity = time.Duration(maturityNs)

	if inv.Principal, err = parseDecimal("principal", principal); err != nil {
		return nil, err
	}
	if inv.ProfitPercent, err = parseDecimal("profit_percent", percent); err != nil {
		return nil, err
	}
	if inv.AccruedTotal, err = parseDecimal("accrued_total", accrued); err != nil {
		return nil, err
	}
	return &inv, nil
}
