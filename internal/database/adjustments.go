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
	"fmt"
	"strings"

	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApplyAdjustment applies an admin correction to balance or earnings and
// appends its audit record in the same transaction.
func (s *Service) ApplyAdjustment(ctx context.Context, params store.AdjustmentParams) (*models.AdjustmentRecord, error) {
	if params.Field != models.FieldBalance && params.Field != models.FieldEarnings {
		return nil, fmt.Errorf("%w: adjustments apply to balance or earnings, not %q", store.ErrInvalidArgument, params.Field)
	}
	if params.Delta.IsZero() {
		return nil, fmt.Errorf("%w: delta must be non-zero", store.ErrInvalidArgument)
	}
	if err := checkAudit(params.Reason, params.ActorId); err != nil {
		return nil, err
	}

	record := &models.AdjustmentRecord{
		Id:          uuid.New().String(),
		UserId:      params.UserId,
		Field:       params.Field,
		Delta:       params.Delta,
		Reason:      strings.TrimSpace(params.Reason),
		ActorId:     params.ActorId,
		OperationId: operationId(params.OperationId),
		CreatedAt:   utc(params.Now),
	}

	err := s.withAccountTx(ctx, params.UserId, func(tx *sql.Tx) error {
		acct, err := loadAccount(ctx, tx, params.UserId)
		if err != nil {
			return err
		}
		ref := entryRef{
			OperationId: record.OperationId,
			Source:      models.EntrySourceAdjustment,
			SourceId:    record.Id,
		}
		if _, err := applyEntry(ctx, tx, acct, params.Field, params.Delta, ref, store.ErrInsufficientFunds, record.CreatedAt); err != nil {
			return err
		}
		if err := insertAdjustment(ctx, tx, record); err != nil {
			return err
		}
		return saveAccount(ctx, tx, acct, record.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Admin adjustment applied",
		zap.String("adjustment_id", record.Id),
		zap.String("user_id", record.UserId),
		zap.String("field", string(record.Field)),
		zap.String("delta", record.Delta.String()),
		zap.String("reason", record.Reason),
		zap.String("actor_id", record.ActorId))
	return record, nil
}

// SetWithdrawableEarnings moves the release gate to an absolute amount, which
// must lie in [0, earnings]. The audit record carries the signed change.
func (s *Service) SetWithdrawableEarnings(ctx context.Context, params store.WithdrawableParams) (*models.AdjustmentRecord, error) {
	if params.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: withdrawable earnings cannot be negative", store.ErrInvalidArgument)
	}
	if err := checkAudit(params.Reason, params.ActorId); err != nil {
		return nil, err
	}

	record := &models.AdjustmentRecord{
		Id:          uuid.New().String(),
		UserId:      params.UserId,
		Field:       models.FieldWithdrawableEarnings,
		Reason:      strings.TrimSpace(params.Reason),
		ActorId:     params.ActorId,
		OperationId: operationId(params.OperationId),
		CreatedAt:   utc(params.Now),
	}

	err := s.withAccountTx(ctx, params.UserId, func(tx *sql.Tx) error {
		acct, err := loadAccount(ctx, tx, params.UserId)
		if err != nil {
			return err
		}
		if params.Amount.GreaterThan(acct.Earnings) {
			return fmt.Errorf("%w: earnings are %s, cannot release %s",
				store.ErrInsufficientEarnings, acct.Earnings.String(), params.Amount.String())
		}

		record.Delta = params.Amount.Sub(acct.WithdrawableEarnings)
		if !record.Delta.IsZero() {
			ref := entryRef{
				OperationId: record.OperationId,
				Source:      models.EntrySourceAdjustment,
				SourceId:    record.Id,
			}
			if _, err := applyEntry(ctx, tx, acct, models.FieldWithdrawableEarnings, record.Delta, ref, store.ErrInsufficientFunds, record.CreatedAt); err != nil {
				return err
			}
		} else if err := checkOperation(ctx, tx, params.UserId, record.OperationId); err != nil {
			return err
		}

		if err := insertAdjustment(ctx, tx, record); err != nil {
			return err
		}
		if record.Delta.IsZero() {
			return nil
		}
		return saveAccount(ctx, tx, acct, record.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawable earnings set",
		zap.String("adjustment_id", record.Id),
		zap.String("user_id", record.UserId),
		zap.String("amount", params.Amount.String()),
		zap.String("delta", record.Delta.String()),
		zap.String("actor_id", record.ActorId))
	return record, nil
}

// GetAdjustments returns the audit records of a user, newest first
func (s *Service) GetAdjustments(ctx context.Context, userId string, limit, offset int) ([]models.AdjustmentRecord, error) {
	limit, offset = page(limit, offset)
	rows, err := s.db.QueryContext(ctx, queryGetAdjustments, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get adjustments: %w", err)
	}
	defer closeRows(rows)

	var records []models.AdjustmentRecord
	for rows.Next() {
		var record models.AdjustmentRecord
		var field, delta string
		if err := rows.Scan(&record.Id, &record.UserId, &field, &delta, &record.Reason,
			&record.ActorId, &record.OperationId, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		record.Field = models.LedgerField(field)
		if record.Delta, err = parseDecimal("delta", delta); err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating adjustment rows: %w", err)
	}
	return records, nil
}

func insertAdjustment(ctx context.Context, tx *sql.Tx, record *models.AdjustmentRecord) error {
	_, err := tx.ExecContext(ctx, queryInsertAdjustment,
		record.Id, record.UserId, string(record.Field), record.Delta.String(),
		record.Reason, record.ActorId, record.OperationId, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert adjustment record: %w", err)
	}
	return nil
}

func checkAudit(reason, actorId string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: reason is required", store.ErrInvalidArgument)
	}
	if actorId == "" {
		return fmt.Errorf("%w: actor is required", store.ErrInvalidArgument)
	}
	return nil
}

func operationId(id string) string {
	if id == "" {
		return uuid.New().String()
	}
	return id
}
