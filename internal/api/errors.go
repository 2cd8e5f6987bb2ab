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
	"errors"

	"investment-ledger-go/internal/store"
)

// Code is the stable, caller-facing name of an error
type Code string

const (
	CodeInsufficientFunds      Code = "INSUFFICIENT_FUNDS"
	CodeInsufficientEarnings   Code = "INSUFFICIENT_EARNINGS"
	CodePlanRangeViolation     Code = "PLAN_RANGE_VIOLATION"
	CodeInvalidStateTransition Code = "INVALID_STATE_TRANSITION"
	CodeNotFound               Code = "NOT_FOUND"
	CodeUnauthorized           Code = "UNAUTHORIZED"
	CodeInvalidArgument        Code = "INVALID_ARGUMENT"
	CodeDuplicateOperation     Code = "DUPLICATE_OPERATION"
	CodeConflict               Code = "CONFLICT"
	CodeInternal               Code = "INTERNAL"
)

var codes = []struct {
	err  error
	code Code
}{
	{store.ErrInsufficientFunds, CodeInsufficientFunds},
	{store.ErrInsufficientEarnings, CodeInsufficientEarnings},
	{store.ErrPlanRangeViolation, CodePlanRangeViolation},
	{store.ErrInvalidStateTransition, CodeInvalidStateTransition},
	{store.ErrNotFound, CodeNotFound},
	{store.ErrUnauthorized, CodeUnauthorized},
	{store.ErrInvalidArgument, CodeInvalidArgument},
	{store.ErrDuplicateOperation, CodeDuplicateOperation},
	{store.ErrConcurrentModification, CodeConflict},
}

// CodeOf maps err to its stable code. Unknown errors are INTERNAL.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
