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

const (
	accountColumns = `id, name, email, balance, earnings, withdrawable_earnings,
		total_deposits, total_withdrawals, earnings_paused, version, created_at, updated_at`

	transactionColumns = `id, user_id, type, status, amount, plan_id, source, selected_account,
		account_details, proof_of_payment, investment_id, version, created_at, updated_at, resolved_at`

	investmentColumns = `id, user_id, transaction_id, origin, plan_id, plan_version, principal, profit_percent,
		cycle_length_ns, maturity_ns, opened_at, last_accrual_at, matures_at, cycles_accrued,
		accrued_total, status, version, updated_at`

	// Account queries
	queryInsertAccount = `
		INSERT OR IGNORE INTO accounts (
			id, name, email, balance, earnings, withdrawable_earnings,
			total_deposits, total_withdrawals, earnings_paused, version, created_at, updated_at
		) VALUES (?, ?, ?, '0', '0', '0', '0', '0', 0, 1, ?, ?)`

	queryGetAccount = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = ?`

	queryGetAccountByEmail = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE email = ?`

	queryListAccounts = `
		SELECT ` + accountColumns + `
		FROM accounts
		ORDER BY created_at, id`

	queryUpdateAccount = `
		UPDATE accounts
		SET balance = ?, earnings = ?, withdrawable_earnings = ?, total_deposits = ?, total_withdrawals = ?,
		    earnings_paused = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	queryDeleteAccountStatusChanges = `
		DELETE FROM transaction_status_changes
		WHERE transaction_id IN (SELECT id FROM transactions WHERE user_id = ?)`
	queryDeleteAccountTransactions = `DELETE FROM transactions WHERE user_id = ?`
	queryDeleteAccountInvestments  = `DELETE FROM investments WHERE user_id = ?`
	queryDeleteAccountEntries      = `DELETE FROM ledger_entries WHERE user_id = ?`
	queryDeleteAccountAdjustments  = `DELETE FROM adjustments WHERE user_id = ?`
	queryDeleteAccount             = `DELETE FROM accounts WHERE id = ?`

	// Ledger entry queries
	queryCheckDuplicateOperation = `
		SELECT id FROM ledger_entries WHERE user_id = ? AND operation_id = ?
		UNION ALL
		SELECT id FROM adjustments WHERE user_id = ? AND operation_id = ?
		LIMIT 1`

	queryInsertLedgerEntry = `
		INSERT INTO ledger_entries (
			id, user_id, field, amount, balance_before, balance_after,
			source_kind, source_id, operation_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetLedgerEntries = `
		SELECT id, user_id, field, amount, balance_before, balance_after,
		       source_kind, source_id, operation_id, created_at
		FROM ledger_entries
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryGetEntryAmounts = `
		SELECT field, amount
		FROM ledger_entries
		WHERE user_id = ?`

	// Transaction queries
	queryInsertTransaction = `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransaction = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = ?`

	queryListTransactions = `
		SELECT ` + transactionColumns + `
		FROM transactions`

	queryUpdateTransactionStatus = `
		UPDATE transactions
		SET status = ?, investment_id = ?, version = version + 1, updated_at = ?, resolved_at = ?
		WHERE id = ? AND version = ? AND status = ?`

	queryGetPendingTransactions = `
		SELECT type, source, amount
		FROM transactions
		WHERE user_id = ? AND status = 'pending'`

	// Status change queries
	queryInsertStatusChange = `
		INSERT INTO transaction_status_changes (id, transaction_id, from_status, to_status, actor_id, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetStatusChanges = `
		SELECT id, transaction_id, from_status, to_status, actor_id, note, created_at
		FROM transaction_status_changes
		WHERE transaction_id = ?
		ORDER BY created_at, rowid`

	// Investment queries
	queryInsertInvestment = `
		INSERT INTO investments (` + investmentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetInvestment = `
		SELECT ` + investmentColumns + `
		FROM investments
		WHERE id = ?`

	queryListInvestments = `
		SELECT ` + investmentColumns + `
		FROM investments`

	queryUpdateInvestmentAccrual = `
		UPDATE investments
		SET last_accrual_at = ?, cycles_accrued = ?, accrued_total = ?, status = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	// Adjustment queries
	queryInsertAdjustment = `
		INSERT INTO adjustments (id, user_id, field, delta, reason, actor_id, operation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetAdjustments = `
		SELECT id, user_id, field, delta, reason, actor_id, operation_id, created_at
		FROM adjustments
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`
)
