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
	"sync"
	"time"

	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/store"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

const defaultRetryAttempts = 3

type Service struct {
	db            *sql.DB
	locks         *accountLocks
	retryAttempts int
}

func NewService(ctx context.Context, cfg models.DatabaseConfig, ledgerCfg models.LedgerConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	dsn := cfg.Path + "?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := newService(db, ledgerCfg.RetryAttempts)
	if err := service.initSchema(ctx, cfg.CreateDummyUsers); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully",
		zap.Int("retry_attempts", service.retryAttempts))
	return service, nil
}

// newService wraps an already opened handle. Tests use it with :memory: databases.
func newService(db *sql.DB, retryAttempts int) *Service {
	if retryAttempts <= 0 {
		retryAttempts = defaultRetryAttempts
	}
	return &Service{
		db:            db,
		locks:         newAccountLocks(),
		retryAttempts: retryAttempts,
	}
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// Ping reports whether the database is reachable
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Service) initSchema(ctx context.Context, createDummyUsers bool) error {
	schema := `
	-- Account state (hot data). Money is stored as decimal text.
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		balance TEXT NOT NULL DEFAULT '0',
		earnings TEXT NOT NULL DEFAULT '0',
		withdrawable_earnings TEXT NOT NULL DEFAULT '0',
		total_deposits TEXT NOT NULL DEFAULT '0',
		total_withdrawals TEXT NOT NULL DEFAULT '0',
		earnings_paused BOOLEAN NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);

	-- Deposit and withdrawal requests
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES accounts(id),
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		amount TEXT NOT NULL,
		plan_id TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		selected_account TEXT NOT NULL DEFAULT '',
		account_details TEXT NOT NULL DEFAULT '',
		proof_of_payment TEXT NOT NULL DEFAULT '',
		investment_id TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		resolved_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
	CREATE INDEX IF NOT EXISTS idx_transactions_type_status ON transactions(type, status);
	CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at);

	-- Immutable transition history
	CREATE TABLE IF NOT EXISTS transaction_status_changes (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL REFERENCES transactions(id),
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_status_changes_transaction_id ON transaction_status_changes(transaction_id);

	-- Plan-bound principal with a snapshot of the plan terms
	CREATE TABLE IF NOT EXISTS investments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES accounts(id),
		transaction_id TEXT NOT NULL DEFAULT '',
		origin TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		plan_version INTEGER NOT NULL,
		principal TEXT NOT NULL,
		profit_percent TEXT NOT NULL,
		cycle_length_ns INTEGER NOT NULL,
		maturity_ns INTEGER NOT NULL,
		opened_at TIMESTAMP NOT NULL,
		last_accrual_at TIMESTAMP NOT NULL,
		matures_at TIMESTAMP NOT NULL,
		cycles_accrued INTEGER NOT NULL DEFAULT 0,
		accrued_total TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_investments_user_id ON investments(user_id);
	CREATE INDEX IF NOT EXISTS idx_investments_status ON investments(status);

	-- Ledger entries (audit trail - cold data)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES accounts(id),
		field TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		source_kind TEXT NOT NULL,
		source_id TEXT NOT NULL DEFAULT '',
		operation_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, operation_id)
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_field ON ledger_entries(user_id, field);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_created_at ON ledger_entries(created_at);

	-- Admin corrections
	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES accounts(id),
		field TEXT NOT NULL,
		delta TEXT NOT NULL,
		reason TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		operation_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, operation_id)
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_user_id ON adjustments(user_id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	// Insert 3 dummy users for testing if configured to do so
	if createDummyUsers {
		users := []struct {
			name  string
			email string
		}{
			{"Alice Johnson", "alice.johnson@example.com"},
			{"Bob Smith", "bob.smith@example.com"},
			{"Carol Williams", "carol.williams@example.com"},
		}

		for _, user := range users {
			account, err := s.CreateAccount(ctx, uuid.New().String(), user.name, user.email)
			if err != nil {
				if errors.Is(err, store.ErrInvalidArgument) {
					zap.L().Debug("Dummy user already present", zap.String("email", user.email))
					continue
				}
				zap.L().Error("Failed to insert dummy user", zap.String("name", user.name), zap.Error(err))
				continue
			}
			zap.L().Info("Dummy user created", zap.String("id", account.Id), zap.String("name", account.Name))
		}
	} else {
		zap.L().Info("Skipping dummy user creation (CREATE_DUMMY_USERS=false)")
	}

	return nil
}

// runTx executes fn inside one SQL transaction. Any error rolls everything back.
func (s *Service) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			zap.L().Warn("Failed to roll back transaction", zap.Error(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// withAccountTx serializes all mutations of one account. Inside the process the
// per-account mutex orders callers; across processes the version column does,
// and a lost compare-and-set is retried from a fresh read.
func (s *Service) withAccountTx(ctx context.Context, userId string, fn func(tx *sql.Tx) error) error {
	unlock := s.locks.lock(userId)
	defer unlock()

	var err error
	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if !errors.Is(err, store.ErrConcurrentModification) {
			return err
		}
		zap.L().Warn("Concurrent modification, retrying",
			zap.String("user_id", userId),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.retryAttempts))
	}
	return err
}

// accountLocks hands out one mutex per user id and forgets it once unused
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*accountLock)}
}

func (l *accountLocks) lock(userId string) func() {
	l.mu.Lock()
	lk, ok := l.locks[userId]
	if !ok {
		lk = &accountLock{}
		l.locks[userId] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, userId)
		}
		l.mu.Unlock()
	}
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
