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

package accrual

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"investment-ledger-go/internal/metrics"
	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/store"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultWorkers = 4

// Store is the part of the ledger store the engine drives
type Store interface {
	ListInvestments(ctx context.Context, filter models.InvestmentFilter) ([]models.Investment, error)
	AccrueInvestment(ctx context.Context, investmentId string, now time.Time) (*models.AccrualResult, error)
}

// Engine runs accrual ticks on a cron schedule. Each investment is accrued in
// its own store transaction; one failing investment never blocks the others
// and is picked up again on the next tick.
type Engine struct {
	store   Store
	cfg     models.AccrualConfig
	cron    *cron.Cron
	now     func() time.Time
	workers int

	// serialises ticks so a slow tick and a manual RunOnce never overlap
	tickMu sync.Mutex
}

func NewEngine(st Store, cfg models.AccrualConfig) *Engine {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	logger := cronLogger{zap.L().Sugar()}
	return &Engine{
		store: st,
		cfg:   cfg,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		now:     func() time.Time { return time.Now().UTC() },
		workers: defaultWorkers,
	}
}

// WithClock replaces the wall clock used by scheduled ticks
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Start registers the tick on the configured schedule and starts the scheduler.
// Scheduled ticks run with ctx until Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	zap.L().Info("Starting accrual engine",
		zap.String("schedule", e.cfg.Schedule),
		zap.Duration("tick_timeout", e.cfg.TickTimeout),
		zap.Int("max_retries", e.cfg.MaxRetries))

	if _, err := e.cron.AddFunc(e.cfg.Schedule, func() { e.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid accrual schedule %q: %w", e.cfg.Schedule, err)
	}
	e.cron.Start()

	zap.L().Info("Accrual engine started")
	return nil
}

// AddJob runs fn on its own schedule in the engine's scheduler. Jobs share
// the recover and skip-if-running chain with the accrual tick.
func (e *Engine) AddJob(name, spec string, fn func()) error {
	if _, err := e.cron.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	zap.L().Info("Scheduled job", zap.String("job", name), zap.String("schedule", spec))
	return nil
}

// Stop halts the scheduler and waits for a running tick to finish
func (e *Engine) Stop() {
	zap.L().Info("Stopping accrual engine")
	stopped := e.cron.Stop()
	<-stopped.Done()
	zap.L().Info("Accrual engine stopped")
}

// RunOnce runs a single tick at the engine's current time, logging the outcome
func (e *Engine) RunOnce(ctx context.Context) {
	result, err := e.Tick(ctx, e.now())
	if err != nil {
		zap.L().Error("Accrual tick failed", zap.Error(err))
		return
	}
	if result.Cycles > 0 || result.Failed > 0 || result.Matured > 0 {
		zap.L().Info("Accrual tick completed",
			zap.Int("processed", result.Processed),
			zap.Int("cycles", result.Cycles),
			zap.Int("forfeited", result.Forfeited),
			zap.Int("matured", result.Matured),
			zap.Int("failed", result.Failed),
			zap.String("credited", result.Credited.String()))
	}
}

// Tick accrues every active investment that is due at now. It only returns an
// error when the active investments cannot be listed at all.
func (e *Engine) Tick(ctx context.Context, now time.Time) (metrics.TickResult, error) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	start := time.Now()
	if e.cfg.TickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.TickTimeout)
		defer cancel()
	}

	result := metrics.TickResult{Credited: decimal.Zero}

	investments, err := e.store.ListInvestments(ctx, models.InvestmentFilter{Status: models.InvestmentActive})
	if err != nil {
		result.TimedOut = errors.Is(err, context.DeadlineExceeded)
		metrics.RecordAccrualTick(result, time.Since(start))
		return result, fmt.Errorf("failed to list active investments: %w", err)
	}

	zap.L().Debug("Accrual tick",
		zap.Time("now", now),
		zap.Int("active_investments", len(investments)))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, e.workers)
	)
	for _, inv := range investments {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(inv models.Investment) {
			defer wg.Done()
			defer func() { <-sem }()

			accrued, err := e.accrueWithRetry(ctx, inv.Id, now)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			if err != nil {
				result.Failed++
				zap.L().Error("Failed to accrue investment",
					zap.String("investment_id", inv.Id),
					zap.String("user_id", inv.UserId),
					zap.Error(err))
				return
			}
			result.Cycles += accrued.Cycles
			result.Forfeited += accrued.Forfeited
			result.Credited = result.Credited.Add(accrued.Credited)
			if accrued.Matured {
				result.Matured++
			}
		}(inv)
	}
	wg.Wait()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		zap.L().Warn("Accrual tick timed out, remaining investments deferred to next tick",
			zap.Int("processed", result.Processed),
			zap.Int("active_investments", len(investments)))
	}

	metrics.RecordAccrualTick(result, time.Since(start))
	return result, nil
}

// accrueWithRetry retries lost optimistic-version races a bounded number of
// times. Any other error, ErrDuplicateOperation included, is a failure left
// for the next tick.
func (e *Engine) accrueWithRetry(ctx context.Context, investmentId string, now time.Time) (*models.AccrualResult, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		result, err := e.store.AccrueInvestment(ctx, investmentId, now)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, store.ErrConcurrentModification) {
			return nil, err
		}
		lastErr = err
		zap.L().Debug("Retrying accrual after concurrent modification",
			zap.String("investment_id", investmentId),
			zap.Int("attempt", attempt+1))
	}
	return nil, lastErr
}

// cronLogger routes cron's internal logging through zap
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
