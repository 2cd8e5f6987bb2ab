package accrual

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"investment-ledger-go/internal/database"
	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/plans"
	"investment-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tickTime = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu          sync.Mutex
	investments []models.Investment
	listErr     error
	failures    map[string][]error
	calls       map[string]int
}

func newFakeStore(ids ...string) *fakeStore {
	fs := &fakeStore{failures: map[string][]error{}, calls: map[string]int{}}
	for _, id := range ids {
		fs.investments = append(fs.investments, models.Investment{Id: id, UserId: "user-" + id, Status: models.InvestmentActive})
	}
	return fs
}

func (f *fakeStore) ListInvestments(ctx context.Context, filter models.InvestmentFilter) ([]models.Investment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.investments, nil
}

func (f *fakeStore) AccrueInvestment(ctx context.Context, investmentId string, now time.Time) (*models.AccrualResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[investmentId]++
	if queued := f.failures[investmentId]; len(queued) > 0 {
		f.failures[investmentId] = queued[1:]
		return nil, queued[0]
	}
	return &models.AccrualResult{
		InvestmentId: investmentId,
		Cycles:       1,
		Credited:     decimal.NewFromInt(10),
	}, nil
}

func TestTick_IsolatesFailingInvestment(t *testing.T) {
	fs := newFakeStore("a", "b", "c")
	fs.failures["b"] = []error{errors.New("disk I/O error")}

	engine := NewEngine(fs, models.AccrualConfig{MaxRetries: 2})
	result, err := engine.Tick(context.Background(), tickTime)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Cycles)
	assert.True(t, result.Credited.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, 1, fs.calls["b"], "non-conflict errors wait for the next tick")

	// The failed investment is picked up again on the following tick
	result, err = engine.Tick(context.Background(), tickTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 3, result.Cycles)
}

func TestTick_RetriesConcurrentModification(t *testing.T) {
	fs := newFakeStore("a")
	conflict := fmt.Errorf("update failed - %w", store.ErrConcurrentModification)
	fs.failures["a"] = []error{conflict, conflict}

	engine := NewEngine(fs, models.AccrualConfig{MaxRetries: 2})
	result, err := engine.Tick(context.Background(), tickTime)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, result.Cycles)
	assert.Equal(t, 3, fs.calls["a"])
}

func TestTick_GivesUpAfterMaxRetries(t *testing.T) {
	fs := newFakeStore("a")
	fs.failures["a"] = []error{store.ErrConcurrentModification, store.ErrConcurrentModification, store.ErrConcurrentModification}

	engine := NewEngine(fs, models.AccrualConfig{MaxRetries: 1})
	result, err := engine.Tick(context.Background(), tickTime)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, fs.calls["a"])
}

func TestTick_DuplicateOperationIsAFailure(t *testing.T) {
	fs := newFakeStore("a")
	fs.failures["a"] = []error{fmt.Errorf("%w: operation_id accrual:a:1 already applied", store.ErrDuplicateOperation)}

	result, err := NewEngine(fs, models.AccrualConfig{MaxRetries: 2}).Tick(context.Background(), tickTime)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Cycles)
	assert.Equal(t, 1, fs.calls["a"], "duplicates are not retried within a tick")
}

func TestTick_ListFailure(t *testing.T) {
	fs := newFakeStore()
	fs.listErr = errors.New("database is locked")

	_, err := NewEngine(fs, models.AccrualConfig{}).Tick(context.Background(), tickTime)
	assert.Error(t, err)
}

func TestStart_RejectsInvalidSchedule(t *testing.T) {
	engine := NewEngine(newFakeStore(), models.AccrualConfig{Schedule: "every now and then"})
	assert.Error(t, engine.Start(context.Background()))
}

func TestAddJob(t *testing.T) {
	engine := NewEngine(newFakeStore(), models.AccrualConfig{Schedule: "@every 1h"})
	assert.Error(t, engine.AddJob("mirror", "whenever", func() {}))

	var mu sync.Mutex
	runs := 0
	require.NoError(t, engine.AddJob("mirror", "@every 1s", func() {
		mu.Lock()
		runs++
		mu.Unlock()
	}))
	require.NoError(t, engine.Start(context.Background()))
	defer engine.Stop()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs > 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestStartStop_RunsScheduledTicks(t *testing.T) {
	fs := newFakeStore("a")
	engine := NewEngine(fs, models.AccrualConfig{Schedule: "@every 1s"})
	require.NoError(t, engine.Start(context.Background()))

	assert.Eventually(t, func() bool {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		return fs.calls["a"] > 0
	}, 5*time.Second, 50*time.Millisecond)

	engine.Stop()
}

func TestTick_AgainstSQLiteStore(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	}, models.LedgerConfig{})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	plan, err := plans.Default().Get("professional")
	require.NoError(t, err)

	var userIds []string
	for i, name := range []string{"paused", "active"} {
		account, err := db.CreateAccount(ctx, "", name, name+"@example.com")
		require.NoError(t, err)
		userIds = append(userIds, account.Id)

		txn, err := db.CreateTransaction(ctx, store.CreateTransactionParams{
			UserId: account.Id,
			Type:   models.TransactionTypeDeposit,
			Amount: decimal.NewFromInt(int64(1000 * (i + 1))),
			PlanId: plan.Id,
			Now:    tickTime,
		})
		require.NoError(t, err)
		_, err = db.UpdateTransactionStatus(ctx, store.TransitionParams{
			TransactionId: txn.Id,
			ToStatus:      models.StatusConfirmed,
			ActorId:       "admin",
			Plan:          &plan,
			Now:           tickTime,
		})
		require.NoError(t, err)
	}
	_, err = db.SetEarningsPaused(ctx, userIds[0], true)
	require.NoError(t, err)

	engine := NewEngine(db, models.AccrualConfig{TickTimeout: 10 * time.Second})

	result, err := engine.Tick(ctx, tickTime.Add(71*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 0, result.Cycles)

	result, err = engine.Tick(ctx, tickTime.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Cycles)
	assert.Equal(t, 1, result.Forfeited)
	assert.True(t, result.Credited.Equal(decimal.NewFromInt(600)), "credited = %s", result.Credited)

	paused, err := db.GetAccount(ctx, userIds[0])
	require.NoError(t, err)
	assert.True(t, paused.Earnings.IsZero())

	active, err := db.GetAccount(ctx, userIds[1])
	require.NoError(t, err)
	assert.True(t, active.Earnings.Equal(decimal.NewFromInt(600)))
}
