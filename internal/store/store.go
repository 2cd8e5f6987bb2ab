package store

import (
	"context"
	"errors"
	"time"

	"investment-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across the ledger, the request boundary and every backend.
var (
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInsufficientEarnings   = errors.New("insufficient earnings")
	ErrPlanRangeViolation     = errors.New("amount outside plan range")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrNotFound               = errors.New("not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrDuplicateOperation     = errors.New("duplicate operation")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// MutationParams describes a single credit or debit of one ledger field.
// OperationId makes the mutation idempotent: a repeated id is rejected with
// ErrDuplicateOperation and changes nothing.
type MutationParams struct {
	UserId      string
	Field       models.LedgerField
	Amount      decimal.Decimal
	OperationId string
	Source      models.EntrySource
	SourceId    string
}

// CreateTransactionParams contains the parameters for recording a pending request
type CreateTransactionParams struct {
	UserId          string
	Type            models.TransactionType
	Amount          decimal.Decimal
	PlanId          string
	Source          models.WithdrawalSource
	SelectedAccount string
	AccountDetails  string
	ProofOfPayment  string
	Now             time.Time
}

// TransitionParams drives one admin status change. Plan must be set when a
// deposit is confirmed; it is the snapshot the new investment is bound to.
type TransitionParams struct {
	TransactionId string
	ToStatus      models.TransactionStatus
	ActorId       string
	Note          string
	Plan          *models.Plan
	Now           time.Time
}

// ReinvestParams converts earnings into a new investment
type ReinvestParams struct {
	UserId      string
	Amount      decimal.Decimal
	Plan        models.Plan
	OperationId string
	Now         time.Time
}

// AdjustmentParams is an admin correction of balance or earnings
type AdjustmentParams struct {
	UserId      string
	Field       models.LedgerField
	Delta       decimal.Decimal
	Reason      string
	ActorId     string
	OperationId string
	Now         time.Time
}

// WithdrawableParams sets the admin release gate for earnings
type WithdrawableParams struct {
	UserId      string
	Amount      decimal.Decimal
	Reason      string
	ActorId     string
	OperationId string
	Now         time.Time
}

// LedgerStore defines the contract that every backend must satisfy.
// Every mutating method is a single atomic unit: either all of its rows are
// written or none are.
type LedgerStore interface {
	// --- Accounts ---
	CreateAccount(ctx context.Context, userId, name, email string) (*models.UserAccount, error)
	GetAccount(ctx context.Context, userId string) (*models.UserAccount, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.UserAccount, error)
	ListAccounts(ctx context.Context) ([]models.UserAccount, error)
	DeleteAccount(ctx context.Context, userId string) error
	SetEarningsPaused(ctx context.Context, userId string, paused bool) (*models.UserAccount, error)

	// --- Ledger ---
	Credit(ctx context.Context, params MutationParams) (*models.LedgerEntry, error)
	Debit(ctx context.Context, params MutationParams) (*models.LedgerEntry, error)
	GetLedgerEntries(ctx context.Context, userId string, limit, offset int) ([]models.LedgerEntry, error)
	ReconcileUser(ctx context.Context, userId string) (*models.ReconciliationReport, error)

	// --- Transactions ---
	CreateTransaction(ctx context.Context, params CreateTransactionParams) (*models.Transaction, error)
	GetTransaction(ctx context.Context, transactionId string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, params TransitionParams) (*models.Transaction, error)
	GetStatusChanges(ctx context.Context, transactionId string) ([]models.StatusChange, error)

	// --- Investments ---
	GetInvestment(ctx context.Context, investmentId string) (*models.Investment, error)
	ListInvestments(ctx context.Context, filter models.InvestmentFilter) ([]models.Investment, error)
	AccrueInvestment(ctx context.Context, investmentId string, now time.Time) (*models.AccrualResult, error)
	Reinvest(ctx context.Context, params ReinvestParams) (*models.Investment, error)

	// --- Admin adjustments ---
	ApplyAdjustment(ctx context.Context, params AdjustmentParams) (*models.AdjustmentRecord, error)
	SetWithdrawableEarnings(ctx context.Context, params WithdrawableParams) (*models.AdjustmentRecord, error)
	GetAdjustments(ctx context.Context, userId string, limit, offset int) ([]models.AdjustmentRecord, error)

	// --- Views ---
	GetDashboardSummary(ctx context.Context, userId string, now time.Time) (*models.DashboardSummary, error)

	// --- Lifecycle ---
	Close()
}
