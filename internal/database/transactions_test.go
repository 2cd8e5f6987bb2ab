package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func createDeposit(t *testing.T, service *Service, userId, planId, amount string) *models.Transaction {
	t.Helper()
	txn, err := service.CreateTransaction(context.Background(), store.CreateTransactionParams{
		UserId:         userId,
		Type:           models.TransactionTypeDeposit,
		Amount:         decimal.RequireFromString(amount),
		PlanId:         planId,
		ProofOfPayment: "proofs/" + userId + ".png",
		Now:            t0,
	})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	return txn
}

func createWithdrawal(t *testing.T, service *Service, userId string, source models.WithdrawalSource, amount string) *models.Transaction {
	t.Helper()
	txn, err := service.CreateTransaction(context.Background(), store.CreateTransactionParams{
		UserId:          userId,
		Type:            models.TransactionTypeWithdrawal,
		Amount:          decimal.RequireFromString(amount),
		Source:          source,
		SelectedAccount: "bank",
		AccountDetails:  "IBAN XX00 0000",
		Now:             t0,
	})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	return txn
}

func transition(service *Service, txn *models.Transaction, to models.TransactionStatus, plan *models.Plan) (*models.Transaction, error) {
	return service.UpdateTransactionStatus(context.Background(), store.TransitionParams{
		TransactionId: txn.Id,
		ToStatus:      to,
		ActorId:       "admin1",
		Note:          "checked",
		Plan:          plan,
		Now:           t0.Add(time.Hour),
	})
}

func TestCreateTransaction_Pending(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	createTestAccount(t, service, "user1")
	txn := createDeposit(t, service, "user1", "professional", "1000")

	if txn.Status != models.StatusPending {
		t.Errorf("Expected pending, got %s", txn.Status)
	}

	stored, err := service.GetTransaction(context.Background(), txn.Id)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if !stored.Amount.Equal(decimal.NewFromInt(1000)) || stored.PlanId != "professional" {
		t.Errorf("Unexpected stored transaction: %+v", stored)
	}
	if stored.ResolvedAt != nil {
		t.Error("Expected pending transaction to have no resolved time")
	}
	if !stored.CreatedAt.Equal(t0) {
		t.Errorf("Expected created_at %v, got %v", t0, stored.CreatedAt)
	}
}

func TestCreateTransaction_Invalid(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	createTestAccount(t, service, "user1")

	tests := []struct {
		name    string
		params  store.CreateTransactionParams
		wantErr error
	}{
		{"unknown type", store.CreateTransactionParams{UserId: "user1", Type: "transfer", Amount: decimal.NewFromInt(1)}, store.ErrInvalidArgument},
		{"zero amount", store.CreateTransactionParams{UserId: "user1", Type: models.TransactionTypeDeposit, Amount: decimal.Zero, PlanId: "starter"}, store.ErrInvalidArgument},
		{"deposit without plan", store.CreateTransactionParams{UserId: "user1", Type: models.TransactionTypeDeposit, Amount: decimal.NewFromInt(100)}, store.ErrInvalidArgument},
		{"withdrawal without source", store.CreateTransactionParams{UserId: "user1", Type: models.TransactionTypeWithdrawal, Amount: decimal.NewFromInt(100)}, store.ErrInvalidArgument},
		{"unknown user", store.CreateTransactionParams{UserId: "ghost", Type: models.TransactionTypeDeposit, Amount: decimal.NewFromInt(100), PlanId: "starter"}, store.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateTransaction(context.Background(), tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfirmDeposit_OpensInvestmentAndAccrues(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "user1")
	plan := testPlan(t, "professional")
	txn := createDeposit(t, service, "user1", plan.Id, "1000")

	confirmed, err := transition(service, txn, models.StatusConfirmed, &plan)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if confirmed.Status != models.StatusConfirmed || confirmed.InvestmentId == "" {
		t.Fatalf("Expected confirmed deposit with investment, got %+v", confirmed)
	}

	account := requireAccount(t, service, "user1")
	if !account.TotalDeposits.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected totalDeposits 1000, got %s", account.TotalDeposits.String())
	}
	if !account.Balance.IsZero() {
		t.Errorf("Expected balance untouched, got %s", account.Balance.String())
	}

	inv, err := service.GetInvestment(ctx, confirmed.InvestmentId)
	if err != nil {
		t.Fatalf("GetInvestment failed: %v", err)
	}
	if !inv.Principal.Equal(decimal.NewFromInt(1000)) || inv.Status != models.InvestmentActive {
		t.Errorf("Unexpected investment: %+v", inv)
	}
	openedAt := t0.Add(time.Hour)
	if !inv.MaturesAt.Equal(openedAt.Add(720 * time.Hour)) {
		t.Errorf("Expected maturity at %v, got %v", openedAt.Add(720*time.Hour), inv.MaturesAt)
	}
	if inv.TransactionId != txn.Id || inv.Origin != models.OriginDeposit || inv.PlanVersion != 1 {
		t.Errorf("Unexpected investment provenance: %+v", inv)
	}

	result, err := service.AccrueInvestment(ctx, inv.Id, openedAt.Add(72*time.Hour))
	if err != nil {
		t.Fatalf("AccrueInvestment failed: %v", err)
	}
	if result.Cycles != 1 || !result.Credited.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected one cycle of 300, got %d cycles of %s", result.Cycles, result.Credited.String())
	}

	account = requireAccount(t, service, "user1")
	if !account.Earnings.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected earnings 300, got %s", account.Earnings.String())
	}
	requireBalanced(t, service, "user1")

	changes, err := service.GetStatusChanges(ctx, txn.Id)
	if err != nil {
		t.Fatalf("GetStatusChanges failed: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("Expected 1 status change, got %d", len(changes))
	}
	if changes[0].FromStatus != models.StatusPending || changes[0].ToStatus != models.StatusConfirmed || changes[0].ActorId != "admin1" {
		t.Errorf("Unexpected status change: %+v", changes[0])
	}
}

func TestConfirmDeposit_Twice(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "user1")
	plan := testPlan(t, "professional")
	txn := createDeposit(t, service, "user1", plan.Id, "1000")

	if _, err := transition(service, txn, models.StatusConfirmed, &plan); err != nil {
		t.Fatalf("First confirm failed: %v", err)
	}
	_, err := transition(service, txn, models.StatusConfirmed, &plan)
	if !errors.Is(err, store.ErrInvalidStateTransition) {
		t.Fatalf("Expected ErrInvalidStateTransition, got %v", err)
	}

	account := requireAccount(t, service, "user1")
	if !account.TotalDeposits.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected totalDeposits 1000 after replay, got %s", account.TotalDeposits.String())
	}
	investments, err := service.ListInvestments(ctx, models.InvestmentFilter{UserId: "user1"})
	if err != nil {
		t.Fatalf("ListInvestments failed: %v", err)
	}
	if len(investments) != 1 {
		t.Errorf("Expected 1 investment after replay, got %d", len(investments))
	}
	changes, _ := service.GetStatusChanges(ctx, txn.Id)
	if len(changes) != 1 {
		t.Errorf("Expected 1 status change after replay, got %d", len(changes))
	}
}

func TestConfirmDeposit_OutsidePlanRange(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	createTestAccount(t, service, "user1")
	plan := testPlan(t, "professional")
	txn := createDeposit(t, service, "user1", plan.Id, "999.99")

	_, err := transition(service, txn, models.StatusConfirmed, &plan)
	if !errors.Is(err, store.ErrPlanRangeViolation) {
		t.Fatalf("Expected ErrPlanRangeViolation, got %v", err)
	}

	stored, err := service.GetTransaction(context.Background(), txn.Id)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if stored.Status != models.StatusPending {
		t.Errorf("Expected transaction to stay pending, got %s", stored.Status)
	}
	if !requireAccount(t, service, "user1").TotalDeposits.IsZero() {
		t.Error("Expected totalDeposits unchanged")
	}
}

func TestConfirmDeposit_PlanRequired(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	createTestAccount(t, service, "user1")
	txn := createDeposit(t, service, "user1", "professional", "1000")

	if _, err := transition(service, txn, models.StatusConfirmed, nil); !errors.Is(err, store.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument without plan, got %v", err)
	}

	other := testPlan(t, "premium")
	if _, err := transition(service, txn, models.StatusConfirmed, &other); !errors.Is(err, store.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for mismatched plan, got %v", err)
	}
}

func TestRejectDeposit_NoLedgerEffect(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	createTestAccount(t, service, "user1")
	plan := testPlan(t, "starter")
	txn := createDeposit(t, service, "user1", plan.Id, "500")

	rejected, err := transition(service, txn, models.StatusNotReceived, nil)
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.Status != models.StatusNotReceived || rejected.ResolvedAt == nil {
		t.Errorf("Unexpected rejected transaction: %+v", rejected)
	}

	account := requireAccount(t, service, "user1")
	if !account.TotalDeposits.IsZero() {
		t.Errorf("Expected no deposit counted, got %s", account.TotalDeposits.String())
	}

	// Terminal: nothing leaves not_received
	if _, err := transition(service, txn, models.StatusConfirmed, &plan); !errors.Is(err, store.ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition, got %v", err)
	}
	if _, err := transition(service, txn, models.StatusPending, nil); !errors.Is(err, store.ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition back to pending, got %v", err)
	}
}

func TestCompleteWithdrawal_InsufficientBalance(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	createTestAccount(t, service, "user1")
	seed(t, service, "user1", models.FieldBalance, "300")

	txn := createWithdrawal(t, service, "user1", models.SourceBalance, "500")
	if txn.Status != models.StatusPending {
		t.Fatalf("Expected pending withdrawal, got %s", txn.Status)
	}

	_, err := transition(service, txn, models.StatusCompleted, nil)
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}

	stored, err := service.GetTransaction(context.Background(), txn.Id)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if stored.Status != models.StatusPending {
		t.Errorf("Expected withdrawal to remain pending, got %s", stored.Status)
	}
	changes, _ := service.GetStatusChanges(context.Background(), txn.Id)
	if len(changes) != 0 {
		t.Errorf("Expected no status change, got %d", len(changes))
	}

	account := requireAccount(t, service, "user1")
	if !account.Balance.Equal(decimal.NewFromInt(300)) || !account.TotalWithdrawals.IsZero() {
		t.Errorf("Expected balance 300 and no withdrawals, got %s / %s", account.Balance.String(), account.TotalWithdrawals.String())
	}
}

func TestCompleteWithdrawal_FromBalance(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	createTestAccount(t, service, "user1")
	seed(t, service, "user1", models.FieldBalance, "300")
	txn := createWithdrawal(t, service, "user1", models.SourceBalance, "200")

	completed, err := transition(service, txn, models.StatusCompleted, nil)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if completed.Status != models.StatusCompleted {
		t.Errorf("Expected completed, got %s", completed.Status)
	}

	account := requireAccount(t, service, "user1")
	if !account.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected balance 100, got %s", account.Balance.String())
	}
	if !account.TotalWithdrawals.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected totalWithdrawals 200, got %s", account.TotalWithdrawals.String())
	}
	requireBalanced(t, service, "user1")
}

func TestCompleteWithdrawal_FromWithdrawableEarnings(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	createTestAccount(t, service, "user1")
	seed(t, service, "user1", models.FieldEarnings, "500")
	seed(t, service, "user1", models.FieldWithdrawableEarnings, "200")

	first := createWithdrawal(t, service, "user1", models.SourceWithdrawableEarnings, "150")
	if _, err := transition(service, first, models.StatusCompleted, nil); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	account := requireAccount(t, service, "user1")
	if !account.WithdrawableEarnings.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected withdrawable 50, got %s", account.WithdrawableEarnings.String())
	}
	if !account.Earnings.Equal(decimal.NewFromInt(350)) {
		t.Errorf("Expected earnings 350, got %s", account.Earnings.String())
	}

	// More than released, even though earnings would cover it
	second := createWithdrawal(t, service, "user1", models.SourceWithdrawableEarnings, "100")
	if _, err := transition(service, second, models.StatusCompleted, nil); !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}
	requireBalanced(t, service, "user1")
}

func TestFailWithdrawal_NoLedgerEffect(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	createTestAccount(t, service, "user1")
	txn := createWithdrawal(t, service, "user1", models.SourceBalance, "50")

	failed, err := transition(service, txn, models.StatusFailed, nil)
	if err != nil {
		t.Fatalf("Fail transition failed: %v", err)
	}
	if failed.Status != models.StatusFailed {
		t.Errorf("Expected failed, got %s", failed.Status)
	}
	if _, err := transition(service, txn, models.StatusCompleted, nil); !errors.Is(err, store.ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestUpdateTransactionStatus_NotFound(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	_, err := service.UpdateTransactionStatus(context.Background(), store.TransitionParams{
		TransactionId: "missing", ToStatus: models.StatusConfirmed, ActorId: "admin1",
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListTransactions_Filters(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "user1")
	createTestAccount(t, service, "user2")

	createDeposit(t, service, "user1", "starter", "100")
	createDeposit(t, service, "user2", "starter", "200")
	w := createWithdrawal(t, service, "user1", models.SourceBalance, "10")
	if _, err := transition(service, w, models.StatusFailed, nil); err != nil {
		t.Fatalf("Fail transition failed: %v", err)
	}

	tests := []struct {
		name   string
		filter models.TransactionFilter
		want   int
	}{
		{"all", models.TransactionFilter{}, 3},
		{"by user", models.TransactionFilter{UserId: "user1"}, 2},
		{"by type", models.TransactionFilter{Type: models.TransactionTypeDeposit}, 2},
		{"by status", models.TransactionFilter{Status: models.StatusPending}, 2},
		{"combined", models.TransactionFilter{UserId: "user1", Status: models.StatusFailed}, 1},
		{"paged", models.TransactionFilter{Limit: 1, Offset: 2}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transactions, err := service.ListTransactions(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListTransactions failed: %v", err)
			}
			if len(transactions) != tt.want {
				t.Errorf("Expected %d transactions, got %d", tt.want, len(transactions))
			}
		})
	}
}
