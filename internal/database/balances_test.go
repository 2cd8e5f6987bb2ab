package database

import (
	"context"
	"errors"
	"testing"

	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func TestCreditAndDebit(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "user1")

	entry, err := service.Credit(ctx, store.MutationParams{
		UserId: "user1", Field: models.FieldBalance, Amount: decimal.RequireFromString("1.5"),
		OperationId: "op1", Source: models.EntrySourceTransaction, SourceId: "tx-test",
	})
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if !entry.BalanceBefore.IsZero() || !entry.BalanceAfter.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("Unexpected entry before/after: %s -> %s", entry.BalanceBefore.String(), entry.BalanceAfter.String())
	}

	entry, err = service.Debit(ctx, store.MutationParams{
		UserId: "user1", Field: models.FieldBalance, Amount: decimal.RequireFromString("0.5"),
		OperationId: "op2", Source: models.EntrySourceTransaction, SourceId: "tx-test",
	})
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if !entry.Amount.Equal(decimal.RequireFromString("-0.5")) {
		t.Errorf("Expected signed amount -0.5, got %s", entry.Amount.String())
	}

	account := requireAccount(t, service, "user1")
	if !account.Balance.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected balance 1, got %s", account.Balance.String())
	}
	requireBalanced(t, service, "user1")
}

func TestDebit_InsufficientFunds(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "user1")
	seed(t, service, "user1", models.FieldBalance, "10")

	_, err := service.Debit(ctx, store.MutationParams{
		UserId: "user1", Field: models.FieldBalance, Amount: decimal.RequireFromString("10.01"),
		OperationId: "op1", Source: models.EntrySourceTransaction, SourceId: "tx-test",
	})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}

	account := requireAccount(t, service, "user1")
	if !account.Balance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected balance unchanged at 10, got %s", account.Balance.String())
	}

	// The rejected operation id was not consumed.
	if _, err := service.Debit(ctx, store.MutationParams{
		UserId: "user1", Field: models.FieldBalance, Amount: decimal.NewFromInt(10),
		OperationId: "op1", Source: models.EntrySourceTransaction, SourceId: "tx-test",
	}); err != nil {
		t.Fatalf("Debit with reused id after failure should succeed: %v", err)
	}
}

func TestCredit_DuplicateOperation(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "user1")

	params := store.MutationParams{
		UserId: "user1", Field: models.FieldEarnings, Amount: decimal.NewFromInt(25),
		OperationId: "accrual:inv1:1", Source: models.EntrySourceAccrual, SourceId: "inv1",
	}
	if _, err := service.Credit(ctx, params); err != nil {
		t.Fatalf("First credit failed: %v", err)
	}
	_, err := service.Credit(ctx, params)
	if !errors.Is(err, store.ErrDuplicateOperation) {
		t.Fatalf("Expected ErrDuplicateOperation, got %v", err)
	}

	account := requireAccount(t, service, "user1")
	if !account.Earnings.Equal(decimal.NewFromInt(25)) {
		t.Errorf("Expected earnings 25 after replay, got %s", account.Earnings.String())
	}
}

func TestCredit_InvalidArguments(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	createTestAccount(t, service, "user1")

	tests := []struct {
		name   string
		params store.MutationParams
	}{
		{"zero amount", store.MutationParams{UserId: "user1", Field: models.FieldBalance, Amount: decimal.Zero, OperationId: "a", Source: models.EntrySourceTransaction, SourceId: "tx-test"}},
		{"negative amount", store.MutationParams{UserId: "user1", Field: models.FieldBalance, Amount: decimal.NewFromInt(-1), OperationId: "b", Source: models.EntrySourceTransaction, SourceId: "tx-test"}},
		{"unknown field", store.MutationParams{UserId: "user1", Field: "bonus", Amount: decimal.NewFromInt(1), OperationId: "c", Source: models.EntrySourceTransaction, SourceId: "tx-test"}},
		{"missing operation id", store.MutationParams{UserId: "user1", Field: models.FieldBalance, Amount: decimal.NewFromInt(1), Source: models.EntrySourceTransaction, SourceId: "tx-test"}},
		{"missing source", store.MutationParams{UserId: "user1", Field: models.FieldBalance, Amount: decimal.NewFromInt(1), OperationId: "d"}},
		{"adjustment without audit record", store.MutationParams{UserId: "user1", Field: models.FieldBalance, Amount: decimal.NewFromInt(1), OperationId: "e", Source: models.EntrySourceAdjustment, SourceId: "adj-1"}},
		{"missing source id", store.MutationParams{UserId: "user1", Field: models.FieldBalance, Amount: decimal.NewFromInt(1), OperationId: "f", Source: models.EntrySourceAccrual}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Credit(context.Background(), tt.params)
			if !errors.Is(err, store.ErrInvalidArgument) {
				t.Errorf("Expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestCredit_UnknownUser(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	_, err := service.Credit(context.Background(), store.MutationParams{
		UserId: "ghost", Field: models.FieldBalance, Amount: decimal.NewFromInt(1),
		OperationId: "op1", Source: models.EntrySourceTransaction, SourceId: "tx-test",
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCredit_WithdrawableCannotExceedEarnings(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	createTestAccount(t, service, "user1")
	seed(t, service, "user1", models.FieldEarnings, "40")

	_, err := service.Credit(context.Background(), store.MutationParams{
		UserId: "user1", Field: models.FieldWithdrawableEarnings, Amount: decimal.NewFromInt(41),
		OperationId: "gate1", Source: models.EntrySourceTransaction, SourceId: "tx-test",
	})
	if !errors.Is(err, store.ErrInsufficientEarnings) {
		t.Fatalf("Expected ErrInsufficientEarnings, got %v", err)
	}
}

func TestDebitEarnings_ClampsWithdrawable(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "user1")
	seed(t, service, "user1", models.FieldEarnings, "100")
	seed(t, service, "user1", models.FieldWithdrawableEarnings, "80")

	if _, err := service.Debit(ctx, store.MutationParams{
		UserId: "user1", Field: models.FieldEarnings, Amount: decimal.NewFromInt(50),
		OperationId: "op1", Source: models.EntrySourceTransaction, SourceId: "tx-test",
	}); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	account := requireAccount(t, service, "user1")
	if !account.Earnings.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected earnings 50, got %s", account.Earnings.String())
	}
	if !account.WithdrawableEarnings.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected withdrawable clamped to 50, got %s", account.WithdrawableEarnings.String())
	}

	entries, err := service.GetLedgerEntries(ctx, "user1", 10, 0)
	if err != nil {
		t.Fatalf("GetLedgerEntries failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(entries))
	}
	if entries[0].OperationId != "op1"+gateSuffix || !entries[0].Amount.Equal(decimal.NewFromInt(-30)) {
		t.Errorf("Expected gate entry of -30 first, got %s %s", entries[0].OperationId, entries[0].Amount.String())
	}
	requireBalanced(t, service, "user1")
}

func TestGetLedgerEntries_Pagination(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	createTestAccount(t, service, "user1")
	for _, amount := range []string{"1", "2", "3", "4", "5"} {
		seed(t, service, "user1", models.FieldBalance, amount)
	}

	entries, err := service.GetLedgerEntries(context.Background(), "user1", 2, 1)
	if err != nil {
		t.Fatalf("GetLedgerEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Amount.Equal(decimal.NewFromInt(4)) || !entries[1].Amount.Equal(decimal.NewFromInt(3)) {
		t.Errorf("Expected amounts 4 and 3, got %s and %s", entries[0].Amount.String(), entries[1].Amount.String())
	}
}

func TestReconcileUser_DetectsMismatch(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	createTestAccount(t, service, "user1")
	seed(t, service, "user1", models.FieldBalance, "100")
	requireBalanced(t, service, "user1")

	// Simulate a silent mutation that bypassed the ledger
	if _, err := service.db.Exec("UPDATE accounts SET balance = '150' WHERE id = ?", "user1"); err != nil {
		t.Fatalf("Failed to tamper with balance: %v", err)
	}

	report, err := service.ReconcileUser(context.Background(), "user1")
	if err != nil {
		t.Fatalf("ReconcileUser failed: %v", err)
	}
	if report.Balanced {
		t.Fatal("Expected reconciliation to fail")
	}
	if !report.Calculated[models.FieldBalance].Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected calculated balance 100, got %s", report.Calculated[models.FieldBalance].String())
	}
}
