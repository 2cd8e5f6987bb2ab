package formance

import (
	"context"
	"errors"
	"testing"
	"time"

	"investment-ledger-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
)

type fakeClient struct {
	ledgers   []string
	createErr error
	posted    []shared.V2PostTransaction
	refs      map[string]bool
	failOn    string
}

func newFakeClient() *fakeClient {
	return &fakeClient{refs: make(map[string]bool)}
}

func (f *fakeClient) CreateLedger(_ context.Context, ledger string, _ map[string]string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.ledgers = append(f.ledgers, ledger)
	return nil
}

func (f *fakeClient) PostTransaction(_ context.Context, _ string, tx shared.V2PostTransaction) error {
	ref := *tx.Reference
	if ref == f.failOn {
		return errors.New("stack unavailable")
	}
	if f.refs[ref] {
		return &sdkerrors.V2ErrorResponse{ErrorCode: shared.V2ErrorsEnumConflict}
	}
	f.refs[ref] = true
	f.posted = append(f.posted, tx)
	return nil
}

func TestAssetPrecision(t *testing.T) {
	tests := []struct {
		asset   string
		want    int32
		wantErr bool
	}{
		{"USD/2", 2, false},
		{"USD/6", 6, false},
		{"USDC/0", 0, false},
		{"USD", 0, true},
		{"/2", 0, true},
		{"USD/x", 0, true},
		{"USD/-1", 0, true},
	}

	for _, tt := range tests {
		got, err := assetPrecision(tt.asset)
		if (err != nil) != tt.wantErr {
			t.Errorf("assetPrecision(%q) error = %v, wantErr %v", tt.asset, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("assetPrecision(%q) = %d, want %d", tt.asset, got, tt.want)
		}
	}
}

func TestNewServiceDefaults(t *testing.T) {
	svc, err := newService(newFakeClient(), "", "")
	if err != nil {
		t.Fatalf("newService failed: %v", err)
	}
	if svc.ledger != defaultLedgerName {
		t.Errorf("ledger = %q, want %q", svc.ledger, defaultLedgerName)
	}
	if svc.asset != "USD/6" || svc.precision != 6 {
		t.Errorf("asset = %q precision %d, want USD/6 precision 6", svc.asset, svc.precision)
	}
}

func TestEnsureLedger(t *testing.T) {
	client := newFakeClient()
	svc, _ := newService(client, "mirror", "USD/2")

	if err := svc.ensureLedger(context.Background()); err != nil {
		t.Fatalf("ensureLedger failed: %v", err)
	}
	if len(client.ledgers) != 1 || client.ledgers[0] != "mirror" {
		t.Errorf("ledgers = %v, want [mirror]", client.ledgers)
	}

	client.createErr = &sdkerrors.V2ErrorResponse{ErrorCode: shared.V2ErrorsEnumLedgerAlreadyExists}
	if err := svc.ensureLedger(context.Background()); err != nil {
		t.Errorf("existing ledger should not be an error, got %v", err)
	}

	client.createErr = errors.New("unauthorized")
	if err := svc.ensureLedger(context.Background()); err == nil {
		t.Error("expected error for failed ledger creation")
	}
}

func TestPostEntry(t *testing.T) {
	client := newFakeClient()
	svc, _ := newService(client, "mirror", "USD/2")
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	credit := models.LedgerEntry{
		Id: "e1", UserId: "u1", Field: models.FieldEarnings,
		Amount: decimal.RequireFromString("300"), Source: models.EntrySourceAccrual,
		SourceId: "inv1", OperationId: "accrual:inv1:1", CreatedAt: at,
	}
	posted, err := svc.PostEntry(ctx, credit)
	if err != nil || !posted {
		t.Fatalf("PostEntry credit = %v, %v", posted, err)
	}

	tx := client.posted[0]
	vars := tx.Script.Vars
	if vars["amount"] != "30000" {
		t.Errorf("amount = %s, want 30000", vars["amount"])
	}
	if vars["user_account"] != "users:u1:earnings" {
		t.Errorf("user_account = %s", vars["user_account"])
	}
	if vars["counterparty"] != "platform:accrual" {
		t.Errorf("counterparty = %s", vars["counterparty"])
	}
	if tx.Script.Plain != numscriptCredit {
		t.Error("positive entry should use the credit script")
	}
	if !tx.Timestamp.Equal(at) {
		t.Errorf("timestamp = %v, want %v", tx.Timestamp, at)
	}

	debit := credit
	debit.Id = "e2"
	debit.Amount = decimal.RequireFromString("-150.5")
	debit.Source = models.EntrySourceAdjustment
	if _, err := svc.PostEntry(ctx, debit); err != nil {
		t.Fatalf("PostEntry debit failed: %v", err)
	}
	if client.posted[1].Script.Plain != numscriptDebit {
		t.Error("negative entry should use the debit script")
	}
	if client.posted[1].Script.Vars["amount"] != "15050" {
		t.Errorf("debit amount = %s, want 15050", client.posted[1].Script.Vars["amount"])
	}

	posted, err = svc.PostEntry(ctx, credit)
	if err != nil {
		t.Fatalf("re-posting should not fail: %v", err)
	}
	if posted {
		t.Error("re-posted entry should report posted=false")
	}
}

func TestPostEntryRejectsExcessPrecision(t *testing.T) {
	svc, _ := newService(newFakeClient(), "mirror", "USD/2")
	entry := models.LedgerEntry{Id: "e1", UserId: "u1", Field: models.FieldBalance,
		Amount: decimal.RequireFromString("10.125"), Source: models.EntrySourceTransaction}

	_, err := svc.PostEntry(context.Background(), entry)
	if !errors.Is(err, errNotRepresentable) {
		t.Errorf("expected errNotRepresentable, got %v", err)
	}
}
