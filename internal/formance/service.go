package formance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"investment-ledger-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

const defaultLedgerName = "investment-ledger"

// Numscript templates. Every local ledger entry becomes one Formance
// transaction between the user's field account and a platform account named
// after the entry source.
const numscriptCredit = `vars {
  asset $asset
  number $amount
  account $user_account
  account $counterparty
  string $operation_id
  string $source_id
  string $field
}

send [$asset $amount] (
  source = $counterparty allowing unbounded overdraft
  destination = $user_account
)

set_tx_meta("event_type", "credit")
set_tx_meta("operation_id", $operation_id)
set_tx_meta("source_id", $source_id)
set_tx_meta("field", $field)
`

const numscriptDebit = `vars {
  asset $asset
  number $amount
  account $user_account
  account $counterparty
  string $operation_id
  string $source_id
  string $field
}

send [$asset $amount] (
  source = $user_account
  destination = $counterparty
)

set_tx_meta("event_type", "debit")
set_tx_meta("operation_id", $operation_id)
set_tx_meta("source_id", $source_id)
set_tx_meta("field", $field)
`

var errNotRepresentable = errors.New("amount not representable in mirror asset precision")

// ledgerClient is the slice of the Formance SDK the mirror uses
type ledgerClient interface {
	CreateLedger(ctx context.Context, ledger string, metadata map[string]string) error
	PostTransaction(ctx context.Context, ledger string, tx shared.V2PostTransaction) error
}

type sdkClient struct {
	client *v3.Formance
}

func (c sdkClient) CreateLedger(ctx context.Context, ledger string, metadata map[string]string) error {
	_, err := c.client.Ledger.V2.CreateLedger(ctx, operations.V2CreateLedgerRequest{
		Ledger: ledger,
		V2CreateLedgerRequest: shared.V2CreateLedgerRequest{
			Metadata: metadata,
		},
	})
	return err
}

func (c sdkClient) PostTransaction(ctx context.Context, ledger string, tx shared.V2PostTransaction) error {
	_, err := c.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            ledger,
		V2PostTransaction: tx,
	})
	return err
}

// Service mirrors local ledger entries into a Formance Stack ledger. The local
// store stays the source of truth; the mirror is an append-only copy for
// external audit.
type Service struct {
	client    ledgerClient
	ledger    string
	asset     string
	precision int32
}

// NewService connects to the stack and creates the mirror ledger if it does
// not already exist.
func NewService(ctx context.Context, cfg models.FormanceConfig) (*Service, error) {
	if cfg.StackURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("formance config requires StackURL, ClientID, and ClientSecret")
	}

	zap.L().Info("Connecting to Formance Stack",
		zap.String("stack_url", cfg.StackURL),
		zap.String("ledger", cfg.LedgerName))

	client := v3.New(
		v3.WithServerURL(cfg.StackURL),
		v3.WithSecurity(shared.Security{
			ClientID:     v3.Pointer(cfg.ClientID),
			ClientSecret: v3.Pointer(cfg.ClientSecret),
		}),
	)

	svc, err := newService(sdkClient{client: client}, cfg.LedgerName, cfg.Asset)
	if err != nil {
		return nil, err
	}
	if err := svc.ensureLedger(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger exists: %w", err)
	}

	zap.L().Info("Formance mirror initialized", zap.String("ledger", svc.ledger), zap.String("asset", svc.asset))
	return svc, nil
}

func newService(client ledgerClient, ledger, asset string) (*Service, error) {
	if ledger == "" {
		ledger = defaultLedgerName
	}
	if asset == "" {
		asset = "USD/6"
	}
	precision, err := assetPrecision(asset)
	if err != nil {
		return nil, err
	}
	return &Service{client: client, ledger: ledger, asset: asset, precision: precision}, nil
}

// ensureLedger creates the ledger if it does not already exist.
func (s *Service) ensureLedger(ctx context.Context) error {
	err := s.client.CreateLedger(ctx, s.ledger, map[string]string{"application": "investment-ledger"})
	if err != nil {
		var apiErr *sdkerrors.V2ErrorResponse
		if errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumLedgerAlreadyExists {
			zap.L().Info("Ledger already exists", zap.String("ledger", s.ledger))
			return nil
		}
		return err
	}
	zap.L().Info("Ledger created", zap.String("ledger", s.ledger))
	return nil
}

// PostEntry writes one ledger entry to the mirror. The entry id is the
// Formance reference, so re-posting an exported entry reports posted=false.
func (s *Service) PostEntry(ctx context.Context, entry models.LedgerEntry) (bool, error) {
	amount, err := s.smallestUnits(entry)
	if err != nil {
		return false, err
	}

	script := numscriptCredit
	if entry.Amount.IsNegative() {
		script = numscriptDebit
	}

	createdAt := entry.CreatedAt
	tx := shared.V2PostTransaction{
		Reference: v3.Pointer(entry.Id),
		Timestamp: &createdAt,
		Script: &shared.V2PostTransactionScript{
			Plain: script,
			Vars: map[string]string{
				"asset":        s.asset,
				"amount":       amount,
				"user_account": userAccount(entry.UserId, entry.Field),
				"counterparty": platformAccount(entry.Source),
				"operation_id": entry.OperationId,
				"source_id":    entry.SourceId,
				"field":        string(entry.Field),
			},
		},
	}

	if err := s.client.PostTransaction(ctx, s.ledger, tx); err != nil {
		if isConflictError(err) {
			return false, nil
		}
		return false, fmt.Errorf("error mirroring entry %s: %w", entry.Id, err)
	}
	return true, nil
}

func (s *Service) smallestUnits(entry models.LedgerEntry) (string, error) {
	shifted := entry.Amount.Abs().Shift(s.precision)
	if !shifted.Equal(shifted.Truncate(0)) {
		return "", fmt.Errorf("%w: %s as %s", errNotRepresentable, entry.Amount.String(), s.asset)
	}
	return shifted.BigInt().String(), nil
}

func userAccount(userId string, field models.LedgerField) string {
	return fmt.Sprintf("users:%s:%s", userId, field)
}

func platformAccount(source models.EntrySource) string {
	return "platform:" + string(source)
}

// assetPrecision parses the precision from UMN notation, e.g. "USD/2" -> 2
func assetPrecision(asset string) (int32, error) {
	i := strings.LastIndex(asset, "/")
	if i <= 0 {
		return 0, fmt.Errorf("asset %q must use SYMBOL/precision notation", asset)
	}
	p, err := strconv.Atoi(asset[i+1:])
	if err != nil || p < 0 || p > 18 {
		return 0, fmt.Errorf("asset %q has an invalid precision", asset)
	}
	return int32(p), nil
}

// isConflictError checks whether a Formance SDK error is a CONFLICT (duplicate reference).
func isConflictError(err error) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	return errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumConflict
}
