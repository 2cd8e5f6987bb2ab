package formance

import (
	"context"
	"fmt"
	"sync"

	"investment-ledger-go/internal/models"

	"go.uber.org/zap"
)

const exportPageSize = 200

// EntrySource provides the local ledger entries to export
type EntrySource interface {
	ListAccounts(ctx context.Context) ([]models.UserAccount, error)
	GetLedgerEntries(ctx context.Context, userId string, limit, offset int) ([]models.LedgerEntry, error)
}

// entryPoster posts a single entry; satisfied by *Service
type entryPoster interface {
	PostEntry(ctx context.Context, entry models.LedgerEntry) (bool, error)
}

// ExportStats summarizes one export pass
type ExportStats struct {
	Users    int
	Posted   int
	Existing int
	Failed   int
}

// Exporter copies new local ledger entries to the mirror, oldest first, one
// user at a time. It remembers the newest exported entry per user; after a
// restart everything is re-posted and the mirror reports it as existing.
type Exporter struct {
	mirror entryPoster
	source EntrySource

	mu       sync.Mutex
	exported map[string]string
}

func NewExporter(mirror *Service, source EntrySource) *Exporter {
	return newExporter(mirror, source)
}

func newExporter(mirror entryPoster, source EntrySource) *Exporter {
	return &Exporter{
		mirror:   mirror,
		source:   source,
		exported: make(map[string]string),
	}
}

// Sync runs one export pass over every account. A failing user does not stop
// the others; its remaining entries are retried on the next pass.
func (e *Exporter) Sync(ctx context.Context) (ExportStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var stats ExportStats
	accounts, err := e.source.ListAccounts(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list accounts: %w", err)
	}

	for _, account := range accounts {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Users++
		posted, existing, err := e.syncUser(ctx, account.Id)
		stats.Posted += posted
		stats.Existing += existing
		if err != nil {
			stats.Failed++
			zap.L().Error("Mirror export failed for user",
				zap.String("user_id", account.Id),
				zap.Error(err))
		}
	}

	zap.L().Info("Mirror export pass complete",
		zap.Int("users", stats.Users),
		zap.Int("posted", stats.Posted),
		zap.Int("existing", stats.Existing),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

func (e *Exporter) syncUser(ctx context.Context, userId string) (int, int, error) {
	pending, err := e.pendingEntries(ctx, userId)
	if err != nil {
		return 0, 0, err
	}

	var posted, existing int
	for i := len(pending) - 1; i >= 0; i-- {
		entry := pending[i]
		ok, err := e.mirror.PostEntry(ctx, entry)
		if err != nil {
			return posted, existing, err
		}
		if ok {
			posted++
		} else {
			existing++
		}
		e.exported[userId] = entry.Id
	}
	return posted, existing, nil
}

// pendingEntries returns the entries newer than the user's high-water mark, newest first
func (e *Exporter) pendingEntries(ctx context.Context, userId string) ([]models.LedgerEntry, error) {
	mark := e.exported[userId]
	seen := make(map[string]bool)
	var pending []models.LedgerEntry

	for offset := 0; ; offset += exportPageSize {
		page, err := e.source.GetLedgerEntries(ctx, userId, exportPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger entries: %w", err)
		}
		for _, entry := range page {
			if entry.Id == mark {
				return pending, nil
			}
			if seen[entry.Id] {
				continue
			}
			seen[entry.Id] = true
			pending = append(pending, entry)
		}
		if len(page) < exportPageSize {
			return pending, nil
		}
	}
}
