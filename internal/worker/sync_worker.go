// Package worker mirrors journal entries into the ledger sheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"moneymanager/internal/amqp"
	applog "moneymanager/internal/log"
	"moneymanager/internal/sheets"
	"moneymanager/internal/storage"
)

const (
	DefaultBatchSize    = 20
	DefaultSyncInterval = time.Minute

	// StaleClaimAge is how long an entry may stay claimed before the sweep
	// hands it back.
	StaleClaimAge = 5 * time.Minute
)

var ErrAlreadyRunning = errors.New("sync worker is already running")

// errNotClaimed means another path is syncing the entry, or already did.
var errNotClaimed = errors.New("journal entry not claimed")

// EntryStore is the journal as seen by the worker.
type EntryStore interface {
	Get(ctx context.Context, id int64) (storage.JournalEntry, error)
	PendingSync(ctx context.Context, limit int) ([]storage.JournalEntry, error)
	ClaimForSync(ctx context.Context, id int64) (bool, error)
	ReleaseStaleClaims(ctx context.Context, age time.Duration) (int64, error)
	MarkSynced(ctx context.Context, id int64, ref string) error
	MarkSyncError(ctx context.Context, id int64, cause error) error
}

// SyncWorker appends journal entries to the ledger, either on message or
// from the periodic sweep that recovers lost messages.
type SyncWorker struct {
	store     EntryStore
	ledger    sheets.LedgerWriter
	batchSize int
	logger    *applog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncWorker(store EntryStore, ledger sheets.LedgerWriter, batchSize int, logger *applog.Logger) *SyncWorker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = applog.Default(applog.ComponentWorker)
	}
	return &SyncWorker{
		store:     store,
		ledger:    ledger,
		batchSize: batchSize,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleMessage syncs the entry named by a journal message. Entries that are
// already synced are acknowledged without writing a second row.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.JournalSyncMessage) error {
	w.logger.InfoContext(ctx, "Processing journal sync message",
		applog.FieldJournalID, msg.ID,
		applog.FieldOperation, msg.Op)

	entry, err := w.store.Get(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get journal entry: %w", err)
	}
	if entry.SyncStatus == storage.StatusSynced {
		w.logger.DebugContext(ctx, "Entry already synced",
			applog.FieldJournalID, entry.ID,
			applog.FieldSheetsRef, entry.SyncedRef)
		return nil
	}
	if err := w.syncEntry(ctx, entry); err != nil && !errors.Is(err, errNotClaimed) {
		return err
	}
	return nil
}

// ProcessPending syncs one batch of pending or retryable entries.
func (w *SyncWorker) ProcessPending(ctx context.Context) (synced, failed int, err error) {
	return w.processBatch(ctx, w.batchSize)
}

// StartupSyncCheck drains a larger batch once, before consuming.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.processBatch(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	if synced+failed == 0 {
		w.logger.InfoContext(ctx, "No pending journal entries on startup")
		return nil
	}
	w.logger.InfoContext(ctx, "Startup sync completed", "synced", synced, "errors", failed)
	return nil
}

func (w *SyncWorker) processBatch(ctx context.Context, limit int) (synced, failed int, err error) {
	if _, err := w.store.ReleaseStaleClaims(ctx, StaleClaimAge); err != nil {
		w.logger.WarnContext(ctx, "Failed to release stale claims", applog.FieldError, err)
	}
	entries, err := w.store.PendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending entries: %w", err)
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		err := w.syncEntry(ctx, entry)
		switch {
		case errors.Is(err, errNotClaimed):
			// picked up by the message consumer
		case err != nil:
			failed++
		default:
			synced++
		}
	}
	return synced, failed, nil
}

func (w *SyncWorker) syncEntry(ctx context.Context, entry storage.JournalEntry) error {
	claimed, err := w.store.ClaimForSync(ctx, entry.ID)
	if err != nil {
		return err
	}
	if !claimed {
		w.logger.DebugContext(ctx, "Entry claimed elsewhere", applog.FieldJournalID, entry.ID)
		return errNotClaimed
	}

	ref, err := w.ledger.AppendRow(ctx, sheets.LedgerRow{
		JournalID:   entry.ID,
		Op:          entry.Op,
		Transaction: entry.Transaction,
	})
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to append ledger row",
			applog.FieldJournalID, entry.ID,
			applog.FieldError, err)
		if markErr := w.store.MarkSyncError(ctx, entry.ID, err); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error",
				applog.FieldJournalID, entry.ID, applog.FieldError, markErr)
		}
		return fmt.Errorf("append ledger row: %w", err)
	}

	// the row is written; a failed mark only means a possible duplicate later
	if err := w.store.MarkSynced(ctx, entry.ID, ref); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark entry synced",
			applog.FieldJournalID, entry.ID, applog.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Journal entry synced",
		applog.FieldJournalID, entry.ID,
		applog.FieldTxID, entry.Transaction.ID,
		applog.FieldSheetsRef, ref)
	return nil
}

// Start runs the sweep every interval until Stop or ctx is done.
func (w *SyncWorker) Start(ctx context.Context, interval time.Duration) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				synced, failed, err := w.ProcessPending(ctx)
				if err != nil {
					w.logger.ErrorContext(ctx, "Periodic sync failed", applog.FieldError, err)
					continue
				}
				if synced+failed > 0 {
					w.logger.InfoContext(ctx, "Periodic sync", "synced", synced, "errors", failed)
				}
			}
		}
	}()

	w.logger.Info("Sync sweep started", "interval", interval, "batch_size", w.batchSize)
	return nil
}

// Stop ends the sweep and waits for the current batch.
func (w *SyncWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	doneCh := w.doneCh
	w.mu.Unlock()
	<-doneCh
}
