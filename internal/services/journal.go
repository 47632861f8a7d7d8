package services

import (
	"context"
	"fmt"

	"moneymanager/internal/core"
	"moneymanager/internal/form"
	applog "moneymanager/internal/log"
	"moneymanager/internal/storage"
)

// JournalStore persists journal entries.
type JournalStore interface {
	Record(ctx context.Context, op string, tx core.Transaction) (int64, error)
}

// SyncPublisher announces new entries to the ledger worker.
type SyncPublisher interface {
	PublishJournalSync(ctx context.Context, id int64, op string) error
}

// Journal records every saved transaction locally and hands it to the ledger
// worker. The backend call has already succeeded by the time Record runs, so
// failures here are logged and returned but never undo the save.
type Journal struct {
	store     JournalStore
	publisher SyncPublisher
	logger    *applog.Logger
}

// NewJournal wires the journal. A nil publisher leaves entries for the
// worker's periodic sweep.
func NewJournal(store JournalStore, publisher SyncPublisher, logger *applog.Logger) *Journal {
	if logger == nil {
		logger = applog.Default(applog.ComponentJournal)
	}
	return &Journal{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(applog.ComponentJournal),
	}
}

// Record saves the entry and publishes a sync message for it.
func (j *Journal) Record(ctx context.Context, op string, tx core.Transaction) (int64, error) {
	id, err := j.store.Record(ctx, op, tx)
	if err != nil {
		return 0, fmt.Errorf("record journal entry: %w", err)
	}

	if j.publisher == nil {
		j.logger.DebugContext(ctx, "No AMQP publisher, entry left for sweep", applog.FieldJournalID, id)
		return id, nil
	}
	if err := j.publisher.PublishJournalSync(ctx, id, op); err != nil {
		// the sweep picks it up later
		j.logger.ErrorContext(ctx, "Failed to publish journal sync message",
			applog.FieldJournalID, id, applog.FieldError, err)
	}
	return id, nil
}

// OnSaved adapts the journal to a form hook.
func (j *Journal) OnSaved() form.SavedHook {
	return func(ctx context.Context, tx core.Transaction, mode form.Mode) {
		op := storage.OpCreate
		if mode == form.ModeEdit {
			op = storage.OpUpdate
		}
		if _, err := j.Record(context.WithoutCancel(ctx), op, tx); err != nil {
			j.logger.ErrorContext(ctx, "Journal entry not recorded",
				applog.FieldTxID, tx.ID, applog.FieldError, err)
		}
	}
}
