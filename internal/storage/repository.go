package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"moneymanager/internal/core"
	applog "moneymanager/internal/log"

	_ "modernc.org/sqlite"
)

// Journal operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
)

// Sync states.
const (
	StatusPending = "pending"
	StatusSyncing = "syncing"
	StatusSynced  = "synced"
	StatusError   = "error"
)

// MaxSyncAttempts bounds how often the sweep retries a failing entry.
const MaxSyncAttempts = 5

var ErrEntryNotFound = errors.New("journal entry not found")

// JournalEntry is one saved transaction as recorded locally.
type JournalEntry struct {
	ID           int64
	Op           string
	Transaction  core.Transaction
	RecordedAt   time.Time
	SyncStatus   string
	SyncAttempts int
	SyncError    string
	SyncedRef    string
}

// JournalStats counts entries by sync status. Pending includes entries a
// worker is syncing right now.
type JournalStats struct {
	Pending int
	Synced  int
	Errored int
}

type SQLiteRepository struct {
	db     *sql.DB
	logger *applog.Logger
	now    func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: applog.Default(applog.ComponentStorage),
		now:    time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Record inserts a pending entry and returns its id.
func (r *SQLiteRepository) Record(ctx context.Context, op string, tx core.Transaction) (int64, error) {
	if op != OpCreate && op != OpUpdate {
		return 0, fmt.Errorf("record journal entry: unknown op %q", op)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO journal_entries (
			op, transaction_id, type, amount_cents, category, division, description,
			from_account_id, to_account_id, occurred_at, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op, tx.ID, string(tx.Type), tx.Amount.Cents,
		nullString(tx.Category), nullString(string(tx.Division)), tx.Description,
		tx.FromAccountID, nullString(tx.ToAccountID),
		formatTime(tx.Timestamp.Time), formatTime(r.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("insert journal entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("journal entry id: %w", err)
	}

	r.logger.InfoContext(ctx, "Journal entry recorded",
		applog.FieldJournalID, id,
		applog.FieldTxID, tx.ID,
		applog.FieldTxType, string(tx.Type),
		applog.FieldAmountCents, tx.Amount.Cents,
		"op", op)
	return id, nil
}

const entryColumns = `id, op, transaction_id, type, amount_cents, category, division, description,
	from_account_id, to_account_id, occurred_at, recorded_at, sync_status, sync_attempts,
	sync_error, synced_ref`

// Get loads one entry.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (JournalEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return JournalEntry{}, fmt.Errorf("%w: %d", ErrEntryNotFound, id)
	}
	if err != nil {
		return JournalEntry{}, fmt.Errorf("get journal entry %d: %w", id, err)
	}
	return e, nil
}

// PendingSync returns entries still to be mirrored, oldest first. Errored
// entries are retried until MaxSyncAttempts.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM journal_entries
		WHERE sync_status = ? OR (sync_status = ? AND sync_attempts < ?)
		ORDER BY id LIMIT ?`,
		StatusPending, StatusError, MaxSyncAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending journal entries: %w", err)
	}
	return collect(rows)
}

// Recent returns the newest entries first.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM journal_entries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent journal entries: %w", err)
	}
	return collect(rows)
}

// ClaimForSync moves a pending or errored entry to syncing. It reports false
// when another caller already holds the entry or it is synced, in which case
// the caller must not append it.
func (r *SQLiteRepository) ClaimForSync(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE journal_entries
		SET sync_status = ?, claimed_at = ?
		WHERE id = ? AND sync_status IN (?, ?)`,
		StatusSyncing, formatClaimTime(r.now()), id, StatusPending, StatusError)
	if err != nil {
		return false, fmt.Errorf("claim journal entry %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim journal entry %d: %w", id, err)
	}
	return n == 1, nil
}

// ReleaseStaleClaims returns entries stuck in syncing for longer than age to
// pending, e.g. after a worker died between claim and mark.
func (r *SQLiteRepository) ReleaseStaleClaims(ctx context.Context, age time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE journal_entries
		SET sync_status = ?, claimed_at = NULL
		WHERE sync_status = ? AND (claimed_at IS NULL OR claimed_at <= ?)`,
		StatusPending, StatusSyncing, formatClaimTime(r.now().Add(-age)))
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	if n > 0 {
		r.logger.WarnContext(ctx, "Released stale journal claims", "count", n)
	}
	return n, nil
}

// MarkSynced records a successful mirror with the sheet range it landed in.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64, ref string) error {
	if err := r.update(ctx, `UPDATE journal_entries
		SET sync_status = ?, synced_ref = ?, sync_error = NULL, claimed_at = NULL,
			sync_attempts = sync_attempts + 1
		WHERE id = ?`, StatusSynced, ref, id); err != nil {
		return fmt.Errorf("mark journal entry synced: %w", err)
	}
	r.logger.InfoContext(ctx, "Journal entry marked as synced", applog.FieldJournalID, id, applog.FieldSheetsRef, ref)
	return nil
}

// MarkSyncError records a failed attempt.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := r.update(ctx, `UPDATE journal_entries
		SET sync_status = ?, sync_error = ?, claimed_at = NULL, sync_attempts = sync_attempts + 1
		WHERE id = ?`, StatusError, msg, id); err != nil {
		return fmt.Errorf("mark journal entry sync error: %w", err)
	}
	r.logger.WarnContext(ctx, "Journal entry marked with sync error", applog.FieldJournalID, id, applog.FieldError, msg)
	return nil
}

// Stats counts entries per sync status.
func (r *SQLiteRepository) Stats(ctx context.Context) (JournalStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT sync_status, COUNT(*) FROM journal_entries GROUP BY sync_status`)
	if err != nil {
		return JournalStats{}, fmt.Errorf("query journal stats: %w", err)
	}
	defer rows.Close()

	var s JournalStats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return JournalStats{}, fmt.Errorf("scan journal stats: %w", err)
		}
		switch status {
		case StatusPending, StatusSyncing:
			s.Pending += n
		case StatusSynced:
			s.Synced = n
		case StatusError:
			s.Errored = n
		}
	}
	return s, rows.Err()
}

func (r *SQLiteRepository) update(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (JournalEntry, error) {
	var (
		e                  JournalEntry
		txType             string
		category, division sql.NullString
		to, syncErr, ref   sql.NullString
		occurred, recorded string
	)
	err := s.Scan(&e.ID, &e.Op, &e.Transaction.ID, &txType, &e.Transaction.Amount.Cents,
		&category, &division, &e.Transaction.Description, &e.Transaction.FromAccountID, &to,
		&occurred, &recorded, &e.SyncStatus, &e.SyncAttempts, &syncErr, &ref)
	if err != nil {
		return JournalEntry{}, err
	}
	e.Transaction.Type = core.TransactionType(txType)
	e.Transaction.Category = category.String
	e.Transaction.Division = core.Division(division.String)
	e.Transaction.ToAccountID = to.String
	e.SyncError = syncErr.String
	e.SyncedRef = ref.String

	occurredAt, err := time.Parse(time.RFC3339Nano, occurred)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("parse occurred_at: %w", err)
	}
	e.Transaction.Timestamp = core.NewTimestamp(occurredAt)
	if e.RecordedAt, err = time.Parse(time.RFC3339Nano, recorded); err != nil {
		return JournalEntry{}, fmt.Errorf("parse recorded_at: %w", err)
	}
	return e, nil
}

func collect(rows *sql.Rows) ([]JournalEntry, error) {
	defer rows.Close()
	var out []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// claimed_at is compared as text, so it needs a fixed width.
const claimTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatClaimTime(t time.Time) string {
	return t.UTC().Format(claimTimeLayout)
}
