// Package sheets defines the ledger mirror: every saved transaction is
// appended as one row to a per-year ledger sheet.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"moneymanager/internal/core"
)

// DefaultSheetBase is used when no sheet name is configured.
const DefaultSheetBase = "Ledger"

// Header is the first row of every ledger sheet.
var Header = []string{"Date", "Type", "Amount", "Category", "Division", "Description", "From", "To", "Op", "Journal ID", "Transaction ID"}

// LedgerRow is one mirrored transaction.
type LedgerRow struct {
	JournalID   int64
	Op          string
	Transaction core.Transaction
}

// Ports for outbound adapters.
type (
	LedgerWriter interface {
		// AppendRow writes the row and returns the range it landed in.
		AppendRow(ctx context.Context, row LedgerRow) (ref string, err error)
	}

	LedgerReader interface {
		// ReadRows returns the rows of the given year's sheet.
		ReadRows(ctx context.Context, year int) ([]LedgerRow, error)
	}
)

// SheetName returns "<year> <base>" unless base already starts with a year.
func SheetName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultSheetBase
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

// Values renders the row as sheet cells. Expenses are written negative.
func (r LedgerRow) Values() []any {
	tx := r.Transaction
	return []any{
		tx.Timestamp.UTC().Format("2006-01-02 15:04"),
		string(tx.Type),
		tx.Signed().Decimal(),
		tx.Category,
		string(tx.Division),
		tx.Description,
		tx.FromAccountID,
		tx.ToAccountID,
		r.Op,
		strconv.FormatInt(r.JournalID, 10),
		tx.ID,
	}
}

// ParseRow is the inverse of Values. Short rows are padded.
func ParseRow(cells []string) (LedgerRow, error) {
	for len(cells) < len(Header) {
		cells = append(cells, "")
	}
	at, err := time.ParseInLocation("2006-01-02 15:04", strings.TrimSpace(cells[0]), time.UTC)
	if err != nil {
		return LedgerRow{}, fmt.Errorf("parse date %q: %w", cells[0], err)
	}
	typ, err := core.ParseTransactionType(cells[1])
	if err != nil {
		return LedgerRow{}, fmt.Errorf("parse type %q: %w", cells[1], err)
	}
	cents, err := core.ParseSignedCents(cells[2])
	if err != nil {
		return LedgerRow{}, fmt.Errorf("parse amount %q: %w", cells[2], err)
	}
	if cents < 0 {
		cents = -cents
	}
	var journalID int64
	if s := strings.TrimSpace(cells[9]); s != "" {
		if journalID, err = strconv.ParseInt(s, 10, 64); err != nil {
			return LedgerRow{}, fmt.Errorf("parse journal id %q: %w", s, err)
		}
	}
	return LedgerRow{
		JournalID: journalID,
		Op:        strings.TrimSpace(cells[8]),
		Transaction: core.Transaction{
			ID:            strings.TrimSpace(cells[10]),
			Type:          typ,
			Amount:        core.Money{Cents: cents},
			Category:      strings.TrimSpace(cells[3]),
			Division:      core.Division(strings.TrimSpace(cells[4])),
			Description:   cells[5],
			FromAccountID: strings.TrimSpace(cells[6]),
			ToAccountID:   strings.TrimSpace(cells[7]),
			Timestamp:     core.NewTimestamp(at),
		},
	}, nil
}
