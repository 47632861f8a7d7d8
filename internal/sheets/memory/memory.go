// Package memory is an in-process ledger mirror for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "moneymanager/internal/sheets"
)

var _ ports.LedgerWriter = (*Store)(nil)
var _ ports.LedgerReader = (*Store)(nil)

// Store keeps ledger rows per sheet name.
type Store struct {
	mu     sync.Mutex
	base   string
	sheets map[string][]ports.LedgerRow
	// FailNext makes the next n appends fail, to exercise retry paths.
	failNext int
}

func New(base string) *Store {
	return &Store{base: base, sheets: make(map[string][]ports.LedgerRow)}
}

// FailNext makes the next n appends return an error.
func (s *Store) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// AppendRow stores the row and returns a synthetic range reference.
func (s *Store) AppendRow(_ context.Context, row ports.LedgerRow) (string, error) {
	if row.Transaction.Timestamp.IsZero() {
		return "", errors.New("missing timestamp")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return "", errors.New("memory ledger: simulated failure")
	}
	sheet := ports.SheetName(s.base, row.Transaction.Timestamp.UTC().Year())
	s.sheets[sheet] = append(s.sheets[sheet], row)
	// row 1 is the header
	n := len(s.sheets[sheet]) + 1
	return fmt.Sprintf("mem:%s!A%d:K%d", sheet, n, n), nil
}

func (s *Store) ReadRows(_ context.Context, year int) ([]ports.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.LedgerRow(nil), s.sheets[ports.SheetName(s.base, year)]...), nil
}
