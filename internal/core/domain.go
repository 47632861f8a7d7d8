package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income   TransactionType = "INCOME"
	Expense  TransactionType = "EXPENSE"
	Transfer TransactionType = "TRANSFER"
)

const (
	Personal Division = "PERSONAL"
	Office   Division = "OFFICE"
)

const (
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
	Yearly  Granularity = "yearly"
)

type (
	TransactionType string

	Division string

	// Granularity selects the bucket size of a chart series.
	Granularity string

	Transaction struct {
		ID            string          `json:"id"`
		Type          TransactionType `json:"type"`
		Amount        Money           `json:"amount"`
		Category      string          `json:"category,omitempty"`
		Description   string          `json:"description,omitempty"`
		Division      Division        `json:"division,omitempty"`
		FromAccountID string          `json:"fromAccountId"`
		ToAccountID   string          `json:"toAccountId,omitempty"`
		Timestamp     Timestamp       `json:"timestamp"`
	}

	Account struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Balance Money  `json:"balance"`
	}

	// NewAccount is the creation body for an account. Balance is always zero
	// when created from the UI.
	NewAccount struct {
		Name    string `json:"name"`
		Balance Money  `json:"balance"`
	}

	Summary struct {
		TotalIncome       Money            `json:"totalIncome"`
		TotalExpense      Money            `json:"totalExpense"`
		Balance           Money            `json:"balance"`
		ExpenseCategories map[string]Money `json:"expenseCategories"`
		IncomeCategories  map[string]Money `json:"incomeCategories"`
	}

	ChartPoint struct {
		Date    string `json:"date"`
		Income  Money  `json:"income"`
		Expense Money  `json:"expense"`
	}

	// TransactionFilter narrows a ledger listing. Zero values mean "no filter".
	TransactionFilter struct {
		Division Division
		Category string
		Start    time.Time // date part only
		End      time.Time // date part only
	}
)

var (
	expenseCategories = []string{"Fuel", "Movie", "Food", "Loan", "Medical", "Shopping", "Travel", "Other"}
	incomeCategories  = []string{"Salary", "Business", "Freelance", "Investment", "Rental", "Other"}
	divisions         = []Division{Personal, Office}
)

var (
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidDivision    = errors.New("invalid division")
	ErrInvalidGranularity = errors.New("invalid chart granularity")
)

// ParseTransactionType accepts any letter case.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

// Label is the human form used on tabs and headings.
func (t TransactionType) Label() string {
	switch t {
	case Income:
		return "Income"
	case Expense:
		return "Expense"
	case Transfer:
		return "Transfer"
	}
	return string(t)
}

// Categories returns the fixed category set for the type; nil for transfers.
func (t TransactionType) Categories() []string {
	switch t {
	case Income:
		return append([]string(nil), incomeCategories...)
	case Expense:
		return append([]string(nil), expenseCategories...)
	}
	return nil
}

// HasCategory reports whether c belongs to the type's category set.
func (t TransactionType) HasCategory(c string) bool {
	for _, v := range t.Categories() {
		if v == c {
			return true
		}
	}
	return false
}

// AllCategories is the union of income and expense categories, in ledger
// filter order.
func AllCategories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range append(append([]string(nil), incomeCategories...), expenseCategories...) {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func ParseDivision(s string) (Division, error) {
	d := Division(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", ErrInvalidDivision
	}
	return d, nil
}

func (d Division) Valid() bool {
	return d == Personal || d == Office
}

func Divisions() []Division {
	return append([]Division(nil), divisions...)
}

// ParseGranularity defaults to monthly for an empty string.
func ParseGranularity(s string) (Granularity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Monthly, nil
	}
	g := Granularity(s)
	switch g {
	case Weekly, Monthly, Yearly:
		return g, nil
	}
	return "", ErrInvalidGranularity
}

// Signed returns the amount as it affects the ledger: negative for expenses.
func (t Transaction) Signed() Money {
	if t.Type == Expense {
		return Money{Cents: -t.Amount.Cents}
	}
	return t.Amount
}
