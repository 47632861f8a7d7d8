package http

import (
	"context"
	"errors"
	"html/template"
	"strconv"
	"time"

	"moneymanager/internal/core"
	"moneymanager/internal/form"
	applog "moneymanager/internal/log"
)

// page carries the layout fields every full page needs.
type page struct {
	Title  string
	Active string
	Error  string
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": formatMoney,
		"pct": func(p float64) string {
			return strconv.FormatFloat(p, 'f', 1, 64) + "%"
		},
		"when": func(ts core.Timestamp) string {
			if ts.IsZero() {
				return ""
			}
			return ts.In(s.loc).Format("Jan 02, 03:04 PM")
		},
		"types": func() []core.TransactionType {
			return []core.TransactionType{core.Income, core.Expense, core.Transfer}
		},
		"divisions":  core.Divisions,
		"categories": core.AllCategories,
	}
}

// formatMoney renders cents as "$1,234.50", sign before the symbol.
func formatMoney(m core.Money) string {
	if m.Cents < 0 {
		return "-$" + core.Money{Cents: -m.Cents}.String()
	}
	return "$" + m.String()
}

// loadAccounts lists accounts for a view. A failure is logged and reported
// as nil so forms render in their "accounts not loaded" state.
func (s *Server) loadAccounts(ctx context.Context) []core.Account {
	list, err := s.accounts.List(ctx)
	if err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Accounts unavailable", applog.FieldError, err)
		return nil
	}
	if list == nil {
		list = []core.Account{}
	}
	return list
}

// ensureAccounts delivers the account list to a form opened before it was
// available.
func (s *Server) ensureAccounts(ctx context.Context, c *form.Controller) {
	if c.View().Loaded {
		return
	}
	if list := s.loadAccounts(ctx); list != nil {
		c.SetAccounts(list)
	}
}

// backendMessage is what a page shows when a backend read failed.
func backendMessage(err error) string {
	var reqErr *core.RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		return reqErr.Message
	}
	if errors.Is(err, core.ErrUnavailable) {
		return "The server is unreachable, please try again shortly"
	}
	return "Could not load data"
}

func (s *Server) now() time.Time {
	return s.clock.Now()
}
