package http

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"moneymanager/internal/accounts"
	"moneymanager/internal/core"
	applog "moneymanager/internal/log"
)

// Names shown for transfer endpoints that match no known account.
const (
	unknownSourceName      = "External"
	unknownDestinationName = "Wallet"
)

type transferRow struct {
	Tx   core.Transaction
	From string
	To   string
}

type accountForm struct {
	Name  string
	Error string
}

type accountsPage struct {
	page
	Accounts  []core.Account
	Total     core.Money
	Transfers []transferRow
	Form      accountForm
}

// handleAccounts renders the account cards and the transfer history.
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	data := accountsPage{page: page{Title: "Accounts", Active: "accounts"}}
	if err := s.loadAccountsPage(r.Context(), &data); err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentAccounts).ErrorContext(r.Context(),
			"Accounts page load failed", applog.FieldError, err)
		data.Error = backendMessage(err)
		s.render(w, r, http.StatusBadGateway, "accounts.html", data)
		return
	}
	s.render(w, r, http.StatusOK, "accounts.html", data)
}

func (s *Server) loadAccountsPage(ctx context.Context, data *accountsPage) error {
	var (
		list []core.Account
		txs  []core.Transaction
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		list, err = s.accounts.List(gctx)
		return err
	})
	eg.Go(func() error {
		var err error
		txs, err = s.backend.ListTransactions(gctx, core.TransactionFilter{})
		return err
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	data.Accounts = list
	data.Total = accounts.TotalBalance(list)
	for _, tx := range txs {
		if tx.Type != core.Transfer {
			continue
		}
		data.Transfers = append(data.Transfers, transferRow{
			Tx:   tx,
			From: accounts.Resolve(list, tx.FromAccountID, unknownSourceName),
			To:   accounts.Resolve(list, tx.ToAccountID, unknownDestinationName),
		})
	}
	return nil
}

// handleCreateAccount validates and creates an account, answering with a
// fresh creation form. Validation problems re-render the form.
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Malformed form data").Write(w)
		return
	}
	name := p.Get("name")

	acc, err := s.accounts.Create(ctx, name)
	var verr *core.ValidationError
	switch {
	case err == nil:
		s.metrics.accountsCreated.Add(1)
		resp := NewHTMXResponse().
			TriggerAccountCreated(acc.ID).
			TriggerSuccessNotification("Account created")
		s.renderTo(w, r, resp, "account-form", accountForm{})

	case errors.As(err, &verr):
		s.render(w, r, http.StatusUnprocessableEntity, "account-form", accountForm{Name: name, Error: verr.Fields["name"]})

	default:
		msg := "Failed to create account"
		var reqErr *core.RequestError
		if errors.As(err, &reqErr) && reqErr.Message != "" {
			msg = reqErr.Message
		}
		resp := NewHTMXResponse().TriggerErrorNotification(msg)
		s.renderTo(w, r, resp, "account-form", accountForm{Name: name, Error: msg})
	}
}
