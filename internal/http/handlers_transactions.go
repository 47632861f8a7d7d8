package http

import (
	"errors"
	"net/http"

	"moneymanager/internal/accounts"
	"moneymanager/internal/core"
	"moneymanager/internal/form"
	applog "moneymanager/internal/log"
)

type ledgerRow struct {
	Tx        core.Transaction
	Signed    core.Money
	From      string
	To        string
	Editable  bool
	Remaining string
}

type ledgerPage struct {
	page
	Filter     FilterForm
	Errors     map[string]string
	Rows       []ledgerRow
	Divisions  []core.Division
	Categories []string
}

// handleTransactions renders the filtered ledger. Each row is re-evaluated
// against the edit window at render time.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := ledgerPage{
		page:       page{Title: "Transactions", Active: "transactions"},
		Divisions:  core.Divisions(),
		Categories: core.AllCategories(),
	}

	filter, ff, err := ParseFilter(r.URL.Query(), s.loc)
	data.Filter = ff
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			data.Errors = verr.Fields
		}
		s.render(w, r, http.StatusUnprocessableEntity, "transactions.html", data)
		return
	}

	txs, err := s.backend.ListTransactions(ctx, filter)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Ledger load failed", applog.FieldError, err)
		data.Error = backendMessage(err)
		s.render(w, r, http.StatusBadGateway, "transactions.html", data)
		return
	}
	accts := s.loadAccounts(ctx)

	now := s.now()
	data.Rows = make([]ledgerRow, 0, len(txs))
	for _, tx := range txs {
		row := ledgerRow{
			Tx:     tx,
			Signed: tx.Signed(),
			From:   accounts.Resolve(accts, tx.FromAccountID, tx.FromAccountID),
		}
		if tx.ToAccountID != "" {
			row.To = accounts.Resolve(accts, tx.ToAccountID, tx.ToAccountID)
		}
		if rem, ok := core.RemainingEdit(tx.Timestamp.Time, now); ok {
			row.Editable = true
			row.Remaining = rem.String()
		}
		data.Rows = append(data.Rows, row)
	}
	s.render(w, r, http.StatusOK, "transactions.html", data)
}

// handleNewForm opens a create form. ?type= picks the initial type,
// defaulting to EXPENSE.
func (s *Server) handleNewForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := core.Expense
	if v := r.URL.Query().Get("type"); v != "" {
		parsed, err := core.ParseTransactionType(v)
		if err != nil {
			BadRequestError("Unknown transaction type").Write(w)
			return
		}
		t = parsed
	}

	c, err := form.NewCreate(s.backend, t, s.loadAccounts(ctx), s.formOptions()...)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Form open failed", applog.FieldError, err)
		InternalServerError("Could not open the form").Write(w)
		return
	}
	token := s.forms.Open(c)
	applog.FromContext(ctx).WithComponent(applog.ComponentForm).DebugContext(ctx, "Form opened",
		applog.FieldFormToken, token, applog.FieldTxType, string(t))
	s.render(w, r, http.StatusOK, "form", c.View())
}

// handleEditForm opens an edit form for a transaction still inside its
// window. The backend has no single-item read, so the ledger is searched.
func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	txs, err := s.backend.ListTransactions(ctx, core.TransactionFilter{})
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Ledger load failed", applog.FieldError, err)
		BadGatewayError(backendMessage(err)).Write(w)
		return
	}
	var (
		tx    core.Transaction
		found bool
	)
	for _, candidate := range txs {
		if candidate.ID == id {
			tx, found = candidate, true
			break
		}
	}
	if !found {
		NotFoundError("Transaction not found").Write(w)
		return
	}

	c, err := form.NewEdit(s.backend, tx, s.loadAccounts(ctx), s.formOptions()...)
	if errors.Is(err, core.ErrNotEditable) {
		ConflictError("This transaction can no longer be edited").Write(w)
		return
	}
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Form open failed", applog.FieldError, err, applog.FieldTxID, id)
		InternalServerError("Could not open the form").Write(w)
		return
	}
	s.forms.Open(c)
	s.render(w, r, http.StatusOK, "form", c.View())
}
