package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"moneymanager/internal/config"
	"moneymanager/internal/core"
	"moneymanager/internal/form"
	apphttp "moneymanager/internal/http"
	"moneymanager/internal/reports"
	"moneymanager/internal/services"
)

const commandTimeout = 30 * time.Second

// errInvalidInput is returned after field errors have been printed.
var errInvalidInput = errors.New("invalid input")

type accountsCmd struct {
	List   accountsListCmd   `cmd help:"List accounts with balances."`
	Create accountsCreateCmd `cmd help:"Create an account with a zero balance."`
}

type accountsListCmd struct{}

func (c *accountsListCmd) Run(a *app) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	list, err := a.accounts.List(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	w := table(a.out, "ID", "NAME", "BALANCE")
	var total core.Money
	for _, acc := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", acc.ID, acc.Name, money(acc.Balance))
		total.Cents += acc.Balance.Cents
	}
	fmt.Fprintf(w, "\tTotal\t%s\n", money(total))
	return w.Flush()
}

type accountsCreateCmd struct {
	Name string `arg help:"Account name."`
}

func (c *accountsCreateCmd) Run(a *app) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	acc, err := a.accounts.Create(ctx, c.Name)
	if err != nil {
		if printFieldErrors(a.out, err) {
			return errInvalidInput
		}
		return fmt.Errorf("create account: %s: %w", core.UserMessage(err), err)
	}
	fmt.Fprintf(a.out, "Account created: %s (%s)\n", acc.Name, acc.ID)
	return nil
}

type transactionsCmd struct {
	List transactionsListCmd `cmd help:"List transactions, newest first."`
	Add  transactionsAddCmd  `cmd help:"Record a new income, expense or transfer."`
	Edit transactionsEditCmd `cmd help:"Edit a transaction inside its edit window."`
}

type transactionsListCmd struct {
	Division string `help:"PERSONAL, OFFICE or ALL."`
	Category string `help:"Category name or ALL."`
	Start    string `help:"First day, YYYY-MM-DD."`
	End      string `help:"Last day, YYYY-MM-DD."`
}

func (c *transactionsListCmd) Run(a *app) error {
	q := url.Values{}
	q.Set("division", c.Division)
	q.Set("category", c.Category)
	q.Set("start", c.Start)
	q.Set("end", c.End)
	filter, _, err := apphttp.ParseFilter(q, a.loc)
	if err != nil {
		printFieldErrors(a.out, err)
		return errInvalidInput
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	txs, err := a.backend.ListTransactions(ctx, filter)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	now := a.clock.Now()
	w := table(a.out, "ID", "DATE", "TYPE", "AMOUNT", "CATEGORY", "DIVISION", "DESCRIPTION", "EDITABLE")
	for _, tx := range txs {
		editable := "-"
		if r, ok := core.RemainingEdit(tx.Timestamp.Time, now); ok {
			editable = r.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.ID,
			tx.Timestamp.In(a.loc).Format("2006-01-02 15:04"),
			tx.Type.Label(),
			money(tx.Signed()),
			dash(tx.Category),
			dash(string(tx.Division)),
			tx.Description,
			editable,
		)
	}
	return w.Flush()
}

// txFields are the form inputs shared by add and edit.
type txFields struct {
	Amount      string `help:"Amount, e.g. 12.50."`
	Category    string `help:"Category for income and expenses."`
	Division    string `help:"PERSONAL or OFFICE."`
	From        string `help:"Source account, by id or name."`
	To          string `help:"Destination account for transfers, by id or name."`
	Description string `help:"Free text; transfers get one generated when blank."`
	At          string `help:"Local date and time, YYYY-MM-DDTHH:MM. Defaults to now."`
}

// values maps the set flags to form inputs, resolving account names to ids.
func (f txFields) values(list []core.Account) (map[string]string, error) {
	out := make(map[string]string)
	set := func(name, v string) {
		if strings.TrimSpace(v) != "" {
			out[name] = v
		}
	}
	set(form.FieldAmount, f.Amount)
	set(form.FieldCategory, f.Category)
	set(form.FieldDivision, strings.ToUpper(f.Division))
	set(form.FieldDescription, f.Description)
	set(form.FieldTimestamp, f.At)
	for name, ref := range map[string]string{form.FieldFromAccountID: f.From, form.FieldToAccountID: f.To} {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		id, err := resolveAccount(list, ref)
		if err != nil {
			return nil, err
		}
		out[name] = id
	}
	return out, nil
}

func resolveAccount(list []core.Account, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	for _, acc := range list {
		if acc.ID == ref {
			return acc.ID, nil
		}
	}
	for _, acc := range list {
		if strings.EqualFold(acc.Name, ref) {
			return acc.ID, nil
		}
	}
	return "", fmt.Errorf("unknown account %q", ref)
}

type transactionsAddCmd struct {
	Type   string   `help:"INCOME, EXPENSE or TRANSFER." default:"EXPENSE"`
	Fields txFields `embed`
}

func (c *transactionsAddCmd) Run(a *app) error {
	t, err := core.ParseTransactionType(c.Type)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	list, err := a.accounts.List(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	values, err := c.Fields.values(list)
	if err != nil {
		return err
	}

	opts, closeJournal, err := a.formOptions()
	if err != nil {
		return err
	}
	defer closeJournal()

	ctl, err := form.NewCreate(a.backend, t, list, opts...)
	if err != nil {
		return err
	}
	return a.submit(ctx, ctl, values)
}

type transactionsEditCmd struct {
	ID     string   `arg help:"Transaction id."`
	Fields txFields `embed`
}

func (c *transactionsEditCmd) Run(a *app) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	tx, err := a.findTransaction(ctx, c.ID)
	if err != nil {
		return err
	}
	list, err := a.accounts.List(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	values, err := c.Fields.values(list)
	if err != nil {
		return err
	}

	opts, closeJournal, err := a.formOptions()
	if err != nil {
		return err
	}
	defer closeJournal()

	ctl, err := form.NewEdit(a.backend, tx, list, opts...)
	if err != nil {
		return fmt.Errorf("edit %s: %w", c.ID, err)
	}
	return a.submit(ctx, ctl, values)
}

func (a *app) findTransaction(ctx context.Context, id string) (core.Transaction, error) {
	txs, err := a.backend.ListTransactions(ctx, core.TransactionFilter{})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("list transactions: %w", err)
	}
	for _, tx := range txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %q not found", id)
}

// formOptions configures a controller the way the web server does and, when
// the journal is enabled, records saved transactions in it. The ledger
// worker's sweep mirrors those entries.
func (a *app) formOptions() ([]form.Option, func(), error) {
	opts := []form.Option{
		form.WithClock(a.clock),
		form.WithLocation(a.loc),
		form.WithLogger(a.logger),
	}
	if !a.cfg.JournalEnabled {
		return opts, func() {}, nil
	}
	repo, err := a.openJournal()
	if err != nil {
		return nil, nil, err
	}
	journal := services.NewJournal(repo, nil, a.logger)
	opts = append(opts, form.OnSaved(journal.OnSaved()))
	return opts, func() { repo.Close() }, nil
}

func (a *app) submit(ctx context.Context, ctl *form.Controller, values map[string]string) error {
	if err := ctl.Apply(values); err != nil {
		return err
	}
	tx, err := ctl.Submit(ctx)
	if err != nil {
		if printFieldErrors(a.out, err) {
			return errInvalidInput
		}
		return fmt.Errorf("%s: %w", core.UserMessage(err), err)
	}
	fmt.Fprintf(a.out, "%s: %s %s %s\n", form.SavedNotice, tx.ID, tx.Type.Label(), money(tx.Amount))
	return nil
}

type dashboardCmd struct {
	Granularity string `help:"Chart granularity: weekly, monthly or yearly." default:"monthly"`
}

func (c *dashboardCmd) Run(a *app) error {
	g, err := core.ParseGranularity(c.Granularity)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	d, err := reports.Load(ctx, a.backend, a.accounts, g)
	if err != nil {
		return fmt.Errorf("load dashboard: %w", err)
	}

	fmt.Fprintf(a.out, "Income:   %s\n", money(d.Summary.TotalIncome))
	fmt.Fprintf(a.out, "Expenses: %s\n", money(d.Summary.TotalExpense))
	fmt.Fprintf(a.out, "Balance:  %s\n", money(d.Summary.Balance))
	fmt.Fprintf(a.out, "Health:   %d/100\n\n", d.HealthScore)

	w := table(a.out, "PERIOD", "INCOME", "EXPENSE")
	for _, p := range d.Series {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Date, money(p.Income), money(p.Expense))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(a.out)
	w = table(a.out, "EXPENSE CATEGORY", "AMOUNT", "SHARE")
	for _, s := range d.Expenses {
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\n", s.Name, money(s.Amount), s.Percent)
	}
	return w.Flush()
}

type journalCmd struct {
	Recent journalRecentCmd `cmd help:"Show the latest journal entries."`
	Stats  journalStatsCmd  `cmd help:"Count entries by sync status."`
}

type journalRecentCmd struct {
	Limit int `help:"Number of entries." default:"20"`
}

func (c *journalRecentCmd) Run(a *app) error {
	repo, err := a.openJournal()
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	entries, err := repo.Recent(ctx, c.Limit)
	if err != nil {
		return err
	}
	w := table(a.out, "ID", "OP", "TRANSACTION", "AMOUNT", "RECORDED", "SYNC", "ATTEMPTS", "REF/ERROR")
	for _, e := range entries {
		detail := e.SyncedRef
		if e.SyncError != "" {
			detail = e.SyncError
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ID, e.Op, e.Transaction.ID, money(e.Transaction.Signed()),
			e.RecordedAt.In(a.loc).Format("2006-01-02 15:04"),
			e.SyncStatus, e.SyncAttempts, dash(detail))
	}
	return w.Flush()
}

type journalStatsCmd struct{}

func (c *journalStatsCmd) Run(a *app) error {
	repo, err := a.openJournal()
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	st, err := repo.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "pending=%d synced=%d error=%d\n", st.Pending, st.Synced, st.Errored)
	return nil
}

type ledgerCmd struct {
	Show ledgerShowCmd `cmd help:"Print the rows of one year's ledger sheet."`
}

type ledgerShowCmd struct {
	Year int `help:"Sheet year; defaults to the current year."`
}

func (c *ledgerShowCmd) Run(a *app) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	ledger, err := a.openLedger(ctx)
	if err != nil {
		return err
	}
	year := c.Year
	if year == 0 {
		year = a.clock.Now().In(a.loc).Year()
	}
	rows, err := ledger.ReadRows(ctx, year)
	if err != nil {
		return err
	}
	w := table(a.out, "DATE", "TYPE", "AMOUNT", "CATEGORY", "FROM", "TO", "OP", "JOURNAL", "TRANSACTION")
	for _, r := range rows {
		tx := r.Transaction
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			tx.Timestamp.In(a.loc).Format("2006-01-02 15:04"),
			tx.Type.Label(), money(tx.Signed()), dash(tx.Category),
			dash(tx.FromAccountID), dash(tx.ToAccountID), r.Op, r.JournalID, tx.ID)
	}
	return w.Flush()
}

type configCmd struct {
	Check configCheckCmd `cmd help:"Validate the environment configuration."`
}

type configCheckCmd struct {
	Worker bool `help:"Also apply the ledger worker's requirements."`
}

func (c *configCheckCmd) Run(a *app) error {
	validate := (*config.Config).Validate
	if c.Worker {
		validate = (*config.Config).ValidateWorker
	}
	if err := validate(a.cfg); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "configuration ok (api %s, timezone %s, journal %t)\n",
		a.cfg.APIBaseURL, a.loc, a.cfg.JournalEnabled)
	return nil
}

func table(out io.Writer, headers ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	return w
}

// printFieldErrors writes validation messages, one per line, and reports
// whether err carried any.
func printFieldErrors(out io.Writer, err error) bool {
	var verr *core.ValidationError
	if !errors.As(err, &verr) || verr.Empty() {
		return false
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fields := make([]string, 0, len(verr.Fields))
	for field := range verr.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Fprintf(w, "%s:\t%s\n", field, verr.Fields[field])
	}
	w.Flush()
	return true
}

func money(m core.Money) string {
	if m.Cents < 0 {
		return "-$" + core.Money{Cents: -m.Cents}.String()
	}
	return "$" + m.String()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
