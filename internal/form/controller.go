// Package form implements the transaction form: per-type field rules, the
// transfer derivations, validation and a guarded create-or-update submission.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"moneymanager/internal/accounts"
	"moneymanager/internal/core"
	applog "moneymanager/internal/log"
)

var (
	ErrSubmitInFlight = errors.New("a submission for this form is already in progress")
	ErrFormClosed     = errors.New("form is closed")
	ErrTypeLocked     = errors.New("transaction type cannot change while editing")
	ErrUnknownField   = errors.New("unknown form field")
)

// SavedNotice is shown after a successful submission.
const SavedNotice = "Transaction saved"

// Submitter sends finished payloads to the backend.
type Submitter interface {
	CreateTransaction(ctx context.Context, p core.TransactionPayload) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, p core.TransactionPayload) (core.Transaction, error)
}

// SavedHook runs after the backend accepted a submission, even if the form
// was closed while the request was in flight.
type SavedHook func(ctx context.Context, tx core.Transaction, mode Mode)

// Controller owns one open form. It is safe for concurrent use; the lock is
// not held across the backend call.
type Controller struct {
	mu sync.Mutex

	backend Submitter
	clock   core.Clock
	loc     *time.Location
	logger  *applog.Logger
	hooks   []SavedHook

	token     string
	mode      Mode
	editingID string
	original  core.Timestamp

	state          State
	accounts       []core.Account
	loaded         bool
	userPickedFrom bool

	errors   map[string]string
	notice   string
	failed   bool
	inFlight bool
	closed   bool
}

// Option configures a Controller.
type Option func(*Controller)

func WithClock(c core.Clock) Option {
	return func(ctl *Controller) {
		if c != nil {
			ctl.clock = c
		}
	}
}

// WithLocation sets the zone wall-clock inputs are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(ctl *Controller) {
		if loc != nil {
			ctl.loc = loc
		}
	}
}

func WithLogger(l *applog.Logger) Option {
	return func(ctl *Controller) {
		if l != nil {
			ctl.logger = l.WithComponent(applog.ComponentForm)
		}
	}
}

func OnSaved(h SavedHook) Option {
	return func(ctl *Controller) {
		if h != nil {
			ctl.hooks = append(ctl.hooks, h)
		}
	}
}

func newController(backend Submitter, opts []Option) *Controller {
	c := &Controller{
		backend: backend,
		clock:   core.SystemClock,
		loc:     time.Local,
		logger:  applog.Default(applog.ComponentForm),
		errors:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewCreate opens a form for a new transaction of the given type. A nil
// accounts slice means the list has not loaded yet; see SetAccounts.
func NewCreate(backend Submitter, initial core.TransactionType, accountList []core.Account, opts ...Option) (*Controller, error) {
	if !initial.Valid() {
		return nil, core.ErrInvalidType
	}
	c := newController(backend, opts)
	c.mode = ModeCreate
	c.state = State{
		Type:      initial,
		Timestamp: c.clock.Now().In(c.loc).Format(core.LocalInputLayout),
	}
	if initial != core.Transfer {
		c.state.Division = core.Personal
	}
	if accountList != nil {
		c.setAccountsLocked(accountList)
	}
	return c, nil
}

// NewEdit opens a form pre-populated from tx with its type locked. It fails
// with core.ErrNotEditable once the edit window has closed.
func NewEdit(backend Submitter, tx core.Transaction, accountList []core.Account, opts ...Option) (*Controller, error) {
	c := newController(backend, opts)
	if !core.IsEditable(tx.Timestamp.Time, c.clock.Now()) {
		return nil, core.ErrNotEditable
	}
	c.mode = ModeEdit
	c.editingID = tx.ID
	c.original = tx.Timestamp
	c.userPickedFrom = tx.FromAccountID != ""
	c.state = State{
		Type:          tx.Type,
		Amount:        tx.Amount.Decimal(),
		Category:      tx.Category,
		Description:   tx.Description,
		Division:      tx.Division,
		FromAccountID: tx.FromAccountID,
		ToAccountID:   tx.ToAccountID,
		Timestamp:     tx.Timestamp.LocalInput(c.loc),
	}
	if tx.Type != core.Transfer && tx.Division == "" {
		c.state.Division = core.Personal
	}
	if accountList != nil {
		c.setAccountsLocked(accountList)
	}
	return c, nil
}

// Token identifies the form to the browser; empty until registered.
func (c *Controller) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Controller) Mode() Mode {
	return c.mode
}

// SetAccounts supplies the account options. The source account defaults to
// the first one only if the user has not chosen one yet.
func (c *Controller) SetAccounts(list []core.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAccountsLocked(list)
}

func (c *Controller) setAccountsLocked(list []core.Account) {
	c.accounts = append([]core.Account(nil), list...)
	c.loaded = true
	if c.mode == ModeCreate && !c.userPickedFrom && c.state.FromAccountID == "" && len(c.accounts) > 0 {
		c.state.FromAccountID = c.accounts[0].ID
	}
}

// SetField updates one field. Changing the type resets the fields the new
// type does not use.
func (c *Controller) SetField(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrFormClosed
	}
	return c.setFieldLocked(name, value)
}

// Apply sets several fields at once, type first.
func (c *Controller) Apply(values map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrFormClosed
	}
	for _, name := range fieldOrder {
		v, ok := values[name]
		if !ok {
			continue
		}
		if err := c.setFieldLocked(name, v); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) setFieldLocked(name, value string) error {
	switch name {
	case FieldType:
		t, err := core.ParseTransactionType(value)
		if err != nil {
			return err
		}
		if t == c.state.Type {
			return nil
		}
		if c.mode == ModeEdit {
			return ErrTypeLocked
		}
		c.switchType(t)
	case FieldAmount:
		c.state.Amount = strings.TrimSpace(value)
	case FieldCategory:
		c.state.Category = strings.TrimSpace(value)
	case FieldDescription:
		c.state.Description = value
	case FieldDivision:
		if c.state.Type == core.Transfer {
			return nil
		}
		c.state.Division = core.Division(strings.ToUpper(strings.TrimSpace(value)))
	case FieldFromAccountID:
		v := strings.TrimSpace(value)
		c.state.FromAccountID = v
		if v != "" {
			c.userPickedFrom = true
		}
	case FieldToAccountID:
		if c.state.Type != core.Transfer {
			return nil
		}
		c.state.ToAccountID = strings.TrimSpace(value)
	case FieldTimestamp:
		c.state.Timestamp = strings.TrimSpace(value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	delete(c.errors, name)
	c.failed = false
	c.notice = ""
	return nil
}

func (c *Controller) switchType(t core.TransactionType) {
	prev := c.state.Type
	c.state.Type = t
	if t == core.Transfer {
		c.state.Category = ""
		c.state.Division = ""
	} else {
		c.state.ToAccountID = ""
		if !t.HasCategory(c.state.Category) {
			c.state.Category = ""
		}
		if c.state.Division == "" {
			c.state.Division = core.Personal
		}
	}
	c.errors = make(map[string]string)
	c.logger.Debug("Form type switched", "from", string(prev), "to", string(t))
}

// Draft validates the current state and builds the typed draft it describes.
func (c *Controller) Draft() (core.Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draftLocked()
}

func (c *Controller) draftLocked() (core.Draft, error) {
	s := c.state
	verr := core.NewValidationError()

	cents, err := core.ParseDecimalToCents(s.Amount)
	if err != nil {
		verr.Add(FieldAmount, "Amount must be a positive number")
	}
	amount := core.Money{Cents: cents}

	at, err := core.ParseLocalInput(s.Timestamp, c.loc)
	if err != nil {
		verr.Add(FieldTimestamp, "Enter a valid date and time")
	}

	if s.FromAccountID == "" {
		verr.Add(FieldFromAccountID, "Choose an account")
	}

	switch s.Type {
	case core.Transfer:
		switch {
		case s.ToAccountID == "":
			verr.Add(FieldToAccountID, "Choose a destination account")
		case s.ToAccountID == s.FromAccountID:
			verr.Add(FieldToAccountID, "Destination must differ from the source account")
		}
	case core.Income, core.Expense:
		switch {
		case s.Category == "":
			verr.Add(FieldCategory, "Category is required")
		case !s.Type.HasCategory(s.Category):
			verr.Add(FieldCategory, "Choose a valid category")
		}
		if !s.Division.Valid() {
			verr.Add(FieldDivision, "Division is required")
		}
	default:
		verr.Add(FieldType, "Choose a transaction type")
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	switch s.Type {
	case core.Income:
		return core.IncomeDraft{
			Amount: amount, Category: s.Category, Division: s.Division,
			Description: strings.TrimSpace(s.Description), AccountID: s.FromAccountID, At: at,
		}, nil
	case core.Expense:
		return core.ExpenseDraft{
			Amount: amount, Category: s.Category, Division: s.Division,
			Description: strings.TrimSpace(s.Description), AccountID: s.FromAccountID, At: at,
		}, nil
	}

	desc := strings.TrimSpace(s.Description)
	if desc == "" {
		desc = core.TransferDescription(
			accounts.Resolve(c.accounts, s.FromAccountID, "Account"),
			accounts.Resolve(c.accounts, s.ToAccountID, "Account"),
		)
	}
	return core.TransferDraft{
		Amount: amount, Description: desc,
		FromAccountID: s.FromAccountID, ToAccountID: s.ToAccountID, At: at,
	}, nil
}

// Submit validates and sends the form. Validation failures never reach the
// backend. On failure the form stays open with its values intact and Notice
// carries the message to show. A second Submit while one is pending returns
// ErrSubmitInFlight; a result arriving after Close is discarded.
func (c *Controller) Submit(ctx context.Context) (core.Transaction, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return core.Transaction{}, ErrFormClosed
	}
	if c.inFlight {
		c.mu.Unlock()
		return core.Transaction{}, ErrSubmitInFlight
	}
	if c.mode == ModeEdit && !core.IsEditable(c.original.Time, c.clock.Now()) {
		c.notice = "This transaction can no longer be edited"
		c.failed = true
		c.mu.Unlock()
		return core.Transaction{}, core.ErrNotEditable
	}

	draft, err := c.draftLocked()
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			c.errors = make(map[string]string, len(verr.Fields))
			for k, v := range verr.Fields {
				c.errors[k] = v
			}
		}
		c.mu.Unlock()
		return core.Transaction{}, err
	}

	c.errors = make(map[string]string)
	c.notice = ""
	c.failed = false
	c.inFlight = true
	mode, id := c.mode, c.editingID
	c.mu.Unlock()

	payload := draft.Payload()
	var tx core.Transaction
	if mode == ModeEdit {
		tx, err = c.backend.UpdateTransaction(ctx, id, payload)
	} else {
		tx, err = c.backend.CreateTransaction(ctx, payload)
	}
	if err == nil && tx.ID == "" {
		tx = payload.Transaction(id)
	}

	c.mu.Lock()
	c.inFlight = false
	closed := c.closed
	if !closed {
		if err != nil {
			c.notice = core.UserMessage(err)
			c.failed = true
		} else {
			c.notice = SavedNotice
			c.closed = true
		}
	}
	hooks := c.hooks
	c.mu.Unlock()

	fields := applog.NewFields().
		WithTransaction(tx.ID, string(payload.Type), payload.Amount.Cents, categoryOf(payload), payload.FromAccountID, toOf(payload)).
		WithOperation(applog.OpSubmit)
	if err != nil {
		c.logger.WarnContext(ctx, "Transaction submission failed", append(fields.WithError(err).ToSlice(), "mode", mode.String())...)
		if closed {
			return core.Transaction{}, fmt.Errorf("%w: %w", ErrFormClosed, err)
		}
		return core.Transaction{}, err
	}

	c.logger.InfoContext(ctx, "Transaction saved", append(fields.ToSlice(), "mode", mode.String(), "discarded", closed)...)
	for _, h := range hooks {
		h(ctx, tx, mode)
	}
	if closed {
		return tx, ErrFormClosed
	}
	return tx, nil
}

func categoryOf(p core.TransactionPayload) string {
	if p.Category == nil {
		return ""
	}
	return *p.Category
}

func toOf(p core.TransactionPayload) string {
	if p.ToAccountID == nil {
		return ""
	}
	return *p.ToAccountID
}

// Close discards the form. Any pending submission result is dropped on
// arrival.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Notice is the last submission outcome message, if any.
func (c *Controller) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

// State returns a copy of the raw field values.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View snapshots the form for rendering.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	errs := make(map[string]string, len(c.errors))
	for k, v := range c.errors {
		errs[k] = v
	}
	v := View{
		Token:      c.token,
		Mode:       c.mode,
		EditingID:  c.editingID,
		State:      c.state,
		Accounts:   append([]core.Account(nil), c.accounts...),
		Loaded:     c.loaded,
		Categories: c.state.Type.Categories(),
		Divisions:  core.Divisions(),
		Errors:     errs,
		Notice:     c.notice,
		Failed:     c.failed,
		InFlight:   c.inFlight,
		Closed:     c.closed,
		TypeLocked: c.mode == ModeEdit,
	}
	if c.mode == ModeEdit {
		if r, ok := core.RemainingEdit(c.original.Time, c.clock.Now()); ok {
			v.Remaining = r.String()
		}
	}
	return v
}
