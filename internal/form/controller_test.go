package form

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"moneymanager/internal/core"
)

type fakeBackend struct {
	mu       sync.Mutex
	creates  []core.TransactionPayload
	updates  map[string]core.TransactionPayload
	err      error
	started  chan struct{}
	release  chan struct{}
	lastBody []byte
}

func (f *fakeBackend) CreateTransaction(ctx context.Context, p core.TransactionPayload) (core.Transaction, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, p)
	f.lastBody, _ = json.Marshal(p)
	if f.err != nil {
		return core.Transaction{}, f.err
	}
	return p.Transaction("tx-new"), nil
}

func (f *fakeBackend) UpdateTransaction(ctx context.Context, id string, p core.TransactionPayload) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = make(map[string]core.TransactionPayload)
	}
	f.updates[id] = p
	if f.err != nil {
		return core.Transaction{}, f.err
	}
	return p.Transaction(id), nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates) + len(f.updates)
}

var (
	now      = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	accounts = []core.Account{
		{ID: "chk", Name: "Checking"},
		{ID: "sav", Name: "Savings"},
	}
)

func newCreate(t *testing.T, b Submitter, typ core.TransactionType, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithClock(core.FixedClock(now)), WithLocation(time.UTC)}, opts...)
	c, err := NewCreate(b, typ, accounts, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func mustSet(t *testing.T, c *Controller, kv ...string) {
	t.Helper()
	for i := 0; i+1 < len(kv); i += 2 {
		if err := c.SetField(kv[i], kv[i+1]); err != nil {
			t.Fatalf("SetField(%s): %v", kv[i], err)
		}
	}
}

func TestCreateDefaults(t *testing.T) {
	c := newCreate(t, &fakeBackend{}, core.Expense)
	s := c.State()
	if s.FromAccountID != "chk" {
		t.Errorf("from = %q, want first account", s.FromAccountID)
	}
	if s.Division != core.Personal {
		t.Errorf("division = %q", s.Division)
	}
	if s.Timestamp != "2024-05-01T12:00" {
		t.Errorf("timestamp = %q", s.Timestamp)
	}
}

func TestExpenseScenarioPayload(t *testing.T) {
	b := &fakeBackend{}
	c := newCreate(t, b, core.Expense)
	mustSet(t, c, FieldAmount, "42.50", FieldCategory, "Food")

	tx, err := c.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tx.ID != "tx-new" {
		t.Fatalf("tx = %+v", tx)
	}

	var body map[string]any
	if err := json.Unmarshal(b.lastBody, &body); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"amount":        42.5,
		"type":          "EXPENSE",
		"category":      "Food",
		"division":      "PERSONAL",
		"fromAccountId": "chk",
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("%s = %v, want %v", k, body[k], v)
		}
	}
	if !c.Closed() || c.Notice() != SavedNotice {
		t.Errorf("form should close with saved notice")
	}
}

func TestTransferDerivations(t *testing.T) {
	b := &fakeBackend{}
	c := newCreate(t, b, core.Expense)
	mustSet(t, c,
		FieldCategory, "Food",
		FieldDivision, "OFFICE",
		FieldType, "TRANSFER",
		FieldAmount, "10",
		FieldToAccountID, "sav",
	)
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	p := b.creates[0]
	if p.Category != nil || p.Division != nil {
		t.Fatalf("transfer must send null category/division: %+v", p)
	}
	if p.Description != "Transferred from Checking to Savings" {
		t.Fatalf("description = %q", p.Description)
	}
	if p.ToAccountID == nil || *p.ToAccountID != "sav" {
		t.Fatalf("to = %v", p.ToAccountID)
	}
}

func TestTransferDescriptionKeptWhenGiven(t *testing.T) {
	b := &fakeBackend{}
	c := newCreate(t, b, core.Transfer)
	mustSet(t, c, FieldAmount, "5", FieldToAccountID, "sav", FieldDescription, "Rent pot")
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if b.creates[0].Description != "Rent pot" {
		t.Fatalf("description = %q", b.creates[0].Description)
	}
}

func TestTransferUnknownAccountFallsBack(t *testing.T) {
	b := &fakeBackend{}
	c := newCreate(t, b, core.Transfer)
	mustSet(t, c, FieldAmount, "5", FieldToAccountID, "ghost")
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := b.creates[0].Description; got != "Transferred from Checking to Account" {
		t.Fatalf("description = %q", got)
	}
}

func TestValidationBlocksNetwork(t *testing.T) {
	tests := []struct {
		name  string
		typ   core.TransactionType
		kv    []string
		field string
	}{
		{"same account transfer", core.Transfer, []string{FieldAmount, "5", FieldToAccountID, "chk"}, FieldToAccountID},
		{"missing destination", core.Transfer, []string{FieldAmount, "5"}, FieldToAccountID},
		{"empty category expense", core.Expense, []string{FieldAmount, "5"}, FieldCategory},
		{"empty category income", core.Income, []string{FieldAmount, "5"}, FieldCategory},
		{"category from other type", core.Income, []string{FieldAmount, "5", FieldCategory, "Fuel"}, FieldCategory},
		{"zero amount", core.Expense, []string{FieldAmount, "0", FieldCategory, "Food"}, FieldAmount},
		{"non numeric amount", core.Expense, []string{FieldAmount, "abc", FieldCategory, "Food"}, FieldAmount},
		{"bad timestamp", core.Expense, []string{FieldAmount, "1", FieldCategory, "Food", FieldTimestamp, "yesterday"}, FieldTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			c := newCreate(t, b, tt.typ)
			mustSet(t, c, tt.kv...)
			_, err := c.Submit(context.Background())
			var verr *core.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Fields[tt.field] == "" {
				t.Fatalf("expected error on %s, got %v", tt.field, verr.Fields)
			}
			if b.calls() != 0 {
				t.Fatalf("validation failure reached the backend")
			}
			if c.Closed() {
				t.Fatalf("form closed on validation failure")
			}
			if c.View().Errors[tt.field] == "" {
				t.Fatalf("view missing field error")
			}
		})
	}
}

func TestBackendRejectionKeepsFormOpen(t *testing.T) {
	b := &fakeBackend{err: &core.RequestError{Op: "create transaction", Status: 400, Message: "Insufficient balance"}}
	c := newCreate(t, b, core.Transfer)
	mustSet(t, c, FieldAmount, "900", FieldToAccountID, "sav", FieldDescription, "move")
	before := c.State()

	_, err := c.Submit(context.Background())
	if !errors.Is(err, core.ErrRejected) {
		t.Fatalf("expected rejected error, got %v", err)
	}
	if c.Closed() {
		t.Fatalf("form must stay open")
	}
	if c.Notice() != "Insufficient balance" {
		t.Fatalf("notice = %q", c.Notice())
	}
	if c.State() != before {
		t.Fatalf("fields changed: %+v vs %+v", c.State(), before)
	}
	if !c.View().Failed {
		t.Fatalf("view should flag the failure")
	}
}

func TestBackendFailureWithoutMessage(t *testing.T) {
	b := &fakeBackend{err: &core.RequestError{Op: "create transaction", Status: 503}}
	c := newCreate(t, b, core.Income)
	mustSet(t, c, FieldAmount, "1", FieldCategory, "Salary")
	c.Submit(context.Background())
	if c.Notice() != core.GenericFailureMessage {
		t.Fatalf("notice = %q", c.Notice())
	}
}

func TestDuplicateSubmitRejectedWhileInFlight(t *testing.T) {
	b := &fakeBackend{started: make(chan struct{}), release: make(chan struct{})}
	c := newCreate(t, b, core.Expense)
	mustSet(t, c, FieldAmount, "3", FieldCategory, "Food")

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-b.started

	if !c.InFlight() || !c.View().InFlight {
		t.Fatalf("expected in-flight state")
	}
	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("second submit: %v", err)
	}
	close(b.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if b.calls() != 1 {
		t.Fatalf("backend called %d times", b.calls())
	}
}

func TestCloseDiscardsLateResult(t *testing.T) {
	b := &fakeBackend{started: make(chan struct{}), release: make(chan struct{})}
	var saved int
	c := newCreate(t, b, core.Expense, OnSaved(func(context.Context, core.Transaction, Mode) { saved++ }))
	mustSet(t, c, FieldAmount, "3", FieldCategory, "Food")

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-b.started
	c.Close()
	close(b.release)

	if err := <-done; !errors.Is(err, ErrFormClosed) {
		t.Fatalf("expected ErrFormClosed, got %v", err)
	}
	if c.Notice() != "" {
		t.Fatalf("closed form state was updated: %q", c.Notice())
	}
	if saved != 1 {
		t.Fatalf("saved hooks ran %d times", saved)
	}
	if err := c.SetField(FieldAmount, "4"); !errors.Is(err, ErrFormClosed) {
		t.Fatalf("closed form accepted input: %v", err)
	}
}

func TestAccountsArriveLate(t *testing.T) {
	c, err := NewCreate(&fakeBackend{}, core.Expense, nil, WithClock(core.FixedClock(now)))
	if err != nil {
		t.Fatal(err)
	}
	if c.State().FromAccountID != "" || c.View().Loaded {
		t.Fatalf("nothing to default yet")
	}
	c.SetAccounts(accounts)
	if got := c.State().FromAccountID; got != "chk" {
		t.Fatalf("from = %q", got)
	}

	c2, _ := NewCreate(&fakeBackend{}, core.Expense, nil)
	mustSet(t, c2, FieldFromAccountID, "sav")
	c2.SetAccounts(accounts)
	if got := c2.State().FromAccountID; got != "sav" {
		t.Fatalf("user choice overwritten: %q", got)
	}
}

func TestTypeSwitchResetsDependentFields(t *testing.T) {
	c := newCreate(t, &fakeBackend{}, core.Transfer)
	mustSet(t, c, FieldToAccountID, "sav", FieldType, "EXPENSE")
	s := c.State()
	if s.ToAccountID != "" || s.Division != core.Personal {
		t.Fatalf("unexpected state %+v", s)
	}

	mustSet(t, c, FieldCategory, "Other", FieldType, "INCOME")
	if c.State().Category != "Other" {
		t.Fatalf("category shared by both types should survive")
	}
	mustSet(t, c, FieldCategory, "Salary", FieldType, "EXPENSE")
	if c.State().Category != "" {
		t.Fatalf("income category kept on expense")
	}
}

func txAt(ago time.Duration) core.Transaction {
	return core.Transaction{
		ID:            "tx-7",
		Type:          core.Income,
		Amount:        core.Money{Cents: 150000},
		Category:      "Salary",
		Division:      core.Office,
		FromAccountID: "chk",
		Timestamp:     core.NewTimestamp(now.Add(-ago)),
	}
}

func TestEditWithinWindow(t *testing.T) {
	b := &fakeBackend{}
	c, err := NewEdit(b, txAt(11*time.Hour+59*time.Minute), accounts,
		WithClock(core.FixedClock(now)), WithLocation(time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	v := c.View()
	if v.Remaining != "0h 1m left" || !v.TypeLocked {
		t.Fatalf("view = %+v", v)
	}
	if v.State.Amount != "1500.00" || v.State.Timestamp != "2024-05-01T00:01" {
		t.Fatalf("prefill = %+v", v.State)
	}
	if err := c.SetField(FieldType, "EXPENSE"); !errors.Is(err, ErrTypeLocked) {
		t.Fatalf("type change while editing: %v", err)
	}
	mustSet(t, c, FieldAmount, "1600")
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := b.updates["tx-7"].Amount.Cents; got != 160000 {
		t.Fatalf("updated amount = %d", got)
	}
}

func TestEditOutsideWindow(t *testing.T) {
	_, err := NewEdit(&fakeBackend{}, txAt(12*time.Hour), accounts, WithClock(core.FixedClock(now)))
	if !errors.Is(err, core.ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}
}

func TestEditWindowClosesBeforeSubmit(t *testing.T) {
	clock := now
	b := &fakeBackend{}
	c, err := NewEdit(b, txAt(11*time.Hour), accounts,
		WithClock(core.ClockFunc(func() time.Time { return clock })))
	if err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(time.Hour)
	if _, err := c.Submit(context.Background()); !errors.Is(err, core.ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}
	if b.calls() != 0 {
		t.Fatalf("stale edit reached backend")
	}
}

func TestApplyOrdersTypeFirst(t *testing.T) {
	c := newCreate(t, &fakeBackend{}, core.Expense)
	err := c.Apply(map[string]string{
		FieldToAccountID: "sav",
		FieldType:        "TRANSFER",
		FieldAmount:      "7",
	})
	if err != nil {
		t.Fatal(err)
	}
	if s := c.State(); s.ToAccountID != "sav" || s.Type != core.Transfer {
		t.Fatalf("state = %+v", s)
	}
	if err := c.SetField("colour", "red"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("unknown field: %v", err)
	}
}
