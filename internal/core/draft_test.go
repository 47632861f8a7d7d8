package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestExpenseDraftPayload(t *testing.T) {
	at := NewTimestamp(time.Date(2025, 5, 4, 12, 0, 0, 0, time.UTC))
	d := ExpenseDraft{
		Amount:    Money{Cents: 4250},
		Category:  "Food",
		Division:  Personal,
		AccountID: "checking-id",
		At:        at,
	}
	b, err := json.Marshal(d.Payload())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(b)
	for _, part := range []string{
		`"amount":42.50`,
		`"type":"EXPENSE"`,
		`"category":"Food"`,
		`"division":"PERSONAL"`,
		`"fromAccountId":"checking-id"`,
		`"toAccountId":null`,
		`"timestamp":"2025-05-04T12:00:00.000Z"`,
	} {
		if !strings.Contains(body, part) {
			t.Errorf("payload missing %s: %s", part, body)
		}
	}
}

func TestTransferDraftPayloadNullsCategoryAndDivision(t *testing.T) {
	d := TransferDraft{
		Amount:        Money{Cents: 100},
		Description:   TransferDescription("Checking", "Savings"),
		FromAccountID: "a",
		ToAccountID:   "b",
	}
	p := d.Payload()
	if p.Category != nil || p.Division != nil {
		t.Fatalf("transfer payload must null category and division: %+v", p)
	}
	if p.ToAccountID == nil || *p.ToAccountID != "b" {
		t.Fatalf("transfer payload must carry destination")
	}
	if p.Description != "Transferred from Checking to Savings" {
		t.Fatalf("description = %q", p.Description)
	}

	tx := p.Transaction("t9")
	if tx.ID != "t9" || tx.ToAccountID != "b" || tx.Category != "" {
		t.Fatalf("projection = %+v", tx)
	}
}

func TestDraftTypes(t *testing.T) {
	drafts := []Draft{IncomeDraft{}, ExpenseDraft{}, TransferDraft{}}
	want := []TransactionType{Income, Expense, Transfer}
	for i, d := range drafts {
		if d.Type() != want[i] || d.Payload().Type != want[i] {
			t.Fatalf("draft %d type mismatch", i)
		}
	}
}
