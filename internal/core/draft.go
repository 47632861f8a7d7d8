package core

import "fmt"

// Draft is a validated transaction awaiting submission. Each variant carries
// only the fields its type requires.
type Draft interface {
	Type() TransactionType
	Payload() TransactionPayload
}

type (
	// IncomeDraft records money arriving into AccountID.
	IncomeDraft struct {
		Amount      Money
		Category    string
		Division    Division
		Description string
		AccountID   string
		At          Timestamp
	}

	// ExpenseDraft records money leaving AccountID.
	ExpenseDraft struct {
		Amount      Money
		Category    string
		Division    Division
		Description string
		AccountID   string
		At          Timestamp
	}

	// TransferDraft moves money between two distinct accounts.
	TransferDraft struct {
		Amount        Money
		Description   string
		FromAccountID string
		ToAccountID   string
		At            Timestamp
	}
)

// TransactionPayload is the POST/PUT body. Nullable fields are pointers so
// transfers send explicit nulls.
type TransactionPayload struct {
	Type          TransactionType `json:"type"`
	Amount        Money           `json:"amount"`
	Category      *string         `json:"category"`
	Description   string          `json:"description"`
	Division      *Division       `json:"division"`
	FromAccountID string          `json:"fromAccountId"`
	ToAccountID   *string         `json:"toAccountId"`
	Timestamp     Timestamp       `json:"timestamp"`
}

func (IncomeDraft) Type() TransactionType   { return Income }
func (ExpenseDraft) Type() TransactionType  { return Expense }
func (TransferDraft) Type() TransactionType { return Transfer }

func (d IncomeDraft) Payload() TransactionPayload {
	return categorizedPayload(Income, d.Amount, d.Category, d.Division, d.Description, d.AccountID, d.At)
}

func (d ExpenseDraft) Payload() TransactionPayload {
	return categorizedPayload(Expense, d.Amount, d.Category, d.Division, d.Description, d.AccountID, d.At)
}

func (d TransferDraft) Payload() TransactionPayload {
	to := d.ToAccountID
	return TransactionPayload{
		Type:          Transfer,
		Amount:        d.Amount,
		Description:   d.Description,
		FromAccountID: d.FromAccountID,
		ToAccountID:   &to,
		Timestamp:     d.At,
	}
}

func categorizedPayload(t TransactionType, amount Money, category string, div Division, desc, account string, at Timestamp) TransactionPayload {
	return TransactionPayload{
		Type:          t,
		Amount:        amount,
		Category:      &category,
		Description:   desc,
		Division:      &div,
		FromAccountID: account,
		Timestamp:     at,
	}
}

// TransferDescription is the text stored for a transfer saved without one.
func TransferDescription(fromName, toName string) string {
	return fmt.Sprintf("Transferred from %s to %s", fromName, toName)
}

// Transaction projects the payload onto the read model, as the backend would
// store it.
func (p TransactionPayload) Transaction(id string) Transaction {
	tx := Transaction{
		ID:            id,
		Type:          p.Type,
		Amount:        p.Amount,
		Description:   p.Description,
		FromAccountID: p.FromAccountID,
		Timestamp:     p.Timestamp,
	}
	if p.Category != nil {
		tx.Category = *p.Category
	}
	if p.Division != nil {
		tx.Division = *p.Division
	}
	if p.ToAccountID != nil {
		tx.ToAccountID = *p.ToAccountID
	}
	return tx
}
