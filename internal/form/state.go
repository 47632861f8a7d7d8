package form

import (
	"moneymanager/internal/core"
)

// Mode distinguishes a new transaction from an edit of an existing one.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// Field names accepted by SetField. They match the backend's JSON keys.
const (
	FieldType          = "type"
	FieldAmount        = "amount"
	FieldCategory      = "category"
	FieldDescription   = "description"
	FieldDivision      = "division"
	FieldFromAccountID = "fromAccountId"
	FieldToAccountID   = "toAccountId"
	FieldTimestamp     = "timestamp"
)

// fieldOrder is the order Apply uses; type goes first since it resets others.
var fieldOrder = []string{
	FieldType,
	FieldAmount,
	FieldCategory,
	FieldDescription,
	FieldDivision,
	FieldFromAccountID,
	FieldToAccountID,
	FieldTimestamp,
}

// State holds the raw values the user typed. Nothing here is validated until
// Submit.
type State struct {
	Type          core.TransactionType
	Amount        string
	Category      string
	Description   string
	Division      core.Division
	FromAccountID string
	ToAccountID   string
	Timestamp     string // wall clock, core.LocalInputLayout
}

// View is a snapshot of a controller for rendering.
type View struct {
	Token      string
	Mode       Mode
	EditingID  string
	State      State
	Accounts   []core.Account
	Loaded     bool
	Categories []string
	Divisions  []core.Division
	Errors     map[string]string
	Notice     string
	Failed     bool
	InFlight   bool
	Closed     bool
	TypeLocked bool
	Remaining  string
}

// IsTransfer is a template helper.
func (v View) IsTransfer() bool {
	return v.State.Type == core.Transfer
}
