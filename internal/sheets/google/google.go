package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	applog "moneymanager/internal/log"
	ports "moneymanager/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *applog.Logger
}

// Ensure interface conformance
var (
	_ ports.LedgerWriter = (*Client)(nil)
	_ ports.LedgerReader = (*Client)(nil)
)

// Options configures the Sheets client.
type Options struct {
	SpreadsheetID   string
	SheetName       string // base name; the year is prefixed per row
	CredentialsFile string
	CredentialsJSON string
	Logger          *applog.Logger

	// Extra client options, e.g. a test endpoint.
	ClientOptions []goption.ClientOption
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.Default(applog.ComponentSheets)
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	clientOpts := opts.ClientOptions
	if len(clientOpts) == 0 {
		creds, err := credentials(opts)
		if err != nil {
			return nil, err
		}
		clientOpts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
		logger.InfoContext(ctx, "Creating Google Sheets service with service account", "credentials_size", len(creds))
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		sheetBase:     opts.SheetName,
		logger:        logger,
	}, nil
}

func credentials(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		return []byte(opts.CredentialsJSON), nil
	case opts.CredentialsFile != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	if path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read application credentials: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

func quoted(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

// AppendRow appends the row to the sheet for the transaction's year.
func (c *Client) AppendRow(ctx context.Context, row ports.LedgerRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if row.Transaction.Timestamp.IsZero() {
		return "", fmt.Errorf("ledger row %d: missing timestamp", row.JournalID)
	}

	sheet := ports.SheetName(c.sheetBase, row.Transaction.Timestamp.UTC().Year())
	rng := quoted(sheet) + "!A:K"
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", sheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Ledger row appended",
		applog.FieldJournalID, row.JournalID,
		applog.FieldTxID, row.Transaction.ID,
		applog.FieldSheetsRef, ref)
	return ref, nil
}

// ReadRows reads every data row of the year's sheet, skipping the header and
// rows that do not parse.
func (c *Client) ReadRows(ctx context.Context, year int) ([]ports.LedgerRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := quoted(ports.SheetName(c.sheetBase, year)) + "!A:K"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	var out []ports.LedgerRow
	for i, raw := range resp.Values {
		cells := toStrings(raw)
		if i == 0 && len(cells) > 0 && strings.EqualFold(cells[0], ports.Header[0]) {
			continue
		}
		row, err := ports.ParseRow(cells)
		if err != nil {
			c.logger.WarnContext(ctx, "Skipping unreadable ledger row", "row", i+1, applog.FieldError, err)
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

