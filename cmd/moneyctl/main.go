package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"moneymanager/internal/accounts"
	"moneymanager/internal/cli"
	"moneymanager/internal/config"
	"moneymanager/internal/core"
	"moneymanager/internal/gateway"
	applog "moneymanager/internal/log"
	"moneymanager/internal/sheets"
	gsheet "moneymanager/internal/sheets/google"
	"moneymanager/internal/storage"
)

// app is bound into every command's Run method.
type app struct {
	cfg      *config.Config
	loc      *time.Location
	backend  gateway.Backend
	accounts *accounts.Directory
	clock    core.Clock
	logger   *applog.Logger
	out      io.Writer

	openJournal func() (*storage.SQLiteRepository, error)
	openLedger  func(ctx context.Context) (sheets.LedgerReader, error)
}

var cliArgs struct {
	EnvFile string `name:"env-file" help:"Optional .env file to load before reading the environment." default:".env"`

	Accounts     accountsCmd     `cmd help:"List or create accounts."`
	Transactions transactionsCmd `cmd help:"List, add or edit transactions."`
	Dashboard    dashboardCmd    `cmd help:"Show balances, totals and the health score."`
	Journal      journalCmd      `cmd help:"Inspect the local submission journal."`
	Ledger       ledgerCmd       `cmd help:"Read the mirrored ledger sheet."`
	Config       configCmd       `cmd help:"Configuration checks."`
}

func main() {
	ctx := kong.Parse(&cliArgs,
		kong.Name("moneyctl"),
		kong.Description("Terminal front end for the money manager backend."),
	)

	cli.LoadEnvFile(cliArgs.EnvFile)
	logger := cli.SetupLogger(applog.ComponentCLI, os.Stderr)

	a, err := newApp(config.Load(), logger, os.Stdout)
	ctx.FatalIfErrorf(err)
	ctx.FatalIfErrorf(ctx.Run(a))
}

func newApp(cfg *config.Config, logger *applog.Logger, out io.Writer) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	backend := gateway.New(cfg.APIBaseURL,
		gateway.WithTimeout(cfg.APITimeout),
		gateway.WithRetry(cfg.APIReadRetries),
		gateway.WithLogger(logger),
	)
	return &app{
		cfg:      cfg,
		loc:      loc,
		backend:  backend,
		accounts: accounts.NewDirectory(backend, cfg.AccountsCacheTTL, logger),
		clock:    core.SystemClock,
		logger:   logger,
		out:      out,
		openJournal: func() (*storage.SQLiteRepository, error) {
			return cli.OpenJournal(logger, cfg.SQLiteDBPath)
		},
		openLedger: func(ctx context.Context) (sheets.LedgerReader, error) {
			return gsheet.New(ctx, gsheet.Options{
				SpreadsheetID:   cfg.GoogleSpreadsheetID,
				SheetName:       cfg.GoogleSheetName,
				CredentialsFile: cfg.GoogleServiceAccountFile,
				CredentialsJSON: cfg.GoogleServiceAccountJSON,
				Logger:          logger,
			})
		},
	}, nil
}
