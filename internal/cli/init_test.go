package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"moneymanager/internal/config"
)

func TestSetupLoggerHonoursLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	logger := SetupLogger("test", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "component=test") {
		t.Errorf("warn line missing or untagged: %q", out)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("MM_CLI_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MM_CLI_TEST_VALUE", "")
	os.Unsetenv("MM_CLI_TEST_VALUE")

	LoadEnvFile(path)
	if got := os.Getenv("MM_CLI_TEST_VALUE"); got != "from-file" {
		t.Errorf("MM_CLI_TEST_VALUE = %q, want from-file", got)
	}

	// a missing file is not an error
	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig((*config.Config).Validate)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}

	t.Setenv("PORT", "not-a-port")
	if _, err := LoadConfig((*config.Config).Validate); err == nil {
		t.Error("LoadConfig() accepted an invalid port")
	}

	wantErr := errors.New("nope")
	if _, err := LoadConfig(func(*config.Config) error { return wantErr }); !errors.Is(err, wantErr) {
		t.Errorf("LoadConfig() error = %v, want %v", err, wantErr)
	}
}

func TestOpenJournal(t *testing.T) {
	logger := SetupLogger("test", &bytes.Buffer{})
	repo, err := OpenJournal(logger, filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("OpenJournal() error = %v", err)
	}
	defer repo.Close()

	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestGracefulShutdownOnParentCancel(t *testing.T) {
	logger := SetupLogger("test", &bytes.Buffer{})
	parent, cancel := context.WithCancel(context.Background())

	cleaned := make(chan struct{})
	ctx, done := GracefulShutdown(parent, logger, time.Second, func(context.Context) {
		close(cleaned)
	})

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	select {
	case <-cleaned:
	default:
		t.Error("cleanup did not run")
	}
	if ctx.Err() == nil {
		t.Error("returned context not cancelled")
	}
	WaitForShutdown(ctx, done)
}
