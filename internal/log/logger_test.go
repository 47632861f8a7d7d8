package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentForm, Output: &buf})
	l.Info("Submitted", FieldTxType, "EXPENSE")
	out := buf.String()
	if !strings.Contains(out, "component=form") || !strings.Contains(out, "transaction_type=EXPENSE") {
		t.Fatalf("unexpected output: %s", out)
	}

	buf.Reset()
	l.WithComponent(ComponentGateway).Debug("Fetched")
	if !strings.Contains(buf.String(), "component=gateway") {
		t.Fatalf("component not switched: %s", buf.String())
	}
}

func TestFieldsBuilder(t *testing.T) {
	f := NewFields().
		WithTransaction("", "TRANSFER", 500, "", "a", "b").
		WithOperation(OpSubmit)
	if _, ok := f[FieldTxID]; ok {
		t.Fatalf("empty id should be skipped")
	}
	if f[FieldToAccount] != "b" || f[FieldOperation] != OpSubmit {
		t.Fatalf("unexpected fields %v", f)
	}
	if len(f.ToSlice()) != len(f)*2 {
		t.Fatalf("slice length mismatch")
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Output: &buf, Component: ComponentHTTP})
	ctx := NewContext(context.Background(), base.With(NewFields().WithRequestID("req_1").ToSlice()...))
	FromContext(ctx).Info("inside")
	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Fatalf("request id missing: %s", buf.String())
	}

	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}

func TestHTTPFields(t *testing.T) {
	f := NewFields().
		WithClientIP("10.0.0.1").
		WithHTTPRequest("POST", "/forms/x", "", "curl", "").
		WithHTTPResponse(409, 3, false)
	if f[FieldClientIP] != "10.0.0.1" || f[FieldMethod] != "POST" || f[FieldStatusCode] != 409 || f[FieldSuccess] != false {
		t.Fatalf("unexpected fields %v", f)
	}
}
