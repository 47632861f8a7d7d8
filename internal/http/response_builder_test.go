package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"moneymanager/internal/core"
)

func TestResponseBuilderTriggers(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHTMXResponse().
		TriggerTransactionSaved("tx-1", core.Transfer, "create").
		TriggerSuccessNotification("Transaction saved").
		BodyHTML("<p>ok</p>").
		Write(rr)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var triggers map[string]map[string]any
	if err := json.Unmarshal([]byte(rr.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	saved := triggers[EventTransactionSaved]
	if saved["id"] != "tx-1" || saved["type"] != "TRANSFER" || saved["mode"] != "create" {
		t.Errorf("saved trigger = %v", saved)
	}
	if triggers["show-notification"]["type"] != "success" {
		t.Errorf("notification = %v", triggers["show-notification"])
	}
	if rr.Header().Get("Content-Type") != "text/html; charset=utf-8" {
		t.Errorf("content type = %q", rr.Header().Get("Content-Type"))
	}
}

func TestErrorResponseEscapes(t *testing.T) {
	rr := httptest.NewRecorder()
	GoneError(`<script>alert(1)</script>`).Write(rr)

	if rr.Code != http.StatusGone {
		t.Fatalf("status = %d", rr.Code)
	}
	want := `<div class="error">&lt;script&gt;alert(1)&lt;/script&gt;</div>`
	if rr.Body.String() != want {
		t.Errorf("body = %q", rr.Body.String())
	}
	if rr.Header().Get("HX-Trigger") != "" {
		t.Errorf("unexpected trigger header")
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "$0.00"},
		{123456, "$1,234.56"},
		{-500, "-$5.00"},
	}
	for _, tt := range tests {
		if got := formatMoney(core.Money{Cents: tt.cents}); got != tt.want {
			t.Errorf("formatMoney(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}
