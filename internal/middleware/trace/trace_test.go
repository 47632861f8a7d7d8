package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	applog "moneymanager/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelDebug, Component: "test", Output: &buf})
	m := NewMiddleware(nil, logger)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		if applog.FromContext(r.Context()).Component() == "unknown" {
			t.Error("request logger not in context")
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x?a=1", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("request id %q is not a uuid", seen)
	}
	if rr.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("response header = %q", rr.Header().Get(RequestIDHeader))
	}
	got := m.GetMetrics()
	if got.TotalRequests != 1 || got.ClientErrors != 1 || got.ServerErrors != 0 {
		t.Fatalf("metrics = %+v", got)
	}
	if !bytes.Contains(buf.Bytes(), []byte(seen)) {
		t.Fatalf("log does not mention request id: %s", buf.String())
	}
	for _, want := range []string{"status_code=404", "path=/x", "success=false", `query="a=1"`} {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Fatalf("completion log missing %q: %s", want, buf.String())
		}
	}
}

func TestMiddlewareKeepsIncomingUUID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	id := uuid.NewString()
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, id)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != id {
		t.Fatalf("seen = %q, want %q", seen, id)
	}
}
