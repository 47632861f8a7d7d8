package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	applog "moneymanager/internal/log"
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewHTMXResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.metrics.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the backend and, when configured, the journal.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := make(map[string]string)

	check := func(name string, p Pinger) {
		if p == nil {
			checks[name] = "not_configured"
			return
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = "failed: " + err.Error()
			status = "not_ready"
			code = http.StatusServiceUnavailable
			return
		}
		checks[name] = "ok"
	}
	check("backend", s.pinger)
	if s.journal != nil {
		check("journal", s.journal)
	}
	checks["templates"] = "ok"

	NewHTMXResponse().Status(code).JSON(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	tm := s.tracer.GetMetrics()
	rl := s.limiter.GetMetrics()

	metric := func(name, help, kind string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n", name, help, name, kind, name, v)
	}
	metric("http_requests_total", "Total HTTP requests", "counter", tm.TotalRequests)
	metric("http_client_errors_total", "Responses with a 4xx status", "counter", tm.ClientErrors)
	metric("http_server_errors_total", "Responses with a 5xx status", "counter", tm.ServerErrors)
	metric("http_response_time_avg_microseconds", "Average response time", "gauge", tm.AverageResponseTime)
	metric("transactions_saved_total", "Transactions accepted by the backend", "counter", s.metrics.saved.Load())
	metric("transactions_failed_total", "Submissions the backend rejected or never answered", "counter", s.metrics.failed.Load())
	metric("accounts_created_total", "Accounts created", "counter", s.metrics.accountsCreated.Load())
	metric("forms_open", "Open transaction forms", "gauge", int64(s.forms.Len()))
	metric("rate_limit_hits_total", "Requests rejected by the rate limiter", "counter", rl.TotalHits)
	metric("rate_limit_clients", "Clients tracked by the rate limiter", "gauge", rl.ClientCount)
	metric("uptime_seconds", "Seconds since start", "gauge", int64(s.now().Sub(s.metrics.startedAt).Seconds()))

	if s.journal != nil {
		stats, err := s.journal.Stats(r.Context())
		if err != nil {
			s.logger.WarnContext(r.Context(), "Journal stats unavailable", applog.FieldError, err)
			return
		}
		metric("journal_pending", "Journal entries waiting for the ledger", "gauge", int64(stats.Pending))
		metric("journal_synced", "Journal entries mirrored to the ledger", "gauge", int64(stats.Synced))
		metric("journal_errored", "Journal entries whose last sync failed", "gauge", int64(stats.Errored))
	}
}
