// Package http serves the server-rendered UI: dashboard, ledger, transaction
// forms, accounts and category breakdowns. Pages are html/template documents
// enhanced with htmx; forms are addressed by signed tokens so each browser
// form maps to one form.Controller.
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"moneymanager/internal/accounts"
	"moneymanager/internal/cache"
	"moneymanager/internal/core"
	"moneymanager/internal/form"
	"moneymanager/internal/gateway"
	applog "moneymanager/internal/log"
	"moneymanager/internal/middleware/ratelimit"
	"moneymanager/internal/middleware/security"
	"moneymanager/internal/middleware/trace"
	"moneymanager/internal/storage"
	appweb "moneymanager/web"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JournalInspector exposes the local journal to readiness and metrics.
type JournalInspector interface {
	Pinger
	Stats(ctx context.Context) (storage.JournalStats, error)
}

// Deps are the collaborators the server needs. Backend, Accounts and Forms
// are required.
type Deps struct {
	Backend   gateway.Backend
	Pinger    Pinger
	Accounts  *accounts.Directory
	Forms     *form.Registry
	Hooks     []form.SavedHook
	Journal   JournalInspector
	Caches    *cache.Manager
	Location  *time.Location
	Clock     core.Clock
	Logger    *applog.Logger
	RateLimit ratelimit.Config
}

type appMetrics struct {
	startedAt       time.Time
	saved           atomic.Int64
	failed          atomic.Int64
	accountsCreated atomic.Int64
}

type Server struct {
	http.Server

	templates *template.Template
	backend   gateway.Backend
	pinger    Pinger
	accounts  *accounts.Directory
	forms     *form.Registry
	hooks     []form.SavedHook
	journal   JournalInspector
	caches    *cache.Manager
	loc       *time.Location
	clock     core.Clock
	logger    *applog.Logger

	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	metrics *appMetrics

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(addr string, d Deps) (*Server, error) {
	if d.Backend == nil || d.Accounts == nil || d.Forms == nil {
		return nil, errors.New("http server: backend, accounts and forms are required")
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Clock == nil {
		d.Clock = core.SystemClock
	}
	if d.Logger == nil {
		d.Logger = applog.Default(applog.ComponentHTTP)
	}

	s := &Server{
		backend:  d.Backend,
		pinger:   d.Pinger,
		accounts: d.Accounts,
		forms:    d.Forms,
		hooks:    d.Hooks,
		journal:  d.Journal,
		caches:   d.Caches,
		loc:      d.Location,
		clock:    d.Clock,
		logger:   d.Logger.WithComponent(applog.ComponentHTTP),
		metrics:  &appMetrics{startedAt: d.Clock.Now()},
	}

	t, err := template.New("").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = t

	clientIP, err := security.NewClientIP()
	if err != nil {
		return nil, err
	}
	s.limiter = ratelimit.NewLimiter(d.RateLimit)
	s.tracer = trace.NewMiddleware(clientIP.Extract, d.Logger)

	mux := http.NewServeMux()
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssets(3600)(http.StripPrefix("/static/", http.FileServerFS(static))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /ui/chart", s.handleChart)
	mux.HandleFunc("GET /categories", s.handleCategories)

	mux.HandleFunc("GET /transactions", s.handleTransactions)
	mux.HandleFunc("GET /transactions/new", s.handleNewForm)
	mux.HandleFunc("GET /transactions/{id}/edit", s.handleEditForm)

	mux.HandleFunc("POST /forms/{token}/fields", s.handleFormFields)
	mux.HandleFunc("POST /forms/{token}/submit", s.handleFormSubmit)
	mux.HandleFunc("POST /forms/{token}/close", s.handleFormClose)

	mux.HandleFunc("GET /accounts", s.handleAccounts)
	mux.HandleFunc("POST /accounts", s.handleCreateAccount)

	limited := s.limiter.Middleware(clientIP.Extract, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "Too many requests, please slow down").Write(w)
	}, http.MethodPost)

	var h http.Handler = mux
	h = limited(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Shutdown stops background work and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		if s.caches != nil {
			s.caches.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// formOptions are applied to every controller the server opens.
func (s *Server) formOptions() []form.Option {
	opts := []form.Option{
		form.WithClock(s.clock),
		form.WithLocation(s.loc),
		form.WithLogger(s.logger),
		form.OnSaved(s.onSaved),
	}
	for _, h := range s.hooks {
		opts = append(opts, form.OnSaved(h))
	}
	return opts
}

// onSaved runs after the backend accepted a transaction. Balances moved, so
// the account cache is stale.
func (s *Server) onSaved(ctx context.Context, tx core.Transaction, mode form.Mode) {
	s.metrics.saved.Add(1)
	s.accounts.Invalidate()
}

// render executes name into a buffer first so a template error never leaves
// a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	s.renderTo(w, r, NewHTMXResponse().Status(status), name, data)
}

// renderTo is render for responses that also carry HTMX triggers.
func (s *Server) renderTo(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate).ErrorContext(r.Context(),
			"Template execution failed", "template", name, applog.FieldError, err)
		InternalServerError("Something went wrong rendering this page").Write(w)
		return
	}
	b.BodyHTML(buf.String()).Write(w)
}
