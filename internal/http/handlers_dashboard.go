package http

import (
	"errors"
	"net/http"

	"moneymanager/internal/accounts"
	"moneymanager/internal/core"
	applog "moneymanager/internal/log"
	"moneymanager/internal/reports"
)

type chartRow struct {
	Date       string
	Income     core.Money
	Expense    core.Money
	IncomePct  int
	ExpensePct int
}

type chartData struct {
	Granularity   core.Granularity
	Granularities []core.Granularity
	Rows          []chartRow
}

type dashboardPage struct {
	page
	reports.Dashboard
	Chart        chartData
	TotalBalance core.Money
}

type categoriesPage struct {
	page
	Expenses []reports.CategoryShare
	Incomes  []reports.CategoryShare
}

func newChart(g core.Granularity, pts []core.ChartPoint) chartData {
	top := reports.SeriesMax(pts).Cents
	pct := func(v int64) int {
		if top <= 0 || v <= 0 {
			return 0
		}
		return max(1, int(v*100/top))
	}
	c := chartData{
		Granularity:   g,
		Granularities: []core.Granularity{core.Weekly, core.Monthly, core.Yearly},
	}
	for _, p := range pts {
		c.Rows = append(c.Rows, chartRow{
			Date:       p.Date,
			Income:     p.Income,
			Expense:    p.Expense,
			IncomePct:  pct(p.Income.Cents),
			ExpensePct: pct(p.Expense.Cents),
		})
	}
	return c
}

// handleDashboard renders totals, health score, chart and balances.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := dashboardPage{page: page{Title: "Dashboard", Active: "dashboard"}}

	g, err := core.ParseGranularity(r.URL.Query().Get("granularity"))
	if err != nil {
		BadRequestError("Granularity must be weekly, monthly or yearly").Write(w)
		return
	}

	d, err := reports.Load(ctx, s.backend, s.accounts, g)
	if err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentReports).ErrorContext(ctx,
			"Dashboard load failed", applog.FieldError, err)
		data.Error = backendMessage(err)
		data.Chart = newChart(g, nil)
		s.render(w, r, http.StatusBadGateway, "index.html", data)
		return
	}
	data.Dashboard = d
	data.Chart = newChart(d.Granularity, d.Series)
	data.TotalBalance = accounts.TotalBalance(d.Accounts)
	s.render(w, r, http.StatusOK, "index.html", data)
}

// handleChart renders just the chart for a granularity switch.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	g, err := core.ParseGranularity(r.URL.Query().Get("granularity"))
	if err != nil {
		BadRequestError("Granularity must be weekly, monthly or yearly").Write(w)
		return
	}
	pts, err := s.backend.GetChartSeries(ctx, g)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Chart load failed", applog.FieldError, err)
		BadGatewayError(backendMessage(err)).Write(w)
		return
	}
	s.render(w, r, http.StatusOK, "chart", newChart(g, pts))
}

// handleCategories renders income and expense breakdowns.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := categoriesPage{page: page{Title: "Categories", Active: "categories"}}

	sum, err := s.backend.GetSummary(ctx)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Summary load failed", applog.FieldError, err)
		data.Error = backendMessage(err)
		status := http.StatusBadGateway
		if errors.Is(err, core.ErrRejected) {
			status = http.StatusBadRequest
		}
		s.render(w, r, status, "categories.html", data)
		return
	}
	data.Expenses = reports.CategoryShares(sum.ExpenseCategories)
	data.Incomes = reports.CategoryShares(sum.IncomeCategories)
	s.render(w, r, http.StatusOK, "categories.html", data)
}
