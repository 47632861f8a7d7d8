// Package reports assembles the dashboard and category views from backend
// aggregates.
package reports

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"moneymanager/internal/core"
)

// Source is the read side of the backend used by reports.
type Source interface {
	GetSummary(ctx context.Context) (core.Summary, error)
	GetChartSeries(ctx context.Context, g core.Granularity) ([]core.ChartPoint, error)
}

// AccountLister supplies account balances, usually the cached directory.
type AccountLister interface {
	List(ctx context.Context) ([]core.Account, error)
}

// Dashboard is everything the overview page shows.
type Dashboard struct {
	Summary     core.Summary
	Granularity core.Granularity
	Series      []core.ChartPoint
	Accounts    []core.Account
	HealthScore int
	Expenses    []CategoryShare
	Incomes     []CategoryShare
}

// CategoryShare is one category's part of a total.
type CategoryShare struct {
	Name    string
	Amount  core.Money
	Percent float64
}

// Load fetches summary, chart series and accounts concurrently.
func Load(ctx context.Context, src Source, accts AccountLister, g core.Granularity) (Dashboard, error) {
	g, err := core.ParseGranularity(string(g))
	if err != nil {
		return Dashboard{}, err
	}

	var d Dashboard
	d.Granularity = g
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		s, err := src.GetSummary(ctx)
		if err != nil {
			return fmt.Errorf("load summary: %w", err)
		}
		d.Summary = s
		return nil
	})
	eg.Go(func() error {
		pts, err := src.GetChartSeries(ctx, g)
		if err != nil {
			return fmt.Errorf("load chart: %w", err)
		}
		d.Series = pts
		return nil
	})
	if accts != nil {
		eg.Go(func() error {
			list, err := accts.List(ctx)
			if err != nil {
				return err
			}
			d.Accounts = list
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Dashboard{}, err
	}

	d.HealthScore = HealthScore(d.Summary)
	d.Expenses = CategoryShares(d.Summary.ExpenseCategories)
	d.Incomes = CategoryShares(d.Summary.IncomeCategories)
	return d, nil
}

// HealthScore is the savings rate as a whole percentage clamped to 0..100;
// zero when there is no income.
func HealthScore(s core.Summary) int {
	income := s.TotalIncome.Cents
	if income <= 0 {
		return 0
	}
	rate := float64(income-s.TotalExpense.Cents) / float64(income) * 100
	score := int(math.Round(rate))
	return max(0, min(100, score))
}

// CategoryShares orders categories by amount, largest first, ties by name.
func CategoryShares(m map[string]core.Money) []CategoryShare {
	var total int64
	for _, v := range m {
		total += v.Cents
	}
	out := make([]CategoryShare, 0, len(m))
	for name, v := range m {
		pct := 0.0
		if total != 0 {
			pct = float64(v.Cents) / float64(total) * 100
		}
		out = append(out, CategoryShare{Name: name, Amount: v, Percent: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// SeriesMax is the largest single value in the series, used to scale bars.
func SeriesMax(pts []core.ChartPoint) core.Money {
	var m int64
	for _, p := range pts {
		m = max(m, p.Income.Cents, p.Expense.Cents)
	}
	return core.Money{Cents: m}
}
