package profitloss

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/period"
)

type fakeSource struct {
	totals   domain.ProfitLossTotals
	sales    []domain.Sale
	expenses []domain.Expense
	supplies []domain.FuelSupply
	err      error
}

func (f *fakeSource) ProfitLossTotals(context.Context, period.Range) (domain.ProfitLossTotals, error) {
	return f.totals, f.err
}

func (f *fakeSource) ListSales(context.Context, period.Range) ([]domain.Sale, error) {
	return f.sales, nil
}

func (f *fakeSource) ListExpenses(context.Context, period.Range) ([]domain.Expense, error) {
	return f.expenses, nil
}

func (f *fakeSource) ListFuelSupplies(context.Context, period.Range) ([]domain.FuelSupply, error) {
	return f.supplies, nil
}

func monthRange(t *testing.T) period.Range {
	t.Helper()
	at := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	r, err := period.NewResolver(time.UTC).WithClock(func() time.Time { return at }).Resolve(period.Month, nil, nil)
	require.NoError(t, err)
	return r
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateMonthScenario(t *testing.T) {
	src := &fakeSource{totals: domain.ProfitLossTotals{Sales: d("10000"), Expenses: d("4000"), FuelCost: d("3000")}}

	report, err := New(src).Calculate(context.Background(), monthRange(t), false)
	require.NoError(t, err)

	assert.Equal(t, "March 2024", report.Period)
	assert.True(t, d("7000").Equal(report.TotalCosts))
	assert.True(t, d("3000").Equal(report.Profit))
	assert.True(t, d("30").Equal(report.ProfitMargin), "margin %s", report.ProfitMargin)
	assert.Nil(t, report.Details)
}

func TestMarginIsZeroWithoutSales(t *testing.T) {
	report := Build(monthRange(t), domain.ProfitLossTotals{Sales: decimal.Zero, Expenses: d("250"), FuelCost: d("100")})
	assert.True(t, report.ProfitMargin.IsZero())
	assert.True(t, d("-350").Equal(report.Profit))
}

func TestMarginRounding(t *testing.T) {
	assert.Equal(t, "33.33", Margin(d("1"), d("3")).StringFixed(2))
	assert.Equal(t, "-50.00", Margin(d("-50"), d("100")).StringFixed(2))
}

func TestCalculateDetailsMostRecentFirst(t *testing.T) {
	day := func(n int) time.Time { return time.Date(2024, time.March, n, 9, 0, 0, 0, time.UTC) }
	src := &fakeSource{
		totals: domain.ProfitLossTotals{Sales: d("30"), Expenses: d("5"), FuelCost: d("0")},
		sales: []domain.Sale{
			{ID: "s-old", SaleDate: day(1), TotalSales: d("10")},
			{ID: "s-new", SaleDate: day(5), TotalSales: d("20")},
		},
		expenses: []domain.Expense{
			{ID: "e-old", Date: day(2)},
			{ID: "e-new", Date: day(3)},
		},
	}

	report, err := New(src).Calculate(context.Background(), monthRange(t), true)
	require.NoError(t, err)
	require.NotNil(t, report.Details)
	assert.Equal(t, "s-new", report.Details.Sales[0].ID)
	assert.Equal(t, "e-new", report.Details.Expenses[0].ID)
	assert.NotNil(t, report.Details.FuelSupplies)
	assert.Empty(t, report.Details.FuelSupplies)
}

func TestSnapshotExcludesFuelCost(t *testing.T) {
	src := &fakeSource{totals: domain.ProfitLossTotals{Sales: d("10000"), Expenses: d("4000"), FuelCost: d("3000")}}
	r := monthRange(t)

	summary, err := New(src).Snapshot(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "March 2024", summary.Period)
	assert.True(t, d("6000").Equal(summary.Profit))
	assert.True(t, r.Start().Equal(summary.StartDate))
	assert.True(t, r.End().Equal(summary.EndDate))
}

func TestCalculatePropagatesSourceError(t *testing.T) {
	boom := errors.New("db down")
	_, err := New(&fakeSource{err: boom}).Calculate(context.Background(), monthRange(t), false)
	assert.ErrorIs(t, err, boom)
}
