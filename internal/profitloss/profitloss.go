// Package profitloss combines sales, expenses and fuel-supply costs over a
// resolved period into a profit/loss report.
package profitloss

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/period"
)

var hundred = decimal.NewFromInt(100)

// Source is the slice of the store the aggregator reads from.
type Source interface {
	ProfitLossTotals(ctx context.Context, r period.Range) (domain.ProfitLossTotals, error)
	ListSales(ctx context.Context, r period.Range) ([]domain.Sale, error)
	ListExpenses(ctx context.Context, r period.Range) ([]domain.Expense, error)
	ListFuelSupplies(ctx context.Context, r period.Range) ([]domain.FuelSupply, error)
}

type Aggregator struct {
	src Source
}

func New(src Source) *Aggregator {
	return &Aggregator{src: src}
}

// Calculate builds the report for r. With includeDetails the line items are
// attached, each list most recent first.
func (a *Aggregator) Calculate(ctx context.Context, r period.Range, includeDetails bool) (domain.ProfitLossReport, error) {
	totals, err := a.src.ProfitLossTotals(ctx, r)
	if err != nil {
		return domain.ProfitLossReport{}, fmt.Errorf("profit/loss totals: %w", err)
	}
	report := Build(r, totals)
	if !includeDetails {
		return report, nil
	}

	details, err := a.details(ctx, r)
	if err != nil {
		return domain.ProfitLossReport{}, err
	}
	report.Details = details
	return report, nil
}

func (a *Aggregator) details(ctx context.Context, r period.Range) (*domain.ProfitLossDetails, error) {
	sales, err := a.src.ListSales(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	expenses, err := a.src.ListExpenses(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	supplies, err := a.src.ListFuelSupplies(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("list fuel supplies: %w", err)
	}

	sort.SliceStable(sales, func(i, j int) bool { return sales[i].SaleDate.After(sales[j].SaleDate) })
	sort.SliceStable(expenses, func(i, j int) bool { return expenses[i].Date.After(expenses[j].Date) })
	sort.SliceStable(supplies, func(i, j int) bool { return supplies[i].DeliveryDate.After(supplies[j].DeliveryDate) })

	if sales == nil {
		sales = []domain.Sale{}
	}
	if expenses == nil {
		expenses = []domain.Expense{}
	}
	if supplies == nil {
		supplies = []domain.FuelSupply{}
	}
	return &domain.ProfitLossDetails{Sales: sales, Expenses: expenses, FuelSupplies: supplies}, nil
}

// Snapshot computes the reduced figures persisted as a ProfitLossSummary:
// sales, expenses and profit = sales - expenses. Fuel cost is not part of it.
func (a *Aggregator) Snapshot(ctx context.Context, r period.Range) (domain.ProfitLossSummary, error) {
	totals, err := a.src.ProfitLossTotals(ctx, r)
	if err != nil {
		return domain.ProfitLossSummary{}, fmt.Errorf("profit/loss totals: %w", err)
	}
	sales := totals.Sales.Round(2)
	expenses := totals.Expenses.Round(2)
	return domain.ProfitLossSummary{
		Period:        r.Label(),
		StartDate:     r.Start(),
		EndDate:       r.End(),
		TotalSales:    sales,
		TotalExpenses: expenses,
		Profit:        sales.Sub(expenses),
	}, nil
}

// Build derives costs, profit and margin from raw totals.
func Build(r period.Range, totals domain.ProfitLossTotals) domain.ProfitLossReport {
	sales := totals.Sales.Round(2)
	expenses := totals.Expenses.Round(2)
	fuel := totals.FuelCost.Round(2)
	costs := expenses.Add(fuel)
	profit := sales.Sub(costs)

	return domain.ProfitLossReport{
		Period:        r.Label(),
		StartDate:     r.Start(),
		EndDate:       r.End(),
		TotalSales:    sales,
		TotalExpenses: expenses,
		TotalFuelCost: fuel,
		TotalCosts:    costs,
		Profit:        profit,
		ProfitMargin:  Margin(profit, sales),
	}
}

// Margin is profit as a percentage of sales, rounded to 2 places. Zero when
// there are no sales.
func Margin(profit, sales decimal.Decimal) decimal.Decimal {
	if !sales.IsPositive() {
		return decimal.Zero
	}
	return profit.Div(sales).Mul(hundred).Round(2)
}
