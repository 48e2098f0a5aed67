package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/period"
	"fuelstation/backend/internal/xid"
)

var summaryColumns = []string{
	"id", "period", "start_date", "end_date", "total_sales", "total_expenses",
	"profit", "notes", "employee_id", "created_at", "updated_at",
}

// Sales count regardless of payment status; cancelled expenses and fuel
// supplies are left out.
const profitLossTotalsSQL = `
	SELECT
		(SELECT COALESCE(SUM(total_sales), 0) FROM sales
			WHERE sale_date BETWEEN $1 AND $2) AS total_sales,
		(SELECT COALESCE(SUM(amount), 0) FROM expenses
			WHERE expense_date BETWEEN $1 AND $2 AND payment_status <> 'cancelled') AS total_expenses,
		(SELECT COALESCE(SUM(total_cost), 0) FROM fuel_supplies
			WHERE delivery_date BETWEEN $1 AND $2 AND payment_status <> 'cancelled') AS total_fuel_cost
`

func (s *Store) ProfitLossTotals(ctx context.Context, r period.Range) (domain.ProfitLossTotals, error) {
	var totals domain.ProfitLossTotals
	if err := pgxscan.Get(ctx, s.q(ctx), &totals, profitLossTotalsSQL, r.Start(), r.End()); err != nil {
		return domain.ProfitLossTotals{}, fmt.Errorf("sum profit/loss totals: %w", err)
	}
	return totals, nil
}

func (s *Store) CreateProfitLossSummary(ctx context.Context, summary domain.ProfitLossSummary) (*domain.ProfitLossSummary, error) {
	if summary.ID == "" {
		summary.ID = xid.New()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	if summary.UpdatedAt.IsZero() {
		summary.UpdatedAt = summary.CreatedAt
	}

	_, err := s.exec(ctx, builder().Insert("profit_loss_summaries").Columns(summaryColumns...).Values(
		summary.ID, summary.Period, summary.StartDate, summary.EndDate, summary.TotalSales, summary.TotalExpenses,
		summary.Profit, summary.Notes, summary.EmployeeID, summary.CreatedAt, summary.UpdatedAt,
	))
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListProfitLossSummaries returns snapshots whose covered dates lie inside r,
// newest first.
func (s *Store) ListProfitLossSummaries(ctx context.Context, r period.Range) ([]domain.ProfitLossSummary, error) {
	summaries := make([]domain.ProfitLossSummary, 0)
	query := builder().Select(summaryColumns...).From("profit_loss_summaries").
		Where(sq.GtOrEq{"start_date": r.Start()}).
		Where(sq.LtOrEq{"end_date": r.End()}).
		OrderBy("created_at DESC", "id DESC")
	if err := s.list(ctx, &summaries, query); err != nil {
		return nil, err
	}
	return summaries, nil
}
