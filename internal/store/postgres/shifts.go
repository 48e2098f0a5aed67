package postgres

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/period"
	"fuelstation/backend/internal/store"
	"fuelstation/backend/internal/xid"
)

var shiftColumns = []string{
	"id", "employee_id", "employee_ids", "status", "opening_cash",
	"closing_cash", "sales_total", "start_time", "end_time",
}

var saleColumns = []string{
	"id", "shift_id", "filling_system_id", "fuel_type", "quantity", "price_per_unit",
	"total_sales", "payment_method", "payment_status", "employee_id", "sale_date", "created_at",
}

// CreateShift serialises concurrent starts with a transaction-scoped advisory
// lock on the scope key, then checks for an OPEN shift before inserting.
func (s *Store) CreateShift(ctx context.Context, shift domain.Shift, scopeEmployeeID string) (*domain.Shift, error) {
	if shift.ID == "" {
		shift.ID = xid.New()
	}
	if shift.StartTime.IsZero() {
		shift.StartTime = time.Now().UTC()
	}
	if shift.EmployeeIDs == nil {
		shift.EmployeeIDs = []string{}
	}
	shift.Status = domain.ShiftStatusOpen
	shift.SalesTotal = decimal.Zero
	shift.ClosingCash = nil
	shift.EndTime = nil

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.q(ctx).Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", "shift_open:"+scopeEmployeeID); err != nil {
			return err
		}

		open := builder().Select("1").From("shifts").
			Where(sq.Eq{"status": domain.ShiftStatusOpen}).
			Limit(1)
		if scopeEmployeeID != "" {
			open = open.Where(sq.Eq{"employee_id": scopeEmployeeID})
		}
		var one int
		switch err := s.get(ctx, &one, open); {
		case err == nil:
			return store.ErrConflict
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		_, err := s.exec(ctx, builder().Insert("shifts").Columns(shiftColumns...).Values(
			shift.ID, shift.EmployeeID, shift.EmployeeIDs, shift.Status, shift.OpeningCash,
			nil, shift.SalesTotal, shift.StartTime, nil,
		))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func (s *Store) GetShift(ctx context.Context, shiftID string) (*domain.Shift, error) {
	var shift domain.Shift
	if err := s.get(ctx, &shift, builder().Select(shiftColumns...).From("shifts").Where(sq.Eq{"id": shiftID})); err != nil {
		return nil, err
	}
	return &shift, nil
}

func (s *Store) GetOpenShift(ctx context.Context, scopeEmployeeID string) (*domain.Shift, error) {
	query := builder().Select(shiftColumns...).From("shifts").
		Where(sq.Eq{"status": domain.ShiftStatusOpen}).
		OrderBy("start_time DESC").
		Limit(1)
	if scopeEmployeeID != "" {
		query = query.Where(sq.Eq{"employee_id": scopeEmployeeID})
	}
	var shift domain.Shift
	if err := s.get(ctx, &shift, query); err != nil {
		return nil, err
	}
	return &shift, nil
}

func (s *Store) ListShifts(ctx context.Context, status domain.ShiftStatus, limit int) ([]domain.Shift, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	query := builder().Select(shiftColumns...).From("shifts").
		OrderBy("start_time DESC", "id DESC").
		Limit(uint64(limit))
	if status != "" {
		query = query.Where(sq.Eq{"status": status})
	}
	shifts := make([]domain.Shift, 0)
	if err := s.list(ctx, &shifts, query); err != nil {
		return nil, err
	}
	return shifts, nil
}

// IncrementShiftSales is a single conditional UPDATE so concurrent sales never
// lose an increment.
func (s *Store) IncrementShiftSales(ctx context.Context, shiftID string, delta decimal.Decimal) (decimal.Decimal, error) {
	query, args, err := builder().Update("shifts").
		Set("sales_total", sq.Expr("sales_total + ?", delta)).
		Where(sq.Eq{"id": shiftID, "status": domain.ShiftStatusOpen}).
		Suffix("RETURNING sales_total").
		ToSql()
	if err != nil {
		return decimal.Zero, err
	}

	var total decimal.Decimal
	err = s.q(ctx).QueryRow(ctx, query, args...).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, s.shiftWriteError(ctx, shiftID)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// shiftWriteError explains why a conditional write on an OPEN shift matched
// nothing.
func (s *Store) shiftWriteError(ctx context.Context, shiftID string) error {
	if _, err := s.GetShift(ctx, shiftID); err != nil {
		return err
	}
	return store.ErrShiftClosed
}

func (s *Store) CloseShift(ctx context.Context, params domain.ShiftClose) (*domain.Shift, error) {
	endTime := params.EndTime
	if endTime.IsZero() {
		endTime = time.Now().UTC()
	}

	var closed domain.Shift
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var current domain.Shift
		lock := builder().Select(shiftColumns...).From("shifts").
			Where(sq.Eq{"id": params.ShiftID}).
			Suffix("FOR UPDATE")
		if err := s.get(ctx, &current, lock); err != nil {
			return err
		}
		if !current.IsOpen() {
			return store.ErrShiftClosed
		}
		if !current.SalesTotal.Equal(params.ExpectedSalesTotal) {
			return store.ErrStaleShift
		}

		update := builder().Update("shifts").
			Set("status", domain.ShiftStatusClosed).
			Set("closing_cash", params.ClosingCash).
			Set("end_time", endTime).
			Where(sq.Eq{"id": params.ShiftID}).
			Suffix("RETURNING " + joinColumns(shiftColumns))
		if err := s.get(ctx, &closed, update); err != nil {
			return err
		}

		if len(params.PaymentMethods) == 0 {
			return nil
		}
		insert := builder().Insert("shift_payment_methods").
			Columns("id", "shift_id", "payment_method", "amount", "reference", "created_at")
		for _, row := range params.PaymentMethods {
			if row.ID == "" {
				row.ID = xid.New()
			}
			if row.CreatedAt.IsZero() {
				row.CreatedAt = endTime
			}
			insert = insert.Values(row.ID, params.ShiftID, row.PaymentMethod, row.Amount, row.Reference, row.CreatedAt)
		}
		_, err := s.exec(ctx, insert)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &closed, nil
}

func (s *Store) ListShiftPaymentMethods(ctx context.Context, shiftID string) ([]domain.ShiftPaymentMethod, error) {
	if _, err := s.GetShift(ctx, shiftID); err != nil {
		return nil, err
	}
	rows := make([]domain.ShiftPaymentMethod, 0)
	query := builder().
		Select("id", "shift_id", "payment_method", "amount", "reference", "created_at").
		From("shift_payment_methods").
		Where(sq.Eq{"shift_id": shiftID}).
		OrderBy("created_at", "id")
	if err := s.list(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) RecordSale(ctx context.Context, sale domain.Sale, entry *domain.Transaction) (*domain.Sale, error) {
	if sale.ID == "" {
		sale.ID = xid.New()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = sale.CreatedAt
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.IncrementShiftSales(ctx, sale.ShiftID, sale.TotalSales); err != nil {
			return err
		}
		if _, err := s.exec(ctx, builder().Insert("sales").Columns(saleColumns...).Values(
			sale.ID, sale.ShiftID, sale.FillingSystemID, sale.FuelType, sale.Quantity, sale.PricePerUnit,
			sale.TotalSales, sale.PaymentMethod, sale.PaymentStatus, sale.EmployeeID, sale.SaleDate, sale.CreatedAt,
		)); err != nil {
			return err
		}
		return s.insertTransaction(ctx, entry, sale.ID)
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	var sale domain.Sale
	if err := s.get(ctx, &sale, builder().Select(saleColumns...).From("sales").Where(sq.Eq{"id": saleID})); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	var saved domain.Sale
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var current domain.Sale
		lock := builder().Select(saleColumns...).From("sales").
			Where(sq.Eq{"id": sale.ID}).
			Suffix("FOR UPDATE")
		if err := s.get(ctx, &current, lock); err != nil {
			return err
		}
		if _, err := s.IncrementShiftSales(ctx, current.ShiftID, sale.TotalSales.Sub(current.TotalSales)); err != nil {
			return err
		}

		update := builder().Update("sales").
			Set("quantity", sale.Quantity).
			Set("price_per_unit", sale.PricePerUnit).
			Set("total_sales", sale.TotalSales).
			Set("payment_method", sale.PaymentMethod).
			Set("payment_status", sale.PaymentStatus).
			Where(sq.Eq{"id": sale.ID}).
			Suffix("RETURNING " + joinColumns(saleColumns))
		return s.get(ctx, &saved, update)
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *Store) DeleteSale(ctx context.Context, saleID string) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var current domain.Sale
		lock := builder().Select(saleColumns...).From("sales").
			Where(sq.Eq{"id": saleID}).
			Suffix("FOR UPDATE")
		if err := s.get(ctx, &current, lock); err != nil {
			return err
		}
		if _, err := s.IncrementShiftSales(ctx, current.ShiftID, current.TotalSales.Neg()); err != nil {
			return err
		}
		_, err := s.exec(ctx, builder().Delete("sales").Where(sq.Eq{"id": saleID}))
		return err
	})
}

func (s *Store) ListSales(ctx context.Context, r period.Range) ([]domain.Sale, error) {
	sales := make([]domain.Sale, 0)
	query := builder().Select(saleColumns...).From("sales").
		Where(sq.GtOrEq{"sale_date": r.Start()}).
		Where(sq.LtOrEq{"sale_date": r.End()}).
		OrderBy("sale_date DESC", "id DESC")
	if err := s.list(ctx, &sales, query); err != nil {
		return nil, err
	}
	return sales, nil
}
