package postgres

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/period"
	"fuelstation/backend/internal/store"
	"fuelstation/backend/internal/xid"
)

var expenseColumns = []string{
	"id", "amount", "category", "description", "payment_status", "payment_method",
	"expense_date", "COALESCE(shift_id, '') AS shift_id", "employee_id", "created_at",
}

var fuelSupplyColumns = []string{
	"id", "provider_id", "fuel_type", "tank_id", "quantity_liters", "price_per_liter", "total_cost",
	"delivery_date", "payment_status", "payment_method", "employee_id", "created_at",
}

var transactionColumns = []string{
	"id", "amount", "payment_method", "payment_status", "entity_type", "entity_id", "employee_id", "created_at",
}

func (s *Store) insertTransaction(ctx context.Context, entry *domain.Transaction, entityID string) error {
	if entry == nil {
		return nil
	}
	tx := *entry
	if tx.ID == "" {
		tx.ID = xid.New()
	}
	if tx.EntityID == "" {
		tx.EntityID = entityID
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, builder().Insert("transactions").Columns(transactionColumns...).Values(
		tx.ID, tx.Amount, tx.PaymentMethod, tx.PaymentStatus, tx.EntityType, tx.EntityID, tx.EmployeeID, tx.CreatedAt,
	))
	return err
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense, entry *domain.Transaction) (*domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if expense.ShiftID != "" {
			var shift domain.Shift
			lock := builder().Select(shiftColumns...).From("shifts").
				Where(sq.Eq{"id": expense.ShiftID}).
				Suffix("FOR SHARE")
			if err := s.get(ctx, &shift, lock); err != nil {
				return err
			}
			if !shift.IsOpen() {
				return store.ErrShiftClosed
			}
		}

		if _, err := s.exec(ctx, builder().Insert("expenses").Columns(
			"id", "amount", "category", "description", "payment_status", "payment_method",
			"expense_date", "shift_id", "employee_id", "created_at",
		).Values(
			expense.ID, expense.Amount, expense.Category, expense.Description, expense.PaymentStatus,
			expense.PaymentMethod, expense.Date, nullIfEmpty(expense.ShiftID), expense.EmployeeID, expense.CreatedAt,
		)); err != nil {
			return err
		}
		return s.insertTransaction(ctx, entry, expense.ID)
	})
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func (s *Store) GetExpense(ctx context.Context, expenseID string) (*domain.Expense, error) {
	var expense domain.Expense
	if err := s.get(ctx, &expense, builder().Select(expenseColumns...).From("expenses").Where(sq.Eq{"id": expenseID})); err != nil {
		return nil, err
	}
	return &expense, nil
}

func (s *Store) CompleteExpense(ctx context.Context, expenseID string, method domain.PaymentMethod, entry domain.Transaction) (*domain.Expense, error) {
	var saved domain.Expense
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var current domain.Expense
		lock := builder().Select(expenseColumns...).From("expenses").
			Where(sq.Eq{"id": expenseID}).
			Suffix("FOR UPDATE")
		if err := s.get(ctx, &current, lock); err != nil {
			return err
		}
		if current.PaymentStatus != domain.PaymentStatusPending {
			return store.ErrLocked
		}

		update := builder().Update("expenses").
			Set("payment_status", domain.PaymentStatusCompleted).
			Set("payment_method", method).
			Where(sq.Eq{"id": expenseID}).
			Suffix("RETURNING " + joinColumns(expenseColumns))
		if err := s.get(ctx, &saved, update); err != nil {
			return err
		}
		return s.insertTransaction(ctx, &entry, expenseID)
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// DeleteExpense removes a pending expense. An expense linked to a closed
// shift is part of that shift's record and stays.
func (s *Store) DeleteExpense(ctx context.Context, expenseID string) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var current domain.Expense
		lock := builder().Select(expenseColumns...).From("expenses").
			Where(sq.Eq{"id": expenseID}).
			Suffix("FOR UPDATE")
		if err := s.get(ctx, &current, lock); err != nil {
			return err
		}
		if current.PaymentStatus == domain.PaymentStatusCompleted {
			return store.ErrLocked
		}
		if current.ShiftID != "" {
			var shift domain.Shift
			shiftLock := builder().Select(shiftColumns...).From("shifts").
				Where(sq.Eq{"id": current.ShiftID}).
				Suffix("FOR SHARE")
			if err := s.get(ctx, &shift, shiftLock); err != nil {
				return err
			}
			if !shift.IsOpen() {
				return store.ErrShiftClosed
			}
		}

		_, err := s.exec(ctx, builder().Delete("expenses").Where(sq.Eq{"id": expenseID}))
		return err
	})
}

func (s *Store) ListExpenses(ctx context.Context, r period.Range) ([]domain.Expense, error) {
	expenses := make([]domain.Expense, 0)
	query := builder().Select(expenseColumns...).From("expenses").
		Where(sq.GtOrEq{"expense_date": r.Start()}).
		Where(sq.LtOrEq{"expense_date": r.End()}).
		OrderBy("expense_date DESC", "id DESC")
	if err := s.list(ctx, &expenses, query); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) CreateFuelSupply(ctx context.Context, supply domain.FuelSupply, entry *domain.Transaction) (*domain.FuelSupply, error) {
	if supply.ID == "" {
		supply.ID = xid.New()
	}
	if supply.CreatedAt.IsZero() {
		supply.CreatedAt = time.Now().UTC()
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.exec(ctx, builder().Insert("fuel_supplies").Columns(fuelSupplyColumns...).Values(
			supply.ID, supply.ProviderID, supply.FuelType, supply.TankID, supply.QuantityLiters, supply.PricePerLiter,
			supply.TotalCost, supply.DeliveryDate, supply.PaymentStatus, supply.PaymentMethod, supply.EmployeeID, supply.CreatedAt,
		)); err != nil {
			return err
		}
		return s.insertTransaction(ctx, entry, supply.ID)
	})
	if err != nil {
		return nil, err
	}
	return &supply, nil
}

func (s *Store) ListFuelSupplies(ctx context.Context, r period.Range) ([]domain.FuelSupply, error) {
	supplies := make([]domain.FuelSupply, 0)
	query := builder().Select(fuelSupplyColumns...).From("fuel_supplies").
		Where(sq.GtOrEq{"delivery_date": r.Start()}).
		Where(sq.LtOrEq{"delivery_date": r.End()}).
		OrderBy("delivery_date DESC", "id DESC")
	if err := s.list(ctx, &supplies, query); err != nil {
		return nil, err
	}
	return supplies, nil
}

func (s *Store) ListTransactions(ctx context.Context, r period.Range, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	limit := filter.Limit
	if limit < 1 || limit > 1000 {
		limit = 200
	}
	query := builder().Select(transactionColumns...).From("transactions").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))
	if !r.IsZero() {
		query = query.Where(sq.GtOrEq{"created_at": r.Start()}).Where(sq.LtOrEq{"created_at": r.End()})
	}
	if filter.EntityType != "" {
		query = query.Where(sq.Eq{"entity_type": filter.EntityType})
	}

	txs := make([]domain.Transaction, 0)
	if err := s.list(ctx, &txs, query); err != nil {
		return nil, err
	}
	return txs, nil
}
