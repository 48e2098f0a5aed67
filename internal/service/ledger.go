package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/backend/internal/apperror"
	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/period"
	"fuelstation/backend/internal/store"
	"fuelstation/backend/internal/xid"
)

func (s *Service) CreateExpense(ctx context.Context, req domain.CreateExpenseRequest) (domain.Expense, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		return domain.Expense{}, apperror.NewValidation("category is required")
	}
	if !req.Amount.IsPositive() {
		return domain.Expense{}, apperror.NewValidation("amount must be greater than 0")
	}
	if req.PaymentStatus == "" {
		req.PaymentStatus = domain.PaymentStatusPending
	}
	if !req.PaymentStatus.Valid() {
		return domain.Expense{}, apperror.NewValidationf("unsupported payment status %q", req.PaymentStatus)
	}
	if req.PaymentMethod != "" && !req.PaymentMethod.Valid() {
		return domain.Expense{}, apperror.NewValidationf("unsupported payment method %q", req.PaymentMethod)
	}
	if req.PaymentStatus == domain.PaymentStatusCompleted && req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodCash
	}

	now := s.now().UTC()
	date := now
	if req.Date != nil && !req.Date.IsZero() {
		date = req.Date.UTC()
	}
	employeeID := actorID(ctx)
	expense := domain.Expense{
		ID:            xid.New(),
		Amount:        req.Amount.Round(2),
		Category:      req.Category,
		Description:   strings.TrimSpace(req.Description),
		PaymentStatus: req.PaymentStatus,
		PaymentMethod: req.PaymentMethod,
		Date:          date,
		ShiftID:       strings.TrimSpace(req.ShiftID),
		EmployeeID:    employeeID,
		CreatedAt:     now,
	}

	var entry *domain.Transaction
	if expense.PaymentStatus == domain.PaymentStatusCompleted {
		e := ledgerEntry(domain.EntityTypeExpense, expense.ID, expense.Amount, expense.PaymentMethod, employeeID, now)
		entry = &e
	}

	saved, err := s.repo.CreateExpense(ctx, expense, entry)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrShiftClosed):
			return domain.Expense{}, apperror.NewInvalidState("cannot link an expense to a closed shift").
				WithDetail("shift_id", expense.ShiftID)
		case errors.Is(err, store.ErrNotFound):
			return domain.Expense{}, apperror.NewNotFound("shift", expense.ShiftID)
		}
		return domain.Expense{}, s.fail(ctx, "create expense", err)
	}

	s.invalidateReports(ctx)
	s.logAudit(ctx, "expense_create", "expense", saved.ID, saved.Category+" "+saved.Amount.StringFixed(2))
	return *saved, nil
}

// CompleteExpense marks a pending expense paid and appends its ledger entry.
func (s *Service) CompleteExpense(ctx context.Context, req domain.CompleteExpenseRequest) (domain.Expense, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	current, err := s.repo.GetExpense(ctx, req.ExpenseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Expense{}, apperror.NewNotFound("expense", req.ExpenseID)
		}
		return domain.Expense{}, s.fail(ctx, "complete expense", err)
	}
	if current.PaymentStatus != domain.PaymentStatusPending {
		return domain.Expense{}, apperror.NewInvalidState("only pending expenses can be completed").
			WithDetail("payment_status", current.PaymentStatus)
	}

	method := req.PaymentMethod
	if method == "" {
		method = current.PaymentMethod
	}
	if method == "" {
		method = domain.PaymentMethodCash
	}
	if !method.Valid() {
		return domain.Expense{}, apperror.NewValidationf("unsupported payment method %q", method)
	}

	entry := ledgerEntry(domain.EntityTypeExpense, current.ID, current.Amount, method, actorID(ctx), s.now().UTC())
	saved, err := s.repo.CompleteExpense(ctx, current.ID, method, entry)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrLocked):
			return domain.Expense{}, apperror.NewInvalidState("only pending expenses can be completed")
		case errors.Is(err, store.ErrNotFound):
			return domain.Expense{}, apperror.NewNotFound("expense", req.ExpenseID)
		}
		return domain.Expense{}, s.fail(ctx, "complete expense", err)
	}

	s.invalidateReports(ctx)
	s.logAudit(ctx, "expense_complete", "expense", saved.ID, string(method)+" "+saved.Amount.StringFixed(2))
	return *saved, nil
}

func (s *Service) DeleteExpense(ctx context.Context, expenseID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.repo.DeleteExpense(ctx, expenseID); err != nil {
		switch {
		case errors.Is(err, store.ErrLocked):
			return apperror.NewInvalidState("completed expenses cannot be deleted").
				WithDetail("expense_id", expenseID)
		case errors.Is(err, store.ErrShiftClosed):
			return apperror.NewInvalidState("expenses linked to a closed shift cannot be deleted").
				WithDetail("expense_id", expenseID)
		case errors.Is(err, store.ErrNotFound):
			return apperror.NewNotFound("expense", expenseID)
		}
		return s.fail(ctx, "delete expense", err)
	}

	s.invalidateReports(ctx)
	s.logAudit(ctx, "expense_delete", "expense", expenseID, "")
	return nil
}

func (s *Service) CreateFuelSupply(ctx context.Context, req domain.CreateFuelSupplyRequest) (domain.FuelSupply, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req.ProviderID = strings.TrimSpace(req.ProviderID)
	req.FuelType = strings.TrimSpace(req.FuelType)
	if req.ProviderID == "" || req.FuelType == "" {
		return domain.FuelSupply{}, apperror.NewValidation("provider_id and fuel_type are required")
	}
	if !req.QuantityLiters.IsPositive() || !req.PricePerLiter.IsPositive() {
		return domain.FuelSupply{}, apperror.NewValidation("quantity_liters and price_per_liter must be greater than 0")
	}
	if req.PaymentStatus == "" {
		req.PaymentStatus = domain.PaymentStatusPending
	}
	if !req.PaymentStatus.Valid() {
		return domain.FuelSupply{}, apperror.NewValidationf("unsupported payment status %q", req.PaymentStatus)
	}
	if req.PaymentMethod != "" && !req.PaymentMethod.Valid() {
		return domain.FuelSupply{}, apperror.NewValidationf("unsupported payment method %q", req.PaymentMethod)
	}
	if req.PaymentStatus == domain.PaymentStatusCompleted && req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodBankTransfer
	}

	now := s.now().UTC()
	delivered := now
	if req.DeliveryDate != nil && !req.DeliveryDate.IsZero() {
		delivered = req.DeliveryDate.UTC()
	}
	employeeID := actorID(ctx)
	supply := domain.FuelSupply{
		ID:             xid.New(),
		ProviderID:     req.ProviderID,
		FuelType:       req.FuelType,
		TankID:         strings.TrimSpace(req.TankID),
		QuantityLiters: req.QuantityLiters,
		PricePerLiter:  req.PricePerLiter,
		TotalCost:      req.QuantityLiters.Mul(req.PricePerLiter).Round(2),
		DeliveryDate:   delivered,
		PaymentStatus:  req.PaymentStatus,
		PaymentMethod:  req.PaymentMethod,
		EmployeeID:     employeeID,
		CreatedAt:      now,
	}

	var entry *domain.Transaction
	if supply.PaymentStatus == domain.PaymentStatusCompleted {
		e := ledgerEntry(domain.EntityTypeFuelSupply, supply.ID, supply.TotalCost, supply.PaymentMethod, employeeID, now)
		entry = &e
	}

	saved, err := s.repo.CreateFuelSupply(ctx, supply, entry)
	if err != nil {
		return domain.FuelSupply{}, s.fail(ctx, "create fuel supply", err)
	}

	s.invalidateReports(ctx)
	s.logAudit(ctx, "fuel_supply_create", "fuel_supply", saved.ID,
		saved.FuelType+" "+saved.QuantityLiters.String()+"L total="+saved.TotalCost.StringFixed(2))
	return *saved, nil
}

// ListTransactions returns ledger entries, optionally bounded by a period and
// filtered by entity type. An empty period type means no date bound.
func (s *Service) ListTransactions(ctx context.Context, q domain.PeriodQuery, entityType string, limit int) ([]domain.Transaction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := domain.TransactionFilter{EntityType: domain.EntityType(entityType), Limit: limit}
	if filter.EntityType != "" && !filter.EntityType.Valid() {
		return nil, apperror.NewValidationf("unknown entity type %q", entityType)
	}

	var r period.Range
	if strings.TrimSpace(q.PeriodType) != "" {
		resolved, err := s.resolver.ResolveStrings(q.PeriodType, q.StartDate, q.EndDate)
		if err != nil {
			return nil, err
		}
		r = resolved
	}

	txs, err := s.repo.ListTransactions(ctx, r, filter)
	if err != nil {
		return nil, s.fail(ctx, "list transactions", err)
	}
	return txs, nil
}

func ledgerEntry(entityType domain.EntityType, entityID string, amount decimal.Decimal, method domain.PaymentMethod, employeeID string, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:            xid.New(),
		Amount:        amount,
		PaymentMethod: method,
		PaymentStatus: domain.PaymentStatusCompleted,
		EntityType:    entityType,
		EntityID:      entityID,
		EmployeeID:    employeeID,
		CreatedAt:     at,
	}
}
