package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"fuelstation/backend/internal/apperror"
	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/reconcile"
	"fuelstation/backend/internal/store"
	"fuelstation/backend/internal/xid"
)

// StartShift opens a new shift owned by the acting employee (or the first id
// in req.EmployeeIDs when there is no actor). Fails with a conflict if a shift
// is already open in the configured scope.
func (s *Service) StartShift(ctx context.Context, req domain.StartShiftRequest) (domain.Shift, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if req.OpeningCash.IsNegative() {
		return domain.Shift{}, apperror.NewValidation("opening_cash must not be negative")
	}
	employeeIDs := normalizeIDs(req.EmployeeIDs, actorID(ctx))
	if len(employeeIDs) == 0 {
		return domain.Shift{}, apperror.NewValidation("an employee is required to start a shift")
	}
	owner := employeeIDs[0]

	shift := domain.Shift{
		ID:          xid.New(),
		EmployeeID:  owner,
		EmployeeIDs: employeeIDs,
		Status:      domain.ShiftStatusOpen,
		OpeningCash: req.OpeningCash.Round(2),
		SalesTotal:  decimal.Zero,
		StartTime:   s.now().UTC(),
	}
	saved, err := s.repo.CreateShift(ctx, shift, s.scopeFor(owner))
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Shift{}, apperror.NewConflict("a shift is already open").
				WithDetail("scope", s.scope).
				WithDetail("employee_id", owner)
		}
		return domain.Shift{}, s.fail(ctx, "start shift", err)
	}

	s.logAudit(ctx, "shift_start", "shift", saved.ID, "opening_cash="+saved.OpeningCash.StringFixed(2))
	return *saved, nil
}

func (s *Service) GetShift(ctx context.Context, shiftID string) (domain.Shift, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	shift, err := s.repo.GetShift(ctx, shiftID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Shift{}, apperror.NewNotFound("shift", shiftID)
		}
		return domain.Shift{}, s.fail(ctx, "get shift", err)
	}
	return *shift, nil
}

// GetActiveShift returns the OPEN shift visible to the caller: any open shift
// in system scope, the caller's own in employee scope.
func (s *Service) GetActiveShift(ctx context.Context) (domain.Shift, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	shift, err := s.activeShift(ctx)
	if err != nil {
		return domain.Shift{}, err
	}
	return *shift, nil
}

func (s *Service) activeShift(ctx context.Context) (*domain.Shift, error) {
	scopeID := s.scopeFor(actorID(ctx))
	shift, err := s.repo.GetOpenShift(ctx, scopeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NewNotFound("open shift", scopeID)
		}
		return nil, s.fail(ctx, "get active shift", err)
	}
	return shift, nil
}

func (s *Service) ListShifts(ctx context.Context, status string, limit int) ([]domain.Shift, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	st := domain.ShiftStatus(status)
	if st != "" && st != domain.ShiftStatusOpen && st != domain.ShiftStatusClosed {
		return nil, apperror.NewValidationf("unknown shift status %q", status)
	}
	shifts, err := s.repo.ListShifts(ctx, st, limit)
	if err != nil {
		return nil, s.fail(ctx, "list shifts", err)
	}
	return shifts, nil
}

// CloseShift reconciles the submitted payment breakdown against the shift's
// sales total, derives the cash variance and moves the shift to CLOSED.
func (s *Service) CloseShift(ctx context.Context, req domain.CloseShiftRequest) (domain.CloseShiftResponse, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if req.ShiftID == "" {
		return domain.CloseShiftResponse{}, apperror.NewValidation("shift id is required")
	}
	if req.ClosingCash.IsNegative() {
		return domain.CloseShiftResponse{}, apperror.NewValidation("closing_cash must not be negative")
	}

	shift, err := s.repo.GetShift(ctx, req.ShiftID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.CloseShiftResponse{}, apperror.NewNotFound("shift", req.ShiftID)
		}
		return domain.CloseShiftResponse{}, s.fail(ctx, "close shift", err)
	}
	if !shift.IsOpen() {
		return domain.CloseShiftResponse{}, apperror.NewInvalidState("shift is already closed").
			WithDetail("shift_id", shift.ID)
	}

	if err := reconcile.ValidateAllocations(shift.SalesTotal, req.PaymentMethods); err != nil {
		return domain.CloseShiftResponse{}, err
	}

	closingCash := req.ClosingCash.Round(2)
	variance := reconcile.ComputeVariance(shift.OpeningCash, shift.SalesTotal, closingCash)
	flagged, err := s.policy.Flags(variance, closingCash, shift.SalesTotal)
	if err != nil {
		s.log.WithContext(ctx).Warnw("variance policy evaluation failed", "shift_id", shift.ID, "error", err)
		flagged = false
	}
	if flagged && s.policy.Rejects() {
		return domain.CloseShiftResponse{}, apperror.NewValidation("cash difference exceeds the configured variance policy").
			WithDetail("cash_difference", variance.CashDifference.StringFixed(2)).
			WithDetail("expected_cash", variance.ExpectedCash.StringFixed(2)).
			WithDetail("policy", s.policy.Expression())
	}

	rows := reconcile.AllocationsToRows(shift.ID, req.PaymentMethods, xid.New)
	closed, err := s.repo.CloseShift(ctx, domain.ShiftClose{
		ShiftID:            shift.ID,
		ClosingCash:        closingCash,
		EndTime:            s.now().UTC(),
		ExpectedSalesTotal: shift.SalesTotal,
		PaymentMethods:     rows,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domain.CloseShiftResponse{}, apperror.NewNotFound("shift", shift.ID)
		case errors.Is(err, store.ErrShiftClosed):
			return domain.CloseShiftResponse{}, apperror.NewInvalidState("shift is already closed").
				WithDetail("shift_id", shift.ID)
		case errors.Is(err, store.ErrStaleShift):
			return domain.CloseShiftResponse{}, apperror.NewConflict("shift sales changed while closing, retry the close").
				WithDetail("shift_id", shift.ID)
		}
		return domain.CloseShiftResponse{}, s.fail(ctx, "close shift", err)
	}

	if flagged {
		s.log.WithContext(ctx).Warnw("cash variance flagged",
			"shift_id", closed.ID,
			"cash_difference", variance.CashDifference.StringFixed(2),
			"expected_cash", variance.ExpectedCash.StringFixed(2),
		)
	}

	totals := reconcile.MethodTotals(rows)
	s.logAudit(ctx, "shift_close", "shift", closed.ID, fmt.Sprintf("closing_cash=%s cash_difference=%s",
		closingCash.StringFixed(2), variance.CashDifference.StringFixed(2)))

	return domain.CloseShiftResponse{
		Shift:           *closed,
		ExpectedCash:    variance.ExpectedCash,
		CashDifference:  variance.CashDifference,
		Variance:        variance.Kind,
		VarianceFlagged: flagged,
		PaymentTotals:   totals,
		PaymentSummary:  reconcile.Summary(totals),
	}, nil
}

func (s *Service) GetShiftPaymentMethods(ctx context.Context, shiftID string) ([]domain.ShiftPaymentMethod, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.repo.ListShiftPaymentMethods(ctx, shiftID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NewNotFound("shift", shiftID)
		}
		return nil, s.fail(ctx, "get shift payment methods", err)
	}
	if rows == nil {
		rows = []domain.ShiftPaymentMethod{}
	}
	return rows, nil
}
