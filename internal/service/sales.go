package service

import (
	"context"
	"errors"
	"strings"

	"fuelstation/backend/internal/apperror"
	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/store"
	"fuelstation/backend/internal/xid"
)

// RecordSale attaches a sale to a shift (the active one when req.ShiftID is
// empty) and bumps the shift's sales total in the same store operation.
func (s *Service) RecordSale(ctx context.Context, req domain.RecordSaleRequest) (domain.Sale, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req.FillingSystemID = strings.TrimSpace(req.FillingSystemID)
	if req.FillingSystemID == "" {
		return domain.Sale{}, apperror.NewValidation("filling_system_id is required")
	}
	if !req.Quantity.IsPositive() || !req.PricePerUnit.IsPositive() {
		return domain.Sale{}, apperror.NewValidation("quantity and price_per_unit must be greater than 0")
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodCash
	}
	if !req.PaymentMethod.Valid() {
		return domain.Sale{}, apperror.NewValidationf("unsupported payment method %q", req.PaymentMethod)
	}
	if req.PaymentStatus == "" {
		req.PaymentStatus = domain.PaymentStatusCompleted
	}
	if !req.PaymentStatus.Valid() {
		return domain.Sale{}, apperror.NewValidationf("unsupported payment status %q", req.PaymentStatus)
	}

	shiftID := strings.TrimSpace(req.ShiftID)
	if shiftID == "" {
		active, err := s.activeShift(ctx)
		if err != nil {
			if apperror.IsNotFound(err) {
				return domain.Sale{}, apperror.NewInvalidState("no open shift to record the sale against")
			}
			return domain.Sale{}, err
		}
		shiftID = active.ID
	}

	now := s.now().UTC()
	saleDate := now
	if req.SaleDate != nil && !req.SaleDate.IsZero() {
		saleDate = req.SaleDate.UTC()
	}
	employeeID := actorID(ctx)
	sale := domain.Sale{
		ID:              xid.New(),
		ShiftID:         shiftID,
		FillingSystemID: req.FillingSystemID,
		FuelType:        strings.TrimSpace(req.FuelType),
		Quantity:        req.Quantity,
		PricePerUnit:    req.PricePerUnit,
		TotalSales:      req.Quantity.Mul(req.PricePerUnit).Round(2),
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   req.PaymentStatus,
		EmployeeID:      employeeID,
		SaleDate:        saleDate,
		CreatedAt:       now,
	}

	var entry *domain.Transaction
	if sale.PaymentStatus == domain.PaymentStatusCompleted {
		e := ledgerEntry(domain.EntityTypeSale, sale.ID, sale.TotalSales, sale.PaymentMethod, employeeID, now)
		entry = &e
	}

	saved, err := s.repo.RecordSale(ctx, sale, entry)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrShiftClosed):
			return domain.Sale{}, apperror.NewInvalidState("cannot add sales to a closed shift").
				WithDetail("shift_id", shiftID)
		case errors.Is(err, store.ErrNotFound):
			return domain.Sale{}, apperror.NewNotFound("shift", shiftID)
		}
		return domain.Sale{}, s.fail(ctx, "record sale", err)
	}

	s.invalidateReports(ctx)
	s.logAudit(ctx, "sale_record", "sale", saved.ID, "total_sales="+saved.TotalSales.StringFixed(2))
	return *saved, nil
}

// UpdateSale corrects a sale on an OPEN shift. The shift total moves by the
// change in total_sales.
func (s *Service) UpdateSale(ctx context.Context, req domain.UpdateSaleRequest) (domain.Sale, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	current, err := s.repo.GetSale(ctx, req.SaleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Sale{}, apperror.NewNotFound("sale", req.SaleID)
		}
		return domain.Sale{}, s.fail(ctx, "update sale", err)
	}

	updated := *current
	if req.Quantity != nil {
		updated.Quantity = *req.Quantity
	}
	if req.PricePerUnit != nil {
		updated.PricePerUnit = *req.PricePerUnit
	}
	if req.PaymentMethod != nil {
		if !req.PaymentMethod.Valid() {
			return domain.Sale{}, apperror.NewValidationf("unsupported payment method %q", *req.PaymentMethod)
		}
		updated.PaymentMethod = *req.PaymentMethod
	}
	if req.PaymentStatus != nil {
		if !req.PaymentStatus.Valid() {
			return domain.Sale{}, apperror.NewValidationf("unsupported payment status %q", *req.PaymentStatus)
		}
		updated.PaymentStatus = *req.PaymentStatus
	}
	if !updated.Quantity.IsPositive() || !updated.PricePerUnit.IsPositive() {
		return domain.Sale{}, apperror.NewValidation("quantity and price_per_unit must be greater than 0")
	}
	updated.TotalSales = updated.Quantity.Mul(updated.PricePerUnit).Round(2)

	saved, err := s.repo.UpdateSale(ctx, updated)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrShiftClosed):
			return domain.Sale{}, apperror.NewInvalidState("cannot modify a sale on a closed shift").
				WithDetail("shift_id", current.ShiftID)
		case errors.Is(err, store.ErrNotFound):
			return domain.Sale{}, apperror.NewNotFound("sale", req.SaleID)
		}
		return domain.Sale{}, s.fail(ctx, "update sale", err)
	}

	s.invalidateReports(ctx)
	s.logAudit(ctx, "sale_update", "sale", saved.ID,
		"total_sales="+current.TotalSales.StringFixed(2)+"->"+saved.TotalSales.StringFixed(2))
	return *saved, nil
}

// DeleteSale removes a sale from an OPEN shift and subtracts it from the total.
func (s *Service) DeleteSale(ctx context.Context, saleID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	current, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NewNotFound("sale", saleID)
		}
		return s.fail(ctx, "delete sale", err)
	}

	if err := s.repo.DeleteSale(ctx, saleID); err != nil {
		switch {
		case errors.Is(err, store.ErrShiftClosed):
			return apperror.NewInvalidState("cannot delete a sale on a closed shift").
				WithDetail("shift_id", current.ShiftID)
		case errors.Is(err, store.ErrNotFound):
			return apperror.NewNotFound("sale", saleID)
		}
		return s.fail(ctx, "delete sale", err)
	}

	s.invalidateReports(ctx)
	s.logAudit(ctx, "sale_delete", "sale", saleID, "total_sales="+current.TotalSales.StringFixed(2))
	return nil
}
