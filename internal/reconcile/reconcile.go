// Package reconcile validates the payment-method breakdown submitted when a
// shift closes and derives the cash variance.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"fuelstation/backend/internal/apperror"
	"fuelstation/backend/internal/domain"
)

// Tolerance is the largest allowed gap between the allocation sum and the
// shift's sales total.
var Tolerance = decimal.New(1, -2)

// CashOnlySummary is the display text for a breakdown made entirely of cash.
const CashOnlySummary = "cash only"

// ValidateAllocations checks that every allocation names a known method and a
// positive amount, and that together they account for salesTotal.
func ValidateAllocations(salesTotal decimal.Decimal, allocations []domain.PaymentAllocation) error {
	if len(allocations) == 0 {
		if salesTotal.Abs().LessThanOrEqual(Tolerance) {
			return nil
		}
		return apperror.NewValidation("payment methods are required when the shift has sales").
			WithDetail("sales_total", salesTotal.StringFixed(2))
	}

	sum := decimal.Zero
	for i, alloc := range allocations {
		if !alloc.PaymentMethod.Valid() {
			return apperror.NewValidationf("payment_methods[%d]: unsupported payment method %q", i, alloc.PaymentMethod)
		}
		if !alloc.Amount.IsPositive() {
			return apperror.NewValidationf("payment_methods[%d]: amount must be greater than 0", i).
				WithDetail("payment_method", alloc.PaymentMethod)
		}
		sum = sum.Add(alloc.Amount)
	}

	diff := sum.Sub(salesTotal)
	if diff.Abs().GreaterThan(Tolerance) {
		direction := "short of"
		if diff.IsPositive() {
			direction = "over"
		}
		return apperror.NewValidationf("payment methods total %s is %s %s sales total %s",
			sum.StringFixed(2), diff.Abs().StringFixed(2), direction, salesTotal.StringFixed(2)).
			WithDetail("allocated_total", sum.StringFixed(2)).
			WithDetail("sales_total", salesTotal.StringFixed(2)).
			WithDetail("difference", diff.StringFixed(2))
	}
	return nil
}

// Variance is the signed gap between counted and expected cash.
type Variance struct {
	ExpectedCash   decimal.Decimal
	CashDifference decimal.Decimal
	Kind           domain.VarianceKind
}

// ComputeVariance returns expected = opening + sales and difference = closing - expected.
// Negative means the drawer is short.
func ComputeVariance(openingCash, salesTotal, closingCash decimal.Decimal) Variance {
	expected := openingCash.Add(salesTotal)
	diff := closingCash.Sub(expected)

	kind := domain.VarianceExact
	switch diff.Sign() {
	case 1:
		kind = domain.VarianceOver
	case -1:
		kind = domain.VarianceShort
	}
	return Variance{ExpectedCash: expected, CashDifference: diff, Kind: kind}
}

// MethodTotals sums payment rows per method.
func MethodTotals(rows []domain.ShiftPaymentMethod) map[domain.PaymentMethod]decimal.Decimal {
	totals := make(map[domain.PaymentMethod]decimal.Decimal, len(rows))
	for _, row := range rows {
		totals[row.PaymentMethod] = totals[row.PaymentMethod].Add(row.Amount)
	}
	return totals
}

func IsCashOnly(totals map[domain.PaymentMethod]decimal.Decimal) bool {
	if len(totals) != 1 {
		return false
	}
	_, ok := totals[domain.PaymentMethodCash]
	return ok
}

// Summary renders totals for display: "cash only", or "card 20.00, cash 50.00"
// sorted by method name.
func Summary(totals map[domain.PaymentMethod]decimal.Decimal) string {
	if IsCashOnly(totals) {
		return CashOnlySummary
	}
	methods := make([]string, 0, len(totals))
	for method := range totals {
		methods = append(methods, string(method))
	}
	sort.Strings(methods)

	parts := make([]string, 0, len(methods))
	for _, method := range methods {
		parts = append(parts, fmt.Sprintf("%s %s", method, totals[domain.PaymentMethod(method)].StringFixed(2)))
	}
	return strings.Join(parts, ", ")
}

// AllocationsToRows turns validated allocations into payment rows for shiftID.
// newID is called once per row.
func AllocationsToRows(shiftID string, allocations []domain.PaymentAllocation, newID func() string) []domain.ShiftPaymentMethod {
	rows := make([]domain.ShiftPaymentMethod, 0, len(allocations))
	for _, alloc := range allocations {
		rows = append(rows, domain.ShiftPaymentMethod{
			ID:            newID(),
			ShiftID:       shiftID,
			PaymentMethod: alloc.PaymentMethod,
			Amount:        alloc.Amount.Round(2),
			Reference:     strings.TrimSpace(alloc.Reference),
		})
	}
	return rows
}
