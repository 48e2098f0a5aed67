package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/backend/internal/apperror"
	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/period"
	"fuelstation/backend/internal/reconcile"
	"fuelstation/backend/internal/store"
	"fuelstation/backend/internal/store/memory"
	"fuelstation/backend/pkg/logger"
)

var fixedNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(t *testing.T, opts Options) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.New()
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return fixedNow }
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	opts.Logger = logger.Nop()
	return New(repo, nil, opts), repo
}

func asEmployee(id string) context.Context {
	return WithActor(context.Background(), domain.Actor{EmployeeID: id, Username: id, Role: domain.RoleAttendant})
}

func sale(total string) domain.RecordSaleRequest {
	return domain.RecordSaleRequest{
		FillingSystemID: "pump-1",
		FuelType:        "diesel",
		Quantity:        d(total),
		PricePerUnit:    d("1"),
	}
}

func requireKind(t *testing.T, err error, kind apperror.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperror.KindOf(err), "error: %v", err)
}

// shiftWithSales opens a shift with 100 opening cash and records sales of 50 and 30.
func shiftWithSales(t *testing.T, svc *Service, ctx context.Context) domain.Shift {
	t.Helper()
	shift, err := svc.StartShift(ctx, domain.StartShiftRequest{OpeningCash: d("100")})
	require.NoError(t, err)

	for _, total := range []string{"50", "30"} {
		_, err := svc.RecordSale(ctx, sale(total))
		require.NoError(t, err)
	}

	got, err := svc.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	require.True(t, d("80").Equal(got.SalesTotal), "sales_total %s", got.SalesTotal)
	return got
}

func TestCloseShiftBalanced(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := asEmployee("emp-1")
	shift := shiftWithSales(t, svc, ctx)

	resp, err := svc.CloseShift(ctx, domain.CloseShiftRequest{
		ShiftID:        shift.ID,
		ClosingCash:    d("180"),
		PaymentMethods: []domain.PaymentAllocation{{PaymentMethod: domain.PaymentMethodCash, Amount: d("80")}},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ShiftStatusClosed, resp.Status)
	require.NotNil(t, resp.EndTime)
	require.NotNil(t, resp.ClosingCash)
	assert.True(t, d("180").Equal(*resp.ClosingCash))
	assert.True(t, d("180").Equal(resp.ExpectedCash))
	assert.True(t, resp.CashDifference.IsZero())
	assert.Equal(t, domain.VarianceExact, resp.Variance)
	assert.Equal(t, reconcile.CashOnlySummary, resp.PaymentSummary)

	rows, err := svc.GetShiftPaymentMethods(ctx, shift.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.PaymentMethodCash, rows[0].PaymentMethod)
	assert.True(t, d("80").Equal(rows[0].Amount))
}

func TestCloseShiftMismatchedPaymentsKeepsShiftOpen(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := asEmployee("emp-1")
	shift := shiftWithSales(t, svc, ctx)

	_, err := svc.CloseShift(ctx, domain.CloseShiftRequest{
		ShiftID:     shift.ID,
		ClosingCash: d("180"),
		PaymentMethods: []domain.PaymentAllocation{
			{PaymentMethod: domain.PaymentMethodCash, Amount: d("50")},
			{PaymentMethod: domain.PaymentMethodCard, Amount: d("20")},
		},
	})
	requireKind(t, err, apperror.KindValidation)

	got, err := svc.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShiftStatusOpen, got.Status)

	rows, err := svc.GetShiftPaymentMethods(ctx, shift.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRecordSaleOnClosedShift(t *testing.T) {
	svc, repo := newTestService(t, Options{})
	ctx := asEmployee("emp-1")
	shift := shiftWithSales(t, svc, ctx)

	_, err := svc.CloseShift(ctx, domain.CloseShiftRequest{
		ShiftID:        shift.ID,
		ClosingCash:    d("180"),
		PaymentMethods: []domain.PaymentAllocation{{PaymentMethod: domain.PaymentMethodCash, Amount: d("80")}},
	})
	require.NoError(t, err)

	req := sale("10")
	req.ShiftID = shift.ID
	_, err = svc.RecordSale(ctx, req)
	requireKind(t, err, apperror.KindInvalidState)

	got, err := svc.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.True(t, d("80").Equal(got.SalesTotal))

	month, err := svc.Resolver().Resolve(period.Month, nil, nil)
	require.NoError(t, err)
	sales, err := repo.ListSales(context.Background(), month)
	require.NoError(t, err)
	assert.Len(t, sales, 2)
}

func TestRecordSaleWithoutOpenShift(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	_, err := svc.RecordSale(asEmployee("emp-1"), sale("10"))
	requireKind(t, err, apperror.KindInvalidState)
}

func TestCloseShiftTwice(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := asEmployee("emp-1")
	shift, err := svc.StartShift(ctx, domain.StartShiftRequest{OpeningCash: d("100")})
	require.NoError(t, err)

	req := domain.CloseShiftRequest{ShiftID: shift.ID, ClosingCash: d("100")}
	_, err = svc.CloseShift(ctx, req)
	require.NoError(t, err)

	_, err = svc.CloseShift(ctx, req)
	requireKind(t, err, apperror.KindInvalidState)
}

func TestCloseShiftReportsSignedDifference(t *testing.T) {
	tests := []struct {
		name    string
		closing string
		diff    string
		kind    domain.VarianceKind
	}{
		{name: "short", closing: "170", diff: "-10.00", kind: domain.VarianceShort},
		{name: "over", closing: "185.5", diff: "5.50", kind: domain.VarianceOver},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService(t, Options{})
			ctx := asEmployee("emp-1")
			shift := shiftWithSales(t, svc, ctx)

			resp, err := svc.CloseShift(ctx, domain.CloseShiftRequest{
				ShiftID:        shift.ID,
				ClosingCash:    d(tc.closing),
				PaymentMethods: []domain.PaymentAllocation{{PaymentMethod: domain.PaymentMethodCash, Amount: d("80")}},
			})
			require.NoError(t, err)
			assert.Equal(t, tc.diff, resp.CashDifference.StringFixed(2))
			assert.Equal(t, tc.kind, resp.Variance)
			assert.False(t, resp.VarianceFlagged)
		})
	}
}

func TestVariancePolicy(t *testing.T) {
	const rule = "cash_difference < -5.0 || cash_difference > 5.0"

	t.Run("flags without rejecting", func(t *testing.T) {
		policy, err := reconcile.NewPolicy(rule, false)
		require.NoError(t, err)
		svc, _ := newTestService(t, Options{VariancePolicy: policy})
		ctx := asEmployee("emp-1")
		shift := shiftWithSales(t, svc, ctx)

		resp, err := svc.CloseShift(ctx, domain.CloseShiftRequest{
			ShiftID:        shift.ID,
			ClosingCash:    d("150"),
			PaymentMethods: []domain.PaymentAllocation{{PaymentMethod: domain.PaymentMethodCash, Amount: d("80")}},
		})
		require.NoError(t, err)
		assert.True(t, resp.VarianceFlagged)
		assert.Equal(t, domain.ShiftStatusClosed, resp.Status)
	})

	t.Run("rejects", func(t *testing.T) {
		policy, err := reconcile.NewPolicy(rule, true)
		require.NoError(t, err)
		svc, _ := newTestService(t, Options{VariancePolicy: policy})
		ctx := asEmployee("emp-1")
		shift := shiftWithSales(t, svc, ctx)

		_, err = svc.CloseShift(ctx, domain.CloseShiftRequest{
			ShiftID:        shift.ID,
			ClosingCash:    d("150"),
			PaymentMethods: []domain.PaymentAllocation{{PaymentMethod: domain.PaymentMethodCash, Amount: d("80")}},
		})
		requireKind(t, err, apperror.KindValidation)

		got, err := svc.GetShift(ctx, shift.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ShiftStatusOpen, got.Status)
	})
}

func TestStartShiftScope(t *testing.T) {
	t.Run("system", func(t *testing.T) {
		svc, _ := newTestService(t, Options{})
		_, err := svc.StartShift(asEmployee("emp-1"), domain.StartShiftRequest{OpeningCash: d("50")})
		require.NoError(t, err)

		_, err = svc.StartShift(asEmployee("emp-2"), domain.StartShiftRequest{OpeningCash: d("50")})
		requireKind(t, err, apperror.KindConflict)
	})

	t.Run("employee", func(t *testing.T) {
		svc, _ := newTestService(t, Options{ShiftScope: domain.ShiftScopeEmployee})
		_, err := svc.StartShift(asEmployee("emp-1"), domain.StartShiftRequest{OpeningCash: d("50")})
		require.NoError(t, err)

		_, err = svc.StartShift(asEmployee("emp-2"), domain.StartShiftRequest{OpeningCash: d("50")})
		require.NoError(t, err)

		_, err = svc.StartShift(asEmployee("emp-1"), domain.StartShiftRequest{OpeningCash: d("50")})
		requireKind(t, err, apperror.KindConflict)

		active, err := svc.GetActiveShift(asEmployee("emp-2"))
		require.NoError(t, err)
		assert.Equal(t, "emp-2", active.EmployeeID)
	})
}

func TestStartShiftValidation(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	_, err := svc.StartShift(context.Background(), domain.StartShiftRequest{OpeningCash: d("10")})
	requireKind(t, err, apperror.KindValidation)

	_, err = svc.StartShift(asEmployee("emp-1"), domain.StartShiftRequest{OpeningCash: d("-1")})
	requireKind(t, err, apperror.KindValidation)

	shift, err := svc.StartShift(context.Background(), domain.StartShiftRequest{
		OpeningCash: d("10"),
		EmployeeIDs: []string{" emp-9 ", "emp-8", "emp-9"},
	})
	require.NoError(t, err)
	assert.Equal(t, "emp-9", shift.EmployeeID)
	assert.Equal(t, []string{"emp-9", "emp-8"}, shift.EmployeeIDs)
}

func TestConcurrentSalesAccumulate(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := asEmployee("emp-1")
	shift, err := svc.StartShift(ctx, domain.StartShiftRequest{OpeningCash: d("0")})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordSale(ctx, sale("2.5"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", got.SalesTotal.StringFixed(2))
}

func TestUpdateAndDeleteSaleAdjustTotal(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := asEmployee("emp-1")
	_, err := svc.StartShift(ctx, domain.StartShiftRequest{OpeningCash: d("0")})
	require.NoError(t, err)

	first, err := svc.RecordSale(ctx, sale("50"))
	require.NoError(t, err)
	second, err := svc.RecordSale(ctx, sale("30"))
	require.NoError(t, err)

	qty := d("45")
	updated, err := svc.UpdateSale(ctx, domain.UpdateSaleRequest{SaleID: first.ID, Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, "45.00", updated.TotalSales.StringFixed(2))

	require.NoError(t, svc.DeleteSale(ctx, second.ID))

	active, err := svc.GetActiveShift(ctx)
	require.NoError(t, err)
	assert.Equal(t, "45.00", active.SalesTotal.StringFixed(2))

	resp, err := svc.CloseShift(ctx, domain.CloseShiftRequest{
		ShiftID:        active.ID,
		ClosingCash:    d("45"),
		PaymentMethods: []domain.PaymentAllocation{{PaymentMethod: domain.PaymentMethodCard, Amount: d("45")}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateSale(ctx, domain.UpdateSaleRequest{SaleID: first.ID, Quantity: &qty})
	requireKind(t, err, apperror.KindInvalidState)
	err = svc.DeleteSale(ctx, first.ID)
	requireKind(t, err, apperror.KindInvalidState)

	got, err := svc.GetShift(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "45.00", got.SalesTotal.StringFixed(2))
}

func TestProfitLossFlow(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := asEmployee("emp-1")
	_, err := svc.StartShift(ctx, domain.StartShiftRequest{OpeningCash: d("0")})
	require.NoError(t, err)

	_, err = svc.RecordSale(ctx, sale("10000"))
	require.NoError(t, err)
	_, err = svc.CreateExpense(ctx, domain.CreateExpenseRequest{Amount: d("4000"), Category: "payroll", PaymentStatus: domain.PaymentStatusCompleted})
	require.NoError(t, err)
	_, err = svc.CreateExpense(ctx, domain.CreateExpenseRequest{Amount: d("999"), Category: "void", PaymentStatus: domain.PaymentStatusCancelled})
	require.NoError(t, err)
	_, err = svc.CreateFuelSupply(ctx, domain.CreateFuelSupplyRequest{
		ProviderID:     "prov-1",
		FuelType:       "diesel",
		QuantityLiters: d("1000"),
		PricePerLiter:  d("3"),
	})
	require.NoError(t, err)

	report, err := svc.CalculateProfitLoss(ctx, domain.PeriodQuery{PeriodType: "month"}, true)
	require.NoError(t, err)
	assert.Equal(t, "March 2024", report.Period)
	assert.Equal(t, "7000.00", report.TotalCosts.StringFixed(2))
	assert.Equal(t, "3000.00", report.Profit.StringFixed(2))
	assert.Equal(t, "30.00", report.ProfitMargin.StringFixed(2))
	require.NotNil(t, report.Details)
	assert.Len(t, report.Details.Sales, 1)
	assert.Len(t, report.Details.FuelSupplies, 1)

	first, err := svc.GenerateAndSaveProfitLoss(ctx, domain.GenerateProfitLossRequest{PeriodQuery: domain.PeriodQuery{PeriodType: "month"}, Notes: "close of books"})
	require.NoError(t, err)
	assert.Equal(t, "6000.00", first.Profit.StringFixed(2))
	assert.Equal(t, "emp-1", first.EmployeeID)

	second, err := svc.GenerateAndSaveProfitLoss(ctx, domain.GenerateProfitLossRequest{PeriodQuery: domain.PeriodQuery{PeriodType: "month"}})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	summaries, err := svc.GetProfitLossSummary(ctx, domain.PeriodQuery{PeriodType: "year"})
	require.NoError(t, err)
	assert.Len(t, summaries, 2)

	txs, err := svc.ListTransactions(ctx, domain.PeriodQuery{}, "", 0)
	require.NoError(t, err)
	assert.Len(t, txs, 2, "completed sale and completed expense")
}

func TestCustomPeriodMissingStart(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	_, err := svc.CalculateProfitLoss(context.Background(), domain.PeriodQuery{PeriodType: "custom", EndDate: "2024-01-31"}, false)
	requireKind(t, err, apperror.KindValidation)
}

func TestExpenseLifecycle(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := asEmployee("emp-1")

	expense, err := svc.CreateExpense(ctx, domain.CreateExpenseRequest{Amount: d("120"), Category: "maintenance"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, expense.PaymentStatus)

	completed, err := svc.CompleteExpense(ctx, domain.CompleteExpenseRequest{ExpenseID: expense.ID, PaymentMethod: domain.PaymentMethodBankTransfer})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, completed.PaymentStatus)

	_, err = svc.CompleteExpense(ctx, domain.CompleteExpenseRequest{ExpenseID: expense.ID})
	requireKind(t, err, apperror.KindInvalidState)

	err = svc.DeleteExpense(ctx, expense.ID)
	requireKind(t, err, apperror.KindInvalidState)

	err = svc.DeleteExpense(ctx, "missing")
	requireKind(t, err, apperror.KindNotFound)

	txs, err := svc.ListTransactions(ctx, domain.PeriodQuery{PeriodType: "day"}, string(domain.EntityTypeExpense), 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.PaymentMethodBankTransfer, txs[0].PaymentMethod)

	shift, err := svc.StartShift(ctx, domain.StartShiftRequest{OpeningCash: d("50")})
	require.NoError(t, err)
	linked, err := svc.CreateExpense(ctx, domain.CreateExpenseRequest{Amount: d("30"), Category: "cleaning", ShiftID: shift.ID})
	require.NoError(t, err)
	_, err = svc.CloseShift(ctx, domain.CloseShiftRequest{ShiftID: shift.ID, ClosingCash: d("50")})
	require.NoError(t, err)

	err = svc.DeleteExpense(ctx, linked.ID)
	requireKind(t, err, apperror.KindInvalidState)
}

type fakeReportCache struct {
	mu      sync.Mutex
	entries    map[string]domain.ProfitLossReport
	gets       int
	generation int64
}

func (c *fakeReportCache) Get(_ context.Context, key string) (*domain.ProfitLossReport, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	report, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &report, true, nil
}

func (c *fakeReportCache) Set(_ context.Context, key string, value *domain.ProfitLossReport, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *value
	return nil
}

func (c *fakeReportCache) Generation(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

func (c *fakeReportCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return nil
}

func TestReportCacheOnlyForClosedRanges(t *testing.T) {
	reports := &fakeReportCache{entries: map[string]domain.ProfitLossReport{}}
	repo := memory.New()
	svc := New(repo, reports, Options{
		ReportCacheTTL: time.Minute,
		Location:       time.UTC,
		Clock:          func() time.Time { return fixedNow },
		Logger:         logger.Nop(),
	})
	ctx := context.Background()

	_, err := svc.CalculateProfitLoss(ctx, domain.PeriodQuery{PeriodType: "month"}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, reports.gets)
	assert.Empty(t, reports.entries)

	past := domain.PeriodQuery{PeriodType: "custom", StartDate: "2024-01-01", EndDate: "2024-01-31"}
	_, err = svc.CalculateProfitLoss(ctx, past, false)
	require.NoError(t, err)
	assert.Len(t, reports.entries, 1)

	_, err = svc.CalculateProfitLoss(ctx, past, false)
	require.NoError(t, err)
	assert.Equal(t, 2, reports.gets)
}

func TestBackdatedSaleShowsInCachedRange(t *testing.T) {
	reports := &fakeReportCache{entries: map[string]domain.ProfitLossReport{}}
	svc := New(memory.New(), reports, Options{
		ReportCacheTTL: time.Minute,
		Location:       time.UTC,
		Clock:          func() time.Time { return fixedNow },
		Logger:         logger.Nop(),
	})
	ctx := asEmployee("emp-1")
	past := domain.PeriodQuery{PeriodType: "custom", StartDate: "2024-01-01", EndDate: "2024-01-31"}

	report, err := svc.CalculateProfitLoss(ctx, past, false)
	require.NoError(t, err)
	assert.True(t, report.TotalSales.IsZero())
	require.Len(t, reports.entries, 1)

	_, err = svc.StartShift(ctx, domain.StartShiftRequest{OpeningCash: d("100")})
	require.NoError(t, err)
	req := sale("500")
	backdated := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)
	req.SaleDate = &backdated
	_, err = svc.RecordSale(ctx, req)
	require.NoError(t, err)

	report, err = svc.CalculateProfitLoss(ctx, past, false)
	require.NoError(t, err)
	assert.Equal(t, "500.00", report.TotalSales.StringFixed(2))

	_, err = svc.CreateExpense(ctx, domain.CreateExpenseRequest{Amount: d("40"), Category: "repairs", Date: &backdated})
	require.NoError(t, err)
	report, err = svc.CalculateProfitLoss(ctx, past, false)
	require.NoError(t, err)
	assert.Equal(t, "40.00", report.TotalExpenses.StringFixed(2))
}

// slowRepo blocks reads until the context is done.
type slowRepo struct {
	store.Repository
}

func (slowRepo) ProfitLossTotals(ctx context.Context, _ period.Range) (domain.ProfitLossTotals, error) {
	<-ctx.Done()
	return domain.ProfitLossTotals{}, ctx.Err()
}

func TestOperationTimeout(t *testing.T) {
	svc := New(slowRepo{Repository: memory.New()}, nil, Options{
		OperationTimeout: 20 * time.Millisecond,
		Location:         time.UTC,
		Logger:           logger.Nop(),
	})

	_, err := svc.CalculateProfitLoss(context.Background(), domain.PeriodQuery{PeriodType: "day"}, false)
	requireKind(t, err, apperror.KindTimeout)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

type failingRepo struct {
	store.Repository
}

func (failingRepo) GetShift(context.Context, string) (*domain.Shift, error) {
	return nil, errors.New("connection reset")
}

func TestUnexpectedStoreErrorIsInternal(t *testing.T) {
	svc := New(failingRepo{Repository: memory.New()}, nil, Options{Logger: logger.Nop()})
	_, err := svc.GetShift(context.Background(), "shift-1")
	requireKind(t, err, apperror.KindInternal)
}
