package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/period"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a uniqueness rule, e.g. a second OPEN shift.
	ErrConflict = errors.New("conflict")
	// ErrShiftClosed is returned when a write targets a CLOSED shift.
	ErrShiftClosed = errors.New("shift is closed")
	// ErrStaleShift means the shift's sales total moved between read and close.
	ErrStaleShift = errors.New("shift changed concurrently")
	// ErrLocked is returned for writes to a record whose status freezes it,
	// such as a completed expense.
	ErrLocked = errors.New("record is locked")
)

// Repository is the persistence boundary. Implementations hold no business
// rules beyond the conditional writes needed to keep shift state consistent
// under concurrency.
type Repository interface {
	ShiftRepository
	LedgerRepository
	ReportRepository
	UserStore

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	Close() error
}

type ShiftRepository interface {
	// CreateShift inserts an OPEN shift unless one is already open for
	// scopeEmployeeID (any employee when empty), in which case ErrConflict.
	CreateShift(ctx context.Context, shift domain.Shift, scopeEmployeeID string) (*domain.Shift, error)
	GetShift(ctx context.Context, shiftID string) (*domain.Shift, error)
	GetOpenShift(ctx context.Context, scopeEmployeeID string) (*domain.Shift, error)
	ListShifts(ctx context.Context, status domain.ShiftStatus, limit int) ([]domain.Shift, error)

	// IncrementShiftSales atomically adds delta to an OPEN shift's sales_total
	// and returns the new total. ErrShiftClosed if the shift is CLOSED.
	IncrementShiftSales(ctx context.Context, shiftID string, delta decimal.Decimal) (decimal.Decimal, error)

	// CloseShift moves the shift to CLOSED and writes its payment rows as one unit.
	CloseShift(ctx context.Context, params domain.ShiftClose) (*domain.Shift, error)
	ListShiftPaymentMethods(ctx context.Context, shiftID string) ([]domain.ShiftPaymentMethod, error)

	// RecordSale increments the shift total and inserts the sale (and ledger
	// entry when given) as one unit.
	RecordSale(ctx context.Context, sale domain.Sale, entry *domain.Transaction) (*domain.Sale, error)
	GetSale(ctx context.Context, saleID string) (*domain.Sale, error)
	// UpdateSale rewrites the sale and shifts the owning shift's total by the
	// difference in total_sales.
	UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	DeleteSale(ctx context.Context, saleID string) error
	ListSales(ctx context.Context, r period.Range) ([]domain.Sale, error)
}

type LedgerRepository interface {
	CreateExpense(ctx context.Context, expense domain.Expense, entry *domain.Transaction) (*domain.Expense, error)
	GetExpense(ctx context.Context, expenseID string) (*domain.Expense, error)
	// CompleteExpense flips a pending expense to completed and appends entry.
	CompleteExpense(ctx context.Context, expenseID string, method domain.PaymentMethod, entry domain.Transaction) (*domain.Expense, error)
	// DeleteExpense fails with ErrLocked when the expense is completed and
	// ErrShiftClosed when its linked shift is closed.
	DeleteExpense(ctx context.Context, expenseID string) error
	ListExpenses(ctx context.Context, r period.Range) ([]domain.Expense, error)

	CreateFuelSupply(ctx context.Context, supply domain.FuelSupply, entry *domain.Transaction) (*domain.FuelSupply, error)
	ListFuelSupplies(ctx context.Context, r period.Range) ([]domain.FuelSupply, error)

	ListTransactions(ctx context.Context, r period.Range, filter domain.TransactionFilter) ([]domain.Transaction, error)
}

type ReportRepository interface {
	ProfitLossTotals(ctx context.Context, r period.Range) (domain.ProfitLossTotals, error)
	CreateProfitLossSummary(ctx context.Context, summary domain.ProfitLossSummary) (*domain.ProfitLossSummary, error)
	ListProfitLossSummaries(ctx context.Context, r period.Range) ([]domain.ProfitLossSummary, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
