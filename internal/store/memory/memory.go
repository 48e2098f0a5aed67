package memory

import (
	"context"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/period"
	"fuelstation/backend/internal/store"
	"fuelstation/backend/internal/xid"
	"fuelstation/backend/pkg/logger"
)

var _ store.Repository = (*Store)(nil)

// Store is an in-memory Repository used for development and tests. A single
// mutex serialises every write, which gives the same atomicity the postgres
// store gets from conditional updates.
type Store struct {
	mu               sync.RWMutex
	shiftsByID       map[string]domain.Shift
	paymentsByShift  map[string][]domain.ShiftPaymentMethod
	salesByID        map[string]domain.Sale
	expensesByID     map[string]domain.Expense
	fuelSuppliesByID map[string]domain.FuelSupply
	transactions     []domain.Transaction
	summaries        []domain.ProfitLossSummary
	auditLogs        []domain.AuditLog
	usersByUsername  map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		shiftsByID:       make(map[string]domain.Shift),
		paymentsByShift:  make(map[string][]domain.ShiftPaymentMethod),
		salesByID:        make(map[string]domain.Sale),
		expensesByID:     make(map[string]domain.Expense),
		fuelSuppliesByID: make(map[string]domain.FuelSupply),
		usersByUsername:  make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with a manager and an attendant account for
// dev/demo mode. Passwords come from SEED_MANAGER_PASSWORD and
// SEED_ATTENDANT_PASSWORD, falling back to dev defaults with a warning.
func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()
	return s
}

func seedUsers() map[string]domain.UserAccount {
	managerPwd := envOr("SEED_MANAGER_PASSWORD", "manager123")
	attendantPwd := envOr("SEED_ATTENDANT_PASSWORD", "attendant123")
	if os.Getenv("SEED_MANAGER_PASSWORD") == "" || os.Getenv("SEED_ATTENDANT_PASSWORD") == "" {
		logger.Warn(context.Background(), "memory store seeded with default dev credentials",
			"override", "SEED_MANAGER_PASSWORD, SEED_ATTENDANT_PASSWORD")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		employeeID string
		username   string
		password   string
		role       string
	}{
		{"emp-manager", "manager", managerPwd, domain.RoleManager},
		{"emp-attendant", "attendant", attendantPwd, domain.RoleAttendant},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logger.Fatal(context.Background(), "hash seed password", "username", u.username, "error", err)
		}
		users[u.username] = domain.UserAccount{
			EmployeeID: u.employeeID,
			Username:   u.username,
			Password:   string(hash),
			Role:       u.role,
			Active:     true,
			CreatedAt:  now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) Close() error {
	return nil
}

// --- shifts ---

func (s *Store) CreateShift(_ context.Context, shift domain.Shift, scopeEmployeeID string) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.openShiftLocked(scopeEmployeeID); ok {
		return nil, store.ErrConflict
	}
	if shift.ID == "" {
		shift.ID = xid.New()
	}
	if shift.StartTime.IsZero() {
		shift.StartTime = time.Now().UTC()
	}
	shift.Status = domain.ShiftStatusOpen
	shift.SalesTotal = decimal.Zero
	shift.ClosingCash = nil
	shift.EndTime = nil
	shift.EmployeeIDs = slices.Clone(shift.EmployeeIDs)

	s.shiftsByID[shift.ID] = shift
	return cloneShift(shift), nil
}

func (s *Store) GetShift(_ context.Context, shiftID string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shift, ok := s.shiftsByID[shiftID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneShift(shift), nil
}

func (s *Store) GetOpenShift(_ context.Context, scopeEmployeeID string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shift, ok := s.openShiftLocked(scopeEmployeeID)
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneShift(shift), nil
}

func (s *Store) openShiftLocked(scopeEmployeeID string) (domain.Shift, bool) {
	var found domain.Shift
	ok := false
	for _, shift := range s.shiftsByID {
		if !shift.IsOpen() {
			continue
		}
		if scopeEmployeeID != "" && shift.EmployeeID != scopeEmployeeID {
			continue
		}
		if !ok || shift.StartTime.After(found.StartTime) {
			found = shift
			ok = true
		}
	}
	return found, ok
}

func (s *Store) ListShifts(_ context.Context, status domain.ShiftStatus, limit int) ([]domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Shift, 0, len(s.shiftsByID))
	for _, shift := range s.shiftsByID {
		if status != "" && shift.Status != status {
			continue
		}
		result = append(result, *cloneShift(shift))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.After(result[j].StartTime)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) IncrementShiftSales(_ context.Context, shiftID string, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incrementLocked(shiftID, delta)
}

func (s *Store) incrementLocked(shiftID string, delta decimal.Decimal) (decimal.Decimal, error) {
	shift, ok := s.shiftsByID[shiftID]
	if !ok {
		return decimal.Zero, store.ErrNotFound
	}
	if !shift.IsOpen() {
		return decimal.Zero, store.ErrShiftClosed
	}
	shift.SalesTotal = shift.SalesTotal.Add(delta)
	s.shiftsByID[shiftID] = shift
	return shift.SalesTotal, nil
}

func (s *Store) CloseShift(_ context.Context, params domain.ShiftClose) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shift, ok := s.shiftsByID[params.ShiftID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !shift.IsOpen() {
		return nil, store.ErrShiftClosed
	}
	if !shift.SalesTotal.Equal(params.ExpectedSalesTotal) {
		return nil, store.ErrStaleShift
	}

	endTime := params.EndTime
	if endTime.IsZero() {
		endTime = time.Now().UTC()
	}
	closing := params.ClosingCash
	shift.Status = domain.ShiftStatusClosed
	shift.ClosingCash = &closing
	shift.EndTime = &endTime
	s.shiftsByID[shift.ID] = shift

	rows := make([]domain.ShiftPaymentMethod, 0, len(params.PaymentMethods))
	for _, row := range params.PaymentMethods {
		if row.ID == "" {
			row.ID = xid.New()
		}
		row.ShiftID = shift.ID
		if row.CreatedAt.IsZero() {
			row.CreatedAt = endTime
		}
		rows = append(rows, row)
	}
	s.paymentsByShift[shift.ID] = append(s.paymentsByShift[shift.ID], rows...)

	return cloneShift(shift), nil
}

func (s *Store) ListShiftPaymentMethods(_ context.Context, shiftID string) ([]domain.ShiftPaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.shiftsByID[shiftID]; !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(s.paymentsByShift[shiftID]), nil
}

// --- sales ---

func (s *Store) RecordSale(_ context.Context, sale domain.Sale, entry *domain.Transaction) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.incrementLocked(sale.ShiftID, sale.TotalSales); err != nil {
		return nil, err
	}
	if sale.ID == "" {
		sale.ID = xid.New()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = sale.CreatedAt
	}
	s.salesByID[sale.ID] = sale
	s.appendTransactionLocked(entry, sale.ID)

	saved := sale
	return &saved, nil
}

func (s *Store) GetSale(_ context.Context, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sale, nil
}

func (s *Store) UpdateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.salesByID[sale.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale.ShiftID = current.ShiftID
	sale.CreatedAt = current.CreatedAt
	if _, err := s.incrementLocked(current.ShiftID, sale.TotalSales.Sub(current.TotalSales)); err != nil {
		return nil, err
	}
	s.salesByID[sale.ID] = sale

	saved := sale
	return &saved, nil
}

func (s *Store) DeleteSale(_ context.Context, saleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.salesByID[saleID]
	if !ok {
		return store.ErrNotFound
	}
	if _, err := s.incrementLocked(current.ShiftID, current.TotalSales.Neg()); err != nil {
		return err
	}
	delete(s.salesByID, saleID)
	return nil
}

func (s *Store) ListSales(_ context.Context, r period.Range) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0)
	for _, sale := range s.salesByID {
		if r.Contains(sale.SaleDate) {
			result = append(result, sale)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return newerFirst(result[i].SaleDate, result[j].SaleDate, result[i].ID, result[j].ID)
	})
	return result, nil
}

// --- expenses, fuel supplies, ledger ---

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense, entry *domain.Transaction) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ShiftID != "" {
		shift, ok := s.shiftsByID[expense.ShiftID]
		if !ok {
			return nil, store.ErrNotFound
		}
		if !shift.IsOpen() {
			return nil, store.ErrShiftClosed
		}
	}
	if expense.ID == "" {
		expense.ID = xid.New()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	s.expensesByID[expense.ID] = expense
	s.appendTransactionLocked(entry, expense.ID)

	saved := expense
	return &saved, nil
}

func (s *Store) GetExpense(_ context.Context, expenseID string) (*domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expense, ok := s.expensesByID[expenseID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &expense, nil
}

func (s *Store) CompleteExpense(_ context.Context, expenseID string, method domain.PaymentMethod, entry domain.Transaction) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expense, ok := s.expensesByID[expenseID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if expense.PaymentStatus != domain.PaymentStatusPending {
		return nil, store.ErrLocked
	}
	expense.PaymentStatus = domain.PaymentStatusCompleted
	if method != "" {
		expense.PaymentMethod = method
	}
	s.expensesByID[expenseID] = expense
	s.appendTransactionLocked(&entry, expense.ID)

	saved := expense
	return &saved, nil
}

func (s *Store) DeleteExpense(_ context.Context, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expense, ok := s.expensesByID[expenseID]
	if !ok {
		return store.ErrNotFound
	}
	if expense.PaymentStatus == domain.PaymentStatusCompleted {
		return store.ErrLocked
	}
	if expense.ShiftID != "" {
		if shift, ok := s.shiftsByID[expense.ShiftID]; ok && !shift.IsOpen() {
			return store.ErrShiftClosed
		}
	}
	delete(s.expensesByID, expenseID)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, r period.Range) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Expense, 0)
	for _, expense := range s.expensesByID {
		if r.Contains(expense.Date) {
			result = append(result, expense)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return newerFirst(result[i].Date, result[j].Date, result[i].ID, result[j].ID)
	})
	return result, nil
}

func (s *Store) CreateFuelSupply(_ context.Context, supply domain.FuelSupply, entry *domain.Transaction) (*domain.FuelSupply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if supply.ID == "" {
		supply.ID = xid.New()
	}
	if supply.CreatedAt.IsZero() {
		supply.CreatedAt = time.Now().UTC()
	}
	s.fuelSuppliesByID[supply.ID] = supply
	s.appendTransactionLocked(entry, supply.ID)

	saved := supply
	return &saved, nil
}

func (s *Store) ListFuelSupplies(_ context.Context, r period.Range) ([]domain.FuelSupply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.FuelSupply, 0)
	for _, supply := range s.fuelSuppliesByID {
		if r.Contains(supply.DeliveryDate) {
			result = append(result, supply)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return newerFirst(result[i].DeliveryDate, result[j].DeliveryDate, result[i].ID, result[j].ID)
	})
	return result, nil
}

func (s *Store) appendTransactionLocked(entry *domain.Transaction, entityID string) {
	if entry == nil {
		return
	}
	tx := *entry
	if tx.ID == "" {
		tx.ID = xid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	tx.EntityID = entityID
	s.transactions = append(s.transactions, tx)
}

func (s *Store) ListTransactions(_ context.Context, r period.Range, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0)
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if !r.IsZero() && !r.Contains(tx.CreatedAt) {
			continue
		}
		if filter.EntityType != "" && tx.EntityType != filter.EntityType {
			continue
		}
		result = append(result, tx)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// --- reports ---

func (s *Store) ProfitLossTotals(_ context.Context, r period.Range) (domain.ProfitLossTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := domain.ProfitLossTotals{Sales: decimal.Zero, Expenses: decimal.Zero, FuelCost: decimal.Zero}
	for _, sale := range s.salesByID {
		if r.Contains(sale.SaleDate) {
			totals.Sales = totals.Sales.Add(sale.TotalSales)
		}
	}
	for _, expense := range s.expensesByID {
		if expense.PaymentStatus != domain.PaymentStatusCancelled && r.Contains(expense.Date) {
			totals.Expenses = totals.Expenses.Add(expense.Amount)
		}
	}
	for _, supply := range s.fuelSuppliesByID {
		if supply.PaymentStatus != domain.PaymentStatusCancelled && r.Contains(supply.DeliveryDate) {
			totals.FuelCost = totals.FuelCost.Add(supply.TotalCost)
		}
	}
	return totals, nil
}

func (s *Store) CreateProfitLossSummary(_ context.Context, summary domain.ProfitLossSummary) (*domain.ProfitLossSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if summary.ID == "" {
		summary.ID = xid.New()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	if summary.UpdatedAt.IsZero() {
		summary.UpdatedAt = summary.CreatedAt
	}
	s.summaries = append(s.summaries, summary)

	saved := summary
	return &saved, nil
}

func (s *Store) ListProfitLossSummaries(_ context.Context, r period.Range) ([]domain.ProfitLossSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ProfitLossSummary, 0)
	for i := len(s.summaries) - 1; i >= 0; i-- {
		summary := s.summaries[i]
		if r.Covers(summary.StartDate, summary.EndDate) {
			result = append(result, summary)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// --- audit & users ---

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	result := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(result) < limit; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || entry.CreatedAt.After(to) {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrConflict
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.EmployeeID == "" {
		user.EmployeeID = xid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(username))
	user, ok := s.usersByUsername[key]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[key] = user
	return nil
}

func cloneShift(shift domain.Shift) *domain.Shift {
	copyShift := shift
	copyShift.EmployeeIDs = slices.Clone(shift.EmployeeIDs)
	if shift.ClosingCash != nil {
		closing := *shift.ClosingCash
		copyShift.ClosingCash = &closing
	}
	if shift.EndTime != nil {
		end := *shift.EndTime
		copyShift.EndTime = &end
	}
	return &copyShift
}

func newerFirst(a, b time.Time, aID, bID string) bool {
	if a.Equal(b) {
		return aID > bID
	}
	return a.After(b)
}
