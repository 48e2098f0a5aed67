package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShiftStatus string

const (
	ShiftStatusOpen   ShiftStatus = "OPEN"
	ShiftStatusClosed ShiftStatus = "CLOSED"
)

// ShiftScope decides how far the single-open-shift rule reaches.
type ShiftScope string

const (
	ShiftScopeSystem   ShiftScope = "system"
	ShiftScopeEmployee ShiftScope = "employee"
)

type PaymentMethod string

const (
	PaymentMethodCash          PaymentMethod = "cash"
	PaymentMethodCard          PaymentMethod = "card"
	PaymentMethodBankTransfer  PaymentMethod = "bank_transfer"
	PaymentMethodMobilePayment PaymentMethod = "mobile_payment"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodMobilePayment:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusCancelled:
		return true
	}
	return false
}

type EntityType string

const (
	EntityTypeSale       EntityType = "sale"
	EntityTypeExpense    EntityType = "expense"
	EntityTypeFuelSupply EntityType = "fuel_supply"
)

func (e EntityType) Valid() bool {
	switch e {
	case EntityTypeSale, EntityTypeExpense, EntityTypeFuelSupply:
		return true
	}
	return false
}

const (
	RoleManager   = "manager"
	RoleAttendant = "attendant"
)

type Shift struct {
	ID          string           `json:"id" db:"id"`
	EmployeeID  string           `json:"employee_id" db:"employee_id"`
	EmployeeIDs []string         `json:"employee_ids" db:"employee_ids"`
	Status      ShiftStatus      `json:"status" db:"status"`
	OpeningCash decimal.Decimal  `json:"opening_cash" db:"opening_cash"`
	ClosingCash *decimal.Decimal `json:"closing_cash,omitempty" db:"closing_cash"`
	SalesTotal  decimal.Decimal  `json:"sales_total" db:"sales_total"`
	StartTime   time.Time        `json:"start_time" db:"start_time"`
	EndTime     *time.Time       `json:"end_time,omitempty" db:"end_time"`
}

func (s Shift) IsOpen() bool {
	return s.Status == ShiftStatusOpen
}

type ShiftPaymentMethod struct {
	ID            string          `json:"id" db:"id"`
	ShiftID       string          `json:"shift_id" db:"shift_id"`
	PaymentMethod PaymentMethod   `json:"payment_method" db:"payment_method"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Reference     string          `json:"reference,omitempty" db:"reference"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// ShiftClose carries everything the store needs to move a shift to CLOSED in
// one unit. ExpectedSalesTotal is the total the reconciliation was computed
// against; the store refuses the close if the row has moved since.
type ShiftClose struct {
	ShiftID            string
	ClosingCash        decimal.Decimal
	EndTime            time.Time
	ExpectedSalesTotal decimal.Decimal
	PaymentMethods     []ShiftPaymentMethod
}

type Sale struct {
	ID              string          `json:"id" db:"id"`
	ShiftID         string          `json:"shift_id" db:"shift_id"`
	FillingSystemID string          `json:"filling_system_id" db:"filling_system_id"`
	FuelType        string          `json:"fuel_type,omitempty" db:"fuel_type"`
	Quantity        decimal.Decimal `json:"quantity" db:"quantity"`
	PricePerUnit    decimal.Decimal `json:"price_per_unit" db:"price_per_unit"`
	TotalSales      decimal.Decimal `json:"total_sales" db:"total_sales"`
	PaymentMethod   PaymentMethod   `json:"payment_method" db:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status" db:"payment_status"`
	EmployeeID      string          `json:"employee_id" db:"employee_id"`
	SaleDate        time.Time       `json:"sale_date" db:"sale_date"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

type Expense struct {
	ID            string          `json:"id" db:"id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Category      string          `json:"category" db:"category"`
	Description   string          `json:"description,omitempty" db:"description"`
	PaymentStatus PaymentStatus   `json:"payment_status" db:"payment_status"`
	PaymentMethod PaymentMethod   `json:"payment_method,omitempty" db:"payment_method"`
	Date          time.Time       `json:"date" db:"expense_date"`
	ShiftID       string          `json:"shift_id,omitempty" db:"shift_id"`
	EmployeeID    string          `json:"employee_id" db:"employee_id"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

type FuelSupply struct {
	ID             string          `json:"id" db:"id"`
	ProviderID     string          `json:"provider_id" db:"provider_id"`
	FuelType       string          `json:"fuel_type" db:"fuel_type"`
	TankID         string          `json:"tank_id,omitempty" db:"tank_id"`
	QuantityLiters decimal.Decimal `json:"quantity_liters" db:"quantity_liters"`
	PricePerLiter  decimal.Decimal `json:"price_per_liter" db:"price_per_liter"`
	TotalCost      decimal.Decimal `json:"total_cost" db:"total_cost"`
	DeliveryDate   time.Time       `json:"delivery_date" db:"delivery_date"`
	PaymentStatus  PaymentStatus   `json:"payment_status" db:"payment_status"`
	PaymentMethod  PaymentMethod   `json:"payment_method,omitempty" db:"payment_method"`
	EmployeeID     string          `json:"employee_id" db:"employee_id"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Transaction is an append-only ledger entry written as a side effect of a
// completed sale, expense or fuel supply.
type Transaction struct {
	ID            string          `json:"id" db:"id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	PaymentMethod PaymentMethod   `json:"payment_method" db:"payment_method"`
	PaymentStatus PaymentStatus   `json:"payment_status" db:"payment_status"`
	EntityType    EntityType      `json:"entity_type" db:"entity_type"`
	EntityID      string          `json:"entity_id" db:"entity_id"`
	EmployeeID    string          `json:"employee_id" db:"employee_id"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

type ProfitLossSummary struct {
	ID            string          `json:"id" db:"id"`
	Period        string          `json:"period" db:"period"`
	StartDate     time.Time       `json:"start_date" db:"start_date"`
	EndDate       time.Time       `json:"end_date" db:"end_date"`
	TotalSales    decimal.Decimal `json:"total_sales" db:"total_sales"`
	TotalExpenses decimal.Decimal `json:"total_expenses" db:"total_expenses"`
	Profit        decimal.Decimal `json:"profit" db:"profit"`
	Notes         string          `json:"notes,omitempty" db:"notes"`
	EmployeeID    string          `json:"employee_id" db:"employee_id"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// ProfitLossTotals are the raw sums the store returns for a range.
type ProfitLossTotals struct {
	Sales    decimal.Decimal `db:"total_sales"`
	Expenses decimal.Decimal `db:"total_expenses"`
	FuelCost decimal.Decimal `db:"total_fuel_cost"`
}

type ProfitLossReport struct {
	Period        string             `json:"period"`
	StartDate     time.Time          `json:"start_date"`
	EndDate       time.Time          `json:"end_date"`
	TotalSales    decimal.Decimal    `json:"total_sales"`
	TotalExpenses decimal.Decimal    `json:"total_expenses"`
	TotalFuelCost decimal.Decimal    `json:"total_fuel_cost"`
	TotalCosts    decimal.Decimal    `json:"total_costs"`
	Profit        decimal.Decimal    `json:"profit"`
	ProfitMargin  decimal.Decimal    `json:"profit_margin"`
	Details       *ProfitLossDetails `json:"details,omitempty"`
}

type ProfitLossDetails struct {
	Sales        []Sale       `json:"sales"`
	Expenses     []Expense    `json:"expenses"`
	FuelSupplies []FuelSupply `json:"fuel_supplies"`
}

type PaymentAllocation struct {
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	Reference     string          `json:"reference,omitempty"`
}

type StartShiftRequest struct {
	OpeningCash decimal.Decimal `json:"opening_cash"`
	EmployeeIDs []string        `json:"employee_ids"`
}

type CloseShiftRequest struct {
	ShiftID        string              `json:"-"`
	ClosingCash    decimal.Decimal     `json:"closing_cash"`
	PaymentMethods []PaymentAllocation `json:"payment_methods"`
}

type VarianceKind string

const (
	VarianceExact VarianceKind = "exact"
	VarianceOver  VarianceKind = "over"
	VarianceShort VarianceKind = "short"
)

// CloseShiftResponse is the closed shift plus its reconciliation figures.
type CloseShiftResponse struct {
	Shift
	ExpectedCash    decimal.Decimal                   `json:"expected_cash"`
	CashDifference  decimal.Decimal                   `json:"cash_difference"`
	Variance        VarianceKind                      `json:"variance"`
	VarianceFlagged bool                              `json:"variance_flagged"`
	PaymentTotals   map[PaymentMethod]decimal.Decimal `json:"payment_totals"`
	PaymentSummary  string                            `json:"payment_summary"`
}

type RecordSaleRequest struct {
	ShiftID         string          `json:"shift_id"`
	FillingSystemID string          `json:"filling_system_id"`
	FuelType        string          `json:"fuel_type"`
	Quantity        decimal.Decimal `json:"quantity"`
	PricePerUnit    decimal.Decimal `json:"price_per_unit"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	SaleDate        *time.Time      `json:"sale_date"`
}

type UpdateSaleRequest struct {
	SaleID        string           `json:"-"`
	Quantity      *decimal.Decimal `json:"quantity"`
	PricePerUnit  *decimal.Decimal `json:"price_per_unit"`
	PaymentMethod *PaymentMethod   `json:"payment_method"`
	PaymentStatus *PaymentStatus   `json:"payment_status"`
}

type CreateExpenseRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Date          *time.Time      `json:"date"`
	ShiftID       string          `json:"shift_id"`
}

type CompleteExpenseRequest struct {
	ExpenseID     string        `json:"-"`
	PaymentMethod PaymentMethod `json:"payment_method"`
}

type CreateFuelSupplyRequest struct {
	ProviderID     string          `json:"provider_id"`
	FuelType       string          `json:"fuel_type"`
	TankID         string          `json:"tank_id"`
	QuantityLiters decimal.Decimal `json:"quantity_liters"`
	PricePerLiter  decimal.Decimal `json:"price_per_liter"`
	DeliveryDate   *time.Time      `json:"delivery_date"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
}

// PeriodQuery is the raw period descriptor as received from a caller.
type PeriodQuery struct {
	PeriodType string `json:"period" form:"period"`
	StartDate  string `json:"start_date" form:"start_date"`
	EndDate    string `json:"end_date" form:"end_date"`
}

type GenerateProfitLossRequest struct {
	PeriodQuery
	Notes string `json:"notes"`
}

type TransactionFilter struct {
	EntityType EntityType
	Limit      int
}

type Actor struct {
	EmployeeID string `json:"employee_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
}

type AuditLog struct {
	ID         string    `json:"id" db:"id"`
	ActorID    string    `json:"actor_id" db:"actor_id"`
	ActorRole  string    `json:"actor_role" db:"actor_role"`
	Action     string    `json:"action" db:"action"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   string    `json:"entity_id" db:"entity_id"`
	Detail     string    `json:"detail" db:"detail"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type UserAccount struct {
	EmployeeID string    `json:"employee_id" db:"employee_id"`
	Username   string    `json:"username" db:"username"`
	Password   string    `json:"-" db:"password_hash"`
	Role       string    `json:"role" db:"role"`
	Active     bool      `json:"active" db:"active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	EmployeeID  string `json:"employee_id"`
	ExpiresAt   string `json:"expires_at"`
}

type CreateEmployeeRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}
