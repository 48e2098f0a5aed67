package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/service"
	"fuelstation/backend/internal/store/memory"
	"fuelstation/backend/pkg/logger"
)

const testSecret = "test-secret-key-0123456789abcdef"

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestAPI wires a real service and auth manager over the seeded memory
// store so handler tests exercise the whole request path.
func newTestAPI(t *testing.T) http.Handler {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, service.Options{Location: time.UTC, Logger: logger.Nop()})
	auth := NewAuthManager(testSecret, time.Hour, repo)

	return New(svc, auth, Options{AllowedOrigins: []string{"http://127.0.0.1:3000"}, Logger: logger.Nop()}).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp domain.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHandleHealth(t *testing.T) {
	h := newTestAPI(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
}

func TestHandleLogin(t *testing.T) {
	h := newTestAPI(t)

	t.Run("valid credentials", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "manager", Password: "manager123"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp domain.LoginResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, domain.RoleManager, resp.Role)
		assert.Equal(t, "emp-manager", resp.EmployeeID)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "manager", Password: "nope"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
	})
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestAPI(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/shifts/active", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/shifts/active", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAttendantCannotReadReports(t *testing.T) {
	h := newTestAPI(t)
	token := login(t, h, "attendant", "attendant123")

	rec := doJSON(t, h, http.MethodGet, "/api/v1/reports/profit-loss?period=day", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)
}

func TestShiftCloseOverHTTP(t *testing.T) {
	h := newTestAPI(t)
	token := login(t, h, "attendant", "attendant123")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/shifts", token, map[string]any{"opening_cash": "100"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var shift domain.Shift
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&shift))
	assert.Equal(t, domain.ShiftStatusOpen, shift.Status)
	assert.Equal(t, "emp-attendant", shift.EmployeeID)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/shifts", token, map[string]any{"opening_cash": "50"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decodeError(t, rec).Code)

	for _, qty := range []string{"100", "50"} {
		rec = doJSON(t, h, http.MethodPost, "/api/v1/sales", token, map[string]any{
			"filling_system_id": "pump-1",
			"fuel_type":         "petrol",
			"quantity":          qty,
			"price_per_unit":    "1",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	closePath := "/api/v1/shifts/" + shift.ID + "/close"

	t.Run("mismatched payments are rejected", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, closePath, token, map[string]any{
			"closing_cash": "250",
			"payment_methods": []map[string]any{
				{"payment_method": "cash", "amount": "100"},
				{"payment_method": "card", "amount": "40"},
			},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "VALIDATION_ERROR", body.Code)
		assert.Equal(t, "-10.00", body.Details["difference"])

		rec = doJSON(t, h, http.MethodGet, "/api/v1/shifts/"+shift.ID, token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var still domain.Shift
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&still))
		assert.Equal(t, domain.ShiftStatusOpen, still.Status)
	})

	t.Run("balanced close", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, closePath, token, map[string]any{
			"closing_cash": "240",
			"payment_methods": []map[string]any{
				{"payment_method": "cash", "amount": "100"},
				{"payment_method": "card", "amount": "50", "reference": "batch-1"},
			},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp domain.CloseShiftResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, domain.ShiftStatusClosed, resp.Status)
		assert.True(t, decimal.NewFromInt(250).Equal(resp.ExpectedCash), "expected cash %s", resp.ExpectedCash)
		assert.True(t, decimal.NewFromInt(-10).Equal(resp.CashDifference), "difference %s", resp.CashDifference)
		assert.Equal(t, domain.VarianceShort, resp.Variance)
	})

	t.Run("payment methods are listed", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, closePath[:len(closePath)-len("/close")]+"/payment-methods", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			PaymentMethods []domain.ShiftPaymentMethod `json:"payment_methods"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Len(t, body.PaymentMethods, 2)
	})

	t.Run("sale on closed shift", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/sales", token, map[string]any{
			"shift_id":          shift.ID,
			"filling_system_id": "pump-1",
			"quantity":          "10",
			"price_per_unit":    "1",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_STATE", decodeError(t, rec).Code)
	})
}

func TestProfitLossOverHTTP(t *testing.T) {
	h := newTestAPI(t)
	token := login(t, h, "manager", "manager123")

	t.Run("custom period needs both bounds", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/v1/reports/profit-loss?period=custom&end_date=2024-01-31", token, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
	})

	t.Run("details flag must be boolean", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/v1/reports/profit-loss?period=day&details=maybe", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	rec := doJSON(t, h, http.MethodPost, "/api/v1/expenses", token, map[string]any{
		"amount":         "40",
		"category":       "utilities",
		"payment_status": "completed",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/v1/reports/profit-loss?period=month&details=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report domain.ProfitLossReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.True(t, decimal.NewFromInt(40).Equal(report.TotalExpenses))
	assert.True(t, decimal.NewFromInt(-40).Equal(report.Profit))
	assert.True(t, report.ProfitMargin.IsZero())
	require.NotNil(t, report.Details)
	assert.Len(t, report.Details.Expenses, 1)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/reports/profit-loss/summaries", token, map[string]any{
		"period": "month",
		"notes":  "month end",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/v1/reports/profit-loss/summaries?period=month", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Summaries []domain.ProfitLossSummary `json:"summaries"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Summaries, 1)
	assert.Equal(t, "month end", body.Summaries[0].Notes)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/transactions?period=month&entity_type=expense", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var txs struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&txs))
	assert.Len(t, txs.Transactions, 1)
}

func TestManagerCreatesEmployee(t *testing.T) {
	h := newTestAPI(t)
	token := login(t, h, "manager", "manager123")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/users", token, domain.CreateEmployeeRequest{
		Username: "nightshift",
		Password: "pump-pass-1",
		Role:     domain.RoleAttendant,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "pump-pass-1")

	login(t, h, "nightshift", "pump-pass-1")

	rec = doJSON(t, h, http.MethodPost, "/api/v1/users", token, domain.CreateEmployeeRequest{
		Username: "nightshift",
		Password: "another-pass",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
