package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fuelstation/backend/internal/apperror"
	"fuelstation/backend/internal/domain"
)

func (a *API) handleStartShift(c *gin.Context) {
	var req domain.StartShiftRequest
	if !bindJSON(c, &req) {
		return
	}
	shift, err := a.service.StartShift(c.Request.Context(), req)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, shift)
}

func (a *API) handleActiveShift(c *gin.Context) {
	shift, err := a.service.GetActiveShift(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, shift)
}

func (a *API) handleGetShift(c *gin.Context) {
	shift, err := a.service.GetShift(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, shift)
}

func (a *API) handleListShifts(c *gin.Context) {
	shifts, err := a.service.ListShifts(c.Request.Context(), c.Query("status"), parsePositiveLimit(c.Query("limit"), 50, 500))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shifts": shifts})
}

func (a *API) handleCloseShift(c *gin.Context) {
	var req domain.CloseShiftRequest
	if !bindJSON(c, &req) {
		return
	}
	req.ShiftID = c.Param("id")

	resp, err := a.service.CloseShift(c.Request.Context(), req)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleShiftPaymentMethods(c *gin.Context) {
	rows, err := a.service.GetShiftPaymentMethods(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_methods": rows})
}

func (a *API) handleRecordSale(c *gin.Context) {
	var req domain.RecordSaleRequest
	if !bindJSON(c, &req) {
		return
	}
	sale, err := a.service.RecordSale(c.Request.Context(), req)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

func (a *API) handleUpdateSale(c *gin.Context) {
	var req domain.UpdateSaleRequest
	if !bindJSON(c, &req) {
		return
	}
	req.SaleID = c.Param("id")

	sale, err := a.service.UpdateSale(c.Request.Context(), req)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (a *API) handleDeleteSale(c *gin.Context) {
	if err := a.service.DeleteSale(c.Request.Context(), c.Param("id")); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleCreateExpense(c *gin.Context) {
	var req domain.CreateExpenseRequest
	if !bindJSON(c, &req) {
		return
	}
	expense, err := a.service.CreateExpense(c.Request.Context(), req)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, expense)
}

func (a *API) handleCompleteExpense(c *gin.Context) {
	var req domain.CompleteExpenseRequest
	// The body is optional; the stored method is reused when absent.
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	req.ExpenseID = c.Param("id")

	expense, err := a.service.CompleteExpense(c.Request.Context(), req)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, expense)
}

func (a *API) handleDeleteExpense(c *gin.Context) {
	if err := a.service.DeleteExpense(c.Request.Context(), c.Param("id")); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleCreateFuelSupply(c *gin.Context) {
	var req domain.CreateFuelSupplyRequest
	if !bindJSON(c, &req) {
		return
	}
	supply, err := a.service.CreateFuelSupply(c.Request.Context(), req)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, supply)
}

func (a *API) handleListTransactions(c *gin.Context) {
	var q domain.PeriodQuery
	if !bindQuery(c, &q) {
		return
	}
	txs, err := a.service.ListTransactions(c.Request.Context(), q, c.Query("entity_type"), parsePositiveLimit(c.Query("limit"), 200, 1000))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (a *API) handleProfitLoss(c *gin.Context) {
	var q domain.PeriodQuery
	if !bindQuery(c, &q) {
		return
	}
	includeDetails := false
	if raw := c.Query("details"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			abort(c, apperror.NewValidation("details must be a boolean").WithDetail("details", raw))
			return
		}
		includeDetails = parsed
	}

	report, err := a.service.CalculateProfitLoss(c.Request.Context(), q, includeDetails)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (a *API) handleProfitLossSummaries(c *gin.Context) {
	var q domain.PeriodQuery
	if !bindQuery(c, &q) {
		return
	}
	summaries, err := a.service.GetProfitLossSummary(c.Request.Context(), q)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

func (a *API) handleGenerateProfitLoss(c *gin.Context) {
	var req domain.GenerateProfitLossRequest
	if !bindJSON(c, &req) {
		return
	}
	summary, err := a.service.GenerateAndSaveProfitLoss(c.Request.Context(), req)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}
