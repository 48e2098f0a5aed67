package httpapi

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"fuelstation/backend/internal/apperror"
	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/service"
	"fuelstation/backend/pkg/logger"
)

type Options struct {
	AllowedOrigins []string
	Logger         *logger.Logger
}

type API struct {
	service      *service.Service
	auth         *AuthManager
	origins      []string
	log          *logger.Logger
	loginLimiter *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	return &API{
		service:      svc,
		auth:         auth,
		origins:      opts.AllowedOrigins,
		log:          opts.Logger.WithComponent("http"),
		loginLimiter: newAttemptLimiter(5, time.Minute),
	}
}

func (a *API) Handler() http.Handler {
	router := gin.New()
	// Only the socket peer counts for rate limiting.
	_ = router.SetTrustedProxies(nil)

	router.Use(Recovery())
	router.Use(Trace())
	router.Use(RequestLogger(a.log))
	router.Use(ErrorHandler())
	router.Use(SecurityHeaders())
	if len(a.origins) > 0 {
		config := cors.DefaultConfig()
		if slices.Contains(a.origins, "*") {
			config.AllowAllOrigins = true
		} else {
			config.AllowOrigins = a.origins
		}
		config.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
		config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", HeaderRequestID}
		config.ExposeHeaders = []string{HeaderRequestID}
		router.Use(cors.New(config))
	}
	router.Use(BodyLimit(maxJSONBody))

	router.GET("/healthz", a.handleHealth)

	v1 := router.Group("/api/v1")
	v1.POST("/auth/login", a.loginLimiter.Limit("too many login attempts"), a.handleLogin)

	staff := v1.Group("", a.requireAuth(domain.RoleManager, domain.RoleAttendant))
	manager := v1.Group("", a.requireAuth(domain.RoleManager))

	staff.POST("/shifts", a.handleStartShift)
	staff.GET("/shifts/active", a.handleActiveShift)
	staff.GET("/shifts/:id", a.handleGetShift)
	staff.POST("/shifts/:id/close", a.handleCloseShift)
	staff.GET("/shifts/:id/payment-methods", a.handleShiftPaymentMethods)
	manager.GET("/shifts", a.handleListShifts)

	staff.POST("/sales", a.handleRecordSale)
	manager.PATCH("/sales/:id", a.handleUpdateSale)
	manager.DELETE("/sales/:id", a.handleDeleteSale)

	manager.POST("/expenses", a.handleCreateExpense)
	manager.POST("/expenses/:id/complete", a.handleCompleteExpense)
	manager.DELETE("/expenses/:id", a.handleDeleteExpense)
	manager.POST("/fuel-supplies", a.handleCreateFuelSupply)
	manager.GET("/transactions", a.handleListTransactions)

	manager.GET("/reports/profit-loss", a.handleProfitLoss)
	manager.GET("/reports/profit-loss/summaries", a.handleProfitLossSummaries)
	manager.POST("/reports/profit-loss/summaries", a.handleGenerateProfitLoss)

	manager.GET("/audit-logs", a.handleAuditLogs)
	manager.GET("/users", a.handleListEmployees)
	manager.POST("/users", a.handleCreateEmployee)

	return router
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(c *gin.Context) {
	var req domain.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := a.auth.Login(c.Request.Context(), req)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleAuditLogs(c *gin.Context) {
	var q domain.PeriodQuery
	if !bindQuery(c, &q) {
		return
	}
	logs, err := a.service.ListAuditLogs(c.Request.Context(), q, parsePositiveLimit(c.Query("limit"), 100, 500))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": logs})
}

func (a *API) handleListEmployees(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": a.auth.ListEmployees(c.Request.Context())})
}

func (a *API) handleCreateEmployee(c *gin.Context) {
	var req domain.CreateEmployeeRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := a.auth.CreateEmployee(c.Request.Context(), req)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// bindJSON decodes the body; a malformed or oversized body is a validation
// error.
func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		abort(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dest any) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		abort(c, apperror.NewValidation("invalid query").WithDetail("error", err.Error()))
		return false
	}
	return true
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}
