package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "finbot/internal/errors"
	"finbot/internal/models"
	"finbot/internal/pagination"
	"finbot/internal/services"
)

// BudgetHandler handles budget-related requests.
type BudgetHandler struct {
	budgetService services.BudgetServicer
	reportService services.ReportServicer
	auditService  services.AuditServicer
	now           func() time.Time
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer, reportService services.ReportServicer, auditService services.AuditServicer) *BudgetHandler {
	return &BudgetHandler{
		budgetService: budgetService,
		reportService: reportService,
		auditService:  auditService,
		now:           time.Now,
	}
}

// BudgetCategoryRequest is one allocation line of a budget request.
type BudgetCategoryRequest struct {
	Category string `json:"category" binding:"required,category_name"`
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Alerts   []int  `json:"alerts" binding:"omitempty,dive,min=1,max=1000"`
}

// BudgetRequest is the body of budget create and update. Dates accept RFC3339
// or YYYY-MM-DD; a date-only endDate covers the whole day.
type BudgetRequest struct {
	Period            models.BudgetPeriod     `json:"period" binding:"omitempty,budget_period"`
	StartDate         string                  `json:"startDate"`
	EndDate           string                  `json:"endDate"`
	TotalBudget       int64                   `json:"totalBudget" binding:"required,gt=0"`
	IsActive          *bool                   `json:"isActive"`
	WarningThreshold  int                     `json:"warningThreshold" binding:"omitempty,min=1,max=1000"`
	CriticalThreshold int                     `json:"criticalThreshold" binding:"omitempty,min=1,max=1000"`
	Categories        []BudgetCategoryRequest `json:"categories" binding:"required,min=1,dive"`
	Version           *int                    `json:"version" binding:"omitempty,min=1"`
}

func (r BudgetRequest) toInput() (services.BudgetInput, error) {
	in := services.BudgetInput{
		Period:            r.Period,
		TotalBudget:       r.TotalBudget,
		IsActive:          r.IsActive,
		WarningThreshold:  r.WarningThreshold,
		CriticalThreshold: r.CriticalThreshold,
		Categories:        make([]services.BudgetCategoryInput, 0, len(r.Categories)),
	}
	if r.StartDate != "" {
		t, err := parseDate(r.StartDate, false)
		if err != nil {
			return in, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid startDate format, use RFC3339 or YYYY-MM-DD")
		}
		in.StartDate = t
	}
	if r.EndDate != "" {
		t, err := parseDate(r.EndDate, true)
		if err != nil {
			return in, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid endDate format, use RFC3339 or YYYY-MM-DD")
		}
		in.EndDate = t
	}
	for _, c := range r.Categories {
		in.Categories = append(in.Categories, services.BudgetCategoryInput{
			Category: c.Category,
			Amount:   c.Amount,
			Alerts:   c.Alerts,
		})
	}
	return in, nil
}

// BudgetWithStatus is a budget plus its derived status.
type BudgetWithStatus struct {
	Budget *models.Budget      `json:"budget"`
	Status models.BudgetStatus `json:"status"`
}

func withStatus(b *models.Budget) BudgetWithStatus {
	return BudgetWithStatus{Budget: b, Status: b.Status()}
}

// CreateBudget handles the creation of a new budget
// @Summary     Create a budget
// @Description Create a budget with per-category allocations. Category amounts must sum to totalBudget and active budgets of one user may not overlap.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body BudgetRequest true "Budget details"
// @Success     201 {object} SuccessResponse{data=BudgetWithStatus} "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input or total mismatch"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Overlapping budget"
// @Router      /budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	in, err := req.toInput()
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.CreateBudget(userID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditCreateBudget, services.ResourceBudget, budget.ID, c.ClientIP(),
		map[string]interface{}{"period": budget.Period, "totalBudget": budget.TotalBudget})

	respond(c, http.StatusCreated, withStatus(budget))
}

// GetBudgets lists the user's budgets
// @Summary     List budgets
// @Description Get the authenticated user's budgets, newest window first
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int    false "Page number"
// @Param       limit     query int    false "Page size (max 100)"
// @Param       active    query bool   false "Filter by active flag; true also excludes budgets whose window has ended"
// @Param       period    query string false "Filter by period (daily, weekly, monthly, yearly)"
// @Param       startDate query string false "Budgets starting on or after this date"
// @Param       endDate   query string false "Budgets starting on or before this date"
// @Success     200 {object} SuccessResponse{data=pagination.PageResponse[models.Budget]} "Paginated budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /budgets [get]
func (h *BudgetHandler) GetBudgets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	var filter services.BudgetFilter
	if filter.IsActive, err = parseBoolQuery(c, "active"); err != nil {
		respondWithError(c, err)
		return
	}
	if v := c.Query("period"); v != "" {
		period := models.BudgetPeriod(v)
		if !period.Valid() {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be one of daily, weekly, monthly, yearly"))
			return
		}
		filter.Period = &period
	}
	if filter.FromDate, err = parseDateQuery(c, "startDate", false); err != nil {
		respondWithError(c, err)
		return
	}
	if filter.ToDate, err = parseDateQuery(c, "endDate", true); err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.budgetService.GetUserBudgets(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respond(c, http.StatusOK, result)
}

// GetCurrentBudget returns the active budget covering now
// @Summary     Get current budget
// @Description Get the active budget whose window contains the current time, with its status and recent expenses
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} SuccessResponse{data=services.BudgetDetail} "Current budget"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "No active budget"
// @Router      /budgets/current [get]
func (h *BudgetHandler) GetCurrentBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	detail, err := h.budgetService.GetCurrentBudget(userID, h.now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"budget":             detail.Budget,
		"status":             detail.Status,
		"recentTransactions": detail.Transactions,
	})
}

// GetBudgetOverview rolls up recent budgets
// @Summary     Budget overview
// @Description Per-budget status, per-category totals and overall savings for budgets started in the last N months
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       months query int false "Months to include (default 6)"
// @Success     200 {object} SuccessResponse{data=services.BudgetOverview} "Overview"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /budgets/analysis/overview [get]
func (h *BudgetHandler) GetBudgetOverview(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	months, err := parseIntQuery(c, "months")
	if err != nil {
		respondWithError(c, err)
		return
	}

	overview, err := h.reportService.GetBudgetOverview(userID, months)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respond(c, http.StatusOK, overview)
}

// GetBudget returns a budget with its status and covered expenses
// @Summary     Get budget by ID
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} SuccessResponse{data=services.BudgetDetail} "Budget details"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id} [get]
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	detail, err := h.budgetService.GetBudgetDetail(userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	respond(c, http.StatusOK, detail)
}

// UpdateBudget replaces a budget's settings and allocations
// @Summary     Update budget
// @Description Update a budget. Spent counters are kept for categories that remain. Send version to guard against concurrent edits.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string        true "Budget ID"
// @Param       request body BudgetRequest true "Budget details"
// @Success     200 {object} SuccessResponse{data=BudgetWithStatus} "Updated budget"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     409 {object} ErrorResponse "Overlap or concurrent modification"
// @Router      /budgets/{id} [put]
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	in, err := req.toInput()
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID := c.Param("id")
	budget, err := h.budgetService.UpdateBudget(userID, budgetID, in, req.Version)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditUpdateBudget, services.ResourceBudget, budgetID, c.ClientIP(),
		map[string]interface{}{"version": budget.Version, "totalBudget": budget.TotalBudget})

	respond(c, http.StatusOK, withStatus(budget))
}

// DeleteBudget deletes a budget
// @Summary     Delete budget
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} MessageResponse "Budget deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id} [delete]
func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID := c.Param("id")
	if err := h.budgetService.DeleteBudget(userID, budgetID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditDeleteBudget, services.ResourceBudget, budgetID, c.ClientIP(), nil)

	respondMessage(c, "Budget deleted successfully")
}

// RecalculateBudget rebuilds spent counters from transactions
// @Summary     Recalculate budget
// @Description Recompute every category's spent value from the expenses inside the budget window
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} SuccessResponse{data=BudgetWithStatus} "Recalculated budget"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id}/recalculate [post]
func (h *BudgetHandler) RecalculateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID := c.Param("id")
	budget, err := h.budgetService.RecalculateBudget(userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditRecalculateBudget, services.ResourceBudget, budgetID, c.ClientIP(), nil)

	respond(c, http.StatusOK, withStatus(budget))
}
