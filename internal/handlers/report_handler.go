package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "finbot/internal/errors"
	"finbot/internal/models"
	"finbot/internal/services"
)

// ReportHandler serves read-only financial reports.
type ReportHandler struct {
	reportService services.ReportServicer
	now           func() time.Time
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService services.ReportServicer) *ReportHandler {
	return &ReportHandler{reportService: reportService, now: time.Now}
}

// GetSummary returns income, expense and balance for one period
// @Summary     Financial summary
// @Description Totals and per-category breakdown for the daily, weekly, monthly or yearly period containing date.
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       period query string false "daily, weekly, monthly (default) or yearly"
// @Param       date   query string false "Any date inside the period (YYYY-MM-DD), default today"
// @Success     200 {object} SuccessResponse{data=services.Summary} "Summary"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /reports/summary [get]
func (h *ReportHandler) GetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	period := models.BudgetPeriodMonthly
	if v := c.Query("period"); v != "" {
		period = models.BudgetPeriod(v)
		if !period.Valid() {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be one of daily, weekly, monthly, yearly"))
			return
		}
	}

	at := h.now()
	if d, err := parseDateQuery(c, "date", false); err != nil {
		respondWithError(c, err)
		return
	} else if d != nil {
		at = *d
	}

	summary, err := h.reportService.GetSummary(userID, period, at)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respond(c, http.StatusOK, summary)
}

// GetTrends returns monthly income and expense totals
// @Summary     Monthly trends
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       months query int false "Number of months back, including the current one (default 12)"
// @Success     200 {object} SuccessResponse{data=services.Trends} "Trends"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /reports/trends [get]
func (h *ReportHandler) GetTrends(c *gin.Context) {
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

	trends, err := h.reportService.GetTrends(userID, months)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respond(c, http.StatusOK, trends)
}

// GetAnalysis returns spending patterns for a date range
// @Summary     Spending analysis
// @Description Day-of-week and hour buckets, frequent transactions and ratios between startDate and endDate. Defaults to the last 30 days.
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       startDate query string false "From date (RFC3339 or YYYY-MM-DD)"
// @Param       endDate   query string false "To date, inclusive (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} SuccessResponse{data=services.Analysis} "Analysis"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /reports/analysis [get]
func (h *ReportHandler) GetAnalysis(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	end := h.now().UTC()
	start := end.AddDate(0, 0, -30)
	if from, err := parseDateQuery(c, "startDate", false); err != nil {
		respondWithError(c, err)
		return
	} else if from != nil {
		start = *from
	}
	if to, err := parseDateQuery(c, "endDate", true); err != nil {
		respondWithError(c, err)
		return
	} else if to != nil {
		end = *to
	}
	if end.Before(start) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "endDate must not be before startDate"))
		return
	}

	analysis, err := h.reportService.GetAnalysis(userID, start, end)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respond(c, http.StatusOK, analysis)
}
