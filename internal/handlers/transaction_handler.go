package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "finbot/internal/errors"
	"finbot/internal/models"
	"finbot/internal/pagination"
	"finbot/internal/services"
)

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
	reportService      services.ReportServicer
	auditService       services.AuditServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer, reportService services.ReportServicer, auditService services.AuditServicer) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		reportService:      reportService,
		auditService:       auditService,
	}
}

// CreateTransactionRequest represents the request payload for creating a transaction
type CreateTransactionRequest struct {
	Type        models.TransactionType   `json:"type" binding:"required,transaction_type"`
	Amount      int64                    `json:"amount" binding:"required,gt=0"`
	Category    string                   `json:"category" binding:"required,category_name"`
	Description string                   `json:"description" binding:"max=500"`
	Date        string                   `json:"date"`
	Source      models.TransactionSource `json:"source" binding:"omitempty,transaction_source"`
}

// CreateTransaction records an income or expense
// @Summary     Create a transaction
// @Description Record an income or expense. An expense inside an active budget window increments the matching category and may trigger alerts.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} SuccessResponse{data=services.TransactionResult} "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Concurrent modification"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	in := services.TransactionInput{
		Type:        req.Type,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Source:      req.Source,
	}
	if req.Date != "" {
		if in.Date, err = parseDate(req.Date, false); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid date format, use RFC3339 or YYYY-MM-DD"))
			return
		}
	}

	result, err := h.transactionService.CreateTransaction(userID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditCreateTransaction, services.ResourceTransaction, result.Transaction.ID, c.ClientIP(),
		map[string]interface{}{"type": req.Type, "amount": req.Amount, "category": result.Transaction.Category})

	respond(c, http.StatusCreated, result)
}

// GetUserTransactions lists the user's transactions
// @Summary     List transactions
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int    false "Page number"
// @Param       limit     query int    false "Page size (max 100)"
// @Param       startDate query string false "From date (RFC3339 or YYYY-MM-DD)"
// @Param       endDate   query string false "To date, inclusive (RFC3339 or YYYY-MM-DD)"
// @Param       type      query string false "income or expense"
// @Param       category  query string false "Category name"
// @Param       source    query string false "web or chat"
// @Param       minAmount query int    false "Minimum amount"
// @Param       maxAmount query int    false "Maximum amount"
// @Param       sort      query string false "date_desc (default), date_asc, amount_desc, amount_asc"
// @Success     200 {object} SuccessResponse{data=pagination.PageResponse[models.Transaction]} "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /transactions [get]
func (h *TransactionHandler) GetUserTransactions(c *gin.Context) {
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

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.GetUserTransactions(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respond(c, http.StatusOK, result)
}

func parseTransactionFilter(c *gin.Context) (services.TransactionFilter, error) {
	var (
		filter services.TransactionFilter
		err    error
	)

	if filter.FromDate, err = parseDateQuery(c, "startDate", false); err != nil {
		return filter, err
	}
	if filter.ToDate, err = parseDateQuery(c, "endDate", true); err != nil {
		return filter, err
	}

	if v := c.Query("type"); v != "" {
		txType := models.TransactionType(v)
		if !txType.Valid() {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid type, must be income or expense")
		}
		filter.Type = &txType
	}

	if v := c.Query("category"); v != "" {
		category := models.NormalizeCategory(v)
		filter.Category = &category
	}

	if v := c.Query("source"); v != "" {
		source := models.TransactionSource(v)
		if source != models.TransactionSourceWeb && source != models.TransactionSourceChat {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid source, must be web or chat")
		}
		filter.Source = &source
	}

	for key, dst := range map[string]**int64{"minAmount": &filter.MinAmount, "maxAmount": &filter.MaxAmount} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		amt, err := strconv.ParseInt(v, 10, 64)
		if err != nil || amt < 0 {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid "+key)
		}
		*dst = &amt
	}

	filter.Sort = c.Query("sort")
	return filter, nil
}

// GetPeriodSummary totals transactions per type and category
// @Summary     Period summary
// @Description Totals per (type, category) between startDate and endDate. Defaults to the current month.
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       startDate query string false "From date (RFC3339 or YYYY-MM-DD)"
// @Param       endDate   query string false "To date, inclusive (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} SuccessResponse{data=services.PeriodSummary} "Summary"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /transactions/summary/period [get]
func (h *TransactionHandler) GetPeriodSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	start, end := models.BudgetPeriodMonthly.Window(time.Now())
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

	summary, err := h.reportService.GetPeriodSummary(userID, start, end)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respond(c, http.StatusOK, summary)
}

// GetTransactionByID returns one transaction
// @Summary     Get transaction by ID
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} SuccessResponse{data=models.Transaction} "Transaction details"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransactionByID(userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	respond(c, http.StatusOK, transaction)
}

// UpdateTransactionRequest represents the request payload for updating a transaction.
type UpdateTransactionRequest struct {
	Type        *models.TransactionType `json:"type" binding:"omitempty,transaction_type"`
	Amount      *int64                  `json:"amount" binding:"omitempty,gt=0"`
	Category    *string                 `json:"category" binding:"omitempty,category_name"`
	Description *string                 `json:"description" binding:"omitempty,max=500"`
	Date        *string                 `json:"date"`
}

// UpdateTransaction changes a transaction and moves budget counters with it
// @Summary     Update transaction
// @Description Update type, amount, category, description or date. The old effect on budgets is reversed and the new one applied in one database transaction.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                   true "Transaction ID"
// @Param       request body UpdateTransactionRequest true "Fields to update"
// @Success     200 {object} SuccessResponse{data=services.TransactionResult} "Updated transaction"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	upd := services.TransactionUpdate{
		Type:        req.Type,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
	}
	if req.Date != nil && *req.Date != "" {
		parsed, parseErr := parseDate(*req.Date, false)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid date format, use RFC3339 or YYYY-MM-DD"))
			return
		}
		upd.Date = &parsed
	}

	txID := c.Param("id")
	result, err := h.transactionService.UpdateTransaction(userID, txID, upd)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditUpdateTransaction, services.ResourceTransaction, txID, c.ClientIP(), nil)

	respond(c, http.StatusOK, result)
}

// DeleteTransaction deletes a transaction and reverses its budget effect
// @Summary     Delete transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} MessageResponse "Transaction deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	txID := c.Param("id")
	if err := h.transactionService.DeleteTransaction(userID, txID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditDeleteTransaction, services.ResourceTransaction, txID, c.ClientIP(), nil)

	respondMessage(c, "Transaction deleted successfully")
}
