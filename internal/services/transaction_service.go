package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "finbot/internal/errors"
	"finbot/internal/events"
	"finbot/internal/logger"
	"finbot/internal/models"
	"finbot/internal/pagination"
)

// transactionSorts whitelists the ORDER BY clauses a caller may request.
var transactionSorts = map[string]string{
	"":            "date DESC, created_at DESC",
	"date_desc":   "date DESC, created_at DESC",
	"date_asc":    "date ASC, created_at ASC",
	"amount_desc": "amount DESC, date DESC",
	"amount_asc":  "amount ASC, date DESC",
}

// transactionService handles transaction-related business logic. Every
// mutation updates the owning budget through the ledger in the same database
// transaction as the row write.
type transactionService struct {
	db        *gorm.DB
	ledger    BudgetLedger
	publisher events.Publisher
	now       func() time.Time
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB, ledger BudgetLedger, publisher events.Publisher) TransactionServicer {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &transactionService{
		db:        db,
		ledger:    ledger,
		publisher: publisher,
		now:       time.Now,
	}
}

func validateTransaction(txn *models.Transaction) error {
	if !txn.Type.Valid() {
		return apperrors.ErrInvalidTransactionType
	}
	if txn.Amount <= 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than 0")
	}
	if txn.Category == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "category is required")
	}
	return nil
}

// CreateTransaction records a transaction and, for expenses, adds it to the
// matching budget category.
func (s *transactionService) CreateTransaction(userID string, in TransactionInput) (*TransactionResult, error) {
	if in.Date.IsZero() {
		in.Date = s.now()
	}
	if in.Source == "" {
		in.Source = models.TransactionSourceWeb
	}

	txn := &models.Transaction{
		UserID:      userID,
		Type:        in.Type,
		Amount:      in.Amount,
		Category:    models.NormalizeCategory(in.Category),
		Description: in.Description,
		Date:        in.Date.UTC(),
		Source:      in.Source,
	}
	if err := validateTransaction(txn); err != nil {
		return nil, err
	}

	var alerts []TriggeredAlert
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(txn).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		var err error
		alerts, err = s.ledger.ApplyExpense(tx, txn)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishAlerts(txn, alerts)
	return &TransactionResult{Transaction: txn, Alerts: nonNilAlerts(alerts)}, nil
}

// GetUserTransactions retrieves a paginated, filtered list of the user's transactions.
func (s *transactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	order, ok := transactionSorts[filter.Sort]
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "sort must be one of date_desc, date_asc, amount_desc, amount_asc")
	}

	page.Defaults()

	base := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	base = applyTransactionFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Order(order).Scopes(pagination.Paginate(page)).Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.Limit, totalItems)
	return &result, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", f.FromDate.UTC())
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", f.ToDate.UTC())
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.Category != nil {
		q = q.Where("category = ?", models.NormalizeCategory(*f.Category))
	}
	if f.Source != nil {
		q = q.Where("source = ?", *f.Source)
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	return q
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// UpdateTransaction applies the changed fields and moves the amount between
// budget categories when the type, amount, category or date changed.
func (s *transactionService) UpdateTransaction(userID, transactionID string, in TransactionUpdate) (*TransactionResult, error) {
	var (
		updated models.Transaction
		alerts  []TriggeredAlert
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var current models.Transaction
		if err := tx.Where("id = ? AND user_id = ?", transactionID, userID).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrTransactionNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		updated = current
		if in.Type != nil {
			updated.Type = *in.Type
		}
		if in.Amount != nil {
			updated.Amount = *in.Amount
		}
		if in.Category != nil {
			updated.Category = models.NormalizeCategory(*in.Category)
		}
		if in.Description != nil {
			updated.Description = *in.Description
		}
		if in.Date != nil {
			updated.Date = in.Date.UTC()
		}
		if err := validateTransaction(&updated); err != nil {
			return err
		}

		err := tx.Model(&updated).
			Select("type", "amount", "category", "description", "date").
			Updates(&updated).Error
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		alerts, err = s.ledger.Reconcile(tx, &current, &updated)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishAlerts(&updated, alerts)
	return &TransactionResult{Transaction: &updated, Alerts: nonNilAlerts(alerts)}, nil
}

// DeleteTransaction deletes a transaction and takes it back out of its budget.
func (s *transactionService) DeleteTransaction(userID, transactionID string) error {
	transaction, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(transaction)
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrTransactionNotFound
		}
		return s.ledger.RevertExpense(tx, transaction)
	})
}

// publishAlerts emits one event per newly triggered alert. It runs after
// commit; failures are logged only.
func (s *transactionService) publishAlerts(txn *models.Transaction, alerts []TriggeredAlert) {
	if len(alerts) == 0 {
		return
	}
	now := s.now().UTC()
	for _, a := range alerts {
		event := events.BudgetAlertEvent{
			UserID:        txn.UserID,
			TransactionID: txn.ID,
			BudgetID:      a.BudgetID,
			Category:      a.Category,
			Threshold:     a.Threshold,
			Level:         a.Level,
			Spent:         a.Spent,
			Budgeted:      a.Budgeted,
			TriggeredAt:   now,
		}
		if err := s.publisher.PublishBudgetAlert(context.Background(), event); err != nil {
			logger.Get().Warnw("failed to publish budget alert",
				"error", err,
				"budget_id", a.BudgetID,
				"category", a.Category,
				"threshold", a.Threshold,
			)
		}
	}
}

func nonNilAlerts(alerts []TriggeredAlert) []TriggeredAlert {
	if alerts == nil {
		return []TriggeredAlert{}
	}
	return alerts
}
