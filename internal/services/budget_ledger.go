package services

import (
	"time"

	"gorm.io/gorm"

	apperrors "finbot/internal/errors"
	"finbot/internal/events"
	"finbot/internal/models"
)

// budgetLedger maintains BudgetCategory.Spent as a running counter. Counter
// changes are single UPDATE statements so two concurrent expenses can never
// overwrite each other.
type budgetLedger struct {
	now func() time.Time
}

// NewBudgetLedger creates a new BudgetLedger.
func NewBudgetLedger() BudgetLedger {
	return &budgetLedger{now: time.Now}
}

// ledgerTarget identifies the budget category an expense lands in.
type ledgerTarget struct {
	CategoryID        string
	BudgetID          string
	CriticalThreshold int
}

// findTarget locates the active, non-deleted budget of the owner whose window
// contains the transaction date and which has an allocation for its category.
func (l *budgetLedger) findTarget(tx *gorm.DB, txn *models.Transaction) (*ledgerTarget, error) {
	var target ledgerTarget
	err := tx.Table("budget_categories").
		Select("budget_categories.id AS category_id, budgets.id AS budget_id, budgets.critical_threshold AS critical_threshold").
		Joins("JOIN budgets ON budgets.id = budget_categories.budget_id").
		Where("budgets.user_id = ? AND budgets.is_active = ? AND budgets.deleted_at IS NULL", txn.UserID, true).
		Where("budgets.start_date <= ? AND budgets.end_date >= ?", txn.Date.UTC(), txn.Date.UTC()).
		Where("budget_categories.category = ? AND budget_categories.deleted_at IS NULL", txn.Category).
		Order("budgets.start_date DESC").
		Limit(1).
		Scan(&target).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if target.CategoryID == "" {
		return nil, nil
	}
	return &target, nil
}

// ApplyExpense adds an expense to its budget category and latches every
// alert the new total reaches. Income and expenses outside any budget are
// ignored.
func (l *budgetLedger) ApplyExpense(tx *gorm.DB, txn *models.Transaction) ([]TriggeredAlert, error) {
	if !txn.IsExpense() {
		return nil, nil
	}

	target, err := l.findTarget(tx, txn)
	if err != nil || target == nil {
		return nil, err
	}

	res := tx.Model(&models.BudgetCategory{}).
		Where("id = ?", target.CategoryID).
		Update("spent", gorm.Expr("spent + ?", txn.Amount))
	if res.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.ErrConcurrentModification
	}

	return l.latchAlerts(tx, target)
}

// latchAlerts re-reads the category and marks reached alerts as triggered.
// The conditional update makes each alert fire at most once even when two
// requests race past the same threshold.
func (l *budgetLedger) latchAlerts(tx *gorm.DB, target *ledgerTarget) ([]TriggeredAlert, error) {
	var category models.BudgetCategory
	if err := tx.Preload("Alerts").Where("id = ?", target.CategoryID).First(&category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConcurrentModification, err)
	}

	now := l.now().UTC()
	var triggered []TriggeredAlert
	for _, alert := range category.PendingAlerts() {
		res := tx.Model(&models.BudgetAlert{}).
			Where("id = ? AND is_triggered = ?", alert.ID, false).
			Updates(map[string]interface{}{"is_triggered": true, "triggered_at": now})
		if res.Error != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		triggered = append(triggered, TriggeredAlert{
			BudgetID:  target.BudgetID,
			Category:  category.Category,
			Threshold: alert.Threshold,
			Level:     alertLevel(alert.Threshold, target.CriticalThreshold),
			Spent:     category.Spent,
			Budgeted:  category.Amount,
		})
	}
	return triggered, nil
}

func alertLevel(threshold, critical int) events.AlertLevel {
	if threshold >= critical {
		return events.AlertLevelCritical
	}
	return events.AlertLevelWarning
}

// RevertExpense subtracts a removed expense from its budget category, never
// going below zero. Triggered alerts stay triggered.
func (l *budgetLedger) RevertExpense(tx *gorm.DB, txn *models.Transaction) error {
	if !txn.IsExpense() {
		return nil
	}

	target, err := l.findTarget(tx, txn)
	if err != nil || target == nil {
		return err
	}

	res := tx.Model(&models.BudgetCategory{}).
		Where("id = ?", target.CategoryID).
		Update("spent", gorm.Expr("CASE WHEN spent > ? THEN spent - ? ELSE 0 END", txn.Amount, txn.Amount))
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrConcurrentModification
	}
	return nil
}

// Reconcile moves an edited transaction from its old budget category to its
// new one. Each leg finds its budget on its own, so a date or category
// change can cross budgets.
func (l *budgetLedger) Reconcile(tx *gorm.DB, old, updated *models.Transaction) ([]TriggeredAlert, error) {
	if old.Type == updated.Type &&
		old.Amount == updated.Amount &&
		old.Category == updated.Category &&
		old.Date.Equal(updated.Date) {
		return nil, nil
	}

	if err := l.RevertExpense(tx, old); err != nil {
		return nil, err
	}
	return l.ApplyExpense(tx, updated)
}

// CheckOverlap rejects [start, end] when it intersects another active budget
// of the same owner.
func (l *budgetLedger) CheckOverlap(tx *gorm.DB, userID string, start, end time.Time, excludeID string) error {
	q := tx.Model(&models.Budget{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Where("start_date <= ? AND end_date >= ?", end.UTC(), start.UTC())
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrBudgetOverlap
	}
	return nil
}

// CheckTotals enforces that the allocations add up to the total exactly.
func CheckTotals(total int64, categories []BudgetCategoryInput) error {
	var sum int64
	for _, c := range categories {
		sum += c.Amount
	}
	if sum != total {
		return apperrors.ErrBudgetTotalMismatch
	}
	return nil
}

// Recalculate rebuilds every category counter of budget from the expense
// transactions inside its window and latches any alert the rebuilt value
// reaches.
func (l *budgetLedger) Recalculate(tx *gorm.DB, budget *models.Budget) error {
	for i := range budget.Categories {
		category := &budget.Categories[i]

		var spent int64
		err := tx.Model(&models.Transaction{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("user_id = ? AND type = ? AND category = ?", budget.UserID, models.TransactionTypeExpense, category.Category).
			Where("date >= ? AND date <= ?", budget.StartDate.UTC(), budget.EndDate.UTC()).
			Scan(&spent).Error
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		res := tx.Model(&models.BudgetCategory{}).Where("id = ?", category.ID).Update("spent", spent)
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrConcurrentModification
		}
		category.Spent = spent

		target := &ledgerTarget{CategoryID: category.ID, BudgetID: budget.ID, CriticalThreshold: budget.CriticalThreshold}
		if _, err := l.latchAlerts(tx, target); err != nil {
			return err
		}
	}
	return nil
}
