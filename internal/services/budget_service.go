package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "finbot/internal/errors"
	"finbot/internal/models"
	"finbot/internal/pagination"
)

const (
	maxAlertThreshold  = 1000
	recentTransactions = 10
)

// budgetService handles budget-related business logic.
type budgetService struct {
	db                *gorm.DB
	ledger            BudgetLedger
	warningThreshold  int
	criticalThreshold int
	now               func() time.Time
}

// NewBudgetService creates a new BudgetServicer. The thresholds are applied to
// budgets created without explicit ones.
func NewBudgetService(db *gorm.DB, ledger BudgetLedger, warningThreshold, criticalThreshold int) BudgetServicer {
	if warningThreshold <= 0 {
		warningThreshold = models.DefaultWarningThreshold
	}
	if criticalThreshold <= 0 {
		criticalThreshold = models.DefaultCriticalThreshold
	}
	return &budgetService{
		db:                db,
		ledger:            ledger,
		warningThreshold:  warningThreshold,
		criticalThreshold: criticalThreshold,
		now:               time.Now,
	}
}

// withCategories preloads allocations and their alerts in display order.
func withCategories(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Categories", func(db *gorm.DB) *gorm.DB {
			return db.Order("budget_categories.position ASC")
		}).
		Preload("Categories.Alerts", func(db *gorm.DB) *gorm.DB {
			return db.Order("budget_alerts.threshold ASC")
		})
}

// normalizeInput fills defaults and validates everything that does not need
// the database: period, window, thresholds, category names and the sum.
func (s *budgetService) normalizeInput(in BudgetInput) (BudgetInput, error) {
	if !in.Period.Valid() {
		return in, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be one of daily, weekly, monthly, yearly")
	}

	if in.StartDate.IsZero() {
		in.StartDate, in.EndDate = in.Period.Window(s.now())
	} else if in.EndDate.IsZero() {
		in.EndDate = in.Period.End(in.StartDate)
	}
	in.StartDate = in.StartDate.UTC()
	in.EndDate = in.EndDate.UTC()
	if !in.StartDate.Before(in.EndDate) {
		return in, apperrors.ErrInvalidBudgetPeriod
	}

	if in.TotalBudget <= 0 {
		return in, apperrors.WithMessage(apperrors.ErrInvalidInput, "totalBudget must be greater than 0")
	}

	if in.WarningThreshold == 0 {
		in.WarningThreshold = s.warningThreshold
	}
	if in.CriticalThreshold == 0 {
		in.CriticalThreshold = s.criticalThreshold
	}
	if in.WarningThreshold < 1 || in.CriticalThreshold > maxAlertThreshold || in.WarningThreshold > in.CriticalThreshold {
		return in, apperrors.WithMessage(apperrors.ErrInvalidInput, "thresholds must satisfy 1 <= warningThreshold <= criticalThreshold")
	}

	if len(in.Categories) == 0 {
		return in, apperrors.WithMessage(apperrors.ErrInvalidInput, "at least one category is required")
	}

	seen := make(map[string]struct{}, len(in.Categories))
	categories := make([]BudgetCategoryInput, 0, len(in.Categories))
	for i, c := range in.Categories {
		c.Category = models.NormalizeCategory(c.Category)
		if c.Category == "" {
			return in, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("categories[%d].category is required", i))
		}
		if _, dup := seen[c.Category]; dup {
			return in, apperrors.WithMessage(apperrors.ErrDuplicateCategory, fmt.Sprintf("category %q appears more than once", c.Category))
		}
		seen[c.Category] = struct{}{}
		if c.Amount <= 0 {
			return in, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("categories[%d].amount must be greater than 0", i))
		}
		alerts, err := normalizeThresholds(c.Alerts)
		if err != nil {
			return in, err
		}
		c.Alerts = alerts
		categories = append(categories, c)
	}
	in.Categories = categories

	return in, CheckTotals(in.TotalBudget, in.Categories)
}

func normalizeThresholds(thresholds []int) ([]int, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}
	seen := make(map[int]struct{}, len(thresholds))
	out := make([]int, 0, len(thresholds))
	for _, t := range thresholds {
		if t < 1 || t > maxAlertThreshold {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "alert thresholds must be between 1 and 1000")
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

func buildAlerts(thresholds []int, warning, critical int) []models.BudgetAlert {
	if len(thresholds) == 0 {
		return models.DefaultAlerts(warning, critical)
	}
	alerts := make([]models.BudgetAlert, 0, len(thresholds))
	for _, t := range thresholds {
		alerts = append(alerts, models.BudgetAlert{Threshold: t})
	}
	return alerts
}

// CreateBudget creates a budget with its allocations. Counters start at zero.
func (s *budgetService) CreateBudget(userID string, in BudgetInput) (*models.Budget, error) {
	in, err := s.normalizeInput(in)
	if err != nil {
		return nil, err
	}

	budget := &models.Budget{
		UserID:            userID,
		Period:            in.Period,
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		TotalBudget:       in.TotalBudget,
		IsActive:          in.IsActive == nil || *in.IsActive,
		WarningThreshold:  in.WarningThreshold,
		CriticalThreshold: in.CriticalThreshold,
		Version:           1,
	}
	for i, c := range in.Categories {
		budget.Categories = append(budget.Categories, models.BudgetCategory{
			Position: i,
			Category: c.Category,
			Amount:   c.Amount,
			Alerts:   buildAlerts(c.Alerts, in.WarningThreshold, in.CriticalThreshold),
		})
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if budget.IsActive {
			if err := s.ledger.CheckOverlap(tx, userID, budget.StartDate, budget.EndDate, ""); err != nil {
				return err
			}
		}
		if err := tx.Create(budget).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return budget, nil
}

// GetUserBudgets returns a paginated list of budgets for the user with optional filters.
// Active means flagged active with a window that has not ended yet. Both date
// bounds apply to the start date.
func (s *budgetService) GetUserBudgets(userID string, page pagination.PageRequest, filter BudgetFilter) (*pagination.PageResponse[models.Budget], error) {
	page.Defaults()

	base := s.db.Model(&models.Budget{}).Where("user_id = ?", userID)
	if filter.IsActive != nil {
		base = base.Where("is_active = ?", *filter.IsActive)
		if *filter.IsActive {
			base = base.Where("end_date >= ?", s.now().UTC())
		}
	}
	if filter.Period != nil {
		base = base.Where("period = ?", *filter.Period)
	}
	if filter.FromDate != nil {
		base = base.Where("start_date >= ?", filter.FromDate.UTC())
	}
	if filter.ToDate != nil {
		base = base.Where("start_date <= ?", filter.ToDate.UTC())
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var budgets []models.Budget
	if err := base.Scopes(withCategories, pagination.Paginate(page)).Order("start_date DESC").Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(budgets, page.Page, page.Limit, totalItems)
	return &result, nil
}

// GetBudgetByID returns a budget by ID if it belongs to the user.
func (s *budgetService) GetBudgetByID(userID, budgetID string) (*models.Budget, error) {
	return s.getBudget(s.db, userID, budgetID)
}

func (s *budgetService) getBudget(db *gorm.DB, userID, budgetID string) (*models.Budget, error) {
	var budget models.Budget
	if err := db.Scopes(withCategories).Where("id = ? AND user_id = ?", budgetID, userID).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// GetBudgetDetail returns the budget, its status and every expense it covers.
func (s *budgetService) GetBudgetDetail(userID, budgetID string) (*BudgetDetail, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}
	txns, err := s.coveredExpenses(budget, 0)
	if err != nil {
		return nil, err
	}
	return &BudgetDetail{Budget: budget, Status: budget.Status(), Transactions: txns}, nil
}

// GetCurrentBudget returns the active budget whose window contains at, with
// its most recent expenses.
func (s *budgetService) GetCurrentBudget(userID string, at time.Time) (*BudgetDetail, error) {
	var budget models.Budget
	err := s.db.Scopes(withCategories).
		Where("user_id = ? AND is_active = ?", userID, true).
		Where("start_date <= ? AND end_date >= ?", at.UTC(), at.UTC()).
		Order("start_date DESC").
		First(&budget).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNoActiveBudget
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	txns, err := s.coveredExpenses(&budget, recentTransactions)
	if err != nil {
		return nil, err
	}
	return &BudgetDetail{Budget: &budget, Status: budget.Status(), Transactions: txns}, nil
}

// coveredExpenses lists the owner's expenses that count against budget,
// newest first. limit <= 0 means no limit.
func (s *budgetService) coveredExpenses(budget *models.Budget, limit int) ([]models.Transaction, error) {
	names := make([]string, 0, len(budget.Categories))
	for _, c := range budget.Categories {
		names = append(names, c.Category)
	}

	txns := []models.Transaction{}
	if len(names) == 0 {
		return txns, nil
	}

	q := s.db.Where("user_id = ? AND type = ?", budget.UserID, models.TransactionTypeExpense).
		Where("date >= ? AND date <= ?", budget.StartDate.UTC(), budget.EndDate.UTC()).
		Where("category IN ?", names).
		Order("date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&txns).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return txns, nil
}

// UpdateBudget replaces a budget's fields and allocations. Allocation rows
// are updated in place, so spent counters and triggered alerts survive, and
// rows for removed categories are deleted. A moved window or a reactivated
// budget has its counters rebuilt. When version is given it must match the
// stored version.
func (s *budgetService) UpdateBudget(userID, budgetID string, in BudgetInput, version *int) (*models.Budget, error) {
	existing, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}
	if version != nil && *version != existing.Version {
		return nil, apperrors.ErrConcurrentModification
	}

	if in.Period == "" {
		in.Period = existing.Period
	}
	if in.StartDate.IsZero() {
		in.StartDate = existing.StartDate
		if in.EndDate.IsZero() {
			in.EndDate = existing.EndDate
		}
	}
	if in.WarningThreshold == 0 {
		in.WarningThreshold = existing.WarningThreshold
	}
	if in.CriticalThreshold == 0 {
		in.CriticalThreshold = existing.CriticalThreshold
	}
	in, err = s.normalizeInput(in)
	if err != nil {
		return nil, err
	}
	isActive := existing.IsActive
	if in.IsActive != nil {
		isActive = *in.IsActive
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if isActive {
			if err := s.ledger.CheckOverlap(tx, userID, in.StartDate, in.EndDate, existing.ID); err != nil {
				return err
			}
		}

		res := tx.Model(&models.Budget{}).
			Where("id = ? AND version = ?", existing.ID, existing.Version).
			Updates(map[string]interface{}{
				"period":             in.Period,
				"start_date":         in.StartDate,
				"end_date":           in.EndDate,
				"total_budget":       in.TotalBudget,
				"is_active":          isActive,
				"warning_threshold":  in.WarningThreshold,
				"critical_threshold": in.CriticalThreshold,
				"version":            gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrConcurrentModification
		}

		if err := s.syncCategories(tx, existing, in); err != nil {
			return err
		}

		// Counters only track expenses inside the window of an active budget.
		windowChanged := !in.StartDate.Equal(existing.StartDate) || !in.EndDate.Equal(existing.EndDate)
		if !windowChanged && (existing.IsActive || !isActive) {
			return nil
		}
		updated, err := s.getBudget(tx, userID, budgetID)
		if err != nil {
			return err
		}
		return s.ledger.Recalculate(tx, updated)
	})
	if err != nil {
		return nil, err
	}

	return s.GetBudgetByID(userID, budgetID)
}

// syncCategories brings the stored allocation rows in line with in.
func (s *budgetService) syncCategories(tx *gorm.DB, budget *models.Budget, in BudgetInput) error {
	wanted := make(map[string]int, len(in.Categories))
	for i, c := range in.Categories {
		wanted[c.Category] = i
	}

	for _, current := range budget.Categories {
		i, keep := wanted[current.Category]
		if !keep {
			if err := deleteCategory(tx, current.ID); err != nil {
				return err
			}
			continue
		}
		delete(wanted, current.Category)

		c := in.Categories[i]
		res := tx.Model(&models.BudgetCategory{}).
			Where("id = ?", current.ID).
			Updates(map[string]interface{}{"amount": c.Amount, "position": i})
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrConcurrentModification
		}
		if len(c.Alerts) > 0 {
			if err := syncAlerts(tx, &current, c.Alerts); err != nil {
				return err
			}
		}
	}

	for name, i := range wanted {
		c := in.Categories[i]
		row := &models.BudgetCategory{
			BudgetID: budget.ID,
			Position: i,
			Category: name,
			Amount:   c.Amount,
			Alerts:   buildAlerts(c.Alerts, in.WarningThreshold, in.CriticalThreshold),
		}
		if err := tx.Create(row).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return nil
}

func deleteCategory(tx *gorm.DB, categoryID string) error {
	if err := tx.Unscoped().Where("budget_category_id = ?", categoryID).Delete(&models.BudgetAlert{}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := tx.Unscoped().Where("id = ?", categoryID).Delete(&models.BudgetCategory{}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// syncAlerts keeps alerts whose threshold is still requested, including their
// triggered state, and replaces the rest.
func syncAlerts(tx *gorm.DB, category *models.BudgetCategory, thresholds []int) error {
	wanted := make(map[int]bool, len(thresholds))
	for _, t := range thresholds {
		wanted[t] = true
	}

	for _, a := range category.Alerts {
		if wanted[a.Threshold] {
			delete(wanted, a.Threshold)
			continue
		}
		if err := tx.Unscoped().Where("id = ?", a.ID).Delete(&models.BudgetAlert{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	for _, t := range thresholds {
		if !wanted[t] {
			continue
		}
		alert := &models.BudgetAlert{BudgetCategoryID: category.ID, Threshold: t}
		if err := tx.Create(alert).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return nil
}

// DeleteBudget soft-deletes a budget. Transactions are kept and later edits
// of them no longer touch the deleted budget.
func (s *budgetService) DeleteBudget(userID, budgetID string) error {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(budget).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// RecalculateBudget rebuilds the budget's counters from its transactions.
func (s *budgetService) RecalculateBudget(userID, budgetID string) (*models.Budget, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		budget, err := s.getBudget(tx, userID, budgetID)
		if err != nil {
			return err
		}
		return s.ledger.Recalculate(tx, budget)
	})
	if err != nil {
		return nil, err
	}
	return s.GetBudgetByID(userID, budgetID)
}

// SetCategoryAllocation sets the amount of one category in the active budget
// covering at, creating a single-category budget for period when there is
// none. The total is recomputed so the allocations keep adding up.
func (s *budgetService) SetCategoryAllocation(userID string, period models.BudgetPeriod, at time.Time, category string, amount int64) (*models.Budget, error) {
	category = models.NormalizeCategory(category)
	if category == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category is required")
	}
	if amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than 0")
	}
	if !period.Valid() {
		period = models.BudgetPeriodMonthly
	}

	var budgetID string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var budget models.Budget
		err := tx.Scopes(withCategories).
			Where("user_id = ? AND is_active = ?", userID, true).
			Where("start_date <= ? AND end_date >= ?", at.UTC(), at.UTC()).
			Order("start_date DESC").
			First(&budget).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created, err := s.createSingleCategoryBudget(tx, userID, period, at, category, amount)
			if err != nil {
				return err
			}
			budgetID = created.ID
			return nil
		}
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		budgetID = budget.ID

		total := budget.TotalBudget
		if current := budget.FindCategory(category); current != nil {
			total += amount - current.Amount
			res := tx.Model(&models.BudgetCategory{}).Where("id = ?", current.ID).Update("amount", amount)
			if res.Error != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
			}
			if res.RowsAffected == 0 {
				return apperrors.ErrConcurrentModification
			}
		} else {
			total += amount
			row := &models.BudgetCategory{
				BudgetID: budget.ID,
				Position: len(budget.Categories),
				Category: category,
				Amount:   amount,
				Alerts:   models.DefaultAlerts(budget.WarningThreshold, budget.CriticalThreshold),
			}
			if err := tx.Create(row).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}

		res := tx.Model(&models.Budget{}).
			Where("id = ? AND version = ?", budget.ID, budget.Version).
			Updates(map[string]interface{}{"total_budget": total, "version": gorm.Expr("version + 1")})
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrConcurrentModification
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetBudgetByID(userID, budgetID)
}

func (s *budgetService) createSingleCategoryBudget(tx *gorm.DB, userID string, period models.BudgetPeriod, at time.Time, category string, amount int64) (*models.Budget, error) {
	start, end := period.Window(at)
	if err := s.ledger.CheckOverlap(tx, userID, start, end, ""); err != nil {
		return nil, err
	}

	budget := &models.Budget{
		UserID:            userID,
		Period:            period,
		StartDate:         start,
		EndDate:           end,
		TotalBudget:       amount,
		IsActive:          true,
		WarningThreshold:  s.warningThreshold,
		CriticalThreshold: s.criticalThreshold,
		Version:           1,
		Categories: []models.BudgetCategory{{
			Category: category,
			Amount:   amount,
			Alerts:   models.DefaultAlerts(s.warningThreshold, s.criticalThreshold),
		}},
	}
	if err := tx.Create(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return budget, nil
}
