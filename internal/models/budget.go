package models

import "time"

// BudgetPeriod represents the period type for a budget
type BudgetPeriod string

const (
	BudgetPeriodDaily   BudgetPeriod = "daily"
	BudgetPeriodWeekly  BudgetPeriod = "weekly"
	BudgetPeriodMonthly BudgetPeriod = "monthly"
	BudgetPeriodYearly  BudgetPeriod = "yearly"
)

// Default notification thresholds, in percent of the allocation.
const (
	DefaultWarningThreshold  = 80
	DefaultCriticalThreshold = 90
)

// Valid reports whether p is a supported period.
func (p BudgetPeriod) Valid() bool {
	switch p {
	case BudgetPeriodDaily, BudgetPeriodWeekly, BudgetPeriodMonthly, BudgetPeriodYearly:
		return true
	}
	return false
}

// Window returns the closed interval [start, end] of the period containing t,
// in UTC. Weeks start on Monday.
func (p BudgetPeriod) Window(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	var start, next time.Time
	switch p {
	case BudgetPeriodDaily:
		start = day
		next = start.AddDate(0, 0, 1)
	case BudgetPeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		start = day.AddDate(0, 0, -offset)
		next = start.AddDate(0, 0, 7)
	case BudgetPeriodYearly:
		start = time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		next = start.AddDate(1, 0, 0)
	default:
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		next = start.AddDate(0, 1, 0)
	}
	return start, next.Add(-time.Nanosecond)
}

// End returns the last instant of one period starting at start.
func (p BudgetPeriod) End(start time.Time) time.Time {
	start = start.UTC()
	var next time.Time
	switch p {
	case BudgetPeriodDaily:
		next = start.AddDate(0, 0, 1)
	case BudgetPeriodWeekly:
		next = start.AddDate(0, 0, 7)
	case BudgetPeriodYearly:
		next = start.AddDate(1, 0, 0)
	default:
		next = start.AddDate(0, 1, 0)
	}
	return next.Add(-time.Nanosecond)
}

// Budget is a per-owner spending plan for a closed date range. Spent values
// on its categories are running counters maintained by the budget ledger.
type Budget struct {
	Base
	UserID            string           `gorm:"type:uuid;not null;index:idx_budgets_user_window,priority:1" json:"userId"`
	Period            BudgetPeriod     `gorm:"size:16;not null" json:"period"`
	StartDate         time.Time        `gorm:"not null;index:idx_budgets_user_window,priority:2" json:"startDate"`
	EndDate           time.Time        `gorm:"not null;index:idx_budgets_user_window,priority:3" json:"endDate"`
	TotalBudget       int64            `gorm:"type:bigint;not null" json:"totalBudget"`
	IsActive          bool             `gorm:"not null" json:"isActive"`
	WarningThreshold  int              `gorm:"not null;default:80" json:"warningThreshold"`
	CriticalThreshold int              `gorm:"not null;default:90" json:"criticalThreshold"`
	Version           int              `gorm:"not null;default:1" json:"version"`
	Categories        []BudgetCategory `gorm:"foreignKey:BudgetID;constraint:OnDelete:CASCADE" json:"categories"`
}

// Covers reports whether t falls inside the budget window.
func (b *Budget) Covers(t time.Time) bool {
	return !t.Before(b.StartDate) && !t.After(b.EndDate)
}

// Overlaps reports closed-interval intersection with [start, end].
func (b *Budget) Overlaps(start, end time.Time) bool {
	return !b.StartDate.After(end) && !b.EndDate.Before(start)
}

// FindCategory returns the allocation for a normalized category name.
func (b *Budget) FindCategory(category string) *BudgetCategory {
	for i := range b.Categories {
		if b.Categories[i].Category == category {
			return &b.Categories[i]
		}
	}
	return nil
}

// CategoryTotal sums the category allocations.
func (b *Budget) CategoryTotal() int64 {
	var total int64
	for _, c := range b.Categories {
		total += c.Amount
	}
	return total
}

// BudgetCategory is one allocation line of a budget.
type BudgetCategory struct {
	Base
	BudgetID string        `gorm:"type:uuid;not null;uniqueIndex:idx_budget_category" json:"-"`
	Position int           `gorm:"not null;default:0" json:"-"`
	Category string        `gorm:"size:100;not null;uniqueIndex:idx_budget_category" json:"category"`
	Amount   int64         `gorm:"type:bigint;not null" json:"amount"`
	Spent    int64         `gorm:"type:bigint;not null;default:0" json:"spent"`
	Alerts   []BudgetAlert `gorm:"foreignKey:BudgetCategoryID;constraint:OnDelete:CASCADE" json:"alerts"`
}

// PendingAlerts returns the untriggered alerts whose threshold the current
// spent value has reached.
func (c *BudgetCategory) PendingAlerts() []BudgetAlert {
	var out []BudgetAlert
	for _, a := range c.Alerts {
		if !a.IsTriggered && reached(c.Spent, c.Amount, a.Threshold) {
			out = append(out, a)
		}
	}
	return out
}

// BudgetAlert is a threshold, in percent of the category allocation, that is
// latched once crossed. It is never reset by spending going back down.
type BudgetAlert struct {
	Base
	BudgetCategoryID string     `gorm:"type:uuid;not null;index" json:"-"`
	Threshold        int        `gorm:"not null" json:"threshold"`
	IsTriggered      bool       `gorm:"not null;default:false" json:"isTriggered"`
	TriggeredAt      *time.Time `json:"triggeredAt,omitempty"`
}

// DefaultAlerts builds the warning and critical alerts for a new category.
func DefaultAlerts(warning, critical int) []BudgetAlert {
	if warning == critical {
		return []BudgetAlert{{Threshold: warning}}
	}
	return []BudgetAlert{{Threshold: warning}, {Threshold: critical}}
}
