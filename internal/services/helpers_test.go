package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"finbot/internal/events"
	"finbot/internal/models"
)

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.BudgetAlertEvent
	err    error
}

func (p *recordingPublisher) PublishBudgetAlert(_ context.Context, e events.BudgetAlertEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endOfDay(y int, m time.Month, d int) time.Time {
	return day(y, m, d).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func noon(y int, m time.Month, d int) time.Time {
	return day(y, m, d).Add(12 * time.Hour)
}

func budgetInput(start, end time.Time, allocations ...BudgetCategoryInput) BudgetInput {
	in := BudgetInput{
		Period:     models.BudgetPeriodMonthly,
		StartDate:  start,
		EndDate:    end,
		Categories: allocations,
	}
	for _, a := range allocations {
		in.TotalBudget += a.Amount
	}
	return in
}

func alloc(category string, amount int64) BudgetCategoryInput {
	return BudgetCategoryInput{Category: category, Amount: amount}
}

func expense(userID, category string, amount int64, at time.Time) *models.Transaction {
	return &models.Transaction{
		UserID:   userID,
		Type:     models.TransactionTypeExpense,
		Amount:   amount,
		Category: category,
		Date:     at,
	}
}

func spentOf(t *testing.T, db *gorm.DB, budgetID, category string) int64 {
	t.Helper()
	var c models.BudgetCategory
	if err := db.Where("budget_id = ? AND category = ?", budgetID, category).First(&c).Error; err != nil {
		t.Fatalf("failed to load category %q: %v", category, err)
	}
	return c.Spent
}

func triggeredThresholds(t *testing.T, db *gorm.DB, budgetID, category string) []int {
	t.Helper()
	var c models.BudgetCategory
	if err := db.Preload("Alerts", func(db *gorm.DB) *gorm.DB { return db.Order("threshold ASC") }).
		Where("budget_id = ? AND category = ?", budgetID, category).First(&c).Error; err != nil {
		t.Fatalf("failed to load category %q: %v", category, err)
	}
	var out []int
	for _, a := range c.Alerts {
		if a.IsTriggered {
			out = append(out, a.Threshold)
		}
	}
	return out
}
