package models

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBudgetStatus(t *testing.T) {
	t.Run("ninety percent is critical", func(t *testing.T) {
		b := &Budget{
			TotalBudget:       1_000_000,
			WarningThreshold:  DefaultWarningThreshold,
			CriticalThreshold: DefaultCriticalThreshold,
			Categories: []BudgetCategory{
				{Category: "food", Amount: 1_000_000, Spent: 900_000},
			},
		}

		st := b.Status()
		if st.SpentPercentage != 90 {
			t.Errorf("expected 90%%, got %v", st.SpentPercentage)
		}
		if !st.IsCritical || !st.IsWarning {
			t.Errorf("expected warning and critical, got warning=%v critical=%v", st.IsWarning, st.IsCritical)
		}
		if st.RemainingBudget != 100_000 {
			t.Errorf("expected remaining 100000, got %d", st.RemainingBudget)
		}
		if st.TotalSpent != 900_000 {
			t.Errorf("expected total spent 900000, got %d", st.TotalSpent)
		}
	})

	t.Run("per category", func(t *testing.T) {
		b := &Budget{
			TotalBudget:       300,
			WarningThreshold:  80,
			CriticalThreshold: 90,
			Categories: []BudgetCategory{
				{Category: "food", Amount: 200, Spent: 50},
				{Category: "transport", Amount: 100, Spent: 85},
			},
		}

		st := b.Status()
		if len(st.CategoryStatus) != 2 {
			t.Fatalf("expected 2 category rows, got %d", len(st.CategoryStatus))
		}
		food, transport := st.CategoryStatus[0], st.CategoryStatus[1]
		if food.Remaining != 150 || food.SpentPercentage != 25 || food.IsWarning {
			t.Errorf("unexpected food status %+v", food)
		}
		if transport.Remaining != 15 || !transport.IsWarning || transport.IsCritical {
			t.Errorf("unexpected transport status %+v", transport)
		}
		if st.IsWarning {
			t.Error("overall 45 percent must not warn")
		}
	})

	t.Run("overspend goes negative", func(t *testing.T) {
		b := &Budget{
			TotalBudget:       100,
			WarningThreshold:  80,
			CriticalThreshold: 90,
			Categories:        []BudgetCategory{{Category: "fun", Amount: 100, Spent: 130}},
		}

		st := b.Status()
		if st.RemainingBudget != -30 {
			t.Errorf("expected -30, got %d", st.RemainingBudget)
		}
		if st.CategoryStatus[0].Remaining != -30 {
			t.Errorf("expected category remaining -30, got %d", st.CategoryStatus[0].Remaining)
		}
		if !st.IsCritical {
			t.Error("expected critical")
		}
	})

	t.Run("just below threshold", func(t *testing.T) {
		b := &Budget{
			TotalBudget:       1000,
			WarningThreshold:  80,
			CriticalThreshold: 90,
			Categories:        []BudgetCategory{{Category: "x", Amount: 1000, Spent: 899}},
		}
		if b.Status().IsCritical {
			t.Error("89.9 percent must not be critical")
		}
	})
}

func TestPendingAlerts(t *testing.T) {
	c := &BudgetCategory{
		Amount: 1000,
		Spent:  850,
		Alerts: []BudgetAlert{
			{Threshold: 50, IsTriggered: true},
			{Threshold: 80},
			{Threshold: 90},
		},
	}

	pending := c.PendingAlerts()
	if len(pending) != 1 || pending[0].Threshold != 80 {
		t.Fatalf("expected only the 80%% alert, got %+v", pending)
	}
}

func TestBudgetOverlaps(t *testing.T) {
	jan := &Budget{StartDate: date(2024, 1, 1), EndDate: date(2024, 1, 31)}

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"straddles end", date(2024, 1, 15), date(2024, 2, 15), true},
		{"inside", date(2024, 1, 10), date(2024, 1, 12), true},
		{"touches last day", date(2024, 1, 31), date(2024, 2, 28), true},
		{"after", date(2024, 2, 1), date(2024, 2, 29), false},
		{"before", date(2023, 12, 1), date(2023, 12, 31), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jan.Overlaps(tt.start, tt.end); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBudgetPeriodWindow(t *testing.T) {
	at := time.Date(2024, 2, 15, 13, 30, 0, 0, time.UTC) // Thursday

	tests := []struct {
		period     BudgetPeriod
		wantStart  time.Time
		wantEndDay time.Time
	}{
		{BudgetPeriodDaily, date(2024, 2, 15), date(2024, 2, 15)},
		{BudgetPeriodWeekly, date(2024, 2, 12), date(2024, 2, 18)},
		{BudgetPeriodMonthly, date(2024, 2, 1), date(2024, 2, 29)},
		{BudgetPeriodYearly, date(2024, 1, 1), date(2024, 12, 31)},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			start, end := tt.period.Window(at)
			if !start.Equal(tt.wantStart) {
				t.Errorf("start = %s, want %s", start, tt.wantStart)
			}
			if !end.Truncate(24 * time.Hour).Equal(tt.wantEndDay) {
				t.Errorf("end = %s, want day %s", end, tt.wantEndDay)
			}
			if end.Hour() != 23 || end.Minute() != 59 {
				t.Errorf("end should be the last instant of the day, got %s", end)
			}
		})
	}
}

func TestNormalizeCategory(t *testing.T) {
	if got := NormalizeCategory("  Eating   Out "); got != "eating out" {
		t.Errorf("got %q", got)
	}
}

func TestBudgetPeriodEnd(t *testing.T) {
	start := date(2024, 1, 15)
	end := BudgetPeriodMonthly.End(start)
	if !end.Equal(date(2024, 2, 15).Add(-time.Nanosecond)) {
		t.Errorf("unexpected monthly end %s", end)
	}
	if !BudgetPeriodDaily.End(start).Before(date(2024, 1, 16)) {
		t.Error("daily end must stay within the start day")
	}
}
