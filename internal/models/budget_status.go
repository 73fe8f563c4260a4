package models

// BudgetStatus is the derived, read-only view of a budget's spending.
type BudgetStatus struct {
	TotalBudget     int64            `json:"totalBudget"`
	TotalSpent      int64            `json:"totalSpent"`
	RemainingBudget int64            `json:"remainingBudget"`
	SpentPercentage float64          `json:"spentPercentage"`
	IsWarning       bool             `json:"isWarning"`
	IsCritical      bool             `json:"isCritical"`
	CategoryStatus  []CategoryStatus `json:"categoryStatus"`
}

// CategoryStatus is the per-allocation part of BudgetStatus.
type CategoryStatus struct {
	Category        string  `json:"category"`
	Budgeted        int64   `json:"budgeted"`
	Spent           int64   `json:"spent"`
	Remaining       int64   `json:"remaining"`
	SpentPercentage float64 `json:"spentPercentage"`
	IsWarning       bool    `json:"isWarning"`
	IsCritical      bool    `json:"isCritical"`
}

// Status computes the budget's status from its current counters. Remaining
// values go negative on overspend. Threshold flags are decided in integer
// arithmetic so that exactly 90% is critical at a 90 threshold.
func (b *Budget) Status() BudgetStatus {
	st := BudgetStatus{
		TotalBudget:    b.TotalBudget,
		CategoryStatus: make([]CategoryStatus, 0, len(b.Categories)),
	}

	for _, c := range b.Categories {
		st.TotalSpent += c.Spent
		st.CategoryStatus = append(st.CategoryStatus, CategoryStatus{
			Category:        c.Category,
			Budgeted:        c.Amount,
			Spent:           c.Spent,
			Remaining:       c.Amount - c.Spent,
			SpentPercentage: percentage(c.Spent, c.Amount),
			IsWarning:       reached(c.Spent, c.Amount, b.WarningThreshold),
			IsCritical:      reached(c.Spent, c.Amount, b.CriticalThreshold),
		})
	}

	st.RemainingBudget = b.TotalBudget - st.TotalSpent
	st.SpentPercentage = percentage(st.TotalSpent, b.TotalBudget)
	st.IsWarning = reached(st.TotalSpent, b.TotalBudget, b.WarningThreshold)
	st.IsCritical = reached(st.TotalSpent, b.TotalBudget, b.CriticalThreshold)
	return st
}

func percentage(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// reached reports part/whole*100 >= threshold without floating point.
func reached(part, whole int64, threshold int) bool {
	if whole <= 0 {
		return false
	}
	return part*100 >= int64(threshold)*whole
}
