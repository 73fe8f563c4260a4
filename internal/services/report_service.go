package services

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	apperrors "finbot/internal/errors"
	"finbot/internal/models"
)

const (
	defaultTrendMonths    = 12
	defaultOverviewMonths = 6
	maxReportMonths       = 60
	frequentMinCount      = 3
	frequentLimit         = 10
)

// CategoryAmount is one row of a per-category breakdown.
type CategoryAmount struct {
	Category   string  `json:"category"`
	Amount     int64   `json:"amount"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Summary is the income and expense picture of one period window.
type Summary struct {
	Period            models.BudgetPeriod  `json:"period"`
	StartDate         time.Time            `json:"startDate"`
	EndDate           time.Time            `json:"endDate"`
	TotalIncome       int64                `json:"totalIncome"`
	TotalExpense      int64                `json:"totalExpense"`
	Balance           int64                `json:"balance"`
	IncomeByCategory  []CategoryAmount     `json:"incomeByCategory"`
	ExpenseByCategory []CategoryAmount     `json:"expenseByCategory"`
	BudgetID          string               `json:"budgetId,omitempty"`
	BudgetStatus      *models.BudgetStatus `json:"budgetStatus,omitempty"`
}

// MonthlyPoint is one month of a trend series.
type MonthlyPoint struct {
	Month   string `json:"month"`
	Income  int64  `json:"income"`
	Expense int64  `json:"expense"`
	Net     int64  `json:"net"`
}

// Trends holds zero-filled monthly series, oldest month first. Each
// Categories entry is aligned with Months.
type Trends struct {
	Months     []MonthlyPoint     `json:"months"`
	Categories map[string][]int64 `json:"categories"`
}

// TimeBucket aggregates expenses by weekday or hour.
type TimeBucket struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
	Count  int64  `json:"count"`
}

// FrequentTransaction is a description and category pair seen repeatedly.
type FrequentTransaction struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	Count       int64  `json:"count"`
	Total       int64  `json:"total"`
}

// AnalysisMetrics are the headline figures of an Analysis.
type AnalysisMetrics struct {
	TotalIncome          int64               `json:"totalIncome"`
	TotalExpense         int64               `json:"totalExpense"`
	SavingsRate          float64             `json:"savingsRate"`
	AverageDailyExpense  int64               `json:"averageDailyExpense"`
	LargestExpense       *models.Transaction `json:"largestExpense,omitempty"`
	MostFrequentCategory string              `json:"mostFrequentCategory"`
}

// Analysis describes spending patterns inside a date range. Hours and
// weekdays are in UTC.
type Analysis struct {
	StartDate   time.Time             `json:"startDate"`
	EndDate     time.Time             `json:"endDate"`
	ByDayOfWeek []TimeBucket          `json:"byDayOfWeek"`
	ByHour      []TimeBucket          `json:"byHour"`
	BusiestDay  string                `json:"busiestDay"`
	BusiestHour int                   `json:"busiestHour"`
	ByCategory  []CategoryAmount      `json:"byCategory"`
	Frequent    []FrequentTransaction `json:"frequentTransactions"`
	Metrics     AnalysisMetrics       `json:"metrics"`
}

// BudgetPeriodSummary is one budget in an overview.
type BudgetPeriodSummary struct {
	BudgetID    string              `json:"budgetId"`
	Period      models.BudgetPeriod `json:"period"`
	StartDate   time.Time           `json:"startDate"`
	EndDate     time.Time           `json:"endDate"`
	TotalBudget int64               `json:"totalBudget"`
	TotalSpent  int64               `json:"totalSpent"`
	Status      string              `json:"status"`
}

// CategoryOverview aggregates one category across budgets.
type CategoryOverview struct {
	TotalBudgeted int64 `json:"totalBudgeted"`
	TotalSpent    int64 `json:"totalSpent"`
	Occurrences   int   `json:"occurrences"`
}

// BudgetTrend totals an overview.
type BudgetTrend struct {
	TotalBudgeted int64 `json:"totalBudgeted"`
	TotalSpent    int64 `json:"totalSpent"`
	Savings       int64 `json:"savings"`
}

// BudgetOverview rolls up the budgets that started in the last N months.
type BudgetOverview struct {
	Periods    []BudgetPeriodSummary       `json:"periods"`
	Categories map[string]CategoryOverview `json:"categories"`
	Trends     BudgetTrend                 `json:"trends"`
}

// PeriodSummaryItem is one (type, category) total.
type PeriodSummaryItem struct {
	Type     models.TransactionType `json:"type"`
	Category string                 `json:"category"`
	Total    int64                  `json:"total"`
	Count    int64                  `json:"count"`
}

// PeriodSummary totals transactions per type and category.
type PeriodSummary struct {
	StartDate    time.Time           `json:"startDate"`
	EndDate      time.Time           `json:"endDate"`
	TotalIncome  int64               `json:"totalIncome"`
	TotalExpense int64               `json:"totalExpense"`
	Balance      int64               `json:"balance"`
	Items        []PeriodSummaryItem `json:"items"`
}

// reportService computes read-only rollups. It never writes.
type reportService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewReportService creates a new ReportServicer.
func NewReportService(db *gorm.DB) ReportServicer {
	return &reportService{db: db, now: time.Now}
}

type categoryTotalRow struct {
	Category string
	Total    int64
	Count    int64
}

func (s *reportService) categoryTotals(userID string, txType models.TransactionType, start, end time.Time) ([]categoryTotalRow, error) {
	var rows []categoryTotalRow
	err := s.db.Model(&models.Transaction{}).
		Select("category, SUM(amount) AS total, COUNT(*) AS count").
		Where("user_id = ? AND type = ?", userID, txType).
		Where("date >= ? AND date <= ?", start.UTC(), end.UTC()).
		Group("category").
		Order("total DESC, category ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rows, nil
}

func breakdown(rows []categoryTotalRow) ([]CategoryAmount, int64) {
	var total int64
	for _, r := range rows {
		total += r.Total
	}
	out := make([]CategoryAmount, 0, len(rows))
	for _, r := range rows {
		out = append(out, CategoryAmount{
			Category:   r.Category,
			Amount:     r.Total,
			Count:      r.Count,
			Percentage: round2(share(r.Total, total)),
		})
	}
	return out, total
}

func share(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// GetSummary reports the period window containing at. The three queries run
// concurrently.
func (s *reportService) GetSummary(userID string, period models.BudgetPeriod, at time.Time) (*Summary, error) {
	if !period.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be one of daily, weekly, monthly, yearly")
	}
	if at.IsZero() {
		at = s.now()
	}
	start, end := period.Window(at)

	var (
		income, expense []categoryTotalRow
		budget          *models.Budget
	)
	g := new(errgroup.Group)
	g.Go(func() (err error) {
		income, err = s.categoryTotals(userID, models.TransactionTypeIncome, start, end)
		return err
	})
	g.Go(func() (err error) {
		expense, err = s.categoryTotals(userID, models.TransactionTypeExpense, start, end)
		return err
	})
	g.Go(func() error {
		var b models.Budget
		err := s.db.Scopes(withCategories).
			Where("user_id = ? AND is_active = ?", userID, true).
			Where("start_date <= ? AND end_date >= ?", start, start).
			Order("start_date DESC").
			First(&b).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		budget = &b
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{Period: period, StartDate: start, EndDate: end}
	summary.IncomeByCategory, summary.TotalIncome = breakdown(income)
	summary.ExpenseByCategory, summary.TotalExpense = breakdown(expense)
	summary.Balance = summary.TotalIncome - summary.TotalExpense
	if budget != nil {
		st := budget.Status()
		summary.BudgetID = budget.ID
		summary.BudgetStatus = &st
	}
	return summary, nil
}

func clampMonths(months, def int) int {
	if months <= 0 {
		return def
	}
	if months > maxReportMonths {
		return maxReportMonths
	}
	return months
}

// GetTrends builds monthly series over the last months months, the current
// month included.
func (s *reportService) GetTrends(userID string, months int) (*Trends, error) {
	months = clampMonths(months, defaultTrendMonths)

	now := s.now().UTC()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	first := current.AddDate(0, -(months - 1), 0)
	end := current.AddDate(0, 1, 0).Add(-time.Nanosecond)

	var txns []models.Transaction
	err := s.db.Select("type", "amount", "category", "date").
		Where("user_id = ?", userID).
		Where("date >= ? AND date <= ?", first, end).
		Find(&txns).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	trends := &Trends{
		Months:     make([]MonthlyPoint, months),
		Categories: map[string][]int64{},
	}
	index := make(map[string]int, months)
	for i := 0; i < months; i++ {
		key := first.AddDate(0, i, 0).Format("2006-01")
		trends.Months[i].Month = key
		index[key] = i
	}

	for _, t := range txns {
		i, ok := index[t.Date.UTC().Format("2006-01")]
		if !ok {
			continue
		}
		if t.IsExpense() {
			trends.Months[i].Expense += t.Amount
			series, ok := trends.Categories[t.Category]
			if !ok {
				series = make([]int64, months)
				trends.Categories[t.Category] = series
			}
			series[i] += t.Amount
		} else {
			trends.Months[i].Income += t.Amount
		}
	}
	for i := range trends.Months {
		trends.Months[i].Net = trends.Months[i].Income - trends.Months[i].Expense
	}
	return trends, nil
}

// GetAnalysis describes spending patterns inside [start, end].
func (s *reportService) GetAnalysis(userID string, start, end time.Time) (*Analysis, error) {
	start, end = start.UTC(), end.UTC()
	if !start.Before(end) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "startDate must be before endDate")
	}

	var (
		expenses    []models.Transaction
		totalIncome int64
	)
	g := new(errgroup.Group)
	g.Go(func() error {
		err := s.db.Where("user_id = ? AND type = ?", userID, models.TransactionTypeExpense).
			Where("date >= ? AND date <= ?", start, end).
			Order("date ASC").
			Find(&expenses).Error
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	g.Go(func() error {
		err := s.db.Model(&models.Transaction{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("user_id = ? AND type = ?", userID, models.TransactionTypeIncome).
			Where("date >= ? AND date <= ?", start, end).
			Scan(&totalIncome).Error
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a := &Analysis{
		StartDate:   start,
		EndDate:     end,
		ByDayOfWeek: make([]TimeBucket, 7),
		ByHour:      make([]TimeBucket, 24),
	}
	for d := 0; d < 7; d++ {
		a.ByDayOfWeek[d].Label = time.Weekday(d).String()
	}
	for h := 0; h < 24; h++ {
		a.ByHour[h].Label = time.Date(0, 1, 1, h, 0, 0, 0, time.UTC).Format("15:00")
	}

	type freqKey struct{ description, category string }
	freq := map[freqKey]*FrequentTransaction{}
	categories := map[string]*categoryTotalRow{}
	var totalExpense int64

	for i := range expenses {
		t := &expenses[i]
		when := t.Date.UTC()
		totalExpense += t.Amount

		day := &a.ByDayOfWeek[when.Weekday()]
		day.Amount += t.Amount
		day.Count++
		hour := &a.ByHour[when.Hour()]
		hour.Amount += t.Amount
		hour.Count++

		row, ok := categories[t.Category]
		if !ok {
			row = &categoryTotalRow{Category: t.Category}
			categories[t.Category] = row
		}
		row.Total += t.Amount
		row.Count++

		if desc := strings.ToLower(strings.TrimSpace(t.Description)); desc != "" {
			k := freqKey{desc, t.Category}
			f, ok := freq[k]
			if !ok {
				f = &FrequentTransaction{Description: t.Description, Category: t.Category}
				freq[k] = f
			}
			f.Count++
			f.Total += t.Amount
		}

		if a.Metrics.LargestExpense == nil || t.Amount > a.Metrics.LargestExpense.Amount {
			a.Metrics.LargestExpense = t
		}
	}

	a.BusiestDay = a.ByDayOfWeek[busiest(a.ByDayOfWeek)].Label
	a.BusiestHour = busiest(a.ByHour)

	rows := make([]categoryTotalRow, 0, len(categories))
	for _, r := range categories {
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].Category < rows[j].Category
	})
	a.ByCategory, _ = breakdown(rows)

	a.Frequent = []FrequentTransaction{}
	for _, f := range freq {
		if f.Count >= frequentMinCount {
			a.Frequent = append(a.Frequent, *f)
		}
	}
	sort.Slice(a.Frequent, func(i, j int) bool {
		if a.Frequent[i].Count != a.Frequent[j].Count {
			return a.Frequent[i].Count > a.Frequent[j].Count
		}
		return a.Frequent[i].Description < a.Frequent[j].Description
	})
	if len(a.Frequent) > frequentLimit {
		a.Frequent = a.Frequent[:frequentLimit]
	}

	a.Metrics.TotalIncome = totalIncome
	a.Metrics.TotalExpense = totalExpense
	if totalIncome > 0 {
		a.Metrics.SavingsRate = round2(float64(totalIncome-totalExpense) / float64(totalIncome) * 100)
	}
	days := int64(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		days = 1
	}
	a.Metrics.AverageDailyExpense = totalExpense / days
	a.Metrics.MostFrequentCategory = mostFrequent(rows)

	return a, nil
}

// busiest returns the index of the bucket with the largest amount, the
// earliest one on ties.
func busiest(buckets []TimeBucket) int {
	best := 0
	for i, b := range buckets {
		if b.Amount > buckets[best].Amount {
			best = i
		}
	}
	return best
}

func mostFrequent(rows []categoryTotalRow) string {
	var best *categoryTotalRow
	for i := range rows {
		r := &rows[i]
		if best == nil || r.Count > best.Count || (r.Count == best.Count && r.Category < best.Category) {
			best = r
		}
	}
	if best == nil {
		return ""
	}
	return best.Category
}

// GetBudgetOverview rolls up the budgets that started within the last months
// months, newest first.
func (s *reportService) GetBudgetOverview(userID string, months int) (*BudgetOverview, error) {
	months = clampMonths(months, defaultOverviewMonths)

	now := s.now().UTC()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	var budgets []models.Budget
	err := s.db.Scopes(withCategories).
		Where("user_id = ? AND start_date >= ?", userID, since).
		Order("start_date DESC").
		Find(&budgets).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	overview := &BudgetOverview{
		Periods:    make([]BudgetPeriodSummary, 0, len(budgets)),
		Categories: map[string]CategoryOverview{},
	}

	for i := range budgets {
		b := &budgets[i]
		st := b.Status()
		overview.Periods = append(overview.Periods, BudgetPeriodSummary{
			BudgetID:    b.ID,
			Period:      b.Period,
			StartDate:   b.StartDate,
			EndDate:     b.EndDate,
			TotalBudget: b.TotalBudget,
			TotalSpent:  st.TotalSpent,
			Status:      statusLabel(st),
		})
		overview.Trends.TotalBudgeted += b.TotalBudget
		overview.Trends.TotalSpent += st.TotalSpent

		for _, c := range b.Categories {
			agg := overview.Categories[c.Category]
			agg.TotalBudgeted += c.Amount
			agg.TotalSpent += c.Spent
			agg.Occurrences++
			overview.Categories[c.Category] = agg
		}
	}
	overview.Trends.Savings = overview.Trends.TotalBudgeted - overview.Trends.TotalSpent
	return overview, nil
}

func statusLabel(st models.BudgetStatus) string {
	switch {
	case st.RemainingBudget < 0:
		return "over"
	case st.IsCritical:
		return "critical"
	case st.IsWarning:
		return "warning"
	default:
		return "on_track"
	}
}

// GetPeriodSummary totals transactions per type and category in [start, end].
func (s *reportService) GetPeriodSummary(userID string, start, end time.Time) (*PeriodSummary, error) {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "startDate must not be after endDate")
	}

	var items []PeriodSummaryItem
	err := s.db.Model(&models.Transaction{}).
		Select("type, category, SUM(amount) AS total, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Where("date >= ? AND date <= ?", start, end).
		Group("type, category").
		Order("type ASC, total DESC").
		Scan(&items).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	summary := &PeriodSummary{StartDate: start, EndDate: end, Items: items}
	if summary.Items == nil {
		summary.Items = []PeriodSummaryItem{}
	}
	for _, it := range items {
		if it.Type == models.TransactionTypeExpense {
			summary.TotalExpense += it.Total
		} else {
			summary.TotalIncome += it.Total
		}
	}
	summary.Balance = summary.TotalIncome - summary.TotalExpense
	return summary, nil
}
