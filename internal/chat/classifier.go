package chat

import (
	"strings"

	"finbot/internal/models"
	"finbot/internal/money"
)

// intentRule matches when the message contains one word of every group.
type intentRule struct {
	intent Intent
	groups [][]string
}

var (
	budgetWords = []string{"budget", "anggaran"}

	// Rules are tried in order; the first match wins, so the narrower
	// budget and report phrasings sit above the transaction keywords.
	rules = []intentRule{
		{IntentBudgetSet, [][]string{{"atur", "set", "tentukan", "buat"}, budgetWords}},
		{IntentBudgetView, [][]string{{"lihat", "cek", "view", "show", "check", "status"}, budgetWords}},
		{IntentReportSummary, [][]string{{"laporan", "ringkasan", "report", "summary", "analisis", "saldo", "balance"}}},
		{IntentIncome, [][]string{{"pemasukan", "income", "gaji", "salary", "terima", "received", "earned", "dapat"}}},
		{IntentExpense, [][]string{{"pengeluaran", "expense", "spent", "spend", "bayar", "paid", "pay", "beli", "bought", "menghabiskan", "habis"}}},
		{IntentHelp, [][]string{{"help", "bantuan", "menu", "/help", "/start", "panduan"}}},
		{IntentBudgetView, [][]string{budgetWords}},
	}

	// categoryMarkers introduce the category: "50k for lunch", "untuk makan".
	categoryMarkers = map[string]bool{"for": true, "on": true, "untuk": true, "buat": true}

	knownCategories = map[string]bool{
		"makan": true, "food": true, "transport": true, "belanja": true, "shopping": true,
		"tagihan": true, "bills": true, "groceries": true, "rent": true, "sewa": true,
		"gaji": true, "salary": true, "bonus": true, "hiburan": true, "entertainment": true,
	}

	periodPhrases = []struct {
		phrase string
		period models.BudgetPeriod
	}{
		{"hari ini", models.BudgetPeriodDaily},
		{"today", models.BudgetPeriodDaily},
		{"harian", models.BudgetPeriodDaily},
		{"daily", models.BudgetPeriodDaily},
		{"minggu ini", models.BudgetPeriodWeekly},
		{"this week", models.BudgetPeriodWeekly},
		{"mingguan", models.BudgetPeriodWeekly},
		{"weekly", models.BudgetPeriodWeekly},
		{"bulan ini", models.BudgetPeriodMonthly},
		{"this month", models.BudgetPeriodMonthly},
		{"bulanan", models.BudgetPeriodMonthly},
		{"monthly", models.BudgetPeriodMonthly},
		{"tahun ini", models.BudgetPeriodYearly},
		{"this year", models.BudgetPeriodYearly},
		{"tahunan", models.BudgetPeriodYearly},
		{"yearly", models.BudgetPeriodYearly},
	}

	// Words that can follow a category marker without being a category.
	fillerWords = map[string]bool{
		"the": true, "my": true, "a": true, "an": true, "bulan": true, "minggu": true,
		"hari": true, "tahun": true, "this": true, "ini": true,
	}

	amountSuffixes = map[string]bool{"k": true, "rb": true, "ribu": true, "jt": true, "juta": true, "m": true}
)

// Classifier is a keyword classifier for English and Indonesian messages.
type Classifier struct{}

// Classify returns the intent of text and the entities found in it.
func (Classifier) Classify(text string) (Intent, Entities) {
	lower := strings.ToLower(strings.TrimSpace(text))
	words := strings.Fields(lower)

	ent := Entities{
		Amount:      findAmount(words),
		Period:      findPeriod(lower),
		Description: findDescription(text),
	}
	ent.Category = findCategory(words)

	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.Trim(w, ".,!?")] = true
	}
	for _, r := range rules {
		if matchAll(set, r.groups) {
			return r.intent, ent
		}
	}
	return IntentUnknown, ent
}

func matchAll(set map[string]bool, groups [][]string) bool {
	for _, group := range groups {
		found := false
		for _, w := range group {
			if set[w] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// findAmount returns the first word that parses as an amount. A bare number
// followed by a suffix word ("1.5 jt") is read as one amount.
func findAmount(words []string) int64 {
	for i, w := range words {
		if !startsWithDigitOrCurrency(w) {
			continue
		}
		if i+1 < len(words) && amountSuffixes[words[i+1]] {
			if v, err := money.Parse(w + words[i+1]); err == nil {
				return v
			}
		}
		if v, err := money.Parse(strings.TrimRight(w, "!?")); err == nil {
			return v
		}
	}
	return 0
}

func startsWithDigitOrCurrency(w string) bool {
	if w == "" {
		return false
	}
	if w[0] >= '0' && w[0] <= '9' {
		return true
	}
	return strings.HasPrefix(w, "rp") && len(w) > 2
}

func findPeriod(lower string) models.BudgetPeriod {
	for _, p := range periodPhrases {
		if strings.Contains(lower, p.phrase) {
			return p.period
		}
	}
	return ""
}

// findCategory prefers the word after a marker ("untuk makan"), then any
// known category keyword.
func findCategory(words []string) string {
	for i, w := range words {
		if !categoryMarkers[w] {
			continue
		}
		for _, next := range words[i+1:] {
			next = strings.Trim(next, ".,!?")
			if next == "" || fillerWords[next] || startsWithDigitOrCurrency(next) {
				continue
			}
			return models.NormalizeCategory(next)
		}
	}
	for _, w := range words {
		if w = strings.Trim(w, ".,!?"); knownCategories[w] {
			return w
		}
	}
	return ""
}

// findDescription keeps the text after the first category marker, in the
// sender's casing.
func findDescription(text string) string {
	fields := strings.Fields(text)
	for i, f := range fields {
		if categoryMarkers[strings.ToLower(f)] && i+1 < len(fields) {
			return strings.Join(fields[i+1:], " ")
		}
	}
	return ""
}
