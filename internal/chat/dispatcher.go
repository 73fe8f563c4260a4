package chat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "finbot/internal/errors"
	"finbot/internal/events"
	"finbot/internal/logger"
	"finbot/internal/models"
	"finbot/internal/money"
	"finbot/internal/services"
)

const (
	apologyText = "Sorry, something went wrong while processing your message. Please try again later."

	activationText = "This chat is not linked to an account, or the link has expired.\n\n" +
		"To use the bot:\n" +
		"1. Ask an admin for an activation code\n" +
		"2. Send: /activate <code>"

	helpText = "How to use the bot:\n\n" +
		"Record transactions:\n" +
		"• Income: \"income 5jt for salary\" or \"catat pemasukan 5000000 untuk gaji\"\n" +
		"• Expense: \"spent 50k on food\" or \"catat pengeluaran 50rb untuk makan\"\n\n" +
		"Budgets:\n" +
		"• Set: \"set budget 2jt for food this month\" or \"atur budget 2000000 untuk makan\"\n" +
		"• View: \"show budget\" or \"lihat budget\"\n\n" +
		"Reports:\n" +
		"• Summary: \"report this week\" or \"laporan keuangan\""

	uncategorized = "uncategorized"
)

var activateCommands = map[string]bool{"/activate": true, "/aktivasi": true}

// Dispatcher answers chat messages on behalf of linked users. It talks to
// the same services as the HTTP API.
type Dispatcher struct {
	activation   services.ActivationServicer
	transactions services.TransactionServicer
	budgets      services.BudgetServicer
	reports      services.ReportServicer
	classifier   Classifier
	now          func() time.Time
	log          *zap.SugaredLogger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	activation services.ActivationServicer,
	transactions services.TransactionServicer,
	budgets services.BudgetServicer,
	reports services.ReportServicer,
) *Dispatcher {
	return &Dispatcher{
		activation:   activation,
		transactions: transactions,
		budgets:      budgets,
		reports:      reports,
		now:          time.Now,
		log:          logger.Named("chat"),
	}
}

// Handle returns the reply for msg. It never fails: errors become an
// apology and are logged.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) string {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return ""
	}
	if fields := strings.Fields(text); activateCommands[strings.ToLower(fields[0])] {
		return d.handleActivate(msg, fields[1:])
	}

	link, err := d.activation.ResolveIdentity(msg.Channel, msg.Identity)
	if errors.Is(err, apperrors.ErrChatLinkNotFound) {
		return activationText
	}
	if err != nil {
		d.log.Errorw("Failed to resolve chat identity", "channel", msg.Channel, "identity", msg.Identity, "error", err)
		return apologyText
	}

	intent, ent := d.classifier.Classify(text)
	reply, err := d.dispatch(ctx, link.UserID, intent, ent)
	if err != nil {
		d.log.Errorw("Failed to handle chat message",
			"userId", link.UserID,
			"intent", intent,
			"error", err,
		)
		return apologyText
	}
	return reply
}

func (d *Dispatcher) dispatch(_ context.Context, userID string, intent Intent, ent Entities) (string, error) {
	switch intent {
	case IntentIncome:
		return d.handleTransaction(userID, models.TransactionTypeIncome, ent)
	case IntentExpense:
		return d.handleTransaction(userID, models.TransactionTypeExpense, ent)
	case IntentBudgetSet:
		return d.handleSetBudget(userID, ent)
	case IntentBudgetView:
		return d.handleViewBudget(userID)
	case IntentReportSummary:
		return d.handleSummary(userID, ent)
	case IntentHelp:
		return helpText, nil
	case IntentUnknown:
		return "I didn't understand that.\n\n" + helpText, nil
	}
	return "", fmt.Errorf("unhandled intent %q", intent)
}

func (d *Dispatcher) handleActivate(msg Message, args []string) string {
	if len(args) == 0 {
		return "Usage: /activate <code>"
	}
	// The code is the last argument so "/aktivasi <username> <code>" works too.
	code := args[len(args)-1]

	link, err := d.activation.Activate(code, msg.Channel, msg.Identity)
	switch {
	case err == nil:
		return fmt.Sprintf("✅ Activated. This chat is linked until %s.\n\n%s", link.ExpiresAt.Format("02/01/2006"), helpText)
	case errors.Is(err, apperrors.ErrActivationCodeNotFound):
		return "❌ Unknown activation code."
	case errors.Is(err, apperrors.ErrActivationCodeExpired):
		return "❌ This activation code has expired."
	case errors.Is(err, apperrors.ErrActivationCodeExhausted):
		return "❌ This activation code has already been used."
	case errors.Is(err, apperrors.ErrIdentityAlreadyLinked):
		return "❌ This chat is already linked to another account."
	}
	d.log.Errorw("Failed to activate chat identity", "channel", msg.Channel, "identity", msg.Identity, "error", err)
	return apologyText
}

func (d *Dispatcher) handleTransaction(userID string, txType models.TransactionType, ent Entities) (string, error) {
	if ent.Amount <= 0 {
		return "❌ I couldn't find an amount.\nExample: \"spent 50k on food\"", nil
	}
	category := ent.Category
	if category == "" {
		category = uncategorized
	}

	res, err := d.transactions.CreateTransaction(userID, services.TransactionInput{
		Type:        txType,
		Amount:      ent.Amount,
		Category:    category,
		Description: ent.Description,
		Source:      models.TransactionSourceChat,
	})
	if err != nil {
		return "", err
	}

	label := "Income"
	if txType == models.TransactionTypeExpense {
		label = "Expense"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✅ %s recorded:\n💰 Amount: %s\n📁 Category: %s", label, money.Format(ent.Amount), res.Transaction.Category)
	if res.Transaction.Description != "" {
		fmt.Fprintf(&b, "\n📝 Description: %s", res.Transaction.Description)
	}

	if txType == models.TransactionTypeExpense {
		if len(res.Alerts) > 0 {
			for _, a := range res.Alerts {
				b.WriteString("\n\n")
				b.WriteString(FormatAlert(a))
			}
		} else if reminder := d.reminder(userID, res.Transaction.Category); reminder != "" {
			b.WriteString("\n\n")
			b.WriteString(reminder)
		}
	}
	return b.String(), nil
}

// reminder nags about a category that is already past a threshold when the
// latest expense did not trigger a new alert.
func (d *Dispatcher) reminder(userID, category string) string {
	detail, err := d.budgets.GetCurrentBudget(userID, d.now())
	if err != nil {
		if !errors.Is(err, apperrors.ErrNoActiveBudget) {
			d.log.Warnw("Failed to load budget for reminder", "userId", userID, "error", err)
		}
		return ""
	}
	for _, cs := range detail.Status.CategoryStatus {
		if cs.Category != category {
			continue
		}
		switch {
		case cs.IsCritical:
			return fmt.Sprintf("⚠️ Spending on %s has reached %d%% of its budget!", category, roundPercent(cs.SpentPercentage))
		case cs.IsWarning:
			left := 100 - roundPercent(cs.SpentPercentage)
			if left < 0 {
				left = 0
			}
			return fmt.Sprintf("⚠️ Heads up: %d%% of the %s budget is left.", left, category)
		}
	}
	return ""
}

// FormatAlert renders a newly triggered alert for a chat reply.
func FormatAlert(a services.TriggeredAlert) string {
	icon := "⚠️"
	if a.Level == events.AlertLevelCritical {
		icon = "🚨"
	}
	return fmt.Sprintf("%s %s alert: %s has reached %d%% of its budget (%s / %s).",
		icon, a.Level, a.Category, a.Threshold, money.Format(a.Spent), money.Format(a.Budgeted))
}

func (d *Dispatcher) handleSetBudget(userID string, ent Entities) (string, error) {
	if ent.Amount <= 0 || ent.Category == "" {
		return "❌ Invalid format.\nExample: \"set budget 2jt for food this month\"", nil
	}
	period := ent.Period
	if period == "" {
		period = models.BudgetPeriodMonthly
	}

	budget, err := d.budgets.SetCategoryAllocation(userID, period, d.now(), ent.Category, ent.Amount)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Budget set:\n💰 Amount: %s\n📁 Category: %s\n📅 Period: %s\n💼 Total budget: %s",
		money.Format(ent.Amount), models.NormalizeCategory(ent.Category), formatPeriod(budget), money.Format(budget.TotalBudget)), nil
}

func (d *Dispatcher) handleViewBudget(userID string) (string, error) {
	detail, err := d.budgets.GetCurrentBudget(userID, d.now())
	if errors.Is(err, apperrors.ErrNoActiveBudget) {
		return "❌ There is no budget for the current period.", nil
	}
	if err != nil {
		return "", err
	}

	st := detail.Status
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Budget %s\n\n", formatPeriod(detail.Budget))
	fmt.Fprintf(&b, "💰 Total budget: %s\n", money.Format(st.TotalBudget))
	fmt.Fprintf(&b, "💸 Spent: %s\n", money.Format(st.TotalSpent))
	fmt.Fprintf(&b, "💵 Remaining: %s\n", money.Format(st.RemainingBudget))
	fmt.Fprintf(&b, "📈 Used: %d%%\n", roundPercent(st.SpentPercentage))
	for _, cs := range st.CategoryStatus {
		fmt.Fprintf(&b, "\n📁 %s\nBudget: %s\nSpent: %s (%d%%)\n",
			cs.Category, money.Format(cs.Budgeted), money.Format(cs.Spent), roundPercent(cs.SpentPercentage))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (d *Dispatcher) handleSummary(userID string, ent Entities) (string, error) {
	period := ent.Period
	if period == "" {
		period = models.BudgetPeriodMonthly
	}
	s, err := d.reports.GetSummary(userID, period, d.now())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("📊 Summary %s (%s - %s)\n\n📈 Income: %s\n📉 Expense: %s\n💰 Balance: %s",
		period, s.StartDate.Format("02/01/2006"), s.EndDate.Format("02/01/2006"),
		money.Format(s.TotalIncome), money.Format(s.TotalExpense), money.Format(s.Balance)), nil
}

func formatPeriod(b *models.Budget) string {
	return fmt.Sprintf("%s (%s - %s)", b.Period, b.StartDate.Format("02/01/2006"), b.EndDate.Format("02/01/2006"))
}

func roundPercent(p float64) int {
	return int(math.Round(p))
}
