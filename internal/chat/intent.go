// Package chat turns free-text messages from a messaging channel into
// transactions, budgets and reports for a linked user.
package chat

import "finbot/internal/models"

// Intent is what a message asks for. The set is closed; Dispatcher.Handle
// switches over every value.
type Intent string

const (
	IntentIncome        Intent = "transaction.income"
	IntentExpense       Intent = "transaction.expense"
	IntentBudgetSet     Intent = "budget.set"
	IntentBudgetView    Intent = "budget.view"
	IntentReportSummary Intent = "report.summary"
	IntentHelp          Intent = "help"
	IntentUnknown       Intent = "unknown"
)

// Entities are the values pulled out of a message. Zero values mean absent.
type Entities struct {
	Amount      int64
	Category    string
	Period      models.BudgetPeriod
	Description string
}

// Message is one inbound chat message.
type Message struct {
	Channel  models.ChatChannel
	Identity string
	Text     string
}
