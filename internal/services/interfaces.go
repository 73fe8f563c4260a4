package services

import (
	"time"

	"gorm.io/gorm"

	"finbot/internal/events"
	"finbot/internal/models"
	"finbot/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, name string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
}

// TransactionInput carries the fields of a new transaction.
type TransactionInput struct {
	Type        models.TransactionType
	Amount      int64
	Category    string
	Description string
	Date        time.Time
	Source      models.TransactionSource
}

// TransactionUpdate holds the fields a PUT may change. Nil means unchanged.
type TransactionUpdate struct {
	Type        *models.TransactionType
	Amount      *int64
	Category    *string
	Description *string
	Date        *time.Time
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate  *time.Time
	ToDate    *time.Time
	Type      *models.TransactionType
	Category  *string
	Source    *models.TransactionSource
	MinAmount *int64
	MaxAmount *int64
	Sort      string
}

// TriggeredAlert describes an alert that a ledger mutation latched.
type TriggeredAlert struct {
	BudgetID  string            `json:"budgetId"`
	Category  string            `json:"category"`
	Threshold int               `json:"threshold"`
	Level     events.AlertLevel `json:"level"`
	Spent     int64             `json:"spent"`
	Budgeted  int64             `json:"budgeted"`
}

// TransactionResult is a written transaction plus the alerts it triggered.
type TransactionResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Alerts      []TriggeredAlert    `json:"alerts"`
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(userID string, in TransactionInput) (*TransactionResult, error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	UpdateTransaction(userID, transactionID string, in TransactionUpdate) (*TransactionResult, error)
	DeleteTransaction(userID, transactionID string) error
}

// BudgetLedger keeps budget category counters in step with expense
// transactions. Every method runs on the caller's database transaction.
type BudgetLedger interface {
	ApplyExpense(tx *gorm.DB, txn *models.Transaction) ([]TriggeredAlert, error)
	RevertExpense(tx *gorm.DB, txn *models.Transaction) error
	Reconcile(tx *gorm.DB, old, updated *models.Transaction) ([]TriggeredAlert, error)
	CheckOverlap(tx *gorm.DB, userID string, start, end time.Time, excludeID string) error
	Recalculate(tx *gorm.DB, budget *models.Budget) error
}

// BudgetCategoryInput is one requested allocation. Alerts lists thresholds in
// percent; empty means the budget's warning and critical thresholds.
type BudgetCategoryInput struct {
	Category string
	Amount   int64
	Alerts   []int
}

// BudgetInput carries the fields of a budget create or update.
type BudgetInput struct {
	Period            models.BudgetPeriod
	StartDate         time.Time
	EndDate           time.Time
	TotalBudget       int64
	IsActive          *bool
	WarningThreshold  int
	CriticalThreshold int
	Categories        []BudgetCategoryInput
}

// BudgetFilter holds optional filter parameters for listing budgets.
type BudgetFilter struct {
	IsActive *bool
	Period   *models.BudgetPeriod
	FromDate *time.Time
	ToDate   *time.Time
}

// BudgetDetail is a budget with its derived status and the expenses it covers.
type BudgetDetail struct {
	Budget       *models.Budget       `json:"budget"`
	Status       models.BudgetStatus  `json:"status"`
	Transactions []models.Transaction `json:"transactions"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(userID string, in BudgetInput) (*models.Budget, error)
	GetUserBudgets(userID string, page pagination.PageRequest, filter BudgetFilter) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(userID, budgetID string) (*models.Budget, error)
	GetBudgetDetail(userID, budgetID string) (*BudgetDetail, error)
	GetCurrentBudget(userID string, at time.Time) (*BudgetDetail, error)
	UpdateBudget(userID, budgetID string, in BudgetInput, version *int) (*models.Budget, error)
	DeleteBudget(userID, budgetID string) error
	RecalculateBudget(userID, budgetID string) (*models.Budget, error)
	SetCategoryAllocation(userID string, period models.BudgetPeriod, at time.Time, category string, amount int64) (*models.Budget, error)
}

// ReportServicer defines the contract for read-only reporting.
type ReportServicer interface {
	GetSummary(userID string, period models.BudgetPeriod, at time.Time) (*Summary, error)
	GetTrends(userID string, months int) (*Trends, error)
	GetAnalysis(userID string, start, end time.Time) (*Analysis, error)
	GetBudgetOverview(userID string, months int) (*BudgetOverview, error)
	GetPeriodSummary(userID string, start, end time.Time) (*PeriodSummary, error)
}

// ActivationCodeFilter holds optional filter parameters for listing codes.
type ActivationCodeFilter struct {
	ActiveOnly bool
	UserID     string
}

// ActivationServicer defines the contract for activation codes and chat links.
type ActivationServicer interface {
	CreateCode(createdBy, userID string, duration time.Duration, maxIdentities int) (*models.ActivationCode, error)
	VerifyCode(code string) (*models.ActivationCode, error)
	Activate(code string, channel models.ChatChannel, identity string) (*models.ChatLink, error)
	GetUserLinks(userID string) ([]models.ChatLink, error)
	ResolveIdentity(channel models.ChatChannel, identity string) (*models.ChatLink, error)
	ListCodes(page pagination.PageRequest, filter ActivationCodeFilter) (*pagination.PageResponse[models.ActivationCode], error)
	ExtendCode(code string, duration time.Duration) (*models.ActivationCode, error)
	DeactivateCode(code string) error
	ExpireStale(now time.Time) (codes int64, links int64, err error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
