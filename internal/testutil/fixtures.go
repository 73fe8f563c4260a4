package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"finbot/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// TestPassword is the plaintext password of every fixture user.
const TestPassword = "password123"

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestAdmin creates a user with the admin role.
func CreateTestAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := CreateTestUserWithEmail(t, db, fmt.Sprintf("admin%d@test.com", nextID()))
	if err := db.Model(user).Update("role", models.UserRoleAdmin).Error; err != nil {
		t.Fatalf("failed to promote test admin: %v", err)
	}
	user.Role = models.UserRoleAdmin
	return user
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		Name:     "Test User",
		Role:     models.UserRoleUser,
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestBudget creates an active monthly budget over the month containing
// at. allocations maps category name to amount; the total is their sum.
// Every category gets the default 80/90 alerts.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID string, at time.Time, allocations map[string]int64) *models.Budget {
	t.Helper()

	start, end := models.BudgetPeriodMonthly.Window(at)
	budget := &models.Budget{
		UserID:            userID,
		Period:            models.BudgetPeriodMonthly,
		StartDate:         start,
		EndDate:           end,
		IsActive:          true,
		WarningThreshold:  models.DefaultWarningThreshold,
		CriticalThreshold: models.DefaultCriticalThreshold,
		Version:           1,
	}
	pos := 0
	for name, amount := range allocations {
		budget.TotalBudget += amount
		budget.Categories = append(budget.Categories, models.BudgetCategory{
			Position: pos,
			Category: models.NormalizeCategory(name),
			Amount:   amount,
			Alerts:   models.DefaultAlerts(models.DefaultWarningThreshold, models.DefaultCriticalThreshold),
		})
		pos++
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestTransaction inserts a transaction directly, bypassing the budget
// ledger.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID string, txType models.TransactionType, amount int64, category string, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Category:    models.NormalizeCategory(category),
		Description: fmt.Sprintf("Test transaction %d", nextID()),
		Date:        date.UTC(),
		Source:      models.TransactionSourceWeb,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestActivationCode creates an active code for userID.
func CreateTestActivationCode(t *testing.T, db *gorm.DB, userID string, maxIdentities int, expiresAt time.Time) *models.ActivationCode {
	t.Helper()

	code := &models.ActivationCode{
		Code:          fmt.Sprintf("TEST%06d", nextID()),
		UserID:        userID,
		ExpiresAt:     expiresAt.UTC(),
		MaxIdentities: maxIdentities,
		IsActive:      true,
	}
	if err := db.Create(code).Error; err != nil {
		t.Fatalf("failed to create test activation code: %v", err)
	}
	return code
}

// CreateTestChatLink binds identity on channel to userID until expiresAt.
func CreateTestChatLink(t *testing.T, db *gorm.DB, userID string, channel models.ChatChannel, identity string, expiresAt time.Time) *models.ChatLink {
	t.Helper()

	link := &models.ChatLink{
		UserID:      userID,
		Channel:     channel,
		Identity:    identity,
		IsActive:    true,
		ActivatedAt: time.Now().UTC(),
		ExpiresAt:   expiresAt.UTC(),
	}
	if err := db.Create(link).Error; err != nil {
		t.Fatalf("failed to create test chat link: %v", err)
	}
	return link
}
