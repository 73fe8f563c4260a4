package models

import (
	"strings"
	"time"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the supported types.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// TransactionSource records which surface created a transaction.
type TransactionSource string

const (
	TransactionSourceWeb  TransactionSource = "web"
	TransactionSourceChat TransactionSource = "chat"
)

// Transaction is a single income or expense event. Amount is in minor
// currency units and always positive; the sign comes from Type.
type Transaction struct {
	Base
	UserID      string            `gorm:"type:uuid;not null;index:idx_transactions_user_date,priority:1" json:"userId"`
	Type        TransactionType   `gorm:"size:16;not null" json:"type"`
	Amount      int64             `gorm:"type:bigint;not null" json:"amount"`
	Category    string            `gorm:"size:100;not null;index" json:"category"`
	Description string            `json:"description"`
	Date        time.Time         `gorm:"not null;index:idx_transactions_user_date,priority:2" json:"date"`
	Source      TransactionSource `gorm:"size:16;not null;default:'web'" json:"source"`
}

// IsExpense reports whether the transaction counts against budgets.
func (t *Transaction) IsExpense() bool {
	return t.Type == TransactionTypeExpense
}

// NormalizeCategory trims, lower-cases and collapses inner whitespace so
// that "Food ", "food" and "FOOD" land on the same budget category.
func NormalizeCategory(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
