// Package events publishes budget alert notifications to other processes.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// AlertLevel classifies a crossed threshold.
type AlertLevel string

const (
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// BudgetAlertEvent is emitted once per alert that a transaction pushed over
// its threshold.
type BudgetAlertEvent struct {
	UserID        string     `json:"userId"`
	TransactionID string     `json:"transactionId"`
	BudgetID      string     `json:"budgetId"`
	Category      string     `json:"category"`
	Threshold     int        `json:"threshold"`
	Level         AlertLevel `json:"level"`
	Spent         int64      `json:"spent"`
	Budgeted      int64      `json:"budgeted"`
	TriggeredAt   time.Time  `json:"triggeredAt"`
}

// ToJSON converts the event to its wire form.
func (e *BudgetAlertEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// BudgetAlertEventFromJSON decodes an event published by PublishBudgetAlert.
func BudgetAlertEventFromJSON(data []byte) (*BudgetAlertEvent, error) {
	var e BudgetAlertEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Publisher delivers alert events.
type Publisher interface {
	PublishBudgetAlert(ctx context.Context, event BudgetAlertEvent) error
	Close() error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishBudgetAlert(context.Context, BudgetAlertEvent) error { return nil }
func (Nop) Close() error                                              { return nil }
