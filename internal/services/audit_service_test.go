package services

import (
	"testing"

	"finbot/internal/models"
	"finbot/internal/testutil"
)

func TestAuditLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAuditService(db)
	user := testutil.CreateTestUser(t, db)

	t.Run("with_changes", func(t *testing.T) {
		svc.Log(user.ID, AuditCreateBudget, ResourceBudget, "b1", "10.0.0.1", map[string]any{"totalBudget": 1500})

		var entry models.AuditLog
		testutil.AssertNoError(t, db.Where("action = ?", AuditCreateBudget).First(&entry).Error)
		if entry.UserID != user.ID || entry.ResourceType != "budget" || entry.ResourceID != "b1" || entry.IPAddress != "10.0.0.1" {
			t.Errorf("unexpected entry %+v", entry)
		}
		if entry.Changes != `{"totalBudget":1500}` {
			t.Errorf("unexpected changes %q", entry.Changes)
		}
	})

	t.Run("without_changes", func(t *testing.T) {
		svc.Log(user.ID, AuditDeleteTransaction, ResourceTransaction, "t1", "", nil)

		var entry models.AuditLog
		testutil.AssertNoError(t, db.Where("action = ?", AuditDeleteTransaction).First(&entry).Error)
		if entry.Changes != "" {
			t.Errorf("expected no changes, got %q", entry.Changes)
		}
	})

	t.Run("unencodable_changes", func(t *testing.T) {
		svc.Log(user.ID, AuditRestartBot, ResourceBot, "telegram", "", map[string]any{"bad": make(chan int)})

		var entry models.AuditLog
		testutil.AssertNoError(t, db.Where("action = ?", AuditRestartBot).First(&entry).Error)
		if entry.Changes != "{}" {
			t.Errorf("expected placeholder changes, got %q", entry.Changes)
		}
	})
}
