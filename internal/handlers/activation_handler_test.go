package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "finbot/internal/errors"
	"finbot/internal/models"
)

func setupActivationRouter(handler *ActivationHandler) *gin.Engine {
	r := gin.New()
	r.POST("/activations/verify", handler.VerifyCode)
	r.POST("/activations/activate", handler.Activate)
	r.GET("/activations/status", injectUserID(testUserID), handler.GetStatus)
	return r
}

func TestActivationHandler_VerifyCode(t *testing.T) {
	expires := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("reports remaining identities", func(t *testing.T) {
		svc := &mockActivationService{
			verifyCodeFn: func(code string) (*models.ActivationCode, error) {
				return &models.ActivationCode{Code: code, UserID: testUserID, ExpiresAt: expires, MaxIdentities: 3, UsedCount: 1, IsActive: true}, nil
			},
		}
		rec := doRequest(setupActivationRouter(NewActivationHandler(svc, &mockAuditService{})), http.MethodPost,
			"/activations/verify", `{"code":"ABCDE12345"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		data := dataOf(t, parseJSON(t, rec))
		if data["valid"] != true || data["remainingIdentities"] != float64(2) {
			t.Errorf("unexpected payload %v", data)
		}
		if _, leaked := data["userId"]; leaked {
			t.Error("verify must not reveal the owner")
		}
	})

	tests := []struct {
		name   string
		err    *apperrors.AppError
		status int
	}{
		{"unknown", apperrors.ErrActivationCodeNotFound, http.StatusNotFound},
		{"expired", apperrors.ErrActivationCodeExpired, http.StatusGone},
		{"exhausted", apperrors.ErrActivationCodeExhausted, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockActivationService{
				verifyCodeFn: func(string) (*models.ActivationCode, error) { return nil, tt.err },
			}
			rec := doRequest(setupActivationRouter(NewActivationHandler(svc, &mockAuditService{})), http.MethodPost,
				"/activations/verify", `{"code":"ABCDE12345"}`)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			assertErrorCode(t, parseJSON(t, rec), tt.err.Code)
		})
	}
}

func TestActivationHandler_Activate(t *testing.T) {
	t.Run("links identity", func(t *testing.T) {
		var gotChannel models.ChatChannel
		var gotIdentity string
		svc := &mockActivationService{
			activateFn: func(_ string, channel models.ChatChannel, identity string) (*models.ChatLink, error) {
				gotChannel, gotIdentity = channel, identity
				return &models.ChatLink{UserID: testUserID, Channel: channel, Identity: identity, IsActive: true}, nil
			},
		}
		audit := &mockAuditService{}
		rec := doRequest(setupActivationRouter(NewActivationHandler(svc, audit)), http.MethodPost,
			"/activations/activate", `{"code":"ABCDE12345","channel":"whatsapp","identity":"+628111222333"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotChannel != models.ChatChannelWhatsApp || gotIdentity != "+628111222333" {
			t.Errorf("unexpected args %s %s", gotChannel, gotIdentity)
		}
		if !audit.logged("ACTIVATE_CHAT_LINK") {
			t.Error("expected audit entry")
		}
	})

	t.Run("rejects unknown channel", func(t *testing.T) {
		rec := doRequest(setupActivationRouter(NewActivationHandler(&mockActivationService{}, &mockAuditService{})), http.MethodPost,
			"/activations/activate", `{"code":"ABCDE12345","channel":"signal","identity":"1"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		if result["message"] != "channel must be telegram or whatsapp" {
			t.Errorf("unexpected message %v", result["message"])
		}
	})

	t.Run("returns 409 when identity belongs to someone else", func(t *testing.T) {
		svc := &mockActivationService{
			activateFn: func(string, models.ChatChannel, string) (*models.ChatLink, error) {
				return nil, apperrors.ErrIdentityAlreadyLinked
			},
		}
		rec := doRequest(setupActivationRouter(NewActivationHandler(svc, &mockAuditService{})), http.MethodPost,
			"/activations/activate", `{"code":"ABCDE12345","channel":"telegram","identity":"42"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "IDENTITY_ALREADY_LINKED")
	})
}

func TestActivationHandler_GetStatus(t *testing.T) {
	rec := doRequest(setupActivationRouter(NewActivationHandler(&mockActivationService{}, &mockAuditService{})), http.MethodGet,
		"/activations/status", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	result := parseJSON(t, rec)
	links, ok := result["data"].([]interface{})
	if !ok || len(links) != 0 {
		t.Errorf("expected an empty list, got %v", result["data"])
	}
}
