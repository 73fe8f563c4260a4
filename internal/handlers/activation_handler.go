package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"finbot/internal/models"
	"finbot/internal/services"
)

// ActivationHandler lets chat identities be bound to accounts with an
// activation code.
type ActivationHandler struct {
	activationService services.ActivationServicer
	auditService      services.AuditServicer
}

// NewActivationHandler creates a new ActivationHandler.
func NewActivationHandler(activationService services.ActivationServicer, auditService services.AuditServicer) *ActivationHandler {
	return &ActivationHandler{activationService: activationService, auditService: auditService}
}

// VerifyCodeRequest carries a code to check.
type VerifyCodeRequest struct {
	Code string `json:"code" binding:"required,max=32"`
}

// VerifyCodeResponse describes a usable code without revealing its owner.
type VerifyCodeResponse struct {
	Valid               bool      `json:"valid"`
	ExpiresAt           time.Time `json:"expiresAt"`
	RemainingIdentities int       `json:"remainingIdentities"`
}

// ActivateRequest binds a chat identity with a code.
type ActivateRequest struct {
	Code     string             `json:"code" binding:"required,max=32"`
	Channel  models.ChatChannel `json:"channel" binding:"required,chat_channel"`
	Identity string             `json:"identity" binding:"required,max=64"`
}

// VerifyCode checks whether an activation code can still be used
// @Summary     Verify activation code
// @Tags        activations
// @Accept      json
// @Produce     json
// @Param       request body VerifyCodeRequest true "Code"
// @Success     200 {object} SuccessResponse{data=VerifyCodeResponse} "Code is usable"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Code not found"
// @Failure     409 {object} ErrorResponse "Code exhausted"
// @Failure     410 {object} ErrorResponse "Code expired"
// @Router      /activations/verify [post]
func (h *ActivationHandler) VerifyCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	ac, err := h.activationService.VerifyCode(req.Code)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respond(c, http.StatusOK, VerifyCodeResponse{
		Valid:               true,
		ExpiresAt:           ac.ExpiresAt,
		RemainingIdentities: ac.Remaining(),
	})
}

// Activate binds a chat identity to the code's account
// @Summary     Activate chat identity
// @Description Binds (channel, identity) to the account that owns the code until the code expires. Repeating the call for the same identity is idempotent.
// @Tags        activations
// @Accept      json
// @Produce     json
// @Param       request body ActivateRequest true "Activation"
// @Success     200 {object} SuccessResponse{data=models.ChatLink} "Identity linked"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Code not found"
// @Failure     409 {object} ErrorResponse "Code exhausted or identity linked elsewhere"
// @Failure     410 {object} ErrorResponse "Code expired"
// @Router      /activations/activate [post]
func (h *ActivationHandler) Activate(c *gin.Context) {
	var req ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	link, err := h.activationService.Activate(req.Code, req.Channel, req.Identity)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(link.UserID, services.AuditActivateChatLink, services.ResourceChatLink, link.ID, c.ClientIP(),
		map[string]interface{}{"channel": link.Channel})

	respond(c, http.StatusOK, link)
}

// GetStatus lists the chat identities linked to the current user
// @Summary     Chat link status
// @Tags        activations
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} SuccessResponse{data=[]models.ChatLink} "Links"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /activations/status [get]
func (h *ActivationHandler) GetStatus(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	links, err := h.activationService.GetUserLinks(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if links == nil {
		links = []models.ChatLink{}
	}

	respond(c, http.StatusOK, links)
}
