package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"finbot/internal/chat"
	"finbot/internal/models"
)

// MessageHandler answers one chat message.
type MessageHandler interface {
	Handle(ctx context.Context, msg chat.Message) string
}

// ChatHandler exposes the chat dispatcher to external gateways (a WhatsApp
// bridge, for instance) that deliver messages over HTTP.
type ChatHandler struct {
	handler MessageHandler
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(handler MessageHandler) *ChatHandler {
	return &ChatHandler{handler: handler}
}

// ChatMessageRequest is one inbound message from a gateway.
type ChatMessageRequest struct {
	Channel  models.ChatChannel `json:"channel" binding:"required,chat_channel"`
	Identity string             `json:"identity" binding:"required,max=64"`
	Text     string             `json:"text" binding:"required,max=1000"`
}

// ChatReply is the text to send back. Empty means no reply.
type ChatReply struct {
	Reply string `json:"reply"`
}

// HandleMessage runs a gateway message through the dispatcher
// @Summary     Handle chat message
// @Tags        internal
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body ChatMessageRequest true "Message"
// @Success     200 {object} SuccessResponse{data=ChatReply} "Reply"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Router      /internal/chat/messages [post]
func (h *ChatHandler) HandleMessage(c *gin.Context) {
	var req ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	reply := h.handler.Handle(c.Request.Context(), chat.Message{
		Channel:  req.Channel,
		Identity: req.Identity,
		Text:     req.Text,
	})

	respond(c, http.StatusOK, ChatReply{Reply: reply})
}
