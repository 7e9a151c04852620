package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medassist/clinical-portal/internal/audit"
	"github.com/medassist/clinical-portal/internal/live"
	"github.com/medassist/clinical-portal/pkg/model"
	"go.uber.org/zap"
)

// ChatHandler exposes message sessions over HTTP.
type ChatHandler struct {
	hub    *live.Hub
	trail  *audit.Trail
	logger *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(hub *live.Hub, trail *audit.Trail, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		hub:    hub,
		trail:  trail,
		logger: logger,
	}
}

type sendMessageRequest struct {
	SenderID    string             `json:"sender_id" binding:"required"`
	ReceiverID  string             `json:"receiver_id" binding:"required"`
	Text        string             `json:"text" binding:"required"`
	Type        model.MessageType  `json:"type"`
	Attachments []model.Attachment `json:"attachments"`
}

// Send appends and transmits one message in the conversation between
// sender and receiver.
func (h *ChatHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	if req.Type == "" {
		req.Type = model.MessageTypeText
	}

	session := h.hub.Session(req.SenderID, req.ReceiverID)

	msg, err := session.Send(req.Text, req.Attachments, req.Type)
	if err != nil {
		switch {
		case errors.Is(err, live.ErrTooManyAttachments), errors.Is(err, live.ErrAttachmentTooLarge):
			c.JSON(http.StatusBadRequest, errorResponse{
				Code:    "ATTACHMENT_VALIDATION_ERROR",
				Message: "Attachment validation failed",
				Details: stringPtr(err.Error()),
			})
		case errors.Is(err, live.ErrNotConnected):
			c.JSON(http.StatusServiceUnavailable, errorResponse{
				Code:    "NOT_CONNECTED",
				Message: "Live channel is not connected yet",
				Details: stringPtr(err.Error()),
			})
		default:
			h.logger.Error("failed to send message", zap.Error(err))
			c.JSON(http.StatusInternalServerError, errorResponse{
				Code:    "INTERNAL_ERROR",
				Message: "Failed to send message",
				Details: stringPtr(err.Error()),
			})
		}
		return
	}

	h.trail.Record(audit.Entry{
		OperationType: audit.OperationSend,
		ResourceType:  audit.ResourceMessage,
		ResourceID:    msg.ID,
		Detail: map[string]any{
			"session_id":   session.ID,
			"message_type": string(msg.Type),
		},
	})

	c.JSON(http.StatusCreated, msg)
}

// History returns the conversation log in insertion order and marks the
// counterpart's messages as read, mirroring opening the conversation in
// the portal.
func (h *ChatHandler) History(c *gin.Context) {
	userID := c.Query("user_id")
	withUser := c.Query("with_user")
	if userID == "" || withUser == "" {
		c.JSON(http.StatusBadRequest, errorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "user_id and with_user query parameters are required",
		})
		return
	}

	session := h.hub.Session(userID, withUser)
	session.MarkRead(withUser)

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"messages":   session.Messages(),
	})
}

type markReadRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	WithUser string `json:"with_user" binding:"required"`
}

// MarkRead flags every message from the counterpart as read.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	session := h.hub.Session(req.UserID, req.WithUser)
	session.MarkRead(req.WithUser)

	h.trail.Record(audit.Entry{
		OperationType: audit.OperationRead,
		ResourceType:  audit.ResourceSession,
		ResourceID:    session.ID,
	})

	c.JSON(http.StatusOK, gin.H{
		"unread": session.UnreadCount(req.WithUser),
	})
}
