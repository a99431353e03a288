package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goblog-dev/goblog/internal/chat"
)

// MessageHandler manages the REST surface of the chat.
type MessageHandler struct {
	registry *chat.Registry
	store    *chat.GormStore
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(registry *chat.Registry, store *chat.GormStore) *MessageHandler {
	return &MessageHandler{registry: registry, store: store}
}

// List returns the messages visible to the caller. Anonymous readers and
// privileged users see everything; other users only their own conversations.
func (h *MessageHandler) List(c *gin.Context) {
	rows, errList := h.registry.ListVisible(c.Request.Context(), CurrentUser(c))
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list messages failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": chat.PayloadsOf(rows)})
}

// publishRequest defines the request body for message publication.
type publishRequest struct {
	Body      string `json:"body"`
	Name      string `json:"name"`
	Recipient string `json:"recipient"`
}

// Publish persists a message and broadcasts it to every live session.
func (h *MessageHandler) Publish(c *gin.Context) {
	var body publishRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	msg, errPublish := h.registry.Publish(c.Request.Context(), CurrentUser(c), body.Name, body.Recipient, body.Body)
	if errPublish != nil {
		switch {
		case errors.Is(errPublish, chat.ErrEmptyBody):
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty message"})
		case errors.Is(errPublish, chat.ErrUnknownRecipient):
			c.JSON(http.StatusNotFound, gin.H{"error": "recipient not found"})
		case errors.Is(errPublish, chat.ErrRecipientNotAllowed):
			c.JSON(http.StatusForbidden, gin.H{"error": "directed messages are admin-only"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "publish failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": msg.ID, "sent_at": msg.SentAt})
}

// Delete removes a message. Only the sender or an admin.
func (h *MessageHandler) Delete(c *gin.Context) {
	caller := CurrentUser(c)
	if caller == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	errDelete := h.store.DeleteMessage(c.Request.Context(), id, caller)
	if errDelete != nil {
		switch {
		case errors.Is(errDelete, chat.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errDelete, chat.ErrNotMessageOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "not the message sender"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Chats lists the users who have sent at least one message. Admin only.
func (h *MessageHandler) Chats(c *gin.Context) {
	rows, errList := h.store.ListSenders(c.Request.Context())
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list chats failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{"id": row.ID, "username": row.Username, "name": row.Name})
	}
	c.JSON(http.StatusOK, gin.H{"chats": out})
}

// History returns the full conversation of a user, oldest first. Admin only.
func (h *MessageHandler) History(c *gin.Context) {
	username := strings.TrimSpace(c.Param("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username"})
		return
	}
	rows, errHistory := h.registry.History(c.Request.Context(), username)
	if errHistory != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load history failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": chat.PayloadsOf(rows)})
}
