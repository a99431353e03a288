package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goblog-dev/goblog/internal/chat"
	"github.com/goblog-dev/goblog/internal/config"
	"github.com/goblog-dev/goblog/internal/models"
	"github.com/goblog-dev/goblog/internal/security"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ChatSocketHandler upgrades HTTP requests to live chat sessions.
type ChatSocketHandler struct {
	db       *gorm.DB
	jwtCfg   config.JWTConfig
	registry *chat.Registry
	upgrader websocket.Upgrader
}

// NewChatSocketHandler constructs a ChatSocketHandler.
func NewChatSocketHandler(db *gorm.DB, jwtCfg config.JWTConfig, registry *chat.Registry) *ChatSocketHandler {
	return &ChatSocketHandler{
		db:       db,
		jwtCfg:   jwtCfg,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// inboundFrame is the wire shape of messages sent by clients.
type inboundFrame struct {
	Body      string `json:"body"`
	Name      string `json:"name"`
	Recipient string `json:"recipient"`
}

// Serve upgrades the connection and pumps inbound frames through the registry
// until the client disconnects. Identity is optional: a valid bearer token
// (header or `token` query parameter) binds the session to a user, anything
// else joins anonymously.
func (h *ChatSocketHandler) Serve(c *gin.Context) {
	user := h.identify(c)

	conn, errUpgrade := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if errUpgrade != nil {
		log.Debugf("websocket upgrade failed: %v", errUpgrade)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx := c.Request.Context()
	handle := h.registry.Connect(ctx, conn, user)
	defer h.registry.Disconnect(handle)

	for {
		var frame inboundFrame
		if errRead := conn.ReadJSON(&frame); errRead != nil {
			if websocket.IsUnexpectedCloseError(errRead, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("chat session read failed: %v", errRead)
			}
			return
		}
		if _, errPublish := h.registry.Publish(ctx, user, frame.Name, frame.Recipient, frame.Body); errPublish != nil {
			if errors.Is(errPublish, chat.ErrEmptyBody) || errors.Is(errPublish, chat.ErrUnknownRecipient) || errors.Is(errPublish, chat.ErrRecipientNotAllowed) {
				_ = h.registry.Send(handle, gin.H{"error": errPublish.Error()})
				continue
			}
			log.Warnf("chat publish failed: %v", errPublish)
			_ = h.registry.Send(handle, gin.H{"error": "message not delivered"})
		}
	}
}

// identify resolves the optional caller identity from a bearer token.
func (h *ChatSocketHandler) identify(c *gin.Context) *models.User {
	raw := strings.TrimSpace(c.Query("token"))
	if raw == "" {
		header := c.GetHeader("Authorization")
		raw = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if raw == "" {
		return nil
	}
	claims, errJWT := security.ParseUserToken(h.jwtCfg.Secret, raw)
	if errJWT != nil {
		return nil
	}
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
		return nil
	}
	return &user
}
