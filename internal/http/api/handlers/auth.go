package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goblog-dev/goblog/internal/config"
	dbutil "github.com/goblog-dev/goblog/internal/db"
	"github.com/goblog-dev/goblog/internal/models"
	"github.com/goblog-dev/goblog/internal/security"
	"github.com/goblog-dev/goblog/internal/throttle"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthHandler manages registration and login.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
	guard  *throttle.Guard
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig, guard *throttle.Guard) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg, guard: guard}
}

// registerRequest defines the request body for account registration.
type registerRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Register creates a new account.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username"})
		return
	}
	password := strings.TrimSpace(body.Password)
	if password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing password"})
		return
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	user := models.User{
		Username: username,
		Name:     strings.TrimSpace(body.Name),
		Password: hash,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"name":     user.Name,
	})
}

// loginRequest defines the request body for login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates a user and issues a JWT. Attempts are gated by the
// throttle guard before any password check: a blocked username or origin is
// rejected without touching the database.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	password := strings.TrimSpace(body.Password)
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing credentials"})
		return
	}
	origin := c.ClientIP()

	if h.guard.IsBlocked(username, origin) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":               "too many failed attempts",
			"retry_after_minutes": h.guard.RemainingLockoutMinutes(username, origin),
		})
		return
	}

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&user).Error
	if errFind != nil || !security.CheckPassword(password, user.Password) {
		h.guard.RecordFailure(username, origin)
		if h.guard.IsBlocked(username, origin) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":               "too many failed attempts",
				"retry_after_minutes": h.guard.RemainingLockoutMinutes(username, origin),
			})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":              "invalid credentials",
			"remaining_attempts": h.guard.RemainingAttempts(username),
		})
		return
	}

	h.guard.RecordSuccess(username, origin)

	token, errToken := security.GenerateUserToken(h.jwtCfg.Secret, user.ID, user.Username, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}

	audit := models.LoginAudit{Username: user.Username, Origin: origin, LoginAt: time.Now().UTC()}
	if errAudit := h.db.WithContext(c.Request.Context()).Create(&audit).Error; errAudit != nil {
		log.Warnf("record login audit failed: %v", errAudit)
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int64(h.jwtCfg.Expiry.Seconds()),
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"name":     user.Name,
			"admin":    user.Admin,
			"author":   user.Author,
		},
	})
}

// ResetThrottle clears every failure counter and lockout held by the login
// guard. Admin only; the route group enforces the role.
func (h *AuthHandler) ResetThrottle(c *gin.Context) {
	cleared := h.guard.Reset()
	log.Infof("login throttle reset by %s, %d records cleared", CurrentUser(c).Username, cleared)
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}
