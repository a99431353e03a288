package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goblog-dev/goblog/internal/models"
	"github.com/goblog-dev/goblog/internal/security"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// defaultPhoto is returned for accounts that never uploaded a profile photo.
var defaultPhoto = gin.H{"name": "default.png", "mime": "image/png", "data": ""}

// ProfileHandler manages the caller's own account.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

// Get returns the caller's profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	caller := CurrentUser(c)
	if caller == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	photo := any(defaultPhoto)
	if len(caller.Photo) > 0 {
		var stored map[string]any
		if errParse := json.Unmarshal(caller.Photo, &stored); errParse == nil {
			photo = stored
		}
	}
	payload := userPayload(caller)
	payload["photo"] = photo
	c.JSON(http.StatusOK, payload)
}

// updateProfileRequest defines the request body for profile updates.
type updateProfileRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

// Update modifies the caller's display name or password.
func (h *ProfileHandler) Update(c *gin.Context) {
	caller := CurrentUser(c)
	if caller == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var body updateProfileRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Name != nil {
		updates["name"] = strings.TrimSpace(*body.Name)
	}
	if body.Password != nil {
		if password := strings.TrimSpace(*body.Password); password != "" {
			hash, errHash := security.HashPassword(password)
			if errHash != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
				return
			}
			updates["password"] = hash
		}
	}

	errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.User{}).Where("id = ?", caller.ID).Updates(updates).Error
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// photoRequest defines the request body for photo upload.
type photoRequest struct {
	Name string `json:"name"`
	Mime string `json:"mime"`
	Data string `json:"data"`
}

// UploadPhoto stores the caller's profile photo as base64 plus metadata.
func (h *ProfileHandler) UploadPhoto(c *gin.Context) {
	caller := CurrentUser(c)
	if caller == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var body photoRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Data) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing photo data"})
		return
	}

	raw, errMarshal := json.Marshal(gin.H{
		"name": strings.TrimSpace(body.Name),
		"mime": strings.TrimSpace(body.Mime),
		"data": body.Data,
	})
	if errMarshal != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode photo failed"})
		return
	}

	errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.User{}).Where("id = ?", caller.ID).
		Updates(map[string]any{"photo": datatypes.JSON(raw), "updated_at": time.Now().UTC()}).Error
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store photo failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
