package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goblog-dev/goblog/internal/models"
	"gorm.io/gorm"
)

// TagHandler manages article tag endpoints.
type TagHandler struct {
	db *gorm.DB
}

// NewTagHandler constructs a TagHandler.
func NewTagHandler(db *gorm.DB) *TagHandler {
	return &TagHandler{db: db}
}

// List returns every known tag.
func (h *TagHandler) List(c *gin.Context) {
	var rows []models.Tag
	errFind := h.db.WithContext(c.Request.Context()).Order("name ASC").Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tags failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tagNames(rows)})
}

// attachTagRequest defines the request body for attaching a tag.
type attachTagRequest struct {
	Name string `json:"name"`
}

// Attach adds a tag to an article, creating the tag if needed. Only the
// article author or an admin.
func (h *TagHandler) Attach(c *gin.Context) {
	caller := CurrentUser(c)
	articleID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body attachTagRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	ctx := c.Request.Context()
	var article models.Article
	if errFind := h.db.WithContext(ctx).First(&article, articleID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if caller == nil || (article.AuthorID != caller.ID && !caller.Admin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the article author"})
		return
	}

	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		errFind := tx.Where("name = ?", name).First(&tag).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			tag = models.Tag{Name: name}
			if errCreate := tx.Create(&tag).Error; errCreate != nil {
				return errCreate
			}
		} else if errFind != nil {
			return errFind
		}
		return tx.Model(&article).Association("Tags").Append(&tag)
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "attach tag failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a tag everywhere. Admin only.
func (h *TagHandler) Delete(c *gin.Context) {
	tagID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx := c.Request.Context()
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errDetach := tx.Exec("DELETE FROM article_tags WHERE tag_id = ?", tagID).Error; errDetach != nil {
			return errDetach
		}
		res := tx.Delete(&models.Tag{}, tagID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
