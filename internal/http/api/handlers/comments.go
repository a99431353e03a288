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

// CommentHandler manages article comment endpoints.
type CommentHandler struct {
	db *gorm.DB
}

// NewCommentHandler constructs a CommentHandler.
func NewCommentHandler(db *gorm.DB) *CommentHandler {
	return &CommentHandler{db: db}
}

// List returns the comments of an article, oldest first.
func (h *CommentHandler) List(c *gin.Context) {
	articleID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var rows []models.Comment
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Author").
		Where("article_id = ?", articleID).
		Order("created_at ASC").Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list comments failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":         row.ID,
			"body":       row.Body,
			"author":     row.Author.DisplayName(),
			"created_at": row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"comments": out})
}

// commentRequest defines the request body for comment creation.
type commentRequest struct {
	Body string `json:"body"`
}

// Create adds a comment to an article. Requires authentication.
func (h *CommentHandler) Create(c *gin.Context) {
	caller := CurrentUser(c)
	if caller == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	articleID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body commentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	text := strings.TrimSpace(body.Body)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing body"})
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

	comment := models.Comment{Body: text, AuthorID: caller.ID, ArticleID: articleID}
	if errCreate := h.db.WithContext(ctx).Create(&comment).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create comment failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": comment.ID})
}

// Delete removes a comment. Only the comment author or an admin.
func (h *CommentHandler) Delete(c *gin.Context) {
	caller := CurrentUser(c)
	commentID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("comment_id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx := c.Request.Context()
	var comment models.Comment
	if errFind := h.db.WithContext(ctx).First(&comment, commentID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if caller == nil || (comment.AuthorID != caller.ID && !caller.Admin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the comment author"})
		return
	}
	if errDelete := h.db.WithContext(ctx).Delete(&models.Comment{}, commentID).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
