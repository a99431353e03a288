package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goblog-dev/goblog/internal/models"
	"gorm.io/gorm"
)

// articlesPerPage is the fixed page size of the public article listing.
const articlesPerPage = 5

// previewRunes is the cutoff for body previews in list payloads.
const previewRunes = 70

// ArticleHandler manages blog article endpoints.
type ArticleHandler struct {
	db *gorm.DB
}

// NewArticleHandler constructs an ArticleHandler.
func NewArticleHandler(db *gorm.DB) *ArticleHandler {
	return &ArticleHandler{db: db}
}

// preview truncates body to previewRunes runes, appending an ellipsis when cut.
func preview(body string) string {
	runes := []rune(body)
	if len(runes) <= previewRunes {
		return body
	}
	return string(runes[:previewRunes]) + "..."
}

// List returns a page of published articles, newest first. Page numbers start
// at 1; the response carries the total page count so clients can paginate.
func (h *ArticleHandler) List(c *gin.Context) {
	page, errParse := strconv.Atoi(strings.TrimSpace(c.DefaultQuery("page", "1")))
	if errParse != nil || page < 1 {
		page = 1
	}
	tag := strings.TrimSpace(c.Query("tag"))

	ctx := c.Request.Context()
	q := h.db.WithContext(ctx).Model(&models.Article{})
	if tag != "" {
		q = q.Joins("JOIN article_tags at ON at.article_id = articles.id").
			Joins("JOIN tags ON tags.id = at.tag_id").
			Where("tags.name = ?", tag)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count articles failed"})
		return
	}
	pages := int((total + articlesPerPage - 1) / articlesPerPage)

	var rows []models.Article
	errFind := q.Preload("Author").Preload("Tags").
		Order("articles.published_at DESC").
		Limit(articlesPerPage).Offset((page - 1) * articlesPerPage).
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list articles failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":           row.ID,
			"title":        row.Title,
			"preview":      preview(row.Body),
			"author":       row.Author.DisplayName(),
			"tags":         tagNames(row.Tags),
			"published_at": row.PublishedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"articles": out, "page": page, "pages": pages, "total": total})
}

// Get returns a single article with its comments and tags.
func (h *ArticleHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var article models.Article
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Author").Preload("Tags").
		Preload("Comments", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC") }).
		Preload("Comments.Author").
		First(&article, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	comments := make([]gin.H, 0, len(article.Comments))
	for _, comment := range article.Comments {
		comments = append(comments, gin.H{
			"id":         comment.ID,
			"body":       comment.Body,
			"author":     comment.Author.DisplayName(),
			"created_at": comment.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           article.ID,
		"title":        article.Title,
		"body":         article.Body,
		"author":       article.Author.DisplayName(),
		"tags":         tagNames(article.Tags),
		"comments":     comments,
		"published_at": article.PublishedAt,
	})
}

// articleRequest defines the request body for article creation and update.
type articleRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Create publishes a new article authored by the caller.
func (h *ArticleHandler) Create(c *gin.Context) {
	caller := CurrentUser(c)
	if caller == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var body articleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	title := strings.TrimSpace(body.Title)
	text := strings.TrimSpace(body.Body)
	if title == "" || text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing title or body"})
		return
	}

	article := models.Article{
		Title:       title,
		Body:        text,
		AuthorID:    caller.ID,
		PublishedAt: time.Now().UTC(),
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&article).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create article failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": article.ID, "title": article.Title})
}

// Update modifies an article. Only the authoring user or an admin may edit.
func (h *ArticleHandler) Update(c *gin.Context) {
	caller := CurrentUser(c)
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body articleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ctx := c.Request.Context()
	var article models.Article
	if errFind := h.db.WithContext(ctx).First(&article, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if caller == nil || (article.AuthorID != caller.ID && !caller.Admin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the article author"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if title := strings.TrimSpace(body.Title); title != "" {
		updates["title"] = title
	}
	if text := strings.TrimSpace(body.Body); text != "" {
		updates["body"] = text
	}
	if errUpdate := h.db.WithContext(ctx).Model(&article).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes an article and its comments. Only the author or an admin.
func (h *ArticleHandler) Delete(c *gin.Context) {
	caller := CurrentUser(c)
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx := c.Request.Context()
	var article models.Article
	if errFind := h.db.WithContext(ctx).First(&article, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
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
		if errDelComments := tx.Where("article_id = ?", id).Delete(&models.Comment{}).Error; errDelComments != nil {
			return errDelComments
		}
		if errDelTags := tx.Exec("DELETE FROM article_tags WHERE article_id = ?", id).Error; errDelTags != nil {
			return errDelTags
		}
		return tx.Delete(&models.Article{}, id).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// tagNames flattens tags into their names.
func tagNames(tags []models.Tag) []string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return names
}
