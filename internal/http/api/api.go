// Package api registers the HTTP surface of the blog: public article and
// message reads, authenticated writes, admin user management, and the live
// chat websocket.
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goblog-dev/goblog/internal/chat"
	"github.com/goblog-dev/goblog/internal/config"
	"github.com/goblog-dev/goblog/internal/http/api/handlers"
	"github.com/goblog-dev/goblog/internal/models"
	"github.com/goblog-dev/goblog/internal/security"
	"github.com/goblog-dev/goblog/internal/throttle"
	"gorm.io/gorm"
)

// RegisterRoutes registers routes, middleware, and handlers.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, guard *throttle.Guard, registry *chat.Registry, store *chat.GormStore) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	v0 := r.Group("/v0")

	authHandler := handlers.NewAuthHandler(db, jwtCfg, guard)
	v0.POST("/auth/register", authHandler.Register)
	v0.POST("/auth/login", authHandler.Login)

	optional := v0.Group("")
	optional.Use(identityMiddleware(db, jwtCfg, false))

	authed := v0.Group("")
	authed.Use(identityMiddleware(db, jwtCfg, true))

	admin := v0.Group("")
	admin.Use(identityMiddleware(db, jwtCfg, true))
	admin.Use(adminOnlyMiddleware())

	articleHandler := handlers.NewArticleHandler(db)
	v0.GET("/articles", articleHandler.List)
	v0.GET("/articles/:id", articleHandler.Get)
	authed.POST("/articles", requireAuthorRole(), articleHandler.Create)
	authed.PUT("/articles/:id", requireAuthorRole(), articleHandler.Update)
	authed.DELETE("/articles/:id", requireAuthorRole(), articleHandler.Delete)

	commentHandler := handlers.NewCommentHandler(db)
	v0.GET("/articles/:id/comments", commentHandler.List)
	authed.POST("/articles/:id/comments", commentHandler.Create)
	authed.DELETE("/articles/:id/comments/:comment_id", commentHandler.Delete)

	tagHandler := handlers.NewTagHandler(db)
	v0.GET("/tags", tagHandler.List)
	authed.POST("/articles/:id/tags", requireAuthorRole(), tagHandler.Attach)
	admin.DELETE("/tags/:id", tagHandler.Delete)

	userHandler := handlers.NewUserHandler(db)
	admin.GET("/users", userHandler.List)
	admin.GET("/users/:id", userHandler.Get)
	admin.POST("/users", userHandler.Create)
	admin.PUT("/users/:id", userHandler.Update)
	admin.DELETE("/users/:id", userHandler.Delete)
	admin.POST("/users/:id/admin", userHandler.ToggleAdmin)
	admin.POST("/users/:id/author", userHandler.ToggleAuthor)
	admin.POST("/throttle/reset", authHandler.ResetThrottle)

	profileHandler := handlers.NewProfileHandler(db)
	authed.GET("/profile", profileHandler.Get)
	authed.PUT("/profile", profileHandler.Update)
	authed.POST("/profile/photo", profileHandler.UploadPhoto)

	messageHandler := handlers.NewMessageHandler(registry, store)
	optional.GET("/messages", messageHandler.List)
	optional.POST("/messages", messageHandler.Publish)
	authed.DELETE("/messages/:id", messageHandler.Delete)
	admin.GET("/chats", messageHandler.Chats)
	admin.GET("/chats/:username", messageHandler.History)

	socketHandler := handlers.NewChatSocketHandler(db, jwtCfg, registry)
	r.GET("/ws/chat", socketHandler.Serve)
}

// identityMiddleware resolves the caller from a bearer token and stores the
// user on the request context. With required set, requests without a valid
// token are rejected; otherwise they proceed anonymously.
func identityMiddleware(db *gorm.DB, jwtCfg config.JWTConfig, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" || token == strings.TrimSpace(authHeader) {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
				return
			}
			c.Next()
			return
		}

		claims, errJWT := security.ParseUserToken(jwtCfg.Secret, token)
		if errJWT != nil {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			c.Next()
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
				return
			}
			c.Next()
			return
		}

		handlers.SetCurrentUser(c, &user)
		c.Next()
	}
}

// adminOnlyMiddleware rejects callers without the administrator role.
func adminOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := handlers.CurrentUser(c)
		if user == nil || !user.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

// requireAuthorRole rejects callers without the author or administrator role.
func requireAuthorRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := handlers.CurrentUser(c)
		if user == nil || !user.Privileged() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "author role required"})
			return
		}
		c.Next()
	}
}
