package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/goblog-dev/goblog/internal/models"
)

// userContextKey is where the auth middleware stores the authenticated user.
const userContextKey = "authUser"

// SetCurrentUser stores the authenticated user on the request context.
func SetCurrentUser(c *gin.Context, user *models.User) {
	c.Set(userContextKey, user)
}

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	value, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}
