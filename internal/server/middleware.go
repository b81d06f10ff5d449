package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// authMiddleware extracts the Bearer token, identifies the caller, and sets
// "user_id" in the gin context. Adapted from the teacher's
// internal/server/handlers/auth.go AuthMiddleware.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		userID, err := s.Auth.Identify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}
