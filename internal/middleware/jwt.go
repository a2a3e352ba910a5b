package middleware

import (
	"errors"
	"net/http"
	"strings"
	"todo_tracker/internal/auth"

	"github.com/gin-gonic/gin"
)

// TokenValidator is satisfied by *auth.Issuer.
type TokenValidator interface {
	ValidateTokenOfType(tokenString string, tokenType auth.TokenType) (*auth.Claims, error)
}

// AuthMiddleware validates the bearer access token and stores the username
// in the context under auth.UsernameKey.
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format. Use: Bearer <token>"})
			return
		}

		claims, err := tokens.ValidateTokenOfType(parts[1], auth.AccessToken)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			case errors.Is(err, auth.ErrWrongType):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token type"})
			default:
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			return
		}

		c.Set(auth.UsernameKey, claims.Username)
		c.Next()
	}
}
