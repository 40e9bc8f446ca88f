package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ContextKeyOperator = "operator_claims"
)

// Middleware creates a JWT authentication middleware for the admin API.
func Middleware(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid authorization header format"})
			return
		}

		claims, err := jwtManager.ValidateAccessToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
			return
		}

		c.Set(ContextKeyOperator, claims)
		c.Next()
	}
}

// RequireAdmin ensures the authenticated operator has admin rights.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetOperatorClaims(c)
		if claims == nil || !claims.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "admin access required"})
			return
		}
		c.Next()
	}
}

// GetOperatorClaims extracts the operator claims from the Gin context.
func GetOperatorClaims(c *gin.Context) *OperatorClaims {
	if claims, exists := c.Get(ContextKeyOperator); exists {
		return claims.(*OperatorClaims)
	}
	return nil
}
