package middleware

import (
	"github.com/gin-gonic/gin"
)

// RequireAdmin guards the operator routes. It must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(RoleAdmin)
}

// AdminChain is the full middleware chain of an operator route.
func AdminChain(secret string) []gin.HandlerFunc {
	return []gin.HandlerFunc{AuthMiddleware(secret), RequireAdmin()}
}
