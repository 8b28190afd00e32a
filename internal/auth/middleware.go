package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyAPIKey is the key for storing the API key in gin context
	ContextKeyAPIKey = "apiKey"
	// ContextKeyPartnerID is the key for the authenticated partner ID
	ContextKeyPartnerID = "authPartnerID"
	// ContextKeyAdmin marks requests authenticated with the admin secret
	ContextKeyAdmin = "authAdmin"
)

// Middleware extracts and validates credentials from the request. A valid
// partner API key sets the partner identity; a matching X-Admin-Secret
// header grants admin. Neither is required here; Require* middlewares gate
// individual route groups.
func Middleware(m *Manager, adminSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("Authorization")
		if apiKey == "" {
			apiKey = c.GetHeader("X-API-Key")
		}

		if apiKey != "" {
			key, err := m.ValidateKey(c.Request.Context(), apiKey)
			if err == nil {
				c.Set(ContextKeyAPIKey, key)
				c.Set(ContextKeyPartnerID, key.PartnerID)
			}
		}

		if adminSecret != "" {
			given := c.GetHeader("X-Admin-Secret")
			if given != "" && subtle.ConstantTimeCompare([]byte(given), []byte(adminSecret)) == 1 {
				c.Set(ContextKeyAdmin, true)
			}
		}

		c.Next()
	}
}

// RequireAuth rejects requests that carry neither a valid API key nor the
// admin secret.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAuthenticated(c) && !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API key required. Include 'Authorization: Bearer pk_...' header.",
			})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects requests not authenticated with the admin secret.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "admin access required",
			})
			return
		}
		c.Next()
	}
}

// GetAPIKey returns the API key from context (if authenticated).
func GetAPIKey(c *gin.Context) (*APIKey, bool) {
	key, exists := c.Get(ContextKeyAPIKey)
	if !exists {
		return nil, false
	}
	return key.(*APIKey), true
}

// GetPartnerID returns the authenticated partner's ID, or "".
func GetPartnerID(c *gin.Context) string {
	id, exists := c.Get(ContextKeyPartnerID)
	if !exists {
		return ""
	}
	return id.(string)
}

// IsAuthenticated checks if the request carries a valid partner API key.
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(ContextKeyAPIKey)
	return exists
}

// IsAdmin checks if the request was authenticated via the admin secret.
func IsAdmin(c *gin.Context) bool {
	v, exists := c.Get(ContextKeyAdmin)
	return exists && v == true
}
