package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for API key management.
type Handler struct {
	mgr *Manager
}

// NewHandler creates a new auth handler.
func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

// RegisterProtectedRoutes sets up key management routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/partners/:id/keys", h.CreateKey)
	r.GET("/partners/:id/keys", h.ListKeys)
	r.DELETE("/partners/:id/keys/:keyId", h.RevokeKey)
}

// CreateKey handles POST /v1/partners/:id/keys
func (h *Handler) CreateKey(c *gin.Context) {
	partnerID := c.Param("id")
	if !h.ownsPartner(c, partnerID) {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Name == "" {
		req.Name = "Partner key"
	}

	rawKey, keyInfo, err := h.mgr.GenerateKey(c.Request.Context(), partnerID, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create key"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"apiKey":  rawKey,
		"keyId":   keyInfo.ID,
		"name":    keyInfo.Name,
		"warning": "Store this API key securely. It will not be shown again.",
	})
}

// ListKeys handles GET /v1/partners/:id/keys
func (h *Handler) ListKeys(c *gin.Context) {
	partnerID := c.Param("id")
	if !h.ownsPartner(c, partnerID) {
		return
	}

	keys, err := h.mgr.ListKeys(c.Request.Context(), partnerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(keys))
	for _, k := range keys {
		out = append(out, gin.H{
			"id":        k.ID,
			"name":      k.Name,
			"createdAt": k.CreatedAt,
			"lastUsed":  k.LastUsed,
			"revoked":   k.Revoked,
		})
	}
	c.JSON(http.StatusOK, gin.H{"keys": out, "count": len(out)})
}

// RevokeKey handles DELETE /v1/partners/:id/keys/:keyId
func (h *Handler) RevokeKey(c *gin.Context) {
	partnerID := c.Param("id")
	if !h.ownsPartner(c, partnerID) {
		return
	}

	keyID := c.Param("keyId")
	if err := h.mgr.RevokeKey(c.Request.Context(), keyID, partnerID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "key_not_found", "message": "key not found for this partner"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "key revoked", "keyId": keyID})
}

func (h *Handler) ownsPartner(c *gin.Context, partnerID string) bool {
	if IsAdmin(c) {
		return true
	}
	if GetPartnerID(c) != partnerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "not your partner account"})
		c.Abort()
		return false
	}
	return true
}
