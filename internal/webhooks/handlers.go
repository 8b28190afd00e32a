package webhooks

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/partnerhq/partnerhub/internal/auth"
	"github.com/partnerhq/partnerhub/internal/idgen"
	"github.com/partnerhq/partnerhub/internal/security"
)

// Handler provides HTTP endpoints for webhook subscription management.
type Handler struct {
	store Store
}

// NewHandler creates a new webhook handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterProtectedRoutes sets up webhook routes that require auth.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/partners/:id/webhooks", h.CreateSubscription)
	r.GET("/partners/:id/webhooks", h.ListSubscriptions)
	r.PATCH("/partners/:id/webhooks/:webhookId", h.UpdateSubscription)
	r.DELETE("/partners/:id/webhooks/:webhookId", h.DeleteSubscription)
}

// CreateSubscription handles POST /v1/partners/:id/webhooks
func (h *Handler) CreateSubscription(c *gin.Context) {
	partnerID := c.Param("id")
	if !h.ownsPartner(c, partnerID) {
		return
	}

	var req struct {
		URL    string   `json:"url" binding:"required"`
		Events []string `json:"events" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "url and events are required"})
		return
	}

	if err := security.ValidateEndpointURL(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_url", "message": err.Error()})
		return
	}
	for _, e := range req.Events {
		if !KnownEvent(e) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_event", "message": "unknown event type: " + e})
			return
		}
	}

	secret := generateSecret()
	sub := &Subscription{
		ID:        idgen.WithPrefix("wh_"),
		PartnerID: partnerID,
		URL:       req.URL,
		Secret:    secret,
		Events:    req.Events,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := h.store.Create(c.Request.Context(), sub); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"webhook": sub,
		// The secret is only shown once.
		"secret": secret,
		"usage": gin.H{
			"signature": "hex(HMAC-SHA256(payload, secret))",
			"header":    "X-PartnerHub-Signature",
		},
	})
}

// ListSubscriptions handles GET /v1/partners/:id/webhooks
func (h *Handler) ListSubscriptions(c *gin.Context) {
	partnerID := c.Param("id")
	if !h.ownsPartner(c, partnerID) {
		return
	}

	subs, err := h.store.ListByPartner(c.Request.Context(), partnerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list subscriptions"})
		return
	}
	if subs == nil {
		subs = []*Subscription{}
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": subs})
}

// UpdateSubscription handles PATCH /v1/partners/:id/webhooks/:webhookId
// Re-enabling resets the failure counter.
func (h *Handler) UpdateSubscription(c *gin.Context) {
	partnerID := c.Param("id")
	if !h.ownsPartner(c, partnerID) {
		return
	}

	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "active is required"})
		return
	}

	sub, err := h.store.Get(c.Request.Context(), c.Param("webhookId"))
	if err != nil || sub.PartnerID != partnerID {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "webhook not found"})
		return
	}

	sub.Active = *req.Active
	if sub.Active {
		sub.ConsecutiveFailures = 0
		sub.LastError = ""
	}
	if err := h.store.Update(c.Request.Context(), sub); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to update subscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhook": sub})
}

// DeleteSubscription handles DELETE /v1/partners/:id/webhooks/:webhookId
func (h *Handler) DeleteSubscription(c *gin.Context) {
	partnerID := c.Param("id")
	if !h.ownsPartner(c, partnerID) {
		return
	}

	sub, err := h.store.Get(c.Request.Context(), c.Param("webhookId"))
	if err != nil || sub.PartnerID != partnerID {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "webhook not found"})
		return
	}

	if err := h.store.Delete(c.Request.Context(), sub.ID); err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "webhook not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to delete subscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) ownsPartner(c *gin.Context, partnerID string) bool {
	if auth.IsAdmin(c) {
		return true
	}
	if auth.GetPartnerID(c) != partnerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "not your partner account"})
		c.Abort()
		return false
	}
	return true
}

func generateSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
