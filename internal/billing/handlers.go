package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/partnerhq/partnerhub/internal/partner"
)

// maxWebhookBody caps Stripe payloads; their events are small.
const maxWebhookBody = 1 << 20

// Handler provides the inbound billing webhook endpoint.
type Handler struct {
	svc *Service
}

// NewHandler creates a new billing handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublicRoutes sets up the webhook route. Stripe authenticates via
// the signature header, not an API key, so this stays outside auth.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/billing/webhook", h.Webhook)
}

// Webhook handles POST /v1/billing/webhook
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "unreadable body"})
		return
	}

	result, err := h.svc.ProcessWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrBadSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature", "message": "webhook signature verification failed"})
	case errors.Is(err, ErrMissingMetadata):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "missing_metadata", "message": err.Error()})
	case errors.Is(err, partner.ErrPartnerNotFound), errors.Is(err, partner.ErrCustomerNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown_reference", "message": err.Error()})
	case errors.Is(err, partner.ErrNotOwned):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "ownership_mismatch", "message": "customer does not belong to partner"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}
