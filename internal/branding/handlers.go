package branding

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/partnerhq/partnerhub/internal/auth"
	"github.com/partnerhq/partnerhub/internal/partner"
)

// Handler provides HTTP endpoints for branding management.
type Handler struct {
	svc *Service
}

// NewHandler creates a new branding handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterProtectedRoutes sets up branding routes that require auth.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/partners/:id/branding", h.GetBranding)
	r.PATCH("/partners/:id/branding", h.UpdateBranding)
}

// GetBranding handles GET /v1/partners/:id/branding
func (h *Handler) GetBranding(c *gin.Context) {
	partnerID := c.Param("id")
	if !h.ownsPartner(c, partnerID) {
		return
	}

	view, err := h.svc.Effective(c.Request.Context(), partnerID)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"branding": view})
}

// UpdateBranding handles PATCH /v1/partners/:id/branding
func (h *Handler) UpdateBranding(c *gin.Context) {
	partnerID := c.Param("id")
	if !h.ownsPartner(c, partnerID) {
		return
	}

	var patch Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}

	cfg, err := h.svc.Update(c.Request.Context(), partnerID, patch)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"branding": cfg})
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

func (h *Handler) respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, partner.ErrPartnerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "partner not found"})
	case errors.Is(err, ErrNotEntitled):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "white_label_not_entitled",
			"message": "white-label branding requires a gold or platinum tier",
		})
	case errors.Is(err, ErrDomainLimitExceeded):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "custom_domain_limit",
			"message": "custom domain limit reached for current tier",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}
