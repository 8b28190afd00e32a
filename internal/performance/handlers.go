package performance

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/partnerhq/partnerhub/internal/auth"
	"github.com/partnerhq/partnerhub/internal/partner"
)

// Handler provides HTTP endpoints for performance snapshots.
type Handler struct {
	svc *Service
}

// NewHandler creates a new performance handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterProtectedRoutes sets up performance routes that require auth.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/partners/:id/performance", h.GetSnapshot)
	r.GET("/partners/:id/eligibility", h.GetEligibility)
}

// GetSnapshot handles GET /v1/partners/:id/performance
func (h *Handler) GetSnapshot(c *gin.Context) {
	partnerID := c.Param("id")
	if !h.ownsPartner(c, partnerID) {
		return
	}

	snap, err := h.svc.Snapshot(c.Request.Context(), partnerID)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": snap})
}

// GetEligibility handles GET /v1/partners/:id/eligibility
func (h *Handler) GetEligibility(c *gin.Context) {
	partnerID := c.Param("id")
	if !h.ownsPartner(c, partnerID) {
		return
	}

	snap, ev, err := h.svc.Eligibility(c.Request.Context(), partnerID)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"evaluation": ev,
		"snapshot":   snap,
	})
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
	if errors.Is(err, partner.ErrPartnerNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "partner not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
}
