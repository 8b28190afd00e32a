package partner

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/partnerhq/partnerhub/internal/auth"
	"github.com/partnerhq/partnerhub/internal/tier"
	"github.com/partnerhq/partnerhub/internal/validation"
)

// Handler provides HTTP endpoints for partner and customer management.
type Handler struct {
	svc *Service
}

// NewHandler creates a new partner handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublicRoutes sets up routes that need no authentication.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/tiers", h.ListTiers)
}

// RegisterAdminRoutes sets up admin-only partner management routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/partners", h.CreatePartner)
	r.GET("/partners", h.ListPartners)
	r.POST("/partners/:id/tier", h.ChangeTier)
	r.PATCH("/partners/:id/status", h.SetStatus)
	r.PATCH("/partners/:id/rate-override", h.SetRateOverride)
}

// RegisterProtectedRoutes sets up partner routes that require API key auth.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/partners/:id", h.GetPartner)
	r.PATCH("/partners/:id", h.UpdatePartner)
	r.GET("/partners/:id/tier-history", h.TierHistory)
	r.POST("/partners/:id/customers", h.OnboardCustomer)
	r.GET("/partners/:id/customers", h.ListCustomers)
	r.POST("/partners/:id/limit-check", h.CheckLimit)
	r.GET("/customers/:id", h.GetCustomer)
	r.PATCH("/customers/:id", h.UpdateCustomer)
	r.POST("/customers/:id/satisfaction", h.RecordSatisfaction)
}

// ListTiers handles GET /v1/tiers
func (h *Handler) ListTiers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tiers": tier.ByRank()})
}

// CreatePartner handles POST /v1/partners (admin only).
func (h *Handler) CreatePartner(c *gin.Context) {
	var req struct {
		Name     string  `json:"name" binding:"required"`
		Email    string  `json:"email" binding:"required,email"`
		Tier     tier.ID `json:"tier"`
		Timezone string  `json:"timezone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name and email required"})
		return
	}

	p, err := h.svc.CreatePartner(c.Request.Context(),
		validation.SanitizeString(req.Name, 200), req.Email, req.Tier, req.Timezone)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email_taken", "message": "email already registered"})
		case errors.Is(err, ErrInvalidTier):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_tier", "message": "unknown tier"})
		case errors.Is(err, ErrInvalidTimezone):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_timezone", "message": "timezone must be a valid IANA name"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create partner"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"partner": p})
}

// ListPartners handles GET /v1/partners (admin only).
func (h *Handler) ListPartners(c *gin.Context) {
	limit := validation.QueryInt(c, "limit", 50)
	offset := validation.QueryInt(c, "offset", 0)

	partners, err := h.svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"partners": partners, "count": len(partners)})
}

// GetPartner handles GET /v1/partners/:id
func (h *Handler) GetPartner(c *gin.Context) {
	id := c.Param("id")
	if !requireOwnership(c, id) {
		return
	}

	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondPartnerErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"partner":          p,
		"effectiveRateBps": p.EffectiveRateBPS(),
	})
}

// UpdatePartner handles PATCH /v1/partners/:id
func (h *Handler) UpdatePartner(c *gin.Context) {
	id := c.Param("id")
	if !requireOwnership(c, id) {
		return
	}

	var req struct {
		Timezone *string `json:"timezone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}

	if req.Timezone == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "nothing to update"})
		return
	}

	p, err := h.svc.SetReportingTimezone(c.Request.Context(), id, *req.Timezone)
	if err != nil {
		if errors.Is(err, ErrInvalidTimezone) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_timezone", "message": "timezone must be a valid IANA name"})
			return
		}
		respondPartnerErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partner": p})
}

// ChangeTier handles POST /v1/partners/:id/tier (admin only).
func (h *Handler) ChangeTier(c *gin.Context) {
	var req struct {
		Tier   tier.ID `json:"tier" binding:"required"`
		Actor  string  `json:"actor"`
		Reason string  `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "tier required"})
		return
	}
	if req.Actor == "" {
		req.Actor = "admin"
	}

	p, err := h.svc.ChangeTier(c.Request.Context(), c.Param("id"), req.Tier,
		validation.SanitizeString(req.Actor, 100), validation.SanitizeString(req.Reason, 500))
	if err != nil {
		if errors.Is(err, ErrInvalidTier) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_tier", "message": "unknown tier"})
			return
		}
		respondPartnerErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partner": p, "effectiveRateBps": p.EffectiveRateBPS()})
}

// SetStatus handles PATCH /v1/partners/:id/status (admin only).
func (h *Handler) SetStatus(c *gin.Context) {
	var req struct {
		Status Status `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "status required"})
		return
	}

	p, err := h.svc.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		if errors.Is(err, ErrPartnerNotFound) {
			respondPartnerErr(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"partner": p})
}

// SetRateOverride handles PATCH /v1/partners/:id/rate-override (admin only).
// A null rate clears the override.
func (h *Handler) SetRateOverride(c *gin.Context) {
	var req struct {
		RateBPS *int `json:"rateBps"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}

	p, err := h.svc.SetRateOverride(c.Request.Context(), c.Param("id"), req.RateBPS)
	if err != nil {
		if errors.Is(err, ErrPartnerNotFound) {
			respondPartnerErr(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_rate", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"partner": p, "effectiveRateBps": p.EffectiveRateBPS()})
}

// TierHistory handles GET /v1/partners/:id/tier-history
func (h *Handler) TierHistory(c *gin.Context) {
	id := c.Param("id")
	if !requireOwnership(c, id) {
		return
	}

	history, err := h.svc.TierHistory(c.Request.Context(), id)
	if err != nil {
		respondPartnerErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history, "count": len(history)})
}

// OnboardCustomer handles POST /v1/partners/:id/customers
func (h *Handler) OnboardCustomer(c *gin.Context) {
	partnerID := c.Param("id")
	if !requireOwnership(c, partnerID) {
		return
	}

	var req struct {
		Name     string         `json:"name" binding:"required"`
		MRRCents int64          `json:"mrrCents"`
		Status   CustomerStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name required"})
		return
	}

	cust, err := h.svc.OnboardCustomer(c.Request.Context(), partnerID,
		validation.SanitizeString(req.Name, 200), req.MRRCents, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrLimitExceeded):
			p, perr := h.svc.Get(c.Request.Context(), partnerID)
			resp := gin.H{"error": "limit_exceeded", "message": "customer limit reached for tier; upgrade required"}
			if perr == nil {
				if def, ok := tier.Get(p.Tier); ok {
					resp["limit"] = def.Limits.MaxCustomers
					resp["tier"] = p.Tier
				}
			}
			c.JSON(http.StatusForbidden, resp)
		case errors.Is(err, ErrPartnerNotFound):
			respondPartnerErr(c, err)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"customer": cust})
}

// ListCustomers handles GET /v1/partners/:id/customers
func (h *Handler) ListCustomers(c *gin.Context) {
	partnerID := c.Param("id")
	if !requireOwnership(c, partnerID) {
		return
	}

	customers, err := h.svc.ListCustomers(c.Request.Context(), partnerID)
	if err != nil {
		respondPartnerErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers, "count": len(customers)})
}

// CheckLimit handles POST /v1/partners/:id/limit-check
func (h *Handler) CheckLimit(c *gin.Context) {
	partnerID := c.Param("id")
	if !requireOwnership(c, partnerID) {
		return
	}

	var req struct {
		Resource tier.Resource `json:"resource" binding:"required"`
		Current  int           `json:"current"`
		Delta    int           `json:"delta"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "resource required"})
		return
	}
	if !tier.ValidResource(req.Resource) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_resource", "message": "unknown resource kind"})
		return
	}

	d, err := h.svc.CheckLimit(c.Request.Context(), partnerID, req.Resource, req.Current, req.Delta)
	if err != nil {
		respondPartnerErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decision": d})
}

// GetCustomer handles GET /v1/customers/:id
func (h *Handler) GetCustomer(c *gin.Context) {
	cust, err := h.svc.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondPartnerErr(c, err)
		return
	}
	if !requireOwnership(c, cust.PartnerID) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer": cust})
}

// UpdateCustomer handles PATCH /v1/customers/:id for lifecycle and MRR changes.
func (h *Handler) UpdateCustomer(c *gin.Context) {
	cust, err := h.svc.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondPartnerErr(c, err)
		return
	}
	if !requireOwnership(c, cust.PartnerID) {
		return
	}

	var req struct {
		Status   *CustomerStatus `json:"status"`
		MRRCents *int64          `json:"mrrCents"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}

	if req.Status != nil {
		cust, err = h.svc.SetCustomerStatus(c.Request.Context(), cust.ID, *req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "message": err.Error()})
			return
		}
	}
	if req.MRRCents != nil {
		cust, err = h.svc.SetCustomerMRR(c.Request.Context(), cust.ID, *req.MRRCents)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_mrr", "message": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"customer": cust})
}

// RecordSatisfaction handles POST /v1/customers/:id/satisfaction
func (h *Handler) RecordSatisfaction(c *gin.Context) {
	cust, err := h.svc.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondPartnerErr(c, err)
		return
	}
	if !requireOwnership(c, cust.PartnerID) {
		return
	}

	var req struct {
		Score *float64 `json:"score" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "score required"})
		return
	}

	cust, err = h.svc.RecordSatisfaction(c.Request.Context(), cust.ID, *req.Score)
	if err != nil {
		if errors.Is(err, ErrInvalidScore) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_score", "message": "score must be between 0 and 5"})
			return
		}
		respondPartnerErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer": cust})
}

// ---------- helpers ----------

// requireOwnership checks that the caller may act on the given partner.
// Returns false (and sends the error response) if not.
func requireOwnership(c *gin.Context, partnerID string) bool {
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

func respondPartnerErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPartnerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "partner not found"})
	case errors.Is(err, ErrCustomerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "customer not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}
