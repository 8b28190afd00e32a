package commission

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/partnerhq/partnerhub/internal/auth"
	"github.com/partnerhq/partnerhub/internal/money"
	"github.com/partnerhq/partnerhub/internal/partner"
)

// Handler provides HTTP endpoints for the commission ledger.
type Handler struct {
	svc *Service
}

// NewHandler creates a new commission handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterProtectedRoutes sets up commission routes that require auth.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/revenue-events", h.RecordRevenue)
	r.GET("/commissions/:id", h.GetRecord)
	r.GET("/partners/:id/commissions", h.ListByPartner)
}

// RegisterAdminRoutes sets up transition routes (finance operations).
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/commissions/:id/transition", h.Transition)
	r.POST("/commissions/:id/reopen", h.Reopen)
}

// RecordRevenue handles POST /v1/revenue-events
func (h *Handler) RecordRevenue(c *gin.Context) {
	var req struct {
		PartnerID      string `json:"partnerId" binding:"required"`
		CustomerID     string `json:"customerId" binding:"required"`
		Amount         string `json:"amount" binding:"required"` // decimal, e.g. "1000.00"
		IdempotencyKey string `json:"idempotencyKey" binding:"required"`
		ExternalRef    string `json:"externalRef"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request",
			"message": "partnerId, customerId, amount and idempotencyKey required"})
		return
	}
	if !requireOwnership(c, req.PartnerID) {
		return
	}

	amountCents, err := money.Parse(req.Amount)
	if err != nil || amountCents <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount",
			"message": "amount must be a positive decimal with at most two fraction digits"})
		return
	}

	rec, created, err := h.svc.RecordRevenue(c.Request.Context(), RevenueEvent{
		PartnerID:      req.PartnerID,
		CustomerID:     req.CustomerID,
		AmountCents:    amountCents,
		IdempotencyKey: req.IdempotencyKey,
		Source:         "api",
		ExternalRef:    req.ExternalRef,
	})
	if err != nil {
		respondCommissionErr(c, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"record": rec, "created": created})
}

// GetRecord handles GET /v1/commissions/:id
func (h *Handler) GetRecord(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondCommissionErr(c, err)
		return
	}
	if !requireOwnership(c, rec.PartnerID) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}

// ListByPartner handles GET /v1/partners/:id/commissions?from=...&to=...
func (h *Handler) ListByPartner(c *gin.Context) {
	partnerID := c.Param("id")
	if !requireOwnership(c, partnerID) {
		return
	}

	var from, to time.Time
	if s := c.Query("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_range", "message": "from must be RFC3339"})
			return
		}
		from = t
	}
	if s := c.Query("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_range", "message": "to must be RFC3339"})
			return
		}
		to = t
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_range", "message": "to must not precede from"})
		return
	}

	records, err := h.svc.ListByPartner(c.Request.Context(), partnerID, from, to)
	if err != nil {
		respondCommissionErr(c, err)
		return
	}

	var totalCents int64
	for _, r := range records {
		totalCents += r.CommissionAmountCents
	}
	c.JSON(http.StatusOK, gin.H{
		"records":         records,
		"count":           len(records),
		"totalCommission": money.Format(totalCents),
	})
}

// Transition handles POST /v1/commissions/:id/transition (admin only).
func (h *Handler) Transition(c *gin.Context) {
	var req struct {
		Status      Status `json:"status" binding:"required"`
		PaymentDate string `json:"paymentDate"` // RFC3339, required for paid
		Reason      string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "status required"})
		return
	}
	if !ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "message": "unknown status"})
		return
	}

	var paymentDate *time.Time
	if req.PaymentDate != "" {
		t, err := time.Parse(time.RFC3339, req.PaymentDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "paymentDate must be RFC3339"})
			return
		}
		paymentDate = &t
	}

	rec, err := h.svc.Transition(c.Request.Context(), c.Param("id"), req.Status, paymentDate, req.Reason)
	if err != nil {
		respondCommissionErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}

// Reopen handles POST /v1/commissions/:id/reopen (admin only).
func (h *Handler) Reopen(c *gin.Context) {
	var req struct {
		Resolution string `json:"resolution"`
	}
	_ = c.ShouldBindJSON(&req)

	rec, err := h.svc.Reopen(c.Request.Context(), c.Param("id"), req.Resolution)
	if err != nil {
		respondCommissionErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}

// ---------- helpers ----------

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

func respondCommissionErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "commission record not found"})
	case errors.Is(err, partner.ErrPartnerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "partner not found"})
	case errors.Is(err, partner.ErrCustomerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "customer not found"})
	case errors.Is(err, partner.ErrNotOwned):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "not_owned", "message": "customer belongs to another partner"})
	case errors.Is(err, ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount", "message": "revenue amount must be positive"})
	case errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_transition", "message": "transition not allowed from current status"})
	case errors.Is(err, ErrPaymentDateRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment_date_required", "message": "paymentDate is required to mark a record paid"})
	case errors.Is(err, ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "message": "record changed concurrently; retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}
