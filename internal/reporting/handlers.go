package reporting

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/partnerhq/partnerhub/internal/auth"
	"github.com/partnerhq/partnerhub/internal/commission"
	"github.com/partnerhq/partnerhub/internal/partner"
)

// Handler provides HTTP endpoints for commission reports.
type Handler struct {
	svc *Service
}

// NewHandler creates a new reporting handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterProtectedRoutes sets up reporting routes that require auth.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/partners/:id/report", h.GetReport)
}

// GetReport handles GET /v1/partners/:id/report
// Query params: from, to (RFC 3339, inclusive), status, format (json|csv).
func (h *Handler) GetReport(c *gin.Context) {
	partnerID := c.Param("id")
	if !auth.IsAdmin(c) && auth.GetPartnerID(c) != partnerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "not your partner account"})
		return
	}

	var start, end time.Time
	var err error
	if v := c.Query("from"); v != "" {
		if start, err = time.Parse(time.RFC3339, v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "from must be RFC 3339"})
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if end, err = time.Parse(time.RFC3339, v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "to must be RFC 3339"})
			return
		}
	}
	status := commission.Status(c.Query("status"))

	records, err := h.svc.Report(c.Request.Context(), partnerID, start, end, status)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	if c.Query("format") == "csv" {
		p, err := h.svc.Partner(c.Request.Context(), partnerID)
		if err != nil {
			h.respondErr(c, err)
			return
		}
		out, err := h.svc.ExportCSV(p, records)
		if err != nil {
			h.respondErr(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="commission-report.csv"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", out)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"totals":  Summarize(records),
	})
}

func (h *Handler) respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, partner.ErrPartnerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "partner not found"})
	case errors.Is(err, ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_range", "message": "from must not be after to"})
	case errors.Is(err, ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}
