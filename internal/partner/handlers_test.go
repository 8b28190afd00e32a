package partner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/partnerhq/partnerhub/internal/auth"
	"github.com/partnerhq/partnerhub/internal/tier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := NewService(NewMemoryStore(), nil)
	h := NewHandler(svc)

	r := gin.New()
	// Tests act as admin so ownership checks pass.
	r.Use(func(c *gin.Context) {
		c.Set(auth.ContextKeyAdmin, true)
		c.Next()
	})
	v1 := r.Group("/v1")
	h.RegisterPublicRoutes(v1)
	h.RegisterAdminRoutes(v1)
	h.RegisterProtectedRoutes(v1)
	return r, svc
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreatePartnerEndpoint(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/partners", gin.H{
		"name":  "Acme Resellers",
		"email": "ops@acme.example",
		"tier":  "silver",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Partner Partner `json:"partner"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, tier.Silver, resp.Partner.Tier)
	assert.NotEmpty(t, resp.Partner.ID)

	// Duplicate email conflicts.
	w = doJSON(t, r, http.MethodPost, "/v1/partners", gin.H{
		"name":  "Copycat",
		"email": "ops@acme.example",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Unknown tier rejected.
	w = doJSON(t, r, http.MethodPost, "/v1/partners", gin.H{
		"name":  "Nope",
		"email": "nope@example.com",
		"tier":  "diamond",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOnboardCustomerEndpoint_LimitExceeded(t *testing.T) {
	r, svc := setupRouter(t)

	p, err := svc.CreatePartner(t.Context(), "Tiny", "tiny@example.com", tier.Bronze, "")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		w := doJSON(t, r, http.MethodPost, "/v1/partners/"+p.ID+"/customers", gin.H{
			"name": fmt.Sprintf("Customer %d", i), "mrrCents": 5000, "status": "active",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/v1/partners/"+p.ID+"/customers", gin.H{
		"name": "Over the cap", "mrrCents": 5000, "status": "active",
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "limit_exceeded")
	assert.Contains(t, w.Body.String(), `"limit":10`)
}

func TestLimitCheckEndpoint(t *testing.T) {
	r, svc := setupRouter(t)

	p, err := svc.CreatePartner(t.Context(), "Acme", "acme@example.com", tier.Silver, "")
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/v1/partners/"+p.ID+"/limit-check", gin.H{
		"resource": "custom_domains", "current": 1, "delta": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Decision tier.Decision `json:"decision"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Decision.Allowed)
	assert.Equal(t, 1, resp.Decision.Limit)

	w = doJSON(t, r, http.MethodPost, "/v1/partners/"+p.ID+"/limit-check", gin.H{
		"resource": "flux_capacitors",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangeTierEndpoint(t *testing.T) {
	r, svc := setupRouter(t)

	p, err := svc.CreatePartner(t.Context(), "Acme", "acme@example.com", tier.Bronze, "")
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/v1/partners/"+p.ID+"/tier", gin.H{
		"tier": "gold", "reason": "hit upgrade thresholds",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"effectiveRateBps":2500`)

	w = doJSON(t, r, http.MethodGet, "/v1/partners/"+p.ID+"/tier-history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fromTier":"bronze"`)
	assert.Contains(t, w.Body.String(), `"toTier":"gold"`)
}

func TestListTiersEndpoint(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(t, r, http.MethodGet, "/v1/tiers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"bronze"`)
	assert.Contains(t, w.Body.String(), `"platinum"`)
}

func TestGetPartnerEndpoint_NotFound(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(t, r, http.MethodGet, "/v1/partners/ptn_deadbeef00000000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
