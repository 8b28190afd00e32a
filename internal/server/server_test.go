package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/partnerhq/partnerhub/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testAdminSecret = "test-admin-secret"

// testConfig returns a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		Env:             "development",
		LogLevel:        "error",
		AdminSecret:     testAdminSecret,
		RateLimitRPM:    10000,
		DefaultTimezone: "UTC",
	}
}

// newTestServer creates a server on in-memory stores
func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/live", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/ready", nil)
	s.router.ServeHTTP(w, req)

	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/health",
		"GET:/health/live",
		"GET:/health/ready",
		"GET:/metrics",
		"GET:/ws",
		"GET:/v1/tiers",
		"POST:/v1/billing/webhook",
		"POST:/v1/partners",
		"GET:/v1/partners/:id",
		"POST:/v1/partners/:id/customers",
		"POST:/v1/partners/:id/limit-check",
		"POST:/v1/revenue-events",
		"POST:/v1/commissions/:id/transition",
		"GET:/v1/partners/:id/performance",
		"GET:/v1/partners/:id/eligibility",
		"GET:/v1/partners/:id/branding",
		"GET:/v1/partners/:id/report",
		"POST:/v1/partners/:id/webhooks",
		"POST:/v1/partners/:id/keys",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// Auth boundary tests
// ---------------------------------------------------------------------------

func TestTiersArePublic(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/tiers", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/partners/pt_123", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestAdminRoutesRejectPartnerKeys(t *testing.T) {
	s := newTestServer(t)

	// No admin secret and no key: RequireAuth on protected group does not
	// apply here, RequireAdmin does.
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/partners", strings.NewReader(`{"name":"A","email":"a@b.co"}`))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// End-to-end flow over in-memory stores
// ---------------------------------------------------------------------------

func TestPartnerProvisioningFlow(t *testing.T) {
	s := newTestServer(t)

	// Admin creates a partner
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/partners",
		strings.NewReader(`{"name":"Acme Resellers","email":"ops@acme.example","tier":"silver"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Secret", testAdminSecret)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created struct {
		Partner struct {
			ID string `json:"id"`
		} `json:"partner"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if created.Partner.ID == "" {
		t.Fatal("Expected partner id in response")
	}

	// Admin issues an API key for the partner
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/v1/partners/"+created.Partner.ID+"/keys",
		strings.NewReader(`{"name":"primary"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Secret", testAdminSecret)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var keyResp struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &keyResp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if keyResp.APIKey == "" {
		t.Fatal("Expected apiKey in response")
	}

	// Partner reads its own account with the key
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/partners/"+created.Partner.ID, nil)
	req.Header.Set("Authorization", "Bearer "+keyResp.APIKey)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var got struct {
		Partner struct {
			Tier string `json:"tier"`
		} `json:"partner"`
		EffectiveRateBPS int `json:"effectiveRateBps"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if got.Partner.Tier != "silver" {
		t.Errorf("Expected tier silver, got %q", got.Partner.Tier)
	}
	if got.EffectiveRateBPS != 2000 {
		t.Errorf("Expected effective rate 2000 bps, got %d", got.EffectiveRateBPS)
	}

	// And cannot read a different partner account
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/partners/pt_other", nil)
	req.Header.Set("Authorization", "Bearer "+keyResp.APIKey)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// 404 test
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/nonexistent", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
