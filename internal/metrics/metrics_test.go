package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"
)

func TestMiddleware_CountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	HTTPRequestsTotal.Reset()

	r := gin.New()
	r.Use(Middleware())
	r.GET("/v1/partners/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/partners/ptn_1", nil)
	r.ServeHTTP(w, req)

	m := &dto.Metric{}
	counter, err := HTTPRequestsTotal.GetMetricWithLabelValues("GET", "/v1/partners/:id", "2xx")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues failed: %v", err)
	}
	_ = counter.Write(m)

	if m.Counter.GetValue() != 1.0 {
		t.Errorf("expected counter value 1, got %f", m.Counter.GetValue())
	}
}

func TestRevenueEventsCounter(t *testing.T) {
	RevenueEventsTotal.Reset()

	RevenueEventsTotal.WithLabelValues("recorded").Inc()
	RevenueEventsTotal.WithLabelValues("recorded").Inc()
	RevenueEventsTotal.WithLabelValues("duplicate").Inc()

	m := &dto.Metric{}
	counter, err := RevenueEventsTotal.GetMetricWithLabelValues("recorded")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues failed: %v", err)
	}
	_ = counter.Write(m)

	if m.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2, got %f", m.Counter.GetValue())
	}
}

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{500, "5xx"},
	}
	for _, tt := range tests {
		if got := statusBucket(tt.code); got != tt.expected {
			t.Errorf("statusBucket(%d) = %q, want %q", tt.code, got, tt.expected)
		}
	}
}
