package validation

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestIsValidID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"ptn_1a2b3c4d5e6f7a8b9c0d1e2f", true},
		{"cus_deadbeefdeadbeef", true},
		{"cmr_0123456789abcdef", true},
		{"PTN_ABC", false},
		{"ptn-123", false},
		{"noprefix", false},
		{"", false},
		{"ptn_XYZ", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidID(tt.id), "id %q", tt.id)
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  ", 100))
	assert.Equal(t, "ab", SanitizeString("abcd", 2))
	assert.Equal(t, "ab", SanitizeString("a\x00b", 100))
}

func TestParseDate(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")

	d, ok := ParseDate("2025-03-15", loc)
	assert.True(t, ok)
	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, time.March, d.Month())
	assert.Equal(t, loc, d.Location())

	_, ok = ParseDate("15/03/2025", loc)
	assert.False(t, ok)

	_, ok = ParseDate("", loc)
	assert.False(t, ok)
}

func TestIDParamMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/partners/:id", IDParamMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/partners/ptn_1a2b3c4d5e6f7a8b", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/partners/DROP%20TABLE", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
