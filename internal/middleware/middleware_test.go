package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Makeis02/landingmaj-sub003/internal/i18n"
	"github.com/Makeis02/landingmaj-sub003/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseAcceptLanguage(t *testing.T) {
	require.NoError(t, i18n.Initialize("fr"))

	cases := map[string]string{
		"":                         "fr",
		"en-US,en;q=0.9":           "en",
		"de-DE,en;q=0.8":           "en",
		"fr_FR":                    "fr",
		"es, it":                   "fr",
		"  EN-gb ; q=1.0, fr;q=.5": "en",
	}
	for header, want := range cases {
		assert.Equal(t, want, parseAcceptLanguage(header), header)
	}
}

func TestRedact(t *testing.T) {
	data := map[string]interface{}{
		"email":    "admin@aquashop.test",
		"password": "hunter2",
		"nested":   map[string]interface{}{"webhook_secret": "whsec", "code": "DIX"},
	}
	redact(data)

	assert.Equal(t, "admin@aquashop.test", data["email"])
	assert.Equal(t, "[redacted]", data["password"])
	nested := data["nested"].(map[string]interface{})
	assert.Equal(t, "[redacted]", nested["webhook_secret"])
	assert.Equal(t, "DIX", nested["code"])
}

func TestExtractResourceType(t *testing.T) {
	assert.Equal(t, "promo-codes", extractResourceType("/v1/admin/promo-codes/123"))
	assert.Equal(t, "orders", extractResourceType("/v1/admin/orders"))
	assert.Equal(t, "unknown", extractResourceType("/v1/admin"))
}

func TestAdminRequired(t *testing.T) {
	require.NoError(t, i18n.Initialize("fr"))
	utils.SetJWTSecret("middleware-test-secret")

	r := gin.New()
	r.GET("/admin", AdminRequired(), func(c *gin.Context) {
		id, _ := utils.GetAdminIDFromContext(c)
		c.String(http.StatusOK, id)
	})

	call := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, call("").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer garbage").Code)

	adminID := uuid.New()
	token, err := utils.GenerateJWT(adminID, "admin@aquashop.test", 1)
	require.NoError(t, err)

	w := call("Bearer " + token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, adminID.String(), w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	require.NoError(t, i18n.Initialize("fr"))
	limiter := NewRateLimiter(rate.Every(time.Hour), 2)

	r := gin.New()
	r.GET("/promo", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/promo", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/promo", nil)
	req.RemoteAddr = "203.0.113.8:4000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "limits are per client")
}
