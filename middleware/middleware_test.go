package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"insightflow/api/logger"
	"insightflow/api/observability"
	"insightflow/api/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func adminRouter(auth AdminAuth) *gin.Engine {
	r := gin.New()
	r.POST("/api/cache/clear", AdminRequired(auth, logger.Nop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"operator": c.GetString("operator")})
	})
	return r
}

func doRequest(r http.Handler, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/cache/clear", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAdminRequired_OpenWhenUnconfigured(t *testing.T) {
	rec := doRequest(adminRouter(AdminAuth{}), "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRequired_APIKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("ops-key"), bcrypt.MinCost)
	require.NoError(t, err)
	r := adminRouter(AdminAuth{APIKeyHash: string(hash)})

	assert.Equal(t, http.StatusOK, doRequest(r, "X-API-KEY", "ops-key").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "X-API-KEY", "guess").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "", "").Code)
}

func TestAdminRequired_JWT(t *testing.T) {
	secret := "jwt-secret"
	r := adminRouter(AdminAuth{JWTSecret: secret})

	admin, err := utils.GenerateJWT([]byte(secret), "ops", utils.RoleAdmin, time.Hour, time.Now())
	require.NoError(t, err)
	viewer, err := utils.GenerateJWT([]byte(secret), "analyst", "viewer", time.Hour, time.Now())
	require.NoError(t, err)

	rec := doRequest(r, "Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"operator":"ops"}`, rec.Body.String())

	assert.Equal(t, http.StatusForbidden, doRequest(r, "Authorization", "Bearer "+viewer).Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "Authorization", "Bearer not-a-token").Code)
}

func TestRequestLogger_RecordsTimingAndCacheStatus(t *testing.T) {
	m := observability.NewMetrics(10)
	r := gin.New()
	r.Use(RequestLogger(logger.Nop(), m))
	r.GET("/api/journey/metrics", func(c *gin.Context) {
		c.Set(CacheStatusKey, observability.CacheHit)
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journey/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	snap := m.Timings.Snapshot()
	assert.Equal(t, 1, snap.Requests)
	assert.Equal(t, 1, snap.CacheHits)
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"http://localhost:5173"}))
	r.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
