package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func doRequest(engine *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func pingEngine(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", mw, func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	// 零补充速率、桶容量 2：第 3 个请求必然 429
	engine := pingEngine(RateLimit(rate.Limit(0), 2))

	assert.Equal(t, http.StatusOK, doRequest(engine, nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(engine, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(engine, nil).Code)
}

func TestAdminKeyChecksSharedSecret(t *testing.T) {
	engine := pingEngine(AdminKey("s3cret"))

	assert.Equal(t, http.StatusUnauthorized, doRequest(engine, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(engine, map[string]string{"x-admin-key": "wrong"}).Code)
	assert.Equal(t, http.StatusOK, doRequest(engine, map[string]string{"x-admin-key": "s3cret"}).Code)
}

func TestAdminKeyUnavailableWithoutConfiguredKey(t *testing.T) {
	engine := pingEngine(AdminKey(""))
	assert.Equal(t, http.StatusUnauthorized, doRequest(engine, map[string]string{"x-admin-key": ""}).Code)
}

func TestRecoveryConvertsPanicTo500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/ping", func(c *gin.Context) { panic("boom") })

	w := doRequest(r, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}
