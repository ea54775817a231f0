package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"mediaserver/logger"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAPIKey(t *testing.T) {
	r := newEngine(APIKey("secret"))

	tests := []struct {
		name   string
		target string
		header string
		code   int
	}{
		{"missing", "/ping", "", http.StatusUnauthorized},
		{"wrong header", "/ping", "nope", http.StatusUnauthorized},
		{"header", "/ping", "secret", http.StatusOK},
		{"camel query", "/ping?apiKey=secret", "", http.StatusOK},
		{"snake query", "/ping?api_key=secret", "", http.StatusOK},
		{"wrong query", "/ping?apiKey=nope", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set(APIKeyHeader, tt.header)
			}
			assert.Equal(t, tt.code, serve(r, req).Code)
		})
	}
}

func TestAPIKeyDisabledWhenEmpty(t *testing.T) {
	r := newEngine(APIKey(""))
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestID(), Logging(logger.NewNop()))

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc")
	assert.Equal(t, "abc", serve(r, req).Header().Get(RequestIDHeader))
}

func TestRecovery(t *testing.T) {
	r := newEngine(Recovery(logger.NewNop()))
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestSecurityHeaders(t *testing.T) {
	rec := serve(newEngine(Security()), httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS([]string{"http://dash.test"}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://dash.test")
	assert.Equal(t, "http://dash.test", serve(r, req).Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://evil.test")
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	open := newEngine(CORS([]string{"*"}))
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://any.test")
	assert.Equal(t, "*", serve(open, req).Header().Get("Access-Control-Allow-Origin"))
}
