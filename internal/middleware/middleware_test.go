package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handlers...)
	router.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func TestRequestID(t *testing.T) {
	router := newRouter(RequestID())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-123", w.Body.String())
}

func TestRequestLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetOutput(&bytes.Buffer{})
	router := newRouter(RequestID(), RequestLogger(logger, "/health"))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, http.StatusOK, entry.Data["status"])
	assert.Equal(t, "/ok", entry.Data["route"])
	assert.NotEmpty(t, entry.Data["request_id"])

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	hook.Reset()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, hook.Entries)
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"listed origin", []string{"http://localhost:3000"}, "http://localhost:3000", "http://localhost:3000"},
		{"unlisted origin", []string{"http://localhost:3000"}, "https://evil.example", ""},
		{"wildcard", []string{"*"}, "https://any.example", "*"},
		{"no origin header", []string{"*"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(CORS(tt.allowed))
			req := httptest.NewRequest(http.MethodGet, "/ok", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	router := newRouter(CORS([]string{"http://localhost:3000"}))

	req := httptest.NewRequest(http.MethodOptions, "/ok", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), RequestIDHeader)
}
