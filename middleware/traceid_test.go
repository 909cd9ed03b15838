package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTraceIDRouter() (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	var seen string
	eng := gin.New()
	eng.Use(TraceID())
	eng.GET("/", func(c *gin.Context) {
		seen = GetTraceID(c)
		c.Status(http.StatusOK)
	})
	return eng, &seen
}

func TestTraceID_Generated(t *testing.T) {
	r, seen := newTraceIDRouter()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.NotEmpty(t, *seen)
	_, err := uuid.Parse(*seen)
	assert.NoError(t, err)
	assert.Equal(t, *seen, w.Header().Get(TraceIDHeader))
}

func TestTraceID_HonorsValidHeader(t *testing.T) {
	r, seen := newTraceIDRouter()
	inbound := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceIDHeader, inbound)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, inbound, *seen)
}

func TestTraceID_ReplacesGarbageHeader(t *testing.T) {
	r, seen := newTraceIDRouter()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceIDHeader, "not-a-uuid\nwith-newline")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.NotEqual(t, "not-a-uuid\nwith-newline", *seen)
	_, err := uuid.Parse(*seen)
	assert.NoError(t, err)
}
