package tracing

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/devbox/internal/shared/id"
)

func setupRouter(logger *zap.Logger, seen *id.RequestID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMiddleware(logger))
	r.GET("/ok", func(c *gin.Context) {
		*seen = RequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})
	r.GET("/boom", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	return r
}

func TestGeneratesRequestID(t *testing.T) {
	var seen id.RequestID
	r := setupRouter(zap.NewNop(), &seen)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	got := w.Header().Get(HeaderRequestID)
	assert.True(t, strings.HasPrefix(got, id.RequestPrefix+"_"))
	assert.True(t, id.IsValid(got))
	assert.Equal(t, got, seen.String())
}

func TestPropagatesClientRequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"printable", "client-123", true},
		{"spaces", "client 123", false},
		{"too long", strings.Repeat("a", maxRequestIDLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen id.RequestID
			r := setupRouter(zap.NewNop(), &seen)

			req := httptest.NewRequest(http.MethodGet, "/ok", nil)
			req.Header.Set(HeaderRequestID, tt.header)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if tt.keep {
				assert.Equal(t, tt.header, w.Header().Get(HeaderRequestID))
			} else {
				assert.NotEqual(t, tt.header, w.Header().Get(HeaderRequestID))
			}
			assert.Equal(t, w.Header().Get(HeaderRequestID), seen.String())
		})
	}
}

func TestServerErrorsAreLoggedAtWarn(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	var seen id.RequestID
	r := setupRouter(zap.New(core), &seen)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zap.DebugLevel, entries[0].Level)
		assert.Equal(t, zap.WarnLevel, entries[1].Level)
		assert.Equal(t, "/boom", entries[1].ContextMap()["path"])
	}
}

func TestLoggerAddsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := WithRequestID(t.Context(), "req_1")

	Logger(ctx, zap.New(core)).Info("hello")
	Logger(t.Context(), zap.New(core)).Info("bare")

	entries := logs.All()
	assert.Equal(t, "req_1", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}
