package tracing

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPMiddleware tags every request with an ID, echoes it in the response,
// and logs the request once it completes. Server errors log at warn level,
// everything else at debug.
func HTTPMiddleware(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		rid := incoming(c.GetHeader(HeaderRequestID))
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), rid))
		c.Header(HeaderRequestID, rid.String())

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", rid.String()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if c.Writer.Status() >= 500 {
			logger.Warn("Request failed", fields...)
			return
		}
		logger.Debug("Request served", fields...)
	}
}
