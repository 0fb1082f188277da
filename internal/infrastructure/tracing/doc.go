// Package tracing tags HTTP requests with IDs and carries them into logs.
//
// Each request gets an X-Request-ID (the client's, when it sends a sane
// one) that is echoed back, stored in the request context, and attached
// to log lines through Logger.
//
// Example Usage:
//
//	router.Use(tracing.HTTPMiddleware(logger))
//
//	func handler(c *gin.Context) {
//	    tracing.Logger(c.Request.Context(), logger).Info("handled")
//	}
package tracing
