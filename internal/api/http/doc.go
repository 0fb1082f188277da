// Package http provides the REST side of the devbox viewer API.
//
// Endpoints:
//   - Health: / and /health
//   - Environment: /api/state
//   - Editor: GET and PUT /api/editor
//   - Preview: /api/preview
//   - Files: /api/files/*path (read-back from the sandbox)
//   - Viewer logs: POST /api/logs
//
// Example Usage:
//
//	handlers := http.NewHandlers(http.Deps{Env: env, Buffer: buf, ...})
//	handlers.Register(router)
package http
