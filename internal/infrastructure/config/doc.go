// Package config provides 12-factor configuration management for devbox.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, CORS origins)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Sandbox: Workspace directory and readiness probing
//   - Project: Template source and the editable file
//   - Commands: Installer, dev server and shell command lines
//   - Terminal: Initial grid size and scrollback
//   - Editor: Edit write debouncing
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s\n", cfg.Addr())
//
// Environment Variables:
//   - PORT, HOST, CORS_ORIGINS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - WORKSPACE_DIR, KEEP_WORKSPACE, READY_PORTS, READY_PROBE_INTERVAL, PREVIEW_URL_TEMPLATE
//   - TEMPLATE_PATH, EDITABLE_PATH
//   - INSTALL_CMD, DEV_CMD, SHELL_CMD, INSTALL_DRAIN_TIMEOUT
//   - TERM_COLS, TERM_ROWS, TERM_SCROLLBACK_BYTES
//   - EDITOR_DEBOUNCE
package config
