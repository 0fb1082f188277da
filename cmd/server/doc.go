// Package main is the entry point for the devbox server.
//
// devbox runs one development environment per process: a sandbox
// workspace with the project mounted, its dependencies installed, a dev
// server and an interactive shell. Browser viewers connect over HTTP and a
// WebSocket to see the terminal, edit the tracked file, and follow the
// preview URL.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Serve the built-in Next.js template
//	./devbox serve --port 8000
//
//	# Serve a local project, keeping the workspace afterwards
//	./devbox serve --template ./my-app --workspace /tmp/devbox --keep-workspace
//
//	# Development mode (colored logs, debug level)
//	./devbox --dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
