/*
Package monitoring provides Prometheus metrics for devbox.

# Overview

Each Metrics value owns a private registry, so several can coexist in one
process (tests create one per server). It tracks HTTP traffic, the
orchestrator state, sandbox processes by role, bridged output volume,
server-ready events, editor writes and WebSocket viewers.

Metrics satisfies the orchestrator's Recorder interface and is handed to
it directly.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(monitoring.Handler(metrics)))
*/
package monitoring
