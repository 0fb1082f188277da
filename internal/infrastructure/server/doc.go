// Package server assembles devbox: the sandbox runtime, the orchestrator
// with its terminal and editor, and the HTTP and WebSocket surfaces.
//
// Server Lifecycle:
//  1. Load configuration from environment and flags
//  2. Load the project (built-in template, YAML file, or directory)
//  3. Wire the orchestrator, metrics, and handlers
//  4. Serve HTTP while the environment boots
//  5. Graceful shutdown when the context ends
//
// Example Usage:
//
//	srv, err := server.NewServer(config.LoadOrDefault(), logger)
//	if err != nil {
//	    return err
//	}
//	defer srv.Close()
//	return srv.Run(ctx)
package server
