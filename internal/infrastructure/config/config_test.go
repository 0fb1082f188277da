package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())

	// Sandbox config
	assert.Equal(t, []int{3000}, cfg.Sandbox.ReadyPorts)
	assert.Equal(t, 500*time.Millisecond, cfg.Sandbox.ProbeInterval)
	assert.Equal(t, "http://localhost:%d", cfg.Sandbox.URLTemplate)

	// Commands
	assert.Equal(t, "npm install", cfg.Commands.Install)
	assert.Equal(t, "npm run dev", cfg.Commands.Dev)
	assert.Equal(t, "/bin/sh", cfg.Commands.Shell)

	// Terminal and editor
	assert.Equal(t, 80, cfg.Terminal.Cols)
	assert.Equal(t, 24, cfg.Terminal.Rows)
	assert.Equal(t, "pages/index.tsx", cfg.Project.EditablePath)
	assert.Zero(t, cfg.Editor.Debounce)

	require.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                  "9000",
		"HOST":                  "127.0.0.1",
		"CORS_ORIGINS":          "http://a.test,http://b.test",
		"LOG_LEVEL":             "debug",
		"LOG_DEV":               "true",
		"LOG_FORMAT":            "json",
		"RATE_LIMIT_RPS":        "500",
		"RATE_LIMIT_BURST":      "1000",
		"RATE_LIMIT_ENABLED":    "false",
		"RATE_LIMIT_GLOBAL":     "true",
		"WORKSPACE_DIR":         "/tmp/devbox-work",
		"KEEP_WORKSPACE":        "true",
		"READY_PORTS":           "3000,5173",
		"READY_PROBE_INTERVAL":  "1s",
		"PREVIEW_URL_TEMPLATE":  "https://%d.preview.test",
		"TEMPLATE_PATH":         "/etc/devbox/template.yaml",
		"EDITABLE_PATH":         "src/App.tsx",
		"INSTALL_CMD":           "pnpm install",
		"DEV_CMD":               "pnpm dev",
		"SHELL_CMD":             "/bin/bash -l",
		"INSTALL_DRAIN_TIMEOUT": "5s",
		"TERM_COLS":             "132",
		"TERM_ROWS":             "43",
		"TERM_SCROLLBACK_BYTES": "1024",
		"EDITOR_DEBOUNCE":       "150ms",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.RateLimit.Global)

	assert.Equal(t, "/tmp/devbox-work", cfg.Sandbox.WorkspaceDir)
	assert.True(t, cfg.Sandbox.KeepWorkspace)
	assert.Equal(t, []int{3000, 5173}, cfg.Sandbox.ReadyPorts)
	assert.Equal(t, time.Second, cfg.Sandbox.ProbeInterval)
	assert.Equal(t, "https://%d.preview.test", cfg.Sandbox.URLTemplate)

	assert.Equal(t, "/etc/devbox/template.yaml", cfg.Project.TemplatePath)
	assert.Equal(t, "src/App.tsx", cfg.Project.EditablePath)

	assert.Equal(t, "pnpm install", cfg.Commands.Install)
	assert.Equal(t, "pnpm dev", cfg.Commands.Dev)
	assert.Equal(t, "/bin/bash -l", cfg.Commands.Shell)
	assert.Equal(t, 5*time.Second, cfg.Commands.DrainTimeout)

	assert.Equal(t, 132, cfg.Terminal.Cols)
	assert.Equal(t, 43, cfg.Terminal.Rows)
	assert.Equal(t, 1024, cfg.Terminal.ScrollbackBytes)
	assert.Equal(t, 150*time.Millisecond, cfg.Editor.Debounce)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "READY_PORTS", "70000"},
		{"template without verb", "PREVIEW_URL_TEMPLATE", "http://localhost"},
		{"zero columns", "TERM_COLS", "0"},
		{"empty shell", "SHELL_CMD", " "},
		{"negative debounce", "EDITOR_DEBOUNCE", "-1s"},
		{"not a number", "TERM_ROWS", "many"},
		{"unknown log format", "LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			// LoadOrDefault falls back rather than failing.
			assert.Equal(t, Default(), LoadOrDefault())
		})
	}
}

func TestLoggingConfig(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		dev       string
		wantLevel string
		wantDev   bool
	}{
		{name: "default values", wantLevel: "info"},
		{name: "debug level", level: "debug", wantLevel: "debug"},
		{name: "development mode", dev: "true", wantLevel: "info", wantDev: true},
		{name: "error level production", level: "error", dev: "false", wantLevel: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.level != "" {
				t.Setenv("LOG_LEVEL", tt.level)
			}
			if tt.dev != "" {
				t.Setenv("LOG_DEV", tt.dev)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantLevel, cfg.Logging.Level)
			assert.Equal(t, tt.wantDev, cfg.Logging.Development)
		})
	}
}
