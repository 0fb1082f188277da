package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Sandbox   SandboxConfig
	Project   ProjectConfig
	Commands  CommandConfig
	Terminal  TerminalConfig
	Editor    EditorConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string   `envconfig:"PORT" default:"8000"`
	Host        string   `envconfig:"HOST" default:"0.0.0.0"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Format      string `envconfig:"LOG_FORMAT" default:"auto"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	// Global shares one budget between all clients instead of one per IP.
	Global bool `envconfig:"RATE_LIMIT_GLOBAL" default:"false"`
}

// SandboxConfig holds the local runtime settings.
type SandboxConfig struct {
	WorkspaceDir  string        `envconfig:"WORKSPACE_DIR"`
	KeepWorkspace bool          `envconfig:"KEEP_WORKSPACE" default:"false"`
	ReadyPorts    []int         `envconfig:"READY_PORTS" default:"3000"`
	ProbeInterval time.Duration `envconfig:"READY_PROBE_INTERVAL" default:"500ms"`
	URLTemplate   string        `envconfig:"PREVIEW_URL_TEMPLATE" default:"http://localhost:%d"`
}

// ProjectConfig selects the mounted project.
type ProjectConfig struct {
	TemplatePath string `envconfig:"TEMPLATE_PATH"`
	EditablePath string `envconfig:"EDITABLE_PATH" default:"pages/index.tsx"`
}

// CommandConfig holds the commands run at startup.
type CommandConfig struct {
	Install      string        `envconfig:"INSTALL_CMD" default:"npm install"`
	Dev          string        `envconfig:"DEV_CMD" default:"npm run dev"`
	Shell        string        `envconfig:"SHELL_CMD" default:"/bin/sh"`
	DrainTimeout time.Duration `envconfig:"INSTALL_DRAIN_TIMEOUT" default:"2s"`
}

// TerminalConfig sizes the terminal before any viewer reports a viewport.
type TerminalConfig struct {
	Cols            int `envconfig:"TERM_COLS" default:"80"`
	Rows            int `envconfig:"TERM_ROWS" default:"24"`
	ScrollbackBytes int `envconfig:"TERM_SCROLLBACK_BYTES" default:"65536"`
}

// EditorConfig holds edit sync settings.
type EditorConfig struct {
	Debounce time.Duration `envconfig:"EDITOR_DEBOUNCE" default:"0s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			CORSOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Format:      "auto",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Sandbox: SandboxConfig{
			ReadyPorts:    []int{3000},
			ProbeInterval: 500 * time.Millisecond,
			URLTemplate:   "http://localhost:%d",
		},
		Project: ProjectConfig{
			EditablePath: "pages/index.tsx",
		},
		Commands: CommandConfig{
			Install:      "npm install",
			Dev:          "npm run dev",
			Shell:        "/bin/sh",
			DrainTimeout: 2 * time.Second,
		},
		Terminal: TerminalConfig{
			Cols:            80,
			Rows:            24,
			ScrollbackBytes: 64 * 1024,
		},
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	for _, p := range c.Sandbox.ReadyPorts {
		if p <= 0 || p > 65535 {
			errs = append(errs, fmt.Errorf("READY_PORTS: %d out of range", p))
		}
	}
	if strings.Count(c.Sandbox.URLTemplate, "%d") != 1 {
		errs = append(errs, errors.New("PREVIEW_URL_TEMPLATE: needs exactly one %d"))
	}
	if c.Sandbox.ProbeInterval <= 0 {
		errs = append(errs, errors.New("READY_PROBE_INTERVAL: must be positive"))
	}
	if c.Terminal.Cols <= 0 || c.Terminal.Rows <= 0 {
		errs = append(errs, errors.New("TERM_COLS/TERM_ROWS: must be positive"))
	}
	if c.Terminal.ScrollbackBytes < 0 {
		errs = append(errs, errors.New("TERM_SCROLLBACK_BYTES: must not be negative"))
	}
	if c.Editor.Debounce < 0 {
		errs = append(errs, errors.New("EDITOR_DEBOUNCE: must not be negative"))
	}
	for name, cmd := range map[string]string{
		"INSTALL_CMD": c.Commands.Install,
		"DEV_CMD":     c.Commands.Dev,
		"SHELL_CMD":   c.Commands.Shell,
	} {
		if strings.TrimSpace(cmd) == "" {
			errs = append(errs, fmt.Errorf("%s: must not be empty", name))
		}
	}
	switch c.Logging.Format {
	case "auto", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT: %q is not auto, json or console", c.Logging.Format))
	}
	if strings.TrimSpace(c.Project.EditablePath) == "" {
		errs = append(errs, errors.New("EDITABLE_PATH: must not be empty"))
	}
	return errors.Join(errs...)
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
