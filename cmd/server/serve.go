package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbox/internal/infrastructure/config"
	"github.com/GriffinCanCode/devbox/internal/infrastructure/logging"
	"github.com/GriffinCanCode/devbox/internal/infrastructure/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the environment and the HTTP server",
	Long: `The serve command boots the sandbox, mounts the project, runs the
install command to completion, then starts the dev server and the shell.

Configuration comes from the environment (PORT, WORKSPACE_DIR,
TEMPLATE_PATH, INSTALL_CMD, ...); flags override it.`,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("port", "p", "", "HTTP port (overrides PORT)")
	cmd.Flags().String("host", "", "HTTP host (overrides HOST)")
	cmd.Flags().StringP("workspace", "w", "", "Sandbox workspace directory (overrides WORKSPACE_DIR)")
	cmd.Flags().StringP("template", "t", "", "Project template, a YAML file or a directory (overrides TEMPLATE_PATH)")
	cmd.Flags().Bool("keep-workspace", false, "Leave the workspace on disk after shutdown")
	cmd.Flags().Bool("dev", false, "Development logging (colored console, debug level)")
	cmd.Flags().String("log-level", "", "Log level (overrides LOG_LEVEL)")
	cmd.Flags().String("log-format", "", "Log format: auto, json or console (overrides LOG_FORMAT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	logCfg := logging.Config{
		Level:       cfg.Logging.Level,
		Format:      logging.Format(cfg.Logging.Format),
		Development: cfg.Logging.Development,
	}
	if cfg.Logging.Development && !cmd.Flags().Changed("log-level") {
		logCfg.Level = "" // development default
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Error("Failed to create server", zap.Error(err))
		logger.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := srv.Run(ctx)
	logger.Info("Shutting down gracefully")
	if err := srv.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
	return runErr
}

// applyFlags overrides environment configuration with explicitly set flags.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetString("port")
	}
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("workspace") {
		cfg.Sandbox.WorkspaceDir, _ = flags.GetString("workspace")
	}
	if flags.Changed("template") {
		cfg.Project.TemplatePath, _ = flags.GetString("template")
	}
	if flags.Changed("keep-workspace") {
		cfg.Sandbox.KeepWorkspace, _ = flags.GetBool("keep-workspace")
	}
	if flags.Changed("dev") {
		cfg.Logging.Development, _ = flags.GetBool("dev")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format, _ = flags.GetString("log-format")
	}
}
