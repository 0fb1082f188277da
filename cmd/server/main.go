package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (can be set at build time)
var version = "0.1.0"

// rootCmd serves the environment when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "devbox",
	Short: "Serve a sandboxed development environment to the browser",
	Long: `devbox mounts a project into a private workspace, installs its
dependencies, starts the dev server and an interactive shell, and serves
the terminal, the editor, and the preview URL to browser viewers.

Usage:
  devbox serve              Start the environment and the HTTP server
  devbox template <dir>     Print a directory as a YAML project template`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	addServeFlags(rootCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(templateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
