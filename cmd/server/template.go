package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/devbox/internal/project"
)

// templateCmd represents the template command
var templateCmd = &cobra.Command{
	Use:   "template <dir>",
	Short: "Print a directory as a YAML project template",
	Long: `The template command reads the text files under a directory,
skipping node_modules, build output and binaries, and prints the tree in
the format TEMPLATE_PATH accepts.`,
	Args: cobra.ExactArgs(1),
	RunE: runTemplate,
}

func init() {
	templateCmd.Flags().StringSlice("ignore", nil, "Extra ignore globs, relative to the directory")
}

func runTemplate(cmd *cobra.Command, args []string) error {
	extra, _ := cmd.Flags().GetStringSlice("ignore")
	ignore := append(append([]string(nil), project.DefaultIgnore...), extra...)

	tree, err := project.LoadDir(cmd.Context(), args[0], ignore)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	data, err := project.Encode(tree)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
