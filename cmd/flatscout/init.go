package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flatscout/flatscout/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/flatscout.yaml
var configTemplate embed.FS

const configTemplatePath = "templates/flatscout.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new flatscout configuration file",
		Long: `Initialize creates a new .flatscout configuration file in the current directory.

The generated file includes:
- Default search mode, matching accuracy and websites
- Storage, message broker and HTTP API settings
- Commented examples for site overrides

Examples:
  # Create .flatscout in current directory
  flatscout init

  # Create config file at a specific path
  flatscout init -o myconfig.yaml

  # Force overwrite existing file
  flatscout init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(configTemplatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - Default search mode and matching accuracy")
	fmt.Fprintln(out, "  - Which websites are searched")
	fmt.Fprintln(out, "  - Per-site city ids and selectors")
	return nil
}
