package cli

import (
	"github.com/spf13/cobra"

	"github.com/harperz567/food-app-qa/internal/config"
)

func (c *CLI) newInitCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example configuration file",
		Long: `Write an example config.yaml into the target directory.

The generated file documents every section: gateway endpoint, tag
schema paths, storage backend, access matrix override, and store
scanners. Existing files are never overwritten.

Example:
  datatags init
  datatags init -o ./deploy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(outputDir)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "directory to write config.yaml into")

	return cmd
}

func (c *CLI) runInit(dir string) error {
	path, err := config.WriteExample(dir)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"created": path,
		})
	}

	c.printf("✓ Configuration created: %s\n", path)
	c.println("")
	c.println("Next steps:")
	c.println("  1. Run 'datatags schema init' to create a starter tag schema")
	c.println("  2. Point registry.schemaPaths at your schema file")
	c.println("  3. Run 'datatags doctor' to verify the setup")

	return nil
}
