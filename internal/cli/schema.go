package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harperz567/food-app-qa/internal/registry"
)

func (c *CLI) newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Tag schema management",
		Long:  `Load, validate, and inspect tag schema files - the source of truth for field classifications.`,
	}

	cmd.AddCommand(c.newSchemaLintCmd())
	cmd.AddCommand(c.newSchemaShowCmd())
	cmd.AddCommand(c.newSchemaInitCmd())

	return cmd
}

func (c *CLI) newSchemaLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint [file.yaml...]",
		Short: "Validate tag schema files",
		Long: `Load and validate tag schema files without running anything else.

Loading is all-or-nothing: one malformed entry rejects the whole file.
Checks:
  - every level is a member of the ordered sensitivity set
  - every retention policy is a member of the closed policy set
  - legacy piiLevel and level declarations agree
  - no field entry carries unknown keys
  - no (service, field path) is registered twice with conflicting tags

Without arguments the schema paths from the configuration are linted.
Exit code 0 means valid, 3 means the schema is broken.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSchemaLint(args)
		},
	}
}

func (c *CLI) runSchemaLint(paths []string) error {
	if len(paths) == 0 {
		paths = c.cfg.Registry.SchemaPaths
	}

	reg, err := registry.LoadAll(paths)
	if err != nil {
		if c.jsonOutput {
			return c.outputJSON(map[string]interface{}{
				"valid":  false,
				"files":  paths,
				"errors": []string{err.Error()},
			})
		}
		c.errorf("✗ Schema invalid\n")
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"valid":    true,
			"files":    paths,
			"services": len(reg.Services()),
			"fields":   reg.Len(),
		})
	}

	for _, path := range paths {
		c.printf("✓ %s: valid\n", path)
	}
	c.printf("  Services: %d\n", len(reg.Services()))
	c.printf("  Fields:   %d\n", reg.Len())

	return nil
}

func (c *CLI) newSchemaShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the loaded tag schema",
		Long: `Load the configured tag schema files and display every registered
field with its sensitivity level and retention policy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSchemaShow()
		},
	}
}

func (c *CLI) runSchemaShow() error {
	reg, err := c.loadRegistry()
	if err != nil {
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"services": reg.Services(),
			"fields":   reg.All(),
		})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tFIELD\tLEVEL\tRETENTION\tREQUIRED\tENCRYPT")
	for _, desc := range reg.All() {
		required := ""
		if desc.Required {
			required = "yes"
		}
		encrypt := ""
		if desc.Tag.Level.RequiresEncryption() {
			encrypt = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			desc.Service, desc.FieldPath, desc.Tag.Level, desc.Tag.Retention, required, encrypt)
	}
	w.Flush()

	c.printf("\n%d field(s) across %d service(s)\n", reg.Len(), len(reg.Services()))
	return nil
}

func (c *CLI) newSchemaInitCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate an example tag schema",
		Long: `Generate an example tag schema file for the food-app services.

This command does NOT modify system state - it only creates a template
file to edit and lint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSchemaInit(outputDir)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "output directory for the schema file")

	return cmd
}

func (c *CLI) runSchemaInit(outputDir string) error {
	schemaPath, err := registry.InitSchema(outputDir)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}

	absPath, _ := filepath.Abs(schemaPath)

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"status": "created",
			"path":   absPath,
		})
	}

	c.printf("✓ Tag schema created: %s\n", absPath)
	c.println("\nNext steps:")
	c.println("  1. Edit the schema to cover your services' fields")
	c.println("  2. Run 'datatags schema lint' to check it")
	c.println("  3. Point registry.schemaPaths at it in the config file")

	return nil
}
