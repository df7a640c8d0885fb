// Package cli provides the command-line interface for datatags.
// Commands run against the local tag schema checkout by default; audit
// history and shared validation runs go through the gateway client.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harperz567/food-app-qa/internal/access"
	"github.com/harperz567/food-app-qa/internal/config"
	cerrors "github.com/harperz567/food-app-qa/internal/errors"
	"github.com/harperz567/food-app-qa/internal/registry"
)

// Exit codes. Violations are data, not errors: a run that finds them
// still completes, and the exit code is how CI learns about it.
const (
	ExitOK         = 0
	ExitViolations = 1
	ExitUsage      = 2
	ExitConfig     = 3
	ExitRuntime    = 4
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// CLI holds the command-line interface state.
type CLI struct {
	rootCmd  *cobra.Command
	cfg      *config.Config
	exitCode int

	// Global flags
	configPath string
	endpoint   string
	token      string
	jsonOutput bool
	quiet      bool
	debug      bool
}

// New creates a new CLI instance.
func New() *CLI {
	cli := &CLI{exitCode: ExitOK}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

// Execute runs the CLI and returns the process exit code.
func (c *CLI) Execute() int {
	if err := c.rootCmd.Execute(); err != nil {
		c.errorf("Error: %v\n", err)
		if c.cfg == nil {
			// Failed before configuration finished loading.
			return ExitConfig
		}
		return exitCodeFor(err)
	}
	return c.exitCode
}

// exitCodeFor maps a command error onto the exit code contract.
// Schema problems are configuration: the tag schema is the one file
// this tool is configured by.
func exitCodeFor(err error) int {
	switch err.(type) {
	case *cerrors.ErrSchemaLoadFailed, *cerrors.ErrDuplicateField, *cerrors.ErrInvalidTag:
		return ExitConfig
	}

	tagErr := cerrors.FromError(err)
	if tagErr == nil {
		// Flag parsing, unknown commands, unreadable input files.
		return ExitUsage
	}
	switch tagErr.Code {
	case cerrors.CodeValidation, cerrors.CodeAuth:
		return ExitUsage
	case cerrors.CodeStore, cerrors.CodeInternal:
		return ExitRuntime
	}
	return ExitRuntime
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datatags",
		Short: "datatags - PII tag registry and propagation validator",
		Long: `datatags keeps sensitivity tags attached to data as it moves between
services.

It provides:
  • A field-level tag registry loaded from YAML schema files
  • Propagation validation across service-to-service transitions
  • A role × endpoint access matrix with ownership scopes
  • SQL inspection and live store coverage audits

Exit codes: 0 clean, 1 violations found, 2 usage error, 3 configuration
error, 4 runtime failure.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ~/.datatags/config.yaml)")
	cmd.PersistentFlags().StringVar(&c.endpoint, "endpoint", "", "gateway endpoint")
	cmd.PersistentFlags().StringVar(&c.token, "token", "", "API token (overrides config)")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "machine-readable JSON output")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "verbose debug logs")

	// Add command groups
	cmd.AddCommand(c.newInitCmd())
	cmd.AddCommand(c.newSchemaCmd())
	cmd.AddCommand(c.newFieldCmd())
	cmd.AddCommand(c.newValidateCmd())
	cmd.AddCommand(c.newAccessCmd())
	cmd.AddCommand(c.newInspectCmd())
	cmd.AddCommand(c.newScanCmd())
	cmd.AddCommand(c.newAuditCmd())
	cmd.AddCommand(c.newDoctorCmd())
	cmd.AddCommand(c.newVersionCmd())

	return cmd
}

func (c *CLI) initConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	// Override with flags
	if c.endpoint != "" {
		cfg.Endpoint = c.endpoint
	}
	if c.token != "" {
		cfg.Auth.Token = c.token
	}

	c.cfg = cfg
	return nil
}

// loadRegistry loads the tag schema files named in the configuration.
// Any malformed entry fails the whole load: commands never run against
// a partial registry.
func (c *CLI) loadRegistry() (*registry.Registry, error) {
	c.debugf("Loading tag schema: %v\n", c.cfg.Registry.SchemaPaths)
	return registry.LoadAll(c.cfg.Registry.SchemaPaths)
}

// loadMatrix loads the access matrix, preferring configured override
// files over the embedded default policy.
func (c *CLI) loadMatrix() (*access.Matrix, error) {
	if c.cfg.Access.ModelPath != "" {
		c.debugf("Loading access matrix from %s\n", c.cfg.Access.PolicyPath)
		return access.NewMatrixFromFiles(c.cfg.Access.ModelPath, c.cfg.Access.PolicyPath)
	}
	return access.NewMatrix()
}

// Helper functions for output

func (c *CLI) printf(format string, args ...interface{}) {
	if !c.quiet {
		fmt.Printf(format, args...)
	}
}

func (c *CLI) println(args ...interface{}) {
	if !c.quiet {
		fmt.Println(args...)
	}
}

func (c *CLI) errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

func (c *CLI) debugf(format string, args ...interface{}) {
	if c.debug {
		fmt.Printf("[DEBUG] "+format, args...)
	}
}

func (c *CLI) outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *CLI) getToken() string {
	// Priority: flag > config (which merges DATATAGS_AUTH_TOKEN)
	if c.token != "" {
		return c.token
	}
	if c.cfg != nil {
		return c.cfg.Auth.Token
	}
	return ""
}

func (c *CLI) getTokenSource() string {
	if c.token != "" {
		return "command-line flag"
	}
	return "config file or DATATAGS_AUTH_TOKEN"
}

// newGatewayClient creates a new gateway client with current config.
func (c *CLI) newGatewayClient() *GatewayClient {
	return NewGatewayClient(c.cfg.Endpoint, c.getToken())
}
