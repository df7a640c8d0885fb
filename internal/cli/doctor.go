package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperz567/food-app-qa/internal/status"
)

func (c *CLI) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run system diagnostics",
		Long: `Run comprehensive system diagnostics.

Checks:
  - configuration and tag schema
  - access policy table
  - gateway connectivity and authentication
  - storage backend
  - configured store scanners

Doctor always exits 0; it reports problems, it does not fail on them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDoctor()
		},
	}
}

func (c *CLI) runDoctor() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report := status.Run(ctx, c.doctorChecks())

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"checks": report.Checks,
			"all_ok": report.OK(),
		})
	}

	c.println("Datatags System Diagnostics")
	c.println("===========================")
	c.println("")

	for _, check := range report.Checks {
		mark := "✗"
		if check.OK {
			mark = "✓"
		}
		c.printf("%s %s: %s\n", mark, check.Name, check.Detail)
		if !check.OK && check.Hint != "" {
			c.printf("  → %s\n", check.Hint)
		}
		c.debugf("  (%s in %s)\n", check.Name, check.Latency)
	}

	c.println("")
	if report.OK() {
		c.println("✓ All checks passed")
	} else {
		c.println("✗ Some checks failed - see above for details")
	}

	return nil
}

func (c *CLI) doctorChecks() []status.Check {
	checks := []status.Check{
		{
			Name: "Configuration",
			Hint: "run 'datatags init' or pass --config",
			Run: func(ctx context.Context) (string, error) {
				if c.cfg == nil {
					return "no configuration loaded", fmt.Errorf("config missing")
				}
				if len(c.cfg.Registry.SchemaPaths) == 0 {
					return "no tag schema paths configured", fmt.Errorf("registry.schemaPaths empty")
				}
				return fmt.Sprintf("endpoint %s, %d schema path(s)", c.cfg.Endpoint, len(c.cfg.Registry.SchemaPaths)), nil
			},
		},
		{
			Name: "Tag schema",
			Hint: "run 'datatags schema lint' for the full reason",
			Run: func(ctx context.Context) (string, error) {
				reg, err := c.loadRegistry()
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d field(s) across %d service(s)", reg.Len(), len(reg.Services())), nil
			},
		},
		{
			Name: "Access matrix",
			Hint: "check access.modelPath and access.policyPath",
			Run: func(ctx context.Context) (string, error) {
				matrix, err := c.loadMatrix()
				if err != nil {
					return "", err
				}
				rows, err := matrix.Rows()
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d policy row(s)", len(rows)), nil
			},
		},
		{
			Name: "Gateway connectivity",
			Hint: "start the gateway or fix the endpoint",
			Run:  c.checkGatewayReachable,
		},
		{
			Name: "Authentication",
			Hint: "set auth.token in the config or pass --token",
			Run: func(ctx context.Context) (string, error) {
				if c.getToken() == "" {
					return "no token configured", fmt.Errorf("token missing")
				}
				return fmt.Sprintf("token present (source: %s)", c.getTokenSource()), nil
			},
		},
		{
			Name: "Storage",
			Hint: "set storage.backend to postgres, sqlite, or memory",
			Run:  c.checkStorage,
		},
	}

	return append(checks, c.scannerChecks()...)
}

func (c *CLI) checkGatewayReachable(ctx context.Context) (string, error) {
	if c.cfg == nil || c.cfg.Endpoint == "" {
		return "no endpoint configured", fmt.Errorf("endpoint missing")
	}

	host := strings.TrimPrefix(c.cfg.Endpoint, "http://")
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimSuffix(host, "/")
	if !strings.Contains(host, ":") {
		if strings.HasPrefix(c.cfg.Endpoint, "https://") {
			host += ":443"
		} else {
			host += ":80"
		}
	}

	conn, err := net.DialTimeout("tcp", host, 2*time.Second)
	if err != nil {
		return fmt.Sprintf("cannot reach %s", c.cfg.Endpoint), err
	}
	conn.Close()
	return fmt.Sprintf("connected to %s", c.cfg.Endpoint), nil
}

func (c *CLI) checkStorage(ctx context.Context) (string, error) {
	switch c.cfg.Storage.Backend {
	case "memory":
		return "memory backend", nil

	case "sqlite":
		path := c.cfg.Storage.SQLite.Path
		if path == ":memory:" {
			return "sqlite in-memory", nil
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Sprintf("sqlite %s (created on first run)", path), nil
		}
		return fmt.Sprintf("sqlite %s", path), nil

	case "postgres":
		addr := fmt.Sprintf("%s:%d", c.cfg.Storage.Postgres.Host, c.cfg.Storage.Postgres.Port)
		conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err != nil {
			return fmt.Sprintf("cannot reach postgres at %s", addr), err
		}
		conn.Close()
		return fmt.Sprintf("postgres at %s", addr), nil

	default:
		return fmt.Sprintf("unknown backend %q", c.cfg.Storage.Backend), fmt.Errorf("unknown storage backend")
	}
}

// scannerChecks probes each enabled store scanner. Disabled scanners are
// skipped; a config with none enabled reports a single passing check.
func (c *CLI) scannerChecks() []status.Check {
	var checks []status.Check

	if c.cfg.Scanners.Postgres.Enabled {
		sc := c.cfg.Scanners.Postgres
		checks = append(checks, status.Check{
			Name: "Scanner (postgres)",
			Hint: "check the scanners.postgres block",
			Run: func(ctx context.Context) (string, error) {
				addr := fmt.Sprintf("%s:%d", sc.Host, sc.Port)
				conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
				if err != nil {
					return fmt.Sprintf("cannot reach %s", addr), err
				}
				conn.Close()
				return fmt.Sprintf("%s for %s", addr, sc.Service), nil
			},
		})
	}

	if c.cfg.Scanners.DuckDB.Enabled {
		sc := c.cfg.Scanners.DuckDB
		checks = append(checks, status.Check{
			Name: "Scanner (duckdb)",
			Hint: "check the scanners.duckdb block",
			Run: func(ctx context.Context) (string, error) {
				if sc.Database == ":memory:" {
					return "in-memory database", nil
				}
				if _, err := os.Stat(sc.Database); err != nil {
					return fmt.Sprintf("database file %s missing", sc.Database), err
				}
				return fmt.Sprintf("%s for %s", sc.Database, sc.Service), nil
			},
		})
	}

	if c.cfg.Scanners.Snowflake.Enabled {
		sc := c.cfg.Scanners.Snowflake
		checks = append(checks, status.Check{
			Name: "Scanner (snowflake)",
			Hint: "check the scanners.snowflake DSN",
			Run: func(ctx context.Context) (string, error) {
				if sc.DSN == "" {
					return "no DSN configured", fmt.Errorf("dsn missing")
				}
				return fmt.Sprintf("configured for %s", sc.Service), nil
			},
		})
	}

	if c.cfg.Scanners.Trino.Enabled {
		sc := c.cfg.Scanners.Trino
		checks = append(checks, status.Check{
			Name: "Scanner (trino)",
			Hint: "check the scanners.trino DSN",
			Run: func(ctx context.Context) (string, error) {
				if sc.DSN == "" {
					return "no DSN configured", fmt.Errorf("dsn missing")
				}
				return fmt.Sprintf("configured for %s", sc.Service), nil
			},
		})
	}

	if c.cfg.Scanners.BigQuery.Enabled {
		sc := c.cfg.Scanners.BigQuery
		checks = append(checks, status.Check{
			Name: "Scanner (bigquery)",
			Hint: "check the scanners.bigquery block",
			Run: func(ctx context.Context) (string, error) {
				if sc.Project == "" || sc.Dataset == "" {
					return "project or dataset missing", fmt.Errorf("incomplete config")
				}
				return fmt.Sprintf("%s.%s for %s", sc.Project, sc.Dataset, sc.Service), nil
			},
		})
	}

	if len(checks) == 0 {
		checks = append(checks, status.Check{
			Name: "Scanners",
			Run: func(ctx context.Context) (string, error) {
				return "none configured", nil
			},
		})
	}

	return checks
}
