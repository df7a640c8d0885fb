package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperz567/food-app-qa/internal/classification"
	cerrors "github.com/harperz567/food-app-qa/internal/errors"
	"github.com/harperz567/food-app-qa/internal/registry"
	"github.com/harperz567/food-app-qa/internal/scanner"
	"github.com/harperz567/food-app-qa/internal/scanner/bigquery"
	"github.com/harperz567/food-app-qa/internal/scanner/duckdb"
	"github.com/harperz567/food-app-qa/internal/scanner/postgres"
	"github.com/harperz567/food-app-qa/internal/scanner/snowflake"
	"github.com/harperz567/food-app-qa/internal/scanner/trino"
)

// scanTimeout bounds a single-store scan; scanSweepTimeout bounds the
// all-stores sweep.
const (
	scanTimeout      = 60 * time.Second
	scanSweepTimeout = 5 * time.Minute
)

func (c *CLI) newScanCmd() *cobra.Command {
	var (
		store   string
		service string
		schema  string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Audit live stores against the tag schema",
		Long: `Scan the live schema of one or more backing stores and diff them
against the tag registry.

The scan reports three buckets:
  - covered:      live columns with a matching registered field
  - unregistered: live columns nobody has classified
  - missing:      registered fields no live column satisfies

Stores are configured under scanners: in the config file. Supported
kinds: postgres, duckdb, snowflake, trino, bigquery. Without --store,
every store marked enabled is audited in one sweep; --store scans that
store whether or not it is marked enabled.

A scan with unregistered or missing findings exits with code 1.

Example:
  datatags scan
  datatags scan --store postgres --service userinfoservice
  datatags scan --store duckdb --service orderservice --schema main`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if store == "" {
				if service != "" || schema != "" {
					return fmt.Errorf("--service and --schema require --store")
				}
				return c.runScanSweep()
			}
			return c.runScan(store, service, schema)
		},
	}

	cmd.Flags().StringVar(&store, "store", "", "store kind to scan")
	cmd.Flags().StringVar(&service, "service", "", "service to audit (defaults to the configured one)")
	cmd.Flags().StringVar(&schema, "schema", "", "override the configured schema")

	return cmd
}

// runScan audits one store against the registry.
func (c *CLI) runScan(store, service, schema string) error {
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	scn, err := c.buildScanner(ctx, store, service, schema)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}
	defer scn.Close()

	c.debugf("Pinging %s store for %s\n", scn.Name(), scn.Service())
	result := scanner.ExecuteWithRetry(ctx, scanner.DefaultRetryConfig(), func() error {
		return scn.Ping(ctx)
	})
	if !result.Success {
		c.errorf("Store unreachable: %s\n", result.String())
		return result.LastError
	}
	if result.Attempts > 1 {
		c.debugf("Ping %s\n", result.String())
	}

	reg, err := c.loadRegistry()
	if err != nil {
		return err
	}

	report, err := c.auditStore(ctx, scn, reg)
	if err != nil {
		c.errorf("Coverage audit failed: %v\n", err)
		return err
	}

	if c.jsonOutput {
		if err := c.outputJSON(report); err != nil {
			return err
		}
		if !report.Passed() {
			c.exitCode = ExitViolations
		}
		return nil
	}

	if report.Passed() {
		c.printf("✓ %s\n", report.Summary())
		if breakdown := levelBreakdown(report.LevelCounts()); breakdown != "" {
			c.printf("  covered by level: %s\n", breakdown)
		}
		return nil
	}

	c.printf("✗ %s\n", report.Summary())
	c.printCoverageFindings(report)

	c.exitCode = ExitViolations
	return nil
}

// levelBreakdown renders covered-column counts per level, most sensitive
// first, e.g. "1 CRITICAL, 2 SENSITIVE".
func levelBreakdown(counts map[classification.Level]int) string {
	levels := classification.AllLevels()
	parts := make([]string, 0, len(counts))
	for i := len(levels) - 1; i >= 0; i-- {
		if n := counts[levels[i]]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, levels[i]))
		}
	}
	return strings.Join(parts, ", ")
}

// sweepResult is one store's outcome in an all-stores sweep. Error and
// Report are mutually exclusive.
type sweepResult struct {
	Service string                  `json:"service"`
	Store   string                  `json:"store"`
	Error   string                  `json:"error,omitempty"`
	Report  *scanner.CoverageReport `json:"report,omitempty"`
}

// runScanSweep audits every enabled store in one pass. An unreachable
// store does not stop the sweep; it is reported and the sweep exits with
// a runtime failure after the remaining stores are audited.
func (c *CLI) runScanSweep() error {
	ctx, cancel := context.WithTimeout(context.Background(), scanSweepTimeout)
	defer cancel()

	kinds := c.enabledStores()
	if len(kinds) == 0 {
		return fmt.Errorf("no scanners enabled in the config; enable one under scanners: or pass --store")
	}

	reg, err := c.loadRegistry()
	if err != nil {
		return err
	}

	stores := scanner.NewScannerRegistry()
	defer stores.CloseAll()

	for _, kind := range kinds {
		scn, err := c.buildScanner(ctx, kind, "", "")
		if err != nil {
			c.errorf("Error: %s scanner: %v\n", kind, err)
			return err
		}
		stores.Register(scn)
	}

	c.debugf("Sweeping %d store(s): %v\n", len(kinds), stores.Available())
	pings := stores.PingAll(ctx)

	var (
		results  []sweepResult
		findings bool
		failure  error
	)

	for _, svc := range stores.Available() {
		scn, _ := stores.Get(svc)

		if err := pings[svc]; err != nil {
			failure = cerrors.NewScannerFailed(scn.Name(), "store unreachable", err)
			results = append(results, sweepResult{Service: svc, Store: scn.Name(), Error: err.Error()})
			if !c.jsonOutput {
				c.printf("✗ %s scan of %s: store unreachable: %v\n", scn.Name(), svc, err)
			}
			continue
		}

		report, err := c.auditStore(ctx, scn, reg)
		if err != nil {
			failure = err
			results = append(results, sweepResult{Service: svc, Store: scn.Name(), Error: err.Error()})
			if !c.jsonOutput {
				c.printf("✗ %s scan of %s: %v\n", scn.Name(), svc, err)
			}
			continue
		}

		results = append(results, sweepResult{Service: svc, Store: scn.Name(), Report: report})
		if !report.Passed() {
			findings = true
		}
		if !c.jsonOutput {
			if report.Passed() {
				c.printf("✓ %s\n", report.Summary())
			} else {
				c.printf("✗ %s\n", report.Summary())
				c.printCoverageFindings(report)
				c.println("")
			}
		}
	}

	if c.jsonOutput {
		if err := c.outputJSON(results); err != nil {
			return err
		}
	}

	if failure != nil {
		return failure
	}
	if findings {
		c.exitCode = ExitViolations
	}
	return nil
}

// auditStore lists a store's live columns and diffs them against the
// registry.
func (c *CLI) auditStore(ctx context.Context, scn scanner.Scanner, reg *registry.Registry) (*scanner.CoverageReport, error) {
	columns, err := scn.ListColumns(ctx)
	if err != nil {
		return nil, err
	}
	return scanner.AuditCoverage(reg, scn.Service(), scn.Name(), columns)
}

// printCoverageFindings prints the unregistered and missing buckets of a
// failing coverage report.
func (c *CLI) printCoverageFindings(report *scanner.CoverageReport) {
	if len(report.Unregistered) > 0 {
		c.println("\nUnregistered columns (live data nobody classified):")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TABLE\tCOLUMN\tTYPE")
		for _, col := range report.Unregistered {
			fmt.Fprintf(w, "%s\t%s\t%s\n", col.Table, col.Name, col.DataType)
		}
		w.Flush()
	}

	if len(report.Missing) > 0 {
		c.println("\nMissing fields (registered but not found in the store):")
		for _, path := range report.Missing {
			c.printf("  %s\n", path)
		}
	}
}

// enabledStores returns the store kinds marked enabled in the config, in
// a stable order.
func (c *CLI) enabledStores() []string {
	sc := c.cfg.Scanners
	var kinds []string
	if sc.Postgres.Enabled {
		kinds = append(kinds, "postgres")
	}
	if sc.DuckDB.Enabled {
		kinds = append(kinds, "duckdb")
	}
	if sc.Snowflake.Enabled {
		kinds = append(kinds, "snowflake")
	}
	if sc.Trino.Enabled {
		kinds = append(kinds, "trino")
	}
	if sc.BigQuery.Enabled {
		kinds = append(kinds, "bigquery")
	}
	return kinds
}

// buildScanner constructs the scanner for one configured store kind.
// Flag values override the configured service and schema.
func (c *CLI) buildScanner(ctx context.Context, store, service, schema string) (scanner.Scanner, error) {
	scanners := c.cfg.Scanners

	switch store {
	case "postgres":
		sc := scanners.Postgres
		cfg := postgres.DefaultConfig()
		cfg.Service = pick(service, sc.Service)
		cfg.Host = sc.Host
		cfg.Port = sc.Port
		cfg.Database = sc.Name
		cfg.User = sc.User
		cfg.Password = sc.Password
		cfg.Schema = pick(schema, sc.Schema, cfg.Schema)
		cfg.SSLMode = pick(sc.SSLMode, cfg.SSLMode)
		return postgres.NewScanner(ctx, cfg)

	case "duckdb":
		sc := scanners.DuckDB
		return duckdb.NewScanner(duckdb.Config{
			Service:      pick(service, sc.Service),
			DatabasePath: sc.Database,
			Schema:       schema,
		}), nil

	case "snowflake":
		sc := scanners.Snowflake
		return snowflake.NewScanner(ctx, snowflake.Config{
			Service:  pick(service, sc.Service),
			DSN:      sc.DSN,
			Database: sc.Database,
			Schema:   pick(schema, sc.Schema),
		})

	case "trino":
		sc := scanners.Trino
		return trino.NewScanner(trino.Config{
			Service: pick(service, sc.Service),
			DSN:     sc.DSN,
			Catalog: sc.Catalog,
			Schema:  pick(schema, sc.Schema),
		}), nil

	case "bigquery":
		sc := scanners.BigQuery
		return bigquery.NewScanner(ctx, bigquery.Config{
			Service:   pick(service, sc.Service),
			ProjectID: sc.Project,
			Dataset:   pick(schema, sc.Dataset),
		})

	default:
		return nil, fmt.Errorf("unknown store kind %q (postgres, duckdb, snowflake, trino, bigquery)", store)
	}
}

// pick returns the first non-empty value.
func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
