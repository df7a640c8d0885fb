package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (c *CLI) newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit log queries",
		Long: `Query the gateway's audit log of validation runs.

The audit log is append-only and holds counts and rankings, never raw
field values. These commands always go through the gateway; there is
no local audit state.`,
	}

	cmd.AddCommand(c.newAuditSummaryCmd())

	return cmd
}

func (c *CLI) newAuditSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Aggregated validation run statistics",
		Long: `Show aggregated statistics over persisted validation runs: pass and
fail counts, the most frequent violation types, the most validated
services, and the most recent runs.

Example:
  datatags audit summary
  datatags audit summary --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAuditSummary()
		},
	}

	return cmd
}

func (c *CLI) runAuditSummary() error {
	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	summary, err := client.GetAuditSummary(ctx)
	if err != nil {
		c.errorf("Failed to fetch audit summary: %v\n", err)
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(summary)
	}

	total := summary.PassedCount + summary.FailedCount
	c.printf("Validation runs: %d (%d passed, %d failed)\n", total, summary.PassedCount, summary.FailedCount)

	if len(summary.TopViolationTypes) > 0 {
		c.println("\nTop violation types:")
		for _, stat := range summary.TopViolationTypes {
			c.printf("  %-24s %d\n", stat.Type, stat.Count)
		}
	}

	if len(summary.TopServices) > 0 {
		c.println("\nMost validated services:")
		for _, stat := range summary.TopServices {
			c.printf("  %-24s %d\n", stat.Service, stat.Count)
		}
	}

	if len(summary.RecentRuns) > 0 {
		c.println("\nRecent runs:")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tACTOR\tSERVICES\tPASSED\tVIOLATIONS\tWHEN")
		for _, run := range summary.RecentRuns {
			passed := "✗"
			if run.Passed {
				passed = "✓"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				shortRunID(run.RunID), run.Actor, strings.Join(run.Services, ","),
				passed, run.ViolationCount, run.CreatedAt.Format(time.RFC3339))
		}
		w.Flush()
	}

	return nil
}

// shortRunID truncates a run id for table output. Full ids stay available
// through --json.
func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
