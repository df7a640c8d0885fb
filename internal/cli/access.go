package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperz567/food-app-qa/internal/access"
	"github.com/harperz567/food-app-qa/pkg/models"
)

func (c *CLI) newAccessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Role-based access decisions",
		Long: `Evaluate the access control matrix: which role may call which
endpoint, and with what record scope.`,
	}

	cmd.AddCommand(c.newAccessCheckCmd())
	cmd.AddCommand(c.newAccessMatrixCmd())

	return cmd
}

func (c *CLI) newAccessCheckCmd() *cobra.Command {
	var (
		role      string
		endpoint  string
		ownRecord bool
		remote    bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check one (role, endpoint) decision",
		Long: `Evaluate one access decision.

The decision is one of ALLOW, DENY, or SELF_ONLY. A SELF_ONLY grant
allows the call only when the caller reaches for their own record;
pass --own to assert ownership.

Example:
  datatags access check --role customer --endpoint /user --own
  datatags access check --role customer --endpoint /payment`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if role == "" || endpoint == "" {
				return fmt.Errorf("--role and --endpoint are required")
			}
			return c.runAccessCheck(role, endpoint, ownRecord, remote)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "caller role (e.g. customer, restaurant_owner, admin)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "endpoint path (e.g. /user)")
	cmd.Flags().BoolVar(&ownRecord, "own", false, "the caller is reaching for their own record")
	cmd.Flags().BoolVar(&remote, "remote", false, "evaluate on the gateway instead of locally")

	return cmd
}

func (c *CLI) runAccessCheck(role, endpoint string, ownRecord, remote bool) error {
	var result models.AccessCheckResponse

	if remote {
		client := c.newGatewayClient()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		resp, err := client.CheckAccess(ctx, &models.AccessCheckRequest{
			Role:      role,
			Endpoint:  endpoint,
			OwnRecord: ownRecord,
		})
		if err != nil {
			c.errorf("Access check failed: %v\n", err)
			return err
		}
		result = *resp
	} else {
		matrix, err := c.loadMatrix()
		if err != nil {
			return err
		}
		allowed, decision, err := matrix.EvaluateOwnership(role, endpoint, ownRecord)
		if err != nil {
			c.errorf("Access check failed: %v\n", err)
			return err
		}
		result = models.AccessCheckResponse{
			Role:      access.NormalizeRole(role),
			Endpoint:  endpoint,
			Decision:  decision.String(),
			Allowed:   allowed,
			OwnRecord: ownRecord,
		}
	}

	if c.jsonOutput {
		return c.outputJSON(result)
	}

	mark := "✗"
	if result.Allowed {
		mark = "✓"
	}
	c.printf("%s %s: %s %s (decision %s)\n", mark, result.Role, result.Endpoint, allowedWord(result.Allowed), result.Decision)
	if result.Decision == access.DecisionSelfOnly.String() && !result.OwnRecord {
		c.println("  The grant is scoped to the caller's own records. Re-run with --own if that is the case.")
	}

	return nil
}

func allowedWord(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func (c *CLI) newAccessMatrixCmd() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Print the full access policy table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAccessMatrix(remote)
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "fetch the table from the gateway instead of locally")

	return cmd
}

func (c *CLI) runAccessMatrix(remote bool) error {
	var rows []models.AccessRow

	if remote {
		client := c.newGatewayClient()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		resp, err := client.GetAccessMatrix(ctx)
		if err != nil {
			c.errorf("Failed to fetch access matrix: %v\n", err)
			return err
		}
		rows = resp.Rows
	} else {
		matrix, err := c.loadMatrix()
		if err != nil {
			return err
		}
		local, err := matrix.Rows()
		if err != nil {
			c.errorf("Failed to read access matrix: %v\n", err)
			return err
		}
		for _, row := range local {
			rows = append(rows, models.AccessRow{
				Role:     row.Role,
				Endpoint: row.Endpoint,
				Scope:    string(row.Scope),
			})
		}
	}

	if c.jsonOutput {
		return c.outputJSON(models.AccessMatrixResponse{Rows: rows})
	}

	if len(rows) == 0 {
		c.println("No policy rows loaded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tENDPOINT\tSCOPE")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\n", row.Role, row.Endpoint, row.Scope)
	}
	w.Flush()

	c.printf("\n%d policy row(s). Anything not listed is denied.\n", len(rows))
	return nil
}
