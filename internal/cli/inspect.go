package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperz567/food-app-qa/internal/inspect"
	"github.com/harperz567/food-app-qa/pkg/models"
)

func (c *CLI) newInspectCmd() *cobra.Command {
	var (
		service string
		remote  bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <sql | @file.sql>",
		Short: "Inspect a SQL statement for sensitive column access",
		Long: `Statically inspect a SQL statement: which tables and columns it
touches, how sensitive they are, and whether any of them demand
encryption at rest.

The statement is resolved against the tag schema of one service.
Prefix the argument with @ to read the statement from a file.

Example:
  datatags inspect --service userinfoservice "SELECT username, address FROM users"
  datatags inspect --service paymentservice @queries/settle.sql`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if service == "" {
				return fmt.Errorf("--service is required")
			}
			return c.runInspect(service, args[0], remote)
		},
	}

	cmd.Flags().StringVar(&service, "service", "", "service whose schema the statement runs against")
	cmd.Flags().BoolVar(&remote, "remote", false, "inspect on the gateway instead of locally")

	return cmd
}

func (c *CLI) runInspect(service, arg string, remote bool) error {
	query := arg
	if strings.HasPrefix(arg, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			c.errorf("Failed to read query file: %v\n", err)
			return err
		}
		query = string(data)
	}

	var result models.InspectResponse

	if remote {
		client := c.newGatewayClient()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		resp, err := client.Inspect(ctx, &models.InspectRequest{Service: service, Query: query})
		if err != nil {
			c.errorf("Inspection failed: %v\n", err)
			return err
		}
		result = *resp
	} else {
		reg, err := c.loadRegistry()
		if err != nil {
			return err
		}
		report, err := inspect.NewInspector(reg).Inspect(service, query)
		if err != nil {
			c.errorf("Inspection failed: %v\n", err)
			return err
		}
		result = toInspectResponse(report)
	}

	if c.jsonOutput {
		return c.outputJSON(result)
	}

	c.printf("%s on %s", result.Kind, result.Service)
	if len(result.Tables) > 0 {
		c.printf(" (%s)", strings.Join(result.Tables, ", "))
	}
	c.println("")

	if len(result.Columns) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "COLUMN\tTABLE\tLEVEL\tRETENTION\tENCRYPT\tWRITE")
		for _, col := range result.Columns {
			level := col.Level
			retention := col.Retention
			if !col.Registered {
				level = "unregistered"
				retention = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				col.Column, col.Table, level, retention,
				yesMark(col.RequiresEncryption), yesMark(col.WriteTarget))
		}
		w.Flush()
	}

	if result.MaxLevel != "" {
		c.printf("\nMax level: %s\n", result.MaxLevel)
	}
	for _, warning := range result.Warnings {
		c.printf("⚠ %s\n", warning)
	}

	return nil
}

func toInspectResponse(report *inspect.InspectionReport) models.InspectResponse {
	resp := models.InspectResponse{
		Service:       report.Service,
		Kind:          string(report.Kind),
		Mutates:       report.Mutates,
		Tables:        report.Tables,
		Unregistered:  report.Unregistered,
		StarExpansion: report.StarExpansion,
		MaxLevel:      report.MaxLevel.String(),
		Warnings:      report.Warnings,
	}
	for _, col := range report.Columns {
		resp.Columns = append(resp.Columns, models.ColumnFinding{
			Column:             col.Column,
			Table:              col.Table,
			FieldPath:          col.FieldPath,
			Registered:         col.Registered,
			Level:              col.Level.String(),
			Retention:          col.Retention.String(),
			RequiresEncryption: col.RequiresEncryption,
			WriteTarget:        col.WriteTarget,
		})
	}
	return resp
}

func yesMark(v bool) string {
	if v {
		return "yes"
	}
	return ""
}
