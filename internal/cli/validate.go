package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperz567/food-app-qa/internal/propagation"
	"github.com/harperz567/food-app-qa/pkg/models"
)

func (c *CLI) newValidateCmd() *cobra.Command {
	var (
		transitionsPath string
		remote          bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate captured transitions against the tag schema",
		Long: `Validate captured payload transitions against the tag registry.

Each transition is one hop of data flow between services. The validator
checks every hop for:
  - Level regressions (sensitivity decreased downstream)
  - Tag loss (a tagged field vanished without a dropped declaration)
  - Unregistered fields, invalid levels, invalid retention policies
  - Missing required fields (when enabled in the config)

Violations are findings, not failures: the run reports all of them and
exits with code 1. Exit 0 means a clean run.

Example:
  datatags validate --transitions captures/checkout.json
  datatags validate --transitions captures/checkout.json --remote`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if transitionsPath == "" {
				return fmt.Errorf("--transitions is required")
			}
			return c.runValidate(transitionsPath, remote)
		},
	}

	cmd.Flags().StringVar(&transitionsPath, "transitions", "", "JSON file of captured transitions")
	cmd.Flags().BoolVar(&remote, "remote", false, "run the validation on the gateway (recorded in the audit log)")

	return cmd
}

// transitionsFile accepts both the bare-array form and the request-object
// form, so a captured gateway request body replays without editing.
type transitionsFile struct {
	Transitions []json.RawMessage `json:"transitions"`
}

func readTransitions(path string, out interface{}) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read transitions file: %w", err)
	}

	var file transitionsFile
	if err := json.Unmarshal(data, &file); err == nil && file.Transitions != nil {
		data, err = json.Marshal(file.Transitions)
		if err != nil {
			return 0, err
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return 0, fmt.Errorf("failed to parse transitions file: %w", err)
	}

	switch v := out.(type) {
	case *[]propagation.Transition:
		return len(*v), nil
	case *[]models.Transition:
		return len(*v), nil
	}
	return 0, nil
}

func (c *CLI) runValidate(path string, remote bool) error {
	if remote {
		return c.runValidateRemote(path)
	}

	var transitions []propagation.Transition
	count, err := readTransitions(path, &transitions)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}

	reg, err := c.loadRegistry()
	if err != nil {
		return err
	}

	var opts []propagation.Option
	if c.cfg.Registry.RequiredFieldCheck {
		opts = append(opts, propagation.WithRequiredFieldCheck())
	}

	validator := propagation.NewValidator(reg, opts...)
	start := time.Now()
	report, err := validator.Validate(transitions)
	if err != nil {
		c.errorf("Validation failed: %v\n", err)
		return err
	}
	elapsed := time.Since(start)

	if c.jsonOutput {
		if err := c.outputJSON(map[string]interface{}{
			"passed":          report.Passed,
			"transitionCount": count,
			"violations":      report.Violations,
			"durationMs":      elapsed.Milliseconds(),
		}); err != nil {
			return err
		}
		if !report.Passed {
			c.exitCode = ExitViolations
		}
		return nil
	}

	if report.Passed {
		c.printf("✓ %d transition(s) validated, no violations\n", count)
		return nil
	}

	c.printViolations(report.Violations)
	c.printf("\n✗ %d violation(s) across %d transition(s) (%s)\n",
		len(report.Violations), count, summarizeCounts(report.CountByType()))
	c.exitCode = ExitViolations
	return nil
}

// summarizeCounts renders violation counts as "2 LEVEL_REGRESSION, 1 TAG_LOSS",
// worst offenders first.
func summarizeCounts(counts map[propagation.ViolationType]int) string {
	types := make([]propagation.ViolationType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if counts[types[i]] != counts[types[j]] {
			return counts[types[i]] > counts[types[j]]
		}
		return types[i] < types[j]
	})
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%d %s", counts[t], t))
	}
	return strings.Join(parts, ", ")
}

func (c *CLI) runValidateRemote(path string) error {
	var transitions []models.Transition
	if _, err := readTransitions(path, &transitions); err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}

	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Validate(ctx, &models.ValidateRequest{Transitions: transitions})
	if err != nil {
		c.errorf("Validation failed: %v\n", err)
		return err
	}

	if c.jsonOutput {
		if err := c.outputJSON(resp); err != nil {
			return err
		}
		if !resp.Passed {
			c.exitCode = ExitViolations
		}
		return nil
	}

	if resp.Passed {
		c.printf("✓ %d transition(s) validated, no violations (run %s)\n", resp.TransitionCount, resp.RunID)
		return nil
	}

	c.printModelViolations(resp.Violations)
	c.printf("\n✗ %d violation(s) across %d transition(s) (run %s)\n",
		len(resp.Violations), resp.TransitionCount, resp.RunID)
	c.exitCode = ExitViolations
	return nil
}

func (c *CLI) printViolations(violations []propagation.Violation) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tTRANSITION\tFIELD\tDETAIL")
	for _, v := range violations {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", v.Type, v.TransitionIndex, v.FieldPath, v.Detail)
	}
	w.Flush()
}

func (c *CLI) printModelViolations(violations []models.Violation) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tTRANSITION\tFIELD\tDETAIL")
	for _, v := range violations {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", v.Type, v.TransitionIndex, v.FieldPath, v.Detail)
	}
	w.Flush()
}
