package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperz567/food-app-qa/internal/classification"
	"github.com/harperz567/food-app-qa/internal/registry"
	"github.com/harperz567/food-app-qa/pkg/models"
)

func (c *CLI) newFieldCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "field",
		Short: "Registered field queries",
		Long:  `Query the tag registry for registered fields, their tags, and encryption obligations.`,
	}

	cmd.AddCommand(c.newFieldListCmd())
	cmd.AddCommand(c.newFieldShowCmd())
	cmd.AddCommand(c.newFieldEncryptionCmd())

	return cmd
}

func (c *CLI) newFieldListCmd() *cobra.Command {
	var (
		service  string
		minLevel string
		remote   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered fields",
		Long: `List registered fields with their sensitivity levels and retention
policies.

Without --service every service is listed. --min-level restricts the
listing to fields at or above a sensitivity level.

Example:
  datatags field list --service userinfoservice --min-level SENSITIVE`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFieldList(service, minLevel, remote)
		},
	}

	cmd.Flags().StringVar(&service, "service", "", "restrict to one service")
	cmd.Flags().StringVar(&minLevel, "min-level", "", "minimum sensitivity level (e.g. SENSITIVE)")
	cmd.Flags().BoolVar(&remote, "remote", false, "query the gateway instead of the local schema")

	return cmd
}

func (c *CLI) runFieldList(service, minLevel string, remote bool) error {
	min := classification.LevelPublic
	if minLevel != "" {
		parsed, err := classification.ParseLevel(minLevel)
		if err != nil {
			c.errorf("Error: %v\n", err)
			return err
		}
		min = parsed
	}

	if remote {
		return c.runFieldListRemote(service, min)
	}

	reg, err := c.loadRegistry()
	if err != nil {
		return err
	}

	services := reg.Services()
	if service != "" {
		services = []string{service}
	}

	var fields []registry.FieldDescriptor
	for _, svc := range services {
		descs, err := reg.SensitiveFields(svc, min)
		if err != nil {
			return err
		}
		fields = append(fields, descs...)
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"fields": fields,
			"count":  len(fields),
		})
	}

	if len(fields) == 0 {
		c.println("No fields registered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tFIELD\tLEVEL\tRETENTION\tREQUIRED")
	for _, desc := range fields {
		required := ""
		if desc.Required {
			required = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			desc.Service, desc.FieldPath, desc.Tag.Level, desc.Tag.Retention, required)
	}
	w.Flush()

	return nil
}

func (c *CLI) runFieldListRemote(service string, min classification.Level) error {
	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	services := []string{service}
	if service == "" {
		resp, err := client.GetServices(ctx)
		if err != nil {
			c.errorf("Failed to list services: %v\n", err)
			return err
		}
		services = resp.Services
	}

	var fields []models.FieldInfo
	for _, svc := range services {
		resp, err := client.GetFields(ctx, svc)
		if err != nil {
			c.errorf("Failed to list fields: %v\n", err)
			return err
		}
		for _, field := range resp.Fields {
			level, err := classification.ParseLevel(field.Level)
			if err != nil || !level.AtLeast(min) {
				continue
			}
			fields = append(fields, field)
		}
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"fields": fields,
			"count":  len(fields),
		})
	}

	if len(fields) == 0 {
		c.println("No fields registered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tFIELD\tLEVEL\tRETENTION\tREQUIRED")
	for _, field := range fields {
		required := ""
		if field.Required {
			required = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			field.Service, field.FieldPath, field.Level, field.RetentionPolicy, required)
	}
	w.Flush()

	return nil
}

func (c *CLI) newFieldShowCmd() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "show <service> <field-path>",
		Short: "Show one registered field",
		Long: `Display the full registration of one field: tag, retention,
encryption obligation, and description.

Example:
  datatags field show userinfoservice users.userPassword`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFieldShow(args[0], args[1], remote)
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "query the gateway instead of the local schema")

	return cmd
}

func (c *CLI) runFieldShow(service, fieldPath string, remote bool) error {
	var info models.FieldInfo

	if remote {
		client := c.newGatewayClient()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		resp, err := client.LookupField(ctx, service, fieldPath)
		if err != nil {
			c.errorf("Lookup failed: %v\n", err)
			return err
		}
		info = *resp
	} else {
		reg, err := c.loadRegistry()
		if err != nil {
			return err
		}
		desc, err := reg.Describe(service, fieldPath)
		if err != nil {
			return err
		}
		info = models.FieldInfo{
			Service:            desc.Service,
			FieldPath:          desc.FieldPath,
			Level:              desc.Tag.Level.String(),
			RetentionPolicy:    desc.Tag.Retention.String(),
			Required:           desc.Required,
			RequiresEncryption: desc.Tag.Level.RequiresEncryption(),
			Description:        desc.Description,
		}
	}

	if c.jsonOutput {
		return c.outputJSON(info)
	}

	c.printf("%s %s\n", info.Service, info.FieldPath)
	c.printf("  Level:      %s\n", info.Level)
	c.printf("  Retention:  %s\n", info.RetentionPolicy)
	c.printf("  Required:   %v\n", info.Required)
	c.printf("  Encryption: %v\n", info.RequiresEncryption)
	if info.Description != "" {
		c.printf("  Description: %s\n", info.Description)
	}

	return nil
}

func (c *CLI) newFieldEncryptionCmd() *cobra.Command {
	var service string

	cmd := &cobra.Command{
		Use:   "encryption",
		Short: "List fields requiring encryption at rest",
		Long: `List every registered field whose sensitivity level sits at or above
the encryption threshold (HIGHLY_SENSITIVE).

This is the checklist a service owner works through before storing the
field unencrypted is even a question.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFieldEncryption(service)
		},
	}

	cmd.Flags().StringVar(&service, "service", "", "restrict to one service")

	return cmd
}

func (c *CLI) runFieldEncryption(service string) error {
	reg, err := c.loadRegistry()
	if err != nil {
		return err
	}

	services := reg.Services()
	if service != "" {
		services = []string{service}
	}

	var fields []registry.FieldDescriptor
	for _, svc := range services {
		descs, err := reg.EncryptionRequired(svc)
		if err != nil {
			return err
		}
		fields = append(fields, descs...)
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"fields": fields,
			"count":  len(fields),
		})
	}

	if len(fields) == 0 {
		c.println("No fields require encryption")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tFIELD\tLEVEL\tRETENTION")
	for _, desc := range fields {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			desc.Service, desc.FieldPath, desc.Tag.Level, desc.Tag.Retention)
	}
	w.Flush()

	c.printf("\n%d field(s) require encryption at rest\n", len(fields))
	return nil
}
