package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// InspectConfig captures the options for the inspect command.
type InspectConfig struct {
	Input   string
	JSON    bool
	Verbose bool
	Out     io.Writer
}

var inspectRunner = runInspect

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Parse an OpenAPI document and print its unified model",
		Long: "Parse an OpenAPI 3.x document and print a human-readable summary of the " +
			"unified model: endpoints, derived tool names, auth, and servers.",
		Example: strings.TrimSpace(`  openapi2mcp inspect --input spec.yaml
  openapi2mcp inspect --input spec.yaml --json`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &InspectConfig{Out: os.Stdout}
			var err error
			if cfg.Input, err = cmd.Flags().GetString("input"); err != nil {
				return err
			}
			if cfg.JSON, err = cmd.Flags().GetBool("json"); err != nil {
				return err
			}
			if cfg.Verbose, err = cmd.Flags().GetBool("verbose"); err != nil {
				return err
			}
			cfg.Input = strings.TrimSpace(cfg.Input)
			if cfg.Input == "" {
				return newUsageError("inspect: --input is required")
			}
			return inspectRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("input", "", "Path or URL to the OpenAPI document")
	cmd.Flags().Bool("json", false, "Print the full model as JSON")

	return cmd
}

func runInspect(ctx context.Context, cfg *InspectConfig) error {
	spec, err := parseInput(ctx, cfg.Input, cfg.Verbose)
	if err != nil {
		return err
	}

	if cfg.JSON {
		enc := json.NewEncoder(cfg.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(spec)
	}

	fmt.Fprintln(cfg.Out, spec.Summary())
	fmt.Fprintln(cfg.Out)
	fmt.Fprintln(cfg.Out, "Tools:")
	for _, ep := range spec.Endpoints {
		summary := ep.Summary
		if summary == "" {
			summary = ep.Description
		}
		fmt.Fprintf(cfg.Out, "  %-30s %-6s %s", ep.ToolName(), ep.Method, ep.Path)
		if summary != "" {
			fmt.Fprintf(cfg.Out, "  - %s", summary)
		}
		fmt.Fprintln(cfg.Out)
	}
	return nil
}
