package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Execute runs the openapi2mcp CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "openapi2mcp",
		Short:         "Turn OpenAPI specs into MCP servers",
		Long:          "openapi2mcp parses OpenAPI 3.x documents and either serves them directly as MCP servers or scaffolds standalone Python MCP server projects.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML or JSON)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")

	// Convert Cobra flag errors (like unknown flags) into friendly usage errors
	// that also show the command's help text.
	flagErr := func(c *cobra.Command, err error) error {
		return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
	}
	cmd.SetFlagErrorFunc(flagErr)

	for _, sub := range []*cobra.Command{
		newGenerateCmd(),
		newServeCmd(),
		newInspectCmd(),
		newInitCmd(),
		newVersionCmd(),
	} {
		sub.SetFlagErrorFunc(flagErr)
		cmd.AddCommand(sub)
	}

	return cmd
}
