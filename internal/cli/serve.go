package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mark3labs/openapi2mcp/internal/mcpserver"
)

// ServeConfig captures the options for the serve command.
type ServeConfig struct {
	Input     string
	Transport string // stdio or http
	Addr      string
	BaseURL   string
	Timeout   time.Duration
	Verbose   bool
}

var serveRunner = runServe

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an OpenAPI document directly as an MCP server",
		Long: "Parse an OpenAPI 3.x document and expose each operation as an MCP tool, " +
			"proxying tool calls to the upstream API. Credentials are read from the " +
			"environment (BEARER_TOKEN, API_USERNAME/API_PASSWORD, or the upper-cased " +
			"API key name).",
		Example: strings.TrimSpace(`  openapi2mcp serve --input spec.yaml
  openapi2mcp serve --input https://api.example.com/openapi.json --transport http --addr :8080`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveServeConfig(cmd)
			if err != nil {
				return err
			}
			return serveRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the OpenAPI document")
	flags.String("transport", "stdio", "Transport to serve on (stdio|http)")
	flags.String("addr", ":8080", "Listen address for the http transport")
	flags.String("base-url", "", "Override the upstream base URL from the spec")
	flags.Duration("timeout", 30*time.Second, "Timeout for proxied upstream requests")

	return cmd
}

func resolveServeConfig(cmd *cobra.Command) (*ServeConfig, error) {
	cfg := ServeConfig{}
	flags := cmd.Flags()

	var err error
	if cfg.Input, err = flags.GetString("input"); err != nil {
		return nil, err
	}
	if cfg.Transport, err = flags.GetString("transport"); err != nil {
		return nil, err
	}
	if cfg.Addr, err = flags.GetString("addr"); err != nil {
		return nil, err
	}
	if cfg.BaseURL, err = flags.GetString("base-url"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
		return nil, err
	}

	cfg.Input = strings.TrimSpace(cfg.Input)
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))

	if cfg.Input == "" {
		return nil, newUsageError("serve: --input is required")
	}
	switch cfg.Transport {
	case "stdio", "http":
	default:
		return nil, newUsageError(fmt.Sprintf("serve: unsupported --transport %q (allowed: stdio, http)", cfg.Transport))
	}

	return &cfg, nil
}

func runServe(ctx context.Context, cfg *ServeConfig) error {
	spec, err := parseInput(ctx, cfg.Input, cfg.Verbose)
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	srv, err := mcpserver.New(spec, mcpserver.Config{
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		Logger:      logger,
		Credentials: mcpserver.CredentialsFromEnv(spec.Auth),
	})
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	switch cfg.Transport {
	case "http":
		fmt.Fprintf(os.Stderr, "Serving %s on %s (http)\n", spec.Name, cfg.Addr)
		return mcpserver.ServeHTTP(srv, cfg.Addr)
	default:
		return mcpserver.ServeStdio(srv)
	}
}
