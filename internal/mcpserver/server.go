// Package mcpserver exposes a parsed APISpec as a runnable MCP server: one
// callable tool per endpoint, each proxying its invocation as an HTTP request
// to the upstream API.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/mark3labs/openapi2mcp/internal/parser"
)

// Credentials holds the secrets injected into proxied requests, depending on
// the spec's auth kind.
type Credentials struct {
	APIKey      string
	BearerToken string
	Username    string
	Password    string
}

// CredentialsFromEnv reads credentials from the environment using the same
// variable names the generated .env.example documents: the upper-cased key
// name for API keys, BEARER_TOKEN for bearer auth, and
// API_USERNAME/API_PASSWORD for basic auth.
func CredentialsFromEnv(auth *parser.AuthConfig) Credentials {
	creds := Credentials{
		BearerToken: os.Getenv("BEARER_TOKEN"),
		Username:    os.Getenv("API_USERNAME"),
		Password:    os.Getenv("API_PASSWORD"),
	}
	if auth != nil && auth.Type == parser.AuthAPIKey {
		creds.APIKey = os.Getenv(envName(auth.Name))
	}
	return creds
}

func envName(name string) string {
	name = strings.ReplaceAll(name, "-", "_")
	return strings.ToUpper(name)
}

// Config controls how the server proxies tool calls upstream.
type Config struct {
	// BaseURL overrides the spec's primary server URL.
	BaseURL string
	// Timeout bounds each proxied request. Defaults to 30s.
	Timeout time.Duration
	// HTTPClient overrides the client used for proxied requests.
	HTTPClient *http.Client
	Logger     *zap.Logger
	Credentials Credentials
}

// New builds an MCP server from the spec, registering one tool per endpoint.
// Endpoints whose derived tool name collides with an earlier one are logged
// and skipped rather than failing the whole server.
func New(spec *parser.APISpec, cfg Config) (*server.MCPServer, error) {
	if spec == nil {
		return nil, fmt.Errorf("mcpserver: nil spec")
	}
	if len(spec.Endpoints) == 0 {
		return nil, fmt.Errorf("mcpserver: spec has no endpoints")
	}
	base := cfg.BaseURL
	if base == "" {
		base = spec.PrimaryServer()
	}
	if base == "" {
		return nil, fmt.Errorf("mcpserver: no server URL: set Config.BaseURL or declare servers in the spec")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	p := &proxy{
		base:   strings.TrimSuffix(base, "/"),
		client: client,
		auth:   spec.Auth,
		creds:  cfg.Credentials,
		logger: logger,
	}

	s := server.NewMCPServer(spec.Name, spec.Version)
	seen := make(map[string]struct{}, len(spec.Endpoints))
	for _, ep := range spec.Endpoints {
		name := ep.ToolName()
		if _, dup := seen[name]; dup {
			logger.Warn("skipping endpoint with duplicate tool name",
				zap.String("tool", name),
				zap.String("method", string(ep.Method)),
				zap.String("path", ep.Path))
			continue
		}
		seen[name] = struct{}{}
		s.AddTool(buildTool(name, ep), p.handler(ep))
		logger.Debug("registered tool",
			zap.String("tool", name),
			zap.String("method", string(ep.Method)),
			zap.String("path", ep.Path))
	}
	return s, nil
}

// ServeStdio runs the server over stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// ServeHTTP runs the server as a streamable HTTP endpoint on addr.
func ServeHTTP(s *server.MCPServer, addr string) error {
	return server.NewStreamableHTTPServer(s).Start(addr)
}

func buildTool(name string, ep parser.Endpoint) mcp.Tool {
	desc := ep.Summary
	if desc == "" {
		desc = ep.Description
	}
	if desc == "" {
		desc = fmt.Sprintf("%s %s", ep.Method, ep.Path)
	}
	if ep.Deprecated {
		desc += " (deprecated)"
	}

	opts := []mcp.ToolOption{mcp.WithDescription(desc)}
	for _, param := range ep.Parameters {
		opts = append(opts, parameterOption(param))
	}
	if ep.RequestBody != nil {
		bodyOpts := []mcp.PropertyOption{mcp.Description("JSON request body")}
		if props := bodyProperties(ep.RequestBody); len(props) > 0 {
			bodyOpts = append(bodyOpts, mcp.Properties(props))
		}
		opts = append(opts, mcp.WithObject("body", bodyOpts...))
	}
	return mcp.NewTool(name, opts...)
}

func parameterOption(p parser.Parameter) mcp.ToolOption {
	var propOpts []mcp.PropertyOption
	if p.Description != "" {
		propOpts = append(propOpts, mcp.Description(p.Description))
	}
	if p.Required {
		propOpts = append(propOpts, mcp.Required())
	}
	switch p.Type {
	case "int", "float":
		return mcp.WithNumber(p.Name, propOpts...)
	case "bool":
		return mcp.WithBoolean(p.Name, propOpts...)
	case "list":
		return mcp.WithArray(p.Name, propOpts...)
	case "dict":
		return mcp.WithObject(p.Name, propOpts...)
	default:
		return mcp.WithString(p.Name, propOpts...)
	}
}

func bodyProperties(body *parser.SchemaModel) map[string]any {
	props := make(map[string]any, len(body.Properties))
	for _, name := range body.PropertyOrder {
		prop := body.Properties[name]
		entry := map[string]any{"type": jsonType(prop.Type)}
		if prop.Description != "" {
			entry["description"] = prop.Description
		}
		if len(prop.Enum) > 0 {
			entry["enum"] = prop.Enum
		}
		props[name] = entry
	}
	return props
}

func jsonType(t string) string {
	switch t {
	case "string", "number", "integer", "boolean", "array", "object":
		return t
	default:
		return "string"
	}
}

type proxy struct {
	base   string
	client *http.Client
	auth   *parser.AuthConfig
	creds  Credentials
	logger *zap.Logger
}

func (p *proxy) handler(ep parser.Endpoint) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body, err := p.call(ctx, ep, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(body), nil
	}
}

// call performs the upstream HTTP request for one tool invocation and returns
// the response body.
func (p *proxy) call(ctx context.Context, ep parser.Endpoint, args map[string]any) (string, error) {
	path := ep.Path
	for _, param := range ep.PathParameters() {
		v, ok := args[param.Name]
		if !ok {
			if param.Required {
				return "", fmt.Errorf("missing required path parameter %q", param.Name)
			}
			continue
		}
		path = strings.ReplaceAll(path, "{"+param.Name+"}", url.PathEscape(fmt.Sprint(v)))
	}

	u, err := url.Parse(p.base + path)
	if err != nil {
		return "", fmt.Errorf("build request URL: %w", err)
	}
	q := u.Query()
	for _, param := range ep.QueryParameters() {
		if v, ok := args[param.Name]; ok {
			q.Set(param.Name, fmt.Sprint(v))
		}
	}
	u.RawQuery = q.Encode()

	var body io.Reader
	if ep.RequestBody != nil {
		if raw, ok := args["body"]; ok && raw != nil {
			data, err := json.Marshal(raw)
			if err != nil {
				return "", fmt.Errorf("encode request body: %w", err)
			}
			body = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(ctx, string(ep.Method), u.String(), body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, param := range ep.HeaderParameters() {
		if v, ok := args[param.Name]; ok {
			req.Header.Set(param.Name, fmt.Sprint(v))
		}
	}
	p.applyAuth(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call upstream: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upstream response: %w", err)
	}

	p.logger.Debug("proxied tool call",
		zap.String("tool", ep.ToolName()),
		zap.String("method", string(ep.Method)),
		zap.String("url", u.String()),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return "", fmt.Errorf("upstream returned http %d: %s", resp.StatusCode, msg)
	}
	return string(data), nil
}

func (p *proxy) applyAuth(req *http.Request) {
	if p.auth == nil {
		return
	}
	switch p.auth.Type {
	case parser.AuthAPIKey:
		if p.creds.APIKey == "" {
			return
		}
		switch p.auth.In {
		case parser.LocationQuery:
			q := req.URL.Query()
			q.Set(p.auth.Name, p.creds.APIKey)
			req.URL.RawQuery = q.Encode()
		case parser.LocationCookie:
			req.AddCookie(&http.Cookie{Name: p.auth.Name, Value: p.creds.APIKey})
		default:
			req.Header.Set(p.auth.Name, p.creds.APIKey)
		}
	case parser.AuthBearer:
		if p.creds.BearerToken != "" {
			req.Header.Set("Authorization", "Bearer "+p.creds.BearerToken)
		}
	case parser.AuthBasic:
		if p.creds.Username != "" || p.creds.Password != "" {
			req.SetBasicAuth(p.creds.Username, p.creds.Password)
		}
	}
}
