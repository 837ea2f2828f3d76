package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mark3labs/openapi2mcp/internal/document"
)

// Settings configures loader and parser behavior.
type Settings struct {
	// HTTPTimeout bounds the single fetch issued for URL sources.
	HTTPTimeout time.Duration
	// HTTPClient overrides the client used for URL sources. When set,
	// HTTPTimeout is ignored.
	HTTPClient *http.Client
	// Logger receives debug-level progress events. Defaults to a no-op.
	Logger *zap.Logger
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 30 * time.Second,
		Logger:      zap.NewNop(),
	}
}

// Option mutates Settings.
type Option func(*Settings)

// WithHTTPTimeout bounds the URL fetch.
func WithHTTPTimeout(d time.Duration) Option {
	return func(s *Settings) { s.HTTPTimeout = d }
}

// WithHTTPClient supplies the client used for URL sources.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Settings) { s.HTTPClient = c }
}

// WithLogger attaches a logger for debug-level progress events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Settings) {
		if l != nil {
			s.Logger = l
		}
	}
}

// IsURL reports whether source is an http(s) URL rather than a file path.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Load obtains a structured document tree from source, which is either an
// http(s) URL or a filesystem path. The result is format-agnostic: JSON and
// YAML inputs yield identical trees.
//
// Exactly one network call or one file read happens per invocation; there are
// no retries and no caching. URL fetches are bounded by the configured timeout
// and fail with a network-kind error on non-2xx status or transport failure.
func Load(ctx context.Context, source string, opts ...Option) (any, error) {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	source = strings.TrimSpace(source)

	switch {
	case IsURL(source):
		return loadURL(ctx, source, settings)
	case fileExists(source):
		return loadFile(source, settings)
	default:
		return nil, newParseError("source not found", source, nil)
	}
}

func loadURL(ctx context.Context, source string, settings Settings) (any, error) {
	client := settings.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: settings.HTTPTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, newNetworkError(fmt.Sprintf("build request: %v", err), source, err)
	}

	settings.Logger.Debug("fetching specification", zap.String("url", source))
	resp, err := client.Do(req)
	if err != nil {
		return nil, newNetworkError(fmt.Sprintf("fetch spec: %v", err), source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		msg := fmt.Sprintf("fetch spec: http %d", resp.StatusCode)
		if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
			msg += ": " + trimmed
		}
		return nil, newNetworkError(msg, source, nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newNetworkError(fmt.Sprintf("read response: %v", err), source, err)
	}

	doc, err := decodeJSONThenYAML(data)
	if err != nil {
		return nil, newParseError(fmt.Sprintf("decode spec: %v", err), source, err)
	}
	return doc, nil
}

func loadFile(source string, settings Settings) (any, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, newParseError(fmt.Sprintf("read file: %v", err), source, err)
	}

	settings.Logger.Debug("read specification file",
		zap.String("path", source), zap.Int("bytes", len(data)))

	var doc any
	switch strings.ToLower(filepath.Ext(source)) {
	case ".json":
		doc, err = document.DecodeJSON(data)
	case ".yaml", ".yml":
		doc, err = document.DecodeYAML(data)
	default:
		doc, err = decodeJSONThenYAML(data)
	}
	if err != nil {
		return nil, newParseError(fmt.Sprintf("parse file: %v", err), source, err)
	}
	return doc, nil
}

// decodeJSONThenYAML tries JSON first, then YAML. JSON documents are a subset
// of YAML but not vice versa, so this order prevents silently mis-reading a
// JSON document through the YAML decoder.
func decodeJSONThenYAML(data []byte) (any, error) {
	doc, jsonErr := document.DecodeJSON(data)
	if jsonErr == nil {
		return doc, nil
	}
	doc, yamlErr := document.DecodeYAML(data)
	if yamlErr != nil {
		return nil, yamlErr
	}
	return doc, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
