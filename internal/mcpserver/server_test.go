package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mark3labs/openapi2mcp/internal/parser"
)

func testSpec() *parser.APISpec {
	return &parser.APISpec{
		Name:    "Pet Store",
		Version: "1.0.0",
		BaseURL: "https://api.example.com",
		Endpoints: []parser.Endpoint{
			{Path: "/pets", Method: parser.MethodGet, Summary: "List pets"},
			{Path: "/pets/{petId}", Method: parser.MethodGet},
		},
	}
}

func TestNewRejectsUnusableSpec(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{})
	assert.Error(t, err)

	_, err = New(&parser.APISpec{Name: "x"}, Config{})
	assert.ErrorContains(t, err, "no endpoints")

	spec := testSpec()
	spec.BaseURL = ""
	_, err = New(spec, Config{})
	assert.ErrorContains(t, err, "no server URL")

	// a config base URL rescues a spec without servers
	_, err = New(spec, Config{BaseURL: "https://override.example.com"})
	assert.NoError(t, err)
}

func TestNewSkipsDuplicateToolNames(t *testing.T) {
	t.Parallel()

	spec := testSpec()
	// both derive get_pets
	spec.Endpoints = []parser.Endpoint{
		{Path: "/pets/{petId}", Method: parser.MethodGet},
		{Path: "/owners/{ownerId}/pets/{petId}", Method: parser.MethodGet},
	}

	core, logs := observer.New(zap.WarnLevel)
	_, err := New(spec, Config{Logger: zap.New(core)})
	require.NoError(t, err)

	entries := logs.FilterMessage("skipping endpoint with duplicate tool name").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "get_pets", entries[0].ContextMap()["tool"])
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("BEARER_TOKEN", "tok")
	t.Setenv("API_USERNAME", "alice")
	t.Setenv("API_PASSWORD", "s3cret")
	t.Setenv("X_API_KEY", "key123")

	creds := CredentialsFromEnv(&parser.AuthConfig{Type: parser.AuthAPIKey, Name: "X-Api-Key"})
	assert.Equal(t, "key123", creds.APIKey)
	assert.Equal(t, "tok", creds.BearerToken)
	assert.Equal(t, "alice", creds.Username)
	assert.Equal(t, "s3cret", creds.Password)

	creds = CredentialsFromEnv(nil)
	assert.Empty(t, creds.APIKey)
}

func newTestProxy(upstream string, auth *parser.AuthConfig, creds Credentials) *proxy {
	return &proxy{
		base:   upstream,
		client: &http.Client{Timeout: time.Second},
		auth:   auth,
		creds:  creds,
		logger: zap.NewNop(),
	}
}

func TestProxyCallPathAndQuery(t *testing.T) {
	t.Parallel()

	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("limit")
		io.WriteString(w, `{"ok": true}`) //nolint:errcheck
	}))
	defer srv.Close()

	ep := parser.Endpoint{
		Path:   "/pets/{petId}",
		Method: parser.MethodGet,
		Parameters: []parser.Parameter{
			{Name: "petId", In: parser.LocationPath, Required: true},
			{Name: "limit", In: parser.LocationQuery},
		},
	}

	p := newTestProxy(srv.URL, nil, Credentials{})
	body, err := p.call(context.Background(), ep, map[string]any{"petId": "a b", "limit": 5})
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, body)
	assert.Equal(t, "/pets/a b", gotPath) // server decodes %20
	assert.Equal(t, "5", gotQuery)
}

func TestProxyCallMissingRequiredPathParam(t *testing.T) {
	t.Parallel()

	ep := parser.Endpoint{
		Path:       "/pets/{petId}",
		Method:     parser.MethodGet,
		Parameters: []parser.Parameter{{Name: "petId", In: parser.LocationPath, Required: true}},
	}
	p := newTestProxy("https://unused.example.com", nil, Credentials{})

	_, err := p.call(context.Background(), ep, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required path parameter "petId"`)
}

func TestProxyCallSendsJSONBody(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody) //nolint:errcheck
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, "created") //nolint:errcheck
	}))
	defer srv.Close()

	ep := parser.Endpoint{
		Path:        "/pets",
		Method:      parser.MethodPost,
		RequestBody: &parser.SchemaModel{Name: "RequestBody"},
	}
	p := newTestProxy(srv.URL, nil, Credentials{})

	body, err := p.call(context.Background(), ep, map[string]any{
		"body": map[string]any{"name": "Rex"},
	})
	require.NoError(t, err)
	assert.Equal(t, "created", body)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "Rex", gotBody["name"])
}

func TestProxyCallHeaderParams(t *testing.T) {
	t.Parallel()

	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Trace")
		io.WriteString(w, "ok") //nolint:errcheck
	}))
	defer srv.Close()

	ep := parser.Endpoint{
		Path:       "/pets",
		Method:     parser.MethodGet,
		Parameters: []parser.Parameter{{Name: "X-Trace", In: parser.LocationHeader}},
	}
	p := newTestProxy(srv.URL, nil, Credentials{})

	_, err := p.call(context.Background(), ep, map[string]any{"X-Trace": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "abc", gotHeader)
}

func TestProxyCallUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	ep := parser.Endpoint{Path: "/pets", Method: parser.MethodGet}
	p := newTestProxy(srv.URL, nil, Credentials{})

	_, err := p.call(context.Background(), ep, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 502")
	assert.Contains(t, err.Error(), "boom")
}

func TestProxyAuthInjection(t *testing.T) {
	t.Parallel()

	type captured struct {
		header  http.Header
		query   string
		cookies []*http.Cookie
	}

	run := func(t *testing.T, auth *parser.AuthConfig, creds Credentials) captured {
		t.Helper()
		var got captured
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got.header = r.Header.Clone()
			got.query = r.URL.RawQuery
			got.cookies = r.Cookies()
			io.WriteString(w, "ok") //nolint:errcheck
		}))
		defer srv.Close()

		p := newTestProxy(srv.URL, auth, creds)
		_, err := p.call(context.Background(), parser.Endpoint{Path: "/x", Method: parser.MethodGet}, nil)
		require.NoError(t, err)
		return got
	}

	t.Run("api key header", func(t *testing.T) {
		t.Parallel()
		got := run(t, &parser.AuthConfig{Type: parser.AuthAPIKey, Name: "X-Key", In: parser.LocationHeader},
			Credentials{APIKey: "k"})
		assert.Equal(t, "k", got.header.Get("X-Key"))
	})

	t.Run("api key query", func(t *testing.T) {
		t.Parallel()
		got := run(t, &parser.AuthConfig{Type: parser.AuthAPIKey, Name: "token", In: parser.LocationQuery},
			Credentials{APIKey: "k"})
		assert.Equal(t, "token=k", got.query)
	})

	t.Run("api key cookie", func(t *testing.T) {
		t.Parallel()
		got := run(t, &parser.AuthConfig{Type: parser.AuthAPIKey, Name: "session", In: parser.LocationCookie},
			Credentials{APIKey: "k"})
		require.Len(t, got.cookies, 1)
		assert.Equal(t, "session", got.cookies[0].Name)
		assert.Equal(t, "k", got.cookies[0].Value)
	})

	t.Run("bearer", func(t *testing.T) {
		t.Parallel()
		got := run(t, &parser.AuthConfig{Type: parser.AuthBearer}, Credentials{BearerToken: "tok"})
		assert.Equal(t, "Bearer tok", got.header.Get("Authorization"))
	})

	t.Run("basic", func(t *testing.T) {
		t.Parallel()
		got := run(t, &parser.AuthConfig{Type: parser.AuthBasic}, Credentials{Username: "u", Password: "p"})
		assert.Contains(t, got.header.Get("Authorization"), "Basic ")
	})

	t.Run("missing credentials add nothing", func(t *testing.T) {
		t.Parallel()
		got := run(t, &parser.AuthConfig{Type: parser.AuthAPIKey, Name: "X-Key", In: parser.LocationHeader},
			Credentials{})
		assert.Empty(t, got.header.Get("X-Key"))
	})
}

func TestJSONType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "integer", jsonType("integer"))
	assert.Equal(t, "string", jsonType("weird"))
	assert.Equal(t, "string", jsonType(""))
}
