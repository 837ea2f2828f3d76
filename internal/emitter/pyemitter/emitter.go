// Package pyemitter renders a runnable Python MCP server project from a
// parsed APISpec: a FastMCP server with one tool per endpoint, packaging
// metadata, a README, and an environment template.
package pyemitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/openapi2mcp/internal/parser"
)

// Options controls how the emitter renders a project.
type Options struct {
	OutDir      string // required; target directory to write the project
	ToolName    string // server name; derived from the spec title when empty
	PackageName string // Python distribution name; derived from ToolName when empty
	Force       bool   // overwrite a non-empty output directory
	DryRun      bool   // plan only, write nothing
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
}

// Result returns the planned files and final resolved names.
type Result struct {
	ToolName    string
	PackageName string
	Planned     []PlannedFile
}

// Emit renders the project for spec. The spec must be usable downstream: at
// least one endpoint and a resolvable primary server.
func Emit(ctx context.Context, spec *parser.APISpec, opts Options) (*Result, error) {
	_ = ctx
	if spec == nil {
		return nil, fmt.Errorf("pyemitter: nil spec")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("pyemitter: OutDir is required")
	}
	if len(spec.Endpoints) == 0 {
		return nil, fmt.Errorf("pyemitter: spec has no endpoints")
	}
	if spec.PrimaryServer() == "" {
		return nil, fmt.Errorf("pyemitter: spec has no resolvable server URL")
	}

	toolName := sanitizeToolName(opts.ToolName)
	if toolName == "" {
		toolName = deriveToolName(spec.Name)
		if toolName == "" {
			toolName = "mcp-server"
		}
	}
	packageName := sanitizePackageName(opts.PackageName)
	if packageName == "" {
		packageName = sanitizePackageName(toolName)
	}

	data := newTemplateData(toolName, packageName, spec)

	files := map[string][]byte{}
	serverPy, err := renderServerPy(data)
	if err != nil {
		return nil, err
	}
	files["server.py"] = []byte(serverPy)

	pyproject, err := renderTemplate("pyproject.toml", pyprojectTemplate, data)
	if err != nil {
		return nil, err
	}
	files["pyproject.toml"] = []byte(pyproject)

	readme, err := renderTemplate("README.md", readmeTemplate, data)
	if err != nil {
		return nil, err
	}
	files["README.md"] = []byte(readme)

	files[".env.example"] = []byte(renderEnvExample(spec))

	rels := make([]string, 0, len(files))
	for rel := range files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		planned = append(planned, PlannedFile{RelPath: rel, Size: len(files[rel])})
	}

	abs, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("pyemitter: resolve output directory: %w", err)
	}
	if err := validateOutputDirectory(abs, opts.Force); err != nil {
		return nil, err
	}
	if !opts.DryRun {
		for _, rel := range rels {
			if err := writeFileAtomic(abs, rel, files[rel]); err != nil {
				return nil, fmt.Errorf("pyemitter: write %s: %w", rel, err)
			}
		}
	}

	return &Result{ToolName: toolName, PackageName: packageName, Planned: planned}, nil
}

// validateOutputDirectory refuses to write into a non-empty directory unless
// force is set. A missing directory is fine; it gets created on write.
func validateOutputDirectory(absPath string, force bool) error {
	stat, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access output directory %q: %w", absPath, err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("output path %q is not a directory", absPath)
	}
	if force {
		return nil
	}
	entries, err := os.ReadDir(absPath)
	if err != nil {
		return fmt.Errorf("cannot read output directory %q: %w", absPath, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("output directory %q is not empty (use --force to overwrite)", absPath)
	}
	return nil
}

// writeFileAtomic writes content via a temp file and rename so a crashed run
// never leaves a half-written project file.
func writeFileAtomic(baseDir, relPath string, content []byte) error {
	fullPath := filepath.Join(baseDir, relPath)
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-pyemitter-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// renderServerPy synthesizes server.py: module header, auth helpers, then one
// FastMCP tool function per endpoint.
func renderServerPy(data TemplateData) (string, error) {
	header, err := renderTemplate("server.py", serverHeaderTemplate, data)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString(renderAuthHelpers(data.Spec.Auth))

	for _, ep := range data.Spec.Endpoints {
		b.WriteString("\n\n")
		writeToolFunction(&b, ep)
	}
	b.WriteString(serverFooter)
	return b.String(), nil
}

func renderAuthHelpers(auth *parser.AuthConfig) string {
	var b strings.Builder

	if auth != nil && auth.Type == parser.AuthBasic {
		b.WriteString("\nAUTH = (os.getenv(\"API_USERNAME\", \"\"), os.getenv(\"API_PASSWORD\", \"\"))\n")
	} else {
		b.WriteString("\nAUTH = None\n")
	}

	b.WriteString("\n\ndef _headers() -> dict:\n")
	b.WriteString("    headers = {\"Accept\": \"application/json\"}\n")
	if auth != nil {
		switch auth.Type {
		case parser.AuthBearer:
			b.WriteString("    token = os.getenv(\"BEARER_TOKEN\")\n")
			b.WriteString("    if token:\n")
			b.WriteString("        headers[\"Authorization\"] = f\"Bearer {token}\"\n")
		case parser.AuthAPIKey:
			if auth.In == parser.LocationHeader {
				fmt.Fprintf(&b, "    key = os.getenv(%q)\n", envName(auth.Name))
				fmt.Fprintf(&b, "    if key:\n        headers[%q] = key\n", auth.Name)
			}
		}
	}
	b.WriteString("    return headers\n")

	b.WriteString("\n\ndef _params() -> dict:\n")
	b.WriteString("    params = {}\n")
	if auth != nil && auth.Type == parser.AuthAPIKey && auth.In == parser.LocationQuery {
		fmt.Fprintf(&b, "    key = os.getenv(%q)\n", envName(auth.Name))
		fmt.Fprintf(&b, "    if key:\n        params[%q] = key\n", auth.Name)
	}
	b.WriteString("    return params\n")

	return b.String()
}

func writeToolFunction(b *strings.Builder, ep parser.Endpoint) {
	type arg struct {
		pyName   string
		param    parser.Parameter
		isBody   bool
		required bool
	}

	var args []arg
	seen := map[string]struct{}{}
	for _, p := range ep.Parameters {
		name := pyName(p.Name)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		args = append(args, arg{pyName: name, param: p, required: p.Required})
	}
	if ep.RequestBody != nil {
		if _, dup := seen["body"]; !dup {
			args = append(args, arg{pyName: "body", isBody: true})
		}
	}
	// Python rejects non-default arguments after defaulted ones.
	sort.SliceStable(args, func(i, j int) bool { return args[i].required && !args[j].required })

	var sig []string
	for _, a := range args {
		if a.isBody {
			sig = append(sig, "body: dict | None = None")
			continue
		}
		hint := pyType(a.param.Type)
		if a.required {
			sig = append(sig, fmt.Sprintf("%s: %s", a.pyName, hint))
		} else {
			sig = append(sig, fmt.Sprintf("%s: %s | None = None", a.pyName, hint))
		}
	}

	fmt.Fprintf(b, "@mcp.tool()\nasync def %s(%s) -> str:\n", ep.ToolName(), strings.Join(sig, ", "))

	doc := ep.Summary
	if doc == "" {
		doc = ep.Description
	}
	if doc == "" {
		doc = fmt.Sprintf("%s %s", ep.Method, ep.Path)
	}
	fmt.Fprintf(b, "    \"\"\"%s\"\"\"\n", strings.ReplaceAll(doc, `"""`, `'''`))

	b.WriteString("    params = _params()\n")
	b.WriteString("    headers = _headers()\n")
	for _, a := range args {
		if a.isBody {
			continue
		}
		switch a.param.In {
		case parser.LocationQuery:
			fmt.Fprintf(b, "    if %s is not None:\n        params[%q] = %s\n", a.pyName, a.param.Name, a.pyName)
		case parser.LocationHeader:
			fmt.Fprintf(b, "    if %s is not None:\n        headers[%q] = str(%s)\n", a.pyName, a.param.Name, a.pyName)
		}
	}

	path := ep.Path
	hasPathParams := false
	for _, a := range args {
		if !a.isBody && a.param.In == parser.LocationPath {
			path = strings.ReplaceAll(path, "{"+a.param.Name+"}", "{"+a.pyName+"}")
			hasPathParams = true
		}
	}
	if hasPathParams {
		fmt.Fprintf(b, "    path = f%q\n", path)
	} else {
		fmt.Fprintf(b, "    path = %q\n", path)
	}

	b.WriteString("    async with httpx.AsyncClient(timeout=TIMEOUT) as client:\n")
	fmt.Fprintf(b, "        response = await client.request(\n            %q,\n", string(ep.Method))
	b.WriteString("            f\"{BASE_URL}{path}\",\n")
	b.WriteString("            params=params,\n")
	b.WriteString("            headers=headers,\n")
	if ep.RequestBody != nil {
		b.WriteString("            json=body,\n")
	}
	b.WriteString("            auth=AUTH,\n")
	b.WriteString("        )\n")
	b.WriteString("        response.raise_for_status()\n")
	b.WriteString("        return response.text\n")
}

func renderEnvExample(spec *parser.APISpec) string {
	var b strings.Builder
	b.WriteString("# Environment variables for MCP server\n")
	fmt.Fprintf(&b, "# Generated for: %s\n\n", spec.Name)

	if spec.Auth != nil {
		switch spec.Auth.Type {
		case parser.AuthAPIKey:
			desc := spec.Auth.Description
			if desc == "" {
				desc = "API authentication key"
			}
			fmt.Fprintf(&b, "# %s\n%s=your_api_key_here\n\n", desc, envName(spec.Auth.Name))
		case parser.AuthBearer:
			b.WriteString("# Bearer token for authentication\nBEARER_TOKEN=your_bearer_token_here\n\n")
		case parser.AuthBasic:
			b.WriteString("# Basic authentication credentials\nAPI_USERNAME=your_username\nAPI_PASSWORD=your_password\n\n")
		}
	}

	b.WriteString("# API Base URL (optional, override default)\n")
	fmt.Fprintf(&b, "API_BASE_URL=%s\n", spec.PrimaryServer())
	return b.String()
}

func envName(name string) string {
	name = strings.ReplaceAll(name, "-", "_")
	return strings.ToUpper(name)
}

// pyName converts an arbitrary parameter name into a Python identifier.
func pyName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "param"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "p_" + out
	}
	return out
}

func pyType(semantic string) string {
	switch semantic {
	case "str", "int", "float", "bool", "list", "dict":
		return semantic
	default:
		return "Any"
	}
}

func sanitizeToolName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ToLower(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}

func sanitizePackageName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ToLower(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "_")
}

func deriveToolName(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return ""
	}
	repl := strings.NewReplacer("/", " ", "_", " ", ".", " ", ",", " ", ":", " ")
	parts := strings.Fields(repl.Replace(t))
	if len(parts) == 0 {
		return ""
	}
	return sanitizeToolName(strings.Join(parts, "-"))
}
