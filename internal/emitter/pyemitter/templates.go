package pyemitter

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/mark3labs/openapi2mcp/internal/parser"
)

// TemplateData is the context shared by the project templates.
type TemplateData struct {
	ToolName    string
	PackageName string
	Spec        *parser.APISpec
	Description string
	BaseURL     string
}

func newTemplateData(toolName, packageName string, spec *parser.APISpec) TemplateData {
	desc := spec.Description
	if desc == "" {
		desc = fmt.Sprintf("MCP server for %s", spec.Name)
	}
	return TemplateData{
		ToolName:    toolName,
		PackageName: packageName,
		Spec:        spec,
		Description: desc,
		BaseURL:     spec.PrimaryServer(),
	}
}

func renderTemplate(name, content string, data TemplateData) (string, error) {
	tmpl, err := template.New(name).Funcs(template.FuncMap{
		"toolName": func(e parser.Endpoint) string { return e.ToolName() },
		"tomlEscape": func(s string) string {
			s = strings.ReplaceAll(s, `\`, `\\`)
			return strings.ReplaceAll(s, `"`, `\"`)
		},
	}).Parse(content)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return b.String(), nil
}

const pyprojectTemplate = `[project]
name = "{{.PackageName}}"
version = "{{.Spec.Version}}"
description = "{{tomlEscape .Description}}"
requires-python = ">=3.10"
dependencies = [
    "mcp[cli]>=1.2.0",
    "httpx>=0.27.0",
]

[build-system]
requires = ["hatchling"]
build-backend = "hatchling.build"

[tool.hatch.build.targets.wheel]
packages = ["."]
`

const readmeTemplate = `# {{.ToolName}}

{{.Description}}

Generated MCP server for **{{.Spec.Name}}** v{{.Spec.Version}}, exposing
{{len .Spec.Endpoints}} API operations as MCP tools.

Base URL: ` + "`{{.BaseURL}}`" + `

## Setup

1. Install dependencies:

   ` + "```bash" + `
   pip install -e .
   ` + "```" + `
{{if .Spec.Auth}}
2. Copy ` + "`.env.example`" + ` to ` + "`.env`" + ` and fill in your credentials.

3. Run the server:
{{else}}
2. Run the server:
{{end}}
   ` + "```bash" + `
   python server.py
   ` + "```" + `

## Tools

| Tool | Method | Path | Summary |
|------|--------|------|---------|
{{range .Spec.Endpoints}}| ` + "`{{toolName .}}`" + ` | {{.Method}} | ` + "`{{.Path}}`" + ` | {{.Summary}} |
{{end}}`

const serverHeaderTemplate = `"""MCP server for {{.Spec.Name}}.

Generated by openapi2mcp - DO NOT MODIFY MANUALLY.
"""

import os
from typing import Any

import httpx
from mcp.server.fastmcp import FastMCP

mcp = FastMCP("{{.ToolName}}")

BASE_URL = os.getenv("API_BASE_URL", "{{.BaseURL}}")
TIMEOUT = float(os.getenv("API_TIMEOUT", "30"))
`

const serverFooter = `

if __name__ == "__main__":
    mcp.run()
`
