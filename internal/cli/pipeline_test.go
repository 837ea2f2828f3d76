package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalSpecYAML = "" +
	"openapi: 3.0.0\n" +
	"info:\n" +
	"  title: Test API\n" +
	"  version: '1.0.0'\n" +
	"servers:\n" +
	"  - url: https://api.example.com\n" +
	"paths:\n" +
	"  /hello:\n" +
	"    get:\n" +
	"      summary: Hello\n" +
	"      responses:\n" +
	"        '200':\n" +
	"          description: ok\n"

func writeSpecFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "spec.yaml")
	if err := os.WriteFile(path, []byte(minimalSpecYAML), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return path
}

func captureStdout(fn func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	defer func() { os.Stdout = old }()
	fn()
	_ = w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestGeneratePipelineDryRun(t *testing.T) {
	dir := t.TempDir()
	specPath := writeSpecFile(t, dir)
	outDir := filepath.Join(dir, "out")

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"generate", "--input", specPath, "--out", outDir, "--dry-run"})

	out := captureStdout(func() {
		if err := root.Execute(); err != nil {
			t.Fatalf("execute: %v", err)
		}
	})
	if !strings.Contains(out, "Planned writes to") {
		t.Fatalf("expected dry-run plan output, got: %s", out)
	}
	if !strings.Contains(out, "server.py") {
		t.Fatalf("expected server.py in plan, got: %s", out)
	}
	// Dry-run should not create the directory
	if _, err := os.Stat(outDir); err == nil {
		t.Fatalf("expected no writes on dry-run")
	}
}

func TestGeneratePipelineWritesProject(t *testing.T) {
	dir := t.TempDir()
	specPath := writeSpecFile(t, dir)
	outDir := filepath.Join(dir, "out")

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"generate", "--input", specPath, "--out", outDir})

	out := captureStdout(func() {
		if err := root.Execute(); err != nil {
			t.Fatalf("execute: %v", err)
		}
	})
	if !strings.Contains(out, "Generated") {
		t.Fatalf("expected generation summary, got: %s", out)
	}

	for _, rel := range []string{"server.py", "pyproject.toml", "README.md", ".env.example"} {
		if _, err := os.Stat(filepath.Join(outDir, rel)); err != nil {
			t.Fatalf("expected %s to exist: %v", rel, err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(outDir, "server.py"))
	if err != nil {
		t.Fatalf("read server.py: %v", err)
	}
	if !strings.Contains(string(raw), "async def list_hello(") {
		t.Fatalf("expected derived tool in server.py, got:\n%s", raw)
	}
}

func TestInspectPipeline(t *testing.T) {
	dir := t.TempDir()
	specPath := writeSpecFile(t, dir)

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"inspect", "--input", specPath})

	out := captureStdout(func() {
		if err := root.Execute(); err != nil {
			t.Fatalf("execute: %v", err)
		}
	})
	if !strings.Contains(out, "Test API") {
		t.Fatalf("expected spec title in summary, got: %s", out)
	}
	if !strings.Contains(out, "list_hello") {
		t.Fatalf("expected derived tool name, got: %s", out)
	}
}
