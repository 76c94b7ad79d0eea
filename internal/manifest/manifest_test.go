package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestLoad_YAMLWithArgs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mcp.yaml", `
name: filesystem
command: node
args:
  - dist/index.js
  - --stdio
env:
  LOG_LEVEL: info
`)

	mf, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if mf.Name != "filesystem" {
		t.Errorf("Name = %q", mf.Name)
	}
	if mf.Command != "node" {
		t.Errorf("Command = %q", mf.Command)
	}
	if len(mf.Args) != 2 || mf.Args[0] != "dist/index.js" || mf.Args[1] != "--stdio" {
		t.Errorf("Args = %v", mf.Args)
	}
	if mf.Env["LOG_LEVEL"] != "info" {
		t.Errorf("Env = %v", mf.Env)
	}
}

func TestLoad_YAMLCommandString(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mcp.yaml", `command: python -m my_server --port 9100`)

	mf, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if mf.Command != "python" {
		t.Errorf("Command = %q", mf.Command)
	}
	want := []string{"-m", "my_server", "--port", "9100"}
	if len(mf.Args) != len(want) {
		t.Fatalf("Args = %v, want %v", mf.Args, want)
	}
	for i := range want {
		if mf.Args[i] != want[i] {
			t.Errorf("Args[%d] = %q, want %q", i, mf.Args[i], want[i])
		}
	}
}

func TestLoad_YAMLMissingCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mcp.yaml", `name: broken`)

	if _, err := Load(dir); err == nil {
		t.Error("Expected error for manifest without command")
	}
}

func TestLoad_YAMLInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mcp.yaml", "command: [unclosed")

	if _, err := Load(dir); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestLoad_PackageJSONBin(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{
		"name": "@scope/server-files",
		"bin": {"server-files": "dist/cli.js"},
		"main": "dist/index.js"
	}`)

	mf, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if mf.Command != "node" {
		t.Errorf("Command = %q", mf.Command)
	}
	if len(mf.Args) != 1 || mf.Args[0] != filepath.Join(dir, "dist/cli.js") {
		t.Errorf("Args = %v", mf.Args)
	}
}

func TestLoad_PackageJSONMultipleBinEntries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{
		"name": "serve",
		"bin": {"worker": "worker.js", "serve": "serve.js", "admin": "admin.js"}
	}`)

	// The entry named after the package must win every time
	want := filepath.Join(dir, "serve.js")
	for i := 0; i < 20; i++ {
		mf, err := Load(dir)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(mf.Args) != 1 || mf.Args[0] != want {
			t.Fatalf("Args = %v, want [%s]", mf.Args, want)
		}
	}
}

func TestLoad_PackageJSONBinWithoutNameMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{
		"name": "other",
		"bin": {"zeta": "z.js", "alpha": "a.js"}
	}`)

	// No bin entry matches the package name; the lexically first one wins
	want := filepath.Join(dir, "a.js")
	for i := 0; i < 20; i++ {
		mf, err := Load(dir)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(mf.Args) != 1 || mf.Args[0] != want {
			t.Fatalf("Args = %v, want [%s]", mf.Args, want)
		}
	}
}

func TestLoad_PackageJSONMainFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"name": "srv", "main": "index.js"}`)

	mf, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(mf.Args) != 1 || mf.Args[0] != filepath.Join(dir, "index.js") {
		t.Errorf("Args = %v", mf.Args)
	}
}

func TestLoad_PackageJSONEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"name": "srv"}`)

	if _, err := Load(dir); err == nil {
		t.Error("Expected error for package.json without bin or main")
	}
}

func TestLoad_YAMLPreferredOverPackageJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mcp.yaml", `command: uvx my-server`)
	writeFile(t, dir, "package.json", `{"name": "srv", "main": "index.js"}`)

	mf, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if mf.Command != "uvx" {
		t.Errorf("mcp.yaml should win over package.json, got command %q", mf.Command)
	}
}

func TestLoad_NoManifest(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Expected error for directory without manifest")
	}
}
