package deploy

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDocument_MissingFile(t *testing.T) {
	doc, err := LoadDocument(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadDocument on missing file should not error: %v", err)
	}
	if len(doc) != 0 {
		t.Errorf("Expected empty document, got %d entries", len(doc))
	}
}

func TestLoadDocument_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}

	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument on empty file should not error: %v", err)
	}
	if len(doc) != 0 {
		t.Errorf("Expected empty document, got %d entries", len(doc))
	}
}

func TestLoadDocument_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadDocument(path)
	if err == nil {
		t.Fatal("Expected parse error")
	}
	var cerr *ConfigIOError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected ConfigIOError, got %T", err)
	}
	if cerr.Op != "parse" {
		t.Errorf("Expected op parse, got %q", cerr.Op)
	}
}

func TestWriteDocumentAtomic_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	doc := Document{
		"github": {
			Command: "npx",
			Args:    []string{"-y", "@example/github-server"},
			Env:     map[string]string{"GITHUB_TOKEN": "tok"},
		},
	}

	if err := writeDocumentAtomic(path, doc); err != nil {
		t.Fatalf("writeDocumentAtomic failed: %v", err)
	}

	loaded, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	entry, ok := loaded["github"]
	if !ok {
		t.Fatal("Expected github entry after round trip")
	}
	if entry.Command != "npx" || len(entry.Args) != 2 {
		t.Errorf("Entry not preserved: %+v", entry)
	}
	if entry.Env["GITHUB_TOKEN"] != "tok" {
		t.Errorf("Env not preserved: %+v", entry.Env)
	}
}

func TestWriteDocumentAtomic_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	if err := writeDocumentAtomic(path, Document{}); err != nil {
		t.Fatalf("writeDocumentAtomic failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != configFileMode {
		t.Errorf("Expected mode %o, got %o", configFileMode, info.Mode().Perm())
	}
}

func TestWriteDocumentAtomic_NoStrayTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	if err := writeDocumentAtomic(path, Document{"a": {Command: "x"}}); err != nil {
		t.Fatalf("writeDocumentAtomic failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("Stray temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteDocumentAtomic_ValidJSONOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	if err := writeDocumentAtomic(path, Document{"srv": {Command: "run"}}); err != nil {
		t.Fatalf("writeDocumentAtomic failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Written file is not valid JSON: %v", err)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("Expected trailing newline")
	}
}

func TestBackupAndRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	original := []byte(`{"keep": {"command": "orig", "args": []}}` + "\n")
	if err := os.WriteFile(path, original, 0600); err != nil {
		t.Fatal(err)
	}

	backupPath, err := backupConfig(path)
	if err != nil {
		t.Fatalf("backupConfig failed: %v", err)
	}
	if backupPath == "" {
		t.Fatal("Expected a backup path for an existing file")
	}

	// Clobber the live file, then restore
	if err := os.WriteFile(path, []byte("garbage"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := restoreConfig(backupPath, path); err != nil {
		t.Fatalf("restoreConfig failed: %v", err)
	}

	restored, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(restored) != string(original) {
		t.Errorf("Restored bytes differ from original:\ngot  %q\nwant %q", restored, original)
	}
}

func TestBackupConfig_NoFile(t *testing.T) {
	backupPath, err := backupConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("backupConfig on missing file should not error: %v", err)
	}
	if backupPath != "" {
		t.Errorf("Expected empty backup path, got %q", backupPath)
	}
}

func TestRestoreConfig_EmptyBackupPath(t *testing.T) {
	if err := restoreConfig("", filepath.Join(t.TempDir(), "config.json")); err != nil {
		t.Errorf("restoreConfig with empty backup path should be a no-op: %v", err)
	}
}

func TestPruneBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	names := []string{
		"config.json.backup.20240101-000000.000000001",
		"config.json.backup.20240101-000000.000000002",
		"config.json.backup.20240101-000000.000000003",
		"config.json.backup.20240101-000000.000000004",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	if err := pruneBackups(path, 2); err != nil {
		t.Fatalf("pruneBackups failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var remaining []string
	for _, e := range entries {
		remaining = append(remaining, e.Name())
	}
	if len(remaining) != 2 {
		t.Fatalf("Expected 2 backups to remain, got %v", remaining)
	}
	// The newest two survive
	if remaining[0] != names[2] || remaining[1] != names[3] {
		t.Errorf("Wrong backups kept: %v", remaining)
	}
}

func TestPruneBackups_UnderLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path+".backup.20240101-000000.000000001", []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := pruneBackups(path, 5); err != nil {
		t.Fatalf("pruneBackups failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Backup under the limit should not be removed, dir has %d entries", len(entries))
	}
}
