package deploy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mcpdock/pkg/fileutil"
)

const (
	// backupSuffix marks timestamped pre-mutation copies of the host
	// configuration file.
	backupSuffix = ".backup."

	// configFileMode keeps the host config readable only by the owner,
	// since env entries may carry credentials.
	configFileMode = 0600
)

// Entry is one server's launch instruction inside the host configuration
// file.
type Entry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

// Document is the host configuration file: a map of server name to entry.
type Document map[string]Entry

// ConfigIOError indicates a failure reading, parsing, or atomically writing
// the host configuration file.
type ConfigIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *ConfigIOError) Error() string {
	return fmt.Sprintf("config %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConfigIOError) Unwrap() error {
	return e.Err
}

// LoadDocument reads the host configuration file. A missing file is an
// empty document, not an error.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Document{}, nil
	}
	if err != nil {
		return nil, &ConfigIOError{Op: "read", Path: path, Err: err}
	}

	doc := Document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigIOError{Op: "parse", Path: path, Err: err}
	}
	return doc, nil
}

// writeDocumentAtomic writes doc to path via a temporary file in the same
// directory. The temporary file is re-read and parsed before the rename, so
// a well-formed document is guaranteed to land or the live file stays
// untouched.
func writeDocumentAtomic(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &ConfigIOError{Op: "encode", Path: path, Err: err}
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &ConfigIOError{Op: "write", Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &ConfigIOError{Op: "write", Path: path, Err: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return &ConfigIOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return &ConfigIOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return &ConfigIOError{Op: "write", Path: path, Err: err}
	}

	// Validate the temp file parses before it goes live
	written, err := os.ReadFile(tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return &ConfigIOError{Op: "validate", Path: path, Err: err}
	}
	var check Document
	if err := json.Unmarshal(written, &check); err != nil {
		_ = os.Remove(tmpPath)
		return &ConfigIOError{Op: "validate", Path: path, Err: err}
	}

	if err := os.Chmod(tmpPath, configFileMode); err != nil {
		_ = os.Remove(tmpPath)
		return &ConfigIOError{Op: "write", Path: path, Err: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return &ConfigIOError{Op: "replace", Path: path, Err: err}
	}
	return nil
}

// backupConfig copies the live config to a timestamped backup path.
// Returns the backup path, or empty string when there is nothing to back up.
func backupConfig(path string) (string, error) {
	if !fileutil.FileExists(path) {
		return "", nil
	}

	backupPath := path + backupSuffix + time.Now().Format("20060102-150405.000000000")
	if err := fileutil.CopyFile(path, backupPath); err != nil {
		return "", &ConfigIOError{Op: "backup", Path: path, Err: err}
	}
	return backupPath, nil
}

// restoreConfig copies a backup back over the live config.
func restoreConfig(backupPath, path string) error {
	if backupPath == "" {
		return nil
	}
	if err := fileutil.CopyFile(backupPath, path); err != nil {
		return &ConfigIOError{Op: "restore", Path: path, Err: err}
	}
	return nil
}

// pruneBackups removes all but the newest keep backups of path. Failures
// here never fail the surrounding operation; callers log and move on.
func pruneBackups(path string, keep int) error {
	dir := filepath.Dir(path)
	prefix := filepath.Base(path) + backupSuffix

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	var backups []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, entry.Name())
		}
	}
	if len(backups) <= keep {
		return nil
	}

	// Timestamped suffixes sort lexically; oldest first
	sort.Strings(backups)
	for _, name := range backups[:len(backups)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", name, err)
		}
	}
	return nil
}
