// Package manifest inspects a resolved artifact directory to determine how
// the host application should launch the server it contains.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"mcpdock/pkg/cmdutil"
)

// Manifest is the launch instruction extracted from an artifact.
type Manifest struct {
	Name    string
	Command string
	Args    []string
	// Env holds default env vars declared by the artifact; record-level
	// env vars override these at deploy time.
	Env map[string]string
}

// manifestFile is the mcp.yaml shape. Command can be a full command string
// ("node dist/index.js --stdio") or a bare executable with an explicit args
// list.
type manifestFile struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// packageJSON is the subset of an npm package manifest used as a fallback
// when the artifact carries no mcp.yaml.
type packageJSON struct {
	Name string            `json:"name"`
	Main string            `json:"main"`
	Bin  map[string]string `json:"bin"`
}

// Load reads the artifact's manifest and returns its launch instruction.
// Lookup order: mcp.yaml, mcp.yml, then package.json.
func Load(dir string) (*Manifest, error) {
	for _, name := range []string{"mcp.yaml", "mcp.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return loadYAML(path)
		}
	}

	pkgPath := filepath.Join(dir, "package.json")
	if _, err := os.Stat(pkgPath); err == nil {
		return loadPackageJSON(dir, pkgPath)
	}

	return nil, fmt.Errorf("no manifest found in %s (expected mcp.yaml or package.json)", dir)
}

func loadYAML(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	if mf.Command == "" {
		return nil, fmt.Errorf("manifest %s is missing a command", path)
	}

	command := mf.Command
	args := mf.Args

	// A command string with no explicit args list may embed its arguments
	if len(args) == 0 {
		parts, err := cmdutil.SplitCommand(mf.Command)
		if err != nil {
			return nil, fmt.Errorf("invalid command in manifest %s: %w", path, err)
		}
		command = parts[0]
		args = parts[1:]
	}

	return &Manifest{
		Name:    mf.Name,
		Command: command,
		Args:    args,
		Env:     mf.Env,
	}, nil
}

// loadPackageJSON derives a node launch instruction from an npm package
// manifest. The bin entry named after the package wins (npm's convention
// for the primary executable); with no such entry the lexically first bin
// entry is used, falling back to the main module.
func loadPackageJSON(dir, path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package.json: %w", err)
	}

	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse package.json: %w", err)
	}

	entry := pkg.Bin[pkg.Name]
	if entry == "" && len(pkg.Bin) > 0 {
		keys := make([]string, 0, len(pkg.Bin))
		for key := range pkg.Bin {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		entry = pkg.Bin[keys[0]]
	}
	if entry == "" {
		entry = pkg.Main
	}
	if entry == "" {
		return nil, fmt.Errorf("package.json in %s declares no bin or main entry", dir)
	}

	return &Manifest{
		Name:    pkg.Name,
		Command: "node",
		Args:    []string{filepath.Join(dir, entry)},
	}, nil
}
