package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// MaxServerNameLength bounds server names so they stay usable as map
	// keys, path segments, and log tokens.
	MaxServerNameLength = 64
)

var (
	// Safe patterns for validation
	serverNamePattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	sourceRefPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]+/[a-zA-Z0-9_.-]+$`)
	versionSpecPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.+-]*$`)
)

// ValidationError indicates malformed caller input. It is returned before
// any persistence or filesystem side effect has happened.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateServerName ensures a server name is safe for use as a config key,
// a log search token, and a path segment. Names can never be interpreted as
// a path-traversal segment.
func ValidateServerName(name string) error {
	if name == "" {
		return &ValidationError{Field: "server name", Reason: "cannot be empty"}
	}
	if len(name) > MaxServerNameLength {
		return &ValidationError{Field: "server name", Reason: fmt.Sprintf("too long (maximum %d characters)", MaxServerNameLength)}
	}
	if strings.HasPrefix(name, "-") {
		return &ValidationError{Field: "server name", Reason: "cannot start with '-'"}
	}
	if !serverNamePattern.MatchString(name) {
		return &ValidationError{Field: "server name", Reason: "only a-z, A-Z, 0-9, _, - allowed"}
	}
	return nil
}

// ValidateSourceRef ensures a source reference has the owner/repo shape.
// The reference is validated, never fetched, here.
func ValidateSourceRef(ref string) error {
	if ref == "" {
		return &ValidationError{Field: "source ref", Reason: "cannot be empty"}
	}
	if strings.Contains(ref, "..") {
		return &ValidationError{Field: "source ref", Reason: "cannot contain '..'"}
	}
	if !sourceRefPattern.MatchString(ref) {
		return &ValidationError{Field: "source ref", Reason: "must be in owner/repo form"}
	}
	return nil
}

// ValidateVersionSpec ensures a version spec is either the "latest" sentinel
// or a well-formed tag name.
func ValidateVersionSpec(spec string) error {
	if spec == "" || spec == "latest" {
		return nil
	}
	if strings.HasPrefix(spec, "-") {
		return &ValidationError{Field: "version spec", Reason: "cannot start with '-'"}
	}
	if !versionSpecPattern.MatchString(spec) {
		return &ValidationError{Field: "version spec", Reason: "contains invalid characters"}
	}
	return nil
}

// ValidateEnvName ensures an environment variable name is well formed.
func ValidateEnvName(name string) error {
	if name == "" {
		return &ValidationError{Field: "env var name", Reason: "cannot be empty"}
	}
	for i, c := range name {
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return &ValidationError{Field: "env var name", Reason: "cannot start with a digit"}
			}
		default:
			return &ValidationError{Field: "env var name", Reason: fmt.Sprintf("invalid character %q", c)}
		}
	}
	return nil
}

// SanitizePath ensures a path is absolute and doesn't contain traversal
// attempts.
func SanitizePath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("path must be absolute: %s", path)
	}

	// Check for .. before cleaning (filepath.Clean removes them)
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path contains traversal elements: %s", path)
	}

	return filepath.Clean(path), nil
}
