// Package platform maps the running operating system to the host
// application's file locations.
//
// The host application (the desktop assistant that launches MCP servers)
// keeps its server configuration and its logs in fixed, per-OS locations
// under the user's home or profile directory. Everything else in this
// codebase goes through a Resolver instead of branching on runtime.GOOS.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Resolver reports the host application's configuration file path and log
// directory. Implementations are pure functions of the host OS: no side
// effects, safe to call from any goroutine.
type Resolver interface {
	// ConfigPath returns the absolute path of the host configuration file.
	// The file may not exist yet; callers treat a missing file as an empty
	// document.
	ConfigPath() (string, error)

	// LogDir returns the absolute path of the host log directory.
	LogDir() (string, error)
}

// UnsupportedPlatformError indicates the running OS is not one of the
// recognized variants.
type UnsupportedPlatformError struct {
	OS string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: %s (supported: darwin, windows, linux)", e.OS)
}

// NewResolver selects the resolver for the running operating system.
// Returns an UnsupportedPlatformError for anything other than macOS,
// Windows, or Linux.
func NewResolver() (Resolver, error) {
	return ForOS(runtime.GOOS)
}

// ForOS returns the resolver for an explicit GOOS value.
func ForOS(goos string) (Resolver, error) {
	switch goos {
	case "darwin":
		return darwinResolver{}, nil
	case "windows":
		return windowsResolver{}, nil
	case "linux":
		return linuxResolver{}, nil
	default:
		return nil, &UnsupportedPlatformError{OS: goos}
	}
}

// darwinResolver places the host files under ~/Library, following macOS
// application conventions.
type darwinResolver struct{}

func (darwinResolver) ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json"), nil
}

func (darwinResolver) LogDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, "Library", "Logs", "Claude"), nil
}

// windowsResolver places the host files under the roaming profile
// (%APPDATA%), falling back to the conventional location below the home
// directory when the variable is unset.
type windowsResolver struct{}

func (windowsResolver) appData() (string, error) {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return appData, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, "AppData", "Roaming"), nil
}

func (r windowsResolver) ConfigPath() (string, error) {
	appData, err := r.appData()
	if err != nil {
		return "", err
	}
	return filepath.Join(appData, "Claude", "claude_desktop_config.json"), nil
}

func (r windowsResolver) LogDir() (string, error) {
	appData, err := r.appData()
	if err != nil {
		return "", err
	}
	return filepath.Join(appData, "Claude", "logs"), nil
}

// linuxResolver follows the XDG-style layout the host application uses on
// Linux.
type linuxResolver struct{}

func (linuxResolver) ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json"), nil
}

func (linuxResolver) LogDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "Claude", "logs"), nil
}

// Static is a Resolver with fixed paths. It exists for tests and for the
// --config/--log-dir overrides on the CLI.
type Static struct {
	Config string
	Logs   string
}

func (s Static) ConfigPath() (string, error) { return s.Config, nil }
func (s Static) LogDir() (string, error)     { return s.Logs, nil }
