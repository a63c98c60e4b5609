// Package tools resolves the external scanner binaries that adapters invoke.
package tools

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// NotFoundError reports that a wrapped scanner binary could not be located.
// The orchestrator treats it as a non-fatal, reportable condition.
type NotFoundError struct {
	Tool string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s binary not found in PATH or %s", e.Tool, cacheDir())
}

// Locator resolves a tool name to an executable path. Adapters receive a
// Locator at construction instead of probing the process environment
// themselves, so lookups are testable without touching the real filesystem.
type Locator interface {
	Lookup(tool string) (string, error)
}

// ExecLocator finds binaries using, in order: an explicit per-tool override,
// $PATH, then the per-user cache directory (~/.authent8/bin) where installers
// drop downloaded binaries.
type ExecLocator struct {
	// Overrides maps a tool name to an explicit binary path, typically
	// sourced from config.
	Overrides map[string]string
}

// Lookup implements Locator.
func (l ExecLocator) Lookup(tool string) (string, error) {
	if custom := l.Overrides[tool]; custom != "" {
		if _, err := os.Stat(custom); err == nil {
			return custom, nil
		}
		// A dead override is still "binary missing" to callers classifying
		// failures, so keep the typed error and note the attempted path.
		return "", fmt.Errorf("configured path %s: %w", custom, &NotFoundError{Tool: tool})
	}

	if path, err := exec.LookPath(tool); err == nil {
		return path, nil
	}

	cached := filepath.Join(cacheDir(), tool)
	if runtime.GOOS == "windows" {
		cached += ".exe"
	}
	if _, err := os.Stat(cached); err == nil {
		return cached, nil
	}

	return "", &NotFoundError{Tool: tool}
}

// StaticLocator serves lookups from a fixed map; tools absent from the map
// resolve to NotFoundError. Used in tests.
type StaticLocator map[string]string

// Lookup implements Locator.
func (l StaticLocator) Lookup(tool string) (string, error) {
	if path, ok := l[tool]; ok {
		return path, nil
	}
	return "", &NotFoundError{Tool: tool}
}

func cacheDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".authent8", "bin")
}
