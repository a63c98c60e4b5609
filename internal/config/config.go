package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk YAML configuration shape for Authent8. All fields
// are pointers so "unset" stays distinguishable from a zero value when the
// local and global files are merged with CLI flags.
type FileConfig struct {
	APIKey  *string `yaml:"api_key"`
	Model   *string `yaml:"model"`
	BaseURL *string `yaml:"base_url"`

	Offline *bool   `yaml:"offline"`
	NoAI    *bool   `yaml:"no_ai"`
	Workers *int    `yaml:"workers"`
	FailOn  *string `yaml:"fail_on"`
	NoColor *bool   `yaml:"no_color"`

	// ScanTimeBudget caps the whole scan, Go duration syntax ("10m").
	ScanTimeBudget *string `yaml:"scan_time_budget"`

	Tools *ToolsConfig `yaml:"tools"`
}

// ToolsConfig holds per-scanner overrides.
type ToolsConfig struct {
	// Binaries maps a tool name to an explicit binary path, bypassing the
	// $PATH and ~/.authent8/bin lookup.
	Binaries map[string]string `yaml:"binaries"`

	// Disable lists tool names removed from every scan plan.
	Disable []string `yaml:"disable"`
}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadLocal searches for a repo-local config file in the given root.
// It supports .authent8.yml/.yaml and authent8.yml/.yaml.
func LoadLocal(repoRoot string) (FileConfig, error) {
	var cfg FileConfig
	for _, name := range []string{".authent8.yml", ".authent8.yaml", "authent8.yml", "authent8.yaml"} {
		p := filepath.Join(repoRoot, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return cfg, errors.New("no local config")
}

// GlobalPath returns the global config file location under XDG base
// directory or ~/.config, or "" when neither is resolvable.
func GlobalPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return ""
	}
	return filepath.Join(base, "authent8", "config.yml")
}

// LoadGlobal loads the global config file.
func LoadGlobal() (FileConfig, error) {
	var cfg FileConfig
	p := GlobalPath()
	if p == "" {
		return cfg, errors.New("no config dir")
	}
	if _, err := os.Stat(p); err == nil {
		return LoadFile(p)
	}
	return cfg, errors.New("no global config")
}

// SaveGlobal writes cfg to the global config path, creating the directory if
// needed. The file is user-only because it may hold an API key.
func SaveGlobal(cfg FileConfig) error {
	p := GlobalPath()
	if p == "" {
		return errors.New("no config dir")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}

// GetToolsConfig returns the tools section, defaulted when absent.
func (fc FileConfig) GetToolsConfig() ToolsConfig {
	if fc.Tools == nil {
		return ToolsConfig{}
	}
	return *fc.Tools
}

// IsDisabled reports whether the tool is listed in the disable set.
func (tc ToolsConfig) IsDisabled(tool string) bool {
	for _, name := range tc.Disable {
		if name == tool {
			return true
		}
	}
	return false
}
