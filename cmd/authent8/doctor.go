package authent8

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/authent8/authent8/internal/config"
	"github.com/authent8/authent8/internal/llm"
	"github.com/authent8/authent8/internal/tools"
)

// toolNames is the full wrapped-scanner set in plan order.
var toolNames = []string{
	"trivy", "semgrep", "gitleaks", "bandit",
	"checkov", "grype", "osv-scanner", "detect-secrets",
}

func init() {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check which scanners and credentials are available",
		RunE:  runDoctor,
	}
	cmd.Flags().StringVarP(&flagPath, "path", "p", ".", "project root (for tool overrides in local config)")
	rootCmd.AddCommand(cmd)
}

func runDoctor(_ *cobra.Command, _ []string) error {
	abs, _ := filepath.Abs(flagPath)
	var overrides map[string]string
	if c, err := config.LoadLocal(abs); err == nil {
		overrides = c.GetToolsConfig().Binaries
	} else if c, err := config.LoadGlobal(); err == nil {
		overrides = c.GetToolsConfig().Binaries
	}
	loc := tools.ExecLocator{Overrides: overrides}

	available := 0
	for _, name := range toolNames {
		if path, err := loc.Lookup(name); err == nil {
			fmt.Printf("  ✓ %-15s %s\n", name, path)
			available++
		} else {
			fmt.Printf("  ✗ %-15s not found\n", name)
		}
	}
	fmt.Printf("\n%d of %d scanners available\n", available, len(toolNames))

	if cfg := llm.FromEnv(); cfg.APIKey != "" {
		fmt.Println("AI validation: credential found")
	} else {
		fmt.Println("AI validation: no credential (set AUTHENT8_API_KEY, OPENAI_API_KEY, or GITHUB_TOKEN)")
	}
	return nil
}
