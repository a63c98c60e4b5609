package authent8

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagJSON          bool
	flagVerbose       bool
	flagNoColor       bool
	flagOffline       bool
	flagNoAI          bool
	flagWorkers       int
	flagFailOn        string
	flagNoUpdateCheck bool
	flagSelfUpdate    bool

	version = "0.1.0"
)

// rootCmd is the base Cobra command for the Authent8 CLI.
var rootCmd = &cobra.Command{
	Use:           "authent8",
	Short:         "Scan your project with multiple security tools",
	Long:          "Authent8 runs vulnerability, SAST, secret, and IaC scanners in parallel, removes known false positives, and validates the rest with AI.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the Authent8 CLI. It should be called by the main package.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show snippets, fixes and reasoning per finding")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colorized output")
	rootCmd.PersistentFlags().BoolVar(&flagOffline, "offline", false, "skip scanners that need a live vulnerability feed")
	rootCmd.PersistentFlags().BoolVar(&flagNoAI, "no-ai", false, "skip AI validation even when a credential is configured")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "concurrent scanners (0 = default)")
	rootCmd.PersistentFlags().StringVar(&flagFailOn, "fail-on", "", "exit non-zero on findings at or above low|medium|high|critical")
	rootCmd.PersistentFlags().BoolVar(&flagNoUpdateCheck, "no-update-check", false, "disable update check")
	rootCmd.PersistentFlags().BoolVar(&flagSelfUpdate, "self-update", false, "update authent8 to the latest release")
}
