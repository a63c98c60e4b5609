package authent8

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/authent8/authent8/internal/config"
)

var (
	cfgOutput  string
	cfgOffline bool
	cfgNoAI    bool
	cfgWorkers int
	cfgFailOn  string
	cfgDisable string
)

func init() {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}
	rootCmd.AddCommand(cfgCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a .authent8.yml with selected options",
		RunE:  runConfigInit,
	}
	cfgCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&cfgOutput, "output", ".authent8.yml", "output file path")
	initCmd.Flags().BoolVar(&cfgOffline, "offline", false, "default to offline scans")
	initCmd.Flags().BoolVar(&cfgNoAI, "no-ai", false, "disable AI validation by default")
	initCmd.Flags().IntVar(&cfgWorkers, "workers", 0, "concurrent scanners (0=default)")
	initCmd.Flags().StringVar(&cfgFailOn, "fail-on", "", "fail threshold: low|medium|high|critical")
	initCmd.Flags().StringVar(&cfgDisable, "disable", "", "comma-separated tool names to disable")

	setKey := &cobra.Command{
		Use:   "set-key",
		Short: "Store the AI validation API key in the global config",
		RunE:  runConfigSetKey,
	}
	cfgCmd.AddCommand(setKey)

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (local over global)",
		RunE:  runConfigShow,
	}
	cfgCmd.AddCommand(show)
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	fc := config.FileConfig{
		Offline: boolPtr(cfgOffline),
		NoAI:    boolPtr(cfgNoAI),
		Workers: intPtr(cfgWorkers),
		FailOn:  optStrPtr(cfgFailOn),
	}
	if d := strings.TrimSpace(cfgDisable); d != "" {
		var names []string
		for _, name := range strings.Split(d, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		fc.Tools = &config.ToolsConfig{Disable: names}
	}

	b, err := yaml.Marshal(&fc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfgOutput, b, 0o644); err != nil {
		return err
	}
	fmt.Println("Wrote", cfgOutput)
	return nil
}

func runConfigSetKey(_ *cobra.Command, _ []string) error {
	fmt.Fprint(os.Stderr, "API key: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return fmt.Errorf("empty key")
	}

	cfg, _ := config.LoadGlobal()
	cfg.APIKey = &key
	if err := config.SaveGlobal(cfg); err != nil {
		return err
	}
	fmt.Println("Saved to", config.GlobalPath())
	return nil
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	gcfg, _ := config.LoadGlobal()
	lcfg, _ := config.LoadLocal(".")

	eff := mergeConfig(lcfg, gcfg)
	if eff.APIKey != nil {
		masked := "********"
		eff.APIKey = &masked
	}

	b, err := yaml.Marshal(&eff)
	if err != nil {
		return err
	}
	fmt.Printf("# global: %s\n", config.GlobalPath())
	os.Stdout.Write(b)
	return nil
}

// mergeConfig overlays local on top of global, field by field.
func mergeConfig(local, global config.FileConfig) config.FileConfig {
	out := global
	if local.APIKey != nil {
		out.APIKey = local.APIKey
	}
	if local.Model != nil {
		out.Model = local.Model
	}
	if local.BaseURL != nil {
		out.BaseURL = local.BaseURL
	}
	if local.Offline != nil {
		out.Offline = local.Offline
	}
	if local.NoAI != nil {
		out.NoAI = local.NoAI
	}
	if local.Workers != nil {
		out.Workers = local.Workers
	}
	if local.FailOn != nil {
		out.FailOn = local.FailOn
	}
	if local.NoColor != nil {
		out.NoColor = local.NoColor
	}
	if local.ScanTimeBudget != nil {
		out.ScanTimeBudget = local.ScanTimeBudget
	}
	if local.Tools != nil {
		out.Tools = local.Tools
	}
	return out
}

func optStrPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
func intPtr(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
func boolPtr(v bool) *bool { return &v }
