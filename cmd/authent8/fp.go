package authent8

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/authent8/authent8/internal/fpstore"
	"github.com/authent8/authent8/internal/types"
)

var (
	fpPath     string
	fpRule     string
	fpFile     string
	fpLine     int
	fpSnippet  string
	fpSeverity string
)

func init() {
	cmd := &cobra.Command{
		Use:   "fp",
		Short: "Manage suppressed false positives",
	}
	cmd.PersistentFlags().StringVarP(&fpPath, "path", "p", ".", "project root")
	rootCmd.AddCommand(cmd)

	list := &cobra.Command{
		Use:   "list",
		Short: "List suppressed findings",
		RunE: func(_ *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			entries := store.Entries()
			if len(entries) == 0 {
				fmt.Println("No suppressed findings.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %-8s %s  %s:%d\n", e.Fingerprint, e.Severity, e.RuleID, e.File, e.Line)
			}
			return nil
		},
	}
	cmd.AddCommand(list)

	add := &cobra.Command{
		Use:   "add",
		Short: "Suppress a finding by rule, file, and code (or line)",
		RunE: func(_ *cobra.Command, _ []string) error {
			if fpRule == "" || fpFile == "" {
				return fmt.Errorf("--rule and --file are required")
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			f := types.Finding{
				RuleID:      fpRule,
				File:        fpFile,
				Line:        fpLine,
				CodeSnippet: fpSnippet,
				Severity:    types.Severity(fpSeverity),
			}
			if err := store.Add(f); err != nil {
				return err
			}
			fmt.Println("Suppressed", fpstore.Fingerprint(f))
			return nil
		},
	}
	add.Flags().StringVar(&fpRule, "rule", "", "rule identifier")
	add.Flags().StringVar(&fpFile, "file", "", "project-relative file path")
	add.Flags().IntVar(&fpLine, "line", 0, "1-based line (fallback identity when no code is given)")
	add.Flags().StringVar(&fpSnippet, "code", "", "code snippet (preferred identity, survives line shifts)")
	add.Flags().StringVar(&fpSeverity, "severity", string(types.SevMedium), "severity recorded with the entry")
	cmd.AddCommand(add)

	remove := &cobra.Command{
		Use:   "remove <fingerprint>",
		Short: "Unsuppress a finding by fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.Remove(args[0]); err != nil {
				return err
			}
			fmt.Println("Removed", args[0])
			return nil
		},
	}
	cmd.AddCommand(remove)
}

func openStore() (*fpstore.Store, error) {
	abs, err := filepath.Abs(fpPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("project root %s: %w", fpPath, err)
	}
	return fpstore.Load(abs), nil
}
