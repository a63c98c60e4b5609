package authent8

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/authent8/authent8/internal/update"
)

var versionCheck bool

func init() {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the authent8 version",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Println("authent8", version)
			if versionCheck {
				latest, newer, err := update.Check(version, false)
				if err != nil {
					return err
				}
				if newer && latest != "" {
					fmt.Printf("new version available: v%s (run 'authent8 update')\n", latest)
				} else {
					fmt.Println("up to date")
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&versionCheck, "check", false, "check GitHub releases for a newer version")
	rootCmd.AddCommand(cmd)
}
