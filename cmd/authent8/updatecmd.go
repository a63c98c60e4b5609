package authent8

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update authent8 to the latest GitHub release",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := selfUpdate(); err != nil {
				return fmt.Errorf("self-update: %w", err)
			}
			fmt.Println("authent8 is up to date")
			return nil
		},
	}
	rootCmd.AddCommand(cmd)
}
