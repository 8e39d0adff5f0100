package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "storefront", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
