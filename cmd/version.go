package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "development"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the glaciers version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("glaciers %s\n", Version)
	},
}
