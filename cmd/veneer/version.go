package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/veneer"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of veneer",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "veneer version %s\n", strings.TrimSpace(veneer.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
