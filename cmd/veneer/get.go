package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/veneer/pkg/core"
)

var (
	getRev      string
	getRevs     bool
	getOpenRevs bool
	getPretty   bool
)

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Read a document",
	Long:  `Read a document by its ID and print it as JSON, after the outgoing transforms.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Database().Close()

		opts := core.Options{}
		if getRev != "" {
			opts[core.OptRev] = getRev
		}
		if getRevs {
			opts[core.OptRevs] = true
		}
		if getOpenRevs {
			opts[core.OptOpenRevs] = "all"
		}

		res, err := svc.Database().Get(cmd.Context(), args[0], opts)
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}
		if res.IsList() {
			return writeJSON(cmd.OutOrStdout(), res.Revs, getPretty)
		}
		return writeJSON(cmd.OutOrStdout(), res.Doc, getPretty)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringVar(&getRev, "rev", "", "Read a specific revision")
	getCmd.Flags().BoolVar(&getRevs, "revs", false, "Include the revision history")
	getCmd.Flags().BoolVar(&getOpenRevs, "open-revs", false, "Read every leaf revision")
	getCmd.Flags().BoolVar(&getPretty, "pretty", false, "Indent the JSON output")
}
