package main

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/aretw0/veneer/pkg/core"
)

var (
	listJSON bool
	listGlob string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listGlob != "" && !doublestar.ValidatePattern(listGlob) {
			return fmt.Errorf("invalid glob %q", listGlob)
		}
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Database().Close()

		docs, err := svc.ListDocuments(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}

		filtered := make([]core.Document, 0, len(docs))
		for _, doc := range docs {
			if listGlob != "" {
				if ok, _ := doublestar.Match(listGlob, doc.ID()); !ok {
					continue
				}
			}
			filtered = append(filtered, doc)
		}

		if listJSON {
			return writeJSON(cmd.OutOrStdout(), filtered, true)
		}
		for _, doc := range filtered {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", doc.ID(), doc.Rev())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output the documents in JSON format")
	listCmd.Flags().StringVar(&listGlob, "glob", "", "Only list ids matching a doublestar pattern (e.g. \"notes/**\")")
}
