package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteRev string

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a document",
	Long:  `Write a tombstone for the document. Without --rev the current revision is deleted.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Database().Close()

		res, err := svc.DeleteDocument(cmd.Context(), args[0], deleteRev)
		if err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		return writeJSON(cmd.OutOrStdout(), res, false)
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().StringVar(&deleteRev, "rev", "", "Revision to delete")
}
