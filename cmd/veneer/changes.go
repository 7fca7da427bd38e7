package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/veneer/pkg/core"
)

var (
	changesSince       string
	changesLive        bool
	changesIncludeDocs bool
	changesLimit       int
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Print the changes feed",
	Long: `Print one JSON line per change. With --live the command keeps following
the database until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Database().Close()

		opts := core.Options{}
		if changesSince != "" {
			opts[core.OptSince] = changesSince
		}
		if changesIncludeDocs {
			opts[core.OptIncludeDocs] = true
		}
		if changesLimit > 0 {
			opts[core.OptLimit] = changesLimit
		}
		out := cmd.OutOrStdout()

		if !changesLive {
			resp, err := svc.Database().Changes(cmd.Context(), opts).Wait(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read changes: %w", err)
			}
			for _, c := range resp.Results {
				if err := writeJSON(out, c, false); err != nil {
					return err
				}
			}
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		changes, err := svc.Watch(ctx, opts)
		if err != nil {
			return fmt.Errorf("failed to watch changes: %w", err)
		}
		for c := range changes {
			if err := writeJSON(out, c, false); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(changesCmd)
	changesCmd.Flags().StringVar(&changesSince, "since", "", "Start after this sequence (\"now\" for new changes only)")
	changesCmd.Flags().BoolVar(&changesLive, "live", false, "Keep following the feed")
	changesCmd.Flags().BoolVar(&changesIncludeDocs, "include-docs", false, "Include the documents")
	changesCmd.Flags().IntVar(&changesLimit, "limit", 0, "Maximum number of changes")
}
