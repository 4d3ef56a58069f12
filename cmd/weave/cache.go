package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand() *cobra.Command {
	var cwd string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the type lookup cache",
	}
	cmd.PersistentFlags().StringVar(&cwd, "cwd", ".", "Project directory holding weave.yaml")

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache entries and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadProject(cwd).store()
			if err != nil {
				return err
			}
			st, err := store.Stats()
			if err != nil {
				return fmt.Errorf("failed to read cache: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "📦 Type lookup cache: %s\n", store.Dir())
			fmt.Fprintf(out, "   Entries: %d\n", st.Entries)
			fmt.Fprintf(out, "   Size:    %s\n", formatSize(st.Size))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Remove every cached lookup",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadProject(cwd).store()
			if err != nil {
				return err
			}
			if err := store.Clean(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🧹 Cleared %s\n", store.Dir())
			return nil
		},
	})

	return cmd
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
