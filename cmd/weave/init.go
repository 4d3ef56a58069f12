package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/recera/weave/cmd/weave/internal/config"
)

func newInitCommand() *cobra.Command {
	var (
		force   bool
		srcDir  string
		outDir  string
		pkg     string
		runtime string
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a weave.yaml with default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path := filepath.Join(dir, config.FileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}

			cfg := config.DefaultConfig()
			if srcDir != "" {
				cfg.Compile.SrcDir = srcDir
			}
			cfg.Compile.OutDir = outDir
			if pkg != "" {
				cfg.Compile.Package = pkg
			}
			cfg.Compile.Runtime = runtime

			if err := config.Save(cfg, dir); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Created %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing weave.yaml")
	cmd.Flags().StringVar(&srcDir, "src", "", "Directory scanned for templates")
	cmd.Flags().StringVar(&outDir, "out", "", "Directory for generated files")
	cmd.Flags().StringVar(&pkg, "package", "", "Package clause of generated files")
	cmd.Flags().StringVar(&runtime, "runtime", "", "Import path prefix of the weave runtime packages")

	return cmd
}
