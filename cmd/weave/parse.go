package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recera/weave/internal/compiler"
	"github.com/recera/weave/internal/diag"
	"github.com/recera/weave/internal/template"
)

func newParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a template and print it in canonical form",
		Long: `Parses a template, reports syntax errors and warnings, and prints the
elements back as template source.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := compiler.ReadUnit(args[0])
			if err != nil {
				return err
			}

			src := diag.NewSource(u.File, u.Source)
			warns := &diag.List{}
			f, err := template.ParseFile(src, warns)
			diag.RenderAll(cmd.ErrOrStderr(), src, warns.All())
			if err != nil {
				var d *diag.Diagnostic
				if errors.As(err, &d) {
					diag.Render(cmd.ErrOrStderr(), src, d)
					return fmt.Errorf("failed to parse %s", u.File)
				}
				return err
			}

			out := cmd.OutOrStdout()
			if f.HasHost {
				fmt.Fprintf(out, "host block: %d bytes\n", len(f.Host.Text))
			}
			fmt.Fprint(out, template.Format(f.Elements))
			return nil
		},
	}
}
