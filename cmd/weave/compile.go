package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/recera/weave/cmd/weave/internal/ui"
	"github.com/recera/weave/internal/compiler"
	"github.com/recera/weave/internal/diag"
)

type compileFlags struct {
	verbose bool
	tui     bool
}

func newCompileCommand() *cobra.Command {
	var (
		cwd     string
		outDir  string
		pkg     string
		jobs    int
		verbose bool
		useTUI  bool
	)

	cmd := &cobra.Command{
		Use:   "compile [paths...]",
		Short: "Compile .weave templates to Go",
		Long: `Compiles the named templates, or every .weave file under the configured
source directory, and writes each component next to its template or into
the output directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := loadProject(cwd)
			if cmd.Flags().Changed("out") {
				p.cfg.Compile.OutDir = outDir
			}
			if cmd.Flags().Changed("package") {
				p.cfg.Compile.Package = pkg
			}
			if cmd.Flags().Changed("jobs") {
				p.cfg.Compile.Jobs = jobs
			}
			return runCompile(cmd.Context(), p, args, compileFlags{verbose: verbose, tui: useTUI},
				cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&cwd, "cwd", ".", "Project directory holding weave.yaml")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory for generated files (defaults to next to each template)")
	cmd.Flags().StringVarP(&pkg, "package", "p", "main", "Package clause of generated files")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 4, "Number of templates compiled at once")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print stage timings")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "Show an interactive progress view")

	return cmd
}

func runCompile(ctx context.Context, p *project, paths []string, flags compileFlags, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(paths) == 0 {
		paths = []string{p.path(p.cfg.Compile.SrcDir)}
	}

	startTime := time.Now()
	files, err := compiler.Discover(paths)
	if err != nil {
		return fmt.Errorf("failed to find templates: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no %s files found", compiler.Ext)
	}

	units := make([]compiler.Unit, 0, len(files))
	for _, f := range files {
		u, err := compiler.ReadUnit(f)
		if err != nil {
			return err
		}
		units = append(units, u)
	}

	c, err := p.compiler()
	if err != nil {
		return err
	}

	var outcomes []compiler.Outcome
	if flags.tui {
		outcomes, err = compileWithTUI(ctx, c, units, files, p.cfg.Compile.Jobs)
		if err != nil {
			return err
		}
	} else {
		outcomes = c.CompileAll(ctx, units, p.cfg.Compile.Jobs, nil)
	}

	failed := report(outcomes, p.path(p.cfg.Compile.OutDir), flags.verbose, stdout, stderr)
	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed", failed, len(units))
	}
	fmt.Fprintf(stdout, "✨ Compiled %d templates in %v\n", len(units), time.Since(startTime).Round(time.Millisecond))
	return nil
}

func compileWithTUI(ctx context.Context, c *compiler.Compiler, units []compiler.Unit, files []string, jobs int) ([]compiler.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(ui.New(files))
	done := make(chan []compiler.Outcome, 1)
	go func() {
		done <- c.CompileAll(ctx, units, jobs, func(i int, o compiler.Outcome) {
			msg := ui.FinishedMsg{Index: i, Err: o.Err}
			if o.Result != nil {
				msg.Component = o.Result.Component
				msg.Warnings = len(o.Result.Warnings)
			}
			program.Send(msg)
		})
	}()

	final, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to run progress view: %w", err)
	}
	if m, ok := final.(ui.Model); ok && m.Aborted() {
		cancel()
	}
	return <-done, nil
}

// report prints diagnostics and writes successful outputs. It returns the
// number of failed units.
func report(outcomes []compiler.Outcome, outDir string, verbose bool, stdout, stderr io.Writer) int {
	failed := 0
	for _, o := range outcomes {
		res := o.Result
		if len(res.Warnings) > 0 {
			diag.RenderAll(stderr, res.Source, res.Warnings)
		}
		if o.Err != nil {
			failed++
			renderError(stderr, res, o.Err)
			continue
		}

		path, err := compiler.Write(res, outDir)
		if err != nil {
			failed++
			fmt.Fprintf(stderr, "❌ %v\n", err)
			continue
		}
		fmt.Fprintf(stdout, "✅ %s → %s (%s)\n", res.Unit.File, path, res.Component)
		if verbose {
			for _, tm := range res.Timings {
				fmt.Fprintf(stdout, "   %-9s %v\n", tm.Stage, tm.Duration)
			}
		}
	}
	return failed
}

func renderError(w io.Writer, res *compiler.Result, err error) {
	var d *diag.Diagnostic
	if errors.As(err, &d) {
		diag.Render(w, res.Source, d)
		return
	}
	fmt.Fprintf(w, "❌ %v\n", err)
}
