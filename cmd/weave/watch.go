package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/recera/weave/cmd/weave/internal/devhub"
	"github.com/recera/weave/internal/compiler"
)

func newWatchCommand() *cobra.Command {
	var (
		cwd   string
		serve bool
		port  int
		host  string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Recompile templates as they change",
		Long: `Compiles every template under the source directory, then watches it and
recompiles changed templates. With --serve, results are pushed to websocket
clients connected to the dev hub.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := loadProject(cwd)
			// CLI takes precedence
			if cmd.Flags().Changed("port") {
				p.cfg.Dev.Port = port
			}
			if cmd.Flags().Changed("host") {
				p.cfg.Dev.Host = host
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, p, serve, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&cwd, "cwd", ".", "Project directory holding weave.yaml")
	cmd.Flags().BoolVar(&serve, "serve", false, "Start the dev hub and push compile results")
	cmd.Flags().IntVarP(&port, "port", "p", 5174, "Port of the dev hub")
	cmd.Flags().StringVarP(&host, "host", "H", "localhost", "Host to bind the dev hub to")

	return cmd
}

type watchSession struct {
	project  *project
	compiler *compiler.Compiler
	watcher  *fsnotify.Watcher
	hub      *devhub.Hub
	stdout   io.Writer
	stderr   io.Writer
}

func runWatch(ctx context.Context, p *project, serve bool, stdout, stderr io.Writer) error {
	c, err := p.compiler()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	s := &watchSession{
		project:  p,
		compiler: c,
		watcher:  watcher,
		stdout:   stdout,
		stderr:   stderr,
	}

	root := p.path(p.cfg.Compile.SrcDir)
	if err := s.setupWatcher(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	if serve {
		s.hub = devhub.New()
		addr, err := s.hub.Start(fmt.Sprintf("%s:%d", p.cfg.Dev.Host, p.cfg.Dev.Port))
		if err != nil {
			return fmt.Errorf("failed to start dev hub: %w", err)
		}
		defer s.hub.Shutdown(context.Background())
		log.Printf("🔌 Dev hub listening on ws://%s%s", addr, devhub.Path)
	}

	files, err := compiler.Discover([]string{root})
	if err != nil {
		return err
	}
	s.rebuild(ctx, files)

	log.Printf("👀 Watching %s for changes...", root)
	s.watchFiles(ctx)
	return nil
}

func (s *watchSession) setupWatcher(root string) error {
	// Watch the source directory and subdirectories
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip hidden directories
		if info.IsDir() && path != root && strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}

		if info.IsDir() {
			return s.watcher.Add(path)
		}

		return nil
	})
}

func (s *watchSession) watchFiles(ctx context.Context) {
	debounce := time.NewTimer(0)
	<-debounce.C // drain initial timer

	var pendingEvents []fsnotify.Event

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			// New directories are watched too
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := s.setupWatcher(event.Name); err != nil {
						log.Printf("⚠️  Failed to watch %s: %v", event.Name, err)
					}
					continue
				}
			}

			if !isTemplate(event.Name) {
				continue
			}
			pendingEvents = append(pendingEvents, event)

			// Reset debounce timer
			debounce.Reset(s.project.cfg.Dev.Debounce)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Println("Watcher error:", err)

		case <-debounce.C:
			events := pendingEvents
			pendingEvents = nil

			if files := changedTemplates(events); len(files) > 0 {
				s.rebuild(ctx, files)
			}
		}
	}
}

func isTemplate(path string) bool {
	return strings.EqualFold(filepath.Ext(path), compiler.Ext)
}

// changedTemplates returns the templates touched by events that still exist,
// sorted and without duplicates
func changedTemplates(events []fsnotify.Event) []string {
	seen := make(map[string]bool)
	var files []string
	for _, event := range events {
		if seen[event.Name] || !isTemplate(event.Name) {
			continue
		}
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			continue
		}
		if _, err := os.Stat(event.Name); err != nil {
			continue
		}
		seen[event.Name] = true
		files = append(files, event.Name)
	}
	sort.Strings(files)
	return files
}

func (s *watchSession) rebuild(ctx context.Context, files []string) {
	units := make([]compiler.Unit, 0, len(files))
	for _, f := range files {
		u, err := compiler.ReadUnit(f)
		if err != nil {
			log.Printf("⚠️  %v", err)
			continue
		}
		units = append(units, u)
	}

	outDir := s.project.path(s.project.cfg.Compile.OutDir)
	outcomes := s.compiler.CompileAll(ctx, units, s.project.cfg.Compile.Jobs, nil)
	report(outcomes, outDir, false, s.stdout, s.stderr)

	if s.hub != nil {
		for _, o := range outcomes {
			s.hub.Broadcast(hubMessage(o))
		}
	}
}

// hubMessage describes an outcome for dev hub clients. Errors carry the
// rendered diagnostic with its source excerpt.
func hubMessage(o compiler.Outcome) devhub.Message {
	res := o.Result
	msg := devhub.Message{
		Type:      devhub.TypeCompiled,
		File:      res.Unit.File,
		Component: res.Component,
	}
	for _, w := range res.Warnings {
		msg.Warnings = append(msg.Warnings, w.Error())
	}
	if o.Err != nil {
		var b bytes.Buffer
		renderError(&b, res, o.Err)
		msg.Type = devhub.TypeError
		msg.Error = strings.TrimSpace(b.String())
		return msg
	}
	msg.Output = string(res.Output)
	return msg
}
