// Command weft analyzes component template projects: it discovers the
// project's resources, compiles templates into overlay and SSR artifacts,
// and keeps everything incrementally fresh under a file watcher.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"weft/internal/core/config"
	"weft/internal/core/diag"
	"weft/internal/core/span"
	"weft/internal/program"
	"weft/internal/shared/util"
	"weft/internal/watcher"
)

var (
	flagConfig  string
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:           "weft",
		Short:         "Incremental semantic analysis for component templates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if flagVerbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "weft.toml", "path to config file")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(discoverCmd(), compileCmd(), watchCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		if os.IsNotExist(err) {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func discoverCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run project discovery and print the resource snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ws, err := loadWorkspace(cfg)
			if err != nil {
				return err
			}
			sink := diag.NewCollector()
			eng := buildEngine(cfg, ws, sink)

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(eng.discovery.Snapshot)
			}

			snap := eng.discovery.Snapshot
			fmt.Printf("confidence: %s\n", snap.Confidence)
			fmt.Printf("snapshot:   %s\n", snap.Hash)
			for _, r := range snap.Resources {
				fmt.Printf("  %-22s %s\n", r.Kind, r.Name)
			}
			if len(snap.Gaps) > 0 {
				fmt.Printf("gaps: %d\n", len(snap.Gaps))
				for _, g := range snap.Gaps {
					fmt.Printf("  %-20s %s\n", g.Pattern, g.Detail)
				}
			}
			printDiagnostics(sink.Visible())
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the snapshot as JSON")
	return cmd
}

func compileCmd() *cobra.Command {
	var showOverlay, showSsr bool
	cmd := &cobra.Command{
		Use:   "compile [template...]",
		Short: "Compile templates and report diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ws, err := loadWorkspace(cfg)
			if err != nil {
				return err
			}
			eng := buildEngine(cfg, ws, diag.NewCollector())

			targets := args
			if len(targets) == 0 {
				for file := range ws.Templates {
					targets = append(targets, string(file))
				}
			}

			failed := 0
			for _, target := range targets {
				file := span.FileId(filepath.ToSlash(target))
				source, ok := ws.Templates[file]
				if !ok {
					return fmt.Errorf("template %s is not in the workspace", target)
				}

				sink := diag.NewCollector()
				res, err := eng.compiler.Compile(cmd.Context(), file, source, eng.vmTypeFor(file), sink)
				if err != nil {
					return err
				}

				visible := sink.Visible()
				fmt.Printf("%s: %d expressions, %d diagnostics\n", file, res.IR.Exprs.Len(), len(visible))
				printDiagnostics(visible)
				if len(visible) > 0 {
					failed++
				}
				if showOverlay {
					fmt.Println(res.Overlay.Text)
				}
				if showSsr {
					fmt.Println(res.Ssr)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d template(s) with diagnostics", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showOverlay, "overlay", false, "print the generated overlay")
	cmd.Flags().BoolVar(&showSsr, "ssr", false, "print the server-rendered output")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the workspace and keep analysis fresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			shutdownTracing, err := setupTracing(ctx, cfg.Observability.OTLPEndpoint)
			if err != nil {
				return err
			}
			defer shutdownTracing(context.Background())

			ws, err := loadWorkspace(cfg)
			if err != nil {
				return err
			}
			eng := buildEngine(cfg, ws, diag.NewCollector())
			for file, source := range ws.Templates {
				if err := eng.program.UpsertTemplate(file, source, eng.vmTypeFor(file)); err != nil {
					return err
				}
			}

			if cfg.Observability.Enabled {
				srv := newObservabilityServer(cfg.Observability.Address, func() map[string]interface{} {
					stats := eng.program.GetCacheStats()
					return map[string]interface{}{
						"status":    "up",
						"templates": stats.OpenTemplates,
						"artifacts": stats.CachedArtifacts,
					}
				})
				if err := srv.Start(ctx); err != nil {
					return err
				}
				defer srv.Stop(context.Background())
			}

			limiter := util.NewRefreshLimiter(cfg.Watch.RefreshPerSec, cfg.Watch.RefreshBurst)
			w, err := watcher.New(watcher.Config{
				Debounce:     cfg.Watch.Debounce,
				SourceExts:   cfg.Workspace.SourceExts,
				TemplateExts: cfg.Workspace.TemplateExts,
				ExcludeDirs:  cfg.Workspace.ExcludeDirs,
				ExcludeFiles: cfg.Workspace.ExcludeFiles,
			}, func(set watcher.ChangeSet) {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				handleChanges(ctx, cfg, eng, set)
			})
			if err != nil {
				return err
			}
			defer w.Close()

			if err := w.Watch([]string{cfg.Workspace.Root}); err != nil {
				return err
			}
			slog.Info("watching workspace", "root", cfg.Workspace.Root,
				"templates", len(ws.Templates), "sources", len(ws.Sources))

			<-ctx.Done()
			return nil
		},
	}
}

// handleChanges routes one debounced batch: source changes re-run
// discovery and invalidate everything, template changes recompile only the
// touched templates.
func handleChanges(ctx context.Context, cfg *config.Config, eng *engine, set watcher.ChangeSet) {
	if len(set.Sources) > 0 {
		slog.Info("sources changed, rerunning discovery", "count", len(set.Sources))
		ws, err := loadWorkspace(cfg)
		if err != nil {
			slog.Error("workspace reload failed", "error", err)
			return
		}
		fresh := buildEngine(cfg, ws, diag.NewCollector())
		*eng = *fresh
		for file, source := range ws.Templates {
			if err := eng.program.UpsertTemplate(file, source, eng.vmTypeFor(file)); err != nil {
				slog.Error("reopen failed", "file", file, "error", err)
			}
		}
		return
	}

	for _, path := range set.Templates {
		rel, err := filepath.Rel(cfg.Workspace.Root, path)
		if err != nil {
			rel = path
		}
		file := span.FileId(filepath.ToSlash(rel))
		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("template unreadable", "file", file, "error", err)
			continue
		}
		if err := eng.program.UpsertTemplate(file, string(content), eng.vmTypeFor(file)); err != nil {
			slog.Error("upsert failed", "file", file, "error", err)
			continue
		}
		_, diags, err := eng.program.GetOverlay(ctx, file)
		if err != nil {
			slog.Error("compile failed", "file", file, "error", err)
			continue
		}
		slog.Info("recompiled", "file", file, "diagnostics", len(diags))
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Compile the workspace and print cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ws, err := loadWorkspace(cfg)
			if err != nil {
				return err
			}
			eng := buildEngine(cfg, ws, diag.NewCollector())

			for file, source := range ws.Templates {
				if err := eng.program.UpsertTemplate(file, source, eng.vmTypeFor(file)); err != nil {
					return err
				}
				if _, _, err := eng.program.GetOverlay(cmd.Context(), file); err != nil {
					return err
				}
			}

			templates := make(map[string]program.TemplateCacheStats, len(ws.Templates))
			for file := range ws.Templates {
				ts, err := eng.program.GetTemplateCacheStats(file)
				if err != nil {
					return err
				}
				templates[string(file)] = ts
			}

			out := map[string]interface{}{
				"session":    eng.program.SessionId,
				"cache":      eng.program.GetCacheStats(),
				"templates":  templates,
				"discovery":  eng.discovery.Stats,
				"confidence": eng.discovery.Snapshot.Confidence,
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func printDiagnostics(diags []diag.Diagnostic) {
	for _, d := range diags {
		fmt.Printf("  %s %s %s [%d:%d] %s\n",
			d.Severity, d.Stage, d.Code, d.Span.Start, d.Span.End, d.Message)
	}
}
