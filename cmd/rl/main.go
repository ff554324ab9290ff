package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"roadline/internal/app"
	"roadline/internal/config"
	"roadline/internal/domain"
	"roadline/internal/engine"
	"roadline/internal/enrich"
	"roadline/internal/overlay"
	"roadline/internal/repo"
	"roadline/internal/server"
	"roadline/internal/watch"
)

// v carries flags and ROADLINE_* environment variables. Config keys such as
// github.token are bound directly to the flags that override them.
var v = config.NewViper()

var rootCmd = &cobra.Command{
	Use:   "rl",
	Short: "Roadline CLI",
	Long: `Roadline resolves roadmap documents against live evidence.
- Roadmap: weeks of items, each item proven by checks (files_exist, http_ok, sql_exists) or marked manually.
- Resolve: fetch the roadmap from the repository (or a local file), run its checks and store a snapshot.
- Artifact mode: trust check results already present in the document instead of running them.
- Overlay: your edits on top of the computed roadmap (add, hide, override items); they survive re-resolution.
- State: per-repository ledger of the last commit, last manual edit and last run; unchanged repositories are not re-checked.
- Event log: diary of resolutions and edits, view with 'rl log tail'.`,
	SilenceUsage: true,
}

func main() {
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("project", "", "project inside the repository")
	rootCmd.PersistentFlags().String("branch", "", "branch (defaults to roadmap.default_branch)")
	for _, name := range []string{"workspace", "json", "actor-id", "project", "branch"} {
		_ = v.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(viewCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(overlayCmd())
	rootCmd.AddCommand(stateCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func resolveCmd() *cobra.Command {
	var mode, file string
	var force bool
	cmd := &cobra.Command{
		Use:   "resolve owner/repo",
		Short: "Resolve a roadmap and store the snapshot",
		Long:  "Fetch the roadmap from the repository (or read --file), evaluate every check and store the result. A repository pass is skipped when nothing changed since the last run unless --force is set.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts, err := resolveOptions(args[0], mode, file, force)
				if err != nil {
					return err
				}
				res, err := e.Resolve(ctx, opts)
				if err != nil {
					return err
				}
				return printResolution(res)
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "live", "live or artifact")
	cmd.Flags().StringVar(&file, "file", "", "read the roadmap from a local JSON or YAML file")
	cmd.Flags().BoolVar(&force, "force", false, "run even when the stored snapshot is current")
	cmd.Flags().String("token", "", "GitHub token for this run")
	cmd.Flags().String("verifier-url", "", "sql_exists verifier endpoint")
	_ = v.BindPFlag("github.token", cmd.Flags().Lookup("token"))
	_ = v.BindPFlag("checks.verifier_url", cmd.Flags().Lookup("verifier-url"))
	return cmd
}

func resolveOptions(arg, mode, file string, force bool) (engine.ResolveOptions, error) {
	key, err := app.ParseRepoKey(arg, v.GetString("project"))
	if err != nil {
		return engine.ResolveOptions{}, err
	}
	m, err := enrich.ParseMode(mode)
	if err != nil {
		return engine.ResolveOptions{}, err
	}
	opts := engine.ResolveOptions{
		Key:     key,
		Branch:  v.GetString("branch"),
		Mode:    m,
		Force:   force,
		ActorID: v.GetString("actor-id"),
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return engine.ResolveOptions{}, err
		}
		opts.Source = data
	}
	return opts, nil
}

func viewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view owner/repo",
		Short: "Show the stored roadmap with the overlay applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKey(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, key domain.RepoKey) error {
				res, err := e.View(ctx, key, v.GetString("branch"))
				if err != nil {
					return err
				}
				return printResolution(res)
			})
		},
	}
}

func snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot owner/repo",
		Short: "Print the stored computed roadmap without the overlay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKey(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, key domain.RepoKey) error {
				snap, err := e.Snapshot(ctx, key, v.GetString("branch"))
				if err != nil {
					return err
				}
				return printJSON(snap)
			})
		},
	}
}

func overlayCmd() *cobra.Command {
	ov := &cobra.Command{
		Use:   "overlay",
		Short: "Edit the manual overlay",
		Long:  "The overlay holds your edits on top of the computed roadmap. Weeks are addressed by id (else title), items by id (else name).",
	}
	ov.AddCommand(overlayShowCmd())
	ov.AddCommand(overlayAddCmd())
	ov.AddCommand(overlayEditCmd("delete", "Delete a manual item", func(ctx context.Context, e engine.Engine, key domain.RepoKey, week, item string) (overlay.Record, error) {
		return e.DeleteManualItem(ctx, key, week, item, v.GetString("actor-id"))
	}))
	ov.AddCommand(overlayEditCmd("hide", "Hide a computed item", func(ctx context.Context, e engine.Engine, key domain.RepoKey, week, item string) (overlay.Record, error) {
		return e.RemoveItem(ctx, key, week, item, v.GetString("actor-id"))
	}))
	ov.AddCommand(overlayEditCmd("restore", "Show a hidden item again", func(ctx context.Context, e engine.Engine, key domain.RepoKey, week, item string) (overlay.Record, error) {
		return e.RestoreItem(ctx, key, week, item, v.GetString("actor-id"))
	}))
	ov.AddCommand(overlayEditCmd("clear", "Drop an override", func(ctx context.Context, e engine.Engine, key domain.RepoKey, week, item string) (overlay.Record, error) {
		return e.ClearOverride(ctx, key, week, item, v.GetString("actor-id"))
	}))
	ov.AddCommand(overlayOverrideCmd())
	ov.AddCommand(overlayImportCmd())
	ov.AddCommand(overlayResetCmd())
	return ov
}

func overlayShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show owner/repo",
		Short: "Print the overlay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKey(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, key domain.RepoKey) error {
				rec, err := e.Overlay(ctx, key)
				if err != nil {
					return err
				}
				return printJSON(rec)
			})
		},
	}
}

func overlayAddCmd() *cobra.Command {
	var itemKey, name, note string
	var done bool
	cmd := &cobra.Command{
		Use:   "add owner/repo week",
		Short: "Add a manual item to a week",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKey(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, key domain.RepoKey) error {
				it := overlay.ManualItem{Key: itemKey, Name: name, Note: note}
				if cmd.Flags().Changed("done") {
					it.Done = &done
				}
				added, err := e.AddManualItem(ctx, key, args[1], it, v.GetString("actor-id"))
				if err != nil {
					return err
				}
				if v.GetBool("json") {
					return printJSON(added)
				}
				fmt.Printf("Added %s (%s) to %s\n", added.Name, added.Key, args[1])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&itemKey, "key", "", "item key (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "item name")
	cmd.Flags().StringVar(&note, "note", "", "note")
	cmd.Flags().BoolVar(&done, "done", false, "mark the item done")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func overlayEditCmd(use, short string, fn func(context.Context, engine.Engine, domain.RepoKey, string, string) (overlay.Record, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " owner/repo week item",
		Short: short,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKey(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, key domain.RepoKey) error {
				rec, err := fn(ctx, e, key, args[1], args[2])
				if err != nil {
					return err
				}
				return printJSONOrTable(rec)
			})
		},
	}
}

func overlayOverrideCmd() *cobra.Command {
	var done, note string
	cmd := &cobra.Command{
		Use:   "override owner/repo week item",
		Short: "Pin the done flag or note of a computed item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			o := overlay.Override{Key: args[2], Note: note}
			if done != "" {
				b, err := strconv.ParseBool(done)
				if err != nil {
					return fmt.Errorf("--done must be true or false")
				}
				o.Done = &b
			}
			return withKey(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, key domain.RepoKey) error {
				rec, err := e.SetOverride(ctx, key, args[1], o, v.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(rec)
			})
		},
	}
	cmd.Flags().StringVar(&done, "done", "", "true or false")
	cmd.Flags().StringVar(&note, "note", "", "note shown next to the item")
	return cmd
}

func overlayImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import owner/repo",
		Short: "Replace the overlay with a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var raw any
			if err := json.Unmarshal(data, &raw); err != nil {
				return fmt.Errorf("invalid overlay json: %w", err)
			}
			return withKey(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, key domain.RepoKey) error {
				rec, err := e.ReplaceOverlay(ctx, key, raw, v.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(rec)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "overlay JSON file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func overlayResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset owner/repo",
		Short: "Drop every manual edit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKey(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, key domain.RepoKey) error {
				if err := e.ResetOverlay(ctx, key, v.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Println("overlay reset")
				return nil
			})
		},
	}
}

func stateCmd() *cobra.Command {
	st := &cobra.Command{Use: "state", Short: "Inspect the ingestion ledger"}
	st.AddCommand(&cobra.Command{
		Use:   "show owner/repo",
		Short: "Show the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKey(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, key domain.RepoKey) error {
				view, err := e.State(ctx, key)
				if err != nil {
					return err
				}
				return printJSONOrTable(view)
			})
		},
	})
	st.AddCommand(stateCommitCmd())
	st.AddCommand(&cobra.Command{
		Use:   "delete owner/repo",
		Short: "Forget the ledger so the next resolve runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKey(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, key domain.RepoKey) error {
				if err := e.DeleteState(ctx, key, v.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Println("state deleted")
				return nil
			})
		},
	})
	return st
}

func stateCommitCmd() *cobra.Command {
	var meta domain.CommitMeta
	cmd := &cobra.Command{
		Use:   "commit owner/repo",
		Short: "Record the newest commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKey(cmd.Context(), args[0], func(ctx context.Context, e engine.Engine, key domain.RepoKey) error {
				view, err := e.RecordCommit(ctx, key, meta, v.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(view)
			})
		},
	}
	cmd.Flags().StringVar(&meta.SHA, "sha", "", "commit sha")
	cmd.Flags().StringVar(&meta.Message, "message", "", "commit message")
	cmd.Flags().StringVar(&meta.Author, "author", "", "commit author")
	cmd.Flags().StringVar(&meta.URL, "url", "", "commit url")
	cmd.Flags().StringVar(&meta.At, "at", "", "commit time (RFC3339)")
	cmd.Flags().StringSliceVar(&meta.Paths, "path", nil, "changed path (repeatable)")
	_ = cmd.MarkFlagRequired("sha")
	return cmd
}

func watchCmd() *cobra.Command {
	var mode, file string
	cmd := &cobra.Command{
		Use:   "watch owner/repo",
		Short: "Re-resolve whenever a local roadmap file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := app.Open(cmd.Context(), v.GetString("workspace"), v)
			if err != nil {
				return err
			}
			defer ws.Close()
			w, err := watch.New(file, ws.Logger)
			if err != nil {
				return err
			}
			run := func(ctx context.Context) error {
				opts, err := resolveOptions(args[0], mode, file, true)
				if err != nil {
					return err
				}
				res, err := ws.Engine.Resolve(ctx, opts)
				if err != nil {
					return err
				}
				return printResolution(res)
			}
			if err := run(cmd.Context()); err != nil {
				ws.Logger.Error("initial resolve failed", zap.Error(err))
			}
			fmt.Fprintf(os.Stderr, "watching %s\n", w.Path)
			return w.Run(cmd.Context(), run)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "live", "live or artifact")
	cmd.Flags().StringVar(&file, "file", "", "local roadmap file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, target string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f := repo.EventFilter{Type: evtType}
				if target != "" {
					key, err := app.ParseRepoKey(target, v.GetString("project"))
					if err != nil {
						return err
					}
					f.Owner, f.Repo = key.Owner, key.Repo
					if cmd.Flags().Changed("project") {
						f.Project = &key.Project
					}
				}
				evts, err := e.ListEvents(ctx, f, n, 0)
				if err != nil {
					return err
				}
				if v.GetBool("json") {
					return printJSON(evts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Repo", "Actor"})
				for _, evt := range evts {
					key := domain.RepoKey{Owner: evt.Owner, Repo: evt.Repo, Project: evt.Project}
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, key.String(), evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&target, "repo", "", "owner/repo filter")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage roadline.yml",
		Long:  "roadline.yml sets the GitHub endpoints, roadmap locations, check limits, server address and webhooks. Every key can be overridden with ROADLINE_<SECTION>_<KEY>.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default roadline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(v.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.GitHub.Token != "" {
				cfg.GitHub.Token = "***"
			}
			return printJSON(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate roadline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfig()
			if v.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(v.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, v); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := app.Open(ctx, v.GetString("workspace"), v)
			if err != nil {
				return err
			}
			defer ws.Close()
			cfg := ws.Config
			handler, err := server.New(server.Config{Engine: ws.Engine, BasePath: cfg.Server.BasePath, Logger: ws.Logger})
			if err != nil {
				return err
			}
			dispatcher := server.NewWebhookDispatcher(ws.Engine.Repo, cfg.Webhooks, ws.Logger)
			dispatchDone := make(chan struct{})
			go func() {
				defer close(dispatchDone)
				dispatcher.Run(ctx)
			}()

			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			ws.Logger.Info("serving roadline api",
				zap.String("addr", cfg.Server.Addr),
				zap.String("base_path", cfg.Server.BasePath),
				zap.Int("webhooks", len(cfg.Webhooks)))
			fmt.Printf("Serving Roadline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			err = srv.ListenAndServe()
			<-dispatchDone
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().String("base-path", "", "API base path (defaults to server.base_path)")
	_ = v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("server.base_path", cmd.Flags().Lookup("base-path"))
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	ws, err := app.Open(ctx, v.GetString("workspace"), v)
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws.Engine)
}

func withKey(ctx context.Context, arg string, fn func(context.Context, engine.Engine, domain.RepoKey) error) error {
	key, err := app.ParseRepoKey(arg, v.GetString("project"))
	if err != nil {
		return err
	}
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		return fn(ctx, e, key)
	})
}

func printResolution(res engine.Resolution) error {
	if v.GetBool("json") {
		return printJSON(res)
	}
	snap := res.Snapshot
	fmt.Printf("Roadmap %s@%s: %s (run %s, %s", snap.Key, snap.Branch, res.Progress, snap.RunID, snap.Mode)
	if snap.CommitSHA != "" {
		fmt.Printf(", commit %s", snap.CommitSHA)
	}
	if res.Reused {
		fmt.Print(", reused")
	}
	fmt.Println(")")
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Week", "Item", "Progress", "Checks", "Note"})
	for _, w := range res.View.Weeks {
		week := w.Title
		if week == "" {
			week = w.ID
		}
		for _, it := range w.Items {
			tw.AppendRow(table.Row{week, itemLabel(it), domain.ItemProgress(it), checkSummary(it), itemNote(it)})
		}
		tw.AppendSeparator()
	}
	tw.Render()
	return nil
}

func itemLabel(it domain.Item) string {
	switch {
	case it.ManualKey != "":
		return it.Name + " (manual)"
	case it.ManualOverride != nil:
		return it.Name + " (override)"
	}
	return it.Name
}

func checkSummary(it domain.Item) string {
	if len(it.Checks) == 0 {
		return "-"
	}
	ok := 0
	for _, c := range it.Checks {
		if c.OK != nil && *c.OK {
			ok++
		}
	}
	return fmt.Sprintf("%d/%d", ok, len(it.Checks))
}

func itemNote(it domain.Item) string {
	notes := []string{}
	if it.Note != "" {
		notes = append(notes, it.Note)
	}
	if it.ManualOverride != nil && it.ManualOverride.Note != "" {
		notes = append(notes, it.ManualOverride.Note)
	}
	for _, c := range it.Checks {
		if c.OK != nil && !*c.OK && c.Note != "" {
			notes = append(notes, c.Note)
		}
	}
	return strings.Join(notes, "; ")
}

func printJSONOrTable(val any) error {
	b, _ := json.MarshalIndent(val, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(val any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(val)
}
