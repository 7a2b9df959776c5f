package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/semprofile/graph"
	"github.com/c360studio/semprofile/registry"
	"github.com/c360studio/semprofile/render"
	"github.com/c360studio/semprofile/session"
)

func listCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(flags)
			if err != nil {
				return err
			}
			ids, err := app.registry.List()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tVERSION\tSTATUS")
			for _, id := range ids {
				meta, err := app.registry.Metadata(id)
				if err != nil {
					app.logger.Warn("Skipping profile with invalid metadata", slog.String("profile", id), slog.String("error", err.Error()))
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", meta.ID, meta.Name, meta.Version, meta.Status)
			}
			return w.Flush()
		},
	}
}

func metadataCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata <profile>",
		Short: "Show profile metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(flags)
			if err != nil {
				return err
			}
			meta, err := app.registry.Metadata(args[0])
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(meta)
			if err != nil {
				return fmt.Errorf("marshal metadata: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func validateCmd(flags *globalFlags) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "validate <profile> <records>",
		Short: "Validate source records against a profile",
		Long:  "Validate a YAML or JSON list of source records. Exits non-zero when any record has blocking errors.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := processRecords(cmd, flags, args[0], args[1], workers)
			if err != nil {
				return err
			}
			defer b.app.Shutdown()

			out := cmd.OutOrStdout()
			blocking := 0
			for _, r := range b.results {
				errs, warnings, suggestions := r.Issues.Counts()
				fmt.Fprintf(out, "record %d: %d error(s), %d warning(s), %d suggestion(s)\n", r.Index, errs, warnings, suggestions)
				for _, g := range r.Issues.Grouped() {
					for _, issue := range g.Issues {
						fmt.Fprintf(out, "  %s\n", issue)
					}
				}
				if r.Issues.Blocking() || r.Err != nil {
					blocking++
				}
			}
			if blocking > 0 {
				return fmt.Errorf("%d of %d record(s) have blocking errors", blocking, len(b.results))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent records (default: batch.workers)")
	return cmd
}

func renderCmd(flags *globalFlags) *cobra.Command {
	var (
		format  string
		subject string
		indent  bool
	)
	cmd := &cobra.Command{
		Use:   "render <profile> <records>",
		Short: "Assemble records and render the entities",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := render.Format(format)
			if _, ok := render.GetFormatInfo(f); !ok {
				return fmt.Errorf("unsupported format: %s", format)
			}
			b, err := processRecords(cmd, flags, args[0], args[1], 0)
			if err != nil {
				return err
			}
			defer b.app.Shutdown()

			out := cmd.OutOrStdout()
			for _, r := range b.results {
				if r.Err != nil {
					b.app.logger.Warn("Record not assembled", slog.Int("record", r.Index), slog.String("error", r.Err.Error()))
					continue
				}
				data, err := render.Render(r.Entity, f, render.Options{Subject: subject, Indent: indent})
				if err != nil {
					return fmt.Errorf("render record %d: %w", r.Index, err)
				}
				if _, err := out.Write(data); err != nil {
					return err
				}
				if f == render.FormatJSON {
					fmt.Fprintln(out)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(render.FormatJSON), "Output format (json, ntriples)")
	cmd.Flags().StringVar(&subject, "subject", "", "Subject IRI for N-Triples (default: blank node)")
	cmd.Flags().BoolVar(&indent, "indent", false, "Pretty-print JSON")
	return cmd
}

func publishCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <profile> <records>",
		Short: "Assemble records and publish the entities for graph ingestion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := processRecords(cmd, flags, args[0], args[1], 0)
			if err != nil {
				return err
			}
			defer b.app.Shutdown()
			if b.app.natsConn == nil {
				return errors.New("publish requires nats.url")
			}

			published := 0
			for _, r := range b.results {
				if r.Err != nil || r.Issues.Blocking() {
					b.app.logger.Warn("Record not published", slog.Int("record", r.Index), slog.Bool("blocking", r.Issues.Blocking()), slog.Any("error", r.Err))
					continue
				}
				id := graph.NewEntityID(b.session.Profile.ID)
				if err := graph.PublishEntity(cmd.Context(), b.app.natsConn, b.app.cfg.NATS.GraphSubject, id, b.session.Profile, r.Entity); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				published++
			}
			b.app.logger.Info("Published entities", slog.Int("published", published), slog.Int("records", len(b.results)))
			return nil
		},
	}
}

func hydrateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "hydrate <profile>",
		Short: "Hydrate the allowed-item lists of a profile and report their state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := app.Connect(ctx); err != nil {
				return err
			}
			defer app.Shutdown()

			s, err := app.Session(ctx, args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LIST\tSTATE\tITEMS\tDETAIL")
			cache := s.Cache()
			for _, id := range cache.IDs() {
				snap := cache.Lookup(id)
				state, detail := "fresh", ""
				if snap.Stale() {
					state = "stale"
				}
				if snap.Failure != nil {
					detail = snap.Failure.Error()
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", id, state, snap.Len(), detail)
			}
			return w.Flush()
		},
	}
}

func watchCmd(flags *globalFlags) *cobra.Command {
	var (
		debounce    time.Duration
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the profiles directory and report changed profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(flags)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           promhttp.HandlerFor(app.metrics, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						app.logger.Error("Metrics server failed", slog.String("error", err.Error()))
					}
				}()
				defer srv.Close()
			}

			w, err := registry.NewWatcher(app.cfg.Profiles.Dir, app.registry, debounce, app.logger)
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()

			app.logger.Info("Watching profiles", slog.String("dir", app.cfg.Profiles.Dir))
			return watchLoop(ctx, app, w.Changes(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", registry.DefaultDebounce, "Delay before reporting a burst of changes")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

// watchLoop reports each change, reloading changed profiles to surface load
// errors and warnings.
func watchLoop(ctx context.Context, app *App, changes <-chan registry.Change, out io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if change.Removed {
				fmt.Fprintf(out, "removed %s\n", change.ID)
				continue
			}
			p, err := app.registry.Load(change.ID)
			if err != nil {
				fmt.Fprintf(out, "invalid %s: %v\n", change.ID, err)
				continue
			}
			fmt.Fprintf(out, "loaded %s %s (%d statements, %d warnings)\n", p.ID, p.Version, len(p.Statements), len(p.Warnings))
			if names := p.Patterns.Names(); len(names) > 0 {
				fmt.Fprintf(out, "  patterns: %s\n", strings.Join(names, ", "))
			}
		}
	}
}

// batch is a processed records file.
type batch struct {
	app     *App
	session *session.Session
	results []session.Result
}

// processRecords loads the profile, hydrates its lists and runs every record
// through assembly and validation. The caller shuts the app down.
func processRecords(cmd *cobra.Command, flags *globalFlags, profileID, recordsPath string, workers int) (*batch, error) {
	app, err := setup(flags)
	if err != nil {
		return nil, err
	}
	recs, err := readRecords(recordsPath, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if err := app.Connect(ctx); err != nil {
		return nil, err
	}
	s, err := app.Session(ctx, profileID)
	if err != nil {
		app.Shutdown()
		return nil, err
	}
	if workers <= 0 {
		workers = app.cfg.Batch.Workers
	}
	results, err := s.ProcessBatch(ctx, recs, workers)
	if err != nil {
		app.Shutdown()
		return nil, err
	}
	return &batch{app: app, session: s, results: results}, nil
}
