package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/semprofile/assemble"
	"github.com/c360studio/semprofile/config"
	"github.com/c360studio/semprofile/hydrate"
	"github.com/c360studio/semprofile/registry"
	"github.com/c360studio/semprofile/session"
	"github.com/c360studio/semprofile/storage"
)

// App wires configuration, the profile registry and the optional NATS
// connection together for the CLI commands.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Registry
	metrics  *prometheus.Registry
	hydrate  *hydrate.Metrics

	natsConn *nats.Conn
	js       jetstream.JetStream
}

// NewApp creates an App reading profiles from cfg.Profiles.Dir.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	info, err := os.Stat(cfg.Profiles.Dir)
	if err != nil {
		return nil, fmt.Errorf("stat profiles dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", cfg.Profiles.Dir)
	}

	metrics := prometheus.NewRegistry()
	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry.New(os.DirFS(cfg.Profiles.Dir), logger),
		metrics:  metrics,
		hydrate:  hydrate.NewMetrics(metrics),
	}, nil
}

// Connect opens the NATS connection when one is configured. Without a URL the
// app runs without list persistence or graph publishing.
func (a *App) Connect(ctx context.Context) error {
	if a.cfg.NATS.URL == "" {
		a.logger.Debug("NATS not configured, persistence and publishing disabled")
		return nil
	}

	a.logger.Info("Connecting to NATS", slog.String("url", a.cfg.NATS.URL))
	conn, err := nats.Connect(a.cfg.NATS.URL,
		nats.Name("semprofile"),
		nats.Timeout(10*time.Second),
	)
	if err != nil {
		return wrapNATSError(err, a.cfg.NATS.URL)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.natsConn = conn
	a.js = js
	return nil
}

// wrapNATSError provides guidance when the NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

Start NATS or unset nats.url to run without persistence.`, err, url)
	}
	return fmt.Errorf("NATS connection failed: %w", err)
}

// Session loads profile id and returns a session with hydrated lists.
func (a *App) Session(ctx context.Context, id string) (*session.Session, error) {
	p, err := a.registry.Load(id)
	if err != nil {
		return nil, err
	}

	opts := []session.Option{
		session.WithLogger(a.logger),
		session.WithMetrics(a.hydrate),
	}
	if a.js != nil {
		store, err := storage.NewListStore(ctx, a.js, a.cfg.NATS.CacheBucket, p.ID)
		if err != nil {
			// Persistence is optional; hydration still works without it.
			a.logger.Warn("Failed to open list store", slog.String("error", err.Error()))
		} else {
			opts = append(opts, session.WithPersister(store))
		}
	}

	querier := hydrate.NewSPARQLClient(a.cfg.Hydration.SPARQL())
	s := session.New(p, querier, a.cfg.Hydration.Retry(), opts...)
	s.HydrateAll(ctx)
	return s, nil
}

// Shutdown closes the NATS connection.
func (a *App) Shutdown() {
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.logger.Warn("Failed to drain NATS connection", slog.String("error", err.Error()))
			a.natsConn.Close()
		}
		a.natsConn = nil
		a.js = nil
	}
}

// readRecords decodes a YAML or JSON list of records. A single mapping is
// read as one record. "-" reads stdin.
func readRecords(path string, stdin io.Reader) ([]assemble.Record, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse records: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var recs []assemble.Record
		if err := root.Decode(&recs); err != nil {
			return nil, fmt.Errorf("parse records: %w", err)
		}
		return recs, nil
	case yaml.MappingNode:
		var rec assemble.Record
		if err := root.Decode(&rec); err != nil {
			return nil, fmt.Errorf("parse records: %w", err)
		}
		return []assemble.Record{rec}, nil
	default:
		return nil, fmt.Errorf("parse records: expected a list or a mapping")
	}
}
