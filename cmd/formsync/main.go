package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-formsync/internal/config"
	"github.com/goliatone/go-formsync/internal/metrics"
	"github.com/goliatone/go-formsync/pkg/auth"
	"github.com/goliatone/go-formsync/pkg/client"
	"github.com/goliatone/go-formsync/pkg/prompt"
	"github.com/goliatone/go-formsync/pkg/schema"
	"github.com/goliatone/go-formsync/pkg/upload"
)

const usage = `usage: formsync <command> [flags] [args]

commands:
  login                      sign in and store the session
  logout                     forget the stored session
  whoami                     show the signed-in account
  schemas [-openapi src]     list editable entities
  list <entity>              list records (-page, -search)
  show <entity> <slug>       print one record
  edit <entity> <slug>       edit a record interactively
  create <entity>            create a record interactively
  delete <entity> <slug>     delete a record
  dashboard <entity>         edit the profile owned by a dashboard account
  verify <entity> <slug>     set the verified flag (-off to clear)
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := config.SetupLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.close()

	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		if errors.Is(err, prompt.ErrAborted) {
			os.Exit(130)
		}
		a.close()
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	store     *auth.SQLiteStore
	schemas   *schema.Registry
	client    *client.Client
	previewer upload.Previewer
	driver    prompt.Driver
	closed    bool
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	schemas, err := schema.Builtin()
	if err != nil {
		return nil, err
	}
	if cfg.SchemaDir != "" {
		if err := schemas.LoadFS(os.DirFS(cfg.SchemaDir)); err != nil {
			return nil, fmt.Errorf("load schemas from %s: %w", cfg.SchemaDir, err)
		}
	}

	store, err := auth.OpenSQLite(cfg.SessionDB)
	if err != nil {
		return nil, err
	}

	var previewer upload.Previewer = upload.NewRegistry()
	if cfg.PreviewDir != "" {
		thumbs, err := upload.NewThumbnailStore(cfg.PreviewDir)
		if err != nil {
			store.Close()
			return nil, err
		}
		previewer = thumbs
	}

	opts := []client.Option{
		client.WithSessionStore(store),
		client.WithSchemas(schemas),
		client.WithLogger(logger),
		client.WithMetrics(m),
		client.WithCache(cfg.CacheSize, cfg.CacheTTL),
	}
	if cfg.HTTPTimeout > 0 {
		opts = append(opts, client.WithHTTPClient(newHTTPClient(cfg.HTTPTimeout)))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, client.WithRateLimit(cfg.RateLimit, 1))
	}
	c, err := client.New(cfg.APIURL, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}

	logger.Debug("formsync ready",
		slog.String("api", cfg.APIURL),
		slog.String("session_db", cfg.SessionDB),
		slog.Int("entities", len(schemas.Entities())),
	)

	return &app{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		store:     store,
		schemas:   schemas,
		client:    c,
		previewer: previewer,
		driver:    prompt.NewSurveyDriver(os.Stdout),
	}, nil
}

func (a *app) close() {
	if a.closed {
		return
	}
	a.closed = true
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close session store", slog.Any("error", err))
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.login(ctx)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "schemas":
		return a.listSchemas(ctx, args)
	case "list":
		return a.list(ctx, args)
	case "show":
		return a.show(ctx, args)
	case "edit":
		return a.edit(ctx, args)
	case "create":
		return a.create(ctx, args)
	case "delete":
		return a.remove(ctx, args)
	case "verify":
		return a.verify(ctx, args)
	case "dashboard":
		return a.dashboard(ctx, args)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}
