package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/zemljevid/internal/api"
	"github.com/erazemk/zemljevid/internal/config"
	"github.com/erazemk/zemljevid/internal/graph"
	"github.com/erazemk/zemljevid/internal/observability"
	"github.com/erazemk/zemljevid/internal/policy"
	"github.com/erazemk/zemljevid/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// flags override configuration values when set.
type flags struct {
	config    string
	addr      string
	db        string
	adminUser string
	logPath   string
}

func parseFlags(args []string) (*flags, *flag.FlagSet, error) {
	fs := flag.NewFlagSet("zemljevid", flag.ContinueOnError)
	var f flags

	fs.StringVar(&f.config, "config", "", "")
	fs.StringVar(&f.config, "c", "", "")
	fs.StringVar(&f.addr, "addr", "", "")
	fs.StringVar(&f.addr, "a", "", "")
	fs.StringVar(&f.db, "db", "", "")
	fs.StringVar(&f.db, "d", "", "")
	fs.StringVar(&f.adminUser, "user", "", "")
	fs.StringVar(&f.adminUser, "u", "", "")
	fs.StringVar(&f.logPath, "log", "", "")
	fs.StringVar(&f.logPath, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: zemljevid [flags]

Flags:
  -c, -config <path>      YAML configuration file (default: none)
  -a, -addr <host:port>   listen address (default: :8080)
  -d, -db <path>          SQLite database path (default: zemljevid.sqlite3)
  -u, -user <name>        admin display name on first run (default: admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

Every setting can also be given as a ZEMLJEVID_* environment variable,
e.g. ZEMLJEVID_STORAGE_BACKEND=mongo. Flags win over the environment,
which wins over the configuration file.
`)
	}

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fs, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return &f, fs, nil
}

// apply copies the flags that were set on the command line into cfg.
func (f *flags) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "addr", "a":
			cfg.Server.Addr = f.addr
		case "db", "d":
			cfg.Storage.SQLitePath = f.db
		case "user", "u":
			cfg.Identity.AdminName = f.adminUser
		case "log", "l":
			cfg.Logging.Path = f.logPath
		}
	})
}

func run(args []string) error {
	f, fs, err := parseFlags(args)
	if err == flag.ErrHelp {
		return nil
	}
	if err != nil {
		return err
	}

	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}
	f.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	if closeLog != nil {
		defer closeLog()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer st.Close()

	images, imagesHealth, err := openImages(ctx, cfg.Images, st)
	if err != nil {
		return fmt.Errorf("opening image storage: %w", err)
	}

	provider, err := openIdentity(ctx, cfg.Identity, st)
	if err != nil {
		return err
	}

	pol := policy.New(provider)
	items := service.NewItems(st, images, provider, pol)
	accounts := service.NewAccounts(provider, st, pol)

	health := []api.Pinger{st}
	if imagesHealth != nil {
		health = append(health, imagesHealth)
	}
	apiRouter := api.NewRouter(api.Deps{
		Items:          items,
		Accounts:       accounts,
		Verifier:       provider,
		Health:         health,
		MaxUploadBytes: cfg.Images.MaxUploadBytes,
	})

	schema, err := graph.NewSchema(items, accounts)
	if err != nil {
		return fmt.Errorf("building graphql schema: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("GET /healthz", apiRouter)
	mux.Handle("/graphql", graph.NewHandler(schema, provider))
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Server.Addr, "storage", cfg.Storage.Backend, "images", cfg.Images.Backend, "identity", cfg.Identity.Mode)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing storage")
	return nil
}
