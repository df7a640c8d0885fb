// Package main is the entrypoint for the datatags gateway.
// The gateway authenticates callers, runs propagation validation against
// the loaded tag registry, and persists every run to the audit log.
// It never stores payload field values; reports carry field paths and
// violation details only.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/harperz567/food-app-qa/internal/access"
	"github.com/harperz567/food-app-qa/internal/auth"
	"github.com/harperz567/food-app-qa/internal/config"
	"github.com/harperz567/food-app-qa/internal/gateway"
	"github.com/harperz567/food-app-qa/internal/observability"
	"github.com/harperz567/food-app-qa/internal/registry"
	"github.com/harperz567/food-app-qa/internal/storage"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "Config file path (default: ./config.yaml, ~/.datatags/config.yaml)")
		addr       = flag.String("addr", "", "HTTP listen address (overrides server.port)")
		token      = flag.String("token", "", "Static auth token (overrides auth.token)")
		devMode    = flag.Bool("dev", false, "Development mode (in-memory repository, stdout audit log)")
		showVer    = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showVer {
		fmt.Printf("datatags-gateway %s (commit: %s, built: %s)\n", version, commit, date)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if *token == "" {
		*token = cfg.Auth.Token
	}
	if *token == "" {
		return fmt.Errorf("auth token required: use -token, auth.token in the config, or DATATAGS_AUTH_TOKEN")
	}

	listen := *addr
	if listen == "" {
		listen = fmt.Sprintf(":%d", cfg.Server.Port)
	}

	// Load the tag registry. A load failure is fatal: the gateway never
	// serves with a partial registry.
	reg, err := registry.LoadAll(cfg.Registry.SchemaPaths)
	if err != nil {
		return err
	}
	log.Printf("Loaded tag schema: %d field(s) across %d service(s)", reg.Len(), len(reg.Services()))

	matrix, err := loadMatrix(cfg)
	if err != nil {
		return err
	}

	authenticator := auth.NewStaticTokenAuthenticator()
	authenticator.RegisterToken(*token, &auth.User{
		ID:    "gateway-operator",
		Name:  "Gateway Operator",
		Roles: []string{"admin"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	repo, runLogger, err := openStorage(ctx, cfg, *devMode)
	cancel()
	if err != nil {
		return err
	}
	defer repo.Close()

	if cfg.Registry.SnapshotOnLoad && !*devMode {
		snapCtx, snapCancel := context.WithTimeout(context.Background(), 10*time.Second)

		// Drift against the previous snapshot means the schema files
		// changed since the last boot; older reports were judged against
		// the old tags.
		drift, err := storage.DetectRegistryDrift(snapCtx, repo, reg)
		if err != nil {
			snapCancel()
			return fmt.Errorf("failed to compare registry against last snapshot: %w", err)
		}
		for _, change := range drift {
			log.Printf("Registry drift since last snapshot: %s", change)
		}

		record := storage.SnapshotFromRegistry(
			observability.NewRunID(),
			strings.Join(cfg.Registry.SchemaPaths, ","),
			reg,
		)
		if err := repo.SaveSnapshot(snapCtx, record); err != nil {
			snapCancel()
			return fmt.Errorf("failed to persist registry snapshot: %w", err)
		}
		snapCancel()
		log.Printf("Persisted registry snapshot %s", record.SnapshotID)
	}

	gw, err := gateway.NewGateway(
		authenticator,
		reg,
		matrix,
		repo,
		runLogger,
		gateway.Config{
			Version:            version,
			RequiredFieldCheck: cfg.Registry.RequiredFieldCheck,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	server := &http.Server{
		Addr:         listen,
		Handler:      gw,
		ReadTimeout:  parseTimeout(cfg.Server.ReadTimeout, 30*time.Second),
		WriteTimeout: parseTimeout(cfg.Server.WriteTimeout, 30*time.Second),
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down gateway...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
		close(done)
	}()

	log.Printf("Datatags gateway starting on %s", listen)
	log.Printf("Version: %s, Commit: %s", version, commit)
	log.Printf("Health check: http://localhost%s/health", listen)
	log.Printf("Readiness: http://localhost%s/ready", listen)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	log.Println("Gateway stopped")
	return nil
}

// loadMatrix prefers the configured model/policy override and falls back
// to the embedded matrix.
func loadMatrix(cfg *config.Config) (*access.Matrix, error) {
	if cfg.Access.ModelPath != "" {
		log.Printf("Loading access matrix from %s", cfg.Access.PolicyPath)
		return access.NewMatrixFromFiles(cfg.Access.ModelPath, cfg.Access.PolicyPath)
	}
	return access.NewMatrix()
}

// openStorage builds the repository and the audit run logger for the
// configured backend. The two share one database so reports and audit
// entries commit to the same place.
func openStorage(ctx context.Context, cfg *config.Config, devMode bool) (storage.Repository, observability.RunLogger, error) {
	backend := cfg.Storage.Backend
	if devMode {
		backend = "memory"
	}

	switch backend {
	case "postgres":
		db, err := storage.OpenPostgres(ctx, storage.PostgresConfig{
			ConnectionString: cfg.Storage.Postgres.DSN(),
		})
		if err != nil {
			return nil, nil, err
		}

		log.Println("Running database migrations...")
		if err := storage.NewMigrationRunner(db).Run(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Println("Database migrations completed")

		runLogger, err := observability.NewPersistentLogger(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Println("Connected to PostgreSQL")
		return storage.NewPostgresRepository(db), runLogger, nil

	case "sqlite":
		repo, err := storage.NewSQLiteRepository(ctx, cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		runLogger, err := observability.NewPersistentLogger(repo.DB())
		if err != nil {
			repo.Close()
			return nil, nil, err
		}
		log.Printf("Using SQLite at %s", cfg.Storage.SQLite.Path)
		return repo, runLogger, nil

	case "memory":
		log.Println("WARNING: in-memory repository, audit log on stdout (not for production)")
		return storage.NewMockRepository(), observability.NewJSONLogger(os.Stdout), nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func parseTimeout(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
