package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	projects "github.com/goliatone/go-projects"
	"github.com/goliatone/go-projects/config"
	"github.com/goliatone/go-projects/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "projects-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zl := logging.New(os.Stdout, cfg.IsProduction())
	defer zl.Sync() //nolint:errcheck
	logger := logging.NewAdapter(zl)

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	applied, err := projects.Migrate(ctx, db)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", "count", len(applied), "names", applied)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hasher := projects.NewBcryptHasher(cfg.BcryptCost)

	srv, err := projects.NewServer(db, cfg,
		projects.WithServerLogger(logger),
		projects.WithPasswordHasher(hasher),
		projects.WithMetricsRegistry(reg),
		projects.WithCORSOrigins(cfg.AllowedOrigins()),
		projects.WithRequestTimeout(cfg.Timeout()),
		projects.WithLoginRateLimit(cfg.LoginRate, cfg.LoginBurst),
		projects.WithRequestLogging(true),
		projects.WithTrustedProxies(cfg.ProxyHeader, cfg.TrustedProxyList()),
	)
	if err != nil {
		return err
	}

	if cfg.AdminUsername != "" {
		admin, created, err := srv.Users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return err
		}
		if created {
			logger.Info("bootstrap admin created", "username", admin.Username, "id", admin.ID.String())
		}
	}

	logger.Info("listening", "addr", cfg.Addr(), "env", cfg.Env, "db", cfg.DBDriver)
	return srv.Listen(ctx, cfg.Addr())
}

func openDB(cfg *config.Config) (*bun.DB, error) {
	var db *bun.DB

	switch cfg.DBDriver {
	case "postgres":
		sqldb, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if cfg.DBDebug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return db, nil
}
