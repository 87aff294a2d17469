package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/stockroom-backend/pkg/config"
	"github.com/angelmondragon/stockroom-backend/pkg/db"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/migrate"
)

type flags struct {
	cmd     string
	root    string
	name    string
	version string
}

// dbCommands run against a live database; the rest only touch files.
var dbCommands = map[string]func(ctx context.Context, sqlDB *sql.DB, driver string, f flags) error{
	"up": func(ctx context.Context, sqlDB *sql.DB, driver string, _ flags) error {
		return migrate.Run(ctx, sqlDB, driver, "up")
	},
	"down": func(ctx context.Context, sqlDB *sql.DB, driver string, _ flags) error {
		return migrate.Run(ctx, sqlDB, driver, "down")
	},
	"status": func(ctx context.Context, sqlDB *sql.DB, driver string, _ flags) error {
		return migrate.Run(ctx, sqlDB, driver, "status")
	},
	"version": func(ctx context.Context, sqlDB *sql.DB, driver string, f flags) error {
		if f.version == "" {
			return errors.New("-version is required")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, driver, f.version)
	},
}

func main() {
	_ = godotenv.Load()

	var f flags
	flag.StringVar(&f.cmd, "cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&f.root, "root", migrate.DefaultRoot, "migrations root holding one directory per dialect (create, validate)")
	flag.StringVar(&f.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&f.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	switch f.cmd {
	case "create":
		if f.name == "" {
			exit(errors.New("-name is required"))
		}
		paths, err := migrate.Create(f.root, f.name, time.Now())
		if err != nil {
			exit(err)
		}
		for _, p := range paths {
			fmt.Println("created", p)
		}
		return
	case "validate":
		if err := migrate.Validate(f.root); err != nil {
			exit(err)
		}
		fmt.Println("migrations valid")
		return
	}

	run, ok := dbCommands[f.cmd]
	if !ok {
		exit(fmt.Errorf("unknown -cmd %q", f.cmd))
	}

	cfg, err := config.Load()
	if err != nil {
		exit(fmt.Errorf("load config: %w", err))
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": f.cmd,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to connect database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to unwrap sql.DB", err)
		os.Exit(1)
	}

	ctx = logg.WithField(ctx, "driver", dbClient.Dialect())
	if err := run(ctx, sqlDB, dbClient.Dialect(), f); err != nil {
		logg.Error(ctx, "migration failed", err)
		dbClient.Close()
		os.Exit(1)
	}
	logg.Info(ctx, "migration finished")
}

func exit(err error) {
	fmt.Fprintln(os.Stderr, "migrate:", err)
	os.Exit(1)
}
