package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/marketplace-orders/pkg/config"
	"github.com/angelmondragon/marketplace-orders/pkg/db"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
	"github.com/angelmondragon/marketplace-orders/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

type dbCommand func(ctx context.Context, m *migrate.Migrator, opts options) error

// dbCommands lists the commands that need a live connection.
var dbCommands = map[string]dbCommand{
	"up": func(ctx context.Context, m *migrate.Migrator, _ options) error {
		applied, err := m.Up(ctx)
		fmt.Println("applied migrations:", applied)
		return err
	},
	"down": func(ctx context.Context, m *migrate.Migrator, _ options) error {
		return m.Down(ctx)
	},
	"redo": func(ctx context.Context, m *migrate.Migrator, _ options) error {
		return m.Redo(ctx)
	},
	"status": func(ctx context.Context, m *migrate.Migrator, _ options) error {
		lines, err := m.Status(ctx)
		for _, line := range lines {
			fmt.Println(line)
		}
		return err
	},
	"version": func(ctx context.Context, m *migrate.Migrator, opts options) error {
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		return m.To(ctx, opts.version)
	},
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|redo|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// database commands use the migrations compiled into the binary unless -dir is given
	sourceDir := ""
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "dir" {
			sourceDir = opts.dir
		}
	})

	// create and validate only touch the filesystem
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			exit("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			exit(fmt.Sprintf("failed to create migration: %v", err))
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			exit(fmt.Sprintf("migration validation failed: %v", err))
		}
		fmt.Println("migration validation passed")
		return
	}

	run, ok := dbCommands[opts.cmd]
	if !ok {
		exit(fmt.Sprintf("unknown -cmd value: %s", opts.cmd))
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"source": sourceDir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to access sql database", err)
		os.Exit(1)
	}
	migrator, err := migrate.New(sqlDB, sourceDir)
	if err != nil {
		logg.Error(ctx, "failed to load migrations", err)
		os.Exit(1)
	}

	if err := run(ctx, migrator, opts); err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration command finished")
}

func exit(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
