package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/migrate"
)

type options struct {
	command string
	dir     string
	name    string
	version string
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.command, "cmd", "up", "up | down | status | version | create | validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "migrations directory; the default uses the embedded set")
	flag.StringVar(&opts.name, "name", "", "slug for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "YYYYMMDDHHMMSS target for -cmd=version")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	switch opts.command {
	case "create":
		return create(opts)
	case "validate":
		return validate(opts.dir)
	case "up", "down", "status", "version":
	default:
		return fmt.Errorf("unknown -cmd %q", opts.command)
	}
	if opts.command == "version" && opts.version == "" {
		return errors.New("-cmd=version needs -version")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"cmd": opts.command,
		"dir": opts.dir,
	})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		return err
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}

	if opts.command == "version" {
		err = migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	} else {
		err = migrate.Run(ctx, sqlDB, opts.dir, opts.command)
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	logg.Info(ctx, "migration finished")
	return nil
}

// create and validate work on files only and never open the database.
func create(opts options) error {
	if opts.name == "" {
		return errors.New("-cmd=create needs -name")
	}
	path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
	if err != nil {
		return err
	}
	fmt.Println("created", path)
	return nil
}

func validate(dir string) error {
	check := func() error { return migrate.ValidateDir(dir) }
	if dir == migrate.DefaultDir {
		check = migrate.ValidateEmbedded
	}
	if err := check(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	fmt.Println("migrations valid")
	return nil
}
