// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/angelamos/musicdesk/internal/auth"
	"github.com/angelamos/musicdesk/internal/bootstrap"
	"github.com/angelamos/musicdesk/internal/config"
	"github.com/angelamos/musicdesk/internal/core"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	email := flag.String("email", "", "admin email, overrides bootstrap.admin_email")
	password := flag.String("password", "", "admin password, overrides bootstrap.admin_password")
	name := flag.String("name", "", "admin display name")
	skipMigrate := flag.Bool("skip-migrate", false, "do not apply schema migrations")
	skipKeys := flag.Bool("skip-keys", false, "do not generate missing JWT signing keys")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	seed := bootstrap.AdminSeed{
		Email:    *email,
		Password: *password,
		FullName: *name,
	}

	if err := run(*configPath, seed, options{migrate: !*skipMigrate, keys: !*skipKeys}); err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	migrate bool
	keys    bool
}

func run(configPath string, seed bootstrap.AdminSeed, opts options) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if seed.Email == "" {
		seed.Email = cfg.Bootstrap.AdminEmail
	}
	if seed.Password == "" {
		seed.Password = cfg.Bootstrap.AdminPassword
	}
	if seed.FullName == "" {
		seed.FullName = cfg.Bootstrap.AdminName
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // process exits right after

	if opts.keys {
		generated, err := auth.EnsureKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath)
		if err != nil {
			return err
		}
		slog.Info("signing keys checked", "path", cfg.JWT.PrivateKeyPath, "generated", generated)
	}

	if opts.migrate {
		if err := core.Migrate(ctx, db.DB); err != nil {
			return err
		}
		slog.Info("migrations applied", "files", len(core.MigrationNames()))
	}

	created, err := bootstrap.EnsureAdmin(ctx, db.DB, seed)
	if err != nil {
		return err
	}

	slog.Info("bootstrap complete", "email", seed.Email, "created", created)
	return nil
}
