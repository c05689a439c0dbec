package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"blog-service/internal/config"
	"blog-service/internal/repository/sqlstore"
)

func main() {
	command := pflag.StringP("command", "c", "up", "migrate command (up|status|down)")
	timeout := pflag.Duration("timeout", time.Minute, "command timeout")
	target := pflag.Int64("target", -1, "target version for down; -1 rolls back one migration")
	pflag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg, *command, *target, logger); err != nil {
		logger.WithField("command", *command).Error(err)
		cancel()
		os.Exit(1)
	}
	logger.WithField("command", *command).Info("migration command completed")
}

func run(ctx context.Context, cfg config.Config, command string, target int64, logger *logrus.Logger) error {
	var (
		db      *sqlx.DB
		dialect sqlstore.Dialect
		err     error
	)
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		dialect = sqlstore.DialectSQLite
		db, err = sqlstore.OpenSQLite(cfg.Database.Path)
	case config.DriverPostgres:
		dialect = sqlstore.DialectPostgres
		db, err = sqlstore.OpenPostgres(ctx, cfg.Database.DSN)
	default:
		return fmt.Errorf("driver %q has no SQL migrations", cfg.Database.Driver)
	}
	if err != nil {
		return err
	}

	provider, err := sqlstore.NewMigrator(db.DB, dialect)
	if err != nil {
		_ = db.Close()
		return err
	}
	// closes db as well
	defer provider.Close()

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		for _, r := range results {
			logger.WithFields(logrus.Fields{"version": r.Source.Version, "duration": r.Duration}).Info("applied migration")
		}
		return err
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			fields := logrus.Fields{"version": s.Source.Version, "state": s.State}
			if !s.AppliedAt.IsZero() {
				fields["applied_at"] = s.AppliedAt.Format(time.RFC3339)
			}
			logger.WithFields(fields).Info(s.Source.Path)
		}
		return nil
	case "down":
		if target >= 0 {
			results, err := provider.DownTo(ctx, target)
			for _, r := range results {
				logger.WithField("version", r.Source.Version).Info("rolled back migration")
			}
			return err
		}
		result, err := provider.Down(ctx)
		if result != nil && result.Source != nil {
			logger.WithField("version", result.Source.Version).Info("rolled back migration")
		}
		return err
	default:
		return fmt.Errorf("unsupported command %q", command)
	}
}
