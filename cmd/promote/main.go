// Command promote grants the admin role to an existing account. It is the
// only way to create the first admin.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/evento-ems/access/internal/config"
	"github.com/evento-ems/access/internal/event"
	"github.com/evento-ems/access/internal/repository/postgres"
	"github.com/evento-ems/access/internal/service"
	"github.com/evento-ems/access/migrations"
	"github.com/evento-ems/access/pkg/database"
	pkgkafka "github.com/evento-ems/access/pkg/kafka"
	"github.com/evento-ems/access/pkg/logger"
)

func main() {
	email := flag.String("email", "", "email of the account to promote")
	flag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "usage: promote -email user@example.com")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("access-promote", cfg.LogLevel)

	if err := run(cfg, log, *email); err != nil {
		log.Error("promotion failed", slog.String("email", *email), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger, email string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), log, nil)
	defer producer.Close()

	admin := service.NewAdminService(
		postgres.NewUserRepository(pool),
		event.NewProducer(producer, log),
		service.NewMetrics(prometheus.NewRegistry()),
		log,
	)

	user, err := admin.Bootstrap(ctx, email)
	if err != nil {
		return err
	}

	log.Info("user promoted to admin",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return nil
}
