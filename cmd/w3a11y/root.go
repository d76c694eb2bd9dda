package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/suPer8Hu/w3a11y-artisan/internal/config"
	"github.com/suPer8Hu/w3a11y-artisan/internal/db"
	"github.com/suPer8Hu/w3a11y-artisan/internal/logger"
	"github.com/suPer8Hu/w3a11y-artisan/internal/store/redisstore"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "w3a11y",
		Short: "AI image generation and alt text backend for the W3A11Y Artisan plugin",
		Long: `w3a11y serves the Artisan AJAX actions (image generate, edit, inspire,
convert and save), single and bulk alt text generation, and a background
worker that drives bulk alt text sessions from RabbitMQ.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd(), newWorkerCmd(), newMigrateCmd(), newTokenCmd())
	return cmd
}

// deps holds the connections every long-running command needs.
type deps struct {
	cfg    config.Config
	logger *slog.Logger
	db     *gorm.DB
	rdb    *redis.Client
}

func (d *deps) Close() {
	if d.rdb != nil {
		_ = d.rdb.Close()
	}
	if d.db != nil {
		if sqlDB, err := d.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func bootstrap(ctx context.Context, withRedis bool) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	l := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(l)

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN, !cfg.IsProduction() && cfg.LogLevel == "debug")
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	d := &deps{cfg: cfg, logger: l, db: gdb}

	if withRedis {
		rdb, err := redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		d.rdb = rdb
	}
	return d, nil
}
