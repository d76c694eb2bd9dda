// Package app wires the services shared by the HTTP server and the worker.
package app

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/suPer8Hu/w3a11y-artisan/internal/alttext"
	"github.com/suPer8Hu/w3a11y-artisan/internal/artisan"
	"github.com/suPer8Hu/w3a11y-artisan/internal/bulk"
	"github.com/suPer8Hu/w3a11y-artisan/internal/config"
	"github.com/suPer8Hu/w3a11y-artisan/internal/history"
	"github.com/suPer8Hu/w3a11y-artisan/internal/imagehistory"
	"github.com/suPer8Hu/w3a11y-artisan/internal/logger"
	"github.com/suPer8Hu/w3a11y-artisan/internal/media"
	"github.com/suPer8Hu/w3a11y-artisan/internal/notify"
	"github.com/suPer8Hu/w3a11y-artisan/internal/remote"
	"github.com/suPer8Hu/w3a11y-artisan/internal/settings"
)

type Services struct {
	Settings *settings.Store
	Remote   *remote.Client
	Media    *media.Repo
	History  *history.Repo
	Notices  *notify.Manager
	Bulk     *bulk.Processor
	Artisan  *artisan.Service
	AltText  *alttext.Service
	Images   *imagehistory.Store
}

func NewServices(db *gorm.DB, rdb *redis.Client, cfg config.Config, l *slog.Logger) *Services {
	st := settings.NewStore(db, cfg.SettingsSecret)
	client := remote.NewClient(cfg.RemoteBaseURL, st, cfg.RemoteTimeout, logger.Service(l, "remote"))
	lib := media.NewRepo(db)
	hist := history.NewRepo(db)
	notices := notify.NewManager(rdb, logger.Service(l, "notify"))

	return &Services{
		Settings: st,
		Remote:   client,
		Media:    lib,
		History:  hist,
		Notices:  notices,
		Bulk: bulk.NewProcessor(bulk.NewRedisStore(rdb), client, lib, notices, bulk.Config{
			DefaultBatchSize: cfg.BulkDefaultBatchSize,
			PollDelay:        cfg.BulkPollDelay,
			SessionTTL:       cfg.BulkSessionTTL,
			ResumableTTL:     cfg.BulkResumableTTL,
			CancelledTTL:     cfg.BulkCancelledTTL,
			Lease:            cfg.RemoteTimeout + 30*time.Second,
		}, logger.Service(l, "bulk")),
		Artisan: artisan.NewService(client, lib, hist, st, notices, artisan.Options{
			UploadDir:     cfg.UploadDir,
			UploadBaseURL: cfg.UploadBaseURL,
		}, logger.Service(l, "artisan")),
		AltText: alttext.NewService(client, lib, st, notices, logger.Service(l, "alttext")),
		Images:  imagehistory.NewStore(imagehistory.DefaultMaxSize, 2*time.Hour),
	}
}
