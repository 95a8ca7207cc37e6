// Package app assembles the console's long-lived components from configuration.
// Both the API server and the CLI start from Build.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/timmy/footfall/internal/config"
	"github.com/timmy/footfall/internal/logger"
	"github.com/timmy/footfall/internal/media"
	"github.com/timmy/footfall/internal/notify"
	"github.com/timmy/footfall/internal/repository"
	"github.com/timmy/footfall/internal/service"
	"github.com/timmy/footfall/internal/storage"
	"github.com/timmy/footfall/internal/wizard"
	"gorm.io/gorm"
)

// App holds the wired components of one console process.
type App struct {
	Origin   string
	DB       *gorm.DB
	Client   *service.JobServiceClient
	Bus      *notify.Fanout
	Wizard   *wizard.Wizard
	Intake   *service.Intake
	Jobs     *service.JobController
	SubRange *service.SubRangeController
	History  *service.HistoryService
	Archive  *storage.Archive

	log *logger.Logger
}

type bucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}

// Build opens the database, connects the notification backend and storage, and
// creates the controllers. Close releases everything Build acquired.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Origin: uuid.New().String(), log: log}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db

	remote, err := a.remoteBus(cfg, db)
	if err != nil {
		a.closeDB()
		return nil, err
	}
	a.Bus = notify.NewFanout(a.Origin, remote)

	var archiver service.Archiver
	var purger service.JobPurger
	store, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if store != nil {
		if e, ok := store.(bucketEnsurer); ok {
			if err := e.EnsureBucket(ctx); err != nil {
				a.Close()
				return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
			}
		}
		a.Archive = storage.NewArchive(store, log)
		archiver, purger = a.Archive, a.Archive
		log.WithField("bucket", cfg.Storage.Bucket).Info("Export archiving enabled")
	}

	a.Client = service.NewJobServiceClient(&service.JobServiceConfig{
		BaseURL: cfg.JobService.BaseURL,
		APIKey:  cfg.JobService.APIKey,
		Timeout: cfg.JobService.Timeout,
	})
	a.Wizard = wizard.New(log)
	a.Intake = service.NewIntake(&media.Prober{
		FFprobeBin: cfg.Media.FFprobeBin,
		FFmpegBin:  cfg.Media.FFmpegBin,
	}, a.Wizard, cfg.Media.WorkDir, log)
	a.Jobs = service.NewJobController(
		a.Client,
		repository.NewResumeStore(repository.NewStateRepository(db)),
		a.Bus,
		a.Wizard,
		service.JobControllerConfig{
			Interval:    cfg.Polling.Interval,
			MaxFailures: cfg.Polling.MaxFailures,
		},
		log,
	)
	a.SubRange = service.NewSubRangeController(a.Client, archiver, cfg.Polling.SubRangeInterval, log)
	a.History = service.NewHistoryService(a.Client, a.Bus, purger, log)
	return a, nil
}

func (a *App) remoteBus(cfg *config.Config, db *gorm.DB) (notify.Bus, error) {
	switch cfg.Notify.Backend {
	case "redis":
		bus, err := notify.NewRedisBus(cfg.Notify.RedisAddr, cfg.Notify.RedisChannel, a.Origin, a.log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect notification bus: %w", err)
		}
		return bus, nil
	case "store":
		return notify.NewStoreBus(
			repository.NewNotificationRepository(db),
			a.Origin,
			cfg.Notify.StorePollInterval,
			cfg.Notify.Retention,
			a.log,
		), nil
	default:
		return nil, nil
	}
}

// Close stops the controllers and releases the bus and database.
func (a *App) Close() error {
	if a.Jobs != nil {
		a.Jobs.Close()
	}
	if a.SubRange != nil {
		a.SubRange.Close()
	}
	var errs []error
	if a.Bus != nil {
		errs = append(errs, a.Bus.Close())
	}
	errs = append(errs, a.closeDB())
	return errors.Join(errs...)
}

func (a *App) closeDB() error {
	if a.DB == nil {
		return nil
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
