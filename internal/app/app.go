package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/semmidev/stashd/internal/adapter/compressor"
	"github.com/semmidev/stashd/internal/adapter/database"
	"github.com/semmidev/stashd/internal/adapter/notifier"
	"github.com/semmidev/stashd/internal/adapter/storage"
	"github.com/semmidev/stashd/internal/config"
	"github.com/semmidev/stashd/internal/domain"
	"github.com/semmidev/stashd/internal/infrastructure/logger"
	"github.com/semmidev/stashd/internal/infrastructure/metrics"
	"github.com/semmidev/stashd/internal/infrastructure/retry"
	"github.com/semmidev/stashd/internal/infrastructure/scheduler"
	"github.com/semmidev/stashd/internal/usecase"
)

type App struct {
	config        *config.Config
	logger        *logger.Logger
	metrics       *metrics.Recorder
	scheduler     *scheduler.Scheduler
	store         domain.RemoteStore
	backupJob     domain.BackupJob
	orchestrator  *usecase.Orchestrator
	metricsServer *http.Server
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(logger.Options{Level: cfg.App.LogLevel, File: cfg.App.LogFile})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s", cfg.App.Name)
	log.Infof("Source directory: %s (%d file(s) + %s/)", cfg.Backup.SourceDir, len(cfg.Backup.Files), cfg.Backup.SnapshotDir)

	store, err := initializeRemoteStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	db := initializeDatabase(ctx, cfg, log)

	recorder := metrics.NewRecorder()
	opts := []usecase.OrchestratorOption{usecase.WithMetrics(recorder)}

	if cfg.Notify.Enabled {
		n, err := notifier.NewTelegram(&cfg.Notify, cfg.App.Name)
		if err != nil {
			log.Errorf("Failed to initialize Telegram: %v", err)
		} else {
			opts = append(opts, usecase.WithNotifier(n))
			log.Infof("✓ Telegram notifications enabled")
		}
	}

	ucLog := log.Named("backup")
	orchestrator := usecase.NewOrchestrator(
		usecase.OrchestratorConfig{
			Container:     cfg.Backup.Container,
			RetentionDays: cfg.Backup.RetentionDays,
		},
		usecase.NewBuilder(usecase.BuilderConfig{
			SourceDir:     cfg.Backup.SourceDir,
			Files:         cfg.Backup.Files,
			SnapshotDir:   cfg.Backup.SnapshotDir,
			Prefix:        cfg.Backup.Prefix,
			Kind:          cfg.Backup.Kind,
			RetentionDays: cfg.Backup.RetentionDays,
			WorkDir:       cfg.Backup.WorkDir,
		}, compressor.NewTarGz(), db, ucLog),
		usecase.NewResolver(store, ucLog, cfg.Backup.StrictContainer),
		usecase.NewUploader(store, ucLog, cfg.App.Name),
		usecase.NewPruner(store, ucLog, cfg.Backup.Prefix),
		ucLog,
		opts...,
	)

	a := &App{
		config:       cfg,
		logger:       log,
		metrics:      recorder,
		store:        store,
		orchestrator: orchestrator,
	}
	a.backupJob = domain.BackupJob{
		Name:     cfg.Backup.Prefix,
		Schedule: cfg.Backup.Schedule,
		Executor: executorFunc(a.RunOnce),
	}
	a.scheduler = scheduler.New(func(name string, err error) {
		log.Errorf("Scheduled job %s failed: %v", name, err)
	})

	return a, nil
}

type executorFunc func(ctx context.Context) error

func (f executorFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// initializeRemoteStore picks the store named by remote.type. A Drive
// deployment without usable credentials gets the disabled store, so the
// archive is still built and the run reports why nothing was uploaded.
func initializeRemoteStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (domain.RemoteStore, error) {
	switch cfg.Remote.Type {
	case config.RemoteGDrive:
		if !cfg.Remote.HasGDriveCredentials() {
			log.Warnf("No Google credentials configured, remote uploads disabled")
			return storage.NewDisabled("no Google credentials configured"), nil
		}
		opts, err := storage.GDriveCredentials(ctx, &cfg.Remote)
		if err != nil {
			log.Warnf("Google credentials unusable, remote uploads disabled: %v", err)
			return storage.NewDisabled(err.Error()), nil
		}
		store, err := storage.NewGDrive(ctx, &cfg.Remote, opts...)
		if err != nil {
			log.Warnf("Google Drive unavailable, remote uploads disabled: %v", err)
			return storage.NewDisabled(err.Error()), nil
		}
		log.Infof("✓ Google Drive upload enabled (folder: %s)", cfg.Backup.Container)
		return store, nil

	case config.RemoteS3:
		store, err := storage.NewS3(ctx, &cfg.Remote)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3: %w", err)
		}
		log.Infof("✓ S3 upload enabled (bucket: %s)", cfg.Remote.Bucket)
		return store, nil

	case config.RemoteLocal:
		store, err := storage.NewLocal(cfg.Remote.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		log.Infof("✓ Local copies enabled (path: %s)", cfg.Remote.Path)
		return store, nil

	case config.RemoteDisabled:
		log.Warnf("Remote uploads disabled by configuration")
		return storage.NewDisabled("remote.type is disabled"), nil
	}

	return nil, fmt.Errorf("unknown remote type: %s", cfg.Remote.Type)
}

func initializeDatabase(ctx context.Context, cfg *config.Config, log *logger.Logger) domain.Database {
	if !cfg.Database.Enabled {
		return nil
	}

	db := database.NewPostgreSQL(&cfg.Database)
	if err := db.Ping(ctx); err != nil {
		// Kept anyway: a dump that still fails at run time aborts that run.
		log.Warnf("Failed to connect to %s (%s): %v", db.GetName(), db.GetType(), err)
	} else {
		log.Infof("✓ Connected to %s (%s)", db.GetName(), db.GetType())
	}

	return db
}

// RunOnce performs one backup, repeating it with backoff while the remote
// store is unavailable.
func (a *App) RunOnce(ctx context.Context) error {
	retryCfg := retry.Config{
		MaxAttempts:     a.config.Retry.MaxAttempts,
		InitialInterval: a.config.Retry.InitialInterval,
		MaxInterval:     a.config.Retry.MaxInterval,
	}
	retryable := func(err error) bool {
		return errors.Is(err, domain.ErrRemoteUnavailable)
	}
	onRetry := func(err error, next time.Duration) {
		a.logger.Warnf("Backup run failed, retrying in %s: %v", next.Round(time.Second), err)
	}

	err := retry.Do(ctx, retryCfg, retryable, a.orchestrator.Execute, onRetry)

	if path := a.config.App.MetricsTextfile; path != "" {
		if werr := a.metrics.WriteTextfile(path); werr != nil {
			a.logger.Warnf("%v", werr)
		}
	}

	return err
}

// Run schedules the backup job and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if addr := a.config.App.MetricsAddr; addr != "" {
		a.startMetricsServer(addr)
	}

	job := a.backupJob
	if err := a.scheduler.AddJob(job.Name, job.Schedule, func(ctx context.Context) error {
		a.logger.Infof("=== Triggered scheduled backup %s ===", job.Name)
		return job.Executor.Execute(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule backup %s: %w", job.Name, err)
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started: %s (%s), destination: %s", job.Name, job.Schedule, a.store.Name())

	<-ctx.Done()
	return nil
}

func (a *App) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())

	a.metricsServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Infof("Metrics server listening on %s", addr)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Errorf("Metrics server error: %v", err)
		}
	}()
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")
	a.scheduler.Stop()

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Errorf("Failed to stop metrics server: %v", err)
		}
	}

	a.logger.Close()
}
