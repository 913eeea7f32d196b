package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/semmidev/stashd/internal/domain"
)

type OrchestratorConfig struct {
	Container     string
	RetentionDays int
}

// Orchestrator runs one backup: build, resolve the container, upload and
// prune, in that order. Pruning only follows a confirmed upload.
//
// The container is resolved after the archive is built, as part of the
// uploading stage. A resolve failure aborts the run with a StageError for
// that stage, so nothing is uploaded and nothing is pruned.
type Orchestrator struct {
	cfg      OrchestratorConfig
	builder  *Builder
	resolver *Resolver
	uploader *Uploader
	pruner   *Pruner
	notifier domain.Notifier
	metrics  MetricsRecorder
	logger   Logger
	newID    func() string
}

type OrchestratorOption func(*Orchestrator)

func WithNotifier(n domain.Notifier) OrchestratorOption {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithMetrics(m MetricsRecorder) OrchestratorOption {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

func NewOrchestrator(
	cfg OrchestratorConfig,
	builder *Builder,
	resolver *Resolver,
	uploader *Uploader,
	pruner *Pruner,
	logger Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		builder:  builder,
		resolver: resolver,
		uploader: uploader,
		pruner:   pruner,
		metrics:  nopRecorder{},
		logger:   logger,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs once and returns the fatal error, if any. Prune failures are
// reported but never returned.
func (o *Orchestrator) Execute(ctx context.Context) error {
	return o.Run(ctx).Err
}

// Run executes one backup and reports how far it got. Local artifacts are
// removed on every exit path.
func (o *Orchestrator) Run(ctx context.Context) *domain.RunReport {
	report := &domain.RunReport{
		RunID:     o.newID(),
		State:     domain.StateIdle,
		StartedAt: time.Now(),
	}
	o.logger.Infof("[%s] Starting backup run...", report.RunID)

	defer func() {
		report.Duration = time.Since(report.StartedAt)
		o.finish(ctx, report)
	}()

	report.State = domain.StateBuilding
	stageStart := time.Now()
	build, err := o.builder.Build(ctx, report.RunID)
	o.metrics.RecordStage(string(domain.StateBuilding), err == nil, time.Since(stageStart))
	if err != nil {
		o.abort(report, domain.StateBuilding, err)
		return report
	}
	defer func() {
		if err := build.Cleanup(); err != nil {
			o.logger.Warnf("[%s] Could not remove work dir %s: %v", report.RunID, build.WorkDir, err)
		}
	}()

	report.Metadata = &build.Metadata
	report.Archive = build.ArchiveName()
	o.metrics.RecordPlaceholders(build.Metadata.PlaceholderEntries())

	report.State = domain.StateUploading
	stageStart = time.Now()
	containerID, object, err := o.upload(ctx, build)
	o.metrics.RecordStage(string(domain.StateUploading), err == nil, time.Since(stageStart))
	if err != nil {
		o.abort(report, domain.StateUploading, err)
		return report
	}
	report.Object = &object
	o.metrics.RecordUpload(object.Size)

	report.State = domain.StatePruning
	stageStart = time.Now()
	prune, err := o.pruner.Prune(ctx, containerID, o.cfg.RetentionDays, object.ID)
	o.metrics.RecordStage(string(domain.StatePruning), err == nil && len(prune.Failed) == 0, time.Since(stageStart))
	if err != nil {
		report.PruneErr = err
		o.logger.Warnf("[%s] Pruning failed, keeping all archives: %v", report.RunID, err)
	} else {
		report.Prune = &prune
		o.metrics.RecordPrune(len(prune.Deleted), len(prune.Failed), prune.Retained)
	}

	report.State = domain.StateDone
	return report
}

func (o *Orchestrator) upload(ctx context.Context, build *BuildResult) (string, domain.RemoteObject, error) {
	containerID, err := o.resolver.Resolve(ctx, o.cfg.Container)
	if err != nil {
		return "", domain.RemoteObject{}, err
	}

	object, err := o.uploader.Upload(ctx, containerID, build.ArchivePath, build.Metadata)
	if err != nil {
		return "", domain.RemoteObject{}, err
	}

	return containerID, object, nil
}

func (o *Orchestrator) abort(report *domain.RunReport, stage domain.RunState, err error) {
	report.State = domain.StateAborted
	report.Err = &domain.StageError{Stage: stage, Err: err}
	o.logger.Errorf("[%s] Backup aborted while %s: %v", report.RunID, stage, err)
}

func (o *Orchestrator) finish(ctx context.Context, report *domain.RunReport) {
	success := report.Success()
	o.metrics.RecordRun(success, report.Duration)

	summary := Summary(report)
	if success {
		o.logger.Infof("[%s] Backup completed in %s: %s", report.RunID, report.Duration.Round(time.Second), summary)
	} else {
		o.logger.Errorf("[%s] Backup failed after %s: %s", report.RunID, report.Duration.Round(time.Second), summary)
	}

	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, success, summary); err != nil {
		o.logger.Warnf("[%s] Notification failed: %v", report.RunID, err)
	}
}
