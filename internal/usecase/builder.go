package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/semmidev/stashd/internal/domain"
)

const (
	MetadataFileName = "backup-info.json"
	DumpFileName     = "database.dump"
)

// placeholderContent stands in for a data file the service has never
// written: an empty JSON collection.
var placeholderContent = []byte("[]")

type BuilderConfig struct {
	SourceDir     string
	Files         []string
	SnapshotDir   string
	Prefix        string
	Kind          string
	RetentionDays int
	WorkDir       string
}

// BuildResult owns the scoped work directory holding the staged package and
// the archive. Callers must call Cleanup once the archive is no longer needed.
type BuildResult struct {
	WorkDir     string
	ArchivePath string
	Metadata    domain.BackupMetadata
}

func (r *BuildResult) ArchiveName() string {
	return filepath.Base(r.ArchivePath)
}

func (r *BuildResult) Cleanup() error {
	if r == nil || r.WorkDir == "" {
		return nil
	}
	return os.RemoveAll(r.WorkDir)
}

type Builder struct {
	cfg      BuilderConfig
	archiver domain.Archiver
	database domain.Database
	logger   Logger
	now      func() time.Time
	hostname func() (string, error)
}

// NewBuilder creates the archive builder. database may be nil when the
// service keeps all its state in the configured files.
func NewBuilder(cfg BuilderConfig, archiver domain.Archiver, database domain.Database, logger Logger) *Builder {
	return &Builder{
		cfg:      cfg,
		archiver: archiver,
		database: database,
		logger:   logger,
		now:      time.Now,
		hostname: os.Hostname,
	}
}

// Build stages every configured file and the snapshot tree into a fresh work
// directory, writes the metadata record and compresses the whole package.
// On error nothing is left on disk.
func (b *Builder) Build(ctx context.Context, runID string) (result *BuildResult, err error) {
	createdAt := b.now().UTC()
	baseName := ArchiveBaseName(b.cfg.Prefix, createdAt)

	workDir, err := os.MkdirTemp(b.cfg.WorkDir, "stashd-")
	if err != nil {
		return nil, fmt.Errorf("%w: create work dir: %w", domain.ErrPackaging, err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(workDir)
		}
	}()

	pkgDir := filepath.Join(workDir, baseName)
	if err := os.Mkdir(pkgDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create package dir: %w", domain.ErrPackaging, err)
	}

	entries := make([]domain.Entry, 0, len(b.cfg.Files)+2)
	for _, name := range b.cfg.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := b.stageFile(name, pkgDir)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	snapshot, err := b.stageSnapshots(pkgDir)
	if err != nil {
		return nil, err
	}
	entries = append(entries, snapshot)

	if b.database != nil {
		dump, err := b.stageDump(ctx, pkgDir)
		if err != nil {
			return nil, err
		}
		entries = append(entries, dump)
	}

	hostname, err := b.hostname()
	if err != nil {
		hostname = "unknown"
	}

	metadata := domain.BackupMetadata{
		RunID:         runID,
		Timestamp:     createdAt,
		Hostname:      hostname,
		Kind:          b.cfg.Kind,
		Entries:       entries,
		RetentionDays: b.cfg.RetentionDays,
		SourceDir:     b.cfg.SourceDir,
	}

	raw, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode metadata: %w", domain.ErrPackaging, err)
	}
	if err := os.WriteFile(filepath.Join(pkgDir, MetadataFileName), raw, 0644); err != nil {
		return nil, fmt.Errorf("%w: write metadata: %w", domain.ErrPackaging, err)
	}

	archivePath := filepath.Join(workDir, baseName+b.archiver.Extension())
	if err := b.archiver.Compress(pkgDir, archivePath); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPackaging, err)
	}
	if err := b.verify(archivePath, baseName, entries); err != nil {
		return nil, err
	}

	// The staged copy is no longer needed once the archive is verified.
	if err := os.RemoveAll(pkgDir); err != nil {
		b.logger.Warnf("Could not remove staged package %s: %v", pkgDir, err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: stat archive: %w", domain.ErrPackaging, err)
	}
	b.logger.Infof("Backup created: %s (%d bytes, %d real, %d placeholder)",
		filepath.Base(archivePath), info.Size(), metadata.RealEntries(), metadata.PlaceholderEntries())

	return &BuildResult{
		WorkDir:     workDir,
		ArchivePath: archivePath,
		Metadata:    metadata,
	}, nil
}

func (b *Builder) stageFile(name, pkgDir string) (domain.Entry, error) {
	src := filepath.Join(b.cfg.SourceDir, name)
	dst := filepath.Join(pkgDir, name)

	// Stat follows links, so a link to a missing file counts as absent.
	info, err := os.Stat(src)
	if os.IsNotExist(err) {
		if err := os.WriteFile(dst, placeholderContent, 0644); err != nil {
			return domain.Entry{}, fmt.Errorf("%w: write placeholder %s: %w", domain.ErrPackaging, name, err)
		}
		b.logger.Warnf("Source file %s missing, packaging an empty placeholder", name)
		return domain.Entry{
			Name:        name,
			Kind:        domain.EntryFile,
			Placeholder: true,
			Size:        int64(len(placeholderContent)),
		}, nil
	}
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%w: %s: %w", domain.ErrSourceRead, name, err)
	}

	if !info.Mode().IsRegular() {
		return domain.Entry{}, fmt.Errorf("%w: %s is not a regular file", domain.ErrSourceRead, name)
	}

	n, err := stageCopy(src, dst)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%w: %s: %w", domain.ErrSourceRead, name, err)
	}

	return domain.Entry{Name: name, Kind: domain.EntryFile, Size: n}, nil
}

func (b *Builder) stageSnapshots(pkgDir string) (domain.Entry, error) {
	name := b.cfg.SnapshotDir
	src := filepath.Join(b.cfg.SourceDir, name)
	dst := filepath.Join(pkgDir, name)
	entry := domain.Entry{Name: name + "/", Kind: domain.EntryDirectory}

	info, err := os.Stat(src)
	if os.IsNotExist(err) {
		if err := os.Mkdir(dst, 0755); err != nil {
			return domain.Entry{}, fmt.Errorf("%w: create empty %s: %w", domain.ErrPackaging, name, err)
		}
		b.logger.Warnf("Snapshot directory %s missing, packaging an empty directory", name)
		entry.Placeholder = true
		return entry, nil
	}
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%w: %s: %w", domain.ErrSourceRead, name, err)
	}
	if !info.IsDir() {
		return domain.Entry{}, fmt.Errorf("%w: %s is not a directory", domain.ErrSourceRead, name)
	}

	n, err := stageCopy(src, dst)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%w: %s: %w", domain.ErrSourceRead, name, err)
	}
	entry.Size = n

	return entry, nil
}

func (b *Builder) stageDump(ctx context.Context, pkgDir string) (domain.Entry, error) {
	dst := filepath.Join(pkgDir, DumpFileName)

	b.logger.Infof("Dumping %s database %s...", b.database.GetType(), b.database.GetName())
	if err := b.database.Backup(ctx, dst); err != nil {
		return domain.Entry{}, fmt.Errorf("%w: database dump: %w", domain.ErrSourceRead, err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%w: database dump: %w", domain.ErrSourceRead, err)
	}

	return domain.Entry{Name: DumpFileName, Kind: domain.EntryDump, Size: info.Size()}, nil
}

// verify re-reads the archive and checks every staged entry and the metadata
// record made it in.
func (b *Builder) verify(archivePath, root string, entries []domain.Entry) error {
	names, err := b.archiver.Entries(archivePath)
	if err != nil {
		return fmt.Errorf("%w: verify archive: %w", domain.ErrPackaging, err)
	}

	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}

	want := []string{root + "/" + MetadataFileName}
	for _, e := range entries {
		want = append(want, root+"/"+e.Name)
	}
	for _, name := range want {
		if !present[name] {
			return fmt.Errorf("%w: archive is missing %s", domain.ErrPackaging, name)
		}
	}

	return nil
}
