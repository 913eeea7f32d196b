package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/semmidev/stashd/internal/domain"
)

const archiveContentType = "application/gzip"

type Uploader struct {
	store   domain.RemoteStore
	logger  Logger
	appName string
}

func NewUploader(store domain.RemoteStore, logger Logger, appName string) *Uploader {
	return &Uploader{store: store, logger: logger, appName: appName}
}

// Upload streams the archive into the container. A stored object whose size
// differs from the local archive is removed again and reported as
// ErrUploadIncomplete.
func (u *Uploader) Upload(ctx context.Context, containerID, archivePath string, metadata domain.BackupMetadata) (domain.RemoteObject, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return domain.RemoteObject{}, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return domain.RemoteObject{}, fmt.Errorf("stat archive: %w", err)
	}

	spec := domain.ObjectSpec{
		Name:        filepath.Base(archivePath),
		Parent:      containerID,
		Description: u.description(metadata),
		ContentType: archiveContentType,
		Size:        info.Size(),
	}

	u.logger.Infof("Uploading %s (%s) to %s...", spec.Name, humanize.Bytes(uint64(spec.Size)), u.store.Name())
	start := time.Now()

	object, err := u.store.CreateObject(ctx, spec, file)
	if err != nil {
		return domain.RemoteObject{}, fmt.Errorf("upload %s: %w", spec.Name, err)
	}

	if object.Size != spec.Size {
		if delErr := u.store.DeleteObject(ctx, object.ID); delErr != nil {
			u.logger.Errorf("Could not remove incomplete object %s: %v", object.ID, delErr)
		}
		return domain.RemoteObject{}, fmt.Errorf("%w: %s stored %d of %d bytes",
			domain.ErrUploadIncomplete, spec.Name, object.Size, spec.Size)
	}

	u.logger.Infof("Uploaded %s in %s: id %s", object.Name, time.Since(start).Round(time.Millisecond), object.ID)
	return object, nil
}

func (u *Uploader) description(metadata domain.BackupMetadata) string {
	return fmt.Sprintf("%s %s backup created %s",
		u.appName, metadata.Kind, metadata.Timestamp.UTC().Format(time.RFC3339))
}
