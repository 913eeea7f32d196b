package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/semmidev/stashd/internal/domain"
)

// DisabledStorage stands in when no remote credentials are available. Every
// call fails with domain.ErrRemoteDisabled, which aborts a run right after
// the archive has been built.
type DisabledStorage struct {
	reason string
}

func NewDisabled(reason string) *DisabledStorage {
	return &DisabledStorage{reason: reason}
}

func (d *DisabledStorage) Name() string {
	return "disabled"
}

func (d *DisabledStorage) Reason() string {
	return d.reason
}

func (d *DisabledStorage) FindFolders(context.Context, string) ([]domain.Folder, error) {
	return nil, d.err()
}

func (d *DisabledStorage) CreateFolder(context.Context, string) (domain.Folder, error) {
	return domain.Folder{}, d.err()
}

func (d *DisabledStorage) CreateObject(context.Context, domain.ObjectSpec, io.Reader) (domain.RemoteObject, error) {
	return domain.RemoteObject{}, d.err()
}

func (d *DisabledStorage) ListObjects(context.Context, domain.ObjectQuery) ([]domain.RemoteObject, error) {
	return nil, d.err()
}

func (d *DisabledStorage) DeleteObject(context.Context, string) error {
	return d.err()
}

func (d *DisabledStorage) err() error {
	if d.reason == "" {
		return domain.ErrRemoteDisabled
	}
	return fmt.Errorf("%w: %s", domain.ErrRemoteDisabled, d.reason)
}
