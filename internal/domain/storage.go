package domain

import (
	"context"
	"io"
	"time"
)

type Folder struct {
	ID   string
	Name string
}

type RemoteObject struct {
	ID          string
	Name        string
	Size        int64
	CreatedTime time.Time
}

type ObjectSpec struct {
	Name        string
	Parent      string
	Description string
	ContentType string
	Size        int64
}

// ObjectQuery selects objects directly inside Parent whose name starts with
// NamePrefix.
type ObjectQuery struct {
	Parent     string
	NamePrefix string
}

// RemoteStore is the narrow surface of an object store that the backup
// pipeline needs. Implementations classify their failures as ErrRemoteAuth
// or ErrRemoteUnavailable.
type RemoteStore interface {
	FindFolders(ctx context.Context, name string) ([]Folder, error)
	CreateFolder(ctx context.Context, name string) (Folder, error)
	CreateObject(ctx context.Context, spec ObjectSpec, body io.Reader) (RemoteObject, error)
	ListObjects(ctx context.Context, query ObjectQuery) ([]RemoteObject, error)
	DeleteObject(ctx context.Context, id string) error
	Name() string
}
