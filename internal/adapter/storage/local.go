package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/semmidev/stashd/internal/domain"
)

// LocalStorage keeps containers as subdirectories of basePath. Object ids are
// paths relative to basePath and creation time is the file's mtime.
type LocalStorage struct {
	basePath string
}

func NewLocal(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) Name() string {
	return "local"
}

func (l *LocalStorage) FindFolders(ctx context.Context, name string) ([]domain.Folder, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to stat folder: %w", domain.ErrRemoteUnavailable, err)
	}
	if !info.IsDir() {
		return nil, nil
	}

	return []domain.Folder{{ID: name, Name: name}}, nil
}

func (l *LocalStorage) CreateFolder(ctx context.Context, name string) (domain.Folder, error) {
	path, err := l.resolve(name)
	if err != nil {
		return domain.Folder{}, err
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return domain.Folder{}, fmt.Errorf("%w: failed to create folder: %w", domain.ErrRemoteUnavailable, err)
	}
	return domain.Folder{ID: name, Name: name}, nil
}

// CreateObject writes through a temporary file in the container and renames
// it into place, so a failed copy never leaves a visible object behind.
func (l *LocalStorage) CreateObject(ctx context.Context, spec domain.ObjectSpec, body io.Reader) (domain.RemoteObject, error) {
	id := filepath.ToSlash(filepath.Join(spec.Parent, spec.Name))
	destPath, err := l.resolve(id)
	if err != nil {
		return domain.RemoteObject{}, err
	}

	dest, err := os.CreateTemp(filepath.Dir(destPath), ".upload-*")
	if err != nil {
		return domain.RemoteObject{}, fmt.Errorf("%w: failed to create dest: %w", domain.ErrRemoteUnavailable, err)
	}
	tmpPath := dest.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(dest, contextReader{ctx: ctx, r: body}); err != nil {
		dest.Close()
		return domain.RemoteObject{}, fmt.Errorf("%w: failed to copy: %w", domain.ErrUploadIncomplete, err)
	}
	if err := dest.Close(); err != nil {
		return domain.RemoteObject{}, fmt.Errorf("%w: failed to close dest: %w", domain.ErrUploadIncomplete, err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return domain.RemoteObject{}, fmt.Errorf("%w: failed to commit object: %w", domain.ErrRemoteUnavailable, err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return domain.RemoteObject{}, fmt.Errorf("%w: failed to stat object: %w", domain.ErrRemoteUnavailable, err)
	}

	return domain.RemoteObject{
		ID:          id,
		Name:        spec.Name,
		Size:        info.Size(),
		CreatedTime: info.ModTime().UTC(),
	}, nil
}

func (l *LocalStorage) ListObjects(ctx context.Context, query domain.ObjectQuery) ([]domain.RemoteObject, error) {
	dir, err := l.resolve(query.Parent)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read directory: %w", domain.ErrRemoteUnavailable, err)
	}

	var objects []domain.RemoteObject
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), query.NamePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to get file info for %s: %w", domain.ErrRemoteUnavailable, entry.Name(), err)
		}
		objects = append(objects, domain.RemoteObject{
			ID:          filepath.ToSlash(filepath.Join(query.Parent, entry.Name())),
			Name:        entry.Name(),
			Size:        info.Size(),
			CreatedTime: info.ModTime().UTC(),
		})
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

func (l *LocalStorage) DeleteObject(ctx context.Context, id string) error {
	path, err := l.resolve(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: failed to delete file: %w", domain.ErrRemoteUnavailable, err)
	}
	return nil
}

func (l *LocalStorage) GetPath(id string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(id))
}

// resolve maps an id onto the filesystem and refuses anything that escapes
// basePath.
func (l *LocalStorage) resolve(id string) (string, error) {
	path := filepath.Join(l.basePath, filepath.FromSlash(id))
	rel, err := filepath.Rel(l.basePath, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: invalid object id %q", domain.ErrRemoteUnavailable, id)
	}
	return path, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
