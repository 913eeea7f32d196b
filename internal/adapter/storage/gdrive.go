package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/semmidev/stashd/internal/config"
	"github.com/semmidev/stashd/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	folderMimeType   = "application/vnd.google-apps.folder"
	defaultChunkSize = googleapi.DefaultUploadChunkSize
	listPageSize     = 100
)

type GDriveStorage struct {
	service   *drive.Service
	chunkSize int
}

func NewGDrive(ctx context.Context, cfg *config.RemoteConfig, opts ...option.ClientOption) (*GDriveStorage, error) {
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return NewGDriveWithService(service, cfg.ChunkSizeMB*1024*1024), nil
}

func NewGDriveWithService(service *drive.Service, chunkSize int) *GDriveStorage {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &GDriveStorage{service: service, chunkSize: chunkSize}
}

// GDriveCredentials turns the configured service account key, or OAuth client
// secret plus saved token, into client options for NewGDrive.
func GDriveCredentials(ctx context.Context, cfg *config.RemoteConfig) ([]option.ClientOption, error) {
	if cfg.CredentialsFile != "" {
		return []option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(drive.DriveScope),
		}, nil
	}

	if cfg.ClientSecretFile == "" || cfg.TokenFile == "" {
		return nil, fmt.Errorf("%w: no google credentials configured", domain.ErrRemoteAuth)
	}

	secret, err := os.ReadFile(cfg.ClientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read client secret: %w", domain.ErrRemoteAuth, err)
	}
	oauthCfg, err := google.ConfigFromJSON(secret, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to parse client secret: %w", domain.ErrRemoteAuth, err)
	}

	token, err := LoadToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	return []option.ClientOption{option.WithTokenSource(oauthCfg.TokenSource(ctx, token))}, nil
}

func LoadToken(path string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read token file: %w", domain.ErrRemoteAuth, err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("%w: unable to parse token file: %w", domain.ErrRemoteAuth, err)
	}
	if token.RefreshToken == "" && token.AccessToken == "" {
		return nil, fmt.Errorf("%w: token file %s holds no token", domain.ErrRemoteAuth, path)
	}
	return &token, nil
}

// SaveToken writes token where LoadToken expects it, readable only by the
// owner.
func SaveToken(path string, token *oauth2.Token) error {
	raw, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode token: %w", err)
	}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return fmt.Errorf("unable to write token file: %w", err)
	}
	return nil
}

func (g *GDriveStorage) Name() string {
	return "gdrive"
}

// FindFolders returns folders named exactly name, oldest first.
func (g *GDriveStorage) FindFolders(ctx context.Context, name string) ([]domain.Folder, error) {
	var folders []domain.Folder

	err := g.service.Files.List().
		Q(folderQuery(name)).
		Fields("nextPageToken, files(id, name, createdTime)").
		OrderBy("createdTime").
		PageSize(listPageSize).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				folders = append(folders, domain.Folder{ID: f.Id, Name: f.Name})
			}
			return nil
		})
	if err != nil {
		return nil, classifyGoogle("list folders", err)
	}

	return folders, nil
}

func (g *GDriveStorage) CreateFolder(ctx context.Context, name string) (domain.Folder, error) {
	created, err := g.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
	}).
		Fields("id, name").
		Context(ctx).
		Do()
	if err != nil {
		return domain.Folder{}, classifyGoogle("create folder", err)
	}

	return domain.Folder{ID: created.Id, Name: created.Name}, nil
}

// CreateObject streams body to Drive. Bodies larger than one chunk use the
// resumable upload protocol.
func (g *GDriveStorage) CreateObject(ctx context.Context, spec domain.ObjectSpec, body io.Reader) (domain.RemoteObject, error) {
	fileMetadata := &drive.File{
		Name:        spec.Name,
		Parents:     []string{spec.Parent},
		Description: spec.Description,
	}

	mediaOpts := []googleapi.MediaOption{googleapi.ChunkSize(g.chunkSize)}
	if spec.ContentType != "" {
		fileMetadata.MimeType = spec.ContentType
		mediaOpts = append(mediaOpts, googleapi.ContentType(spec.ContentType))
	}

	created, err := g.service.Files.Create(fileMetadata).
		Media(body, mediaOpts...).
		Fields("id, name, size, createdTime").
		Context(ctx).
		Do()
	if err != nil {
		return domain.RemoteObject{}, classifyGoogle("upload", err)
	}

	return toRemoteObject(created), nil
}

func (g *GDriveStorage) ListObjects(ctx context.Context, query domain.ObjectQuery) ([]domain.RemoteObject, error) {
	var objects []domain.RemoteObject

	err := g.service.Files.List().
		Q(objectQuery(query)).
		Fields("nextPageToken, files(id, name, size, createdTime)").
		OrderBy("createdTime").
		PageSize(listPageSize).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				objects = append(objects, toRemoteObject(f))
			}
			return nil
		})
	if err != nil {
		return nil, classifyGoogle("list objects", err)
	}

	return objects, nil
}

// DeleteObject permanently deletes a file. A file that is already gone counts
// as deleted.
func (g *GDriveStorage) DeleteObject(ctx context.Context, id string) error {
	err := g.service.Files.Delete(id).Context(ctx).Do()
	if err != nil && !isGoogleNotFound(err) {
		return classifyGoogle("delete", err)
	}
	return nil
}

func toRemoteObject(f *drive.File) domain.RemoteObject {
	created, _ := time.Parse(time.RFC3339, f.CreatedTime)
	return domain.RemoteObject{
		ID:          f.Id,
		Name:        f.Name,
		Size:        f.Size,
		CreatedTime: created.UTC(),
	}
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func folderQuery(name string) string {
	return fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		queryEscaper.Replace(name), folderMimeType)
}

func objectQuery(q domain.ObjectQuery) string {
	return fmt.Sprintf("'%s' in parents and name contains '%s' and mimeType != '%s' and trashed = false",
		queryEscaper.Replace(q.Parent), queryEscaper.Replace(q.NamePrefix), folderMimeType)
}
