package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	appconfig "github.com/semmidev/stashd/internal/config"
	"github.com/semmidev/stashd/internal/domain"
)

type s3API interface {
	s3manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	s3.HeadObjectAPIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage maps a container onto a key prefix ending in "/" inside one
// bucket. The container is materialised as an empty marker object so that
// an empty container is still discoverable.
type S3Storage struct {
	client   s3API
	uploader *s3manager.Uploader
	bucket   string
}

func NewS3(ctx context.Context, cfg *appconfig.RemoteConfig) (*S3Storage, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3WithClient(client, cfg.Bucket), nil
}

func NewS3WithClient(client s3API, bucket string) *S3Storage {
	return &S3Storage{
		client:   client,
		uploader: s3manager.NewUploader(client),
		bucket:   bucket,
	}
}

func (s *S3Storage) Name() string {
	return "s3"
}

func (s *S3Storage) FindFolders(ctx context.Context, name string) ([]domain.Folder, error) {
	prefix := folderKey(name)
	resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, classifyAWS("list folders", err)
	}
	if len(resp.Contents) == 0 {
		return nil, nil
	}

	return []domain.Folder{{ID: prefix, Name: name}}, nil
}

func (s *S3Storage) CreateFolder(ctx context.Context, name string) (domain.Folder, error) {
	key := folderKey(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return domain.Folder{}, classifyAWS("create folder", err)
	}

	return domain.Folder{ID: key, Name: name}, nil
}

// CreateObject uploads through the multipart manager, which aborts the
// multipart upload when any part fails.
func (s *S3Storage) CreateObject(ctx context.Context, spec domain.ObjectSpec, body io.Reader) (domain.RemoteObject, error) {
	key := spec.Parent + spec.Name

	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     body,
		Metadata: map[string]string{"description": spec.Description},
	}
	if spec.ContentType != "" {
		input.ContentType = aws.String(spec.ContentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return domain.RemoteObject{}, classifyAWS("upload", err)
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return domain.RemoteObject{}, classifyAWS("stat uploaded object", err)
	}

	return domain.RemoteObject{
		ID:          key,
		Name:        spec.Name,
		Size:        aws.ToInt64(head.ContentLength),
		CreatedTime: aws.ToTime(head.LastModified).UTC(),
	}, nil
}

func (s *S3Storage) ListObjects(ctx context.Context, query domain.ObjectQuery) ([]domain.RemoteObject, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(query.Parent + query.NamePrefix),
	})

	var objects []domain.RemoteObject
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classifyAWS("list objects", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, query.Parent)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			objects = append(objects, domain.RemoteObject{
				ID:          key,
				Name:        name,
				Size:        aws.ToInt64(obj.Size),
				CreatedTime: aws.ToTime(obj.LastModified).UTC(),
			})
		}
	}

	return objects, nil
}

func (s *S3Storage) DeleteObject(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	var notFound *types.NoSuchKey
	if err != nil && !errors.As(err, &notFound) {
		return classifyAWS("delete", err)
	}
	return nil
}

func folderKey(name string) string {
	return strings.TrimSuffix(name, "/") + "/"
}
