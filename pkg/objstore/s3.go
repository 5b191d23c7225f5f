// Package objstore reads source documents from an S3-compatible object
// store. MinIO is the usual deployment target, hence path-style addressing.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/velesio/docsapi/pkg/apperrors"
)

// Config holds the object store connection settings.
type Config struct {
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	RootPath  string `json:"root_path"`
}

// Store is an S3-backed document source scoped to one bucket prefix.
type Store struct {
	client   *s3.Client
	bucket   string
	rootPath string
	logger   *slog.Logger
}

// New builds a Store from static credentials.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading s3 config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client:   client,
		bucket:   cfg.Bucket,
		rootPath: strings.Trim(cfg.RootPath, "/"),
		logger:   logger.With("component", "objstore"),
	}, nil
}

// Get fetches a document's raw bytes by name.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, apperrors.New(apperrors.TypeNotFound, "objstore.Get", fmt.Sprintf("document %s not found", name))
		}
		return nil, apperrors.Wrap(apperrors.TypeUpstream, "objstore.Get", "object fetch failed", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.TypeUpstream, "objstore.Get", "object read failed", err)
	}
	return data, nil
}

// List enumerates document names under the configured prefix.
func (s *Store) List(ctx context.Context) ([]string, error) {
	prefix := s.rootPath
	if prefix != "" {
		prefix += "/"
	}
	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.TypeUpstream, "objstore.List", "object listing failed", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" || strings.HasSuffix(name, "/") {
				continue
			}
			names = append(names, name)
		}
	}
	s.logger.Debug("objects listed", "bucket", s.bucket, "prefix", prefix, "count", len(names))
	return names, nil
}

func (s *Store) key(name string) string {
	name = strings.TrimPrefix(name, "/")
	if s.rootPath == "" {
		return name
	}
	return s.rootPath + "/" + name
}
