// Package s3 provides an S3 compatible (AWS S3, MinIO) implementation of the storage adapter
// interfaces on top of minio-go.
package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	storageAdapter "github.com/tigerroll/ecoroute/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/ecoroute/pkg/batch/adapter/storage/config"
	coreConfig "github.com/tigerroll/ecoroute/pkg/batch/core/config"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// ProviderType defines the type identifier for this provider.
const ProviderType = "s3"

type s3Adapter struct {
	client *minio.Client
	cfg    storageConfig.StorageConfig
	name   string
}

var _ storageAdapter.StorageConnection = (*s3Adapter)(nil)

// NewS3Adapter creates a minio client for the configured endpoint. Without static keys the
// IAM / environment credential chain is used.
func NewS3Adapter(cfg storageConfig.StorageConfig, name string) (storageAdapter.StorageConnection, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 adapter '%s': endpoint must be specified in configuration", name)
	}
	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.EnvMinio{},
		&credentials.IAM{},
	})
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 adapter '%s': failed to create client: %w", name, err)
	}
	return &s3Adapter{client: client, cfg: cfg, name: name}, nil
}

func (a *s3Adapter) bucket(name string) (string, error) {
	if name == "" {
		name = a.cfg.BucketName
	}
	if name == "" {
		return "", fmt.Errorf("s3 adapter '%s': no bucket given and bucket_name is not configured", a.name)
	}
	return name, nil
}

// Upload streams data with an unknown size; minio-go switches to multipart uploads as needed.
func (a *s3Adapter) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	b, err := a.bucket(bucket)
	if err != nil {
		return err
	}
	if _, err := a.client.PutObject(ctx, b, objectName, data, -1, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", b, objectName, err)
	}
	logger.Debugf("Uploaded s3://%s/%s (s3 adapter '%s').", b, objectName, a.name)
	return nil
}

func (a *s3Adapter) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	b, err := a.bucket(bucket)
	if err != nil {
		return nil, err
	}
	obj, err := a.client.GetObject(ctx, b, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open s3://%s/%s: %w", b, objectName, err)
	}
	// GetObject is lazy; Stat surfaces a missing object here rather than on first Read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to open s3://%s/%s: %w", b, objectName, err)
	}
	return obj, nil
}

func (a *s3Adapter) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	b, err := a.bucket(bucket)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for obj := range a.client.ListObjects(ctx, b, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("failed to list s3://%s/%s: %w", b, prefix, obj.Err)
		}
		if err := fn(obj.Key); err != nil {
			return err
		}
	}
	return nil
}

func (a *s3Adapter) DeleteObject(ctx context.Context, bucket, objectName string) error {
	b, err := a.bucket(bucket)
	if err != nil {
		return err
	}
	return a.client.RemoveObject(ctx, b, objectName, minio.RemoveObjectOptions{})
}

// Close is a no-op; the minio client holds no per-connection resources.
func (a *s3Adapter) Close() error { return nil }

func (a *s3Adapter) Type() string { return ProviderType }

func (a *s3Adapter) Name() string { return a.name }

// NewS3Provider creates the storage provider for "s3" connections.
func NewS3Provider(cfg *coreConfig.Config) storageAdapter.StorageProvider {
	return storageAdapter.NewBaseProvider(cfg, ProviderType, NewS3Adapter)
}
