// Package minio serves rule documents from an S3-compatible bucket.
package minio

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/LoreKit/internal/config"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/pkg/errors"
)

const connectTimeout = 10 * time.Second

// ObjectAPI is the subset of object storage the rule source uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, bucket, object string) ([]byte, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

type minioAPI struct {
	client *minio.Client
}

func (a minioAPI) GetObject(ctx context.Context, bucket, object string) ([]byte, error) {
	obj, err := a.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	// Missing keys surface on the first read, not on GetObject.
	return io.ReadAll(obj)
}

func (a minioAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return a.client.BucketExists(ctx, bucket)
}

// NewObjectAPI connects to cfg.Endpoint and checks that cfg.Bucket exists.
func NewObjectAPI(cfg config.MinIOConfig, log logging.Logger) (ObjectAPI, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create minio client")
	}

	api := minioAPI{client: client}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := checkBucket(ctx, api, cfg.Bucket); err != nil {
		return nil, err
	}

	log.Info("minio client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL),
	)
	return api, nil
}

func checkBucket(ctx context.Context, api ObjectAPI, bucket string) error {
	ok, err := api.BucketExists(ctx, bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to minio").WithDetail("bucket=" + bucket)
	}
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "rule bucket does not exist").WithDetail("bucket=" + bucket)
	}
	return nil
}
