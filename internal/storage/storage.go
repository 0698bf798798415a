// Package storage wraps the destination bucket behind a small interface so
// the uploader and recovery paths can be exercised against fakes in tests.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"shuttle/internal/config"
)

// ObjectInfo describes a remote object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Client is the subset of bucket operations the daemon needs.
type Client interface {
	// PresignPut returns a time-limited URL authorizing a PUT of the object.
	PresignPut(ctx context.Context, remotePath string, expiry time.Duration) (string, error)
	// Stat reports whether the object exists; found is false for missing keys.
	Stat(ctx context.Context, remotePath string) (info ObjectInfo, found bool, err error)
	// Remove deletes the object. Missing objects are not an error.
	Remove(ctx context.Context, remotePath string) error
}

type bucketClient struct {
	client *minio.Client
	bucket string
}

// NewClient connects to the configured bucket endpoint.
func NewClient(cfg *config.Config) (Client, error) {
	endpoint := strings.TrimSpace(cfg.Storage.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("storage endpoint is not configured")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
		Region: cfg.Storage.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage connection: %w", err)
	}

	return &bucketClient{client: client, bucket: cfg.Storage.Bucket}, nil
}

func (c *bucketClient) PresignPut(ctx context.Context, remotePath string, expiry time.Duration) (string, error) {
	presigned, err := c.client.PresignedPutObject(ctx, c.bucket, remotePath, expiry)
	if err != nil {
		return "", fmt.Errorf("presign put for %q: %w", remotePath, err)
	}
	return presigned.String(), nil
}

func (c *bucketClient) Stat(ctx context.Context, remotePath string) (ObjectInfo, bool, error) {
	stat, err := c.client.StatObject(ctx, c.bucket, remotePath, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.StatusCode == http.StatusNotFound {
			return ObjectInfo{}, false, nil
		}
		return ObjectInfo{}, false, fmt.Errorf("stat %q: %w", remotePath, err)
	}
	return ObjectInfo{
		Key:          stat.Key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		LastModified: stat.LastModified,
	}, true, nil
}

func (c *bucketClient) Remove(ctx context.Context, remotePath string) error {
	err := c.client.RemoveObject(ctx, c.bucket, remotePath, minio.RemoveObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.StatusCode == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("remove %q: %w", remotePath, err)
	}
	return nil
}

// SignedURLHost extracts the host from a presigned URL for log output.
func SignedURLHost(signed string) string {
	parsed, err := url.Parse(signed)
	if err != nil {
		return ""
	}
	return parsed.Host
}
