// AngelaMos | 2026
// store.go

// Package storage keeps uploaded files (deposit receipts, request
// attachments, contractor avatars) and hands out time-limited links.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/angelamos/musicdesk/internal/config"
)

const (
	BucketReceipts            = "receipts"
	BucketAttachments         = "attachments"
	BucketContractorDocuments = "contractor-documents"
)

var ErrObjectNotFound = errors.New("object not found")

type Store interface {
	Put(
		ctx context.Context,
		bucket, key string,
		body io.Reader,
		size int64,
		contentType string,
	) error
	Delete(ctx context.Context, bucket, key string) error
	SignedURL(
		ctx context.Context,
		bucket, key string,
		ttl time.Duration,
	) (string, error)
}

// New opens the backend named by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case config.StorageLocal:
		return NewLocalStore(cfg.LocalRoot, cfg.PublicBaseURL, []byte(cfg.SigningKey))
	case config.StorageGCS:
		return NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
	case config.StorageSupabase:
		return NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func knownBucket(bucket string) bool {
	switch bucket {
	case BucketReceipts, BucketAttachments, BucketContractorDocuments:
		return true
	}
	return false
}
