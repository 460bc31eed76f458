// AngelaMos | 2026
// gcs.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// maxGCSSignedURLTTL is the V4 signing limit.
const maxGCSSignedURLTTL = 7 * 24 * time.Hour

// GCSStore maps every logical bucket to a prefix of one GCS bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &GCSStore{client: client, bucket: bucket}, nil
}

func objectName(bucket, key string) string {
	return bucket + "/" + key
}

func (s *GCSStore) Put(
	ctx context.Context,
	bucket, key string,
	body io.Reader,
	_ int64,
	contentType string,
) error {
	w := s.client.Bucket(s.bucket).Object(objectName(bucket, key)).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close() //nolint:errcheck // already failing
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}

	return nil
}

func (s *GCSStore) Delete(ctx context.Context, bucket, key string) error {
	err := s.client.Bucket(s.bucket).Object(objectName(bucket, key)).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, ErrObjectNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// SignedURL issues a V4 GET link. Longer lifetimes are clamped to the
// seven day V4 maximum.
func (s *GCSStore) SignedURL(
	_ context.Context,
	bucket, key string,
	ttl time.Duration,
) (string, error) {
	ttl = min(ttl, maxGCSSignedURLTTL)

	u, err := s.client.Bucket(s.bucket).SignedURL(objectName(bucket, key), &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("sign %s/%s: %w", bucket, key, err)
	}

	return u, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
