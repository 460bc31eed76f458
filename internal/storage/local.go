// AngelaMos | 2026
// local.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelamos/musicdesk/internal/core"
)

// LocalStore keeps objects on disk under root/<bucket>/<key> and serves
// them through HMAC signed links.
type LocalStore struct {
	root    string
	baseURL string
	key     []byte
}

func NewLocalStore(root, baseURL string, signingKey []byte) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	if len(signingKey) == 0 {
		signingKey = []byte("musicdesk-local-storage")
	}

	return &LocalStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     signingKey,
	}, nil
}

func (s *LocalStore) path(bucket, key string) (string, error) {
	if !knownBucket(bucket) {
		return "", fmt.Errorf("bucket %q: %w", bucket, core.ErrInvalidInput)
	}

	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("empty object key: %w", core.ErrInvalidInput)
	}

	return filepath.Join(s.root, bucket, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Put(
	_ context.Context,
	bucket, key string,
	body io.Reader,
	_ int64,
	_ string,
) error {
	p, err := s.path(bucket, key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}

	f, err := os.Create(p) //nolint:gosec // path is cleaned and rooted
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}

	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close() //nolint:errcheck // already failing
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}

	return f.Close()
}

func (s *LocalStore) Delete(_ context.Context, bucket, key string) error {
	p, err := s.path(bucket, key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete %s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}

	return nil
}

func (s *LocalStore) SignedURL(
	_ context.Context,
	bucket, key string,
	ttl time.Duration,
) (string, error) {
	if _, err := s.path(bucket, key); err != nil {
		return "", err
	}

	expires := strconv.FormatInt(time.Now().Add(ttl).Unix(), 10)
	sig := core.SignPayload(s.key, signingPayload(bucket, key, expires))

	q := url.Values{}
	q.Set("expires", expires)
	q.Set("sig", sig)

	return fmt.Sprintf(
		"%s/files/%s/%s?%s",
		s.baseURL,
		bucket,
		escapeKey(key),
		q.Encode(),
	), nil
}

// RegisterRoutes mounts GET /files/{bucket}/* for signed downloads.
func (s *LocalStore) RegisterRoutes(r chi.Router) {
	r.Get("/files/{bucket}/*", s.ServeFile)
}

func (s *LocalStore) ServeFile(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")
	expires := r.URL.Query().Get("expires")
	sig := r.URL.Query().Get("sig")

	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || time.Now().Unix() > exp {
		core.Forbidden(w, "link expired")
		return
	}

	if !core.VerifyPayloadSignature(s.key, signingPayload(bucket, key, expires), sig) {
		core.Forbidden(w, "invalid signature")
		return
	}

	p, err := s.path(bucket, key)
	if err != nil {
		core.NotFound(w, "file")
		return
	}

	if _, err := os.Stat(p); err != nil {
		core.NotFound(w, "file")
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeFile(w, r, p)
}

func signingPayload(bucket, key, expires string) string {
	return bucket + "\n" + key + "\n" + expires
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
