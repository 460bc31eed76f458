// AngelaMos | 2026
// supabase.go

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// SupabaseStore talks to the Supabase Storage REST API with the service
// role key.
type SupabaseStore struct {
	baseURL    string
	storageURL string
	serviceKey string
	http       *http.Client
}

func NewSupabaseStore(projectURL, serviceKey string, client *http.Client) *SupabaseStore {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	base := strings.TrimRight(projectURL, "/")
	return &SupabaseStore{
		baseURL:    base,
		storageURL: base + "/storage/v1",
		serviceKey: serviceKey,
		http:       client,
	}
}

func (s *SupabaseStore) do(
	ctx context.Context,
	method, url string,
	body io.Reader,
	contentType string,
) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // body fully read

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrObjectNotFound
	}
	if resp.StatusCode >= 400 {
		msg := gjson.GetBytes(payload, "message").String()
		if msg == "" {
			msg = gjson.GetBytes(payload, "error").String()
		}
		return nil, fmt.Errorf("storage api %d: %s", resp.StatusCode, msg)
	}

	return payload, nil
}

func (s *SupabaseStore) Put(
	ctx context.Context,
	bucket, key string,
	body io.Reader,
	_ int64,
	contentType string,
) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url := fmt.Sprintf("%s/object/%s/%s", s.storageURL, bucket, escapeKey(key))
	if _, err := s.do(ctx, http.MethodPost, url, body, contentType); err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}

	return nil
}

func (s *SupabaseStore) Delete(ctx context.Context, bucket, key string) error {
	payload, err := json.Marshal(map[string][]string{"prefixes": {key}})
	if err != nil {
		return fmt.Errorf("marshal delete: %w", err)
	}

	url := fmt.Sprintf("%s/object/%s", s.storageURL, bucket)
	if _, err := s.do(ctx, http.MethodDelete, url, bytes.NewReader(payload), "application/json"); err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}

	return nil
}

func (s *SupabaseStore) SignedURL(
	ctx context.Context,
	bucket, key string,
	ttl time.Duration,
) (string, error) {
	payload, err := json.Marshal(map[string]int64{"expiresIn": int64(ttl / time.Second)})
	if err != nil {
		return "", fmt.Errorf("marshal sign: %w", err)
	}

	url := fmt.Sprintf("%s/object/sign/%s/%s", s.storageURL, bucket, escapeKey(key))
	resp, err := s.do(ctx, http.MethodPost, url, bytes.NewReader(payload), "application/json")
	if err != nil {
		return "", fmt.Errorf("sign %s/%s: %w", bucket, key, err)
	}

	signed := gjson.GetBytes(resp, "signedURL").String()
	if signed == "" {
		return "", fmt.Errorf("sign %s/%s: empty signedURL", bucket, key)
	}

	return s.storageURL + signed, nil
}
