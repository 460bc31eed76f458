// AngelaMos | 2026
// client_test.go

package analysis

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/angelamos/musicdesk/internal/config"
	"github.com/angelamos/musicdesk/internal/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.AnalysisConfig{
		Enabled:    true,
		GatewayURL: srv.URL + "/v1/",
		APIKey:     "test-key",
		Model:      "google/gemini-2.5-flash",
		Timeout:    5 * time.Second,
	}, srv.Client())
}

func TestAnalyzeAudioReturnsContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "google/gemini-2.5-flash", gjson.GetBytes(body, "model").String())
		assert.Equal(t, "system", gjson.GetBytes(body, "messages.0.role").String())
		assert.Contains(t, gjson.GetBytes(body, "messages.1.content").String(),
			"https://files.test/a.mp3")

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Qualidade técnica: 8"}}]}`))
	})

	out, err := client.AnalyzeAudio(context.Background(), "https://files.test/a.mp3", "r1")

	require.NoError(t, err)
	assert.Equal(t, "Qualidade técnica: 8", out)
}

func TestAnalyzeAudioMapsGatewayStatus(t *testing.T) {
	tests := []struct {
		status  int
		wantErr error
	}{
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusPaymentRequired, ErrPaymentRequired},
		{http.StatusInternalServerError, core.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.AnalyzeAudio(context.Background(), "https://files.test/a.mp3", "")
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAnalyzeAudioEmptyContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.AnalyzeAudio(context.Background(), "https://files.test/a.mp3", "r1")
	require.ErrorIs(t, err, ErrEmptyAnalysis)
}

func TestAnalyzeAudioDisabled(t *testing.T) {
	client := NewClient(config.AnalysisConfig{}, nil)

	_, err := client.AnalyzeAudio(context.Background(), "x", "r1")
	require.ErrorIs(t, err, ErrDisabled)
}
