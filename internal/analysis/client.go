// AngelaMos | 2026
// client.go

// Package analysis asks the AI gateway for a short musical review of an
// uploaded recording.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/angelamos/musicdesk/internal/config"
	"github.com/angelamos/musicdesk/internal/core"
	"github.com/angelamos/musicdesk/internal/metrics"
)

var (
	ErrRateLimited     = errors.New("analysis rate limited")
	ErrPaymentRequired = errors.New("analysis credits exhausted")
	ErrDisabled        = errors.New("analysis is not configured")
	ErrEmptyAnalysis   = errors.New("analysis response had no content")
)

const systemPrompt = "Você é um especialista em análise musical. Analise o áudio fornecido e " +
	"forneça: 1) Qualidade técnica (0-10), 2) Gênero musical, 3) BPM estimado, " +
	"4) Tonalidade, 5) Sugestões de melhoria. Seja conciso e objetivo."

type Client struct {
	endpoint string
	apiKey   string
	model    string
	enabled  bool
	http     *http.Client
}

func NewClient(cfg config.AnalysisConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpoint: strings.TrimRight(cfg.GatewayURL, "/") + "/chat/completions",
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		enabled:  cfg.Enabled,
		http:     httpClient,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

// AnalyzeAudio sends the recording link to the gateway and returns the
// model's text.
func (c *Client) AnalyzeAudio(ctx context.Context, audioURL, requestID string) (string, error) {
	if !c.enabled {
		return "", ErrDisabled
	}

	ctx, span := core.StartSpan(ctx, "analysis.AnalyzeAudio")
	var err error
	defer func() { core.EndSpan(span, err) }()

	if requestID == "" {
		requestID = "N/A"
	}

	body, err := json.Marshal(completionRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{
				Role:    "user",
				Content: fmt.Sprintf("Analise este áudio musical: %s\n\nRequest ID: %s", audioURL, requestID),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordAnalysis("error")
		err = fmt.Errorf("call gateway: %w: %w", core.ErrUpstream, err)
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck // body fully read

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.RecordAnalysis("error")
		err = fmt.Errorf("read gateway response: %w: %w", core.ErrUpstream, err)
		return "", err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.RecordAnalysis("rate_limited")
		err = ErrRateLimited
		return "", err
	case resp.StatusCode == http.StatusPaymentRequired:
		metrics.RecordAnalysis("payment_required")
		err = ErrPaymentRequired
		return "", err
	case resp.StatusCode >= 300:
		metrics.RecordAnalysis("error")
		err = fmt.Errorf("gateway status %d: %w", resp.StatusCode, core.ErrUpstream)
		return "", err
	}

	content := gjson.GetBytes(payload, "choices.0.message.content").String()
	if content == "" {
		metrics.RecordAnalysis("empty")
		err = fmt.Errorf("%w: %w", ErrEmptyAnalysis, core.ErrUpstream)
		return "", err
	}

	metrics.RecordAnalysis("ok")
	return content, nil
}
