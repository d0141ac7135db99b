package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mir00r/recommendation-gateway/internal/domain"
	"github.com/mir00r/recommendation-gateway/internal/resilience"
	"github.com/mir00r/recommendation-gateway/pkg/logger"
)

// maxErrorBodyBytes bounds how much of a failing response body is kept
// for error messages.
const maxErrorBodyBytes = 512

// HTTPConfig configures one HTTP text-generation provider.
type HTTPConfig struct {
	Name    string        `json:"name" yaml:"name"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model" yaml:"model"`
	APIKey  string        `json:"api_key" yaml:"api_key"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// HTTPProvider calls a chat-completion style JSON endpoint and parses its
// output into recommendations. It normalizes non-2xx responses into
// StatusError and feeds header-signaled throttles into the throttle
// registry.
type HTTPProvider struct {
	config    HTTPConfig
	client    *http.Client
	throttles *resilience.ThrottleRegistry
	logger    *logger.Logger
}

// NewHTTPProvider creates a new HTTP provider client.
func NewHTTPProvider(config HTTPConfig, throttles *resilience.ThrottleRegistry, log *logger.Logger) *HTTPProvider {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &HTTPProvider{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		},
		throttles: throttles,
		logger:    log.ProviderLogger(config.Name, config.BaseURL),
	}
}

// Name implements domain.Provider
func (p *HTTPProvider) Name() string {
	return p.config.Name
}

// Origin returns the throttle/breaker key for this provider and model.
func (p *HTTPProvider) Origin() string {
	return p.config.Name + ":" + p.config.Model
}

// chatRequest is the wire shape sent to the provider.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the wire shape received from the provider. The content
// of the first choice is expected to be a JSON array of recommendations.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// FetchRecommendations implements domain.Provider. It performs a single
// call; retrying, breaking and rate limiting are layered above by the
// orchestrator.
func (p *HTTPProvider) FetchRecommendations(ctx context.Context, req domain.RecommendationRequest) ([]domain.Recommendation, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	payload, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a music recommendation engine. Respond with a JSON array of {artist, album, genre, confidence, reason} objects."},
			{Role: "user", Content: req.Prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", resilience.ErrInvalidArgument, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", resilience.ErrInvalidArgument, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.WithError(err).Warn("Provider request failed")
		return nil, err
	}
	defer resp.Body.Close()

	p.logger.WithFields(map[string]interface{}{
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Provider request completed")

	RegisterThrottleFromResponse(p.throttles, p.Origin(), resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &StatusError{
			Provider: p.config.Name,
			Code:     resp.StatusCode,
			Body:     string(body),
		}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("provider %s returned no choices", p.config.Name)
	}

	var recs []domain.Recommendation
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &recs); err != nil {
		return nil, fmt.Errorf("parse recommendations from %s: %w", p.config.Name, err)
	}

	for i := range recs {
		recs[i].Provider = p.config.Name
	}
	return recs, nil
}
