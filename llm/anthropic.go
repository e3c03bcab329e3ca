package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicDefaultModel = "claude-sonnet-4-20250514"
	anthropicDefaultURL   = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion   = "2023-06-01"
)

// Anthropic calls the Anthropic messages API. Unlike the chat providers
// it carries the system prompt as a top-level field and returns content
// as a list of typed blocks.
type Anthropic struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewAnthropic returns a provider for the Anthropic messages API.
func NewAnthropic(cfg ProviderConfig) *Anthropic {
	if cfg.Model == "" {
		cfg.Model = anthropicDefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = anthropicDefaultURL
	}
	return &Anthropic{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Model reports the model the provider requests.
func (p *Anthropic) Model() string {
	return p.model
}

// Name implements Provider.
func (p *Anthropic) Name() string {
	return ProviderAnthropic
}

// Available implements Provider.
func (p *Anthropic) Available() bool {
	return p.apiKey != ""
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type anthropicResponse struct {
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete implements Provider.
func (p *Anthropic) Complete(ctx context.Context, systemPrompt, userPrompt string, opts Options) (*Response, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%s: %w", ProviderAnthropic, ErrNotConfigured)
	}
	opts = opts.withDefaults()

	payload := anthropicRequest{
		Model:       p.model,
		System:      systemPrompt,
		Messages:    []chatMessage{{Role: "user", Content: userPrompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", ProviderAnthropic, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", ProviderAnthropic, err)
	}
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: api request: %w", ProviderAnthropic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s: api request failed with status %d: %s", ProviderAnthropic, resp.StatusCode, string(respBody))
	}

	var data anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", ProviderAnthropic, err)
	}

	var content strings.Builder
	for _, block := range data.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	model := data.Model
	if model == "" {
		model = p.model
	}
	return &Response{
		Content:      content.String(),
		Model:        model,
		Provider:     ProviderAnthropic,
		FinishReason: data.StopReason,
	}, nil
}
