package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	minimaxDefaultModel = "abab6.5s-chat"
	minimaxDefaultURL   = "https://api.minimax.chat/v1/text/chatcompletion_v2"

	openaiDefaultModel = "gpt-4o"
	openaiDefaultURL   = "https://api.openai.com/v1/chat/completions"
)

// ChatProvider calls an OpenAI-compatible chat completion endpoint.
// Both MiniMax and OpenAI speak this wire format.
type ChatProvider struct {
	name       string
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewMiniMax returns a provider for the MiniMax chat completion API.
func NewMiniMax(cfg ProviderConfig) *ChatProvider {
	return newChatProvider(ProviderMiniMax, cfg, minimaxDefaultModel, minimaxDefaultURL)
}

// NewOpenAI returns a provider for the OpenAI chat completions API.
// BaseURL may point at any OpenAI-compatible endpoint.
func NewOpenAI(cfg ProviderConfig) *ChatProvider {
	return newChatProvider(ProviderOpenAI, cfg, openaiDefaultModel, openaiDefaultURL)
}

func newChatProvider(name string, cfg ProviderConfig, defaultModel, defaultURL string) *ChatProvider {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultURL
	}
	return &ChatProvider{
		name:       name,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Model reports the model the provider requests.
func (p *ChatProvider) Model() string {
	return p.model
}

// Name implements Provider.
func (p *ChatProvider) Name() string {
	return p.name
}

// Available implements Provider.
func (p *ChatProvider) Available() bool {
	return p.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Complete implements Provider.
func (p *ChatProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, opts Options) (*Response, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%s: %w", p.name, ErrNotConfigured)
	}
	opts = opts.withDefaults()

	payload := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", p.name, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: api request: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s: api request failed with status %d: %s", p.name, resp.StatusCode, string(respBody))
	}

	var data chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", p.name, err)
	}
	if len(data.Choices) == 0 {
		return nil, fmt.Errorf("%s: response contains no choices", p.name)
	}

	model := data.Model
	if model == "" {
		model = p.model
	}
	return &Response{
		Content:      data.Choices[0].Message.Content,
		Model:        model,
		Provider:     p.name,
		FinishReason: data.Choices[0].FinishReason,
	}, nil
}
