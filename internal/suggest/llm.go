package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/IshaanNene/topicscout/internal/config"
)

// Provider names accepted in ai.provider.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderCustom = "custom"
)

// LLMClient talks to an Ollama, OpenAI-compatible or custom completion
// endpoint.
type LLMClient struct {
	cfg    config.AIConfig
	client *http.Client
	logger *slog.Logger
}

// NewLLMClient creates a new LLM client.
func NewLLMClient(cfg config.AIConfig, logger *slog.Logger) *LLMClient {
	return &LLMClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger.With("component", "llm_client", "provider", cfg.Provider),
	}
}

// Generate sends a prompt to the LLM and returns the response text.
func (c *LLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	var (
		out string
		err error
	)
	switch c.cfg.Provider {
	case ProviderOllama:
		out, err = c.generateOllama(ctx, prompt)
	case ProviderOpenAI:
		out, err = c.generateOpenAI(ctx, prompt)
	case ProviderCustom:
		out, err = c.generateCustom(ctx, prompt)
	default:
		return "", fmt.Errorf("unsupported LLM provider: %s", c.cfg.Provider)
	}
	if err != nil {
		return "", err
	}
	c.logger.Debug("llm response", "model", c.cfg.Model, "chars", len(out), "duration", time.Since(start))
	return out, nil
}

func (c *LLMClient) generateOllama(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.cfg.Model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": c.cfg.Temperature,
			"num_predict": c.cfg.MaxTokens,
		},
	}

	body, err := c.post(ctx, c.cfg.Endpoint+"/api/generate", payload)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return result.Response, nil
}

func (c *LLMClient) generateOpenAI(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
	}

	endpoint := c.cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	body, err := c.post(ctx, endpoint+"/chat/completions", payload)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *LLMClient) generateCustom(ctx context.Context, prompt string) (string, error) {
	body, err := c.post(ctx, c.cfg.Endpoint, map[string]any{
		"prompt": prompt,
		"model":  c.cfg.Model,
	})
	if err != nil {
		return "", fmt.Errorf("custom llm request: %w", err)
	}
	return string(body), nil
}

func (c *LLMClient) post(ctx context.Context, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}
