// Package ollama is a minimal client for the Ollama HTTP API, covering the
// two calls the pipeline needs: chat completion and text embedding. The
// service is treated as an opaque collaborator with latency, failure, and
// non-determinism; callers never assume its output is well formed.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adityatiwari12/chat-with-sql/internal/logging"
)

// Message is a single chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config represents client configuration
type Config struct {
	BaseURL    string
	LLMModel   string
	EmbedModel string
	Timeout    time.Duration
}

// Client talks to a single Ollama instance. Safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new Ollama client with the given configuration
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

// Chat sends a non-streaming chat completion request using the configured
// LLM model and returns the raw response text.
func (c *Client) Chat(ctx context.Context, messages []Message, temperature float64) (string, error) {
	reqBody := chatRequest{
		Model:    c.config.LLMModel,
		Messages: messages,
		Stream:   false,
		Options:  map[string]any{"temperature": temperature},
	}

	respBody, err := c.post(ctx, "/api/chat", reqBody)
	if err != nil {
		return "", err
	}

	var response chatResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse chat response: %w", err)
	}

	if response.Error != "" {
		return "", fmt.Errorf("ollama API error: %s", response.Error)
	}

	return response.Message.Content, nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// Embed generates an embedding for the given text using the configured
// embedding model.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := embedRequest{
		Model:  c.config.EmbedModel,
		Prompt: text,
	}

	respBody, err := c.post(ctx, "/api/embeddings", reqBody)
	if err != nil {
		return nil, err
	}

	var response embedResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}

	if response.Error != "" {
		return nil, fmt.Errorf("ollama API error: %s", response.Error)
	}

	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding")
	}

	embedding := make([]float32, len(response.Embedding))
	for i, v := range response.Embedding {
		embedding[i] = float32(v)
	}

	return embedding, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the model names available on the Ollama instance
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach ollama: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tags tagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("failed to parse tags response: %w", err)
	}

	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}

	return names, nil
}

// post makes a JSON POST request to the Ollama API
func (c *Client) post(ctx context.Context, endpoint string, reqBody interface{}) ([]byte, error) {
	logging.Debugf("ollama request: POST %s", endpoint)

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
