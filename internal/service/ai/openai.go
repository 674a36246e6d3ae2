package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/waychat/backend/internal/model/chat"
)

const (
	// DefaultOpenAIURL is the base URL of the public chat completions API.
	DefaultOpenAIURL = "https://api.openai.com/v1"

	// maxResponseSize bounds how much of a response body is read.
	maxResponseSize = 10 * 1024 * 1024
)

type openaiMessage struct {
	Role    chat.Role `json:"role"`
	Content string    `json:"content"`
}

type openaiRequest struct {
	Model               string          `json:"model"`
	Messages            []openaiMessage `json:"messages"`
	Temperature         float64         `json:"temperature"`
	MaxCompletionTokens int             `json:"max_completion_tokens"`
}

type openaiResponse struct {
	Choices []struct {
		Message *struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

// OpenAIClient calls an OpenAI-compatible chat completions endpoint with a
// fixed model, temperature and reply length.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      zerolog.Logger
}

// NewOpenAIClient returns a client authenticating with apiKey.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:      apiKey,
		baseURL:     DefaultOpenAIURL,
		model:       "gpt-4o",
		temperature: 0.8,
		maxTokens:   300,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		logger:      zerolog.Nop(),
	}
}

// WithBaseURL points the client at another endpoint root.
func (c *OpenAIClient) WithBaseURL(url string) *OpenAIClient {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

// WithModel sets the model identifier sent with every request.
func (c *OpenAIClient) WithModel(model string) *OpenAIClient {
	c.model = model
	return c
}

// WithTemperature sets the sampling temperature sent with every request.
func (c *OpenAIClient) WithTemperature(temperature float64) *OpenAIClient {
	c.temperature = temperature
	return c
}

// WithMaxCompletionTokens caps the generated reply length.
func (c *OpenAIClient) WithMaxCompletionTokens(n int) *OpenAIClient {
	c.maxTokens = n
	return c
}

// WithTimeout sets the HTTP client timeout. Zero disables it.
func (c *OpenAIClient) WithTimeout(timeout time.Duration) *OpenAIClient {
	c.httpClient = &http.Client{Timeout: timeout}
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *OpenAIClient) WithHTTPClient(client *http.Client) *OpenAIClient {
	c.httpClient = client
	return c
}

// WithLogger attaches a logger.
func (c *OpenAIClient) WithLogger(logger zerolog.Logger) *OpenAIClient {
	c.logger = logger
	return c
}

// Model returns the configured model identifier.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete sends the transcript and returns the first choice's message content.
func (c *OpenAIClient) Complete(ctx context.Context, turns []chat.Turn) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingCredential
	}

	reqBody := openaiRequest{
		Model:               c.model,
		Messages:            make([]openaiMessage, 0, len(turns)),
		Temperature:         c.temperature,
		MaxCompletionTokens: c.maxTokens,
	}
	for _, turn := range turns {
		reqBody.Messages = append(reqBody.Messages, openaiMessage{Role: turn.Role, Content: turn.Content})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, "marshal completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "create completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "completion request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", errors.Wrap(err, "read completion response")
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Int("messages", len(turns)).
		Dur("latency", time.Since(start)).
		Msg("completion response received")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	var parsed openaiResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", errors.Wrap(err, "decode completion response")
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil || parsed.Choices[0].Message.Content == nil {
		return "", ErrNoReply
	}

	if parsed.Usage != nil {
		c.logger.Debug().
			Int("prompt_tokens", parsed.Usage.PromptTokens).
			Int("completion_tokens", parsed.Usage.CompletionTokens).
			Str("finish_reason", parsed.Choices[0].FinishReason).
			Msg("completion usage")
	}

	return *parsed.Choices[0].Message.Content, nil
}
