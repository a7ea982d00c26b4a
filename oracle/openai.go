package oracle

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	llm "github.com/randalmurphal/llmkit/claude"

	bphttp "github.com/randalmurphal/blueprint/http"
)

// Defaults for OpenAI-compatible endpoints.
const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o"
	DefaultTemperature   = 0.3
)

// OpenAIConfig configures an OpenAI-compatible chat completions client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string

	// Temperature is sent with every request. Nil uses DefaultTemperature.
	Temperature *float64

	Timeout    time.Duration
	MaxRetries int

	// RequestsPerMinute throttles calls to stay under the account's rate
	// limit. Zero is unlimited.
	RequestsPerMinute int

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// OpenAI calls the /chat/completions endpoint.
type OpenAI struct {
	client      *bphttp.Client
	model       string
	temperature float64
}

// NewOpenAI creates a chat completions client.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	apiKey := cfg.APIKey
	return &OpenAI{
		client: bphttp.NewClient(bphttp.ClientConfig{
			Client:      cfg.HTTPClient,
			BaseURL:     baseURL,
			ServiceName: "openai",
			Timeout:     cfg.Timeout,
			MaxRetries:  cfg.MaxRetries,
			Logger:      cfg.Logger,
			// Chunked stages fire requests in bursts; allow a few at once.
			RequestsPerSecond: float64(cfg.RequestsPerMinute) / 60,
			Burst:             4,
			BeforeRequest: func(req *http.Request) {
				if apiKey != "" {
					req.Header.Set("Authorization", "Bearer "+apiKey)
				}
			},
		}),
		model:       model,
		temperature: temperature,
	}
}

// Model returns the model name sent with each request.
func (c *OpenAI) Model() string {
	return c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete implements Client.
func (c *OpenAI) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	body := chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
	}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	var out chatResponse
	if err := c.client.Post(ctx, "/chat/completions", body, &out); err != nil {
		return nil, Classify(err)
	}
	if len(out.Choices) == 0 {
		return nil, &Error{Kind: ErrMalformedOutput, Err: errors.New("response has no choices")}
	}

	resp := &llm.CompletionResponse{Content: out.Choices[0].Message.Content}
	resp.Usage.InputTokens = out.Usage.PromptTokens
	resp.Usage.OutputTokens = out.Usage.CompletionTokens
	return resp, nil
}
