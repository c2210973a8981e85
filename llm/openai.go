package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/bughunter/config"
	"github.com/use-agent/bughunter/models"
)

// DefaultBaseURL is used when the config leaves BaseURL empty.
const DefaultBaseURL = "https://api.openai.com/v1"

// Client is a lightweight OpenAI-compatible chat completion client.
// It uses net/http directly — no third-party SDK needed.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the http.Client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRetryDelay sets the base backoff delay between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// NewClient creates a client from cfg. A client without an API key is
// valid; every call then fails with LLM_NOT_CONFIGURED.
func NewClient(cfg config.AIConfig, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: 500 * time.Millisecond,
		logger:     slog.Default(),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = "gpt-4"
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c != nil && c.apiKey != "" }

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Request is one chat completion call.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int

	// JSON asks the provider for a JSON object response.
	JSON bool
}

// Completion is the model's reply.
type Completion struct {
	Content string
	Model   string
	Usage   *models.LLMUsage
}

// chatRequest is the OpenAI chat completion request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the minimal OpenAI chat completion response we need.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// chatErrorResponse captures an API error from the LLM provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// APIError is a non-200 reply from the provider.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("LLM API returned %d: %s", e.Status, e.Message)
}

// Complete sends req, retrying transient failures with jittered backoff.
func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	if !c.Enabled() {
		return nil, models.NewScanError(models.ErrCodeLLMDisabled, "AI analysis is not configured", nil)
	}

	var out *Completion
	attempt := 0
	err := retry(ctx, c.maxRetries+1, c.retryDelay, Retryable, func() error {
		attempt++
		var err error
		out, err = c.complete(ctx, req)
		if err != nil && attempt <= c.maxRetries && Retryable(err) {
			c.logger.Warn("llm call failed, retrying", "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteJSON calls Complete in JSON mode and decodes the reply into out.
func (c *Client) CompleteJSON(ctx context.Context, req Request, out any) (*Completion, error) {
	req.JSON = true
	comp, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	raw := stripCodeFence(comp.Content)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return nil, models.NewScanError(models.ErrCodeLLMFailure, "LLM returned invalid JSON", err)
	}
	return comp, nil
}

func (c *Client) complete(ctx context.Context, r Request) (*Completion, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
	}
	if r.System != "" {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: "system", Content: r.System})
	}
	reqBody.Messages = append(reqBody.Messages, chatMessage{Role: "user", Content: r.User})
	if r.JSON {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.NewScanError(models.ErrCodeLLMFailure, "LLM request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewScanError(models.ErrCodeLLMFailure, "failed to read LLM response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyLLMError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, models.NewScanError(models.ErrCodeLLMFailure, "failed to parse LLM response", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, models.NewScanError(models.ErrCodeLLMFailure, "LLM returned no choices", nil)
	}

	model := chatResp.Model
	if model == "" {
		model = c.model
	}
	return &Completion{
		Content: chatResp.Choices[0].Message.Content,
		Model:   model,
		Usage: &models.LLMUsage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		},
	}, nil
}

// classifyLLMError maps HTTP status codes to appropriate error codes.
func classifyLLMError(statusCode int, body []byte) *models.ScanError {
	var errResp chatErrorResponse
	msg := "LLM API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}
	apiErr := &APIError{Status: statusCode, Message: msg}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewScanError(models.ErrCodeLLMAuthFailure, msg, apiErr)
	case statusCode == http.StatusTooManyRequests:
		return models.NewScanError(models.ErrCodeLLMRateLimited, msg, apiErr)
	default:
		return models.NewScanError(models.ErrCodeLLMFailure, apiErr.Error(), apiErr)
	}
}

// Retryable reports whether err is worth another attempt: rate limits,
// provider 5xx and transport failures. Auth errors, bad requests and
// malformed replies are not.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *models.ScanError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case models.ErrCodeLLMRateLimited:
		return true
	case models.ErrCodeLLMFailure:
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr.Status >= 500
		}
		var urlErr *url.Error
		return errors.As(err, &urlErr)
	default:
		return false
	}
}

// stripCodeFence removes a ```json fence some models wrap replies in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
