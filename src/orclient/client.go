// Package orclient talks to an OpenAI-compatible chat completion API.
package orclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/beymax11/chatstudio/src/aisdk"
	"github.com/beymax11/chatstudio/src/langdetect"
	"github.com/beymax11/chatstudio/src/models"
)

// Temperature is sent with every completion request.
const Temperature = 0.7

// Client is the chat completion API client.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
	modelCache *ModelCache
}

// Request is one completion turn.
type Request struct {
	// History holds every message before the prompt, oldest first.
	History []aisdk.Message
	// Prompt is the new user message, sent last.
	Prompt string
	// ModelID is a registry id; unknown ids fall back to the default model.
	ModelID string
}

// NewClient creates a new completion client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaultMaxRetries
	}
	if len(config.Backoff) == 0 {
		config.Backoff = DefaultBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = defaultMaxBackoff
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = defaultSystemPrompt
	}
	if config.Sleep == nil {
		config.Sleep = sleepContext
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "completion_client")

	client := &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
	client.modelCache = NewModelCache(client, time.Hour)
	return client
}

// Complete sends the request and returns the reply text.
//
// Errors are typed (*APIError, *RetryExhaustedError, transport errors) so callers
// can classify failures; use CompleteText when a readable string is all that matters.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", ErrEmptyPrompt
	}
	if c.config.APIKey == "" {
		return "", ErrNoAPIKey
	}

	model := models.Resolve(req.ModelID)
	logger := c.logger.With("method", "Complete", "model", model.ID)

	reply, err := c.completeWithModel(ctx, req, model)
	if err != nil && IsModelUnavailable(err) {
		// The listing no longer matches what the upstream serves.
		c.modelCache.ClearCache()
	}
	if err != nil && model.ID != models.DefaultID && IsModelUnavailable(err) {
		logger.Warn("model unavailable, falling back to default model", "error", err, "fallback", models.DefaultID)
		reply, err = c.completeWithModel(ctx, req, models.Resolve(models.DefaultID))
	}
	if err != nil {
		if IsRateLimited(err) {
			logger.Warn("completion rate limited", "error", err)
		} else {
			logger.Error("completion failed", "error", err)
		}
		return "", err
	}

	return c.translateIfRequested(ctx, req.Prompt, reply), nil
}

// CompleteText is Complete with failures rendered through Describe.
func (c *Client) CompleteText(ctx context.Context, req Request) string {
	reply, err := c.Complete(ctx, req)
	if err != nil {
		return Describe(err)
	}
	return reply
}

func (c *Client) buildRequest(req Request, model models.Model) *aisdk.ChatCompletionRequest {
	messages := make([]*aisdk.Message, 0, len(req.History)+2)
	messages = append(messages, &aisdk.Message{Role: aisdk.RoleSystem, Content: c.config.SystemPrompt})
	for _, m := range req.History {
		messages = append(messages, &aisdk.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, &aisdk.Message{Role: aisdk.RoleUser, Content: req.Prompt})

	temperature := Temperature
	maxTokens := models.TokenCap(model)
	return &aisdk.ChatCompletionRequest{
		Model:       model.Upstream,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
}

// completeWithModel runs the rate-limit retry loop against a single model.
func (c *Client) completeWithModel(ctx context.Context, req Request, model models.Model) (string, error) {
	logger := c.logger.With("method", "completeWithModel", "model", model.Upstream)

	body, err := json.Marshal(c.buildRequest(req, model))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.createChatCompletion(ctx, body, model)
		if err == nil {
			content, ok := resp.FirstContent()
			if !ok {
				logger.Warn("completion returned no content")
				return NoResponse, nil
			}
			logger.Info("chat completion successful", "attempt", attempt+1, "usage_total", resp.Usage.TotalTokens)
			return content, nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRateLimit() {
			return "", err
		}
		if attempt >= c.config.MaxRetries {
			return "", &RetryExhaustedError{Attempts: attempt + 1, Last: apiErr}
		}

		wait := c.retryDelay(apiErr, attempt)
		logger.Debug("rate limited, retrying", "attempt", attempt+1, "wait", wait)
		if err := c.config.Sleep(ctx, wait); err != nil {
			return "", err
		}
	}
}

// retryDelay prefers the server's Retry-After, then the backoff schedule.
func (c *Client) retryDelay(apiErr *APIError, attempt int) time.Duration {
	if apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	if attempt < len(c.config.Backoff) {
		return min(c.config.Backoff[attempt], c.config.MaxBackoff)
	}
	return c.config.MaxBackoff
}

// createChatCompletion performs a single POST to /chat/completions.
func (c *Client) createChatCompletion(ctx context.Context, body []byte, model models.Model) (*aisdk.ChatCompletionResponse, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := c.handleError(resp)
		apiErr.Model = model.ID
		return nil, apiErr
	}

	var result aisdk.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// newRequest creates a new HTTP request with the appropriate headers.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// handleError processes error responses from the API.
func (c *Client) handleError(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Request-ID"),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr.Message = fmt.Sprintf("failed to read error response: %v", err)
		return apiErr
	}

	var errResp aisdk.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	apiErr.Type = errResp.Error.Type
	apiErr.Message = errResp.Error.Message
	if errResp.Error.Code != nil {
		apiErr.Code = fmt.Sprint(errResp.Error.Code)
	}
	return apiErr
}

// translateIfRequested rewrites reply when prompt asks for another language.
// Translation failures are swallowed and the reply is returned untouched.
func (c *Client) translateIfRequested(ctx context.Context, prompt, reply string) string {
	if c.config.Translator == nil {
		return reply
	}
	code, ok := langdetect.Detect(prompt)
	if !ok {
		return reply
	}

	translated, err := c.config.Translator.Translate(ctx, reply, code)
	if err != nil {
		c.logger.Warn("translation failed, keeping original reply", "target", code, "error", err)
		return reply
	}
	return translated
}
