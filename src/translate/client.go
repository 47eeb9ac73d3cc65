// Package translate rewrites text into a target language through a MyMemory-compatible API.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/beymax11/chatstudio/src/langdetect"
)

const (
	defaultBaseURL           = "https://api.mymemory.translated.net"
	defaultTimeout           = 15 * time.Second
	defaultRequestsPerMinute = 30
)

// Config holds configuration for the translation client.
type Config struct {
	BaseURL           string        // Base URL of the translation API
	Email             string        // Optional contact address, raises the free quota
	RequestsPerMinute int           // Client-side throttle
	Timeout           time.Duration // HTTP timeout
	Logger            *slog.Logger
	HTTPClient        *http.Client
}

// Client calls the translation endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Error is returned when the API answers with a non-200 responseStatus.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("translation failed with status %d: %s", e.Status, e.Message)
}

// NewClient creates a translation client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = defaultRequestsPerMinute
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1),
		logger:     logger.With("component", "translate"),
	}
}

type response struct {
	ResponseStatus  status `json:"responseStatus"`
	ResponseDetails string `json:"responseDetails"`
	ResponseData    struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
}

// status accepts both 200 and "200"; the API is not consistent about it.
type status int

func (s *status) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid responseStatus %s: %w", data, err)
	}
	*s = status(n)
	return nil
}

// Translate rewrites text into the target language.
func (c *Client) Translate(ctx context.Context, text string, target langdetect.Code) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	logger := c.logger.With("method", "Translate", "target", target)

	query := url.Values{}
	query.Set("q", text)
	query.Set("langpair", "auto|"+string(target))
	if c.config.Email != "" {
		query.Set("de", c.config.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/get?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if body.ResponseStatus != http.StatusOK {
		return "", &Error{Status: int(body.ResponseStatus), Message: body.ResponseDetails}
	}

	translated := html.UnescapeString(body.ResponseData.TranslatedText)
	if translated == "" {
		return "", &Error{Status: int(body.ResponseStatus), Message: "empty translation"}
	}

	logger.Debug("translated text", "chars", len(text))
	return translated, nil
}
