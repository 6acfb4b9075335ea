// Package narration provides an HTTP client for the speech synthesis service
// that produces narration audio for slides.
package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Static errors for narration client operations.
var (
	// ErrBaseURLRequired is returned when the service base URL is not provided.
	ErrBaseURLRequired = errors.New("narration: base URL is required")
	// ErrTextRequired is returned when the text to synthesize is empty.
	ErrTextRequired = errors.New("narration: text is required")
	// ErrNoAudioReturned is returned when the synthesis response contains no audio reference.
	ErrNoAudioReturned = errors.New("narration: synthesis returned no audio")
	// ErrServerError is returned when the service returns a 5xx status code.
	ErrServerError = errors.New("narration: server error")
	// ErrRateLimited is returned when the service returns a 429 status code.
	ErrRateLimited = errors.New("narration: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("narration: request failed")
)

// Result holds a finished synthesis: a reference to the produced audio and
// its measured duration in seconds.
type Result struct {
	AudioRef    string
	DurationSec float64
}

// Synthesizer defines the interface for producing narration audio.
type Synthesizer interface {
	// Synthesize turns text into speech and returns where the audio lives
	// and how long it runs.
	Synthesize(ctx context.Context, text, voice string) (Result, error)
}

// HTTPClient is the HTTP implementation of the Synthesizer interface.
type HTTPClient struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new narration HTTP client pointed at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	c := &HTTPClient{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// synthesizeRequest is the request body for the service's /synthesize endpoint.
type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// synthesizeResponse is the response from the service's /synthesize endpoint.
type synthesizeResponse struct {
	AudioRef    string  `json:"audio_ref"`
	DurationSec float64 `json:"duration_sec"`
	Error       string  `json:"error,omitempty"`
}

// Synthesize turns text into speech and returns the audio reference and its
// duration.
func (c *HTTPClient) Synthesize(ctx context.Context, text, voice string) (Result, error) {
	if text == "" {
		return Result{}, ErrTextRequired
	}

	bodyBytes, err := json.Marshal(synthesizeRequest{Text: text, Voice: voice})
	if err != nil {
		return Result{}, fmt.Errorf("narration: marshal request: %w", err)
	}

	url := c.baseURL + "/synthesize"

	var resp synthesizeResponse
	if err := c.doRequestWithRetry(ctx, url, bodyBytes, &resp); err != nil {
		return Result{}, err
	}

	if resp.AudioRef == "" {
		if resp.Error != "" {
			return Result{}, fmt.Errorf("%w: %s", ErrNoAudioReturned, resp.Error)
		}
		return Result{}, ErrNoAudioReturned
	}

	return Result{AudioRef: resp.AudioRef, DurationSec: resp.DurationSec}, nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, url string, body []byte, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("narration: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, url, body, result)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("narration: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, url string, body []byte, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("narration: create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("narration: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("narration: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("narration: unmarshal response: %w", err)
		}
	}

	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Compile-time check that HTTPClient implements Synthesizer.
var _ Synthesizer = (*HTTPClient)(nil)
