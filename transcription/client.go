// Package transcription forwards recorded audio to an OpenAI-compatible
// speech-to-text endpoint.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "whisper-1"
)

// ErrNotConfigured is returned when no API key is set
var ErrNotConfigured = errors.New("transcription API key not configured")

// Config configures the upstream endpoint
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  time.Duration
}

// UpstreamError is a non-2xx reply from the transcription API
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("transcription API returned %d: %s", e.StatusCode, e.Message)
}

// ClientStatus is the status to relay to the browser. Client errors pass
// through and server errors collapse to 500.
func (e *UpstreamError) ClientStatus() int {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// ClientMessage is a caller-safe description of the failure
func (e *UpstreamError) ClientMessage() string {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return "Transcription API key invalid or expired"
	case e.StatusCode == http.StatusTooManyRequests:
		return "Transcription quota exceeded, try again later"
	case e.StatusCode == http.StatusRequestEntityTooLarge:
		return "Audio file too large"
	case e.StatusCode >= 500:
		return "Transcription service temporarily unavailable"
	default:
		return "Transcription failed"
	}
}

// Client calls {BaseURL}/audio/transcriptions
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new transcription client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// Configured reports whether an API key is present
func (c *Client) Configured() bool {
	return c.config.APIKey != ""
}

type transcriptionResponse struct {
	Text *string `json:"text"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe uploads audio and returns the recognized text
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	body, contentType, err := c.buildForm(filename, audio)
	if err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/audio/transcriptions", body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read transcription response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		message := http.StatusText(resp.StatusCode)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}
		c.logger.Warn("transcription API error",
			zap.Int("status", resp.StatusCode),
			zap.String("message", message))
		return "", &UpstreamError{StatusCode: resp.StatusCode, Message: message}
	}

	var result transcriptionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}
	if result.Text == nil {
		return "", errors.New("transcription response missing text")
	}

	c.logger.Debug("transcription completed",
		zap.Duration("latency", time.Since(start)),
		zap.Int("characters", len(*result.Text)))

	return *result.Text, nil
}

func (c *Client) buildForm(filename string, audio io.Reader) (*bytes.Buffer, string, error) {
	if filename == "" {
		filename = "audio.webm"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"model", c.config.Model},
		{"response_format", "json"},
		{"temperature", "0.0"},
	}
	if c.config.Language != "" {
		fields = append(fields, [2]string{"language", c.config.Language})
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
