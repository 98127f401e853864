// Package whatsapp implements a small WhatsApp Cloud API client and the
// reminder channels built on top of it.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/circuitbreaker"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the WhatsApp client.
type ClientConfig struct {
	// AccessToken is the Cloud API bearer token.
	AccessToken string

	// PhoneNumberID is the sender's phone number id in Meta Business.
	PhoneNumberID string

	// BaseURL is the Graph API base URL (default: https://graph.facebook.com)
	BaseURL string

	// APIVersion is the Graph API version (default: v19.0)
	APIVersion string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables debug logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(token, phoneNumberID string) ClientConfig {
	return ClientConfig{
		AccessToken:   token,
		PhoneNumberID: phoneNumberID,
		BaseURL:       "https://graph.facebook.com",
		APIVersion:    "v19.0",
		Timeout:       15 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLOUD API TYPES
// ══════════════════════════════════════════════════════════════════════════════

// TextMessage is the request body of a plain text message.
type TextMessage struct {
	MessagingProduct string    `json:"messaging_product"`
	RecipientType    string    `json:"recipient_type"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	Text             TextBlock `json:"text"`
}

// TextBlock holds the message text.
type TextBlock struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

// SendResponse is the Cloud API response to a send call.
type SendResponse struct {
	Contacts []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// errorResponse is the Graph API error envelope.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
		TraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the WhatsApp Cloud API client. It performs single calls; retries
// and circuit breaking are the caller's concern.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new WhatsApp client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://graph.facebook.com"
	}
	if config.APIVersion == "" {
		config.APIVersion = "v19.0"
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: config.Logger,
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.config.AccessToken != "" && c.config.PhoneNumberID != ""
}

// SendText sends a plain text message to a phone number in international
// format without the leading "+". It returns the message id.
func (c *Client) SendText(ctx context.Context, to, text string) (string, error) {
	body := TextMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             TextBlock{Body: text},
	}

	var resp SendResponse
	if err := c.callAPI(ctx, "messages", body, &resp); err != nil {
		return "", fmt.Errorf("send text: %w", err)
	}
	if len(resp.Messages) == 0 {
		return "", errors.New("send text: empty messages in response")
	}

	return resp.Messages[0].ID, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// API CALL HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (c *Client) callAPI(ctx context.Context, edge string, body interface{}, result interface{}) error {
	url := fmt.Sprintf("%s/%s/%s/%s", strings.TrimRight(c.config.BaseURL, "/"), c.config.APIVersion, c.config.PhoneNumberID, edge)

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)

	if c.config.Debug {
		c.logger.Debug("whatsapp api call", "edge", edge)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Wait: parseRetryAfter(resp.Header.Get("Retry-After"))}
		var envelope errorResponse
		if json.Unmarshal(respBody, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// Graph API error codes the client cares about.
const (
	codeRateLimited     = 130429
	codeSpamRateLimited = 131056
	codeRecipientBad    = 131026
)

// APIError represents a Cloud API error.
type APIError struct {
	Status  int
	Code    int
	Message string

	// Wait is the Retry-After the API sent with a throttling answer.
	Wait time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error %d (code %d): %s", e.Status, e.Code, e.Message)
}

// HTTPStatus implements retry.StatusCoder. Graph reports some throughput
// limits as 400 with a dedicated code; those are reported as 429.
func (e *APIError) HTTPStatus() int {
	if e.Code == codeRateLimited || e.Code == codeSpamRateLimited {
		return http.StatusTooManyRequests
	}
	return e.Status
}

// RetryAfter implements retry.RetryAfterHint.
func (e *APIError) RetryAfter() time.Duration { return e.Wait }

// IsRateLimited checks if the error is a throughput limit.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.HTTPStatus() == http.StatusTooManyRequests
}

// IsRecipientInvalid checks if the number cannot receive WhatsApp messages.
func IsRecipientInvalid(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeRecipientBad
}

// IsRetryableError checks if an error is worth another attempt.
func IsRetryableError(err error) bool {
	return retry.HTTPRetryIf(err)
}

// outcome maps a send error to what it says about the Cloud API.
func outcome(err error) (circuitbreaker.Outcome, time.Duration) {
	var apiErr *APIError
	switch {
	case err == nil:
		return circuitbreaker.Delivered, 0
	case errors.Is(err, context.Canceled):
		return circuitbreaker.Abandoned, 0
	case IsRateLimited(err):
		errors.As(err, &apiErr)
		return circuitbreaker.Throttled, apiErr.Wait
	case IsRetryableError(err):
		return circuitbreaker.Failed, 0
	case errors.As(err, &apiErr):
		return circuitbreaker.Rejected, 0
	default:
		return circuitbreaker.Failed, 0
	}
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
