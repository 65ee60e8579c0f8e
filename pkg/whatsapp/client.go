// Package whatsapp talks to the WhatsApp Cloud API: webhook payload types
// for the inbound side and a send-message client for the outbound side.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrDelivery marks outbound send failures after retries were exhausted.
var ErrDelivery = errors.New("message delivery failed")

const maxResponseSizeBytes = 1 << 20

type Config struct {
	BaseURL       string        `envconfig:"BASE_URL" split_words:"true" default:"https://graph.facebook.com/v19.0"`
	Token         string        `split_words:"true" required:"true"`
	PhoneNumberID string        `envconfig:"PHONE_NUMBER_ID" split_words:"true" required:"true"`
	VerifyToken   string        `envconfig:"VERIFY_TOKEN" split_words:"true" required:"true"`
	Timeout       time.Duration `split_words:"true" default:"10s"`
	MaxRetries    int           `envconfig:"MAX_RETRIES" split_words:"true" default:"3"`
	RetryBackoff  time.Duration `envconfig:"RETRY_BACKOFF" split_words:"true" default:"500ms"`
}

// Client sends messages through the Cloud API on behalf of one business
// phone number.
type Client struct {
	baseURL       string
	token         string
	phoneNumberID string
	maxRetries    int
	retryBackoff  time.Duration
	httpClient    *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("whatsapp base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid whatsapp base url: %w", err)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("whatsapp token is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("whatsapp phone number id is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	return &Client{
		baseURL:       baseURL,
		token:         strings.TrimSpace(cfg.Token),
		phoneNumberID: strings.TrimSpace(cfg.PhoneNumberID),
		maxRetries:    maxRetries,
		retryBackoff:  backoff,
		httpClient:    &http.Client{Timeout: timeout},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// SendText delivers body to the given normalized phone number. Transient
// failures are retried with doubling backoff up to the configured number of
// attempts; the last failure is wrapped in ErrDelivery.
func (c *Client) SendText(ctx context.Context, to string, body string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("%w: recipient is empty", ErrDelivery)
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: message body is empty", ErrDelivery)
	}

	var lastErr error
	backoff := c.retryBackoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrDelivery, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = c.sendOnce(ctx, to, body)
		if lastErr == nil {
			return nil
		}
		log.Warn().Err(lastErr).Str("to", to).Int("attempt", attempt+1).
			Msg("whatsapp send failed")
	}
	return fmt.Errorf("%w: %v", ErrDelivery, lastErr)
}

func (c *Client) sendOnce(ctx context.Context, to string, body string) error {
	payload, err := json.Marshal(SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             TextContent{Body: body},
	})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read send response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("send http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed SendMessageResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("decode send response: %w", err)
	}
	if len(parsed.Messages) == 0 {
		return errors.New("send response carries no message id")
	}
	return nil
}
