// Package sms delivers content to subscribers through Africa's Talking's
// bulk messaging API. Payloads are rendered to plain text here, the core
// only decides what to send, and long messages are split on word
// boundaries so concatenated segments survive the UDH overhead.
package sms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sediba/edubot/internal/domain"
	"github.com/sediba/edubot/internal/logging"
	"github.com/sediba/edubot/internal/ports"
)

const (
	// defaultBaseURL is the sandbox endpoint. Production deployments
	// override it with https://api.africastalking.com/version1/messaging.
	defaultBaseURL = "https://api.sandbox.africastalking.com/version1/messaging"

	// chunkLimit is 153 rather than 160: concatenated SMS lose seven
	// octets per segment to the UDH header.
	chunkLimit = 153
)

// Client implements ports.Deliverer over Africa's Talking. Without an API
// key it runs in debug mode: messages are logged and dropped, which keeps
// local development free of real sends.
type Client struct {
	username   string
	apiKey     string
	senderID   string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.Deliverer = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithSenderID sets the alphanumeric sender shown on the handset.
func WithSenderID(id string) Option {
	return func(c *Client) {
		c.senderID = id
	}
}

// WithBaseURL overrides the messaging endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates an Africa's Talking client. An empty apiKey enables
// debug mode.
func NewClient(username, apiKey string, opts ...Option) *Client {
	c := &Client{
		username:   username,
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deliver renders the request and sends it to the originating address.
func (c *Client) Deliver(ctx context.Context, req domain.DeliveryRequest) error {
	message, err := Format(req)
	if err != nil {
		return err
	}
	return c.Send(ctx, req.To, message)
}

// Send pushes one message, chunking as needed. Chunks go out in order and
// the first failure aborts the rest.
func (c *Client) Send(ctx context.Context, to, message string) error {
	if c.apiKey == "" {
		c.logger.Info("sms debug mode, dropping message", "to", to, "chars", len(message))
		c.logger.Debug("sms debug payload", "to", to, "message", message)
		return nil
	}

	chunks := chunk(message, chunkLimit)
	for i, part := range chunks {
		if err := c.send(ctx, to, part); err != nil {
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	c.logger.Debug("sms sent", "to", to, "chunks", len(chunks))
	return nil
}

func (c *Client) send(ctx context.Context, to, message string) error {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("to", to)
	form.Set("message", message)
	if c.senderID != "" {
		form.Set("from", c.senderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build messaging request: %w", err)
	}
	req.Header.Set("apiKey", c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messaging request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("messaging request status %d: %s", res.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// chunk splits a message into pieces of at most limit runes, breaking at
// the last space before the limit when one exists. Counting runes rather
// than bytes keeps multi-byte characters intact at the boundaries.
func chunk(message string, limit int) []string {
	var chunks []string
	runes := []rune(message)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > 0; i-- {
			if runes[i-1] == ' ' {
				cut = i - 1
				break
			}
		}
		if cut == 0 {
			cut = limit
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[:cut])))
		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
