// Package state provides the durable keyed store used by the workflow and
// session layers, backed by Upstash Redis over REST.
package state

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
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrInvalidKey  = errors.New("key is empty")
)

const (
	defaultTTL           = 0 // keep records until an external retention job removes them
	maxResponseSizeBytes = 2 << 20
)

// Option customizes Client.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.ttl = ttl
	}
}

// Client talks to Upstash Redis via its REST protocol and stores values as
// JSON strings.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	ttl        time.Duration
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type Config struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("redis rest url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("redis rest token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		ttl: defaultTTL,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	return c, nil
}

// GetJSON loads the value at key into dst. Returns ErrKeyNotFound when the
// key does not exist.
func (c *Client) GetJSON(ctx context.Context, key string, dst any) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}

	resp, err := c.exec(ctx, []any{"GET", key})
	if err != nil {
		return err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return ErrKeyNotFound
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return fmt.Errorf("decode payload at %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(encoded), dst); err != nil {
		return fmt.Errorf("unmarshal record at %s: %w", key, err)
	}
	return nil
}

// SetJSON stores v as a JSON string under key.
func (c *Client) SetJSON(ctx context.Context, key string, v any) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record for %s: %w", key, err)
	}

	cmd := []any{"SET", key, string(payload)}
	if c.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(c.ttl))
	}

	_, err = c.exec(ctx, cmd)
	return err
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	_, err := c.exec(ctx, []any{"DEL", key})
	return err
}

func (c *Client) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if c == nil {
		return nil, errors.New("nil client")
	}
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
