package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/requestid"
	"github.com/dmitrymomot/authkit/pkg/session"
)

// Endpoint paths, relative to the base URL.
const (
	PathLogin    = "/auth/login"
	PathRegister = "/auth/register"
	PathRefresh  = "/auth/refresh"
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client calls the authentication endpoints. It implements session.Authenticator.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its Transport must not be a
// session.Transport of a manager using this Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// NewClient returns a client for the API at cfg.BaseURL.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrEmptyBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: requestid.NewTransport(http.DefaultTransport),
		},
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("authapi"))
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Login(ctx context.Context, creds session.Credentials) (session.Pair, error) {
	return c.post(ctx, PathLogin, creds)
}

func (c *Client) Register(ctx context.Context, creds session.Credentials) (session.Pair, error) {
	return c.post(ctx, PathRegister, creds)
}

func (c *Client) Refresh(ctx context.Context, renewalToken string) (session.Pair, error) {
	return c.post(ctx, PathRefresh, refreshRequest{RefreshToken: renewalToken})
}

func (c *Client) post(ctx context.Context, path string, body any) (session.Pair, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return session.Pair{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return session.Pair{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return session.Pair{}, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "auth api call",
		logger.Endpoint(req.Method, req.URL),
		logger.StatusCode(resp.StatusCode),
		logger.Duration(time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return session.Pair{}, statusError(resp)
	}

	var pair session.Pair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return session.Pair{}, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	if err := pair.Validate(); err != nil {
		return session.Pair{}, fmt.Errorf("%w: %w", ErrMalformedResult, err)
	}
	return pair, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	se := &StatusError{StatusCode: resp.StatusCode}

	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil {
		se.Message = er.Error
		if se.Message == "" {
			se.Message = er.Message
		}
	}
	if se.Message == "" {
		se.Message = strings.TrimSpace(string(body))
	}
	return se
}
