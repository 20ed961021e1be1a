package hcaptcha

import (
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

const defaultVerifyURL = "https://hcaptcha.com/siteverify"

// verifyResponse is the subset of the siteverify response that matters here.
type verifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// HTTPStatusError captures non-2xx siteverify responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("hcaptcha: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client verifies hCaptcha response tokens against the siteverify endpoint.
type Client struct {
	secret     string
	verifyURL  string
	httpClient *http.Client
}

type Option func(*Client)

func WithVerifyURL(verifyURL string) Option {
	return func(c *Client) {
		c.verifyURL = strings.TrimSpace(verifyURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(secret string, opts ...Option) (*Client, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("hcaptcha: secret must not be empty")
	}
	c := &Client{
		secret:     secret,
		verifyURL:  defaultVerifyURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.verifyURL == "" {
		c.verifyURL = defaultVerifyURL
	}
	return c, nil
}

// Verify reports whether siteverify accepted token. A blank token is sent
// as-is and rejected upstream.
func (c *Client) Verify(ctx context.Context, token string) (bool, error) {
	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("hcaptcha: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("hcaptcha: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return false, &HTTPStatusError{StatusCode: res.StatusCode, Body: string(buf)}
	}

	var payload verifyResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<16)).Decode(&payload); err != nil {
		return false, fmt.Errorf("hcaptcha: decode response: %w", err)
	}
	return payload.Success, nil
}
