package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"portfolio-contact/internal/domain"
	"portfolio-contact/internal/usecase"
)

// insertRow is the body posted to PostgREST for a new message.
type insertRow struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	IP      string `json:"ip"`
}

// row is the representation PostgREST returns. The id column may be a
// bigint or a uuid depending on how the table was created.
type row struct {
	ID        json.RawMessage `json:"id"`
	CreatedAt string          `json:"created_at"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Subject   string          `json:"subject"`
	Message   string          `json:"message"`
	IP        string          `json:"ip"`
}

// APIError is a non-2xx PostgREST response.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
	Body       string `json:"-"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	return fmt.Sprintf("supabase: unexpected status %d: %s", e.StatusCode, msg)
}

func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

// StoreMessage is the text PostgREST reported for the failure.
func (e *APIError) StoreMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Body != "" {
		return e.Body
	}
	return http.StatusText(e.StatusCode)
}

// Client talks to the PostgREST API that fronts a Supabase project's
// messages table, authenticating with the service role key.
type Client struct {
	restURL    string
	serviceKey string
	httpClient *http.Client
}

var _ usecase.MessageStore = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient builds a client for <projectURL>/rest/v1/<table>.
func NewClient(projectURL, serviceKey, table string, opts ...Option) (*Client, error) {
	projectURL = strings.TrimRight(strings.TrimSpace(projectURL), "/")
	if projectURL == "" {
		return nil, errors.New("supabase: project url must not be empty")
	}
	if _, err := url.Parse(projectURL); err != nil {
		return nil, fmt.Errorf("supabase: parse project url: %w", err)
	}
	if strings.TrimSpace(serviceKey) == "" {
		return nil, errors.New("supabase: service key must not be empty")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		table = "messages"
	}
	c := &Client{
		restURL:    projectURL + "/rest/v1/" + url.PathEscape(table),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Accept", "application/json")
}

// ListSince returns up to limit rows from ip created at or after since.
// Only id and created_at are selected.
func (c *Client) ListSince(ctx context.Context, ip string, since time.Time, limit int) ([]domain.Message, error) {
	q := url.Values{}
	q.Set("select", "id,created_at")
	q.Set("ip", "eq."+ip)
	q.Set("created_at", "gte."+since.UTC().Format("2006-01-02T15:04:05.000Z"))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.restURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("supabase: create request: %w", err)
	}
	c.setHeaders(req)

	raw, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase: ListSince: %w", err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("supabase: decode ListSince response: %w", err)
	}
	// The rate check only counts rows, so a row whose columns do not decode
	// still counts, carrying just the queried address.
	msgs := make([]domain.Message, 0, len(items))
	for _, item := range items {
		var r row
		if err := json.Unmarshal(item, &r); err != nil {
			msgs = append(msgs, domain.Message{IP: ip})
			continue
		}
		m, err := r.toMessage(ip)
		if err != nil {
			m = domain.Message{IP: ip}
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// InsertMessage inserts one row and returns the stored representation.
func (c *Client) InsertMessage(ctx context.Context, msg domain.NewMessage) (domain.Message, error) {
	body, err := json.Marshal(insertRow{
		Name:    msg.Name,
		Email:   msg.Email,
		Subject: msg.Subject,
		Message: msg.Message,
		IP:      msg.IP,
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("supabase: marshal row: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.restURL, bytes.NewReader(body))
	if err != nil {
		return domain.Message{}, fmt.Errorf("supabase: create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	raw, err := c.do(req)
	if err != nil {
		return domain.Message{}, err
	}

	r, err := decodeInserted(raw)
	if err != nil {
		return domain.Message{}, err
	}
	return r.toMessage(msg.IP)
}

// decodeInserted accepts either a single object or the one-element array
// PostgREST returns for return=representation.
func decodeInserted(raw []byte) (row, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []row
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return row{}, fmt.Errorf("supabase: decode insert response: %w", err)
		}
		if len(rows) == 0 {
			return row{}, errors.New("supabase: insert returned no rows")
		}
		return rows[0], nil
	}
	var r row
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return row{}, fmt.Errorf("supabase: decode insert response: %w", err)
	}
	return r, nil
}

func (r row) toMessage(fallbackIP string) (domain.Message, error) {
	id, err := rowID(r.ID)
	if err != nil {
		return domain.Message{}, err
	}
	created, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return domain.Message{}, err
	}
	ip := r.IP
	if ip == "" {
		ip = fallbackIP
	}
	return domain.Message{
		ID:        id,
		CreatedAt: created,
		Name:      r.Name,
		Email:     r.Email,
		Subject:   r.Subject,
		Message:   r.Message,
		IP:        ip,
	}, nil
}

func rowID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("supabase: row has no id")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("supabase: decode id: %w", err)
	}
	return n.String(), nil
}

// timestamptz columns come back with a numeric offset, not always Z.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-07",
	"2006-01-02T15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("supabase: parse created_at %q", s)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		apiErr := &APIError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(buf))}
		_ = json.Unmarshal(buf, apiErr)
		return nil, apiErr
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
