// Package client is a Go client for the burn.note HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"burn.note/internal/api"
	"burn.note/internal/models"
)

// ErrGone is returned for secrets that were read, expired or never existed.
var ErrGone = errors.New("secret is gone")

type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Create uploads a secret. A zero ttl lets the server pick its default.
func (c *Client) Create(ctx context.Context, content string, kind models.Kind, ttl time.Duration) (*api.CreateResponse, error) {
	req := api.CreateRequest{Content: content, Type: kind}
	if ttl > 0 {
		req.Expiry = int64((ttl + time.Second - 1) / time.Second)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var resp api.CreateResponse
	if err := c.do(ctx, http.MethodPost, "/api/create", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Open reads, and thereby destroys, the secret with the given id.
func (c *Client) Open(ctx context.Context, id string) (*models.Secret, error) {
	var resp api.SecretResponse
	err := c.do(ctx, http.MethodGet, "/api/secrets/"+url.PathEscape(id), nil, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, ErrGone
		}
		return nil, err
	}
	return &models.Secret{ID: resp.ID, Content: resp.Content, Kind: resp.Type}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ParseID accepts a bare id or any link containing one as its last
// path segment.
func ParseID(s string) string {
	s = strings.TrimSpace(s)
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		s = u.Path
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return s
}
