package store

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
	"time"
)

var _ Store = (*RESTStore)(nil)

// RESTStore talks to a Redis REST endpoint (Upstash wire format): each
// command is POSTed as a JSON array and answered with {"result": ...}
// or {"error": "..."}.
type RESTStore struct {
	endpoint string
	token    string
	client   *http.Client
}

type restReply struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewRESTStore(endpoint, token string, timeout time.Duration) (*RESTStore, error) {
	if endpoint == "" || token == "" {
		return nil, errors.New("rest store needs both url and token")
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid rest url %q", endpoint)
	}

	return &RESTStore{
		endpoint: u.String(),
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (s *RESTStore) Put(ctx context.Context, id, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid ttl %s", ttl)
	}

	result, err := s.do(ctx, "SET", secretKey(id), value, "EX", strconv.FormatInt(ttlSeconds(ttl), 10), "NX")
	if err != nil {
		return err
	}
	if isNull(result) {
		return ErrExists
	}
	return nil
}

// Take issues GETDEL, which the server executes atomically.
func (s *RESTStore) Take(ctx context.Context, id string) (string, error) {
	result, err := s.do(ctx, "GETDEL", secretKey(id))
	if err != nil {
		return "", err
	}
	if isNull(result) {
		return "", ErrNotFound
	}

	var value string
	if err := json.Unmarshal(result, &value); err != nil {
		return "", fmt.Errorf("%w: unexpected GETDEL result: %v", ErrUnavailable, err)
	}
	return value, nil
}

func (s *RESTStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *RESTStore) do(ctx context.Context, args ...string) (json.RawMessage, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, args[0], err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s reply: %v", ErrUnavailable, args[0], err)
	}

	var reply restReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("%w: %s: status %d", ErrUnavailable, args[0], resp.StatusCode)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrUnavailable, args[0], reply.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrUnavailable, args[0], resp.StatusCode)
	}

	return reply.Result, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
