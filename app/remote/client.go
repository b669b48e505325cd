package remote

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

	"github.com/lysyi3m/board-cache/app/content"
)

var (
	// ErrUnavailable wraps network failures and non-success HTTP statuses.
	ErrUnavailable = errors.New("remote service unavailable")
	// ErrRejected means the service answered but reported success=false.
	ErrRejected = errors.New("remote service rejected request")
)

const (
	RequestTimeout = 10 * time.Second
	maxErrorBody   = 512
)

type Status string

const (
	StatusActive  Status = "active"
	StatusOffline Status = "offline"
)

type Client struct {
	baseURL   *url.URL
	boardID   string
	apiKey    string
	userAgent string
	client    *http.Client
}

type contentResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Content *content.Payload `json:"content"`
}

type statusRequest struct {
	Status   Status `json:"status"`
	LastSeen string `json:"lastSeen"`
	IsOnline bool   `json:"isOnline"`
}

type statusResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

func NewClient(serverURL, boardID, apiKey, userAgent string, client *http.Client) (*Client, error) {
	if strings.TrimSpace(serverURL) == "" {
		return nil, fmt.Errorf("server url is required")
	}
	if strings.TrimSpace(boardID) == "" {
		return nil, fmt.Errorf("board id is required")
	}
	base, err := url.Parse(strings.TrimRight(serverURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse server url: %w", err)
	}
	if client == nil {
		client = &http.Client{}
	}

	return &Client{
		baseURL:   base,
		boardID:   boardID,
		apiKey:    apiKey,
		userAgent: userAgent,
		client:    client,
	}, nil
}

func (c *Client) BoardID() string {
	return c.boardID
}

// FetchContent retrieves the board's current content payload.
func (c *Client) FetchContent(ctx context.Context) (*content.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "content", nil)
	if err != nil {
		return nil, err
	}

	var resp contentResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrRejected, resp.Message)
	}
	if resp.Content == nil {
		return &content.Payload{}, nil
	}
	return resp.Content, nil
}

// UpdateStatus reports the board's liveness.
func (c *Client) UpdateStatus(ctx context.Context, status Status, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	body, err := json.Marshal(statusRequest{
		Status:   status,
		LastSeen: now.UTC().Format(time.RFC3339),
		IsOnline: status == StatusActive,
	})
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPatch, "status", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp statusResponse
	if err := c.do(req, &resp); err != nil {
		return err
	}
	if resp.Success != nil && !*resp.Success {
		return fmt.Errorf("%w: %s", ErrRejected, resp.Message)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, resource string, body io.Reader) (*http.Request, error) {
	endpoint := c.baseURL.JoinPath("api", "boards", c.boardID, resource)

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s %s: HTTP %d: %s", ErrUnavailable, req.Method, req.URL.Path,
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: failed to decode %s response: %v", ErrUnavailable, req.URL.Path, err)
	}
	return nil
}
