package meet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/tutorlink/tutorlink-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.daily.co/v1"
	requestBodyReadLimit  int64 = 1024
	defaultRoomExpiryPad        = 30 * time.Minute
)

var (
	errAPIKeyRequired = errors.New("meet api key is required")
)

// Client wraps the video-room provider used to attach meeting links to sessions.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured provider base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the meeting room client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// RoomRequest describes the session a room is being created for.
type RoomRequest struct {
	Name     string
	StartAt  time.Time
	EndAt    time.Time
	MaxUsers int
}

// Room is the provider's created meeting room.
type Room struct {
	Name string
	URL  string
}

// CreateRoom provisions a meeting room scoped to the session window.
func (c *Client) CreateRoom(ctx context.Context, req RoomRequest) (*Room, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "meet client not configured")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "room name is required")
	}
	if !req.StartAt.Before(req.EndAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "room window must have start before end")
	}

	maxUsers := req.MaxUsers
	if maxUsers <= 0 {
		maxUsers = 2
	}

	body := map[string]any{
		"name": req.Name,
		"properties": map[string]any{
			"nbf":             req.StartAt.Unix(),
			"exp":             req.EndAt.Add(defaultRoomExpiryPad).Unix(),
			"max_participants": maxUsers,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal room request")
	}

	url := c.buildURL("rooms")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build room request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute room request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "room request failed")
	}

	var apiResp struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode room response")
	}

	return &Room{Name: apiResp.Name, URL: apiResp.URL}, nil
}

// DeleteRoom removes a provisioned room, typically after a cancellation.
func (c *Client) DeleteRoom(ctx context.Context, name string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "meet client not configured")
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "room name is required")
	}

	url := c.buildURL("rooms/" + trimmed)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build room delete request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute room delete request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "room delete failed")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
