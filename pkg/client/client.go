// Package client is a Go client for the marginalia HTTP API.
//
// A [Client] acts as one reader: it sends that reader's id in the
// X-Reader-Id header, the way the authenticating proxy in front of the
// service does.
//
//	c := client.NewClient("http://localhost:8080")
//	reader, err := c.CreateReader(ctx, "alice")
//	c.SetReader(reader.ID)
//	view, err := c.Send(ctx, command.Envelope{
//		Type:   "Create",
//		Object: map[string]any{"type": "Tag", "name": "to-read"},
//	})
//
// Failed commands come back as [*APIError] carrying the structured details.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/engine"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/outbox"
)

const readerHeader = "X-Reader-Id"

// Client is safe for concurrent use once SetReader has been called.
type Client struct {
	baseURL    string
	httpClient *http.Client
	reader     models.ReaderID
}

// NewClient creates a client. baseURL includes scheme and host, without a
// trailing slash.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetReader sets the reader the client acts as.
func (c *Client) SetReader(id models.ReaderID) {
	c.reader = id
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int            `json:"statusCode"`
	Kind       string         `json:"error"`
	Details    engine.Details `json:"details"`
	// Body is the raw response when it was not a structured failure.
	Body string `json:"-"`
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("API error: status=%d, error=%s, activity=%s", e.StatusCode, e.Kind, e.Details.Activity)
	}
	return fmt.Sprintf("API error: status=%d, body=%s", e.StatusCode, e.Body)
}

// doRequest performs an HTTP request with proper headers
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if !c.reader.IsZero() {
		req.Header.Set(readerHeader, c.reader.String())
	}

	return c.httpClient.Do(req)
}

// decodeResponse decodes the JSON response into the target struct
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Kind == "" {
			apiErr = &APIError{Body: string(body)}
		}
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Health checks the health status of the server
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateReader provisions a reader.
func (c *Client) CreateReader(ctx context.Context, name string) (*models.Reader, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/readers", map[string]any{"name": name})
	if err != nil {
		return nil, err
	}

	var result models.Reader
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetReader(ctx context.Context, id models.ReaderID) (*models.Reader, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/readers/%s", id), nil)
	if err != nil {
		return nil, err
	}

	var result models.Reader
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Send submits a command as the current reader and returns the logged activity.
func (c *Client) Send(ctx context.Context, env command.Envelope) (*outbox.View, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/readers/%s/activities", c.reader), env)
	if err != nil {
		return nil, err
	}

	var result outbox.View
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListActivities returns the current reader's outbox, newest first.
// A limit <= 0 returns everything.
func (c *Client) ListActivities(ctx context.Context, limit int) ([]outbox.View, error) {
	path := fmt.Sprintf("/api/readers/%s/activities", c.reader)
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		OrderedItems []outbox.View `json:"orderedItems"`
	}
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return result.OrderedItems, nil
}

func (c *Client) GetActivity(ctx context.Context, id models.ActivityID) (*outbox.View, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/activities/%s", id), nil)
	if err != nil {
		return nil, err
	}

	var result outbox.View
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetReadOnly flips the server's maintenance switch.
func (c *Client) SetReadOnly(ctx context.Context, readOnly bool) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/admin/read-only", map[string]bool{"readOnly": readOnly})
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}
