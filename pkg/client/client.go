// Package client is a Go client for the matchnote HTTP API.
//
// Records are exchanged as the same [models.Record] values the server stores:
//
//	c := client.New("http://localhost:8080")
//	g := &models.Group{Title: "serve", Color: models.ColorBlue}
//	if err := c.Create(ctx, g); err != nil {
//		return err
//	}
//	report, err := c.Sync(ctx)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/matchnote/matchnote/pkg/models"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// APIError is any other non-2xx answer.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status=%d, message=%s", e.Status, e.Message)
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for baseURL, e.g. "http://localhost:8080", with no
// trailing slash.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = string(raw)
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, e.Error)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func collection(kind models.Kind) (string, error) {
	d, err := models.Describe(kind)
	if err != nil {
		return "", err
	}
	return "/api/" + d.Collection, nil
}

// Health returns the server's health document.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var result map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Create saves a new record and fills r with the server's copy.
func (c *Client) Create(ctx context.Context, r models.Record) error {
	path, err := collection(r.Kind())
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, r, r)
}

// Update replaces the record with r's id and fills r with the server's copy.
func (c *Client) Update(ctx context.Context, r models.Record) error {
	path, err := collection(r.Kind())
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, path+"/"+url.PathEscape(r.RecordID()), r, r)
}

// Get returns the record, deleted or not. A missing record is ErrNotFound.
func (c *Client) Get(ctx context.Context, kind models.Kind, id string) (models.Record, error) {
	path, err := collection(kind)
	if err != nil {
		return nil, err
	}
	r, err := models.New(kind)
	if err != nil {
		return nil, err
	}
	if err := c.do(ctx, http.MethodGet, path+"/"+url.PathEscape(id), nil, r); err != nil {
		return nil, err
	}
	return r, nil
}

// List returns the records of kind matching query, e.g. {"task_id": {id}}.
func (c *Client) List(ctx context.Context, kind models.Kind, query url.Values) ([]models.Record, error) {
	path, err := collection(kind)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var raw []json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	records := make([]models.Record, 0, len(raw))
	for _, doc := range raw {
		r, err := models.New(kind)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(doc, r); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", kind, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// Count returns how many records of kind match query.
func (c *Client) Count(ctx context.Context, kind models.Kind, query url.Values) (int64, error) {
	path, err := collection(kind)
	if err != nil {
		return 0, err
	}
	path += "/count"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var result struct {
		Count int64 `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

// Delete soft-deletes the record and its descendants and returns how many
// records were flagged.
func (c *Client) Delete(ctx context.Context, kind models.Kind, id string) (int, error) {
	path, err := collection(kind)
	if err != nil {
		return 0, err
	}
	var result struct {
		Deleted int `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, path+"/"+url.PathEscape(id), nil, &result); err != nil {
		return 0, err
	}
	return result.Deleted, nil
}
