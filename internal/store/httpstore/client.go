// Package httpstore is the REST client for the relay's /blueprints API. It
// implements store.Repository, so editing sessions save through it.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dyluth/blueprints/internal/store"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/golang/glog"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 10 * time.Second

// Client talks to one relay, e.g. http://localhost:8080.
type Client struct {
	base string
	http *http.Client
}

var _ store.Repository = (*Client)(nil)

// New creates a client for the relay at baseURL.
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid store URL %q", baseURL)
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// List returns every blueprint.
func (c *Client) List(ctx context.Context) ([]*blueprint.Blueprint, error) {
	var out []*blueprint.Blueprint
	if err := c.do(ctx, http.MethodGet, "/blueprints", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByAuthor returns every blueprint of author.
func (c *Client) ListByAuthor(ctx context.Context, author string) ([]*blueprint.Blueprint, error) {
	var out []*blueprint.Blueprint
	if err := c.do(ctx, http.MethodGet, "/blueprints/"+url.PathEscape(author), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one blueprint.
func (c *Client) Get(ctx context.Context, key blueprint.Key) (*blueprint.Blueprint, error) {
	var out blueprint.Blueprint
	if err := c.do(ctx, http.MethodGet, path(key), nil, &out); err != nil {
		return nil, err
	}
	if out.Points == nil {
		out.Points = []blueprint.Point{}
	}
	return &out, nil
}

// Create POSTs a new blueprint.
func (c *Client) Create(ctx context.Context, bp *blueprint.Blueprint) error {
	return c.do(ctx, http.MethodPost, "/blueprints", bp.Clone(), nil)
}

// Update PUTs the points of an existing blueprint.
func (c *Client) Update(ctx context.Context, bp *blueprint.Blueprint) error {
	return c.do(ctx, http.MethodPut, path(bp.Key()), bp.Clone(), nil)
}

// Delete removes a blueprint.
func (c *Client) Delete(ctx context.Context, key blueprint.Key) error {
	return c.do(ctx, http.MethodDelete, path(key), nil, nil)
}

func path(key blueprint.Key) string {
	return "/blueprints/" + url.PathEscape(key.Author) + "/" + url.PathEscape(key.Name)
}

func (c *Client) do(ctx context.Context, method, route string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+route, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	glog.V(2).Infof("[httpstore] %s %s", method, route)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", method, route, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, route, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &store.APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	if apiErr.Reason == "" && resp.StatusCode == http.StatusNotFound {
		apiErr.Reason = store.ReasonNotFound
	}
	return apiErr
}
