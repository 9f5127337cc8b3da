// Package httpremote implements core.Service against the note server's
// JSON API.
package httpremote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/metrics"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 10 * time.Second

// RequestIDHeader carries a per-call correlation id.
const RequestIDHeader = "X-Request-ID"

// API paths, relative to the base URL.
const (
	PathList        = "/v1/note/list"
	PathDetail      = "/v1/note/detail"
	PathUpsert      = "/v1/note/upsert"
	PathDeleteMany  = "/v1/note/batch-delete"
	PathUpdateMany  = "/v1/note/batch-update"
	PathTags        = "/v1/tags/list"
	PathDailyReview = "/v1/note/daily-review-list"
	PathConfig      = "/v1/config/list"
)

// Client talks to the remote note service over HTTP.
type Client struct {
	base    *url.URL
	http    *http.Client
	token   string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics records every call.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a client for baseURL (for example "https://notes.example.com/api").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url %q must be http or https", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

type listRequest struct {
	core.Filter
	Page int `json:"page"`
	Size int `json:"size"`
}

type idRequest struct {
	ID int64 `json:"id"`
}

type idsRequest struct {
	IDs []int64 `json:"ids"`
}

type updateManyRequest struct {
	IDs []int64 `json:"ids"`
	core.Patch
}

// List implements core.Service.
func (c *Client) List(ctx context.Context, filter core.Filter, page, size int) ([]core.Note, error) {
	var notes []core.Note
	err := c.do(ctx, "list", http.MethodPost, PathList, listRequest{Filter: filter, Page: page, Size: size}, &notes)
	return notes, err
}

// Detail implements core.Service.
func (c *Client) Detail(ctx context.Context, id int64) (core.Note, error) {
	var n core.Note
	err := c.do(ctx, "detail", http.MethodPost, PathDetail, idRequest{ID: id}, &n)
	return n, err
}

// Upsert implements core.Service.
func (c *Client) Upsert(ctx context.Context, in core.NoteInput) (core.Note, error) {
	var n core.Note
	err := c.do(ctx, "upsert", http.MethodPost, PathUpsert, in, &n)
	return n, err
}

// DeleteMany implements core.Service.
func (c *Client) DeleteMany(ctx context.Context, ids []int64) error {
	return c.do(ctx, "delete_many", http.MethodPost, PathDeleteMany, idsRequest{IDs: ids}, nil)
}

// UpdateMany implements core.Service.
func (c *Client) UpdateMany(ctx context.Context, ids []int64, patch core.Patch) error {
	return c.do(ctx, "update_many", http.MethodPost, PathUpdateMany, updateManyRequest{IDs: ids, Patch: patch}, nil)
}

// Tags implements core.Service.
func (c *Client) Tags(ctx context.Context) ([]core.Tag, error) {
	var tags []core.Tag
	err := c.do(ctx, "tags", http.MethodGet, PathTags, nil, &tags)
	return tags, err
}

// DailyReview implements core.Service.
func (c *Client) DailyReview(ctx context.Context) ([]core.Note, error) {
	var notes []core.Note
	err := c.do(ctx, "daily_review", http.MethodGet, PathDailyReview, nil, &notes)
	return notes, err
}

// Config implements core.Service.
func (c *Client) Config(ctx context.Context) (core.AccountConfig, error) {
	var cfg core.AccountConfig
	err := c.do(ctx, "config", http.MethodGet, PathConfig, nil, &cfg)
	return cfg, err
}

// Ping checks that the service answers. It is used by the connectivity
// probe.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Config(ctx)
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (err error) {
	defer func() { c.metrics.ObserveRemote(op, err) }()

	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s canceled: %w", op, ctxErr)
		}
		return fmt.Errorf("%s request failed: %w: %w", op, core.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("remote call", "op", op, "status", resp.StatusCode,
		"request_id", reqID, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

// apiError is the error body returned by the service.
type apiError struct {
	Message string `json:"message"`
}

// statusError maps a non-2xx response onto the core sentinels.
func statusError(op string, resp *http.Response) error {
	var body apiError
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(data))
	}

	var sentinel error
	switch {
	case resp.StatusCode == http.StatusNotFound:
		sentinel = core.ErrNotFound
	case resp.StatusCode == http.StatusConflict, resp.StatusCode == http.StatusPreconditionFailed:
		sentinel = core.ErrConflict
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		sentinel = core.ErrInvalidNote
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		sentinel = core.ErrUnavailable
	default:
		return fmt.Errorf("%s failed with status %d: %s", op, resp.StatusCode, body.Message)
	}
	if body.Message == "" {
		return fmt.Errorf("%s failed with status %d: %w", op, resp.StatusCode, sentinel)
	}
	return fmt.Errorf("%s failed with status %d (%s): %w", op, resp.StatusCode, body.Message, sentinel)
}

var _ core.Service = (*Client)(nil)
