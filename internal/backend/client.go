package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"orderdesk/internal/domain"
	"orderdesk/internal/metrics"
)

// TokenSource supplies the bearer token for a backend call. An empty token
// means no user is signed in.
type TokenSource interface {
	IDToken(ctx context.Context) (string, error)
}

// ErrUnavailable wraps transport failures: no response came back.
var ErrUnavailable = errors.New("backend unavailable")

// StatusError is returned for non-2xx backend responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Client calls the order-management REST backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func New(baseURL string, timeout time.Duration, logger *log.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListUsers(ctx context.Context, ts TokenSource) ([]domain.Customer, error) {
	var out []domain.Customer
	if err := c.do(ctx, ts, http.MethodGet, "/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUser(ctx context.Context, ts TokenSource, id string) (*domain.Customer, error) {
	var out domain.Customer
	if err := c.do(ctx, ts, http.MethodGet, "/user/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateUser posts a new customer and returns the record the backend saved.
func (c *Client) CreateUser(ctx context.Context, ts TokenSource, req UserRequest) (*domain.Customer, error) {
	var out domain.Customer
	if err := c.do(ctx, ts, http.MethodPost, "/user", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListBooks(ctx context.Context, ts TokenSource) ([]domain.CatalogItem, error) {
	var out []domain.CatalogItem
	if err := c.do(ctx, ts, http.MethodGet, "/books", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListBookItems(ctx context.Context, ts TokenSource) ([]domain.CatalogItem, error) {
	var out []domain.CatalogItem
	if err := c.do(ctx, ts, http.MethodGet, "/books/items", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListChannels(ctx context.Context, ts TokenSource) ([]string, error) {
	var out []string
	if err := c.do(ctx, ts, http.MethodGet, "/channels", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateOrder submits an order. The response body is ignored.
func (c *Client) CreateOrder(ctx context.Context, ts TokenSource, req OrderRequest) error {
	return c.do(ctx, ts, http.MethodPost, "/orders", req, nil)
}

// Ping checks the backend is reachable without authenticating.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/channels", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return &StatusError{Method: http.MethodGet, Path: "/channels", StatusCode: resp.StatusCode}
	}
	return nil
}

// do sends one authenticated request. Without a token nothing is sent.
func (c *Client) do(ctx context.Context, ts TokenSource, method, path string, body, out any) error {
	if ts == nil {
		return domain.ErrNotAuthenticated
	}
	token, err := ts.IDToken(ctx)
	if err != nil {
		return fmt.Errorf("id token: %w", err)
	}
	if token == "" {
		return domain.ErrNotAuthenticated
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	endpoint := method + " " + endpointLabel(path)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordBackendRequest(endpoint, "error", time.Since(start).Seconds())
		c.logger.Printf("backend: %s error=%v", endpoint, err)
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RecordBackendRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Printf("backend: %s status=%d", endpoint, resp.StatusCode)
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// endpointLabel keeps metric cardinality bounded by collapsing ids.
func endpointLabel(path string) string {
	if strings.HasPrefix(path, "/user/") {
		return "/user/:id"
	}
	return path
}
