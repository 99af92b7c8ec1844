package hue

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// defaultRequestTimeout bounds a single bridge request.
	defaultRequestTimeout = 10 * time.Second

	// resourcePath is the CLIP v2 resource listing endpoint.
	resourcePath = "/clip/v2/resource"

	// appKeyHeader carries the application key on v2 requests.
	appKeyHeader = "hue-application-key"
)

// Client talks to a single Hue bridge over its REST API.
type Client struct {
	baseURL    string
	appKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the bridge base URL, scheme included.
// Used when the bridge address is not a bare host.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithInsecureTLS skips certificate verification. Hue bridges serve a
// self-signed certificate, so local deployments commonly need this.
func WithInsecureTLS() Option {
	return func(c *Client) {
		c.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // bridge serves a self-signed cert on the LAN
		}
	}
}

// NewClient creates a client for the bridge at host using the given
// application key.
func NewClient(host, appKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    "https://" + host,
		appKey:     appKey,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsV2Bridge reports whether the bridge firmware serves the CLIP v2 API.
// Older firmware answers 404 on the v2 resource endpoint; any other
// answer means the endpoint exists. A transport failure is returned as
// an error so callers can distinguish "v1-only" from "unreachable".
func (c *Client) IsV2Bridge(ctx context.Context) (bool, error) {
	resp, err := c.get(ctx, resourcePath)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrBridgeUnreachable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode != http.StatusNotFound, nil
}

// clipResponse is the envelope every CLIP v2 endpoint answers with.
type clipResponse struct {
	Errors []clipError `json:"errors"`
	Data   []Resource  `json:"data"`
}

type clipError struct {
	Description string `json:"description"`
}

// FetchResourceGraph retrieves the bridge's full resource list.
func (c *Client) FetchResourceGraph(ctx context.Context) (*ResourceGraph, error) {
	resp, err := c.get(ctx, resourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBridgeUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrBridgeResponse, resp.StatusCode)
	}

	var body clipResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding resource list: %w", ErrBridgeResponse, err)
	}
	if len(body.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrBridgeResponse, body.Errors[0].Description)
	}

	return &ResourceGraph{Resources: body.Data}, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set(appKeyHeader, c.appKey)
	return c.httpClient.Do(req)
}
