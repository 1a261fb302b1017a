// Package client talks to the remote Frappe/ERPNext REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/toolsmith/internal/common"
	"golang.org/x/time/rate"
)

// defaultMaxResponseSize caps a response body to prevent OOM from unexpectedly large responses.
const defaultMaxResponseSize = 50 << 20 // 50MB

// Options configures a Client.
type Options struct {
	BaseURL      string
	APIKey       string
	APISecret    string
	SessionToken string
	Timeout      time.Duration
	// RateLimit is the sustained requests per second; 0 disables throttling.
	RateLimit        float64
	RateBurst        int
	MaxResponseBytes int64
	HTTPClient       *http.Client
}

// Response is a successful remote reply.
type Response struct {
	StatusCode int
	Body       []byte
}

// ListQuery is the paginated query of a list call.
type ListQuery struct {
	Filters map[string]interface{}
	Fields  []string
	OrderBy string
	Offset  int
	// Limit is the page length; 0 leaves the remote default, negative asks for every row.
	Limit int
}

// ResourceTypeSummary is one row of the resource type listing.
type ResourceTypeSummary struct {
	Name    string `json:"name"`
	Module  string `json:"module"`
	IsTable int    `json:"istable"`
}

// Client is a Frappe REST client. It is safe for concurrent use.
type Client struct {
	baseURL       string
	authorization string
	timeout       time.Duration
	maxBody       int64
	httpClient    *http.Client
	limiter       *rate.Limiter
	logger        *common.Logger
}

// New creates a client for the remote API described by opts.
func New(opts Options, logger *common.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBody := opts.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = defaultMaxResponseSize
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		authorization: authorizationHeader(opts),
		timeout:       timeout,
		maxBody:       maxBody,
		httpClient:    httpClient,
		logger:        logger,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = int(opts.RateLimit * 2)
			if burst < 1 {
				burst = 1
			}
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// authorizationHeader builds the Frappe token header, falling back to a bearer
// session token.
func authorizationHeader(opts Options) string {
	if opts.APIKey != "" && opts.APISecret != "" {
		return "token " + opts.APIKey + ":" + opts.APISecret
	}
	if opts.SessionToken != "" {
		return "Bearer " + opts.SessionToken
	}
	return ""
}

// BaseURL returns the configured remote URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HasCredentials reports whether a call made with ctx would carry credentials.
func (c *Client) HasCredentials(ctx context.Context) bool {
	return c.authorizationFor(ctx) != ""
}

func (c *Client) authorizationFor(ctx context.Context) string {
	if override, ok := CredentialsFrom(ctx); ok {
		return override
	}
	return c.authorization
}

// List issues a paginated query against a resource type.
func (c *Client) List(ctx context.Context, resourceType string, q ListQuery) (*Response, error) {
	params := url.Values{}
	if len(q.Fields) > 0 {
		data, err := json.Marshal(q.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to encode fields: %w", err)
		}
		params.Set("fields", string(data))
	}
	if len(q.Filters) > 0 {
		data, err := json.Marshal(q.Filters)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filters: %w", err)
		}
		params.Set("filters", string(data))
	}
	if q.OrderBy != "" {
		params.Set("order_by", q.OrderBy)
	}
	if q.Offset > 0 {
		params.Set("limit_start", strconv.Itoa(q.Offset))
	}
	switch {
	case q.Limit > 0:
		params.Set("limit_page_length", strconv.Itoa(q.Limit))
	case q.Limit < 0:
		// Frappe treats a page length of 0 as unlimited
		params.Set("limit_page_length", "0")
	}
	return c.do(ctx, http.MethodGet, resourcePath(resourceType, "")+encodeQuery(params), nil)
}

// Get fetches one resource by identifier.
func (c *Client) Get(ctx context.Context, resourceType, id string, fields []string) (*Response, error) {
	params := url.Values{}
	if len(fields) > 0 {
		data, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to encode fields: %w", err)
		}
		params.Set("fields", string(data))
	}
	return c.do(ctx, http.MethodGet, resourcePath(resourceType, id)+encodeQuery(params), nil)
}

// Create submits a new resource.
func (c *Client) Create(ctx context.Context, resourceType string, payload map[string]interface{}) (*Response, error) {
	return c.do(ctx, http.MethodPost, resourcePath(resourceType, ""), map[string]interface{}{"data": payload})
}

// Update submits changed fields of an existing resource.
func (c *Client) Update(ctx context.Context, resourceType, id string, payload map[string]interface{}) (*Response, error) {
	return c.do(ctx, http.MethodPut, resourcePath(resourceType, id), map[string]interface{}{"data": payload})
}

// Delete removes a resource by identifier.
func (c *Client) Delete(ctx context.Context, resourceType, id string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, resourcePath(resourceType, id), nil)
}

// CallProcedure invokes a whitelisted remote method with the argument map.
func (c *Client) CallProcedure(ctx context.Context, qualifiedName string, args map[string]interface{}) (*Response, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	return c.do(ctx, http.MethodPost, "/api/method/"+url.PathEscape(qualifiedName), args)
}

// ListResourceTypes returns every resource type visible to the caller.
func (c *Client) ListResourceTypes(ctx context.Context) ([]ResourceTypeSummary, error) {
	resp, err := c.List(ctx, "DocType", ListQuery{Fields: []string{"name", "module", "istable"}, Limit: -1})
	if err != nil {
		return nil, err
	}
	var result struct {
		Data []ResourceTypeSummary `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse resource type listing: %w", err)
	}
	return result.Data, nil
}

// GetResourceMetadata returns the raw metadata document of a resource type.
func (c *Client) GetResourceMetadata(ctx context.Context, resourceType string) (json.RawMessage, error) {
	resp, err := c.Get(ctx, "DocType", resourceType, nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse metadata for %s: %w", resourceType, err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("metadata for %s has no data", resourceType)
	}
	return result.Data, nil
}

// do performs an HTTP request with an optional JSON body under the client deadline.
func (c *Client) do(ctx context.Context, method, path string, data interface{}) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrThrottled, err)
		}
	}

	var bodyReader io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := c.authorizationFor(ctx); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("remote request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.Warn().Str("method", method).Str("path", path).Int64("duration_ms", duration.Milliseconds()).Str("error", err.Error()).Msg("remote request failed")
		return nil, fmt.Errorf("remote request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		c.logger.Warn().Str("method", method).Str("path", path).Int64("limit", c.maxBody).Msg("remote response too large")
		return nil, &ResponseTooLargeError{Limit: c.maxBody, StatusCode: resp.StatusCode}
	}

	c.logger.Debug().Int("status", resp.StatusCode).Int64("duration_ms", duration.Milliseconds()).Msg("remote response")

	if resp.StatusCode >= 400 {
		return nil, newStatusError(resp.StatusCode, body)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func resourcePath(resourceType, id string) string {
	p := "/api/resource/" + url.PathEscape(resourceType)
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

func encodeQuery(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}
