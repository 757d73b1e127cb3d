// Package gfn talks to the remote session, catalog and signaling HTTP APIs.
package gfn

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

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/bnema/opennow-cli/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout        = 15 * time.Second
	defaultRateLimit      = 5
	defaultRateLimitBurst = 10
	defaultUserAgent      = "opennow-cli"
	maxResponseBytes      = 4 << 20
)

// Options configures the API client.
type Options struct {
	APIBaseURL     string
	CatalogBaseURL string
	HTTPClient     *http.Client
	Timeout        time.Duration
	UserAgent      string
	RateLimit      rate.Limit
	RateLimitBurst int
}

// Client is shared by the session service, catalog and signaler.
type Client struct {
	apiBase     string
	catalogBase string
	httpClient  *http.Client
	limiter     *rate.Limiter
	userAgent   string
	logger      zerolog.Logger
}

// APIError is a non-2xx response.
type APIError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s: status %d: %s: %s", e.Operation, e.StatusCode, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", e.Operation, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s: status %d", e.Operation, e.StatusCode)
	}
}

// Unauthorized reports a rejected credential.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewClient(opts Options, logger zerolog.Logger) (*Client, error) {
	opts = normalizeOptions(opts)

	apiBase, err := normalizeBaseURL(opts.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("api base url: %w", err)
	}
	catalogBase := apiBase
	if strings.TrimSpace(opts.CatalogBaseURL) != "" {
		catalogBase, err = normalizeBaseURL(opts.CatalogBaseURL)
		if err != nil {
			return nil, fmt.Errorf("catalog base url: %w", err)
		}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		apiBase:     apiBase,
		catalogBase: catalogBase,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(opts.RateLimit, opts.RateLimitBurst),
		userAgent:   opts.UserAgent,
		logger:      logger,
	}, nil
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	return opts
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return "", errors.New("base url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("base url host is required")
	}

	return trimmed, nil
}

// Sessions returns the SessionService view of the client.
func (c *Client) Sessions() *SessionService {
	return &SessionService{client: c}
}

func (c *Client) Catalog() *Catalog {
	return &Catalog{client: c}
}

func (c *Client) Signaler() *Signaler {
	return &Signaler{client: c}
}

type request struct {
	operation string
	method    string
	url       string
	query     url.Values
	cred      *domain.Credential
	body      any
}

func (c *Client) do(ctx context.Context, req request, out any) (err error) {
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultFailure
		}
		metrics.APIRequestsTotal.WithLabelValues(req.operation, result).Inc()
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", req.operation, err)
	}

	endpoint := req.url
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", req.operation, err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", req.operation, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.cred != nil {
		if !req.cred.Valid() {
			return domain.ErrNotLoggedIn
		}
		httpReq.Header.Set("Authorization", "Bearer "+req.cred.AccessToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", req.operation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug().
		Str("operation", req.operation).
		Str("method", req.method).
		Int("status", resp.StatusCode).
		Msg("api response")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(req.operation, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", req.operation, err)
	}

	return nil
}

func decodeAPIError(operation string, resp *http.Response) error {
	var body errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body)

	return &APIError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Code:       body.Code,
		Message:    body.Message,
	}
}

func seconds(n float64) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n * float64(time.Second))
}
