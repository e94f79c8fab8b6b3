// Package gateway wraps catalog HTTP calls with readiness gating, one retry
// on 401 and the not-found memoization used by item lookups.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBytes = 16 << 20

var authPathPattern = regexp.MustCompile(`(?i)/Users/|/Sessions\b|/Items/[^/]+/PlaybackInfo\b|/Videos/`)

var emptyObject = json.RawMessage(`{}`)

// Authenticator is the slice of the identity resolver the gateway relies on.
type Authenticator interface {
	IsReady() bool
	InWarmup() bool
	Resolve(ctx context.Context) (domain.Identity, error)
	AuthorizationHeader(id domain.Identity) string
	InvalidateCredentials(ctx context.Context) error
}

type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	// Instrument wraps the transport with OpenTelemetry HTTP spans.
	Instrument bool
	Logger     *slog.Logger
}

type Client struct {
	auth           Authenticator
	baseURL        *url.URL
	httpClient     *http.Client
	requestTimeout time.Duration
	logger         *slog.Logger
}

var errNilAuthenticator = errors.New("gateway authenticator is nil")

func New(auth Authenticator, opts Options) (*Client, error) {
	if auth == nil {
		return nil, errNilAuthenticator
	}

	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.Instrument {
		instrumented := *httpClient
		transport := instrumented.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		instrumented.Transport = otelhttp.NewTransport(transport)
		httpClient = &instrumented
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		auth:           auth,
		baseURL:        base,
		httpClient:     httpClient,
		requestTimeout: opts.RequestTimeout,
		logger:         logger,
	}, nil
}

// Do performs one catalog request. A 404 yields (nil, nil). Empty and
// non-JSON success bodies yield an empty object.
func (c *Client) Do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	authRequired := RequiresAuth(path)
	if authRequired && !c.auth.IsReady() {
		return nil, fmt.Errorf("%s %s: %w", method, path, domain.ErrAuthNotReady)
	}

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		payload = encoded
	}

	for attempt := 0; ; attempt++ {
		id, err := c.auth.Resolve(ctx)
		if err != nil && !errors.Is(err, domain.ErrIdentityUnavailable) {
			if isAbort(ctx) {
				return nil, abortError(method, path, err)
			}
			return nil, fmt.Errorf("resolve identity for %s %s: %w", method, path, err)
		}
		if authRequired && id.AccessToken == "" {
			return nil, fmt.Errorf("%s %s: no access token: %w", method, path, domain.ErrUnauthorized)
		}

		resp, err := c.send(ctx, method, path, payload, id)
		if err != nil {
			if isAbort(ctx) {
				return nil, abortError(method, path, err)
			}
			c.logger.Error("catalog request failed", "method", method, "path", path, "error", err)
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}

		switch {
		case resp.status == http.StatusNotFound:
			return nil, nil
		case resp.status == http.StatusUnauthorized:
			if attempt == 0 {
				c.logger.Debug("catalog request unauthorized, retrying", "method", method, "path", path)
				continue
			}
			if c.auth.InWarmup() {
				return nil, fmt.Errorf("%s %s during warm-up: %w", method, path, domain.ErrUnauthorized)
			}
			if err := c.auth.InvalidateCredentials(ctx); err != nil {
				c.logger.Warn("invalidate credentials failed", "error", err)
			}
			return nil, fmt.Errorf("%s %s: %w", method, path, domain.ErrUnauthorized)
		case resp.status == http.StatusForbidden:
			return nil, fmt.Errorf("%s %s: %w", method, path, domain.ErrForbidden)
		case resp.status < http.StatusOK || resp.status >= http.StatusMultipleChoices:
			httpErr := &domain.HTTPError{Status: resp.status, Message: errorMessage(resp.body)}
			c.logger.Error("catalog request failed", "method", method, "path", path, "status", resp.status, "error", httpErr)
			return nil, fmt.Errorf("%s %s: %w", method, path, httpErr)
		}

		if resp.status == http.StatusNoContent || !resp.json || len(bytes.TrimSpace(resp.body)) == 0 || !json.Valid(resp.body) {
			return emptyObject, nil
		}
		return json.RawMessage(resp.body), nil
	}
}

type response struct {
	status int
	json   bool
	body   []byte
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, id domain.Identity) (response, error) {
	endpoint, err := c.endpoint(path)
	if err != nil {
		return response{}, err
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(requestCtx, method, endpoint, reader)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Emby-Authorization", c.auth.AuthorizationHeader(id))
	if id.AccessToken != "" {
		req.Header.Set("X-Emby-Token", id.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response{}, fmt.Errorf("read response body: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return response{
		status: resp.StatusCode,
		json:   strings.HasSuffix(mediaType, "json"),
		body:   data,
	}, nil
}

func (c *Client) endpoint(path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}
	if c.baseURL == nil {
		return "", errors.New("server url is not configured")
	}

	rel, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse api path: %w", err)
	}

	endpoint := *c.baseURL
	endpoint.Path = strings.TrimSuffix(endpoint.Path, "/") + "/" + strings.TrimPrefix(rel.Path, "/")
	endpoint.RawQuery = rel.RawQuery
	return endpoint.String(), nil
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := c.requestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	return context.WithTimeout(ctx, requestTimeout)
}

// RequiresAuth reports whether path targets a user-scoped endpoint. Absolute
// URLs that cannot be parsed count as requiring auth.
func RequiresAuth(path string) bool {
	if strings.HasPrefix(path, "http") {
		parsed, err := url.Parse(path)
		if err != nil {
			return true
		}
		path = parsed.Path
	}
	return authPathPattern.MatchString(path)
}

type serverError struct {
	Message     string `json:"message"`
	Title       string `json:"Title"`
	Description string `json:"Description"`
}

func errorMessage(body []byte) string {
	var payload serverError
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	if payload.Title != "" && payload.Description != "" {
		return payload.Title + ": " + payload.Description
	}
	return ""
}

// isAbort reports whether the caller gave up. The request timeout applied by
// requestContext is a transport failure, not an abort.
func isAbort(ctx context.Context) bool {
	return ctx.Err() != nil
}

func abortError(method, path string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", method, path, domain.ErrAborted, err)
}

func parseBaseURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("server url must use http or https")
	}
	if parsed.Host == "" {
		return nil, errors.New("server url host is required")
	}
	return parsed, nil
}
