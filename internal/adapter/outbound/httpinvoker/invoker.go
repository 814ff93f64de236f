// Package httpinvoker executes assembled API requests over net/http with
// retries, response caching, and credential injection.
package httpinvoker

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"specli/internal/usecase"
)

const defaultAttempts = 3

// Invoker implements usecase.RequestInvoker. Server errors and transport
// failures are retried with exponential backoff; everything else returns
// immediately.
type Invoker struct {
	client *http.Client
	logger *slog.Logger

	auth           usecase.Authenticator
	cache          usecase.ResponseCache
	defaultHeaders map[string]string

	attempts  int
	baseDelay time.Duration
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithAuthenticator injects credentials into every outgoing request.
func WithAuthenticator(a usecase.Authenticator) Option {
	return func(i *Invoker) { i.auth = a }
}

// WithCache serves successful GET responses from cache and fills it on miss.
func WithCache(c usecase.ResponseCache) Option {
	return func(i *Invoker) { i.cache = c }
}

// WithRetry overrides the attempt count and initial backoff delay.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(i *Invoker) {
		if attempts > 0 {
			i.attempts = attempts
		}
		i.baseDelay = baseDelay
	}
}

// WithDefaultHeaders adds headers to every request. Per-request headers
// with the same name win.
func WithDefaultHeaders(headers map[string]string) Option {
	return func(i *Invoker) { i.defaultHeaders = headers }
}

func New(client *http.Client, logger *slog.Logger, opts ...Option) *Invoker {
	if client == nil {
		client = http.DefaultClient
	}
	inv := &Invoker{
		client:    client,
		logger:    logger.With("component", "http_invoker"),
		attempts:  defaultAttempts,
		baseDelay: time.Second,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke executes the request. Dry-run requests render the call instead of
// sending it. GET requests consult the cache first and populate it on a
// 2xx response.
func (i *Invoker) Invoke(ctx context.Context, req usecase.InvocationRequest) (usecase.InvocationResult, error) {
	fullURL, err := buildURL(req)
	if err != nil {
		return usecase.InvocationResult{}, err
	}

	log := i.logger.With(
		slog.String("method", req.Method),
		slog.String("url", fullURL))

	if req.DryRun {
		log.Info("Dry run, not sending request")
		return usecase.InvocationResult{
			DryRun:      true,
			ContentType: "text/plain",
			Body:        []byte(renderDryRun(req, fullURL)),
		}, nil
	}

	cacheable := i.cache != nil && req.Method == http.MethodGet
	cacheKey := ""
	if cacheable {
		cacheKey = CacheKey(req.Method, fullURL)
		if cached, ok := i.cache.Get(cacheKey); ok {
			log.Debug("Serving response from cache")
			return usecase.InvocationResult{
				StatusCode:  cached.StatusCode,
				ContentType: cached.ContentType,
				Body:        cached.Body,
				FromCache:   true,
			}, nil
		}
	}

	result, err := i.execute(ctx, log, req, fullURL)
	if err != nil {
		return usecase.InvocationResult{}, err
	}

	if cacheable && result.StatusCode >= 200 && result.StatusCode < 300 {
		if cacheErr := i.cache.Set(cacheKey, usecase.CachedResponse{
			StatusCode:  result.StatusCode,
			ContentType: result.ContentType,
			Body:        result.Body,
		}); cacheErr != nil {
			log.Warn("Failed to cache response", slog.Any("error", cacheErr))
		}
	}
	return result, nil
}

func (i *Invoker) execute(ctx context.Context, log *slog.Logger, req usecase.InvocationRequest, fullURL string) (usecase.InvocationResult, error) {
	var lastErr error
	delay := i.baseDelay

	for attempt := 1; attempt <= i.attempts; attempt++ {
		if attempt > 1 {
			log.Warn("Retrying request",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return usecase.InvocationResult{}, ctx.Err()
			}
			delay *= 2
		}

		httpReq, err := i.newRequest(ctx, req, fullURL)
		if err != nil {
			return usecase.InvocationResult{}, err
		}

		resp, err := i.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("reading response: %w", readErr)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%w: HTTP %d: %s", usecase.ErrServer, resp.StatusCode, summarize(body))
			continue
		}

		if err := classifyStatus(resp.StatusCode, body); err != nil {
			log.Warn("Request rejected", slog.Int("status_code", resp.StatusCode))
			return usecase.InvocationResult{}, err
		}

		log.Debug("Request completed", slog.Int("status_code", resp.StatusCode))
		return usecase.InvocationResult{
			StatusCode:  resp.StatusCode,
			Header:      resp.Header,
			Body:        body,
			ContentType: resp.Header.Get("Content-Type"),
		}, nil
	}

	return usecase.InvocationResult{}, lastErr
}

func (i *Invoker) newRequest(ctx context.Context, req usecase.InvocationRequest, fullURL string) (*http.Request, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if len(req.Body) > 0 && req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Accept", "application/json, */*")
	for key, value := range i.defaultHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	for name, value := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	if i.auth != nil {
		if err := i.auth.Apply(httpReq); err != nil {
			return nil, fmt.Errorf("applying credentials: %w", err)
		}
	}
	return httpReq, nil
}

// classifyStatus maps client-error statuses to sentinel errors. 2xx and
// 3xx pass through; 5xx is handled by the retry loop before this runs.
func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d: %s", usecase.ErrAuth, status, summarize(body))
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: HTTP %d: %s", usecase.ErrNotFound, status, summarize(body))
	case status >= 400:
		return fmt.Errorf("HTTP %d: %s", status, summarize(body))
	}
	return nil
}

func buildURL(req usecase.InvocationRequest) (string, error) {
	base, err := url.Parse(req.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %s: %w", req.BaseURL, err)
	}

	// req.Path arrives percent-escaped (the use case escapes substituted
	// values); parse it as such so String does not escape it again.
	rel, err := url.Parse(strings.TrimRight(base.EscapedPath(), "/") + req.Path)
	if err != nil {
		return "", fmt.Errorf("invalid request path %s: %w", req.Path, err)
	}
	base.Path = rel.Path
	base.RawPath = rel.RawPath

	if len(req.Query) > 0 {
		query := base.Query()
		for key, value := range req.Query {
			query.Set(key, value)
		}
		base.RawQuery = query.Encode()
	}
	return base.String(), nil
}

// CacheKey derives a stable cache key from the request identity. The full
// URL already carries the encoded, sorted query string.
func CacheKey(method, fullURL string) string {
	sum := sha256.Sum256([]byte(method + "|" + fullURL))
	return hex.EncodeToString(sum[:])
}

// renderDryRun produces a curl-like rendering of the request.
func renderDryRun(req usecase.InvocationRequest, fullURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", req.Method, fullURL)

	headers := make([]string, 0, len(req.Headers)+1)
	if len(req.Body) > 0 && req.ContentType != "" {
		headers = append(headers, "Content-Type: "+req.ContentType)
	}
	for key, value := range req.Headers {
		headers = append(headers, key+": "+value)
	}
	sort.Strings(headers)
	for _, h := range headers {
		b.WriteString(h + "\n")
	}

	if len(req.Body) > 0 {
		b.WriteString("\n")
		b.Write(req.Body)
		b.WriteString("\n")
	}
	return b.String()
}

func summarize(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
