package usecase

import (
	"context"
	"errors"
	"net/http"

	"specli/internal/domain"
)

// Standard errors returned by use cases and adapters. Adapters wrap these
// with %w so callers can classify failures with errors.Is regardless of
// which layer produced them.
var (
	// ErrSpecParse marks a schema document that could not be fetched,
	// decoded, or resolved.
	ErrSpecParse = errors.New("spec parse failed")
	// ErrSpecUnsupported marks a document whose version is outside
	// OpenAPI 3.x.
	ErrSpecUnsupported = errors.New("unsupported spec version")
	// ErrAuth marks a 401 or 403 from the target API.
	ErrAuth = errors.New("authentication failed")
	// ErrNotFound marks a 404 from the target API.
	ErrNotFound = errors.New("resource not found")
	// ErrServer marks a 5xx from the target API that survived retries.
	ErrServer = errors.New("server error")
	// ErrProfileNotFound marks a reference to an unconfigured profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrCredentialNotFound marks a credential lookup miss.
	ErrCredentialNotFound = errors.New("credential not found")
)

// SpecParser loads an OpenAPI document from a source (URL, file path, or
// "-" for stdin) and returns its fully resolved, normalised form.
type SpecParser interface {
	Parse(ctx context.Context, src string) (domain.ParsedSpec, error)
}

// InvocationRequest is one HTTP call assembled by the invoke use case:
// the path already has its placeholders substituted (percent-escaped, so
// the invoker must not escape it again), and query, header, and cookie
// parameters are split out by location.
type InvocationRequest struct {
	Method      string
	BaseURL     string
	Path        string
	Query       map[string]string
	Headers     map[string]string
	Cookies     map[string]string
	Body        []byte
	ContentType string
	DryRun      bool
}

// InvocationResult is the outcome of an HTTP call.
type InvocationResult struct {
	StatusCode  int
	Header      http.Header
	Body        []byte
	ContentType string
	// FromCache reports that the body was served from the response cache
	// without touching the network.
	FromCache bool
	// DryRun reports that no request was sent; Body carries a rendering
	// of the request that would have gone out.
	DryRun bool
}

// RequestInvoker executes an assembled request against the target API.
// Implementations handle retries, caching, and authentication injection.
type RequestInvoker interface {
	Invoke(ctx context.Context, req InvocationRequest) (InvocationResult, error)
}

// Authenticator mutates an outgoing request to carry credentials.
type Authenticator interface {
	// Apply injects the credential into the request. Called once per
	// attempt, after the request is otherwise fully assembled.
	Apply(req *http.Request) error
}

// CredentialStore persists named secrets outside the profile file.
type CredentialStore interface {
	Get(name string) (string, error)
	Set(name, value string) error
	Delete(name string) error
	List() ([]string, error)
}

// ResponseCache stores successful GET responses keyed by request identity.
type ResponseCache interface {
	Get(key string) (CachedResponse, bool)
	Set(key string, resp CachedResponse) error
	Invalidate(key string) error
	Clear() error
	Stats() (CacheStats, error)
}

// CachedResponse is one cache entry: enough to replay the response body
// without the original http.Response.
type CachedResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// CacheStats summarises the cache contents for the `cache stats` command.
type CacheStats struct {
	Entries   int
	SizeBytes int64
}
