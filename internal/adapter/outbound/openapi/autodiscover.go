package openapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Well-known schema locations used by common frameworks, probed in order.
var wellKnownPaths = []string{
	"/openapi.json",            // FastAPI default
	"/openapi.yaml",
	"/docs/openapi.json",
	"/swagger.json",
	"/v3/api-docs",             // SpringDoc
	"/api-docs",
	"/api/openapi.json",
	"/api/v1/openapi.json",
	"/swagger/v1/swagger.json", // .NET default
	"/spec",
}

// AutoDiscoverer probes a base URL for a schema document so users can
// point a profile at a service root instead of the exact schema path.
type AutoDiscoverer struct {
	client *http.Client
	logger *slog.Logger
}

func NewAutoDiscoverer(client *http.Client, logger *slog.Logger) *AutoDiscoverer {
	return &AutoDiscoverer{
		client: client,
		logger: logger.With("component", "openapi_autodiscoverer"),
	}
}

// ResolveSource returns src unchanged when it already looks like a direct
// schema URL, and otherwise probes well-known paths under it. Discovery
// failure is not fatal: the original source is returned so an unusual but
// valid schema URL still works.
func (d *AutoDiscoverer) ResolveSource(ctx context.Context, src string) (string, error) {
	lower := strings.ToLower(src)
	if strings.HasSuffix(lower, ".json") ||
		strings.HasSuffix(lower, ".yaml") ||
		strings.HasSuffix(lower, ".yml") ||
		strings.Contains(lower, "openapi") ||
		strings.Contains(lower, "swagger") ||
		strings.Contains(lower, "api-docs") {
		return src, nil
	}

	log := d.logger.With(slog.String("source", src))
	log.Debug("Source looks like a base URL, probing well-known schema paths")

	discovered, err := d.discover(ctx, src)
	if err != nil {
		log.Warn("Auto-discovery failed, using source as-is", slog.Any("error", err))
		return src, nil
	}
	log.Info("Discovered schema document", slog.String("url", discovered))
	return discovered, nil
}

func (d *AutoDiscoverer) discover(ctx context.Context, baseURL string) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	base := strings.TrimRight(parsed.String(), "/")

	for _, path := range wellKnownPaths {
		candidate := base + path
		found, err := d.probe(ctx, candidate)
		if err != nil {
			d.logger.Debug("Probe failed",
				slog.String("url", candidate),
				slog.Any("error", err))
			continue
		}
		if found {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no schema document found under %s", baseURL)
}

// probe checks whether a URL serves a schema-shaped response. Status and
// content type are enough; the document is decoded later anyway.
func (d *AutoDiscoverer) probe(ctx context.Context, candidate string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json, application/vnd.oai.openapi+json, application/yaml")

	resp, err := d.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "json"),
		strings.Contains(contentType, "yaml"),
		strings.Contains(contentType, "vnd.oai.openapi"):
		return true, nil
	}
	return false, nil
}
