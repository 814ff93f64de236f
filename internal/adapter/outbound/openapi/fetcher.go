// Package openapi loads, resolves, and normalises OpenAPI 3.x documents:
// fetching from URL, file, or stdin, inlining internal references, and
// extracting the operation inventory the generator works from.
package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"specli/internal/domain"
	"specli/internal/usecase"
)

// SpecFetcher implements usecase.SpecParser: it loads a raw document from
// a source, validates the version, resolves references, and extracts the
// normalised spec.
type SpecFetcher struct {
	httpClient     *http.Client
	logger         *slog.Logger
	extractor      *Extractor
	autoDiscoverer *AutoDiscoverer
	// stdin is swapped in tests.
	stdin io.Reader
}

func NewSpecFetcher(client *http.Client, logger *slog.Logger) *SpecFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &SpecFetcher{
		httpClient:     client,
		logger:         logger.With("component", "openapi_fetcher"),
		extractor:      NewExtractor(logger),
		autoDiscoverer: NewAutoDiscoverer(client, logger),
		stdin:          os.Stdin,
	}
}

// Parse loads an OpenAPI document from a URL, a local file path, or stdin
// when src is "-", and returns the fully resolved spec.
func (f *SpecFetcher) Parse(ctx context.Context, src string) (domain.ParsedSpec, error) {
	log := f.logger.With(slog.String("source", src))
	log.Info("Loading OpenAPI document")

	raw, err := f.load(ctx, src)
	if err != nil {
		return domain.ParsedSpec{}, err
	}

	doc, err := decodeDocument(raw, src)
	if err != nil {
		log.Error("Failed to decode document", slog.Any("error", err))
		return domain.ParsedSpec{}, fmt.Errorf("%w: %v", usecase.ErrSpecParse, err)
	}

	if err := ValidateVersion(doc); err != nil {
		log.Error("Unsupported document version", slog.Any("error", err))
		return domain.ParsedSpec{}, err
	}

	// Structural validation is advisory: real-world documents are often
	// slightly out of conformance but still perfectly usable.
	if kinDoc, loadErr := openapi3.NewLoader().LoadFromData(raw); loadErr == nil {
		if validateErr := kinDoc.Validate(ctx); validateErr != nil {
			log.Warn("Document failed structural validation, continuing anyway",
				slog.Any("validation_error", validateErr))
		}
	}

	resolved, err := ResolveRefs(doc)
	if err != nil {
		log.Error("Failed to resolve references", slog.Any("error", err))
		return domain.ParsedSpec{}, fmt.Errorf("%w: %v", usecase.ErrSpecParse, err)
	}

	spec, err := f.extractor.Extract(resolved)
	if err != nil {
		log.Error("Failed to extract operations", slog.Any("error", err))
		return domain.ParsedSpec{}, fmt.Errorf("%w: %v", usecase.ErrSpecParse, err)
	}

	log.Info("Loaded OpenAPI document",
		slog.String("title", spec.Info.Title),
		slog.String("version", spec.OpenAPIVersion),
		slog.Int("operations", len(spec.Operations)))
	return spec, nil
}

func (f *SpecFetcher) load(ctx context.Context, src string) ([]byte, error) {
	if src == "-" {
		data, err := io.ReadAll(f.stdin)
		if err != nil {
			return nil, fmt.Errorf("%w: reading stdin: %v", usecase.ErrSpecParse, err)
		}
		return data, nil
	}

	u, parseErr := url.ParseRequestURI(src)
	if parseErr == nil && (u.Scheme == "http" || u.Scheme == "https") {
		resolvedSrc, err := f.autoDiscoverer.ResolveSource(ctx, src)
		if err != nil {
			f.logger.Warn("Auto-discovery failed, using source as-is", slog.Any("error", err))
			resolvedSrc = src
		}
		return f.fetchURL(ctx, resolvedSrc)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("%w: reading file %s: %v", usecase.ErrSpecParse, src, err)
	}
	return data, nil
}

func (f *SpecFetcher) fetchURL(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request for %s: %v", usecase.ErrSpecParse, src, err)
	}
	req.Header.Set("Accept", "application/json, application/yaml, text/yaml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", usecase.ErrSpecParse, src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetching %s: status %s", usecase.ErrSpecParse, src, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response from %s: %v", usecase.ErrSpecParse, src, err)
	}
	return data, nil
}

// decodeDocument tries JSON first, then YAML. Sources ending in .json skip
// the YAML fallback so a malformed JSON file reports the JSON error.
func decodeDocument(data []byte, src string) (domain.RawDocument, error) {
	var doc map[string]any
	jsonErr := json.Unmarshal(data, &doc)
	if jsonErr == nil {
		return doc, nil
	}
	if strings.HasSuffix(strings.ToLower(src), ".json") {
		return nil, fmt.Errorf("invalid JSON: %v", jsonErr)
	}

	if yamlErr := yaml.Unmarshal(data, &doc); yamlErr != nil {
		return nil, fmt.Errorf("not valid JSON (%v) nor YAML (%v)", jsonErr, yamlErr)
	}
	return doc, nil
}

// ValidateVersion rejects documents outside OpenAPI 3.x. Swagger 2.0
// documents declare their version under "swagger" and get a pointed
// message, since they are the most common near-miss.
func ValidateVersion(doc domain.RawDocument) error {
	if swagger, ok := doc["swagger"].(string); ok {
		return fmt.Errorf("%w: Swagger %s documents are not supported, convert to OpenAPI 3.x first", usecase.ErrSpecUnsupported, swagger)
	}
	version, ok := doc["openapi"].(string)
	if !ok || version == "" {
		return fmt.Errorf("%w: document declares no openapi version", usecase.ErrSpecUnsupported)
	}
	if !strings.HasPrefix(version, "3.") {
		return fmt.Errorf("%w: openapi %s, only 3.x is supported", usecase.ErrSpecUnsupported, version)
	}
	return nil
}
