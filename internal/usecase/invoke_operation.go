package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"specli/internal/domain"
)

// ResultRenderer receives the outcome of a successful invocation. The CLI
// adapter plugs in its output formatting here.
type ResultRenderer func(result InvocationResult) error

// InvokeOperationUseCase assembles and executes one API call: path
// placeholder substitution, parameter routing by location, and dispatch
// through the invoker.
type InvokeOperationUseCase struct {
	invoker  RequestInvoker
	renderer ResultRenderer
	logger   *slog.Logger

	baseURL string
	dryRun  bool

	// operation locations by "METHOD /path", for routing non-path params.
	locations map[string]map[string]domain.ParameterLocation
}

func NewInvokeOperationUseCase(spec domain.ParsedSpec, invoker RequestInvoker, baseURL string, renderer ResultRenderer, logger *slog.Logger) *InvokeOperationUseCase {
	locations := make(map[string]map[string]domain.ParameterLocation, len(spec.Operations))
	for _, op := range spec.Operations {
		byName := make(map[string]domain.ParameterLocation, len(op.Parameters))
		for _, p := range op.Parameters {
			byName[p.Name] = p.Location
		}
		locations[operationKey(string(op.Method), op.Path)] = byName
	}
	return &InvokeOperationUseCase{
		invoker:   invoker,
		renderer:  renderer,
		logger:    logger.With("usecase", "InvokeOperation"),
		baseURL:   baseURL,
		locations: locations,
	}
}

// SetDryRun switches subsequent executions to render the request instead
// of sending it.
func (uc *InvokeOperationUseCase) SetDryRun(dryRun bool) {
	uc.dryRun = dryRun
}

// Execute satisfies domain.ExecuteFunc. Params are keyed by the original
// spec parameter names; values for path parameters are substituted into
// the template, the rest are routed to query, header, or cookie according
// to the operation's declarations. Unknown parameters default to query.
func (uc *InvokeOperationUseCase) Execute(ctx context.Context, method, pathTemplate string, params map[string]any, body, contentType string) error {
	log := uc.logger.With(
		slog.String("method", method),
		slog.String("path", pathTemplate))

	path := pathTemplate
	byName := uc.locations[operationKey(method, pathTemplate)]

	query := map[string]string{}
	headers := map[string]string{}
	cookies := map[string]string{}

	for name, value := range params {
		rendered := fmt.Sprintf("%v", value)
		placeholder := "{" + name + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(rendered))
			continue
		}

		switch byName[name] {
		case domain.InHeader:
			headers[name] = rendered
		case domain.InCookie:
			cookies[name] = rendered
		default:
			query[name] = rendered
		}
	}

	if unfilled := findPlaceholder(path); unfilled != "" {
		return fmt.Errorf("path parameter %s was not provided", unfilled)
	}

	result, err := uc.invoker.Invoke(ctx, InvocationRequest{
		Method:      method,
		BaseURL:     uc.baseURL,
		Path:        path,
		Query:       query,
		Headers:     headers,
		Cookies:     cookies,
		Body:        []byte(body),
		ContentType: contentType,
		DryRun:      uc.dryRun,
	})
	if err != nil {
		log.Debug("Invocation failed", slog.Any("error", err))
		return err
	}

	if uc.renderer != nil {
		return uc.renderer(result)
	}
	return nil
}

func operationKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

func findPlaceholder(path string) string {
	start := strings.IndexByte(path, '{')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(path[start:], '}')
	if end < 0 {
		return path[start:]
	}
	return path[start : start+end+1]
}
