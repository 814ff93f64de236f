package openapi

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"specli/internal/domain"
)

// Extractor walks a resolved document and produces the normalised
// operation list the generator consumes. Extraction is lenient: a single
// malformed operation or parameter is logged and skipped, never fatal.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger.With("component", "openapi_extractor")}
}

// Extract builds a ParsedSpec from a resolved document. Paths are visited
// in sorted order and methods in a fixed order, so the operation list is
// deterministic for a given document.
func (e *Extractor) Extract(doc domain.RawDocument) (domain.ParsedSpec, error) {
	spec := domain.ParsedSpec{
		Raw:             doc,
		SecuritySchemes: map[string]domain.SecurityScheme{},
	}
	spec.OpenAPIVersion, _ = doc["openapi"].(string)
	spec.Info = extractInfo(doc)
	spec.Servers = extractServers(doc)
	e.extractSecuritySchemes(doc, spec.SecuritySchemes)

	paths, ok := doc["paths"].(map[string]any)
	if !ok {
		return spec, fmt.Errorf("document has no paths object")
	}

	pathKeys := make([]string, 0, len(paths))
	for p := range paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	for _, path := range pathKeys {
		pathItem, ok := paths[path].(map[string]any)
		if !ok {
			e.logger.Warn("Skipping malformed path item", slog.String("path", path))
			continue
		}

		pathParams, _ := pathItem["parameters"].([]any)

		for _, method := range domain.Methods() {
			raw, present := pathItem[string(method)]
			if !present {
				continue
			}
			opMap, ok := raw.(map[string]any)
			if !ok {
				e.logger.Warn("Skipping malformed operation",
					slog.String("path", path),
					slog.String("method", string(method)))
				continue
			}
			spec.Operations = append(spec.Operations, e.extractOperation(path, method, opMap, pathParams))
		}
	}

	return spec, nil
}

func (e *Extractor) extractOperation(path string, method domain.HTTPMethod, op map[string]any, pathParams []any) domain.APIOperation {
	out := domain.APIOperation{Path: path, Method: method}
	out.OperationID, _ = op["operationId"].(string)
	out.Summary, _ = op["summary"].(string)
	out.Description, _ = op["description"].(string)
	out.Deprecated, _ = op["deprecated"].(bool)

	if tags, ok := op["tags"].([]any); ok {
		for _, t := range tags {
			if s, ok := t.(string); ok {
				out.Tags = append(out.Tags, s)
			}
		}
	}

	opParams, _ := op["parameters"].([]any)
	out.Parameters = e.mergeParameters(path, pathParams, opParams)

	if body, ok := op["requestBody"].(map[string]any); ok {
		out.RequestBody = extractRequestBody(body)
	}
	out.Responses = extractResponses(op)

	if security, ok := op["security"].([]any); ok {
		for _, entry := range security {
			reqMap, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			requirement := make(map[string][]string, len(reqMap))
			for scheme, scopes := range reqMap {
				var list []string
				if scopeList, ok := scopes.([]any); ok {
					for _, s := range scopeList {
						if str, ok := s.(string); ok {
							list = append(list, str)
						}
					}
				}
				requirement[scheme] = list
			}
			out.Security = append(out.Security, requirement)
		}
	}

	return out
}

// mergeParameters combines path-item and operation parameters. Identity is
// the (name, in) pair; an operation-level parameter overrides a path-level
// one with the same identity. Path-level order is preserved, with
// operation-only parameters appended after.
func (e *Extractor) mergeParameters(path string, pathParams, opParams []any) []domain.APIParameter {
	type identity struct {
		name string
		in   string
	}

	var order []identity
	merged := make(map[identity]domain.APIParameter)

	add := func(raw any, override bool) {
		p, ok := raw.(map[string]any)
		if !ok {
			return
		}
		name, _ := p["name"].(string)
		in, _ := p["in"].(string)
		if name == "" || in == "" {
			e.logger.Warn("Skipping parameter without name or location", slog.String("path", path))
			return
		}
		loc, ok := domain.ParseParameterLocation(in)
		if !ok {
			e.logger.Warn("Skipping parameter with unknown location",
				slog.String("path", path),
				slog.String("name", name),
				slog.String("in", in))
			return
		}

		id := identity{name: name, in: in}
		if _, exists := merged[id]; !exists {
			order = append(order, id)
		} else if !override {
			return
		}
		merged[id] = extractParameter(p, loc)
	}

	for _, raw := range pathParams {
		add(raw, false)
	}
	for _, raw := range opParams {
		add(raw, true)
	}

	result := make([]domain.APIParameter, 0, len(order))
	for _, id := range order {
		result = append(result, merged[id])
	}
	return result
}

func extractParameter(p map[string]any, loc domain.ParameterLocation) domain.APIParameter {
	param := domain.APIParameter{
		Location:   loc,
		SchemaType: "string",
	}
	param.Name, _ = p["name"].(string)
	param.Description, _ = p["description"].(string)
	param.Required, _ = p["required"].(bool)
	// Path parameters are required regardless of what the document says.
	if loc == domain.InPath {
		param.Required = true
	}

	if schema, ok := p["schema"].(map[string]any); ok {
		param.SchemaType = schemaType(schema)
		param.SchemaFormat, _ = schema["format"].(string)
		param.Default = schema["default"]
		param.Example = schema["example"]
		if enum, ok := schema["enum"].([]any); ok {
			for _, v := range enum {
				param.EnumValues = append(param.EnumValues, fmt.Sprintf("%v", v))
			}
		}
	}
	if param.Example == nil {
		param.Example = p["example"]
	}
	return param
}

func extractRequestBody(body map[string]any) *domain.RequestBodyInfo {
	info := &domain.RequestBodyInfo{}
	info.Required, _ = body["required"].(bool)
	info.Description, _ = body["description"].(string)

	content, _ := body["content"].(map[string]any)
	info.ContentTypes = orderContentTypes(content)
	if len(info.ContentTypes) > 0 {
		if media, ok := content[info.ContentTypes[0]].(map[string]any); ok {
			info.Schema, _ = media["schema"].(map[string]any)
		}
	}
	return info
}

func extractResponses(op map[string]any) []domain.ResponseInfo {
	responses, ok := op["responses"].(map[string]any)
	if !ok {
		return nil
	}

	codes := make([]string, 0, len(responses))
	for code := range responses {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	result := make([]domain.ResponseInfo, 0, len(codes))
	for _, code := range codes {
		respMap, ok := responses[code].(map[string]any)
		if !ok {
			continue
		}
		info := domain.ResponseInfo{StatusCode: code}
		info.Description, _ = respMap["description"].(string)

		content, _ := respMap["content"].(map[string]any)
		info.ContentTypes = orderContentTypes(content)
		if len(info.ContentTypes) > 0 {
			if media, ok := content[info.ContentTypes[0]].(map[string]any); ok {
				info.Schema, _ = media["schema"].(map[string]any)
			}
		}
		result = append(result, info)
	}
	return result
}

// orderContentTypes lists a content map's media types with
// application/json first when present, the rest sorted. JSON is the type
// the CLI can actually assemble bodies for, so it always wins the primary
// slot.
func orderContentTypes(content map[string]any) []string {
	if len(content) == 0 {
		return nil
	}
	types := make([]string, 0, len(content))
	for ct := range content {
		types = append(types, ct)
	}
	sort.Strings(types)

	for i, ct := range types {
		if ct == "application/json" || strings.HasSuffix(ct, "+json") {
			rest := append(append([]string{}, types[:i]...), types[i+1:]...)
			return append([]string{ct}, rest...)
		}
	}
	return types
}

func (e *Extractor) extractSecuritySchemes(doc domain.RawDocument, out map[string]domain.SecurityScheme) {
	components, _ := doc["components"].(map[string]any)
	schemes, _ := components["securitySchemes"].(map[string]any)
	for name, raw := range schemes {
		schemeMap, ok := raw.(map[string]any)
		if !ok {
			e.logger.Warn("Skipping malformed security scheme", slog.String("name", name))
			continue
		}
		scheme := domain.SecurityScheme{Name: name}
		scheme.Type, _ = schemeMap["type"].(string)
		scheme.Description, _ = schemeMap["description"].(string)
		scheme.ParamName, _ = schemeMap["name"].(string)
		scheme.Location, _ = schemeMap["in"].(string)
		scheme.Scheme, _ = schemeMap["scheme"].(string)
		scheme.BearerFormat, _ = schemeMap["bearerFormat"].(string)
		scheme.Flows, _ = schemeMap["flows"].(map[string]any)
		scheme.OpenIDConnectURL, _ = schemeMap["openIdConnectUrl"].(string)
		out[name] = scheme
	}
}

func extractInfo(doc domain.RawDocument) domain.APIInfo {
	var out domain.APIInfo
	info, ok := doc["info"].(map[string]any)
	if !ok {
		return out
	}
	out.Title, _ = info["title"].(string)
	out.Version, _ = info["version"].(string)
	out.Description, _ = info["description"].(string)
	out.TermsOfService, _ = info["termsOfService"].(string)
	if contact, ok := info["contact"].(map[string]any); ok {
		out.ContactName, _ = contact["name"].(string)
		out.ContactEmail, _ = contact["email"].(string)
		out.ContactURL, _ = contact["url"].(string)
	}
	if license, ok := info["license"].(map[string]any); ok {
		out.LicenseName, _ = license["name"].(string)
		out.LicenseURL, _ = license["url"].(string)
	}
	return out
}

func extractServers(doc domain.RawDocument) []domain.ServerInfo {
	servers, _ := doc["servers"].([]any)
	out := make([]domain.ServerInfo, 0, len(servers))
	for _, raw := range servers {
		s, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		var info domain.ServerInfo
		info.URL, _ = s["url"].(string)
		info.Description, _ = s["description"].(string)
		out = append(out, info)
	}
	return out
}

// schemaType reads a schema's type, accepting OpenAPI 3.1 type arrays by
// taking the first non-null entry. Missing types default to "string".
func schemaType(schema map[string]any) string {
	switch t := schema["type"].(type) {
	case string:
		return t
	case []any:
		for _, entry := range t {
			if s, ok := entry.(string); ok && s != "null" {
				return s
			}
		}
	}
	return "string"
}
