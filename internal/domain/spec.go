package domain

// RawDocument is a parsed but untyped OpenAPI document: a tree of maps,
// slices, and scalars as produced by the JSON/YAML decoder. The pipeline
// never mutates a RawDocument it was handed; resolution works on a deep copy.
type RawDocument = map[string]any

// HTTPMethod is an HTTP verb recognised by OpenAPI 3.x path-item objects.
type HTTPMethod string

const (
	MethodGet     HTTPMethod = "get"
	MethodPost    HTTPMethod = "post"
	MethodPut     HTTPMethod = "put"
	MethodPatch   HTTPMethod = "patch"
	MethodDelete  HTTPMethod = "delete"
	MethodHead    HTTPMethod = "head"
	MethodOptions HTTPMethod = "options"
	MethodTrace   HTTPMethod = "trace"
)

// Methods returns all recognised HTTP methods in a fixed order. Extraction
// iterates this list rather than the path-item map so that output ordering
// is deterministic.
func Methods() []HTTPMethod {
	return []HTTPMethod{
		MethodGet, MethodPost, MethodPut, MethodPatch,
		MethodDelete, MethodHead, MethodOptions, MethodTrace,
	}
}

// ParameterLocation is where a parameter appears in a request, per the
// OpenAPI `in` field.
type ParameterLocation string

const (
	InPath   ParameterLocation = "path"
	InQuery  ParameterLocation = "query"
	InHeader ParameterLocation = "header"
	InCookie ParameterLocation = "cookie"
)

// ParseParameterLocation maps an `in` string to a ParameterLocation.
// Unrecognised locations return false; the extractor skips those parameters.
func ParseParameterLocation(s string) (ParameterLocation, bool) {
	switch ParameterLocation(s) {
	case InPath, InQuery, InHeader, InCookie:
		return ParameterLocation(s), true
	}
	return "", false
}

// APIParameter is a single parameter extracted from an OpenAPI operation.
type APIParameter struct {
	Name         string
	Location     ParameterLocation
	Required     bool
	Description  string
	SchemaType   string // JSON Schema type; defaults to "string"
	SchemaFormat string
	Default      any
	EnumValues   []string
	Example      any
}

// RequestBodyInfo is the parsed request-body metadata for an operation.
type RequestBodyInfo struct {
	Required     bool
	Description  string
	ContentTypes []string
	Schema       map[string]any
}

// ResponseInfo is the parsed response metadata for one HTTP status code.
type ResponseInfo struct {
	StatusCode   string
	Description  string
	ContentTypes []string
	Schema       map[string]any
}

// SecurityScheme is an OpenAPI Security Scheme Object extracted from
// components/securitySchemes. Type discriminates apiKey, http, oauth2,
// and openIdConnect; only the fields relevant to the active type are set.
type SecurityScheme struct {
	Name        string
	Type        string
	Description string
	// apiKey
	ParamName string
	Location  string // header, query, cookie
	// http
	Scheme       string // bearer, basic
	BearerFormat string
	// oauth2
	Flows map[string]any
	// openIdConnect
	OpenIDConnectURL string
}

// APIOperation is one parsed operation: a single path + HTTP method pair.
type APIOperation struct {
	Path        string // raw, untransformed, with {param} placeholders
	Method      HTTPMethod
	OperationID string
	Summary     string
	Description string
	Tags        []string
	Parameters  []APIParameter
	RequestBody *RequestBodyInfo
	Responses   []ResponseInfo
	Security    []map[string][]string
	Deprecated  bool
}

// APIInfo is the metadata from the spec's Info Object.
type APIInfo struct {
	Title          string
	Version        string
	Description    string
	TermsOfService string
	ContactName    string
	ContactEmail   string
	ContactURL     string
	LicenseName    string
	LicenseURL     string
}

// ServerInfo is one entry of the spec's servers array.
type ServerInfo struct {
	URL         string
	Description string
}

// ParsedSpec is the complete normalised representation of an OpenAPI
// document. It is constructed once per spec load and never mutated
// afterwards; the generator and the CLI adapter only read it.
type ParsedSpec struct {
	Info            APIInfo
	Servers         []ServerInfo
	Operations      []APIOperation
	SecuritySchemes map[string]SecurityScheme
	OpenAPIVersion  string
	// Raw retains the pre-extraction document for advanced introspection
	// (e.g. top-level tag descriptions).
	Raw RawDocument
}
