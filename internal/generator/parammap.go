package generator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"specli/internal/domain"
)

// Words that cannot be used verbatim as generated identifiers: Go keywords
// plus names commonly reserved in the languages the build tooling targets.
// Collisions get a trailing underscore.
var reservedWords = map[string]struct{}{
	"break": {}, "case": {}, "chan": {}, "class": {}, "const": {},
	"continue": {}, "default": {}, "defer": {}, "else": {}, "enum": {},
	"fallthrough": {}, "for": {}, "func": {}, "function": {}, "go": {},
	"goto": {}, "if": {}, "import": {}, "interface": {}, "map": {},
	"package": {}, "range": {}, "return": {}, "select": {}, "struct": {},
	"switch": {}, "type": {}, "var": {},
}

var (
	camelBoundaryRe  = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	acronymRe        = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	invalidIdentRe   = regexp.MustCompile(`[^a-z0-9_]`)
	repeatUnderscRe  = regexp.MustCompile(`_+`)
)

// SanitizeParamName converts a spec parameter name into a CLI-safe
// snake_case identifier. CamelCase boundaries become underscores, hyphens
// and dots become underscores, anything outside [a-z0-9_] is stripped,
// runs of underscores collapse, an empty result falls back to "param", a
// leading digit gains an underscore prefix, and reserved words gain a
// trailing underscore. Pure function: same input, same output.
func SanitizeParamName(name string) string {
	result := camelBoundaryRe.ReplaceAllString(name, "${1}_${2}")
	result = acronymRe.ReplaceAllString(result, "${1}_${2}")
	result = strings.ToLower(result)
	result = strings.NewReplacer("-", "_", ".", "_").Replace(result)
	result = invalidIdentRe.ReplaceAllString(result, "_")
	result = repeatUnderscRe.ReplaceAllString(result, "_")
	result = strings.Trim(result, "_")

	if result == "" {
		return "param"
	}
	if result[0] >= '0' && result[0] <= '9' {
		result = "_" + result
	}
	if _, ok := reservedWords[result]; ok {
		result += "_"
	}
	return result
}

// formatOverrides refines the base type mapping for (type, format) pairs
// where the format is meaningful. Numeric formats keep the base kind; only
// binary payloads change representation.
var formatOverrides = map[[2]string]domain.ValueKind{
	{"string", "binary"}: domain.KindBytes,
	{"string", "byte"}:   domain.KindBytes,
	{"integer", "int32"}: domain.KindInt,
	{"integer", "int64"}: domain.KindInt,
	{"number", "float"}:  domain.KindFloat,
	{"number", "double"}: domain.KindFloat,
}

// KindFor maps an OpenAPI schema type (with optional format) to the CLI
// value kind. Arrays and objects are carried as JSON text since the CLI
// layer has no composite type. Unknown types and unknown formats degrade
// to text rather than failing the operation.
func KindFor(schemaType, schemaFormat string) domain.ValueKind {
	if schemaFormat != "" {
		if kind, ok := formatOverrides[[2]string{schemaType, schemaFormat}]; ok {
			return kind
		}
	}
	switch schemaType {
	case "integer":
		return domain.KindInt
	case "number":
		return domain.KindFloat
	case "boolean":
		return domain.KindBool
	default:
		// string, array, object, and anything unrecognised.
		return domain.KindString
	}
}

// MapParameter converts one extracted parameter into a CLI descriptor.
// Path parameters become required positional arguments; query, header, and
// cookie parameters become named options. Optional options without a
// schema default widen to "absent" so the invoker can tell "not provided"
// apart from any valid value. Enumerations are appended to the help text.
func MapParameter(p domain.APIParameter) domain.ParamSpec {
	spec := domain.ParamSpec{
		Name:         SanitizeParamName(p.Name),
		OriginalName: p.Name,
		Location:     p.Location,
		Kind:         KindFor(p.SchemaType, p.SchemaFormat),
		Help:         helpText(p.Description, p.EnumValues),
	}

	if p.Location == domain.InPath {
		// Path parameters are always required positionals; absence is a
		// usage error, never a defaulted value.
		spec.Positional = true
		spec.Required = true
		return spec
	}

	spec.Required = p.Required
	if !p.Required && p.Default != nil {
		spec.HasDefault = true
		spec.Default = p.Default
	}
	return spec
}

// BodyOption returns the synthetic --body descriptor attached to every
// operation that carries a request body. The value is either inline JSON
// or, with an @ prefix, a reference to a file read at invocation time.
func BodyOption() domain.ParamSpec {
	return domain.ParamSpec{
		Name: "body",
		Kind: domain.KindString,
		Help: "Request body as JSON string, or @filename to read from file.",
		Body: true,
	}
}

// BodyFieldOptions derives one named option per property of a request-body
// object schema. All are optional at the CLI level (a --body JSON payload
// can satisfy required fields); schema-required fields are marked in help
// text and validated at invocation time.
func BodyFieldOptions(schema map[string]any) []domain.ParamSpec {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return nil
	}

	requiredSet := make(map[string]struct{})
	if req, ok := schema["required"].([]any); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				requiredSet[name] = struct{}{}
			}
		}
	}

	specs := make([]domain.ParamSpec, 0, len(props))
	for _, name := range sortedKeys(props) {
		propSchema, ok := props[name].(map[string]any)
		if !ok {
			continue
		}

		schemaType := schemaTypeOf(propSchema)
		format, _ := propSchema["format"].(string)
		desc, _ := propSchema["description"].(string)

		spec := domain.ParamSpec{
			Name:         SanitizeParamName(name),
			OriginalName: name,
			Kind:         KindFor(schemaType, format),
			Help:         helpText(desc, enumStrings(propSchema["enum"])),
			BodyField:    true,
			SchemaType:   schemaType,
		}

		if _, req := requiredSet[name]; req {
			if spec.Help != "" {
				spec.Help += "  [REQUIRED]"
			} else {
				spec.Help = "[REQUIRED]"
			}
		} else if def, ok := propSchema["default"]; ok && def != nil {
			spec.HasDefault = true
			spec.Default = def
		}
		specs = append(specs, spec)
	}
	return specs
}

// schemaTypeOf reads a schema's type, handling OpenAPI 3.1 type arrays
// like ["string", "null"] by taking the first non-null entry.
func schemaTypeOf(schema map[string]any) string {
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

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func enumStrings(v any) []string {
	values, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, e := range values {
		out = append(out, fmt.Sprintf("%v", e))
	}
	return out
}

func helpText(description string, enumValues []string) string {
	if len(enumValues) == 0 {
		return description
	}
	hint := "[choices: " + strings.Join(enumValues, ", ") + "]"
	if description == "" {
		return hint
	}
	return description + "  " + hint
}
