package domain

import "context"

// ValueKind is the CLI-level type of a mapped parameter. The CLI layer has
// no native composite type, so array and object schemas map to KindString
// carrying a serialised JSON payload.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindFloat
	KindBool
	KindBytes
)

func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	default:
		return "string"
	}
}

// ParamSpec describes one CLI argument or option on a leaf command. It is
// the framework-neutral contract the CLI adapter consumes to register flags
// and positional arguments.
type ParamSpec struct {
	// Name is the sanitized CLI identifier (snake_case).
	Name string
	// OriginalName is the spec-defined parameter name, used to reconstruct
	// the HTTP request. For body-field options it is the schema property
	// name; for the synthetic body option it is empty.
	OriginalName string
	// Location is the parameter's request location. Unset for the body
	// option and body-field options, which are injected into the request
	// body rather than path/query/header/cookie.
	Location ParameterLocation
	Kind     ValueKind
	Required bool
	// HasDefault reports whether Default carries a schema-declared default.
	// Optional options without a default widen to "absent", so that not
	// providing a value is distinguishable from any valid value.
	HasDefault bool
	Default    any
	Help       string
	// Positional marks path parameters, which become required positional
	// arguments rather than named options.
	Positional bool
	// Body marks the synthetic --body option.
	Body bool
	// BodyField marks an option generated from a request-body schema
	// property. SchemaType keeps the property's declared type so that
	// object/array values are decoded back to JSON before assembly.
	BodyField  bool
	SchemaType string
}

// ExecuteFunc is invoked when a generated leaf command runs. method is the
// uppercase HTTP verb, pathTemplate still contains {name} placeholders,
// params maps original parameter names to their type-coerced values (only
// parameters that were actually supplied or carry defaults appear), body is
// the raw request body ("" when the operation sends none), and contentType
// is the primary declared request content type ("" when there is no body).
type ExecuteFunc func(ctx context.Context, method, pathTemplate string, params map[string]any, body, contentType string) error

// CommandNode is one node of the synthesized command tree: either a named
// group with children, or a leaf bound to exactly one operation. A tree is
// built fresh on every generation pass and never mutated afterwards.
type CommandNode struct {
	Name     string
	Help     string
	Children []*CommandNode // ordered; empty for leaves
	Leaf     *LeafCommand   // nil for groups
}

// LeafCommand binds one API operation to its CLI surface.
type LeafCommand struct {
	Operation APIOperation
	// Args are the positional arguments, in path order.
	Args []ParamSpec
	// Opts are the named options: query/header/cookie parameters, the body
	// option when the operation carries a request body, and body-field
	// options derived from the body schema.
	Opts []ParamSpec
	// ContentType is the primary declared request content type, or "".
	ContentType string
	// BodyRequired lists request-body properties the schema marks required.
	BodyRequired []string
	Execute      ExecuteFunc
}

// Group returns the child group with the given name, or nil.
func (n *CommandNode) Group(name string) *CommandNode {
	for _, c := range n.Children {
		if c.Leaf == nil && c.Name == name {
			return c
		}
	}
	return nil
}

// Command returns the child leaf with the given name, or nil.
func (n *CommandNode) Command(name string) *CommandNode {
	for _, c := range n.Children {
		if c.Leaf != nil && c.Name == name {
			return c
		}
	}
	return nil
}
