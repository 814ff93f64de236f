package openapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mohae/deepcopy"

	"specli/internal/domain"
)

// ResolveRefs returns a copy of the document with every internal $ref
// inlined. The input is never mutated. Only document-local references
// ("#/...") are supported; an external or malformed reference fails the
// whole document.
//
// Cycle handling is path-local: the set of references seen so far is
// copied at every expansion, so a schema referenced on two independent
// branches resolves fully on both, while a self-referential schema is
// expanded exactly once and then left as a literal $ref node. Callers
// treat such leftovers as opaque.
func ResolveRefs(doc domain.RawDocument) (domain.RawDocument, error) {
	resolved, err := resolveNode(doc, doc, nil)
	if err != nil {
		return nil, err
	}
	out, ok := resolved.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document root is not an object")
	}
	return out, nil
}

func resolveNode(node any, root domain.RawDocument, seen map[string]struct{}) (any, error) {
	switch n := node.(type) {
	case map[string]any:
		if ref, ok := n["$ref"].(string); ok {
			if _, cyclic := seen[ref]; cyclic {
				// Break the cycle: keep the reference node verbatim.
				return deepcopy.Copy(n), nil
			}
			target, err := lookupPointer(root, ref)
			if err != nil {
				return nil, err
			}
			branch := make(map[string]struct{}, len(seen)+1)
			for k := range seen {
				branch[k] = struct{}{}
			}
			branch[ref] = struct{}{}
			return resolveNode(target, root, branch)
		}

		out := make(map[string]any, len(n))
		for key, value := range n {
			resolved, err := resolveNode(value, root, seen)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil

	case []any:
		out := make([]any, len(n))
		for i, value := range n {
			resolved, err := resolveNode(value, root, seen)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil

	default:
		return n, nil
	}
}

// lookupPointer walks a JSON Pointer reference like
// "#/components/schemas/Pet" through the document, unescaping ~1 and ~0
// per RFC 6901.
func lookupPointer(root domain.RawDocument, ref string) (any, error) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, fmt.Errorf("external reference %q is not supported, only document-local '#/' references", ref)
	}

	var current any = map[string]any(root)
	for _, raw := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		segment := strings.ReplaceAll(strings.ReplaceAll(raw, "~1", "/"), "~0", "~")

		switch c := current.(type) {
		case map[string]any:
			next, ok := c[segment]
			if !ok {
				return nil, fmt.Errorf("unresolvable reference %q: segment %q not found", ref, segment)
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, fmt.Errorf("unresolvable reference %q: %q is not a valid array index", ref, segment)
			}
			current = c[idx]
		default:
			return nil, fmt.Errorf("unresolvable reference %q: segment %q addresses a scalar", ref, segment)
		}
	}
	return current, nil
}
