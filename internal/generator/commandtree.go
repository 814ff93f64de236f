package generator

import (
	"log/slog"
	"sort"
	"strings"

	"specli/internal/domain"
)

// methodVerbs maps HTTP methods to their default CLI verb. GET is absent:
// it resolves dynamically to "list" or "get" depending on whether the path
// ends in a parameter.
var methodVerbs = map[domain.HTTPMethod]string{
	domain.MethodPost:   "create",
	domain.MethodPut:    "update",
	domain.MethodPatch:  "patch",
	domain.MethodDelete: "delete",
}

// BuildCommandTree groups the spec's operations by their transformed paths
// and materialises a nested command tree: one group node per resource
// segment, one leaf per operation, each leaf bound to its positional
// arguments, named options, and the exec callback. For a fixed spec and
// rule set the resulting tree is identical on every invocation: group
// keys, children, and leaf names are all sorted deterministically.
func BuildCommandTree(spec domain.ParsedSpec, rules domain.PathRulesConfig, exec domain.ExecuteFunc, logger *slog.Logger) *domain.CommandNode {
	log := logger.With("component", "CommandTreeBuilder")
	root := &domain.CommandNode{
		Name: slugify(spec.Info.Title),
		Help: firstNonEmpty(spec.Info.Description, spec.Info.Title),
	}
	if len(spec.Operations) == 0 {
		return root
	}

	pathSet := make(map[string]struct{})
	for _, op := range spec.Operations {
		pathSet[op.Path] = struct{}{}
	}
	paths := make([]string, 0, len(pathSet))
	for p := range pathSet {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	pathMap := ApplyPathRules(paths, rules)
	groups := groupOperations(spec.Operations, pathMap)
	groupHelp := buildGroupHelp(groups, tagDescriptions(spec))

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	registry := map[string]*domain.CommandNode{"": root}
	for _, key := range keys {
		var leaves []*domain.CommandNode
		for _, op := range groups[key] {
			if isHTMLOnly(op) {
				continue
			}
			leaf, ok := buildLeaf(op, exec)
			if !ok {
				// Leave the rest of the group intact; a broken leaf must
				// not take its siblings down with it.
				log.Warn("Skipping operation with conflicting positional parameters",
					slog.String("method", string(op.Method)),
					slog.String("path", op.Path))
				continue
			}
			leaves = append(leaves, &domain.CommandNode{
				Help: operationHelp(op),
				Leaf: leaf,
			})
		}
		// A group with no surviving operations produces no node at all.
		if len(leaves) == 0 {
			continue
		}

		parts := splitGroupKey(key)
		parent := ensureGroups(root, parts, registry, groupHelp)
		for _, node := range leaves {
			name := verbFor(node.Leaf.Operation)
			if parent.Command(name) != nil {
				name = name + "-" + string(node.Leaf.Operation.Method)
			}
			node.Name = name
			parent.Children = append(parent.Children, node)
		}
	}

	return root
}

// groupOperations buckets operations by their command parts. Operations
// whose path was excluded by the rules (include_prefix) are dropped;
// operations that reduce to the root path land in a synthetic "root" group.
func groupOperations(operations []domain.APIOperation, pathMap map[string]string) map[string][]domain.APIOperation {
	groups := make(map[string][]domain.APIOperation)
	for _, op := range operations {
		transformed, ok := pathMap[op.Path]
		if !ok {
			continue
		}
		parts := PathToCommandParts(transformed)
		if len(parts) == 0 {
			parts = []string{"root"}
		}
		key := strings.Join(parts, "/")
		groups[key] = append(groups[key], op)
	}

	// Order within a group: path, then the fixed method order, so leaf
	// registration is stable.
	methodRank := make(map[domain.HTTPMethod]int, 8)
	for i, m := range domain.Methods() {
		methodRank[m] = i
	}
	for _, ops := range groups {
		sort.SliceStable(ops, func(i, j int) bool {
			if ops[i].Path != ops[j].Path {
				return ops[i].Path < ops[j].Path
			}
			return methodRank[ops[i].Method] < methodRank[ops[j].Method]
		})
	}
	return groups
}

func splitGroupKey(key string) []string {
	return strings.Split(key, "/")
}

// ensureGroups lazily creates one group node per prefix of parts, nesting
// left to right, and returns the node for the full prefix.
func ensureGroups(root *domain.CommandNode, parts []string, registry map[string]*domain.CommandNode, groupHelp map[string]string) *domain.CommandNode {
	parent := root
	for depth := 1; depth <= len(parts); depth++ {
		key := strings.Join(parts[:depth], "/")
		node, ok := registry[key]
		if !ok {
			help := groupHelp[key]
			if help == "" {
				help = humanizeGroup(parts[depth-1])
			}
			node = &domain.CommandNode{Name: parts[depth-1], Help: help}
			parent.Children = append(parent.Children, node)
			registry[key] = node
		}
		parent = node
	}
	return parent
}

// buildLeaf maps an operation's parameters onto CLI descriptors. ok is
// false when the leaf cannot be built structurally; mapping issues inside
// a single parameter degrade to text instead (see KindFor), so in practice
// only a duplicated positional name disqualifies a leaf.
func buildLeaf(op domain.APIOperation, exec domain.ExecuteFunc) (*domain.LeafCommand, bool) {
	leaf := &domain.LeafCommand{Operation: op, Execute: exec}

	var options []domain.ParamSpec
	positional := make(map[string]domain.ParamSpec)
	for _, p := range op.Parameters {
		spec := MapParameter(p)
		if spec.Positional {
			if _, dup := positional[spec.Name]; dup {
				return nil, false
			}
			positional[spec.Name] = spec
		} else {
			options = append(options, spec)
		}
	}

	// Positional arguments follow path order, not declaration order.
	for _, seg := range splitSegments(op.Path) {
		if !isPathParam(seg) {
			continue
		}
		name := SanitizeParamName(strings.Trim(seg, "{}"))
		if spec, ok := positional[name]; ok {
			leaf.Args = append(leaf.Args, spec)
			delete(positional, name)
			continue
		}
		// Placeholder without a declared parameter: synthesize a plain
		// string argument so the path can still be filled in.
		leaf.Args = append(leaf.Args, domain.ParamSpec{
			Name:         name,
			OriginalName: strings.Trim(seg, "{}"),
			Location:     domain.InPath,
			Required:     true,
			Positional:   true,
		})
	}
	// Declared path params that never appear in the path template keep
	// declaration order at the end.
	if len(positional) > 0 {
		rest := make([]domain.ParamSpec, 0, len(positional))
		for _, spec := range positional {
			rest = append(rest, spec)
		}
		sort.Slice(rest, func(i, j int) bool { return rest[i].Name < rest[j].Name })
		leaf.Args = append(leaf.Args, rest...)
	}

	// Many specs omit requestBody even though POST/PUT/PATCH endpoints
	// consume JSON, so the method alone is enough to earn a --body option.
	hasBody := op.RequestBody != nil
	switch op.Method {
	case domain.MethodPost, domain.MethodPut, domain.MethodPatch:
		hasBody = true
	}

	if hasBody {
		options = append(options, BodyOption())
		if op.RequestBody != nil && op.RequestBody.Schema != nil {
			options = append(options, BodyFieldOptions(op.RequestBody.Schema)...)
			if req, ok := op.RequestBody.Schema["required"].([]any); ok {
				for _, r := range req {
					if name, ok := r.(string); ok {
						leaf.BodyRequired = append(leaf.BodyRequired, name)
					}
				}
			}
		}
		if op.RequestBody != nil && len(op.RequestBody.ContentTypes) > 0 {
			leaf.ContentType = op.RequestBody.ContentTypes[0]
		} else {
			leaf.ContentType = "application/json"
		}
	}

	leaf.Opts = options
	return leaf, true
}

// verbFor picks the CLI verb for an operation. GET on a collection path
// (no trailing path parameter) is "list"; GET on a single resource is
// "get". Other methods use the verb table or pass through their name.
func verbFor(op domain.APIOperation) string {
	if op.Method == domain.MethodGet {
		if isCollectionPath(op.Path) {
			return "list"
		}
		return "get"
	}
	if verb, ok := methodVerbs[op.Method]; ok {
		return verb
	}
	return string(op.Method)
}

// isCollectionPath reports whether the path ends with a static resource
// segment rather than a {param} placeholder.
func isCollectionPath(path string) bool {
	segments := splitSegments(path)
	if len(segments) == 0 {
		return true
	}
	return !isPathParam(segments[len(segments)-1])
}

// isHTMLOnly reports whether the operation exclusively serves browser
// content types. Such endpoints are web pages, not API calls, and are
// skipped during generation.
func isHTMLOnly(op domain.APIOperation) bool {
	if len(op.Responses) == 0 {
		return false
	}
	all := make(map[string]struct{})
	for _, resp := range op.Responses {
		for _, ct := range resp.ContentTypes {
			all[ct] = struct{}{}
		}
	}
	if len(all) == 0 {
		return false
	}
	apiTypes := []string{
		"application/json", "application/xml", "text/plain",
		"application/octet-stream", "multipart/form-data",
	}
	for _, ct := range apiTypes {
		if _, ok := all[ct]; ok {
			return false
		}
	}
	return true
}

// tagDescriptions pulls lowercase tag name -> description from the raw
// document's top-level tags array.
func tagDescriptions(spec domain.ParsedSpec) map[string]string {
	result := make(map[string]string)
	tags, _ := spec.Raw["tags"].([]any)
	for _, t := range tags {
		tag, ok := t.(map[string]any)
		if !ok {
			continue
		}
		name, _ := tag["name"].(string)
		desc, _ := tag["description"].(string)
		if name != "" && desc != "" {
			result[strings.ToLower(name)] = desc
		}
	}
	return result
}

// buildGroupHelp derives a help string per group: a matching OpenAPI tag
// description wins, then a description inferred from operation summaries;
// groups without either fall back to humanizeGroup in ensureGroups.
func buildGroupHelp(groups map[string][]domain.APIOperation, tagDescs map[string]string) map[string]string {
	result := make(map[string]string)
	for key, ops := range groups {
		parts := splitGroupKey(key)
		groupName := parts[len(parts)-1]

		if desc := tagDescriptionFor(ops, tagDescs, groupName); desc != "" {
			result[key] = desc
			continue
		}
		if inferred := inferGroupDescription(ops); inferred != "" {
			result[key] = inferred
		}
	}
	return result
}

func tagDescriptionFor(ops []domain.APIOperation, tagDescs map[string]string, groupName string) string {
	if desc, ok := tagDescs[strings.ToLower(groupName)]; ok {
		return desc
	}
	// Otherwise a tag shared by every operation in the group may match.
	shared := make(map[string]int)
	tagged := 0
	for _, op := range ops {
		if len(op.Tags) == 0 {
			continue
		}
		tagged++
		seen := make(map[string]struct{})
		for _, t := range op.Tags {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			shared[t]++
		}
	}
	if tagged == 0 {
		return ""
	}
	common := make([]string, 0)
	for t, n := range shared {
		if n == tagged {
			common = append(common, t)
		}
	}
	sort.Strings(common)
	for _, t := range common {
		if desc, ok := tagDescs[strings.ToLower(t)]; ok {
			return desc
		}
	}
	return ""
}

// inferGroupDescription looks for a common resource noun across operation
// summaries following a "Verb Resource" pattern ("List Campaigns",
// "Create Campaign") and produces "Manage campaigns."
func inferGroupDescription(ops []domain.APIOperation) string {
	var summaries []string
	for _, op := range ops {
		if op.Summary != "" {
			summaries = append(summaries, op.Summary)
		}
	}
	if len(summaries) == 0 {
		return ""
	}
	if len(summaries) == 1 {
		return summaries[0]
	}

	counts := make(map[string]int)
	for _, s := range summaries {
		words := strings.Fields(s)
		if len(words) < 2 {
			continue
		}
		noun := strings.ToLower(strings.TrimRight(strings.Join(words[1:], " "), "."))
		counts[noun]++
	}

	best, bestCount := "", 0
	for noun, n := range counts {
		if n > bestCount || (n == bestCount && noun < best) {
			best, bestCount = noun, n
		}
	}
	if best != "" && bestCount*2 >= len(summaries) {
		return "Manage " + best + "."
	}

	for _, op := range ops {
		if op.Description != "" {
			first, _, _ := strings.Cut(op.Description, "\n")
			return first
		}
	}
	return ""
}

func humanizeGroup(name string) string {
	label := strings.NewReplacer("-", " ", "_", " ").Replace(name)
	if label == "" {
		return ""
	}
	return strings.ToUpper(label[:1]) + label[1:] + "."
}

// operationHelp composes the leaf help string from the deprecation flag,
// summary, and description, falling back to "METHOD /path".
func operationHelp(op domain.APIOperation) string {
	var parts []string
	if op.Deprecated {
		parts = append(parts, "[DEPRECATED]")
	}
	if op.Summary != "" {
		parts = append(parts, op.Summary)
	} else if op.Description != "" {
		first, _, _ := strings.Cut(op.Description, "\n")
		parts = append(parts, first)
	}
	if op.Summary != "" && op.Description != "" {
		parts = append(parts, "", op.Description)
	}
	if len(parts) == 0 {
		return strings.ToUpper(string(op.Method)) + " " + op.Path
	}
	return strings.Join(parts, "\n")
}

func slugify(value string) string {
	result := strings.ToLower(value)
	result = strings.NewReplacer(" ", "_", "-", "_").Replace(result)
	var b strings.Builder
	for _, c := range result {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}
	slug := strings.Trim(b.String(), "_")
	if slug == "" {
		return "api"
	}
	return slug
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
