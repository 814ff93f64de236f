// Package generator synthesizes a CLI command tree from a parsed OpenAPI
// spec: path transformation rules, parameter-to-flag mapping, and the
// grouping algorithm that nests operations under resource sub-commands.
package generator

import (
	"strings"

	"specli/internal/domain"
)

// ApplyPathRules converts raw API paths into CLI command paths by running
// every path through the rule pipeline: include filter, collapse, prefix
// strip (explicit or auto-detected), keep re-insertion, and segment
// skipping. The result maps each surviving original path to its
// transformed equivalent, ready for PathToCommandParts.
func ApplyPathRules(paths []string, rules domain.PathRulesConfig) map[string]string {
	if len(paths) == 0 {
		return map[string]string{}
	}

	if len(rules.IncludePrefix) > 0 {
		filtered := make([]string, 0, len(paths))
		for _, p := range paths {
			for _, pfx := range rules.IncludePrefix {
				if strings.HasPrefix(p, pfx) {
					filtered = append(filtered, p)
					break
				}
			}
		}
		paths = filtered
	}

	// The common prefix is computed once over the filtered path set, used
	// whenever auto stripping is enabled and no explicit prefix is set.
	autoPrefix := ""
	if rules.AutoStripPrefix && rules.StripPrefix == nil {
		autoPrefix = FindCommonPrefix(paths)
	}

	// Segments removed by the prefix, so applyKeep knows what to look for.
	var strippedSegments []string
	if rules.StripPrefix != nil {
		strippedSegments = splitSegments(*rules.StripPrefix)
	} else if autoPrefix != "" {
		strippedSegments = splitSegments(autoPrefix)
	}

	result := make(map[string]string, len(paths))
	for _, path := range paths {
		// Collapse takes absolute precedence.
		if collapsed, ok := rules.Collapse[path]; ok {
			if !strings.HasPrefix(collapsed, "/") {
				collapsed = "/" + collapsed
			}
			result[path] = collapsed
			continue
		}

		transformed := path
		switch {
		case rules.StripPrefix != nil:
			transformed = stripPrefix(path, *rules.StripPrefix)
		case rules.AutoStripPrefix && autoPrefix != "":
			transformed = stripPrefix(path, autoPrefix)
		}

		if len(rules.Keep) > 0 {
			transformed = applyKeep(transformed, rules.Keep, strippedSegments)
		}

		if len(rules.SkipSegments) > 0 {
			transformed = applySkipSegments(transformed, rules.SkipSegments)
		}

		result[path] = transformed
	}

	return result
}

// FindCommonPrefix returns the longest common segment prefix across all
// paths, with a leading slash, or "" when there is none. A single path has
// no common prefix since there is nothing to compare against. The prefix is
// shortened so that no path is completely consumed by stripping: every path
// must retain at least one segment.
func FindCommonPrefix(paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	split := make([][]string, len(paths))
	minLen := -1
	for i, p := range paths {
		split[i] = splitSegments(p)
		if minLen < 0 || len(split[i]) < minLen {
			minLen = len(split[i])
		}
	}

	if len(split) == 1 {
		return ""
	}

	var prefix []string
	for pos := 0; pos < minLen; pos++ {
		seg := split[0][pos]
		same := true
		for _, segs := range split[1:] {
			if segs[pos] != seg {
				same = false
				break
			}
		}
		if !same {
			break
		}
		prefix = append(prefix, seg)
	}

	// Shrink until every path keeps at least one segment beyond the prefix.
	for len(prefix) > 0 {
		if minLen > len(prefix) {
			break
		}
		prefix = prefix[:len(prefix)-1]
	}

	if len(prefix) == 0 {
		return ""
	}
	return "/" + strings.Join(prefix, "/")
}

// PathToCommandParts splits a transformed path into CLI sub-command
// segments, dropping parameter placeholders like {id}: those become
// positional arguments on the leaf command, not sub-commands. The root
// path yields an empty list.
func PathToCommandParts(transformedPath string) []string {
	segments := splitSegments(transformedPath)
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if !isPathParam(seg) {
			parts = append(parts, seg)
		}
	}
	return parts
}

func isPathParam(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}

// splitSegments splits a path into non-empty segments:
// "/api/v1/users" -> ["api", "v1", "users"], "/" -> [].
func splitSegments(path string) []string {
	raw := strings.Split(path, "/")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// stripPrefix removes prefix from the front of path at segment boundaries.
// Paths that do not start with the prefix are returned unchanged.
func stripPrefix(path, prefix string) string {
	if prefix == "" {
		return path
	}

	prefixSegs := splitSegments(prefix)
	pathSegs := splitSegments(path)

	if len(pathSegs) < len(prefixSegs) {
		return path
	}
	for i, seg := range prefixSegs {
		if pathSegs[i] != seg {
			return path
		}
	}

	remaining := pathSegs[len(prefixSegs):]
	if len(remaining) == 0 {
		return "/"
	}
	return "/" + strings.Join(remaining, "/")
}

// applyKeep re-inserts keep segments that were actually removed during
// prefix stripping, prepended in their original order within the prefix.
func applyKeep(path string, keep, strippedSegments []string) string {
	keepSet := make(map[string]struct{}, len(keep))
	for _, s := range keep {
		keepSet[s] = struct{}{}
	}

	var reinsert []string
	for _, seg := range strippedSegments {
		if _, ok := keepSet[seg]; ok {
			reinsert = append(reinsert, seg)
		}
	}
	if len(reinsert) == 0 {
		return path
	}

	segments := append(reinsert, splitSegments(path)...)
	return "/" + strings.Join(segments, "/")
}

// applySkipSegments removes skip segments wherever they appear in path.
func applySkipSegments(path string, skip []string) string {
	skipSet := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		skipSet[s] = struct{}{}
	}

	var remaining []string
	for _, seg := range splitSegments(path) {
		if _, ok := skipSet[seg]; !ok {
			remaining = append(remaining, seg)
		}
	}
	if len(remaining) == 0 {
		return "/"
	}
	return "/" + strings.Join(remaining, "/")
}
