package generator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"specli/internal/domain"
	"specli/internal/generator"
)

func strPtr(s string) *string { return &s }

func TestFindCommonPrefix(t *testing.T) {
	tests := []struct {
		name     string
		paths    []string
		expected string
	}{
		{
			name:     "shared versioned prefix",
			paths:    []string{"/api/v1/users", "/api/v1/pets"},
			expected: "/api/v1",
		},
		{
			name:     "no shared prefix",
			paths:    []string{"/users", "/pets"},
			expected: "",
		},
		{
			name:     "single path has no prefix",
			paths:    []string{"/api/v1/users"},
			expected: "",
		},
		{
			name:     "prefix shrinks to preserve one segment",
			paths:    []string{"/api/v1/users", "/api/v1/users/{id}"},
			expected: "/api/v1",
		},
		{
			name:     "empty input",
			paths:    nil,
			expected: "",
		},
		{
			name:     "partial overlap stops at divergence",
			paths:    []string{"/api/v1/users", "/api/v2/users"},
			expected: "/api",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, generator.FindCommonPrefix(tc.paths))
		})
	}
}

func TestPathToCommandParts(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected []string
	}{
		{
			name:     "params dropped",
			path:     "/users/{id}/posts",
			expected: []string{"users", "posts"},
		},
		{
			name:     "plain resource",
			path:     "/users",
			expected: []string{"users"},
		},
		{
			name:     "root path",
			path:     "/",
			expected: []string{},
		},
		{
			name:     "trailing param",
			path:     "/pets/{petId}",
			expected: []string{"pets"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, generator.PathToCommandParts(tc.path))
		})
	}
}

func TestApplyPathRules(t *testing.T) {
	tests := []struct {
		name     string
		paths    []string
		rules    domain.PathRulesConfig
		expected map[string]string
	}{
		{
			name:  "auto strip common prefix",
			paths: []string{"/api/v2/campaigns", "/api/v2/campaigns/{id}"},
			rules: domain.DefaultPathRules(),
			expected: map[string]string{
				"/api/v2/campaigns":      "/campaigns",
				"/api/v2/campaigns/{id}": "/campaigns/{id}",
			},
		},
		{
			name:  "explicit strip prefix wins over auto",
			paths: []string{"/api/v2/campaigns", "/api/v2/lists"},
			rules: domain.PathRulesConfig{
				AutoStripPrefix: true,
				StripPrefix:     strPtr("/api"),
			},
			expected: map[string]string{
				"/api/v2/campaigns": "/v2/campaigns",
				"/api/v2/lists":     "/v2/lists",
			},
		},
		{
			name:  "explicit empty strip prefix disables stripping",
			paths: []string{"/api/v2/campaigns", "/api/v2/lists"},
			rules: domain.PathRulesConfig{
				AutoStripPrefix: true,
				StripPrefix:     strPtr(""),
			},
			expected: map[string]string{
				"/api/v2/campaigns": "/api/v2/campaigns",
				"/api/v2/lists":     "/api/v2/lists",
			},
		},
		{
			name:  "keep reinserts stripped segment",
			paths: []string{"/api/v2/campaigns", "/api/v2/lists"},
			rules: domain.PathRulesConfig{
				AutoStripPrefix: true,
				Keep:            []string{"v2"},
			},
			expected: map[string]string{
				"/api/v2/campaigns": "/v2/campaigns",
				"/api/v2/lists":     "/v2/lists",
			},
		},
		{
			name:  "skip segments removed everywhere",
			paths: []string{"/service/api/v1/users", "/service/api/v1/users/{id}/profile"},
			rules: domain.PathRulesConfig{
				AutoStripPrefix: true,
				SkipSegments:    []string{"api"},
			},
			expected: map[string]string{
				"/service/api/v1/users":              "/users",
				"/service/api/v1/users/{id}/profile": "/users/{id}/profile",
			},
		},
		{
			name:  "collapse takes precedence over everything",
			paths: []string{"/api/v1/users/search", "/api/v1/users"},
			rules: domain.PathRulesConfig{
				AutoStripPrefix: true,
				Collapse:        map[string]string{"/api/v1/users/search": "/search"},
				SkipSegments:    []string{"search"},
			},
			expected: map[string]string{
				"/api/v1/users/search": "/search",
				"/api/v1/users":        "/users",
			},
		},
		{
			name:  "collapse target gains leading slash",
			paths: []string{"/a/b"},
			rules: domain.PathRulesConfig{
				Collapse: map[string]string{"/a/b": "b"},
			},
			expected: map[string]string{
				"/a/b": "/b",
			},
		},
		{
			name:  "include prefix filters before prefix detection",
			paths: []string{"/api/v1/users", "/api/v1/pets", "/internal/health"},
			rules: domain.PathRulesConfig{
				AutoStripPrefix: true,
				IncludePrefix:   domain.StringList{"/api"},
			},
			expected: map[string]string{
				"/api/v1/users": "/users",
				"/api/v1/pets":  "/pets",
			},
		},
		{
			name:  "single path untouched by auto strip",
			paths: []string{"/api/v1/users"},
			rules: domain.DefaultPathRules(),
			expected: map[string]string{
				"/api/v1/users": "/api/v1/users",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, generator.ApplyPathRules(tc.paths, tc.rules))
		})
	}
}
