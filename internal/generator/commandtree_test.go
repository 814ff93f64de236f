package generator_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specli/internal/domain"
	"specli/internal/generator"
)

func noopExec(ctx context.Context, method, pathTemplate string, params map[string]any, body, contentType string) error {
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func petstoreSpec() domain.ParsedSpec {
	return domain.ParsedSpec{
		Info: domain.APIInfo{Title: "Petstore", Description: "A sample pet store."},
		Operations: []domain.APIOperation{
			{
				Path:    "/pets",
				Method:  domain.MethodGet,
				Summary: "List Pets",
				Parameters: []domain.APIParameter{
					{Name: "limit", Location: domain.InQuery, SchemaType: "integer"},
				},
			},
			{
				Path:    "/pets",
				Method:  domain.MethodPost,
				Summary: "Create Pet",
				RequestBody: &domain.RequestBodyInfo{
					Required:     true,
					ContentTypes: []string{"application/json"},
					Schema: map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name": map[string]any{"type": "string"},
							"tag":  map[string]any{"type": "string"},
						},
						"required": []any{"name"},
					},
				},
			},
			{
				Path:    "/pets/{petId}",
				Method:  domain.MethodGet,
				Summary: "Get Pet",
				Parameters: []domain.APIParameter{
					{Name: "petId", Location: domain.InPath, Required: true, SchemaType: "string"},
				},
			},
			{
				Path:    "/pets/{petId}",
				Method:  domain.MethodDelete,
				Summary: "Delete Pet",
				Parameters: []domain.APIParameter{
					{Name: "petId", Location: domain.InPath, Required: true, SchemaType: "string"},
				},
			},
		},
	}
}

func TestBuildCommandTreePetstore(t *testing.T) {
	tree := generator.BuildCommandTree(petstoreSpec(), domain.DefaultPathRules(), noopExec, testLogger())

	assert.Equal(t, "petstore", tree.Name)
	require.Len(t, tree.Children, 1)

	pets := tree.Group("pets")
	require.NotNil(t, pets)
	assert.Len(t, pets.Children, 4)

	list := pets.Command("list")
	require.NotNil(t, list)
	require.NotNil(t, list.Leaf)
	assert.Empty(t, list.Leaf.Args)
	require.Len(t, list.Leaf.Opts, 1)
	assert.Equal(t, "limit", list.Leaf.Opts[0].Name)

	get := pets.Command("get")
	require.NotNil(t, get)
	require.Len(t, get.Leaf.Args, 1)
	assert.Equal(t, "pet_id", get.Leaf.Args[0].Name)
	assert.True(t, get.Leaf.Args[0].Positional)

	create := pets.Command("create")
	require.NotNil(t, create)
	assert.Equal(t, "application/json", create.Leaf.ContentType)
	assert.Equal(t, []string{"name"}, create.Leaf.BodyRequired)

	var haveBody, haveName, haveTag bool
	for _, o := range create.Leaf.Opts {
		switch {
		case o.Body:
			haveBody = true
		case o.BodyField && o.Name == "name":
			haveName = true
		case o.BodyField && o.Name == "tag":
			haveTag = true
		}
	}
	assert.True(t, haveBody)
	assert.True(t, haveName)
	assert.True(t, haveTag)

	del := pets.Command("delete")
	require.NotNil(t, del)
	require.Len(t, del.Leaf.Args, 1)
}

func TestBuildCommandTreeVerbNaming(t *testing.T) {
	tests := []struct {
		name     string
		method   domain.HTTPMethod
		path     string
		expected string
	}{
		{"get collection is list", domain.MethodGet, "/users", "list"},
		{"get resource is get", domain.MethodGet, "/users/{id}", "get"},
		{"post is create", domain.MethodPost, "/users", "create"},
		{"put is update", domain.MethodPut, "/users/{id}", "update"},
		{"patch stays patch", domain.MethodPatch, "/users/{id}", "patch"},
		{"delete stays delete", domain.MethodDelete, "/users/{id}", "delete"},
		{"head passes through", domain.MethodHead, "/users", "head"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec := domain.ParsedSpec{
				Info: domain.APIInfo{Title: "t"},
				Operations: []domain.APIOperation{
					{Path: tc.path, Method: tc.method},
				},
			}
			tree := generator.BuildCommandTree(spec, domain.DefaultPathRules(), noopExec, testLogger())

			users := tree.Group("users")
			require.NotNil(t, users)
			require.Len(t, users.Children, 1)
			assert.Equal(t, tc.expected, users.Children[0].Name)
		})
	}
}

func TestBuildCommandTreeVerbCollision(t *testing.T) {
	// Two GETs that both resolve to "list" in the same group: the second
	// keeps the group usable under a method-suffixed name.
	spec := domain.ParsedSpec{
		Info: domain.APIInfo{Title: "t"},
		Operations: []domain.APIOperation{
			{Path: "/search", Method: domain.MethodGet},
			{Path: "/v1/search", Method: domain.MethodGet},
		},
	}
	rules := domain.PathRulesConfig{
		Collapse: map[string]string{"/v1/search": "/search"},
	}

	tree := generator.BuildCommandTree(spec, rules, noopExec, testLogger())
	search := tree.Group("search")
	require.NotNil(t, search)
	require.Len(t, search.Children, 2)

	names := []string{search.Children[0].Name, search.Children[1].Name}
	assert.Contains(t, names, "list")
	assert.Contains(t, names, "list-get")
}

func TestBuildCommandTreeRootGroup(t *testing.T) {
	spec := domain.ParsedSpec{
		Info: domain.APIInfo{Title: "t"},
		Operations: []domain.APIOperation{
			{Path: "/", Method: domain.MethodGet, Summary: "Service status"},
		},
	}

	tree := generator.BuildCommandTree(spec, domain.DefaultPathRules(), noopExec, testLogger())
	root := tree.Group("root")
	require.NotNil(t, root)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "list", root.Children[0].Name)
}

func TestBuildCommandTreeSkipsHTMLOnlyEndpoints(t *testing.T) {
	spec := domain.ParsedSpec{
		Info: domain.APIInfo{Title: "t"},
		Operations: []domain.APIOperation{
			{
				Path:   "/dashboard",
				Method: domain.MethodGet,
				Responses: []domain.ResponseInfo{
					{StatusCode: "200", ContentTypes: []string{"text/html"}},
				},
			},
			{
				Path:   "/reports",
				Method: domain.MethodGet,
				Responses: []domain.ResponseInfo{
					{StatusCode: "200", ContentTypes: []string{"text/html", "application/json"}},
				},
			},
		},
	}

	tree := generator.BuildCommandTree(spec, domain.DefaultPathRules(), noopExec, testLogger())

	assert.Nil(t, tree.Group("dashboard"))
	reports := tree.Group("reports")
	require.NotNil(t, reports)
	assert.Len(t, reports.Children, 1)
}

func TestBuildCommandTreeNestedGroups(t *testing.T) {
	spec := domain.ParsedSpec{
		Info: domain.APIInfo{Title: "t"},
		Operations: []domain.APIOperation{
			{
				Path:   "/users/{userId}/posts/{postId}",
				Method: domain.MethodGet,
				Parameters: []domain.APIParameter{
					{Name: "userId", Location: domain.InPath, Required: true, SchemaType: "string"},
					{Name: "postId", Location: domain.InPath, Required: true, SchemaType: "string"},
				},
			},
			{Path: "/users/{userId}/posts", Method: domain.MethodGet,
				Parameters: []domain.APIParameter{
					{Name: "userId", Location: domain.InPath, Required: true, SchemaType: "string"},
				}},
			{Path: "/users", Method: domain.MethodGet},
		},
	}

	tree := generator.BuildCommandTree(spec, domain.DefaultPathRules(), noopExec, testLogger())

	users := tree.Group("users")
	require.NotNil(t, users)
	posts := users.Group("posts")
	require.NotNil(t, posts)

	get := posts.Command("get")
	require.NotNil(t, get)
	require.Len(t, get.Leaf.Args, 2)
	// Positional order follows the path template.
	assert.Equal(t, "user_id", get.Leaf.Args[0].Name)
	assert.Equal(t, "post_id", get.Leaf.Args[1].Name)
}

func TestBuildCommandTreeGroupHelpFromTags(t *testing.T) {
	spec := domain.ParsedSpec{
		Info: domain.APIInfo{Title: "t"},
		Raw: domain.RawDocument{
			"tags": []any{
				map[string]any{"name": "Pets", "description": "Everything about pets."},
			},
		},
		Operations: []domain.APIOperation{
			{Path: "/pets", Method: domain.MethodGet, Tags: []string{"Pets"}},
		},
	}

	tree := generator.BuildCommandTree(spec, domain.DefaultPathRules(), noopExec, testLogger())
	pets := tree.Group("pets")
	require.NotNil(t, pets)
	assert.Equal(t, "Everything about pets.", pets.Help)
}

func TestBuildCommandTreeGroupHelpInferred(t *testing.T) {
	spec := domain.ParsedSpec{
		Info: domain.APIInfo{Title: "t"},
		Operations: []domain.APIOperation{
			{Path: "/campaigns", Method: domain.MethodGet, Summary: "List Campaigns"},
			{Path: "/campaigns", Method: domain.MethodPost, Summary: "Create Campaigns"},
		},
	}

	tree := generator.BuildCommandTree(spec, domain.DefaultPathRules(), noopExec, testLogger())
	campaigns := tree.Group("campaigns")
	require.NotNil(t, campaigns)
	assert.Equal(t, "Manage campaigns.", campaigns.Help)
}

func TestBuildCommandTreeSyntheticBodyOption(t *testing.T) {
	// POST without a declared requestBody still accepts --body.
	spec := domain.ParsedSpec{
		Info: domain.APIInfo{Title: "t"},
		Operations: []domain.APIOperation{
			{Path: "/jobs", Method: domain.MethodPost},
		},
	}

	tree := generator.BuildCommandTree(spec, domain.DefaultPathRules(), noopExec, testLogger())
	create := tree.Group("jobs").Command("create")
	require.NotNil(t, create)
	assert.Equal(t, "application/json", create.Leaf.ContentType)
	require.Len(t, create.Leaf.Opts, 1)
	assert.True(t, create.Leaf.Opts[0].Body)
}

func TestBuildCommandTreeSkipsUnbuildableLeaf(t *testing.T) {
	spec := domain.ParsedSpec{
		Info: domain.APIInfo{Title: "Shop"},
		Operations: []domain.APIOperation{
			{Path: "/items", Method: domain.MethodGet},
			{
				// itemId and item-id sanitize to the same positional name.
				Path:   "/items/{itemId}",
				Method: domain.MethodGet,
				Parameters: []domain.APIParameter{
					{Name: "itemId", Location: domain.InPath, Required: true},
					{Name: "item-id", Location: domain.InPath, Required: true},
				},
			},
		},
	}

	var logged bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logged, &slog.HandlerOptions{Level: slog.LevelWarn}))
	tree := generator.BuildCommandTree(spec, domain.DefaultPathRules(), noopExec, logger)

	items := tree.Group("items")
	require.NotNil(t, items)
	assert.NotNil(t, items.Command("list"))
	assert.Nil(t, items.Command("get"))
	assert.Contains(t, logged.String(), "Skipping operation")
	assert.Contains(t, logged.String(), "/items/{itemId}")
}

func TestBuildCommandTreeDeterministic(t *testing.T) {
	spec := petstoreSpec()

	first := generator.BuildCommandTree(spec, domain.DefaultPathRules(), noopExec, testLogger())
	second := generator.BuildCommandTree(spec, domain.DefaultPathRules(), noopExec, testLogger())

	var walk func(n *domain.CommandNode) []string
	walk = func(n *domain.CommandNode) []string {
		names := []string{n.Name}
		for _, c := range n.Children {
			names = append(names, walk(c)...)
		}
		return names
	}
	assert.Equal(t, walk(first), walk(second))
}

func TestBuildCommandTreeEmptySpec(t *testing.T) {
	tree := generator.BuildCommandTree(domain.ParsedSpec{Info: domain.APIInfo{Title: "Empty"}}, domain.DefaultPathRules(), noopExec, testLogger())

	assert.Equal(t, "empty", tree.Name)
	assert.Empty(t, tree.Children)
}
