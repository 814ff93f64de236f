package openapi_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specli/internal/adapter/outbound/openapi"
	"specli/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testDoc() domain.RawDocument {
	return domain.RawDocument{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       "Petstore",
			"version":     "1.0.0",
			"description": "A sample API.",
			"contact":     map[string]any{"name": "API Team", "email": "team@example.com"},
		},
		"servers": []any{
			map[string]any{"url": "https://api.example.com/v1", "description": "Production"},
		},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"apiKey": map[string]any{"type": "apiKey", "name": "X-API-Key", "in": "header"},
				"bearer": map[string]any{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
		},
		"paths": map[string]any{
			"/pets/{petId}": map[string]any{
				"parameters": []any{
					map[string]any{
						"name": "petId", "in": "path", "required": true,
						"schema": map[string]any{"type": "integer", "format": "int64"},
					},
					map[string]any{
						"name": "verbose", "in": "query",
						"schema": map[string]any{"type": "boolean", "default": false},
					},
				},
				"get": map[string]any{
					"operationId": "getPet",
					"summary":     "Get Pet",
					"tags":        []any{"pets"},
					"parameters": []any{
						map[string]any{
							"name": "verbose", "in": "query",
							"description": "Operation-level override.",
							"schema":      map[string]any{"type": "boolean"},
						},
					},
					"responses": map[string]any{
						"200": map[string]any{
							"description": "OK",
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": map[string]any{"type": "object"},
								},
							},
						},
					},
				},
				"x-internal": true,
			},
			"/pets": map[string]any{
				"post": map[string]any{
					"operationId": "createPet",
					"security":    []any{map[string]any{"apiKey": []any{}}},
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/xml": map[string]any{
								"schema": map[string]any{"type": "object"},
							},
							"application/json": map[string]any{
								"schema": map[string]any{
									"type":       "object",
									"properties": map[string]any{"name": map[string]any{"type": "string"}},
								},
							},
						},
					},
					"responses": map[string]any{},
				},
				"get": map[string]any{"operationId": "listPets", "responses": map[string]any{}},
			},
		},
	}
}

func TestExtract(t *testing.T) {
	spec, err := openapi.NewExtractor(testLogger()).Extract(testDoc())
	require.NoError(t, err)

	assert.Equal(t, "3.0.3", spec.OpenAPIVersion)
	assert.Equal(t, "Petstore", spec.Info.Title)
	assert.Equal(t, "API Team", spec.Info.ContactName)
	require.Len(t, spec.Servers, 1)
	assert.Equal(t, "https://api.example.com/v1", spec.Servers[0].URL)

	// Paths sorted, methods in fixed order: GET /pets, POST /pets, GET /pets/{petId}.
	require.Len(t, spec.Operations, 3)
	assert.Equal(t, "listPets", spec.Operations[0].OperationID)
	assert.Equal(t, "createPet", spec.Operations[1].OperationID)
	assert.Equal(t, "getPet", spec.Operations[2].OperationID)
}

func TestExtractMergesPathAndOperationParameters(t *testing.T) {
	spec, err := openapi.NewExtractor(testLogger()).Extract(testDoc())
	require.NoError(t, err)

	get := spec.Operations[2]
	require.Len(t, get.Parameters, 2)

	// Path-level order is preserved.
	assert.Equal(t, "petId", get.Parameters[0].Name)
	assert.Equal(t, domain.InPath, get.Parameters[0].Location)
	assert.True(t, get.Parameters[0].Required)
	assert.Equal(t, "integer", get.Parameters[0].SchemaType)
	assert.Equal(t, "int64", get.Parameters[0].SchemaFormat)

	// The operation-level declaration wins over the path-level one.
	assert.Equal(t, "verbose", get.Parameters[1].Name)
	assert.Equal(t, "Operation-level override.", get.Parameters[1].Description)
	assert.Nil(t, get.Parameters[1].Default)
}

func TestExtractRequestBodyPrefersJSON(t *testing.T) {
	spec, err := openapi.NewExtractor(testLogger()).Extract(testDoc())
	require.NoError(t, err)

	create := spec.Operations[1]
	require.NotNil(t, create.RequestBody)
	assert.True(t, create.RequestBody.Required)
	assert.Equal(t, []string{"application/json", "application/xml"}, create.RequestBody.ContentTypes)
	assert.Contains(t, create.RequestBody.Schema, "properties")
}

func TestExtractSecurity(t *testing.T) {
	spec, err := openapi.NewExtractor(testLogger()).Extract(testDoc())
	require.NoError(t, err)

	require.Contains(t, spec.SecuritySchemes, "apiKey")
	assert.Equal(t, "X-API-Key", spec.SecuritySchemes["apiKey"].ParamName)
	assert.Equal(t, "header", spec.SecuritySchemes["apiKey"].Location)
	require.Contains(t, spec.SecuritySchemes, "bearer")
	assert.Equal(t, "bearer", spec.SecuritySchemes["bearer"].Scheme)

	create := spec.Operations[1]
	require.Len(t, create.Security, 1)
	assert.Contains(t, create.Security[0], "apiKey")
}

func TestExtractSkipsUnknownParameterLocation(t *testing.T) {
	doc := domain.RawDocument{
		"openapi": "3.0.0",
		"info":    map[string]any{"title": "t", "version": "1"},
		"paths": map[string]any{
			"/a": map[string]any{
				"get": map[string]any{
					"parameters": []any{
						map[string]any{"name": "weird", "in": "body"},
						map[string]any{"name": "ok", "in": "query"},
					},
					"responses": map[string]any{},
				},
			},
		},
	}

	spec, err := openapi.NewExtractor(testLogger()).Extract(doc)
	require.NoError(t, err)
	require.Len(t, spec.Operations, 1)
	require.Len(t, spec.Operations[0].Parameters, 1)
	assert.Equal(t, "ok", spec.Operations[0].Parameters[0].Name)
}

func TestExtractTypeArrays(t *testing.T) {
	doc := domain.RawDocument{
		"openapi": "3.1.0",
		"info":    map[string]any{"title": "t", "version": "1"},
		"paths": map[string]any{
			"/a": map[string]any{
				"get": map[string]any{
					"parameters": []any{
						map[string]any{
							"name": "filter", "in": "query",
							"schema": map[string]any{"type": []any{"null", "integer"}},
						},
					},
					"responses": map[string]any{},
				},
			},
		},
	}

	spec, err := openapi.NewExtractor(testLogger()).Extract(doc)
	require.NoError(t, err)
	assert.Equal(t, "integer", spec.Operations[0].Parameters[0].SchemaType)
}

func TestExtractNoPaths(t *testing.T) {
	_, err := openapi.NewExtractor(testLogger()).Extract(domain.RawDocument{
		"openapi": "3.0.0",
		"info":    map[string]any{"title": "t"},
	})
	assert.Error(t, err)
}
