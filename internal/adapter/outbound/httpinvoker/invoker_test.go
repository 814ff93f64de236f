package httpinvoker_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specli/internal/adapter/outbound/httpinvoker"
	"specli/internal/usecase"
)

func newTestInvoker(t *testing.T, handler http.Handler, opts ...httpinvoker.Option) (*httpinvoker.Invoker, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	opts = append([]httpinvoker.Option{httpinvoker.WithRetry(3, time.Millisecond)}, opts...)
	return httpinvoker.New(server.Client(), logger, opts...), server
}

type memCache struct {
	entries map[string]usecase.CachedResponse
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]usecase.CachedResponse{}}
}

func (c *memCache) Get(key string) (usecase.CachedResponse, bool) {
	resp, ok := c.entries[key]
	return resp, ok
}

func (c *memCache) Set(key string, resp usecase.CachedResponse) error {
	c.entries[key] = resp
	return nil
}

func (c *memCache) Invalidate(key string) error { delete(c.entries, key); return nil }
func (c *memCache) Clear() error                { c.entries = map[string]usecase.CachedResponse{}; return nil }
func (c *memCache) Stats() (usecase.CacheStats, error) {
	return usecase.CacheStats{Entries: len(c.entries)}, nil
}

type headerAuth struct{ key, value string }

func (a headerAuth) Apply(req *http.Request) error {
	req.Header.Set(a.key, a.value)
	return nil
}

func TestInvokeSuccess(t *testing.T) {
	invoker, server := newTestInvoker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/items", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("limit"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "trace-1", r.Header.Get("X-Trace"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	result, err := invoker.Invoke(context.Background(), usecase.InvocationRequest{
		Method:      http.MethodPost,
		BaseURL:     server.URL,
		Path:        "/v1/items",
		Query:       map[string]string{"limit": "42"},
		Headers:     map[string]string{"X-Trace": "trace-1"},
		Body:        []byte(`{"name":"x"}`),
		ContentType: "application/json",
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(result.Body))
	assert.False(t, result.FromCache)
}

func TestInvokeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	invoker, server := newTestInvoker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	result, err := invoker.Invoke(context.Background(), usecase.InvocationRequest{
		Method:  http.MethodGet,
		BaseURL: server.URL,
		Path:    "/flaky",
	})

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "ok", string(result.Body))
}

func TestInvokeServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	invoker, server := newTestInvoker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))

	_, err := invoker.Invoke(context.Background(), usecase.InvocationRequest{
		Method:  http.MethodGet,
		BaseURL: server.URL,
		Path:    "/down",
	})

	assert.ErrorIs(t, err, usecase.ErrServer)
	assert.Equal(t, int32(3), calls.Load())
}

func TestInvokeErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"unauthorized", http.StatusUnauthorized, usecase.ErrAuth},
		{"forbidden", http.StatusForbidden, usecase.ErrAuth},
		{"not found", http.StatusNotFound, usecase.ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			invoker, server := newTestInvoker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, tc.name, tc.status)
			}))

			_, err := invoker.Invoke(context.Background(), usecase.InvocationRequest{
				Method:  http.MethodGet,
				BaseURL: server.URL,
				Path:    "/x",
			})
			assert.ErrorIs(t, err, tc.sentinel)
		})
	}
}

func TestInvokeClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	invoker, server := newTestInvoker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))

	_, err := invoker.Invoke(context.Background(), usecase.InvocationRequest{
		Method:  http.MethodGet,
		BaseURL: server.URL,
		Path:    "/x",
	})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvokeCachesGETResponses(t *testing.T) {
	var calls atomic.Int32
	cache := newMemCache()
	invoker, server := newTestInvoker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"n":1}`))
	}), httpinvoker.WithCache(cache))

	req := usecase.InvocationRequest{Method: http.MethodGet, BaseURL: server.URL, Path: "/cached"}

	first, err := invoker.Invoke(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := invoker.Invoke(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvokePOSTNotCached(t *testing.T) {
	var calls atomic.Int32
	cache := newMemCache()
	invoker, server := newTestInvoker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("created"))
	}), httpinvoker.WithCache(cache))

	req := usecase.InvocationRequest{Method: http.MethodPost, BaseURL: server.URL, Path: "/things"}

	for range 2 {
		_, err := invoker.Invoke(context.Background(), req)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Empty(t, cache.entries)
}

func TestInvokeAppliesAuthenticator(t *testing.T) {
	invoker, server := newTestInvoker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("ok"))
	}), httpinvoker.WithAuthenticator(headerAuth{key: "Authorization", value: "Bearer tok"}))

	_, err := invoker.Invoke(context.Background(), usecase.InvocationRequest{
		Method:  http.MethodGet,
		BaseURL: server.URL,
		Path:    "/secure",
	})
	require.NoError(t, err)
}

func TestInvokeDryRun(t *testing.T) {
	invoker, server := newTestInvoker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("dry run must not reach the server")
	}))

	result, err := invoker.Invoke(context.Background(), usecase.InvocationRequest{
		Method:      http.MethodPost,
		BaseURL:     server.URL,
		Path:        "/items",
		Body:        []byte(`{"a":1}`),
		ContentType: "application/json",
		DryRun:      true,
	})

	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Contains(t, string(result.Body), "POST "+server.URL+"/items")
	assert.Contains(t, string(result.Body), "Content-Type: application/json")
	assert.Contains(t, string(result.Body), `{"a":1}`)
}

func TestInvokeEscapedPathPreserved(t *testing.T) {
	invoker, server := newTestInvoker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pets/a%20b/toys/x%2Fy", r.URL.EscapedPath())
		assert.Equal(t, "/pets/a b/toys/x/y", r.URL.Path)
		_, _ = w.Write([]byte("ok"))
	}))

	_, err := invoker.Invoke(context.Background(), usecase.InvocationRequest{
		Method:  http.MethodGet,
		BaseURL: server.URL,
		Path:    "/pets/a%20b/toys/x%2Fy",
	})
	require.NoError(t, err)
}

func TestInvokeBaseURLWithPathPrefix(t *testing.T) {
	invoker, server := newTestInvoker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/pets", r.URL.Path)
		_, _ = w.Write([]byte("ok"))
	}))

	_, err := invoker.Invoke(context.Background(), usecase.InvocationRequest{
		Method:  http.MethodGet,
		BaseURL: server.URL + "/api/v2/",
		Path:    "/pets",
	})
	require.NoError(t, err)
}
