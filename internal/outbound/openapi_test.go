package outbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpproxy-dev/proxy/internal/store"
)

const testOpenAPIDoc = `{
  "openapi": "3.0.0",
  "info": {"title": "t", "version": "1.0"},
  "paths": {
    "/ping": {
      "post": {
        "operationId": "ping",
        "responses": {"200": {"description": "ok"}}
      }
    }
  }
}`

func TestOpenAPIAdapterResolvesOperationAndCalls(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"pong": true})
	}))
	defer srv.Close()

	target := &store.Target{
		Name: "t1",
		OpenAPI: &store.OpenAPISpec{
			Schema:  testOpenAPIDoc,
			BaseURL: srv.URL,
		},
	}

	a := NewOpenAPIAdapter()
	out, err := a.Call(context.Background(), target, "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "/ping", gotPath)
	assert.Equal(t, map[string]any{"pong": true}, out)
}

func TestOpenAPIAdapterUnknownOperation(t *testing.T) {
	target := &store.Target{
		Name:    "t1",
		OpenAPI: &store.OpenAPISpec{Schema: testOpenAPIDoc, BaseURL: "http://example.invalid"},
	}
	a := NewOpenAPIAdapter()
	_, err := a.Call(context.Background(), target, "missing", nil)
	require.Error(t, err)
}
