package outbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpproxy-dev/proxy/internal/session"
	"github.com/mcpproxy-dev/proxy/internal/store"
)

func newSSETarget(t *testing.T, srv *httptest.Server, auth store.BackendAuth) *store.Target {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return &store.Target{
		Name: "t1",
		Sse: &store.SseSpec{
			Host:        u.Hostname(),
			Port:        port,
			Path:        "/mcp",
			BackendAuth: auth,
		},
	}
}

func TestSSEAdapterForwardsCallAndDecodesResponse(t *testing.T) {
	var gotPath string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	target := newSSETarget(t, srv, store.BackendAuthPassthrough)
	a := NewSSEAdapter()

	ctx := session.WithBearerToken(context.Background(), "tok123")
	out, err := a.Call(ctx, target, "ping", map[string]any{"x": 1})
	require.NoError(t, err)

	assert.Equal(t, "/mcp/ping", gotPath)
	assert.Equal(t, "Bearer tok123", gotAuth)
	assert.Equal(t, map[string]any{"ok": true}, out)
}

func TestSSEAdapterErrorStatusReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	target := newSSETarget(t, srv, "")
	a := NewSSEAdapter()
	_, err := a.Call(context.Background(), target, "ping", nil)
	require.Error(t, err)
}
