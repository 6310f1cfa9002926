package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mcpproxy-dev/proxy/internal/rbac"
	"github.com/mcpproxy-dev/proxy/internal/store"
)

func mustAny(t *testing.T, v map[string]any) *anypb.Any {
	t.Helper()
	js, err := json.Marshal(v)
	require.NoError(t, err)
	st := &structpb.Struct{}
	require.NoError(t, protojson.Unmarshal(js, st))
	a, err := anypb.New(st)
	require.NoError(t, err)
	return a
}

func insertSSETarget(t *testing.T, s *store.Store, name string) {
	t.Helper()
	proto := mustAny(t, map[string]any{
		"name": name,
		"sse":  map[string]any{"host": "localhost", "port": 8080, "path": "/mcp"},
	})
	s.Lock()
	defer s.Unlock()
	require.NoError(t, s.InsertTarget(proto, "v1"))
}

func insertPolicy(t *testing.T, s *store.Store, name, resourceName string, identity map[string]string) {
	t.Helper()
	proto := mustAny(t, map[string]any{
		"name": name,
		"rules": []any{
			map[string]any{
				"resourceMatch": map[string]any{"kind": "target", "name": resourceName},
				"identityMatch": identity,
			},
		},
	})
	s.Lock()
	defer s.Unlock()
	require.NoError(t, s.InsertPolicy(proto, "v1"))
}

type fakeAdapter struct {
	delay time.Duration
	resp  any
	err   error
}

func (f *fakeAdapter) Call(ctx context.Context, t *store.Target, operation string, args map[string]any) (any, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

func TestRouteForwardsPermittedCall(t *testing.T) {
	s := store.NewStore(0)
	insertSSETarget(t, s, "t1")
	insertPolicy(t, s, "p1", "t1", map[string]string{"sub": "alice"})

	r := NewRouter(s, &fakeAdapter{resp: "pong"})
	out, err := r.Route(context.Background(), CallRequest{TargetName: "t1", Operation: "ping"}, rbac.Identity{Claims: jwt.MapClaims{"sub": "alice"}})
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
}

func TestRouteNotFound(t *testing.T) {
	s := store.NewStore(0)
	r := NewRouter(s, &fakeAdapter{})
	_, err := r.Route(context.Background(), CallRequest{TargetName: "missing"}, rbac.Identity{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRoutePermissionDenied(t *testing.T) {
	s := store.NewStore(0)
	insertSSETarget(t, s, "t1")
	insertPolicy(t, s, "p1", "t1", map[string]string{"sub": "alice"})

	r := NewRouter(s, &fakeAdapter{resp: "pong"})
	_, err := r.Route(context.Background(), CallRequest{TargetName: "t1"}, rbac.Identity{Claims: jwt.MapClaims{"sub": "bob"}})
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestRouteAbortsOnTargetReplacementMidFlight(t *testing.T) {
	s := store.NewStore(0)
	insertSSETarget(t, s, "t1")
	insertPolicy(t, s, "p1", "*", map[string]string{})

	r := NewRouter(s, &fakeAdapter{delay: 200 * time.Millisecond, resp: "pong"})

	errCh := make(chan error, 1)
	go func() {
		_, err := r.Route(context.Background(), CallRequest{TargetName: "t1"}, rbac.Identity{Claims: jwt.MapClaims{}})
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	s.Lock()
	s.RemoveTarget("t1")
	s.Unlock()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrTargetGone)
	case <-time.After(time.Second):
		t.Fatal("expected route to abort promptly on target removal")
	}
}
