package rbac

import (
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"

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

func insertPolicy(t *testing.T, s *store.Store, name, kind, resourceName string, identity map[string]string) {
	t.Helper()
	proto := mustAny(t, map[string]any{
		"name": name,
		"rules": []any{
			map[string]any{
				"resourceMatch": map[string]any{"kind": kind, "name": resourceName},
				"identityMatch": identity,
			},
		},
	})
	s.Lock()
	defer s.Unlock()
	require.NoError(t, s.InsertPolicy(proto, "v1"))
}

func TestPermitAllowsExactMatch(t *testing.T) {
	s := store.NewStore(0)
	insertPolicy(t, s, "p1", "target", "t1", map[string]string{"sub": "alice"})

	ok := Permit(s, ResourceDescriptor{Kind: "target", TargetName: "t1", Operation: "ping"}, Identity{Claims: jwt.MapClaims{"sub": "alice"}})
	require.True(t, ok)
}

func TestPermitDeniesWrongIdentity(t *testing.T) {
	s := store.NewStore(0)
	insertPolicy(t, s, "p1", "target", "t1", map[string]string{"sub": "alice"})

	ok := Permit(s, ResourceDescriptor{Kind: "target", TargetName: "t1", Operation: "ping"}, Identity{Claims: jwt.MapClaims{"sub": "bob"}})
	require.False(t, ok)
}

func TestPermitWildcardResourceName(t *testing.T) {
	s := store.NewStore(0)
	insertPolicy(t, s, "p1", "target", "*", map[string]string{"sub": "alice"})

	ok := Permit(s, ResourceDescriptor{Kind: "target", TargetName: "anything", Operation: "ping"}, Identity{Claims: jwt.MapClaims{"sub": "alice"}})
	require.True(t, ok)
}

func TestPermitNoPoliciesDenies(t *testing.T) {
	s := store.NewStore(0)
	ok := Permit(s, ResourceDescriptor{Kind: "target", TargetName: "t1"}, Identity{Claims: jwt.MapClaims{"sub": "alice"}})
	require.False(t, ok)
}

func TestPermitPolicyAddedAfterDenialNowAllows(t *testing.T) {
	s := store.NewStore(0)
	insertPolicy(t, s, "p1", "target", "t1", map[string]string{"sub": "alice"})

	require.False(t, Permit(s, ResourceDescriptor{Kind: "target", TargetName: "t1"}, Identity{Claims: jwt.MapClaims{"sub": "bob"}}))

	insertPolicy(t, s, "p2", "target", "t1", map[string]string{"sub": "bob"})

	require.True(t, Permit(s, ResourceDescriptor{Kind: "target", TargetName: "t1"}, Identity{Claims: jwt.MapClaims{"sub": "bob"}}))
}
