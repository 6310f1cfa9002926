package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

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

func TestConfigDumpHandlerServesStoreSnapshot(t *testing.T) {
	s := store.NewStore(0)
	s.Lock()
	require.NoError(t, s.InsertTarget(mustAny(t, map[string]any{
		"name": "t1",
		"sse":  map[string]any{"host": "h", "port": 1, "path": "/p"},
	}), "v1"))
	s.Unlock()

	h := NewConfigDumpHandler(s)
	req := httptest.NewRequest(http.MethodGet, "/config_dump", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var dump ConfigDump
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dump))
	require.Contains(t, dump.Targets, "t1")
}

func TestConfigDumpHandlerRejectsNonGet(t *testing.T) {
	s := store.NewStore(0)
	h := NewConfigDumpHandler(s)
	req := httptest.NewRequest(http.MethodPost, "/config_dump", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
