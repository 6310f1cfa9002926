package listener

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpproxy-dev/proxy/internal/session"
)

func dialAndHandshake(t *testing.T, addr string, hs map[string]any) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	line, err := json.Marshal(hs)
	require.NoError(t, err)
	_, err = conn.Write(append(line, '\n'))
	require.NoError(t, err)
	return conn
}

func TestAcceptPerformsHandshakeAndDeliversRequests(t *testing.T) {
	l, err := Listen("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer l.Close()

	go func() {
		conn := dialAndHandshake(t, l.Addr().String(), map[string]any{
			"identity": map[string]any{"sub": "alice"},
			"bearer":   "tok123",
		})
		defer conn.Close()

		req := map[string]any{"id": "1", "target": "t1", "operation": "ping", "args": map[string]any{"x": 1}}
		line, _ := json.Marshal(req)
		_, _ = conn.Write(append(line, '\n'))

		// read the response so Send has somewhere to go
		_ = bufio.NewScanner(conn).Scan()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := l.Accept(ctx)
	require.NoError(t, err)
	defer sess.Close()

	identity := sess.Identity()
	assert.Equal(t, "alice", identity.Claims["sub"])
	assert.Equal(t, "tok123", identity.Bearer)

	req, err := sess.Recv()
	require.NoError(t, err)
	assert.Equal(t, "1", req.ID)
	assert.Equal(t, "t1", req.TargetName)
	assert.Equal(t, "ping", req.Operation)

	require.NoError(t, sess.Send(session.Response{ID: req.ID, Result: "pong"}))
}

func TestAcceptSkipsConnectionWithBadHandshake(t *testing.T) {
	l, err := Listen("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer l.Close()

	go func() {
		bad, err := net.Dial("tcp", l.Addr().String())
		if err != nil {
			return
		}
		_, _ = bad.Write([]byte("not json\n"))
		_ = bad.Close()

		good := dialAndHandshake(t, l.Addr().String(), map[string]any{
			"identity": map[string]any{"sub": "bob"},
		})
		defer good.Close()
		time.Sleep(100 * time.Millisecond)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := l.Accept(ctx)
	require.NoError(t, err)
	defer sess.Close()
	assert.Equal(t, "bob", sess.Identity().Claims["sub"])
}

func TestAcceptUnblocksOnContextCancel(t *testing.T) {
	l, err := Listen("127.0.0.1:0", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = l.Accept(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
