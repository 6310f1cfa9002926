package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpproxy-dev/proxy/internal/rbac"
	"github.com/mcpproxy-dev/proxy/internal/store"
)

// fakeSession feeds a fixed request sequence and records responses.
type fakeSession struct {
	identity rbac.Identity
	requests []*CallRequest

	mu        sync.Mutex
	responses []Response
	closed    bool
}

func (f *fakeSession) Identity() rbac.Identity { return f.identity }

func (f *fakeSession) Recv() (*CallRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil, fmt.Errorf("session closed by peer")
	}
	req := f.requests[0]
	f.requests = f.requests[1:]
	return req, nil
}

func (f *fakeSession) Send(resp Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeListener yields its sessions then blocks until ctx is done.
type fakeListener struct {
	mu       sync.Mutex
	sessions []*fakeSession
}

func (f *fakeListener) Accept(ctx context.Context) (Session, error) {
	f.mu.Lock()
	if len(f.sessions) > 0 {
		sess := f.sessions[0]
		f.sessions = f.sessions[1:]
		f.mu.Unlock()
		return sess, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestServeRoutesRequestsAndEchoesIDs(t *testing.T) {
	s := store.NewStore(0)
	insertSSETarget(t, s, "t1")
	insertPolicy(t, s, "p1", "*", map[string]string{})

	sess := &fakeSession{
		identity: rbac.Identity{Claims: jwt.MapClaims{"sub": "alice"}},
		requests: []*CallRequest{
			{ID: "1", TargetName: "t1", Operation: "ping"},
			{ID: "2", TargetName: "missing", Operation: "ping"},
		},
	}
	l := &fakeListener{sessions: []*fakeSession{sess}}
	r := NewRouter(s, &fakeAdapter{resp: "pong"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, l, r) }()

	require.Eventually(t, func() bool {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return len(sess.responses) == 2 && sess.closed
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	byID := map[string]Response{}
	for _, resp := range sess.responses {
		byID[resp.ID] = resp
	}
	assert.Equal(t, "pong", byID["1"].Result)
	assert.Empty(t, byID["1"].Error)
	assert.Equal(t, "not_found", byID["2"].Error)
}

func TestErrorCodeMapping(t *testing.T) {
	assert.Equal(t, "not_found", errorCode(ErrNotFound))
	assert.Equal(t, "permission_denied", errorCode(ErrPermissionDenied))
	assert.Equal(t, "target_gone", errorCode(ErrTargetGone))
	assert.Equal(t, "internal", errorCode(fmt.Errorf("boom")))
}
