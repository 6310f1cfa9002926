/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mcpproxy-dev/proxy/internal/rbac"
)

// Listener accepts inbound MCP sessions. Implementations own TLS and the
// session handshake; the core consumes only decoded requests with an
// attached identity.
type Listener interface {
	// Accept blocks until the next session is established or ctx is done.
	Accept(ctx context.Context) (Session, error)
}

// Session delivers decoded requests and accepts responses for one inbound
// MCP connection. Recv returns an error once the peer hangs up; Send may be
// called from multiple request tasks and must be serialized by the caller.
type Session interface {
	Identity() rbac.Identity
	Recv() (*CallRequest, error)
	Send(Response) error
	Close() error
}

// Response is the session-visible outcome of one routed call.
type Response struct {
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// errorCode maps a routing error to the stable string surfaced on the
// session.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrTargetGone):
		return "target_gone"
	default:
		return "internal"
	}
}

// Serve accepts sessions from l until ctx is cancelled, spawning one task
// per session and one sub-task per request within it. It returns after
// every in-flight session has drained.
func Serve(ctx context.Context, l Listener, r *Router) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		sess, err := l.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveSession(ctx, sess, r)
		}()
	}
}

func serveSession(ctx context.Context, sess Session, r *Router) {
	defer sess.Close()

	identity := sess.Identity()

	var sendMu sync.Mutex
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		req, err := sess.Recv()
		if err != nil {
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			out, err := r.Route(ctx, *req, identity)
			resp := Response{ID: req.ID}
			if err != nil {
				resp.Error = errorCode(err)
			} else {
				resp.Result = out
			}

			sendMu.Lock()
			defer sendMu.Unlock()
			if err := sess.Send(resp); err != nil {
				slog.WarnContext(ctx, "failed to write session response", "error", err)
			}
		}()
	}
}
