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

// Package session implements the request router for inbound MCP sessions:
// for every
// inbound MCP call it resolves a target, consults the RBAC evaluator, and
// forwards the call to an outbound adapter while honoring the target's
// per-entry cancellation signal.
package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mcpproxy-dev/proxy/internal/metrics"
	"github.com/mcpproxy-dev/proxy/internal/rbac"
	"github.com/mcpproxy-dev/proxy/internal/store"
)

var (
	ErrNotFound         = errors.New("target not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrTargetGone       = errors.New("target gone")
)

// CallRequest is one inbound MCP call within a session. ID is the caller's
// correlation token, echoed unchanged on the response.
type CallRequest struct {
	ID         string
	TargetName string
	Operation  string
	Args       map[string]any
}

// Adapter forwards a call to the outbound endpoint selected by t's spec
// variant. Implementations live in internal/outbound.
type Adapter interface {
	Call(ctx context.Context, t *store.Target, operation string, args map[string]any) (any, error)
}

// Router dispatches one session's inbound calls against the store.
type Router struct {
	Store   *store.Store
	Adapter Adapter
}

// NewRouter constructs a Router over s, forwarding accepted calls through a.
func NewRouter(s *store.Store, a Adapter) *Router {
	return &Router{Store: s, Adapter: a}
}

// Route resolves req.TargetName, authorizes it for identity, and forwards
// the call. It races the outbound adapter call against the target's
// cancellation signal: if the signal fires first, the call is aborted and
// ErrTargetGone is returned.
func (r *Router) Route(ctx context.Context, req CallRequest, identity rbac.Identity) (any, error) {
	callID := uuid.New().String()
	log := slog.With("call_id", callID, "target", req.TargetName, "operation", req.Operation)

	r.Store.RLock()
	target, ok := r.Store.GetTarget(req.TargetName)
	if !ok {
		r.Store.RUnlock()
		metrics.SessionCallsTotal.WithLabelValues("not_found").Inc()
		log.WarnContext(ctx, "call routed to unknown target")
		return nil, ErrNotFound
	}

	desc := rbac.ResourceDescriptor{Kind: "target", TargetName: req.TargetName, Operation: req.Operation}
	if !rbac.PermitLocked(r.Store, desc, identity) {
		r.Store.RUnlock()
		metrics.SessionCallsTotal.WithLabelValues("permission_denied").Inc()
		log.WarnContext(ctx, "call denied by policy")
		return nil, ErrPermissionDenied
	}

	// Clone the cancellation context and release the read lock before
	// performing outbound I/O, per the Resource Store's lock-free-read
	// contract.
	cancelCtx := target.Context()
	r.Store.RUnlock()

	callCtx, cancelCall := context.WithCancel(ctx)
	defer cancelCall()
	if identity.Bearer != "" {
		callCtx = WithBearerToken(callCtx, identity.Bearer)
	}

	type result struct {
		val any
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := r.Adapter.Call(callCtx, target, req.Operation, req.Args)
		done <- result{v, err}
	}()

	select {
	case <-cancelCtx.Done():
		metrics.SessionCallsTotal.WithLabelValues("target_gone").Inc()
		log.InfoContext(ctx, "target replaced or removed mid-call")
		return nil, ErrTargetGone
	case res := <-done:
		outcome := "ok"
		if res.err != nil {
			outcome = "error"
			log.ErrorContext(ctx, "outbound call failed", "error", res.err)
		}
		metrics.SessionCallsTotal.WithLabelValues(outcome).Inc()
		return res.val, res.err
	case <-ctx.Done():
		metrics.SessionCallsTotal.WithLabelValues("cancelled").Inc()
		log.InfoContext(ctx, "call cancelled by caller")
		return nil, ctx.Err()
	}
}
