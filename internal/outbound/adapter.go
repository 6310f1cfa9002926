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

// Package outbound implements the adapters the Session Request Router
// forwards calls through, one per Target spec variant.
package outbound

import (
	"context"
	"fmt"

	"github.com/mcpproxy-dev/proxy/internal/store"
)

// Dispatcher selects the concrete adapter for a target's spec variant and
// satisfies session.Adapter.
type Dispatcher struct {
	SSE     *SSEAdapter
	Stdio   *StdioAdapter
	OpenAPI *OpenAPIAdapter
}

// NewDispatcher constructs a Dispatcher with default-configured adapters.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		SSE:     NewSSEAdapter(),
		Stdio:   &StdioAdapter{},
		OpenAPI: NewOpenAPIAdapter(),
	}
}

// Call forwards to the adapter matching t's configured spec variant.
func (d *Dispatcher) Call(ctx context.Context, t *store.Target, operation string, args map[string]any) (any, error) {
	switch {
	case t.Sse != nil:
		return d.SSE.Call(ctx, t, operation, args)
	case t.Stdio != nil:
		return d.Stdio.Call(ctx, t, operation, args)
	case t.OpenAPI != nil:
		return d.OpenAPI.Call(ctx, t, operation, args)
	default:
		return nil, fmt.Errorf("target %q has no configured spec variant", t.Name)
	}
}
