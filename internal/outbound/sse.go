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

package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mcpproxy-dev/proxy/internal/session"
	"github.com/mcpproxy-dev/proxy/internal/store"
)

// SSEAdapter forwards calls to an HTTP/SSE-speaking target as a POST of the
// call's JSON-encoded arguments to {host}:{port}{path}/{operation}.
type SSEAdapter struct {
	Client *http.Client
}

// NewSSEAdapter constructs an SSEAdapter with the default http.Client.
func NewSSEAdapter() *SSEAdapter {
	return &SSEAdapter{Client: http.DefaultClient}
}

func (a *SSEAdapter) Call(ctx context.Context, t *store.Target, operation string, args map[string]any) (any, error) {
	if t.Sse == nil {
		return nil, fmt.Errorf("target %q is not an sse target", t.Name)
	}

	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode call arguments: %w", err)
	}

	url := fmt.Sprintf("http://%s:%d%s/%s", t.Sse.Host, t.Sse.Port, t.Sse.Path, operation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.Sse.Headers {
		req.Header.Set(k, v)
	}
	if t.Sse.BackendAuth == store.BackendAuthPassthrough {
		if token, ok := session.BearerTokenFrom(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", t.Name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", t.Name, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("target %s returned status %d: %s", t.Name, resp.StatusCode, string(respBody))
	}

	var out any
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, fmt.Errorf("decode response from %s: %w", t.Name, err)
		}
	}
	return out, nil
}
