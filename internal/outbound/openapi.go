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
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mcpproxy-dev/proxy/internal/store"
)

// OpenAPIAdapter resolves a call's operation against the target's OpenAPI
// schema (by operationId) and issues the corresponding HTTP request against
// the target's base URL. Parsed documents are cached by their raw text,
// since the store already validated the schema at ingest time.
type OpenAPIAdapter struct {
	Client *http.Client

	mu    sync.Mutex
	cache map[string]*openapi3.T
}

// NewOpenAPIAdapter constructs an OpenAPIAdapter with the default
// http.Client.
func NewOpenAPIAdapter() *OpenAPIAdapter {
	return &OpenAPIAdapter{Client: http.DefaultClient, cache: make(map[string]*openapi3.T)}
}

func (a *OpenAPIAdapter) Call(ctx context.Context, t *store.Target, operation string, args map[string]any) (any, error) {
	if t.OpenAPI == nil {
		return nil, fmt.Errorf("target %q is not an openapi target", t.Name)
	}

	doc, err := a.schemaFor(t.OpenAPI.Schema)
	if err != nil {
		return nil, fmt.Errorf("load schema for %s: %w", t.Name, err)
	}

	path, method, found := findOperation(doc, operation)
	if !found {
		return nil, fmt.Errorf("target %s has no operation %q", t.Name, operation)
	}

	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode call arguments: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.OpenAPI.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

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

func (a *OpenAPIAdapter) schemaFor(raw string) (*openapi3.T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if doc, ok := a.cache[raw]; ok {
		return doc, nil
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData([]byte(raw))
	if err != nil {
		return nil, err
	}
	a.cache[raw] = doc
	return doc, nil
}

// findOperation locates the path item and HTTP method whose operationId
// matches operation.
func findOperation(doc *openapi3.T, operation string) (path string, method string, found bool) {
	for p, item := range doc.Paths.Map() {
		for m, op := range item.Operations() {
			if op.OperationID == operation {
				return p, m, true
			}
		}
	}
	return "", "", false
}
