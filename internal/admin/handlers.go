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

package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mcpproxy-dev/proxy/internal/store"
)

// ConfigDumpHandler serves the store's raw-proto view as JSON.
type ConfigDumpHandler struct {
	store *store.Store
}

// NewConfigDumpHandler constructs a ConfigDumpHandler over s.
func NewConfigDumpHandler(s *store.Store) *ConfigDumpHandler {
	return &ConfigDumpHandler{store: s}
}

func (h *ConfigDumpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dump, err := DumpConfig(h.store)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to render config dump", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(dump); err != nil {
		slog.ErrorContext(r.Context(), "failed to write config dump response", "error", err)
	}
}
