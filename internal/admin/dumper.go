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
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/mcpproxy-dev/proxy/internal/store"
)

// ConfigDump is the read-only JSON snapshot the admin surface serves:
// exactly what the control plane (or static bootstrap) last sent, rendered
// from the retained raw proto rather than re-derived from the decoded form.
type ConfigDump struct {
	Targets  map[string]json.RawMessage `json:"targets"`
	Policies map[string]json.RawMessage `json:"policies"`
}

// DumpConfig renders s's current raw-proto view as a ConfigDump.
func DumpConfig(s *store.Store) (*ConfigDump, error) {
	s.RLock()
	defer s.RUnlock()

	dump := &ConfigDump{
		Targets:  make(map[string]json.RawMessage, len(s.DumpTargets())),
		Policies: make(map[string]json.RawMessage, len(s.DumpPolicies())),
	}

	for name, raw := range s.DumpTargets() {
		js, err := anyToJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("render target %s: %w", name, err)
		}
		dump.Targets[name] = js
	}
	for name, raw := range s.DumpPolicies() {
		js, err := anyToJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("render policy %s: %w", name, err)
		}
		dump.Policies[name] = js
	}

	return dump, nil
}

func anyToJSON(raw *anypb.Any) (json.RawMessage, error) {
	msg, err := raw.UnmarshalNew()
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(msg)
}
