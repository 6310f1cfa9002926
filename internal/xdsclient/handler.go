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

package xdsclient

import (
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/mcpproxy-dev/proxy/internal/store"
)

// Resource is one upserted entry out of a DeltaDiscoveryResponse, already
// stripped of its envelope.
type Resource struct {
	Name    string
	Version string
	Body    *anypb.Any
}

// RejectedConfig names a resource the store refused and why, so the client
// can fold it into the frame's NACK.
type RejectedConfig struct {
	Name   string
	Reason string
}

// Handler is the update-handler contract: one implementation per subscribed
// type_url.
type Handler interface {
	// HandleBatch applies removes before upserts of the same batch, all
	// under a single store write-lock acquisition, and reports any upsert
	// that the store rejected.
	HandleBatch(upserts []Resource, removes []string) []RejectedConfig
}

// TargetHandler adapts delta-xDS Target resources into store.Store mutations.
type TargetHandler struct {
	Store *store.Store
}

func (h *TargetHandler) HandleBatch(upserts []Resource, removes []string) []RejectedConfig {
	h.Store.Lock()
	defer h.Store.Unlock()

	for _, name := range removes {
		h.Store.RemoveTarget(name)
	}

	var rejected []RejectedConfig
	for _, r := range upserts {
		if err := h.Store.InsertTarget(r.Body, r.Version); err != nil {
			rejected = append(rejected, RejectedConfig{Name: r.Name, Reason: err.Error()})
		}
	}
	return rejected
}

// RBACHandler adapts delta-xDS RuleSet (RBAC) resources into store.Store
// mutations.
type RBACHandler struct {
	Store *store.Store
}

func (h *RBACHandler) HandleBatch(upserts []Resource, removes []string) []RejectedConfig {
	h.Store.Lock()
	defer h.Store.Unlock()

	for _, name := range removes {
		h.Store.RemovePolicy(name)
	}

	var rejected []RejectedConfig
	for _, r := range upserts {
		if err := h.Store.InsertPolicy(r.Body, r.Version); err != nil {
			rejected = append(rejected, RejectedConfig{Name: r.Name, Reason: err.Error()})
		}
	}
	return rejected
}
