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

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// BootstrapType discriminates the two bootstrap document variants.
type BootstrapType string

const (
	BootstrapStatic BootstrapType = "static"
	BootstrapXDS    BootstrapType = "xds"
)

// ListenerConfig configures the inbound MCP Listener.
type ListenerConfig struct {
	Address string `json:"address"`
}

// NodeConfig carries the node identity sent in every xDS request.
type NodeConfig struct {
	ID      string `json:"id"`
	Cluster string `json:"cluster"`
}

// TracingConfig is accepted for forward compatibility; the core does not
// act on it today.
type TracingConfig struct {
	Enabled bool `json:"enabled"`
}

// Bootstrap is the top-level bootstrap document consumed at startup.
type Bootstrap struct {
	Type BootstrapType `json:"type"`

	// static
	Targets  []json.RawMessage `json:"targets"`
	Policies []json.RawMessage `json:"policies"`

	// xds
	ServerAddress string     `json:"serverAddress"`
	Node          NodeConfig `json:"node"`
	Insecure      bool       `json:"insecure"`

	Listener ListenerConfig `json:"listener"`
	Tracing  TracingConfig  `json:"tracing"`
}

// LoadBootstrap reads and validates the bootstrap document at source, which
// is either a local file path or an http(s) URL to download it from.
func LoadBootstrap(source string) (*Bootstrap, error) {
	var raw []byte
	if u, err := url.Parse(source); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		resp, err := http.Get(source)
		if err != nil {
			return nil, fmt.Errorf("download bootstrap from %s: %w", source, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("download bootstrap from %s: status %d", source, resp.StatusCode)
		}
		raw, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("download bootstrap from %s: %w", source, err)
		}
	} else {
		raw, err = os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read bootstrap file %s: %w", source, err)
		}
	}
	return ParseBootstrap(raw)
}

// ParseBootstrap decodes and validates an in-memory bootstrap document.
// Unknown fields are rejected.
func ParseBootstrap(raw []byte) (*Bootstrap, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var b Bootstrap
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("parse bootstrap document: %w", err)
	}

	switch b.Type {
	case BootstrapStatic:
		if len(b.Targets) == 0 && len(b.Policies) == 0 {
			return nil, fmt.Errorf("static bootstrap must declare at least one target or policy")
		}
	case BootstrapXDS:
		if b.ServerAddress == "" {
			return nil, fmt.Errorf("xds bootstrap requires serverAddress")
		}
	default:
		return nil, fmt.Errorf("bootstrap type must be %q or %q, got %q", BootstrapStatic, BootstrapXDS, b.Type)
	}

	if b.Listener.Address == "" {
		return nil, fmt.Errorf("bootstrap requires listener.address")
	}

	return &b, nil
}

// ToAny wraps a raw JSON object (a static bootstrap's inline target or
// policy definition) the same way a wire delta-xDS resource arrives: as an
// *anypb.Any around a google.protobuf.Struct, so the static path and the
// xDS path both flow through store.Store.InsertTarget/InsertPolicy.
func ToAny(raw json.RawMessage) (*anypb.Any, error) {
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("decode as google.protobuf.Struct: %w", err)
	}
	return anypb.New(st)
}
