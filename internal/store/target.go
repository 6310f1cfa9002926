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

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// BackendAuth enumerates the supported ways an SSE target's own inbound
// authentication is propagated to the backend.
type BackendAuth string

const (
	// BackendAuthPassthrough forwards the caller's bearer token unchanged.
	BackendAuthPassthrough BackendAuth = "passthrough"
)

// SseSpec describes an HTTP/SSE-speaking outbound target.
type SseSpec struct {
	Host        string
	Port        int
	Path        string
	Headers     map[string]string
	BackendAuth BackendAuth
}

// StdioSpec describes a locally-spawned stdio child process target.
type StdioSpec struct {
	Cmd  string
	Args []string
	Env  map[string]string
}

// OpenAPISpec describes an OpenAPI schema-backed HTTP target.
type OpenAPISpec struct {
	Schema  string
	BaseURL string
}

// Target is a named outbound endpoint. Exactly one of Sse, Stdio or OpenAPI
// is non-nil.
type Target struct {
	Name    string
	Sse     *SseSpec
	Stdio   *StdioSpec
	OpenAPI *OpenAPISpec

	RawProto *anypb.Any

	ctx    context.Context
	cancel context.CancelFunc
}

// Context returns the cancellation context bound to this target entry. It is
// cancelled the instant the entry is replaced or removed from the store.
func (t *Target) Context() context.Context {
	return t.ctx
}

// wireTarget is the JSON shape a Target's *anypb.Any (wrapping a
// google.protobuf.Struct) decodes into.
type wireTarget struct {
	Name string `json:"name"`
	Sse  *struct {
		Host        string            `json:"host"`
		Port        int               `json:"port"`
		Path        string            `json:"path"`
		Headers     map[string]string `json:"headers"`
		BackendAuth string            `json:"backendAuth"`
	} `json:"sse"`
	Stdio *struct {
		Cmd  string            `json:"cmd"`
		Args []string          `json:"args"`
		Env  map[string]string `json:"env"`
	} `json:"stdio"`
	OpenAPI *struct {
		Schema  string `json:"schema"`
		BaseURL string `json:"baseUrl"`
	} `json:"openapi"`
}

// decodeTarget unwraps the Any's embedded Struct and validates it into a
// Target. It never mutates raw; the ctx/cancel pair is attached by the store
// at insertion time.
func decodeTarget(raw *anypb.Any) (*Target, error) {
	st := &structpb.Struct{}
	if err := raw.UnmarshalTo(st); err != nil {
		return nil, fmt.Errorf("%w: not a google.protobuf.Struct: %v", ErrInvalidSchema, err)
	}

	js, err := protojson.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	var wt wireTarget
	if err := json.Unmarshal(js, &wt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	if wt.Name == "" {
		return nil, fmt.Errorf("%w: target name is required", ErrMissingFields)
	}

	variants := 0
	t := &Target{Name: wt.Name, RawProto: raw}

	if wt.Sse != nil {
		variants++
		if wt.Sse.Host == "" || wt.Sse.Port < 1 || wt.Sse.Port > 65535 {
			return nil, fmt.Errorf("%w: sse target requires host and port in 1..65535", ErrMissingFields)
		}
		auth := BackendAuth(wt.Sse.BackendAuth)
		if auth != "" && auth != BackendAuthPassthrough {
			return nil, fmt.Errorf("%w: sse target has unsupported backendAuth %q", ErrInvalidSchema, wt.Sse.BackendAuth)
		}
		t.Sse = &SseSpec{
			Host:        wt.Sse.Host,
			Port:        wt.Sse.Port,
			Path:        wt.Sse.Path,
			Headers:     wt.Sse.Headers,
			BackendAuth: auth,
		}
	}
	if wt.Stdio != nil {
		variants++
		if wt.Stdio.Cmd == "" {
			return nil, fmt.Errorf("%w: stdio target requires cmd", ErrMissingFields)
		}
		t.Stdio = &StdioSpec{Cmd: wt.Stdio.Cmd, Args: wt.Stdio.Args, Env: wt.Stdio.Env}
	}
	if wt.OpenAPI != nil {
		variants++
		if wt.OpenAPI.Schema == "" || wt.OpenAPI.BaseURL == "" {
			return nil, fmt.Errorf("%w: openapi target requires schema and baseUrl", ErrMissingFields)
		}
		if err := validateOpenAPISchema(wt.OpenAPI.Schema); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
		}
		t.OpenAPI = &OpenAPISpec{Schema: wt.OpenAPI.Schema, BaseURL: wt.OpenAPI.BaseURL}
	}

	if variants != 1 {
		return nil, fmt.Errorf("%w: target must set exactly one of sse, stdio, openapi", ErrMissingFields)
	}

	return t, nil
}
