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
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ResourceMatch identifies which resources a Rule applies to. Name "*"
// matches any target/policy name of the given kind.
type ResourceMatch struct {
	Kind string
	Name string
}

// Rule is a single allow-rule: a resource match and an identity match.
// IdentityMatch is a claims subset the caller's identity must contain.
type Rule struct {
	ResourceMatch ResourceMatch
	IdentityMatch map[string]string
}

// RuleSet (Policy) is a named, ordered collection of allow-rules.
type RuleSet struct {
	Name     string
	Rules    []Rule
	RawProto *anypb.Any
}

type wireRuleSet struct {
	Name  string `json:"name"`
	Rules []struct {
		ResourceMatch struct {
			Kind string `json:"kind"`
			Name string `json:"name"`
		} `json:"resourceMatch"`
		IdentityMatch map[string]string `json:"identityMatch"`
	} `json:"rules"`
}

func decodeRuleSet(raw *anypb.Any) (*RuleSet, error) {
	st := &structpb.Struct{}
	if err := raw.UnmarshalTo(st); err != nil {
		return nil, fmt.Errorf("%w: not a google.protobuf.Struct: %v", ErrInvalidSchema, err)
	}

	js, err := protojson.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	var wr wireRuleSet
	if err := json.Unmarshal(js, &wr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	if wr.Name == "" {
		return nil, fmt.Errorf("%w: policy name is required", ErrMissingFields)
	}

	rs := &RuleSet{Name: wr.Name, RawProto: raw}
	for i, wrule := range wr.Rules {
		if wrule.ResourceMatch.Kind == "" || wrule.ResourceMatch.Name == "" {
			return nil, fmt.Errorf("%w: rule %d requires resourceMatch.kind and resourceMatch.name", ErrMissingFields, i)
		}
		rs.Rules = append(rs.Rules, Rule{
			ResourceMatch: ResourceMatch{
				Kind: wrule.ResourceMatch.Kind,
				Name: wrule.ResourceMatch.Name,
			},
			IdentityMatch: wrule.IdentityMatch,
		})
	}

	return rs, nil
}
