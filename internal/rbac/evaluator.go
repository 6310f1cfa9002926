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

// Package rbac implements the policy evaluator: a pure, lock-cheap function
// over the policy store. There is no deny rule; absence of a matching allow
// is a deny.
package rbac

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcpproxy-dev/proxy/internal/metrics"
	"github.com/mcpproxy-dev/proxy/internal/store"
)

// ResourceDescriptor identifies the thing a caller is attempting to reach.
type ResourceDescriptor struct {
	Kind       string // "target" for the only kind the core currently emits
	TargetName string
	Operation  string
}

// Identity is the caller's authenticated claim set, established at session
// handshake and carried unchanged through every request in that session.
// Bearer retains the caller's raw credential for passthrough forwarding;
// rule matching never consults it.
type Identity struct {
	Claims jwt.MapClaims
	Bearer string
}

// Permit reports whether any rule of any policy in s permits res for
// identity. It takes and releases its own read lock on s, since it is
// expected on the hot path for every inbound call.
func Permit(s *store.Store, res ResourceDescriptor, identity Identity) bool {
	s.RLock()
	defer s.RUnlock()
	return PermitLocked(s, res, identity)
}

// PermitLocked is the lock-free variant of Permit for callers (namely the
// Session Request Router) that already hold s.RLock() across a larger
// sequence of reads and must not re-enter the lock.
func PermitLocked(s *store.Store, res ResourceDescriptor, identity Identity) bool {
	for _, policy := range s.AllPolicies() {
		for _, rule := range policy.Rules {
			if !matchesResource(rule.ResourceMatch, res) {
				continue
			}
			if matchesIdentity(rule.IdentityMatch, identity) {
				metrics.RBACDecisionsTotal.WithLabelValues("permit").Inc()
				return true
			}
		}
	}
	metrics.RBACDecisionsTotal.WithLabelValues("deny").Inc()
	return false
}

func matchesResource(rm store.ResourceMatch, res ResourceDescriptor) bool {
	if rm.Kind != res.Kind {
		return false
	}
	return rm.Name == "*" || rm.Name == res.TargetName
}

// matchesIdentity reports whether identity's claims are a superset of
// required: every key in required must be present in identity's claims with
// an equal string value.
func matchesIdentity(required map[string]string, identity Identity) bool {
	for k, want := range required {
		got, ok := claimString(identity.Claims, k)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// claimString extracts a claim as a string, accepting the common JWT
// numeric/string encodings the same way jwt.MapClaims callers typically do.
func claimString(claims jwt.MapClaims, key string) (string, bool) {
	v, ok := claims[key]
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	default:
		return fmt.Sprintf("%v", s), true
	}
}
