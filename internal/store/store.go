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

// Package store holds the authoritative in-memory view of Targets and RBAC
// RuleSets. It is mutated only under its single writer lock and read
// lock-free by callers that have captured an owned snapshot of an entry.
package store

import (
	"context"
	"errors"
	"sync"

	"google.golang.org/protobuf/types/known/anypb"

	"github.com/mcpproxy-dev/proxy/internal/metrics"
)

// Reject reasons, wrapped by decodeTarget/decodeRuleSet and returned by the
// Insert* methods below.
var (
	ErrInvalidSchema = errors.New("invalid schema")
	ErrMissingFields = errors.New("missing fields")
)

const defaultBroadcastDepth = 16

// Store is the resource store. The zero value is not usable; construct
// with NewStore.
type Store struct {
	mu sync.RWMutex

	targets        map[string]*Target
	targetVersions map[string]string

	policies       map[string]*RuleSet
	policyVersions map[string]string

	broadcastDepth int
	subscribers    []chan string
}

// NewStore constructs an empty Store. depth is the per-subscriber broadcast
// channel backlog; 0 selects the default of 16.
func NewStore(depth int) *Store {
	if depth <= 0 {
		depth = defaultBroadcastDepth
	}
	return &Store{
		targets:        make(map[string]*Target),
		targetVersions: make(map[string]string),
		policies:       make(map[string]*RuleSet),
		policyVersions: make(map[string]string),
		broadcastDepth: depth,
	}
}

// Lock/Unlock expose the single writer lock so update handlers can hold it
// across an entire xDS batch (invariant: batches are atomic from a reader's
// perspective).
func (s *Store) Lock()   { s.mu.Lock() }
func (s *Store) Unlock() { s.mu.Unlock() }

// InsertTarget decodes raw and installs it under its own name, overwriting
// and cancelling any prior entry of the same name. Caller must hold Lock().
func (s *Store) InsertTarget(raw *anypb.Any, version string) error {
	t, err := decodeTarget(raw)
	if err != nil {
		return err
	}

	if prev, ok := s.targets[t.Name]; ok {
		prev.cancel()
	}

	t.ctx, t.cancel = context.WithCancel(context.Background())
	s.targets[t.Name] = t
	s.targetVersions[t.Name] = version
	s.notify(t.Name)
	return nil
}

// RemoveTarget fires the entry's cancellation signal and drops it. A no-op
// if the name is not present. Caller must hold Lock().
func (s *Store) RemoveTarget(name string) {
	if t, ok := s.targets[name]; ok {
		t.cancel()
		delete(s.targets, name)
		delete(s.targetVersions, name)
		s.notify(name)
	}
}

// GetTarget returns the current decoded entry for name, if any. Safe to call
// holding only RLock(), or no lock if the caller accepts a torn read (it
// does not: callers should hold RLock()).
func (s *Store) GetTarget(name string) (*Target, bool) {
	t, ok := s.targets[name]
	return t, ok
}

// TargetVersions returns a copy of the current name->version map, matching
// what initial_resource_versions must echo on the next xDS reconnect.
func (s *Store) TargetVersions() map[string]string {
	out := make(map[string]string, len(s.targetVersions))
	for k, v := range s.targetVersions {
		out[k] = v
	}
	return out
}

// InsertPolicy decodes raw and installs it under its own name. Policies own
// no cancellation signal; a change takes effect on the next RBAC check.
// Caller must hold Lock().
func (s *Store) InsertPolicy(raw *anypb.Any, version string) error {
	p, err := decodeRuleSet(raw)
	if err != nil {
		return err
	}
	s.policies[p.Name] = p
	s.policyVersions[p.Name] = version
	s.notify(p.Name)
	return nil
}

// RemovePolicy drops the named policy, if present. Caller must hold Lock().
func (s *Store) RemovePolicy(name string) {
	if _, ok := s.policies[name]; ok {
		delete(s.policies, name)
		delete(s.policyVersions, name)
		s.notify(name)
	}
}

// GetPolicy returns the current RuleSet for name, if any.
func (s *Store) GetPolicy(name string) (*RuleSet, bool) {
	p, ok := s.policies[name]
	return p, ok
}

// PolicyVersions returns a copy of the current name->version map.
func (s *Store) PolicyVersions() map[string]string {
	out := make(map[string]string, len(s.policyVersions))
	for k, v := range s.policyVersions {
		out[k] = v
	}
	return out
}

// AllPolicies returns every currently-tracked policy, for use by the RBAC
// evaluator (which takes only a read lock).
func (s *Store) AllPolicies() []*RuleSet {
	out := make([]*RuleSet, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p)
	}
	return out
}

// DumpTargets and DumpPolicies return the raw proto view for the admin
// surface, keyed by name.
func (s *Store) DumpTargets() map[string]*anypb.Any {
	out := make(map[string]*anypb.Any, len(s.targets))
	for name, t := range s.targets {
		out[name] = t.RawProto
	}
	return out
}

func (s *Store) DumpPolicies() map[string]*anypb.Any {
	out := make(map[string]*anypb.Any, len(s.policies))
	for name, p := range s.policies {
		out[name] = p.RawProto
	}
	return out
}

// RLock/RUnlock expose the read side of the lock to the RBAC evaluator and
// the session router.
func (s *Store) RLock()   { s.mu.RLock() }
func (s *Store) RUnlock() { s.mu.RUnlock() }

// Subscribe registers a new bounded channel that receives the name of every
// target or policy touched by a write. The channel is lossy: a slow
// subscriber may miss an intermediate notification but is guaranteed to
// observe current state on its next read of the store.
func (s *Store) Subscribe() <-chan string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan string, s.broadcastDepth)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// notify is called with the write lock held; it performs a non-blocking send
// to every subscriber so a slow reader never stalls a writer, and refreshes
// the store size gauges.
func (s *Store) notify(name string) {
	metrics.StoreTargetsCurrent.Set(float64(len(s.targets)))
	metrics.StorePoliciesCurrent.Set(float64(len(s.policies)))

	for _, ch := range s.subscribers {
		select {
		case ch <- name:
		default:
		}
	}
}
