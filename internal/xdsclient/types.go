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
	"time"
)

const (
	// TargetTypeURL is the delta-xDS resource type URL for Target resources.
	TargetTypeURL = "type.googleapis.com/mcpproxy.dev.target.Target"

	// RBACTypeURL is the delta-xDS resource type URL for RuleSet (RBAC) resources.
	RBACTypeURL = "type.googleapis.com/mcpproxy.dev.rbac.Config"

	// Default configuration values
	DefaultNodeID                = "mcpproxy"
	DefaultCluster               = "mcpproxy-cluster"
	DefaultConnectTimeout        = 10 * time.Second
	DefaultRequestTimeout        = 5 * time.Second
	DefaultMaxReconnectDelay     = 30 * time.Second
	DefaultInitialReconnectDelay = 500 * time.Millisecond
)

// Config carries the connection parameters for the Client.
type Config struct {
	ServerAddress         string
	NodeID                string
	Cluster               string
	ConnectTimeout        time.Duration
	RequestTimeout        time.Duration
	InitialReconnectDelay time.Duration
	MaxReconnectDelay     time.Duration
	Insecure              bool
}

// WithDefaults returns a copy of c with zero-valued fields filled from the
// package defaults.
func (c Config) WithDefaults() Config {
	if c.NodeID == "" {
		c.NodeID = DefaultNodeID
	}
	if c.Cluster == "" {
		c.Cluster = DefaultCluster
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.InitialReconnectDelay == 0 {
		c.InitialReconnectDelay = DefaultInitialReconnectDelay
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = DefaultMaxReconnectDelay
	}
	return c
}

// ClientState represents the current state of the xDS client
type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateStopped
)

func (s ClientState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
