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

// Package xdsclient implements the delta-xDS client: a long-lived
// bidirectional gRPC stream against an aggregated discovery service that
// reconciles Target and RBAC resources into the resource store via the
// update handlers in handler.go.
package xdsclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	discoveryv3 "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mcpproxy-dev/proxy/internal/metrics"
	"github.com/mcpproxy-dev/proxy/internal/store"
)

// subscription tracks the per-type delta-xDS state the client must echo on
// every request: resource versions it currently retains, the last server
// nonce, and whether the initial snapshot has been sent on this stream.
type subscription struct {
	typeURL                string
	handler                Handler
	versions               func() map[string]string
	nonce                  string
	initialVersionsSentNow bool
	acked                  bool
}

// Client is the delta-xDS client.
type Client struct {
	cfg     Config
	store   *store.Store
	subs    []*subscription
	reconn  *ReconnectManager
	conn    *grpc.ClientConn

	mu    sync.Mutex
	state ClientState

	readyOnce sync.Once
	readyCh   chan struct{}
}

// NewClient wires a Client against s, subscribing to the Target and RBAC
// type URLs.
func NewClient(cfg Config, s *store.Store) *Client {
	cfg = cfg.WithDefaults()
	c := &Client{
		cfg:     cfg,
		store:   s,
		reconn:  NewReconnectManager(&cfg),
		state:   StateDisconnected,
		readyCh: make(chan struct{}),
	}
	c.subs = []*subscription{
		{typeURL: TargetTypeURL, handler: &TargetHandler{Store: s}, versions: s.TargetVersions},
		{typeURL: RBACTypeURL, handler: &RBACHandler{Store: s}, versions: s.PolicyVersions},
	}
	return c
}

// Ready returns a channel that closes after the first successful ACK of
// every subscribed type's initial batch.
func (c *Client) Ready() <-chan struct{} {
	return c.readyCh
}

func (c *Client) setState(s ClientState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the client's current connection state.
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run drives the Disconnected -> Opening(Connecting) -> Streaming state
// machine until ctx is cancelled, reconnecting with backoff on every
// transport error.
func (c *Client) Run(ctx context.Context) error {
	defer c.setState(StateStopped)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.setState(StateConnecting)
		if err := c.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if hint := streamErrorHint(err); hint != "" {
				slog.WarnContext(ctx, "xds stream ended, reconnecting", "error", err, "hint", hint)
			} else {
				slog.WarnContext(ctx, "xds stream ended, reconnecting", "error", err)
			}
		}

		c.setState(StateReconnecting)
		metrics.XDSReconnectsTotal.Inc()
		if err := c.reconn.WaitWithContext(ctx); err != nil {
			return err
		}
	}
}

// runOnce opens one connection and streams until it errors or ctx is done.
func (c *Client) runOnce(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	var dialOpts []grpc.DialOption
	if c.cfg.Insecure {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
	}

	conn, err := grpc.DialContext(dialCtx, c.cfg.ServerAddress, dialOpts...)
	if err != nil {
		return fmt.Errorf("dial control plane: %w", err)
	}
	c.conn = conn
	defer conn.Close()

	client := discoveryv3.NewAggregatedDiscoveryServiceClient(conn)
	stream, err := client.DeltaAggregatedResources(ctx)
	if err != nil {
		return fmt.Errorf("open delta stream: %w", err)
	}

	c.setState(StateConnected)
	c.reconn.Reset()

	// Seed warm-reconnect: one initial DeltaDiscoveryRequest per subscribed
	// type, declaring everything the store currently retains so the server
	// only resends what changed.
	for _, sub := range c.subs {
		sub.nonce = ""
		req := c.buildInitialRequest(sub)
		if err := stream.Send(req); err != nil {
			return fmt.Errorf("send initial request for %s: %w", sub.typeURL, err)
		}
	}

	for {
		resp, err := stream.Recv()
		if err != nil {
			return fmt.Errorf("recv delta response: %w", err)
		}
		c.handleResponse(ctx, stream, resp)
	}
}

func (c *Client) buildInitialRequest(sub *subscription) *discoveryv3.DeltaDiscoveryRequest {
	sub.initialVersionsSentNow = true
	return &discoveryv3.DeltaDiscoveryRequest{
		Node: &corev3.Node{
			Id:      c.cfg.NodeID,
			Cluster: c.cfg.Cluster,
		},
		TypeUrl:                 sub.typeURL,
		ResourceNamesSubscribe:  []string{"*"},
		InitialResourceVersions: sub.versions(),
		ResponseNonce:           sub.nonce,
	}
}

// deltaStream is the subset of the generated bidi-stream client this package
// exercises; narrowed for testability.
type deltaStream interface {
	Send(*discoveryv3.DeltaDiscoveryRequest) error
	Recv() (*discoveryv3.DeltaDiscoveryResponse, error)
}

func (c *Client) handleResponse(ctx context.Context, stream deltaStream, resp *discoveryv3.DeltaDiscoveryResponse) {
	sub := c.subForType(resp.GetTypeUrl())
	if sub == nil {
		slog.WarnContext(ctx, "xds response for unknown type_url, nacking", "type_url", resp.GetTypeUrl())
		_ = stream.Send(&discoveryv3.DeltaDiscoveryRequest{
			TypeUrl:       resp.GetTypeUrl(),
			ResponseNonce: resp.GetNonce(),
			ErrorDetail:   statusFor("unknown type_url"),
		})
		return
	}

	var upserts []Resource
	for _, res := range resp.GetResources() {
		upserts = append(upserts, Resource{
			Name:    res.GetName(),
			Version: res.GetVersion(),
			Body:    res.GetResource(),
		})
	}

	rejected := sub.handler.HandleBatch(upserts, resp.GetRemovedResources())

	req := &discoveryv3.DeltaDiscoveryRequest{
		Node:          &corev3.Node{Id: c.cfg.NodeID, Cluster: c.cfg.Cluster},
		TypeUrl:       sub.typeURL,
		ResponseNonce: resp.GetNonce(),
	}
	outcome := "ack"
	if len(rejected) > 0 {
		outcome = "nack"
		req.ErrorDetail = statusFor(fmt.Sprintf("%s: %s", rejected[0].Name, rejected[0].Reason))
		slog.WarnContext(ctx, "nacking delta frame", "type_url", sub.typeURL, "rejected", rejected)
	}
	metrics.XDSBatchesTotal.WithLabelValues(sub.typeURL, outcome).Inc()

	sub.nonce = resp.GetNonce()
	if err := stream.Send(req); err != nil {
		slog.ErrorContext(ctx, "failed to ack/nack delta frame", "error", err)
		return
	}

	if len(rejected) == 0 {
		sub.acked = true
		c.markReadyIfAllAcked()
	}
}

func (c *Client) subForType(typeURL string) *subscription {
	for _, s := range c.subs {
		if s.typeURL == typeURL {
			return s
		}
	}
	return nil
}

// markReadyIfAllAcked closes the readiness channel once every subscribed
// type has had its initial batch accepted, so callers can gate external
// traffic on a fully-populated store.
func (c *Client) markReadyIfAllAcked() {
	for _, s := range c.subs {
		if !s.acked {
			return
		}
	}
	c.readyOnce.Do(func() { close(c.readyCh) })
}
