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

// Package listener provides the inbound side of the proxy: a newline-
// delimited JSON session transport implementing session.Listener. The
// handshake line establishes the caller's identity; every following line is
// one call request.
package listener

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcpproxy-dev/proxy/internal/rbac"
	"github.com/mcpproxy-dev/proxy/internal/session"
)

const maxLineBytes = 1024 * 1024

// TCPListener accepts newline-delimited JSON MCP sessions over TCP,
// optionally wrapped in TLS.
type TCPListener struct {
	ln net.Listener
}

// Listen binds address immediately so a bind failure is fatal at startup.
// A non-nil tlsConfig terminates TLS on every accepted connection.
func Listen(address string, tlsConfig *tls.Config) (*TCPListener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("bind listener on %s: %w", address, err)
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}
	return &TCPListener{ln: ln}, nil
}

// Addr returns the bound address, useful when address specified port 0.
func (l *TCPListener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting new sessions. In-flight sessions are unaffected.
func (l *TCPListener) Close() error {
	return l.ln.Close()
}

// Accept blocks for the next session, performing the handshake before
// returning it. Cancelling ctx closes the listener and unblocks Accept.
func (l *TCPListener) Accept(ctx context.Context) (session.Session, error) {
	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("accept session: %w", err)
		}

		sess, err := newTCPSession(conn)
		if err != nil {
			// a failed handshake poisons only that connection
			_ = conn.Close()
			continue
		}
		return sess, nil
	}
}

// handshake is the first line of every session.
type handshake struct {
	Identity map[string]any `json:"identity"`
	Bearer   string         `json:"bearer"`
}

// wireRequest is one call request line.
type wireRequest struct {
	ID        string         `json:"id"`
	Target    string         `json:"target"`
	Operation string         `json:"operation"`
	Args      map[string]any `json:"args"`
}

type tcpSession struct {
	conn     net.Conn
	scanner  *bufio.Scanner
	identity rbac.Identity
}

func newTCPSession(conn net.Conn) (*tcpSession, error) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read handshake: %w", err)
		}
		return nil, fmt.Errorf("connection closed before handshake")
	}

	var hs handshake
	if err := json.Unmarshal(scanner.Bytes(), &hs); err != nil {
		return nil, fmt.Errorf("decode handshake: %w", err)
	}

	return &tcpSession{
		conn:    conn,
		scanner: scanner,
		identity: rbac.Identity{
			Claims: jwt.MapClaims(hs.Identity),
			Bearer: hs.Bearer,
		},
	}, nil
}

func (s *tcpSession) Identity() rbac.Identity {
	return s.identity
}

func (s *tcpSession) Recv() (*session.CallRequest, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return nil, fmt.Errorf("read request: %w", err)
		}
		return nil, fmt.Errorf("session closed by peer")
	}

	var wr wireRequest
	if err := json.Unmarshal(s.scanner.Bytes(), &wr); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	return &session.CallRequest{
		ID:         wr.ID,
		TargetName: wr.Target,
		Operation:  wr.Operation,
		Args:       wr.Args,
	}, nil
}

func (s *tcpSession) Send(resp session.Response) error {
	line, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if _, err := s.conn.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func (s *tcpSession) Close() error {
	return s.conn.Close()
}
