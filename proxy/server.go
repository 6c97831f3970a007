// Copyright 2024 The tlsfront Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package proxy is the TLS-terminating accept path and the server
// configuration that ties the routing table, the certificate store,
// and the reconfiguration handler together.
package proxy

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/tlsfront/tlsfront/control"
	"github.com/tlsfront/tlsfront/routetable"
	"github.com/tlsfront/tlsfront/session"
	"github.com/tlsfront/tlsfront/tlscontext"
)

// Server owns the bound listener, the certificate store, and the
// routing table, and exposes accept / connect-to-backend / notify to
// whatever drives the event loop (here, Run's own goroutines, since
// Go's netpoller plays that role).
type Server struct {
	// ListenAddr is the TLS front's bind address.
	ListenAddr string

	// DialTimeout bounds the plaintext connect to a chosen backend.
	// A connect that never resolves would otherwise wedge the
	// connection's goroutine forever; zero means no timeout.
	DialTimeout time.Duration

	Store *tlscontext.Store
	Table *routetable.Table

	Log *zap.Logger

	// Commands/StatusCh are handed to a control.Handler started by
	// Run alongside the accept loop.
	Commands <-chan control.Command
	StatusCh chan<- control.Status

	tlsConfig *tls.Config
	listener  net.Listener
}

// New builds a Server. The returned Server is not listening yet;
// call Run.
func New(listenAddr string, store *tlscontext.Store, table *routetable.Table, log *zap.Logger) *Server {
	s := &Server{
		ListenAddr:  listenAddr,
		DialTimeout: 10 * time.Second,
		Store:       store,
		Table:       table,
		Log:         log,
	}
	s.tlsConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		GetCertificate:     store.GetCertificate,
		GetConfigForClient: store.GetConfigForClient,
	}
	return s
}

// Listen binds the TLS listener. Separated from Run so tests and the
// admin surface can learn the actual bound address (e.g. with
// ListenAddr ":0") before the accept loop starts.
func (s *Server) Listen() error {
	raw, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return fmt.Errorf("proxy: binding %s: %w", s.ListenAddr, err)
	}
	s.listener = tls.NewListener(raw, s.tlsConfig)
	return nil
}

// Addr returns the bound listener's address. Listen must have
// succeeded first.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// acceptLoop drains the listener until ctx is cancelled, spawning one
// goroutine per accepted connection; the netpoller is what re-invokes
// Accept on further readiness.
func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("proxy: accept: %w", err)
		}
		go s.handleConnection(ctx, conn)
	}
}

// handleConnection drives one Client through its state machine, from
// Handshaking to either Streaming or WritingCannedAnswer, then Closed.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		// Listen always wraps with tls.NewListener, so this only
		// fires if a test hands handleConnection a raw net.Conn.
		tlsConn = tls.Server(conn, s.tlsConfig)
	}

	client := session.New(tlsConn, s.Log)
	defer func() {
		client.State = session.Closed
		_ = tlsConn.Close()
	}()
	// Cancelling ctx (Stop) drops the connection instead of waiting
	// for either peer to finish.
	stopClientWatch := context.AfterFunc(ctx, func() { _ = tlsConn.Close() })
	defer stopClientWatch()

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		client.Logger().Debug("tls handshake failed", zap.Error(fmt.Errorf("%w: %v", session.ErrTLSAcceptFailed, err)))
		return
	}

	client.State = session.ReadingRequest
	if err := client.ReadRequest(); err != nil {
		client.Logger().Debug("reading request failed", zap.Error(err))
		return
	}

	host, ok := client.Host()
	if !ok {
		client.Logger().Debug("closing connection", zap.Error(session.ErrNoHostGiven))
		return
	}
	method, uri, _, ok := client.RequestLine()
	if !ok {
		client.Logger().Debug("closing connection", zap.Error(session.ErrNoRequestLineGiven))
		return
	}
	if _, known := client.FrontKeepAlive(); !known {
		client.Logger().Debug("keep-alive disposition unknown, proceeding anyway", zap.Error(session.ErrKeepAliveUnknown))
	}

	backend, err := s.ConnectToBackend(ctx, client, host, uri)
	if err != nil {
		client.Logger().Info("routing failed", zap.String("method", method), zap.String("uri", uri), zap.Error(err))
		if len(client.Answer) > 0 {
			if werr := client.DrainCannedAnswer(); werr != nil {
				client.Logger().Debug("writing canned answer failed", zap.Error(werr))
			}
		}
		return
	}
	defer backend.Close()
	stopBackendWatch := context.AfterFunc(ctx, func() { _ = backend.Close() })
	defer stopBackendWatch()

	client.State = session.Streaming
	s.bridge(client, backend)
}

// ConnectToBackend resolves host+uri to a backend address via Table
// and dials it. On a routing miss it stages the matching canned
// answer on client; on a dial failure it stages 503 and returns
// routetable.ErrNoBackendAvailable, with no retry.
func (s *Server) ConnectToBackend(ctx context.Context, client *session.Client, host, uri string) (net.Conn, error) {
	addr, err := s.Table.BackendFromRequest(host, uri)
	if err != nil {
		switch {
		case err == routetable.ErrHostNotFound:
			client.SetAnswer(session.NotFoundAnswer)
		case err == routetable.ErrNoBackendAvailable:
			client.SetAnswer(session.ServiceUnavailableAnswer)
		}
		return nil, err
	}

	dialer := net.Dialer{Timeout: s.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		client.SetAnswer(session.ServiceUnavailableAnswer)
		return nil, fmt.Errorf("proxy: dialing backend %s: %w: %v", addr, routetable.ErrNoBackendAvailable, err)
	}
	return conn, nil
}
