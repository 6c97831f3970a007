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

package session

import (
	"bufio"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client is the per-connection record: the TLS stream, the parsed
// HTTP/1.1 request once available, and an optional staged canned
// answer. There is no separately-tracked response-parser state here:
// response bytes are bridged raw once a backend is connected, so
// there is nothing that could be contaminated by a prior backend's
// reply.
type Client struct {
	// ID correlates this connection's log lines (the client_id
	// field). The admin surface does not list connections.
	ID string

	Conn   net.Conn
	Reader *bufio.Reader

	State State

	// Request is populated once ReadRequest succeeds.
	Request *http.Request

	// FrontKeepAlive records whether the request asked to keep the
	// front connection alive, and whether that's known yet at all.
	// This is advisory only: it never gates ConnectToBackend.
	frontKeepAlive      bool
	frontKeepAliveKnown bool

	// Answer is the staged canned-answer payload, set via SetAnswer.
	Answer []byte

	log *zap.Logger
}

// New wraps conn (expected to be a *tls.Conn already mid- or
// post-handshake) in a fresh Client in the Handshaking state.
func New(conn net.Conn, log *zap.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		ID:     id,
		Conn:   conn,
		Reader: bufio.NewReader(conn),
		State:  Handshaking,
		log:    log.With(zap.String("client_id", id)),
	}
}

// SetAnswer stages a canned answer and transitions to
// WritingCannedAnswer, regardless of the state the client was
// previously in.
func (c *Client) SetAnswer(answer []byte) {
	c.Answer = answer
	c.State = WritingCannedAnswer
}

// ReadRequest reads and parses one HTTP/1.1 request from the
// connection using net/http's own reader. On success it transitions
// to ConnectingBackend; callers still need to check
// Host()/RequestLine() before calling a backend resolver, since a
// syntactically valid request can still lack a Host header.
func (c *Client) ReadRequest() error {
	req, err := http.ReadRequest(c.Reader)
	if err != nil {
		return err
	}
	c.Request = req
	c.frontKeepAlive = !req.Close
	c.frontKeepAliveKnown = true
	c.State = ConnectingBackend
	return nil
}

// Host returns the request's Host header, stripped of surrounding
// whitespace. ok is false if no request has been parsed yet or the
// Host header is empty.
func (c *Client) Host() (string, bool) {
	if c.Request == nil {
		return "", false
	}
	host := strings.TrimSpace(c.Request.Host)
	if host == "" {
		return "", false
	}
	return host, true
}

// RequestLine returns the method, URI, and protocol version of the
// parsed request. ok is false if no request has been parsed yet.
func (c *Client) RequestLine() (method, uri, proto string, ok bool) {
	if c.Request == nil {
		return "", "", "", false
	}
	return c.Request.Method, c.Request.URL.RequestURI(), c.Request.Proto, true
}

// FrontKeepAlive reports the request's keep-alive disposition and
// whether it is known. Advisory only: see the doc comment on the
// frontKeepAlive field.
func (c *Client) FrontKeepAlive() (alive bool, known bool) {
	return c.frontKeepAlive, c.frontKeepAliveKnown
}

// DrainCannedAnswer writes the staged answer and transitions to
// Closed. Callers are expected to close the underlying connection
// immediately afterward, matching the "Connection: close" header
// baked into both canned answers.
func (c *Client) DrainCannedAnswer() error {
	_, err := c.Conn.Write(c.Answer)
	c.State = Closed
	return err
}

// Logger returns this client's correlation-scoped logger.
func (c *Client) Logger() *zap.Logger {
	return c.log
}
