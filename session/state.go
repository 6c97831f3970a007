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

// Package session implements the per-connection client state machine:
// a TLS front connection progresses from handshake through request
// parsing to either a connected backend or a staged canned answer.
package session

// State is a Client's position in its connection lifecycle.
type State int

const (
	// Handshaking is the state of a freshly accepted connection
	// whose TLS handshake has not yet completed.
	Handshaking State = iota
	// ReadingRequest is entered once the handshake completes; the
	// HTTP/1.1 request line and headers are being read.
	ReadingRequest
	// ConnectingBackend is entered once a host and request line are
	// available and a backend address has been (or is being)
	// resolved.
	ConnectingBackend
	// Streaming is entered once a plaintext connection to the chosen
	// backend is open; bytes are bridged between the two peers.
	Streaming
	// WritingCannedAnswer is entered from any state once a 404/503
	// has been staged; it is drained, then the connection closes.
	WritingCannedAnswer
	// Closed is terminal.
	Closed
)

func (s State) String() string {
	switch s {
	case Handshaking:
		return "HANDSHAKING"
	case ReadingRequest:
		return "READING_REQUEST"
	case ConnectingBackend:
		return "CONNECTING_BACKEND"
	case Streaming:
		return "STREAMING"
	case WritingCannedAnswer:
		return "WRITING_CANNED_ANSWER"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
