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

import "errors"

// Error kinds that originate in this package rather than in
// routetable (ErrHostNotFound/ErrNoBackendAvailable live there since
// routetable is what actually decides them).
var (
	// ErrNoHostGiven is returned when a request carries no Host
	// header. There is no canned answer for this: the connection is
	// simply closed and the error surfaced to the caller.
	ErrNoHostGiven = errors.New("session: request has no Host header")

	// ErrNoRequestLineGiven is returned when the request line has
	// not been parsed yet (the parser has no data for it). Same
	// client-visible behavior as ErrNoHostGiven: closed, no canned
	// answer.
	ErrNoRequestLineGiven = errors.New("session: no request line available")

	// ErrTLSAcceptFailed is returned when the handshake itself
	// errors non-recoverably. The connection is dropped silently.
	ErrTLSAcceptFailed = errors.New("session: TLS handshake failed")
)

// ErrKeepAliveUnknown is not a hard error: it records that the parser
// had not yet determined the request's keep-alive disposition at the
// point ConnectToBackend was called. Keep-alive is advisory, so this
// is logged and the connect proceeds anyway; it is exported only so
// callers can choose to log it with errors.Is if they want to
// distinguish "no keep-alive info" from "everything known".
var ErrKeepAliveUnknown = errors.New("session: front keep-alive disposition not yet known")
