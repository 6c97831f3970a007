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

// Package tlscontext holds the per-hostname TLS certificate store
// consulted during the handshake's Server Name Indication callback.
//
// The store is the only structure in this module that is read from
// inside crypto/tls's handshake callbacks: crypto/tls invokes GetConfigForClient
// (or GetCertificate) on whatever goroutine is servicing a given
// handshake, so reads must never block on I/O or on a lock held across
// I/O. Writes (Install) are expected to come from a single goroutine
// (the reconfiguration handler); many concurrent readers are always
// safe.
package tlscontext

import (
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
)

// Store maps a hostname to the TLS certificate that should be served
// for it, plus one default certificate used for handshakes where SNI
// is absent or unmatched.
//
// Store never mutates a certificate in place; Install replaces the
// map entry wholesale, so a handshake that already read a
// *tls.Certificate value out of the map keeps using it even if a
// concurrent Install changes what subsequent lookups see. Nothing is
// ever torn down underneath a live certificate; it is only replaced
// in the map for future lookups, so a handshake already in flight on
// a given SNI always completes with the certificate it started with.
type Store struct {
	mu sync.RWMutex

	// DefaultHostname is an advisory label for the default
	// certificate. It has no effect on lookup; it exists so operators
	// can tell, from a log line, which hostname the default
	// certificate was minted for.
	DefaultHostname string

	defaultCert *tls.Certificate
	byHostname  map[string]*tls.Certificate
}

// NewStore builds a Store around defaultCert, which is served for any
// SNI name with no installed certificate (including the initial
// ClientHello of a handshake whose SNI hasn't been parsed yet).
func NewStore(defaultHostname string, defaultCert *tls.Certificate) *Store {
	return &Store{
		DefaultHostname: defaultHostname,
		defaultCert:     defaultCert,
		byHostname:      make(map[string]*tls.Certificate),
	}
}

// Install adds or replaces the certificate for hostname. Install is
// the only method that mutates the store and must only be called from
// the reconfiguration handler's goroutine (single-writer discipline;
// see package doc).
func (s *Store) Install(hostname string, cert *tls.Certificate) {
	hostname = strings.ToLower(hostname)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHostname[hostname] = cert
}

// Lookup returns the certificate installed for hostname, if any. It
// does not fall back to the default; callers that want "keep the
// default on a miss" behavior should use GetCertificate or
// GetConfigForClient instead.
func (s *Store) Lookup(hostname string) (*tls.Certificate, bool) {
	hostname = strings.ToLower(hostname)
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.byHostname[hostname]
	return cert, ok
}

// Has reports whether a certificate is installed for hostname, without
// copying it out. Used by tests to confirm AddFront actually took
// effect.
func (s *Store) Has(hostname string) bool {
	_, ok := s.Lookup(hostname)
	return ok
}

// GetCertificate satisfies tls.Config.GetCertificate. It is safe to
// call concurrently and performs no I/O: everything it needs is
// already resident in s.byHostname or s.defaultCert.
//
// A missing hostname keeps the default certificate and still returns
// a non-error result. The client may reject the resulting chain
// during its own verification, but that is the client's problem, not
// the handshake callback's.
func (s *Store) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if hello.ServerName != "" {
		if cert, ok := s.Lookup(hello.ServerName); ok {
			return cert, nil
		}
	}
	if s.defaultCert == nil {
		return nil, fmt.Errorf("tlscontext: no certificate available for %q and no default installed", hello.ServerName)
	}
	return s.defaultCert, nil
}

// GetConfigForClient satisfies tls.Config.GetConfigForClient. Returning
// nil tells crypto/tls to keep using the *tls.Config it was invoked
// from, which already has GetCertificate wired to this store. This
// hook exists mainly to let a future per-hostname tls.Config diverge
// (minimum version, cipher suites) without changing the accept path.
// For now every hostname shares one tls.Config and only the
// certificate varies, so GetConfigForClient always returns nil, nil.
func (s *Store) GetConfigForClient(*tls.ClientHelloInfo) (*tls.Config, error) {
	return nil, nil
}
