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

package proxy

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tlsfront/tlsfront/routetable"
	"github.com/tlsfront/tlsfront/session"
	"github.com/tlsfront/tlsfront/tlscontext"
)

func generateCert(t *testing.T, hostname string) tls.Certificate {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: hostname},
		DNSNames:     []string{hostname},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv, Leaf: leaf}
}

func newTestServer(t *testing.T, defaultHostname string) (*Server, *tls.Certificate) {
	t.Helper()
	def := generateCert(t, defaultHostname)
	store := tlscontext.NewStore(defaultHostname, &def)
	table := routetable.New()
	srv := New("127.0.0.1:0", store, table, zaptest.NewLogger(t))
	require.NoError(t, srv.Listen())
	t.Cleanup(func() { _ = srv.Close() })
	return srv, &def
}

func dialClient(t *testing.T, addr net.Addr, serverName string) *tls.Conn {
	t.Helper()
	conn, err := tls.Dial("tcp", addr.String(), &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// runServer runs the accept loop for the duration of the test without
// the control channel or admin surface.
func runServer(t *testing.T, srv *Server) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = srv.acceptLoop(ctx)
	}()
	return ctx
}

func TestEndToEndHostNotFound(t *testing.T) {
	srv, _ := newTestServer(t, "lolcatho.st")
	runServer(t, srv)

	conn := dialClient(t, srv.Addr(), "lolcatho.st")
	_, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: unknown.example\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	require.Equal(t, 404, resp.StatusCode)
}

func TestEndToEndNoBackendAvailable(t *testing.T) {
	srv, _ := newTestServer(t, "lolcatho.st")
	srv.Table.AddFront(routetable.Front{AppID: "app_1", Hostname: "lolcatho.st", PathBegin: "/"})
	runServer(t, srv)

	conn := dialClient(t, srv.Addr(), "lolcatho.st")
	_, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: lolcatho.st\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	require.Equal(t, 503, resp.StatusCode)
}

func TestEndToEndRoutesToBackend(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backend", "app_1")
		w.WriteHeader(200)
	}))
	defer backend.Close()
	backendAddr := backend.Listener.Addr().(*net.TCPAddr)

	srv, _ := newTestServer(t, "lolcatho.st")
	srv.Table.AddFront(routetable.Front{AppID: "app_1", Hostname: "lolcatho.st", PathBegin: "/"})
	srv.Table.AddInstance("app_1", backendAddr)
	runServer(t, srv)

	conn := dialClient(t, srv.Addr(), "lolcatho.st")
	_, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: lolcatho.st\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "app_1", resp.Header.Get("X-Backend"))
}

func TestEndToEndSNIServesMatchingCertificate(t *testing.T) {
	srv, defCert := newTestServer(t, "lolcatho.st")
	aCert := generateCert(t, "a.test")
	bCert := generateCert(t, "b.test")
	srv.Store.Install("a.test", &aCert)
	srv.Store.Install("b.test", &bCert)
	runServer(t, srv)

	connA := dialClient(t, srv.Addr(), "a.test")
	require.NoError(t, connA.Handshake())
	require.Equal(t, aCert.Leaf.Raw, connA.ConnectionState().PeerCertificates[0].Raw)

	connB := dialClient(t, srv.Addr(), "b.test")
	require.NoError(t, connB.Handshake())
	require.Equal(t, bCert.Leaf.Raw, connB.ConnectionState().PeerCertificates[0].Raw)

	connDefault := dialClient(t, srv.Addr(), "unknown.test")
	require.NoError(t, connDefault.Handshake())
	require.Equal(t, defCert.Leaf.Raw, connDefault.ConnectionState().PeerCertificates[0].Raw)
}

func newFakeClient(t *testing.T) *session.Client {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	t.Cleanup(func() {
		_ = clientSide.Close()
		_ = serverSide.Close()
	})
	return session.New(serverSide, zaptest.NewLogger(t))
}

func TestConnectToBackendStagesAnswersOnFailure(t *testing.T) {
	srv, _ := newTestServer(t, "lolcatho.st")

	client := newFakeClient(t)
	_, err := srv.ConnectToBackend(context.Background(), client, "unknown.example", "/")
	require.ErrorIs(t, err, routetable.ErrHostNotFound)
	require.Equal(t, session.NotFoundAnswer, client.Answer)
}

func TestConnectToBackendDialFailureSurfacesNoBackendAvailable(t *testing.T) {
	srv, _ := newTestServer(t, "lolcatho.st")
	srv.Table.AddFront(routetable.Front{AppID: "app_1", Hostname: "a.test", PathBegin: "/"})
	unreachable, err := net.ResolveTCPAddr("tcp", "127.0.0.1:1")
	require.NoError(t, err)
	srv.Table.AddInstance("app_1", unreachable)
	srv.DialTimeout = 200 * time.Millisecond

	client := newFakeClient(t)
	_, err = srv.ConnectToBackend(context.Background(), client, "a.test", "/")
	require.ErrorIs(t, err, routetable.ErrNoBackendAvailable)
}
