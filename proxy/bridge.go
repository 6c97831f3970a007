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
	"io"
	"net"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/tlsfront/tlsfront/session"
)

// bridge re-serializes the already-parsed request onto backend (since
// ReadRequest consumed its wire bytes off client's bufio.Reader to
// produce client.Request), then copies bytes between client and
// backend until either side closes. Its behavior is intentionally
// minimal: no framing beyond what net/http.Request.Write already
// does, no timeouts, no retries.
func (s *Server) bridge(client *session.Client, backend net.Conn) {
	if err := client.Request.Write(backend); err != nil {
		client.Logger().Debug("writing request to backend failed", zap.Error(err))
		return
	}

	clientToBackend := make(chan int64, 1)
	go func() {
		n, _ := io.Copy(backend, client.Reader)
		if tcp, ok := backend.(interface{ CloseWrite() error }); ok {
			_ = tcp.CloseWrite()
		}
		clientToBackend <- n
	}()

	backendToClient, _ := io.Copy(client.Conn, backend)

	sent := <-clientToBackend
	client.Logger().Info("bridge complete",
		zap.String("sent", humanize.Bytes(uint64(sent))),
		zap.String("received", humanize.Bytes(uint64(backendToClient))),
	)
}
