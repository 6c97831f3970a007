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
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tlsfront/tlsfront/control"
)

// AdminServer is the subset of admin.Server that Run needs, kept as
// an interface here so proxy does not import admin directly (admin
// imports proxy's sibling packages instead; see admin/server.go).
type AdminServer interface {
	Run(ctx context.Context) error
}

// Run starts the accept loop and the reconfiguration handler together
// and blocks until ctx is cancelled or a Stop command arrives on
// s.Commands. admin may be nil to run without the status/metrics
// surface (e.g. in tests).
//
// There is no graceful drain: cancelling ctx, or receiving Stop, tears
// down the accept loop and the admin server immediately; in-flight
// connection goroutines are not waited on.
func (s *Server) Run(ctx context.Context, admin AdminServer) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler := &control.Handler{
		Table:    s.Table,
		Store:    s.Store,
		Log:      s.Log,
		Commands: s.Commands,
		StatusCh: s.StatusCh,
		StopFunc: cancel,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.acceptLoop(gctx)
	})
	group.Go(func() error {
		handler.Run(gctx)
		return nil
	})
	if admin != nil {
		group.Go(func() error {
			return admin.Run(gctx)
		})
	}
	group.Go(func() error {
		// listener.Accept only notices cancellation once it returns
		// an error, and it never returns on its own just because a
		// context was cancelled; closing it here is what unblocks
		// acceptLoop on Stop or on the parent ctx being cancelled.
		<-gctx.Done()
		_ = s.Close()
		return nil
	})

	// A cancelled ctx is the normal, successful
	// shutdown path (Stop or an external ctx cancellation); only
	// report genuine failures, like a failed bind, upward.
	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Close closes the listener without touching in-flight connections.
// Run's context cancellation is the normal shutdown path; Close
// exists for callers that built a Server and called Listen directly
// without Run (e.g. tests that only want Addr()).
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
