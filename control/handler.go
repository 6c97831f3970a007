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

package control

import (
	"context"

	"go.uber.org/zap"

	"github.com/tlsfront/tlsfront/routetable"
	"github.com/tlsfront/tlsfront/tlscontext"
)

// Handler applies Commands serially against Table and Store. It is
// the single writer: nothing else in this module calls Table's or
// Store's mutating methods.
type Handler struct {
	Table *routetable.Table
	Store *tlscontext.Store
	Log   *zap.Logger

	// Commands is drained until it closes or ctx is cancelled.
	Commands <-chan Command

	// StatusCh receives a best-effort ack per successfully applied
	// command; a send is dropped rather than blocking if the receiver
	// is gone. May be nil if nobody is listening.
	StatusCh chan<- Status

	// StopFunc is invoked once, synchronously, when a Stop command
	// is received, before Stopped is posted to StatusCh. It is how
	// Handler tells proxy.Server's accept loop to shut down.
	StopFunc func()
}

// Run drains Commands until ctx is cancelled or the channel closes.
// It never returns an error: malformed commands and command-specific
// failures are logged and skipped rather than propagated.
func (h *Handler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-h.Commands:
			if !ok {
				return
			}
			h.apply(cmd)
		}
	}
}

func (h *Handler) apply(cmd Command) {
	switch c := cmd.(type) {
	case AddFront:
		h.applyAddFront(c.Front)
	case RemoveFront:
		h.Table.RemoveFront(c.Front)
		h.Log.Info("removed front", zap.Stringer("front", c.Front))
		h.post(RemovedFront)
	case AddInstance:
		h.applyAddInstance(c.Instance)
	case RemoveInstance:
		h.applyRemoveInstance(c.Instance)
	case Stop:
		h.Log.Info("stop requested")
		if h.StopFunc != nil {
			h.StopFunc()
		}
		h.post(Stopped)
	default:
		h.Log.Warn("unsupported command, ignoring", zap.Any("command", cmd))
	}
}

func (h *Handler) applyAddFront(front routetable.Front) {
	cert, err := tlscontext.LoadCertificate(front.CertPath, front.KeyPath)
	if err != nil {
		h.Log.Error("rejecting front: certificate load failed",
			zap.Stringer("front", front), zap.Error(err))
		return
	}
	h.Store.Install(front.Hostname, cert)
	h.Table.AddFront(front)
	h.Log.Info("added front", zap.Stringer("front", front))
	h.post(AddedFront)
}

func (h *Handler) applyAddInstance(inst routetable.Instance) {
	addr, err := inst.Addr()
	if err != nil {
		h.Log.Error("dropping AddInstance: address did not parse",
			zap.String("app_id", inst.AppID), zap.Error(err))
		return
	}
	h.Table.AddInstance(inst.AppID, addr)
	h.Log.Info("added instance", zap.String("app_id", inst.AppID), zap.Stringer("addr", addr))
	h.post(AddedInstance)
}

func (h *Handler) applyRemoveInstance(inst routetable.Instance) {
	addr, err := inst.Addr()
	if err != nil {
		h.Log.Error("dropping RemoveInstance: address did not parse",
			zap.String("app_id", inst.AppID), zap.Error(err))
		return
	}
	if !h.Table.HasApp(inst.AppID) {
		h.Log.Warn("no instances registered for app_id", zap.String("app_id", inst.AppID))
	}
	h.Table.RemoveInstance(inst.AppID, addr)
	h.Log.Info("removed instance", zap.String("app_id", inst.AppID), zap.Stringer("addr", addr))
	h.post(RemovedInstance)
}

// post sends status on StatusCh without blocking forever if nobody is
// listening; a full, unbuffered channel with no reader would wedge
// the only goroutine allowed to mutate Table/Store.
func (h *Handler) post(status Status) {
	if h.StatusCh == nil {
		return
	}
	select {
	case h.StatusCh <- status:
	default:
	}
}
