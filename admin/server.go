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

// Package admin is the read-only status/metrics surface: healthz, a
// JSON dump of the routing table, and Prometheus metrics. This
// surface never mutates Table or Store; the reconfiguration
// protocol's single writer stays control.Handler.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tlsfront/tlsfront/routetable"
)

// Server is the admin HTTP listener.
type Server struct {
	ListenAddr string
	Table      *routetable.Table
	Log        *zap.Logger

	router   chi.Router
	listener net.Listener

	registry        *prometheus.Registry
	commandsApplied *prometheus.CounterVec
}

// New builds an admin Server bound to listenAddr (conventionally
// 127.0.0.1:2019, deliberately not the TLS front's address or a
// wildcard one). Each Server gets its own prometheus.Registry rather
// than registering on the global default one, so building more than
// one Server in a process (tests, or an embedder running several)
// never collides on metric registration.
func New(listenAddr string, table *routetable.Table, log *zap.Logger) *Server {
	registry := prometheus.NewRegistry()
	commandsApplied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tlsfront",
		Name:      "commands_applied_total",
		Help:      "Reconfiguration commands applied by status.",
	}, []string{"status"})
	registry.MustRegister(commandsApplied)

	s := &Server{
		ListenAddr:      listenAddr,
		Table:           table,
		Log:             log,
		registry:        registry,
		commandsApplied: commandsApplied,
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Get("/routes", s.handleRoutes)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	s.router = r
	return s
}

// ObserveStatus increments the commands_applied_total counter for a
// control.Status value's string form; kept decoupled from the control
// package's type so admin doesn't need to import it just for a label.
func (s *Server) ObserveStatus(status string) {
	s.commandsApplied.WithLabelValues(status).Inc()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type frontView struct {
	AppID     string `json:"app_id"`
	Hostname  string `json:"hostname"`
	PathBegin string `json:"path_begin"`
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	fronts := s.Table.Snapshot()
	view := make([]frontView, 0, len(fronts))
	for _, f := range fronts {
		view = append(view, frontView{AppID: f.AppID, Hostname: f.Hostname, PathBegin: f.PathBegin})
	}
	if err := json.NewEncoder(w).Encode(view); err != nil {
		s.Log.Debug("encoding routes snapshot failed", zap.Error(err))
	}
}

// Run binds (if not already bound) and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.ListenAddr)
		if err != nil {
			return err
		}
		s.listener = ln
	}

	srv := &http.Server{Handler: s.router}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(s.listener) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Addr returns the bound listener's address; Run must have been
// called, or this returns nil.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
