/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package server exposes an engine over HTTP: flow submission and control
// as JSON endpoints, session watches over WebSocket and Prometheus metrics.
//
//	POST   /api/v1/flows               submit a YAML or JSON plan
//	GET    /api/v1/flows               list flows
//	GET    /api/v1/flows/{id}          one flow
//	DELETE /api/v1/flows/{id}          cancel a flow
//	GET    /api/v1/flows/{id}/join     wait for a flow, ?timeout=10s
//	GET    /api/v1/watch?flow=1        WebSocket stream of sink records
//	GET    /metrics                    Prometheus metrics
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/rulego/streamflow"
	"github.com/rulego/streamflow/flow"
	"github.com/rulego/streamflow/logger"
	"github.com/rulego/streamflow/plan"
	"github.com/rulego/streamflow/types"
)

const (
	maxPlanBytes       = 4 << 20
	defaultJoinTimeout = 30 * time.Second
)

// Server serves the control plane of one engine.
type Server struct {
	engine *streamflow.Engine
	config types.ServerConfig
	log    logger.Logger

	srv      *http.Server
	listener net.Listener
}

// New creates a server for engine. It does not listen until Start.
func New(engine *streamflow.Engine, config types.ServerConfig) *Server {
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	return &Server{
		engine: engine,
		config: config,
		log:    engine.Logger().Named("server"),
	}
}

// Handler returns the routes of the control plane.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/flows", s.submitFlow)
	mux.HandleFunc("GET /api/v1/flows", s.listFlows)
	mux.HandleFunc("GET /api/v1/flows/{id}", s.getFlow)
	mux.HandleFunc("DELETE /api/v1/flows/{id}", s.cancelFlow)
	mux.HandleFunc("GET /api/v1/flows/{id}/join", s.joinFlow)
	mux.HandleFunc("GET /api/v1/watch", s.watch)
	mux.Handle("GET "+s.config.MetricsPath, s.engine.Metrics().Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}
	s.listener = listener
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("serve: %v", err)
		}
	}()
	s.log.Info("control plane listening on %s", listener.Addr())
	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) submitFlow(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPlanBytes))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	p, err := plan.Parse(data, plan.FormatOf(r.Header.Get("Content-Type")))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid_plan", err.Error())
		return
	}
	id, err := s.engine.SubmitFlow(p)
	if err != nil {
		var be *flow.BuildError
		switch {
		case errors.As(err, &be):
			jsonError(w, http.StatusBadRequest, "build", err.Error())
		case errors.Is(err, streamflow.ErrEngineClosed):
			jsonError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
		default:
			jsonError(w, http.StatusInternalServerError, "internal", err.Error())
		}
		return
	}
	s.log.Info("flow %s submitted from %s", id, r.RemoteAddr)
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "data": map[string]any{"id": id}})
}

func (s *Server) listFlows(w http.ResponseWriter, r *http.Request) {
	flows := s.engine.ListFlows()
	list := make([]types.FlowSummary, 0, len(flows))
	for _, summary := range flows {
		list = append(list, summary)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	jsonSuccess(w, list)
}

func (s *Server) getFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := flowID(w, r)
	if !ok {
		return
	}
	summary, ok := s.engine.ListFlows()[id]
	if !ok {
		jsonError(w, http.StatusNotFound, "not_found", fmt.Sprintf("flow %s not found", id))
		return
	}
	jsonSuccess(w, summary)
}

func (s *Server) cancelFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := flowID(w, r)
	if !ok {
		return
	}
	if err := s.engine.CancelFlow(id); err != nil {
		writeEngineError(w, err)
		return
	}
	s.log.Info("flow %s canceled from %s", id, r.RemoteAddr)
	jsonSuccess(w, map[string]any{"id": id})
}

func (s *Server) joinFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := flowID(w, r)
	if !ok {
		return
	}
	timeout := defaultJoinTimeout
	if v := r.URL.Query().Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "bad_request", "invalid timeout: "+err.Error())
			return
		}
		timeout = d
	}
	finished, err := s.engine.JoinFlow(id, timeout)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	jsonSuccess(w, map[string]any{"finished": finished, "flow": s.engine.ListFlows()[id]})
}

func flowID(w http.ResponseWriter, r *http.Request) (types.FlowID, bool) {
	id, err := types.ParseFlowID(r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "bad_request", err.Error())
		return 0, false
	}
	return id, true
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, streamflow.ErrFlowNotFound), errors.Is(err, streamflow.ErrSessionNotFound):
		jsonError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		jsonError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("encode response: %v", err)
	}
}

func jsonError(w http.ResponseWriter, status int, errorType, message string) {
	writeJSON(w, status, map[string]any{
		"status":    "error",
		"errorType": errorType,
		"error":     message,
	})
}

func jsonSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   data,
	})
}
