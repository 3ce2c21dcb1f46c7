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

package streamflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rulego/streamflow/codec"
	"github.com/rulego/streamflow/connector"
	"github.com/rulego/streamflow/expression"
	"github.com/rulego/streamflow/flow"
	"github.com/rulego/streamflow/functions"
	"github.com/rulego/streamflow/logger"
	"github.com/rulego/streamflow/metrics"
	"github.com/rulego/streamflow/plan"
	"github.com/rulego/streamflow/types"
)

var (
	// ErrFlowNotFound is returned for unknown flow ids.
	ErrFlowNotFound = flow.ErrFlowNotFound
	// ErrSessionNotFound is returned for unknown or closed session ids.
	ErrSessionNotFound = flow.ErrSessionNotFound
	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("engine closed")
)

// Engine runs flows. It owns the registries plans are bound against, the
// flow registry and the sessions watching flows.
type Engine struct {
	config   types.Config
	log      logger.Logger
	logLevel *logger.Level

	connectors *connector.Registry
	codecs     *codec.Registry
	functions  *functions.Registry
	metrics    *metrics.Collector

	builder  *flow.Builder
	flows    *flow.Registry
	sessions *flow.SessionManager

	ctx     context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool
	running sync.WaitGroup
}

// New creates an engine.
//
// Example:
//
//	engine, err := streamflow.New(streamflow.WithReplay(), streamflow.WithDiscardLog())
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//	id, err := engine.SubmitFlow(p)
func New(options ...Option) (*Engine, error) {
	e := &Engine{
		config: types.DefaultConfig(),
		log:    logger.GetDefault(),
	}
	for _, opt := range options {
		opt(e)
	}
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if e.logLevel != nil {
		e.log.SetLevel(*e.logLevel)
	}
	if e.connectors == nil {
		e.connectors = connector.NewDefaultRegistry()
	}
	if e.codecs == nil {
		e.codecs = codec.NewDefaultRegistry()
	}
	if e.functions == nil {
		e.functions = functions.NewBuiltinRegistry()
	}
	e.metrics = metrics.NewCollector()

	e.builder = &flow.Builder{
		Config:     e.config,
		Connectors: e.connectors,
		Codecs:     e.codecs,
		Functions:  e.functions,
		Compiler:   expression.NewCompiler(e.functions),
		Logger:     e.log,
		Observer:   e.metrics,
		QueueDepth: e.metrics.SetQueueDepth,
	}
	e.flows = flow.NewRegistry(e.config.Registry.Retention)
	e.sessions = flow.NewSessionManager(e.flows, e.config.Session.BufferSize, e.log.Named("session"))
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e, nil
}

// SubmitFlow builds p and starts it. A malformed plan yields a
// *flow.BuildError and no flow is started.
func (e *Engine) SubmitFlow(p *plan.Plan) (types.FlowID, error) {
	f, err := e.build(p)
	if err != nil {
		return 0, err
	}
	if err := e.start(f); err != nil {
		return 0, err
	}
	return f.ID(), nil
}

func (e *Engine) build(p *plan.Plan) (*flow.Flow, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	f, err := e.builder.Build(p, e.flows.NextID())
	if err != nil {
		e.metrics.BuildFailed()
		e.log.Warn("reject plan: %v", err)
		return nil, err
	}
	if err := e.flows.Register(f); err != nil {
		return nil, err
	}
	return f, nil
}

func (e *Engine) start(f *flow.Flow) error {
	if err := f.Start(e.ctx); err != nil {
		return err
	}
	e.metrics.FlowSubmitted()
	e.running.Add(1)
	go func() {
		defer e.running.Done()
		<-f.Done()
		e.metrics.FlowFinished(f.ID(), f.State())
	}()
	return nil
}

// CancelFlow stops a flow. Canceling a terminal flow is a no-op.
func (e *Engine) CancelFlow(id types.FlowID) error {
	return e.flows.Cancel(id)
}

// JoinFlow waits up to timeout for a flow to become terminal. It reports
// false on timeout; the flow keeps running.
func (e *Engine) JoinFlow(id types.FlowID, timeout time.Duration) (bool, error) {
	return e.flows.Join(id, timeout)
}

// ListFlows returns the summary of every listed flow.
func (e *Engine) ListFlows() map[types.FlowID]types.FlowSummary {
	return e.flows.List()
}

// Flow returns a listed flow.
func (e *Engine) Flow(id types.FlowID) (*flow.Flow, bool) {
	return e.flows.Get(id)
}

// OpenSession creates a session that can watch flows.
func (e *Engine) OpenSession() *flow.Session {
	return e.sessions.Open()
}

// Session returns an open session.
func (e *Engine) Session(id types.SessionID) (*flow.Session, bool) {
	return e.sessions.Get(id)
}

// CloseSession stops every watch of the session and closes it.
func (e *Engine) CloseSession(id types.SessionID) error {
	return e.sessions.Close(id)
}

// WatchFlow delivers the sink records and the terminal notice of a flow to
// a session.
func (e *Engine) WatchFlow(sid types.SessionID, id types.FlowID) error {
	return e.sessions.Watch(sid, id)
}

// UnwatchFlow stops delivering a flow to a session.
func (e *Engine) UnwatchFlow(sid types.SessionID, id types.FlowID) error {
	return e.sessions.Unwatch(sid, id)
}

// Collect runs p to completion and returns every record its sinks
// produced, for local console use. A flow still running after timeout is
// canceled and the records gathered so far are returned. The error is the
// build error or the error that failed the flow.
func (e *Engine) Collect(p *plan.Plan, timeout time.Duration) ([]*types.Record, types.FlowSummary, error) {
	f, err := e.build(p)
	if err != nil {
		return nil, types.FlowSummary{}, err
	}
	results := connector.NewMemorySink()
	f.AddListener("collect", flow.SinkListener{Sink: results})
	if err := e.start(f); err != nil {
		return nil, types.FlowSummary{}, err
	}
	if !f.Wait(timeout) {
		e.log.Info("flow %s still running after %s, canceling", f.ID(), timeout)
		f.Cancel()
		<-f.Done()
	}
	f.RemoveListener("collect")
	return results.Records(), f.Summary(), f.Err()
}

// Close cancels every flow, closes every session and waits for the flows
// to stop. The engine cannot be used afterwards.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.sessions.CloseAll()
	for _, f := range e.flows.Flows() {
		f.Cancel()
	}
	e.cancel()
	e.running.Wait()
	e.log.Info("engine closed")
	return nil
}

// Config returns the engine configuration.
func (e *Engine) Config() types.Config {
	return e.config
}

// Connectors returns the registry source and sink nodes are bound against.
func (e *Engine) Connectors() *connector.Registry {
	return e.connectors
}

// Codecs returns the registry of event body codecs.
func (e *Engine) Codecs() *codec.Registry {
	return e.codecs
}

// Functions returns the registry of scalar and aggregate functions.
func (e *Engine) Functions() *functions.Registry {
	return e.functions
}

// Metrics returns the engine's Prometheus collector.
func (e *Engine) Metrics() *metrics.Collector {
	return e.metrics
}

// Logger returns the engine's logger.
func (e *Engine) Logger() logger.Logger {
	return e.log
}
