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

package flow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rulego/streamflow/logger"
	"github.com/rulego/streamflow/plan"
	"github.com/rulego/streamflow/stage"
	"github.com/rulego/streamflow/types"
)

// ErrFlowNotFound is returned for flow ids the registry does not know.
var ErrFlowNotFound = errors.New("flow not found")

// ErrAlreadyStarted is returned by Start on a flow that already runs.
var ErrAlreadyStarted = errors.New("flow already started")

// Listener receives what a flow's sink stages accept and the flow's end.
//
// OnRecord runs on the sink's goroutine; a slow listener slows the flow.
// OnTerminal runs once, after every record has been delivered.
type Listener interface {
	OnRecord(ctx context.Context, id types.FlowID, rec *types.Record)
	OnTerminal(summary types.FlowSummary)
}

// Flow is the running instance of a plan: its stages, the transports
// between them and its lifecycle.
type Flow struct {
	id     types.FlowID
	plan   *plan.Plan
	config types.Config
	log    logger.Logger

	nodes  []*runtimeNode
	byID   map[string]*runtimeNode
	timers []*runtimeNode

	queueDepth func(id types.FlowID, depth int)

	ctx    context.Context
	cancel context.CancelFunc

	started atomic.Bool
	state   atomic.Int32

	mu        sync.Mutex
	err       error
	canceled  bool
	startTime time.Time
	endTime   time.Time

	listeners atomic.Pointer[map[string]Listener]
	lmu       sync.Mutex
	finished  bool
	// pmu is held for reading while records are published so Cancel can
	// wait out deliveries already in flight.
	pmu sync.RWMutex

	done chan struct{}
}

func newFlow(id types.FlowID, p *plan.Plan, config types.Config, log logger.Logger) *Flow {
	f := &Flow{
		id:     id,
		plan:   p,
		config: config,
		log:    log,
		byID:   make(map[string]*runtimeNode, len(p.Nodes)),
		done:   make(chan struct{}),
	}
	empty := map[string]Listener{}
	f.listeners.Store(&empty)
	f.state.Store(int32(types.FlowRunning))
	return f
}

// ID returns the flow id.
func (f *Flow) ID() types.FlowID {
	return f.id
}

// Query returns the SQL text the plan was compiled from.
func (f *Flow) Query() string {
	return f.plan.Query
}

// Plan returns the plan the flow was built from.
func (f *Flow) Plan() *plan.Plan {
	return f.plan
}

func (f *Flow) State() types.FlowState {
	return types.FlowState(f.state.Load())
}

// Err returns the error that failed the flow, if any.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// EndTime returns when the flow became terminal, or the zero time.
func (f *Flow) EndTime() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endTime
}

// Done is closed once the flow is terminal and its listeners were notified.
func (f *Flow) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the flow is terminal or timeout elapses. It reports
// whether the flow finished. A negative timeout waits forever.
func (f *Flow) Wait(timeout time.Duration) bool {
	if timeout < 0 {
		<-f.done
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-f.done:
		return true
	case <-timer.C:
		return false
	}
}

// Cancel stops a running flow. It is a no-op once the flow is terminal.
//
// The flow reports CANCELED as soon as Cancel returns, and no listener
// receives a record after that; stages may still be shutting down until
// Done is closed. Cancel must not be called from a Listener.
func (f *Flow) Cancel() {
	f.mu.Lock()
	if f.err == nil && !f.canceled && !f.State().IsTerminal() {
		f.canceled = true
		f.state.Store(int32(types.FlowCanceled))
	}
	cancel := f.cancel
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	// wait for deliveries already past the context check
	f.pmu.Lock()
	f.pmu.Unlock()
}

// fail records the first error and stops every stage.
func (f *Flow) fail(err error) {
	f.mu.Lock()
	if f.err == nil && !f.canceled {
		f.err = err
		f.log.Error("flow %s failed: %v", f.id, err)
	}
	f.mu.Unlock()
	f.cancel()
}

// Stages returns the runtime stages in topological order.
func (f *Flow) Stages() []stage.Stage {
	out := make([]stage.Stage, len(f.nodes))
	for i, n := range f.nodes {
		out[i] = n.stage
	}
	return out
}

// Stage returns the stage built for plan node id.
func (f *Flow) Stage(id string) (stage.Stage, bool) {
	n, ok := f.byID[id]
	if !ok {
		return nil, false
	}
	return n.stage, true
}

// QueueDepth is the number of records buffered in the flow's queues.
func (f *Flow) QueueDepth() int {
	depth := 0
	for _, n := range f.nodes {
		depth += n.outputs.Len()
	}
	return depth
}

// Summary returns the externally visible state of the flow.
func (f *Flow) Summary() types.FlowSummary {
	f.mu.Lock()
	s := types.FlowSummary{
		ID:        f.id,
		State:     f.State(),
		Query:     f.plan.Query,
		StartTime: f.startTime,
		EndTime:   f.endTime,
	}
	if f.err != nil {
		s.Error = f.err.Error()
	}
	f.mu.Unlock()
	s.Stages = make([]types.StageStats, len(f.nodes))
	for i, n := range f.nodes {
		s.Stages[i] = n.stage.Stats()
	}
	return s
}

// AddListener attaches l under name. It returns false, without attaching,
// when the flow is already terminal.
func (f *Flow) AddListener(name string, l Listener) bool {
	f.lmu.Lock()
	defer f.lmu.Unlock()
	if f.finished {
		return false
	}
	cur := *f.listeners.Load()
	next := make(map[string]Listener, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[name] = l
	f.listeners.Store(&next)
	return true
}

// RemoveListener detaches the listener registered under name.
func (f *Flow) RemoveListener(name string) bool {
	f.lmu.Lock()
	defer f.lmu.Unlock()
	cur := *f.listeners.Load()
	if _, ok := cur[name]; !ok {
		return false
	}
	next := make(map[string]Listener, len(cur))
	for k, v := range cur {
		if k != name {
			next[k] = v
		}
	}
	f.listeners.Store(&next)
	return true
}

// ListenerCount returns the number of attached listeners.
func (f *Flow) ListenerCount() int {
	return len(*f.listeners.Load())
}

func (f *Flow) publish(ctx context.Context, rec *types.Record) {
	f.pmu.RLock()
	defer f.pmu.RUnlock()
	if ctx.Err() != nil {
		return
	}
	for _, l := range *f.listeners.Load() {
		l.OnRecord(ctx, f.id, rec)
	}
}

// finish moves the flow to its terminal state and notifies listeners.
func (f *Flow) finish() {
	f.lmu.Lock()
	f.mu.Lock()
	state := types.FlowComplete
	switch {
	case f.err != nil:
		state = types.FlowError
	case f.canceled:
		state = types.FlowCanceled
	}
	f.endTime = time.Now()
	f.state.Store(int32(state))
	f.mu.Unlock()
	f.finished = true
	listeners := *f.listeners.Load()
	f.lmu.Unlock()

	summary := f.Summary()
	f.log.Info("flow %s %s", f.id, state)
	for _, l := range listeners {
		l.OnTerminal(summary)
	}
	close(f.done)
}

// SinkListener forwards a flow's output to a connector sink, typically a
// connector.MemorySink collecting results.
type SinkListener struct {
	Sink interface {
		Push(ctx context.Context, rec *types.Record) error
	}
}

func (s SinkListener) OnRecord(ctx context.Context, _ types.FlowID, rec *types.Record) {
	_ = s.Sink.Push(ctx, rec)
}

func (s SinkListener) OnTerminal(types.FlowSummary) {}
