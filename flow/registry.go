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
	"fmt"
	"sync"
	"time"

	"github.com/rulego/streamflow/types"
)

// Registry tracks submitted flows by id. One mutex guards the map; flows
// carry their own synchronisation.
//
// Terminal flows stay listed until they have had no listeners for the
// retention period. A zero retention keeps them forever.
type Registry struct {
	mu        sync.Mutex
	nextID    types.FlowID
	flows     map[types.FlowID]*Flow
	retention time.Duration
	now       func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(retention time.Duration) *Registry {
	return &Registry{
		flows:     make(map[types.FlowID]*Flow),
		retention: retention,
		now:       time.Now,
	}
}

// NextID allocates a flow id. Ids start at 1 and are never reused.
func (r *Registry) NextID() types.FlowID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID
}

// Register adds a built flow. It must happen before the flow starts so the
// flow is never running unlisted.
func (r *Registry) Register(f *Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.flows[f.ID()]; exists {
		return fmt.Errorf("flow %s already registered", f.ID())
	}
	r.flows[f.ID()] = f
	r.reapLocked()
	return nil
}

// Get looks up a flow.
func (r *Registry) Get(id types.FlowID) (*Flow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flows[id]
	return f, ok
}

// Cancel stops a flow. Canceling a terminal flow is a no-op.
func (r *Registry) Cancel(id types.FlowID) error {
	f, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("cancel flow %s: %w", id, ErrFlowNotFound)
	}
	f.Cancel()
	return nil
}

// Join waits up to timeout for a flow to become terminal. It reports false
// on timeout without affecting the flow.
func (r *Registry) Join(id types.FlowID, timeout time.Duration) (bool, error) {
	f, ok := r.Get(id)
	if !ok {
		return false, fmt.Errorf("join flow %s: %w", id, ErrFlowNotFound)
	}
	return f.Wait(timeout), nil
}

// List returns the summary of every listed flow.
func (r *Registry) List() map[types.FlowID]types.FlowSummary {
	r.mu.Lock()
	r.reapLocked()
	flows := make([]*Flow, 0, len(r.flows))
	for _, f := range r.flows {
		flows = append(flows, f)
	}
	r.mu.Unlock()

	out := make(map[types.FlowID]types.FlowSummary, len(flows))
	for _, f := range flows {
		out[f.ID()] = f.Summary()
	}
	return out
}

// Flows returns every listed flow.
func (r *Registry) Flows() []*Flow {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Flow, 0, len(r.flows))
	for _, f := range r.flows {
		out = append(out, f)
	}
	return out
}

// Len returns the number of listed flows.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}

// Reap drops terminal flows past retention and returns how many it dropped.
func (r *Registry) Reap() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reapLocked()
}

func (r *Registry) reapLocked() int {
	if r.retention <= 0 {
		return 0
	}
	now := r.now()
	n := 0
	for id, f := range r.flows {
		if !f.State().IsTerminal() || f.ListenerCount() > 0 {
			continue
		}
		if end := f.EndTime(); !end.IsZero() && now.Sub(end) >= r.retention {
			delete(r.flows, id)
			n++
		}
	}
	return n
}
