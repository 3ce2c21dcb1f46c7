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

package functions

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps function names to scalar functions and accumulators.
// A registry is created per engine and handed to the expression compiler
// and the stage builder; there is no process-wide instance.
type Registry struct {
	mu         sync.RWMutex
	scalars    map[string]ScalarFunction
	aggregates map[string]Accumulator
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		scalars:    make(map[string]ScalarFunction),
		aggregates: make(map[string]Accumulator),
	}
}

// NewBuiltinRegistry creates a registry holding every built-in function
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, fn := range builtinScalars() {
		_ = r.RegisterScalar(fn)
	}
	for _, acc := range builtinAccumulators() {
		_ = r.RegisterAggregate(acc)
	}
	return r
}

// RegisterScalar registers a scalar function. Names are case-insensitive.
func (r *Registry) RegisterScalar(fn ScalarFunction) error {
	name := strings.ToLower(fn.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.scalars[name]; exists {
		return fmt.Errorf("function %s already registered", name)
	}
	r.scalars[name] = fn
	return nil
}

// RegisterAggregate registers an accumulator. Names are case-insensitive.
func (r *Registry) RegisterAggregate(acc Accumulator) error {
	name := strings.ToLower(acc.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.aggregates[name]; exists {
		return fmt.Errorf("aggregate %s already registered", name)
	}
	r.aggregates[name] = acc
	return nil
}

// Scalar looks up a scalar function
func (r *Registry) Scalar(name string) (ScalarFunction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.scalars[strings.ToLower(name)]
	return fn, ok
}

// Aggregate looks up an accumulator
func (r *Registry) Aggregate(name string) (Accumulator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.aggregates[strings.ToLower(name)]
	return acc, ok
}

// Unregister removes a function of either kind
func (r *Registry) Unregister(name string) bool {
	name = strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, s := r.scalars[name]
	_, a := r.aggregates[name]
	delete(r.scalars, name)
	delete(r.aggregates, name)
	return s || a
}

// Scalars returns all scalar functions sorted by name
func (r *Registry) Scalars() []ScalarFunction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ScalarFunction, 0, len(r.scalars))
	for _, fn := range r.scalars {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// AggregateNames returns all accumulator names sorted
func (r *Registry) AggregateNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.aggregates))
	for name := range r.aggregates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
