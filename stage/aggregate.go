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

package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/rulego/streamflow/expression"
	"github.com/rulego/streamflow/functions"
	"github.com/rulego/streamflow/plan"
	"github.com/rulego/streamflow/state"
	"github.com/rulego/streamflow/types"
)

// countStar is the value COUNT(*) folds for every record.
var countStar interface{} = true

type aggregateCall struct {
	name    string
	acc     functions.Accumulator
	arg     expression.Evaluator // nil for COUNT(*)
	argType types.Type
}

// outputSource says where an output field comes from.
type outputSource struct {
	group int // index into group keys, or -1
	call  int // index into calls, or -1
	input int // index into the input record, or -1
}

// Aggregate maintains bucketed accumulator state per group key and emits,
// for every input record, the aggregates over that record's window as it
// stands after the record was added.
//
// A node without a window aggregates over everything its group has seen and
// needs no eviction.
type Aggregate struct {
	base
	window     *types.WindowSpec
	groupBy    []expression.Evaluator
	calls      []aggregateCall
	store      *state.BucketStore
	schema     types.Schema
	outputs    []outputSource
	evictEvery int64

	latest    int64
	seen      bool
	lastEvict int64
}

// NewAggregate compiles the node's group keys and aggregate calls against
// the input schema.
func NewAggregate(node *plan.Node, input types.Schema, env Env) (*Aggregate, error) {
	env = env.withDefaults()
	a := &Aggregate{
		window:     node.Window,
		schema:     node.OutputFields,
		evictEvery: env.EvictEveryMillis,
	}
	a.base = newBase(node, env)

	groupIdx := make(map[string]int, len(node.GroupBy))
	for i, g := range node.GroupBy {
		ev, err := env.Compiler.Compile(g.Expr)
		if err != nil {
			return nil, fmt.Errorf("aggregate %s: group key %d: %w", node.ID, i, err)
		}
		a.groupBy = append(a.groupBy, ev)
		name := g.Name
		if name == "" {
			name = strings.TrimSpace(g.Expr)
		}
		groupIdx[name] = i
	}

	callIdx := make(map[string]int, len(node.Aggregates))
	for i, spec := range node.Aggregates {
		call, err := newAggregateCall(spec, input, env)
		if err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", node.ID, err)
		}
		a.calls = append(a.calls, call)
		callIdx[spec.Name] = i
	}

	for _, f := range node.OutputFields {
		src := outputSource{group: -1, call: -1, input: -1}
		if i, ok := groupIdx[f.Name]; ok {
			src.group = i
		} else if i, ok := callIdx[f.Name]; ok {
			src.call = i
		} else if i := input.IndexOf(f.Name); i >= 0 {
			src.input = i
		} else {
			return nil, fmt.Errorf("aggregate %s: output field %s is neither a group key, an aggregate nor an input field", node.ID, f.Name)
		}
		a.outputs = append(a.outputs, src)
	}

	width := env.BucketMillis
	if node.Window != nil {
		width = node.Window.BucketWidth(env.BucketMillis)
	}
	a.store = state.NewBucketStore(width, len(a.calls))
	return a, nil
}

func newAggregateCall(spec plan.Aggregate, input types.Schema, env Env) (aggregateCall, error) {
	acc, ok := env.Functions.Aggregate(spec.Func)
	if !ok {
		return aggregateCall{}, fmt.Errorf("unknown aggregate function %q", spec.Func)
	}
	call := aggregateCall{name: spec.Name, acc: acc}
	if spec.Arg == "" || spec.Arg == "*" {
		if !strings.EqualFold(spec.Func, "count") {
			return aggregateCall{}, fmt.Errorf("%s(*) is not supported", spec.Func)
		}
		return call, nil
	}
	ev, err := env.Compiler.Compile(spec.Arg)
	if err != nil {
		return aggregateCall{}, fmt.Errorf("%s argument: %w", spec.Name, err)
	}
	call.arg = ev
	switch {
	case spec.ArgType != nil:
		call.argType = *spec.ArgType
	default:
		if ref, isField := ev.(expression.FieldRef); isField {
			if i := input.IndexOf(string(ref)); i >= 0 {
				call.argType = input[i].Type
			}
		}
	}
	return call, nil
}

func (a *Aggregate) RequiresTimer() bool {
	return a.window != nil
}

func (a *Aggregate) Process(ctx context.Context, _ int, rec *types.Record, emit Emitter) error {
	a.received()
	keys := make([]interface{}, len(a.groupBy))
	for i, g := range a.groupBy {
		v, err := g.Eval(rec)
		if err != nil {
			return a.fail(err)
		}
		keys[i] = v
	}
	key := types.NewGroupKey(keys...)
	ts := rec.Timestamp

	slice := a.store.GetOrCreate(key, ts)
	for i, c := range a.calls {
		v := countStar
		if c.arg != nil {
			var err error
			if v, err = c.arg.Eval(rec); err != nil {
				return a.fail(err)
			}
		}
		if err := c.acc.AddToBucket(v, slice.Buckets[i], c.argType); err != nil {
			return a.fail(err)
		}
	}

	var slices []*state.Slice
	if a.window != nil {
		w := a.window.Around(ts)
		slices = a.store.Range(key, w.Start, w.End)
	} else {
		slices = a.store.All(key)
	}
	results := make([]interface{}, len(a.calls))
	buckets := make([]*functions.Bucket, len(slices))
	for i, c := range a.calls {
		for j, sl := range slices {
			buckets[j] = sl.Buckets[i]
		}
		res, err := c.acc.FinishWindow(buckets, c.argType)
		if err != nil {
			return a.fail(err)
		}
		results[i] = res
	}

	values := make([]interface{}, len(a.outputs))
	for i, src := range a.outputs {
		switch {
		case src.group >= 0:
			values[i] = keys[src.group]
		case src.call >= 0:
			values[i] = results[src.call]
		default:
			values[i] = rec.Values[src.input]
		}
	}
	out, err := types.BuildRecord(a.schema, ts, values)
	if err != nil {
		return a.fail(err)
	}

	a.observe(ts)
	if err := a.emit(ctx, emit, out); err != nil {
		return err
	}
	if a.evictEvery > 0 && a.window != nil && a.latest-a.lastEvict >= a.evictEvery {
		a.evict()
	}
	return nil
}

func (a *Aggregate) observe(ts int64) {
	if !a.seen {
		a.seen = true
		a.latest = ts
		a.lastEvict = ts
		return
	}
	if ts > a.latest {
		a.latest = ts
	}
}

// Tick drops buckets that end at or before latest event time minus the
// preceding bound.
func (a *Aggregate) Tick(context.Context) error {
	if a.window != nil {
		a.evict()
	}
	return nil
}

func (a *Aggregate) evict() {
	if !a.seen {
		return
	}
	n := a.store.Evict(a.latest - a.window.PrecedingMillis)
	a.lastEvict = a.latest
	if n > 0 {
		a.log.Debug("evicted %d buckets below %d", n, a.latest-a.window.PrecedingMillis)
	}
	a.evicted(n)
}

// StateSize is the number of live buckets.
func (a *Aggregate) StateSize() int {
	return a.store.Len()
}
