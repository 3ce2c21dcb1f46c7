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
	"math"
	"sync/atomic"

	"github.com/rulego/streamflow/expression"
	"github.com/rulego/streamflow/plan"
	"github.com/rulego/streamflow/state"
	"github.com/rulego/streamflow/types"
)

// Join is a windowed inner hash join. Each input port runs on its own
// goroutine; the two sides meet only in the shared sharded stores.
//
// A record on either side is stored and then probed against the other side
// for the same key within the window. Records with a null key component are
// dropped without being stored.
type Join struct {
	base
	keys       [2][]expression.Evaluator
	state      *state.JoinState
	schema     types.Schema
	evictEvery int64
	lastEvict  atomic.Int64
}

// NewJoin compiles the join keys. left and right are the input schemas.
func NewJoin(node *plan.Node, left, right types.Schema, env Env) (*Join, error) {
	env = env.withDefaults()
	if node.Window == nil {
		return nil, fmt.Errorf("join %s: window required", node.ID)
	}
	if len(node.LeftKeys) != len(node.RightKeys) || len(node.LeftKeys) == 0 {
		return nil, fmt.Errorf("join %s: key lists differ in length", node.ID)
	}
	j := &Join{
		state:      state.NewJoinState(*node.Window, env.JoinShards),
		evictEvery: env.EvictEveryMillis,
	}
	j.base = newBase(node, env)
	j.lastEvict.Store(math.MinInt64)
	for side, srcs := range [2][]string{node.LeftKeys, node.RightKeys} {
		for _, src := range srcs {
			ev, err := env.Compiler.Compile(src)
			if err != nil {
				return nil, fmt.Errorf("join %s: %s key %q: %w", node.ID, state.Side(side), src, err)
			}
			j.keys[side] = append(j.keys[side], ev)
		}
	}
	j.schema = node.OutputFields
	if len(j.schema) == 0 {
		j.schema = left.Concat(right)
	} else if len(j.schema) != len(left)+len(right) {
		return nil, fmt.Errorf("join %s: %d output fields for %d input fields", node.ID, len(j.schema), len(left)+len(right))
	}
	return j, nil
}

func (j *Join) RequiresTimer() bool {
	return true
}

func (j *Join) Process(ctx context.Context, port int, rec *types.Record, emit Emitter) error {
	j.received()
	side := state.Side(port)
	if side != state.Left && side != state.Right {
		return j.fail(fmt.Errorf("no input port %d", port))
	}
	keys := make([]interface{}, len(j.keys[side]))
	for i, k := range j.keys[side] {
		v, err := k.Eval(rec)
		if err != nil {
			return j.fail(err)
		}
		keys[i] = v
	}
	if types.HasNull(keys...) {
		j.dropped()
		return nil
	}

	matches := j.state.InsertAndProbe(side, types.NewGroupKey(keys...), rec.Timestamp, rec)
	for _, m := range matches {
		var out *types.Record
		if side == state.Left {
			out = rec.Concat(m.Record, j.schema)
		} else {
			out = m.Record.Concat(rec, j.schema)
		}
		if err := j.emit(ctx, emit, out); err != nil {
			return err
		}
	}

	if j.evictEvery > 0 {
		j.maybeEvict()
	}
	return nil
}

func (j *Join) maybeEvict() {
	latest, ok := j.state.Latest()
	if !ok {
		return
	}
	last := j.lastEvict.Load()
	if last == math.MinInt64 {
		j.lastEvict.CompareAndSwap(last, latest)
		return
	}
	if latest-last >= j.evictEvery && j.lastEvict.CompareAndSwap(last, latest) {
		j.evict()
	}
}

// Tick drops entries of both sides older than the latest observed time
// minus the window horizon.
func (j *Join) Tick(context.Context) error {
	j.evict()
	return nil
}

func (j *Join) evict() {
	n := j.state.Evict()
	if n > 0 {
		j.log.Debug("evicted %d join entries", n)
	}
	j.evicted(n)
}

// StateSize is the number of stored entries of both sides.
func (j *Join) StateSize() int {
	return j.state.Len()
}
