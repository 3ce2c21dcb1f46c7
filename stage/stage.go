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
	"sync/atomic"

	"github.com/rulego/streamflow/expression"
	"github.com/rulego/streamflow/functions"
	"github.com/rulego/streamflow/logger"
	"github.com/rulego/streamflow/plan"
	"github.com/rulego/streamflow/types"
)

// Emitter hands an output record to the stage's downstream transports.
type Emitter func(ctx context.Context, rec *types.Record) error

// Stage is one runtime operator. The scheduler owns a stage exclusively:
// Process, Tick and Close are never called concurrently, except that a join
// receives its two input ports on two goroutines.
type Stage interface {
	ID() string
	Kind() plan.Kind
	// Open prepares the stage before the first record.
	Open(ctx context.Context) error
	// Process handles one record arriving on input port and emits zero or
	// more output records.
	Process(ctx context.Context, port int, rec *types.Record, emit Emitter) error
	// RequiresTimer reports whether the stage keeps windowed state that the
	// eviction timer must expire.
	RequiresTimer() bool
	// Tick runs an eviction pass. It never emits.
	Tick(ctx context.Context) error
	// Close releases the stage. It is safe to call more than once.
	Close() error
	State() State
	Stats() types.StageStats
}

// State is the lifecycle position of a stage.
type State int32

const (
	StateCreated State = iota
	StateOpen
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateOpen:
		return "OPEN"
	case StateRunning:
		return "RUNNING"
	case StateClosed:
		return "CLOSED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Error is a failure of one stage. It fails the whole flow.
type Error struct {
	StageID string
	Kind    plan.Kind
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stage %s (%s): %v", e.StageID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Observer receives per-stage counters, typically for metrics export.
type Observer interface {
	RecordsIn(kind plan.Kind, n int)
	RecordsOut(kind plan.Kind, n int)
	RecordsDropped(kind plan.Kind, n int)
	Evicted(kind plan.Kind, n int)
}

type nopObserver struct{}

func (nopObserver) RecordsIn(plan.Kind, int)      {}
func (nopObserver) RecordsOut(plan.Kind, int)     {}
func (nopObserver) RecordsDropped(plan.Kind, int) {}
func (nopObserver) Evicted(plan.Kind, int)        {}

// Env carries what stage constructors need besides the plan node.
type Env struct {
	Compiler  *expression.Compiler
	Functions *functions.Registry
	Logger    logger.Logger
	Observer  Observer
	// BucketMillis is the aggregate bucket width for windows that do not
	// set their own.
	BucketMillis int64
	// EvictEveryMillis, when positive, makes windowed stages run eviction
	// inline each time their latest event time has advanced that far. It
	// replaces the wall-clock timer for replay.
	EvictEveryMillis int64
	// JoinShards is the shard count of join stores.
	JoinShards int
}

func (e Env) withDefaults() Env {
	if e.Functions == nil {
		e.Functions = functions.NewBuiltinRegistry()
	}
	if e.Compiler == nil {
		e.Compiler = expression.NewCompiler(e.Functions)
	}
	if e.Logger == nil {
		e.Logger = logger.GetDefault()
	}
	if e.Observer == nil {
		e.Observer = nopObserver{}
	}
	if e.BucketMillis <= 0 {
		e.BucketMillis = types.DefaultBucketMillis
	}
	return e
}

// base carries identity, lifecycle and statistics shared by every stage.
type base struct {
	id       string
	kind     plan.Kind
	state    int32
	stats    *StatsCollector
	observer Observer
	log      logger.Logger
}

func newBase(node *plan.Node, env Env) base {
	return base{
		id:       node.ID,
		kind:     node.Kind,
		stats:    NewStatsCollector(),
		observer: env.Observer,
		log:      env.Logger.Named(node.ID),
	}
}

func (b *base) ID() string {
	return b.id
}

func (b *base) Kind() plan.Kind {
	return b.kind
}

func (b *base) State() State {
	return State(atomic.LoadInt32(&b.state))
}

func (b *base) Open(context.Context) error {
	atomic.CompareAndSwapInt32(&b.state, int32(StateCreated), int32(StateOpen))
	return nil
}

func (b *base) RequiresTimer() bool {
	return false
}

func (b *base) Tick(context.Context) error {
	return nil
}

// close moves the stage to CLOSED and reports whether this call did it.
func (b *base) close() bool {
	for {
		cur := atomic.LoadInt32(&b.state)
		if State(cur) == StateClosed {
			return false
		}
		if atomic.CompareAndSwapInt32(&b.state, cur, int32(StateClosed)) {
			return true
		}
	}
}

func (b *base) Close() error {
	b.close()
	return nil
}

func (b *base) Stats() types.StageStats {
	return b.stats.Snapshot(b.id, string(b.kind))
}

// received counts an input record and marks the stage running.
func (b *base) received() {
	if State(atomic.LoadInt32(&b.state)) == StateOpen {
		atomic.CompareAndSwapInt32(&b.state, int32(StateOpen), int32(StateRunning))
	}
	b.stats.IncrementInput()
	b.observer.RecordsIn(b.kind, 1)
}

func (b *base) emit(ctx context.Context, emit Emitter, rec *types.Record) error {
	b.stats.IncrementOutput()
	b.observer.RecordsOut(b.kind, 1)
	return emit(ctx, rec)
}

func (b *base) dropped() {
	b.stats.IncrementDropped()
	b.observer.RecordsDropped(b.kind, 1)
}

func (b *base) evicted(n int) {
	if n > 0 {
		b.stats.AddEvicted(int64(n))
		b.observer.Evicted(b.kind, n)
	}
}

func (b *base) fail(err error) error {
	return &Error{StageID: b.id, Kind: b.kind, Err: err}
}
