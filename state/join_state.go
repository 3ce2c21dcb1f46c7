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

package state

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/rulego/streamflow/types"
)

// Side selects one input of a join.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

func (s Side) other() Side {
	return 1 - s
}

// JoinState is the shared state of a windowed hash join. Both input
// goroutines call InsertAndProbe concurrently; a record's insert and its
// probe happen under the lock of the key's stripe, so every matching pair
// is produced exactly once whichever side arrives second.
type JoinState struct {
	window  types.WindowSpec
	stores  [2]*WindowedStore
	stripes []sync.Mutex
	latest  atomic.Int64
}

// NewJoinState creates join state for window with the given shard count.
func NewJoinState(window types.WindowSpec, shards int) *JoinState {
	js := &JoinState{
		window: window,
		stores: [2]*WindowedStore{NewWindowedStore(shards), NewWindowedStore(shards)},
	}
	js.stripes = make([]sync.Mutex, js.stores[0].Shards())
	js.latest.Store(math.MinInt64)
	return js
}

// Store returns the store of side.
func (js *JoinState) Store(side Side) *WindowedStore {
	return js.stores[side]
}

// ProbeRange is the timestamp interval of the opposite side that matches a
// record at ts arriving on side. A left record at t matches right entries in
// [t-preceding, t+following]; a right record at r matches left entries in
// [r-following, r+preceding].
func (js *JoinState) ProbeRange(side Side, ts int64) (lo, hi int64) {
	if side == Left {
		return ts - js.window.PrecedingMillis, ts + js.window.FollowingMillis
	}
	return ts - js.window.FollowingMillis, ts + js.window.PrecedingMillis
}

// InsertAndProbe stores rec on side and returns the matching entries of the
// other side in timestamp order.
func (js *JoinState) InsertAndProbe(side Side, key types.GroupKey, ts int64, rec *types.Record) []Entry {
	mu := &js.stripes[js.stores[side].ShardOf(key)]
	lo, hi := js.ProbeRange(side, ts)

	mu.Lock()
	js.stores[side].Put(key, ts, rec)
	matches := js.stores[side.other()].Range(key, lo, hi)
	mu.Unlock()

	js.observe(ts)
	return matches
}

func (js *JoinState) observe(ts int64) {
	for {
		cur := js.latest.Load()
		if ts <= cur || js.latest.CompareAndSwap(cur, ts) {
			return
		}
	}
}

// Latest is the largest timestamp observed on either side.
func (js *JoinState) Latest() (int64, bool) {
	v := js.latest.Load()
	return v, v != math.MinInt64
}

// Evict drops entries of both sides older than latest minus the window
// horizon. It returns the number of entries removed.
//
// The horizon is max(preceding, following) for both sides because
// ProbeRange mirrors the bounds: a right record looks back by following,
// a left record by preceding.
func (js *JoinState) Evict() int {
	latest, ok := js.Latest()
	if !ok {
		return 0
	}
	threshold := latest - js.window.Horizon()
	return js.stores[Left].EvictBefore(threshold) + js.stores[Right].EvictBefore(threshold)
}

// Len is the number of entries held by both sides.
func (js *JoinState) Len() int {
	return js.stores[Left].Len() + js.stores[Right].Len()
}
