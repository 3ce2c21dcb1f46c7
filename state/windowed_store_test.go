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
	"sync"
	"testing"

	"github.com/rulego/streamflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timestamps(entries []Entry) []int64 {
	var out []int64
	for _, e := range entries {
		out = append(out, e.Timestamp)
	}
	return out
}

func TestWindowedStore_LookupAndRange(t *testing.T) {
	s := NewWindowedStore(4)
	k1, k2 := types.NewGroupKey(int64(1)), types.NewGroupKey(int64(2))
	for _, ts := range []int64{30, 10, 20, 20} {
		s.Put(k1, ts, nil)
	}
	s.Put(k2, 15, nil)

	assert.Equal(t, 5, s.Len())
	assert.Equal(t, []int64{10, 20, 20, 30}, timestamps(s.Lookup(k1)))
	assert.Equal(t, []int64{15}, timestamps(s.Lookup(k2)))
	assert.Empty(t, s.Lookup(types.NewGroupKey(int64(3))))

	tests := []struct {
		name   string
		lo, hi int64
		want   []int64
	}{
		{"inclusive", 10, 20, []int64{10, 20, 20}},
		{"single", 30, 30, []int64{30}},
		{"empty", 21, 29, nil},
		{"wide", -100, 100, []int64{10, 20, 20, 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timestamps(s.Range(k1, tt.lo, tt.hi)))
		})
	}
}

func TestWindowedStore_TiesKeepInsertionOrder(t *testing.T) {
	s := NewWindowedStore(1)
	key := types.NewGroupKey("k")
	schema := types.Schema{types.Field("v", "INT64")}
	for i := int64(0); i < 5; i++ {
		s.Put(key, 100, types.NewRecord(schema, 100, i))
	}
	entries := s.Lookup(key)
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, int64(i), e.Record.Values[0])
	}
}

func TestWindowedStore_Evict(t *testing.T) {
	s := NewWindowedStore(8)
	for i := int64(0); i < 10; i++ {
		s.Put(types.NewGroupKey(i%3), i*10, nil)
	}

	keys := s.KeysBelow(30)
	assert.ElementsMatch(t, []types.GroupKey{
		types.NewGroupKey(int64(0)), types.NewGroupKey(int64(1)), types.NewGroupKey(int64(2)),
	}, keys)

	assert.Equal(t, 3, s.EvictBefore(30))
	assert.Equal(t, 7, s.Len())
	assert.Empty(t, s.KeysBelow(30))
	assert.Equal(t, 0, s.EvictBefore(30))
	assert.Equal(t, []int64{30, 60, 90}, timestamps(s.Lookup(types.NewGroupKey(int64(0)))))
}

func TestWindowedStore_ConcurrentPut(t *testing.T) {
	s := NewWindowedStore(16)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Put(types.NewGroupKey(int64(i%10)), int64(i), nil)
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 1600, s.Len())
	assert.Len(t, s.Lookup(types.NewGroupKey(int64(3))), 160)
}

func TestJoinState_ProbeIsSymmetric(t *testing.T) {
	window := types.WindowSpec{PrecedingMillis: 10, FollowingMillis: 5}
	key := types.NewGroupKey("k")

	// left first
	js := NewJoinState(window, 4)
	assert.Empty(t, js.InsertAndProbe(Left, key, 100, nil))
	assert.Equal(t, []int64{100}, timestamps(js.InsertAndProbe(Right, key, 92, nil)))
	assert.Equal(t, []int64{100}, timestamps(js.InsertAndProbe(Right, key, 105, nil)))
	assert.Empty(t, js.InsertAndProbe(Right, key, 106, nil))
	assert.Empty(t, js.InsertAndProbe(Right, key, 89, nil))

	// right first gives the same pairs
	js = NewJoinState(window, 4)
	for _, ts := range []int64{92, 105, 106, 89} {
		js.InsertAndProbe(Right, key, ts, nil)
	}
	assert.Equal(t, []int64{92, 105}, timestamps(js.InsertAndProbe(Left, key, 100, nil)))
}

func TestJoinState_ConcurrentPairsOnce(t *testing.T) {
	js := NewJoinState(types.WindowSpec{PrecedingMillis: 1000, FollowingMillis: 1000}, 4)
	key := types.NewGroupKey("k")
	const n = 200

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		pairs int
	)
	for _, side := range []Side{Left, Right} {
		wg.Add(1)
		go func(side Side) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				m := js.InsertAndProbe(side, key, int64(i), nil)
				mu.Lock()
				pairs += len(m)
				mu.Unlock()
			}
		}(side)
	}
	wg.Wait()
	assert.Equal(t, n*n, pairs)
}

func TestJoinState_Evict(t *testing.T) {
	js := NewJoinState(types.WindowSpec{PrecedingMillis: 100, FollowingMillis: 20}, 4)
	assert.Equal(t, 0, js.Evict())

	key := types.NewGroupKey("k")
	js.InsertAndProbe(Right, key, 0, nil)
	js.InsertAndProbe(Left, key, 50, nil)
	js.InsertAndProbe(Left, key, 250, nil)

	latest, ok := js.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(250), latest)

	assert.Equal(t, 2, js.Evict())
	assert.Equal(t, 1, js.Len())
	assert.Equal(t, 0, js.Evict())

	// the evicted right entry no longer joins a late left record
	assert.Empty(t, js.InsertAndProbe(Left, key, 60, nil))
}
