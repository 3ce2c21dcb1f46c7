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

// Package state holds the windowed state of the aggregate and join stages.
//
// BucketStore slices aggregate state into fixed-width time buckets per group
// key. It is owned by a single stage goroutine and does no locking.
// WindowedStore keeps join entries ordered by key and time in per-shard
// B-trees guarded by per-shard locks, so both sides of a join can use it
// concurrently.
package state

import (
	"sort"

	"github.com/rulego/streamflow/functions"
	"github.com/rulego/streamflow/types"
)

// Slice is the state of one group key over one bucket interval: one
// functions.Bucket per aggregate call.
type Slice struct {
	Index   int64
	Start   int64
	End     int64 // exclusive
	Buckets []*functions.Bucket
}

type groupSlices struct {
	indices []int64 // ascending
	slices  map[int64]*Slice
}

// BucketStore maps (group key, bucket index) to aggregate state.
type BucketStore struct {
	width  int64
	calls  int
	groups map[types.GroupKey]*groupSlices
	size   int
}

// NewBucketStore creates a store of width-millis buckets, each holding calls
// accumulator buckets.
func NewBucketStore(width int64, calls int) *BucketStore {
	if width <= 0 {
		width = 1000
	}
	return &BucketStore{
		width:  width,
		calls:  calls,
		groups: make(map[types.GroupKey]*groupSlices),
	}
}

// Width is the bucket width in millis.
func (s *BucketStore) Width() int64 {
	return s.width
}

// Index is floor(ts / width), rounding toward negative infinity.
func (s *BucketStore) Index(ts int64) int64 {
	q := ts / s.width
	if ts%s.width != 0 && ts < 0 {
		q--
	}
	return q
}

// GetOrCreate returns the slice holding ts for key.
func (s *BucketStore) GetOrCreate(key types.GroupKey, ts int64) *Slice {
	g, ok := s.groups[key]
	if !ok {
		g = &groupSlices{slices: make(map[int64]*Slice)}
		s.groups[key] = g
	}
	idx := s.Index(ts)
	if sl, ok := g.slices[idx]; ok {
		return sl
	}
	sl := &Slice{
		Index:   idx,
		Start:   idx * s.width,
		End:     (idx + 1) * s.width,
		Buckets: make([]*functions.Bucket, s.calls),
	}
	for i := range sl.Buckets {
		sl.Buckets[i] = &functions.Bucket{}
	}
	g.slices[idx] = sl

	// events mostly arrive in time order, so appending is the common case
	n := len(g.indices)
	if n == 0 || g.indices[n-1] < idx {
		g.indices = append(g.indices, idx)
	} else {
		pos := sort.Search(n, func(i int) bool { return g.indices[i] >= idx })
		g.indices = append(g.indices, 0)
		copy(g.indices[pos+1:], g.indices[pos:])
		g.indices[pos] = idx
	}
	s.size++
	return sl
}

// Range returns the slices of key intersecting [lo, hi] in ascending time order.
func (s *BucketStore) Range(key types.GroupKey, lo, hi int64) []*Slice {
	g, ok := s.groups[key]
	if !ok {
		return nil
	}
	first, last := s.Index(lo), s.Index(hi)
	start := sort.Search(len(g.indices), func(i int) bool { return g.indices[i] >= first })
	var out []*Slice
	for _, idx := range g.indices[start:] {
		if idx > last {
			break
		}
		out = append(out, g.slices[idx])
	}
	return out
}

// All returns every slice of key in ascending time order.
func (s *BucketStore) All(key types.GroupKey) []*Slice {
	g, ok := s.groups[key]
	if !ok {
		return nil
	}
	out := make([]*Slice, len(g.indices))
	for i, idx := range g.indices {
		out[i] = g.slices[idx]
	}
	return out
}

// Evict removes every slice that ends at or before threshold, i.e. holds no
// event time >= threshold. Groups left empty are dropped. It returns the
// number of slices removed.
func (s *BucketStore) Evict(threshold int64) int {
	removed := 0
	for key, g := range s.groups {
		cut := 0
		for cut < len(g.indices) && g.slices[g.indices[cut]].End <= threshold {
			delete(g.slices, g.indices[cut])
			cut++
		}
		if cut == 0 {
			continue
		}
		removed += cut
		if cut == len(g.indices) {
			delete(s.groups, key)
			continue
		}
		g.indices = append(g.indices[:0], g.indices[cut:]...)
	}
	s.size -= removed
	return removed
}

// Len is the number of live slices.
func (s *BucketStore) Len() int {
	return s.size
}

// Groups is the number of group keys holding state.
func (s *BucketStore) Groups() int {
	return len(s.groups)
}
