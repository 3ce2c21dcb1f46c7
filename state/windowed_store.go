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

	"github.com/cespare/xxhash/v2"
	"github.com/google/btree"
	"github.com/rulego/streamflow/types"
)

// DefaultShards is the shard count used when none is given.
const DefaultShards = 16

// Entry is an immutable windowed entry. Seq breaks timestamp ties in
// insertion order.
type Entry struct {
	Key       types.GroupKey
	Timestamp int64
	Seq       uint64
	Record    *types.Record
}

func lessByKey(a, b Entry) bool {
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.Seq < b.Seq
}

func lessByTime(a, b Entry) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	return a.Seq < b.Seq
}

type shard struct {
	mu     sync.Mutex
	byKey  *btree.BTreeG[Entry]
	byTime *btree.BTreeG[Entry]
}

func (sh *shard) put(e Entry) {
	sh.byKey.ReplaceOrInsert(e)
	sh.byTime.ReplaceOrInsert(e)
}

func (sh *shard) rangeKey(key types.GroupKey, lo, hi int64) []Entry {
	var out []Entry
	sh.byKey.AscendGreaterOrEqual(Entry{Key: key, Timestamp: lo}, func(e Entry) bool {
		if e.Key != key || e.Timestamp > hi {
			return false
		}
		out = append(out, e)
		return true
	})
	return out
}

func (sh *shard) evictBefore(threshold int64) int {
	removed := 0
	for {
		oldest, ok := sh.byTime.Min()
		if !ok || oldest.Timestamp >= threshold {
			return removed
		}
		sh.byTime.DeleteMin()
		sh.byKey.Delete(oldest)
		removed++
	}
}

// WindowedStore holds entries ordered by (key, timestamp) in shards selected
// by key hash. Each shard has its own lock; no operation takes more than one.
type WindowedStore struct {
	shards []*shard
	seq    atomic.Uint64
	size   atomic.Int64
}

// NewWindowedStore creates a store with n shards.
func NewWindowedStore(n int) *WindowedStore {
	if n <= 0 {
		n = DefaultShards
	}
	s := &WindowedStore{shards: make([]*shard, n)}
	for i := range s.shards {
		s.shards[i] = &shard{
			byKey:  btree.NewG[Entry](8, lessByKey),
			byTime: btree.NewG[Entry](8, lessByTime),
		}
	}
	return s
}

// ShardOf returns the shard index of key. Stores with equal shard counts
// agree on it.
func (s *WindowedStore) ShardOf(key types.GroupKey) int {
	return int(xxhash.Sum64String(string(key)) % uint64(len(s.shards)))
}

func (s *WindowedStore) shardFor(key types.GroupKey) *shard {
	return s.shards[s.ShardOf(key)]
}

// Put stores rec under key at ts and returns the stored entry.
func (s *WindowedStore) Put(key types.GroupKey, ts int64, rec *types.Record) Entry {
	e := Entry{Key: key, Timestamp: ts, Seq: s.seq.Add(1), Record: rec}
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.put(e)
	sh.mu.Unlock()
	s.size.Add(1)
	return e
}

// Lookup returns every entry of key ordered by timestamp.
func (s *WindowedStore) Lookup(key types.GroupKey) []Entry {
	return s.Range(key, math.MinInt64, math.MaxInt64)
}

// Range returns the entries of key with lo <= timestamp <= hi ordered by
// timestamp, ties in insertion order.
func (s *WindowedStore) Range(key types.GroupKey, lo, hi int64) []Entry {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.rangeKey(key, lo, hi)
}

// KeysBelow returns the distinct keys holding an entry older than threshold.
func (s *WindowedStore) KeysBelow(threshold int64) []types.GroupKey {
	seen := make(map[types.GroupKey]bool)
	var keys []types.GroupKey
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.byTime.AscendLessThan(Entry{Timestamp: threshold}, func(e Entry) bool {
			if !seen[e.Key] {
				seen[e.Key] = true
				keys = append(keys, e.Key)
			}
			return true
		})
		sh.mu.Unlock()
	}
	return keys
}

// EvictBefore removes every entry older than threshold and returns how many
// were removed.
func (s *WindowedStore) EvictBefore(threshold int64) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		removed += sh.evictBefore(threshold)
		sh.mu.Unlock()
	}
	s.size.Add(-int64(removed))
	return removed
}

// Len is the number of stored entries.
func (s *WindowedStore) Len() int {
	return int(s.size.Load())
}

// Shards is the shard count.
func (s *WindowedStore) Shards() int {
	return len(s.shards)
}
