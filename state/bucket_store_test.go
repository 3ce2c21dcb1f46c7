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
	"testing"

	"github.com/rulego/streamflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketStore_Index(t *testing.T) {
	s := NewBucketStore(100, 1)
	tests := []struct {
		ts   int64
		want int64
	}{
		{0, 0},
		{99, 0},
		{100, 1},
		{250, 2},
		{-1, -1},
		{-100, -1},
		{-101, -2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Index(tt.ts), "ts=%d", tt.ts)
	}
}

func TestBucketStore_GetOrCreate(t *testing.T) {
	s := NewBucketStore(100, 2)
	key := types.NewGroupKey(int64(1))

	a := s.GetOrCreate(key, 150)
	require.Len(t, a.Buckets, 2)
	assert.Equal(t, int64(100), a.Start)
	assert.Equal(t, int64(200), a.End)
	assert.Same(t, a, s.GetOrCreate(key, 199))

	// out of order insert keeps indices sorted
	s.GetOrCreate(key, 450)
	s.GetOrCreate(key, 20)
	s.GetOrCreate(key, 320)
	var starts []int64
	for _, sl := range s.All(key) {
		starts = append(starts, sl.Start)
	}
	assert.Equal(t, []int64{0, 100, 300, 400}, starts)
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 1, s.Groups())
}

func TestBucketStore_Range(t *testing.T) {
	s := NewBucketStore(10, 1)
	key := types.NewGroupKey("k")
	for _, ts := range []int64{5, 15, 25, 35, 45} {
		s.GetOrCreate(key, ts)
	}
	other := types.NewGroupKey("other")
	s.GetOrCreate(other, 15)

	tests := []struct {
		name   string
		lo, hi int64
		want   []int64
	}{
		{"inner", 12, 31, []int64{10, 20, 30}},
		{"exact bounds", 10, 19, []int64{10}},
		{"before all", -50, -1, nil},
		{"after all", 100, 200, nil},
		{"everything", -100, 100, []int64{0, 10, 20, 30, 40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int64
			for _, sl := range s.Range(key, tt.lo, tt.hi) {
				got = append(got, sl.Start)
			}
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Nil(t, s.Range(types.NewGroupKey("missing"), 0, 100))
}

func TestBucketStore_Evict(t *testing.T) {
	s := NewBucketStore(10, 1)
	a, b := types.NewGroupKey("a"), types.NewGroupKey("b")
	for _, ts := range []int64{1, 11, 21} {
		s.GetOrCreate(a, ts)
	}
	s.GetOrCreate(b, 3)

	// a's [0,10) and [10,20) and b's [0,10) all end at or before 20
	assert.Equal(t, 3, s.Evict(20))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.Groups())
	require.Len(t, s.All(a), 1)
	assert.Equal(t, int64(20), s.All(a)[0].Start)
	assert.Nil(t, s.All(b))

	// a second pass with the same threshold changes nothing
	assert.Equal(t, 0, s.Evict(20))
	assert.Equal(t, 1, s.Len())

	assert.Equal(t, 1, s.Evict(30))
	assert.Equal(t, 0, s.Groups())
}
