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

package types

import (
	"fmt"
)

// Window is a closed interval of event time in epoch millis.
type Window struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Contains checks if ts lies within the window, both ends inclusive.
func (w Window) Contains(ts int64) bool {
	return ts >= w.Start && ts <= w.End
}

// Overlaps reports whether [start, end] intersects the window.
func (w Window) Overlaps(start, end int64) bool {
	return start <= w.End && end >= w.Start
}

func (w Window) String() string {
	return fmt.Sprintf("[%d, %d]", w.Start, w.End)
}

// DefaultBucketMillis is the default aggregate bucket width. One millisecond
// buckets make every window fold exact.
const DefaultBucketMillis = 1

// WindowSpec bounds the co-members of a record's window: for a record at T
// the window is [T-PrecedingMillis, T+FollowingMillis].
type WindowSpec struct {
	PrecedingMillis int64 `json:"precedingMillis" yaml:"precedingMillis"`
	FollowingMillis int64 `json:"followingMillis" yaml:"followingMillis"`
	// BucketMillis is the aggregate bucket width; 0 selects the engine default.
	// A width above 1 rounds window edges out to bucket boundaries.
	BucketMillis int64 `json:"bucketMillis,omitempty" yaml:"bucketMillis,omitempty"`
}

// Validate checks the bounds are non-negative.
func (s WindowSpec) Validate() error {
	if s.PrecedingMillis < 0 {
		return fmt.Errorf("preceding bound %d must be >= 0", s.PrecedingMillis)
	}
	if s.FollowingMillis < 0 {
		return fmt.Errorf("following bound %d must be >= 0", s.FollowingMillis)
	}
	if s.BucketMillis < 0 {
		return fmt.Errorf("bucket width %d must be >= 0", s.BucketMillis)
	}
	return nil
}

// Around returns the window of a record at ts.
func (s WindowSpec) Around(ts int64) Window {
	return Window{Start: ts - s.PrecedingMillis, End: ts + s.FollowingMillis}
}

// BucketWidth returns the node's bucket width, else def, capped at the
// smallest positive window bound so a bucket never spans more than the
// window. Only a width of 1 folds exactly the events inside the window.
func (s WindowSpec) BucketWidth(def int64) int64 {
	width := s.BucketMillis
	if width <= 0 {
		width = def
	}
	if width <= 0 {
		width = DefaultBucketMillis
	}
	bound := s.PrecedingMillis
	if bound == 0 || (s.FollowingMillis > 0 && s.FollowingMillis < bound) {
		bound = s.FollowingMillis
	}
	if bound == 0 {
		return 1
	}
	if width > bound {
		return bound
	}
	return width
}

// Horizon is the larger of the two bounds.
func (s WindowSpec) Horizon() int64 {
	if s.FollowingMillis > s.PrecedingMillis {
		return s.FollowingMillis
	}
	return s.PrecedingMillis
}
