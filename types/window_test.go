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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowSpec(t *testing.T) {
	spec := WindowSpec{PrecedingMillis: 1000, FollowingMillis: 50}
	assert.NoError(t, spec.Validate())

	w := spec.Around(200)
	assert.Equal(t, Window{Start: -800, End: 250}, w)
	assert.True(t, w.Contains(35))
	assert.True(t, w.Contains(250))
	assert.False(t, w.Contains(251))
	assert.True(t, w.Overlaps(-900, -800))
	assert.False(t, w.Overlaps(251, 400))

	assert.Equal(t, int64(1000), spec.Horizon())
	assert.Equal(t, int64(250), spec.BucketWidth(250))
	assert.Equal(t, int64(DefaultBucketMillis), spec.BucketWidth(0))
	assert.Equal(t, int64(10), WindowSpec{PrecedingMillis: 100, BucketMillis: 10}.BucketWidth(250))
	// a bucket never spans more than the window
	assert.Equal(t, int64(50), spec.BucketWidth(5000))
	assert.Equal(t, int64(100), WindowSpec{PrecedingMillis: 100}.BucketWidth(1000))
	assert.Equal(t, int64(20), WindowSpec{FollowingMillis: 20, BucketMillis: 60}.BucketWidth(1000))
	assert.Equal(t, int64(1), WindowSpec{BucketMillis: 10}.BucketWidth(250))

	assert.Error(t, WindowSpec{PrecedingMillis: -1}.Validate())
	assert.Error(t, WindowSpec{FollowingMillis: -1}.Validate())
}

func TestFlowID(t *testing.T) {
	id, err := ParseFlowID("42")
	assert.NoError(t, err)
	assert.Equal(t, FlowID(42), id)
	assert.Equal(t, "42", id.String())

	_, err = ParseFlowID("x")
	assert.Error(t, err)
}

func TestFlowState(t *testing.T) {
	assert.False(t, FlowRunning.IsTerminal())
	for _, s := range []FlowState{FlowCanceled, FlowComplete, FlowError} {
		assert.True(t, s.IsTerminal(), s.String())
		text, _ := s.MarshalText()
		var back FlowState
		assert.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}
}
