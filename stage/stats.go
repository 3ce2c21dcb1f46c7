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
	"sync/atomic"

	"github.com/rulego/streamflow/types"
)

// StatsCollector counts the records a stage sees. All methods are safe for
// concurrent use.
type StatsCollector struct {
	inputCount   int64
	outputCount  int64
	droppedCount int64
	evictedCount int64
}

// NewStatsCollector creates a new statistics collector
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{}
}

// IncrementInput increments input count
func (sc *StatsCollector) IncrementInput() {
	atomic.AddInt64(&sc.inputCount, 1)
}

// IncrementOutput increments output count
func (sc *StatsCollector) IncrementOutput() {
	atomic.AddInt64(&sc.outputCount, 1)
}

// IncrementDropped increments dropped count
func (sc *StatsCollector) IncrementDropped() {
	atomic.AddInt64(&sc.droppedCount, 1)
}

// AddEvicted adds n evicted state entries
func (sc *StatsCollector) AddEvicted(n int64) {
	atomic.AddInt64(&sc.evictedCount, n)
}

// GetInputCount gets input count
func (sc *StatsCollector) GetInputCount() int64 {
	return atomic.LoadInt64(&sc.inputCount)
}

// GetOutputCount gets output count
func (sc *StatsCollector) GetOutputCount() int64 {
	return atomic.LoadInt64(&sc.outputCount)
}

// GetDroppedCount gets dropped count
func (sc *StatsCollector) GetDroppedCount() int64 {
	return atomic.LoadInt64(&sc.droppedCount)
}

// GetEvictedCount gets evicted count
func (sc *StatsCollector) GetEvictedCount() int64 {
	return atomic.LoadInt64(&sc.evictedCount)
}

// Snapshot returns the counters as StageStats.
func (sc *StatsCollector) Snapshot(id, kind string) types.StageStats {
	return types.StageStats{
		ID:      id,
		Kind:    kind,
		In:      sc.GetInputCount(),
		Out:     sc.GetOutputCount(),
		Dropped: sc.GetDroppedCount(),
		Evicted: sc.GetEvictedCount(),
	}
}
