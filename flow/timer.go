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

package flow

import (
	"sync"
	"time"

	"github.com/rulego/streamflow/types"
)

// evictionTimer is the per-flow clock that expires windowed state.
//
// In wall mode a ticker posts a tick to every stage that requires one; the
// stage evicts on its own goroutine when it next selects. Ticks coalesce,
// so a busy stage sees at most one pending tick. In event mode windowed
// stages evict inline as event time advances and the timer only reports
// queue depth.
type evictionTimer struct {
	flow     *Flow
	interval time.Duration
	mode     types.TimerMode

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func newEvictionTimer(f *Flow) *evictionTimer {
	interval := f.config.Timer.Interval
	if interval <= 0 {
		interval = types.DefaultConfig().Timer.Interval
	}
	return &evictionTimer{
		flow:     f,
		interval: interval,
		mode:     f.config.Timer.Mode,
		stopCh:   make(chan struct{}),
	}
}

func (t *evictionTimer) start() {
	deliver := t.mode != types.TimerModeEvent && len(t.flow.timers) > 0
	if !deliver && t.flow.queueDepth == nil {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if deliver {
					for _, rn := range t.flow.timers {
						rn.tick()
					}
				}
				if t.flow.queueDepth != nil {
					t.flow.queueDepth(t.flow.id, t.flow.QueueDepth())
				}
			case <-t.stopCh:
				return
			case <-t.flow.ctx.Done():
				return
			}
		}
	}()
}

// stop halts the timer and waits for its goroutine.
func (t *evictionTimer) stop() {
	t.once.Do(func() {
		close(t.stopCh)
	})
	t.wg.Wait()
}
