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

package connector

import (
	"context"
	"sync"
	"time"

	"github.com/rulego/streamflow/types"
)

// MemorySink accumulates every pushed record. It backs result collection
// for the local console and tests.
type MemorySink struct {
	mu      sync.Mutex
	records []*types.Record
	notify  chan struct{}
	closed  bool
}

// NewMemorySink creates an empty sink
func NewMemorySink() *MemorySink {
	return &MemorySink{notify: make(chan struct{})}
}

func (s *MemorySink) Push(_ context.Context, rec *types.Record) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.broadcastLocked()
	s.mu.Unlock()
	return nil
}

// broadcastLocked wakes every WaitFor caller.
func (s *MemorySink) broadcastLocked() {
	close(s.notify)
	s.notify = make(chan struct{})
}

// Records returns a copy of the records received so far.
func (s *MemorySink) Records() []*types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len is the number of records received.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// WaitFor blocks until at least n records arrived, the sink is closed or
// timeout elapses. It reports whether n records are present.
func (s *MemorySink) WaitFor(n int, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		s.mu.Lock()
		if len(s.records) >= n {
			s.mu.Unlock()
			return true
		}
		if s.closed {
			s.mu.Unlock()
			return false
		}
		wait := s.notify
		s.mu.Unlock()
		select {
		case <-wait:
		case <-timer.C:
			return s.Len() >= n
		}
	}
}

// Reset drops the received records.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()
}

// Close marks the sink closed; records stay readable.
func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.broadcastLocked()
	}
	return nil
}
