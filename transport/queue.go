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

package transport

import (
	"context"
	"sync"

	"github.com/rulego/streamflow/types"
)

// DefaultCapacity is the queue capacity used when none is configured.
const DefaultCapacity = 1024

// Queue is a bounded blocking FIFO backed by a buffered channel.
type Queue struct {
	ch chan *types.Record

	mu     sync.Mutex
	closed bool
}

// NewQueue creates a queue holding at most capacity records.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan *types.Record, capacity)}
}

func (q *Queue) Put(ctx context.Context, rec *types.Record) error {
	if q.IsClosed() {
		panic(ErrPutAfterClose)
	}
	select {
	case q.ch <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Take(ctx context.Context) (*types.Record, error) {
	select {
	case rec, ok := <-q.ch:
		if !ok {
			return nil, ErrEndOfStream
		}
		return rec, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Queue) TryTake() (*types.Record, bool, error) {
	select {
	case rec, ok := <-q.ch:
		if !ok {
			return nil, false, ErrEndOfStream
		}
		return rec, true, nil
	default:
		return nil, false, nil
	}
}

// C exposes the receive side so a worker can select on the queue together
// with other events such as timer ticks. The channel is closed at end of stream.
func (q *Queue) C() <-chan *types.Record {
	return q.ch
}

func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

func (q *Queue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) Len() int {
	return len(q.ch)
}

func (q *Queue) Cap() int {
	return cap(q.ch)
}
