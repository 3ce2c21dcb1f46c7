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

// Handler processes one record on the caller's goroutine.
type Handler func(ctx context.Context, rec *types.Record) error

// Direct invokes its consumer synchronously from Put. There is no buffer,
// so Take is not supported and backpressure is the consumer's own latency.
type Direct struct {
	handler Handler
	onClose func()

	once   sync.Once
	mu     sync.Mutex
	closed bool
}

// NewDirect creates a direct transport. onClose runs once on Close and is
// where the fused consumer finishes and closes its own outputs.
func NewDirect(handler Handler, onClose func()) *Direct {
	return &Direct{handler: handler, onClose: onClose}
}

func (d *Direct) Put(ctx context.Context, rec *types.Record) error {
	if d.IsClosed() {
		panic(ErrPutAfterClose)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.handler(ctx, rec)
}

func (d *Direct) Take(ctx context.Context) (*types.Record, error) {
	if d.IsClosed() {
		return nil, ErrEndOfStream
	}
	return nil, ErrNotReadable
}

func (d *Direct) TryTake() (*types.Record, bool, error) {
	if d.IsClosed() {
		return nil, false, ErrEndOfStream
	}
	return nil, false, nil
}

func (d *Direct) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		if d.onClose != nil {
			d.onClose()
		}
	})
}

func (d *Direct) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Direct) Len() int { return 0 }
func (d *Direct) Cap() int { return 0 }
