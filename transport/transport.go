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

// Package transport connects producer stages to consumer stages.
//
// Queue is a bounded FIFO: Put blocks while it is full, which is how a slow
// consumer throttles everything upstream of it. Direct hands each record to
// the consumer synchronously on the producer's goroutine and is used to fuse
// stateless stages into their producer.
package transport

import (
	"context"
	"errors"

	"github.com/rulego/streamflow/types"
)

// ErrEndOfStream is returned by Take once a closed transport is drained.
var ErrEndOfStream = errors.New("end of stream")

// ErrPutAfterClose is the panic value of a Put on a closed transport.
var ErrPutAfterClose = errors.New("put on closed transport")

// ErrNotReadable is returned by Take on a transport whose records are pushed
// into the consumer rather than pulled.
var ErrNotReadable = errors.New("transport delivers records by direct call")

// Transport moves records from one producer to one consumer.
type Transport interface {
	// Put delivers rec, blocking while the transport is full. It returns the
	// context error if ctx ends first. Put after Close panics.
	Put(ctx context.Context, rec *types.Record) error
	// Take blocks for the next record. It returns ErrEndOfStream when the
	// transport is closed and drained.
	Take(ctx context.Context) (*types.Record, error)
	// TryTake returns the next record if one is ready. ok is false when none is.
	TryTake() (rec *types.Record, ok bool, err error)
	// Close marks end of stream and wakes blocked readers. Close is idempotent.
	Close()
	IsClosed() bool
	Len() int
	Cap() int
}

// Broadcast puts every record to each of its transports in order; it is how a
// producer with several consumers fans out.
type Broadcast []Transport

// Put delivers rec to every consumer. The first failure stops delivery.
func (b Broadcast) Put(ctx context.Context, rec *types.Record) error {
	for _, t := range b {
		if err := t.Put(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every transport.
func (b Broadcast) Close() {
	for _, t := range b {
		t.Close()
	}
}

// Len is the number of records queued across all transports.
func (b Broadcast) Len() int {
	n := 0
	for _, t := range b {
		n += t.Len()
	}
	return n
}
