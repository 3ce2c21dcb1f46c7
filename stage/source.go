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
	"context"
	"errors"
	"fmt"

	"github.com/rulego/streamflow/codec"
	"github.com/rulego/streamflow/connector"
	"github.com/rulego/streamflow/plan"
	"github.com/rulego/streamflow/types"
)

// ErrNoInputs is returned when a record is pushed into a source.
var ErrNoInputs = errors.New("source has no inputs")

// Source pulls raw events from a connector and decodes them into records.
// It is driven by Run rather than Process.
type Source struct {
	base
	src    connector.Source
	codec  codec.Codec
	schema types.Schema
	tsIdx  int
}

// NewSource binds an opened connector and codec to a source node.
func NewSource(node *plan.Node, src connector.Source, c codec.Codec, env Env) *Source {
	env = env.withDefaults()
	tsIdx := -1
	if node.TimestampField != "" {
		tsIdx = node.OutputFields.IndexOf(node.TimestampField)
	}
	return &Source{
		base:   newBase(node, env),
		src:    src,
		codec:  c,
		schema: node.OutputFields,
		tsIdx:  tsIdx,
	}
}

// Run pulls until the connector reports end of stream, returning nil, or
// until ctx ends, returning its error.
func (s *Source) Run(ctx context.Context, emit Emitter) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := s.src.Pull(ctx)
		if errors.Is(err, connector.ErrEndOfStream) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return s.fail(err)
		}
		s.received()
		rec, err := s.decode(ev)
		if err != nil {
			return s.fail(err)
		}
		if err := s.emit(ctx, emit, rec); err != nil {
			return err
		}
	}
}

func (s *Source) decode(ev types.RawEvent) (*types.Record, error) {
	rec, err := s.codec.Decode(ev, s.schema)
	if err != nil {
		return nil, err
	}
	if s.tsIdx >= 0 {
		ts, err := types.Coerce(rec.Values[s.tsIdx], types.Of(types.KindTimestamp))
		if err != nil {
			return nil, fmt.Errorf("event time field %s: %w", s.schema[s.tsIdx].Name, err)
		}
		rec.Timestamp = ts.(int64)
	}
	return rec, nil
}

func (s *Source) Process(context.Context, int, *types.Record, Emitter) error {
	return s.fail(ErrNoInputs)
}

func (s *Source) Close() error {
	if !s.close() {
		return nil
	}
	return s.src.Close()
}
